package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"neurocase/internal/model"
	"neurocase/internal/modelbackend"
	"neurocase/internal/repository"
	"neurocase/internal/storage"
)

var (
	ErrIDRequired               = errors.New("case id is required")
	ErrNotFound                 = errors.New("case not found")
	ErrUploadReaderNil          = errors.New("upload reader is nil")
	ErrAdditionalPromptRequired = errors.New("additional prompt text is required")
	ErrNoTimepoints             = errors.New("at least one timepoint must be selected")
	ErrInvalidTimepoint         = errors.New("invalid timepoint")
	ErrNoImageForTimepoint      = errors.New("no image has been generated for this timepoint")
	ErrGenerationFailed         = errors.New("model backend generation failed")
	ErrFileNotFound             = errors.New("file not found on case")
)

// fileURLExpiry bounds how long a presigned upload download link stays valid.
const fileURLExpiry = 15 * time.Minute

// Upload is one raw file selection from the case-creation form.
type Upload struct {
	Reader      io.Reader
	Name        string
	Size        int64
	ContentType string
}

// CreateCaseInput collects everything the case-creation form submits.
type CreateCaseInput struct {
	Patient    model.PatientInfo
	BasePrompt string
	EHRFiles   []Upload
	CTScans    []Upload
}

// Outcome classifies a best-effort step of the creation chain so callers can
// assert on the taxonomy instead of UI side effects.
type Outcome string

const (
	// OutcomeOK means the step succeeded.
	OutcomeOK Outcome = "ok"
	// OutcomeFellBack means prompt refinement failed and the base prompt was used.
	OutcomeFellBack Outcome = "fell_back"
	// OutcomeFailed means initial image generation failed; the user can retry
	// from the case detail view.
	OutcomeFailed Outcome = "failed"
)

// CreateCaseResult is the creation outcome: the persisted case plus the
// taxonomy of the two best-effort steps.
type CreateCaseResult struct {
	Case       *model.Case `json:"case"`
	Refinement Outcome     `json:"refinement"`
	Generation Outcome     `json:"generation"`
}

// CaseSummary decorates a case with its listing label.
type CaseSummary struct {
	model.Case
	Title string `json:"title"`
}

// CaseListResult is the service-level DTO for the case listing.
type CaseListResult struct {
	Items []CaseSummary `json:"data"`
	Total int           `json:"total"`
}

// CaseService defines the case workflow use cases.
type CaseService interface {
	// Create runs the creation chain: store uploads, refine the prompt
	// (best-effort), persist the case, generate images for all four
	// timepoints (best-effort), persist whatever came back. Only the
	// persistence step is fatal.
	Create(ctx context.Context, in CreateCaseInput) (*CreateCaseResult, error)

	// List returns all cases, newest first, with listing labels.
	List(ctx context.Context) (*CaseListResult, error)

	// Get returns a single case by its ID.
	Get(ctx context.Context, id string) (*model.Case, error)

	// GenerateImages regenerates all four timepoints from the case's stored
	// base prompt (refinement is not re-run) and persists the result.
	GenerateImages(ctx context.Context, id string) (*model.Case, error)

	// Reprompt regenerates only the selected timepoints with the base prompt
	// plus additional text; unselected timepoints keep their previous images.
	Reprompt(ctx context.Context, id, additional string, timepoints []model.Timepoint) (*model.Case, error)

	// GenerateVideo requests a short video for one timepoint's image and
	// persists the returned URL on the case.
	GenerateVideo(ctx context.Context, id string, tp model.Timepoint, seconds int) (*model.Case, error)

	// FileURL returns a time-limited download URL for one of the case's
	// uploaded files, identified by its storage path.
	FileURL(ctx context.Context, id, path string) (string, error)
}

// caseService is the concrete implementation of CaseService.
type caseService struct {
	repo    repository.CaseRepository
	store   storage.Storage
	images  modelbackend.ImageGenerator
	videos  modelbackend.VideoGenerator
	refiner modelbackend.PromptRefiner
}

// NewCaseService constructs a new CaseService.
func NewCaseService(
	repo repository.CaseRepository,
	store storage.Storage,
	images modelbackend.ImageGenerator,
	videos modelbackend.VideoGenerator,
	refiner modelbackend.PromptRefiner,
) CaseService {
	return &caseService{
		repo:    repo,
		store:   store,
		images:  images,
		videos:  videos,
		refiner: refiner,
	}
}

// storeUploads streams each upload into object storage under cases/ and
// returns the metadata list for the case row. Keys of objects stored so far
// are appended to rollback so a later failure can clean them up.
func (s *caseService) storeUploads(ctx context.Context, kind string, uploads []Upload, rollback *[]string) ([]model.FileMeta, error) {
	metas := make([]model.FileMeta, 0, len(uploads))
	for _, u := range uploads {
		if u.Reader == nil {
			return nil, ErrUploadReaderNil
		}
		key := filepath.ToSlash(filepath.Join("cases", kind, uuid.New().String()+filepath.Ext(u.Name)))
		info, err := s.store.Put(ctx, key, u.Reader, storage.PutObjectOptions{
			Size:        u.Size,
			ContentType: u.ContentType,
			Metadata: map[string]string{
				"original-filename": u.Name,
			},
		})
		if err != nil {
			return nil, fmt.Errorf("upload %s to storage: %w", u.Name, err)
		}
		*rollback = append(*rollback, info.Key)
		metas = append(metas, model.FileMeta{
			Name: u.Name,
			Size: info.Size,
			Type: u.ContentType,
			Path: info.Key,
		})
	}
	return metas, nil
}

// rollbackUploads best-effort deletes objects stored by a failed creation.
func (s *caseService) rollbackUploads(ctx context.Context, keys []string) {
	for _, key := range keys {
		_ = s.store.Delete(ctx, key)
	}
}

func (s *caseService) Create(ctx context.Context, in CreateCaseInput) (*CreateCaseResult, error) {
	var stored []string

	ehrMeta, err := s.storeUploads(ctx, "ehr", in.EHRFiles, &stored)
	if err != nil {
		s.rollbackUploads(ctx, stored)
		return nil, err
	}
	ctMeta, err := s.storeUploads(ctx, "ct", in.CTScans, &stored)
	if err != nil {
		s.rollbackUploads(ctx, stored)
		return nil, err
	}

	// Best-effort refinement: any failure means the base prompt is used and
	// creation continues.
	refinement := OutcomeOK
	generatedPrompt, err := s.refiner.RefinePrompt(ctx, in.Patient, in.BasePrompt, ehrMeta, ctMeta)
	if err != nil {
		refinement = OutcomeFellBack
		generatedPrompt = ""
	}

	c := &model.Case{
		Patient:         in.Patient,
		BasePrompt:      strings.TrimSpace(in.BasePrompt),
		GeneratedPrompt: generatedPrompt,
		EHRFiles:        ehrMeta,
		CTScans:         ctMeta,
	}
	created, err := s.repo.Create(ctx, c)
	if err != nil {
		s.rollbackUploads(ctx, stored)
		return nil, fmt.Errorf("persist case: %w", err)
	}

	// Best-effort initial generation for all four timepoints. The user lands
	// on the detail view either way and can retry from there.
	finalPrompt := created.BasePrompt
	if created.GeneratedPrompt != "" {
		finalPrompt = created.GeneratedPrompt
	}
	generation := OutcomeOK
	urls, err := s.images.GenerateImages(ctx, finalPrompt, nil)
	if err != nil {
		generation = OutcomeFailed
	} else if len(urls) > 0 {
		updated, err := s.repo.UpdateImages(ctx, created.ID, imageDelta(urls, finalPrompt))
		if err != nil {
			generation = OutcomeFailed
		} else {
			created = updated
		}
	}

	return &CreateCaseResult{Case: created, Refinement: refinement, Generation: generation}, nil
}

func (s *caseService) List(ctx context.Context) (*CaseListResult, error) {
	cases, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]CaseSummary, 0, len(cases))
	for _, c := range cases {
		items = append(items, CaseSummary{Case: c, Title: c.Title()})
	}
	return &CaseListResult{Items: items, Total: len(items)}, nil
}

func (s *caseService) Get(ctx context.Context, id string) (*model.Case, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

func (s *caseService) GenerateImages(ctx context.Context, id string) (*model.Case, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	urls, err := s.images.GenerateImages(ctx, c.BasePrompt, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	if len(urls) == 0 {
		return c, nil
	}
	return s.repo.UpdateImages(ctx, id, imageDelta(urls, c.BasePrompt))
}

func (s *caseService) Reprompt(ctx context.Context, id, additional string, timepoints []model.Timepoint) (*model.Case, error) {
	if strings.TrimSpace(additional) == "" {
		return nil, ErrAdditionalPromptRequired
	}
	if len(timepoints) == 0 {
		return nil, ErrNoTimepoints
	}
	for _, tp := range timepoints {
		if !tp.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidTimepoint, tp)
		}
	}

	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	prompt := effectivePrompt(c.BasePrompt, additional)
	urls, err := s.images.GenerateImages(ctx, prompt, timepoints)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	if len(urls) == 0 {
		return c, nil
	}
	return s.repo.UpdateImages(ctx, id, imageDelta(urls, prompt))
}

func (s *caseService) GenerateVideo(ctx context.Context, id string, tp model.Timepoint, seconds int) (*model.Case, error) {
	if !tp.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimepoint, tp)
	}
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	img, ok := c.Images[tp]
	if !ok {
		return nil, ErrNoImageForTimepoint
	}

	videoURL, err := s.videos.GenerateVideo(ctx, img.URL, videoPrompt(c, tp), seconds)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	return s.repo.UpdateVideoURL(ctx, id, videoURL)
}

func (s *caseService) FileURL(ctx context.Context, id, path string) (string, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if !hasFile(c.EHRFiles, path) && !hasFile(c.CTScans, path) {
		return "", ErrFileNotFound
	}
	return s.store.PresignGet(ctx, path, fileURLExpiry)
}

// hasFile reports whether any file meta on the case points at path.
func hasFile(files []model.FileMeta, path string) bool {
	for _, f := range files {
		if f.Path != "" && f.Path == path {
			return true
		}
	}
	return false
}

// imageDelta turns a backend URL mapping into the ImageResult delta persisted
// on the case, tagging each entry with its timepoint and the exact prompt used.
func imageDelta(urls map[model.Timepoint]string, prompt string) map[model.Timepoint]model.ImageResult {
	delta := make(map[model.Timepoint]model.ImageResult, len(urls))
	for tp, url := range urls {
		delta[tp] = model.ImageResult{URL: url, Timepoint: tp, PromptUsed: prompt}
	}
	return delta
}
