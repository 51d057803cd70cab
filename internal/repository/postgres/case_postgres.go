package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"neurocase/internal/model"
	"neurocase/internal/repository"
)

// CasePostgres is a PostgreSQL implementation of repository.CaseRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type CasePostgres struct {
	db *sql.DB
}

// NewCasePostgres creates a new CasePostgres repository.
func NewCasePostgres(db *sql.DB) *CasePostgres {
	return &CasePostgres{db: db}
}

var _ repository.CaseRepository = (*CasePostgres)(nil)

// IsNoRowsError reports whether err means the queried row does not exist.
func IsNoRowsError(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

const caseColumns = `id, created_at, patient_first_name, patient_last_name, patient_age,
		patient_mrn, patient_notes, base_prompt, generated_prompt, ehr_files, ct_scans, images, video_url`

// caseRow mirrors the cases table; nullable columns and JSONB blobs are
// decoded into the domain model by toModel.
type caseRow struct {
	id              string
	createdAt       sql.NullTime
	firstName       sql.NullString
	lastName        sql.NullString
	age             sql.NullInt64
	mrn             sql.NullString
	notes           sql.NullString
	basePrompt      sql.NullString
	generatedPrompt sql.NullString
	ehrFiles        []byte
	ctScans         []byte
	images          []byte
	videoURL        sql.NullString
}

func (r *caseRow) scan(row interface{ Scan(dest ...any) error }) error {
	return row.Scan(
		&r.id,
		&r.createdAt,
		&r.firstName,
		&r.lastName,
		&r.age,
		&r.mrn,
		&r.notes,
		&r.basePrompt,
		&r.generatedPrompt,
		&r.ehrFiles,
		&r.ctScans,
		&r.images,
		&r.videoURL,
	)
}

func (r *caseRow) toModel() (*model.Case, error) {
	c := &model.Case{
		ID:              r.id,
		CreatedAt:       r.createdAt.Time,
		BasePrompt:      r.basePrompt.String,
		GeneratedPrompt: r.generatedPrompt.String,
		VideoURL:        r.videoURL.String,
		EHRFiles:        []model.FileMeta{},
		CTScans:         []model.FileMeta{},
		Images:          map[model.Timepoint]model.ImageResult{},
	}
	c.Patient = model.PatientInfo{
		FirstName: r.firstName.String,
		LastName:  r.lastName.String,
		MRN:       r.mrn.String,
		Notes:     r.notes.String,
	}
	if r.age.Valid {
		age := int(r.age.Int64)
		c.Patient.Age = &age
	}
	if len(r.ehrFiles) > 0 {
		if err := json.Unmarshal(r.ehrFiles, &c.EHRFiles); err != nil {
			return nil, fmt.Errorf("decode ehr_files: %w", err)
		}
	}
	if len(r.ctScans) > 0 {
		if err := json.Unmarshal(r.ctScans, &c.CTScans); err != nil {
			return nil, fmt.Errorf("decode ct_scans: %w", err)
		}
	}
	if len(r.images) > 0 {
		if err := json.Unmarshal(r.images, &c.Images); err != nil {
			return nil, fmt.Errorf("decode images: %w", err)
		}
	}
	return c, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// List returns all cases, newest creation timestamp first.
func (r *CasePostgres) List(ctx context.Context) ([]model.Case, error) {
	q := `
		SELECT ` + caseColumns + `
		FROM cases
		ORDER BY created_at DESC, id DESC
	`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Case, 0)
	for rows.Next() {
		var cr caseRow
		if err := cr.scan(rows); err != nil {
			return nil, err
		}
		c, err := cr.toModel()
		if err != nil {
			return nil, err
		}
		items = append(items, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// FindByID fetches a single case by its ID.
func (r *CasePostgres) FindByID(ctx context.Context, id string) (*model.Case, error) {
	q := `
		SELECT ` + caseColumns + `
		FROM cases
		WHERE id = $1
	`
	var cr caseRow
	if err := cr.scan(r.db.QueryRowContext(ctx, q, id)); err != nil {
		return nil, err
	}
	return cr.toModel()
}

// Create inserts a new case row and returns the stored record. The database
// allocates id and created_at; the image set starts empty.
func (r *CasePostgres) Create(ctx context.Context, c *model.Case) (*model.Case, error) {
	ehrFiles, err := json.Marshal(c.EHRFiles)
	if err != nil {
		return nil, fmt.Errorf("encode ehr_files: %w", err)
	}
	ctScans, err := json.Marshal(c.CTScans)
	if err != nil {
		return nil, fmt.Errorf("encode ct_scans: %w", err)
	}

	var age sql.NullInt64
	if c.Patient.Age != nil {
		age = sql.NullInt64{Int64: int64(*c.Patient.Age), Valid: true}
	}

	q := `
		INSERT INTO cases (patient_first_name, patient_last_name, patient_age,
			patient_mrn, patient_notes, base_prompt, generated_prompt, ehr_files, ct_scans, images)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, '{}'::jsonb)
		RETURNING ` + caseColumns + `
	`
	var cr caseRow
	if err := cr.scan(r.db.QueryRowContext(ctx, q,
		nullString(c.Patient.FirstName),
		nullString(c.Patient.LastName),
		age,
		nullString(c.Patient.MRN),
		nullString(c.Patient.Notes),
		c.BasePrompt,
		nullString(c.GeneratedPrompt),
		ehrFiles,
		ctScans,
	)); err != nil {
		return nil, err
	}
	return cr.toModel()
}

// UpdateImages merges delta into the stored image set. The JSONB || operator
// overwrites per timepoint key and leaves absent keys untouched, so two
// concurrent updates interleave instead of clobbering the whole map.
func (r *CasePostgres) UpdateImages(ctx context.Context, id string, delta map[model.Timepoint]model.ImageResult) (*model.Case, error) {
	payload, err := json.Marshal(delta)
	if err != nil {
		return nil, fmt.Errorf("encode images delta: %w", err)
	}

	q := `
		UPDATE cases
		SET images = images || $2::jsonb
		WHERE id = $1
		RETURNING ` + caseColumns + `
	`
	var cr caseRow
	if err := cr.scan(r.db.QueryRowContext(ctx, q, id, payload)); err != nil {
		return nil, err
	}
	return cr.toModel()
}

// UpdateVideoURL stores the latest generated video URL for the case.
func (r *CasePostgres) UpdateVideoURL(ctx context.Context, id string, videoURL string) (*model.Case, error) {
	q := `
		UPDATE cases
		SET video_url = $2
		WHERE id = $1
		RETURNING ` + caseColumns + `
	`
	var cr caseRow
	if err := cr.scan(r.db.QueryRowContext(ctx, q, id, videoURL)); err != nil {
		return nil, err
	}
	return cr.toModel()
}
