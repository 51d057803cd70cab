package handler

import (
	"errors"
	"io"
	"mime/multipart"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"neurocase/internal/model"
	"neurocase/internal/service"
)

// ListCases returns all cases, newest first, with their listing labels.
func ListCases(svc service.CaseService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		res, err := svc.List(c.UserContext())
		if err != nil {
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(res)
	}
}

// CreateCase accepts the case-creation form (multipart/form-data: patient
// fields, base_prompt, and ehr_files/ct_scans file parts) and runs the full
// creation chain. The response reports the refinement and generation outcomes
// so the client can surface a retry where generation failed.
func CreateCase(svc service.CaseService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		form, err := c.MultipartForm()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "VALIDATION_ERROR", "multipart form is required")
		}

		in := service.CreateCaseInput{
			Patient: model.PatientInfo{
				FirstName: strings.TrimSpace(c.FormValue("patient_first_name")),
				LastName:  strings.TrimSpace(c.FormValue("patient_last_name")),
				MRN:       strings.TrimSpace(c.FormValue("patient_mrn")),
				Notes:     c.FormValue("patient_notes"),
			},
			BasePrompt: c.FormValue("base_prompt"),
		}
		if ageStr := strings.TrimSpace(c.FormValue("patient_age")); ageStr != "" {
			age, err := strconv.Atoi(ageStr)
			if err != nil || age < 0 {
				return writeError(c, fiber.StatusBadRequest, "VALIDATION_ERROR", "invalid patient age")
			}
			in.Patient.Age = &age
		}

		var closers []io.Closer
		defer func() {
			for _, cl := range closers {
				cl.Close()
			}
		}()

		if in.EHRFiles, err = openUploads(form.File["ehr_files"], &closers); err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		if in.CTScans, err = openUploads(form.File["ct_scans"], &closers); err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}

		res, err := svc.Create(c.UserContext(), in)
		if err != nil {
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.Status(fiber.StatusCreated).JSON(res)
	}
}

// GetCase returns a single case by ID.
func GetCase(svc service.CaseService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		cse, err := svc.Get(c.UserContext(), id)
		if err != nil {
			if errors.Is(err, service.ErrNotFound) {
				return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "case not found")
			}
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(cse)
	}
}

// GenerateImages regenerates images for all four timepoints from the case's
// stored base prompt. A backend failure is retryable, so it surfaces as 502
// rather than a generic 500.
func GenerateImages(svc service.CaseService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		cse, err := svc.GenerateImages(c.UserContext(), id)
		if err != nil {
			return writeCaseError(c, err)
		}
		return c.JSON(cse)
	}
}

// repromptRequest is the body for POST /cases/:id/reprompt.
type repromptRequest struct {
	AdditionalPrompt string            `json:"additional_prompt"`
	Timepoints       []model.Timepoint `json:"timepoints"`
}

// Reprompt regenerates only the selected timepoints with the base prompt plus
// the additional text.
func Reprompt(svc service.CaseService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		var req repromptRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
		}
		cse, err := svc.Reprompt(c.UserContext(), id, req.AdditionalPrompt, req.Timepoints)
		if err != nil {
			return writeCaseError(c, err)
		}
		return c.JSON(cse)
	}
}

// videoRequest is the body for POST /cases/:id/timepoints/:tp/video.
type videoRequest struct {
	Seconds int `json:"seconds"`
}

// GenerateVideo requests a short video for one timepoint's image and returns
// the resulting URL.
func GenerateVideo(svc service.CaseService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		tp, ok := model.ParseTimepoint(c.Params("tp"))
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "VALIDATION_ERROR", "invalid timepoint")
		}
		var req videoRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return writeError(c, fiber.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
			}
		}
		cse, err := svc.GenerateVideo(c.UserContext(), id, tp, req.Seconds)
		if err != nil {
			return writeCaseError(c, err)
		}
		return c.JSON(fiber.Map{"video_url": cse.VideoURL})
	}
}

// GetFileURL returns a presigned download URL for one of the case's uploaded
// files, identified by its storage path in the query.
func GetFileURL(svc service.CaseService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		path := c.Query("path")
		if path == "" {
			return writeError(c, fiber.StatusBadRequest, "VALIDATION_ERROR", "path query parameter is required")
		}
		url, err := svc.FileURL(c.UserContext(), id, path)
		if err != nil {
			if errors.Is(err, service.ErrFileNotFound) {
				return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "file not found")
			}
			return writeCaseError(c, err)
		}
		return c.JSON(fiber.Map{"url": url})
	}
}

// writeCaseError translates case workflow errors into the response taxonomy:
// validation rejections are 400, a missing case is 404, backend generation
// failures are a retryable 502, everything else is a generic 500.
func writeCaseError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "case not found")
	case errors.Is(err, service.ErrAdditionalPromptRequired),
		errors.Is(err, service.ErrNoTimepoints),
		errors.Is(err, service.ErrInvalidTimepoint),
		errors.Is(err, service.ErrNoImageForTimepoint):
		return writeError(c, fiber.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, service.ErrGenerationFailed):
		return writeError(c, fiber.StatusBadGateway, "GENERATION_FAILED", "generation failed, try again")
	default:
		return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

// openUploads opens every file header and adapts it into a service upload.
// Opened files are appended to closers so the caller can release them after
// the service has consumed the readers.
func openUploads(files []*multipart.FileHeader, closers *[]io.Closer) ([]service.Upload, error) {
	uploads := make([]service.Upload, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		*closers = append(*closers, f)

		ct := fh.Header.Get("Content-Type")
		if ct == "" {
			ct = "application/octet-stream"
		}
		uploads = append(uploads, service.Upload{
			Reader:      f,
			Name:        fh.Filename,
			Size:        fh.Size,
			ContentType: ct,
		})
	}
	return uploads, nil
}
