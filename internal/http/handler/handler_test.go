package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"neurocase/internal/model"
	"neurocase/internal/service"
	serviceMocks "neurocase/internal/service/mocks"
	"neurocase/internal/session"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestHealthCheck(t *testing.T) {
	db, dbMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	app := fiber.New()
	app.Get("/health", HealthCheck(db))

	t.Run("healthy", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(nil)

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]string
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "healthy", body["status"])
	})

	t.Run("unhealthy", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(errors.New("db error"))

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

		var body errorPayload
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "SERVICE_UNAVAILABLE", body.Error.Code)
	})
}

func TestLivenessProbe(t *testing.T) {
	app := fiber.New()
	app.Get("/healthz", LivenessProbe())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	resp, _ := app.Test(req)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestListCases(t *testing.T) {
	mockSvc := new(serviceMocks.MockCaseService)
	app := fiber.New()
	app.Get("/cases", ListCases(mockSvc))

	t.Run("success", func(t *testing.T) {
		expectedRes := &service.CaseListResult{
			Items: []service.CaseSummary{{Case: model.Case{ID: uuid.New().String()}, Title: model.UntitledCase}},
			Total: 1,
		}
		mockSvc.On("List", mock.Anything).Return(expectedRes, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/cases", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var result service.CaseListResult
		json.NewDecoder(resp.Body).Decode(&result)
		require.Len(t, result.Items, 1)
		assert.Equal(t, model.UntitledCase, result.Items[0].Title)
		assert.Equal(t, 1, result.Total)
		mockSvc.AssertExpectations(t)
	})

	t.Run("service error", func(t *testing.T) {
		mockSvc.On("List", mock.Anything).Return(nil, errors.New("service error")).Once()

		req := httptest.NewRequest(http.MethodGet, "/cases", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})
}

func newCaseForm(t *testing.T, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for k, v := range fields {
		writer.WriteField(k, v)
	}
	ehr, _ := writer.CreateFormFile("ehr_files", "history.pdf")
	ehr.Write([]byte("ehr content"))
	ct, _ := writer.CreateFormFile("ct_scans", "scan.dcm")
	ct.Write([]byte("ct content"))
	writer.Close()
	return body, writer.FormDataContentType()
}

func TestCreateCase(t *testing.T) {
	mockSvc := new(serviceMocks.MockCaseService)
	app := fiber.New()
	app.Post("/cases", CreateCase(mockSvc))

	t.Run("success", func(t *testing.T) {
		body, contentType := newCaseForm(t, map[string]string{
			"patient_first_name": "Ada",
			"patient_last_name":  "Lovelace",
			"patient_age":        "36",
			"patient_mrn":        "MRN-001",
			"base_prompt":        "axial CT head",
		})

		expectedRes := &service.CreateCaseResult{
			Case:       &model.Case{ID: uuid.New().String()},
			Refinement: service.OutcomeOK,
			Generation: service.OutcomeOK,
		}
		mockSvc.On("Create", mock.Anything, mock.MatchedBy(func(in service.CreateCaseInput) bool {
			return in.Patient.FirstName == "Ada" &&
				in.Patient.Age != nil && *in.Patient.Age == 36 &&
				in.BasePrompt == "axial CT head" &&
				len(in.EHRFiles) == 1 && len(in.CTScans) == 1
		})).Return(expectedRes, nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/cases", body)
		req.Header.Set("Content-Type", contentType)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusCreated, resp.StatusCode)

		var result service.CreateCaseResult
		json.NewDecoder(resp.Body).Decode(&result)
		assert.Equal(t, expectedRes.Case.ID, result.Case.ID)
		assert.Equal(t, service.OutcomeOK, result.Generation)
		mockSvc.AssertExpectations(t)
	})

	t.Run("invalid age", func(t *testing.T) {
		body, contentType := newCaseForm(t, map[string]string{"patient_age": "abc"})

		req := httptest.NewRequest(http.MethodPost, "/cases", body)
		req.Header.Set("Content-Type", contentType)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "VALIDATION_ERROR", res.Error.Code)
	})

	t.Run("not multipart", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/cases", strings.NewReader("{}"))
		req.Header.Set("Content-Type", "application/json")
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("service error", func(t *testing.T) {
		body, contentType := newCaseForm(t, map[string]string{"base_prompt": "p"})

		mockSvc.On("Create", mock.Anything, mock.Anything).Return(nil, errors.New("create failed")).Once()

		req := httptest.NewRequest(http.MethodPost, "/cases", body)
		req.Header.Set("Content-Type", contentType)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})
}

func TestGetCase(t *testing.T) {
	mockSvc := new(serviceMocks.MockCaseService)
	app := fiber.New()
	app.Get("/cases/:id", GetCase(mockSvc))

	t.Run("success", func(t *testing.T) {
		id := uuid.New().String()
		expected := &model.Case{ID: id, BasePrompt: "p"}
		mockSvc.On("Get", mock.Anything, id).Return(expected, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/cases/"+id, nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var result model.Case
		json.NewDecoder(resp.Body).Decode(&result)
		assert.Equal(t, id, result.ID)
		mockSvc.AssertExpectations(t)
	})

	t.Run("not found", func(t *testing.T) {
		id := uuid.New().String()
		mockSvc.On("Get", mock.Anything, id).Return(nil, service.ErrNotFound).Once()

		req := httptest.NewRequest(http.MethodGet, "/cases/"+id, nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "NOT_FOUND", res.Error.Code)
		mockSvc.AssertExpectations(t)
	})

	t.Run("invalid id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/cases/invalid-uuid", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "INVALID_ID", res.Error.Code)
	})
}

func TestGenerateImagesHandler(t *testing.T) {
	mockSvc := new(serviceMocks.MockCaseService)
	app := fiber.New()
	app.Post("/cases/:id/images", GenerateImages(mockSvc))

	t.Run("success", func(t *testing.T) {
		id := uuid.New().String()
		expected := &model.Case{ID: id, Images: map[model.Timepoint]model.ImageResult{
			model.TimepointNow: {URL: "https://img/now.png", Timepoint: model.TimepointNow},
		}}
		mockSvc.On("GenerateImages", mock.Anything, id).Return(expected, nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/cases/"+id+"/images", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})

	t.Run("backend failure is retryable", func(t *testing.T) {
		id := uuid.New().String()
		mockSvc.On("GenerateImages", mock.Anything, id).Return(nil, service.ErrGenerationFailed).Once()

		req := httptest.NewRequest(http.MethodPost, "/cases/"+id+"/images", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "GENERATION_FAILED", res.Error.Code)
		mockSvc.AssertExpectations(t)
	})

	t.Run("not found", func(t *testing.T) {
		id := uuid.New().String()
		mockSvc.On("GenerateImages", mock.Anything, id).Return(nil, service.ErrNotFound).Once()

		req := httptest.NewRequest(http.MethodPost, "/cases/"+id+"/images", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})
}

func TestRepromptHandler(t *testing.T) {
	mockSvc := new(serviceMocks.MockCaseService)
	app := fiber.New()
	app.Post("/cases/:id/reprompt", Reprompt(mockSvc))

	t.Run("success", func(t *testing.T) {
		id := uuid.New().String()
		tps := []model.Timepoint{model.Timepoint3M, model.Timepoint6M}
		expected := &model.Case{ID: id}
		mockSvc.On("Reprompt", mock.Anything, id, "more contrast", tps).Return(expected, nil).Once()

		body := `{"additional_prompt":"more contrast","timepoints":["3m","6m"]}`
		req := httptest.NewRequest(http.MethodPost, "/cases/"+id+"/reprompt", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})

	t.Run("validation rejection", func(t *testing.T) {
		id := uuid.New().String()
		mockSvc.On("Reprompt", mock.Anything, id, "", mock.Anything).Return(nil, service.ErrAdditionalPromptRequired).Once()

		body := `{"additional_prompt":"","timepoints":["3m"]}`
		req := httptest.NewRequest(http.MethodPost, "/cases/"+id+"/reprompt", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "VALIDATION_ERROR", res.Error.Code)
		mockSvc.AssertExpectations(t)
	})

	t.Run("invalid body", func(t *testing.T) {
		id := uuid.New().String()
		req := httptest.NewRequest(http.MethodPost, "/cases/"+id+"/reprompt", strings.NewReader("not json"))
		req.Header.Set("Content-Type", "application/json")
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestGenerateVideoHandler(t *testing.T) {
	mockSvc := new(serviceMocks.MockCaseService)
	app := fiber.New()
	app.Post("/cases/:id/timepoints/:tp/video", GenerateVideo(mockSvc))

	t.Run("success without body defaults seconds", func(t *testing.T) {
		id := uuid.New().String()
		expected := &model.Case{ID: id, VideoURL: "https://videos/clip.mp4"}
		mockSvc.On("GenerateVideo", mock.Anything, id, model.TimepointNow, 0).Return(expected, nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/cases/"+id+"/timepoints/now/video", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]string
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "https://videos/clip.mp4", body["video_url"])
		mockSvc.AssertExpectations(t)
	})

	t.Run("explicit seconds", func(t *testing.T) {
		id := uuid.New().String()
		expected := &model.Case{ID: id, VideoURL: "https://videos/clip.mp4"}
		mockSvc.On("GenerateVideo", mock.Anything, id, model.Timepoint12M, 10).Return(expected, nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/cases/"+id+"/timepoints/12m/video", strings.NewReader(`{"seconds":10}`))
		req.Header.Set("Content-Type", "application/json")
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})

	t.Run("invalid timepoint", func(t *testing.T) {
		id := uuid.New().String()
		req := httptest.NewRequest(http.MethodPost, "/cases/"+id+"/timepoints/24m/video", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "VALIDATION_ERROR", res.Error.Code)
	})

	t.Run("no image for timepoint", func(t *testing.T) {
		id := uuid.New().String()
		mockSvc.On("GenerateVideo", mock.Anything, id, model.Timepoint6M, 0).Return(nil, service.ErrNoImageForTimepoint).Once()

		req := httptest.NewRequest(http.MethodPost, "/cases/"+id+"/timepoints/6m/video", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})
}

func TestGetFileURL(t *testing.T) {
	mockSvc := new(serviceMocks.MockCaseService)
	app := fiber.New()
	app.Get("/cases/:id/files/url", GetFileURL(mockSvc))

	t.Run("success", func(t *testing.T) {
		id := uuid.New().String()
		mockSvc.On("FileURL", mock.Anything, id, "cases/ehr/a.txt").
			Return("https://storage/signed", nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/cases/"+id+"/files/url?path=cases%2Fehr%2Fa.txt", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]string
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "https://storage/signed", body["url"])
		mockSvc.AssertExpectations(t)
	})

	t.Run("missing path", func(t *testing.T) {
		id := uuid.New().String()
		req := httptest.NewRequest(http.MethodGet, "/cases/"+id+"/files/url", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("file not on case", func(t *testing.T) {
		id := uuid.New().String()
		mockSvc.On("FileURL", mock.Anything, id, "cases/ehr/nope.txt").
			Return("", service.ErrFileNotFound).Once()

		req := httptest.NewRequest(http.MethodGet, "/cases/"+id+"/files/url?path=cases%2Fehr%2Fnope.txt", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})
}

func TestViewStateHandlers(t *testing.T) {
	views := session.NewStore()
	app := fiber.New()
	app.Get("/cases/:id/view", GetView(views))
	app.Put("/cases/:id/view", UpdateView(views))
	app.Delete("/cases/:id/view", ResetView(views))

	t.Run("defaults", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/cases/case-1/view", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var v session.ViewState
		json.NewDecoder(resp.Body).Decode(&v)
		assert.Equal(t, model.TimepointNow, v.Compare.Left)
		assert.Equal(t, model.Timepoint12M, v.Compare.Right)
		assert.Equal(t, 50, v.Compare.Position)
	})

	t.Run("update scrubber and compare", func(t *testing.T) {
		body := `{"scrubber":2,"compare":{"left":"3m","right":"6m","position":25}}`
		req := httptest.NewRequest(http.MethodPut, "/cases/case-1/view", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var v session.ViewState
		json.NewDecoder(resp.Body).Decode(&v)
		assert.Equal(t, 2, v.Scrubber)
		assert.Equal(t, model.Timepoint3M, v.Compare.Left)
		assert.Equal(t, 25, v.Compare.Position)
	})

	t.Run("scrubber out of range", func(t *testing.T) {
		body := `{"scrubber":4}`
		req := httptest.NewRequest(http.MethodPut, "/cases/case-1/view", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "VALIDATION_ERROR", res.Error.Code)
	})

	t.Run("reset", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/cases/case-1/view", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNoContent, resp.StatusCode)

		req = httptest.NewRequest(http.MethodGet, "/cases/case-1/view", nil)
		resp, _ = app.Test(req)

		var v session.ViewState
		json.NewDecoder(resp.Body).Decode(&v)
		assert.Equal(t, 0, v.Scrubber)
	})
}

func TestAnnotationHandlers(t *testing.T) {
	views := session.NewStore()
	app := fiber.New()
	app.Get("/cases/:id/annotations", ListAnnotations(views))
	app.Post("/cases/:id/annotations", AddAnnotation(views))
	app.Put("/cases/:id/annotations/:annotationId", SetAnnotationLabel(views))
	app.Delete("/cases/:id/annotations", ClearAnnotations(views))

	var annID string

	t.Run("add", func(t *testing.T) {
		body := `{"timepoint":"now","x":0.5,"y":0.5}`
		req := httptest.NewRequest(http.MethodPost, "/cases/case-1/annotations", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusCreated, resp.StatusCode)

		var ann session.Annotation
		json.NewDecoder(resp.Body).Decode(&ann)
		assert.NotEmpty(t, ann.ID)
		assert.Empty(t, ann.Label)
		annID = ann.ID
	})

	t.Run("set label", func(t *testing.T) {
		body := `{"timepoint":"now","label":"  hippocampal atrophy  "}`
		req := httptest.NewRequest(http.MethodPut, "/cases/case-1/annotations/"+annID, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var ann session.Annotation
		json.NewDecoder(resp.Body).Decode(&ann)
		assert.Equal(t, "hippocampal atrophy", ann.Label)
	})

	t.Run("list", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/cases/case-1/annotations?timepoint=now", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body struct {
			Data  []session.Annotation `json:"data"`
			Total int                  `json:"total"`
		}
		json.NewDecoder(resp.Body).Decode(&body)
		require.Equal(t, 1, body.Total)
		assert.Equal(t, annID, body.Data[0].ID)
	})

	t.Run("unknown annotation", func(t *testing.T) {
		body := `{"timepoint":"now","label":"x"}`
		req := httptest.NewRequest(http.MethodPut, "/cases/case-1/annotations/nope", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("coords out of range", func(t *testing.T) {
		body := `{"timepoint":"now","x":1.5,"y":0.5}`
		req := httptest.NewRequest(http.MethodPost, "/cases/case-1/annotations", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("clear", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/cases/case-1/annotations?timepoint=now", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNoContent, resp.StatusCode)

		req = httptest.NewRequest(http.MethodGet, "/cases/case-1/annotations?timepoint=now", nil)
		resp, _ = app.Test(req)

		var body struct {
			Total int `json:"total"`
		}
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, 0, body.Total)
	})
}

func TestRouting(t *testing.T) {
	app := fiber.New(fiber.Config{
		ErrorHandler: ErrorHandler(),
	})

	mockSvc := new(serviceMocks.MockCaseService)
	RegisterRoutes(app, nil, mockSvc, session.NewStore())

	t.Run("not found route", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/non-existent", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "NOT_FOUND", res.Error.Code)
	})

	t.Run("method not allowed", func(t *testing.T) {
		// Health endpoint only allows GET
		req := httptest.NewRequest(http.MethodPost, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "METHOD_NOT_ALLOWED", res.Error.Code)
	})
}
