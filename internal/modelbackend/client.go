package modelbackend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"neurocase/internal/config"
	"neurocase/internal/model"
)

// Package modelbackend contains thin HTTP clients for the external
// model-serving backend that produces generated brain images, short videos,
// and refined prompts. The clients shape requests and decode responses;
// retry, fallback, and persistence decisions belong to the service layer.

// ImageGenerator requests AI-generated images for a subset of timepoints.
type ImageGenerator interface {
	// GenerateImages returns a partial mapping from timepoint to image URL.
	// Missing keys mean "not generated for that timepoint" and are not an
	// error; a non-2xx response is.
	GenerateImages(ctx context.Context, prompt string, timepoints []model.Timepoint) (map[model.Timepoint]string, error)
}

// VideoGenerator requests a short AI-generated video from a source image.
type VideoGenerator interface {
	GenerateVideo(ctx context.Context, imageURL, prompt string, seconds int) (string, error)
}

// PromptRefiner turns patient info, a base prompt, and file metadata into a
// richer prompt. Callers treat any failure as "no refinement available".
type PromptRefiner interface {
	RefinePrompt(ctx context.Context, patient model.PatientInfo, basePrompt string, ehrFiles, ctScans []model.FileMeta) (string, error)
}

// Client talks to the model backend over HTTP. It implements
// ImageGenerator, VideoGenerator, and PromptRefiner.
//
// The underlying http.Client deliberately sets no timeout: generation calls
// can legitimately run for minutes, and cancellation flows from the request
// context alone.
type Client struct {
	baseURL      string
	videoSeconds int
	http         *http.Client
}

// NewClient creates a model backend client from configuration.
func NewClient(cfg config.ModelBackendConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("model backend base URL is required")
	}
	videoSeconds := cfg.VideoSeconds
	if videoSeconds <= 0 {
		videoSeconds = DefaultVideoSeconds
	}
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		videoSeconds: videoSeconds,
		http: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}, nil
}

var _ ImageGenerator = (*Client)(nil)
var _ VideoGenerator = (*Client)(nil)
var _ PromptRefiner = (*Client)(nil)

// postJSON posts body as JSON to path and decodes a 2xx response into out.
func (c *Client) postJSON(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call model backend: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("model backend %s: %s", path, resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
