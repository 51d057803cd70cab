package modelbackend

import (
	"context"
	"fmt"

	"neurocase/internal/model"
)

type refinePromptRequest struct {
	BasePrompt string            `json:"base_prompt"`
	Patient    model.PatientInfo `json:"patient"`
	EHRFiles   []model.FileMeta  `json:"ehr_files"`
	CTScans    []model.FileMeta  `json:"ct_scans"`
}

type refinePromptResponse struct {
	GeneratedPrompt string `json:"generated_prompt"`
}

// RefinePrompt asks the backend for a richer prompt built from the patient
// context and file metadata. Binary file content is never sent; this layer
// only retains metadata.
func (c *Client) RefinePrompt(ctx context.Context, patient model.PatientInfo, basePrompt string, ehrFiles, ctScans []model.FileMeta) (string, error) {
	var out refinePromptResponse
	err := c.postJSON(ctx, "/model/prompt", refinePromptRequest{
		BasePrompt: basePrompt,
		Patient:    patient,
		EHRFiles:   ehrFiles,
		CTScans:    ctScans,
	}, &out)
	if err != nil {
		return "", err
	}
	if out.GeneratedPrompt == "" {
		return "", fmt.Errorf("model backend returned no generated_prompt")
	}
	return out.GeneratedPrompt, nil
}
