package model

import (
	"strings"
	"time"
)

// FileMeta describes an uploaded EHR document or CT scan. Binary content is
// kept in object storage; only the metadata (and the storage key) lives on
// the case row.
type FileMeta struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	Type string `json:"type"`
	Path string `json:"path,omitempty"`
}

// PatientInfo is a loosely structured patient record. Every field is
// optional; a case with no name fields is listed as "Untitled case".
type PatientInfo struct {
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Age       *int   `json:"age,omitempty"`
	MRN       string `json:"mrn,omitempty"`
	Notes     string `json:"notes,omitempty"`
}

// ImageResult is one generated image for one timepoint. It records the exact
// prompt the backend was given, and is replaced wholesale on regeneration.
type ImageResult struct {
	URL        string    `json:"url"`
	Timepoint  Timepoint `json:"timepoint"`
	PromptUsed string    `json:"promptUsed"`
}

// Case is the root entity: patient metadata, uploaded file metadata, the
// prompts, and the per-timepoint image set. Patient info and file lists are
// fixed at creation; the image set and video URL may change afterwards.
type Case struct {
	ID              string                    `json:"id"`
	CreatedAt       time.Time                 `json:"createdAt"`
	Patient         PatientInfo               `json:"patient"`
	BasePrompt      string                    `json:"basePrompt"`
	GeneratedPrompt string                    `json:"generatedPrompt,omitempty"`
	EHRFiles        []FileMeta                `json:"ehrFiles"`
	CTScans         []FileMeta                `json:"ctScans"`
	Images          map[Timepoint]ImageResult `json:"images"`
	VideoURL        string                    `json:"videoUrl,omitempty"`
}

// UntitledCase is the listing label for cases whose patient has no name.
const UntitledCase = "Untitled case"

// Title returns the listing label for the case: the patient's name, or
// UntitledCase when both name fields are empty.
func (c *Case) Title() string {
	name := strings.TrimSpace(strings.TrimSpace(c.Patient.FirstName) + " " + strings.TrimSpace(c.Patient.LastName))
	if name == "" {
		return UntitledCase
	}
	return name
}
