package repository

import (
	"context"

	"neurocase/internal/model"
)

// CaseRepository defines data access for cases using SQL queries only.
// No business logic here — strictly persistence operations.
type CaseRepository interface {
	// List returns all cases ordered by creation timestamp, newest first.
	// The case listing has no pagination; each page load re-fetches.
	List(ctx context.Context) ([]model.Case, error)

	// FindByID returns a case by its ID. A missing row surfaces as
	// sql.ErrNoRows so callers can distinguish not-found.
	FindByID(ctx context.Context, id string) (*model.Case, error)

	// Create inserts a new case row with an empty image set. The ID and
	// creation timestamp are allocated by the database; the returned case
	// carries them.
	Create(ctx context.Context, c *model.Case) (*model.Case, error)

	// UpdateImages merges delta into the stored image set per timepoint
	// (existing timepoints not present in delta are left unchanged) and
	// returns the updated case.
	UpdateImages(ctx context.Context, id string, delta map[model.Timepoint]model.ImageResult) (*model.Case, error)

	// UpdateVideoURL stores the latest generated video URL and returns the
	// updated case.
	UpdateVideoURL(ctx context.Context, id string, videoURL string) (*model.Case, error)
}
