package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"neurocase/internal/model"
	"neurocase/internal/session"
)

// GetView returns the case's current view state.
func GetView(views *session.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(views.View(c.Params("id")))
	}
}

// updateViewRequest is a partial update: only the fields present in the body
// are applied, in struct order.
type updateViewRequest struct {
	Scrubber *int `json:"scrubber"`
	Compare  *struct {
		Left     model.Timepoint `json:"left"`
		Right    model.Timepoint `json:"right"`
		Position int             `json:"position"`
	} `json:"compare"`
	AnnotateMode *struct {
		Timepoint model.Timepoint `json:"timepoint"`
		Active    bool            `json:"active"`
	} `json:"annotateMode"`
}

// UpdateView applies scrubber, compare, or annotate-mode changes and returns
// the resulting view state.
func UpdateView(views *session.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		var req updateViewRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
		}

		if req.Scrubber != nil {
			if _, err := views.SetScrubber(id, *req.Scrubber); err != nil {
				return writeSessionError(c, err)
			}
		}
		if req.Compare != nil {
			if _, err := views.SetCompare(id, req.Compare.Left, req.Compare.Right, req.Compare.Position); err != nil {
				return writeSessionError(c, err)
			}
		}
		if req.AnnotateMode != nil {
			if _, err := views.SetAnnotateMode(id, req.AnnotateMode.Timepoint, req.AnnotateMode.Active); err != nil {
				return writeSessionError(c, err)
			}
		}
		return c.JSON(views.View(id))
	}
}

// ResetView discards the case's view state, as navigating away would.
func ResetView(views *session.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		views.Reset(c.Params("id"))
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// ListAnnotations returns the annotation set for one timepoint.
func ListAnnotations(views *session.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tp := model.Timepoint(c.Query("timepoint"))
		anns, err := views.Annotations(c.Params("id"), tp)
		if err != nil {
			return writeSessionError(c, err)
		}
		return c.JSON(fiber.Map{"data": anns, "total": len(anns)})
	}
}

// addAnnotationRequest places a new annotation at a normalized position.
type addAnnotationRequest struct {
	Timepoint model.Timepoint `json:"timepoint"`
	X         float64         `json:"x"`
	Y         float64         `json:"y"`
}

// AddAnnotation records a new empty-labeled annotation.
func AddAnnotation(views *session.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req addAnnotationRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
		}
		ann, err := views.AddAnnotation(c.Params("id"), req.Timepoint, req.X, req.Y)
		if err != nil {
			return writeSessionError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(ann)
	}
}

// setLabelRequest commits an annotation's label text.
type setLabelRequest struct {
	Timepoint model.Timepoint `json:"timepoint"`
	Label     string          `json:"label"`
}

// SetAnnotationLabel commits the label for an existing annotation.
func SetAnnotationLabel(views *session.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req setLabelRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
		}
		ann, err := views.SetAnnotationLabel(c.Params("id"), req.Timepoint, c.Params("annotationId"), req.Label)
		if err != nil {
			return writeSessionError(c, err)
		}
		return c.JSON(ann)
	}
}

// ClearAnnotations removes every annotation for the timepoint in the query.
func ClearAnnotations(views *session.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tp := model.Timepoint(c.Query("timepoint"))
		if err := views.ClearAnnotations(c.Params("id"), tp); err != nil {
			return writeSessionError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// writeSessionError maps view-state errors onto the response taxonomy.
func writeSessionError(c *fiber.Ctx, err error) error {
	if errors.Is(err, session.ErrAnnotationNotFound) {
		return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "annotation not found")
	}
	return writeError(c, fiber.StatusBadRequest, "VALIDATION_ERROR", err.Error())
}
