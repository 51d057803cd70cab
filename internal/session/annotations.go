package session

import (
	"strings"

	"github.com/google/uuid"

	"neurocase/internal/model"
)

// AddAnnotation records a new annotation at the given normalized position
// with an empty label, returning it for inline label editing.
func (s *Store) AddAnnotation(caseID string, tp model.Timepoint, x, y float64) (Annotation, error) {
	if !tp.Valid() {
		return Annotation{}, ErrInvalidTimepoint
	}
	if x < 0 || x > 1 || y < 0 || y > 1 {
		return Annotation{}, ErrCoordsOutOfRange
	}

	ann := Annotation{ID: uuid.NewString(), X: x, Y: y}

	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.get(caseID)
	st.Annotations[tp] = append(st.Annotations[tp], ann)
	return ann, nil
}

// SetAnnotationLabel commits the trimmed label for an annotation.
// An empty label is allowed.
func (s *Store) SetAnnotationLabel(caseID string, tp model.Timepoint, annotationID, label string) (Annotation, error) {
	if !tp.Valid() {
		return Annotation{}, ErrInvalidTimepoint
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.get(caseID)
	anns := st.Annotations[tp]
	for i := range anns {
		if anns[i].ID == annotationID {
			anns[i].Label = strings.TrimSpace(label)
			return anns[i], nil
		}
	}
	return Annotation{}, ErrAnnotationNotFound
}

// Annotations returns the annotation set for one timepoint.
func (s *Store) Annotations(caseID string, tp model.Timepoint) ([]Annotation, error) {
	if !tp.Valid() {
		return nil, ErrInvalidTimepoint
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[caseID]
	if !ok {
		return []Annotation{}, nil
	}
	out := make([]Annotation, len(st.Annotations[tp]))
	copy(out, st.Annotations[tp])
	return out, nil
}

// ClearAnnotations removes all annotations for one timepoint.
func (s *Store) ClearAnnotations(caseID string, tp model.Timepoint) error {
	if !tp.Valid() {
		return ErrInvalidTimepoint
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.get(caseID)
	delete(st.Annotations, tp)
	return nil
}
