// Package session keeps the per-case view state a clinician builds up while
// inspecting a case: annotations, the scrubber position, the compare
// selection, and the annotate-mode toggles. The state lives in process
// memory, is never persisted, and is discarded on Reset.
package session

import (
	"errors"
	"sync"

	"neurocase/internal/model"
)

var (
	ErrAnnotationNotFound = errors.New("annotation not found")
	ErrCoordsOutOfRange   = errors.New("annotation coordinates must be within [0,1]")
	ErrInvalidTimepoint   = errors.New("invalid timepoint")
	ErrInvalidScrubber    = errors.New("scrubber index must be within 0..3")
	ErrInvalidComparePos  = errors.New("compare position must be within 0..100")
)

// Annotation is a labeled marker at a normalized position within an image's
// bounding box. Coordinates are fractions of the box, both in [0,1].
type Annotation struct {
	ID    string  `json:"id"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Label string  `json:"label"`
}

// CompareState is the two-image overlay selection: the left image is clipped
// to Position percent of the width over the full-width right image.
type CompareState struct {
	Left     model.Timepoint `json:"left"`
	Right    model.Timepoint `json:"right"`
	Position int             `json:"position"`
}

// ViewState is everything a single case view tracks locally.
type ViewState struct {
	Scrubber     int                              `json:"scrubber"`
	Compare      CompareState                     `json:"compare"`
	AnnotateMode map[model.Timepoint]bool         `json:"annotateMode"`
	Annotations  map[model.Timepoint][]Annotation `json:"annotations"`
}

func newViewState() *ViewState {
	return &ViewState{
		Compare: CompareState{
			Left:     model.TimepointNow,
			Right:    model.Timepoint12M,
			Position: 50,
		},
		AnnotateMode: make(map[model.Timepoint]bool),
		Annotations:  make(map[model.Timepoint][]Annotation),
	}
}

// CompareClip maps a slider position to the left image's clip percentage:
// 0 shows only the right image, 100 clips the left image to full width.
func CompareClip(position int) int {
	if position < 0 {
		return 0
	}
	if position > 100 {
		return 100
	}
	return position
}

// Store holds view state per case, guarded for concurrent handler access.
// Each case's state is owned by whoever currently views it; the store itself
// makes no cross-view guarantees beyond per-call consistency.
type Store struct {
	mu     sync.RWMutex
	states map[string]*ViewState
}

// NewStore creates an empty view-state store.
func NewStore() *Store {
	return &Store{states: make(map[string]*ViewState)}
}

// get returns the state for caseID, creating it on first access.
// Callers must hold s.mu.
func (s *Store) get(caseID string) *ViewState {
	st, ok := s.states[caseID]
	if !ok {
		st = newViewState()
		s.states[caseID] = st
	}
	return st
}

// View returns a copy of the case's current view state.
func (s *Store) View(caseID string) ViewState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshot(s.get(caseID))
}

// SetScrubber selects which of the four timepoints is shown full-size.
func (s *Store) SetScrubber(caseID string, index int) (ViewState, error) {
	if index < 0 || index >= len(model.AllTimepoints()) {
		return ViewState{}, ErrInvalidScrubber
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.get(caseID)
	st.Scrubber = index
	return snapshot(st), nil
}

// SetCompare updates the compare overlay selection.
func (s *Store) SetCompare(caseID string, left, right model.Timepoint, position int) (ViewState, error) {
	if !left.Valid() || !right.Valid() {
		return ViewState{}, ErrInvalidTimepoint
	}
	if position < 0 || position > 100 {
		return ViewState{}, ErrInvalidComparePos
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.get(caseID)
	st.Compare = CompareState{Left: left, Right: right, Position: position}
	return snapshot(st), nil
}

// SetAnnotateMode toggles annotate mode for one timepoint.
func (s *Store) SetAnnotateMode(caseID string, tp model.Timepoint, active bool) (ViewState, error) {
	if !tp.Valid() {
		return ViewState{}, ErrInvalidTimepoint
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.get(caseID)
	st.AnnotateMode[tp] = active
	return snapshot(st), nil
}

// Reset drops all view state for the case.
func (s *Store) Reset(caseID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, caseID)
}

// snapshot deep-copies a ViewState so callers never alias store internals.
func snapshot(st *ViewState) ViewState {
	out := ViewState{
		Scrubber:     st.Scrubber,
		Compare:      st.Compare,
		AnnotateMode: make(map[model.Timepoint]bool, len(st.AnnotateMode)),
		Annotations:  make(map[model.Timepoint][]Annotation, len(st.Annotations)),
	}
	for tp, on := range st.AnnotateMode {
		out.AnnotateMode[tp] = on
	}
	for tp, anns := range st.Annotations {
		cp := make([]Annotation, len(anns))
		copy(cp, anns)
		out.Annotations[tp] = cp
	}
	return out
}
