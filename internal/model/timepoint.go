package model

// Timepoint identifies one of the four fixed projection points a case's
// images are generated for. No other values ever enter the system.
type Timepoint string

const (
	TimepointNow Timepoint = "now"
	Timepoint3M  Timepoint = "3m"
	Timepoint6M  Timepoint = "6m"
	Timepoint12M Timepoint = "12m"
)

// AllTimepoints lists the full timepoint domain in display order.
func AllTimepoints() []Timepoint {
	return []Timepoint{TimepointNow, Timepoint3M, Timepoint6M, Timepoint12M}
}

// Valid reports whether t is one of the four fixed timepoints.
func (t Timepoint) Valid() bool {
	switch t {
	case TimepointNow, Timepoint3M, Timepoint6M, Timepoint12M:
		return true
	}
	return false
}

// ParseTimepoint validates a raw string against the timepoint domain.
func ParseTimepoint(s string) (Timepoint, bool) {
	t := Timepoint(s)
	return t, t.Valid()
}
