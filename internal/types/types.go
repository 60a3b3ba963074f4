package types

import "time"

type Transcript struct {
	Language string    `json:"language,omitempty"`
	Segments []Segment `json:"segments"`
}

// Segment times are seconds from the start of the source.
type Segment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Interval is a selected range of the source. Lists of intervals are rendered
// in list order, not timeline order.
type Interval struct {
	Start time.Duration
	End   time.Duration
}

func (iv Interval) Len() time.Duration { return iv.End - iv.Start }

// MediaHandle is a source materialized inside a request workspace.
type MediaHandle struct {
	Locator  string
	Path     string
	Duration time.Duration
}

type Rendered struct {
	Path     string
	Duration time.Duration
}
