package control

import (
	"github.com/MeKo-Tech/guidealign/internal/boundary"
	"github.com/MeKo-Tech/guidealign/internal/classify"
	"github.com/MeKo-Tech/guidealign/internal/geometry"
)

// Metrics carries per-tick measurements alongside a result.
type Metrics struct {
	AreaRatio        float64 `json:"area_ratio"`
	EdgeRatio        float64 `json:"edge_ratio"`
	MinDistance      float64 `json:"min_distance"`
	ProcessingTimeMs int64   `json:"processing_time_ms"`
}

// Result is what one detection tick reports to the UI. Produced fresh
// each tick and never mutated after dispatch.
type Result struct {
	Orientation classify.Orientation `json:"orientation,omitempty"`
	Confidence  float64              `json:"confidence"`
	Corners     *geometry.Quad       `json:"corners,omitempty"`
	Detected    bool                 `json:"detected"`
	Source      boundary.Source      `json:"source"`
	Metrics     Metrics              `json:"metrics"`
}

// neutralResult is emitted when a tick fails or nothing is detected.
func neutralResult(processingMs int64) Result {
	return Result{
		Source:  boundary.SourceNone,
		Metrics: Metrics{ProcessingTimeMs: processingMs},
	}
}
