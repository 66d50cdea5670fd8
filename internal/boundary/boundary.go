// Package boundary detects the outline of a physical photo in a camera
// frame. It exposes a Detector interface, an ONNX-backed implementation
// and a heuristic fallback that works without any model files. All
// detector-native corner naming is normalized into the canonical
// geometry.Quad here, at the ingress boundary.
package boundary

import (
	"context"
	"image"

	"github.com/MeKo-Tech/guidealign/internal/geometry"
)

// Source identifies which detection path produced a result.
type Source string

const (
	// SourceDetector marks results from the primary (model-backed) detector.
	SourceDetector Source = "detector"
	// SourceFallback marks results from the heuristic fallback.
	SourceFallback Source = "fallback"
	// SourceNone marks neutral results where no detection ran.
	SourceNone Source = "none"
)

// CornerSet carries the detector-native corner naming as produced by
// the upstream detection model. Nothing outside this package should
// consume it directly; call Quad to normalize.
type CornerSet struct {
	TopLeftCorner     geometry.Point `json:"topLeftCorner"`
	TopRightCorner    geometry.Point `json:"topRightCorner"`
	BottomLeftCorner  geometry.Point `json:"bottomLeftCorner"`
	BottomRightCorner geometry.Point `json:"bottomRightCorner"`
}

// Quad normalizes the native corner naming into the canonical quad.
func (c CornerSet) Quad() geometry.Quad {
	return geometry.Quad{
		TopLeft:     c.TopLeftCorner,
		TopRight:    c.TopRightCorner,
		BottomLeft:  c.BottomLeftCorner,
		BottomRight: c.BottomRightCorner,
	}
}

// Metrics describes the geometry of one detection pass.
type Metrics struct {
	// AreaRatio is the detected area relative to the frame area.
	AreaRatio float64
	// EdgeRatio is the width/height ratio of the detected boundary.
	EdgeRatio float64
	// MinDistance is the smallest distance in pixels between the
	// detected boundary and the frame edge.
	MinDistance float64
}

// Detection is the raw outcome of one boundary detection pass.
type Detection struct {
	Detected   bool
	Confidence float64
	Corners    *CornerSet
	CropArea   *geometry.Box
	Metrics    Metrics
}

// Detector finds a photo boundary in a still frame. Implementations
// must be safe for use from a single controller goroutine; Init is
// idempotent and carries the expensive setup so construction stays
// cheap.
type Detector interface {
	// Init prepares the detector. It may be called again after a
	// failure; ticks that arrive before a successful Init are skipped
	// by the controller.
	Init(ctx context.Context) error
	// Ready reports whether Detect may be called.
	Ready() bool
	// Source identifies which detection path this detector represents.
	Source() Source
	// Detect runs one detection pass over the frame.
	Detect(ctx context.Context, frame image.Image) (Detection, error)
	// Close releases detector resources.
	Close() error
}

// Config controls detector construction.
type Config struct {
	// ModelPath points at the ONNX boundary model. Empty disables the
	// model path entirely.
	ModelPath string
	// ConfidenceThreshold is the minimum model confidence for a
	// detection to be reported as detected.
	ConfidenceThreshold float64
	// NumThreads limits ONNX intra-op threads; 0 leaves the runtime
	// default.
	NumThreads int
	// UseHeuristicFallback switches to the heuristic detector when the
	// ONNX model is unavailable or fails to initialize.
	UseHeuristicFallback bool
	// HeuristicOnly forces the heuristic detector, bypassing ONNX
	// entirely. Useful for tests and model-less deployments.
	HeuristicOnly bool
}

// DefaultConfig provides sensible defaults.
func DefaultConfig() Config {
	return Config{
		ModelPath:            "",
		ConfidenceThreshold:  0.6,
		NumThreads:           0,
		UseHeuristicFallback: true,
		HeuristicOnly:        false,
	}
}

// New builds a detector for the given configuration. With HeuristicOnly
// set (or no model path and fallback enabled) it returns the heuristic
// detector directly; otherwise an ONNX-backed detector that may fall
// back on Init failure.
func New(cfg Config) Detector {
	if cfg.HeuristicOnly || (cfg.ModelPath == "" && cfg.UseHeuristicFallback) {
		return NewHeuristic(cfg.ConfidenceThreshold)
	}
	return newONNXDetector(cfg)
}
