package classify

import (
	"math"

	"github.com/MeKo-Tech/guidealign/internal/geometry"
)

// Orientation identifies which alignment guide a detected photo matches.
type Orientation string

const (
	// None means no orientation could be determined.
	None Orientation = ""
	// Portrait means the detected photo is taller than wide.
	Portrait Orientation = "portrait"
	// Landscape means the detected photo is wider than tall.
	Landscape Orientation = "landscape"
)

// String returns the orientation name, "none" for the zero value.
func (o Orientation) String() string {
	if o == None {
		return "none"
	}
	return string(o)
}

// Opposite returns the other guide orientation, or None for None.
func (o Orientation) Opposite() Orientation {
	switch o {
	case Portrait:
		return Landscape
	case Landscape:
		return Portrait
	default:
		return None
	}
}

// Config controls orientation classification behavior.
type Config struct {
	// LandscapeRatio is the aspect ratio (width/height) above which a
	// quad is classified as landscape.
	LandscapeRatio float64
	// PortraitRatio is the aspect ratio below which a quad is
	// classified as portrait.
	PortraitRatio float64
	// AmbiguousConfidence is the detector confidence above which a quad
	// in the ambiguous band defaults to landscape instead of none.
	AmbiguousConfidence float64
}

// DefaultConfig provides sensible defaults.
func DefaultConfig() Config {
	return Config{
		LandscapeRatio:      1.2,
		PortraitRatio:       0.8,
		AmbiguousConfidence: 0.7,
	}
}

// Validate checks the configuration for consistency.
func (c Config) Validate() error {
	if c.PortraitRatio <= 0 || c.LandscapeRatio <= c.PortraitRatio {
		return errInvalidRatios
	}
	if c.AmbiguousConfidence < 0 || c.AmbiguousConfidence > 1 {
		return errInvalidConfidence
	}
	return nil
}

// Verdict is the outcome of classifying one detected quad.
type Verdict struct {
	Orientation Orientation
	Confidence  float64
}

// Classifier turns a detected quadrilateral plus the upstream detector
// confidence into an orientation verdict.
type Classifier struct {
	cfg Config
}

// NewClassifier creates a classifier with the given configuration.
func NewClassifier(cfg Config) *Classifier {
	return &Classifier{cfg: cfg}
}

// Classify derives the orientation of a detected quad. Width is measured
// along the top edge, height along the left edge. A zero height yields
// aspect ratio 1, which lands in the ambiguous band rather than
// dividing by zero.
func (c *Classifier) Classify(q geometry.Quad, detectorConfidence float64) Verdict {
	width := math.Abs(q.TopRight.X - q.TopLeft.X)
	height := math.Abs(q.BottomLeft.Y - q.TopLeft.Y)

	aspectRatio := 1.0
	if height != 0 {
		aspectRatio = width / height
	}

	switch {
	case aspectRatio > c.cfg.LandscapeRatio:
		return Verdict{Orientation: Landscape, Confidence: detectorConfidence}
	case aspectRatio < c.cfg.PortraitRatio:
		return Verdict{Orientation: Portrait, Confidence: detectorConfidence}
	case detectorConfidence > c.cfg.AmbiguousConfidence:
		// Near-square at high confidence: landscape is the safer
		// default for physical photos held up to a camera.
		return Verdict{Orientation: Landscape, Confidence: detectorConfidence}
	default:
		// Low-confidence ambiguity is treated as nothing detected,
		// never guessed.
		return Verdict{Orientation: None, Confidence: 0}
	}
}
