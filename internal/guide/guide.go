// Package guide defines the on-screen alignment guides a capture UI
// renders, and loads custom guide sets from YAML preset files.
package guide

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/guidealign/internal/classify"
	"github.com/MeKo-Tech/guidealign/internal/geometry"
)

// Guide is a fixed on-screen quadrilateral indicating where a user
// should align their physical photo.
type Guide struct {
	Name        string
	Orientation classify.Orientation
	Corners     geometry.Quad
}

// Set holds the two guides shown by the capture UI.
type Set struct {
	Portrait  Guide
	Landscape Guide
}

// ForOrientation returns the guide for the given orientation.
func (s Set) ForOrientation(o classify.Orientation) (Guide, bool) {
	switch o {
	case classify.Portrait:
		return s.Portrait, true
	case classify.Landscape:
		return s.Landscape, true
	default:
		return Guide{}, false
	}
}

// DefaultSet builds centered portrait and landscape guides for a frame
// of the given pixel dimensions. The portrait guide covers 50% of the
// frame width at a 3:4 aspect, the landscape guide mirrors it.
func DefaultSet(frameWidth, frameHeight float64) Set {
	return Set{
		Portrait: Guide{
			Name:        "portrait",
			Orientation: classify.Portrait,
			Corners:     centeredQuad(frameWidth, frameHeight, frameWidth*0.5, frameWidth*0.5*4/3),
		},
		Landscape: Guide{
			Name:        "landscape",
			Orientation: classify.Landscape,
			Corners:     centeredQuad(frameWidth, frameHeight, frameWidth*0.8, frameWidth*0.8*3/4),
		},
	}
}

func centeredQuad(frameW, frameH, w, h float64) geometry.Quad {
	x := (frameW - w) / 2
	y := (frameH - h) / 2
	return geometry.Quad{
		TopLeft:     geometry.Point{X: x, Y: y},
		TopRight:    geometry.Point{X: x + w, Y: y},
		BottomLeft:  geometry.Point{X: x, Y: y + h},
		BottomRight: geometry.Point{X: x + w, Y: y + h},
	}
}

// yamlPoint mirrors geometry.Point for preset files.
type yamlPoint struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// yamlQuad mirrors geometry.Quad for preset files.
type yamlQuad struct {
	TopLeft     yamlPoint `yaml:"top_left"`
	TopRight    yamlPoint `yaml:"top_right"`
	BottomLeft  yamlPoint `yaml:"bottom_left"`
	BottomRight yamlPoint `yaml:"bottom_right"`
}

type yamlSet struct {
	Portrait  yamlQuad `yaml:"portrait"`
	Landscape yamlQuad `yaml:"landscape"`
}

func (q yamlQuad) toQuad() geometry.Quad {
	return geometry.Quad{
		TopLeft:     geometry.Point{X: q.TopLeft.X, Y: q.TopLeft.Y},
		TopRight:    geometry.Point{X: q.TopRight.X, Y: q.TopRight.Y},
		BottomLeft:  geometry.Point{X: q.BottomLeft.X, Y: q.BottomLeft.Y},
		BottomRight: geometry.Point{X: q.BottomRight.X, Y: q.BottomRight.Y},
	}
}

// LoadSet reads a guide set from a YAML preset file.
func LoadSet(path string) (Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Set{}, fmt.Errorf("read guide set: %w", err)
	}
	return ParseSet(data)
}

// ParseSet parses a guide set from YAML bytes and validates it.
func ParseSet(data []byte) (Set, error) {
	var raw yamlSet
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Set{}, fmt.Errorf("parse guide set: %w", err)
	}

	set := Set{
		Portrait: Guide{
			Name:        "portrait",
			Orientation: classify.Portrait,
			Corners:     raw.Portrait.toQuad(),
		},
		Landscape: Guide{
			Name:        "landscape",
			Orientation: classify.Landscape,
			Corners:     raw.Landscape.toQuad(),
		},
	}
	if err := set.Validate(); err != nil {
		return Set{}, err
	}
	return set, nil
}

// Validate checks that both guides enclose a usable area.
func (s Set) Validate() error {
	if geometry.Area(s.Portrait.Corners) <= 0 {
		return fmt.Errorf("portrait guide has no area")
	}
	if geometry.Area(s.Landscape.Corners) <= 0 {
		return fmt.Errorf("landscape guide has no area")
	}
	return nil
}
