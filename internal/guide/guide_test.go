package guide

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/guidealign/internal/classify"
	"github.com/MeKo-Tech/guidealign/internal/geometry"
)

func TestDefaultSet(t *testing.T) {
	set := DefaultSet(1280, 720)

	require.NoError(t, set.Validate())

	// Portrait guide is taller than wide, landscape the opposite.
	pb := set.Portrait.Corners.BoundingBox()
	lb := set.Landscape.Corners.BoundingBox()
	assert.Greater(t, pb.Height(), pb.Width())
	assert.Greater(t, lb.Width(), lb.Height())

	// Both guides are centered in the frame.
	pc := set.Portrait.Corners.Centroid()
	assert.InDelta(t, 640, pc.X, 1e-9)
	assert.InDelta(t, 360, pc.Y, 1e-9)
}

func TestForOrientation(t *testing.T) {
	set := DefaultSet(640, 480)

	g, ok := set.ForOrientation(classify.Portrait)
	require.True(t, ok)
	assert.Equal(t, classify.Portrait, g.Orientation)

	g, ok = set.ForOrientation(classify.Landscape)
	require.True(t, ok)
	assert.Equal(t, classify.Landscape, g.Orientation)

	_, ok = set.ForOrientation(classify.None)
	assert.False(t, ok)
}

func TestParseSet(t *testing.T) {
	data := []byte(`
portrait:
  top_left: {x: 100, y: 50}
  top_right: {x: 400, y: 50}
  bottom_left: {x: 100, y: 450}
  bottom_right: {x: 400, y: 450}
landscape:
  top_left: {x: 50, y: 100}
  top_right: {x: 590, y: 100}
  bottom_left: {x: 50, y: 380}
  bottom_right: {x: 590, y: 380}
`)

	set, err := ParseSet(data)
	require.NoError(t, err)

	assert.Equal(t, geometry.Point{X: 100, Y: 50}, set.Portrait.Corners.TopLeft)
	assert.Equal(t, geometry.Point{X: 590, Y: 380}, set.Landscape.Corners.BottomRight)
	assert.Equal(t, classify.Landscape, set.Landscape.Orientation)
}

func TestParseSetRejectsDegenerateGuides(t *testing.T) {
	// Missing landscape corners collapse to a zero-area quad.
	data := []byte(`
portrait:
  top_left: {x: 0, y: 0}
  top_right: {x: 10, y: 0}
  bottom_left: {x: 0, y: 10}
  bottom_right: {x: 10, y: 10}
`)
	_, err := ParseSet(data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "landscape")
}

func TestParseSetRejectsInvalidYAML(t *testing.T) {
	_, err := ParseSet([]byte("portrait: ["))
	require.Error(t, err)
}

func TestLoadSetMissingFile(t *testing.T) {
	_, err := LoadSet(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
