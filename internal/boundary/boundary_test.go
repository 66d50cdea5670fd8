package boundary

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/guidealign/internal/geometry"
)

func TestCornerSetNormalization(t *testing.T) {
	native := CornerSet{
		TopLeftCorner:     geometry.Point{X: 10, Y: 20},
		TopRightCorner:    geometry.Point{X: 110, Y: 22},
		BottomLeftCorner:  geometry.Point{X: 12, Y: 220},
		BottomRightCorner: geometry.Point{X: 108, Y: 218},
	}

	q := native.Quad()
	assert.Equal(t, geometry.Point{X: 10, Y: 20}, q.TopLeft)
	assert.Equal(t, geometry.Point{X: 110, Y: 22}, q.TopRight)
	assert.Equal(t, geometry.Point{X: 12, Y: 220}, q.BottomLeft)
	assert.Equal(t, geometry.Point{X: 108, Y: 218}, q.BottomRight)
}

func TestNewSelectsImplementation(t *testing.T) {
	t.Run("heuristic only", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.HeuristicOnly = true
		_, ok := New(cfg).(*HeuristicDetector)
		assert.True(t, ok)
	})

	t.Run("no model path with fallback", func(t *testing.T) {
		cfg := DefaultConfig()
		_, ok := New(cfg).(*HeuristicDetector)
		assert.True(t, ok)
	})

	t.Run("model path yields onnx detector", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.ModelPath = "/nonexistent/model.onnx"
		_, ok := New(cfg).(*onnxDetector)
		assert.True(t, ok)
	})
}

func TestONNXDetectorFallsBackOnInitFailure(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ModelPath = "/nonexistent/model.onnx"
	cfg.UseHeuristicFallback = true

	d := newONNXDetector(cfg)
	require.False(t, d.Ready())
	require.NoError(t, d.Init(context.Background()))

	assert.True(t, d.Ready())
	assert.Equal(t, SourceFallback, d.Source())
}

func TestONNXDetectorInitFailureWithoutFallback(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ModelPath = "/nonexistent/model.onnx"
	cfg.UseHeuristicFallback = false

	d := newONNXDetector(cfg)
	require.Error(t, d.Init(context.Background()))
	assert.False(t, d.Ready())
	assert.Equal(t, SourceDetector, d.Source())
}

// frameWithPhoto renders a bright background with a dark rectangle where
// the photo sits.
func frameWithPhoto(frameW, frameH int, photo image.Rectangle) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, frameW, frameH))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Gray{Y: 230}), image.Point{}, draw.Src)
	draw.Draw(img, photo, image.NewUniform(color.Gray{Y: 30}), image.Point{}, draw.Src)
	return img
}

func TestHeuristicDetectsLandscapePhoto(t *testing.T) {
	d := NewHeuristic(0.5)
	frame := frameWithPhoto(640, 480, image.Rect(120, 140, 520, 340))

	det, err := d.Detect(context.Background(), frame)
	require.NoError(t, err)
	require.True(t, det.Detected)
	require.NotNil(t, det.Corners)

	q := det.Corners.Quad()
	b := q.BoundingBox()
	// The detected boundary should land near the rendered photo; the
	// downscale pass costs a few pixels of precision.
	assert.InDelta(t, 120, b.MinX, 15)
	assert.InDelta(t, 140, b.MinY, 15)
	assert.InDelta(t, 520, b.MaxX, 15)
	assert.InDelta(t, 340, b.MaxY, 15)

	assert.Greater(t, det.Metrics.EdgeRatio, 1.0)
	assert.Greater(t, det.Metrics.AreaRatio, 0.1)
	assert.Greater(t, det.Metrics.MinDistance, 0.0)
}

func TestHeuristicDetectsDarkBackground(t *testing.T) {
	// Inverted contrast: bright photo on a dark capture surface.
	img := image.NewRGBA(image.Rect(0, 0, 480, 640))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Gray{Y: 25}), image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(140, 120, 340, 520), image.NewUniform(color.Gray{Y: 220}), image.Point{}, draw.Src)

	d := NewHeuristic(0.5)
	det, err := d.Detect(context.Background(), img)
	require.NoError(t, err)
	require.True(t, det.Detected)

	b := det.Corners.Quad().BoundingBox()
	assert.Less(t, b.Width(), b.Height())
}

func TestHeuristicUniformFrameYieldsNoDetection(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 320, 240))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Gray{Y: 128}), image.Point{}, draw.Src)

	d := NewHeuristic(0.5)
	det, err := d.Detect(context.Background(), img)
	require.NoError(t, err)
	assert.False(t, det.Detected)
	assert.Nil(t, det.Corners)
}

func TestHeuristicNilFrame(t *testing.T) {
	d := NewHeuristic(0.5)
	_, err := d.Detect(context.Background(), nil)
	require.Error(t, err)
}

func TestHeuristicCancelledContext(t *testing.T) {
	d := NewHeuristic(0.5)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Detect(ctx, frameWithPhoto(100, 100, image.Rect(20, 20, 80, 80)))
	require.Error(t, err)
}

func TestHeuristicLifecycle(t *testing.T) {
	d := NewHeuristic(0.5)
	require.NoError(t, d.Init(context.Background()))
	assert.True(t, d.Ready())
	assert.Equal(t, SourceFallback, d.Source())
	require.NoError(t, d.Close())
}

func TestBoxMetrics(t *testing.T) {
	m := boxMetrics(geometry.Box{MinX: 100, MinY: 50, MaxX: 300, MaxY: 150}, 640, 480)

	assert.InDelta(t, 200.0*100/(640*480), m.AreaRatio, 1e-9)
	assert.InDelta(t, 2.0, m.EdgeRatio, 1e-9)
	assert.InDelta(t, 50.0, m.MinDistance, 1e-9)
}
