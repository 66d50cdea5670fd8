package boundary

import (
	"context"
	"errors"
	"image"
	"math"

	xdraw "golang.org/x/image/draw"

	"github.com/MeKo-Tech/guidealign/internal/geometry"
)

// heuristicSize is the working resolution for the luminance scan.
const heuristicSize = 96

// HeuristicDetector finds a photo boundary with a luminance threshold
// scan instead of a model. It assumes the photo stands out from the
// capture surface: the frame is binarized around its mean luminance and
// the connected extent of the foreground class becomes the boundary.
type HeuristicDetector struct {
	confidenceThreshold float64
}

// NewHeuristic creates a heuristic detector. Results below the given
// confidence are reported as not detected.
func NewHeuristic(confidenceThreshold float64) *HeuristicDetector {
	return &HeuristicDetector{confidenceThreshold: confidenceThreshold}
}

// Init is a no-op; the heuristic has no resources to load.
func (d *HeuristicDetector) Init(_ context.Context) error { return nil }

// Ready always reports true.
func (d *HeuristicDetector) Ready() bool { return true }

// Source identifies heuristic results as fallback detections.
func (d *HeuristicDetector) Source() Source { return SourceFallback }

// Close is a no-op.
func (d *HeuristicDetector) Close() error { return nil }

// Detect scans the frame for a rectangular foreground region.
func (d *HeuristicDetector) Detect(ctx context.Context, frame image.Image) (Detection, error) {
	if frame == nil {
		return Detection{}, errors.New("nil frame")
	}
	if err := ctx.Err(); err != nil {
		return Detection{}, err
	}

	bounds := frame.Bounds()
	frameW, frameH := bounds.Dx(), bounds.Dy()
	if frameW < 2 || frameH < 2 {
		return Detection{}, nil
	}

	gray := downscaleGray(frame, heuristicSize, heuristicSize)
	mask := binarizeForeground(gray)

	box, fill, ok := foregroundExtent(mask)
	if !ok {
		return Detection{}, nil
	}

	// Map the working-resolution box back to frame pixels.
	sx := float64(frameW) / float64(gray.Bounds().Dx())
	sy := float64(frameH) / float64(gray.Bounds().Dy())
	frameBox := geometry.Box{
		MinX: box.MinX * sx,
		MinY: box.MinY * sy,
		MaxX: box.MaxX * sx,
		MaxY: box.MaxY * sy,
	}

	metrics := boxMetrics(frameBox, float64(frameW), float64(frameH))

	// A rectangular photo fills its bounding box; low fill means the
	// foreground is scattered noise rather than one object. Boundaries
	// swallowing nearly the whole frame are the capture surface itself.
	confidence := fill
	if metrics.AreaRatio > 0.95 || metrics.AreaRatio < 0.02 {
		confidence = 0
	}

	det := Detection{
		Confidence: confidence,
		Metrics:    metrics,
	}
	if confidence >= d.confidenceThreshold {
		det.Detected = true
		det.Corners = &CornerSet{
			TopLeftCorner:     geometry.Point{X: frameBox.MinX, Y: frameBox.MinY},
			TopRightCorner:    geometry.Point{X: frameBox.MaxX, Y: frameBox.MinY},
			BottomLeftCorner:  geometry.Point{X: frameBox.MinX, Y: frameBox.MaxY},
			BottomRightCorner: geometry.Point{X: frameBox.MaxX, Y: frameBox.MaxY},
		}
		det.CropArea = &frameBox
	}
	return det, nil
}

// downscaleGray renders the frame into a grayscale thumbnail bounded by
// maxW x maxH, preserving aspect ratio.
func downscaleGray(frame image.Image, maxW, maxH int) *image.Gray {
	b := frame.Bounds()
	w, h := b.Dx(), b.Dy()
	scale := math.Min(float64(maxW)/float64(w), float64(maxH)/float64(h))
	if scale > 1 {
		scale = 1
	}
	dw := int(math.Max(2, math.Round(float64(w)*scale)))
	dh := int(math.Max(2, math.Round(float64(h)*scale)))

	dst := image.NewGray(image.Rect(0, 0, dw, dh))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), frame, b, xdraw.Src, nil)
	return dst
}

// bitmask is a row-major binary view of the thumbnail.
type bitmask struct {
	w, h int
	bits []bool
}

func (m bitmask) at(x, y int) bool { return m.bits[y*m.w+x] }

// binarizeForeground thresholds the thumbnail at its mean luminance and
// picks the class that does not dominate the border as foreground.
func binarizeForeground(gray *image.Gray) bitmask {
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()

	var sum int
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			sum += int(gray.GrayAt(b.Min.X+x, b.Min.Y+y).Y)
		}
	}
	mean := uint8(sum / (w * h))

	dark := make([]bool, w*h)
	darkBorder, border := 0, 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			isDark := gray.GrayAt(b.Min.X+x, b.Min.Y+y).Y < mean
			dark[y*w+x] = isDark
			if x == 0 || y == 0 || x == w-1 || y == h-1 {
				border++
				if isDark {
					darkBorder++
				}
			}
		}
	}

	// The capture surface touches the frame border; whichever class
	// owns most of the border is background.
	foregroundIsDark := darkBorder*2 < border
	bits := make([]bool, w*h)
	for i, isDark := range dark {
		bits[i] = isDark == foregroundIsDark
	}
	return bitmask{w: w, h: h, bits: bits}
}

// foregroundExtent returns the bounding box of foreground pixels in
// thumbnail coordinates plus the fill ratio inside that box.
func foregroundExtent(mask bitmask) (geometry.Box, float64, bool) {
	minX, minY := mask.w, mask.h
	maxX, maxY := -1, -1
	count := 0
	for y := 0; y < mask.h; y++ {
		for x := 0; x < mask.w; x++ {
			if !mask.at(x, y) {
				continue
			}
			count++
			if x < minX {
				minX = x
			}
			if x > maxX {
				maxX = x
			}
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}
		}
	}
	if count == 0 {
		return geometry.Box{}, 0, false
	}

	box := geometry.Box{
		MinX: float64(minX),
		MinY: float64(minY),
		MaxX: float64(maxX + 1),
		MaxY: float64(maxY + 1),
	}
	fill := float64(count) / (box.Width() * box.Height())
	return box, fill, true
}

func boxMetrics(box geometry.Box, frameW, frameH float64) Metrics {
	frameArea := frameW * frameH
	m := Metrics{}
	if frameArea > 0 {
		m.AreaRatio = box.Area() / frameArea
	}
	if box.Height() > 0 {
		m.EdgeRatio = box.Width() / box.Height()
	}
	m.MinDistance = math.Min(
		math.Min(box.MinX, box.MinY),
		math.Min(frameW-box.MaxX, frameH-box.MaxY),
	)
	if m.MinDistance < 0 {
		m.MinDistance = 0
	}
	return m
}
