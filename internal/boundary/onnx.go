package boundary

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/disintegration/imaging"
	onnxrt "github.com/yalue/onnxruntime_go"

	"github.com/MeKo-Tech/guidealign/internal/geometry"
	"github.com/MeKo-Tech/guidealign/internal/mempool"
)

// onnxDetector runs a corner-regression model: one forward pass maps a
// frame to four normalized corner coordinates plus a confidence score.
type onnxDetector struct {
	cfg Config

	mu       sync.RWMutex
	session  *onnxrt.DynamicAdvancedSession
	inH, inW int
	fallback *HeuristicDetector
}

func newONNXDetector(cfg Config) *onnxDetector {
	return &onnxDetector{cfg: cfg}
}

// Init loads the ONNX session. On failure it switches to the heuristic
// fallback when configured, otherwise returns the error so a later
// Start can retry.
func (d *onnxDetector) Init(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.session != nil || d.fallback != nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := d.initSession(); err != nil {
		if d.cfg.UseHeuristicFallback {
			slog.Warn("Boundary model unavailable, using heuristic fallback", "error", err)
			d.fallback = NewHeuristic(d.cfg.ConfidenceThreshold)
			return nil
		}
		return fmt.Errorf("boundary detector init: %w", err)
	}
	slog.Debug("Boundary detector initialized", "model_path", d.cfg.ModelPath)
	return nil
}

// Ready reports whether Detect may run, via model or fallback.
func (d *onnxDetector) Ready() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.session != nil || d.fallback != nil
}

// Source reports which path results come from.
func (d *onnxDetector) Source() Source {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.fallback != nil {
		return SourceFallback
	}
	return SourceDetector
}

// Close releases the ONNX session.
func (d *onnxDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.session != nil {
		if err := d.session.Destroy(); err != nil {
			return fmt.Errorf("destroy session: %w", err)
		}
		d.session = nil
	}
	return nil
}

// Detect runs one forward pass over the frame.
func (d *onnxDetector) Detect(ctx context.Context, frame image.Image) (Detection, error) {
	if frame == nil {
		return Detection{}, errors.New("nil frame")
	}

	d.mu.RLock()
	session := d.session
	fallback := d.fallback
	inH, inW := d.inH, d.inW
	d.mu.RUnlock()

	if fallback != nil {
		return fallback.Detect(ctx, frame)
	}
	if session == nil {
		return Detection{}, errors.New("detector not initialized")
	}
	if err := ctx.Err(); err != nil {
		return Detection{}, err
	}

	if inH <= 0 || inW <= 0 {
		inH, inW = 256, 256
	}
	resized := imaging.Resize(frame, inW, inH, imaging.Lanczos)
	data := normalizeCHW(resized)
	defer mempool.PutFloat32(data)

	input, err := onnxrt.NewTensor(onnxrt.NewShape(1, 3, int64(inH), int64(inW)), data)
	if err != nil {
		return Detection{}, fmt.Errorf("input tensor: %w", err)
	}
	defer func() {
		if err := input.Destroy(); err != nil {
			slog.Error("Failed to destroy input tensor", "error", err)
		}
	}()

	outputs := []onnxrt.Value{nil}
	if err := session.Run([]onnxrt.Value{input}, outputs); err != nil {
		return Detection{}, fmt.Errorf("run: %w", err)
	}
	defer func() {
		for _, o := range outputs {
			if o != nil {
				if err := o.Destroy(); err != nil {
					slog.Error("Failed to destroy output tensor", "error", err)
				}
			}
		}
	}()

	vals, err := extractOutput(outputs)
	if err != nil {
		return Detection{}, err
	}
	return d.decodeDetection(vals, frame.Bounds()), nil
}

// initSession performs the ONNX environment and session setup. Callers
// hold d.mu.
func (d *onnxDetector) initSession() error {
	if d.cfg.ModelPath == "" {
		return errors.New("empty model path")
	}
	if _, err := os.Stat(d.cfg.ModelPath); err != nil {
		return err
	}

	if err := setONNXLibraryPath(); err != nil {
		return fmt.Errorf("onnx lib path: %w", err)
	}
	if !onnxrt.IsInitialized() {
		if err := onnxrt.InitializeEnvironment(); err != nil {
			return fmt.Errorf("init onnx: %w", err)
		}
	}

	inputs, outputs, err := onnxrt.GetInputOutputInfo(d.cfg.ModelPath)
	if err != nil {
		return fmt.Errorf("io info: %w", err)
	}
	if len(inputs) != 1 || len(outputs) != 1 {
		return fmt.Errorf("unexpected io (in:%d out:%d)", len(inputs), len(outputs))
	}
	in := inputs[0]
	out := outputs[0]
	if len(in.Dimensions) != 4 {
		return fmt.Errorf("expected 4D input, got %dD", len(in.Dimensions))
	}

	opts, err := onnxrt.NewSessionOptions()
	if err != nil {
		return fmt.Errorf("session opts: %w", err)
	}
	defer func() {
		if err := opts.Destroy(); err != nil {
			slog.Error("Failed to destroy session options", "error", err)
		}
	}()
	if d.cfg.NumThreads > 0 {
		_ = opts.SetIntraOpNumThreads(d.cfg.NumThreads)
	}

	sess, err := onnxrt.NewDynamicAdvancedSession(d.cfg.ModelPath, []string{in.Name}, []string{out.Name}, opts)
	if err != nil {
		return fmt.Errorf("session: %w", err)
	}

	d.session = sess
	if h := in.Dimensions[2]; h > 0 {
		d.inH = int(h)
	}
	if w := in.Dimensions[3]; w > 0 {
		d.inW = int(w)
	}
	return nil
}

// decodeDetection maps the model output vector onto frame coordinates.
// Layout: 8 corner coordinates normalized to [0,1] in canonical order
// (TL, TR, BL, BR) followed by a confidence logit.
func (d *onnxDetector) decodeDetection(vals []float32, bounds image.Rectangle) Detection {
	frameW := float64(bounds.Dx())
	frameH := float64(bounds.Dy())

	point := func(i int) geometry.Point {
		return geometry.Point{
			X: clamp(float64(vals[i]), 0, 1) * frameW,
			Y: clamp(float64(vals[i+1]), 0, 1) * frameH,
		}
	}
	corners := CornerSet{
		TopLeftCorner:     point(0),
		TopRightCorner:    point(2),
		BottomLeftCorner:  point(4),
		BottomRightCorner: point(6),
	}
	confidence := sigmoid(float64(vals[8]))

	box := corners.Quad().BoundingBox()
	det := Detection{
		Confidence: confidence,
		Metrics:    boxMetrics(box, frameW, frameH),
	}
	if confidence >= d.cfg.ConfidenceThreshold {
		det.Detected = true
		det.Corners = &corners
		det.CropArea = &box
	}
	return det
}

func extractOutput(outputs []onnxrt.Value) ([]float32, error) {
	t, ok := outputs[0].(*onnxrt.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected output type %T", outputs[0])
	}
	data := t.GetData()
	if len(data) < 9 {
		return nil, fmt.Errorf("unexpected output length %d", len(data))
	}
	return data, nil
}

// normalizeCHW converts an image into CHW float32 data scaled to
// [-1, 1] per channel. The returned buffer comes from the pool; the
// caller returns it via mempool.PutFloat32 once the tensor is gone.
func normalizeCHW(img image.Image) []float32 {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	data := mempool.GetFloat32(3 * w * h)
	plane := w * h
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			i := y*w + x
			data[i] = float32(r>>8)/127.5 - 1
			data[plane+i] = float32(g>>8)/127.5 - 1
			data[2*plane+i] = float32(bl>>8)/127.5 - 1
		}
	}
	return data
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// findProjectRoot locates the module root by walking up to go.mod.
func findProjectRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	root := cwd
	for {
		if _, err := os.Stat(filepath.Join(root, "go.mod")); err == nil {
			return root, nil
		}
		parent := filepath.Dir(root)
		if parent == root {
			return "", errors.New("could not find project root")
		}
		root = parent
	}
}

func onnxLibName() (string, error) {
	switch runtime.GOOS {
	case "linux":
		return "libonnxruntime.so", nil
	case "darwin":
		return "libonnxruntime.dylib", nil
	case "windows":
		return "onnxruntime.dll", nil
	default:
		return "", fmt.Errorf("unsupported OS: %s", runtime.GOOS)
	}
}

// setONNXLibraryPath locates the ONNX Runtime shared library in common
// system paths, then project-relative.
func setONNXLibraryPath() error {
	system := []string{
		"/usr/local/lib/libonnxruntime.so",
		"/usr/lib/libonnxruntime.so",
		"/opt/onnxruntime/cpu/lib/libonnxruntime.so",
	}
	for _, p := range system {
		if _, err := os.Stat(p); err == nil {
			onnxrt.SetSharedLibraryPath(p)
			return nil
		}
	}

	root, err := findProjectRoot()
	if err != nil {
		return err
	}
	libName, err := onnxLibName()
	if err != nil {
		return err
	}
	p := filepath.Join(root, "onnxruntime", "lib", libName)
	if _, err := os.Stat(p); err != nil {
		return fmt.Errorf("ONNX Runtime library not found at %s", p)
	}
	onnxrt.SetSharedLibraryPath(p)
	return nil
}
