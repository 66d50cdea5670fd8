// Package control drives the periodic guide detection loop: sample a
// frame, run the boundary detector, classify orientation, update the
// guide state machine and report a Result to the UI callback.
package control

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MeKo-Tech/guidealign/internal/boundary"
	"github.com/MeKo-Tech/guidealign/internal/classify"
	"github.com/MeKo-Tech/guidealign/internal/frame"
	"github.com/MeKo-Tech/guidealign/internal/geometry"
	"github.com/MeKo-Tech/guidealign/internal/guidestate"
)

// ErrAlreadyStarted is returned when Start is called on a running
// controller.
var ErrAlreadyStarted = errors.New("controller already started")

// Phase is the controller lifecycle state. A stopped controller returns
// to PhaseIdle, so stop/start cycles re-enter the same lifecycle.
type Phase int

const (
	// PhaseIdle means no detection loop is running.
	PhaseIdle Phase = iota
	// PhaseInitializing means the loop is running but the detector has
	// not reported ready yet; ticks are skipped, not queued.
	PhaseInitializing
	// PhaseRunning means ticks are being processed.
	PhaseRunning
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseInitializing:
		return "initializing"
	case PhaseRunning:
		return "running"
	default:
		return "idle"
	}
}

// Config controls the detection loop.
type Config struct {
	// Interval is the tick period of the sampling loop.
	Interval time.Duration
	// Classifier configures aspect-ratio orientation classification.
	Classifier classify.Config
	// State configures the guide state machine.
	State guidestate.Config
	// UseOverlapMatch selects the per-guide overlap matching algorithm
	// instead of aspect-ratio classification.
	UseOverlapMatch bool
}

// DefaultConfig provides sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval:        100 * time.Millisecond,
		Classifier:      classify.DefaultConfig(),
		State:           guidestate.DefaultConfig(),
		UseOverlapMatch: false,
	}
}

// Controller owns one detection session: a sampler, a detector and an
// isolated state machine. Multiple controllers can coexist; nothing is
// shared between instances.
type Controller struct {
	cfg        Config
	detector   boundary.Detector
	sampler    frame.Sampler
	classifier *classify.Classifier
	machine    *guidestate.Machine

	// Injection points for tests.
	newTicker TickerFactory
	now       func() time.Time

	mu             sync.Mutex
	phase          Phase
	gen            uint64
	onResult       func(Result)
	portraitGuide  geometry.Quad
	landscapeGuide geometry.Quad
	done           chan struct{}
	ticker         Ticker
	cancel         context.CancelFunc
	ctx            context.Context

	inFlight atomic.Bool
	skipped  atomic.Uint64
}

// New creates an idle controller.
func New(detector boundary.Detector, sampler frame.Sampler, cfg Config) *Controller {
	return &Controller{
		cfg:        cfg,
		detector:   detector,
		sampler:    sampler,
		classifier: classify.NewClassifier(cfg.Classifier),
		machine:    guidestate.NewMachine(cfg.State),
		newTicker:  NewWallTicker,
		now:        time.Now,
	}
}

// Start begins the detection loop. The detector is initialized
// asynchronously; ticks that fire before it is ready are skipped. Each
// processed tick invokes onResult with a fresh Result. Returns
// ErrAlreadyStarted if the controller is already running.
func (c *Controller) Start(portraitGuide, landscapeGuide geometry.Quad, onResult func(Result)) error {
	c.mu.Lock()
	if c.phase != PhaseIdle {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.phase = PhaseInitializing
	c.gen++
	gen := c.gen
	c.portraitGuide = portraitGuide
	c.landscapeGuide = landscapeGuide
	c.onResult = onResult
	c.machine.Reset()

	done := make(chan struct{})
	c.done = done
	ticker := c.newTicker(c.cfg.Interval)
	c.ticker = ticker
	ctx, cancel := context.WithCancel(context.Background())
	c.ctx = ctx
	c.cancel = cancel
	c.mu.Unlock()

	// Initialization must not block the timer; a failure only logs and
	// leaves the detector unready so subsequent ticks no-op. A later
	// Start retries.
	go func() {
		if err := c.detector.Init(ctx); err != nil {
			slog.Error("Boundary detector initialization failed", "error", err)
		}
	}()

	go c.run(ctx, done, ticker, gen)

	slog.Debug("Detection loop started", "interval", c.cfg.Interval)
	return nil
}

// Stop cancels the detection loop and returns the controller to
// PhaseIdle. Idempotent; safe to call when never started. Any in-flight
// detection completes silently without invoking the result callback.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.phase == PhaseIdle {
		c.mu.Unlock()
		return
	}
	c.phase = PhaseIdle
	c.gen++
	c.ticker.Stop()
	c.ticker = nil
	close(c.done)
	c.done = nil
	c.cancel()
	c.cancel = nil
	c.ctx = nil
	c.onResult = nil
	c.machine.Reset()
	c.mu.Unlock()

	slog.Debug("Detection loop stopped")
}

// State returns a snapshot of the guide state. Reading triggers the
// timeout decay check.
func (c *Controller) State() guidestate.State {
	return c.machine.State()
}

// ShouldHideGuide reports whether the guide for the given orientation
// should currently be hidden.
func (c *Controller) ShouldHideGuide(o classify.Orientation) bool {
	return c.machine.ShouldHideGuide(o)
}

// IsReady reports whether the boundary detector is initialized.
func (c *Controller) IsReady() bool {
	return c.detector.Ready()
}

// CurrentPhase returns the lifecycle phase.
func (c *Controller) CurrentPhase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// SkippedTicks reports how many ticks the overlap guard has dropped.
func (c *Controller) SkippedTicks() uint64 {
	return c.skipped.Load()
}

func (c *Controller) run(ctx context.Context, done chan struct{}, ticker Ticker, gen uint64) {
	for {
		select {
		case <-done:
			return
		case <-ticker.C():
			c.tick(ctx, gen)
		}
	}
}

// tick handles one timer firing. Ticks before detector readiness and
// ticks that would overlap an in-flight detection are dropped entirely.
func (c *Controller) tick(ctx context.Context, gen uint64) {
	if !c.detector.Ready() {
		slog.Debug("Skipping tick, detector not ready")
		return
	}

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	if c.phase == PhaseInitializing {
		c.phase = PhaseRunning
	}
	c.mu.Unlock()

	// At most one detection in flight per controller instance.
	if !c.inFlight.CompareAndSwap(false, true) {
		c.skipped.Add(1)
		slog.Debug("Skipping tick, detection still in flight")
		return
	}

	go func() {
		defer c.inFlight.Store(false)
		result := c.detectOnce(ctx)
		c.dispatch(gen, result)
	}()
}

// detectOnce runs one sample+detect+classify pass. Every failure path
// degrades to a neutral result; the loop itself never dies.
func (c *Controller) detectOnce(ctx context.Context) Result {
	start := c.now()

	img, err := c.sampler.Sample(ctx)
	if err != nil {
		slog.Warn("Frame capture failed", "error", err)
		return neutralResult(c.now().Sub(start).Milliseconds())
	}

	det, err := c.detector.Detect(ctx, img)
	elapsed := c.now().Sub(start).Milliseconds()
	if err != nil {
		slog.Warn("Boundary detection failed", "error", err)
		return neutralResult(elapsed)
	}

	metrics := Metrics{
		AreaRatio:        det.Metrics.AreaRatio,
		EdgeRatio:        det.Metrics.EdgeRatio,
		MinDistance:      det.Metrics.MinDistance,
		ProcessingTimeMs: elapsed,
	}

	if !det.Detected || det.Corners == nil {
		r := neutralResult(elapsed)
		r.Metrics = metrics
		return r
	}

	quad := det.Corners.Quad()
	verdict := c.classify(quad, det.Confidence)
	if verdict.Orientation == classify.None {
		// Low-confidence ambiguity counts as nothing detected.
		r := neutralResult(elapsed)
		r.Metrics = metrics
		return r
	}

	return Result{
		Orientation: verdict.Orientation,
		Confidence:  verdict.Confidence,
		Corners:     &quad,
		Detected:    true,
		Source:      c.detector.Source(),
		Metrics:     metrics,
	}
}

// classify picks the configured orientation algorithm.
func (c *Controller) classify(quad geometry.Quad, detectorConfidence float64) classify.Verdict {
	if !c.cfg.UseOverlapMatch {
		return c.classifier.Classify(quad, detectorConfidence)
	}

	c.mu.Lock()
	portrait := c.portraitGuide
	landscape := c.landscapeGuide
	c.mu.Unlock()

	portraitScore := geometry.MatchScore(quad, portrait)
	landscapeScore := geometry.MatchScore(quad, landscape)

	best := classify.Portrait
	bestScore := portraitScore
	if landscapeScore > portraitScore {
		best = classify.Landscape
		bestScore = landscapeScore
	}
	if bestScore <= geometry.MatchThreshold {
		return classify.Verdict{Orientation: classify.None, Confidence: 0}
	}
	return classify.Verdict{Orientation: best, Confidence: bestScore}
}

// dispatch applies a result to the state machine and forwards it to the
// caller. The liveness check happens here, immediately before the
// callback, so a Stop racing a completing detection wins.
func (c *Controller) dispatch(gen uint64, result Result) {
	c.mu.Lock()
	if c.gen != gen || c.phase == PhaseIdle {
		c.mu.Unlock()
		return
	}
	c.machine.Apply(result.Orientation, result.Confidence)
	cb := c.onResult
	c.mu.Unlock()

	if cb != nil {
		cb(result)
	}
}
