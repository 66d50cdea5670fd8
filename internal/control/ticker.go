package control

import "time"

// Ticker abstracts the repeating tick that drives the detection loop,
// so tests can substitute a manually advanced source for wall-clock
// time.
type Ticker interface {
	// C delivers ticks.
	C() <-chan time.Time
	// Stop cancels the ticker. No ticks are delivered afterwards.
	Stop()
}

// TickerFactory builds a Ticker for the given interval.
type TickerFactory func(interval time.Duration) Ticker

type wallTicker struct {
	t *time.Ticker
}

// NewWallTicker returns a Ticker backed by time.Ticker.
func NewWallTicker(interval time.Duration) Ticker {
	return &wallTicker{t: time.NewTicker(interval)}
}

func (w *wallTicker) C() <-chan time.Time { return w.t.C }

func (w *wallTicker) Stop() { w.t.Stop() }
