// Package guidestate tracks which alignment guide is currently matched
// by the physical photo in front of the camera, and decides whether the
// non-matching guide should be hidden.
package guidestate

import (
	"sync"
	"time"

	"github.com/MeKo-Tech/guidealign/internal/classify"
)

// Config controls state machine behavior.
type Config struct {
	// Timeout is how long the active orientation survives without a
	// confirming detection before it decays back to none.
	Timeout time.Duration
	// HideConfidence is the minimum stored confidence the active
	// orientation needs before the opposite guide is hidden.
	HideConfidence float64
}

// DefaultConfig provides sensible defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:        2 * time.Second,
		HideConfidence: 0.6,
	}
}

// Slot holds per-orientation detection state.
type Slot struct {
	Detected      bool      `json:"detected"`
	Confidence    float64   `json:"confidence"`
	LastDetection time.Time `json:"last_detection"`
}

// State is a snapshot of the machine. Exactly one orientation may be
// active at a time; this encodes the assumption that a single physical
// photo occupies the frame.
type State struct {
	Portrait   Slot                 `json:"portrait"`
	Landscape  Slot                 `json:"landscape"`
	Active     classify.Orientation `json:"active_orientation"`
	LastUpdate time.Time            `json:"last_update"`
}

// Machine owns the detection state for one controller instance. All
// mutation goes through Apply/Reset; reads decay stale state in place,
// so no background timer is needed.
type Machine struct {
	mu    sync.Mutex
	cfg   Config
	now   func() time.Time
	state State
}

// NewMachine creates a state machine with a wall clock.
func NewMachine(cfg Config) *Machine {
	return &Machine{cfg: cfg, now: time.Now}
}

// Apply records the outcome of one detection tick. A portrait or
// landscape verdict claims the active slot and clears the other; a none
// verdict clears both.
func (m *Machine) Apply(o classify.Orientation, confidence float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	switch o {
	case classify.Portrait:
		m.state.Portrait = Slot{Detected: true, Confidence: confidence, LastDetection: now}
		m.state.Landscape = Slot{Detected: false, Confidence: 0, LastDetection: now}
		m.state.Active = classify.Portrait
	case classify.Landscape:
		m.state.Landscape = Slot{Detected: true, Confidence: confidence, LastDetection: now}
		m.state.Portrait = Slot{Detected: false, Confidence: 0, LastDetection: now}
		m.state.Active = classify.Landscape
	default:
		m.state.Portrait = Slot{Detected: false, Confidence: 0, LastDetection: now}
		m.state.Landscape = Slot{Detected: false, Confidence: 0, LastDetection: now}
		m.state.Active = classify.None
	}
	m.state.LastUpdate = now
}

// State returns a snapshot of the current state. Reading triggers the
// timeout decay check, so a stale active orientation clears on the next
// read even when no new ticks arrive.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decayLocked()
	return m.state
}

// ShouldHideGuide reports whether the guide for the given orientation
// should be hidden because the opposite orientation is confidently
// active. Under ambiguity both guides stay visible (fail open).
func (m *Machine) ShouldHideGuide(o classify.Orientation) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decayLocked()

	active := m.state.Active
	if active == classify.None || active == o {
		return false
	}
	return m.activeSlotLocked().Confidence > m.cfg.HideConfidence
}

// Reset clears all detection state back to neutral.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = State{LastUpdate: m.now()}
}

// decayLocked clears the active orientation once neither slot has seen
// a detection within the timeout. Idempotent; callers hold m.mu.
func (m *Machine) decayLocked() {
	if m.state.Active == classify.None {
		return
	}
	last := m.state.Portrait.LastDetection
	if m.state.Landscape.LastDetection.After(last) {
		last = m.state.Landscape.LastDetection
	}
	if m.now().Sub(last) > m.cfg.Timeout {
		m.state.Active = classify.None
	}
}

func (m *Machine) activeSlotLocked() Slot {
	if m.state.Active == classify.Portrait {
		return m.state.Portrait
	}
	return m.state.Landscape
}
