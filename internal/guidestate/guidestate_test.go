package guidestate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/guidealign/internal/classify"
)

// fakeClock drives the machine through manually advanced time.
type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestMachine() (*Machine, *fakeClock) {
	clock := newFakeClock()
	m := NewMachine(DefaultConfig())
	m.now = clock.Now
	return m, clock
}

func TestApplyPortrait(t *testing.T) {
	m, clock := newTestMachine()

	m.Apply(classify.Portrait, 0.9)

	st := m.State()
	assert.True(t, st.Portrait.Detected)
	assert.InDelta(t, 0.9, st.Portrait.Confidence, 1e-9)
	assert.Equal(t, clock.Now(), st.Portrait.LastDetection)
	assert.False(t, st.Landscape.Detected)
	assert.InDelta(t, 0.0, st.Landscape.Confidence, 1e-9)
	assert.Equal(t, classify.Portrait, st.Active)
}

func TestApplyLandscapeClearsPortrait(t *testing.T) {
	m, _ := newTestMachine()

	m.Apply(classify.Portrait, 0.9)
	m.Apply(classify.Landscape, 0.8)

	st := m.State()
	assert.True(t, st.Landscape.Detected)
	assert.False(t, st.Portrait.Detected)
	assert.Equal(t, classify.Landscape, st.Active)
}

func TestApplyNoneClearsBoth(t *testing.T) {
	m, _ := newTestMachine()

	m.Apply(classify.Landscape, 0.8)
	m.Apply(classify.None, 0)

	st := m.State()
	assert.False(t, st.Portrait.Detected)
	assert.False(t, st.Landscape.Detected)
	assert.Equal(t, classify.None, st.Active)
}

func TestShouldHideGuide(t *testing.T) {
	t.Run("false when nothing active", func(t *testing.T) {
		m, _ := newTestMachine()
		assert.False(t, m.ShouldHideGuide(classify.Portrait))
		assert.False(t, m.ShouldHideGuide(classify.Landscape))
	})

	t.Run("hides opposite guide at high confidence", func(t *testing.T) {
		m, _ := newTestMachine()
		m.Apply(classify.Landscape, 0.9)
		assert.True(t, m.ShouldHideGuide(classify.Portrait))
		assert.False(t, m.ShouldHideGuide(classify.Landscape))
	})

	t.Run("fails open at low confidence", func(t *testing.T) {
		m, _ := newTestMachine()
		m.Apply(classify.Landscape, 0.5)
		assert.False(t, m.ShouldHideGuide(classify.Portrait))
	})

	t.Run("confidence exactly at threshold keeps both visible", func(t *testing.T) {
		m, _ := newTestMachine()
		m.Apply(classify.Portrait, 0.6)
		assert.False(t, m.ShouldHideGuide(classify.Landscape))
	})
}

func TestTimeoutDecay(t *testing.T) {
	m, clock := newTestMachine()

	m.Apply(classify.Landscape, 0.9)
	assert.Equal(t, classify.Landscape, m.State().Active)

	// Just inside the timeout the active orientation survives.
	clock.Advance(2 * time.Second)
	assert.Equal(t, classify.Landscape, m.State().Active)

	// Past it the next read clears the active orientation.
	clock.Advance(time.Millisecond)
	assert.Equal(t, classify.None, m.State().Active)

	// Decay is idempotent across repeated reads.
	assert.Equal(t, classify.None, m.State().Active)
	assert.False(t, m.ShouldHideGuide(classify.Portrait))
}

func TestDecayTriggeredByShouldHideGuide(t *testing.T) {
	m, clock := newTestMachine()

	m.Apply(classify.Portrait, 0.9)
	require.True(t, m.ShouldHideGuide(classify.Landscape))

	clock.Advance(3 * time.Second)
	assert.False(t, m.ShouldHideGuide(classify.Landscape))
	assert.Equal(t, classify.None, m.State().Active)
}

func TestTimeoutCountsFromLastDetection(t *testing.T) {
	// Scenario from the capture flow: two landscape detections 150ms
	// apart, then nothing. The active orientation holds until 2s after
	// the last landscape hit.
	m, clock := newTestMachine()

	m.Apply(classify.Landscape, 0.9)
	clock.Advance(150 * time.Millisecond)
	m.Apply(classify.Landscape, 0.9)

	clock.Advance(150 * time.Millisecond)
	m.Apply(classify.None, 0)
	clock.Advance(150 * time.Millisecond)
	m.Apply(classify.None, 0)

	// A none tick clears the active orientation immediately.
	assert.Equal(t, classify.None, m.State().Active)

	// Replay without the none ticks: silence only decays after the
	// timeout measured from the last confirming detection.
	m2, clock2 := newTestMachine()
	m2.Apply(classify.Landscape, 0.9)
	clock2.Advance(150 * time.Millisecond)
	m2.Apply(classify.Landscape, 0.9)

	clock2.Advance(1900 * time.Millisecond)
	assert.Equal(t, classify.Landscape, m2.State().Active)

	clock2.Advance(200 * time.Millisecond)
	assert.Equal(t, classify.None, m2.State().Active)
}

func TestReset(t *testing.T) {
	m, _ := newTestMachine()

	m.Apply(classify.Portrait, 0.95)
	m.Reset()

	st := m.State()
	assert.Equal(t, State{LastUpdate: st.LastUpdate}, st)
	assert.False(t, st.Portrait.Detected)
	assert.False(t, st.Landscape.Detected)
	assert.Equal(t, classify.None, st.Active)
}
