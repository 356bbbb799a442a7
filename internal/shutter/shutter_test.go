package shutter

import (
	"fmt"
	"testing"
	"time"

	"codeberg.org/mutker/irsampler/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type manualClock struct {
	t time.Time
}

func (m *manualClock) now() time.Time { return m.t }

func (m *manualClock) advance(d time.Duration) { m.t = m.t.Add(d) }

func newTestController(calls *int, clock *manualClock) *Controller {
	action := ActionFunc(func() (int, error) {
		*calls++
		clock.advance(40 * time.Millisecond)
		return 0, nil
	})

	return New(action, WithMinInterval(15*time.Second), WithClock(clock.now))
}

func TestFirstTriggerAlwaysFires(t *testing.T) {
	calls := 0
	clock := &manualClock{t: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)}
	c := newTestController(&calls, clock)

	state, outcome, err := c.Trigger(State{})
	require.NoError(t, err)
	assert.Equal(t, Triggered, outcome)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, state.Triggers)
	assert.Equal(t, clock.t, state.LastTrigger)
	assert.Equal(t, 40*time.Millisecond, state.CycleTime)
}

func TestTriggerWithinIntervalIsSkipped(t *testing.T) {
	calls := 0
	clock := &manualClock{t: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)}
	c := newTestController(&calls, clock)

	state, _, err := c.Trigger(State{})
	require.NoError(t, err)

	clock.advance(15 * time.Second)
	next, outcome, err := c.Trigger(state)
	require.NoError(t, err)
	assert.Equal(t, Skipped, outcome)
	assert.Equal(t, state, next)
	assert.Equal(t, 1, calls)

	clock.advance(time.Millisecond)
	next, outcome, err = c.Trigger(next)
	require.NoError(t, err)
	assert.Equal(t, Triggered, outcome)
	assert.Equal(t, 2, next.Triggers)
	assert.Equal(t, 2, calls)
}

func TestTriggerRecordsStatus(t *testing.T) {
	clock := &manualClock{t: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)}
	c := New(ActionFunc(func() (int, error) { return -3, nil }), WithClock(clock.now))

	state, outcome, err := c.Trigger(State{})
	require.NoError(t, err)
	assert.Equal(t, Triggered, outcome)
	assert.Equal(t, -3, state.LastStatus)
}

func TestTriggerActionFailureKeepsState(t *testing.T) {
	clock := &manualClock{t: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)}
	c := New(ActionFunc(func() (int, error) { return 0, fmt.Errorf("usb reset") }), WithClock(clock.now))

	prev := State{Triggers: 3, LastTrigger: clock.t.Add(-time.Hour)}
	state, outcome, err := c.Trigger(prev)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrDeviceFailure))
	assert.Equal(t, Skipped, outcome)
	assert.Equal(t, prev, state)
}

func TestDue(t *testing.T) {
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	assert.True(t, Due(State{}, now, time.Hour))
	assert.False(t, Due(State{Triggers: 1, LastTrigger: now.Add(-time.Second)}, now, time.Second))
	assert.True(t, Due(State{Triggers: 1, LastTrigger: now.Add(-time.Second - 1)}, now, time.Second))
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "triggered", Triggered.String())
	assert.Equal(t, "skipped", Skipped.String())
}
