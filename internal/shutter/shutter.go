// Package shutter rate-limits triggers of the imager's internal shutter flag.
//
// The debounce state is a plain value owned by the caller: Trigger takes the
// previous State and returns the next one, so the guard holds no mutable
// fields of its own.
package shutter

import (
	"time"

	"codeberg.org/mutker/irsampler/internal/errors"
)

// DefaultMinInterval is the shortest accepted gap between two physical
// triggers.
const DefaultMinInterval = 15 * time.Second

// Action performs the physical trigger and returns the device status code.
type Action interface {
	TriggerShutter() (int, error)
}

// ActionFunc adapts a function to Action.
type ActionFunc func() (int, error)

func (f ActionFunc) TriggerShutter() (int, error) {
	return f()
}

// Outcome tells the caller whether the action actually ran.
type Outcome int

const (
	Skipped Outcome = iota
	Triggered
)

func (o Outcome) String() string {
	if o == Triggered {
		return "triggered"
	}

	return "skipped"
}

// State is the debounce state carried between calls. The zero value has never
// triggered.
type State struct {
	LastTrigger time.Time
	Triggers    int
	LastStatus  int
	CycleTime   time.Duration
}

// Controller wraps an Action with a minimum re-trigger interval.
type Controller struct {
	action      Action
	minInterval time.Duration
	now         func() time.Time
}

// Option configures a Controller.
type Option func(*Controller)

// WithMinInterval overrides DefaultMinInterval.
func WithMinInterval(d time.Duration) Option {
	return func(c *Controller) {
		c.minInterval = d
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// New returns a Controller for action.
func New(action Action, opts ...Option) *Controller {
	c := &Controller{
		action:      action,
		minInterval: DefaultMinInterval,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// MinInterval returns the configured re-trigger interval.
func (c *Controller) MinInterval() time.Duration {
	return c.minInterval
}

// Due reports whether a trigger at now would reach the hardware.
func Due(s State, now time.Time, minInterval time.Duration) bool {
	if s.Triggers == 0 && s.LastTrigger.IsZero() {
		return true
	}

	return now.Sub(s.LastTrigger) > minInterval
}

// Trigger runs the action if the minimum interval has elapsed since the last
// performed trigger. A rate-limited call returns Skipped and the unchanged
// state. When the action itself fails the state is left untouched and the
// error carries errors.ErrDeviceFailure.
func (c *Controller) Trigger(s State) (State, Outcome, error) {
	start := c.now()
	if !Due(s, start, c.minInterval) {
		return s, Skipped, nil
	}

	status, err := c.action.TriggerShutter()
	if err != nil {
		return s, Skipped, errors.New().Wrap(errors.ErrDeviceFailure, err)
	}

	end := c.now()
	s.LastTrigger = end
	s.Triggers++
	s.LastStatus = status
	s.CycleTime = end.Sub(start)

	return s, Triggered, nil
}
