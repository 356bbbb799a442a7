// Package schedule aligns sampling windows to a wall-clock grid nested inside a
// coarser file-rollover grid. Every method is a pure function of the supplied
// instant and the immutable configuration; nothing here blocks.
package schedule

import (
	"time"

	"codeberg.org/mutker/irsampler/internal/errors"
)

// Config holds the three durations that define the sampling grid.
type Config struct {
	// FileInterval is the span covered by one output file.
	FileInterval time.Duration
	// SampleInterval is the span of one burst.
	SampleInterval time.Duration
	// SampleRepetition is the period between window starts.
	SampleRepetition time.Duration
}

// Validate checks the ordering invariants between the durations.
func (c Config) Validate() error {
	errFactory := errors.New()

	type violation struct {
		Rule             string
		FileInterval     time.Duration
		SampleInterval   time.Duration
		SampleRepetition time.Duration
	}
	fail := func(rule string) error {
		return errFactory.WithData(ErrInvalidSchedule, violation{
			Rule:             rule,
			FileInterval:     c.FileInterval,
			SampleInterval:   c.SampleInterval,
			SampleRepetition: c.SampleRepetition,
		})
	}

	switch {
	case c.FileInterval <= 0 || c.SampleInterval <= 0 || c.SampleRepetition <= 0:
		return fail("durations must be positive")
	case c.SampleRepetition <= c.SampleInterval:
		return fail("sample_repetition must exceed sample_interval")
	case c.FileInterval <= c.SampleRepetition:
		return fail("file_interval must exceed sample_repetition")
	case c.FileInterval <= c.SampleInterval:
		return fail("file_interval must exceed sample_interval")
	}

	return nil
}

// Window is the half-open interval [Start, End) of one sampling window.
type Window struct {
	Start time.Time
	End   time.Time
}

// Duration returns End - Start.
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Clock computes grid-aligned boundaries for a validated Config.
type Clock struct {
	cfg Config
}

// New validates cfg and returns a Clock. It fails with ErrInvalidSchedule.
func New(cfg Config) (*Clock, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Clock{cfg: cfg}, nil
}

// Config returns the schedule configuration.
func (c *Clock) Config() Config {
	return c.cfg
}

// RoundToGrid rounds t to the nearest multiple of period counted from the Unix
// epoch. Ties round up.
func RoundToGrid(t time.Time, period time.Duration) time.Time {
	p := int64(period)
	ns := t.UnixNano() + p/2

	return time.Unix(0, floorDiv(ns, p)*p).UTC()
}

// NextGridPoint returns the grid point reached by rounding now+period/2 to the
// nearest multiple of period. For an instant exactly on the grid the result is
// the following grid point, so the boundary returned is always after now.
func NextGridPoint(now time.Time, period time.Duration) time.Time {
	return RoundToGrid(now.Add(period/2), period)
}

// CurrentWindow returns the sampling window whose end is the next grid point of
// the repetition grid.
func (c *Clock) CurrentWindow(now time.Time) Window {
	end := NextGridPoint(now, c.cfg.SampleRepetition)
	return Window{
		Start: end.Add(-c.cfg.SampleInterval),
		End:   end,
	}
}

// CurrentFileBoundary returns the end of the file that now belongs to.
func (c *Clock) CurrentFileBoundary(now time.Time) time.Time {
	return NextGridPoint(now, c.cfg.FileInterval)
}

// WindowsRemainingInFile returns how many sampling windows fit between now and
// the current file boundary. It is meant to be evaluated once per file.
func (c *Clock) WindowsRemainingInFile(now time.Time) int {
	boundary := c.CurrentFileBoundary(now)
	span := boundary.Sub(now) + c.cfg.SampleInterval
	if span <= 0 {
		return 0
	}

	return int(span / c.cfg.SampleRepetition)
}

// NextWindowStart returns the earliest window start s on the repetition grid
// such that s-lead is strictly after now. It is the closed form of re-polling
// CurrentWindow until a future start appears.
func (c *Clock) NextWindowStart(now time.Time, lead time.Duration) time.Time {
	start := c.CurrentWindow(now).Start
	deadline := start.Add(-lead)
	if deadline.After(now) {
		return start
	}

	rep := c.cfg.SampleRepetition
	steps := now.Sub(deadline)/rep + 1

	return start.Add(steps * rep)
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}

	return q
}
