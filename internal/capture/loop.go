// Package capture drives sampling windows across a file period: it waits for
// each grid-aligned window, triggers the shutter, captures and reduces a burst,
// and hands each completed file to a Sink.
package capture

import (
	"context"
	"math"
	"time"

	"codeberg.org/mutker/irsampler/internal/burst"
	"codeberg.org/mutker/irsampler/internal/errors"
	"codeberg.org/mutker/irsampler/internal/logger"
	"codeberg.org/mutker/irsampler/internal/metrics"
	"codeberg.org/mutker/irsampler/internal/schedule"
	"codeberg.org/mutker/irsampler/internal/shutter"
)

// Device is what the loop needs from the imager.
type Device interface {
	burst.FrameSource
	shutter.Action
}

// TemperatureProbe reports the capturing host's temperature.
type TemperatureProbe interface {
	Temperature() (float64, error)
}

// Options are the fixed parameters of a capture run.
type Options struct {
	Serial int
	Width  int
	Height int
	// FPS is the expected frame rate; it only sizes bursts.
	FPS float64
	// PreRoll is how long before a window start the loop wakes up.
	PreRoll time.Duration
	// SettleDelay is waited after a performed shutter trigger.
	SettleDelay time.Duration
	// MinTriggerInterval rate-limits the shutter.
	MinTriggerInterval time.Duration
	EpochUnit          EpochUnit
	RunID              string
}

// Loop is the capture state machine.
type Loop struct {
	sched   *schedule.Clock
	device  Device
	sink    Sink
	opts    Options
	clock   Clock
	log     logger.Logger
	probe   TemperatureProbe
	metrics metrics.Collector

	shutter      *shutter.Controller
	shutterState shutter.State
	agg          *burst.Aggregator
}

// Option configures optional collaborators of a Loop.
type Option func(*Loop)

// WithClock replaces the system clock.
func WithClock(c Clock) Option {
	return func(l *Loop) {
		l.clock = c
	}
}

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(l *Loop) {
		l.log = log
	}
}

// WithTemperatureProbe attaches a host temperature probe.
func WithTemperatureProbe(p TemperatureProbe) Option {
	return func(l *Loop) {
		l.probe = p
	}
}

// WithMetrics attaches a metrics collector.
func WithMetrics(c metrics.Collector) Option {
	return func(l *Loop) {
		l.metrics = c
	}
}

// WithShutterState seeds the debounce state, e.g. after a device restart.
func WithShutterState(s shutter.State) Option {
	return func(l *Loop) {
		l.shutterState = s
	}
}

// New builds a Loop. Burst size is derived once from the sample interval and
// Options.FPS.
func New(sched *schedule.Clock, device Device, sink Sink, opts Options, options ...Option) (*Loop, error) {
	errFactory := errors.New()

	if opts.FPS <= 0 {
		return nil, errFactory.WithData(errors.ErrInvalidConfig, struct {
			Field string
			Value float64
		}{"fps", opts.FPS})
	}
	if !opts.EpochUnit.IsValid() {
		return nil, errFactory.WithData(errors.ErrInvalidConfig, struct {
			Field string
			Value string
		}{"epoch_unit", string(opts.EpochUnit)})
	}
	if opts.MinTriggerInterval <= 0 {
		opts.MinTriggerInterval = shutter.DefaultMinInterval
	}

	l := &Loop{
		sched:  sched,
		device: device,
		sink:   sink,
		opts:   opts,
		clock:  SystemClock(),
		log:    logger.Default(),
	}
	for _, option := range options {
		option(l)
	}
	l.log = l.log.With("capture")

	nImages := burst.FrameCount(sched.Config().SampleInterval, opts.FPS)
	agg, err := burst.NewAggregator(opts.Width, opts.Height, nImages, l.clock.Now)
	if err != nil {
		return nil, err
	}
	l.agg = agg
	l.shutter = shutter.New(device, shutter.WithMinInterval(opts.MinTriggerInterval), shutter.WithClock(l.clock.Now))

	return l, nil
}

// NImages returns the burst length.
func (l *Loop) NImages() int {
	return l.agg.NImages()
}

// ShutterState returns the debounce state accumulated so far.
func (l *Loop) ShutterState() shutter.State {
	return l.shutterState
}

// Run captures file after file until an error occurs or ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	for {
		if _, err := l.RunFile(ctx); err != nil {
			return err
		}
	}
}

// RunFile performs one file cycle. The window count is fixed at entry; a zero
// count waits for the file boundary and returns without flushing. Any error
// discards the file's records.
func (l *Loop) RunFile(ctx context.Context) (*FileBuffer, error) {
	cfg := l.sched.Config()

	// INIT
	now := l.clock.Now()
	capacity := l.sched.WindowsRemainingInFile(now)
	boundary := l.sched.CurrentFileBoundary(now)
	epoch := l.opts.EpochUnit.Truncate(boundary.Add(-cfg.FileInterval))
	buf := newFileBuffer(FileName(l.opts.Serial, boundary), l.opts.Serial, boundary, epoch, l.opts.EpochUnit, capacity)

	l.log.Info().
		Str("file", buf.Name).
		Time("boundary", boundary).
		Int("windows", capacity).
		Int("n_images", l.agg.NImages()).
		Msg("Starting file")

	// An empty file idles to its boundary so the next file starts with a full
	// window count.
	if capacity == 0 {
		l.log.Debug().
			Str("file", buf.Name).
			Dur("wait", boundary.Sub(now)).
			Msg("No window left before file boundary")
		if err := l.sleepUntil(ctx, boundary); err != nil {
			return nil, err
		}
		return buf, nil
	}

	// AWAIT_WINDOW
	start := l.sched.NextWindowStart(now, l.opts.PreRoll)
	l.log.Debug().
		Time("window_start", start).
		Dur("wait", start.Add(-l.opts.PreRoll).Sub(now)).
		Msg("Waiting for first window")
	if err := l.sleepUntil(ctx, start.Add(-l.opts.PreRoll)); err != nil {
		return nil, err
	}

	for j := 0; j < capacity; j++ {
		windowStart := start.Add(time.Duration(j) * cfg.SampleRepetition)

		// CAPTURING
		rec, err := l.captureWindow(ctx, buf, j)
		if err != nil {
			return nil, err
		}

		// REDUCING
		rec.TimeOffsetMs = float64(rec.End.Sub(buf.Epoch)) / float64(time.Millisecond)
		if err := buf.Append(rec); err != nil {
			return nil, err
		}

		snapshot := l.snapshot(buf, j, rec)

		if j != capacity-1 {
			wait, missed := ClampWait(windowStart.Add(cfg.SampleRepetition).Sub(l.clock.Now()) - l.opts.PreRoll)
			snapshot.Wait = wait
			snapshot.DeadlineMissed = missed
			if missed {
				l.log.Warn().
					Str("error_code", string(errors.ErrDeadlineMissed)).
					Time("window_start", windowStart).
					Int("window", j+1).
					Msg(errors.GetErrorMessage(errors.ErrDeadlineMissed))
			} else {
				l.log.Debug().Dur("wait", wait).Msg("Next window")
			}
			l.record(ctx, snapshot)

			if err := l.clock.Sleep(ctx, wait); err != nil {
				return nil, err
			}
			continue
		}

		// FLUSH
		duration, overrun, err := l.flush(ctx, buf)
		snapshot.FlushDuration = duration
		snapshot.FlushOverrun = overrun
		l.record(ctx, snapshot)
		if err != nil {
			return nil, err
		}
	}

	return buf, nil
}

func (l *Loop) captureWindow(ctx context.Context, buf *FileBuffer, j int) (*burst.Record, error) {
	l.log.Debug().
		Int("window", j+1).
		Int("windows", buf.Capacity).
		Time("at", l.clock.Now()).
		Msg("Window started")

	state, outcome, err := l.shutter.Trigger(l.shutterState)
	if err != nil {
		return nil, err
	}
	l.shutterState = state

	if outcome == shutter.Triggered {
		if state.LastStatus != 0 {
			l.log.Warn().Int("status", state.LastStatus).Msg("Shutter trigger returned non-zero status")
		}
		l.log.Debug().
			Int("triggers", state.Triggers).
			Dur("cycle_time", state.CycleTime).
			Msg("Shutter triggered")
		if err := l.clock.Sleep(ctx, l.opts.SettleDelay); err != nil {
			return nil, err
		}
	}

	rec, err := l.agg.Capture(ctx, l.device)
	if err != nil {
		return nil, err
	}

	rec.HostTemperature = math.NaN()
	if l.probe != nil {
		if temp, err := l.probe.Temperature(); err != nil {
			l.log.Debug().Err(err).Msg("Failed to read host temperature")
		} else {
			rec.HostTemperature = temp
		}
	}

	l.log.Debug().
		Time("end", rec.End).
		Float64("fps", rec.FPS).
		Float64("center_median_c", burst.Celsius(rec.Median[len(rec.Median)/2])).
		Msg("Burst captured")

	return rec, nil
}

func (l *Loop) flush(ctx context.Context, buf *FileBuffer) (time.Duration, bool, error) {
	nextStart := l.sched.CurrentWindow(l.clock.Now()).Start
	began := l.clock.Now()

	if err := l.sink.Write(ctx, buf, buf.Name, buf.Serial); err != nil {
		return l.clock.Now().Sub(began), false, errors.New().Wrap(errors.ErrSinkWrite, err)
	}

	done := l.clock.Now()
	duration := done.Sub(began)
	overrun := nextStart.Before(done)
	if overrun {
		l.log.Warn().
			Str("error_code", string(errors.ErrFlushOverrun)).
			Str("file", buf.Name).
			Dur("flush_duration", duration).
			Time("next_window_start", nextStart).
			Msg(errors.GetErrorMessage(errors.ErrFlushOverrun))
	}

	l.log.Info().
		Str("file", buf.Name).
		Int("records", buf.Len()).
		Dur("flush_duration", duration).
		Msg("File written")

	return duration, overrun, nil
}

func (l *Loop) sleepUntil(ctx context.Context, t time.Time) error {
	return l.clock.Sleep(ctx, t.Sub(l.clock.Now()))
}

func (l *Loop) snapshot(buf *FileBuffer, j int, rec *burst.Record) *metrics.Snapshot {
	return &metrics.Snapshot{
		Timestamp:       rec.End,
		RunID:           l.opts.RunID,
		File:            buf.Name,
		Window:          j,
		NImages:         rec.NImages,
		FPS:             rec.FPS,
		TempChip:        float64(rec.Meta.TempChip),
		TempBox:         float64(rec.Meta.TempBox),
		TempHost:        rec.HostTemperature,
		ShutterTriggers: l.shutterState.Triggers,
	}
}

func (l *Loop) record(ctx context.Context, s *metrics.Snapshot) {
	if l.metrics == nil {
		return
	}
	if err := l.metrics.Record(ctx, s); err != nil {
		l.log.Debug().Err(err).Msg("Failed to record metrics")
	}
}

// ClampWait turns a negative wait into zero and reports the miss. Sampling
// continues immediately instead of skipping a window.
func ClampWait(wait time.Duration) (time.Duration, bool) {
	if wait < 0 {
		return 0, true
	}

	return wait, false
}
