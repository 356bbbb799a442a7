// Package supervisor owns the imager: it brings the device up, runs the
// capture loop on it and restarts both after device or sink failures.
package supervisor

import (
	"context"
	"time"

	"codeberg.org/mutker/irsampler/internal/capture"
	"codeberg.org/mutker/irsampler/internal/errors"
	"codeberg.org/mutker/irsampler/internal/imager"
	"codeberg.org/mutker/irsampler/internal/logger"
	"codeberg.org/mutker/irsampler/internal/metrics"
	"codeberg.org/mutker/irsampler/internal/schedule"
	"codeberg.org/mutker/irsampler/internal/shutter"
	"github.com/google/uuid"
)

// Options configure device setup and the restart policy.
type Options struct {
	Imager   *imager.Config
	Schedule schedule.Config

	InitRetries    int
	InitRetryDelay time.Duration

	// ShutterDelay is the flag cycle time; it is also the capture pre-roll.
	ShutterDelay       time.Duration
	ShutterMinInterval time.Duration
	EpochUnit          capture.EpochUnit

	SetupRetryDelay time.Duration
	RestartDelay    time.Duration

	// RunID identifies this process in archives and metrics; generated
	// when empty.
	RunID string
}

// Session describes a device that passed Setup.
type Session struct {
	Serial int
	Width  int
	Height int
}

type Supervisor struct {
	dev     imager.Device
	sink    capture.Sink
	sched   *schedule.Clock
	opts    Options
	log     logger.Logger
	clock   capture.Clock
	probe   capture.TemperatureProbe
	metrics metrics.Collector

	shutterState shutter.State
	restarts     int
	// open is set while the device is initialized.
	open bool
}

// Option configures optional collaborators of a Supervisor.
type Option func(*Supervisor)

func WithClock(c capture.Clock) Option {
	return func(s *Supervisor) {
		s.clock = c
	}
}

func WithLogger(log logger.Logger) Option {
	return func(s *Supervisor) {
		s.log = log
	}
}

func WithTemperatureProbe(p capture.TemperatureProbe) Option {
	return func(s *Supervisor) {
		s.probe = p
	}
}

func WithMetrics(c metrics.Collector) Option {
	return func(s *Supervisor) {
		s.metrics = c
	}
}

// New validates the schedule and returns a Supervisor for dev.
func New(dev imager.Device, sink capture.Sink, opts Options, options ...Option) (*Supervisor, error) {
	if opts.Imager == nil {
		return nil, errors.New().WithData(errors.ErrInvalidConfig, struct {
			Field string
		}{"imager_config"})
	}

	sched, err := schedule.New(opts.Schedule)
	if err != nil {
		return nil, err
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}

	s := &Supervisor{
		dev:   dev,
		sink:  sink,
		sched: sched,
		opts:  opts,
		log:   logger.Default(),
		clock: capture.SystemClock(),
	}
	for _, option := range options {
		option(s)
	}
	s.log = s.log.With("supervisor")

	return s, nil
}

// RunID returns the identifier stamped on everything this run writes.
func (s *Supervisor) RunID() string {
	return s.opts.RunID
}

// Restarts returns how often the device was restarted after a failure.
func (s *Supervisor) Restarts() int {
	return s.restarts
}

// Setup initializes the device, checks its serial number against the imager
// configuration, switches the shutter to manual and closes it once.
func (s *Supervisor) Setup(ctx context.Context) (*Session, error) {
	errFactory := errors.New()

	if err := imager.InitRetry(ctx, s.dev, s.opts.Imager.Path, s.opts.InitRetries, s.opts.InitRetryDelay, s.log); err != nil {
		return nil, err
	}
	s.open = true

	serial, err := s.dev.Serial()
	if err != nil {
		s.terminate()
		return nil, errFactory.Wrap(ErrSetupFailed, err)
	}
	if serial == 0 {
		s.terminate()
		return nil, errFactory.New(ErrInvalidSerial)
	}
	if serial != s.opts.Imager.Serial {
		s.terminate()
		return nil, errFactory.WithData(ErrSerialMismatch, struct {
			Found  int
			Config int
			Path   string
		}{serial, s.opts.Imager.Serial, s.opts.Imager.Path})
	}

	if err := s.dev.SetShutterMode(imager.ShutterManual); err != nil {
		s.terminate()
		return nil, errFactory.Wrap(ErrSetupFailed, err)
	}

	width, height, err := s.dev.ThermalImageSize()
	if err != nil {
		s.terminate()
		return nil, errFactory.Wrap(ErrSetupFailed, err)
	}

	// The first flag cycle after power-up takes longer.
	ctrl := shutter.New(s.dev, shutter.WithMinInterval(s.opts.ShutterMinInterval), shutter.WithClock(s.clock.Now))
	state, outcome, err := ctrl.Trigger(s.shutterState)
	if err != nil {
		s.terminate()
		return nil, err
	}
	s.shutterState = state
	if outcome == shutter.Triggered {
		if err := s.clock.Sleep(ctx, 2*s.opts.ShutterDelay); err != nil {
			s.terminate()
			return nil, err
		}
	}

	s.log.Info().
		Int("serial", serial).
		Int("width", width).
		Int("height", height).
		Float64("fps", s.opts.Imager.FrameRate).
		Msg("Imager ready")

	return &Session{Serial: serial, Width: width, Height: height}, nil
}

// Run sets the device up and captures until ctx is done. Setup failures are
// retried after SetupRetryDelay; capture failures restart the device after
// RestartDelay. It returns nil on cancellation and an error only for
// configuration problems no restart can fix.
func (s *Supervisor) Run(ctx context.Context) error {
	s.log.Info().
		Str("run_id", s.opts.RunID).
		Dur("file_interval", s.opts.Schedule.FileInterval).
		Dur("sample_interval", s.opts.Schedule.SampleInterval).
		Dur("sample_repetition", s.opts.Schedule.SampleRepetition).
		Msg("Starting sampler")

	for {
		if ctx.Err() != nil {
			return nil
		}

		session, err := s.Setup(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logError(err, "Device setup failed")
			if s.clock.Sleep(ctx, s.opts.SetupRetryDelay) != nil {
				return nil
			}
			continue
		}

		loop, err := capture.New(s.sched, s.dev, s.sink, capture.Options{
			Serial:             session.Serial,
			Width:              session.Width,
			Height:             session.Height,
			FPS:                s.opts.Imager.FrameRate,
			PreRoll:            s.opts.ShutterDelay,
			SettleDelay:        s.opts.ShutterDelay,
			MinTriggerInterval: s.opts.ShutterMinInterval,
			EpochUnit:          s.opts.EpochUnit,
			RunID:              s.opts.RunID,
		},
			capture.WithClock(s.clock),
			capture.WithLogger(s.log),
			capture.WithTemperatureProbe(s.probe),
			capture.WithMetrics(s.metrics),
			capture.WithShutterState(s.shutterState),
		)
		if err != nil {
			s.terminate()
			return err
		}

		err = loop.Run(ctx)
		s.shutterState = loop.ShutterState()
		if ctx.Err() != nil {
			s.terminate()
			return nil
		}

		s.restarts++
		s.logError(err, "Capture failed, restarting device")
		if s.clock.Sleep(ctx, s.opts.RestartDelay) != nil {
			s.terminate()
			return nil
		}
		s.terminate()
		if s.clock.Sleep(ctx, s.opts.RestartDelay) != nil {
			return nil
		}
	}
}

// Close releases the device unless Run already did.
func (s *Supervisor) Close() error {
	if !s.open {
		return nil
	}
	s.open = false

	return s.dev.Terminate()
}

func (s *Supervisor) terminate() {
	if err := s.Close(); err != nil {
		s.log.Debug().Err(err).Msg("Failed to terminate device")
	}
}

func (s *Supervisor) logError(err error, msg string) {
	code, ok := errors.CodeOf(err)
	if !ok {
		s.log.Error().Err(err).Msg(msg)
		return
	}
	s.log.Error().
		Str("error_code", string(code)).
		Err(err).
		Int("restarts", s.restarts).
		Msg(msg)
}
