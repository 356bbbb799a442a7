package imager

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"codeberg.org/mutker/irsampler/internal/burst"
	"codeberg.org/mutker/irsampler/internal/errors"
)

// SimulatorConfig describes the synthetic scene and timing of a Simulator.
type SimulatorConfig struct {
	Serial    int
	Width     int
	Height    int
	FrameRate float64
	// Scene is the mean scene temperature in degrees Celsius.
	Scene float64
	// Noise is the per-pixel standard deviation in degrees Celsius.
	Noise float64
	Seed  int64
	// Realtime paces Capture at FrameRate.
	Realtime bool
	// FailAfter makes the Nth Capture call fail, imitating a disconnect.
	// Zero disables it.
	FailAfter int
}

// DefaultSimulatorConfig matches a PI 160 at its default rate.
func DefaultSimulatorConfig() SimulatorConfig {
	return SimulatorConfig{
		Serial:    1,
		Width:     160,
		Height:    120,
		FrameRate: 27,
		Scene:     20,
		Noise:     0.2,
		Seed:      1,
		Realtime:  true,
	}
}

// Simulator is an in-process Device producing a smooth synthetic scene.
type Simulator struct {
	cfg SimulatorConfig

	mu          sync.Mutex
	rng         *rand.Rand
	initialized bool
	mode        ShutterMode
	flagClosed  bool
	captures    int
	triggers    int
	started     time.Time
}

func NewSimulator(cfg SimulatorConfig) *Simulator {
	def := DefaultSimulatorConfig()
	if cfg.Width <= 0 || cfg.Height <= 0 {
		cfg.Width, cfg.Height = def.Width, def.Height
	}
	if cfg.FrameRate <= 0 {
		cfg.FrameRate = def.FrameRate
	}
	if cfg.Serial == 0 {
		cfg.Serial = def.Serial
	}

	return &Simulator{cfg: cfg, mode: ShutterAuto}
}

func (s *Simulator) Init(string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rng = rand.New(rand.NewSource(s.cfg.Seed))
	s.initialized = true
	s.captures = 0
	s.started = time.Now()

	return nil
}

func (s *Simulator) ThermalImageSize() (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return 0, 0, errors.New().New(ErrNotInitialized)
	}
	return s.cfg.Width, s.cfg.Height, nil
}

func (s *Simulator) Serial() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return 0, errors.New().New(ErrNotInitialized)
	}
	return s.cfg.Serial, nil
}

func (s *Simulator) SetShutterMode(mode ShutterMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errors.New().New(ErrNotInitialized)
	}
	s.mode = mode
	return nil
}

// ShutterMode returns the mode last set.
func (s *Simulator) ShutterMode() ShutterMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Triggers returns how often the flag was closed.
func (s *Simulator) Triggers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.triggers
}

func (s *Simulator) TriggerShutter() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return 0, errors.New().New(ErrNotInitialized)
	}
	s.triggers++
	s.flagClosed = true

	return 0, nil
}

func (s *Simulator) Capture(ctx context.Context, width, height int) (burst.Frame, burst.Metadata, error) {
	errFactory := errors.New()

	if s.cfg.Realtime {
		timer := time.NewTimer(time.Duration(float64(time.Second) / s.cfg.FrameRate))
		select {
		case <-ctx.Done():
			timer.Stop()
			return burst.Frame{}, burst.Metadata{}, ctx.Err()
		case <-timer.C:
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return burst.Frame{}, burst.Metadata{}, errFactory.New(ErrNotInitialized)
	}
	s.captures++
	if s.cfg.FailAfter > 0 && s.captures >= s.cfg.FailAfter {
		s.initialized = false
		return burst.Frame{}, burst.Metadata{}, errFactory.WithData(ErrCaptureFailed, struct {
			Capture int
		}{s.captures})
	}
	if width != s.cfg.Width || height != s.cfg.Height {
		return burst.Frame{}, burst.Metadata{}, errFactory.WithData(ErrImageSize, struct {
			Want [2]int
			Got  [2]int
		}{[2]int{s.cfg.Width, s.cfg.Height}, [2]int{width, height}})
	}

	frame := burst.NewFrame(width, height)
	for y := 0; y < height; y++ {
		// Warmer towards the bottom of the image, like ground below sky.
		row := s.cfg.Scene + 5*float64(y)/float64(height)
		for x := 0; x < width; x++ {
			t := row + s.rng.NormFloat64()*s.cfg.Noise
			if s.flagClosed {
				t = s.cfg.Scene
			}
			frame.Pix[y*width+x] = encode(t)
		}
	}
	flag := uint32(0)
	if s.flagClosed {
		flag = 1
		s.flagClosed = false
	}

	now := time.Now()
	meta := burst.Metadata{
		Counter:        uint32(s.captures),
		CounterHW:      uint32(s.captures),
		Timestamp:      now.Sub(s.started).Microseconds(),
		TimestampMedia: now.UnixMicro(),
		FlagState:      flag,
		TempChip:       float32(s.cfg.Scene + 12),
		TempFlag:       float32(s.cfg.Scene + 8),
		TempBox:        float32(s.cfg.Scene + 5),
	}

	return frame, meta, nil
}

func (s *Simulator) Terminate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = false
	return nil
}

// encode converts degrees Celsius to the imager's raw counts.
func encode(celsius float64) uint16 {
	v := math.Round(celsius*burst.Scale + burst.Offset)
	switch {
	case v < 0:
		return 0
	case v > math.MaxUint16:
		return math.MaxUint16
	}
	return uint16(v)
}
