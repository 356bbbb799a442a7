package imager

import (
	"context"
	"fmt"
	"testing"
	"time"

	"codeberg.org/mutker/irsampler/internal/burst"
	"codeberg.org/mutker/irsampler/internal/errors"
	"codeberg.org/mutker/irsampler/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastSimulator() *Simulator {
	return NewSimulator(SimulatorConfig{Serial: 7, Width: 4, Height: 3, FrameRate: 10, Scene: 20, Noise: 0.1, Seed: 3})
}

func TestSimulatorRequiresInit(t *testing.T) {
	sim := fastSimulator()

	_, _, err := sim.ThermalImageSize()
	assert.True(t, errors.HasCode(err, ErrNotInitialized))
	_, err = sim.Serial()
	assert.True(t, errors.HasCode(err, ErrNotInitialized))
	_, err = sim.TriggerShutter()
	assert.True(t, errors.HasCode(err, ErrNotInitialized))
}

func TestSimulatorCapture(t *testing.T) {
	sim := fastSimulator()
	require.NoError(t, sim.Init("config.xml"))

	w, h, err := sim.ThermalImageSize()
	require.NoError(t, err)
	assert.Equal(t, 4, w)
	assert.Equal(t, 3, h)

	serial, err := sim.Serial()
	require.NoError(t, err)
	assert.Equal(t, 7, serial)

	frame, meta, err := sim.Capture(context.Background(), w, h)
	require.NoError(t, err)
	assert.Len(t, frame.Pix, 12)
	assert.Equal(t, uint32(1), meta.Counter)
	for _, raw := range frame.Pix {
		c := burst.Celsius(raw)
		assert.True(t, c > 18 && c < 27, "%.1f out of scene range", c)
	}

	_, _, err = sim.Capture(context.Background(), 5, 5)
	assert.True(t, errors.HasCode(err, ErrImageSize))
}

func TestSimulatorShutter(t *testing.T) {
	sim := fastSimulator()
	require.NoError(t, sim.Init(""))
	require.NoError(t, sim.SetShutterMode(ShutterManual))
	assert.Equal(t, ShutterManual, sim.ShutterMode())

	status, err := sim.TriggerShutter()
	require.NoError(t, err)
	assert.Zero(t, status)
	assert.Equal(t, 1, sim.Triggers())

	_, meta, err := sim.Capture(context.Background(), 4, 3)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), meta.FlagState)

	_, meta, err = sim.Capture(context.Background(), 4, 3)
	require.NoError(t, err)
	assert.Zero(t, meta.FlagState)
}

func TestSimulatorFailAfter(t *testing.T) {
	cfg := fastSimulator().cfg
	cfg.FailAfter = 2
	sim := NewSimulator(cfg)
	require.NoError(t, sim.Init(""))

	_, _, err := sim.Capture(context.Background(), 4, 3)
	require.NoError(t, err)
	_, _, err = sim.Capture(context.Background(), 4, 3)
	assert.True(t, errors.HasCode(err, ErrCaptureFailed))

	// Re-init recovers.
	require.NoError(t, sim.Init(""))
	_, _, err = sim.Capture(context.Background(), 4, 3)
	assert.NoError(t, err)
}

func TestSimulatorRealtimeHonoursContext(t *testing.T) {
	sim := NewSimulator(SimulatorConfig{Width: 1, Height: 1, FrameRate: 0.1, Realtime: true})
	require.NoError(t, sim.Init(""))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, _, err := sim.Capture(ctx, 1, 1)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEncode(t *testing.T) {
	assert.Equal(t, uint16(1200), encode(20))
	assert.Equal(t, uint16(995), encode(-0.5))
	assert.Equal(t, uint16(0), encode(-200))
	assert.Equal(t, uint16(65535), encode(7000))
}

type flakyDevice struct {
	*Simulator
	failures   int
	calls      int
	terminated bool
}

func (d *flakyDevice) Init(path string) error {
	d.calls++
	if d.calls <= d.failures {
		return fmt.Errorf("usb busy")
	}
	return d.Simulator.Init(path)
}

func (d *flakyDevice) Terminate() error {
	d.terminated = true
	return d.Simulator.Terminate()
}

func TestInitRetry(t *testing.T) {
	dev := &flakyDevice{Simulator: fastSimulator(), failures: 3}
	err := InitRetry(context.Background(), dev, "config.xml", 10, time.Millisecond, logger.Nop())
	require.NoError(t, err)
	assert.Equal(t, 4, dev.calls)
	assert.False(t, dev.terminated)
}

func TestInitRetryExhausted(t *testing.T) {
	dev := &flakyDevice{Simulator: fastSimulator(), failures: 100}
	err := InitRetry(context.Background(), dev, "config.xml", 2, time.Millisecond, logger.Nop())
	assert.True(t, errors.HasCode(err, ErrUSBInit))
	assert.Equal(t, 3, dev.calls)
	assert.True(t, dev.terminated)
}

func TestInitRetryCancelled(t *testing.T) {
	dev := &flakyDevice{Simulator: fastSimulator(), failures: 100}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := InitRetry(ctx, dev, "config.xml", 5, time.Hour, logger.Nop())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, dev.calls)
}

func TestOpen(t *testing.T) {
	dev, err := Open(KindSimulated, DefaultSimulatorConfig())
	require.NoError(t, err)
	assert.IsType(t, &Simulator{}, dev)

	_, err = Open("thermocouple", SimulatorConfig{})
	assert.True(t, errors.HasCode(err, ErrUnknownDevice))
}
