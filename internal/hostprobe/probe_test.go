package hostprobe

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"codeberg.org/mutker/irsampler/internal/errors"
	"github.com/NVIDIA/go-nvml/pkg/nvml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeZone(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "temp")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestThermalZone(t *testing.T) {
	path := writeZone(t, "48500\n")

	p, err := New(KindThermalZone, path)
	require.NoError(t, err)
	defer p.Close()

	temp, err := p.Temperature()
	require.NoError(t, err)
	assert.InDelta(t, 48.5, temp, 1e-9)

	require.NoError(t, os.WriteFile(path, []byte("-2250"), 0o644))
	temp, err = p.Temperature()
	require.NoError(t, err)
	assert.InDelta(t, -2.25, temp, 1e-9)
}

func TestThermalZoneErrors(t *testing.T) {
	_, err := NewThermalZone(filepath.Join(t.TempDir(), "missing"))
	assert.True(t, errors.HasCode(err, ErrInitFailed))

	z := &ThermalZone{path: writeZone(t, "not a number")}
	temp, err := z.Temperature()
	assert.True(t, errors.HasCode(err, ErrParseFailed))
	assert.True(t, math.IsNaN(temp))
}

func TestNoopAndUnknownKind(t *testing.T) {
	for _, kind := range []Kind{KindNone, ""} {
		p, err := New(kind, "")
		require.NoError(t, err)
		temp, err := p.Temperature()
		require.NoError(t, err)
		assert.True(t, math.IsNaN(temp))
		assert.NoError(t, p.Close())
	}

	_, err := New("infrared", "")
	assert.True(t, errors.HasCode(err, ErrUnknownKind))
}

type fakeGPU struct {
	nvml.Device
	temp uint32
	ret  nvml.Return
}

func (g *fakeGPU) GetTemperature(nvml.TemperatureSensors) (uint32, nvml.Return) {
	return g.temp, g.ret
}

type fakeNVML struct {
	initErr  error
	device   nvml.Device
	shutdown int
}

func (f *fakeNVML) Initialize() error { return f.initErr }

func (f *fakeNVML) Shutdown() error {
	f.shutdown++
	return nil
}

func (f *fakeNVML) GetDevice(int) (nvml.Device, error) {
	if f.device == nil {
		return nil, errors.New().New(ErrDeviceNotFound)
	}
	return f.device, nil
}

func TestNVMLProbe(t *testing.T) {
	gpu := &fakeGPU{temp: 61, ret: nvml.SUCCESS}
	ctrl := &fakeNVML{device: gpu}

	p, err := newNVML(ctrl, 0)
	require.NoError(t, err)

	temp, err := p.Temperature()
	require.NoError(t, err)
	assert.Equal(t, 61.0, temp)

	gpu.ret = nvml.ERROR_GPU_IS_LOST
	_, err = p.Temperature()
	assert.True(t, errors.HasCode(err, ErrReadFailed))

	require.NoError(t, p.Close())
	assert.Equal(t, 1, ctrl.shutdown)
	_, err = p.Temperature()
	assert.True(t, errors.HasCode(err, ErrNotInitialized))
}

func TestNVMLProbeWithoutDevice(t *testing.T) {
	ctrl := &fakeNVML{}
	_, err := newNVML(ctrl, 0)
	assert.True(t, errors.HasCode(err, ErrDeviceNotFound))
	assert.Equal(t, 1, ctrl.shutdown)
}
