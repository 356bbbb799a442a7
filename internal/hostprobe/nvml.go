package hostprobe

import (
	"math"
	"sync"

	"codeberg.org/mutker/irsampler/internal/errors"
	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

// nvmlController abstracts NVML operations for testing
type nvmlController interface {
	Initialize() error
	Shutdown() error
	GetDevice(index int) (nvml.Device, error)
}

type nvmlWrapper struct {
	initialized bool
}

func (w *nvmlWrapper) Initialize() error {
	errFactory := errors.New()
	if w.initialized {
		return nil
	}

	ret := nvml.Init()
	if !IsNVMLSuccess(ret) {
		return errFactory.Wrap(ErrInitFailed, newNVMLError(ret))
	}

	w.initialized = true

	return nil
}

func (w *nvmlWrapper) Shutdown() error {
	errFactory := errors.New()
	if !w.initialized {
		return nil
	}

	ret := nvml.Shutdown()
	if !IsNVMLSuccess(ret) {
		return errFactory.Wrap(ErrShutdownFailed, newNVMLError(ret))
	}

	w.initialized = false

	return nil
}

func (w *nvmlWrapper) GetDevice(index int) (nvml.Device, error) {
	errFactory := errors.New()
	if !w.initialized {
		return nil, errFactory.New(ErrNotInitialized)
	}

	device, ret := nvml.DeviceGetHandleByIndex(index)
	if !IsNVMLSuccess(ret) {
		return nil, errFactory.Wrap(ErrDeviceNotFound, newNVMLError(ret))
	}

	return device, nil
}

// gpuSensor is the part of nvml.Device the probe reads.
type gpuSensor interface {
	GetTemperature(sensor nvml.TemperatureSensors) (uint32, nvml.Return)
}

// NVML reads the core temperature of an NVIDIA GPU, for hosts where that is
// the best available proxy for enclosure temperature.
type NVML struct {
	ctrl   nvmlController
	device gpuSensor
	mu     sync.Mutex
}

// NewNVML initializes NVML and selects the GPU at index.
func NewNVML(index int) (*NVML, error) {
	return newNVML(&nvmlWrapper{}, index)
}

func newNVML(ctrl nvmlController, index int) (*NVML, error) {
	if err := ctrl.Initialize(); err != nil {
		return nil, err
	}

	device, err := ctrl.GetDevice(index)
	if err != nil {
		_ = ctrl.Shutdown()
		return nil, err
	}

	return &NVML{ctrl: ctrl, device: device}, nil
}

func (n *NVML) Temperature() (float64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.device == nil {
		return math.NaN(), errors.New().New(ErrNotInitialized)
	}

	temp, ret := n.device.GetTemperature(nvml.TEMPERATURE_GPU)
	if !IsNVMLSuccess(ret) {
		return math.NaN(), errors.New().Wrap(ErrReadFailed, newNVMLError(ret))
	}

	return float64(temp), nil
}

func (n *NVML) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.device = nil
	return n.ctrl.Shutdown()
}
