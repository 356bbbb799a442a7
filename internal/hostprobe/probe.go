// Package hostprobe reads the temperature of the machine the imager is
// attached to. It is recorded alongside every burst.
package hostprobe

import (
	"math"

	"codeberg.org/mutker/irsampler/internal/errors"
)

// Kind selects a probe implementation.
type Kind string

const (
	KindThermalZone Kind = "thermal_zone"
	KindNVML        Kind = "nvml"
	KindNone        Kind = "none"
)

// DefaultThermalZone is the sysfs file of the first thermal zone.
const DefaultThermalZone = "/sys/class/thermal/thermal_zone0/temp"

// Probe reports a temperature in degrees Celsius.
type Probe interface {
	Temperature() (float64, error)
	Close() error
}

// New opens the probe of the given kind. path is only used by
// KindThermalZone; an empty path selects DefaultThermalZone.
func New(kind Kind, path string) (Probe, error) {
	switch kind {
	case KindThermalZone:
		if path == "" {
			path = DefaultThermalZone
		}
		return NewThermalZone(path)
	case KindNVML:
		return NewNVML(0)
	case KindNone, "":
		return Noop(), nil
	default:
		return nil, errors.New().WithData(ErrUnknownKind, struct {
			Kind string
		}{string(kind)})
	}
}

type noopProbe struct{}

// Noop returns a probe that always reports NaN.
func Noop() Probe {
	return noopProbe{}
}

func (noopProbe) Temperature() (float64, error) {
	return math.NaN(), nil
}

func (noopProbe) Close() error {
	return nil
}
