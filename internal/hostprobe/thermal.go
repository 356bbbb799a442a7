package hostprobe

import (
	"math"
	"os"
	"strconv"
	"strings"

	"codeberg.org/mutker/irsampler/internal/errors"
)

// ThermalZone reads a Linux sysfs thermal zone, which reports millidegrees.
type ThermalZone struct {
	path string
}

// NewThermalZone checks that path is readable and returns a probe for it.
func NewThermalZone(path string) (*ThermalZone, error) {
	z := &ThermalZone{path: path}
	if _, err := z.Temperature(); err != nil {
		return nil, errors.New().Wrap(ErrInitFailed, err)
	}

	return z, nil
}

func (z *ThermalZone) Temperature() (float64, error) {
	errFactory := errors.New()

	raw, err := os.ReadFile(z.path)
	if err != nil {
		return math.NaN(), errFactory.WithData(ErrReadFailed, struct {
			Path  string
			Error string
		}{z.path, err.Error()})
	}

	milli, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
	if err != nil {
		return math.NaN(), errFactory.WithData(ErrParseFailed, struct {
			Path  string
			Value string
		}{z.path, strings.TrimSpace(string(raw))})
	}

	return float64(milli) / 1000, nil
}

func (*ThermalZone) Close() error {
	return nil
}
