// Package imager talks to the thermal imager: the vendor library binding, a
// simulated device for development and tests, and the vendor XML
// configuration file.
package imager

import (
	"context"

	"codeberg.org/mutker/irsampler/internal/burst"
	"codeberg.org/mutker/irsampler/internal/errors"
)

// ShutterMode is the imager's flag (shutter) control mode.
type ShutterMode int

const (
	ShutterManual ShutterMode = 0
	ShutterAuto   ShutterMode = 1
)

func (m ShutterMode) String() string {
	if m == ShutterAuto {
		return "auto"
	}
	return "manual"
}

// Device is a connected imager. Implementations are not safe for concurrent
// use; the capture loop owns the device.
type Device interface {
	// Init opens the USB connection using the vendor XML configuration.
	Init(configPath string) error
	ThermalImageSize() (width, height int, err error)
	Serial() (int, error)
	SetShutterMode(mode ShutterMode) error
	Capture(ctx context.Context, width, height int) (burst.Frame, burst.Metadata, error)
	// TriggerShutter closes and reopens the flag and returns the vendor
	// status code.
	TriggerShutter() (int, error)
	Terminate() error
}

// Kind selects a Device implementation.
type Kind string

const (
	KindIRImager  Kind = "irimager"
	KindSimulated Kind = "simulated"
)

// Open returns an uninitialized device of the given kind.
func Open(kind Kind, sim SimulatorConfig) (Device, error) {
	switch kind {
	case KindIRImager:
		return NewLibIRImager()
	case KindSimulated:
		return NewSimulator(sim), nil
	default:
		return nil, errors.New().WithData(ErrUnknownDevice, struct {
			Kind string
		}{string(kind)})
	}
}
