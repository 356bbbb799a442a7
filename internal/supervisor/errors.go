package supervisor

import "codeberg.org/mutker/irsampler/internal/errors"

const (
	ErrInvalidSerial  = errors.ErrorCode("supervisor_invalid_serial")
	ErrSerialMismatch = errors.ErrSerialMismatch
	ErrSetupFailed    = errors.ErrInitFailed
)
