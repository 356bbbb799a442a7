package schedule

import "codeberg.org/mutker/irsampler/internal/errors"

const (
	// ErrInvalidSchedule is the ConfigError raised when the three schedule
	// durations violate their ordering invariants.
	ErrInvalidSchedule = errors.ErrInvalidSchedule
)

// IsConfigError reports whether err was produced by schedule validation.
func IsConfigError(err error) bool {
	return errors.HasCode(err, ErrInvalidSchedule)
}
