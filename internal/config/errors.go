package config

import "codeberg.org/mutker/irsampler/internal/errors"

const (
	ErrInvalidConfig = errors.ErrInvalidConfig
	ErrReadConfig    = errors.ErrReadConfig
)
