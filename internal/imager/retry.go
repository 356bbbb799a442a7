package imager

import (
	"context"
	"time"

	"codeberg.org/mutker/irsampler/internal/errors"
	"codeberg.org/mutker/irsampler/internal/logger"
)

const (
	DefaultInitRetries    = 10
	DefaultInitRetryDelay = 250 * time.Millisecond
)

// InitRetry calls dev.Init until it succeeds, at most retries+1 times, sleeping
// delay between attempts. The device is terminated when all attempts fail.
func InitRetry(ctx context.Context, dev Device, configPath string, retries int, delay time.Duration, log logger.Logger) error {
	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		err := dev.Init(configPath)
		if err == nil {
			log.Debug().Int("attempt", attempt+1).Msg("USB connection initialized")
			return nil
		}
		lastErr = err
		log.Debug().Err(err).Int("attempt", attempt+1).Msg("USB init failed")
	}

	if err := dev.Terminate(); err != nil {
		log.Debug().Err(err).Msg("Failed to terminate device after init failure")
	}

	return errors.New().Wrap(ErrUSBInit, lastErr).WithData(struct {
		Config   string
		Attempts int
	}{configPath, retries + 1})
}
