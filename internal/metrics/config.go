package metrics

import "codeberg.org/mutker/irsampler/internal/errors"

const (
	defaultDirPerm      = 0o755
	defaultDBPath       = "/var/lib/irsampler/metrics.db"
	defaultBatchSize    = 10
	defaultBatchTimeout = 60
)

type Config struct {
	DBPath  string
	Enabled bool
	// BatchSize is the number of snapshots buffered before a write.
	BatchSize int
	// BatchTimeout is the maximum age, in seconds, of a buffered snapshot.
	BatchTimeout int
}

func DefaultConfig() Config {
	return Config{
		DBPath:       defaultDBPath,
		Enabled:      false,
		BatchSize:    defaultBatchSize,
		BatchTimeout: defaultBatchTimeout,
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	if !c.Enabled {
		return nil
	}
	if c.DBPath == "" {
		return errFactory.New(ErrInvalidDBPath)
	}
	if c.BatchSize < 0 || c.BatchTimeout < 0 {
		return errFactory.WithData(ErrInvalidConfig, struct {
			BatchSize    int
			BatchTimeout int
		}{c.BatchSize, c.BatchTimeout})
	}

	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
