package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/irsampler/internal/capture"
	"codeberg.org/mutker/irsampler/internal/config"
	"codeberg.org/mutker/irsampler/internal/errors"
	"codeberg.org/mutker/irsampler/internal/hostprobe"
	"codeberg.org/mutker/irsampler/internal/imager"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "irsampler.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	configPath := writeConfig(t, `
file_interval = 600
sample_interval = "10s"
sample_repetition = 120
output_directory = "/data/ir"
imager_config = "/etc/irimager/18072067.xml"
shutter_delay = "500ms"
epoch_unit = "month"
device = "simulated"
host_sensor = "none"
log_level = "debug"

[metrics]
enabled = true
db_path = "/tmp/irsampler-metrics.db"
batch_size = 5
`)

	// Set environment variable to point to the test config file
	t.Setenv("IRSAMPLER_CONFIG", configPath)

	cfg, err := config.Load(nil)
	require.NoError(t, err)

	assert.Equal(t, configPath, cfg.ConfigFile)
	assert.Equal(t, 10*time.Minute, cfg.FileInterval)
	assert.Equal(t, 10*time.Second, cfg.SampleInterval)
	assert.Equal(t, 2*time.Minute, cfg.SampleRepetition)
	assert.Equal(t, "/data/ir", cfg.OutputDirectory)
	assert.Equal(t, "/etc/irimager/18072067.xml", cfg.ImagerConfig)
	assert.Equal(t, 500*time.Millisecond, cfg.ShutterDelay)
	assert.Equal(t, capture.EpochMonth, cfg.EpochUnit)
	assert.Equal(t, imager.KindSimulated, cfg.Device)
	assert.Equal(t, hostprobe.KindNone, cfg.HostSensor)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "/tmp/irsampler-metrics.db", cfg.Metrics.DBPath)
	assert.Equal(t, 5, cfg.Metrics.BatchSize)
	assert.Equal(t, 60, cfg.Metrics.BatchTimeout)
}

func TestLoadDefaults(t *testing.T) {
	// Ensure no config file is used
	t.Setenv("IRSAMPLER_CONFIG", writeConfig(t, ""))

	cfg, err := config.Load([]string{})
	require.NoError(t, err, "Failed to load config")

	assert.Equal(t, config.DefaultFileInterval, cfg.FileInterval)
	assert.Equal(t, config.DefaultSampleInterval, cfg.SampleInterval)
	assert.Equal(t, config.DefaultSampleRepetition, cfg.SampleRepetition)
	assert.Equal(t, "OUT", cfg.OutputDirectory)
	assert.Equal(t, "config.xml", cfg.ImagerConfig)
	assert.Equal(t, 300*time.Millisecond, cfg.ShutterDelay)
	assert.Equal(t, 15*time.Second, cfg.ShutterMinInterval)
	assert.Equal(t, capture.EpochDay, cfg.EpochUnit)
	assert.Equal(t, imager.KindIRImager, cfg.Device)
	assert.Equal(t, hostprobe.KindThermalZone, cfg.HostSensor)
	assert.Equal(t, 10, cfg.InitRetries)
	assert.Equal(t, 250*time.Millisecond, cfg.InitRetryDelay)
	assert.Equal(t, 5*time.Second, cfg.SetupRetryDelay)
	assert.Equal(t, time.Second, cfg.RestartDelay)
	assert.False(t, cfg.Metrics.Enabled)
	assert.False(t, cfg.Debug)
	assert.False(t, cfg.Verbose)

	sched := cfg.Schedule()
	assert.Equal(t, cfg.FileInterval, sched.FileInterval)
	assert.NoError(t, sched.Validate())
}

func TestLoadPrecedence(t *testing.T) {
	t.Setenv("IRSAMPLER_CONFIG", writeConfig(t, `
sample_interval = 5
output_directory = "from-file"
device = "simulated"
`))
	t.Setenv("IRSAMPLER_OUTPUT_DIRECTORY", "from-env")
	t.Setenv("IRSAMPLER_METRICS_BATCH_SIZE", "3")

	cfg, err := config.Load(nil)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.OutputDirectory)
	assert.Equal(t, 3, cfg.Metrics.BatchSize)
	assert.Equal(t, imager.KindSimulated, cfg.Device)

	cfg, err = config.Load([]string{"--output_directory", "from-flag", "--sample_interval", "2s", "--debug"})
	require.NoError(t, err)
	assert.Equal(t, "from-flag", cfg.OutputDirectory)
	assert.Equal(t, 2*time.Second, cfg.SampleInterval)
	assert.True(t, cfg.Debug)
}

func TestLoadExplicitConfigFlag(t *testing.T) {
	t.Setenv("IRSAMPLER_CONFIG", "")
	path := writeConfig(t, `epoch_unit = "hour"`)

	cfg, err := config.Load([]string{"--config", path})
	require.NoError(t, err)
	assert.Equal(t, capture.EpochHour, cfg.EpochUnit)

	_, err = config.Load([]string{"-c", filepath.Join(t.TempDir(), "missing.toml")})
	assert.True(t, errors.HasCode(err, config.ErrReadConfig))
}

func TestLoadInvalid(t *testing.T) {
	tests := map[string]struct {
		content string
		code    errors.ErrorCode
	}{
		"epoch unit":    {`epoch_unit = "week"`, config.ErrInvalidConfig},
		"device":        {`device = "webcam"`, config.ErrInvalidConfig},
		"host sensor":   {`host_sensor = "thermometer"`, config.ErrInvalidConfig},
		"log level":     {`log_level = "loud"`, errors.ErrInvalidLogLevel},
		"duration":      {`file_interval = "forever"`, config.ErrInvalidConfig},
		"init retries":  {`init_retries = -1`, config.ErrInvalidConfig},
		"metrics path":  {"[metrics]\nenabled = true\ndb_path = \"\"", config.ErrInvalidConfig},
		"output dir":    {`output_directory = ""`, config.ErrInvalidConfig},
		"malformed":     {`file_interval = `, config.ErrReadConfig},
		"shutter delay": {`shutter_delay = "-1s"`, config.ErrInvalidConfig},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Setenv("IRSAMPLER_CONFIG", writeConfig(t, tt.content))
			_, err := config.Load(nil)
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, tt.code), "got %v", err)
		})
	}
}

func TestLoadHelp(t *testing.T) {
	_, err := config.Load([]string{"--help"})
	assert.ErrorIs(t, err, pflag.ErrHelp)
}

func TestLoadUnknownFlag(t *testing.T) {
	_, err := config.Load([]string{"--interval", "5"})
	assert.True(t, errors.HasCode(err, config.ErrInvalidConfig))
}
