// Package config loads the sampler configuration from a TOML file,
// IRSAMPLER_* environment variables and command-line flags, in increasing
// order of precedence.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"codeberg.org/mutker/irsampler/internal/capture"
	"codeberg.org/mutker/irsampler/internal/errors"
	"codeberg.org/mutker/irsampler/internal/hostprobe"
	"codeberg.org/mutker/irsampler/internal/imager"
	"codeberg.org/mutker/irsampler/internal/logger"
	"codeberg.org/mutker/irsampler/internal/metrics"
	"codeberg.org/mutker/irsampler/internal/schedule"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	EnvPrefix         = "IRSAMPLER"
	DefaultConfigFile = "/etc/irsampler.toml"
	DefaultPIDDir     = "/run"
)

// Defaults.
const (
	DefaultFileInterval       = 300 * time.Second
	DefaultSampleInterval     = 5 * time.Second
	DefaultSampleRepetition   = 60 * time.Second
	DefaultOutputDirectory    = "OUT"
	DefaultImagerConfig       = "config.xml"
	DefaultShutterDelay       = 300 * time.Millisecond
	DefaultShutterMinInterval = 15 * time.Second
	DefaultSetupRetryDelay    = 5 * time.Second
	DefaultRestartDelay       = time.Second
)

type Config struct {
	FileInterval     time.Duration
	SampleInterval   time.Duration
	SampleRepetition time.Duration

	OutputDirectory string
	ImagerConfig    string
	Description     string

	ShutterDelay       time.Duration
	ShutterMinInterval time.Duration
	EpochUnit          capture.EpochUnit

	Device         imager.Kind
	HostSensor     hostprobe.Kind
	HostSensorPath string

	InitRetries     int
	InitRetryDelay  time.Duration
	SetupRetryDelay time.Duration
	RestartDelay    time.Duration

	Metrics metrics.Config

	LogLevel string
	Debug    bool
	Verbose  bool
	PIDDir   string

	// ConfigFile is the file actually read, empty if none.
	ConfigFile string
}

// Schedule returns the sampling schedule part of the configuration.
func (c *Config) Schedule() schedule.Config {
	return schedule.Config{
		FileInterval:     c.FileInterval,
		SampleInterval:   c.SampleInterval,
		SampleRepetition: c.SampleRepetition,
	}
}

// Load builds a Config from args (without the program name). It returns
// pflag.ErrHelp when help was requested.
func Load(args []string) (*Config, error) {
	errFactory := errors.New()

	fs := newFlagSet()
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil, err
		}
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, flag := range flagKeys {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return nil, errFactory.Wrap(ErrInvalidConfig, err)
		}
	}

	path, explicit := configFile(fs)
	v.SetConfigType("toml")
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		if explicit || !os.IsNotExist(unwrapPathError(err)) {
			return nil, errFactory.WithData(ErrReadConfig, struct {
				Path  string
				Error string
			}{path, err.Error()})
		}
		path = ""
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	cfg.ConfigFile = path

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("irsampler", pflag.ContinueOnError)
	fs.SortFlags = false

	fs.StringP("config", "c", "", "Configuration file (TOML), default $"+EnvPrefix+"_CONFIG or "+DefaultConfigFile)
	fs.String("imager_config", DefaultImagerConfig, "The libirimager configuration file (.xml)")
	fs.String("output_directory", DefaultOutputDirectory, "The directory where sample files are saved")
	fs.Duration("file_interval", DefaultFileInterval, "The time period covered by each file")
	fs.Duration("sample_interval", DefaultSampleInterval, "The time period covered by a sample")
	fs.Duration("sample_repetition", DefaultSampleRepetition, "The time between sample starts")
	fs.Duration("shutter_delay", DefaultShutterDelay, "The time the internal shutter needs to cycle")
	fs.String("epoch_unit", string(capture.EpochDay), "Time axis origin of each file: hour, day or month")
	fs.String("device", string(imager.KindIRImager), "Imager backend: irimager or simulated")
	fs.String("host_sensor", string(hostprobe.KindThermalZone), "Host temperature source: thermal_zone, nvml or none")
	fs.Bool("metrics", false, "Record per-sample run metrics")
	fs.String("metrics_db", "", "Metrics database path")
	fs.String("log_level", "", "Log level: debug, info, warn or error")
	fs.Bool("debug", false, "Enable debugging mode")
	fs.Bool("verbose", false, "Enable verbose logging")
	fs.String("pid_dir", DefaultPIDDir, "Directory of the PID file")

	return fs
}

// flagKeys maps configuration keys to the flags overriding them.
var flagKeys = map[string]string{
	"imager_config":     "imager_config",
	"output_directory":  "output_directory",
	"file_interval":     "file_interval",
	"sample_interval":   "sample_interval",
	"sample_repetition": "sample_repetition",
	"shutter_delay":     "shutter_delay",
	"epoch_unit":        "epoch_unit",
	"device":            "device",
	"host_sensor":       "host_sensor",
	"metrics.enabled":   "metrics",
	"metrics.db_path":   "metrics_db",
	"log_level":         "log_level",
	"debug":             "debug",
	"verbose":           "verbose",
	"pid_dir":           "pid_dir",
}

func setDefaults(v *viper.Viper) {
	m := metrics.DefaultConfig()

	v.SetDefault("file_interval", DefaultFileInterval)
	v.SetDefault("sample_interval", DefaultSampleInterval)
	v.SetDefault("sample_repetition", DefaultSampleRepetition)
	v.SetDefault("output_directory", DefaultOutputDirectory)
	v.SetDefault("imager_config", DefaultImagerConfig)
	v.SetDefault("description", "irsampler")
	v.SetDefault("shutter_delay", DefaultShutterDelay)
	v.SetDefault("shutter_min_interval", DefaultShutterMinInterval)
	v.SetDefault("epoch_unit", string(capture.EpochDay))
	v.SetDefault("device", string(imager.KindIRImager))
	v.SetDefault("host_sensor", string(hostprobe.KindThermalZone))
	v.SetDefault("host_sensor_path", hostprobe.DefaultThermalZone)
	v.SetDefault("init_retries", imager.DefaultInitRetries)
	v.SetDefault("init_retry_delay", imager.DefaultInitRetryDelay)
	v.SetDefault("setup_retry_delay", DefaultSetupRetryDelay)
	v.SetDefault("restart_delay", DefaultRestartDelay)
	v.SetDefault("metrics.enabled", m.Enabled)
	v.SetDefault("metrics.db_path", m.DBPath)
	v.SetDefault("metrics.batch_size", m.BatchSize)
	v.SetDefault("metrics.batch_timeout", m.BatchTimeout)
	v.SetDefault("log_level", "")
	v.SetDefault("debug", false)
	v.SetDefault("verbose", false)
	v.SetDefault("pid_dir", DefaultPIDDir)
}

func configFile(fs *pflag.FlagSet) (string, bool) {
	if path, _ := fs.GetString("config"); path != "" {
		return path, true
	}
	if path := os.Getenv(EnvPrefix + "_CONFIG"); path != "" {
		return path, true
	}

	return DefaultConfigFile, false
}

func unwrapPathError(err error) error {
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return pathErr
	}

	return err
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		OutputDirectory: v.GetString("output_directory"),
		ImagerConfig:    v.GetString("imager_config"),
		Description:     v.GetString("description"),
		EpochUnit:       capture.EpochUnit(strings.ToLower(v.GetString("epoch_unit"))),
		Device:          imager.Kind(strings.ToLower(v.GetString("device"))),
		HostSensor:      hostprobe.Kind(strings.ToLower(v.GetString("host_sensor"))),
		HostSensorPath:  v.GetString("host_sensor_path"),
		InitRetries:     v.GetInt("init_retries"),
		Metrics: metrics.Config{
			Enabled:      v.GetBool("metrics.enabled"),
			DBPath:       v.GetString("metrics.db_path"),
			BatchSize:    v.GetInt("metrics.batch_size"),
			BatchTimeout: v.GetInt("metrics.batch_timeout"),
		},
		LogLevel: strings.ToLower(v.GetString("log_level")),
		Debug:    v.GetBool("debug"),
		Verbose:  v.GetBool("verbose"),
		PIDDir:   v.GetString("pid_dir"),
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"file_interval", &cfg.FileInterval},
		{"sample_interval", &cfg.SampleInterval},
		{"sample_repetition", &cfg.SampleRepetition},
		{"shutter_delay", &cfg.ShutterDelay},
		{"shutter_min_interval", &cfg.ShutterMinInterval},
		{"init_retry_delay", &cfg.InitRetryDelay},
		{"setup_retry_delay", &cfg.SetupRetryDelay},
		{"restart_delay", &cfg.RestartDelay},
	}
	for _, d := range durations {
		value, err := duration(v.Get(d.key))
		if err != nil {
			return nil, errors.New().WithData(ErrInvalidConfig, struct {
				Field string
				Value string
			}{d.key, err.Error()})
		}
		*d.dst = value
	}

	return cfg, nil
}

// duration accepts a Go duration string ("5m", "300ms") or a bare number of
// seconds.
func duration(raw any) (time.Duration, error) {
	switch value := raw.(type) {
	case time.Duration:
		return value, nil
	case int:
		return time.Duration(value) * time.Second, nil
	case int64:
		return time.Duration(value) * time.Second, nil
	case float64:
		return time.Duration(value * float64(time.Second)), nil
	case string:
		s := strings.TrimSpace(value)
		if secs, err := strconv.ParseFloat(s, 64); err == nil {
			return time.Duration(secs * float64(time.Second)), nil
		}
		return time.ParseDuration(s)
	default:
		return 0, errors.New().WithData(ErrInvalidConfig, struct {
			Value any
		}{raw})
	}
}

// Validate checks everything except the schedule relations, which
// schedule.New enforces.
func (c *Config) Validate() error {
	errFactory := errors.New()

	invalid := func(field string, value any) error {
		return errFactory.WithData(ErrInvalidConfig, struct {
			Field string
			Value any
		}{field, value})
	}

	if c.OutputDirectory == "" {
		return invalid("output_directory", c.OutputDirectory)
	}
	if c.ImagerConfig == "" {
		return invalid("imager_config", c.ImagerConfig)
	}
	if !c.EpochUnit.IsValid() {
		return invalid("epoch_unit", c.EpochUnit)
	}
	switch c.Device {
	case imager.KindIRImager, imager.KindSimulated:
	default:
		return invalid("device", c.Device)
	}
	switch c.HostSensor {
	case hostprobe.KindThermalZone, hostprobe.KindNVML, hostprobe.KindNone:
	default:
		return invalid("host_sensor", c.HostSensor)
	}
	if c.ShutterDelay < 0 {
		return invalid("shutter_delay", c.ShutterDelay)
	}
	if c.ShutterMinInterval <= 0 {
		return invalid("shutter_min_interval", c.ShutterMinInterval)
	}
	if c.InitRetries < 0 {
		return invalid("init_retries", c.InitRetries)
	}
	if c.InitRetryDelay < 0 || c.SetupRetryDelay < 0 || c.RestartDelay < 0 {
		return invalid("retry_delay", []time.Duration{c.InitRetryDelay, c.SetupRetryDelay, c.RestartDelay})
	}
	if c.LogLevel != "" {
		if _, err := logger.ParseLevel(c.LogLevel); err != nil {
			return err
		}
	}
	if err := c.Metrics.Validate(); err != nil {
		return errFactory.Wrap(ErrInvalidConfig, err)
	}

	return nil
}
