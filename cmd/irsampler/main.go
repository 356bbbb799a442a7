package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"codeberg.org/mutker/irsampler/internal/archive"
	"codeberg.org/mutker/irsampler/internal/config"
	"codeberg.org/mutker/irsampler/internal/errors"
	"codeberg.org/mutker/irsampler/internal/hostprobe"
	"codeberg.org/mutker/irsampler/internal/imager"
	"codeberg.org/mutker/irsampler/internal/logger"
	"codeberg.org/mutker/irsampler/internal/metrics"
	"codeberg.org/mutker/irsampler/internal/pid"
	"codeberg.org/mutker/irsampler/internal/supervisor"
	"github.com/google/uuid"
	"github.com/spf13/pflag"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}

	logger.Init(cfg.Debug, cfg.Verbose, logger.IsService())
	if cfg.LogLevel != "" {
		level, err := logger.ParseLevel(cfg.LogLevel)
		if err != nil {
			logError(err, "Invalid log level")
			return 1
		}
		logger.SetLogLevel(level)
	}
	logger.Debug().Str("path", cfg.ConfigFile).Msg("Config loaded")

	pidFile := pid.New(cfg.PIDDir)
	if err := pidFile.Write(); err != nil {
		logError(err, "Failed to write PID file")
		return 1
	}
	defer func() {
		if err := pidFile.Remove(); err != nil {
			logger.Debug().Err(err).Msg("Failed to remove PID file")
		}
	}()

	imgCfg, err := readImagerConfig(cfg)
	if err != nil {
		logError(err, "Failed to read imager configuration")
		return 1
	}

	sim := imager.DefaultSimulatorConfig()
	sim.Serial = imgCfg.Serial
	sim.FrameRate = imgCfg.FrameRate
	dev, err := imager.Open(cfg.Device, sim)
	if err != nil {
		logError(err, "Failed to open imager")
		return 1
	}

	probe, err := hostprobe.New(cfg.HostSensor, cfg.HostSensorPath)
	if err != nil {
		logger.Warn().Err(err).Str("sensor", string(cfg.HostSensor)).Msg("Host temperature unavailable")
		probe = hostprobe.Noop()
	}
	defer probe.Close()

	runID := uuid.NewString()

	collector, err := metrics.NewService(cfg.Metrics, logger.Default().With("metrics"))
	if err != nil {
		logError(err, "Failed to initialize metrics")
		return 1
	}
	defer func() {
		if err := collector.Close(); err != nil {
			logError(err, "Failed to close metrics")
		}
	}()

	sink, err := archive.New(archive.Options{
		Dir:          cfg.OutputDirectory,
		Description:  cfg.Description,
		ImagerConfig: imgCfg.Raw,
		RunID:        runID,
	}, logger.Default())
	if err != nil {
		logError(err, "Failed to prepare output directory")
		return 1
	}

	sup, err := supervisor.New(dev, sink, supervisor.Options{
		Imager:             imgCfg,
		Schedule:           cfg.Schedule(),
		InitRetries:        cfg.InitRetries,
		InitRetryDelay:     cfg.InitRetryDelay,
		ShutterDelay:       cfg.ShutterDelay,
		ShutterMinInterval: cfg.ShutterMinInterval,
		EpochUnit:          cfg.EpochUnit,
		SetupRetryDelay:    cfg.SetupRetryDelay,
		RestartDelay:       cfg.RestartDelay,
		RunID:              runID,
	},
		supervisor.WithTemperatureProbe(probe),
		supervisor.WithMetrics(collector),
	)
	if err != nil {
		logError(err, "Invalid sampling configuration")
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	if err := sup.Run(ctx); err != nil {
		logError(err, "Sampler stopped")
		_ = sup.Close()
		return 1
	}

	if err := sup.Close(); err != nil {
		logger.Debug().Err(err).Msg("Failed to terminate imager")
	}
	logger.Info().
		Str("run_id", sup.RunID()).
		Int("restarts", sup.Restarts()).
		Msg("Exiting...")

	return 0
}

// readImagerConfig loads the vendor XML. The simulated device runs without
// one, using the simulator defaults.
func readImagerConfig(cfg *config.Config) (*imager.Config, error) {
	imgCfg, err := imager.ReadConfig(cfg.ImagerConfig)
	if err == nil {
		return imgCfg, nil
	}
	if cfg.Device != imager.KindSimulated || !errors.HasCode(err, imager.ErrConfigRead) {
		return nil, err
	}

	sim := imager.DefaultSimulatorConfig()
	logger.Warn().Str("path", cfg.ImagerConfig).Msg("No imager configuration, using simulator defaults")

	return &imager.Config{
		Path:      cfg.ImagerConfig,
		Serial:    sim.Serial,
		FrameRate: sim.FrameRate,
	}, nil
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}

func logError(err error, msg string) {
	var coded errors.Error
	if errors.As(err, &coded) {
		logger.ErrorWithCode(coded).Msg(msg)
		return
	}
	logger.Error().Err(err).Msg(msg)
}
