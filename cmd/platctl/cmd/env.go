package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/plexsphere/platctl/internal/castatus"
	"github.com/plexsphere/platctl/internal/config"
	"github.com/plexsphere/platctl/internal/runner"
	"github.com/plexsphere/platctl/internal/services"
	"github.com/plexsphere/platctl/internal/systemd"
	"github.com/plexsphere/platctl/internal/tasks"
	"github.com/plexsphere/platctl/internal/units"
)

// newRunner and newController are replaced in tests.
var (
	newRunner = func(logger *slog.Logger) runner.Runner {
		return runner.NewExec(logger)
	}
	newController = func(cfg *config.Config, run runner.Runner, logger *slog.Logger) systemd.Controller {
		if cfg.Backend == config.BackendDBus {
			return systemd.NewDBus(systemd.NewDBusAPI, logger)
		}
		return systemd.NewSystemctl(cfg.Paths.Systemctl, run, logger)
	}
)

// environment is what a command needs to act on the host.
type environment struct {
	cfg     *config.Config
	logger  *slog.Logger
	run     runner.Runner
	factory *services.Factory
	known   *services.KnownServices
	tasks   *tasks.Tasks
}

// loadConfig reads cfgFile and applies the flag overrides. A missing file
// at the default location yields the defaults.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	_, err := os.Stat(cfgFile)
	switch {
	case err == nil:
		if cfg, err = config.ParseConfig(cfgFile); err != nil {
			return nil, err
		}
	case errors.Is(err, fs.ErrNotExist) && cfgFile == config.DefaultPath:
		cfg = config.Default()
	default:
		return nil, fmt.Errorf("config: %w", err)
	}

	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if backend != "" {
		cfg.Backend = backend
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newEnvironment() (*environment, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := setupLogger(cfg.LogLevel)
	if cfg.Backend == config.BackendDBus && !systemd.IsRunning() {
		logger.Warn("systemd is not the init system, D-Bus calls will fail")
	}

	run := newRunner(logger)
	caStatus, err := castatus.NewClient(cfg.CA.Config, logger)
	if err != nil {
		return nil, err
	}
	factory, err := services.NewFactory(services.Deps{
		Controller:     newController(cfg, run, logger),
		Resolver:       units.NewResolver(cfg.Units),
		Paths:          cfg.Paths,
		CAStatus:       caStatus,
		Logger:         logger,
		StartupTimeout: cfg.StartupTimeout,
		PollInterval:   cfg.PollInterval,
		CAHost:         cfg.CA.Host,
		Realm:          cfg.Realm,
		TrackServices:  cfg.TrackServices,
	})
	if err != nil {
		return nil, err
	}
	known, err := services.NewKnownServices(factory)
	if err != nil {
		return nil, err
	}
	return &environment{
		cfg:     cfg,
		logger:  logger,
		run:     run,
		factory: factory,
		known:   known,
		tasks:   tasks.New(cfg.Paths, run, logger),
	}, nil
}

// signalContext is cancelled on SIGINT or SIGTERM, which interrupts
// readiness waits.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
}

func setupLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
