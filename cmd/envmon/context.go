package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/vbonduro/envmon/internal/config"
	"github.com/vbonduro/envmon/internal/display"
	"github.com/vbonduro/envmon/internal/logging"
	"github.com/vbonduro/envmon/internal/photostore/local"
	"github.com/vbonduro/envmon/internal/preflight"
	"github.com/vbonduro/envmon/internal/sensor/camera"
	"github.com/vbonduro/envmon/internal/sensor/location"
	"github.com/vbonduro/envmon/internal/sensor/noise"
	"github.com/vbonduro/envmon/internal/service"
	"github.com/vbonduro/envmon/internal/store"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce    sync.Once
	logger        *slog.Logger
	loggerCleanup func()
	loggerErr     error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		logger, cleanup, err := logging.New(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
		if err != nil {
			c.loggerErr = fmt.Errorf("initialize logger: %w", err)
			return
		}
		c.logger = logger
		c.loggerCleanup = cleanup
	})
	return c.logger, c.loggerErr
}

// close releases the log file opened by ensureLogger. Safe to call more
// than once.
func (c *commandContext) close() {
	if c.loggerCleanup != nil {
		c.loggerCleanup()
		c.loggerCleanup = nil
	}
}

// app holds the wired components a command works with.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *store.MeasurementStore
	printer *display.Printer
	checker *preflight.Checker
	service *service.MonitorService
}

func (c *commandContext) buildApp() (*app, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}

	st, err := store.NewMeasurementStore(cfg.MeasurementsPath(), logger)
	if err != nil {
		return nil, fmt.Errorf("open measurement store: %w", err)
	}
	spool, err := local.NewLocalPhotoStore(cfg.SpoolDir)
	if err != nil {
		return nil, fmt.Errorf("open photo spool: %w", err)
	}

	printer := display.New(cfg.Locale)
	checker := preflight.NewChecker(cfg)
	svc := service.NewMonitorService(
		st,
		newLocator(cfg, logger),
		noise.NewMeter(newRecorderFactory(cfg, logger), time.Duration(cfg.Noise.WindowMillis)*time.Millisecond, logger),
		newCamera(cfg, logger),
		spool,
		checker,
		printer,
		logging.Component(logger, "service"),
	)

	return &app{
		cfg:     cfg,
		logger:  logger,
		store:   st,
		printer: printer,
		checker: checker,
		service: svc,
	}, nil
}

func newLocator(cfg *config.Config, logger *slog.Logger) location.Locator {
	switch cfg.Location.Source {
	case config.SourceStatic:
		logger.Debug("using static location", "latitude", cfg.Location.Latitude, "longitude", cfg.Location.Longitude)
		return location.NewStaticLocator(cfg.Location.Latitude, cfg.Location.Longitude)
	case config.SourceFile:
		logger.Debug("using location fix file", "path", cfg.Location.FixPath)
		return location.NewFileLocator(cfg.Location.FixPath)
	default:
		return location.NoneLocator{}
	}
}

func newRecorderFactory(cfg *config.Config, logger *slog.Logger) noise.RecorderFactory {
	switch cfg.Noise.Source {
	case config.SourceCommand:
		command := cfg.Noise.Command
		return func() (noise.Recorder, error) {
			rec, err := noise.NewCommandRecorder(command, logger)
			if err != nil {
				return nil, err
			}
			return rec, nil
		}
	case config.SourceFile:
		path := cfg.Noise.File
		return func() (noise.Recorder, error) {
			return noise.NewFileRecorder(path), nil
		}
	default:
		return func() (noise.Recorder, error) {
			return nil, noise.ErrNoRecorder
		}
	}
}

func newCamera(cfg *config.Config, logger *slog.Logger) camera.Camera {
	switch cfg.Camera.Source {
	case config.SourceCommand:
		cam, err := camera.NewCommandCamera(cfg.Camera.Command, cfg.SpoolDir, logger)
		if err != nil {
			logger.Warn("camera command unusable, photo capture disabled", "error", err)
			return camera.NoneCamera{}
		}
		return cam
	case config.SourceFile:
		return camera.NewFileCamera(cfg.Camera.File)
	default:
		return camera.NoneCamera{}
	}
}

// errorsIsAny reports whether err matches any of targets.
func errorsIsAny(err error, targets ...error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}
