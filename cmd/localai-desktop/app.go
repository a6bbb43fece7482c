package main

import (
	"fmt"
	"runtime"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/vertextoedge/localai-desktop/internal/adapter/desktop"
	"github.com/vertextoedge/localai-desktop/internal/adapter/engine"
	"github.com/vertextoedge/localai-desktop/internal/adapter/filesystem"
	"github.com/vertextoedge/localai-desktop/internal/adapter/sqlite"
	"github.com/vertextoedge/localai-desktop/internal/config"
	"github.com/vertextoedge/localai-desktop/internal/domain/event"
	"github.com/vertextoedge/localai-desktop/internal/logger"
	"github.com/vertextoedge/localai-desktop/internal/service/downloader"
	"github.com/vertextoedge/localai-desktop/internal/service/locator"
	"github.com/vertextoedge/localai-desktop/internal/service/orchestrator"
)

// app holds the wired components shared by every command
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	store   *sqlite.Store
	fs      *filesystem.Manager
	events  *event.Dispatcher
	metrics *event.MetricsHandler
	desktop *desktop.Opener
	orch    *orchestrator.Orchestrator
}

// newApp loads configuration and wires the component graph
func newApp(c *cli.Context) (*app, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if lvl := c.String("log-level"); lvl != "" {
		cfg.Logging.Level = lvl
	}

	zapLogger, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	fsManager, err := filesystem.NewManager(cfg.App.GetDownloadsDir())
	if err != nil {
		zapLogger.Sync()
		return nil, fmt.Errorf("failed to create downloads directory: %w", err)
	}

	dbPath := cfg.GetDatabasePath()
	store, err := sqlite.Open(dbPath)
	if err != nil {
		zapLogger.Sync()
		return nil, fmt.Errorf("failed to open database %s: %w", dbPath, err)
	}

	events := event.NewDispatcher(zapLogger)
	metrics := event.NewMetricsHandler()
	events.Subscribe(event.NewLoggingHandler(zapLogger))
	events.Subscribe(metrics)

	runner := engine.NewExecRunner()
	opener := desktop.NewOpener(runner, zapLogger)

	loc := locator.New(runner, locator.Config{
		Binary:       cfg.Engine.Binary,
		VersionFlag:  cfg.Engine.VersionFlag,
		ProbeTimeout: cfg.Engine.GetProbeTimeout(),
	}, zapLogger)

	pipeline := downloader.New(fsManager, downloader.Config{
		UserAgent:    cfg.Download.GetUserAgent(version),
		MaxRedirects: cfg.Download.MaxRedirects,
		IdleTimeout:  cfg.Download.GetIdleTimeout(),
		ChunkSize:    cfg.Download.GetChunkSize(),
	}, zapLogger)

	orch := orchestrator.New(orchestrator.Dependencies{
		Locator:  loc,
		Pipeline: pipeline,
		Repo:     store,
		Procs:    engine.NewProcessProbe(),
		Desktop:  opener,
		Events:   events,
	}, orchestrator.Config{
		DefaultURL:      cfg.Download.DefaultURL,
		WindowsURL:      cfg.Download.WindowsURL,
		Binary:          cfg.Engine.Binary,
		GOOS:            runtime.GOOS,
		PersistInterval: cfg.Download.GetProgressPersistInterval(),
	}, zapLogger)

	return &app{
		cfg:     cfg,
		logger:  zapLogger,
		store:   store,
		fs:      fsManager,
		events:  events,
		metrics: metrics,
		desktop: opener,
		orch:    orch,
	}, nil
}

// Close releases the database and flushes the logger
func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Error("failed to close database", zap.Error(err))
	}
	a.logger.Sync()
}

// withApp wraps a command action with app setup and teardown
func withApp(fn func(c *cli.Context, a *app) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		a, err := newApp(c)
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		defer a.Close()
		return fn(c, a)
	}
}
