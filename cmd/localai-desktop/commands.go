package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/vertextoedge/localai-desktop/internal/domain"
	"github.com/vertextoedge/localai-desktop/internal/ipc"
	"github.com/vertextoedge/localai-desktop/internal/service/maintenance"
	"github.com/vertextoedge/localai-desktop/internal/service/server"
)

const shutdownTimeout = 30 * time.Second

var jsonFlag = &cli.BoolFlag{
	Name:  "json",
	Usage: "Print machine-readable JSON",
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP/WebSocket bridge and background maintenance",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "stdio",
				Usage: "Also serve msgpack frames on stdin/stdout; exits when stdin closes",
			},
			&cli.BoolFlag{
				Name:  "prompt",
				Usage: "Ask on the console what to do when the engine is missing (overrides server.prompt_on_start)",
			},
		},
		Action: withApp(serveAction),
	}
}

func serveAction(c *cli.Context, a *app) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.logger.Info("starting localai-desktop",
		zap.String("version", version),
		zap.String("downloads_dir", a.fs.RootDir()),
	)

	maintenanceService := maintenance.New(&maintenance.Config{
		Interval:       a.cfg.Maintenance.GetInterval(),
		TempFileMaxAge: a.cfg.Maintenance.GetTempFileMaxAge(),
		RunOnStartup:   a.cfg.Maintenance.RunOnStartup,
	}, a.store, a.fs, a.logger)

	// Rows left active belong to a previous process; fix them before serving
	if _, err := maintenanceService.RecoverInterrupted(ctx); err != nil {
		a.logger.Error("failed to recover interrupted acquisitions", zap.Error(err))
	}

	httpServer := server.New(&server.Config{
		BindAddr:       a.cfg.Server.BindAddr,
		AuthToken:      a.cfg.Server.AuthToken,
		AllowedOrigins: a.cfg.Server.AllowedOrigins,
		ReadTimeout:    a.cfg.Server.GetReadTimeout(),
		WriteTimeout:   a.cfg.Server.GetWriteTimeout(),
		IdleTimeout:    a.cfg.Server.GetIdleTimeout(),
		WSSendBuffer:   a.cfg.Server.WSSendBuffer,
	}, server.Dependencies{
		Acquirer: a.orch,
		Store:    a.store,
		Events:   a.events,
		Metrics:  a.metrics,
	}, a.logger)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- httpServer.Start()
	}()

	go func() {
		if err := maintenanceService.Start(ctx); err != nil {
			a.logger.Error("maintenance service stopped with error", zap.Error(err))
		}
	}()

	bridgeDone := make(chan error, 1)
	useStdio := c.Bool("stdio")
	if useStdio {
		bridge := ipc.NewBridge(c.App.Reader, c.App.Writer, a.orch, a.events, a.logger)
		go func() {
			bridgeDone <- bridge.Serve(ctx)
		}()
	}

	// stdin belongs to the bridge in stdio mode
	prompt := a.cfg.Server.PromptOnStart
	if c.IsSet("prompt") {
		prompt = c.Bool("prompt")
	}
	var background sync.WaitGroup
	if prompt && !useStdio {
		background.Add(1)
		go func() {
			defer background.Done()
			p := newConsolePrompter(c.App.Reader, c.App.Writer)
			if err := a.orch.PromptIfMissing(ctx, p); err != nil && ctx.Err() == nil {
				a.logger.Warn("startup prompt failed", zap.Error(err))
			}
		}()
	}

	a.logger.Info("application started successfully",
		zap.String("http_addr", a.cfg.Server.BindAddr),
		zap.Bool("stdio", useStdio),
	)

	var runErr error
	bridgeStopped := false
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received, stopping services...")
	case err := <-serverErr:
		if err != nil {
			runErr = cli.Exit(fmt.Sprintf("HTTP server failed: %v", err), 1)
		}
	case err := <-bridgeDone:
		bridgeStopped = true
		if err != nil {
			a.logger.Error("stdio bridge failed", zap.Error(err))
			runErr = cli.Exit(fmt.Sprintf("stdio bridge failed: %v", err), 1)
		} else {
			a.logger.Info("UI process closed the stdio bridge, stopping services...")
		}
	}

	stop()
	a.orch.Cancel()

	// Downloads started over stdio or from the prompt must record their
	// final state before the store closes
	if useStdio && !bridgeStopped {
		if err := <-bridgeDone; err != nil {
			a.logger.Warn("stdio bridge stopped with error", zap.Error(err))
		}
	}
	background.Wait()
	maintenanceService.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Stop(shutdownCtx); err != nil {
		a.logger.Error("failed to stop HTTP server gracefully", zap.Error(err))
	}

	a.logger.Info("application stopped successfully")
	return runErr
}

func detectCommand() *cli.Command {
	return &cli.Command{
		Name:  "detect",
		Usage: "Check whether the engine is installed (exit 1 when missing)",
		Flags: []cli.Flag{jsonFlag},
		Action: withApp(func(c *cli.Context, a *app) error {
			result := a.orch.CheckInstallation(c.Context)
			out := c.App.Writer
			if c.Bool("json") {
				if err := writeJSON(out, result); err != nil {
					return err
				}
			} else {
				printDetection(out, result)
			}
			if !result.Found {
				return cli.Exit("", 1)
			}
			return nil
		}),
	}
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show engine installation and running processes",
		Flags: []cli.Flag{jsonFlag},
		Action: withApp(func(c *cli.Context, a *app) error {
			status := a.orch.EngineStatus(c.Context)
			out := c.App.Writer
			if c.Bool("json") {
				return writeJSON(out, status)
			}
			printDetection(out, status.Detection)
			if status.Running {
				fmt.Fprintf(out, "running: yes (pids %v)\n", status.PIDs)
			} else {
				fmt.Fprintln(out, "running: no")
			}
			return nil
		}),
	}
}

func downloadCommand() *cli.Command {
	return &cli.Command{
		Name:  "download",
		Usage: "Download the engine installer for this platform",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "reveal",
				Usage: "Show the installer in the file manager when done",
			},
		},
		Action: withApp(func(c *cli.Context, a *app) error {
			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := c.App.Writer
			fmt.Fprintf(out, "downloading %s\n", a.orch.InstallerURL())

			printer := newProgressPrinter(out, 100*time.Millisecond)
			sub := a.events.Subscribe(printer)
			defer a.events.Unsubscribe(sub)

			path, err := a.orch.RequestDownload(ctx)
			if err != nil {
				if domain.IsCancelled(err) {
					return cli.Exit("download cancelled", 130)
				}
				return cli.Exit(fmt.Sprintf("download failed (%s): %v", domain.Kind(err), err), 1)
			}

			if c.Bool("reveal") {
				if err := a.desktop.RevealFile(ctx, path); err != nil {
					a.logger.Warn("failed to reveal installer", zap.Error(err))
				}
			}
			return nil
		}),
	}
}

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List recent installer downloads",
		Flags: []cli.Flag{
			jsonFlag,
			&cli.IntFlag{
				Name:  "limit",
				Value: 20,
				Usage: "Maximum number of rows",
			},
		},
		Action: withApp(func(c *cli.Context, a *app) error {
			rows, err := a.orch.History(c.Context, c.Int("limit"))
			if err != nil {
				return cli.Exit(fmt.Sprintf("failed to list history: %v", err), 1)
			}
			if c.Bool("json") {
				return writeJSON(c.App.Writer, rows)
			}
			return printHistory(c.App.Writer, rows, time.Now())
		}),
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version information",
		Action: func(c *cli.Context) error {
			fmt.Fprintf(c.App.Writer, "localai-desktop %s (%s/%s)\n", version, runtime.GOOS, runtime.GOARCH)
			return nil
		},
	}
}

func printDetection(w io.Writer, r domain.DetectionResult) {
	switch {
	case r.Found && r.Version != "":
		fmt.Fprintf(w, "installed: %s (%s)\n", r.Path, r.Version)
	case r.Found:
		fmt.Fprintf(w, "installed: %s\n", r.Path)
	default:
		fmt.Fprintf(w, "not installed: %s\n", r.Error)
	}
}

func printHistory(w io.Writer, rows []*domain.Acquisition, now time.Time) error {
	if len(rows) == 0 {
		fmt.Fprintln(w, "no downloads yet")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tSIZE\tSTARTED\tDETAIL")
	for _, a := range rows {
		size := humanize.IBytes(uint64(a.BytesReceived))
		if a.BytesTotal > 0 {
			size += " / " + humanize.IBytes(uint64(a.BytesTotal))
		}
		detail := a.Path
		if a.Status == domain.StatusFailed {
			detail = a.LastError
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			shortID(a.ID), a.Status, size, humanize.RelTime(a.StartedAt, now, "ago", "from now"), detail)
	}
	return tw.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
