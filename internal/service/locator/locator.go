package locator

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vertextoedge/localai-desktop/internal/domain"
	"github.com/vertextoedge/localai-desktop/internal/port"
)

// Config holds locator configuration
type Config struct {
	Binary       string        // engine executable name without platform suffix
	VersionFlag  string        // flag that prints the version and exits
	ProbeTimeout time.Duration // bound on each child process
	GOOS         string        // defaults to runtime.GOOS
}

// Locator finds the engine executable. Every call re-probes.
type Locator struct {
	runner port.CommandRunner
	config Config
	logger *zap.Logger
}

// New creates a new Locator
func New(runner port.CommandRunner, cfg Config, logger *zap.Logger) *Locator {
	if cfg.GOOS == "" {
		cfg.GOOS = runtime.GOOS
	}
	if cfg.VersionFlag == "" {
		cfg.VersionFlag = "--version"
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 10 * time.Second
	}
	return &Locator{runner: runner, config: cfg, logger: logger}
}

// Executable returns the platform-specific executable name
func (l *Locator) Executable() string {
	name := l.config.Binary
	if l.config.GOOS == "windows" && !strings.HasSuffix(strings.ToLower(name), ".exe") {
		name += ".exe"
	}
	return name
}

// Detect reports whether the engine is installed. It never returns an error;
// every failure is folded into a DetectionResult with found=false.
func (l *Locator) Detect(ctx context.Context) (result domain.DetectionResult) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("engine probe panicked", zap.Any("panic", r))
			result = domain.Missing(fmt.Sprint(r))
		}
	}()

	exe := l.Executable()

	if version, ok := l.probeVersion(ctx, exe); ok {
		return domain.Found(exe, version)
	}

	path, err := l.lookPath(ctx, exe)
	if err != nil {
		l.logger.Debug("PATH lookup failed", zap.String("exe", exe), zap.Error(err))
		return domain.Missing(err.Error())
	}
	if path != "" {
		return domain.Found(path, "")
	}
	return domain.Missing(fmt.Sprintf("%s not found on PATH", exe))
}

func (l *Locator) probeVersion(ctx context.Context, exe string) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, l.config.ProbeTimeout)
	defer cancel()

	res, err := l.runner.Run(ctx, exe, l.config.VersionFlag)
	if err != nil {
		l.logger.Debug("version probe failed", zap.String("exe", exe), zap.Error(err))
		return "", false
	}
	version := strings.TrimSpace(res.Stdout)
	if res.ExitCode != 0 || version == "" {
		l.logger.Debug("version probe unusable",
			zap.String("exe", exe),
			zap.Int("exit_code", res.ExitCode))
		return "", false
	}
	return version, true
}

// lookPath runs where/which and returns the first line of its output
func (l *Locator) lookPath(ctx context.Context, exe string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, l.config.ProbeTimeout)
	defer cancel()

	tool := "which"
	if l.config.GOOS == "windows" {
		tool = "where"
	}

	res, err := l.runner.Run(ctx, tool, exe)
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return "", nil
	}
	for _, line := range strings.Split(res.Stdout, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line, nil
		}
	}
	return "", nil
}
