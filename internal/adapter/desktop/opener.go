package desktop

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"

	"go.uber.org/zap"

	"github.com/vertextoedge/localai-desktop/internal/port"
)

// Opener performs desktop actions through the platform's shell helpers
type Opener struct {
	runner port.CommandRunner
	goos   string
	logger *zap.Logger
}

// Ensure Opener implements port.Desktop
var _ port.Desktop = (*Opener)(nil)

// NewOpener creates a new Opener for the running platform
func NewOpener(runner port.CommandRunner, logger *zap.Logger) *Opener {
	return &Opener{runner: runner, goos: runtime.GOOS, logger: logger}
}

// OpenURL opens url in the default browser
func (o *Opener) OpenURL(ctx context.Context, url string) error {
	name, args := o.openCommand(url)
	return o.run(ctx, "open url", name, args...)
}

// RevealFile shows path in the platform file manager
func (o *Opener) RevealFile(ctx context.Context, path string) error {
	switch o.goos {
	case "windows":
		return o.run(ctx, "reveal file", "explorer", "/select,"+path)
	case "darwin":
		return o.run(ctx, "reveal file", "open", "-R", path)
	default:
		// xdg-open cannot select a file; open its folder instead
		return o.run(ctx, "reveal file", "xdg-open", filepath.Dir(path))
	}
}

func (o *Opener) openCommand(target string) (string, []string) {
	switch o.goos {
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", target}
	case "darwin":
		return "open", []string{target}
	default:
		return "xdg-open", []string{target}
	}
}

func (o *Opener) run(ctx context.Context, op, name string, args ...string) error {
	res, err := o.runner.Run(ctx, name, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	// explorer.exe exits 1 even on success
	if res.ExitCode != 0 && !(o.goos == "windows" && name == "explorer") {
		return fmt.Errorf("%s: %s exited with code %d", op, name, res.ExitCode)
	}
	o.logger.Debug("desktop action", zap.String("op", op), zap.String("command", name))
	return nil
}
