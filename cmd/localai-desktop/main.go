// Command localai-desktop is the backend of the desktop shell: it detects
// the engine binary, downloads its installer and bridges both to the UI.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

// version is set via ldflags at build time.
var version = "0.1.0"

func main() {
	if err := newCLIApp().Run(os.Args); err != nil {
		os.Exit(1)
	}
}

func newCLIApp() *cli.App {
	return &cli.App{
		Name:           "localai-desktop",
		Usage:          "Engine detection and installer acquisition backend",
		Version:        version,
		ExitErrHandler: exitErrHandler,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file (default: ./config.yaml if present)",
				EnvVars: []string{"LOCALAI_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Override logging.level",
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			detectCommand(),
			statusCommand(),
			downloadCommand(),
			historyCommand(),
			versionCommand(),
		},
	}
}

// exitErrHandler preserves exit codes from cli.Exit().
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}

	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()

		// cli.Exit("", N).Error() returns "exit status N"
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(code)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
