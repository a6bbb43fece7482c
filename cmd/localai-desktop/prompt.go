package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/vertextoedge/localai-desktop/internal/port"
)

const maxPromptAttempts = 3

type lineResult struct {
	line string
	err  error
}

// consolePrompter asks the missing-engine questions on a terminal.
// Input is read on a background goroutine so a blocked read never
// outlives the caller's context.
type consolePrompter struct {
	in    *bufio.Reader
	out   io.Writer
	once  sync.Once
	lines chan lineResult
}

var _ port.Prompter = (*consolePrompter)(nil)

func newConsolePrompter(in io.Reader, out io.Writer) *consolePrompter {
	return &consolePrompter{
		in:    bufio.NewReader(in),
		out:   out,
		lines: make(chan lineResult),
	}
}

func (p *consolePrompter) ChooseMissingEngineAction(ctx context.Context) (port.MissingEngineAction, error) {
	fmt.Fprintln(p.out, "Ollama is not installed.")
	fmt.Fprintln(p.out, "  [o] open the download page in a browser")
	fmt.Fprintln(p.out, "  [d] download the installer now")
	fmt.Fprintln(p.out, "  [c] do nothing")

	for i := 0; i < maxPromptAttempts; i++ {
		fmt.Fprint(p.out, "choice [o/d/C]: ")
		answer, err := p.readLine(ctx)
		if err != nil {
			return "", err
		}
		switch answer {
		case "o", "open":
			return port.ActionOpenPage, nil
		case "d", "download":
			return port.ActionDownload, nil
		case "", "c", "cancel":
			return port.ActionCancel, nil
		}
		fmt.Fprintf(p.out, "unrecognised choice %q\n", answer)
	}
	return port.ActionCancel, nil
}

func (p *consolePrompter) ConfirmReveal(ctx context.Context, path string) (bool, error) {
	fmt.Fprintf(p.out, "Installer saved to %s\n", path)
	fmt.Fprint(p.out, "Show it in the file manager? [Y/n]: ")
	answer, err := p.readLine(ctx)
	if err != nil {
		return false, err
	}
	return answer == "" || answer == "y" || answer == "yes", nil
}

func (p *consolePrompter) NotifyError(_ context.Context, err error) {
	fmt.Fprintf(p.out, "Download failed: %v\n", err)
}

// readLine returns the next trimmed, lower-cased line. A closed input
// counts as an empty answer.
func (p *consolePrompter) readLine(ctx context.Context) (string, error) {
	p.once.Do(func() { go p.readLoop() })

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r, ok := <-p.lines:
		if !ok {
			return "", nil
		}
		if r.err != nil {
			return "", fmt.Errorf("failed to read answer: %w", r.err)
		}
		return strings.ToLower(strings.TrimSpace(r.line)), nil
	}
}

// readLoop feeds lines until the input ends; lines is closed afterwards
func (p *consolePrompter) readLoop() {
	defer close(p.lines)
	for {
		line, err := p.in.ReadString('\n')
		if err != nil && err != io.EOF {
			p.lines <- lineResult{err: err}
			return
		}
		if line != "" || err == nil {
			p.lines <- lineResult{line: line}
		}
		if err != nil {
			return
		}
	}
}
