package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/vertextoedge/localai-desktop/internal/domain/event"
	"github.com/vertextoedge/localai-desktop/internal/util/ratelimiter"
)

// progressPrinter renders download events as a single updating console line
type progressPrinter struct {
	mu      sync.Mutex
	out     io.Writer
	limiter *ratelimiter.Limiter
	drawn   bool
}

func newProgressPrinter(out io.Writer, redraw time.Duration) *progressPrinter {
	return &progressPrinter{out: out, limiter: ratelimiter.New(redraw)}
}

func (p *progressPrinter) Handle(ev event.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch e := ev.(type) {
	case event.DownloadStarted:
		if e.Total > 0 {
			fmt.Fprintf(p.out, "size: %s\n", humanize.IBytes(uint64(e.Total)))
		} else {
			fmt.Fprintln(p.out, "size: unknown")
		}
	case event.DownloadProgressed:
		if ok, _ := p.limiter.Allow(); ok || e.Progress.Done() {
			fmt.Fprintf(p.out, "\r%-40s", progressLine(e))
			p.drawn = true
		}
	case event.DownloadCompleted:
		p.endLine()
		fmt.Fprintf(p.out, "saved %s (%s in %s)\n",
			e.Path, humanize.IBytes(uint64(e.Size)), e.Duration.Round(100*time.Millisecond))
	case event.DownloadFailed:
		p.endLine()
	case event.DownloadCancelled:
		p.endLine()
		fmt.Fprintf(p.out, "cancelled after %s\n", humanize.IBytes(uint64(e.Received)))
	}
	return nil
}

func (p *progressPrinter) HandledEvents() []string {
	return event.RelayEvents()
}

func (p *progressPrinter) endLine() {
	if p.drawn {
		fmt.Fprintln(p.out)
		p.drawn = false
	}
}

func progressLine(e event.DownloadProgressed) string {
	received := humanize.IBytes(uint64(e.Progress.Received))
	if !e.Progress.Known() {
		return received
	}
	return fmt.Sprintf("%3d%%  %s / %s", e.Progress.Percent(), received, humanize.IBytes(uint64(e.Progress.Total)))
}
