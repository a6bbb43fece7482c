package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/vertextoedge/localai-desktop/internal/domain"
	"github.com/vertextoedge/localai-desktop/internal/port"
)

// Defaults
const (
	DefaultMaxRedirects = 5
	DefaultIdleTimeout  = 30 * time.Second
	DefaultChunkSize    = 32 * 1024
	FallbackFileName    = "download.bin"
)

// Observer receives callbacks on the downloading goroutine
type Observer interface {
	// OnResponse fires once when the final 2xx response arrives
	OnResponse(total int64, finalURL string)
	// OnProgress fires for every chunk, before the chunk is written
	OnProgress(p domain.DownloadProgress)
}

// ObserverFuncs adapts plain functions to Observer; nil fields are skipped
type ObserverFuncs struct {
	Response func(total int64, finalURL string)
	Progress func(p domain.DownloadProgress)
}

// OnResponse calls Response
func (o ObserverFuncs) OnResponse(total int64, finalURL string) {
	if o.Response != nil {
		o.Response(total, finalURL)
	}
}

// OnProgress calls Progress
func (o ObserverFuncs) OnProgress(p domain.DownloadProgress) {
	if o.Progress != nil {
		o.Progress(p)
	}
}

// Config holds pipeline configuration
type Config struct {
	UserAgent    string
	MaxRedirects int
	IdleTimeout  time.Duration
	ChunkSize    int
	// Transport overrides the default download transport
	Transport http.RoundTripper
}

// Pipeline streams one URL to the downloads directory per call
type Pipeline struct {
	client *http.Client
	fs     port.FileSystem
	config Config
	logger *zap.Logger
}

// New creates a new Pipeline
func New(fs port.FileSystem, cfg Config, logger *zap.Logger) *Pipeline {
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = DefaultMaxRedirects
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	transport := cfg.Transport
	if transport == nil {
		transport = &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        10,
			IdleConnTimeout:     90 * time.Second,
			ForceAttemptHTTP2:   true,
			TLSHandshakeTimeout: 10 * time.Second,

			// Installers are already compressed; keep Content-Length intact
			DisableCompression: true,
		}
	}

	return &Pipeline{
		client: &http.Client{
			Transport: transport,
			Timeout:   0, // bounded by the idle watchdog instead
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		fs:     fs,
		config: cfg,
		logger: logger,
	}
}

// FileName derives the destination file name from the requested URL
func FileName(u *url.URL) string {
	name := path.Base(u.Path)
	switch name {
	case "", ".", "/", "..":
		return FallbackFileName
	}
	return filepath.Base(name)
}

// Download fetches rawURL into the downloads directory and returns the
// final path. Callbacks on obs run on the calling goroutine and stop
// before Download returns. Cancelling ctx aborts the transfer, removes
// the partial file and returns domain.ErrCancelled.
func (p *Pipeline) Download(ctx context.Context, rawURL string, obs Observer) (string, error) {
	if obs == nil {
		obs = ObserverFuncs{}
	}

	u, err := parseHTTPURL(rawURL)
	if err != nil {
		return "", domain.NewTransportError("parse url", err)
	}
	dest := p.fs.DestinationPath(FileName(u))

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	watchdog := time.AfterFunc(p.config.IdleTimeout, func() {
		cancel(domain.ErrIdleTimeout)
	})
	defer watchdog.Stop()

	resp, finalURL, err := p.fetch(ctx, u, watchdog)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	total := resp.ContentLength
	if total < 0 {
		total = 0
	}

	if err := p.checkSpace(total); err != nil {
		return "", err
	}

	obs.OnResponse(total, finalURL.String())

	tf, err := p.fs.CreateTemp(dest)
	if err != nil {
		return "", domain.NewFilesystemError("create", dest, err)
	}

	received, err := p.stream(ctx, resp.Body, tf, total, obs, watchdog)
	if err != nil {
		if abortErr := tf.Abort(); abortErr != nil {
			p.logger.Warn("failed to remove partial download",
				zap.String("path", tf.Path()),
				zap.Error(abortErr))
		}
		return "", err
	}

	finalPath, err := tf.Commit()
	if err != nil {
		return "", domain.NewFilesystemError("commit", dest, err)
	}

	p.logger.Info("download finished",
		zap.String("url", finalURL.String()),
		zap.String("path", finalPath),
		zap.Int64("bytes", received))
	return finalPath, nil
}

// fetch issues GETs, following at most MaxRedirects redirects by hand
func (p *Pipeline) fetch(ctx context.Context, u *url.URL, watchdog *time.Timer) (*http.Response, *url.URL, error) {
	current := u
	for redirects := 0; ; redirects++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, current.String(), nil)
		if err != nil {
			return nil, nil, domain.NewTransportError("build request", err)
		}
		req.Header.Set("User-Agent", p.config.UserAgent)

		resp, err := p.client.Do(req)
		if err != nil {
			if ie := interruption(ctx); ie != nil {
				return nil, nil, ie
			}
			return nil, nil, domain.NewTransportError("request", err)
		}
		watchdog.Reset(p.config.IdleTimeout)

		location := resp.Header.Get("Location")
		if resp.StatusCode >= 300 && resp.StatusCode <= 399 && location != "" {
			discard(resp)
			if redirects >= p.config.MaxRedirects {
				return nil, nil, domain.NewRedirectLoopError(p.config.MaxRedirects, current.String())
			}
			next, err := current.Parse(location)
			if err != nil {
				return nil, nil, domain.NewTransportError("redirect", err)
			}
			if next.Scheme != "http" && next.Scheme != "https" {
				return nil, nil, domain.NewTransportError("redirect",
					fmt.Errorf("unsupported scheme %q", next.Scheme))
			}
			p.logger.Debug("following redirect",
				zap.Int("status", resp.StatusCode),
				zap.String("from", current.String()),
				zap.String("to", next.String()))
			current = next
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			discard(resp)
			return nil, nil, domain.NewHTTPStatusError(resp.StatusCode, current.String())
		}
		return resp, current, nil
	}
}

// stream copies body to w chunk by chunk and returns the bytes received
func (p *Pipeline) stream(ctx context.Context, body io.Reader, w port.TempFile, total int64, obs Observer, watchdog *time.Timer) (int64, error) {
	buf := make([]byte, p.config.ChunkSize)
	var received int64

	for {
		if ie := interruption(ctx); ie != nil {
			return received, ie
		}

		n, readErr := body.Read(buf)
		if n > 0 {
			watchdog.Reset(p.config.IdleTimeout)
			if total > 0 && received+int64(n) > total {
				return received, domain.NewTransportError("read body", domain.ErrBodyOverrun)
			}
			received += int64(n)
			obs.OnProgress(domain.DownloadProgress{Received: received, Total: total})

			if _, err := w.Write(buf[:n]); err != nil {
				return received, domain.NewFilesystemError("write", w.Path(), err)
			}
		}

		if errors.Is(readErr, io.EOF) {
			return received, nil
		}
		if readErr != nil {
			if ie := interruption(ctx); ie != nil {
				return received, ie
			}
			return received, domain.NewTransportError("read body", readErr)
		}
	}
}

func (p *Pipeline) checkSpace(total int64) error {
	if total <= 0 {
		return nil
	}
	usage, err := p.fs.GetDiskUsage()
	if err != nil {
		p.logger.Warn("disk usage unavailable, skipping space check", zap.Error(err))
		return nil
	}
	if usage.Free < uint64(total) {
		return domain.NewFilesystemError("check space", p.fs.RootDir(),
			fmt.Errorf("%w: need %d bytes, %d free", domain.ErrInsufficientSpace, total, usage.Free))
	}
	return nil
}

// interruption maps a cancelled download context to its terminal error
func interruption(ctx context.Context) error {
	if ctx.Err() == nil {
		return nil
	}
	cause := context.Cause(ctx)
	switch {
	case errors.Is(cause, domain.ErrIdleTimeout):
		return domain.NewTransportError("idle", domain.ErrIdleTimeout)
	case errors.Is(cause, context.DeadlineExceeded):
		return domain.NewTransportError("deadline", cause)
	default:
		return domain.ErrCancelled
	}
}

func parseHTTPURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("missing host in %q", raw)
	}
	return u, nil
}

// discard drains a little of an unused body so the connection can be reused
func discard(resp *http.Response) {
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
	resp.Body.Close()
}
