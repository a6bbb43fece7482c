package downloader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/vertextoedge/localai-desktop/internal/adapter/filesystem"
	"github.com/vertextoedge/localai-desktop/internal/domain"
	"github.com/vertextoedge/localai-desktop/internal/port"
)

// recorder collects observer callbacks
type recorder struct {
	mu        sync.Mutex
	responses int
	total     int64
	finalURL  string
	progress  []domain.DownloadProgress
	onFirst   func()
}

func (r *recorder) OnResponse(total int64, finalURL string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses++
	r.total = total
	r.finalURL = finalURL
}

func (r *recorder) OnProgress(p domain.DownloadProgress) {
	r.mu.Lock()
	r.progress = append(r.progress, p)
	first := len(r.progress) == 1
	r.mu.Unlock()
	if first && r.onFirst != nil {
		r.onFirst()
	}
}

func newTestPipeline(t *testing.T, cfg Config) (*Pipeline, *filesystem.Manager) {
	t.Helper()
	fs, err := filesystem.NewManager(filepath.Join(t.TempDir(), "downloads"))
	if err != nil {
		t.Fatal(err)
	}
	return New(fs, cfg, zap.NewNop()), fs
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.Name()
		}
		t.Errorf("downloads dir should be empty, found %v", names)
	}
}

// chunkedHandler writes size bytes in chunks of step, flushing after each
func chunkedHandler(size, step int, declareLength bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if declareLength {
			w.Header().Set("Content-Length", strconv.Itoa(size))
		}
		w.WriteHeader(http.StatusOK)
		chunk := bytes.Repeat([]byte("x"), step)
		for sent := 0; sent < size; sent += step {
			w.Write(chunk[:min(step, size-sent)])
			w.(http.Flusher).Flush()
		}
	}
}

func TestPipeline_DownloadWithContentLength(t *testing.T) {
	srv := httptest.NewServer(chunkedHandler(1000, 100, true))
	defer srv.Close()

	p, fs := newTestPipeline(t, Config{UserAgent: "test"})
	rec := &recorder{}

	got, err := p.Download(context.Background(), srv.URL+"/files/OllamaSetup.exe", rec)
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if want := filepath.Join(fs.RootDir(), "OllamaSetup.exe"); got != want {
		t.Errorf("Download() = %s, want %s", got, want)
	}

	if rec.responses != 1 || rec.total != 1000 {
		t.Errorf("OnResponse calls = %d total = %d", rec.responses, rec.total)
	}
	if len(rec.progress) == 0 {
		t.Fatal("expected progress events")
	}
	var last int64
	for i, ev := range rec.progress {
		if ev.Received < last {
			t.Errorf("event %d: received decreased %d -> %d", i, last, ev.Received)
		}
		if ev.Total != 1000 {
			t.Errorf("event %d: total = %d, want 1000", i, ev.Total)
		}
		if ev.Received > ev.Total {
			t.Errorf("event %d: received %d exceeds total", i, ev.Received)
		}
		last = ev.Received
	}
	if last != 1000 {
		t.Errorf("final received = %d, want 1000", last)
	}

	info, err := os.Stat(got)
	if err != nil || info.Size() != 1000 {
		t.Errorf("file size = %v, %v; want 1000", info, err)
	}
	if fs.FileExists(got + port.TempSuffix) {
		t.Error("temp file should be renamed away")
	}
}

func TestPipeline_UnknownLength(t *testing.T) {
	srv := httptest.NewServer(chunkedHandler(500, 50, false))
	defer srv.Close()

	p, _ := newTestPipeline(t, Config{})
	rec := &recorder{}

	if _, err := p.Download(context.Background(), srv.URL+"/x.bin", rec); err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if rec.total != 0 {
		t.Errorf("OnResponse total = %d, want 0", rec.total)
	}
	for i, ev := range rec.progress {
		if ev.Total != 0 {
			t.Errorf("event %d: total = %d, want 0", i, ev.Total)
		}
	}
	if n := len(rec.progress); n == 0 || rec.progress[n-1].Received != 500 {
		t.Errorf("final progress = %v", rec.progress)
	}
}

func hopServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/hop/{n}/{file}", func(w http.ResponseWriter, r *http.Request) {
		n, err := strconv.Atoi(r.PathValue("n"))
		if err != nil {
			http.Error(w, "bad hop", http.StatusBadRequest)
			return
		}
		if n > 0 {
			// relative Location exercises resolution against the current URL
			http.Redirect(w, r, fmt.Sprintf("../%d/%s", n-1, r.PathValue("file")), http.StatusFound)
			return
		}
		w.Header().Set("Content-Length", "3")
		w.Write([]byte("abc"))
	})
	return httptest.NewServer(mux)
}

func TestPipeline_Redirects(t *testing.T) {
	srv := hopServer(t)
	defer srv.Close()

	tests := []struct {
		name     string
		hops     int
		wantLoop bool
	}{
		{"no redirect", 0, false},
		{"five redirects", 5, false},
		{"six redirects", 6, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, fs := newTestPipeline(t, Config{MaxRedirects: 5})
			rec := &recorder{}

			got, err := p.Download(context.Background(), fmt.Sprintf("%s/hop/%d/OllamaSetup.exe", srv.URL, tt.hops), rec)
			if tt.wantLoop {
				if !domain.IsRedirectLoop(err) {
					t.Fatalf("Download() error = %v, want RedirectLoopError", err)
				}
				if got := domain.Kind(err); got != domain.KindRedirectLoop {
					t.Errorf("Kind() = %s", got)
				}
				assertEmptyDir(t, fs.RootDir())
				return
			}
			if err != nil {
				t.Fatalf("Download() error = %v", err)
			}
			if filepath.Base(got) != "OllamaSetup.exe" {
				t.Errorf("destination = %s", got)
			}
			if !strings.HasSuffix(rec.finalURL, "/hop/0/OllamaSetup.exe") {
				t.Errorf("finalURL = %s", rec.finalURL)
			}
		})
	}
}

func TestPipeline_HTTPStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	p, fs := newTestPipeline(t, Config{})
	rec := &recorder{}

	_, err := p.Download(context.Background(), srv.URL+"/missing.exe", rec)
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("Download() error = %v, want mention of 404", err)
	}
	if code, ok := domain.GetStatusCode(err); !ok || code != http.StatusNotFound {
		t.Errorf("GetStatusCode() = %d, %v", code, ok)
	}
	if rec.responses != 0 || len(rec.progress) != 0 {
		t.Error("no callbacks expected for an error status")
	}
	assertEmptyDir(t, fs.RootDir())
}

func TestPipeline_RedirectWithoutLocation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusMovedPermanently)
	}))
	defer srv.Close()

	p, _ := newTestPipeline(t, Config{})
	_, err := p.Download(context.Background(), srv.URL+"/x", nil)
	if code, ok := domain.GetStatusCode(err); !ok || code != http.StatusMovedPermanently {
		t.Errorf("Download() error = %v, want HTTPStatusError 301", err)
	}
}

// failingFS fails temp writes past a byte limit
type failingFS struct {
	*filesystem.Manager
	limit int64
	free  uint64
}

func (f *failingFS) CreateTemp(dest string) (port.TempFile, error) {
	tf, err := f.Manager.CreateTemp(dest)
	if err != nil {
		return nil, err
	}
	return &failingTemp{TempFile: tf, limit: f.limit}, nil
}

func (f *failingFS) GetDiskUsage() (*port.DiskUsage, error) {
	if f.free > 0 {
		return &port.DiskUsage{Total: f.free * 2, Free: f.free}, nil
	}
	return f.Manager.GetDiskUsage()
}

type failingTemp struct {
	port.TempFile
	limit   int64
	written int64
}

func (t *failingTemp) Write(p []byte) (int, error) {
	if t.limit > 0 && t.written+int64(len(p)) > t.limit {
		return 0, errors.New("no space left on device")
	}
	t.written += int64(len(p))
	return t.TempFile.Write(p)
}

func TestPipeline_WriteFailureCleansUp(t *testing.T) {
	srv := httptest.NewServer(chunkedHandler(1000, 100, true))
	defer srv.Close()

	m, err := filesystem.NewManager(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	p := New(&failingFS{Manager: m, limit: 400}, Config{}, zap.NewNop())

	_, err = p.Download(context.Background(), srv.URL+"/OllamaSetup.exe", nil)
	if !domain.IsFilesystem(err) {
		t.Fatalf("Download() error = %v, want FilesystemError", err)
	}
	assertEmptyDir(t, m.RootDir())
}

func TestPipeline_InsufficientSpace(t *testing.T) {
	srv := httptest.NewServer(chunkedHandler(1000, 100, true))
	defer srv.Close()

	m, err := filesystem.NewManager(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	p := New(&failingFS{Manager: m, free: 10}, Config{}, zap.NewNop())
	rec := &recorder{}

	_, err = p.Download(context.Background(), srv.URL+"/OllamaSetup.exe", rec)
	if !domain.IsFilesystem(err) || !errors.Is(err, domain.ErrInsufficientSpace) {
		t.Fatalf("Download() error = %v, want insufficient space", err)
	}
	if rec.responses != 0 {
		t.Error("OnResponse should not fire when space check fails")
	}
	assertEmptyDir(t, m.RootDir())
}

// stallingHandler sends head bytes then waits for the client to go away
func stallingHandler(head int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1000")
		w.WriteHeader(http.StatusOK)
		w.Write(bytes.Repeat([]byte("x"), head))
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}
}

func TestPipeline_CancelMidStream(t *testing.T) {
	srv := httptest.NewServer(stallingHandler(100))
	defer srv.Close()

	p, fs := newTestPipeline(t, Config{IdleTimeout: 5 * time.Second})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rec := &recorder{onFirst: cancel}

	_, err := p.Download(ctx, srv.URL+"/OllamaSetup.exe", rec)
	if !errors.Is(err, domain.ErrCancelled) {
		t.Fatalf("Download() error = %v, want ErrCancelled", err)
	}
	if domain.Kind(err) != domain.KindCancelled {
		t.Errorf("Kind() = %s", domain.Kind(err))
	}
	assertEmptyDir(t, fs.RootDir())
}

func TestPipeline_IdleTimeout(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"stall mid body", stallingHandler(100)},
		{"stall before headers", func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(5 * time.Second):
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			p, fs := newTestPipeline(t, Config{IdleTimeout: 150 * time.Millisecond})
			start := time.Now()
			_, err := p.Download(context.Background(), srv.URL+"/OllamaSetup.exe", nil)
			if !domain.IsTransport(err) || !errors.Is(err, domain.ErrIdleTimeout) {
				t.Fatalf("Download() error = %v, want idle TransportError", err)
			}
			if elapsed := time.Since(start); elapsed > 3*time.Second {
				t.Errorf("idle timeout took %v", elapsed)
			}
			assertEmptyDir(t, fs.RootDir())
		})
	}
}

func TestPipeline_RequestErrors(t *testing.T) {
	closed := httptest.NewServer(http.NotFoundHandler())
	closedURL := closed.URL
	closed.Close()

	tests := []struct {
		name string
		url  string
	}{
		{"unsupported scheme", "ftp://example.com/OllamaSetup.exe"},
		{"malformed", "http://[::1"},
		{"missing host", "https:///path"},
		{"connection refused", closedURL + "/OllamaSetup.exe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, fs := newTestPipeline(t, Config{IdleTimeout: 2 * time.Second})
			_, err := p.Download(context.Background(), tt.url, nil)
			if !domain.IsTransport(err) {
				t.Fatalf("Download() error = %v, want TransportError", err)
			}
			assertEmptyDir(t, fs.RootDir())
		})
	}
}

func TestPipeline_SendsUserAgent(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	p, _ := newTestPipeline(t, Config{UserAgent: "localai-desktop/1.0.0"})
	if _, err := p.Download(context.Background(), srv.URL+"/a", nil); err != nil {
		t.Fatal(err)
	}
	if got != "localai-desktop/1.0.0" {
		t.Errorf("User-Agent = %q", got)
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func TestPipeline_BodyLongerThanContentLength(t *testing.T) {
	transport := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode:    http.StatusOK,
			Header:        make(http.Header),
			ContentLength: 10,
			Body:          io.NopCloser(strings.NewReader(strings.Repeat("y", 25))),
			Request:       req,
		}, nil
	})

	p, fs := newTestPipeline(t, Config{ChunkSize: 8, Transport: transport})
	rec := &recorder{}

	_, err := p.Download(context.Background(), "https://example.com/OllamaSetup.exe", rec)
	if !domain.IsTransport(err) || !errors.Is(err, domain.ErrBodyOverrun) {
		t.Fatalf("Download() error = %v, want TransportError wrapping ErrBodyOverrun", err)
	}
	for i, ev := range rec.progress {
		if ev.Received > ev.Total {
			t.Errorf("event %d: received %d exceeds total %d", i, ev.Received, ev.Total)
		}
	}
	if len(rec.progress) != 1 || rec.progress[0].Received != 8 {
		t.Errorf("progress = %v, want one event at 8 bytes", rec.progress)
	}
	assertEmptyDir(t, fs.RootDir())
}

func TestFileName(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"https://ollama.com/download/OllamaSetup.exe", "OllamaSetup.exe"},
		{"https://ollama.com/download", "download"},
		{"https://ollama.com/", FallbackFileName},
		{"https://ollama.com", FallbackFileName},
		{"https://ollama.com/files/Ollama%20Setup.exe?x=1", "Ollama Setup.exe"},
		{"https://ollama.com/files/", "files"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			u, err := url.Parse(tt.raw)
			if err != nil {
				t.Fatal(err)
			}
			if got := FileName(u); got != tt.want {
				t.Errorf("FileName(%s) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}
