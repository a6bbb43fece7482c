package orchestrator

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vertextoedge/localai-desktop/internal/domain"
	"github.com/vertextoedge/localai-desktop/internal/domain/event"
	"github.com/vertextoedge/localai-desktop/internal/port"
	"github.com/vertextoedge/localai-desktop/internal/service/downloader"
	"github.com/vertextoedge/localai-desktop/internal/util/ratelimiter"
)

// persistTimeout bounds history writes, which outlive a cancelled download
const persistTimeout = 5 * time.Second

// Detector reports whether the engine is installed
type Detector interface {
	Detect(ctx context.Context) domain.DetectionResult
}

// Downloader fetches one URL to disk
type Downloader interface {
	Download(ctx context.Context, url string, obs downloader.Observer) (string, error)
}

// Config holds orchestrator configuration
type Config struct {
	DefaultURL      string
	WindowsURL      string
	Binary          string // process name for EngineStatus
	GOOS            string // defaults to runtime.GOOS
	PersistInterval time.Duration
}

// Snapshot is the observable state of the current or last download
type Snapshot struct {
	Status        domain.AcquisitionStatus `json:"status" msgpack:"status"`
	AcquisitionID string                   `json:"acquisition_id,omitempty" msgpack:"acquisition_id,omitempty"`
	URL           string                   `json:"url,omitempty" msgpack:"url,omitempty"`
	Progress      domain.DownloadProgress  `json:"progress" msgpack:"progress"`
	Percent       int                      `json:"percent" msgpack:"percent"`
	Path          string                   `json:"path,omitempty" msgpack:"path,omitempty"`
	Error         string                   `json:"error,omitempty" msgpack:"error,omitempty"`
	ErrorKind     string                   `json:"error_kind,omitempty" msgpack:"error_kind,omitempty"`
}

// Dependencies groups the collaborators of an Orchestrator
type Dependencies struct {
	Locator  Detector
	Pipeline Downloader
	Repo     port.AcquisitionRepository
	Procs    port.ProcessProbe
	Desktop  port.Desktop
	Events   event.Publisher
}

// Orchestrator sequences detection, the user's decision and the download.
// It owns at most one download session at a time.
type Orchestrator struct {
	deps   Dependencies
	config Config
	logger *zap.Logger
	newID  func() string

	mu     sync.Mutex
	state  Snapshot
	cancel context.CancelFunc
}

// New creates a new Orchestrator
func New(deps Dependencies, cfg Config, logger *zap.Logger) *Orchestrator {
	if cfg.GOOS == "" {
		cfg.GOOS = runtime.GOOS
	}
	if deps.Events == nil {
		deps.Events = event.NewNullDispatcher()
	}
	return &Orchestrator{
		deps:   deps,
		config: cfg,
		logger: logger,
		newID:  uuid.NewString,
		state:  Snapshot{Status: domain.StatusIdle},
	}
}

// InstallerURL returns the installer URL for this platform
func (o *Orchestrator) InstallerURL() string {
	if o.config.GOOS == "windows" {
		return o.config.WindowsURL
	}
	return o.config.DefaultURL
}

// CheckInstallation runs the locator and publishes the result
func (o *Orchestrator) CheckInstallation(ctx context.Context) domain.DetectionResult {
	result := o.deps.Locator.Detect(ctx)
	o.deps.Events.Dispatch(event.NewEngineDetected(result))
	return result
}

// EngineStatus reports detection plus running engine processes
func (o *Orchestrator) EngineStatus(ctx context.Context) domain.EngineStatus {
	status := domain.EngineStatus{Detection: o.CheckInstallation(ctx)}
	if o.deps.Procs == nil {
		return status
	}

	procs, err := o.deps.Procs.FindByName(ctx, o.config.Binary)
	if err != nil {
		o.logger.Warn("failed to list engine processes", zap.Error(err))
		return status
	}
	for _, p := range procs {
		status.PIDs = append(status.PIDs, p.PID)
	}
	status.Running = len(status.PIDs) > 0
	return status
}

// History lists recent acquisitions, newest first
func (o *Orchestrator) History(ctx context.Context, limit int) ([]*domain.Acquisition, error) {
	if o.deps.Repo == nil {
		return nil, nil
	}
	return o.deps.Repo.ListRecent(ctx, limit)
}

// State returns a copy of the current session state
func (o *Orchestrator) State() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	s := o.state
	s.Percent = s.Progress.Percent()
	return s
}

// Cancel aborts the in-flight download and reports whether one was active
func (o *Orchestrator) Cancel() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.state.Status.IsActive() || o.cancel == nil {
		return false
	}
	o.cancel()
	return true
}

// RequestDownload downloads the platform installer. Events for the session
// are published on the calling goroutine and the terminal event is always
// the last one. A second call while a session is active returns
// domain.ErrDownloadInProgress without waiting.
func (o *Orchestrator) RequestDownload(ctx context.Context) (path string, err error) {
	o.mu.Lock()
	if o.state.Status.IsActive() {
		o.mu.Unlock()
		return "", domain.ErrDownloadInProgress
	}
	acq := domain.NewAcquisition(o.newID(), o.InstallerURL())
	dctx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	o.state = Snapshot{Status: domain.StatusRequested, AcquisitionID: acq.ID, URL: acq.URL}
	o.mu.Unlock()
	defer cancel()

	o.persist(ctx, func(ctx context.Context, repo port.AcquisitionRepository) error {
		return repo.Create(ctx, acq)
	})
	o.deps.Events.Dispatch(event.NewDownloadRequested(acq.ID, acq.URL))

	path, err = o.runPipeline(dctx, acq)
	o.finish(ctx, acq, path, err)
	return path, err
}

func (o *Orchestrator) runPipeline(ctx context.Context, acq *domain.Acquisition) (path string, err error) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("download pipeline panicked", zap.Any("panic", r))
			path, err = "", fmt.Errorf("internal error: %v", r)
		}
	}()

	limiter := ratelimiter.New(o.config.PersistInterval)
	obs := downloader.ObserverFuncs{
		Response: func(total int64, finalURL string) {
			if err := acq.MarkInProgress(finalURL, total); err != nil {
				o.logger.Warn("unexpected response callback", zap.Error(err))
				return
			}
			o.mu.Lock()
			o.state.Status = domain.StatusInProgress
			o.state.Progress = domain.DownloadProgress{Total: total}
			o.mu.Unlock()

			o.persist(ctx, func(ctx context.Context, repo port.AcquisitionRepository) error {
				return repo.Update(ctx, acq)
			})
			o.deps.Events.Dispatch(event.NewDownloadStarted(acq.ID, finalURL, total))
		},
		Progress: func(p domain.DownloadProgress) {
			acq.UpdateProgress(p)
			o.mu.Lock()
			o.state.Progress = p
			o.mu.Unlock()

			o.deps.Events.Dispatch(event.NewDownloadProgressed(acq.ID, p))
			if ok, _ := limiter.Allow(); ok {
				o.persist(ctx, func(ctx context.Context, repo port.AcquisitionRepository) error {
					return repo.UpdateProgress(ctx, acq.ID, acq.BytesReceived, acq.BytesTotal)
				})
			}
		},
	}

	return o.deps.Pipeline.Download(ctx, acq.URL, obs)
}

func (o *Orchestrator) finish(ctx context.Context, acq *domain.Acquisition, path string, err error) {
	var ev event.DomainEvent
	switch {
	case err == nil:
		if acq.Status == domain.StatusRequested {
			// Pipeline finished without reporting a response
			acq.MarkInProgress(acq.URL, acq.BytesReceived)
		}
		acq.MarkCompleted(path, acq.BytesReceived)
		ev = event.NewDownloadCompleted(acq.ID, path, acq.BytesReceived, acq.Duration())
	case domain.IsCancelled(err):
		acq.MarkCancelled()
		ev = event.NewDownloadCancelled(acq.ID, acq.BytesReceived)
	default:
		acq.MarkFailed(err.Error())
		ev = event.NewDownloadFailed(acq.ID, err)
	}

	o.mu.Lock()
	o.cancel = nil
	o.state.Status = acq.Status
	o.state.Path = acq.Path
	if err != nil && !domain.IsCancelled(err) {
		o.state.Error = err.Error()
		o.state.ErrorKind = domain.Kind(err)
	}
	o.mu.Unlock()

	o.persist(ctx, func(ctx context.Context, repo port.AcquisitionRepository) error {
		return repo.Update(ctx, acq)
	})
	o.deps.Events.Dispatch(ev)
}

// persist runs fn against the repository; failures are logged, never returned
func (o *Orchestrator) persist(ctx context.Context, fn func(context.Context, port.AcquisitionRepository) error) {
	if o.deps.Repo == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := fn(ctx, o.deps.Repo); err != nil {
		o.logger.Warn("failed to persist acquisition", zap.Error(err))
	}
}

// PromptIfMissing checks the installation and, when the engine is absent,
// lets prompter choose between opening the download page, downloading
// in-process, or doing nothing
func (o *Orchestrator) PromptIfMissing(ctx context.Context, prompter port.Prompter) error {
	if result := o.CheckInstallation(ctx); result.Found {
		return nil
	}

	action, err := prompter.ChooseMissingEngineAction(ctx)
	if err != nil {
		return fmt.Errorf("prompt failed: %w", err)
	}

	switch action {
	case port.ActionOpenPage:
		if err := o.deps.Desktop.OpenURL(ctx, o.config.DefaultURL); err != nil {
			return fmt.Errorf("open download page: %w", err)
		}
		return nil

	case port.ActionDownload:
		path, err := o.RequestDownload(ctx)
		if err != nil {
			if !domain.IsCancelled(err) {
				prompter.NotifyError(ctx, err)
			}
			return nil
		}
		reveal, err := prompter.ConfirmReveal(ctx, path)
		if err != nil {
			return fmt.Errorf("prompt failed: %w", err)
		}
		if reveal {
			if err := o.deps.Desktop.RevealFile(ctx, path); err != nil {
				return fmt.Errorf("reveal installer: %w", err)
			}
		}
		return nil

	case port.ActionCancel, "":
		return nil

	default:
		return fmt.Errorf("unknown action %q: %w", action, domain.ErrInvalidInput)
	}
}
