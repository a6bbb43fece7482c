package event

import (
	"time"

	"github.com/vertextoedge/localai-desktop/internal/domain"
)

// Event names
const (
	NameEngineDetected     = "engine.detected"
	NameDownloadRequested  = "download.requested"
	NameDownloadStarted    = "download.started"
	NameDownloadProgressed = "download.progress"
	NameDownloadCompleted  = "download.completed"
	NameDownloadFailed     = "download.failed"
	NameDownloadCancelled  = "download.cancelled"

	// NameAll subscribes a handler to every event
	NameAll = "*"
)

// DomainEvent is the interface for all domain events
type DomainEvent interface {
	// EventName returns the name of the event
	EventName() string
	// OccurredAt returns when the event occurred
	OccurredAt() time.Time
}

// BaseEvent provides common fields for all events
type BaseEvent struct {
	Timestamp time.Time
}

// OccurredAt returns when the event occurred
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

func now() BaseEvent {
	return BaseEvent{Timestamp: time.Now()}
}

// EngineDetected is raised after every installation check
type EngineDetected struct {
	BaseEvent
	Result domain.DetectionResult
}

// EventName returns the event name
func (e EngineDetected) EventName() string {
	return NameEngineDetected
}

// NewEngineDetected creates a new EngineDetected event
func NewEngineDetected(result domain.DetectionResult) EngineDetected {
	return EngineDetected{BaseEvent: now(), Result: result}
}

// DownloadRequested is raised when a download session is created
type DownloadRequested struct {
	BaseEvent
	AcquisitionID string
	URL           string
}

// EventName returns the event name
func (e DownloadRequested) EventName() string {
	return NameDownloadRequested
}

// NewDownloadRequested creates a new DownloadRequested event
func NewDownloadRequested(id, url string) DownloadRequested {
	return DownloadRequested{BaseEvent: now(), AcquisitionID: id, URL: url}
}

// DownloadStarted is raised when the final (non-redirect) response arrives
type DownloadStarted struct {
	BaseEvent
	AcquisitionID string
	FinalURL      string
	Total         int64
}

// EventName returns the event name
func (e DownloadStarted) EventName() string {
	return NameDownloadStarted
}

// NewDownloadStarted creates a new DownloadStarted event
func NewDownloadStarted(id, finalURL string, total int64) DownloadStarted {
	return DownloadStarted{BaseEvent: now(), AcquisitionID: id, FinalURL: finalURL, Total: total}
}

// DownloadProgressed is raised for every received chunk
type DownloadProgressed struct {
	BaseEvent
	AcquisitionID string
	Progress      domain.DownloadProgress
}

// EventName returns the event name
func (e DownloadProgressed) EventName() string {
	return NameDownloadProgressed
}

// NewDownloadProgressed creates a new DownloadProgressed event
func NewDownloadProgressed(id string, p domain.DownloadProgress) DownloadProgressed {
	return DownloadProgressed{BaseEvent: now(), AcquisitionID: id, Progress: p}
}

// DownloadCompleted is raised once when the installer is on disk
type DownloadCompleted struct {
	BaseEvent
	AcquisitionID string
	Path          string
	Size          int64
	Duration      time.Duration
}

// EventName returns the event name
func (e DownloadCompleted) EventName() string {
	return NameDownloadCompleted
}

// NewDownloadCompleted creates a new DownloadCompleted event
func NewDownloadCompleted(id, path string, size int64, duration time.Duration) DownloadCompleted {
	return DownloadCompleted{BaseEvent: now(), AcquisitionID: id, Path: path, Size: size, Duration: duration}
}

// DownloadFailed is raised once when a download terminates with an error
type DownloadFailed struct {
	BaseEvent
	AcquisitionID string
	Error         string
	Kind          string
}

// EventName returns the event name
func (e DownloadFailed) EventName() string {
	return NameDownloadFailed
}

// NewDownloadFailed creates a new DownloadFailed event
func NewDownloadFailed(id string, err error) DownloadFailed {
	return DownloadFailed{BaseEvent: now(), AcquisitionID: id, Error: err.Error(), Kind: domain.Kind(err)}
}

// DownloadCancelled is raised once when a download is cancelled
type DownloadCancelled struct {
	BaseEvent
	AcquisitionID string
	Received      int64
}

// EventName returns the event name
func (e DownloadCancelled) EventName() string {
	return NameDownloadCancelled
}

// NewDownloadCancelled creates a new DownloadCancelled event
func NewDownloadCancelled(id string, received int64) DownloadCancelled {
	return DownloadCancelled{BaseEvent: now(), AcquisitionID: id, Received: received}
}

// IsTerminal reports whether ev ends a download session
func IsTerminal(ev DomainEvent) bool {
	switch ev.EventName() {
	case NameDownloadCompleted, NameDownloadFailed, NameDownloadCancelled:
		return true
	}
	return false
}

// DownloadEvents lists every download lifecycle event name
func DownloadEvents() []string {
	return []string{
		NameDownloadRequested,
		NameDownloadStarted,
		NameDownloadProgressed,
		NameDownloadCompleted,
		NameDownloadFailed,
		NameDownloadCancelled,
	}
}
