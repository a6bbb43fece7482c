package domain

import "time"

// AcquisitionStatus is the lifecycle state of one installer download
type AcquisitionStatus string

// Acquisition status constants
const (
	StatusIdle       AcquisitionStatus = "idle"
	StatusRequested  AcquisitionStatus = "requested"
	StatusInProgress AcquisitionStatus = "in_progress"
	StatusCompleted  AcquisitionStatus = "completed"
	StatusFailed     AcquisitionStatus = "failed"
	StatusCancelled  AcquisitionStatus = "cancelled"
)

// InterruptedReason is recorded for acquisitions whose process exited mid-download
const InterruptedReason = "interrupted: process exited before the download finished"

// IsTerminal reports whether no further transition is expected
func (s AcquisitionStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// IsActive reports whether a download session is alive in this state
func (s AcquisitionStatus) IsActive() bool {
	return s == StatusRequested || s == StatusInProgress
}

// CanTransition reports whether from -> to is a legal lifecycle step.
// Idle and every terminal state may start a new request.
func CanTransition(from, to AcquisitionStatus) bool {
	switch to {
	case StatusRequested:
		return from == StatusIdle || from.IsTerminal()
	case StatusInProgress:
		return from == StatusRequested
	case StatusCompleted:
		return from == StatusInProgress
	case StatusFailed, StatusCancelled:
		return from.IsActive()
	}
	return false
}

// Acquisition is the history record of one requested installer download.
// It records outcomes only and is never used to resume a session.
type Acquisition struct {
	ID       string
	URL      string
	FinalURL string
	Path     string

	Status        AcquisitionStatus
	BytesReceived int64
	BytesTotal    int64
	LastError     string

	StartedAt  time.Time
	FinishedAt *time.Time
	UpdatedAt  time.Time
}

// NewAcquisition creates a requested acquisition for url
func NewAcquisition(id, url string) *Acquisition {
	now := time.Now()
	return &Acquisition{
		ID:        id,
		URL:       url,
		Status:    StatusRequested,
		StartedAt: now,
		UpdatedAt: now,
	}
}

func (a *Acquisition) transition(to AcquisitionStatus) error {
	if !CanTransition(a.Status, to) {
		return ErrInvalidStateTransition
	}
	a.Status = to
	a.UpdatedAt = time.Now()
	if to.IsTerminal() {
		now := a.UpdatedAt
		a.FinishedAt = &now
	}
	return nil
}

// MarkInProgress records the first successful response
func (a *Acquisition) MarkInProgress(finalURL string, total int64) error {
	if err := a.transition(StatusInProgress); err != nil {
		return err
	}
	a.FinalURL = finalURL
	a.BytesTotal = total
	return nil
}

// UpdateProgress records received bytes; received never decreases
func (a *Acquisition) UpdateProgress(p DownloadProgress) {
	if p.Received > a.BytesReceived {
		a.BytesReceived = p.Received
	}
	if a.BytesTotal == 0 && p.Total > 0 {
		a.BytesTotal = p.Total
	}
	a.UpdatedAt = time.Now()
}

// MarkCompleted records the final destination path
func (a *Acquisition) MarkCompleted(path string, size int64) error {
	if err := a.transition(StatusCompleted); err != nil {
		return err
	}
	a.Path = path
	if size > a.BytesReceived {
		a.BytesReceived = size
	}
	return nil
}

// MarkFailed records a terminal failure. Failure before any response is
// allowed, so Requested may fail directly.
func (a *Acquisition) MarkFailed(errMsg string) error {
	if err := a.transition(StatusFailed); err != nil {
		return err
	}
	a.LastError = errMsg
	return nil
}

// MarkCancelled records a user cancellation
func (a *Acquisition) MarkCancelled() error {
	return a.transition(StatusCancelled)
}

// Duration returns how long the acquisition ran, or ran so far
func (a *Acquisition) Duration() time.Duration {
	if a.FinishedAt != nil {
		return a.FinishedAt.Sub(a.StartedAt)
	}
	return time.Since(a.StartedAt)
}
