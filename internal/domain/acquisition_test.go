package domain

import (
	"errors"
	"testing"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from AcquisitionStatus
		to   AcquisitionStatus
		want bool
	}{
		{StatusIdle, StatusRequested, true},
		{StatusRequested, StatusInProgress, true},
		{StatusInProgress, StatusCompleted, true},
		{StatusInProgress, StatusFailed, true},
		{StatusInProgress, StatusCancelled, true},
		{StatusRequested, StatusFailed, true},
		{StatusRequested, StatusCancelled, true},
		{StatusCompleted, StatusRequested, true},
		{StatusFailed, StatusRequested, true},
		{StatusCancelled, StatusRequested, true},

		{StatusIdle, StatusInProgress, false},
		{StatusRequested, StatusCompleted, false},
		{StatusInProgress, StatusRequested, false},
		{StatusCompleted, StatusFailed, false},
		{StatusFailed, StatusCompleted, false},
		{StatusIdle, StatusIdle, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestAcquisition_Lifecycle(t *testing.T) {
	a := NewAcquisition("id-1", "https://example.com/OllamaSetup.exe")
	if a.Status != StatusRequested {
		t.Fatalf("Status = %s, want %s", a.Status, StatusRequested)
	}

	if err := a.MarkCompleted("/x", 1); !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("MarkCompleted from requested: err = %v, want ErrInvalidStateTransition", err)
	}

	if err := a.MarkInProgress("https://cdn.example.com/OllamaSetup.exe", 1000); err != nil {
		t.Fatalf("MarkInProgress() error = %v", err)
	}
	if a.FinalURL != "https://cdn.example.com/OllamaSetup.exe" || a.BytesTotal != 1000 {
		t.Errorf("MarkInProgress did not record response: %+v", a)
	}

	a.UpdateProgress(DownloadProgress{Received: 600, Total: 1000})
	a.UpdateProgress(DownloadProgress{Received: 400, Total: 1000})
	if a.BytesReceived != 600 {
		t.Errorf("BytesReceived = %d, want 600 (never decreases)", a.BytesReceived)
	}

	if err := a.MarkCompleted("/downloads/OllamaSetup.exe", 1000); err != nil {
		t.Fatalf("MarkCompleted() error = %v", err)
	}
	if a.FinishedAt == nil {
		t.Error("FinishedAt should be set on terminal state")
	}
	if a.BytesReceived != 1000 {
		t.Errorf("BytesReceived = %d, want 1000", a.BytesReceived)
	}
	if err := a.MarkFailed("late"); !errors.Is(err, ErrInvalidStateTransition) {
		t.Errorf("MarkFailed after completion: err = %v, want ErrInvalidStateTransition", err)
	}
}

func TestAcquisition_FailBeforeResponse(t *testing.T) {
	a := NewAcquisition("id-2", "https://example.com/x")
	if err := a.MarkFailed("dial tcp: refused"); err != nil {
		t.Fatalf("MarkFailed() error = %v", err)
	}
	if a.Status != StatusFailed || a.LastError != "dial tcp: refused" {
		t.Errorf("unexpected acquisition state: %+v", a)
	}
}

func TestDownloadProgress_Percent(t *testing.T) {
	tests := []struct {
		name string
		p    DownloadProgress
		want int
		done bool
	}{
		{"unknown total", DownloadProgress{Received: 500, Total: 0}, 0, false},
		{"nothing yet", DownloadProgress{Received: 0, Total: 1000}, 0, false},
		{"half", DownloadProgress{Received: 500, Total: 1000}, 50, false},
		{"complete", DownloadProgress{Received: 1000, Total: 1000}, 100, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p.Percent(); got != tt.want {
				t.Errorf("Percent() = %d, want %d", got, tt.want)
			}
			if got := tt.p.Done(); got != tt.done {
				t.Errorf("Done() = %v, want %v", got, tt.done)
			}
		})
	}
}
