package port

import (
	"context"

	"github.com/vertextoedge/localai-desktop/internal/domain"
)

// AcquisitionRepository persists the history of installer downloads
type AcquisitionRepository interface {
	// Create inserts a new acquisition
	// Returns domain.ErrAlreadyExists if the id is taken
	Create(ctx context.Context, a *domain.Acquisition) error

	// Update writes every mutable field of a
	// Returns domain.ErrNotFound if the row does not exist
	Update(ctx context.Context, a *domain.Acquisition) error

	// UpdateProgress writes only the byte counters
	UpdateProgress(ctx context.Context, id string, received, total int64) error

	// GetByID retrieves an acquisition
	// Returns domain.ErrNotFound if missing
	GetByID(ctx context.Context, id string) (*domain.Acquisition, error)

	// ListRecent returns acquisitions ordered newest first
	ListRecent(ctx context.Context, limit int) ([]*domain.Acquisition, error)

	// MarkInterrupted fails every requested or in_progress row with reason
	// Returns the number of rows changed
	MarkInterrupted(ctx context.Context, reason string) (int, error)

	// CountByStatus returns row counts per status
	CountByStatus(ctx context.Context) (map[domain.AcquisitionStatus]int, error)
}

// Store combines all repository interfaces
type Store interface {
	AcquisitionRepository

	// Close closes the database connection
	Close() error

	// Ping checks database connectivity
	Ping(ctx context.Context) error
}
