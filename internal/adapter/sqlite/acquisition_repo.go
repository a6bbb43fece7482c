package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/vertextoedge/localai-desktop/internal/domain"
)

const acquisitionColumns = `id, url, final_url, path, status, bytes_received, bytes_total,
	last_error, started_at, finished_at, updated_at`

// Create inserts a new acquisition
func (s *Store) Create(ctx context.Context, a *domain.Acquisition) error {
	if a.ID == "" || a.URL == "" {
		return domain.ErrInvalidInput
	}

	query := `
		INSERT INTO acquisitions (` + acquisitionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		a.ID, a.URL, nullString(a.FinalURL), nullString(a.Path), string(a.Status),
		a.BytesReceived, a.BytesTotal, nullString(a.LastError),
		a.StartedAt.UTC(), nullTime(a.FinishedAt), a.UpdatedAt.UTC())
	if err != nil {
		if isUniqueConstraintError(err) {
			return domain.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// Update writes every mutable field of a
func (s *Store) Update(ctx context.Context, a *domain.Acquisition) error {
	query := `
		UPDATE acquisitions
		SET final_url = ?, path = ?, status = ?, bytes_received = ?, bytes_total = ?,
			last_error = ?, finished_at = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		nullString(a.FinalURL), nullString(a.Path), string(a.Status),
		a.BytesReceived, a.BytesTotal, nullString(a.LastError),
		nullTime(a.FinishedAt), a.UpdatedAt.UTC(), a.ID)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// UpdateProgress writes only the byte counters
func (s *Store) UpdateProgress(ctx context.Context, id string, received, total int64) error {
	query := `
		UPDATE acquisitions
		SET bytes_received = ?, bytes_total = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := s.db.ExecContext(ctx, query, received, total, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// GetByID retrieves an acquisition
func (s *Store) GetByID(ctx context.Context, id string) (*domain.Acquisition, error) {
	query := `SELECT ` + acquisitionColumns + ` FROM acquisitions WHERE id = ?`

	a, err := scanAcquisition(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return a, err
}

// ListRecent returns acquisitions ordered newest first
func (s *Store) ListRecent(ctx context.Context, limit int) ([]*domain.Acquisition, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT ` + acquisitionColumns + ` FROM acquisitions ORDER BY rowid DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*domain.Acquisition
	for rows.Next() {
		a, err := scanAcquisition(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

// MarkInterrupted fails every requested or in_progress row with reason
func (s *Store) MarkInterrupted(ctx context.Context, reason string) (int, error) {
	now := time.Now().UTC()
	query := `
		UPDATE acquisitions
		SET status = ?, last_error = ?, finished_at = ?, updated_at = ?
		WHERE status IN (?, ?)
	`

	result, err := s.db.ExecContext(ctx, query,
		string(domain.StatusFailed), reason, now, now,
		string(domain.StatusRequested), string(domain.StatusInProgress))
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	return int(n), err
}

// CountByStatus returns row counts per status
func (s *Store) CountByStatus(ctx context.Context) (map[domain.AcquisitionStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM acquisitions GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.AcquisitionStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[domain.AcquisitionStatus(status)] = n
	}
	return counts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAcquisition(row rowScanner) (*domain.Acquisition, error) {
	a := &domain.Acquisition{}
	var status string
	var finalURL, path, lastError sql.NullString
	var finishedAt sql.NullTime

	err := row.Scan(
		&a.ID, &a.URL, &finalURL, &path, &status, &a.BytesReceived, &a.BytesTotal,
		&lastError, &a.StartedAt, &finishedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.Status = domain.AcquisitionStatus(status)
	a.FinalURL = finalURL.String
	a.Path = path.String
	a.LastError = lastError.String
	if finishedAt.Valid {
		t := finishedAt.Time
		a.FinishedAt = &t
	}
	return a, nil
}

func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
