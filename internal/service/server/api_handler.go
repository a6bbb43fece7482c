package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/vertextoedge/localai-desktop/internal/domain"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 200
)

// errorResponse is the body of every failed API call
type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// acquisitionView is the JSON shape of a history row
type acquisitionView struct {
	ID            string     `json:"id"`
	URL           string     `json:"url"`
	FinalURL      string     `json:"final_url,omitempty"`
	Path          string     `json:"path,omitempty"`
	Status        string     `json:"status"`
	BytesReceived int64      `json:"bytes_received"`
	BytesTotal    int64      `json:"bytes_total"`
	Error         string     `json:"error,omitempty"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
}

func newAcquisitionView(a *domain.Acquisition) acquisitionView {
	return acquisitionView{
		ID:            a.ID,
		URL:           a.URL,
		FinalURL:      a.FinalURL,
		Path:          a.Path,
		Status:        string(a.Status),
		BytesReceived: a.BytesReceived,
		BytesTotal:    a.BytesTotal,
		Error:         a.LastError,
		StartedAt:     a.StartedAt,
		FinishedAt:    a.FinishedAt,
	}
}

func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Acquirer.CheckInstallation(r.Context()))
}

func (s *Server) handleEngineStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Acquirer.EngineStatus(r.Context()))
}

// handleDownload runs a download to completion. Progress is delivered on /ws;
// the response carries only the outcome. A client disconnect cancels it.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path, err := s.deps.Acquirer.RequestDownload(r.Context())
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"path": path})
	case errors.Is(err, domain.ErrDownloadInProgress):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), Kind: domain.KindInProgress})
	case domain.IsCancelled(err):
		writeJSON(w, http.StatusConflict, map[string]bool{"cancelled": true})
	default:
		s.logger.Warn("download request failed", zap.Error(err))
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error(), Kind: domain.Kind(err)})
	}
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"cancelled": s.deps.Acquirer.Cancel()})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Acquirer.State())
}

func (s *Server) handleAcquisitions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	rows, err := s.deps.Acquirer.History(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to list acquisitions", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to list acquisitions"})
		return
	}

	views := make([]acquisitionView, 0, len(rows))
	for _, a := range rows {
		views = append(views, newAcquisitionView(a))
	}
	writeJSON(w, http.StatusOK, views)
}
