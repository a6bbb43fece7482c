package event

import (
	"sync/atomic"

	"go.uber.org/zap"
)

// LoggingHandler logs all events
type LoggingHandler struct {
	logger *zap.Logger
}

// NewLoggingHandler creates a new LoggingHandler
func NewLoggingHandler(logger *zap.Logger) *LoggingHandler {
	return &LoggingHandler{logger: logger}
}

// Handle logs the event
func (h *LoggingHandler) Handle(event DomainEvent) error {
	switch e := event.(type) {
	case EngineDetected:
		h.logger.Info("engine detection",
			zap.Bool("found", e.Result.Found),
			zap.String("path", e.Result.Path),
			zap.String("version", e.Result.Version),
			zap.String("error", e.Result.Error),
		)
	case DownloadRequested:
		h.logger.Info("download requested",
			zap.String("acquisition_id", e.AcquisitionID),
			zap.String("url", e.URL),
		)
	case DownloadStarted:
		h.logger.Info("download started",
			zap.String("acquisition_id", e.AcquisitionID),
			zap.String("final_url", e.FinalURL),
			zap.Int64("total", e.Total),
		)
	case DownloadProgressed:
		// Per-chunk; too noisy for anything above debug
		if ce := h.logger.Check(zap.DebugLevel, "download progress"); ce != nil {
			ce.Write(
				zap.String("acquisition_id", e.AcquisitionID),
				zap.Int64("received", e.Progress.Received),
				zap.Int64("total", e.Progress.Total),
			)
		}
	case DownloadCompleted:
		h.logger.Info("download completed",
			zap.String("acquisition_id", e.AcquisitionID),
			zap.String("path", e.Path),
			zap.Int64("size", e.Size),
			zap.Duration("duration", e.Duration),
		)
	case DownloadFailed:
		h.logger.Warn("download failed",
			zap.String("acquisition_id", e.AcquisitionID),
			zap.String("kind", e.Kind),
			zap.String("error", e.Error),
		)
	case DownloadCancelled:
		h.logger.Info("download cancelled",
			zap.String("acquisition_id", e.AcquisitionID),
			zap.Int64("received", e.Received),
		)
	default:
		h.logger.Debug("domain event",
			zap.String("event", event.EventName()),
			zap.Time("occurred_at", event.OccurredAt()),
		)
	}
	return nil
}

// HandledEvents returns the events this handler handles
func (h *LoggingHandler) HandledEvents() []string {
	return []string{NameAll} // Handle all events
}

// MetricsHandler collects counters from events
type MetricsHandler struct {
	detections          atomic.Int64
	detectionsMissing   atomic.Int64
	downloadsRequested  atomic.Int64
	downloadsCompleted  atomic.Int64
	downloadsFailed     atomic.Int64
	downloadsCancelled  atomic.Int64
	bytesDownloaded     atomic.Int64
	progressEventsTotal atomic.Int64
}

// NewMetricsHandler creates a new MetricsHandler
func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{}
}

// Handle updates metrics based on the event
func (h *MetricsHandler) Handle(event DomainEvent) error {
	switch e := event.(type) {
	case EngineDetected:
		h.detections.Add(1)
		if !e.Result.Found {
			h.detectionsMissing.Add(1)
		}
	case DownloadRequested:
		h.downloadsRequested.Add(1)
	case DownloadProgressed:
		h.progressEventsTotal.Add(1)
	case DownloadCompleted:
		h.downloadsCompleted.Add(1)
		h.bytesDownloaded.Add(e.Size)
	case DownloadFailed:
		h.downloadsFailed.Add(1)
	case DownloadCancelled:
		h.downloadsCancelled.Add(1)
	}
	return nil
}

// HandledEvents returns the events this handler handles
func (h *MetricsHandler) HandledEvents() []string {
	return append([]string{NameEngineDetected}, DownloadEvents()...)
}

// GetMetrics returns current metrics
func (h *MetricsHandler) GetMetrics() map[string]int64 {
	return map[string]int64{
		"detections":          h.detections.Load(),
		"detections_missing":  h.detectionsMissing.Load(),
		"downloads_requested": h.downloadsRequested.Load(),
		"downloads_completed": h.downloadsCompleted.Load(),
		"downloads_failed":    h.downloadsFailed.Load(),
		"downloads_cancelled": h.downloadsCancelled.Load(),
		"bytes_downloaded":    h.bytesDownloaded.Load(),
		"progress_events":     h.progressEventsTotal.Load(),
	}
}
