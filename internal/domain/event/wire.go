package event

// Channel names used when relaying download events to the UI
const (
	ChannelStarted   = "started"
	ChannelProgress  = "progress"
	ChannelComplete  = "complete"
	ChannelFailed    = "failed"
	ChannelCancelled = "cancelled"
)

// StartedPayload is sent once the final response headers arrive
type StartedPayload struct {
	AcquisitionID string `json:"acquisition_id" msgpack:"acquisition_id"`
	FinalURL      string `json:"final_url" msgpack:"final_url"`
	Total         int64  `json:"total" msgpack:"total"`
}

// ProgressPayload is sent for every chunk
type ProgressPayload struct {
	AcquisitionID string `json:"acquisition_id" msgpack:"acquisition_id"`
	Received      int64  `json:"received" msgpack:"received"`
	Total         int64  `json:"total" msgpack:"total"`
	Percent       int    `json:"percent" msgpack:"percent"`
}

// CompletePayload carries the installer location
type CompletePayload struct {
	AcquisitionID string `json:"acquisition_id" msgpack:"acquisition_id"`
	Path          string `json:"path" msgpack:"path"`
	Size          int64  `json:"size" msgpack:"size"`
	DurationMs    int64  `json:"duration_ms" msgpack:"duration_ms"`
}

// FailedPayload carries a human-readable error and its kind
type FailedPayload struct {
	AcquisitionID string `json:"acquisition_id" msgpack:"acquisition_id"`
	Error         string `json:"error" msgpack:"error"`
	Kind          string `json:"kind" msgpack:"kind"`
}

// CancelledPayload reports how far a cancelled download got
type CancelledPayload struct {
	AcquisitionID string `json:"acquisition_id" msgpack:"acquisition_id"`
	Received      int64  `json:"received" msgpack:"received"`
}

// RelayEvents lists the events that have a UI channel
func RelayEvents() []string {
	return []string{
		NameDownloadStarted,
		NameDownloadProgressed,
		NameDownloadCompleted,
		NameDownloadFailed,
		NameDownloadCancelled,
	}
}

// ToWire maps ev to its UI channel and payload. ok is false for events
// that are not relayed.
func ToWire(ev DomainEvent) (channel string, payload any, ok bool) {
	switch e := ev.(type) {
	case DownloadStarted:
		return ChannelStarted, StartedPayload{
			AcquisitionID: e.AcquisitionID,
			FinalURL:      e.FinalURL,
			Total:         e.Total,
		}, true
	case DownloadProgressed:
		return ChannelProgress, ProgressPayload{
			AcquisitionID: e.AcquisitionID,
			Received:      e.Progress.Received,
			Total:         e.Progress.Total,
			Percent:       e.Progress.Percent(),
		}, true
	case DownloadCompleted:
		return ChannelComplete, CompletePayload{
			AcquisitionID: e.AcquisitionID,
			Path:          e.Path,
			Size:          e.Size,
			DurationMs:    e.Duration.Milliseconds(),
		}, true
	case DownloadFailed:
		return ChannelFailed, FailedPayload{
			AcquisitionID: e.AcquisitionID,
			Error:         e.Error,
			Kind:          e.Kind,
		}, true
	case DownloadCancelled:
		return ChannelCancelled, CancelledPayload{
			AcquisitionID: e.AcquisitionID,
			Received:      e.Received,
		}, true
	}
	return "", nil, false
}
