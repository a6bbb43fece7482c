package domain

// DetectionResult is the outcome of one engine binary probe.
// Path is the resolved executable; Version is set only when the version
// query answered.
type DetectionResult struct {
	Found   bool   `json:"found" msgpack:"found"`
	Path    string `json:"path,omitempty" msgpack:"path,omitempty"`
	Version string `json:"version,omitempty" msgpack:"version,omitempty"`
	Error   string `json:"error,omitempty" msgpack:"error,omitempty"`
}

// Found returns a positive detection
func Found(path, version string) DetectionResult {
	return DetectionResult{Found: true, Path: path, Version: version}
}

// Missing returns a negative detection with a human-readable reason
func Missing(reason string) DetectionResult {
	return DetectionResult{Found: false, Error: reason}
}

// EngineStatus combines a detection with the engine processes currently running.
type EngineStatus struct {
	Detection DetectionResult `json:"detection" msgpack:"detection"`
	Running   bool            `json:"running" msgpack:"running"`
	PIDs      []int32         `json:"pids,omitempty" msgpack:"pids,omitempty"`
}
