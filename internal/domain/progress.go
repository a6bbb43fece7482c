package domain

// DownloadProgress is emitted for every chunk of a download.
// Total is 0 when the server did not declare a content length.
type DownloadProgress struct {
	Received int64 `json:"received" msgpack:"received"`
	Total    int64 `json:"total" msgpack:"total"`
}

// Known reports whether the total size is known
func (p DownloadProgress) Known() bool {
	return p.Total > 0
}

// Percent returns the completion percentage in [0,100], or 0 when the total is unknown
func (p DownloadProgress) Percent() int {
	if p.Total <= 0 || p.Received <= 0 {
		return 0
	}
	if p.Received >= p.Total {
		return 100
	}
	return int(p.Received * 100 / p.Total)
}

// Done reports whether every declared byte has arrived
func (p DownloadProgress) Done() bool {
	return p.Total > 0 && p.Received >= p.Total
}
