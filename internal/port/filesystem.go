package port

import (
	"io"
	"time"
)

// TempSuffix is appended to a destination path while bytes are streaming
const TempSuffix = ".downloading"

// DiskUsage represents disk usage statistics
type DiskUsage struct {
	Total   uint64  // Total disk space in bytes
	Used    uint64  // Used disk space in bytes
	Free    uint64  // Free disk space in bytes
	UsedPct float64 // Used percentage (0-100)
}

// TempFile is an in-progress download target.
// Exactly one of Commit or Abort must be called.
type TempFile interface {
	io.Writer

	// Path returns the temporary path being written
	Path() string

	// Commit closes the file and renames it to its destination
	Commit() (string, error)

	// Abort closes and removes the temporary file
	Abort() error
}

// FileSystem defines the interface for downloads directory operations
type FileSystem interface {
	// RootDir returns the downloads directory
	RootDir() string

	// DestinationPath returns the final path for a file name
	DestinationPath(name string) string

	// CreateTemp creates (truncating) the temp file for destPath,
	// creating parent directories as needed
	CreateTemp(destPath string) (TempFile, error)

	// DeleteFile removes a file; a missing file is not an error
	DeleteFile(path string) error

	// FileExists checks if a file exists
	FileExists(path string) bool

	// GetFileSize returns the size of a file
	GetFileSize(path string) (int64, error)

	// GetDiskUsage returns disk usage statistics for the downloads directory
	GetDiskUsage() (*DiskUsage, error)

	// CleanOldTempFiles removes temp files older than the specified duration
	// Returns the number of files deleted
	CleanOldTempFiles(olderThan time.Duration) (int, error)
}
