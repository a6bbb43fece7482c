package filesystem

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/disk"

	"github.com/vertextoedge/localai-desktop/internal/port"
)

// Manager handles the downloads directory
type Manager struct {
	rootDir string
}

// Ensure Manager implements port.FileSystem
var _ port.FileSystem = (*Manager)(nil)

// NewManager creates a new filesystem manager rooted at the downloads directory
func NewManager(rootDir string) (*Manager, error) {
	if err := os.MkdirAll(rootDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create downloads dir: %w", err)
	}
	return &Manager{rootDir: rootDir}, nil
}

// RootDir returns the downloads directory
func (m *Manager) RootDir() string {
	return m.rootDir
}

// DestinationPath returns the final path for a file name
func (m *Manager) DestinationPath(name string) string {
	return filepath.Join(m.rootDir, filepath.Base(name))
}

// CreateTemp creates the temp file for destPath
func (m *Manager) CreateTemp(destPath string) (port.TempFile, error) {
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create parent dir: %w", err)
	}

	tempPath := destPath + port.TempSuffix
	f, err := os.Create(tempPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	return &tempFile{f: f, tempPath: tempPath, destPath: destPath}, nil
}

// DeleteFile removes a file
func (m *Manager) DeleteFile(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// FileExists checks if a file exists
func (m *Manager) FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// GetFileSize returns the size of a file
func (m *Manager) GetFileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// GetDiskUsage returns disk usage for the downloads directory
func (m *Manager) GetDiskUsage() (*port.DiskUsage, error) {
	stat, err := disk.Usage(m.rootDir)
	if err != nil {
		return nil, fmt.Errorf("failed to get disk stats: %w", err)
	}
	return &port.DiskUsage{
		Total:   stat.Total,
		Used:    stat.Used,
		Free:    stat.Free,
		UsedPct: stat.UsedPercent,
	}, nil
}

// CleanOldTempFiles removes temp files older than the specified duration
func (m *Manager) CleanOldTempFiles(olderThan time.Duration) (int, error) {
	count := 0
	threshold := time.Now().Add(-olderThan)

	err := filepath.Walk(m.rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(path, port.TempSuffix) {
			return nil
		}
		if info.ModTime().Before(threshold) {
			if removeErr := os.Remove(path); removeErr == nil {
				count++
			}
		}
		return nil
	})
	return count, err
}

type tempFile struct {
	f        *os.File
	tempPath string
	destPath string
	closed   bool
}

func (t *tempFile) Write(p []byte) (int, error) {
	return t.f.Write(p)
}

func (t *tempFile) Path() string {
	return t.tempPath
}

func (t *tempFile) Commit() (string, error) {
	if err := t.close(); err != nil {
		os.Remove(t.tempPath)
		return "", fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Rename(t.tempPath, t.destPath); err != nil {
		os.Remove(t.tempPath)
		return "", fmt.Errorf("failed to rename temp file: %w", err)
	}
	return t.destPath, nil
}

func (t *tempFile) Abort() error {
	t.close()
	if err := os.Remove(t.tempPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete temp file: %w", err)
	}
	return nil
}

func (t *tempFile) close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	return t.f.Close()
}
