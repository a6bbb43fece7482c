package filesystem

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestManager_CommitRenamesTempFile(t *testing.T) {
	m, err := NewManager(filepath.Join(t.TempDir(), "downloads"))
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	dest := m.DestinationPath("OllamaSetup.exe")
	tf, err := m.CreateTemp(dest)
	if err != nil {
		t.Fatalf("CreateTemp() error = %v", err)
	}
	if tf.Path() != dest+".downloading" {
		t.Errorf("Path() = %s, want %s.downloading", tf.Path(), dest)
	}
	if _, err := tf.Write([]byte("hello")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := tf.Commit()
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if got != dest {
		t.Errorf("Commit() = %s, want %s", got, dest)
	}
	if m.FileExists(dest + ".downloading") {
		t.Error("temp file should not exist after commit")
	}
	size, err := m.GetFileSize(dest)
	if err != nil || size != 5 {
		t.Errorf("GetFileSize() = %d, %v; want 5, nil", size, err)
	}
}

func TestManager_AbortRemovesTempFile(t *testing.T) {
	m, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	dest := m.DestinationPath("partial.bin")
	tf, err := m.CreateTemp(dest)
	if err != nil {
		t.Fatalf("CreateTemp() error = %v", err)
	}
	tf.Write([]byte("partial"))

	if err := tf.Abort(); err != nil {
		t.Fatalf("Abort() error = %v", err)
	}
	if m.FileExists(tf.Path()) || m.FileExists(dest) {
		t.Error("no file should remain after abort")
	}
}

func TestManager_DestinationPathStripsDirs(t *testing.T) {
	m, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	if got, want := m.DestinationPath("../../etc/passwd"), filepath.Join(m.RootDir(), "passwd"); got != want {
		t.Errorf("DestinationPath() = %s, want %s", got, want)
	}
}

func TestManager_CleanOldTempFiles(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	oldTemp := filepath.Join(dir, "old.exe.downloading")
	newTemp := filepath.Join(dir, "new.exe.downloading")
	done := filepath.Join(dir, "done.exe")
	for _, p := range []string{oldTemp, newTemp, done} {
		if err := os.WriteFile(p, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	past := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(oldTemp, past, past); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(done, past, past); err != nil {
		t.Fatal(err)
	}

	n, err := m.CleanOldTempFiles(time.Hour)
	if err != nil {
		t.Fatalf("CleanOldTempFiles() error = %v", err)
	}
	if n != 1 {
		t.Errorf("CleanOldTempFiles() = %d, want 1", n)
	}
	if m.FileExists(oldTemp) {
		t.Error("old temp file should be removed")
	}
	if !m.FileExists(newTemp) || !m.FileExists(done) {
		t.Error("fresh temp file and completed file should be kept")
	}
}

func TestManager_DeleteMissingFile(t *testing.T) {
	m, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	if err := m.DeleteFile(filepath.Join(m.RootDir(), "nope")); err != nil {
		t.Errorf("DeleteFile() on missing file error = %v", err)
	}
}

func TestManager_GetDiskUsage(t *testing.T) {
	m, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	usage, err := m.GetDiskUsage()
	if err != nil {
		t.Fatalf("GetDiskUsage() error = %v", err)
	}
	if usage.Total == 0 {
		t.Error("Total should be non-zero")
	}
}
