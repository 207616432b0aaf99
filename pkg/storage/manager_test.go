package storage

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSaveVideo(t *testing.T) {
	tempDir := t.TempDir()

	manager, err := NewManager(filepath.Join(tempDir, "downloads"))
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	path, err := manager.SaveVideo("ABC123", func(w io.Writer) error {
		_, err := w.Write([]byte("video data"))
		return err
	})
	if err != nil {
		t.Fatalf("Failed to save video: %v", err)
	}
	if path != manager.VideoPath("ABC123") {
		t.Errorf("Expected path %s, got %s", manager.VideoPath("ABC123"), path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read saved file: %v", err)
	}
	if string(data) != "video data" {
		t.Errorf("Saved content mismatch: %q", data)
	}

	size, err := manager.Size(path)
	if err != nil || size != int64(len("video data")) {
		t.Errorf("Size() = %d, %v", size, err)
	}

	f, n, err := manager.Open(path)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	f.Close()
	if n != size {
		t.Errorf("Open() size = %d, want %d", n, size)
	}
}

func TestSaveVideoFailureLeavesNothing(t *testing.T) {
	manager, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	_, err = manager.SaveVideo("BROKEN", func(w io.Writer) error {
		w.Write([]byte("partial"))
		return errors.New("connection reset")
	})
	if err == nil {
		t.Fatal("Expected error from failed write")
	}

	entries, _ := os.ReadDir(manager.GetOutputDir())
	if len(entries) != 0 {
		t.Errorf("Expected empty directory, found %d entries", len(entries))
	}
}

func TestSaveVideoRejectsPaths(t *testing.T) {
	manager, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	for _, name := range []string{"", "..", "../escape", `a\b`} {
		if _, err := manager.SaveVideo(name, func(io.Writer) error { return nil }); err == nil {
			t.Errorf("Expected %q to be rejected", name)
		}
	}
}

func TestRemove(t *testing.T) {
	manager, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	path, _ := manager.SaveVideo("GONE", func(w io.Writer) error { return nil })
	if err := manager.Remove(path); err != nil {
		t.Errorf("Remove() error: %v", err)
	}
	if err := manager.Remove(path); err != nil {
		t.Errorf("Remove() of a missing file should succeed, got %v", err)
	}
}

func TestRemoveOlderThan(t *testing.T) {
	dir := t.TempDir()
	manager, err := NewManager(dir)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	old := time.Now().Add(-3 * time.Hour)
	for _, name := range []string{"OLD.mp4", "STALE.mp4.tmp", "notes.txt"} {
		p := filepath.Join(dir, name)
		os.WriteFile(p, []byte("x"), 0644)
		os.Chtimes(p, old, old)
	}
	os.WriteFile(filepath.Join(dir, "NEW.mp4"), []byte("x"), 0644)

	removed, err := manager.RemoveOlderThan(time.Hour)
	if err != nil {
		t.Fatalf("RemoveOlderThan() error: %v", err)
	}
	if removed != 2 {
		t.Errorf("Expected 2 files removed, got %d", removed)
	}

	for name, want := range map[string]bool{"OLD.mp4": false, "STALE.mp4.tmp": false, "notes.txt": true, "NEW.mp4": true} {
		_, err := os.Stat(filepath.Join(dir, name))
		if exists := err == nil; exists != want {
			t.Errorf("%s exists = %v, want %v", name, exists, want)
		}
	}
}
