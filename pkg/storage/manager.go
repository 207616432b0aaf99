package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// VideoExt is the extension of downloaded reels
const VideoExt = ".mp4"

// Manager owns the downloads directory where reels are staged between
// download and upload.
type Manager struct {
	outputDir string
	now       func() time.Time
}

// NewManager creates the directory if needed and returns a manager for it
func NewManager(outputDir string) (*Manager, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &Manager{outputDir: outputDir, now: time.Now}, nil
}

// VideoPath returns where the reel with shortcode is stored
func (m *Manager) VideoPath(shortcode string) string {
	return filepath.Join(m.outputDir, shortcode+VideoExt)
}

func validName(shortcode string) error {
	if shortcode == "" || shortcode == "." || shortcode == ".." ||
		strings.ContainsAny(shortcode, `/\`) {
		return fmt.Errorf("invalid shortcode %q", shortcode)
	}
	return nil
}

// SaveVideo lets write fill a temp file, then renames it into place and
// returns the final path. A failed write leaves nothing behind.
func (m *Manager) SaveVideo(shortcode string, write func(io.Writer) error) (string, error) {
	if err := validName(shortcode); err != nil {
		return "", err
	}

	filename := m.VideoPath(shortcode)
	tempFile := filename + ".tmp"
	out, err := os.Create(tempFile)
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}

	err = write(out)
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to save video data: %w", err)
	}
	if closeErr != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := os.Rename(tempFile, filename); err != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return filename, nil
}

// Open opens a stored video and returns it with its size
func (m *Manager) Open(path string) (*os.File, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	return f, info.Size(), nil
}

// Size returns the size of the file at path
func (m *Manager) Size(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Remove deletes path. A missing file is not an error.
func (m *Manager) Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	return nil
}

// RemoveOlderThan deletes videos and abandoned temp files last modified more
// than age ago and returns how many were removed.
func (m *Manager) RemoveOlderThan(age time.Duration) (int, error) {
	entries, err := os.ReadDir(m.outputDir)
	if err != nil {
		return 0, fmt.Errorf("failed to read directory: %w", err)
	}

	cutoff := m.now().Add(-age)
	removed := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !(strings.HasSuffix(name, VideoExt) || strings.HasSuffix(name, VideoExt+".tmp")) {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := m.Remove(filepath.Join(m.outputDir, name)); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// GetOutputDir returns the output directory path
func (m *Manager) GetOutputDir() string {
	return m.outputDir
}
