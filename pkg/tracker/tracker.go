package tracker

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"igrepost/pkg/logger"
)

// fileFormat is the on-disk layout of the processed file
type fileFormat struct {
	Processed []string `json:"processed"`
}

// Tracker remembers which direct message items have been handled so a reel
// is never reposted twice. It is safe for concurrent use.
type Tracker struct {
	path   string
	seen   map[string]struct{}
	order  []string
	mu     sync.RWMutex
	logger logger.Logger
}

// Open loads the tracker at path. A missing file starts empty; a file that
// cannot be decoded is logged and also starts empty.
func Open(path string, log logger.Logger) (*Tracker, error) {
	if log == nil {
		log = logger.GetLogger()
	}
	t := &Tracker{
		path:   path,
		seen:   make(map[string]struct{}),
		logger: log,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.InfoWithFields("No processed messages yet, starting fresh", map[string]interface{}{
				"path": path,
			})
			return t, nil
		}
		return nil, fmt.Errorf("failed to read tracker file: %w", err)
	}

	var stored fileFormat
	if err := json.Unmarshal(data, &stored); err != nil {
		log.WarnWithFields("Corrupted tracker file, starting fresh", map[string]interface{}{
			"path":  path,
			"error": err.Error(),
		})
		return t, nil
	}
	for _, id := range stored.Processed {
		t.add(id)
	}

	log.InfoWithFields("Loaded processed message IDs", map[string]interface{}{
		"count": len(t.order),
		"path":  path,
	})
	return t, nil
}

func (t *Tracker) add(id string) bool {
	if _, ok := t.seen[id]; ok {
		return false
	}
	t.seen[id] = struct{}{}
	t.order = append(t.order, id)
	return true
}

// IsProcessed reports whether id has been handled
func (t *Tracker) IsProcessed(id string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.seen[id]
	return ok
}

// MarkProcessed records id and persists the tracker. Marking an id twice is
// a no-op.
func (t *Tracker) MarkProcessed(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.add(id) {
		return nil
	}
	if err := t.save(); err != nil {
		return err
	}

	t.logger.DebugWithFields("Marked message as processed", map[string]interface{}{
		"item_id": id,
	})
	return nil
}

// Count returns the number of processed ids
func (t *Tracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.order)
}

// IDs returns the processed ids in the order they were recorded
func (t *Tracker) IDs() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]string(nil), t.order...)
}

// Path returns the backing file
func (t *Tracker) Path() string {
	return t.path
}

// save writes the tracker to a temp file and renames it over the old one.
// Callers hold t.mu.
func (t *Tracker) save() error {
	if dir := filepath.Dir(t.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create tracker directory: %w", err)
		}
	}

	tempPath := t.path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary tracker file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(fileFormat{Processed: t.order}); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode tracker: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync tracker file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close tracker file: %w", err)
	}

	if err := os.Rename(tempPath, t.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace tracker file: %w", err)
	}
	return nil
}
