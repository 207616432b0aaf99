// Package metadata writes the JSON record kept next to an archived reel.
package metadata

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"igrepost/pkg/instagram"
)

// Ext is appended to the video path to name its sidecar file
const Ext = ".json"

// RepostMetadata describes one reposted reel
type RepostMetadata struct {
	// Source reel
	ItemID    string `json:"item_id"`
	MediaID   string `json:"media_id,omitempty"`
	Shortcode string `json:"shortcode"`
	URL       string `json:"url,omitempty"`
	Creator   string `json:"creator"`
	Caption   string `json:"caption,omitempty"`

	// Who asked for it
	SharedBy string `json:"shared_by"`

	// The new post
	RepostCode    string `json:"repost_code,omitempty"`
	RepostMediaID string `json:"repost_media_id,omitempty"`
	RepostCaption string `json:"repost_caption"`

	FileSize   int64     `json:"file_size"`
	RepostedAt time.Time `json:"reposted_at"`
}

// FromRepost builds the record for reel after it was published as media
func FromRepost(reel instagram.Reel, info *instagram.MediaInfo, media *instagram.Media, sharedBy, caption string, size int64) *RepostMetadata {
	m := &RepostMetadata{
		ItemID:        reel.ItemID,
		MediaID:       reel.MediaID,
		Shortcode:     reel.Shortcode,
		URL:           reel.URL,
		SharedBy:      sharedBy,
		RepostCaption: caption,
		FileSize:      size,
		RepostedAt:    time.Now().UTC(),
	}
	if info != nil {
		if info.Shortcode != "" {
			m.Shortcode = info.Shortcode
		}
		m.Creator = info.Creator
		m.Caption = strings.TrimSpace(info.Caption)
	}
	if m.URL == "" && m.Shortcode != "" {
		m.URL = instagram.ReelURL(m.Shortcode)
	}
	if media != nil {
		m.RepostCode = media.Code
		m.RepostMediaID = string(media.PK)
	}
	return m
}

// Path returns the sidecar path for a video
func Path(videoPath string) string {
	return videoPath + Ext
}

// Save writes the record next to videoPath and returns the sidecar path
func (m *RepostMetadata) Save(videoPath string) (string, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal metadata: %w", err)
	}

	p := Path(videoPath)
	if err := os.WriteFile(p, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write metadata file: %w", err)
	}
	return p, nil
}

// Load reads the record saved for videoPath
func Load(videoPath string) (*RepostMetadata, error) {
	data, err := os.ReadFile(Path(videoPath))
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata file: %w", err)
	}

	var m RepostMetadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return &m, nil
}

// Remove deletes the sidecar of videoPath; a missing file is not an error
func Remove(videoPath string) error {
	if err := os.Remove(Path(videoPath)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove metadata file: %w", err)
	}
	return nil
}

// CleanOrphaned removes sidecars whose video is gone and returns how many it removed
func CleanOrphaned(directory string) (int, error) {
	entries, err := os.ReadDir(directory)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}

	removed := 0
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".mp4"+Ext) {
			continue
		}
		sidecar := filepath.Join(directory, name)
		if _, err := os.Stat(strings.TrimSuffix(sidecar, Ext)); !os.IsNotExist(err) {
			continue
		}
		if err := os.Remove(sidecar); err != nil {
			return removed, fmt.Errorf("failed to remove orphaned metadata %s: %w", sidecar, err)
		}
		removed++
	}
	return removed, nil
}
