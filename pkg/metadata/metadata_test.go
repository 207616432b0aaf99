package metadata

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"igrepost/pkg/instagram"
)

func TestFromRepost(t *testing.T) {
	reel := instagram.Reel{ItemID: "item-1", MediaID: "9ABC"}
	info := &instagram.MediaInfo{Shortcode: "ABC", Creator: "creator", Caption: "  hello  "}
	media := &instagram.Media{PK: "777", Code: "NEW"}

	m := FromRepost(reel, info, media, "alice", "hello\n\n📸 Credit: @creator", 42)

	assert.Equal(t, "item-1", m.ItemID)
	assert.Equal(t, "ABC", m.Shortcode)
	assert.Equal(t, instagram.ReelURL("ABC"), m.URL)
	assert.Equal(t, "hello", m.Caption)
	assert.Equal(t, "alice", m.SharedBy)
	assert.Equal(t, "NEW", m.RepostCode)
	assert.Equal(t, "777", m.RepostMediaID)
	assert.Equal(t, int64(42), m.FileSize)
	assert.False(t, m.RepostedAt.IsZero())
}

func TestSaveLoadRemove(t *testing.T) {
	dir := t.TempDir()
	video := filepath.Join(dir, "ABC.mp4")

	m := FromRepost(instagram.Reel{ItemID: "item-1", Shortcode: "ABC"}, nil, nil, "alice", "caption", 1)
	p, err := m.Save(video)
	require.NoError(t, err)
	assert.Equal(t, video+".json", p)

	got, err := Load(video)
	require.NoError(t, err)
	assert.Equal(t, "item-1", got.ItemID)
	assert.Equal(t, "caption", got.RepostCaption)

	require.NoError(t, Remove(video))
	_, err = os.Stat(p)
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, Remove(video), "removing twice is fine")

	_, err = Load(video)
	assert.Error(t, err)
}

func TestCleanOrphaned(t *testing.T) {
	dir := t.TempDir()
	write := func(name string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("{}"), 0644))
	}
	write("KEEP.mp4")
	write("KEEP.mp4.json")
	write("GONE.mp4.json")
	write("settings.json")

	n, err := CleanOrphaned(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	for name, want := range map[string]bool{"KEEP.mp4.json": true, "GONE.mp4.json": false, "settings.json": true} {
		_, err := os.Stat(filepath.Join(dir, name))
		if exists := err == nil; exists != want {
			t.Errorf("%s exists = %v, want %v", name, exists, want)
		}
	}

	n, err = CleanOrphaned(filepath.Join(dir, "missing"))
	assert.NoError(t, err)
	assert.Zero(t, n)
}
