package tui

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"igrepost/pkg/progress"
)

type fakeFetcher struct {
	record progress.Record
	err    error
	calls  int
}

func (f *fakeFetcher) Get(ctx context.Context) (progress.Record, error) {
	f.calls++
	return f.record, f.err
}

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestModel(f Fetcher) Model {
	m := NewModel(f, "http://dash.local/api/progress", time.Second)
	m.now = func() time.Time { return fixedNow }
	return m
}

func record(status progress.Status, message, reelID, sender string) progress.Record {
	return progress.NewUpdate(status, message, reelID, sender).Record(fixedNow.Add(-30 * time.Second))
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	require.True(t, ok, "Update should return a Model")
	return nm, cmd
}

func TestThemeFor(t *testing.T) {
	tests := []struct {
		status  progress.Status
		percent float64
		label   string
	}{
		{progress.StatusIdle, 0, "IDLE"},
		{progress.StatusDownloading, 0.35, "DOWNLOADING"},
		{progress.StatusUploading, 0.70, "UPLOADING"},
		{progress.StatusCompleted, 1, "COMPLETED"},
		{progress.StatusError, 1, "ERROR"},
		{progress.Status("paused"), 0, "paused"},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			theme := ThemeFor(tt.status)
			if theme.Percent != tt.percent {
				t.Errorf("ThemeFor(%s).Percent = %v, want %v", tt.status, theme.Percent, tt.percent)
			}
			if theme.Label != tt.label {
				t.Errorf("ThemeFor(%s).Label = %s, want %s", tt.status, theme.Label, tt.label)
			}
		})
	}

	assert.Equal(t, alertRed, ThemeFor(progress.StatusError).Color)
}

func TestAgo(t *testing.T) {
	tests := []struct {
		at   time.Time
		want string
	}{
		{time.Time{}, "never"},
		{fixedNow.Add(-2 * time.Second), "just now"},
		{fixedNow.Add(-42 * time.Second), "42s ago"},
		{fixedNow.Add(-5 * time.Minute), "5m ago"},
		{fixedNow.Add(-3 * time.Hour), "3h ago"},
	}

	for _, tt := range tests {
		if got := Ago(tt.at, fixedNow); got != tt.want {
			t.Errorf("Ago(%v) = %q, want %q", tt.at, got, tt.want)
		}
	}
}

func TestNewModelClampsRefresh(t *testing.T) {
	assert.Equal(t, defaultRefresh, NewModel(nil, "", 0).refresh)
	assert.Equal(t, minRefresh, NewModel(nil, "", time.Millisecond).refresh)
	assert.Equal(t, 10*time.Second, NewModel(nil, "", 10*time.Second).refresh)
}

func TestFetchProducesRecordMsg(t *testing.T) {
	f := &fakeFetcher{record: record(progress.StatusUploading, "Uploading reel...", "r1", "alice")}
	m := newTestModel(f)

	msg := m.fetch(true)()
	rm, ok := msg.(RecordMsg)
	require.True(t, ok)
	assert.True(t, rm.Scheduled)
	assert.Equal(t, progress.StatusUploading, rm.Record.Status)
	assert.Equal(t, fixedNow, rm.At)
	assert.Equal(t, 1, f.calls)
}

func TestRecordMsgUpdatesState(t *testing.T) {
	m := newTestModel(&fakeFetcher{})

	r := record(progress.StatusDownloading, "Fetching reel...", "r1", "alice")
	m, cmd := update(t, m, RecordMsg{Record: r, At: fixedNow, Scheduled: true})
	assert.NotNil(t, cmd, "scheduled fetch should arm the next tick")

	got, ok := m.Record()
	require.True(t, ok)
	assert.Equal(t, "Fetching reel...", got.Message)
	assert.Len(t, m.History(), 1)

	// same record again does not grow the history
	m, _ = update(t, m, RecordMsg{Record: r, At: fixedNow, Scheduled: true})
	assert.Len(t, m.History(), 1)

	m, cmd = update(t, m, RecordMsg{Record: record(progress.StatusUploading, "Uploading reel...", "r1", "alice"), At: fixedNow})
	assert.Nil(t, cmd, "manual fetch should not arm a second tick chain")
	assert.Len(t, m.History(), 2)
}

func TestFetchErrorKeepsLastRecord(t *testing.T) {
	m := newTestModel(&fakeFetcher{})
	m, _ = update(t, m, RecordMsg{Record: record(progress.StatusCompleted, "Reel uploaded successfully!", "r1", "alice"), At: fixedNow})

	m, _ = update(t, m, RecordMsg{Err: errors.New("connection refused"), At: fixedNow, Scheduled: true})
	require.Error(t, m.FetchErr())

	got, ok := m.Record()
	require.True(t, ok)
	assert.Equal(t, progress.StatusCompleted, got.Status)
	assert.Contains(t, m.View(), "connection refused")

	m, _ = update(t, m, RecordMsg{Record: got, At: fixedNow})
	assert.NoError(t, m.FetchErr())
}

func TestHistoryIsBounded(t *testing.T) {
	m := newTestModel(&fakeFetcher{})
	for i := 0; i < maxHistory+5; i++ {
		r := record(progress.StatusIdle, time.Duration(i).String(), "", "")
		m, _ = update(t, m, RecordMsg{Record: r, At: fixedNow})
	}
	h := m.History()
	require.Len(t, h, maxHistory)
	assert.Equal(t, time.Duration(maxHistory+4).String(), h[len(h)-1].Message)
}

func TestKeys(t *testing.T) {
	m := newTestModel(&fakeFetcher{})

	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())

	_, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())

	m, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	require.NotNil(t, cmd)
	assert.True(t, m.fetching)
	msg, ok := cmd().(RecordMsg)
	require.True(t, ok)
	assert.False(t, msg.Scheduled)

	_, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	assert.Nil(t, cmd, "no second refresh while one is in flight")

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("?")})
	assert.True(t, m.showHelp)
	assert.Contains(t, m.View(), "refresh now")
}

func TestTickTriggersScheduledFetch(t *testing.T) {
	f := &fakeFetcher{}
	m := newTestModel(f)

	_, cmd := update(t, m, TickMsg(fixedNow))
	require.NotNil(t, cmd)
	msg, ok := cmd().(RecordMsg)
	require.True(t, ok)
	assert.True(t, msg.Scheduled)
	assert.Equal(t, 1, f.calls)
}

func TestViewShowsRecord(t *testing.T) {
	m := newTestModel(&fakeFetcher{})
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 40})
	m, _ = update(t, m, RecordMsg{Record: record(progress.StatusDownloading, "Fetching reel...", "3312345", "alice"), At: fixedNow})

	view := m.View()
	for _, want := range []string{"DOWNLOADING", "35%", "Fetching reel...", "3312345", "@alice", "30s ago", "dash.local"} {
		assert.Contains(t, view, want)
	}
}

func TestViewBeforeFirstRecord(t *testing.T) {
	m := newTestModel(&fakeFetcher{})
	assert.Contains(t, m.View(), "Connecting to http://dash.local/api/progress")

	m, _ = update(t, m, RecordMsg{Err: errors.New("dial tcp: refused"), At: fixedNow})
	assert.Contains(t, m.View(), "Cannot reach")
}

func TestViewWithoutReelOrSender(t *testing.T) {
	m := newTestModel(&fakeFetcher{})
	m, _ = update(t, m, RecordMsg{Record: progress.Default(fixedNow), At: fixedNow})

	view := m.View()
	assert.Contains(t, view, "IDLE")
	assert.Contains(t, view, "none")
	assert.Contains(t, view, "(no message)")
}
