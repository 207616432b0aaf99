package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"igrepost/pkg/progress"
)

const (
	maxHistory     = 8
	minRefresh     = 500 * time.Millisecond
	defaultRefresh = 3 * time.Second
)

// Fetcher reads the current status record; *progress.Client implements it.
type Fetcher interface {
	Get(ctx context.Context) (progress.Record, error)
}

// HistoryEntry is one observed status change.
type HistoryEntry struct {
	Seen    time.Time
	Status  progress.Status
	Message string
}

// Model is the dashboard state.
type Model struct {
	fetcher  Fetcher
	endpoint string
	refresh  time.Duration
	now      func() time.Time

	spinner spinner.Model

	record    progress.Record
	hasRecord bool
	lastFetch time.Time
	fetchErr  error
	fetching  bool
	history   []HistoryEntry

	width    int
	height   int
	showHelp bool
}

// NewModel creates a dashboard polling fetcher every refresh.
func NewModel(fetcher Fetcher, endpoint string, refresh time.Duration) Model {
	if refresh <= 0 {
		refresh = defaultRefresh
	}
	if refresh < minRefresh {
		refresh = minRefresh
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(neonCyan)

	return Model{
		fetcher:  fetcher,
		endpoint: endpoint,
		refresh:  refresh,
		now:      time.Now,
		spinner:  s,
	}
}

// Init starts the spinner and the first fetch.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetch(true))
}

// Record returns the last record received and whether one has arrived.
func (m Model) Record() (progress.Record, bool) {
	return m.record, m.hasRecord
}

// FetchErr is the error of the most recent fetch, nil after a success.
func (m Model) FetchErr() error {
	return m.fetchErr
}

// History returns the observed status changes, oldest first.
func (m Model) History() []HistoryEntry {
	return append([]HistoryEntry(nil), m.history...)
}

// observe records r, appending to the history when status or message changed.
func (m *Model) observe(r progress.Record, at time.Time) {
	changed := !m.hasRecord || r.Status != m.record.Status || r.Message != m.record.Message
	m.record = r
	m.hasRecord = true
	if !changed {
		return
	}
	m.history = append(m.history, HistoryEntry{Seen: at, Status: r.Status, Message: r.Message})
	if len(m.history) > maxHistory {
		m.history = m.history[len(m.history)-maxHistory:]
	}
}

// Ago formats t relative to now.
func Ago(t, now time.Time) string {
	if t.IsZero() {
		return "never"
	}
	d := now.Sub(t)
	switch {
	case d < 5*time.Second:
		return "just now"
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return t.Local().Format("2006-01-02 15:04")
	}
}
