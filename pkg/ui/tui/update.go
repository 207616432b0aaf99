package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"igrepost/pkg/progress"
)

// RecordMsg carries the result of one fetch. Scheduled fetches arm the
// next refresh tick; manual ones do not, so only one tick chain runs.
type RecordMsg struct {
	Record    progress.Record
	Err       error
	At        time.Time
	Scheduled bool
}

// TickMsg asks for the next scheduled fetch.
type TickMsg time.Time

// Update handles all messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case TickMsg:
		return m, m.fetch(true)

	case RecordMsg:
		m.fetching = false
		m.lastFetch = msg.At
		if msg.Err != nil {
			m.fetchErr = msg.Err
		} else {
			m.fetchErr = nil
			m.observe(msg.Record, msg.At)
		}
		if msg.Scheduled {
			return m, m.tick()
		}
		return m, nil
	}

	return m, nil
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "Q", "ctrl+c", "esc":
		return m, tea.Quit

	case "r", "R":
		if m.fetching {
			return m, nil
		}
		m.fetching = true
		return m, m.fetch(false)

	case "?":
		m.showHelp = !m.showHelp
		return m, nil
	}

	return m, nil
}

// fetch returns a command that reads the record once.
func (m Model) fetch(scheduled bool) tea.Cmd {
	fetcher, timeout, now := m.fetcher, m.refresh, m.now
	if timeout < 2*time.Second {
		timeout = 2 * time.Second
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		r, err := fetcher.Get(ctx)
		return RecordMsg{Record: r, Err: err, At: now(), Scheduled: scheduled}
	}
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}
