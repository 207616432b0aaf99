package tui

import (
	"context"
	"errors"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// Options configures Run.
type Options struct {
	Endpoint  string
	Refresh   time.Duration
	AltScreen bool
	Input     io.Reader
	Output    io.Writer
}

// Run shows the dashboard until the user quits or ctx is cancelled.
func Run(ctx context.Context, fetcher Fetcher, opts Options) error {
	model := NewModel(fetcher, opts.Endpoint, opts.Refresh)

	programOpts := []tea.ProgramOption{tea.WithContext(ctx)}
	if opts.AltScreen {
		programOpts = append(programOpts, tea.WithAltScreen())
	}
	if opts.Input != nil {
		programOpts = append(programOpts, tea.WithInput(opts.Input))
	}
	if opts.Output != nil {
		programOpts = append(programOpts, tea.WithOutput(opts.Output))
	}

	_, err := tea.NewProgram(model, programOpts...).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
