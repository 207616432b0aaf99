package tui

import (
	"github.com/charmbracelet/lipgloss"

	"igrepost/pkg/progress"
)

var (
	neonCyan    = lipgloss.Color("#00FFFF")
	neonMagenta = lipgloss.Color("#FF00FF")
	neonGreen   = lipgloss.Color("#39FF14")
	neonYellow  = lipgloss.Color("#FFFF00")
	neonOrange  = lipgloss.Color("#FF6700")
	alertRed    = lipgloss.Color("#FF3B3B")
	darkBg      = lipgloss.Color("#0A0E27")
	darkBg2     = lipgloss.Color("#1A1E37")
	dimWhite    = lipgloss.Color("#B0B0B0")
	mutedGray   = lipgloss.Color("#626262")

	baseStyle = lipgloss.NewStyle().
			Background(darkBg).
			Foreground(dimWhite)

	headerStyle = lipgloss.NewStyle().
			Foreground(neonCyan).
			Bold(true).
			Padding(1, 0, 0, 2)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(neonMagenta).
			Background(darkBg2).
			Padding(1, 2)

	titleStyle = lipgloss.NewStyle().
			Background(neonMagenta).
			Foreground(darkBg).
			Bold(true).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(neonCyan).
			Bold(true).
			Width(12)

	valueStyle = lipgloss.NewStyle().
			Foreground(neonYellow)

	faintStyle = lipgloss.NewStyle().
			Foreground(mutedGray)

	errorStyle = lipgloss.NewStyle().
			Foreground(alertRed).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(mutedGray).
			Padding(1, 0, 0, 2)
)

// Theme is how one status is drawn on the dashboard.
type Theme struct {
	Color   lipgloss.Color
	Icon    string
	Label   string
	Percent float64
}

var themes = map[progress.Status]Theme{
	progress.StatusIdle:        {Color: dimWhite, Icon: "◌", Label: "IDLE", Percent: 0},
	progress.StatusDownloading: {Color: neonCyan, Icon: "⇣", Label: "DOWNLOADING", Percent: 0.35},
	progress.StatusUploading:   {Color: neonYellow, Icon: "⇡", Label: "UPLOADING", Percent: 0.70},
	progress.StatusCompleted:   {Color: neonGreen, Icon: "✔", Label: "COMPLETED", Percent: 1},
	progress.StatusError:       {Color: alertRed, Icon: "✖", Label: "ERROR", Percent: 1},
}

// ThemeFor returns the theme of s. Unknown statuses render like idle with
// their raw name as label.
func ThemeFor(s progress.Status) Theme {
	if t, ok := themes[s]; ok {
		return t
	}
	t := themes[progress.StatusIdle]
	t.Label = string(s)
	return t
}
