package tui

import (
	"fmt"
	"strings"

	bar "github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
)

const defaultWidth = 72

// View renders the dashboard
func (m Model) View() string {
	width := m.width
	if width <= 0 {
		width = defaultWidth
	}
	panelWidth := width - 4
	if panelWidth > 96 {
		panelWidth = 96
	}

	sections := []string{
		headerStyle.Render("IGREPOST // REEL BOT STATUS"),
		m.renderStatusPanel(panelWidth),
	}
	if len(m.history) > 0 {
		sections = append(sections, m.renderHistoryPanel(panelWidth))
	}
	if m.showHelp {
		sections = append(sections, m.renderHelp())
	} else {
		sections = append(sections, helpStyle.Render("q quit • r refresh • ? help"))
	}

	out := lipgloss.JoinVertical(lipgloss.Left, sections...)
	if m.width > 0 && m.height > 0 {
		return baseStyle.Width(m.width).Height(m.height).Render(out)
	}
	return out
}

func (m Model) renderStatusPanel(width int) string {
	inner := width - 6
	if inner < 20 {
		inner = 20
	}

	if !m.hasRecord {
		lines := []string{titleStyle.Render(" STATUS "), ""}
		if m.fetchErr != nil {
			lines = append(lines, errorStyle.Render("Cannot reach "+m.endpoint))
			lines = append(lines, faintStyle.Render(m.fetchErr.Error()))
		} else {
			lines = append(lines, m.spinner.View()+" Connecting to "+m.endpoint)
		}
		return panelStyle.Width(width).Render(strings.Join(lines, "\n"))
	}

	r := m.record
	theme := ThemeFor(r.Status)
	statusStyle := lipgloss.NewStyle().Foreground(theme.Color).Bold(true)

	heading := statusStyle.Render(theme.Icon + " " + theme.Label)
	if r.Status.Active() {
		heading = m.spinner.View() + " " + heading
	}

	pb := bar.New(bar.WithSolidFill(string(theme.Color)), bar.WithoutPercentage())
	pb.Width = inner - 6
	gauge := pb.ViewAs(theme.Percent) + " " + statusStyle.Render(fmt.Sprintf("%3.0f%%", theme.Percent*100))

	now := m.now()
	message := r.Message
	if message == "" {
		message = "(no message)"
	}
	reelID := r.ReelIDOrEmpty()
	if reelID == "" {
		reelID = "none"
	}
	sender := r.SenderOrEmpty()
	if sender == "" {
		sender = "none"
	} else {
		sender = "@" + sender
	}

	lines := []string{
		titleStyle.Render(" STATUS "),
		"",
		heading,
		gauge,
		"",
		row("Message", lipgloss.NewStyle().Width(inner-12).Render(message)),
		row("Reel", reelID),
		row("Sender", sender),
		row("Updated", Ago(r.UpdatedAt, now)),
		row("Fetched", Ago(m.lastFetch, now)),
		row("Endpoint", m.endpoint),
	}
	if m.fetchErr != nil {
		lines = append(lines, "", errorStyle.Render("Last fetch failed: ")+faintStyle.Render(m.fetchErr.Error()))
	}

	return panelStyle.Width(width).Render(strings.Join(lines, "\n"))
}

func row(label, value string) string {
	return labelStyle.Render(label) + valueStyle.Render(value)
}

func (m Model) renderHistoryPanel(width int) string {
	lines := []string{titleStyle.Render(" RECENT "), ""}
	for i := len(m.history) - 1; i >= 0; i-- {
		h := m.history[i]
		theme := ThemeFor(h.Status)
		lines = append(lines, fmt.Sprintf("%s %s %s",
			faintStyle.Render(h.Seen.Local().Format("15:04:05")),
			lipgloss.NewStyle().Foreground(theme.Color).Width(12).Render(theme.Label),
			h.Message,
		))
	}
	return panelStyle.Width(width).Render(strings.Join(lines, "\n"))
}

func (m Model) renderHelp() string {
	help := []string{
		"q / ctrl+c   quit",
		"r            refresh now",
		"?            toggle this help",
		"",
		fmt.Sprintf("Polling %s every %s.", m.endpoint, m.refresh),
	}
	return helpStyle.Render(strings.Join(help, "\n"))
}
