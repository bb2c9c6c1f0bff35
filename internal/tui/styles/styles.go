// Package styles colours status words in fleet's tables. lipgloss drops the
// colour codes when output is not a terminal, so piped output stays plain.
package styles

import "github.com/charmbracelet/lipgloss"

var (
	green  = lipgloss.Color("#5FD787")
	yellow = lipgloss.Color("#FFD787")
	red    = lipgloss.Color("#FF8787")
	gray   = lipgloss.Color("#888888")
)

// StatusStyle returns the style for a server, service, journal or audit
// status word.
func StatusStyle(status string) lipgloss.Style {
	s := lipgloss.NewStyle()
	switch status {
	case "running", "active", "success":
		return s.Foreground(green).Bold(true)
	case "creating", "aborted":
		return s.Foreground(yellow).Bold(true)
	case "unknown":
		return s.Foreground(yellow)
	case "down", "decommissioning", "error":
		return s.Foreground(red)
	default:
		return s.Foreground(gray)
	}
}

// StatusIndicator renders a coloured dot followed by the status.
func StatusIndicator(status string) string {
	style := StatusStyle(status)
	return style.Render("●") + " " + style.Render(status)
}
