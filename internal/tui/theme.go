package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme is the palette used by the board. Colors are ANSI 256 codes.
type Theme struct {
	NormalText lipgloss.Color
	FaintText  lipgloss.Color
	Header     lipgloss.Color
	Border     lipgloss.Color
	Error      lipgloss.Color

	// Indexed by priority 0-4: none, low, medium, high, urgent.
	PriorityColors [5]lipgloss.Color

	StatusTodo       lipgloss.Color
	StatusInProgress lipgloss.Color
	StatusDone       lipgloss.Color
	StatusBacklog    lipgloss.Color
	StatusCanceled   lipgloss.Color
}

// DefaultTheme suits dark terminals.
var DefaultTheme = Theme{
	NormalText: lipgloss.Color("252"),
	FaintText:  lipgloss.Color("243"),
	Header:     lipgloss.Color("255"),
	Border:     lipgloss.Color("238"),
	Error:      lipgloss.Color("203"),

	PriorityColors: [5]lipgloss.Color{"243", "110", "252", "214", "202"},

	StatusTodo:       lipgloss.Color("250"),
	StatusInProgress: lipgloss.Color("220"),
	StatusDone:       lipgloss.Color("71"),
	StatusBacklog:    lipgloss.Color("243"),
	StatusCanceled:   lipgloss.Color("203"),
}

// PriorityColor returns the color for a priority level. Out-of-range
// values return NormalText.
func (t Theme) PriorityColor(priority int) lipgloss.Color {
	if priority < 0 || priority >= len(t.PriorityColors) {
		return t.NormalText
	}
	return t.PriorityColors[priority]
}

// StatusColor returns the color for a status, FaintText when unknown.
func (t Theme) StatusColor(status string) lipgloss.Color {
	switch strings.ToLower(status) {
	case "todo":
		return t.StatusTodo
	case "in progress":
		return t.StatusInProgress
	case "done":
		return t.StatusDone
	case "backlog":
		return t.StatusBacklog
	case "canceled", "cancelled":
		return t.StatusCanceled
	default:
		return t.FaintText
	}
}
