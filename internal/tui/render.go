package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/joescharf/kanban/internal/board"
	"github.com/joescharf/kanban/internal/models"
	"github.com/joescharf/kanban/internal/output"
)

// ColumnWidth is the outer width of one rendered column.
const ColumnWidth = 34

const columnGap = 1

// ColumnsPerRow returns how many columns fit side by side in width.
func ColumnsPerRow(width int) int {
	n := (width + columnGap) / (ColumnWidth + columnGap)
	if n < 1 {
		return 1
	}
	return n
}

// ColumnTitle is the header text for a column. Priority keys are shown with
// their label and the ungrouped column is called "All tickets".
func ColumnTitle(key string, grouping board.Grouping) string {
	if key == "" && !grouping.Valid() {
		return "All tickets"
	}
	if grouping == board.GroupByPriority {
		if p, err := strconv.Atoi(key); err == nil {
			return output.PriorityLabel(p)
		}
	}
	return key
}

// RenderColumns lays columns out side by side, wrapping onto further rows
// when they do not fit in width.
func RenderColumns(columns []board.Column, grouping board.Grouping, width int, theme Theme) string {
	if len(columns) == 0 {
		return lipgloss.NewStyle().Foreground(theme.FaintText).Render("No tickets.")
	}

	perRow := ColumnsPerRow(width)
	var rows []string
	for start := 0; start < len(columns); start += perRow {
		end := min(start+perRow, len(columns))
		rows = append(rows, renderRow(columns[start:end], grouping, theme))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func renderRow(columns []board.Column, grouping board.Grouping, theme Theme) string {
	gap := strings.Repeat(" ", columnGap)
	parts := make([]string, 0, len(columns)*2)
	for i, c := range columns {
		if i > 0 {
			parts = append(parts, gap)
		}
		parts = append(parts, renderColumn(c, grouping, theme))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func renderColumn(c board.Column, grouping board.Grouping, theme Theme) string {
	header := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.Header).
		Width(ColumnWidth).
		Render(fmt.Sprintf("%s %s", ColumnTitle(c.Key, grouping),
			lipgloss.NewStyle().Foreground(theme.FaintText).Render(strconv.Itoa(len(c.Tickets)))))

	cards := make([]string, 0, len(c.Tickets)+1)
	cards = append(cards, header)
	for _, t := range c.Tickets {
		cards = append(cards, renderCard(t, grouping, theme))
	}
	return lipgloss.JoinVertical(lipgloss.Left, cards...)
}

// renderCard draws one ticket. Fields already implied by the column are
// left off the card.
func renderCard(t models.EnrichedTicket, grouping board.Grouping, theme Theme) string {
	faint := lipgloss.NewStyle().Foreground(theme.FaintText)

	lines := []string{
		faint.Render(string(t.ID)),
		lipgloss.NewStyle().Foreground(theme.NormalText).Render(t.Title),
	}

	var meta []string
	if grouping != board.GroupByPriority {
		meta = append(meta, lipgloss.NewStyle().Foreground(theme.PriorityColor(t.Priority)).Render(output.PriorityLabel(t.Priority)))
	}
	if grouping != board.GroupByStatus {
		meta = append(meta, lipgloss.NewStyle().Foreground(theme.StatusColor(t.Status)).Render(t.Status))
	}
	if grouping != board.GroupByUsername {
		meta = append(meta, faint.Render(t.Username))
	}
	if len(meta) > 0 {
		lines = append(lines, strings.Join(meta, faint.Render(" · ")))
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.Border).
		Padding(0, 1).
		Width(ColumnWidth - 2).
		Render(strings.Join(lines, "\n"))
}
