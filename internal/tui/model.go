package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/joescharf/kanban/internal/board"
	"github.com/joescharf/kanban/internal/source"
)

type loadedMsg struct{ err error }

// Model is the interactive board. It renders the shared board.State and
// turns key presses into criterion changes.
type Model struct {
	ctx     context.Context
	state   *board.State
	fetcher source.Fetcher
	theme   Theme

	width  int
	height int
	offset int // index of the first visible column
	notice string
}

// NewModel creates a board model that loads from fetcher on start.
func NewModel(ctx context.Context, state *board.State, fetcher source.Fetcher) Model {
	return Model{
		ctx:     ctx,
		state:   state,
		fetcher: fetcher,
		theme:   DefaultTheme,
		width:   120,
	}
}

// Run starts the program in the alternate screen and blocks until the user
// quits.
func Run(ctx context.Context, state *board.State, fetcher source.Fetcher) error {
	_, err := tea.NewProgram(NewModel(ctx, state, fetcher), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return m.load()
}

func (m Model) load() tea.Cmd {
	return func() tea.Msg {
		return loadedMsg{err: m.state.Load(m.ctx, m.fetcher)}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.clampOffset()
		return m, nil

	case loadedMsg:
		if msg.err != nil {
			m.notice = ""
		} else {
			m.notice = fmt.Sprintf("Loaded %d tickets", m.state.Snapshot().TicketCount)
		}
		m.clampOffset()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit

	case "g":
		grouping, _ := m.state.Criteria()
		next := grouping.Next()
		if err := m.state.SetGrouping(m.ctx, next); err != nil {
			m.notice = "Could not save grouping: " + err.Error()
			return m, nil
		}
		m.offset = 0
		m.notice = "Grouping: " + next.Label()

	case "s", "o":
		_, sorting := m.state.Criteria()
		next := sorting.Next()
		if err := m.state.SetSorting(m.ctx, next); err != nil {
			m.notice = "Could not save ordering: " + err.Error()
			return m, nil
		}
		m.notice = "Ordering: " + next.Label()

	case "r":
		m.notice = "Reloading..."
		return m, m.load()

	case "right", "l":
		m.offset++
		m.clampOffset()

	case "left", "h":
		m.offset--
		m.clampOffset()
	}
	return m, nil
}

func (m *Model) clampOffset() {
	cols := len(m.state.Snapshot().Columns)
	maxOffset := max(cols-ColumnsPerRow(m.width), 0)
	m.offset = max(min(m.offset, maxOffset), 0)
}

func (m Model) View() string {
	snap := m.state.Snapshot()
	faint := lipgloss.NewStyle().Foreground(m.theme.FaintText)

	header := lipgloss.NewStyle().Bold(true).Foreground(m.theme.Header).Render("Display") +
		faint.Render(fmt.Sprintf("  grouping: %s  ordering: %s", snap.Grouping.Label(), snap.Sorting.Label()))

	var body string
	switch {
	case snap.Error != "":
		body = lipgloss.NewStyle().Foreground(m.theme.Error).Render(snap.Error)
	case snap.Loading || !snap.Loaded:
		body = "Loading..."
	default:
		visible := snap.Columns
		if m.offset < len(visible) {
			visible = visible[m.offset:]
		}
		if n := ColumnsPerRow(m.width); len(visible) > n {
			visible = visible[:n]
		}
		body = RenderColumns(visible, snap.Grouping, m.width, m.theme)
	}

	footer := faint.Render("g group · s order · ←/→ scroll · r reload · q quit")
	if m.notice != "" {
		footer = faint.Render(m.notice) + "   " + footer
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, "", body, "", footer)
}
