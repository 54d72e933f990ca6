// Package tui renders the board in a terminal. RenderColumns draws a static
// board for one-shot output; Model is an interactive bubbletea program over a
// shared board.State in which the grouping and ordering can be switched and
// are persisted on every change.
package tui
