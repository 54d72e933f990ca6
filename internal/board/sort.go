package board

import (
	"cmp"
	"slices"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/joescharf/kanban/internal/models"
)

// Sort returns a copy of tickets ordered by the sorting criterion. Both
// orders are stable. Titles are compared with the collation rules of locale.
// An unrecognised or unset criterion returns the tickets in input order.
func Sort(tickets []models.EnrichedTicket, by Sorting, locale language.Tag) []models.EnrichedTicket {
	out := slices.Clone(tickets)

	switch by {
	case SortByPriority:
		slices.SortStableFunc(out, func(a, b models.EnrichedTicket) int {
			return cmp.Compare(a.Priority, b.Priority)
		})
	case SortByTitle:
		// Collators keep internal buffers and must not be shared.
		c := collate.New(locale)
		slices.SortStableFunc(out, func(a, b models.EnrichedTicket) int {
			return c.CompareString(a.Title, b.Title)
		})
	}
	return out
}

// Build groups tickets and sorts every column independently.
func Build(tickets []models.EnrichedTicket, grouping Grouping, sorting Sorting, locale language.Tag) []Column {
	columns := Group(tickets, grouping)
	for i := range columns {
		columns[i].Tickets = Sort(columns[i].Tickets, sorting, locale)
	}
	return columns
}
