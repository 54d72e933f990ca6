package board

import (
	"strconv"

	"github.com/joescharf/kanban/internal/models"
)

// Column is one group of the board: the stringified criterion value and the
// tickets carrying it.
type Column struct {
	Key     string                  `json:"key"`
	Tickets []models.EnrichedTicket `json:"tickets"`
}

var keySelectors = map[Grouping]func(models.EnrichedTicket) string{
	GroupByStatus:   func(t models.EnrichedTicket) string { return t.Status },
	GroupByUsername: func(t models.EnrichedTicket) string { return t.Username },
	GroupByPriority: func(t models.EnrichedTicket) string { return strconv.Itoa(t.Priority) },
}

// Group partitions tickets by the value of the grouping field. Columns are
// returned in first-occurrence order and keep input order within a column.
// An unrecognised or unset grouping yields a single column with an empty key
// holding every ticket.
func Group(tickets []models.EnrichedTicket, by Grouping) []Column {
	keyOf, ok := keySelectors[by]
	if !ok {
		if len(tickets) == 0 {
			return []Column{}
		}
		return []Column{{Key: "", Tickets: append([]models.EnrichedTicket(nil), tickets...)}}
	}

	columns := []Column{}
	index := make(map[string]int)
	for _, t := range tickets {
		key := keyOf(t)
		i, seen := index[key]
		if !seen {
			i = len(columns)
			index[key] = i
			columns = append(columns, Column{Key: key})
		}
		columns[i].Tickets = append(columns[i].Tickets, t)
	}
	return columns
}
