package board

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidCriterion is returned when a grouping or sorting value is not
// one of the recognised criteria.
var ErrInvalidCriterion = errors.New("invalid criterion")

// Grouping selects the ticket field columns are keyed by.
type Grouping string

const (
	GroupByStatus   Grouping = "status"
	GroupByUsername Grouping = "username"
	GroupByPriority Grouping = "priority"
)

// Sorting selects the order of tickets within a column.
type Sorting string

const (
	SortByPriority Sorting = "priority"
	SortByTitle    Sorting = "title"
)

// Groupings lists the grouping criteria in display order.
func Groupings() []Grouping {
	return []Grouping{GroupByStatus, GroupByUsername, GroupByPriority}
}

// Sortings lists the sorting criteria in display order.
func Sortings() []Sorting {
	return []Sorting{SortByPriority, SortByTitle}
}

// Valid reports whether g is a recognised grouping criterion.
func (g Grouping) Valid() bool {
	_, ok := keySelectors[g]
	return ok
}

// Valid reports whether s is a recognised sorting criterion.
func (s Sorting) Valid() bool {
	return s == SortByPriority || s == SortByTitle
}

// Label is the human-facing name of the criterion.
func (g Grouping) Label() string {
	switch g {
	case GroupByStatus:
		return "Status"
	case GroupByUsername:
		return "User"
	case GroupByPriority:
		return "Priority"
	default:
		return "None"
	}
}

// Label is the human-facing name of the criterion.
func (s Sorting) Label() string {
	switch s {
	case SortByPriority:
		return "Priority"
	case SortByTitle:
		return "Title"
	default:
		return "None"
	}
}

// Next returns the criterion after g in display order, wrapping around.
// An unset grouping advances to the first criterion.
func (g Grouping) Next() Grouping {
	all := Groupings()
	for i, c := range all {
		if c == g {
			return all[(i+1)%len(all)]
		}
	}
	return all[0]
}

// Next returns the criterion after s in display order, wrapping around.
func (s Sorting) Next() Sorting {
	all := Sortings()
	for i, c := range all {
		if c == s {
			return all[(i+1)%len(all)]
		}
	}
	return all[0]
}

// ParseGrouping validates a grouping value. "user" is accepted as an alias
// for "username".
func ParseGrouping(v string) (Grouping, error) {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "user" {
		v = string(GroupByUsername)
	}
	g := Grouping(v)
	if !g.Valid() {
		return "", fmt.Errorf("%w: grouping %q (want status, username or priority)", ErrInvalidCriterion, v)
	}
	return g, nil
}

// ParseSorting validates a sorting value.
func ParseSorting(v string) (Sorting, error) {
	v = strings.ToLower(strings.TrimSpace(v))
	s := Sorting(v)
	if !s.Valid() {
		return "", fmt.Errorf("%w: sorting %q (want priority or title)", ErrInvalidCriterion, v)
	}
	return s, nil
}
