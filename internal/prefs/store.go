package prefs

import "context"

// Keys under which the board criteria are persisted.
const (
	GroupingKey = "groupingType"
	SortingKey  = "sortingType"
)

// Store is a key-value store for user preferences.
type Store interface {
	// Get returns the value stored under key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}
