package board

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/text/language"

	"github.com/joescharf/kanban/internal/models"
	"github.com/joescharf/kanban/internal/prefs"
	"github.com/joescharf/kanban/internal/source"
)

// LoadFailedMessage is shown in place of the columns after a failed load.
const LoadFailedMessage = "Failed to load tickets. Please try again."

// Config holds the board defaults used when no preference is stored.
// An empty default leaves the board ungrouped or unsorted until the user
// picks a criterion.
type Config struct {
	DefaultGrouping Grouping
	DefaultSorting  Sorting
	Locale          language.Tag
	Logger          *slog.Logger
}

// Snapshot is the complete contract handed to a view.
type Snapshot struct {
	ID          string    `json:"id,omitempty"`
	Grouping    Grouping  `json:"grouping"`
	Sorting     Sorting   `json:"sorting"`
	Loading     bool      `json:"loading"`
	Loaded      bool      `json:"loaded"`
	Error       string    `json:"error,omitempty"`
	LoadedAt    time.Time `json:"loaded_at,omitzero"`
	TicketCount int       `json:"ticket_count"`
	Columns     []Column  `json:"columns"`
}

// State owns the enriched tickets and the active criteria and keeps the
// columns in sync with them. Every change rebuilds the columns from scratch.
// It is safe for concurrent use.
type State struct {
	prefs  prefs.Store
	locale language.Tag
	log    *slog.Logger

	mu       sync.RWMutex
	tickets  []models.EnrichedTicket
	grouping Grouping
	sorting  Sorting
	loaded   bool
	loading  bool
	loadErr  error
	loadedAt time.Time
	columns  []Column
	id       string
	loadGen  uint64 // bumped by every Load; only the newest may commit
}

// NewState creates a board over the preference store, restoring the
// persisted criteria. Stored values that are not valid criteria are ignored.
func NewState(ctx context.Context, store prefs.Store, cfg Config) (*State, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &State{
		prefs:    store,
		locale:   cfg.Locale,
		log:      logger,
		grouping: cfg.DefaultGrouping,
		sorting:  cfg.DefaultSorting,
		columns:  []Column{},
	}

	if v, ok, err := store.Get(ctx, prefs.GroupingKey); err != nil {
		return nil, fmt.Errorf("read grouping preference: %w", err)
	} else if ok {
		if g, err := ParseGrouping(v); err == nil {
			s.grouping = g
		} else {
			logger.Warn("ignoring stored grouping", "value", v)
		}
	}

	if v, ok, err := store.Get(ctx, prefs.SortingKey); err != nil {
		return nil, fmt.Errorf("read sorting preference: %w", err)
	} else if ok {
		if so, err := ParseSorting(v); err == nil {
			s.sorting = so
		} else {
			logger.Warn("ignoring stored sorting", "value", v)
		}
	}

	return s, nil
}

// Load fetches the board, enriches the tickets and rebuilds the columns.
// On failure nothing from the fetch is committed and the snapshot reports
// LoadFailedMessage with no columns. When loads overlap only the most
// recently started one commits; an older result is dropped.
func (s *State) Load(ctx context.Context, f source.Fetcher) error {
	s.mu.Lock()
	s.loadGen++
	gen := s.loadGen
	s.loading = true
	s.loadErr = nil
	s.mu.Unlock()

	payload, err := f.Fetch(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.loadGen {
		s.log.Debug("dropping superseded board load", "error", err)
		return err
	}
	s.loading = false

	if err != nil {
		s.loadErr = err
		s.log.Warn("board load failed", "error", err)
		return err
	}

	s.tickets = Enrich(payload.Tickets, payload.Users)
	s.loaded = true
	s.loadedAt = time.Now().UTC()
	s.rebuildLocked()
	s.log.Debug("board loaded", "tickets", len(payload.Tickets), "users", len(payload.Users), "columns", len(s.columns))
	return nil
}

// SetGrouping persists the grouping and rebuilds the columns.
func (s *State) SetGrouping(ctx context.Context, g Grouping) error {
	if !g.Valid() {
		return fmt.Errorf("%w: grouping %q", ErrInvalidCriterion, g)
	}
	if err := s.prefs.Set(ctx, prefs.GroupingKey, string(g)); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.grouping = g
	s.rebuildLocked()
	return nil
}

// SetSorting persists the sorting and rebuilds the columns.
func (s *State) SetSorting(ctx context.Context, so Sorting) error {
	if !so.Valid() {
		return fmt.Errorf("%w: sorting %q", ErrInvalidCriterion, so)
	}
	if err := s.prefs.Set(ctx, prefs.SortingKey, string(so)); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sorting = so
	s.rebuildLocked()
	return nil
}

// SetCriteria persists both criteria and rebuilds once. An empty value keeps
// the active criterion. Both values are validated before anything is
// written, and if the sorting write fails the stored grouping is put back.
func (s *State) SetCriteria(ctx context.Context, g Grouping, so Sorting) error {
	if g != "" && !g.Valid() {
		return fmt.Errorf("%w: grouping %q", ErrInvalidCriterion, g)
	}
	if so != "" && !so.Valid() {
		return fmt.Errorf("%w: sorting %q", ErrInvalidCriterion, so)
	}

	if g != "" {
		prev, had, err := s.prefs.Get(ctx, prefs.GroupingKey)
		if err != nil {
			return fmt.Errorf("read grouping preference: %w", err)
		}
		if err := s.prefs.Set(ctx, prefs.GroupingKey, string(g)); err != nil {
			return err
		}
		if so != "" {
			if err := s.prefs.Set(ctx, prefs.SortingKey, string(so)); err != nil {
				s.restorePref(ctx, prefs.GroupingKey, prev, had)
				return err
			}
		}
	} else if so != "" {
		if err := s.prefs.Set(ctx, prefs.SortingKey, string(so)); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if g != "" {
		s.grouping = g
	}
	if so != "" {
		s.sorting = so
	}
	s.rebuildLocked()
	return nil
}

func (s *State) restorePref(ctx context.Context, key, value string, had bool) {
	var err error
	if had {
		err = s.prefs.Set(ctx, key, value)
	} else {
		err = s.prefs.Delete(ctx, key)
	}
	if err != nil {
		s.log.Error("could not restore preference", "key", key, "error", err)
	}
}

// Criteria returns the active grouping and sorting.
func (s *State) Criteria() (Grouping, Sorting) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.grouping, s.sorting
}

// Snapshot returns the current view contract.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked(s.grouping, s.sorting, s.columns, s.id)
}

// View computes the board for the given criteria without persisting them or
// touching the active ones. Empty criteria fall back to the active ones.
func (s *State) View(g Grouping, so Sorting) Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if g == "" {
		g = s.grouping
	}
	if so == "" {
		so = s.sorting
	}
	if g == s.grouping && so == s.sorting {
		return s.snapshotLocked(g, so, s.columns, s.id)
	}
	var columns []Column
	if s.loaded {
		columns = Build(s.tickets, g, so, s.locale)
	}
	return s.snapshotLocked(g, so, columns, newULID())
}

func (s *State) snapshotLocked(g Grouping, so Sorting, columns []Column, id string) Snapshot {
	snap := Snapshot{
		Grouping: g,
		Sorting:  so,
		Loading:  s.loading,
		Loaded:   s.loaded,
		LoadedAt: s.loadedAt,
		Columns:  []Column{},
	}
	if s.loading {
		return snap
	}
	if s.loadErr != nil {
		snap.Error = LoadFailedMessage
		return snap
	}
	if s.loaded {
		snap.ID = id
		snap.TicketCount = len(s.tickets)
		snap.Columns = columns
	}
	return snap
}

// Err returns the error of the last load, if it failed.
func (s *State) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadErr
}

func (s *State) rebuildLocked() {
	if !s.loaded {
		return
	}
	s.columns = Build(s.tickets, s.grouping, s.sorting, s.locale)
	s.id = newULID()
}

// newULID generates a new ULID string.
func newULID() string {
	entropy := rand.New(rand.NewSource(time.Now().UnixNano()))
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(entropy, 0)).String()
}
