package prefs

import (
	"context"
	"fmt"
)

// Backend names accepted by Open.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Options selects and configures a preference backend.
type Options struct {
	Backend string
	DBPath  string
	Redis   RedisConfig
}

// Open returns a ready-to-use Store for the configured backend.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Backend {
	case "", BackendSQLite:
		s, err := NewSQLiteStore(opts.DBPath)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		return s, nil
	case BackendRedis:
		return NewRedisStore(ctx, opts.Redis)
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown preference backend %q (want sqlite, redis or memory)", opts.Backend)
	}
}
