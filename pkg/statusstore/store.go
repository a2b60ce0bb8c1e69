package statusstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/naumanni/naumanni-server/pkg/config"
)

// KeyStatus is the key the aggregated status report is stored under.
const KeyStatus = "naumanni:status"

// ErrNotFound is returned by Get when the key has never been set.
var ErrNotFound = errors.New("statusstore: key not found")

// Store is a small byte-valued key-value store. Implementations are safe
// for concurrent use.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error

	Close() error
}

// New opens the backend selected by cfg.Backend.
func New(ctx context.Context, cfg config.StatusConfig) (Store, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return NewMemory(), nil
	case config.BackendSQLite, "":
		return NewSQLite(SQLiteOptions{
			Path:        cfg.SQLite.Path,
			BusyTimeout: cfg.SQLite.BusyTimeout,
		})
	case config.BackendRedis:
		return NewRedis(ctx, RedisOptions{
			URL:            cfg.Redis.URL,
			ConnectTimeout: cfg.Redis.ConnectTimeout,
		})
	default:
		return nil, fmt.Errorf("unknown status backend %q", cfg.Backend)
	}
}
