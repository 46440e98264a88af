// Package storage contains the storage-agnostic contracts of the loader and
// a small factory registry that concrete backends plug into at init time.
//
// Callers open a Store once with New, run one Tx per input file, and never
// import a backend package directly; importing storage/all (or a single
// backend) for side effects is enough to make its kind available.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/jrwils/sparkifydb-pg/internal/records"
)

// Loader writes extracted records into the star schema and answers the song
// lookup needed to resolve songplay foreign keys.
//
// Dimension upserts are idempotent: songs, artists and time rows are left
// untouched when the key already exists, and a known user only has its level
// updated. Songplays are always appended.
type Loader interface {
	UpsertSong(ctx context.Context, s records.Song) error
	UpsertArtist(ctx context.Context, a records.Artist) error
	UpsertTime(ctx context.Context, t records.Time) error
	UpsertUser(ctx context.Context, u records.User) error

	// ResolveSongArtist returns the first song whose title, artist name and
	// duration match exactly. ok is false when nothing matches.
	ResolveSongArtist(ctx context.Context, title, artistName string, duration float64) (sa records.SongArtist, ok bool, err error)

	InsertSongplay(ctx context.Context, sp records.Songplay) error
}

// Tx is a Loader bound to one unit of work. Exactly one of Commit or Rollback
// must be called; Rollback after Commit is a no-op.
type Tx interface {
	Loader
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Store is an open datastore session.
type Store interface {
	// Begin starts a unit of work.
	Begin(ctx context.Context) (Tx, error)

	// Exec runs a single statement outside any unit of work (typically DDL).
	Exec(ctx context.Context, stmt string) error

	// Count returns the number of rows in one of the schema tables.
	Count(ctx context.Context, table string) (int64, error)

	Close()
}

// Config selects a backend and tells it where to connect.
type Config struct {
	// Kind is the registered backend name, e.g. "postgres" or "sqlite".
	Kind string

	// DSN is passed through to the backend's driver.
	DSN string
}

// Factory opens a Store for one backend.
type Factory func(ctx context.Context, cfg Config) (Store, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a backend available under kind. Registering the same kind
// twice replaces the earlier factory.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// New opens a Store using the factory registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (Store, error) {
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported storage.kind=%s (registered: %v)", cfg.Kind, ListKinds())
	}
	return f(ctx, cfg)
}

// ListKinds returns the registered backend names in sorted order.
func ListKinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
