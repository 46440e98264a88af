package postgres

import (
	"context"

	"github.com/jrwils/sparkifydb-pg/internal/storage"
)

// Kind is the storage.Config.Kind this package registers.
const Kind = "postgres"

// newStore is a test hook that points to NewStore by default.
// Tests may replace this variable to avoid real DB connections.
var newStore = NewStore

// wrappedStore implements storage.Store by delegating to the concrete *Store
// while routing Close through the close function returned by NewStore.
type wrappedStore struct {
	*Store
	closeFn func()
}

var _ storage.Store = (*wrappedStore)(nil)

// Close implements storage.Store.Close.
func (w *wrappedStore) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}

// init registers the "postgres" backend and its schema statements so callers
// can stay backend-agnostic:
//
//	s, err := storage.New(ctx, storage.Config{Kind: "postgres", DSN: dsn})
//	defer s.Close()
//	err = storage.CreateSchema(ctx, "postgres", s)
func init() {
	storage.Register(Kind, func(ctx context.Context, cfg storage.Config) (storage.Store, error) {
		s, closeFn, err := newStore(ctx, Config{DSN: cfg.DSN})
		if err != nil {
			return nil, err
		}
		return &wrappedStore{Store: s, closeFn: closeFn}, nil
	})
	storage.RegisterDDL(Kind, DDL)
}
