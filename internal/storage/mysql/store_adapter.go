package mysql

import (
	"context"

	"github.com/jrwils/sparkifydb-pg/internal/storage"
	"github.com/jrwils/sparkifydb-pg/internal/storage/sqlstore"
)

// Kind is the storage.Config.Kind this package registers.
const Kind = "mysql"

// newStore is a test hook that points to NewStore by default.
// Tests may replace this variable to avoid real DB connections.
var newStore = NewStore

var _ storage.Store = (*wrappedStore)(nil)

// init registers the "mysql" backend with the factory.
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

// wrappedStore adapts *sqlstore.Store to storage.Store and provides Close.
type wrappedStore struct {
	*sqlstore.Store
	closeFn func()
}

// Close closes the underlying connection pool.
func (w *wrappedStore) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}
