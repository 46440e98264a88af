package mssql

import (
	"context"

	"github.com/jrwils/sparkifydb-pg/internal/storage"
	"github.com/jrwils/sparkifydb-pg/internal/storage/sqlstore"
)

// Kind is the storage.Config.Kind this package registers.
const Kind = "mssql"

// newStore is a test hook that points to NewStore by default.
var newStore = NewStore

type wrappedStore struct {
	*sqlstore.Store
	closeFn func()
}

var _ storage.Store = (*wrappedStore)(nil)

// Close implements storage.Store.Close.
func (w *wrappedStore) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}

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
