package storage

import (
	"context"
	"fmt"
	"sync"
)

// Schema table names.
const (
	TableSongplays = "songplays"
	TableUsers     = "users"
	TableSongs     = "songs"
	TableArtists   = "artists"
	TableTime      = "time"
)

// Tables lists the schema tables with the fact table first.
var Tables = []string{TableSongplays, TableUsers, TableSongs, TableArtists, TableTime}

// DDL holds a backend's schema statements. Create runs dimensions before the
// fact table; Drop runs in the reverse dependency order.
type DDL struct {
	Create []string
	Drop   []string
}

var (
	ddlMu  sync.RWMutex
	ddlFns = map[string]DDL{}
)

// RegisterDDL registers (or replaces) the schema statements for kind. It is
// called from backend packages' init functions next to Register.
func RegisterDDL(kind string, ddl DDL) {
	ddlMu.Lock()
	defer ddlMu.Unlock()
	ddlFns[kind] = ddl
}

func lookupDDL(kind string) (DDL, error) {
	ddlMu.RLock()
	d, ok := ddlFns[kind]
	ddlMu.RUnlock()
	if !ok {
		return DDL{}, fmt.Errorf("no DDL registered for storage.kind=%q", kind)
	}
	return d, nil
}

// CreateSchema creates the five schema tables on s using the statements
// registered for kind.
func CreateSchema(ctx context.Context, kind string, s Store) error {
	d, err := lookupDDL(kind)
	if err != nil {
		return err
	}
	return execAll(ctx, s, d.Create)
}

// DropSchema drops the schema tables if they exist.
func DropSchema(ctx context.Context, kind string, s Store) error {
	d, err := lookupDDL(kind)
	if err != nil {
		return err
	}
	return execAll(ctx, s, d.Drop)
}

// ResetSchema drops and recreates the schema, leaving every table empty.
func ResetSchema(ctx context.Context, kind string, s Store) error {
	if err := DropSchema(ctx, kind, s); err != nil {
		return err
	}
	return CreateSchema(ctx, kind, s)
}

func execAll(ctx context.Context, s Store, stmts []string) error {
	for _, stmt := range stmts {
		if err := s.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply DDL: %w", err)
		}
	}
	return nil
}
