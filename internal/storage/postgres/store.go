// Package postgres implements the Postgres backend of storage.Store using
// pgx v5. All statements share a single pooled connection, matching the
// sequential shape of the pipeline.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jrwils/sparkifydb-pg/internal/records"
	"github.com/jrwils/sparkifydb-pg/internal/storage"
)

// Config holds Postgres store configuration.
type Config struct {
	DSN string // connection string for pgxpool, URL or key=value form
}

// Store is a Postgres-backed implementation of storage.Store.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to Postgres and returns a Store plus a Close function
// for cleanup.
func NewStore(ctx context.Context, cfg Config) (*Store, func(), error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool: parse dsn: %w", err)
	}
	pcfg.MaxConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, nil, classify.Wrap(storage.OpConnect, fmt.Errorf("pgxpool: %w", err))
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, classify.Wrap(storage.OpConnect, fmt.Errorf("ping: %w", err))
	}
	return &Store{pool: pool}, pool.Close, nil
}

var _ storage.Store = (*Store)(nil)

// Begin implements storage.Store.
func (s *Store) Begin(ctx context.Context) (storage.Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, classify.Wrap(storage.OpBegin, err)
	}
	return &Tx{tx: tx}, nil
}

// Exec implements storage.Store.
func (s *Store) Exec(ctx context.Context, stmt string) error {
	if _, err := s.pool.Exec(ctx, stmt); err != nil {
		return classify.Wrap(storage.OpExec, fmt.Errorf("postgres: exec: %w", err))
	}
	return nil
}

// Count implements storage.Store.
func (s *Store) Count(ctx context.Context, table string) (int64, error) {
	known := false
	for _, t := range storage.Tables {
		known = known || t == table
	}
	if !known {
		return 0, fmt.Errorf("postgres: count: unknown table %q", table)
	}
	var n int64
	q := "SELECT COUNT(*) FROM " + pgx.Identifier{table}.Sanitize()
	if err := s.pool.QueryRow(ctx, q).Scan(&n); err != nil {
		return 0, classify.Wrap(storage.OpCount, err)
	}
	return n, nil
}

// Close implements storage.Store.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// pgTx is the subset of pgx.Tx the loader uses; tests substitute a fake.
type pgTx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Tx is one unit of work on a Store.
type Tx struct {
	tx pgTx
}

var _ storage.Tx = (*Tx)(nil)

func (t *Tx) exec(ctx context.Context, op, stmt string, args ...any) error {
	_, err := t.tx.Exec(ctx, stmt, args...)
	return classify.Wrap(op, err)
}

// UpsertSong implements storage.Loader.
func (t *Tx) UpsertSong(ctx context.Context, s records.Song) error {
	return t.exec(ctx, storage.OpUpsertSong, insertSong,
		s.SongID, s.Title, s.ArtistID, s.Year, s.Duration)
}

// UpsertArtist implements storage.Loader.
func (t *Tx) UpsertArtist(ctx context.Context, a records.Artist) error {
	return t.exec(ctx, storage.OpUpsertArtist, insertArtist,
		a.ArtistID, a.Name, a.Location, a.Latitude, a.Longitude)
}

// UpsertTime implements storage.Loader.
func (t *Tx) UpsertTime(ctx context.Context, tr records.Time) error {
	return t.exec(ctx, storage.OpUpsertTime, insertTime,
		tr.StartTime, tr.Hour, tr.Day, tr.Week, tr.Month, tr.Year, tr.Weekday)
}

// UpsertUser implements storage.Loader.
func (t *Tx) UpsertUser(ctx context.Context, u records.User) error {
	if err := storage.RequireUserID(storage.OpUpsertUser, u.UserID); err != nil {
		return err
	}
	return t.exec(ctx, storage.OpUpsertUser, upsertUser,
		*u.UserID, u.FirstName, u.LastName, u.Gender, u.Level)
}

// ResolveSongArtist implements storage.Loader.
func (t *Tx) ResolveSongArtist(ctx context.Context, title, artistName string, duration float64) (records.SongArtist, bool, error) {
	var sa records.SongArtist
	err := t.tx.QueryRow(ctx, resolveSongArtist, title, artistName, duration).Scan(&sa.SongID, &sa.ArtistID)
	if errors.Is(err, pgx.ErrNoRows) {
		return records.SongArtist{}, false, nil
	}
	if err != nil {
		return records.SongArtist{}, false, classify.Wrap(storage.OpResolve, err)
	}
	return sa, true, nil
}

// InsertSongplay implements storage.Loader.
func (t *Tx) InsertSongplay(ctx context.Context, sp records.Songplay) error {
	if err := storage.RequireUserID(storage.OpInsertSongplay, sp.UserID); err != nil {
		return err
	}
	return t.exec(ctx, storage.OpInsertSongplay, insertSongplay,
		sp.StartTime, *sp.UserID, sp.Level, sp.SongID, sp.ArtistID, sp.SessionID, sp.Location, sp.UserAgent)
}

// Commit implements storage.Tx.
func (t *Tx) Commit(ctx context.Context) error {
	return classify.Wrap(storage.OpCommit, t.tx.Commit(ctx))
}

// Rollback implements storage.Tx. Rolling back a finished transaction is a
// no-op.
func (t *Tx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("postgres: rollback: %w", err)
	}
	return nil
}
