// Package sqlstore implements storage.Store on top of database/sql for the
// backends whose drivers plug into it (sqlite, mysql, mssql). Each backend
// supplies a Dialect with its statements and error classification; the
// transaction plumbing is shared.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jrwils/sparkifydb-pg/internal/records"
	"github.com/jrwils/sparkifydb-pg/internal/storage"
)

// Dialect is the backend-specific part of a Store.
//
// Every statement takes its arguments positionally, in the column order of
// the target table:
//
//	InsertSong:        song_id, title, artist_id, year, duration
//	InsertArtist:      artist_id, name, location, latitude, longitude
//	InsertTime:        start_time, hour, day, week, month, year, weekday
//	UpsertUser:        user_id, first_name, last_name, gender, level
//	ResolveSongArtist: title, artist name, duration
//	InsertSongplay:    start_time, user_id, level, song_id, artist_id,
//	                   session_id, location, user_agent
type Dialect struct {
	Name string

	InsertSong        string
	InsertArtist      string
	InsertTime        string
	UpsertUser        string
	ResolveSongArtist string
	InsertSongplay    string

	// QuoteIdent quotes a table name for Count.
	QuoteIdent func(string) string

	Classify storage.Classifier
}

// Store is a database/sql backed storage.Store.
type Store struct {
	db *sql.DB
	d  *Dialect
}

var _ storage.Store = (*Store)(nil)

// New wraps an open database handle. The store owns db and closes it on
// Close.
func New(db *sql.DB, d *Dialect) *Store {
	return &Store{db: db, d: d}
}

// DB exposes the underlying handle for tests and admin tooling.
func (s *Store) DB() *sql.DB { return s.db }

// Begin implements storage.Store.
func (s *Store) Begin(ctx context.Context) (storage.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, s.d.Classify.Wrap(storage.OpBegin, err)
	}
	return &Tx{tx: tx, d: s.d}, nil
}

// Exec implements storage.Store.
func (s *Store) Exec(ctx context.Context, stmt string) error {
	if strings.TrimSpace(stmt) == "" {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return s.d.Classify.Wrap(storage.OpExec, fmt.Errorf("%s: exec: %w", s.d.Name, err))
	}
	return nil
}

// Count implements storage.Store.
func (s *Store) Count(ctx context.Context, table string) (int64, error) {
	if !isSchemaTable(table) {
		return 0, fmt.Errorf("%s: count: unknown table %q", s.d.Name, table)
	}
	var n int64
	q := "SELECT COUNT(*) FROM " + s.d.QuoteIdent(table)
	if err := s.db.QueryRowContext(ctx, q).Scan(&n); err != nil {
		return 0, s.d.Classify.Wrap(storage.OpCount, err)
	}
	return n, nil
}

// Close implements storage.Store.
func (s *Store) Close() { _ = s.db.Close() }

func isSchemaTable(name string) bool {
	for _, t := range storage.Tables {
		if t == name {
			return true
		}
	}
	return false
}

// Tx is one unit of work on a Store.
type Tx struct {
	tx   *sql.Tx
	d    *Dialect
	done bool
}

var _ storage.Tx = (*Tx)(nil)

func (t *Tx) exec(ctx context.Context, op, stmt string, args ...any) error {
	_, err := t.tx.ExecContext(ctx, stmt, args...)
	return t.d.Classify.Wrap(op, err)
}

// UpsertSong implements storage.Loader.
func (t *Tx) UpsertSong(ctx context.Context, s records.Song) error {
	return t.exec(ctx, storage.OpUpsertSong, t.d.InsertSong,
		s.SongID, s.Title, s.ArtistID, s.Year, s.Duration)
}

// UpsertArtist implements storage.Loader.
func (t *Tx) UpsertArtist(ctx context.Context, a records.Artist) error {
	return t.exec(ctx, storage.OpUpsertArtist, t.d.InsertArtist,
		a.ArtistID, a.Name, Nullable(a.Location), Nullable(a.Latitude), Nullable(a.Longitude))
}

// UpsertTime implements storage.Loader.
func (t *Tx) UpsertTime(ctx context.Context, tr records.Time) error {
	return t.exec(ctx, storage.OpUpsertTime, t.d.InsertTime,
		tr.StartTime, tr.Hour, tr.Day, tr.Week, tr.Month, tr.Year, tr.Weekday)
}

// UpsertUser implements storage.Loader.
func (t *Tx) UpsertUser(ctx context.Context, u records.User) error {
	if err := storage.RequireUserID(storage.OpUpsertUser, u.UserID); err != nil {
		return err
	}
	return t.exec(ctx, storage.OpUpsertUser, t.d.UpsertUser,
		*u.UserID, Nullable(u.FirstName), Nullable(u.LastName), Nullable(u.Gender), Nullable(u.Level))
}

// ResolveSongArtist implements storage.Loader.
func (t *Tx) ResolveSongArtist(ctx context.Context, title, artistName string, duration float64) (records.SongArtist, bool, error) {
	var sa records.SongArtist
	err := t.tx.QueryRowContext(ctx, t.d.ResolveSongArtist, title, artistName, duration).
		Scan(&sa.SongID, &sa.ArtistID)
	if errors.Is(err, sql.ErrNoRows) {
		return records.SongArtist{}, false, nil
	}
	if err != nil {
		return records.SongArtist{}, false, t.d.Classify.Wrap(storage.OpResolve, err)
	}
	return sa, true, nil
}

// InsertSongplay implements storage.Loader.
func (t *Tx) InsertSongplay(ctx context.Context, sp records.Songplay) error {
	if err := storage.RequireUserID(storage.OpInsertSongplay, sp.UserID); err != nil {
		return err
	}
	return t.exec(ctx, storage.OpInsertSongplay, t.d.InsertSongplay,
		sp.StartTime, *sp.UserID, Nullable(sp.Level), Nullable(sp.SongID), Nullable(sp.ArtistID),
		Nullable(sp.SessionID), Nullable(sp.Location), Nullable(sp.UserAgent))
}

// Commit implements storage.Tx.
func (t *Tx) Commit(_ context.Context) error {
	t.done = true
	return t.d.Classify.Wrap(storage.OpCommit, t.tx.Commit())
}

// Rollback implements storage.Tx.
func (t *Tx) Rollback(_ context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("%s: rollback: %w", t.d.Name, err)
	}
	return nil
}

// Nullable turns a nil pointer into an untyped nil driver argument and
// dereferences anything else.
func Nullable[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}
