// Package sqlite implements the SQLite backend of storage.Store using
// modernc.org/sqlite (pure Go, no cgo). It is the backend the test suites
// run against.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/jrwils/sparkifydb-pg/internal/etlerr"
	"github.com/jrwils/sparkifydb-pg/internal/storage"
	"github.com/jrwils/sparkifydb-pg/internal/storage/sqlstore"
)

// Config holds SQLite store configuration derived from storage.Config.
type Config struct {
	// DSN is a SQLite connection string or file path, e.g.:
	//   "file:sparkify.db"
	//   "sparkify.db"
	//   ":memory:"
	DSN string
}

// NewStore opens a SQLite database and returns a Store plus a Close function
// for cleanup. Foreign keys are enforced on every connection and the pool is
// capped at one connection so a unit of work always sees its own writes.
func NewStore(ctx context.Context, cfg Config) (*sqlstore.Store, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, fmt.Errorf("sqlite: DSN must not be empty")
	}

	db, err := sql.Open("sqlite", withForeignKeys(cfg.DSN))
	if err != nil {
		return nil, nil, fmt.Errorf("sqlite: open: %w", err)
	}
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, nil, &etlerr.ConnectionError{Op: storage.OpConnect, Err: fmt.Errorf("sqlite: ping: %w", err)}
	}

	s := sqlstore.New(db, Dialect)
	return s, s.Close, nil
}

// withForeignKeys appends the foreign_keys pragma unless the DSN already
// sets it.
func withForeignKeys(dsn string) string {
	if strings.Contains(dsn, "foreign_keys") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)"
}

// Dialect is the SQLite statement set.
var Dialect = &sqlstore.Dialect{
	Name: "sqlite",

	InsertSong: `INSERT INTO songs (song_id, title, artist_id, year, duration)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (song_id) DO NOTHING`,

	InsertArtist: `INSERT INTO artists (artist_id, name, location, latitude, longitude)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (artist_id) DO NOTHING`,

	InsertTime: `INSERT INTO "time" (start_time, hour, day, week, month, year, weekday)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (start_time) DO NOTHING`,

	UpsertUser: `INSERT INTO users (user_id, first_name, last_name, gender, level)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (user_id) DO UPDATE SET level = excluded.level`,

	ResolveSongArtist: `SELECT s.song_id, a.artist_id
FROM songs s
INNER JOIN artists a ON s.artist_id = a.artist_id
WHERE s.title = ? AND a.name = ? AND s.duration = ?
LIMIT 1`,

	InsertSongplay: `INSERT INTO songplays (start_time, user_id, level, song_id, artist_id, session_id, location, user_agent)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,

	QuoteIdent: func(s string) string { return `"` + strings.ReplaceAll(s, `"`, `""`) + `"` },

	Classify: storage.Classifier{
		Constraint: isConstraint,
		Connection: isConnection,
	},
}

func sqliteCode(err error) (int, bool) {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return 0, false
	}
	// Extended result codes carry the primary code in the low byte.
	return se.Code() & 0xff, true
}

func isConstraint(err error) bool {
	code, ok := sqliteCode(err)
	return ok && code == sqlite3.SQLITE_CONSTRAINT
}

func isConnection(err error) bool {
	code, ok := sqliteCode(err)
	return ok && (code == sqlite3.SQLITE_CANTOPEN || code == sqlite3.SQLITE_NOTADB)
}
