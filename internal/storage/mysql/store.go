// Package mysql implements the MySQL backend of storage.Store on
// go-sql-driver/mysql.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/jrwils/sparkifydb-pg/internal/storage"
	"github.com/jrwils/sparkifydb-pg/internal/storage/sqlstore"
)

// Config holds MySQL store configuration.
type Config struct {
	DSN string // user:pass@tcp(host:3306)/sparkifydb
}

// NewStore parses the DSN, forces UTC time handling, and opens a single
// connection pool.
func NewStore(ctx context.Context, cfg Config) (*sqlstore.Store, func(), error) {
	mc, err := normalizeDSN(cfg.DSN)
	if err != nil {
		return nil, nil, err
	}
	db, err := sql.Open("mysql", mc)
	if err != nil {
		return nil, nil, fmt.Errorf("sql.Open: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, Dialect.Classify.Wrap(storage.OpConnect, fmt.Errorf("ping: %w", err))
	}
	s := sqlstore.New(db, Dialect)
	return s, s.Close, nil
}

// normalizeDSN validates dsn and pins the session to UTC so DATETIME values
// round-trip unchanged.
func normalizeDSN(dsn string) (string, error) {
	mc, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("mysql dsn: %w", err)
	}
	mc.Loc = time.UTC
	mc.ParseTime = true
	if mc.Params == nil {
		mc.Params = map[string]string{}
	}
	mc.Params["time_zone"] = "'+00:00'"
	return mc.FormatDSN(), nil
}

// Dialect is the MySQL statement set.
var Dialect = &sqlstore.Dialect{
	Name: "mysql",

	InsertSong: "INSERT INTO songs (song_id, title, artist_id, year, duration)\n" +
		"VALUES (?, ?, ?, ?, ?)\n" +
		"ON DUPLICATE KEY UPDATE song_id = song_id",

	InsertArtist: "INSERT INTO artists (artist_id, name, location, latitude, longitude)\n" +
		"VALUES (?, ?, ?, ?, ?)\n" +
		"ON DUPLICATE KEY UPDATE artist_id = artist_id",

	InsertTime: "INSERT INTO `time` (start_time, hour, day, week, month, year, weekday)\n" +
		"VALUES (?, ?, ?, ?, ?, ?, ?)\n" +
		"ON DUPLICATE KEY UPDATE start_time = start_time",

	UpsertUser: "INSERT INTO users (user_id, first_name, last_name, gender, level)\n" +
		"VALUES (?, ?, ?, ?, ?)\n" +
		"ON DUPLICATE KEY UPDATE level = VALUES(level)",

	ResolveSongArtist: "SELECT s.song_id, a.artist_id\n" +
		"FROM songs s\n" +
		"INNER JOIN artists a ON s.artist_id = a.artist_id\n" +
		"WHERE s.title = ? AND a.name = ? AND s.duration = ?\n" +
		"LIMIT 1",

	InsertSongplay: "INSERT INTO songplays (start_time, user_id, level, song_id, artist_id, session_id, location, user_agent)\n" +
		"VALUES (?, ?, ?, ?, ?, ?, ?, ?)",

	QuoteIdent: func(s string) string { return "`" + strings.ReplaceAll(s, "`", "``") + "`" },

	Classify: storage.Classifier{
		Constraint: isConstraint,
		Connection: isConnection,
	},
}

// MySQL server error numbers for integrity violations.
const (
	erBadNullError        = 1048
	erDupEntry            = 1062
	erRowIsReferenced2    = 1451
	erNoReferencedRow2    = 1452
	erServerShutdown      = 1053
	erConCountError       = 1040
	erAccessDeniedError   = 1045
	erDBAccessDeniedError = 1044
)

func isConstraint(err error) bool {
	var me *mysql.MySQLError
	if !errors.As(err, &me) {
		return false
	}
	switch me.Number {
	case erBadNullError, erDupEntry, erRowIsReferenced2, erNoReferencedRow2:
		return true
	}
	return false
}

func isConnection(err error) bool {
	if errors.Is(err, mysql.ErrInvalidConn) {
		return true
	}
	var me *mysql.MySQLError
	if !errors.As(err, &me) {
		return false
	}
	switch me.Number {
	case erServerShutdown, erConCountError, erAccessDeniedError, erDBAccessDeniedError:
		return true
	}
	return false
}
