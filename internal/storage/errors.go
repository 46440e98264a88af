package storage

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"

	"github.com/jrwils/sparkifydb-pg/internal/etlerr"
)

// Loader operation names, used in error values, logs and metric labels.
const (
	OpUpsertSong     = "upsert_song"
	OpUpsertArtist   = "upsert_artist"
	OpUpsertTime     = "upsert_time"
	OpUpsertUser     = "upsert_user"
	OpResolve        = "resolve_song_artist"
	OpInsertSongplay = "insert_songplay"
	OpBegin          = "begin"
	OpCommit         = "commit"
	OpExec           = "exec"
	OpCount          = "count"
	OpConnect        = "connect"
)

// Classifier maps driver errors onto the etlerr taxonomy. Each backend fills
// in the predicates it can answer; generic connection failures are always
// recognized.
type Classifier struct {
	Constraint func(error) bool
	Connection func(error) bool
}

// Wrap returns nil for a nil err, a *etlerr.ConstraintViolationError or
// *etlerr.ConnectionError when the error belongs to either category, and an
// op-prefixed wrap otherwise.
func (c Classifier) Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var (
		cv *etlerr.ConstraintViolationError
		ce *etlerr.ConnectionError
	)
	if errors.As(err, &cv) || errors.As(err, &ce) {
		return err
	}
	switch {
	case c.Constraint != nil && c.Constraint(err):
		return &etlerr.ConstraintViolationError{Op: op, Err: err}
	case IsConnectionError(err) || (c.Connection != nil && c.Connection(err)):
		return &etlerr.ConnectionError{Op: op, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// IsConnectionError reports failures that mean the datastore could not be
// reached or the session is gone.
func IsConnectionError(err error) bool {
	var ne net.Error
	switch {
	case errors.Is(err, driver.ErrBadConn),
		errors.Is(err, sql.ErrConnDone),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.As(err, &ne):
		return true
	}
	return false
}

// RequireUserID rejects user and songplay rows without a user id before they
// reach the datastore.
func RequireUserID(op string, id *int64) error {
	if id == nil {
		return &etlerr.ConstraintViolationError{Op: op, Err: etlerr.ErrNullUserID}
	}
	return nil
}
