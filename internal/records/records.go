// Package records holds the typed rows of the sparkify star schema: the
// songs, artists, users and time dimensions and the songplays fact table.
//
// Values are built once by the extractors and handed to a storage.Loader;
// nothing in the pipeline mutates them afterwards. Nullable columns are
// pointers.
package records

import "time"

// Song is one row of the songs dimension.
type Song struct {
	SongID   string
	Title    string
	ArtistID string
	Year     int64
	Duration float64
}

// Artist is one row of the artists dimension.
type Artist struct {
	ArtistID  string
	Name      string
	Location  *string
	Latitude  *float64
	Longitude *float64
}

// User is one row of the users dimension. Only Level is updated when the
// same UserID is loaded again; a nil Level is stored as NULL.
type User struct {
	UserID    *int64
	FirstName *string
	LastName  *string
	Gender    *string
	Level     *string
}

// Songplay is one row of the songplays fact table. SongID and ArtistID are
// nil when the song lookup found no match.
type Songplay struct {
	StartTime time.Time
	UserID    *int64
	Level     *string
	SongID    *string
	ArtistID  *string
	SessionID *int64
	Location  *string
	UserAgent *string
}

// SongplayCandidate is a songplay as read from a log event, still carrying
// the raw song title, artist name and length used to resolve SongID and
// ArtistID.
type SongplayCandidate struct {
	Songplay
	Song   *string
	Artist *string
	Length *float64
}

// Resolvable reports whether the candidate has all three lookup fields.
func (c SongplayCandidate) Resolvable() bool {
	return c.Song != nil && c.Artist != nil && c.Length != nil
}

// SongArtist is the key pair returned by a song lookup.
type SongArtist struct {
	SongID   string
	ArtistID string
}

// LogBatch is everything derived from one activity-log file, in load order.
type LogBatch struct {
	Times     []Time
	Users     []User
	Songplays []SongplayCandidate

	// Skipped counts events dropped by the page filter.
	Skipped int
}

// Empty reports whether the file produced no qualifying events.
func (b LogBatch) Empty() bool {
	return len(b.Times) == 0 && len(b.Users) == 0 && len(b.Songplays) == 0
}

// Ptr returns a pointer to v. It keeps literal construction of nullable
// fields short in extractors and tests.
func Ptr[T any](v T) *T { return &v }
