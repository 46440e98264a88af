package pipeline

import (
	"go.uber.org/zap/zapcore"

	"github.com/jrwils/sparkifydb-pg/internal/metrics"
)

// Stats counts what a run committed. Row counts are records handed to the
// store, not rows that ended up new: a dimension row that already existed
// still counts.
type Stats struct {
	Files          int64 // files committed
	Songs          int64
	Artists        int64
	Times          int64
	Users          int64
	Songplays      int64
	Unmatched      int64 // songplays loaded with null song_id/artist_id
	Skipped        int64 // log events on pages other than NextSong
	DuplicateFiles int64 // files whose contents repeat an earlier file
}

func (s *Stats) add(d Stats) {
	s.Files += d.Files
	s.Songs += d.Songs
	s.Artists += d.Artists
	s.Times += d.Times
	s.Users += d.Users
	s.Songplays += d.Songplays
	s.Unmatched += d.Unmatched
	s.Skipped += d.Skipped
	s.DuplicateFiles += d.DuplicateFiles
}

// record emits the per-kind row counters for one committed file.
func (s Stats) record(job string) {
	metrics.RecordRows(job, "songs", s.Songs)
	metrics.RecordRows(job, "artists", s.Artists)
	metrics.RecordRows(job, "time", s.Times)
	metrics.RecordRows(job, "users", s.Users)
	metrics.RecordRows(job, "songplays", s.Songplays)
	metrics.RecordRows(job, "unmatched_songplays", s.Unmatched)
	metrics.RecordRows(job, "skipped_events", s.Skipped)
	metrics.RecordRows(job, "duplicate_files", s.DuplicateFiles)
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (s Stats) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddInt64("files", s.Files)
	enc.AddInt64("songs", s.Songs)
	enc.AddInt64("artists", s.Artists)
	enc.AddInt64("time", s.Times)
	enc.AddInt64("users", s.Users)
	enc.AddInt64("songplays", s.Songplays)
	enc.AddInt64("unmatched", s.Unmatched)
	enc.AddInt64("skipped", s.Skipped)
	enc.AddInt64("duplicate_files", s.DuplicateFiles)
	return nil
}
