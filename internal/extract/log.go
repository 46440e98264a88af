package extract

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/zeebo/xxh3"

	"github.com/jrwils/sparkifydb-pg/internal/datasource"
	"github.com/jrwils/sparkifydb-pg/internal/etlerr"
	jsonparser "github.com/jrwils/sparkifydb-pg/internal/parser/json"
	"github.com/jrwils/sparkifydb-pg/internal/records"
)

// NextSongPage is the page value of the events that represent a song play.
const NextSongPage = "NextSong"

// LogFile is the result of extracting one activity-log file.
type LogFile struct {
	records.LogBatch

	// Checksum is the xxh3 hash of the file contents.
	Checksum uint64
}

// ExtractLog reads an activity-log file holding one JSON event per line and
// derives the time, user and songplay records of its NextSong events.
//
// Events on any other page are dropped and counted in Skipped. Time records
// are distinct by start time and keep first-seen order; users and songplays
// keep one entry per event in file order. A line that is not a JSON object
// aborts the whole file with *etlerr.MalformedRecordError. A NextSong event
// without ts yields *etlerr.MissingFieldError; a missing level stays nil.
func ExtractLog(ctx context.Context, src datasource.Source) (LogFile, error) {
	path := src.Name()
	b, err := readAll(ctx, src)
	if err != nil {
		return LogFile{}, err
	}

	out := LogFile{Checksum: xxh3.Hash(b)}
	seen := make(map[int64]struct{})

	dec := jsonparser.NewDecoder(bytes.NewReader(b))
	for {
		obj, line, err := dec.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return LogFile{}, &etlerr.MalformedRecordError{Path: path, Line: line, Err: err}
		}

		f := fields{obj: obj, path: path, line: line}
		page := f.optionalString("page")
		if f.err != nil {
			return LogFile{}, f.err
		}
		if page == nil || *page != NextSongPage {
			out.Skipped++
			continue
		}

		ev := f.event()
		if f.err != nil {
			return LogFile{}, f.err
		}

		if _, dup := seen[ev.ts]; !dup {
			seen[ev.ts] = struct{}{}
			out.Times = append(out.Times, records.NewTime(records.FromMillis(ev.ts)))
		}
		out.Users = append(out.Users, ev.user)
		out.Songplays = append(out.Songplays, ev.songplay)
	}
	return out, nil
}

type event struct {
	ts       int64
	user     records.User
	songplay records.SongplayCandidate
}

func (f *fields) event() event {
	ts := f.requiredInt64("ts")
	userID := f.optionalInt64("userId")
	level := f.optionalString("level")
	start := records.FromMillis(ts)

	return event{
		ts: ts,
		user: records.User{
			UserID:    userID,
			FirstName: f.optionalString("firstName"),
			LastName:  f.optionalString("lastName"),
			Gender:    f.optionalString("gender"),
			Level:     level,
		},
		songplay: records.SongplayCandidate{
			Songplay: records.Songplay{
				StartTime: start,
				UserID:    userID,
				Level:     level,
				SessionID: f.optionalInt64("sessionId"),
				Location:  f.optionalString("location"),
				UserAgent: f.optionalString("userAgent"),
			},
			Song:   f.optionalString("song"),
			Artist: f.optionalString("artist"),
			Length: f.optionalFloat64("length"),
		},
	}
}
