// Package extract turns raw song-metadata and activity-log files into typed
// records. Extractors read and validate; they never touch the datastore.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/zeebo/xxh3"

	"github.com/jrwils/sparkifydb-pg/internal/datasource"
	"github.com/jrwils/sparkifydb-pg/internal/etlerr"
	jsonparser "github.com/jrwils/sparkifydb-pg/internal/parser/json"
	"github.com/jrwils/sparkifydb-pg/internal/records"
)

// SongFile is the result of extracting one song-metadata file.
type SongFile struct {
	Song   records.Song
	Artist records.Artist

	// Checksum is the xxh3 hash of the file contents.
	Checksum uint64
}

// ExtractSong reads a song-metadata file that must hold exactly one JSON
// object and projects it onto the songs and artists columns.
//
// Required keys: song_id, title, artist_id, year, duration, artist_name.
// artist_location, artist_latitude and artist_longitude may be absent or null.
func ExtractSong(ctx context.Context, src datasource.Source) (SongFile, error) {
	path := src.Name()
	b, err := readAll(ctx, src)
	if err != nil {
		return SongFile{}, err
	}

	objs, line, err := jsonparser.DecodeAll(bytes.NewReader(b))
	if err != nil {
		return SongFile{}, &etlerr.MalformedRecordError{Path: path, Line: line, Err: err}
	}
	if len(objs) != 1 {
		return SongFile{}, &etlerr.MalformedRecordError{
			Path: path,
			Err:  fmt.Errorf("want exactly one song record, found %d", len(objs)),
		}
	}

	f := fields{obj: objs[0], path: path, line: 1}
	song := records.Song{
		SongID:   f.requiredString("song_id"),
		Title:    f.requiredString("title"),
		ArtistID: f.requiredString("artist_id"),
		Year:     f.requiredInt64("year"),
		Duration: f.requiredFloat64("duration"),
	}
	artist := records.Artist{
		ArtistID:  song.ArtistID,
		Name:      f.requiredString("artist_name"),
		Location:  f.optionalString("artist_location"),
		Latitude:  f.optionalFloat64("artist_latitude"),
		Longitude: f.optionalFloat64("artist_longitude"),
	}
	if f.err != nil {
		return SongFile{}, f.err
	}
	return SongFile{Song: song, Artist: artist, Checksum: xxh3.Hash(b)}, nil
}

func readAll(ctx context.Context, src datasource.Source) ([]byte, error) {
	rc, err := src.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", src.Name(), err)
	}
	return b, nil
}

// fields projects keys out of one object, keeping the first error so a
// projection can be written as a single struct literal.
type fields struct {
	obj  jsonparser.Object
	path string
	line int
	err  error
}

func (f *fields) fail(err error) {
	if f.err == nil {
		f.err = err
	}
}

func (f *fields) missing(key string) {
	f.fail(&etlerr.MissingFieldError{Path: f.path, Line: f.line, Field: key})
}

func (f *fields) malformed(err error) {
	f.fail(&etlerr.MalformedRecordError{Path: f.path, Line: f.line, Err: err})
}

func (f *fields) requiredString(key string) string {
	s, ok, err := f.obj.String(key)
	switch {
	case err != nil:
		f.malformed(err)
	case !ok:
		f.missing(key)
	}
	return s
}

func (f *fields) requiredInt64(key string) int64 {
	i, ok, err := f.obj.Int64(key)
	switch {
	case err != nil:
		f.malformed(err)
	case !ok:
		f.missing(key)
	}
	return i
}

func (f *fields) requiredFloat64(key string) float64 {
	v, ok, err := f.obj.Float64(key)
	switch {
	case err != nil:
		f.malformed(err)
	case !ok:
		f.missing(key)
	}
	return v
}

func (f *fields) optionalString(key string) *string {
	s, ok, err := f.obj.String(key)
	if err != nil {
		f.malformed(err)
		return nil
	}
	if !ok {
		return nil
	}
	return &s
}

func (f *fields) optionalInt64(key string) *int64 {
	i, ok, err := f.obj.Int64(key)
	if err != nil {
		f.malformed(err)
		return nil
	}
	if !ok {
		return nil
	}
	return &i
}

func (f *fields) optionalFloat64(key string) *float64 {
	v, ok, err := f.obj.Float64(key)
	if err != nil {
		f.malformed(err)
		return nil
	}
	if !ok {
		return nil
	}
	return &v
}
