package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jrwils/sparkifydb-pg/internal/datasource/file"
	"github.com/jrwils/sparkifydb-pg/internal/extract"
	"github.com/jrwils/sparkifydb-pg/internal/storage"
)

// ProcessSongFile loads the song and artist of one song-metadata file, in
// that order.
func (r *Runner) ProcessSongFile(ctx context.Context, tx storage.Tx, path string) (Stats, error) {
	sf, err := extract.ExtractSong(ctx, file.NewLocal(path))
	if err != nil {
		return Stats{}, err
	}
	var st Stats
	if r.noteChecksum(sf.Checksum, path) {
		st.DuplicateFiles++
	}

	if err := tx.UpsertSong(ctx, sf.Song); err != nil {
		return Stats{}, fmt.Errorf("song %s: %w", sf.Song.SongID, err)
	}
	st.Songs++
	if err := tx.UpsertArtist(ctx, sf.Artist); err != nil {
		return Stats{}, fmt.Errorf("artist %s: %w", sf.Artist.ArtistID, err)
	}
	st.Artists++

	r.log.Debug("song file loaded",
		zap.String("path", path),
		zap.String("song_id", sf.Song.SongID),
		zap.String("artist_id", sf.Artist.ArtistID),
		zap.String("checksum", fmt.Sprintf("%016x", sf.Checksum)),
	)
	return st, nil
}

// ProcessLogFile loads the NextSong events of one activity-log file: all
// time rows, then all users, then one songplay per event. Songplays whose
// song, artist and length match a loaded song get its keys; the others are
// inserted with null song_id and artist_id.
func (r *Runner) ProcessLogFile(ctx context.Context, tx storage.Tx, path string) (Stats, error) {
	lf, err := extract.ExtractLog(ctx, file.NewLocal(path))
	if err != nil {
		return Stats{}, err
	}
	st := Stats{Skipped: int64(lf.Skipped)}
	if r.noteChecksum(lf.Checksum, path) {
		st.DuplicateFiles++
	}
	if lf.Empty() {
		r.log.Debug("log file has no NextSong events", zap.String("path", path), zap.Int64("skipped", st.Skipped))
		return st, nil
	}

	for _, t := range lf.Times {
		if err := tx.UpsertTime(ctx, t); err != nil {
			return Stats{}, fmt.Errorf("time %s: %w", t.StartTime.Format("2006-01-02T15:04:05.000Z07:00"), err)
		}
		st.Times++
	}
	for i, u := range lf.Users {
		if err := tx.UpsertUser(ctx, u); err != nil {
			return Stats{}, fmt.Errorf("user row %d: %w", i+1, err)
		}
		st.Users++
	}
	for i, c := range lf.Songplays {
		sp := c.Songplay
		if c.Resolvable() {
			sa, ok, err := tx.ResolveSongArtist(ctx, *c.Song, *c.Artist, *c.Length)
			if err != nil {
				return Stats{}, fmt.Errorf("songplay row %d: %w", i+1, err)
			}
			if ok {
				sp.SongID, sp.ArtistID = &sa.SongID, &sa.ArtistID
			}
		}
		if sp.SongID == nil {
			st.Unmatched++
		}
		if err := tx.InsertSongplay(ctx, sp); err != nil {
			return Stats{}, fmt.Errorf("songplay row %d: %w", i+1, err)
		}
		st.Songplays++
	}

	r.log.Debug("log file loaded",
		zap.String("path", path),
		zap.Int64("songplays", st.Songplays),
		zap.Int64("unmatched", st.Unmatched),
		zap.Int64("skipped", st.Skipped),
	)
	return st, nil
}
