package pipeline

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jrwils/sparkifydb-pg/internal/etlerr"
	"github.com/jrwils/sparkifydb-pg/internal/metrics"
	"github.com/jrwils/sparkifydb-pg/internal/records"
	"github.com/jrwils/sparkifydb-pg/internal/storage"
	"github.com/jrwils/sparkifydb-pg/internal/storage/sqlite"
	"github.com/jrwils/sparkifydb-pg/internal/storage/sqlstore"
)

const (
	songS1 = `{"num_songs": 1, "artist_id": "A1", "artist_latitude": 1.0, "artist_longitude": 2.0, "artist_location": "X", "artist_name": "Band", "song_id": "S1", "title": "Test", "duration": 200.5, "year": 2000}`

	eventMatched   = `{"artist":"Band","auth":"Logged In","firstName":"Ann","gender":"F","itemInSession":0,"lastName":"Lee","length":200.5,"level":"free","location":"Town","method":"PUT","page":"NextSong","sessionId":38,"song":"Test","status":200,"ts":1542241826796,"userAgent":"Mozilla","userId":"26"}`
	eventHome      = `{"artist":null,"auth":"Logged In","firstName":"Ann","gender":"F","itemInSession":1,"lastName":"Lee","length":null,"level":"free","location":"Town","method":"GET","page":"Home","sessionId":38,"song":null,"status":200,"ts":1542241826900,"userAgent":"Mozilla","userId":"26"}`
	eventUnmatched = `{"artist":"Other","firstName":"Ann","gender":"F","lastName":"Lee","length":99.1,"level":"paid","location":"Town","page":"NextSong","sessionId":39,"song":"Else","ts":1542241826796,"userAgent":"Mozilla","userId":"26"}`
)

/*
Package-level test helpers
*/

func newSQLiteStore(tb testing.TB) *sqlstore.Store {
	tb.Helper()
	ctx := context.Background()
	s, closeFn, err := sqlite.NewStore(ctx, sqlite.Config{DSN: filepath.Join(tb.TempDir(), "sparkify.db")})
	require.NoError(tb, err)
	tb.Cleanup(closeFn)
	require.NoError(tb, storage.CreateSchema(ctx, sqlite.Kind, s))
	return s
}

// writeTree creates files (relative path -> contents) under a fresh root.
func writeTree(tb testing.TB, files map[string]string) string {
	tb.Helper()
	root := tb.TempDir()
	for rel, body := range files {
		p := filepath.Join(root, rel)
		require.NoError(tb, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(tb, os.WriteFile(p, []byte(body), 0o600))
	}
	return root
}

func lines(events ...string) string { return strings.Join(events, "\n") + "\n" }

func count(tb testing.TB, s storage.Store, table string) int64 {
	tb.Helper()
	n, err := s.Count(context.Background(), table)
	require.NoError(tb, err)
	return n
}

type songplayRow struct {
	UserID   int64
	Level    string
	SongID   sql.NullString
	ArtistID sql.NullString
}

func songplays(tb testing.TB, s *sqlstore.Store) []songplayRow {
	tb.Helper()
	rows, err := s.DB().Query(`SELECT user_id, level, song_id, artist_id FROM songplays ORDER BY songplay_id`)
	require.NoError(tb, err)
	defer rows.Close()
	var out []songplayRow
	for rows.Next() {
		var r songplayRow
		require.NoError(tb, rows.Scan(&r.UserID, &r.Level, &r.SongID, &r.ArtistID))
		out = append(out, r)
	}
	require.NoError(tb, rows.Err())
	return out
}

/*
Unit tests
*/

func TestRun_EndToEnd(t *testing.T) {
	t.Parallel()

	s := newSQLiteStore(t)
	songRoot := writeTree(t, map[string]string{"A/B/C/TRAAAAA.json": songS1})
	logRoot := writeTree(t, map[string]string{"2018/11/2018-11-15-events.json": lines(eventMatched, eventHome, eventUnmatched)})

	var out bytes.Buffer
	r := New(s, WithOutput(&out))
	st, err := r.Run(context.Background(), songRoot, logRoot)
	require.NoError(t, err)

	assert.Equal(t, Stats{
		Files:     2,
		Songs:     1,
		Artists:   1,
		Times:     1,
		Users:     2,
		Songplays: 2,
		Unmatched: 1,
		Skipped:   1,
	}, st)
	assert.Equal(t, st, r.Stats())

	assert.Equal(t,
		"1 files found in "+songRoot+"\n1/1 files processed.\n"+
			"1 files found in "+logRoot+"\n1/1 files processed.\n",
		out.String())

	assert.EqualValues(t, 1, count(t, s, storage.TableSongs))
	assert.EqualValues(t, 1, count(t, s, storage.TableArtists))
	assert.EqualValues(t, 1, count(t, s, storage.TableTime))
	assert.EqualValues(t, 1, count(t, s, storage.TableUsers))

	var level string
	require.NoError(t, s.DB().QueryRow(`SELECT level FROM users WHERE user_id = 26`).Scan(&level))
	assert.Equal(t, "paid", level)

	sps := songplays(t, s)
	require.Len(t, sps, 2)
	assert.Equal(t, songplayRow{UserID: 26, Level: "free",
		SongID:   sql.NullString{String: "S1", Valid: true},
		ArtistID: sql.NullString{String: "A1", Valid: true},
	}, sps[0])
	assert.Equal(t, songplayRow{UserID: 26, Level: "paid"}, sps[1])
}

func TestRun_TwiceKeepsDimensionsAndAppendsSongplays(t *testing.T) {
	t.Parallel()

	s := newSQLiteStore(t)
	songRoot := writeTree(t, map[string]string{"s1.json": songS1})
	logRoot := writeTree(t, map[string]string{"events.json": lines(eventMatched, eventUnmatched)})

	for i := 0; i < 2; i++ {
		_, err := New(s).Run(context.Background(), songRoot, logRoot)
		require.NoError(t, err, "run %d", i+1)
	}

	for _, table := range []string{storage.TableSongs, storage.TableArtists, storage.TableTime, storage.TableUsers} {
		assert.EqualValues(t, 1, count(t, s, table), table)
	}
	assert.EqualValues(t, 4, count(t, s, storage.TableSongplays))
}

func TestRun_FailureStopsAndKeepsEarlierFiles(t *testing.T) {
	t.Parallel()

	s := newSQLiteStore(t)
	songRoot := writeTree(t, map[string]string{"s1.json": songS1})
	logRoot := writeTree(t, map[string]string{
		"a.json": lines(eventMatched),
		"b.json": lines(eventMatched, `{"page": "NextSong", broken`),
		"c.json": lines(eventUnmatched),
	})

	var out bytes.Buffer
	st, err := New(s, WithOutput(&out)).Run(context.Background(), songRoot, logRoot)
	require.Error(t, err)

	var me *etlerr.MalformedRecordError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, 2, me.Line)
	assert.Contains(t, err.Error(), filepath.Join(logRoot, "b.json"))

	assert.Contains(t, out.String(), "3 files found in "+logRoot+"\n1/3 files processed.\n")
	assert.NotContains(t, out.String(), "2/3 files processed.")

	assert.EqualValues(t, 2, st.Files)
	assert.EqualValues(t, 1, count(t, s, storage.TableSongs))
	assert.EqualValues(t, 1, count(t, s, storage.TableSongplays))
}

func TestRun_DiscoveryError(t *testing.T) {
	t.Parallel()

	s := newSQLiteStore(t)
	missing := filepath.Join(t.TempDir(), "absent")
	_, err := New(s).Run(context.Background(), missing, missing)

	var de *etlerr.DiscoveryError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, missing, de.Root)
}

func TestRun_EmptyRoots(t *testing.T) {
	t.Parallel()

	s := newSQLiteStore(t)
	root := t.TempDir()
	var out bytes.Buffer
	st, err := New(s, WithOutput(&out)).Run(context.Background(), root, root)
	require.NoError(t, err)
	assert.Equal(t, Stats{}, st)
	assert.Equal(t, "0 files found in "+root+"\n0 files found in "+root+"\n", out.String())
}

func TestRun_ExtFilter(t *testing.T) {
	t.Parallel()

	s := newSQLiteStore(t)
	songRoot := writeTree(t, map[string]string{"s1.ndjson": songS1, "ignored.json": "not json"})
	st, err := New(s, WithExt(".ndjson")).Run(context.Background(), songRoot, t.TempDir())
	require.NoError(t, err)
	assert.EqualValues(t, 1, st.Songs)
}

func TestRun_DuplicateFilesAreCounted(t *testing.T) {
	t.Parallel()

	s := newSQLiteStore(t)
	songRoot := writeTree(t, map[string]string{"a.json": songS1, "b.json": songS1})

	core, logs := observer.New(zap.WarnLevel)
	st, err := New(s, WithLogger(zap.New(core))).Run(context.Background(), songRoot, t.TempDir())
	require.NoError(t, err)

	assert.EqualValues(t, 2, st.Songs)
	assert.EqualValues(t, 1, st.DuplicateFiles)
	assert.EqualValues(t, 1, count(t, s, storage.TableSongs))
	assert.Equal(t, 1, logs.FilterMessage("duplicate file contents").Len())
}

func TestRun_LogsSummary(t *testing.T) {
	t.Parallel()

	s := newSQLiteStore(t)
	core, logs := observer.New(zap.InfoLevel)
	songRoot := writeTree(t, map[string]string{"s1.json": songS1})
	_, err := New(s, WithLogger(zap.New(core))).Run(context.Background(), songRoot, t.TempDir())
	require.NoError(t, err)

	entries := logs.FilterMessage("run complete").All()
	require.Len(t, entries, 1)
	stats, ok := entries[0].ContextMap()["stats"].(map[string]interface{})
	require.True(t, ok, "stats field = %#v", entries[0].ContextMap()["stats"])
	assert.EqualValues(t, 1, stats["songs"])
}

/*
Fakes
*/

type fakeTx struct {
	storage.Tx // nil; unexpected calls panic

	failOn     string
	err        error
	calls      []string
	committed  bool
	rolledBack bool
}

func (f *fakeTx) step(name string) error {
	f.calls = append(f.calls, name)
	if name == f.failOn {
		return f.err
	}
	return nil
}

func (f *fakeTx) UpsertSong(context.Context, records.Song) error     { return f.step("song") }
func (f *fakeTx) UpsertArtist(context.Context, records.Artist) error { return f.step("artist") }
func (f *fakeTx) UpsertTime(context.Context, records.Time) error     { return f.step("time") }
func (f *fakeTx) UpsertUser(context.Context, records.User) error     { return f.step("user") }
func (f *fakeTx) ResolveSongArtist(context.Context, string, string, float64) (records.SongArtist, bool, error) {
	return records.SongArtist{SongID: "S9", ArtistID: "A9"}, true, f.step("resolve")
}
func (f *fakeTx) InsertSongplay(context.Context, records.Songplay) error { return f.step("songplay") }
func (f *fakeTx) Commit(context.Context) error {
	if err := f.step("commit"); err != nil {
		return err
	}
	f.committed = true
	return nil
}
func (f *fakeTx) Rollback(context.Context) error {
	f.rolledBack = true
	return nil
}

type fakeStore struct {
	storage.Store // nil; unexpected calls panic

	mu       sync.Mutex
	beginErr error
	newTx    func() *fakeTx
	txs      []*fakeTx
}

func (f *fakeStore) Begin(context.Context) (storage.Tx, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.beginErr != nil {
		return nil, f.beginErr
	}
	tx := &fakeTx{}
	if f.newTx != nil {
		tx = f.newTx()
	}
	f.txs = append(f.txs, tx)
	return tx, nil
}

func TestProcessSongFile_Order(t *testing.T) {
	t.Parallel()

	root := writeTree(t, map[string]string{"s1.json": songS1})
	fs := &fakeStore{}
	r := New(fs)
	require.NoError(t, r.ProcessData(context.Background(), PipelineSong, root, r.ProcessSongFile))

	require.Len(t, fs.txs, 1)
	assert.Equal(t, []string{"song", "artist", "commit"}, fs.txs[0].calls)
	assert.Equal(t, Stats{Files: 1, Songs: 1, Artists: 1}, r.Stats())
}

func TestProcessSongFile_ExtractErrorBeforeWrites(t *testing.T) {
	t.Parallel()

	root := writeTree(t, map[string]string{"s1.json": `{"song_id": "S1"}`})
	fs := &fakeStore{}
	r := New(fs)
	err := r.ProcessData(context.Background(), PipelineSong, root, r.ProcessSongFile)

	var fe *etlerr.MissingFieldError
	require.ErrorAs(t, err, &fe)
	require.Len(t, fs.txs, 1)
	assert.Empty(t, fs.txs[0].calls)
	assert.True(t, fs.txs[0].rolledBack)
}

func TestProcessLogFile_OrderAndResolve(t *testing.T) {
	t.Parallel()

	root := writeTree(t, map[string]string{"events.json": lines(eventMatched, eventHome, eventUnmatched)})
	fs := &fakeStore{}
	r := New(fs)
	require.NoError(t, r.ProcessData(context.Background(), PipelineLog, root, r.ProcessLogFile))

	require.Len(t, fs.txs, 1)
	tx := fs.txs[0]
	assert.Equal(t, []string{"time", "user", "user", "resolve", "songplay", "resolve", "songplay", "commit"}, tx.calls)
	assert.True(t, tx.committed)
	assert.EqualValues(t, 0, r.Stats().Unmatched)
}

func TestProcessLogFile_UnresolvableSkipsLookup(t *testing.T) {
	t.Parallel()

	noSong := `{"artist":null,"firstName":"Ann","gender":"F","lastName":"Lee","length":null,"level":"free","location":"Town","page":"NextSong","sessionId":38,"song":null,"ts":1542241826796,"userAgent":"Mozilla","userId":"26"}`
	root := writeTree(t, map[string]string{"events.json": lines(noSong)})
	fs := &fakeStore{}
	r := New(fs)
	require.NoError(t, r.ProcessData(context.Background(), PipelineLog, root, r.ProcessLogFile))

	assert.Equal(t, []string{"time", "user", "songplay", "commit"}, fs.txs[0].calls)
	assert.EqualValues(t, 1, r.Stats().Unmatched)
}

func TestProcessLogFile_NoNextSongEvents(t *testing.T) {
	t.Parallel()

	root := writeTree(t, map[string]string{"events.json": lines(eventHome)})
	fs := &fakeStore{}
	core, logs := observer.New(zap.DebugLevel)
	r := New(fs, WithLogger(zap.New(core)))
	require.NoError(t, r.ProcessData(context.Background(), PipelineLog, root, r.ProcessLogFile))

	require.Len(t, fs.txs, 1)
	assert.Equal(t, []string{"commit"}, fs.txs[0].calls)
	assert.Equal(t, Stats{Files: 1, Skipped: 1}, r.Stats())
	assert.Equal(t, 1, logs.FilterMessage("log file has no NextSong events").Len())
	assert.Zero(t, logs.FilterMessage("log file loaded").Len())
}

func TestProcessData_RollbackOnError(t *testing.T) {
	t.Parallel()

	connErr := &etlerr.ConnectionError{Op: storage.OpInsertSongplay, Err: errors.New("connection reset")}
	cases := []struct {
		name   string
		failOn string
	}{
		{"statement", "songplay"},
		{"commit", "commit"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			root := writeTree(t, map[string]string{"a.json": lines(eventMatched), "b.json": lines(eventMatched)})
			fs := &fakeStore{newTx: func() *fakeTx { return &fakeTx{failOn: tc.failOn, err: connErr} }}
			var out bytes.Buffer
			r := New(fs, WithOutput(&out))
			err := r.ProcessData(context.Background(), PipelineLog, root, r.ProcessLogFile)

			var ce *etlerr.ConnectionError
			require.ErrorAs(t, err, &ce)
			require.Len(t, fs.txs, 1, "run must stop at the first failing file")
			assert.True(t, fs.txs[0].rolledBack)
			assert.False(t, fs.txs[0].committed)
			assert.Equal(t, "2 files found in "+root+"\n", out.String())
			assert.Equal(t, Stats{}, r.Stats())
		})
	}
}

func TestProcessData_BeginError(t *testing.T) {
	t.Parallel()

	root := writeTree(t, map[string]string{"s1.json": songS1})
	fs := &fakeStore{beginErr: &etlerr.ConnectionError{Op: storage.OpBegin, Err: errors.New("refused")}}
	r := New(fs)
	err := r.ProcessData(context.Background(), PipelineSong, root, r.ProcessSongFile)
	assert.Equal(t, "connection", etlerr.Kind(err))
	assert.Contains(t, err.Error(), "s1.json")
}

/*
Metrics
*/

type recordingBackend struct {
	mu       sync.Mutex
	counters map[string]float64
}

func (b *recordingBackend) IncCounter(name string, delta float64, l metrics.Labels) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.counters[name+"|"+l["kind"]+l["status"]] += delta
}
func (b *recordingBackend) ObserveHistogram(string, float64, metrics.Labels) {}
func (b *recordingBackend) Flush() error                                     { return nil }

func (b *recordingBackend) get(key string) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counters[key]
}

// TestRun_RecordsMetrics swaps the global metrics backend, so it does not
// run in parallel.
func TestRun_RecordsMetrics(t *testing.T) {
	rb := &recordingBackend{counters: map[string]float64{}}
	metrics.SetBackend(rb)
	t.Cleanup(func() { metrics.SetBackend(&recordingBackend{counters: map[string]float64{}}) })

	s := newSQLiteStore(t)
	songRoot := writeTree(t, map[string]string{"s1.json": songS1})
	logRoot := writeTree(t, map[string]string{"a.json": lines(eventMatched, eventHome), "b.json": "{"})
	_, err := New(s).Run(context.Background(), songRoot, logRoot)
	require.Error(t, err)

	assert.EqualValues(t, 2, rb.get(metrics.FileTotal+"|success"))
	assert.EqualValues(t, 1, rb.get(metrics.FileTotal+"|failure"))
	assert.EqualValues(t, 1, rb.get(metrics.RowsTotal+"|songs"))
	assert.EqualValues(t, 1, rb.get(metrics.RowsTotal+"|songplays"))
	assert.EqualValues(t, 1, rb.get(metrics.RowsTotal+"|skipped_events"))
	assert.EqualValues(t, 1, rb.get(metrics.ErrorsTotal+"|malformed_record"))
}
