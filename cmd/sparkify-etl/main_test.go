package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jrwils/sparkifydb-pg/internal/storage"
)

const (
	songFile = `{"num_songs": 1, "artist_id": "A1", "artist_latitude": null, "artist_longitude": null, "artist_location": "", "artist_name": "Band", "song_id": "S1", "title": "Test", "duration": 200.5, "year": 2000}`
	logFile  = `{"artist":"Band","firstName":"Ann","gender":"F","lastName":"Lee","length":200.5,"level":"free","location":"Town","page":"NextSong","sessionId":38,"song":"Test","ts":1542241826796,"userAgent":"Mozilla","userId":"26"}` + "\n"
)

// fixture lays out song_data, log_data and an initialized sqlite database
// under a temp dir and returns an environment pointing at them.
func fixture(t *testing.T) map[string]string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"song_data/A/A/A/TRA.json": songFile,
		"log_data/2018/11/e.json":  logFile,
	}
	for rel, body := range files {
		p := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	dbPath := filepath.Join(root, "sparkify.db")
	ctx := context.Background()
	s, err := storage.New(ctx, storage.Config{Kind: "sqlite", DSN: dbPath})
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	defer s.Close()
	if err := storage.CreateSchema(ctx, "sqlite", s); err != nil {
		t.Fatalf("CreateSchema: %v", err)
	}

	return map[string]string{
		"DB_DRIVER":     "sqlite",
		"DB_NAME":       dbPath,
		"SONG_DATA_DIR": filepath.Join(root, "song_data"),
		"LOG_DATA_DIR":  filepath.Join(root, "log_data"),
		"LOG_LEVEL":     "warn",
	}
}

func runWith(env map[string]string, args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := run(args, func(k string) string { return env[k] }, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_LoadsFiles(t *testing.T) {
	t.Parallel()

	env := fixture(t)
	code, stdout, stderr := runWith(env)
	if code != 0 {
		t.Fatalf("run() = %d, want 0; stderr:\n%s", code, stderr)
	}

	want := "1 files found in " + env["SONG_DATA_DIR"] + "\n1/1 files processed.\n" +
		"1 files found in " + env["LOG_DATA_DIR"] + "\n1/1 files processed.\n"
	if stdout != want {
		t.Fatalf("stdout = %q, want %q", stdout, want)
	}

	s, err := storage.New(context.Background(), storage.Config{Kind: "sqlite", DSN: env["DB_NAME"]})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	for table, want := range map[string]int64{"songs": 1, "artists": 1, "time": 1, "users": 1, "songplays": 1} {
		n, err := s.Count(context.Background(), table)
		if err != nil || n != want {
			t.Errorf("Count(%s) = %d, %v; want %d", table, n, err, want)
		}
	}
}

func TestRun_FailureExitsNonZero(t *testing.T) {
	t.Parallel()

	env := fixture(t)
	bad := filepath.Join(env["LOG_DATA_DIR"], "2018", "11", "f.json")
	if err := os.WriteFile(bad, []byte("{not json\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	code, stdout, stderr := runWith(env)
	if code != 1 {
		t.Fatalf("run() = %d, want 1", code)
	}
	if !strings.Contains(stderr, bad) || !strings.Contains(stderr, "malformed record") {
		t.Fatalf("stderr = %q, want the failing path and cause", stderr)
	}
	if !strings.Contains(stdout, "1/2 files processed.") || strings.Contains(stdout, "2/2 files processed.") {
		t.Fatalf("stdout = %q", stdout)
	}
}

func TestRun_MissingDataDir(t *testing.T) {
	t.Parallel()

	env := fixture(t)
	env["SONG_DATA_DIR"] = filepath.Join(t.TempDir(), "absent")
	code, _, stderr := runWith(env)
	if code != 1 {
		t.Fatalf("run() = %d, want 1", code)
	}
	if !strings.Contains(stderr, "discover") {
		t.Fatalf("stderr = %q, want discovery error", stderr)
	}
}

func TestRun_Validate(t *testing.T) {
	t.Parallel()

	env := fixture(t)
	code, stdout, stderr := runWith(env, "-validate")
	if code != 0 {
		t.Fatalf("run(-validate) = %d, want 0; stderr:\n%s", code, stderr)
	}
	if stdout != "" {
		t.Fatalf("validate must not load data; stdout = %q", stdout)
	}
	if !strings.Contains(stderr, "configuration is valid") {
		t.Fatalf("stderr = %q", stderr)
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	t.Parallel()

	env := fixture(t)
	env["DB_DRIVER"] = "oracle"
	code, _, stderr := runWith(env)
	if code != 1 {
		t.Fatalf("run() = %d, want 1", code)
	}
	if !strings.Contains(stderr, "error: db_driver") {
		t.Fatalf("stderr = %q", stderr)
	}
}

func TestRun_FlagErrors(t *testing.T) {
	t.Parallel()

	if code, _, _ := runWith(nil, "-help"); code != 0 {
		t.Fatalf("run(-help) = %d, want 0", code)
	}
	if code, _, _ := runWith(nil, "-bogus"); code != 1 {
		t.Fatalf("run(-bogus) = %d, want 1", code)
	}
}

func TestRun_UnreachableDatabase(t *testing.T) {
	t.Parallel()

	env := fixture(t)
	env["DB_NAME"] = filepath.Join(t.TempDir(), "missing-dir", "x.db")
	code, _, stderr := runWith(env)
	if code != 1 {
		t.Fatalf("run() = %d, want 1", code)
	}
	if !strings.Contains(stderr, "open sqlite store") {
		t.Fatalf("stderr = %q", stderr)
	}
}
