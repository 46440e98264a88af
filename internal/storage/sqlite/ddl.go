package sqlite

import "github.com/jrwils/sparkifydb-pg/internal/storage"

// DDL creates the star schema with SQLite type names. Declared lengths are
// kept for parity with the other backends; SQLite does not enforce them.
var DDL = storage.DDL{
	Create: []string{
		`CREATE TABLE IF NOT EXISTS users (
	user_id    INTEGER PRIMARY KEY,
	first_name VARCHAR(128),
	last_name  VARCHAR(128),
	gender     VARCHAR(1),
	level      VARCHAR(4)
)`,
		`CREATE TABLE IF NOT EXISTS songs (
	song_id   VARCHAR(18) PRIMARY KEY,
	title     VARCHAR(128),
	artist_id VARCHAR(18),
	year      INTEGER,
	duration  DECIMAL(12, 5)
)`,
		`CREATE TABLE IF NOT EXISTS artists (
	artist_id VARCHAR(18) PRIMARY KEY,
	name      VARCHAR(128),
	location  VARCHAR(128),
	latitude  DECIMAL(10, 5),
	longitude DECIMAL(10, 5)
)`,
		`CREATE TABLE IF NOT EXISTS "time" (
	start_time TIMESTAMP UNIQUE,
	hour       INTEGER,
	day        INTEGER,
	week       INTEGER,
	month      INTEGER,
	year       INTEGER,
	weekday    INTEGER
)`,
		`CREATE TABLE IF NOT EXISTS songplays (
	songplay_id INTEGER PRIMARY KEY AUTOINCREMENT,
	start_time  TIMESTAMP NOT NULL REFERENCES "time"(start_time),
	user_id     INTEGER NOT NULL REFERENCES users(user_id),
	level       VARCHAR(4),
	song_id     VARCHAR(18) REFERENCES songs(song_id),
	artist_id   VARCHAR(18) REFERENCES artists(artist_id),
	session_id  INTEGER,
	location    VARCHAR(256),
	user_agent  TEXT
)`,
	},
	Drop: []string{
		`DROP TABLE IF EXISTS songplays`,
		`DROP TABLE IF EXISTS users`,
		`DROP TABLE IF EXISTS songs`,
		`DROP TABLE IF EXISTS artists`,
		`DROP TABLE IF EXISTS "time"`,
	},
}
