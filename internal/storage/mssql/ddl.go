package mssql

import "github.com/jrwils/sparkifydb-pg/internal/storage"

// DDL creates the star schema with SQL Server types. CREATE TABLE has no
// IF NOT EXISTS form, so each statement is guarded by OBJECT_ID.
var DDL = storage.DDL{
	Create: []string{
		`IF OBJECT_ID(N'dbo.users', N'U') IS NULL
CREATE TABLE dbo.users (
	user_id    INT PRIMARY KEY,
	first_name NVARCHAR(128),
	last_name  NVARCHAR(128),
	gender     NVARCHAR(1),
	level      NVARCHAR(4)
)`,
		`IF OBJECT_ID(N'dbo.songs', N'U') IS NULL
CREATE TABLE dbo.songs (
	song_id   NVARCHAR(18) PRIMARY KEY,
	title     NVARCHAR(128),
	artist_id NVARCHAR(18),
	year      INT,
	duration  DECIMAL(12, 5)
)`,
		`IF OBJECT_ID(N'dbo.artists', N'U') IS NULL
CREATE TABLE dbo.artists (
	artist_id NVARCHAR(18) PRIMARY KEY,
	name      NVARCHAR(128),
	location  NVARCHAR(128),
	latitude  DECIMAL(10, 5),
	longitude DECIMAL(10, 5)
)`,
		`IF OBJECT_ID(N'dbo.[time]', N'U') IS NULL
CREATE TABLE dbo.[time] (
	start_time DATETIME2(3) UNIQUE,
	hour       INT,
	day        INT,
	week       INT,
	month      INT,
	year       INT,
	weekday    INT
)`,
		`IF OBJECT_ID(N'dbo.songplays', N'U') IS NULL
CREATE TABLE dbo.songplays (
	songplay_id INT IDENTITY(1,1) PRIMARY KEY NOT NULL,
	start_time  DATETIME2(3) NOT NULL REFERENCES dbo.[time](start_time),
	user_id     INT NOT NULL REFERENCES dbo.users(user_id),
	level       NVARCHAR(4),
	song_id     NVARCHAR(18) REFERENCES dbo.songs(song_id),
	artist_id   NVARCHAR(18) REFERENCES dbo.artists(artist_id),
	session_id  INT,
	location    NVARCHAR(256),
	user_agent  NVARCHAR(MAX)
)`,
	},
	Drop: []string{
		`DROP TABLE IF EXISTS dbo.songplays`,
		`DROP TABLE IF EXISTS dbo.users`,
		`DROP TABLE IF EXISTS dbo.songs`,
		`DROP TABLE IF EXISTS dbo.artists`,
		`DROP TABLE IF EXISTS dbo.[time]`,
	},
}
