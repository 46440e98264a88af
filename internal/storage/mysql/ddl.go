package mysql

import "github.com/jrwils/sparkifydb-pg/internal/storage"

// DDL creates the star schema on InnoDB. start_time keeps millisecond
// precision so distinct events do not collapse onto one time row.
var DDL = storage.DDL{
	Create: []string{
		"CREATE TABLE IF NOT EXISTS users (\n" +
			"\tuser_id    INT PRIMARY KEY,\n" +
			"\tfirst_name VARCHAR(128),\n" +
			"\tlast_name  VARCHAR(128),\n" +
			"\tgender     VARCHAR(1),\n" +
			"\tlevel      VARCHAR(4)\n" +
			") ENGINE=InnoDB",
		"CREATE TABLE IF NOT EXISTS songs (\n" +
			"\tsong_id   VARCHAR(18) PRIMARY KEY,\n" +
			"\ttitle     VARCHAR(128),\n" +
			"\tartist_id VARCHAR(18),\n" +
			"\tyear      INT,\n" +
			"\tduration  DECIMAL(12, 5)\n" +
			") ENGINE=InnoDB",
		"CREATE TABLE IF NOT EXISTS artists (\n" +
			"\tartist_id VARCHAR(18) PRIMARY KEY,\n" +
			"\tname      VARCHAR(128),\n" +
			"\tlocation  VARCHAR(128),\n" +
			"\tlatitude  DECIMAL(10, 5),\n" +
			"\tlongitude DECIMAL(10, 5)\n" +
			") ENGINE=InnoDB",
		"CREATE TABLE IF NOT EXISTS `time` (\n" +
			"\tstart_time DATETIME(3) UNIQUE,\n" +
			"\thour       INT,\n" +
			"\tday        INT,\n" +
			"\tweek       INT,\n" +
			"\tmonth      INT,\n" +
			"\tyear       INT,\n" +
			"\tweekday    INT\n" +
			") ENGINE=InnoDB",
		"CREATE TABLE IF NOT EXISTS songplays (\n" +
			"\tsongplay_id INT AUTO_INCREMENT PRIMARY KEY,\n" +
			"\tstart_time  DATETIME(3) NOT NULL,\n" +
			"\tuser_id     INT NOT NULL,\n" +
			"\tlevel       VARCHAR(4),\n" +
			"\tsong_id     VARCHAR(18),\n" +
			"\tartist_id   VARCHAR(18),\n" +
			"\tsession_id  INT,\n" +
			"\tlocation    VARCHAR(256),\n" +
			"\tuser_agent  TEXT,\n" +
			"\tFOREIGN KEY (start_time) REFERENCES `time`(start_time),\n" +
			"\tFOREIGN KEY (user_id) REFERENCES users(user_id),\n" +
			"\tFOREIGN KEY (song_id) REFERENCES songs(song_id),\n" +
			"\tFOREIGN KEY (artist_id) REFERENCES artists(artist_id)\n" +
			") ENGINE=InnoDB",
	},
	Drop: []string{
		"DROP TABLE IF EXISTS songplays",
		"DROP TABLE IF EXISTS users",
		"DROP TABLE IF EXISTS songs",
		"DROP TABLE IF EXISTS artists",
		"DROP TABLE IF EXISTS `time`",
	},
}
