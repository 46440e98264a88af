// Package config centralizes process configuration for the sparkify
// commands. Every tunable is a command-line flag whose default is seeded
// from an environment variable, so `-help` lists all knobs and their
// effective defaults.
//
// Typical usage:
//
//	getenv, err := config.WithDotEnv(".env", os.Getenv)
//	...
//	fs := flag.NewFlagSet("sparkify-etl", flag.ContinueOnError)
//	cfg, err := config.LoadFromArgs(fs, getenv, os.Args[1:])
//
// Tests pass a map-backed getenv to keep them hermetic.
package config

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
)

// Supported database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMSSQL    = "mssql"
	DriverMySQL    = "mysql"
)

// Supported metrics backends.
const (
	MetricsNone        = "none"
	MetricsPushgateway = "pushgateway"
	MetricsDatadog     = "datadog"
)

// Config holds all process configuration derived from flags and
// environment variables.
type Config struct {
	// DB describes the target database. DSN, when set, wins over the
	// discrete parts.
	Driver      string
	DSNOverride string
	Host        string
	Port        string
	DBName      string
	User        string
	Password    string

	// Input locations.
	SongDataDir string
	LogDataDir  string
	Ext         string

	// Logging.
	LogLevel  string
	LogFormat string
	LogFile   string

	// Metrics.
	MetricsBackend string
	PushgatewayURL string
	DatadogAddr    string
	Job            string

	// Validate makes the command check the configuration and exit.
	Validate bool
}

// LoadFromArgs builds a Config by defining flags on fs, seeding each
// flag's default from getenv, and then parsing args. Explicit flags win
// over environment values.
func LoadFromArgs(fs *flag.FlagSet, getenv func(string) string, args []string) (*Config, error) {
	cfg := &Config{}

	envOr := func(k, d string) string {
		if v := getenv(k); v != "" {
			return v
		}
		return d
	}

	fs.StringVar(&cfg.Driver, "db_driver", envOr("DB_DRIVER", DriverPostgres), "Database driver: postgres, sqlite, mssql or mysql.")
	fs.StringVar(&cfg.DSNOverride, "dsn", getenv("DB_DSN"), "Full DSN; overrides the discrete DB settings.")
	fs.StringVar(&cfg.Host, "db_host", envOr("DB_HOST", "127.0.0.1"), "DB host")
	fs.StringVar(&cfg.Port, "db_port", getenv("DB_PORT"), "DB port (driver default when empty)")
	fs.StringVar(&cfg.DBName, "db_name", envOr("DB_NAME", "sparkifydb"), "DB name (file path for sqlite)")
	fs.StringVar(&cfg.User, "db_user", envOr("DB_USER", "student"), "DB user")
	fs.StringVar(&cfg.Password, "db_password", envOr("DB_PASSWORD", "student"), "DB password")

	fs.StringVar(&cfg.SongDataDir, "song_data", envOr("SONG_DATA_DIR", "data/song_data"), "Root directory of song files")
	fs.StringVar(&cfg.LogDataDir, "log_data", envOr("LOG_DATA_DIR", "data/log_data"), "Root directory of event log files")
	fs.StringVar(&cfg.Ext, "ext", envOr("DATA_FILE_EXT", ".json"), "Extension of data files")

	fs.StringVar(&cfg.LogLevel, "log_level", envOr("LOG_LEVEL", "info"), "Log level: debug, info, warn or error")
	fs.StringVar(&cfg.LogFormat, "log_format", envOr("LOG_FORMAT", "console"), "Log format: console or json")
	fs.StringVar(&cfg.LogFile, "log_file", getenv("LOG_FILE"), "Optional rotated JSON log file")

	fs.StringVar(&cfg.MetricsBackend, "metrics_backend", envOr("METRICS_BACKEND", MetricsNone), "Metrics backend: none, pushgateway or datadog")
	fs.StringVar(&cfg.PushgatewayURL, "pushgateway_url", getenv("PUSHGATEWAY_URL"), "Prometheus Pushgateway URL")
	fs.StringVar(&cfg.DatadogAddr, "datadog_addr", getenv("DATADOG_ADDR"), "DogStatsD address")
	fs.StringVar(&cfg.Job, "job", envOr("JOB_NAME", "sparkify"), "Job name used for metrics labels")

	fs.BoolVar(&cfg.Validate, "validate", false, "Validate configuration and exit")

	if args == nil {
		args = []string{}
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return cfg, nil
}

// WithDotEnv returns a getenv that falls back to the variables in the
// dotenv file at path. Process values win. A missing file is not an error.
func WithDotEnv(path string, getenv func(string) string) (func(string) string, error) {
	vals, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return getenv, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return func(k string) string {
		if v := getenv(k); v != "" {
			return v
		}
		return vals[k]
	}, nil
}

// DefaultPort returns the conventional port for driver, or "" when the
// driver has none.
func DefaultPort(driver string) string {
	switch driver {
	case DriverPostgres:
		return "5432"
	case DriverMSSQL:
		return "1433"
	case DriverMySQL:
		return "3306"
	}
	return ""
}

// DSN returns the connection string for the configured driver.
func (c *Config) DSN() string {
	if c.DSNOverride != "" {
		return c.DSNOverride
	}
	port := c.Port
	if port == "" {
		port = DefaultPort(c.Driver)
	}

	switch c.Driver {
	case DriverPostgres:
		u := url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(c.User, c.Password),
			Host:   net.JoinHostPort(c.Host, port),
			Path:   "/" + c.DBName,
		}
		return u.String()
	case DriverMSSQL:
		u := url.URL{
			Scheme:   "sqlserver",
			User:     url.UserPassword(c.User, c.Password),
			Host:     net.JoinHostPort(c.Host, port),
			RawQuery: url.Values{"database": {c.DBName}}.Encode(),
		}
		return u.String()
	case DriverMySQL:
		mc := mysql.NewConfig()
		mc.User = c.User
		mc.Passwd = c.Password
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(c.Host, port)
		mc.DBName = c.DBName
		return mc.FormatDSN()
	case DriverSQLite:
		return c.DBName
	}
	return ""
}

// Redacted returns DSN with any password replaced, for logging.
func (c *Config) Redacted() string {
	dsn := c.DSN()
	if c.Password == "" {
		return dsn
	}
	for _, p := range []string{url.QueryEscape(c.Password), url.PathEscape(c.Password), c.Password} {
		dsn = strings.ReplaceAll(dsn, p, "xxxxx")
	}
	return dsn
}
