package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is surfaced to users but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding. Path is the flag name the
// finding is about.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether issues contains at least one SeverityError.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ValidateConfig performs static checks over cfg without touching the
// database. Input directories are only checked for existence.
func ValidateConfig(cfg *Config) []Issue {
	var issues []Issue

	if strings.TrimSpace(cfg.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "job",
			Message:  "job must not be empty; it labels metrics",
		})
	}
	issues = append(issues, validateDB(cfg)...)
	issues = append(issues, validateInputs(cfg)...)
	issues = append(issues, validateLogging(cfg)...)
	issues = append(issues, validateMetrics(cfg)...)
	return issues
}

func validateDB(cfg *Config) []Issue {
	var issues []Issue

	switch cfg.Driver {
	case DriverPostgres, DriverMSSQL, DriverMySQL:
		if cfg.DSNOverride != "" {
			break
		}
		if strings.TrimSpace(cfg.Host) == "" {
			issues = append(issues, Issue{SeverityError, "db_host", "db_host must not be empty"})
		}
		if strings.TrimSpace(cfg.DBName) == "" {
			issues = append(issues, Issue{SeverityError, "db_name", "db_name must not be empty"})
		}
		if strings.TrimSpace(cfg.User) == "" {
			issues = append(issues, Issue{SeverityWarning, "db_user", "db_user is empty; the server default applies"})
		}
	case DriverSQLite:
		if cfg.DSNOverride == "" && strings.TrimSpace(cfg.DBName) == "" {
			issues = append(issues, Issue{SeverityError, "db_name", "sqlite needs a database file in db_name or dsn"})
		}
	case "":
		issues = append(issues, Issue{SeverityError, "db_driver", "db_driver must not be empty"})
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "db_driver",
			Message:  fmt.Sprintf("unsupported db_driver %q (want postgres, sqlite, mssql or mysql)", cfg.Driver),
		})
	}
	return issues
}

func validateInputs(cfg *Config) []Issue {
	var issues []Issue

	for _, d := range []struct{ path, dir string }{
		{"song_data", cfg.SongDataDir},
		{"log_data", cfg.LogDataDir},
	} {
		if strings.TrimSpace(d.dir) == "" {
			issues = append(issues, Issue{SeverityError, d.path, d.path + " must not be empty"})
			continue
		}
		fi, err := os.Stat(d.dir)
		switch {
		case err != nil:
			issues = append(issues, Issue{SeverityWarning, d.path, fmt.Sprintf("%s is not accessible: %v", d.dir, err)})
		case !fi.IsDir():
			issues = append(issues, Issue{SeverityError, d.path, fmt.Sprintf("%s is not a directory", d.dir)})
		}
	}

	if cfg.Ext == "" {
		issues = append(issues, Issue{SeverityError, "ext", "ext must not be empty"})
	} else if !strings.HasPrefix(cfg.Ext, ".") {
		issues = append(issues, Issue{SeverityWarning, "ext", fmt.Sprintf("ext %q does not start with a dot", cfg.Ext)})
	}
	return issues
}

func validateLogging(cfg *Config) []Issue {
	var issues []Issue

	switch strings.ToLower(cfg.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		issues = append(issues, Issue{SeverityError, "log_level", fmt.Sprintf("unknown log_level %q", cfg.LogLevel)})
	}
	switch strings.ToLower(cfg.LogFormat) {
	case "", "console", "json":
	default:
		issues = append(issues, Issue{SeverityError, "log_format", fmt.Sprintf("unknown log_format %q (want console or json)", cfg.LogFormat)})
	}
	return issues
}

func validateMetrics(cfg *Config) []Issue {
	var issues []Issue

	switch cfg.MetricsBackend {
	case "", MetricsNone:
	case MetricsPushgateway:
		if cfg.PushgatewayURL == "" {
			issues = append(issues, Issue{SeverityError, "pushgateway_url", "pushgateway backend requires pushgateway_url"})
		} else if u, err := url.Parse(cfg.PushgatewayURL); err != nil || u.Scheme == "" || u.Host == "" {
			issues = append(issues, Issue{SeverityError, "pushgateway_url", fmt.Sprintf("pushgateway_url %q is not an absolute URL", cfg.PushgatewayURL)})
		}
	case MetricsDatadog:
		if cfg.DatadogAddr == "" {
			issues = append(issues, Issue{SeverityError, "datadog_addr", "datadog backend requires datadog_addr"})
		}
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "metrics_backend",
			Message:  fmt.Sprintf("unknown metrics_backend %q (want none, pushgateway or datadog)", cfg.MetricsBackend),
		})
	}
	return issues
}
