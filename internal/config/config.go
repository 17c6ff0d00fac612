// Package config reads job settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"nextmeeting/internal/cdn"
	"nextmeeting/internal/firestore"
	"nextmeeting/internal/occurrence"
	"nextmeeting/internal/retry"
)

// Environment variables the job cannot run without.
var requiredVars = []string{
	"GCP_PROJECT_ID",
	"SCHEDULE_BUCKET",
	"SITE_BUCKET",
	"CDN_URL_MAP",
	"NOTIFY_WEBHOOK_URL",
}

// DefaultWatchSchedule regenerates at the top of every hour.
const DefaultWatchSchedule = "0 * * * *"

// Error lists every missing or malformed environment variable.
type Error struct {
	Missing []string
	Invalid []string
}

func (e *Error) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing required environment variables: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, "invalid environment variables: "+strings.Join(e.Invalid, "; "))
	}
	return strings.Join(parts, "; ")
}

// Config holds the settings of one process.
type Config struct {
	ProjectID      string
	ScheduleBucket string
	SiteBucket     string
	CDNURLMap      string
	WebhookURL     string

	SitesFile             string
	SheetsCredentialsFile string

	Location    *time.Location
	GraceWindow time.Duration

	// Retry applies to sheet fetches, uploads, invalidations and webhooks.
	Retry retry.Policy
	// TemplateRetry applies to template downloads.
	TemplateRetry retry.Policy

	CDNPaths         []string
	RunLogCollection string
	RunLogRetain     int
	DebugDir         string
	WatchSchedule    string
}

// FromEnv reads the full job configuration. All required variables must be
// set; the returned *Error names every one that is not.
func FromEnv() (*Config, error) {
	return load(true)
}

// LocalFromEnv reads only the optional settings, for commands that never
// touch cloud resources.
func LocalFromEnv() (*Config, error) {
	return load(false)
}

func load(requireCloud bool) (*Config, error) {
	cfgErr := &Error{}
	if requireCloud {
		for _, name := range requiredVars {
			if strings.TrimSpace(os.Getenv(name)) == "" {
				cfgErr.Missing = append(cfgErr.Missing, name)
			}
		}
	}

	cfg := &Config{
		ProjectID:             env("GCP_PROJECT_ID"),
		ScheduleBucket:        env("SCHEDULE_BUCKET"),
		SiteBucket:            env("SITE_BUCKET"),
		CDNURLMap:             env("CDN_URL_MAP"),
		WebhookURL:            env("NOTIFY_WEBHOOK_URL"),
		SitesFile:             env("SITES_FILE"),
		SheetsCredentialsFile: env("SHEETS_CREDENTIALS_FILE"),
		RunLogCollection:      envOr("RUN_LOG_COLLECTION", firestore.DefaultCollection),
		DebugDir:              env("DEBUG_DIR"),
		WatchSchedule:         envOr("WATCH_CRON", DefaultWatchSchedule),
		CDNPaths:              cdn.DefaultPaths,
	}

	zone := envOr("REFERENCE_TIMEZONE", occurrence.DefaultZone)
	loc, err := time.LoadLocation(zone)
	if err != nil {
		cfgErr.Invalid = append(cfgErr.Invalid, fmt.Sprintf("REFERENCE_TIMEZONE: %v", err))
	}
	cfg.Location = loc

	cfg.GraceWindow = durationVar(cfgErr, "GRACE_WINDOW", occurrence.DefaultGraceWindow)

	cfg.Retry = retry.Default
	cfg.Retry.Attempts = intVar(cfgErr, "RETRY_ATTEMPTS", retry.Default.Attempts, 1)
	cfg.Retry.Delay = durationVar(cfgErr, "RETRY_DELAY", retry.Default.Delay)
	cfg.Retry.Timeout = durationVar(cfgErr, "CALL_TIMEOUT", retry.Default.Timeout)
	cfg.TemplateRetry = cfg.Retry.Fixed(durationVar(cfgErr, "TEMPLATE_RETRY_DELAY", retry.Default.Delay))

	cfg.RunLogRetain = intVar(cfgErr, "RUN_LOG_RETAIN", 500, 0)

	if raw := env("CDN_PATHS"); raw != "" {
		var paths []string
		for _, p := range strings.Split(raw, ",") {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			if !strings.HasPrefix(p, "/") {
				cfgErr.Invalid = append(cfgErr.Invalid, fmt.Sprintf("CDN_PATHS: %q must start with /", p))
				continue
			}
			paths = append(paths, p)
		}
		if len(paths) > 0 {
			cfg.CDNPaths = paths
		}
	}

	if len(cfgErr.Missing) > 0 || len(cfgErr.Invalid) > 0 {
		return nil, cfgErr
	}
	return cfg, nil
}

func env(name string) string {
	return strings.TrimSpace(os.Getenv(name))
}

func envOr(name, fallback string) string {
	if v := env(name); v != "" {
		return v
	}
	return fallback
}

func durationVar(cfgErr *Error, name string, fallback time.Duration) time.Duration {
	raw := env(name)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		cfgErr.Invalid = append(cfgErr.Invalid, fmt.Sprintf("%s: %q is not a non-negative duration", name, raw))
		return fallback
	}
	return d
}

func intVar(cfgErr *Error, name string, fallback, min int) int {
	raw := env(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < min {
		cfgErr.Invalid = append(cfgErr.Invalid, fmt.Sprintf("%s: %q must be an integer >= %d", name, raw, min))
		return fallback
	}
	return n
}
