package config

import (
	"os"
	"strings"
)

const (
	DefaultSnapshotSchedule  = "0 2 1 * *"
	DefaultSnapshotTimeZone  = "Asia/Kolkata"
	DefaultSnapshotFrequency = "MONTHLY"
)

func envBool(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

func envString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

// SnapshotSchedulerEnabled turns on the in-process cron that generates snapshots for every project.
//
// Set via env:
// - PSR_SCHEDULER_ENABLED=true
func SnapshotSchedulerEnabled() bool {
	return envBool("PSR_SCHEDULER_ENABLED")
}

// SnapshotSchedule is a standard 5-field cron spec (PSR_SCHEDULE).
func SnapshotSchedule() string {
	return envString("PSR_SCHEDULE", DefaultSnapshotSchedule)
}

// SnapshotFrequency is stamped on scheduled snapshots (PSR_SCHEDULE_FREQUENCY).
func SnapshotFrequency() string {
	return strings.ToUpper(envString("PSR_SCHEDULE_FREQUENCY", DefaultSnapshotFrequency))
}

func SnapshotTimeZone() string {
	return envString("PSR_TIMEZONE", DefaultSnapshotTimeZone)
}

func IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production")
}

func SkipMigrations() bool {
	return envBool("SKIP_MIGRATIONS")
}
