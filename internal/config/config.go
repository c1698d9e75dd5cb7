// Package config defines the global configuration structure for the
// boardpulse job service. Configuration is loaded once at process
// initialization and is immutable thereafter, following 12-Factor principles:
// OS environment (highest priority) -> dotenv file -> struct defaults.
//
// Any missing required value or invalid format causes startup to fail
// immediately (fail fast).
package config

import (
	"time"

	"boardpulse/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type
// used throughout configuration to prevent accidental logging of sensitive
// values.
type SecretString = types.SecretString

// Config is the top-level configuration struct. Sub-components receive only
// the specific subsets they require.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"boardpulse"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Domain Configurations
	Server    ServerConfig
	Database  DatabaseConfig
	Mail      MailConfig
	Retention RetentionConfig
	Jobs      JobsConfig
	Sweeper   SweeperConfig

	// Build Metadata (injected via ldflags, not env)
	Build BuildInfo
}

// ServerConfig holds HTTP server settings and the shared-secret key guarding
// the job trigger endpoints.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8080"`
	// BaseURL is the public URL of the (out-of-process) web application,
	// used to build links inside outbound emails. No trailing slash.
	BaseURL string       `envconfig:"BASE_URL" validate:"required,url"`
	APIKey  SecretString `envconfig:"API_KEY" validate:"required"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required"`

	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// MailConfig holds the outbound mail provider settings.
type MailConfig struct {
	APIKey      SecretString  `envconfig:"MAIL_API_KEY"`
	BaseURL     string        `envconfig:"MAIL_BASE_URL"` // override for testing; provider default otherwise
	FromAddress string        `envconfig:"MAIL_FROM_ADDRESS" validate:"required,email"`
	FromName    string        `envconfig:"MAIL_FROM_NAME" default:"boardpulse"`
	BccAddress  string        `envconfig:"MAIL_BCC_ADDRESS" validate:"omitempty,email"`
	Timeout     time.Duration `envconfig:"MAIL_TIMEOUT" default:"10s"`
	// Enabled is an emergency kill switch; when false the mailer logs and
	// drops instead of sending.
	Enabled bool `envconfig:"MAIL_ENABLED" default:"true"`
}

// RetentionConfig holds the account-aging thresholds driving the
// delete-notification and delete-user-data jobs.
//
// The two env var names below are canonical. Earlier revisions of the system
// read the delete gap from an env var with an inconsistent spelling; that was
// a bug, not a second knob.
type RetentionConfig struct {
	// MaxUserAgedDays is how long an account may sit without a keep-alive
	// before its data is deleted.
	MaxUserAgedDays int `envconfig:"MAX_USER_AGED_DAYS" default:"60" validate:"min=1"`
	// DaysBetweenNotificationAndDelete is the grace window between the
	// warning email and the actual deletion.
	DaysBetweenNotificationAndDelete int `envconfig:"DAYS_BETWEEN_NOTIFICATION_AND_DELETE" default:"7" validate:"min=1"`
	// AutoDeleteAccounts gates the auto-delete trigger endpoint; when false
	// the endpoint succeeds without creating jobs.
	AutoDeleteAccounts bool `envconfig:"AUTO_DELETE_ACCOUNTS" default:"false"`
}

// MaxUserAge returns MaxUserAgedDays as a duration.
func (r RetentionConfig) MaxUserAge() time.Duration {
	return time.Duration(r.MaxUserAgedDays) * 24 * time.Hour
}

// NotificationLead returns the age at which the warning email becomes due:
// MaxUserAgedDays minus the grace window.
func (r RetentionConfig) NotificationLead() time.Duration {
	return time.Duration(r.MaxUserAgedDays-r.DaysBetweenNotificationAndDelete) * 24 * time.Hour
}

// DeleteGrace returns DaysBetweenNotificationAndDelete as a duration.
func (r RetentionConfig) DeleteGrace() time.Duration {
	return time.Duration(r.DaysBetweenNotificationAndDelete) * 24 * time.Hour
}

// JobsConfig holds dispatch-loop and sweep tuning parameters.
type JobsConfig struct {
	// DispatchBatchSize bounds how many due jobs one ListDuePending query
	// returns; the loop pages until the queue drains.
	DispatchBatchSize int `envconfig:"JOB_DISPATCH_BATCH_SIZE" default:"100" validate:"min=1"`
	// PageSize is the fetch size for the lazy cursors used by creation sweeps.
	PageSize int `envconfig:"JOB_PAGE_SIZE" default:"50" validate:"min=1"`
	// DigestWindow is the look-back window for unseen activity and the
	// staleness cutoff for digest jobs.
	DigestWindow time.Duration `envconfig:"JOB_DIGEST_WINDOW" default:"24h"`
}

// SweeperConfig holds the cron expressions used by cmd/sweeper when the
// deployment has no external scheduler hitting the HTTP triggers.
type SweeperConfig struct {
	DigestSchedule     string `envconfig:"SWEEP_DIGEST_SCHEDULE" default:"0 6 * * *"`
	AutoDeleteSchedule string `envconfig:"SWEEP_AUTO_DELETE_SCHEDULE" default:"30 2 * * *"`
	DispatchSchedule   string `envconfig:"SWEEP_DISPATCH_SCHEDULE" default:"*/10 * * * *"`
}

// BuildInfo holds build metadata injected at link time.
type BuildInfo struct {
	Version string
	Commit  string
}
