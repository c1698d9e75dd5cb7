// loader.go implements the configuration loading lifecycle.
//
// The loading sequence is:
//  1. Enforce UTC timezone to prevent drift bugs in the aging queries.
//  2. Load a .env file via godotenv (non-fatal if absent).
//  3. Use envconfig to process struct tags and populate the Config struct.
//  4. Populate BuildInfo from linker-injected variables.
//  5. Validate the struct using go-playground/validator.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Build metadata injected via -ldflags at link time. Defaults are used for
// local `go run` invocations.
var (
	buildVersion = "dev"
	buildCommit  = "unknown"
)

// LoadConfig loads and validates the service configuration from the
// environment. See the file header for the exact sequence.
func LoadConfig() (*Config, error) {
	// Enforce UTC. Every eligibility window in the retention pipeline is
	// computed against midnight UTC; a process-local timezone would shift
	// the boundaries.
	time.Local = time.UTC

	// Load .env if present. godotenv does not override variables that are
	// already set, so the OS environment keeps priority.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("processing environment config: %w", err)
	}

	cfg.Build = BuildInfo{Version: buildVersion, Commit: buildCommit}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate runs struct-tag validation over a populated Config. Exported so
// tests and tools can validate hand-built configs.
func Validate(cfg *Config) error {
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				return fmt.Errorf("invalid configuration: field %s failed rule %q", fe.Namespace(), fe.Tag())
			}
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.Retention.DaysBetweenNotificationAndDelete >= cfg.Retention.MaxUserAgedDays {
		return fmt.Errorf("invalid configuration: DAYS_BETWEEN_NOTIFICATION_AND_DELETE (%d) must be smaller than MAX_USER_AGED_DAYS (%d)",
			cfg.Retention.DaysBetweenNotificationAndDelete, cfg.Retention.MaxUserAgedDays)
	}
	return nil
}
