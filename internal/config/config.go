// Package config loads and validates application configuration from
// environment variables, with planner defaults optionally read from a YAML
// file first.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeJWT      = "jwt"
)

// DefaultOwnerID is the principal every request acts as when auth is disabled
// and DEFAULT_OWNER_ID is unset.
var DefaultOwnerID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

// Config holds all configuration values for the API server and plannerctl.
type Config struct {
	// Port is the TCP port the HTTP server listens on. Defaults to "8080".
	Port string

	// DatabaseURL is the Postgres connection string. Required.
	DatabaseURL string

	// LogLevel controls the minimum log level: debug, info, warn or error.
	LogLevel string

	// CORSOrigins is the list of allowed cross-origin request origins.
	// Defaults to the Vite dev server. CORS_ORIGINS is a comma-separated list.
	CORSOrigins []string

	// MaxBodyBytes caps request bodies. Defaults to 1 MiB.
	MaxBodyBytes int64

	// MigrateOnStart runs pending migrations before the server starts.
	MigrateOnStart bool

	Auth    AuthConfig
	Planner PlannerConfig
}

// AuthConfig selects how requests are attributed to an owner.
type AuthConfig struct {
	Mode           string
	JWTSecret      string
	DefaultOwnerID uuid.UUID
}

// Enabled reports whether bearer tokens are required.
func (c AuthConfig) Enabled() bool {
	return c.Mode == AuthModeJWT
}

// PlannerConfig holds the planner defaults. They can be set in the YAML
// file named by PLANNER_CONFIG_FILE and overridden by environment variables.
type PlannerConfig struct {
	SnapshotDir     string        `yaml:"snapshot_dir"`
	SessionTTL      time.Duration `yaml:"session_ttl"`
	SnapMinutes     int           `yaml:"snap_minutes"`
	DefaultCurrency string        `yaml:"default_currency"`
	FailurePolicy   string        `yaml:"failure_policy"`
	// MaxSnapshotAge discards client snapshots older than this; zero keeps them.
	MaxSnapshotAge time.Duration `yaml:"max_snapshot_age"`
	// EventThrottle is the minimum gap between trip.updated events per trip.
	EventThrottle time.Duration `yaml:"event_throttle"`
}

func defaultPlanner() PlannerConfig {
	return PlannerConfig{
		SnapshotDir:     "./data/snapshots",
		SessionTTL:      30 * time.Minute,
		SnapMinutes:     15,
		DefaultCurrency: "JPY",
		FailurePolicy:   "keep_dirty",
		EventThrottle:   time.Second,
	}
}

var (
	portPattern     = regexp.MustCompile(`^[0-9]{1,5}$`)
	currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)
)

// Load reads configuration from environment variables and returns a Config.
// It returns an error naming every variable that is missing or invalid.
func Load() (Config, error) {
	cfg := Config{
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		LogLevel:    strings.ToLower(getEnv("LOG_LEVEL", "info")),
		CORSOrigins: splitCSV(getEnv("CORS_ORIGINS", "http://localhost:5173")),
		Auth: AuthConfig{
			Mode:      strings.ToLower(getEnv("AUTH_MODE", AuthModeDisabled)),
			JWTSecret: os.Getenv("JWT_SECRET"),
		},
		Planner: defaultPlanner(),
	}

	if path := os.Getenv("PLANNER_CONFIG_FILE"); path != "" {
		if err := loadPlannerFile(path, &cfg.Planner); err != nil {
			return Config{}, err
		}
	}

	// Parse failures are collected per variable so one error lists them all.
	parseErrs := validation.Errors{}
	cfg.MaxBodyBytes = parseEnv(parseErrs, "MAX_BODY_BYTES", 1<<20, func(s string) (int64, error) {
		return strconv.ParseInt(s, 10, 64)
	})
	cfg.MigrateOnStart = parseEnv(parseErrs, "MIGRATE_ON_START", false, strconv.ParseBool)
	cfg.Auth.DefaultOwnerID = parseEnv(parseErrs, "DEFAULT_OWNER_ID", DefaultOwnerID, uuid.Parse)
	p := &cfg.Planner
	p.SnapshotDir = getEnv("SNAPSHOT_DIR", p.SnapshotDir)
	p.SessionTTL = parseEnv(parseErrs, "SESSION_TTL", p.SessionTTL, time.ParseDuration)
	p.SnapMinutes = parseEnv(parseErrs, "SNAP_MINUTES", p.SnapMinutes, strconv.Atoi)
	p.DefaultCurrency = strings.ToUpper(getEnv("DEFAULT_CURRENCY", p.DefaultCurrency))
	p.FailurePolicy = strings.ToLower(getEnv("FAILURE_POLICY", p.FailurePolicy))
	p.MaxSnapshotAge = parseEnv(parseErrs, "MAX_SNAPSHOT_AGE", p.MaxSnapshotAge, time.ParseDuration)
	p.EventThrottle = parseEnv(parseErrs, "EVENT_THROTTLE", p.EventThrottle, time.ParseDuration)
	if err := parseErrs.Filter(); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Validate checks every value, keyed by the environment variable that sets it.
func (c Config) Validate() error {
	return validation.Errors{
		"DATABASE_URL":     validation.Validate(c.DatabaseURL, validation.Required),
		"PORT":             validation.Validate(c.Port, validation.Required, validation.Match(portPattern)),
		"LOG_LEVEL":        validation.Validate(c.LogLevel, validation.In("debug", "info", "warn", "error")),
		"MAX_BODY_BYTES":   validation.Validate(c.MaxBodyBytes, validation.Min(int64(1024))),
		"AUTH_MODE":        validation.Validate(c.Auth.Mode, validation.In(AuthModeDisabled, AuthModeJWT)),
		"JWT_SECRET":       validation.Validate(c.Auth.JWTSecret, validation.When(c.Auth.Enabled(), validation.Required, validation.Length(16, 0))),
		"SNAPSHOT_DIR":     validation.Validate(c.Planner.SnapshotDir, validation.Required),
		"SESSION_TTL":      validation.Validate(c.Planner.SessionTTL, validation.Min(time.Minute)),
		"SNAP_MINUTES":     validation.Validate(c.Planner.SnapMinutes, validation.In(5, 10, 15, 20, 30, 60)),
		"DEFAULT_CURRENCY": validation.Validate(c.Planner.DefaultCurrency, validation.Required, validation.Match(currencyPattern)),
		"FAILURE_POLICY":   validation.Validate(c.Planner.FailurePolicy, validation.In("keep_dirty", "rollback")),
		"MAX_SNAPSHOT_AGE": validation.Validate(c.Planner.MaxSnapshotAge, validation.Min(time.Duration(0))),
		"EVENT_THROTTLE":   validation.Validate(c.Planner.EventThrottle, validation.Min(time.Duration(0))),
	}.Filter()
}

// loadPlannerFile reads planner defaults from a YAML file, expanding
// ${VAR} references against the environment first.
func loadPlannerFile(path string, target *PlannerConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	var file struct {
		Planner PlannerConfig `yaml:"planner"`
	}
	file.Planner = *target
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &file); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	*target = file.Planner
	return nil
}

// getEnv returns the value of the environment variable named by key,
// or fallback if the variable is not set or is empty.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// parseEnv parses the variable named by key, recording a failure in errs
// and returning fallback when it is unset or invalid.
func parseEnv[T any](errs validation.Errors, key string, fallback T, parse func(string) (T, error)) T {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := parse(strings.TrimSpace(raw))
	if err != nil {
		errs[key] = errors.New("invalid value " + strconv.Quote(raw))
		return fallback
	}
	return v
}

// splitCSV splits a comma-separated string into a trimmed slice, ignoring empty entries.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}
