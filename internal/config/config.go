package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTPAddr string `yaml:"http_addr"`
	GRPCAddr string `yaml:"grpc_addr"` // "" disables the gRPC listener

	Env string `yaml:"env"` // "dev" | "prod"

	// DB
	DBPath         string `yaml:"db_path"`
	DBMaxOpenConns int    `yaml:"db_max_open_conns"`

	// Zones
	Timezone        string        `yaml:"timezone"`
	RegistryRefresh time.Duration `yaml:"registry_refresh"`
	SeedPath        string        `yaml:"seed_path"`

	// DirectoryMode is "allow_all" (every employee is monitored) or
	// "seed" (employees listed in the seed file).
	DirectoryMode string `yaml:"directory_mode"`

	// Alerts
	DedupWindow       time.Duration `yaml:"dedup_window"`
	LowBatteryPercent int           `yaml:"low_battery_percent"` // 0 = off
	Recipients        []string      `yaml:"recipients"`
	NotifyTimeout     time.Duration `yaml:"notify_timeout"`

	// Ingest
	FutureSkew       time.Duration `yaml:"future_skew"`
	IngestTimeout    time.Duration `yaml:"ingest_timeout"`
	AlertTimeout     time.Duration `yaml:"alert_timeout"`
	BatchParallelism int           `yaml:"batch_parallelism"`
	MaxBatch         int           `yaml:"max_batch"`

	// HTTP rate limit per client IP; 0 = off.
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`

	// Sample retention
	SampleRetentionDays int `yaml:"sample_retention_days"` // 0 = keep forever
	PruneIntervalHours  int `yaml:"prune_interval_hours"`  // how often the pruner runs (default 6)

	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

func Default() Config {
	return Config{
		HTTPAddr:            ":8080",
		GRPCAddr:            ":9090",
		Env:                 "dev",
		DBPath:              "./data/geowatch.db",
		DBMaxOpenConns:      4,
		Timezone:            "UTC",
		RegistryRefresh:     30 * time.Second,
		DirectoryMode:       "allow_all",
		DedupWindow:         15 * time.Minute,
		LowBatteryPercent:   15,
		NotifyTimeout:       10 * time.Second,
		FutureSkew:          2 * time.Minute,
		IngestTimeout:       5 * time.Second,
		AlertTimeout:        5 * time.Second,
		BatchParallelism:    8,
		MaxBatch:            500,
		SampleRetentionDays: 90,
		PruneIntervalHours:  6,
		ShutdownTimeout:     10 * time.Second,
	}
}

// Load layers defaults, the YAML file at path (or $GEOWATCH_CONFIG when
// path is empty) and GEOWATCH_* environment overrides, then validates.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = strings.TrimSpace(os.Getenv("GEOWATCH_CONFIG"))
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := decodeYAML(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	cfg.Env = strings.ToLower(strings.TrimSpace(cfg.Env))
	cfg.DirectoryMode = strings.ToLower(strings.TrimSpace(cfg.DirectoryMode))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decodeYAML(raw []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	err := dec.Decode(cfg)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func applyEnv(cfg *Config) error {
	var errs []error
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str("GEOWATCH_HTTP_ADDR", &cfg.HTTPAddr)
	if v, ok := os.LookupEnv("GEOWATCH_GRPC_ADDR"); ok {
		cfg.GRPCAddr = strings.TrimSpace(v)
	}
	str("GEOWATCH_ENV", &cfg.Env)
	str("GEOWATCH_DB_PATH", &cfg.DBPath)
	num("GEOWATCH_DB_MAX_OPEN_CONNS", &cfg.DBMaxOpenConns)

	str("GEOWATCH_TIMEZONE", &cfg.Timezone)
	dur("GEOWATCH_REGISTRY_REFRESH", &cfg.RegistryRefresh)
	str("GEOWATCH_SEED_PATH", &cfg.SeedPath)
	str("GEOWATCH_DIRECTORY_MODE", &cfg.DirectoryMode)

	dur("GEOWATCH_DEDUP_WINDOW", &cfg.DedupWindow)
	num("GEOWATCH_LOW_BATTERY_PERCENT", &cfg.LowBatteryPercent)
	if v, ok := lookup("GEOWATCH_ALERT_RECIPIENTS"); ok {
		cfg.Recipients = splitCSV(v)
	}
	dur("GEOWATCH_NOTIFY_TIMEOUT", &cfg.NotifyTimeout)

	dur("GEOWATCH_FUTURE_SKEW", &cfg.FutureSkew)
	dur("GEOWATCH_INGEST_TIMEOUT", &cfg.IngestTimeout)
	dur("GEOWATCH_ALERT_TIMEOUT", &cfg.AlertTimeout)
	num("GEOWATCH_BATCH_PARALLELISM", &cfg.BatchParallelism)
	num("GEOWATCH_MAX_BATCH", &cfg.MaxBatch)

	if v, ok := lookup("GEOWATCH_RATE_LIMIT"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("GEOWATCH_RATE_LIMIT: %w", err))
		} else {
			cfg.RateLimit = f
		}
	}
	num("GEOWATCH_RATE_BURST", &cfg.RateBurst)

	num("GEOWATCH_SAMPLE_RETENTION_DAYS", &cfg.SampleRetentionDays)
	num("GEOWATCH_PRUNE_INTERVAL_HOURS", &cfg.PruneIntervalHours)
	dur("GEOWATCH_SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout)

	if len(errs) > 0 {
		return fmt.Errorf("config: environment: %w", errors.Join(errs...))
	}
	return nil
}

// Validate rejects values the engine cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Env != "dev" && c.Env != "prod" {
		errs = append(errs, fmt.Errorf("env %q: want dev or prod", c.Env))
	}
	if strings.TrimSpace(c.HTTPAddr) == "" {
		errs = append(errs, errors.New("http_addr is required"))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, fmt.Errorf("timezone %q: %w", c.Timezone, err))
	}
	switch c.DirectoryMode {
	case "allow_all":
	case "seed":
		if c.SeedPath == "" {
			errs = append(errs, errors.New("directory_mode seed needs seed_path"))
		}
	default:
		errs = append(errs, fmt.Errorf("directory_mode %q: want allow_all or seed", c.DirectoryMode))
	}
	if c.LowBatteryPercent < 0 || c.LowBatteryPercent > 100 {
		errs = append(errs, fmt.Errorf("low_battery_percent %d outside 0-100", c.LowBatteryPercent))
	}
	if c.RateLimit < 0 || c.RateBurst < 0 {
		errs = append(errs, errors.New("rate_limit and rate_burst must not be negative"))
	}
	for name, v := range map[string]int{
		"db_max_open_conns":     c.DBMaxOpenConns,
		"batch_parallelism":     c.BatchParallelism,
		"max_batch":             c.MaxBatch,
		"sample_retention_days": c.SampleRetentionDays,
		"prune_interval_hours":  c.PruneIntervalHours,
	} {
		if v < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative", name))
		}
	}
	for name, d := range map[string]time.Duration{
		"registry_refresh": c.RegistryRefresh,
		"dedup_window":     c.DedupWindow,
		"notify_timeout":   c.NotifyTimeout,
		"future_skew":      c.FutureSkew,
		"ingest_timeout":   c.IngestTimeout,
		"alert_timeout":    c.AlertTimeout,
		"shutdown_timeout": c.ShutdownTimeout,
	} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative", name))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// Location resolves Timezone; "" means UTC.
func (c Config) Location() (*time.Location, error) {
	if strings.TrimSpace(c.Timezone) == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Timezone)
}

func lookup(key string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	return v, v != ""
}

func splitCSV(v string) []string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
