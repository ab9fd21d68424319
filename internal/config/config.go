// Package config loads and validates sweep configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Project  ProjectConfig  `mapstructure:"project"`
	PowerBI  PowerBIConfig  `mapstructure:"powerbi"`
	Sweep    SweepConfig    `mapstructure:"sweep"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	Database DatabaseConfig `mapstructure:"database"`
	Events   EventsConfig   `mapstructure:"events"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ProjectConfig locates the sweep's filesystem inputs and outputs.
type ProjectConfig struct {
	RoutesFile       string `mapstructure:"routes_file"`
	RequestBodiesDir string `mapstructure:"request_bodies_dir"`
	ExportRoot       string `mapstructure:"export_root"`
}

// PowerBIConfig governs the querydata client.
type PowerBIConfig struct {
	Endpoint          string  `mapstructure:"endpoint"`
	ResourceKey       string  `mapstructure:"resource_key"`
	Origin            string  `mapstructure:"origin"`
	TimeoutSeconds    int     `mapstructure:"timeout_seconds"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// SweepConfig controls pipeline fan-out and CSV rendering.
type SweepConfig struct {
	Concurrency int  `mapstructure:"concurrency"`
	AsPercent   bool `mapstructure:"as_percent"`
}

// MetricsConfig enables the ops HTTP listener when Addr is set.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// ArchiveConfig selects where parsed CSVs are archived after a run.
type ArchiveConfig struct {
	Provider  string `mapstructure:"provider"` // noop | local | gcs
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
	BaseDir   string `mapstructure:"base_dir"`
}

// DatabaseConfig controls optional run-record persistence.
type DatabaseConfig struct {
	Provider string `mapstructure:"provider"` // noop | postgres
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
}

// EventsConfig controls optional per-pair completion events.
type EventsConfig struct {
	Provider  string `mapstructure:"provider"` // noop | pubsub
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SWEEP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("project.routes_file", "../routes.txt")
	v.SetDefault("project.request_bodies_dir", "../request-bodies")
	v.SetDefault("project.export_root", "export")

	v.SetDefault("powerbi.endpoint",
		"https://wabi-us-east-a-primary-api.analysis.windows.net/public/reports/querydata")
	v.SetDefault("powerbi.origin", "https://app.powerbi.com")
	v.SetDefault("powerbi.timeout_seconds", 30)
	// Matches the half-second pause between requests the portal tolerates.
	v.SetDefault("powerbi.requests_per_second", 2.0)
	v.SetDefault("powerbi.burst", 1)

	v.SetDefault("sweep.concurrency", 6)
	v.SetDefault("sweep.as_percent", false)

	v.SetDefault("archive.provider", "noop")
	v.SetDefault("archive.prefix", "parsed")
	v.SetDefault("database.provider", "noop")
	v.SetDefault("database.table", "sweep_pairs")
	v.SetDefault("events.provider", "noop")
	v.SetDefault("logging.development", true)

	// Keys with no meaningful default still need to be registered, or
	// AutomaticEnv never surfaces them through Unmarshal and an env-only
	// value (like the portal resource key) is silently dropped.
	v.SetDefault("powerbi.resource_key", "")
	v.SetDefault("metrics.addr", "")
	v.SetDefault("archive.gcs_bucket", "")
	v.SetDefault("archive.base_dir", "")
	v.SetDefault("database.dsn", "")
	v.SetDefault("events.project_id", "")
	v.SetDefault("events.topic", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Project.RoutesFile == "" {
		return fmt.Errorf("project.routes_file must be set")
	}
	if c.Project.RequestBodiesDir == "" {
		return fmt.Errorf("project.request_bodies_dir must be set")
	}
	if c.Project.ExportRoot == "" {
		return fmt.Errorf("project.export_root must be set")
	}
	if c.PowerBI.Endpoint == "" {
		return fmt.Errorf("powerbi.endpoint must be set")
	}
	if c.PowerBI.TimeoutSeconds <= 0 {
		return fmt.Errorf("powerbi.timeout_seconds must be > 0")
	}
	if c.Sweep.Concurrency <= 0 {
		return fmt.Errorf("sweep.concurrency must be > 0")
	}
	switch c.Archive.Provider {
	case "noop", "local", "gcs":
	default:
		return fmt.Errorf("unknown archive provider %q", c.Archive.Provider)
	}
	if c.Archive.Provider == "gcs" && c.Archive.GCSBucket == "" {
		return fmt.Errorf("archive.gcs_bucket must be set when archive provider is gcs")
	}
	if c.Archive.Provider == "local" && c.Archive.BaseDir == "" {
		return fmt.Errorf("archive.base_dir must be set when archive provider is local")
	}
	switch c.Database.Provider {
	case "noop", "postgres":
	default:
		return fmt.Errorf("unknown database provider %q", c.Database.Provider)
	}
	if c.Database.Provider == "postgres" && c.Database.DSN == "" {
		return fmt.Errorf("database.dsn must be set when database provider is postgres")
	}
	switch c.Events.Provider {
	case "noop", "pubsub":
	default:
		return fmt.Errorf("unknown events provider %q", c.Events.Provider)
	}
	if c.Events.Provider == "pubsub" && (c.Events.ProjectID == "" || c.Events.Topic == "") {
		return fmt.Errorf("events.project_id and events.topic must be set when events provider is pubsub")
	}
	return nil
}

// HTTPTimeout converts the configured timeout into a duration.
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.PowerBI.TimeoutSeconds) * time.Second
}
