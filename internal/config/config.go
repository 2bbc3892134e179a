// Package config handles configuration loading for hemicycle.
// It supports YAML config files with environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. HEMICYCLE_SOURCE_LIMIT.
const EnvPrefix = "HEMICYCLE"

// Config represents the complete application configuration.
type Config struct {
	Source    SourceConfig    `mapstructure:"source"    yaml:"source"    json:"source"`
	Extract   ExtractConfig   `mapstructure:"extract"   yaml:"extract"   json:"extract"`
	Aggregate AggregateConfig `mapstructure:"aggregate" yaml:"aggregate" json:"aggregate"`
	Output    OutputConfig    `mapstructure:"output"    yaml:"output"    json:"output"`
	Database  DatabaseConfig  `mapstructure:"database"  yaml:"database"  json:"database"`
	API       APIConfig       `mapstructure:"api"       yaml:"api"       json:"api"`
	Logging   LoggingConfig   `mapstructure:"logging"   yaml:"logging"   json:"logging"`
}

// SourceConfig describes where ballots come from.
type SourceConfig struct {
	Chamber     string `mapstructure:"chamber"      yaml:"chamber"      json:"chamber"`
	Legislature string `mapstructure:"legislature"  yaml:"legislature"  json:"legislature"`
	BallotsURL  string `mapstructure:"ballots_url"  yaml:"ballots_url"  json:"ballots_url"`
	ActorsURL   string `mapstructure:"actors_url"   yaml:"actors_url"   json:"actors_url"`
	CacheDir    string `mapstructure:"cache_dir"    yaml:"cache_dir"    json:"cache_dir"`
	Limit       int    `mapstructure:"limit"        yaml:"limit"        json:"limit"`
	TimeoutSec  int    `mapstructure:"timeout_sec"  yaml:"timeout_sec"  json:"timeout_sec"`
	Concurrency int    `mapstructure:"concurrency"  yaml:"concurrency"  json:"concurrency"`
	MaxRetries  int    `mapstructure:"max_retries"  yaml:"max_retries"  json:"max_retries"`
}

// Timeout returns TimeoutSec as a duration.
func (s SourceConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSec) * time.Second
}

// ExtractConfig holds vote extraction settings.
type ExtractConfig struct {
	MaxDepth int `mapstructure:"max_depth" yaml:"max_depth" json:"max_depth"`
}

// AggregateConfig holds aggregation settings.
type AggregateConfig struct {
	Order string `mapstructure:"order" yaml:"order" json:"order"` // "chronological" or "input"
}

// OutputConfig holds export locations.
type OutputConfig struct {
	DataDir    string `mapstructure:"data_dir"    yaml:"data_dir"    json:"data_dir"`
	ThemesFile string `mapstructure:"themes_file" yaml:"themes_file" json:"themes_file"`
}

// DatabaseConfig selects the optional run store. An empty URL disables it.
type DatabaseConfig struct {
	Type string `mapstructure:"type" yaml:"type" json:"type"` // "sqlite" or "postgres"
	URL  string `mapstructure:"url"  yaml:"url"  json:"url"`
}

// Enabled reports whether a store is configured.
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	Host        string   `mapstructure:"host"         yaml:"host"         json:"host"`
	Port        int      `mapstructure:"port"         yaml:"port"         json:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins" json:"cors_origins"`
}

// Addr returns host:port.
func (a APIConfig) Addr() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"  json:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format" json:"format"` // "text" or "json"
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.hemicycle/config.yaml (home directory)
//  3. /etc/hemicycle/config.yaml (system)
//
// A .env file in the working directory is loaded first, if present.
// Environment variables override config file values.
// Format: HEMICYCLE_<SECTION>_<KEY>, e.g., HEMICYCLE_DATABASE_URL
func Load() (*Config, error) {
	loadDotEnv()

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".hemicycle"))
	v.AddConfigPath("/etc/hemicycle")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return decode(v)
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	loadDotEnv()

	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}
	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadDotEnv loads ./.env without overriding variables already set.
func loadDotEnv() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: .env not loaded: %v\n", err)
	}
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	// Source defaults
	v.SetDefault("source.chamber", "AN")
	v.SetDefault("source.legislature", "17")
	v.SetDefault("source.ballots_url", "http://data.assemblee-nationale.fr/static/openData/repository/17/loi/scrutins/Scrutins.xml.zip")
	v.SetDefault("source.actors_url", "https://data.assemblee-nationale.fr/static/openData/repository/17/amo/deputes_actifs_mandats_actifs_organes/AMO10_deputes_actifs_mandats_actifs_organes.json.zip")
	v.SetDefault("source.cache_dir", filepath.Join(".cache", "an"))
	v.SetDefault("source.limit", 200)
	v.SetDefault("source.timeout_sec", 120)
	v.SetDefault("source.concurrency", 8)
	v.SetDefault("source.max_retries", 3)

	v.SetDefault("extract.max_depth", 30)
	v.SetDefault("aggregate.order", "chronological")

	// Output defaults
	v.SetDefault("output.data_dir", "data")
	v.SetDefault("output.themes_file", filepath.Join("data", "themes.json"))

	// Database defaults (store disabled)
	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.url", "")

	// API defaults
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.cors_origins", []string{"http://localhost:3000"})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Validate rejects values the pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Source.Chamber == "" {
		errs = append(errs, errors.New("source.chamber must be set"))
	}
	if c.Source.Limit <= 0 {
		errs = append(errs, fmt.Errorf("source.limit must be positive, got %d", c.Source.Limit))
	}
	if c.Source.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("source.concurrency must be positive, got %d", c.Source.Concurrency))
	}
	if c.Extract.MaxDepth <= 0 {
		errs = append(errs, fmt.Errorf("extract.max_depth must be positive, got %d", c.Extract.MaxDepth))
	}
	switch c.Aggregate.Order {
	case "chronological", "input":
	default:
		errs = append(errs, fmt.Errorf("aggregate.order must be chronological or input, got %q", c.Aggregate.Order))
	}
	switch c.Database.Type {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("database.type must be sqlite or postgres, got %q", c.Database.Type))
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
