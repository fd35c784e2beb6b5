package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the default config file name.
const FileName = "liquida.yaml"

// Config represents the top-level liquida.yaml configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Locale   LocaleConfig   `yaml:"locale"`
	Import   ImportConfig   `yaml:"import"`
	Query    QueryConfig    `yaml:"query"`
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
}

// DatabaseConfig locates the Postgres database.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// LocaleConfig sets the zone that file timestamps and filter dates are read in.
type LocaleConfig struct {
	Timezone string `yaml:"timezone"` // IANA name, e.g. "America/Sao_Paulo"
}

// ImportConfig controls ingestion.
type ImportConfig struct {
	BatchSize int    `yaml:"batch_size"`
	InboxDir  string `yaml:"inbox_dir"`
}

// QueryConfig controls transaction listing.
type QueryConfig struct {
	PageSize int `yaml:"page_size"`
	// RefineFetchCap bounds rows fetched for time-of-day filtering. 0 fetches all.
	RefineFetchCap int `yaml:"refine_fetch_cap"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig controls logging output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "console" or "json"
}

// Load reads a liquida.yaml file from disk. Fields missing from the file
// keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault is Load that returns Default when path does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	return cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new installation.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN: "postgres://localhost:5432/liquida?sslmode=disable",
		},
		Locale: LocaleConfig{
			Timezone: "America/Sao_Paulo",
		},
		Import: ImportConfig{
			BatchSize: 100,
			InboxDir:  "inbox",
		},
		Query: QueryConfig{
			PageSize:       50,
			RefineFetchCap: 1000,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// ApplyEnv overrides fields from DB_SOURCE, SERVER_PORT, LIQUIDA_TZ and
// LOG_LEVEL when they are set.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("DB_SOURCE"); v != "" {
		c.Database.DSN = v
	}
	if v := getenv("SERVER_PORT"); v != "" {
		c.Server.Addr = ":" + strings.TrimPrefix(v, ":")
	}
	if v := getenv("LIQUIDA_TZ"); v != "" {
		c.Locale.Timezone = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// Location loads the configured time zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Locale.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Locale.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", c.Locale.Timezone, err)
	}
	return loc, nil
}
