package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml"
	"gopkg.in/yaml.v3"
)

// Source kinds understood by sources.NewSource
const (
	SourceCSV      = "csv"
	SourceXLSX     = "xlsx"
	SourcePostgres = "postgres"
)

// Config is the full runtime configuration of the server and CLI
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Logging  LoggingConfig
	Sources  SourcesConfig
	Cache    CacheConfig
	Display  DisplayConfig
}

// ServerConfig holds HTTP listener settings
type ServerConfig struct {
	Host         string        `validate:"required"`
	Port         int           `validate:"min=1,max=65535"`
	ReadTimeout  time.Duration `validate:"gt=0"`
	WriteTimeout time.Duration `validate:"gt=0"`
	IdleTimeout  time.Duration `validate:"gt=0"`
}

// DatabaseConfig holds the optional Postgres pricing store settings
type DatabaseConfig struct {
	Enabled         bool
	Host            string `validate:"required_if=Enabled true"`
	Port            int    `validate:"min=1,max=65535"`
	User            string `validate:"required_if=Enabled true"`
	Password        string
	Database        string `validate:"required_if=Enabled true"`
	SSLMode         string `validate:"oneof=disable require verify-ca verify-full"`
	MaxOpenConns    int    `validate:"min=1"`
	MaxIdleConns    int    `validate:"min=0"`
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level string `validate:"oneof=debug info warn error"`
}

// SourceConfig describes one tabular feed
type SourceConfig struct {
	Kind     string `yaml:"kind" toml:"kind" validate:"required,oneof=csv xlsx postgres"`
	Location string `yaml:"location" toml:"location"`
	Sheet    string `yaml:"sheet" toml:"sheet"`
	// Aliases maps a canonical column name to extra header spellings
	Aliases map[string][]string `yaml:"aliases" toml:"aliases"`
}

// SourcesConfig groups the three feeds the loader reads
type SourcesConfig struct {
	Trips             SourceConfig `yaml:"trips" toml:"trips"`
	Fleet             SourceConfig `yaml:"fleet" toml:"fleet"`
	Pricing           SourceConfig `yaml:"pricing" toml:"pricing"`
	TimeoutSeconds    int          `yaml:"timeout_seconds" toml:"timeout_seconds" validate:"min=1"`
	MaxReportedErrors int          `yaml:"max_reported_errors" toml:"max_reported_errors" validate:"min=0"`
	AllowEmptyPricing bool         `yaml:"allow_empty_pricing" toml:"allow_empty_pricing"`
}

// Timeout returns the per-fetch timeout
func (s SourcesConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// CacheConfig controls the dataset snapshot
type CacheConfig struct {
	// StaleAfter of zero keeps a snapshot until an explicit reload
	StaleAfter time.Duration `validate:"min=0"`
}

// DisplayConfig controls formatted output
type DisplayConfig struct {
	Locale string `yaml:"locale" toml:"locale" validate:"oneof=br us"`
	TopN   int    `yaml:"top_n" toml:"top_n" validate:"min=1"`
}

// fileConfig is the subset of settings that may come from CONFIG_FILE
type fileConfig struct {
	Sources *SourcesConfig `yaml:"sources" toml:"sources"`
	Display *DisplayConfig `yaml:"display" toml:"display"`
}

// LoadConfig reads .env (optional), then environment variables, then the
// optional CONFIG_FILE, which overrides source and display settings.
func LoadConfig() (*Config, error) {
	// A missing .env is normal outside local development
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 60*time.Second),
			IdleTimeout:  getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Database: DatabaseConfig{
			Enabled:         getEnvBool("DB_ENABLED", false),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "fleet"),
			Password:        os.Getenv("DB_PASSWORD"),
			Database:        getEnv("DB_NAME", "fleet_analytics"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
		},
		Logging: LoggingConfig{
			Level: strings.ToLower(getEnv("LOG_LEVEL", "info")),
		},
		Sources: SourcesConfig{
			Trips:             sourceFromEnv("TRIPS", SourceCSV),
			Fleet:             sourceFromEnv("FLEET", SourceCSV),
			Pricing:           sourceFromEnv("PRICING", SourceCSV),
			TimeoutSeconds:    getEnvInt("SOURCE_TIMEOUT_SECONDS", 30),
			MaxReportedErrors: getEnvInt("SOURCE_MAX_REPORTED_ERRORS", 50),
			AllowEmptyPricing: getEnvBool("SOURCE_ALLOW_EMPTY_PRICING", false),
		},
		Cache: CacheConfig{
			StaleAfter: getEnvDuration("CACHE_STALE_AFTER", 0),
		},
		Display: DisplayConfig{
			Locale: strings.ToLower(getEnv("DISPLAY_LOCALE", "br")),
			TopN:   getEnvInt("DISPLAY_TOP_N", 15),
		},
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.ApplyFile(path); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// ApplyFile merges source and display settings from a YAML or TOML file.
// Fields left empty in the file keep their current value.
func (c *Config) ApplyFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("error accessing config file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory, not a file", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	var fc fileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, &fc); err != nil {
			return fmt.Errorf("error parsing TOML file: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return fmt.Errorf("error parsing YAML file: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config file format: %s", filepath.Ext(path))
	}

	if fc.Sources != nil {
		mergeSource(&c.Sources.Trips, fc.Sources.Trips)
		mergeSource(&c.Sources.Fleet, fc.Sources.Fleet)
		mergeSource(&c.Sources.Pricing, fc.Sources.Pricing)
		if fc.Sources.TimeoutSeconds > 0 {
			c.Sources.TimeoutSeconds = fc.Sources.TimeoutSeconds
		}
		if fc.Sources.MaxReportedErrors > 0 {
			c.Sources.MaxReportedErrors = fc.Sources.MaxReportedErrors
		}
		if fc.Sources.AllowEmptyPricing {
			c.Sources.AllowEmptyPricing = true
		}
	}
	if fc.Display != nil {
		if fc.Display.Locale != "" {
			c.Display.Locale = strings.ToLower(fc.Display.Locale)
		}
		if fc.Display.TopN > 0 {
			c.Display.TopN = fc.Display.TopN
		}
	}
	return nil
}

func mergeSource(dst *SourceConfig, src SourceConfig) {
	if src.Kind != "" {
		dst.Kind = strings.ToLower(src.Kind)
	}
	if src.Location != "" {
		dst.Location = src.Location
	}
	if src.Sheet != "" {
		dst.Sheet = src.Sheet
	}
	if len(src.Aliases) > 0 {
		dst.Aliases = src.Aliases
	}
}

// Validate checks struct constraints plus the rules that span sections
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed on %s", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}

	named := map[string]SourceConfig{
		"trips":   c.Sources.Trips,
		"fleet":   c.Sources.Fleet,
		"pricing": c.Sources.Pricing,
	}
	for _, name := range []string{"trips", "fleet", "pricing"} {
		src := named[name]
		switch src.Kind {
		case SourcePostgres:
			if name != "pricing" {
				return fmt.Errorf("invalid configuration: %s source cannot use kind postgres", name)
			}
			if !c.Database.Enabled {
				return fmt.Errorf("invalid configuration: pricing source kind postgres requires DB_ENABLED=true")
			}
		default:
			if strings.TrimSpace(src.Location) == "" {
				return fmt.Errorf("invalid configuration: %s source location is required", name)
			}
		}
	}

	return nil
}

func sourceFromEnv(prefix, defaultKind string) SourceConfig {
	return SourceConfig{
		Kind:     strings.ToLower(getEnv(prefix+"_SOURCE_KIND", defaultKind)),
		Location: os.Getenv(prefix + "_SOURCE_URL"),
		Sheet:    os.Getenv(prefix + "_SOURCE_SHEET"),
	}
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
