package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Supported credential store drivers.
const (
	DriverSQLite  = "sqlite"
	DriverMongoDB = "mongodb"
)

// minJWTSecretLength is the shortest accepted signing secret.
const minJWTSecretLength = 32

// Config is the root configuration structure for Ashara Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site     SiteConfig     `yaml:"site"`
	Database DatabaseConfig `yaml:"database"`
	MongoDB  MongoDBConfig  `yaml:"mongodb"`
	API      APIConfig      `yaml:"api"`
	Logging  LoggingConfig  `yaml:"logging"`
	Security SecurityConfig `yaml:"security"`
}

// SiteConfig identifies this deployment.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// DatabaseConfig selects the credential store and holds SQLite settings.
type DatabaseConfig struct {
	Driver      string `yaml:"driver"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MongoDBConfig contains MongoDB connection settings, used when
// database.driver is "mongodb".
type MongoDBConfig struct {
	URI            string `yaml:"uri"`
	Database       string `yaml:"database"`
	Collection     string `yaml:"collection"`
	ConnectTimeout int    `yaml:"connect_timeout"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT       JWTConfig       `yaml:"jwt"`
	SeedAdmin SeedAdminConfig `yaml:"seed_admin"`
}

// JWTConfig holds the two signing secrets. Token lifetimes are fixed
// in the auth package and are deliberately not configurable.
type JWTConfig struct {
	AccessSecret  string `yaml:"access_secret"`
	RefreshSecret string `yaml:"refresh_secret"`
}

// SeedAdminConfig describes the admin account created on first boot.
type SeedAdminConfig struct {
	Email string `yaml:"email"`
	Name  string `yaml:"name"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: ASHARA_SECTION_KEY
// For example: ASHARA_DATABASE_PATH, ASHARA_API_PORT
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:   "ashara-001",
			Name: "Ashara Studio",
		},
		Database: DatabaseConfig{
			Driver:      DriverSQLite,
			Path:        "./data/ashara.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MongoDB: MongoDBConfig{
			URI:            "mongodb://localhost:27017",
			Database:       "ashara",
			Collection:     "users",
			ConnectTimeout: 15,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 5000,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
			CORS: CORSConfig{
				AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
				AllowedHeaders: []string{"Content-Type", "Authorization", "X-Request-ID"},
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			SeedAdmin: SeedAdminConfig{
				Email: "admin@ashara.local",
				Name:  "Studio Admin",
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ASHARA_DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("ASHARA_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("ASHARA_MONGODB_URI"); v != "" {
		cfg.MongoDB.URI = v
	}

	if v := os.Getenv("ASHARA_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("ASHARA_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// Secrets belong in the environment, not in the YAML file.
	if v := os.Getenv("ASHARA_JWT_ACCESS_SECRET"); v != "" {
		cfg.Security.JWT.AccessSecret = v
	}
	if v := os.Getenv("ASHARA_JWT_REFRESH_SECRET"); v != "" {
		cfg.Security.JWT.RefreshSecret = v
	}
}

// Validate checks the configuration for errors and security issues.
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			errs = append(errs, "database.path is required for the sqlite driver")
		}
	case DriverMongoDB:
		if c.MongoDB.URI == "" {
			errs = append(errs, "mongodb.uri is required for the mongodb driver")
		}
		if c.MongoDB.Database == "" {
			errs = append(errs, "mongodb.database is required for the mongodb driver")
		}
	default:
		errs = append(errs, fmt.Sprintf("database.driver must be %q or %q", DriverSQLite, DriverMongoDB))
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	errs = append(errs, c.Security.JWT.validate()...)

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// validate checks both signing secrets. A shared secret would let a leaked
// refresh secret forge access tokens, so the two must differ.
func (j JWTConfig) validate() []string {
	var errs []string

	if j.AccessSecret == "" {
		errs = append(errs, "security.jwt.access_secret is required (set ASHARA_JWT_ACCESS_SECRET environment variable)")
	} else if len(j.AccessSecret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.access_secret must be at least 32 characters")
	}

	if j.RefreshSecret == "" {
		errs = append(errs, "security.jwt.refresh_secret is required (set ASHARA_JWT_REFRESH_SECRET environment variable)")
	} else if len(j.RefreshSecret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.refresh_secret must be at least 32 characters")
	}

	if j.AccessSecret != "" && j.AccessSecret == j.RefreshSecret {
		errs = append(errs, "security.jwt.access_secret and security.jwt.refresh_secret must differ")
	}

	return errs
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// GetMongoConnectTimeout returns the MongoDB connect timeout as a Duration.
func (c *Config) GetMongoConnectTimeout() time.Duration {
	return time.Duration(c.MongoDB.ConnectTimeout) * time.Second
}
