package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Storage backends for the encoding database.
const (
	BackendFile     = "file"
	BackendMinIO    = "minio"
	BackendPostgres = "postgres"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Postgres PostgresConfig `yaml:"postgres"`
	MinIO    MinIOConfig    `yaml:"minio"`
	Web      WebConfig      `yaml:"web"`
	Log      LogConfig      `yaml:"log"`
}

// DatabaseConfig describes the encoding database held by a recognition session.
type DatabaseConfig struct {
	Dim         int     `yaml:"dim"`         // embedding dimension (default 128)
	Tolerance   float64 `yaml:"tolerance"`   // accept threshold (default 0.6)
	Backend     string  `yaml:"backend"`     // file, minio or postgres (default file)
	Path        string  `yaml:"path"`        // file backend location (default faces.db)
	Compression string  `yaml:"compression"` // none or zstd (default none)
	AutoSave    bool    `yaml:"auto_save"`   // persist after every enrollment change
	Watch       bool    `yaml:"watch"`       // reload when the file backend changes on disk
}

type PostgresConfig struct {
	URL          string `yaml:"url"`            // PostgreSQL connection URL
	MaxOpenConns int    `yaml:"max_open_conns"` // Maximum open connections (default 25)
	MaxIdleConns int    `yaml:"max_idle_conns"` // Maximum idle connections (default 5)
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Object    string `yaml:"object"` // defaults to faces.db
	UseSSL    bool   `yaml:"use_ssl"`
}

type WebConfig struct {
	Host           string   `yaml:"host"`            // defaults to 0.0.0.0
	Port           int      `yaml:"port"`            // defaults to 8080
	APIToken       string   `yaml:"api_token"`       // bearer token; empty disables auth
	AllowedOrigins []string `yaml:"allowed_origins"` // CORS whitelist in addition to localhost
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error (default info)
	Format string `yaml:"format"` // json or console (default console)
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Dim:         128,
			Tolerance:   0.6,
			Backend:     BackendFile,
			Path:        "faces.db",
			Compression: "none",
		},
		Postgres: PostgresConfig{
			MaxOpenConns: 25,
			MaxIdleConns: 5,
		},
		MinIO: MinIOConfig{
			Object: "faces.db",
		},
		Web: WebConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads a positive float, falling back to defaultVal.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 && !math.IsInf(f, 0) {
		return f
	}
	return defaultVal
}

// envBool reads a boolean, falling back to defaultVal when unset or unparsable.
func envBool(key string, defaultVal bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return defaultVal
}

// envString returns the env var or defaultVal when unset.
func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// envList splits a comma separated env var, falling back to defaultVal when unset.
func envList(key string, defaultVal []string) []string {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	var out []string
	for item := range strings.SplitSeq(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Load builds the configuration from defaults, an optional YAML file and the
// environment, in increasing order of precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path) //nolint:gosec // path is from trusted flag
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Database.Dim = envInt("FACEDB_DIM", c.Database.Dim)
	c.Database.Tolerance = envFloat("FACEDB_TOLERANCE", c.Database.Tolerance)
	c.Database.Backend = envString("FACEDB_BACKEND", c.Database.Backend)
	c.Database.Path = envString("FACEDB_PATH", c.Database.Path)
	c.Database.Compression = envString("FACEDB_COMPRESSION", c.Database.Compression)
	c.Database.AutoSave = envBool("FACEDB_AUTOSAVE", c.Database.AutoSave)
	c.Database.Watch = envBool("FACEDB_WATCH", c.Database.Watch)

	c.Postgres.URL = envString("DATABASE_URL", c.Postgres.URL)
	c.Postgres.MaxOpenConns = envInt("DATABASE_MAX_OPEN_CONNS", c.Postgres.MaxOpenConns)
	c.Postgres.MaxIdleConns = envInt("DATABASE_MAX_IDLE_CONNS", c.Postgres.MaxIdleConns)

	c.MinIO.Endpoint = envString("MINIO_ENDPOINT", c.MinIO.Endpoint)
	c.MinIO.AccessKey = envString("MINIO_ACCESS_KEY", c.MinIO.AccessKey)
	c.MinIO.SecretKey = envString("MINIO_SECRET_KEY", c.MinIO.SecretKey)
	c.MinIO.Bucket = envString("MINIO_BUCKET", c.MinIO.Bucket)
	c.MinIO.Object = envString("MINIO_OBJECT", c.MinIO.Object)
	c.MinIO.UseSSL = envBool("MINIO_USE_SSL", c.MinIO.UseSSL)

	c.Web.Host = envString("WEB_HOST", c.Web.Host)
	c.Web.Port = envInt("WEB_PORT", c.Web.Port)
	c.Web.APIToken = envString("WEB_API_TOKEN", c.Web.APIToken)
	c.Web.AllowedOrigins = envList("WEB_ALLOWED_ORIGINS", c.Web.AllowedOrigins)

	c.Log.Level = envString("LOG_LEVEL", c.Log.Level)
	c.Log.Format = envString("LOG_FORMAT", c.Log.Format)
}

// Validate checks values that would otherwise fail deep inside a session.
func (c *Config) Validate() error {
	var errs []error
	if c.Database.Dim <= 0 {
		errs = append(errs, fmt.Errorf("database.dim must be positive, got %d", c.Database.Dim))
	}
	if !(c.Database.Tolerance > 0) || math.IsInf(c.Database.Tolerance, 0) {
		errs = append(errs, fmt.Errorf("database.tolerance must be positive, got %v", c.Database.Tolerance))
	}
	switch c.Database.Compression {
	case "none", "zstd":
	default:
		errs = append(errs, fmt.Errorf("database.compression must be none or zstd, got %q", c.Database.Compression))
	}
	switch c.Database.Backend {
	case BackendFile:
		if c.Database.Path == "" {
			errs = append(errs, errors.New("database.path is required for the file backend"))
		}
	case BackendMinIO:
		if c.MinIO.Endpoint == "" || c.MinIO.Bucket == "" || c.MinIO.Object == "" {
			errs = append(errs, errors.New("minio endpoint, bucket and object are required for the minio backend"))
		}
	case BackendPostgres:
		if c.Postgres.URL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown database backend %q", c.Database.Backend))
	}
	if c.Web.Port <= 0 || c.Web.Port > 65535 {
		errs = append(errs, fmt.Errorf("web.port out of range: %d", c.Web.Port))
	}
	return errors.Join(errs...)
}
