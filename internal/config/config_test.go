package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

var configEnvKeys = []string{
	"FACEDB_DIM", "FACEDB_TOLERANCE", "FACEDB_BACKEND", "FACEDB_PATH",
	"FACEDB_COMPRESSION", "FACEDB_AUTOSAVE", "FACEDB_WATCH",
	"DATABASE_URL", "DATABASE_MAX_OPEN_CONNS", "DATABASE_MAX_IDLE_CONNS",
	"MINIO_ENDPOINT", "MINIO_ACCESS_KEY", "MINIO_SECRET_KEY", "MINIO_BUCKET",
	"MINIO_OBJECT", "MINIO_USE_SSL",
	"WEB_HOST", "WEB_PORT", "WEB_API_TOKEN", "WEB_ALLOWED_ORIGINS",
	"LOG_LEVEL", "LOG_FORMAT",
}

// clearEnv blanks every variable Load reads so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configEnvKeys {
		t.Setenv(key, "")
	}
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "facedb.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Database.Dim != 128 {
		t.Errorf("expected default dim 128, got %d", cfg.Database.Dim)
	}
	if cfg.Database.Tolerance != 0.6 {
		t.Errorf("expected default tolerance 0.6, got %v", cfg.Database.Tolerance)
	}
	if cfg.Database.Backend != BackendFile {
		t.Errorf("expected file backend, got %q", cfg.Database.Backend)
	}
	if cfg.Database.Path != "faces.db" {
		t.Errorf("expected faces.db, got %q", cfg.Database.Path)
	}
	if cfg.Database.Compression != "none" {
		t.Errorf("expected no compression, got %q", cfg.Database.Compression)
	}
	if cfg.Web.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Web.Port)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("expected info log level, got %q", cfg.Log.Level)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("FACEDB_DIM", "512")
	t.Setenv("FACEDB_TOLERANCE", "0.45")
	t.Setenv("FACEDB_COMPRESSION", "zstd")
	t.Setenv("FACEDB_AUTOSAVE", "true")
	t.Setenv("WEB_PORT", "9090")
	t.Setenv("WEB_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com,")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Database.Dim != 512 {
		t.Errorf("expected dim 512, got %d", cfg.Database.Dim)
	}
	if cfg.Database.Tolerance != 0.45 {
		t.Errorf("expected tolerance 0.45, got %v", cfg.Database.Tolerance)
	}
	if cfg.Database.Compression != "zstd" {
		t.Errorf("expected zstd, got %q", cfg.Database.Compression)
	}
	if !cfg.Database.AutoSave {
		t.Error("expected auto save to be enabled")
	}
	if cfg.Web.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Web.Port)
	}
	if len(cfg.Web.AllowedOrigins) != 2 || cfg.Web.AllowedOrigins[1] != "https://b.example.com" {
		t.Errorf("unexpected allowed origins: %v", cfg.Web.AllowedOrigins)
	}
}

func TestLoad_InvalidDimFallsBackToDefault(t *testing.T) {
	for _, value := range []string{"invalid", "-100", "0"} {
		clearEnv(t)
		t.Setenv("FACEDB_DIM", value)

		cfg, err := Load("")
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", value, err)
		}
		if cfg.Database.Dim != 128 {
			t.Errorf("expected default dim for %q, got %d", value, cfg.Database.Dim)
		}
	}
}

func TestLoad_InvalidToleranceFallsBackToDefault(t *testing.T) {
	for _, value := range []string{"abc", "-0.5", "0", "+Inf", "NaN"} {
		clearEnv(t)
		t.Setenv("FACEDB_TOLERANCE", value)

		cfg, err := Load("")
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", value, err)
		}
		if cfg.Database.Tolerance != 0.6 {
			t.Errorf("expected default tolerance for %q, got %v", value, cfg.Database.Tolerance)
		}
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	clearEnv(t)
	path := writeConfigFile(t, `
database:
  dim: 64
  tolerance: 0.5
  backend: minio
minio:
  endpoint: localhost:9000
  bucket: faces
log:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Database.Dim != 64 {
		t.Errorf("expected dim 64, got %d", cfg.Database.Dim)
	}
	if cfg.Database.Backend != BackendMinIO {
		t.Errorf("expected minio backend, got %q", cfg.Database.Backend)
	}
	if cfg.MinIO.Object != "faces.db" {
		t.Errorf("expected default object name to survive the overlay, got %q", cfg.MinIO.Object)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("expected json format, got %q", cfg.Log.Format)
	}
}

func TestLoad_EnvWinsOverYAML(t *testing.T) {
	clearEnv(t)
	t.Setenv("FACEDB_TOLERANCE", "0.4")
	path := writeConfigFile(t, "database:\n  tolerance: 0.5\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Database.Tolerance != 0.4 {
		t.Errorf("expected env tolerance 0.4, got %v", cfg.Database.Tolerance)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	clearEnv(t)
	path := writeConfigFile(t, "database: [not, a, map\n")

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for malformed YAML")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"zero dim", func(c *Config) { c.Database.Dim = 0 }, "database.dim"},
		{"negative tolerance", func(c *Config) { c.Database.Tolerance = -1 }, "database.tolerance"},
		{"unknown compression", func(c *Config) { c.Database.Compression = "gzip" }, "compression"},
		{"unknown backend", func(c *Config) { c.Database.Backend = "redis" }, "unknown database backend"},
		{"file without path", func(c *Config) { c.Database.Path = "" }, "database.path"},
		{"minio without endpoint", func(c *Config) {
			c.Database.Backend = BackendMinIO
			c.MinIO.Bucket = "faces"
		}, "minio"},
		{"postgres without url", func(c *Config) { c.Database.Backend = BackendPostgres }, "DATABASE_URL"},
		{"postgres with url", func(c *Config) {
			c.Database.Backend = BackendPostgres
			c.Postgres.URL = "postgres://localhost/facedb"
		}, ""},
		{"port out of range", func(c *Config) { c.Web.Port = 70000 }, "web.port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %q", tt.wantErr, err.Error())
			}
		})
	}
}
