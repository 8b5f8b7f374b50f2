package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestManager_ReadWrite_RoundTrip(t *testing.T) {
	original := Default()
	original.Server.AllowedOrigins = []string{"https://lost.uni.edu"}
	original.Database = DatabaseConfig{Driver: "mysql", DSN: "lf:pw@tcp(db:3306)/lostfound"}
	original.Auth.SuperAdminModerates = true
	original.Images = ImagesConfig{Backend: "s3", S3Bucket: "photos", S3Region: "eu-central-1"}
	original.Session.RedisAddr = "redis:6379"

	var buf bytes.Buffer
	m := &Manager{}

	if err := m.Write(&buf, original); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.Database != original.Database {
		t.Errorf("Database = %+v, want %+v", got.Database, original.Database)
	}
	if !got.Auth.SuperAdminModerates {
		t.Error("Auth.SuperAdminModerates = false, want true")
	}
	if got.Images.S3Bucket != "photos" || got.Images.Backend != "s3" {
		t.Errorf("Images = %+v", got.Images)
	}
	if len(got.Server.AllowedOrigins) != 1 || got.Server.AllowedOrigins[0] != "https://lost.uni.edu" {
		t.Errorf("AllowedOrigins = %v", got.Server.AllowedOrigins)
	}
	if got.Session.RedisAddr != "redis:6379" {
		t.Errorf("Session.RedisAddr = %q", got.Session.RedisAddr)
	}
}

func TestReadKeepsDefaultsForMissingKeys(t *testing.T) {
	m := &Manager{}
	cfg, err := m.Read(strings.NewReader("[server]\naddr = \":9000\"\n"))
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if cfg.Server.Addr != ":9000" {
		t.Errorf("Addr = %q, want :9000", cfg.Server.Addr)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("Database.Driver = %q, want default sqlite", cfg.Database.Driver)
	}
	if !cfg.Auth.OwnerCanMarkReturned {
		t.Error("OwnerCanMarkReturned should default to true")
	}
}

func TestReadInvalidTOML(t *testing.T) {
	m := &Manager{}
	if _, err := m.Read(strings.NewReader("[server\n")); err == nil {
		t.Error("expected error for invalid TOML")
	}
}

func TestInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "etc", "lostfound.toml")

	if err := Init(path, Default()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if err := Init(path, Default()); err == nil {
		t.Error("expected error when config already exists")
	}

	cfg, err := ReadFromFile(path)
	if err != nil {
		t.Fatalf("ReadFromFile() error = %v", err)
	}
	if cfg.Images.Backend != "database" {
		t.Errorf("Images.Backend = %q, want database", cfg.Images.Backend)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"LOSTFOUND_JWT_SECRET":      "s3cret",
		"LOSTFOUND_DB_DRIVER":       "mysql",
		"CLOUDINARY_API_KEY":        "key",
		"LOSTFOUND_ALLOWED_ORIGINS": "https://a.edu, https://b.edu",
		"LOSTFOUND_SECURE_COOKIES":  "true",
		"LOSTFOUND_REDIS_ADDR":      "",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	cfg.Session.RedisAddr = "keep:6379"
	if err := cfg.ApplyEnv(lookup); err != nil {
		t.Fatalf("ApplyEnv() error = %v", err)
	}

	if cfg.Auth.JWTSecret != "s3cret" {
		t.Errorf("JWTSecret = %q", cfg.Auth.JWTSecret)
	}
	if cfg.Database.Driver != "mysql" {
		t.Errorf("Driver = %q", cfg.Database.Driver)
	}
	if cfg.Images.CloudinaryAPIKey != "key" {
		t.Errorf("CloudinaryAPIKey = %q", cfg.Images.CloudinaryAPIKey)
	}
	if len(cfg.Server.AllowedOrigins) != 2 || cfg.Server.AllowedOrigins[1] != "https://b.edu" {
		t.Errorf("AllowedOrigins = %v", cfg.Server.AllowedOrigins)
	}
	if !cfg.Server.SecureCookies {
		t.Error("SecureCookies = false, want true")
	}
	if cfg.Session.RedisAddr != "keep:6379" {
		t.Errorf("empty env var should not override, got %q", cfg.Session.RedisAddr)
	}

	env["LOSTFOUND_SECURE_COOKIES"] = "maybe"
	if err := Default().ApplyEnv(lookup); err == nil {
		t.Error("expected error for bad boolean")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"unknown driver", func(c *Config) { c.Database.Driver = "oracle" }, true},
		{"empty dsn", func(c *Config) { c.Database.DSN = "" }, true},
		{"cloudinary missing secret", func(c *Config) {
			c.Images.Backend = "cloudinary"
			c.Images.CloudinaryCloudName = "demo"
			c.Images.CloudinaryAPIKey = "k"
		}, true},
		{"s3 with bucket", func(c *Config) {
			c.Images.Backend = "s3"
			c.Images.S3Bucket = "photos"
		}, false},
		{"unknown backend", func(c *Config) { c.Images.Backend = "ftp" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	wd, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(wd)

	cfg, err := Load(filepath.Join(dir, "absent.toml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Driver != "sqlite" && os.Getenv("LOSTFOUND_DB_DRIVER") == "" {
		t.Errorf("Driver = %q, want sqlite", cfg.Database.Driver)
	}
}
