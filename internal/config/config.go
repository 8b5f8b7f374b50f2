package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config is the portal's configuration file.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Auth     AuthConfig     `toml:"auth"`
	Images   ImagesConfig   `toml:"images"`
	Session  SessionConfig  `toml:"session"`
	Log      LogConfig      `toml:"log"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr           string   `toml:"addr"`
	AllowedOrigins []string `toml:"allowed_origins"`
	SecureCookies  bool     `toml:"secure_cookies"`
}

// DatabaseConfig selects the SQL backend.
type DatabaseConfig struct {
	Driver string `toml:"driver"` // "sqlite" or "mysql"
	DSN    string `toml:"dsn"`    // file path for sqlite
}

// AuthConfig holds token and role policy settings.
type AuthConfig struct {
	// JWTSecret signs session tokens. When empty a secret is generated once
	// and kept in the database.
	JWTSecret            string `toml:"jwt_secret,omitempty"`
	SuperAdminModerates  bool   `toml:"super_admin_moderates"`
	OwnerCanMarkReturned bool   `toml:"owner_can_mark_returned"`
}

// ImagesConfig selects where item photos are stored.
// This uses a tagged union pattern - Backend determines which other fields are relevant.
type ImagesConfig struct {
	Backend string `toml:"backend"` // "database", "cloudinary" or "s3"

	// Cloudinary-specific fields (only used when Backend == "cloudinary")
	CloudinaryCloudName string `toml:"cloudinary_cloud_name,omitempty"`
	CloudinaryAPIKey    string `toml:"cloudinary_api_key,omitempty"`
	CloudinaryAPISecret string `toml:"cloudinary_api_secret,omitempty"`
	CloudinaryFolder    string `toml:"cloudinary_folder,omitempty"`

	// S3-specific fields (only used when Backend == "s3")
	S3Bucket    string `toml:"s3_bucket,omitempty"`
	S3Region    string `toml:"s3_region,omitempty"`
	S3Prefix    string `toml:"s3_prefix,omitempty"`
	S3Endpoint  string `toml:"s3_endpoint,omitempty"`
	S3PublicURL string `toml:"s3_public_url,omitempty"`
	S3AccessKey string `toml:"s3_access_key,omitempty"`
	S3SecretKey string `toml:"s3_secret_key,omitempty"`
}

// SessionConfig optionally moves token revocation to Redis.
type SessionConfig struct {
	RedisAddr     string `toml:"redis_addr,omitempty"`
	RedisPassword string `toml:"redis_password,omitempty"`
	RedisDB       int    `toml:"redis_db"`
}

// LogConfig controls the optional log file.
type LogConfig struct {
	File string `toml:"file,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Database: DatabaseConfig{Driver: "sqlite", DSN: "lostfound.sqlite3"},
		Auth:     AuthConfig{OwnerCanMarkReturned: true},
		Images:   ImagesConfig{Backend: "database", CloudinaryFolder: "lost_and_found"},
	}
}

// Validate checks the tagged unions.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "mysql":
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("database dsn is required")
	}

	switch c.Images.Backend {
	case "database":
	case "cloudinary":
		if c.Images.CloudinaryCloudName == "" || c.Images.CloudinaryAPIKey == "" || c.Images.CloudinaryAPISecret == "" {
			return errors.New("cloudinary backend needs cloud name, api key and api secret")
		}
	case "s3":
		if c.Images.S3Bucket == "" {
			return errors.New("s3 backend needs a bucket")
		}
	default:
		return fmt.Errorf("unknown image backend %q", c.Images.Backend)
	}
	return nil
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader on top of the defaults.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	cfg := Default()
	if _, err := toml.NewDecoder(r).Decode(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// Init writes cfg to a new file at path. It refuses to overwrite.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Load reads .env (if present), the config file at path (defaults if it
// does not exist), applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		c, err := ReadFromFile(path)
		switch {
		case err == nil:
			cfg = c
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, err
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides settings from environment variables looked up with
// lookup. Secrets are usually supplied this way rather than in the file.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"LOSTFOUND_ADDR":        &c.Server.Addr,
		"LOSTFOUND_DB_DRIVER":   &c.Database.Driver,
		"LOSTFOUND_DB_DSN":      &c.Database.DSN,
		"LOSTFOUND_JWT_SECRET":  &c.Auth.JWTSecret,
		"LOSTFOUND_IMAGES":      &c.Images.Backend,
		"CLOUDINARY_CLOUD_NAME": &c.Images.CloudinaryCloudName,
		"CLOUDINARY_API_KEY":    &c.Images.CloudinaryAPIKey,
		"CLOUDINARY_API_SECRET": &c.Images.CloudinaryAPISecret,
		"LOSTFOUND_S3_BUCKET":   &c.Images.S3Bucket,
		"LOSTFOUND_REDIS_ADDR":  &c.Session.RedisAddr,
		"LOSTFOUND_REDIS_PASS":  &c.Session.RedisPassword,
		"LOSTFOUND_LOG_FILE":    &c.Log.File,
	}
	for name, dst := range strs {
		if v, ok := lookup(name); ok && v != "" {
			*dst = v
		}
	}

	if v, ok := lookup("LOSTFOUND_ALLOWED_ORIGINS"); ok && v != "" {
		c.Server.AllowedOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.Server.AllowedOrigins = append(c.Server.AllowedOrigins, o)
			}
		}
	}

	if v, ok := lookup("LOSTFOUND_SECURE_COOKIES"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parsing LOSTFOUND_SECURE_COOKIES: %w", err)
		}
		c.Server.SecureCookies = b
	}
	return nil
}
