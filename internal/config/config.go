// Package config loads the application configuration from environment variables.
//
// Every setting has one environment variable. Only PORT, CALLBACK_URL and the
// file-system locations have defaults; DATABASE_URL and SECRET_KEY must be set
// or Load fails. Optional backends (Redis sessions, MinIO uploads, Google
// OAuth) are switched on simply by setting their variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

const (
	DefaultPort        = 3000
	DefaultCallbackURL = "http://localhost:3000/auth/google/add"
	DefaultMinioBucket = "bookshelf-uploads"

	// MinSecretLength matches the minimum HMAC key length accepted by the
	// session token signer.
	MinSecretLength = 16
)

// Config holds every setting the server needs.
type Config struct {
	Port        int
	DatabaseURL string
	SecretKey   string

	GoogleClientID     string
	GoogleClientSecret string
	CallbackURL        string

	RedisAddr     string
	RedisPassword string

	UploadDir      string
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	TemplateDir string
	StaticDir   string
	LogLevel    slog.Level
}

// GoogleEnabled reports whether both OAuth client credentials are present.
func (c *Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// RedisEnabled reports whether sessions should be kept in Redis.
func (c *Config) RedisEnabled() bool {
	return c.RedisAddr != ""
}

// MinioEnabled reports whether uploads should be kept in MinIO.
func (c *Config) MinioEnabled() bool {
	return c.MinioEndpoint != ""
}

// Load reads the configuration from the process environment.
func Load() (*Config, error) {
	return load(os.LookupEnv)
}

// load takes the lookup function as a parameter so tests can feed a map
// instead of mutating the real environment.
func load(lookup func(string) (string, bool)) (*Config, error) {
	get := func(key, fallback string) string {
		if v, ok := lookup(key); ok && v != "" {
			return v
		}
		return fallback
	}

	cfg := &Config{
		DatabaseURL:        get("DATABASE_URL", ""),
		SecretKey:          get("SECRET_KEY", ""),
		GoogleClientID:     get("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: get("GOOGLE_CLIENT_SECRET", ""),
		CallbackURL:        get("CALLBACK_URL", DefaultCallbackURL),
		RedisAddr:          get("REDIS_ADDR", ""),
		RedisPassword:      get("REDIS_PASSWORD", ""),
		UploadDir:          get("UPLOAD_DIR", "web/static/uploads"),
		MinioEndpoint:      get("MINIO_ENDPOINT", ""),
		MinioAccessKey:     get("MINIO_ACCESS_KEY", ""),
		MinioSecretKey:     get("MINIO_SECRET_KEY", ""),
		MinioBucket:        get("MINIO_BUCKET", DefaultMinioBucket),
		MinioUseSSL:        get("MINIO_USE_SSL", "false") == "true",
		TemplateDir:        get("TEMPLATE_DIR", "web/templates"),
		StaticDir:          get("STATIC_DIR", "web/static"),
	}

	port, err := strconv.Atoi(get("PORT", strconv.Itoa(DefaultPort)))
	if err != nil || port <= 0 || port > 65535 {
		return nil, fmt.Errorf("config: invalid PORT %q", get("PORT", ""))
	}
	cfg.Port = port

	level, err := parseLevel(get("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}
	cfg.LogLevel = level

	var errs []error
	if cfg.DatabaseURL == "" {
		errs = append(errs, errors.New("config: DATABASE_URL is required"))
	}
	if len(cfg.SecretKey) < MinSecretLength {
		errs = append(errs, fmt.Errorf("config: SECRET_KEY must be at least %d characters", MinSecretLength))
	}
	if cfg.MinioEnabled() && (cfg.MinioAccessKey == "" || cfg.MinioSecretKey == "") {
		errs = append(errs, errors.New("config: MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required with MINIO_ENDPOINT"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	return cfg, nil
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("config: invalid LOG_LEVEL %q", s)
}
