package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "CONSIGNA"

type Config struct {
	DB   DBConfig
	HTTP HTTPConfig
	Auth AuthConfig
	Log  LogConfig
}

type DBConfig struct {
	Path string `envconfig:"CONSIGNA_DB_PATH" default:"consigna.sqlite3"`
}

type HTTPConfig struct {
	Addr              string        `envconfig:"CONSIGNA_ADDR" default:":8080"`
	ReadHeaderTimeout time.Duration `envconfig:"CONSIGNA_READ_HEADER_TIMEOUT" default:"10s"`
	ReadTimeout       time.Duration `envconfig:"CONSIGNA_READ_TIMEOUT" default:"30s"`
	WriteTimeout      time.Duration `envconfig:"CONSIGNA_WRITE_TIMEOUT" default:"60s"`
	IdleTimeout       time.Duration `envconfig:"CONSIGNA_IDLE_TIMEOUT" default:"120s"`
	ShutdownTimeout   time.Duration `envconfig:"CONSIGNA_SHUTDOWN_TIMEOUT" default:"5s"`
	// MaxUploadBytes caps item photo uploads.
	MaxUploadBytes int64 `envconfig:"CONSIGNA_MAX_UPLOAD_BYTES" default:"10485760"`
}

type AuthConfig struct {
	AdminEmail string `envconfig:"CONSIGNA_ADMIN_EMAIL" default:"admin@consigna.local"`
	AdminName  string `envconfig:"CONSIGNA_ADMIN_NAME" default:"Admin"`
	// JWTSecret overrides the secret persisted in the database.
	JWTSecret string        `envconfig:"CONSIGNA_JWT_SECRET"`
	TokenTTL  time.Duration `envconfig:"CONSIGNA_TOKEN_TTL" default:"24h"`
}

type LogConfig struct {
	Level  string `envconfig:"CONSIGNA_LOG_LEVEL" default:"info"`
	Format string `envconfig:"CONSIGNA_LOG_FORMAT" default:"json"`
	File   string `envconfig:"CONSIGNA_LOG_FILE"`
}

// Load reads the optional dotenv files and then the environment.
// Variables already set in the environment win over dotenv values.
func Load(dotenvFiles ...string) (*Config, error) {
	if len(dotenvFiles) == 0 {
		dotenvFiles = []string{".env"}
	}
	for _, f := range dotenvFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", f, err)
		}
	}

	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values envconfig cannot.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Log.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log format %q: must be json or console", c.Log.Format)
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("token ttl must be positive")
	}
	if c.HTTP.MaxUploadBytes <= 0 {
		return fmt.Errorf("max upload bytes must be positive")
	}
	if c.DB.Path == "" {
		return fmt.Errorf("database path is required")
	}
	return nil
}
