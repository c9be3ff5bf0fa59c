package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds edge-coordinator configuration.
type Config struct {
	AppEnv   string // APP_ENV
	AppHost  string // APP_HOST
	HTTPPort string // APP_PORT or HTTP_PORT
	LogLevel string // LOG_LEVEL

	// Database. Driver is "postgres" or "sqlite"; sqlite keeps local
	// development and CI self-contained.
	DB struct {
		Driver   string
		Host     string
		Port     string
		User     string
		Password string
		Database string
		SSLMode  string
		Path     string // sqlite file path
	}

	// Auth: PEM-encoded RSA public key of the identity provider, inline or
	// as a file path. Tokens are minted elsewhere; we only verify.
	AuthPublicKeyPEM  string
	AuthPublicKeyFile string

	// WebSocket
	WSReadBufferSize  int
	WSWriteBufferSize int
	WSMaxMessageSize  int64

	// Pairing
	PairingSessionTTL time.Duration
}

// Load loads config from environment (.env if present).
func Load() (*Config, error) {
	_ = godotenv.Load()

	readBuf, _ := strconv.Atoi(getEnv("WS_READ_BUFFER_SIZE", "4096"))
	writeBuf, _ := strconv.Atoi(getEnv("WS_WRITE_BUFFER_SIZE", "4096"))
	maxMsg, _ := strconv.ParseInt(getEnv("WS_MAX_MESSAGE_SIZE", "65536"), 10, 64)
	ttlSec, _ := strconv.Atoi(getEnv("PAIRING_SESSION_TTL", "600"))

	cfg := &Config{
		AppEnv:            getEnv("APP_ENV", "development"),
		AppHost:           getEnv("APP_HOST", "0.0.0.0"),
		HTTPPort:          firstEnv("APP_PORT", "HTTP_PORT", "8090"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		AuthPublicKeyPEM:  os.Getenv("AUTH_PUBLIC_KEY"),
		AuthPublicKeyFile: os.Getenv("AUTH_PUBLIC_KEY_FILE"),
		WSReadBufferSize:  readBuf,
		WSWriteBufferSize: writeBuf,
		WSMaxMessageSize:  maxMsg,
		PairingSessionTTL: time.Duration(ttlSec) * time.Second,
	}
	cfg.DB.Driver = getEnv("DB_DRIVER", "postgres")
	cfg.DB.Host = getEnv("DB_HOST", "localhost")
	cfg.DB.Port = getEnv("DB_PORT", "5432")
	cfg.DB.User = getEnv("DB_USER", "postgres")
	cfg.DB.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.DB.Database = getEnv("DB_DATABASE", "petube")
	cfg.DB.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.DB.Path = getEnv("DB_PATH", "petube.db")
	return cfg, nil
}

// Validate checks required fields and production safety.
func (c *Config) Validate() error {
	switch c.DB.Driver {
	case "postgres":
		if c.DB.Host == "" {
			return errors.New("config: DB_HOST is required")
		}
		if c.DB.User == "" {
			return errors.New("config: DB_USER is required")
		}
		if c.DB.Database == "" {
			return errors.New("config: DB_DATABASE is required")
		}
	case "sqlite":
		if c.DB.Path == "" {
			return errors.New("config: DB_PATH is required for sqlite")
		}
	default:
		return fmt.Errorf("config: unknown DB_DRIVER %q", c.DB.Driver)
	}
	if c.AuthPublicKeyPEM == "" && c.AuthPublicKeyFile == "" {
		return errors.New("config: AUTH_PUBLIC_KEY or AUTH_PUBLIC_KEY_FILE is required")
	}
	if c.AppEnv == "production" {
		if c.DB.Driver == "sqlite" {
			return errors.New("config: sqlite is not allowed in production")
		}
		if c.DB.Password == "" {
			return errors.New("config: in production DB_PASSWORD is required")
		}
	}
	return nil
}

// PublicKeyPEM returns the PEM bytes of the IdP public key.
func (c *Config) PublicKeyPEM() ([]byte, error) {
	if c.AuthPublicKeyPEM != "" {
		return []byte(c.AuthPublicKeyPEM), nil
	}
	return os.ReadFile(c.AuthPublicKeyFile)
}

// DSN returns the GORM connection string for the configured driver.
func (c *Config) DSN() string {
	if c.DB.Driver == "sqlite" {
		return c.DB.Path
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.Database, c.DB.SSLMode)
}

// DatabaseURL returns a postgres URL for golang-migrate.
func (c *Config) DatabaseURL() string {
	pass := url.QueryEscape(c.DB.Password)
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DB.User, pass, c.DB.Host, c.DB.Port, c.DB.Database, c.DB.SSLMode)
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return c.AppHost + ":" + c.HTTPPort
}

func firstEnv(keysAndDef ...string) string {
	if len(keysAndDef) == 0 {
		return ""
	}
	def := keysAndDef[len(keysAndDef)-1]
	keys := keysAndDef[:len(keysAndDef)-1]
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
