package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTP            HTTPConfig    `envPrefix:"HTTP_"`
	Log             LogConfig     `envPrefix:"LOG_"`
	Storage         StorageConfig `envPrefix:"STORAGE_"`
	Redis           RedisConfig   `envPrefix:"REDIS_"`
	Auth            AuthConfig    `envPrefix:"AUTH_"`
	Cookie          CookieConfig  `envPrefix:"COOKIE_"`
	Audit           AuditConfig   `envPrefix:"AUDIT_"`
	DatabaseURL     string        `env:"DATABASE_URL"`
	RoutesFile      string        `env:"ROUTES_FILE"`
	FrontendDistDir string        `env:"FRONTEND_DIST_DIR" envDefault:"./web/dist"`
}

type HTTPConfig struct {
	Addr            string        `env:"ADDR" envDefault:":8080"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"15s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"20s"`
}

type LogConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"`
}

const (
	StorageMemory   = "memory"
	StorageFile     = "file"
	StoragePostgres = "postgres"
	StorageRedis    = "redis"
)

type StorageConfig struct {
	Driver string `env:"DRIVER" envDefault:"file"`
	File   string `env:"FILE" envDefault:"./data/portal_storage.json"`
	// TTL bounds how long an idle browser context is kept by the redis driver.
	TTL time.Duration `env:"TTL" envDefault:"720h"`
}

type RedisConfig struct {
	Addr     string `env:"ADDR" envDefault:"localhost:6379"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
	Prefix   string `env:"PREFIX" envDefault:"portal:ctx:"`
}

const (
	AuthLocal  = "local"
	AuthRemote = "remote"
)

type AuthConfig struct {
	Mode   string `env:"MODE" envDefault:"local"`
	APIURL string `env:"API_URL"`
	// APITimeout of zero leaves calls bounded only by the request context.
	APITimeout        time.Duration `env:"API_TIMEOUT" envDefault:"0s"`
	UserStateFile     string        `env:"USER_STATE_FILE" envDefault:"./data/portal_users.json"`
	BootstrapEmail    string        `env:"BOOTSTRAP_EMAIL" envDefault:"admin@enarm.local"`
	BootstrapPassword string        `env:"BOOTSTRAP_PASSWORD" envDefault:"admin123"`
	BootstrapName     string        `env:"BOOTSTRAP_NAME" envDefault:"Administrador"`
	BcryptCost        int           `env:"BCRYPT_COST" envDefault:"10"`
}

type CookieConfig struct {
	Name   string        `env:"NAME" envDefault:"portal_ctx"`
	Secure bool          `env:"SECURE" envDefault:"false"`
	MaxAge time.Duration `env:"MAX_AGE" envDefault:"8760h"`
}

type AuditConfig struct {
	LogFile      string   `env:"LOG_FILE" envDefault:"./data/audit.log"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"portal.audit"`
}

// Load reads the configuration from the process environment, after merging
// a .env file from the working directory when one exists.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return parse(env.Options{})
}

// LoadFrom reads the configuration from environ only.
func LoadFrom(environ map[string]string) (Config, error) {
	return parse(env.Options{Environment: environ})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	c.Auth.Mode = strings.ToLower(strings.TrimSpace(c.Auth.Mode))
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))

	brokers := c.Audit.KafkaBrokers[:0]
	for _, b := range c.Audit.KafkaBrokers {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	c.Audit.KafkaBrokers = brokers
}

func (c Config) Validate() error {
	if c.HTTP.Addr == "" {
		return fmt.Errorf("HTTP_ADDR must not be empty")
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		return fmt.Errorf("HTTP_SHUTDOWN_TIMEOUT must be > 0")
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error")
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("LOG_FORMAT must be json or text")
	}

	switch c.Storage.Driver {
	case StorageMemory:
	case StorageFile:
		if c.Storage.File == "" {
			return fmt.Errorf("STORAGE_FILE must not be empty")
		}
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for STORAGE_DRIVER=postgres")
		}
	case StorageRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("REDIS_ADDR must not be empty")
		}
		if c.Storage.TTL < 0 {
			return fmt.Errorf("STORAGE_TTL must be >= 0")
		}
	default:
		return fmt.Errorf("STORAGE_DRIVER must be one of memory, file, postgres, redis")
	}

	switch c.Auth.Mode {
	case AuthRemote:
		if c.Auth.APIURL == "" {
			return fmt.Errorf("AUTH_API_URL is required for AUTH_MODE=remote")
		}
		if c.Auth.APITimeout < 0 {
			return fmt.Errorf("AUTH_API_TIMEOUT must be >= 0")
		}
	case AuthLocal:
		if c.DatabaseURL == "" && c.Auth.UserStateFile == "" {
			return fmt.Errorf("AUTH_USER_STATE_FILE must not be empty")
		}
		if c.Auth.BootstrapEmail == "" {
			return fmt.Errorf("AUTH_BOOTSTRAP_EMAIL must not be empty")
		}
		if c.Auth.BootstrapPassword == "" {
			return fmt.Errorf("AUTH_BOOTSTRAP_PASSWORD must not be empty")
		}
	default:
		return fmt.Errorf("AUTH_MODE must be local or remote")
	}

	if c.Cookie.Name == "" {
		return fmt.Errorf("COOKIE_NAME must not be empty")
	}
	if c.Cookie.MaxAge <= 0 {
		return fmt.Errorf("COOKIE_MAX_AGE must be > 0")
	}
	if len(c.Audit.KafkaBrokers) > 0 && c.Audit.KafkaTopic == "" {
		return fmt.Errorf("AUDIT_KAFKA_TOPIC is required when AUDIT_KAFKA_BROKERS is set")
	}
	return nil
}
