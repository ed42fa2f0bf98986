package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"

	BackendSQLite    = "sqlite"
	BackendFirestore = "firestore"
)

// Config keeps runtime settings for the bot.
type Config struct {
	Env           string `env:"ENV" env-default:"local"`
	LogLevel      string `env:"LOG_LEVEL" env-default:"info"`
	TelegramToken string `env:"TELEGRAM_TOKEN" env-required:"true"`

	Backend     string `env:"BACKEND" env-default:"sqlite"`
	DatabaseURL string `env:"DATABASE_URL" env-default:"task_manager.db"`
	Firebase    FirebaseConfig

	Session SessionConfig

	DigestTime string `env:"DIGEST_TIME" env-default:"09:00"`
	Timezone   string `env:"TZ_NAME" env-default:"UTC"`
}

type FirebaseConfig struct {
	ProjectID       string `env:"FIREBASE_PROJECT_ID"`
	CredentialsFile string `env:"GOOGLE_APPLICATION_CREDENTIALS"`
}

type SessionConfig struct {
	Secret        string        `env:"JWT_SECRET_KEY" env-required:"true"`
	TTL           time.Duration `env:"SESSION_TTL" env-default:"1h"`
	CheckInterval time.Duration `env:"SESSION_CHECK_INTERVAL" env-default:"1m"`
	SignInRate    int           `env:"SIGNIN_RATE" env-default:"5"`
}

// Load reads configuration from the environment, after an optional .env
// file in the working directory.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("read env: %w", err)
	}
	cfg.TelegramToken = strings.TrimSpace(cfg.TelegramToken)
	cfg.Backend = strings.ToLower(strings.TrimSpace(cfg.Backend))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the settings cleanenv cannot express.
func (c Config) Validate() error {
	switch c.Env {
	case EnvLocal, EnvDev, EnvProd:
	default:
		return fmt.Errorf("ENV must be one of local, dev, prod; got %q", c.Env)
	}
	switch c.Backend {
	case BackendSQLite:
	case BackendFirestore:
		if c.Firebase.ProjectID == "" || c.Firebase.CredentialsFile == "" {
			return fmt.Errorf("firestore backend requires FIREBASE_PROJECT_ID and GOOGLE_APPLICATION_CREDENTIALS")
		}
	default:
		return fmt.Errorf("unknown BACKEND %q, expected sqlite or firestore", c.Backend)
	}
	if c.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_TOKEN is required")
	}
	if c.Session.Secret == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	if c.Session.TTL <= 0 || c.Session.CheckInterval <= 0 {
		return fmt.Errorf("SESSION_TTL and SESSION_CHECK_INTERVAL must be positive")
	}
	if c.Session.SignInRate < 0 {
		return fmt.Errorf("SIGNIN_RATE must not be negative")
	}
	if err := validClock(c.DigestTime); err != nil {
		return err
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid TZ_NAME %q: %w", c.Timezone, err)
	}
	return nil
}

// Location returns the zone used for due dates and the digest.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func validClock(s string) error {
	if _, err := time.Parse("15:04", strings.TrimSpace(s)); err != nil {
		return fmt.Errorf("invalid DIGEST_TIME %q, expected HH:MM", s)
	}
	return nil
}
