package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the process configuration, read from the environment.
type Config struct {
	Port    string `env:"PORT" envDefault:"8080"`
	BaseURL string `env:"BASE_URL"`

	StorageBucket  string `env:"STORAGE_BUCKET"`
	LocalStorage   string `env:"LOCAL_STORAGE"`
	ValkeyAddr     string `env:"VALKEY_ADDR"`
	ValkeyPassword string `env:"VALKEY_PASSWORD"`
	ValkeyDB       int    `env:"VALKEY_DB" envDefault:"0"`
	ValkeyPrefix   string `env:"VALKEY_PREFIX" envDefault:"gbp-autoposter"`

	DBDriver string `env:"DB_DRIVER" envDefault:"sqlite"`
	DBDSN    string `env:"DB_DSN"`

	MediaBaseURL string `env:"MEDIA_BASE_URL"`

	GoogleClientID        string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret    string `env:"GOOGLE_CLIENT_SECRET"`
	GoogleCredentialsJSON string `env:"GOOGLE_CREDENTIALS_JSON"`

	TextgenProvider string `env:"TEXTGEN_PROVIDER" envDefault:"openai"`
	OpenAIKey       string `env:"OPENAI_API_KEY"`
	OpenAIModel     string `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	OpenAIBaseURL   string `env:"OPENAI_BASE_URL"`
	GeminiKey       string `env:"GEMINI_API_KEY"`
	GeminiModel     string `env:"GEMINI_MODEL" envDefault:"gemini-2.0-flash"`

	SchedulerTimezone string `env:"SCHEDULER_TIMEZONE" envDefault:"UTC"`
	PostFailurePolicy string `env:"POST_FAILURE_POLICY" envDefault:"fail"`

	AlertEmail    string `env:"ALERT_EMAIL"`
	EmailProvider string `env:"EMAIL_PROVIDER"` // gmail, brevo or mock; empty picks one from credentials
	BrevoAPIKey   string `env:"BREVO_API_KEY"`
	MailFrom      string `env:"MAIL_FROM"`
	MailFromName  string `env:"MAIL_FROM_NAME" envDefault:"GBP Autoposter"`
}

// loadConfig reads envFile when it exists, then parses the environment.
// Variables already set in the environment win over the file.
func loadConfig(envFile string) (*Config, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return nil, fmt.Errorf("load %s: %w", envFile, err)
			}
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.resolve(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// resolve fills derived defaults and rejects contradictory settings.
func (c *Config) resolve() error {
	if c.StorageBucket == "" && c.ValkeyAddr == "" && c.LocalStorage == "" {
		c.LocalStorage = "./data"
	}
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:" + c.Port
	}
	c.BaseURL = strings.TrimSuffix(c.BaseURL, "/")
	if c.MediaBaseURL == "" {
		c.MediaBaseURL = c.BaseURL
	}

	switch c.DBDriver {
	case "sqlite":
		if c.DBDSN == "" {
			dir := c.LocalStorage
			if dir == "" {
				dir = "./data"
			}
			c.DBDSN = filepath.Join(dir, "queue.db")
		}
	case "postgres":
		if c.DBDSN == "" {
			return errors.New("DB_DSN is required when DB_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}

	switch c.EmailProvider {
	case "", "gmail", "mock":
	case "brevo":
		if c.BrevoAPIKey == "" || c.MailFrom == "" {
			return errors.New("EMAIL_PROVIDER=brevo requires BREVO_API_KEY and MAIL_FROM")
		}
	default:
		return fmt.Errorf("unsupported EMAIL_PROVIDER %q", c.EmailProvider)
	}
	return nil
}
