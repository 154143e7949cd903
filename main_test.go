package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// unsetEnv clears keys for the duration of the test.
func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k) //nolint:errcheck // restored by t.Setenv
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	unsetEnv(t, "STORAGE_BUCKET", "VALKEY_ADDR", "LOCAL_STORAGE", "DB_DSN", "BASE_URL", "MEDIA_BASE_URL",
		"PORT", "DB_DRIVER", "EMAIL_PROVIDER", "SCHEDULER_TIMEZONE", "POST_FAILURE_POLICY", "OPENAI_MODEL")

	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.LocalStorage != "./data" {
		t.Errorf("LocalStorage = %q, want ./data", cfg.LocalStorage)
	}
	if cfg.DBDSN != filepath.Join("./data", "queue.db") {
		t.Errorf("DBDSN = %q", cfg.DBDSN)
	}
	if cfg.BaseURL != "http://localhost:8080" || cfg.MediaBaseURL != cfg.BaseURL {
		t.Errorf("BaseURL = %q MediaBaseURL = %q", cfg.BaseURL, cfg.MediaBaseURL)
	}
	if cfg.SchedulerTimezone != "UTC" || cfg.PostFailurePolicy != "fail" {
		t.Errorf("SchedulerTimezone = %q PostFailurePolicy = %q", cfg.SchedulerTimezone, cfg.PostFailurePolicy)
	}
	if cfg.OpenAIModel != "gpt-4o-mini" {
		t.Errorf("OpenAIModel = %q", cfg.OpenAIModel)
	}
}

func TestLoadConfigEnvFile(t *testing.T) {
	unsetEnv(t, "PORT", "SCHEDULER_TIMEZONE", "STORAGE_BUCKET", "VALKEY_ADDR", "DB_DRIVER", "DB_DSN", "EMAIL_PROVIDER")
	t.Setenv("BASE_URL", "https://poster.example/")
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("SCHEDULER_TIMEZONE=America/Edmonton\nBASE_URL=https://ignored.example\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.SchedulerTimezone != "America/Edmonton" {
		t.Errorf("SchedulerTimezone = %q", cfg.SchedulerTimezone)
	}
	if cfg.BaseURL != "https://poster.example" {
		t.Errorf("BaseURL = %q, environment should win and lose its trailing slash", cfg.BaseURL)
	}
}

func TestConfigResolve(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
		check   func(t *testing.T, c *Config)
	}{
		{
			name: "bucket skips local storage",
			cfg:  Config{Port: "9000", StorageBucket: "b", DBDriver: "sqlite"},
			check: func(t *testing.T, c *Config) {
				if c.LocalStorage != "" {
					t.Errorf("LocalStorage = %q", c.LocalStorage)
				}
				if c.BaseURL != "http://localhost:9000" {
					t.Errorf("BaseURL = %q", c.BaseURL)
				}
			},
		},
		{
			name:    "postgres needs dsn",
			cfg:     Config{DBDriver: "postgres"},
			wantErr: "DB_DSN",
		},
		{
			name:    "unknown driver",
			cfg:     Config{DBDriver: "mysql"},
			wantErr: "DB_DRIVER",
		},
		{
			name:    "brevo needs key",
			cfg:     Config{DBDriver: "sqlite", EmailProvider: "brevo"},
			wantErr: "BREVO_API_KEY",
		},
		{
			name:    "unknown email provider",
			cfg:     Config{DBDriver: "sqlite", EmailProvider: "smtp"},
			wantErr: "EMAIL_PROVIDER",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.resolve()
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("resolve() error = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("resolve() error = %v", err)
			}
			tt.check(t, &tt.cfg)
		})
	}
}

func TestTickCommandRunsAgainstLocalStorage(t *testing.T) {
	dir := t.TempDir()
	unsetEnv(t, "STORAGE_BUCKET", "VALKEY_ADDR", "ALERT_EMAIL", "SCHEDULER_TIMEZONE", "POST_FAILURE_POLICY", "EMAIL_PROVIDER")
	t.Setenv("LOCAL_STORAGE", dir)
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_DSN", filepath.Join(dir, "queue.db"))
	t.Setenv("TEXTGEN_PROVIDER", "mock")

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cmd := newRootCmd(logger)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"tick", "--env-file", ""})
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("tick error = %v", err)
	}
	if !strings.Contains(out.String(), `"postsPosted": 0`) {
		t.Errorf("output = %s", out.String())
	}
}

func TestUnknownTimezoneFails(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{LocalStorage: dir, DBDriver: "sqlite", DBDSN: filepath.Join(dir, "q.db"), SchedulerTimezone: "Mars/Olympus", PostFailurePolicy: "fail"}
	if _, err := newApp(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil))); err == nil {
		t.Error("newApp() should reject an unknown time zone")
	}
}
