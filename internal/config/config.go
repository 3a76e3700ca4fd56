// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	FrontendURL string
	SessionDir  string
	Claude      ClaudeConfig
	Audit       AuditConfig
}

// ClaudeConfig controls how agent turns are run.
type ClaudeConfig struct {
	Bin          string
	Model        string
	SystemPrompt string
	WorkDir      string
	AllowedTools []string
}

// AuditConfig controls wire traffic recording.
type AuditConfig struct {
	Enabled   bool
	DBPath    string
	QueueSize int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	queueSize := getEnvInt("AUDIT_QUEUE_SIZE", 1024)
	if queueSize <= 0 {
		queueSize = 1024
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", ""),
		SessionDir:  getEnv("SESSION_DIR", "./data/sessions"),
		Claude: ClaudeConfig{
			Bin:          getEnv("CLAUDE_BIN", "claude"),
			Model:        getEnv("CLAUDE_MODEL", ""),
			SystemPrompt: getEnv("CLAUDE_SYSTEM_PROMPT", ""),
			WorkDir:      getEnv("CLAUDE_WORKDIR", ""),
			AllowedTools: getEnvList("CLAUDE_ALLOWED_TOOLS"),
		},
		Audit: AuditConfig{
			Enabled:   getEnvBool("AUDIT_ENABLED", false),
			DBPath:    getEnv("AUDIT_DB_PATH", "./data/audit.db"),
			QueueSize: queueSize,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.SessionDir == "" {
		return fmt.Errorf("SESSION_DIR cannot be empty")
	}
	if c.Claude.Bin == "" {
		return fmt.Errorf("CLAUDE_BIN cannot be empty")
	}
	if c.Audit.Enabled && c.Audit.DBPath == "" {
		return fmt.Errorf("AUDIT_DB_PATH cannot be empty when auditing is enabled")
	}
	if c.Audit.QueueSize <= 0 {
		return fmt.Errorf("AUDIT_QUEUE_SIZE must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	if env := os.Getenv("APP_ENV"); env != "" {
		return env == "development"
	}
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvList(key string) []string {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
