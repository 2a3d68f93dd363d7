// Package config handles application configuration.
//
// It provides:
//   - Flag parsing with CLI arguments
//   - Environment variable support (with CLI override)
//   - Configuration validation
//   - Precedence: CLI flags > environment variables > defaults
//
// Supported environment variables:
//   - POOLSTATION_PORT: HTTP server port
//   - POOLSTATION_DB_PATH: SQLite file holding config entries (empty keeps entries in memory)
//   - POOLSTATION_TOKEN_URL: Account service token endpoint
//   - POOLSTATION_CLIENT_ID: OAuth2 client ID sent with the login request
//   - POOLSTATION_CLIENT_SECRET: OAuth2 client secret (optional)
//   - POOLSTATION_LOGIN_TIMEOUT: Timeout for a single login attempt (seconds)
//   - POOLSTATION_BREAKER_FAILURES: Consecutive connectivity failures before logins are short-circuited
//   - POOLSTATION_LOG_LEVEL: Logging level (debug, info, warn, error)
//   - POOLSTATION_LOG_FORMAT: Log output format (text, json)
package config

import (
	"flag"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
)

// Config holds the application configuration
type Config struct {
	// Server configuration
	Port int

	// Entry storage
	DBPath string

	// Account service
	TokenURL     string
	ClientID     string
	ClientSecret string
	LoginTimeout int

	// Circuit breaker
	BreakerFailures int

	// Logging
	LogLevel  string
	LogFormat string
}

// Load parses environment variables and command-line flags and returns a Config
func Load() (*Config, error) {
	return LoadWithArgs(os.Args[1:])
}

// LoadWithArgs loads configuration with explicit arguments (useful for testing)
func LoadWithArgs(args []string) (*Config, error) {
	cfg := &Config{}

	homeDir := os.Getenv("HOME")
	if homeDir == "" {
		homeDir = "/root"
	}
	defaultDBPath := filepath.Join(homeDir, ".poolstation", "entries.db")
	if v, ok := os.LookupEnv("POOLSTATION_DB_PATH"); ok {
		defaultDBPath = v
	}

	fs := flag.NewFlagSet("poolstation-setup", flag.ContinueOnError)

	fs.IntVar(&cfg.Port, "port", parseEnvInt(os.Getenv("POOLSTATION_PORT"), 8099), "HTTP server listen port (env: POOLSTATION_PORT)")
	fs.StringVar(&cfg.DBPath, "db-path", defaultDBPath, "SQLite file for config entries, empty for in-memory (env: POOLSTATION_DB_PATH)")
	fs.StringVar(&cfg.TokenURL, "token-url", os.Getenv("POOLSTATION_TOKEN_URL"), "Account service token endpoint (env: POOLSTATION_TOKEN_URL, required)")
	fs.StringVar(&cfg.ClientID, "client-id", envOrDefault("POOLSTATION_CLIENT_ID", "poolstation-setup"), "OAuth2 client ID (env: POOLSTATION_CLIENT_ID)")
	fs.StringVar(&cfg.ClientSecret, "client-secret", os.Getenv("POOLSTATION_CLIENT_SECRET"), "OAuth2 client secret (env: POOLSTATION_CLIENT_SECRET)")
	fs.IntVar(&cfg.LoginTimeout, "login-timeout", parseEnvInt(os.Getenv("POOLSTATION_LOGIN_TIMEOUT"), 10), "Seconds to wait for a login response (env: POOLSTATION_LOGIN_TIMEOUT)")
	fs.IntVar(&cfg.BreakerFailures, "breaker-failures", parseEnvInt(os.Getenv("POOLSTATION_BREAKER_FAILURES"), 5), "Consecutive connectivity failures before short-circuiting logins (env: POOLSTATION_BREAKER_FAILURES)")
	fs.StringVar(&cfg.LogLevel, "log-level", envOrDefault("POOLSTATION_LOG_LEVEL", "info"), "Logging verbosity: debug, info, warn, error (env: POOLSTATION_LOG_LEVEL)")
	fs.StringVar(&cfg.LogFormat, "log-format", envOrDefault("POOLSTATION_LOG_FORMAT", "text"), "Log format: text, json (env: POOLSTATION_LOG_FORMAT)")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("failed to parse flags: %w", err)
	}

	return cfg, nil
}

func envOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

// parseEnvInt parses an environment variable as an integer, returning default if invalid
func parseEnvInt(envValue string, defaultValue int) int {
	if envValue == "" {
		return defaultValue
	}
	var result int
	if _, err := fmt.Sscanf(envValue, "%d", &result); err != nil {
		return defaultValue
	}
	return result
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.TokenURL == "" {
		return fmt.Errorf("token-url is required (use -token-url flag or POOLSTATION_TOKEN_URL env var)")
	}
	u, err := url.Parse(c.TokenURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid token-url: %q (must be an absolute http or https URL)", c.TokenURL)
	}

	if c.ClientID == "" {
		return fmt.Errorf("client-id must not be empty")
	}

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d (must be between 1 and 65535)", c.Port)
	}

	if c.LoginTimeout < 1 {
		return fmt.Errorf("invalid login-timeout: %d (must be at least 1 second)", c.LoginTimeout)
	}

	if c.BreakerFailures < 1 {
		return fmt.Errorf("invalid breaker-failures: %d (must be at least 1)", c.BreakerFailures)
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log-level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("invalid log-format: %s (must be one of: text, json)", c.LogFormat)
	}

	return nil
}

// String returns a string representation of the config (without sensitive data)
func (c *Config) String() string {
	return fmt.Sprintf("Config{Port: %d, DBPath: %q, TokenURL: %s, ClientID: %s, LoginTimeout: %ds, BreakerFailures: %d, LogLevel: %s}",
		c.Port, c.DBPath, c.TokenURL, c.ClientID, c.LoginTimeout, c.BreakerFailures, c.LogLevel)
}
