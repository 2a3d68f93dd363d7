package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Port:            8099,
		TokenURL:        "https://accounts.example.com/oauth/token",
		ClientID:        "poolstation-setup",
		LoginTimeout:    10,
		BreakerFailures: 5,
		LogLevel:        "info",
		LogFormat:       "text",
	}
}

// TestLoad_FromEnvironmentVariables tests loading configuration from environment variables
func TestLoad_FromEnvironmentVariables(t *testing.T) {
	t.Setenv("POOLSTATION_PORT", "9091")
	t.Setenv("POOLSTATION_DB_PATH", "/tmp/entries.db")
	t.Setenv("POOLSTATION_TOKEN_URL", "https://accounts.example.com/oauth/token")
	t.Setenv("POOLSTATION_CLIENT_ID", "my-client")
	t.Setenv("POOLSTATION_CLIENT_SECRET", "s3cret")
	t.Setenv("POOLSTATION_LOGIN_TIMEOUT", "20")
	t.Setenv("POOLSTATION_BREAKER_FAILURES", "3")
	t.Setenv("POOLSTATION_LOG_LEVEL", "debug")
	t.Setenv("POOLSTATION_LOG_FORMAT", "json")

	cfg, err := LoadWithArgs([]string{})
	require.NoError(t, err)

	assert.Equal(t, 9091, cfg.Port)
	assert.Equal(t, "/tmp/entries.db", cfg.DBPath)
	assert.Equal(t, "https://accounts.example.com/oauth/token", cfg.TokenURL)
	assert.Equal(t, "my-client", cfg.ClientID)
	assert.Equal(t, "s3cret", cfg.ClientSecret)
	assert.Equal(t, 20, cfg.LoginTimeout)
	assert.Equal(t, 3, cfg.BreakerFailures)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
}

// TestLoad_Defaults tests loading configuration with default values
func TestLoad_Defaults(t *testing.T) {
	t.Setenv("HOME", "/home/pool")
	t.Setenv("POOLSTATION_DB_PATH", "")
	require.NoError(t, os.Unsetenv("POOLSTATION_DB_PATH"))
	t.Setenv("POOLSTATION_PORT", "")
	t.Setenv("POOLSTATION_TOKEN_URL", "")
	t.Setenv("POOLSTATION_CLIENT_ID", "")
	t.Setenv("POOLSTATION_LOGIN_TIMEOUT", "")
	t.Setenv("POOLSTATION_LOG_LEVEL", "")
	t.Setenv("POOLSTATION_LOG_FORMAT", "")

	cfg, err := LoadWithArgs([]string{})
	require.NoError(t, err)

	assert.Equal(t, 8099, cfg.Port)
	assert.Equal(t, "/home/pool/.poolstation/entries.db", cfg.DBPath)
	assert.Equal(t, "", cfg.TokenURL)
	assert.Equal(t, "poolstation-setup", cfg.ClientID)
	assert.Equal(t, 10, cfg.LoginTimeout)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
}

// TestLoad_EmptyDBPathFromEnv tests that an explicitly empty DB path selects the memory store
func TestLoad_EmptyDBPathFromEnv(t *testing.T) {
	t.Setenv("POOLSTATION_DB_PATH", "")

	cfg, err := LoadWithArgs([]string{})
	require.NoError(t, err)
	assert.Equal(t, "", cfg.DBPath)
}

// TestLoad_CLIOverridesEnv tests flag precedence over environment variables
func TestLoad_CLIOverridesEnv(t *testing.T) {
	t.Setenv("POOLSTATION_PORT", "9091")
	t.Setenv("POOLSTATION_LOG_LEVEL", "debug")

	cfg, err := LoadWithArgs([]string{"-port", "9200", "-log-level", "warn", "-token-url", "http://localhost:1/token"})
	require.NoError(t, err)

	assert.Equal(t, 9200, cfg.Port)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "http://localhost:1/token", cfg.TokenURL)
}

// TestLoad_InvalidEnvironmentVariables tests handling of invalid environment variables
func TestLoad_InvalidEnvironmentVariables(t *testing.T) {
	t.Setenv("POOLSTATION_PORT", "invalid")
	t.Setenv("POOLSTATION_LOGIN_TIMEOUT", "not-a-number")

	cfg, err := LoadWithArgs([]string{})
	require.NoError(t, err)

	assert.Equal(t, 8099, cfg.Port)
	assert.Equal(t, 10, cfg.LoginTimeout)
}

func TestLoad_UnknownFlag(t *testing.T) {
	_, err := LoadWithArgs([]string{"-no-such-flag"})
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "missing token url", mutate: func(c *Config) { c.TokenURL = "" }, wantErr: "token-url is required"},
		{name: "relative token url", mutate: func(c *Config) { c.TokenURL = "/oauth/token" }, wantErr: "invalid token-url"},
		{name: "ftp token url", mutate: func(c *Config) { c.TokenURL = "ftp://example.com/token" }, wantErr: "invalid token-url"},
		{name: "empty client id", mutate: func(c *Config) { c.ClientID = "" }, wantErr: "client-id"},
		{name: "port too low", mutate: func(c *Config) { c.Port = 0 }, wantErr: "invalid port"},
		{name: "port too high", mutate: func(c *Config) { c.Port = 70000 }, wantErr: "invalid port"},
		{name: "zero login timeout", mutate: func(c *Config) { c.LoginTimeout = 0 }, wantErr: "invalid login-timeout"},
		{name: "zero breaker failures", mutate: func(c *Config) { c.BreakerFailures = 0 }, wantErr: "invalid breaker-failures"},
		{name: "bad log level", mutate: func(c *Config) { c.LogLevel = "trace" }, wantErr: "invalid log-level"},
		{name: "bad log format", mutate: func(c *Config) { c.LogFormat = "xml" }, wantErr: "invalid log-format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

// TestString_HidesSecret tests that the client secret is not printed
func TestString_HidesSecret(t *testing.T) {
	cfg := validConfig()
	cfg.ClientSecret = "super-secret"

	s := cfg.String()
	assert.NotContains(t, s, "super-secret")
	assert.Contains(t, s, "Port: 8099")
}
