package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("SUPABASE_URL", "https://example.supabase.co")
	t.Setenv("SUPABASE_SERVICE_KEY", "service-key")
	t.Setenv("SUPABASE_JWT_SECRET", "jwt-secret")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, time.Hour, cfg.Bills.ReminderInterval)
	assert.Equal(t, "https://example.supabase.co", cfg.Supabase.URL)
}

func TestLoad_FileWithEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `
server:
  addr: ":9090"
  rate_limit_rps: 5
supabase:
  url: https://file.supabase.co
  service_key: file-key
  jwt_secret: file-secret
bills:
  reminder_interval: 30m
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
	t.Setenv("SUPABASE_URL", "https://env.supabase.co")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 5, cfg.Server.RateLimitRPS)
	assert.Equal(t, 30*time.Minute, cfg.Bills.ReminderInterval)
	// Environment wins over the file.
	assert.Equal(t, "https://env.supabase.co", cfg.Supabase.URL)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"missing url", func(c *Config) { c.Supabase.URL = "" }, "supabase url"},
		{"missing service key", func(c *Config) { c.Supabase.ServiceKey = "" }, "service key"},
		{"missing jwt secret", func(c *Config) { c.Supabase.JWTSecret = "" }, "jwt secret"},
		{"zero reminder interval", func(c *Config) { c.Bills.ReminderInterval = 0 }, "reminder interval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Supabase.URL = "https://x.supabase.co"
			cfg.Supabase.ServiceKey = "k"
			cfg.Supabase.JWTSecret = "s"
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
