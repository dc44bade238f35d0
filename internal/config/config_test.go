package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonesrussell/linkbio/internal/config"
	"github.com/jonesrussell/linkbio/internal/domain"
	infraconfig "github.com/jonesrussell/linkbio/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
service:
  port: 9000
profile:
  name: Jane
  links:
    - id: github
      title: GitHub
      url: https://github.com/jane
remote:
  url: https://abc.supabase.co
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "absent.env"))

	cfg, err := config.Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Service.Port)
	assert.Equal(t, "rest", cfg.Remote.Driver)
	assert.Equal(t, config.StorageMemory, cfg.Storage.Backend)
	assert.Equal(t, 30*time.Minute, cfg.Storage.SessionTTL)
	assert.Equal(t, 1000, cfg.Collector.BufferSize)
	assert.Equal(t, 30, cfg.Dashboard.DefaultDays)
	assert.Equal(t, "Local", cfg.Dashboard.Timezone)
	assert.Equal(t, "info", cfg.Logging.Level)
	require.Len(t, cfg.Profile.Links, 1)
	assert.Equal(t, "github", cfg.Profile.Links[0].ID)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "absent.env"))
	t.Setenv("SUPABASE_URL", "https://env.supabase.co")
	t.Setenv("SUPABASE_ANON_KEY", "env-key")
	t.Setenv("STORAGE_BACKEND", "redis")

	cfg, err := config.Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "https://env.supabase.co", cfg.Remote.URL)
	assert.Equal(t, "env-key", cfg.Remote.AnonKey)
	assert.Equal(t, config.StorageRedis, cfg.Storage.Backend)
}

func validLinkPage() *config.Config {
	return &config.Config{
		Service: config.ServiceConfig{Port: 8080},
		Storage: config.StorageConfig{Backend: config.StorageMemory},
		Logging: infraconfig.LoggingConfig{Level: "info"},
		Profile: domain.Profile{Links: []domain.Link{
			{ID: "github", URL: "https://github.com/jane"},
		}},
	}
}

func TestValidateLinkPage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr bool
	}{
		{"valid", func(*config.Config) {}, false},
		{"missing remote is fine", func(c *config.Config) { c.Remote = config.RemoteConfig{} }, false},
		{"bad backend", func(c *config.Config) { c.Storage.Backend = "sqlite" }, true},
		{"no links", func(c *config.Config) { c.Profile.Links = nil }, true},
		{"duplicate link", func(c *config.Config) {
			c.Profile.Links = append(c.Profile.Links, c.Profile.Links[0])
		}, true},
		{"relative link url", func(c *config.Config) { c.Profile.Links[0].URL = "/about" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validLinkPage()
			tt.mutate(cfg)

			err := cfg.ValidateLinkPage()
			if tt.wantErr {
				var vErr *infraconfig.ValidationError
				require.ErrorAs(t, err, &vErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestValidateCollector_ReportsAllMissing(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		Collector: config.CollectorConfig{Port: 8094},
		Logging:   infraconfig.LoggingConfig{Level: "info"},
	}

	err := cfg.ValidateCollector()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "remote.anon_key")
	assert.Contains(t, err.Error(), "dashboard.jwt_secret")
}

func TestValidateCollector_Timezone(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		Collector: config.CollectorConfig{Port: 8094},
		Logging:   infraconfig.LoggingConfig{Level: "info"},
		Remote:    config.RemoteConfig{AnonKey: "anon"},
		Dashboard: config.DashboardConfig{
			AllowedEmail: "owner@example.com",
			Password:     "pw",
			JWTSecret:    "secret",
			Timezone:     "UTC",
		},
	}
	require.NoError(t, cfg.ValidateCollector())

	cfg.Dashboard.Timezone = "Mars/Olympus_Mons"
	err := cfg.ValidateCollector()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dashboard.timezone")
}
