package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "leadsignal.db", cfg.Store.DatabaseURL)
	assert.Equal(t, int32(10), cfg.Store.MaxConns)
	assert.InDelta(t, 30.0, cfg.Pipeline.MinLeadScore, 0.001)
	assert.InDelta(t, 85.0, cfg.Pipeline.FuzzyThreshold, 0.001)
	assert.Equal(t, "any_active", cfg.Pipeline.FallbackPolicy)
	assert.Equal(t, "medium", cfg.Pipeline.DefaultCompanySize)
	assert.Empty(t, cfg.Classify.TaxonomyPath)
	assert.Equal(t, "log", cfg.Notify.Driver)
	assert.Equal(t, 3, cfg.Notify.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.Notify.RetryBackoff)
	assert.Equal(t, 587, cfg.Notify.Email.Port)
	assert.Equal(t, 10*time.Second, cfg.Notify.Webhook.Timeout)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)

	assert.NoError(t, cfg.Validate("process"))
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/leads
pipeline:
  min_lead_score: 40
  fallback_policy: none
notify:
  driver: webhook
  dossier_base_url: https://crm.example.com
  webhook:
    url: https://hooks.example.com/leads
    timeout: 3s
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/leads", cfg.Store.DatabaseURL)
	assert.InDelta(t, 40.0, cfg.Pipeline.MinLeadScore, 0.001)
	assert.Equal(t, "none", cfg.Pipeline.FallbackPolicy)
	assert.Equal(t, "webhook", cfg.Notify.Driver)
	assert.Equal(t, "https://hooks.example.com/leads", cfg.Notify.Webhook.URL)
	assert.Equal(t, 3*time.Second, cfg.Notify.Webhook.Timeout)
	assert.Equal(t, "https://crm.example.com", cfg.Notify.DossierBaseURL)
	assert.Equal(t, "console", cfg.Log.Format)
	// Defaults still apply for unset values
	assert.InDelta(t, 85.0, cfg.Pipeline.FuzzyThreshold, 0.001)

	assert.NoError(t, cfg.Validate("serve"))
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("LEADSIGNAL_STORE_DRIVER", "postgres")
	t.Setenv("LEADSIGNAL_LOG_LEVEL", "warn")
	t.Setenv("LEADSIGNAL_PIPELINE_MIN_LEAD_SCORE", "45")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.InDelta(t, 45.0, cfg.Pipeline.MinLeadScore, 0.001)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [unterminated"), 0644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.NotNil(t, zap.L())
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
	assert.Error(t, InitLogger(LogConfig{Level: "invalid", Format: "json"}))
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = "leadsignal.db"
	cfg.Pipeline.MinLeadScore = 30
	cfg.Pipeline.FuzzyThreshold = 85
	cfg.Pipeline.FallbackPolicy = "any_active"
	cfg.Pipeline.DefaultCompanySize = "medium"
	cfg.Notify.Driver = "log"
	cfg.Server.Port = 8080
	return cfg
}

func TestValidate_UnknownMode(t *testing.T) {
	err := validDefaults().Validate("unknown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidate_Store(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "mysql"
	cfg.Store.DatabaseURL = ""

	err := cfg.Validate("process")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver must be one of sqlite, postgres")
	assert.Contains(t, err.Error(), "store.database_url is required")

	// analyze never opens the store.
	cfg.Store.Driver = "sqlite"
	assert.NoError(t, cfg.Validate("analyze"))
}

func TestValidate_Pipeline(t *testing.T) {
	cfg := validDefaults()
	cfg.Pipeline.MinLeadScore = 101
	cfg.Pipeline.FuzzyThreshold = 0
	cfg.Pipeline.FallbackPolicy = "round_robin"
	cfg.Pipeline.DefaultCompanySize = "huge"

	err := cfg.Validate("process")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "min_lead_score")
	assert.Contains(t, err.Error(), "fuzzy_threshold")
	assert.Contains(t, err.Error(), "fallback_policy")
	assert.Contains(t, err.Error(), "default_company_size")
}

func TestValidate_Notify(t *testing.T) {
	cfg := validDefaults()
	cfg.Notify.Driver = "email"
	err := cfg.Validate("process")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notify.email.host is required")
	assert.Contains(t, err.Error(), "notify.email.from is required")

	cfg.Notify.Email.Host = "smtp.example.com"
	cfg.Notify.Email.From = "leads@example.com"
	assert.NoError(t, cfg.Validate("process"))

	cfg.Notify.Driver = "webhook"
	err = cfg.Validate("process")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notify.webhook.url is required")

	cfg.Notify.Driver = "carrier-pigeon"
	err = cfg.Validate("process")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notify.driver must be one of")

	cfg.Notify.Driver = "none"
	cfg.Notify.RatePerMinute = -1
	err = cfg.Validate("process")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate_per_minute")
}

func TestValidate_ServePort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	assert.NoError(t, cfg.Validate("process"))
	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}
