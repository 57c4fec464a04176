package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CONFIG_FILE", "PORT", "MAX_CONCURRENT_SOLVERS", "CAPTCHA_MAX_POLLS",
		"CAPTCHA_POLL_INTERVAL", "DOWNLOAD_TIMEOUT", "DOWNLOAD_POLL_INTERVAL",
		"EXTRACTOR_BACKEND", "CAPTCHA_API_KEY", "CORS_ALLOWED_ORIGINS", "CND_CACHE_TTL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "CNDT Solver API", cfg.Server.AppName)
	assert.Equal(t, 3, cfg.CNDT.MaxConcurrent)
	assert.Equal(t, 10, cfg.Captcha.MaxPolls)
	assert.Equal(t, 15*time.Second, cfg.Captcha.InitialDelay)
	assert.Equal(t, 5*time.Second, cfg.Captcha.PollInterval)
	assert.Equal(t, time.Second, cfg.Download.Interval)
	assert.Equal(t, 60*time.Second, cfg.Download.Timeout)
	assert.Equal(t, ".pdf", cfg.Download.Suffix)
	assert.Equal(t, "https://cndt-certidao.tst.jus.br/gerarCertidao.faces", cfg.CNDT.PortalURL)
	assert.Equal(t, "pdf", cfg.Extractor.Backend)
	assert.False(t, cfg.CNPJ.StrictValidation)
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("MAX_CONCURRENT_SOLVERS", "1")
	t.Setenv("CAPTCHA_POLL_INTERVAL", "2")
	t.Setenv("DOWNLOAD_TIMEOUT", "90s")
	t.Setenv("CAPTCHA_API_KEY", "secret")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 1, cfg.CNDT.MaxConcurrent)
	assert.Equal(t, 2*time.Second, cfg.Captcha.PollInterval)
	assert.Equal(t, 90*time.Second, cfg.Download.Timeout)
	assert.Equal(t, "secret", cfg.Captcha.APIKey)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Security.CORS.AllowedOrigins)
}

func TestLoadYAMLOverlayThenEnv(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 9090
cndt:
  max_concurrent: 5
cnd:
  cache_ttl: 10m
extractor:
  backend: fitz
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "7070")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port, "env wins over file")
	assert.Equal(t, 5, cfg.CNDT.MaxConcurrent)
	assert.Equal(t, 10*time.Minute, cfg.CND.CacheTTL)
	assert.Equal(t, "fitz", cfg.Extractor.Backend)
	assert.Equal(t, 10, cfg.Captcha.MaxPolls, "untouched defaults survive the overlay")
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"zero gate capacity", "MAX_CONCURRENT_SOLVERS", "0"},
		{"zero polls", "CAPTCHA_MAX_POLLS", "0"},
		{"unknown backend", "EXTRACTOR_BACKEND", "ocr"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingConfigFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := Load()
	assert.Error(t, err)
}
