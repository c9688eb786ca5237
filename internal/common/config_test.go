package common

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "")
	t.Setenv("DB_DRIVER", "")
	t.Setenv("INBOX_DIRS", "")

	cfg := LoadConfig()
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Equal(t, 90*time.Second, cfg.LLM.Timeout)
	assert.Empty(t, cfg.Ingest.InboxDirs)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_FromEnv(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "OpenAI")
	t.Setenv("LLM_TIMEOUT", "15s")
	t.Setenv("INBOX_DIRS", " /srv/inbox , ,/srv/quotes")
	t.Setenv("MINIO_USE_SSL", "true")
	t.Setenv("INBOX_TENANT", "acme")

	cfg := LoadConfig()
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, 15*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, []string{"/srv/inbox", "/srv/quotes"}, cfg.Ingest.InboxDirs)
	assert.True(t, cfg.Storage.UseSSL)
	assert.Equal(t, "acme", cfg.Ingest.Tenant)
}

func TestConfig_Validate(t *testing.T) {
	cfg := LoadConfig()
	cfg.Database.Driver = "mysql"
	cfg.LLM.Provider = "ollama"
	cfg.Server.HTTPAddr = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidInput))

	var appErr *AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "CONFIG_ERROR", appErr.Code)
	assert.Contains(t, appErr.Message, "DB_DRIVER")
	assert.Contains(t, appErr.Message, "LLM_PROVIDER")
	assert.Contains(t, appErr.Message, "HTTP_ADDR")
}

func TestConfig_LoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rfq.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
brand:
  company_name: Nordic Pumps GmbH
  footer: Registered in Hamburg
tenants:
  acme:
    defaults:
      currency: USD
      origin: ""
`), 0o644))

	cfg := LoadConfig()
	require.NoError(t, cfg.LoadFile(path))
	assert.Equal(t, "Nordic Pumps GmbH", cfg.Brand.CompanyName)
	assert.Equal(t, map[string]string{"currency": "USD", "origin": ""}, cfg.TenantDefaults("acme"))
	assert.Nil(t, cfg.TenantDefaults("other"))

	assert.NoError(t, cfg.LoadFile(""))
	assert.Error(t, cfg.LoadFile(filepath.Join(t.TempDir(), "missing.yaml")))
}
