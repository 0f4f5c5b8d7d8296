package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noFile(t *testing.T) string {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())
	return ""
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(noFile(t), nil)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8000/api", cfg.API.BaseURL)
	assert.Equal(t, "Token", cfg.API.AuthScheme)
	assert.Equal(t, StoreFile, cfg.Store.Kind)
	assert.NotEmpty(t, cfg.Store.Dir)
	assert.Equal(t, "warn", cfg.Logging.Level)

	sc := cfg.Session()
	assert.NoError(t, sc.Validate())
}

func TestLoadEnvOverrides(t *testing.T) {
	file := noFile(t)
	t.Setenv("FINANCECTL_API_BASE_URL", "https://finance.example.com/api")
	t.Setenv("FINANCECTL_STORE_KIND", "redis")
	t.Setenv("FINANCECTL_API_TIMEOUT", "3s")

	cfg, err := Load(file, nil)
	require.NoError(t, err)

	assert.Equal(t, "https://finance.example.com/api", cfg.API.BaseURL)
	assert.Equal(t, StoreRedis, cfg.Store.Kind)
	assert.Equal(t, 3*time.Second, cfg.API.Timeout)
}

func TestLoadFileThenBinderWins(t *testing.T) {
	noFile(t)
	path := filepath.Join(t.TempDir(), "financectl.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
api:
  base_url: https://file.example.com/api
store:
  namespace: work
logging:
  level: debug
`), 0o600))

	cfg, err := Load(path, func(v *viper.Viper) error {
		v.Set("store.namespace", "flag")
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, "https://file.example.com/api", cfg.API.BaseURL)
	assert.Equal(t, "flag", cfg.Store.Namespace)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "flag", cfg.Session().Storage.Namespace)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "unknown store", env: map[string]string{"FINANCECTL_STORE_KIND": "s3"}},
		{name: "unknown level", env: map[string]string{"FINANCECTL_LOGGING_LEVEL": "loud"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			file := noFile(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(file, nil)
			assert.Error(t, err)
		})
	}
}
