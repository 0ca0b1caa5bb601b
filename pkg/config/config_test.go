package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreDriverPostgres, cfg.Store.Driver)
	assert.Equal(t, "http://localhost:8108", cfg.Typesense.URL)
	assert.Equal(t, "xyz", cfg.Typesense.APIKey)
	assert.Equal(t, time.Hour, cfg.Catalog.DiagnosisCacheTTL)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoad_TypesenseConfig(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("TYPESENSE_URL", "http://test-typesense:8108")
	t.Setenv("TYPESENSE_API_KEY", "test-key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://test-typesense:8108", cfg.Typesense.URL)
	assert.Equal(t, "test-key", cfg.Typesense.APIKey)
}

func TestLoad_DotEnvDoesNotOverrideEnvironment(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("STORE_DRIVER=memory\nSERVER_PORT=9090\n"), 0o600))
	t.Setenv("ENV_FILE", envFile)
	t.Setenv("SERVER_PORT", "7070")
	t.Cleanup(func() { os.Unsetenv("STORE_DRIVER") })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreDriverMemory, cfg.Store.Driver)
	assert.Equal(t, 7070, cfg.Server.Port)
}

func TestLoad_RejectsUnknownDriver(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("STORE_DRIVER", "sqlite")

	_, err := Load()

	assert.ErrorContains(t, err, "unsupported STORE_DRIVER")
}

func TestLoad_ProductionRequiresSecret(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()

	assert.ErrorContains(t, err, "JWT_SECRET")
}

func TestLoadPermissionOverrides(t *testing.T) {
	t.Run("empty path", func(t *testing.T) {
		overrides, err := LoadPermissionOverrides("")

		require.NoError(t, err)
		assert.Empty(t, overrides)
	})

	t.Run("yaml file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "perms.yaml")
		content := "gql_query_medical_items_perms: [\"900001\"]\n" +
			"gql_query_medical_items_full_perms: [\"900002\"]\n" +
			"gql_mutation_medical_services_delete_perms: []\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

		overrides, err := LoadPermissionOverrides(path)

		require.NoError(t, err)
		assert.Equal(t, []string{"900001"}, overrides["query_items"])
		assert.Equal(t, []string{"900002"}, overrides["query_items_full"])
		assert.Empty(t, overrides["delete_service"])
		assert.Contains(t, overrides, "delete_service")
		assert.NotContains(t, overrides, "create_item")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadPermissionOverrides(filepath.Join(t.TempDir(), "nope.yaml"))

		assert.Error(t, err)
	})
}

func TestLoad_AllowedOrigins(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("ALLOWED_ORIGINS", "https://imis.example.org, ,https://admin.example.org")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"https://imis.example.org", "https://admin.example.org"}, cfg.Server.AllowedOrigins)
}
