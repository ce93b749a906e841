package environment_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fawz-io/kcmanage/internal/domain/environment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingsStore_LoadMissingFile(t *testing.T) {
	t.Parallel()

	store := environment.NewSettingsStore(filepath.Join(t.TempDir(), ".env"))

	values, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, values)
}

func TestSettingsStore_SetAndGet(t *testing.T) {
	t.Parallel()

	store := environment.NewSettingsStore(filepath.Join(t.TempDir(), ".env"))

	require.NoError(t, store.Set("KEYCLOAK_DOMAIN", "auth.example.com"))

	value, ok, err := store.Get("KEYCLOAK_DOMAIN")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "auth.example.com", value)
}

func TestSettingsStore_UpsertPreservesOtherKeys(t *testing.T) {
	t.Parallel()

	store := environment.NewSettingsStore(filepath.Join(t.TempDir(), ".env"))

	require.NoError(t, store.Set("KEYCLOAK_DOMAIN", "auth.example.com"))
	require.NoError(t, store.Set("DB_PASSWORD", "s3cret"))
	require.NoError(t, store.Set("KEYCLOAK_DOMAIN", "sso.example.com"))

	values, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "sso.example.com", values["KEYCLOAK_DOMAIN"])
	assert.Equal(t, "s3cret", values["DB_PASSWORD"])
}

func TestSettingsStore_RestrictivePermissions(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), ".env")
	store := environment.NewSettingsStore(path)

	require.NoError(t, store.Set("KEYCLOAK_ADMIN_PASSWORD", "hunter2"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestSettingsStore_ShellStyleLines(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), ".env")
	store := environment.NewSettingsStore(path)

	require.NoError(t, store.Set("KEYCLOAK_PORT", "8443"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "KEYCLOAK_PORT=8443")
}

func TestSettingsStore_HandEditedFileSurvivesUpsert(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("KEYCLOAK_DOMAIN=manual.example.com\n"), 0o600))

	store := environment.NewSettingsStore(path)
	require.NoError(t, store.Set("DB_PASSWORD", "pw"))

	values, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "manual.example.com", values["KEYCLOAK_DOMAIN"])
}

func TestSettingsStore_Remove(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), ".env")
	store := environment.NewSettingsStore(path)

	require.NoError(t, store.Set("KEYCLOAK_DOMAIN", "auth.example.com"))
	require.NoError(t, store.Remove())

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// Removing an already-absent file is not an error.
	require.NoError(t, store.Remove())
}
