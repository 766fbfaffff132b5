package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveDBPathPrecedence(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	t.Setenv(dbPathEnvVar, "")
	assert.Equal(t, defaultDBPath, resolveDBPath(""))

	t.Setenv(dbPathEnvVar, "/srv/mandi/env.db")
	assert.Equal(t, "/srv/mandi/env.db", resolveDBPath("  "))
	assert.Equal(t, "/srv/mandi/arg.db", resolveDBPath("/srv/mandi/arg.db"))

	t.Setenv(dbPathEnvVar, "~/mandi.db")
	assert.Equal(t, filepath.Join(home, "mandi.db"), resolveDBPath(""))
}

func TestResolveLogLevel(t *testing.T) {
	t.Setenv(logLevelEnvVar, "")
	assert.Equal(t, defaultLogLevel, resolveLogLevel(""))

	t.Setenv(logLevelEnvVar, "info")
	assert.Equal(t, "info", resolveLogLevel(""))
	assert.Equal(t, "debug", resolveLogLevel(" debug "))
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, loadEnvFile(filepath.Join(dir, "missing.env")))

	t.Setenv(dbPathEnvVar, "")
	require.NoError(t, os.Unsetenv(dbPathEnvVar))
	t.Setenv(logLevelEnvVar, "error")

	envPath := filepath.Join(dir, ".env")
	content := dbPathEnvVar + "=/data/from-env-file.db\n" + logLevelEnvVar + "=debug\n"
	require.NoError(t, os.WriteFile(envPath, []byte(content), 0o600))

	require.NoError(t, loadEnvFile(envPath))
	assert.Equal(t, "/data/from-env-file.db", os.Getenv(dbPathEnvVar))
	assert.Equal(t, "error", os.Getenv(logLevelEnvVar), "existing variables keep their value")
}

func TestExpandHomePath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	assert.Equal(t, home, expandHomePath("~"))
	assert.Equal(t, filepath.Join(home, "db", "mandi.db"), expandHomePath("~/db/mandi.db"))
	assert.Equal(t, "/abs/mandi.db", expandHomePath(" /abs/mandi.db "))
	assert.Equal(t, "", expandHomePath("   "))
}
