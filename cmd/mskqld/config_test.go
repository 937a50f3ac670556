package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaultsWhenNothingSet(t *testing.T) {
	os.Unsetenv("MSKQL_PORT")
	cfg, err := loadConfig(0, "")
	require.NoError(t, err)
	require.Equal(t, defaultPort, cfg.Port)
}

func TestLoadConfigYAMLOverridesDefault(t *testing.T) {
	os.Unsetenv("MSKQL_PORT")
	dir := t.TempDir()
	path := filepath.Join(dir, "mskqld.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 6000\nlog_level: debug\n"), 0644))

	cfg, err := loadConfig(0, path)
	require.NoError(t, err)
	require.Equal(t, 6000, cfg.Port)
}

func TestLoadConfigEnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mskqld.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 6000\n"), 0644))

	os.Setenv("MSKQL_PORT", "7000")
	defer os.Unsetenv("MSKQL_PORT")

	cfg, err := loadConfig(0, path)
	require.NoError(t, err)
	require.Equal(t, 7000, cfg.Port)
}

func TestLoadConfigFlagOverridesEverything(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mskqld.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 6000\n"), 0644))

	os.Setenv("MSKQL_PORT", "7000")
	defer os.Unsetenv("MSKQL_PORT")

	cfg, err := loadConfig(8000, path)
	require.NoError(t, err)
	require.Equal(t, 8000, cfg.Port)
}

func TestLoadConfigMissingFileReturnsError(t *testing.T) {
	_, err := loadConfig(0, "/nonexistent/path/mskqld.yaml")
	require.Error(t, err)
}
