package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/pagealloc/buddy"
)

func TestLoadConfigDefaults(t *testing.T) {
	config, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, &Config{LogLevel: "info", LogFormat: "text"}, config)
	require.Equal(t, buddy.CreateOptions{}, config.CreateOptions())
}

func TestLoadConfigFileThenEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "buddyctl.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logLevel: warn\nsynchronized: true\n"), 0o600))

	config, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, &Config{LogLevel: "warn", LogFormat: "text", Synchronized: true}, config)
	require.Equal(t, buddy.CreateSynchronized, config.CreateOptions().Flags)

	t.Setenv("BUDDYCTL_LOG_FORMAT", "json")
	t.Setenv("BUDDYCTL_LOG_LEVEL", "debug")

	config, err = LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, &Config{LogLevel: "debug", LogFormat: "json", Synchronized: true}, config)
}

func TestLoadConfigFromEnvironmentPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "buddyctl.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logFormat: json\n"), 0o600))
	t.Setenv("BUDDYCTL_CONFIG_FILE", path)

	config, err := LoadConfig("")
	require.NoError(t, err)
	require.Equal(t, "json", config.LogFormat)
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	dir := t.TempDir()

	unknown := filepath.Join(dir, "unknown.yaml")
	require.NoError(t, os.WriteFile(unknown, []byte("pages: 3\n"), 0o600))
	_, err := LoadConfig(unknown)
	require.Error(t, err)

	format := filepath.Join(dir, "format.yaml")
	require.NoError(t, os.WriteFile(format, []byte("logFormat: xml\n"), 0o600))
	_, err = LoadConfig(format)
	require.Error(t, err)

	t.Setenv("BUDDYCTL_LOG_LEVEL", "loud")
	_, err = LoadConfig(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}
