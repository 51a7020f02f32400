package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sipcapture/xailyser/internal/config"
)

func TestLoadServerDefaultsOnly(t *testing.T) {
	cfg, err := config.LoadServer("")
	require.NoError(t, err)
	assert.Equal(t, "any", cfg.Capture.Interface)
	assert.Equal(t, ":8765", cfg.Listen.Addr)
	assert.Equal(t, 60, cfg.Sampler.DisplayWindowSeconds)
}

func TestLoadServerYAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.yaml")
	require.NoError(t, os.WriteFile(path, []byte("capture:\n  interface: eth1\nlisten:\n  addr: \":9000\"\n"), 0o600))

	cfg, err := config.LoadServer(path)
	require.NoError(t, err)
	assert.Equal(t, "eth1", cfg.Capture.Interface)
	assert.Equal(t, ":9000", cfg.Listen.Addr)
	// Unset fields still come from defaults.
	assert.Equal(t, 60, cfg.Sampler.DisplayWindowSeconds)
}

func TestLoadServerEnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen:\n  addr: \":9000\"\n"), 0o600))

	t.Setenv("XAILYSER_LISTEN_ADDR", ":9999")

	cfg, err := config.LoadServer(path)
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Listen.Addr)
}

func TestValidateServerRejectsEmptyListenAddr(t *testing.T) {
	cfg := config.DefaultServerConfig()
	cfg.Listen.Addr = ""
	assert.ErrorIs(t, config.ValidateServer(cfg), config.ErrEmptyListenAddr)
}

func TestValidateServerRejectsZeroDisplayWindow(t *testing.T) {
	cfg := config.DefaultServerConfig()
	cfg.Sampler.DisplayWindowSeconds = 0
	assert.ErrorIs(t, config.ValidateServer(cfg), config.ErrInvalidDisplayWindow)
}

func TestLoadClientMissingFileIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	cfg, err := config.LoadClient(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	assert.Empty(t, cfg.Profiles)
}

func TestLoadClientProfiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "client.yaml")
	yamlBody := "profiles:\n  - name: home\n    host: 192.168.1.10\n    port: 8765\n    auth_key_hash: abc123\n"
	require.NoError(t, os.WriteFile(path, []byte(yamlBody), 0o600))

	cfg, err := config.LoadClient(path)
	require.NoError(t, err)
	require.Len(t, cfg.Profiles, 1)
	assert.Equal(t, "home", cfg.Profiles[0].Name)
	assert.Equal(t, 8765, cfg.Profiles[0].Port)
}

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := config.HashPassword("hunter2")
	require.NoError(t, err)
	assert.True(t, config.VerifyPassword(hash, "hunter2"))
	assert.False(t, config.VerifyPassword(hash, "wrong"))
}
