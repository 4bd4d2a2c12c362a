package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateDefaultThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "selium.toml")

	require.NoError(t, GenerateDefault(path))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, ":7001", cfg.Server.Listen)
	require.Equal(t, "server.crt", cfg.Server.CertFile)
	require.Equal(t, "server.key", cfg.Server.KeyFile)
	require.Equal(t, uint32(16<<20), cfg.Server.MaxFrameSize)
	require.Equal(t, uint32(5000), cfg.Server.SubscriberTimeoutMS)
	require.Equal(t, uint32(30000), cfg.Server.DrainTimeoutMS)
	require.Equal(t, "INFO", cfg.Logging.Level)
	require.False(t, cfg.Logging.Disabled)
	require.True(t, cfg.Metrics.Enabled)
	require.Equal(t, ":9090", cfg.Metrics.Listen)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	require.Error(t, err)
}
