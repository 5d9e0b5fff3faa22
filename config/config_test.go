package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWithoutFileReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadParsesYAMLOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen_address: \":4840\"\nlog_level: debug\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":4840", cfg.ListenAddress)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, Default().SelectTimeout, cfg.SelectTimeout)
}

func TestLoadMissingFileIsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestEnvOverridesWinOverFile(t *testing.T) {
	t.Setenv("OPCUAGONM_LISTEN_ADDRESS", ":5000")
	t.Setenv("OPCUAGONM_SELECT_TIMEOUT", "50ms")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen_address: \":4840\"\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":5000", cfg.ListenAddress)
	assert.Equal(t, 50*time.Millisecond, cfg.SelectTimeout)
}

func TestValidateRejectsBadLogLevel(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "verbose"
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsEmptyListenAddress(t *testing.T) {
	cfg := Default()
	cfg.ListenAddress = ""
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsNonPositiveBufferSizes(t *testing.T) {
	cfg := Default()
	cfg.RecvBufferSize = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.SendBufferSize = -1
	assert.Error(t, cfg.Validate())
}

func TestEnvOverridesBufferSizes(t *testing.T) {
	t.Setenv("OPCUAGONM_RECV_BUFFER_SIZE", "8192")
	t.Setenv("OPCUAGONM_SEND_BUFFER_SIZE", "2048")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8192, cfg.RecvBufferSize)
	assert.Equal(t, 2048, cfg.SendBufferSize)
}
