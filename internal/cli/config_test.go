package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "size-prefix", cfg.Framing.Mode)
	assert.Equal(t, "multi-threaded", cfg.Framing.Concurrency)
	assert.Equal(t, []int{9000}, cfg.Listen.Ports)
	assert.Equal(t, "127.0.0.1", cfg.Dial.Host)
	assert.Equal(t, 9000, cfg.Dial.Port)
	assert.Equal(t, "10s", cfg.Dial.DialTimeout)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoadConfig_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
framing:
  mode: delimiter
  delimiter: "|"
  max_message_size: 4096
listen:
  ports: [7001, 7002]
  max_connections: 10
log:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "delimiter", cfg.Framing.Mode)
	assert.Equal(t, "|", cfg.Framing.Delimiter)
	assert.Equal(t, 4096, cfg.Framing.MaxMessageSize)
	assert.Equal(t, []int{7001, 7002}, cfg.Listen.Ports)
	assert.Equal(t, 10, cfg.Listen.MaxConnections)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadConfig_RejectsUnknownFramingMode(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("framing:\n  mode: rot13\n"), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfig_RejectsEmptyDelimiterInDelimiterMode(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("framing:\n  mode: delimiter\n  delimiter: \"\"\n"), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("TCPFRAMED_FRAMING_MODE", "netstring")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "netstring", cfg.Framing.Mode)
}
