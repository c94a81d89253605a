package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, ":8080", cfg.ListenAddr)
	require.Equal(t, 30*time.Second, cfg.ReadInterval)
	require.Equal(t, 5*time.Second, cfg.ScanDuration)
	require.Equal(t, 5, cfg.Retries)
	require.Equal(t, "aranet4.db", cfg.DBPath)
	require.Empty(t, cfg.NatsURL)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	yaml := `
listen_addr: ":9090"
read_interval: 2m
scan_duration: 15s
retries: 2
db_path: /var/lib/aranet4/readings.db
nats_url: nats://localhost:4222
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "aranet4.yaml"), []byte(yaml), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	require.Equal(t, ":9090", cfg.ListenAddr)
	require.Equal(t, 2*time.Minute, cfg.ReadInterval)
	require.Equal(t, 15*time.Second, cfg.ScanDuration)
	require.Equal(t, 2, cfg.Retries)
	require.Equal(t, "/var/lib/aranet4/readings.db", cfg.DBPath)
	require.Equal(t, "nats://localhost:4222", cfg.NatsURL)
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "aranet4.yaml"), []byte("retries: 9\n"), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	require.Equal(t, 9, cfg.Retries)
	require.Equal(t, ":8080", cfg.ListenAddr)
	require.Equal(t, 30*time.Second, cfg.ReadInterval)
}
