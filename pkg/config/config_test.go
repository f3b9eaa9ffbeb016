package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/git-stunts/warp/pkg/gc"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "warp.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
store:
  path: /var/lib/warp
graph:
  name: main
  writer: alice
  checkpointEvery: 100
gc:
  maxTombstoneRatio: 0.5
  maxIntervalHours: 6
log:
  level: debug
  json: true
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/warp", cfg.Store.Path)
	assert.Equal(t, "alice", cfg.Graph.Writer)
	assert.Equal(t, 100, cfg.Graph.CheckpointEvery)
	assert.Equal(t, "debug", cfg.Log.Level)

	p := cfg.GCPolicy()
	assert.Equal(t, 0.5, p.MaxTombstoneRatio)
	assert.Equal(t, 6*time.Hour, p.MaxInterval)
	// untouched fields keep defaults
	assert.Equal(t, gc.DefaultPolicy().MaxEntries, p.MaxEntries)
}

func TestLoadRejectsMissingFields(t *testing.T) {
	path := writeConfig(t, `
store:
  path: ""
graph:
  name: main
`)
	_, err := Load(path)
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "main", cfg.Graph.Name)
	assert.Equal(t, gc.DefaultPolicy(), cfg.GCPolicy())
}
