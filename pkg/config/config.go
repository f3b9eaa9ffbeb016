package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/git-stunts/warp/pkg/gc"
)

// Config is the YAML configuration the CLI loads. Library callers pass
// graph.Options directly; this layer only exists for the command line.
type Config struct {
	Store StoreConfig `yaml:"store"`
	Graph GraphConfig `yaml:"graph"`
	GC    GCConfig    `yaml:"gc"`
	Sync  SyncConfig  `yaml:"sync"`
	Log   LogConfig   `yaml:"log"`
}

// StoreConfig locates the object store.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// GraphConfig names the graph and the local writer.
type GraphConfig struct {
	Name            string `yaml:"name"`
	Writer          string `yaml:"writer,omitempty"`
	CheckpointEvery int    `yaml:"checkpointEvery,omitempty"`
	Audit           bool   `yaml:"audit,omitempty"`
}

// GCConfig overrides the compaction policy.
type GCConfig struct {
	MaxTombstoneRatio float64 `yaml:"maxTombstoneRatio,omitempty"`
	MaxEntries        int     `yaml:"maxEntries,omitempty"`
	MinPatches        int     `yaml:"minPatches,omitempty"`
	MaxIntervalHours  int     `yaml:"maxIntervalHours,omitempty"`
}

// SyncConfig configures the sync driver.
type SyncConfig struct {
	Endpoint       string `yaml:"endpoint,omitempty"`
	TimeoutSeconds int    `yaml:"timeoutSeconds,omitempty"`
	MaxRetries     int    `yaml:"maxRetries,omitempty"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level,omitempty"`
	JSON  bool   `yaml:"json,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Store: StoreConfig{Path: "."},
		Graph: GraphConfig{Name: "main"},
		Log:   LogConfig{Level: "info"},
	}
}

// Load reads and validates a YAML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Graph.Name == "" {
		return nil, fmt.Errorf("config missing graph.name")
	}
	if cfg.Store.Path == "" {
		return nil, fmt.Errorf("config missing store.path")
	}
	return cfg, nil
}

// GCPolicy converts the GC overrides into a policy, falling back to the
// defaults field by field.
func (c *Config) GCPolicy() gc.Policy {
	p := gc.DefaultPolicy()
	if c.GC.MaxTombstoneRatio > 0 {
		p.MaxTombstoneRatio = c.GC.MaxTombstoneRatio
	}
	if c.GC.MaxEntries > 0 {
		p.MaxEntries = c.GC.MaxEntries
	}
	if c.GC.MinPatches > 0 {
		p.MinPatches = c.GC.MinPatches
	}
	if c.GC.MaxIntervalHours > 0 {
		p.MaxInterval = time.Duration(c.GC.MaxIntervalHours) * time.Hour
	}
	return p
}
