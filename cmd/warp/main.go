package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/git-stunts/warp/pkg/config"
	"github.com/git-stunts/warp/pkg/graph"
	"github.com/git-stunts/warp/pkg/log"
	"github.com/git-stunts/warp/pkg/metrics"
	"github.com/git-stunts/warp/pkg/object"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "warp",
	Short: "warp - multi-writer graph database on a content-addressed store",
	Long: `warp is a replicated graph database where every mutation is an
immutable patch commit and readers merge all writers' chains through CRDT
rules. This CLI is a local inspection shell over the engine.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"warp version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("config", "", "Path to warp.yaml (optional)")
	rootCmd.PersistentFlags().String("store", "", "Object store directory (overrides config)")
	rootCmd.PersistentFlags().String("graph", "", "Graph name (overrides config)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(func() {
		log.Init(log.Config{Level: log.InfoLevel})
		metrics.Register()
	})
}

// loadConfig resolves the effective configuration from file and flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if store, _ := cmd.Flags().GetString("store"); store != "" {
		cfg.Store.Path = store
	}
	if name, _ := cmd.Flags().GetString("graph"); name != "" {
		cfg.Graph.Name = name
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Log.Level = level
	}
	if jsonOut, _ := cmd.Flags().GetBool("log-json"); jsonOut {
		cfg.Log.JSON = true
	}
	log.Init(log.Config{Level: log.Level(cfg.Log.Level), JSONOutput: cfg.Log.JSON})
	return cfg, nil
}

// openGraph opens the store and graph handle for a command invocation.
func openGraph(cmd *cobra.Command) (*graph.Graph, object.Store, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	store, err := object.NewBoltStore(cfg.Store.Path)
	if err != nil {
		return nil, nil, err
	}
	g, err := graph.Open(context.Background(), store, graph.Options{
		Graph:           cfg.Graph.Name,
		WriterID:        cfg.Graph.Writer,
		CheckpointEvery: cfg.Graph.CheckpointEvery,
		GCPolicy:        cfg.GCPolicy(),
		Audit:           cfg.Graph.Audit,
	})
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return g, store, nil
}
