package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show graph frontier and state summary",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	g, store, err := openGraph(cmd)
	if err != nil {
		return err
	}
	defer store.Close()
	ctx := context.Background()

	if err := store.Ping(ctx); err != nil {
		return fmt.Errorf("store unreachable: %w", err)
	}

	stats, err := g.Stats(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Graph:      %s\n", g.Name())
	fmt.Printf("Writer:     %s\n", g.WriterID())
	fmt.Printf("Nodes:      %d\n", stats.State.VisibleNodes)
	fmt.Printf("Edges:      %d\n", stats.State.VisibleEdges)
	fmt.Printf("Properties: %d\n", stats.State.Props)
	fmt.Printf("Tombstones: %d\n", stats.State.Tombstones)
	fmt.Printf("Writers:    %d\n", stats.Writers)

	writers := make([]string, 0, len(stats.Frontier))
	for w := range stats.Frontier {
		writers = append(writers, w)
	}
	sort.Strings(writers)
	for _, w := range writers {
		fmt.Printf("  %-20s %s\n", w, stats.Frontier[w])
	}
	return nil
}
