package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Snapshot the current merged state into a checkpoint commit",
	RunE:  runCheckpoint,
}

func init() {
	rootCmd.AddCommand(checkpointCmd)
}

func runCheckpoint(cmd *cobra.Command, args []string) error {
	g, store, err := openGraph(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	sha, err := g.CreateCheckpoint(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("Checkpoint created: %s\n", sha)
	return nil
}
