package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/git-stunts/warp/pkg/reducer"
)

var materializeCmd = &cobra.Command{
	Use:   "materialize",
	Short: "Materialize the merged state and print its canonical hash",
	RunE:  runMaterialize,
}

func init() {
	materializeCmd.Flags().Bool("list", false, "List visible nodes and edges")
	rootCmd.AddCommand(materializeCmd)
}

func runMaterialize(cmd *cobra.Command, args []string) error {
	g, store, err := openGraph(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	st, err := g.Materialize(context.Background())
	if err != nil {
		return err
	}
	hash, err := reducer.Hash(st)
	if err != nil {
		return err
	}
	fmt.Printf("State hash: %s\n", hash)

	if list, _ := cmd.Flags().GetBool("list"); list {
		for _, n := range st.VisibleNodes() {
			fmt.Printf("node %s\n", n)
		}
		for _, e := range st.VisibleEdges() {
			fmt.Printf("edge %s\n", e)
		}
	}
	return nil
}
