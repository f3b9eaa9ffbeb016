package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/git-stunts/warp/pkg/bitmap"
	"github.com/git-stunts/warp/pkg/types"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Rebuild or query the commit bitmap index",
}

var indexRebuildCmd = &cobra.Command{
	Use:   "rebuild <writer-id>",
	Short: "Rebuild the bitmap index from a writer's chain",
	Args:  cobra.ExactArgs(1),
	RunE:  runIndexRebuild,
}

var indexParentsCmd = &cobra.Command{
	Use:   "parents <sha>",
	Short: "Look up a commit's parents through the bitmap index",
	Args:  cobra.ExactArgs(1),
	RunE:  runIndexParents,
}

func init() {
	indexCmd.AddCommand(indexRebuildCmd)
	indexCmd.AddCommand(indexParentsCmd)
	rootCmd.AddCommand(indexCmd)
}

func runIndexRebuild(cmd *cobra.Command, args []string) error {
	g, store, err := openGraph(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	ref := types.WriterRef(g.Name(), args[0])
	res, err := bitmap.Build(context.Background(), store, g.Name(), ref)
	if err != nil {
		return err
	}
	fmt.Printf("Indexed %d commits, %d edges (commit %s)\n", res.Nodes, res.Edges, res.CommitSHA)
	return nil
}

func runIndexParents(cmd *cobra.Command, args []string) error {
	g, store, err := openGraph(cmd)
	if err != nil {
		return err
	}
	defer store.Close()
	ctx := context.Background()

	r, err := bitmap.NewReader(ctx, store, g.Name(), bitmap.ReaderOptions{})
	if err != nil {
		return err
	}
	parents, err := r.Parents(ctx, args[0])
	if err != nil {
		return err
	}
	for _, p := range parents {
		fmt.Println(p)
	}
	return nil
}
