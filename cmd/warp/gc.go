package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var gcCmd = &cobra.Command{
	Use:   "gc",
	Short: "Compact safely-superseded tombstones",
	RunE:  runGC,
}

func init() {
	gcCmd.Flags().Bool("force", false, "Compact even when the policy would not fire")
	rootCmd.AddCommand(gcCmd)
}

func runGC(cmd *cobra.Command, args []string) error {
	g, store, err := openGraph(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	force, _ := cmd.Flags().GetBool("force")
	out, err := g.RunGC(context.Background(), force)
	if err != nil {
		return err
	}
	if !out.Ran {
		fmt.Println("Nothing to do (policy did not fire; use --force to override)")
		return nil
	}
	reasons := "forced"
	if len(out.Decision.Reasons) > 0 {
		reasons = strings.Join(out.Decision.Reasons, ", ")
	}
	fmt.Printf("Compacted %d tombstoned dots (%s)\n", out.Result.Removed(), reasons)
	return nil
}
