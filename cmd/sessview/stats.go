package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/just-every/demo-ui-sub000/pipeline"
	"github.com/just-every/demo-ui-sub000/replay"
)

var statsCmd = &cobra.Command{
	Use:   "stats <session.jsonl>",
	Short: "Replay a session recording and print aggregates",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newPipeline()
		if err != nil {
			return err
		}
		if _, err := replay.File(args[0], p); err != nil {
			return err
		}
		printStats(p.Snapshot())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func printStats(snap pipeline.Snapshot) {
	fmt.Printf("=== Spend ===\n")
	fmt.Printf("Total cost:   $%.4f\n", snap.Task.TotalCost)
	fmt.Printf("Total tokens: %d\n", snap.Task.TotalTokens)
	for _, m := range snap.Cost.PerModel {
		fmt.Printf("  %-24s $%.4f  (%d calls, %d tokens)\n", m.Model, m.TotalCost, m.UsageCount, m.TotalTokens)
	}

	mem := snap.Memory.Stats
	fmt.Printf("\n=== Memory ===\n")
	fmt.Printf("Tagging runs: %d (%d completed)\n", mem.Sessions, mem.CompletedSessions)
	fmt.Printf("Topics:       %d\n", mem.Topics)
	fmt.Printf("Tagged msgs:  %d\n", mem.TaggedMessages)
	if mem.AvgProcessingTime > 0 {
		fmt.Printf("Avg run time: %s\n", mem.AvgProcessingTime)
	}

	cog := snap.Cognition.Stats
	fmt.Printf("\n=== Cognition ===\n")
	fmt.Printf("Analyses:     %d (%d completed)\n", cog.TotalAnalyses, cog.CompletedAnalyses)
	fmt.Printf("Adjustments:  %d\n", cog.TotalAdjustments)
	fmt.Printf("Thoughts:     %d\n", cog.TotalInjectedThoughts)
	if snap.Cognition.CurrentState != nil {
		st := snap.Cognition.CurrentState
		fmt.Printf("Tuning:       frequency=%d delay=%.1fs processing=%v\n", st.Frequency, st.ThoughtDelay, st.Processing)
	}
}
