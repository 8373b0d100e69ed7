package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/just-every/demo-ui-sub000/replay"
	"github.com/just-every/demo-ui-sub000/taskstate"
)

var replayShowAgents bool

var replayCmd = &cobra.Command{
	Use:   "replay <session.jsonl>",
	Short: "Replay a session recording and print the conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newPipeline()
		if err != nil {
			return err
		}

		stats, err := replay.File(args[0], p)
		if err != nil {
			return err
		}

		snap := p.Snapshot()
		printTranscript(snap.Task)
		if replayShowAgents {
			printAgents(snap.Task)
		}
		fmt.Printf("\nReplayed %d lines: %d events, %d skipped\n", stats.Lines, stats.Events, stats.Skipped)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().BoolVar(&replayShowAgents, "agents", false, "Print per-request agent records")
}

func printTranscript(task taskstate.Snapshot) {
	fmt.Printf("=== Conversation ===\n")
	for _, msg := range task.Messages {
		label := msg.Role
		switch msg.Type {
		case taskstate.KindReasoning:
			label = "thinking"
		case taskstate.KindFunctionCall:
			label = "tool:" + msg.ToolName
		case taskstate.KindFunctionCallOutput:
			label = "result"
		}
		suffix := ""
		if msg.Status == taskstate.StatusInProgress {
			suffix = " (in progress)"
		}
		fmt.Printf("%-16s %s%s\n", label, msg.Content, suffix)
	}
	if task.IsLoading {
		fmt.Printf("\nStill loading: tasks=%v requests=%v\n", task.RunningTasks, task.RunningRequests)
	}
}

func printAgents(task taskstate.Snapshot) {
	if len(task.RequestAgents) == 0 {
		return
	}
	ids := make([]string, 0, len(task.RequestAgents))
	for id := range task.RequestAgents {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	fmt.Printf("\n=== Agents ===\n")
	for _, id := range ids {
		agent := task.RequestAgents[id]
		fmt.Printf("%-12s %-14s %-10s $%.4f", id, agent.Name, agent.Status, agent.Cost)
		if agent.DurationMS > 0 {
			fmt.Printf("  %.1fs", agent.DurationMS/1000)
		}
		fmt.Println()
	}
}
