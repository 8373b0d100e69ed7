// Command sessview inspects recorded agent session streams.
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/just-every/demo-ui-sub000/pipeline"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "sessview",
	Short: "Inspect recorded agent session streams",
	Long: `Sessview replays JSONL session recordings through the event pipeline
and renders the resulting conversation, agent activity, spend, and
memory/cognition state.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Pipeline config file (default: sessview.yaml if present)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newLogger creates a structured logger with the configured verbosity.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// newPipeline builds a pipeline with the configured bounds.
func newPipeline() (*pipeline.Pipeline, error) {
	path := configPath
	if path == "" {
		path = "sessview.yaml"
	}
	cfg, err := pipeline.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return pipeline.New(pipeline.WithConfig(cfg), pipeline.WithLogger(newLogger())), nil
}
