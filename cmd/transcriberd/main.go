// Command transcriberd serves the real-time transcription pipeline over
// WebSocket and offers an offline replay mode for recorded audio,
// following the teacher's cobra-rooted CLI shape (alicia's cmd/alicia).
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/transcriberd/transcriberd/internal/config"
)

var (
	tuningPath string
	env        config.Env
	tuning     config.Tuning
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "transcriberd",
		Short: "Real-time speech transcription pipeline daemon",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
			env = config.LoadEnv()
			tuning = config.Load(tuningPath)
			if err := tuning.Validate(); err != nil {
				return fmt.Errorf("transcriberd: %w", err)
			}
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&tuningPath, "tuning", "tuning.yaml", "path to the tuning YAML file")

	rootCmd.AddCommand(serveCmd(), replayCmd(), versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var version = "dev"

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("transcriberd", version)
		},
	}
}
