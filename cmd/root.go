package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/lumenlabs/lumen/internal/log"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "lumen",
	Short: "Lumen - a personal knowledge base in your terminal",
	Long: `Lumen stores notes in PostgreSQL with vector embeddings and answers
questions about them using retrieval-augmented generation.

Running lumen with no arguments starts an interactive chat session.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		// No subcommand drops into chat mode.
		return runChat(cmd, args)
	},
}

// Execute runs the root command. It is the single entry point called
// from main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func newLogger() log.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return log.New(log.Config{Level: level})
}
