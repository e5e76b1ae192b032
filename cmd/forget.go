package cmd

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/lumenlabs/lumen/internal/app"
)

var forgetCmd = &cobra.Command{
	Use:   "forget [document-id]",
	Short: "Remove a document from the knowledge base",
	Args:  cobra.ExactArgs(1),
	RunE:  runForget,
}

func init() {
	rootCmd.AddCommand(forgetCmd)
}

func runForget(cmd *cobra.Command, args []string) error {
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid document id %q: %w", args[0], err)
	}

	return withApp(func(ctx context.Context, a *app.App) error {
		if err := a.Knowledge.Delete(ctx, id); err != nil {
			return err
		}
		fmt.Printf("Forgotten document %s\n", id)
		return nil
	})
}
