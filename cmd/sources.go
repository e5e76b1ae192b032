package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lumenlabs/lumen/internal/app"
)

var sourcesLimit int

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List stored documents, newest first",
	RunE:  runSources,
}

func init() {
	sourcesCmd.Flags().IntVarP(&sourcesLimit, "limit", "n", 20, "maximum number of documents to list")
	rootCmd.AddCommand(sourcesCmd)
}

func runSources(cmd *cobra.Command, args []string) error {
	if sourcesLimit <= 0 {
		return fmt.Errorf("limit must be positive, got %d", sourcesLimit)
	}

	return withApp(func(ctx context.Context, a *app.App) error {
		count, err := a.Knowledge.Count(ctx)
		if err != nil {
			return err
		}
		docs, err := a.Knowledge.List(ctx, sourcesLimit)
		if err != nil {
			return err
		}

		fmt.Printf("%d document(s) stored\n", count)
		if len(docs) == 0 {
			return nil
		}
		fmt.Println()
		for _, doc := range docs {
			fmt.Printf("%s  %s\n", doc.ID, doc.CreatedAt.Format("2006-01-02 15:04"))
			fmt.Printf("    %s\n", summarizeContent(doc.Content))
		}
		if int64(len(docs)) < count {
			fmt.Printf("\nShowing %d of %d; raise --limit to see more.\n", len(docs), count)
		}
		return nil
	})
}
