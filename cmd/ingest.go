package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lumenlabs/lumen/internal/app"
	"github.com/lumenlabs/lumen/internal/knowledge"
)

var ingestFiles []string

var ingestCmd = &cobra.Command{
	Use:   "ingest [text]",
	Short: "Store text or files in the knowledge base",
	Long: `Ingest embeds the given text and stores it for later retrieval.
Pass --file one or more times to ingest file contents instead; a batch of
files is stored atomically, so either every file lands or none do.`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringArrayVarP(&ingestFiles, "file", "f", nil, "file to ingest (repeatable)")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	text := strings.TrimSpace(strings.Join(args, " "))
	if text == "" && len(ingestFiles) == 0 {
		return fmt.Errorf("nothing to ingest: pass text or --file")
	}

	return withApp(func(ctx context.Context, a *app.App) error {
		if text != "" {
			doc, err := a.Knowledge.Add(ctx, text, map[string]any{"source": "cli"})
			if err != nil {
				return err
			}
			fmt.Printf("Stored document %s\n", doc.ID)
		}

		if len(ingestFiles) == 0 {
			return nil
		}

		items, err := readIngestFiles(ingestFiles)
		if err != nil {
			return err
		}
		docs, err := a.Knowledge.AddBatch(ctx, items)
		if err != nil {
			return err
		}
		for i, doc := range docs {
			fmt.Printf("Stored %s as document %s\n", ingestFiles[i], doc.ID)
		}
		return nil
	})
}

// readIngestFiles loads each file into a batch item tagged with its origin.
// Order matches the input paths.
func readIngestFiles(paths []string) ([]knowledge.Item, error) {
	items := make([]knowledge.Item, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		content := strings.TrimSpace(string(data))
		if content == "" {
			return nil, fmt.Errorf("%s is empty", path)
		}
		items = append(items, knowledge.Item{
			Content: content,
			Metadata: map[string]any{
				"source": "file",
				"file":   filepath.Base(path),
			},
		})
	}
	return items, nil
}
