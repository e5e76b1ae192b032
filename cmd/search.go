package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lumenlabs/lumen/internal/app"
	"github.com/lumenlabs/lumen/internal/knowledge"
)

var (
	searchThreshold float64
	searchLimit     int
	searchFilters   []string
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Find documents similar to a query",
	Long: `Search embeds the query and ranks stored documents by cosine
similarity. Pass --filter key=value to keep only documents whose metadata
matches; the flag is repeatable and all filters must match.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().Float64VarP(&searchThreshold, "threshold", "t", 0, "minimum similarity in [0,1] (0 uses the default)")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 0, "maximum number of results (0 uses the default)")
	searchCmd.Flags().StringArrayVar(&searchFilters, "filter", nil, "metadata filter as key=value (repeatable)")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := strings.TrimSpace(strings.Join(args, " "))
	if query == "" {
		return fmt.Errorf("query cannot be empty")
	}

	filter, err := parseFilters(searchFilters)
	if err != nil {
		return err
	}

	var opts []knowledge.SearchOption
	if searchThreshold > 0 {
		opts = append(opts, knowledge.WithThreshold(searchThreshold))
	}
	if searchLimit > 0 {
		opts = append(opts, knowledge.WithLimit(searchLimit))
	}

	return withApp(func(ctx context.Context, a *app.App) error {
		var results []knowledge.SearchResult
		if len(filter) > 0 {
			results, err = a.Knowledge.HybridSearch(ctx, query, filter, opts...)
		} else {
			results, err = a.Knowledge.Search(ctx, query, opts...)
		}
		if err != nil {
			return err
		}

		if len(results) == 0 {
			fmt.Println("No matching documents found.")
			return nil
		}
		for i, r := range results {
			fmt.Printf("%d. [%.2f] %s (%s)\n", i+1, r.Similarity, summarizeContent(r.Content), r.ID)
		}
		return nil
	})
}

// parseFilters turns repeated key=value flags into a metadata filter.
// Values stay strings; stored metadata written by the CLI is string-valued.
func parseFilters(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	filter := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid filter %q: expected key=value", pair)
		}
		filter[key] = value
	}
	return filter, nil
}
