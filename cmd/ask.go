package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lumenlabs/lumen/internal/app"
)

var showSources bool

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question from the knowledge base",
	Long: `Ask retrieves the documents most similar to the question and generates
an answer grounded in them. When nothing relevant is stored, it says so
instead of guessing.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&showSources, "sources", false, "list the source documents after the answer")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		return fmt.Errorf("question cannot be empty")
	}

	return withApp(func(ctx context.Context, a *app.App) error {
		answer, err := a.RAG.AnswerStream(ctx, question, func(_ context.Context, fragment string) error {
			fmt.Print(fragment)
			return nil
		})
		if err != nil {
			return err
		}
		fmt.Println()

		if showSources && len(answer.Sources) > 0 {
			fmt.Println()
			fmt.Println("Sources:")
			for i, src := range answer.Sources {
				fmt.Printf("  [%d] %.2f  %s\n", i+1, src.Similarity, summarizeContent(src.Content))
			}
		}
		return nil
	})
}

// summarizeContent truncates content to a single display line.
func summarizeContent(content string) string {
	const maxLen = 100
	line := strings.Join(strings.Fields(content), " ")
	if len(line) <= maxLen {
		return line
	}
	return line[:maxLen-3] + "..."
}
