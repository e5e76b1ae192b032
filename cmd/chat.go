package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lumenlabs/lumen/internal/app"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	RunE:  runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app.App) error {
		printWelcome(AppVersion)

		scanner := bufio.NewScanner(os.Stdin)
		for {
			fmt.Print("you> ")

			if !scanner.Scan() {
				// EOF (Ctrl+D)
				fmt.Println("\nGoodbye!")
				return scanner.Err()
			}

			input := strings.TrimSpace(scanner.Text())
			if input == "" {
				continue
			}

			if strings.HasPrefix(input, "/") {
				if handleSlashCommand(ctx, input, a) {
					return nil
				}
				continue
			}

			fmt.Print("lumen> ")

			// Streaming agents print fragments as they arrive; the others
			// only produce a final reply.
			streamed := false
			reply := a.Dispatcher.Dispatch(ctx, input, func(_ context.Context, fragment string) error {
				streamed = true
				fmt.Print(fragment)
				return nil
			})

			if streamed {
				fmt.Println()
			} else {
				fmt.Println(reply)
			}
			fmt.Println()
		}
	})
}

// handleSlashCommand processes a local command. Returns true when the
// session should end.
func handleSlashCommand(ctx context.Context, input string, a *app.App) bool {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "/exit", "/quit":
		fmt.Println("Goodbye!")
		return true
	case "/help":
		printChatHelp(a)
	case "/sources":
		count, err := a.Knowledge.Count(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return false
		}
		fmt.Printf("Knowledge base holds %d document(s). Use 'lumen sources' for details.\n", count)
	case "/config":
		fmt.Printf("Model: %s\nEmbedder: %s\n", a.Config.ModelName, a.Config.EmbedderModel)
	default:
		fmt.Printf("Unknown command %q. Type /help for available commands.\n", input)
	}
	return false
}

func printChatHelp(a *app.App) {
	fmt.Println("Commands:")
	fmt.Println("  /help     show this help")
	fmt.Println("  /sources  show knowledge base size")
	fmt.Println("  /config   show active model configuration")
	fmt.Println("  /exit     end the session")
	fmt.Println()
	fmt.Println("Message routing:")
	for _, ag := range a.Dispatcher.Agents() {
		fmt.Printf("  %-8s %s\n", ag.Name(), ag.Description())
	}
}

func printWelcome(version string) {
	fmt.Printf("Lumen v%s\n", version)
	fmt.Println("Type /help for commands, Ctrl+D to exit.")
	fmt.Println()
}
