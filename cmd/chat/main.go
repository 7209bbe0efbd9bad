// Package main provides an interactive terminal chat with the medical knowledge assistant.
package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/bull/medrag/internal/app"
	"github.com/bull/medrag/internal/config"
	"github.com/bull/medrag/internal/engine"
)

var (
	title   = color.New(color.FgCyan, color.Bold)
	prompt  = color.New(color.FgGreen, color.Bold)
	dim     = color.New(color.Faint)
	warn    = color.New(color.FgYellow)
	failure = color.New(color.FgRed)
)

var conversationID string

var rootCmd = &cobra.Command{
	Use:   "medrag-chat",
	Short: "Chat with the medical knowledge assistant",
	Long: `Starts an interactive conversation with the medical knowledge assistant.

Commands:
  /history  show the messages kept for this conversation
  /clear    forget the conversation and start over
  /quit     exit`,
	RunE: runChat,
}

func init() {
	rootCmd.Flags().StringVar(&conversationID, "conversation", "", "conversation id to use (default: generated)")
}

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a, err := app.New(ctx, cfg, app.NewLogger(os.Stderr, cfg.LogLevel))
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Bootstrap(ctx); err != nil {
		return err
	}

	title.Println("Medical Knowledge Assistant")
	dim.Printf("model %s, %s backend. Type /quit to exit.\n\n", a.Generator.Model(), cfg.VectorBackend)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		prompt.Print("you> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/clear":
			if conversationID != "" {
				a.Engine.ClearConversation(conversationID)
			}
			conversationID = ""
			dim.Println("Conversation cleared.")
			continue
		case "/history":
			printHistory(a.Engine)
			continue
		}

		answer, err := a.Engine.Ask(ctx, conversationID, line)
		if err != nil {
			var engErr *engine.Error
			if errors.As(err, &engErr) {
				failure.Printf("%s\n\n", engErr.Error())
				continue
			}
			return err
		}
		conversationID = answer.ConversationID
		printAnswer(answer)

		if ctx.Err() != nil {
			return nil
		}
	}
}

func printAnswer(answer *engine.Answer) {
	fmt.Println()
	fmt.Println(answer.Answer)
	if answer.Metadata.RetrievalDegraded {
		warn.Println("(knowledge base unavailable, answered without references)")
	}
	if len(answer.Sources) > 0 {
		fmt.Println()
		dim.Println("Sources:")
		for i, c := range answer.Sources {
			dim.Printf("  [%d] %s (%.2f)\n", i+1, c.Title, c.Score)
		}
	}
	fmt.Println()
}

func printHistory(eng *engine.Engine) {
	if conversationID == "" {
		dim.Println("No conversation yet.")
		return
	}
	history := eng.History(conversationID)
	if len(history) == 0 {
		dim.Println("No messages kept.")
		return
	}
	for _, m := range history {
		dim.Printf("%s %s: ", m.Timestamp.Format("15:04:05"), m.Role)
		fmt.Println(m.Content)
	}
	fmt.Println()
}
