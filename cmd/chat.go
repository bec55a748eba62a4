package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/xhad/edurag/pkg/chat"
)

var (
	rebuildBeforeChat bool
	showSources       bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the indexed documents from the terminal",
	RunE:  runChat,
}

func init() {
	chatCmd.Flags().BoolVar(&rebuildBeforeChat, "rebuild", false, "Rebuild the chunk index before chatting")
	chatCmd.Flags().BoolVar(&showSources, "sources", true, "Print the sources used for each answer")
	rootCmd.AddCommand(chatCmd)
}

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log.Level, cfg.Log.Format)
	ctx := cmd.Context()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	if rebuildBeforeChat {
		spinner := getSpinner("📚 Rebuilding index...")
		report, err := a.indexer.Rebuild(ctx)
		_ = spinner.Finish()
		fmt.Print("\r")
		if err != nil {
			return fmt.Errorf("rebuild failed: %w", err)
		}
		color.Green("\n✓ Indexed %d new chunks from %d documents\n", report.ChunksCreated, report.DocumentsProcessed)
	}

	conversationID := uuid.NewString()
	color.Cyan("\nChat with your documents (type 'exit' to quit)")

	scanner := bufio.NewScanner(os.Stdin)
	userPrompt := color.New(color.FgGreen).PrintfFunc()
	assistantPrompt := color.New(color.FgCyan).PrintfFunc()
	sourcePrompt := color.New(color.FgHiBlack).PrintfFunc()

	for {
		userPrompt("\nYou: ")
		if !scanner.Scan() {
			break
		}

		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			continue
		}
		if strings.ToLower(query) == "exit" {
			break
		}

		spinner := getSpinner("🤖 Generating response...")
		resp := a.orchestrator.Chat(ctx, chat.Request{
			Query:          query,
			ConversationID: conversationID,
			Retrieval:      a.retrievalConfig(),
			Chat:           a.chatConfig(),
		})
		_ = spinner.Finish()
		fmt.Print("\r")

		assistantPrompt("Assistant: %s\n", resp.Answer)
		if showSources {
			for _, src := range resp.Sources {
				sourcePrompt("  - %s (%s, %.2f)\n", src.Topic, src.Category, src.SimilarityScore)
			}
		}
	}

	return scanner.Err()
}
