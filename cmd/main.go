package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	cfgPkg "github.com/xhad/edurag/pkg/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "edurag",
	Short: "Retrieval-augmented chat over course documents",
	Long: `edurag indexes uploaded course documents into a chunk store and answers
questions about them with a language model.

Environment variables:
  OLLAMA_BASE_URL  Ollama server URL (default: http://localhost:11434)
  LLM_PROVIDER     ollama, openai or canned (default: ollama)
  LLM_MODEL        Model name
  OPENAI_API_KEY   API key for the openai provider
  DATABASE_URL     PostgreSQL connection string (memory store when empty)
  GATEWAY_DB_PATH  SQLite database with uploaded documents
  QUIZ_DB_PATH     SQLite database with quiz templates
  PORT             HTTP port for serve`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")
}

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	_ = godotenv.Load()

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*cfgPkg.Config, error) {
	cfg, err := cfgPkg.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		msgs := make([]string, 0, len(errs))
		for _, e := range errs {
			msgs = append(msgs, e.Error())
		}
		return nil, fmt.Errorf("invalid configuration:\n  %s", strings.Join(msgs, "\n  "))
	}
	return cfg, nil
}

func newLogger(level, format string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}
