package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/meikuraledutech/interview"
	"github.com/spf13/cobra"
)

var (
	cfg      interview.AppConfig
	logger   *slog.Logger
	shutdown = func(context.Context) error { return nil }
)

var rootCmd = &cobra.Command{
	Use:          "interview",
	Short:        "Run persona-driven mock interviews against a language model",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = interview.LoadConfig()
		if err != nil {
			return err
		}
		if p, _ := cmd.Flags().GetString("provider"); p != "" {
			cfg.Provider = p
		}
		level := slog.LevelInfo
		if v, _ := cmd.Flags().GetBool("verbose"); v {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)

		stop, err := setupTracing(cmd.Context())
		if err != nil {
			return err
		}
		shutdown = stop
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(ctx); err != nil {
			logger.Warn("tracer shutdown", "error", err)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().String("provider", "", "model provider: gemini, openai, ollama or scripted")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug logging")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
