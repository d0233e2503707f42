package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/noah-isme/hackathon-judge/internal/config"
	"github.com/noah-isme/hackathon-judge/internal/scoring"
)

var (
	verbose bool

	cfg    config.Config
	logger zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "judge",
	Short: "Score hackathon submissions",
	Long: `judge runs hackathon submissions through the judging pipeline: code quality,
presentation, impact, feasibility and originality are scored, combined with
fixed weights and rendered into reports and a leaderboard.

Settings are read from JUDGE_* environment variables and an optional .env file.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := zerolog.InfoLevel
		if verbose {
			level = zerolog.DebugLevel
		}
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
			Level(level).
			With().Timestamp().Logger()

		if err := scoring.ValidateWeights(scoring.DefaultWeights()); err != nil {
			return fmt.Errorf("scoring weights: %w", err)
		}

		loaded, err := config.Load()
		if err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log provider and sandbox details")

	rootCmd.AddCommand(evaluateCmd)
	rootCmd.AddCommand(batchCmd)
}
