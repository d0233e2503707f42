package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/noah-isme/hackathon-judge/internal/batch"
	"github.com/noah-isme/hackathon-judge/internal/bootstrap"
	"github.com/noah-isme/hackathon-judge/internal/queue"
	"github.com/noah-isme/hackathon-judge/internal/report"
	"github.com/noah-isme/hackathon-judge/internal/repository"
)

var (
	batchManifest string
	batchOut      string
	batchEnqueue  bool
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Score every submission listed in a manifest",
	Long: `batch evaluates the submissions of a YAML manifest one after the other and
writes per-project reports plus results.json, leaderboard.txt, results.csv and
summary_report.txt. A submission that cannot be evaluated is logged and skipped.

With --enqueue the submissions are pushed to the worker queue instead.`,
	Example: `  judge batch --manifest submissions.yaml --out results/round-1
  judge batch --manifest submissions.yaml --enqueue`,
	Args: cobra.NoArgs,
	RunE: runBatch,
}

func runBatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	validate := validator.New(validator.WithRequiredStructEnabled())

	manifest, err := batch.LoadManifest(batchManifest, validate)
	if err != nil {
		return err
	}
	baseDir, err := filepath.Abs(filepath.Dir(batchManifest))
	if err != nil {
		return err
	}

	if batchEnqueue {
		return enqueueManifest(cmd, manifest, baseDir)
	}

	outDir := batchOut
	if outDir == "" {
		outDir = cfg.OutputDir
	}
	pipeline, err := bootstrap.Build(ctx, cfg, bootstrap.Options{
		Repo:      repository.NewMemoryEvaluationRepository(),
		Validator: validate,
		OutputDir: outDir,
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	defer pipeline.Close()

	outcome, err := batch.NewRunner(pipeline.Evaluations, pipeline.Store, logger).Run(ctx, manifest, baseDir)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprint(out, report.Leaderboard(outcome.Results))
	for _, location := range outcome.Written {
		fmt.Fprintf(out, "wrote %s\n", location)
	}
	for _, failure := range outcome.Failures {
		fmt.Fprintf(out, "skipped %s: %v\n", failure.Name, failure.Err)
	}

	if len(outcome.Results) == 0 {
		return errors.New("no submission could be evaluated")
	}
	return nil
}

func enqueueManifest(cmd *cobra.Command, manifest batch.Manifest, baseDir string) error {
	if cfg.RedisURL == "" {
		return errors.New("--enqueue needs JUDGE_REDIS_URL")
	}
	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("invalid redis url: %w", err)
	}
	client := asynq.NewClient(redisOpt)
	defer client.Close()

	enqueuer := queue.NewAsynqEnqueuer(client, cfg.QueueName, cfg.AnalysisTimeout+cfg.CloneTimeout+cfg.ProviderTimeout)
	ids, err := batch.Enqueue(cmd.Context(), enqueuer, manifest.Submissions, baseDir, "cli")
	for i, id := range ids {
		fmt.Fprintf(cmd.OutOrStdout(), "queued %s as %s\n", manifest.Submissions[i].Name, id)
	}
	if err != nil {
		return err
	}
	logger.Info().Int("queued", len(ids)).Str("queue", cfg.QueueName).Msg("manifest enqueued")
	return nil
}

func init() {
	flags := batchCmd.Flags()
	flags.StringVarP(&batchManifest, "manifest", "m", "", "YAML manifest listing the submissions")
	flags.StringVarP(&batchOut, "out", "o", "", "output directory; must not hold a previous run (default JUDGE_OUTPUT_DIR)")
	flags.BoolVar(&batchEnqueue, "enqueue", false, "push the submissions to the worker queue instead of scoring them here")

	_ = batchCmd.MarkFlagRequired("manifest")
	batchCmd.MarkFlagsMutuallyExclusive("out", "enqueue")
}
