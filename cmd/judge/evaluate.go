package main

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"

	"github.com/noah-isme/hackathon-judge/internal/batch"
	"github.com/noah-isme/hackathon-judge/internal/bootstrap"
	"github.com/noah-isme/hackathon-judge/internal/dto"
	"github.com/noah-isme/hackathon-judge/internal/report"
	"github.com/noah-isme/hackathon-judge/internal/repository"
)

var (
	evaluateEntry dto.BatchEntry
	evaluateOut   string
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Score a single submission and print its report",
	Example: `  judge evaluate --name "Study Buddy" --description-file README.md \
    --code-dir ./src --transcript-file pitch.txt`,
	Args: cobra.NoArgs,
	RunE: runEvaluate,
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	req, err := batch.ToRequest(evaluateEntry, "")
	if err != nil {
		return err
	}

	outDir := evaluateOut
	if outDir == "" {
		outDir = cfg.OutputDir
	}
	pipeline, err := bootstrap.Build(ctx, cfg, bootstrap.Options{
		Repo:      repository.NewMemoryEvaluationRepository(),
		Validator: validator.New(validator.WithRequiredStructEnabled()),
		OutputDir: outDir,
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	defer pipeline.Close()

	evaluation, err := pipeline.Evaluations.Evaluate(ctx, req)
	if err != nil {
		return err
	}

	fmt.Fprint(cmd.OutOrStdout(), report.Render(evaluation.Result()))
	return nil
}

func init() {
	flags := evaluateCmd.Flags()
	flags.StringVar(&evaluateEntry.Name, "name", "", "project name")
	flags.StringVar(&evaluateEntry.Description, "description", "", "project description text")
	flags.StringVar(&evaluateEntry.DescriptionFile, "description-file", "", "file holding the project description")
	flags.StringVar(&evaluateEntry.CodeDir, "code-dir", "", "local directory with the project code")
	flags.StringVar(&evaluateEntry.GitHubURL, "github", "", "public GitHub repository URL")
	flags.StringVar(&evaluateEntry.CodeFile, "code-file", "", "single source file")
	flags.StringVar(&evaluateEntry.Video, "video", "", "presentation video to transcribe")
	flags.StringVar(&evaluateEntry.TranscriptFile, "transcript-file", "", "presentation transcript text file")
	flags.StringVar(&evaluateOut, "out", "", "directory for the report and scores files (default JUDGE_OUTPUT_DIR)")

	_ = evaluateCmd.MarkFlagRequired("name")
	evaluateCmd.MarkFlagsMutuallyExclusive("description", "description-file")
	evaluateCmd.MarkFlagsMutuallyExclusive("code-dir", "github", "code-file")
}
