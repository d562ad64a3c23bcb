package cli

import (
	"context"
	"fmt"

	"resumeflow/internal/common"
	"resumeflow/internal/errors"
	"resumeflow/internal/types"
	"resumeflow/internal/validation"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [resume-file]",
	Short: "Check a résumé for completeness",
	Long: `Score a résumé saved as JSON or Markdown the same way the review stage does:
each section is marked complete, warning or missing, and the overall score
must reach the minimum before the résumé can be optimized. With --strict the command
fails when the score is below that threshold.`,
	Args:    cobra.ExactArgs(1),
	PreRunE: outputPreRun(&validateConfig),
	RunE:    runValidate,
}

var (
	validateConfig common.CommandConfig
	validateStrict bool
)

func init() {
	addOutputFlags(validateCmd, &validateConfig)
	validateCmd.Flags().BoolVar(&validateStrict, "strict", false, "Fail when the résumé is not ready to optimize")
}

func runValidate(cmd *cobra.Command, args []string) error {
	logger := getLoggerFromContext(cmd.Context())

	loadResume := func(fp *common.FileProcessor, args []string) (types.Resume, error) {
		return fp.LoadResume(args[0])
	}

	var report types.ResumeValidation
	validate := func(_ context.Context, r types.Resume) (types.ResumeValidation, error) {
		report = validation.ValidateResume(r)
		return report, nil
	}

	if err := common.RunCommand(cmd.Context(), logger, cmd.OutOrStdout(), validateConfig, args, loadResume, validate, nil); err != nil {
		return fmt.Errorf("failed to validate résumé: %w", err)
	}

	logger.Info("Résumé validated", "score", report.OverallScore, "label", validation.ScoreLabel(report.OverallScore))
	if validateStrict && !validation.ReadyToOptimize(report) {
		return errors.NewValidationError(errors.ErrCodeScoreTooLow,
			fmt.Sprintf("Score %d is below the minimum of %d", report.OverallScore, validation.MinReadyScore), nil)
	}
	return nil
}
