package cli

import (
	"context"
	"fmt"

	"resumeflow/internal/common"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [resume-file] [job-description-file]",
	Short: "Parse a résumé file and optimize it in one go",
	Long: `Run the whole flow: upload the résumé file for parsing, check the parsed
résumé for completeness, then optimize it for the job description.
Progress of both steps is streamed to stderr.`,
	Args:    cobra.ExactArgs(2),
	PreRunE: optimizePreRun(&runConfig),
	RunE:    runRun,
}

var runConfig optimizeFlags

func init() {
	addOptimizeFlags(runCmd, &runConfig)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())

	svc, err := newServices(cfg, logger, serviceOptions{})
	if err != nil {
		return err
	}
	defer svc.session.Close()

	createInput := func(fp *common.FileProcessor, args []string) (optimizeInput, error) {
		upload, err := fp.ReadUpload(args[0], cfg.App.MaxFileSize)
		if err != nil {
			return optimizeInput{}, err
		}
		job, err := fp.ReadFile(args[1])
		if err != nil {
			return optimizeInput{}, err
		}
		return optimizeInput{upload: &upload, jobDescription: job}, nil
	}

	operation := func(ctx context.Context, in optimizeInput) (any, error) {
		stop := reportProgress(ctx, svc.session, cmd.ErrOrStderr())
		err := svc.session.Parse(ctx, *in.upload)
		stop()
		if err != nil {
			return nil, err
		}
		for _, warning := range svc.session.Snapshot().Warnings {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", warning)
		}
		return completeOptimization(ctx, cmd, svc.session, in, runConfig)
	}

	err = common.RunCommand(cmd.Context(), logger, cmd.OutOrStdout(), runConfig.CommandConfig, args, createInput, operation, logOptimize(logger))
	if err != nil {
		return fmt.Errorf("failed to run résumé flow: %w", err)
	}
	logger.Info("Résumé flow completed successfully")
	return nil
}
