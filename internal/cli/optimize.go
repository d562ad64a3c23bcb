package cli

import (
	"context"
	"fmt"
	"strings"

	"resumeflow/internal/common"
	"resumeflow/internal/errors"
	"resumeflow/internal/formatters"
	"resumeflow/internal/session"
	"resumeflow/internal/types"

	"github.com/spf13/cobra"
)

var optimizeCmd = &cobra.Command{
	Use:   "optimize [resume-file] [job-description-file]",
	Short: "Optimize a saved résumé for a job description",
	Long: `Optimize a résumé saved as JSON or Markdown for a job description.
The résumé must pass the completeness check first (see validate).
With --format json the full result is printed, including the cover letter,
and can be exported later with the export command. With --export-dir the
optimized résumé, the original and the cover letter are written as files.`,
	Args:    cobra.ExactArgs(2),
	PreRunE: optimizePreRun(&optimizeConfig),
	RunE:    runOptimize,
}

// optimizeFlags are shared by optimize and run
type optimizeFlags struct {
	common.CommandConfig
	JobTitle     string
	Company      string
	ExportDir    string
	ExportFormat string
}

var optimizeConfig optimizeFlags

func init() {
	addOptimizeFlags(optimizeCmd, &optimizeConfig)
}

func addOptimizeFlags(cmd *cobra.Command, flags *optimizeFlags) {
	addOutputFlags(cmd, &flags.CommandConfig)
	cmd.Flags().StringVar(&flags.JobTitle, "title", "", "Job title (optional)")
	cmd.Flags().StringVar(&flags.Company, "company", "", "Company name (optional)")
	cmd.Flags().StringVar(&flags.ExportDir, "export-dir", "", "Write the result documents into this directory")
	cmd.Flags().StringVar(&flags.ExportFormat, "export-format", formatters.FormatMarkdown, "Format of exported documents: text or markdown")
}

func optimizePreRun(flags *optimizeFlags) func(*cobra.Command, []string) error {
	applyOutput := outputPreRun(&flags.CommandConfig)
	return func(cmd *cobra.Command, args []string) error {
		if err := applyOutput(cmd, args); err != nil {
			return err
		}
		if flags.ExportDir != "" {
			return common.ValidateExportFormat(flags.ExportFormat)
		}
		return nil
	}
}

// optimizeInput is a résumé paired with the job it should be optimized for
type optimizeInput struct {
	resume         types.Resume
	upload         *types.Upload
	jobDescription string
}

func runOptimize(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())

	svc, err := newServices(cfg, logger, serviceOptions{})
	if err != nil {
		return err
	}
	defer svc.session.Close()

	createInput := func(fp *common.FileProcessor, args []string) (optimizeInput, error) {
		resume, err := fp.LoadResume(args[0])
		if err != nil {
			return optimizeInput{}, err
		}
		job, err := fp.ReadFile(args[1])
		if err != nil {
			return optimizeInput{}, err
		}
		return optimizeInput{resume: resume, jobDescription: job}, nil
	}

	operation := func(ctx context.Context, in optimizeInput) (any, error) {
		if err := svc.session.Load(in.resume); err != nil {
			return nil, err
		}
		return completeOptimization(ctx, cmd, svc.session, in, optimizeConfig)
	}

	err = common.RunCommand(cmd.Context(), logger, cmd.OutOrStdout(), optimizeConfig.CommandConfig, args, createInput, operation, logOptimize(logger))
	if err != nil {
		return fmt.Errorf("failed to optimize résumé: %w", err)
	}
	logger.Info("Résumé optimization completed successfully")
	return nil
}

func logOptimize(logger *errors.Logger) common.LogDetailsFunc[optimizeInput] {
	return func(in optimizeInput, c common.CommandConfig) {
		args := []any{"job_chars", len(in.jobDescription), "output_format", c.OutputFormat}
		if in.upload != nil {
			args = append(args, "file", in.upload.FileName)
		} else {
			args = append(args, "name", in.resume.Contact.Name)
		}
		logger.Info("Starting résumé optimization", args...)
	}
}

// completeOptimization takes a session in review through the job description
// stage to results and returns what the command prints.
func completeOptimization(ctx context.Context, cmd *cobra.Command, sess *session.Controller, in optimizeInput, flags optimizeFlags) (any, error) {
	if err := sess.Continue(); err != nil {
		if v, ok := sess.Validation(); ok {
			report, _ := formatters.GlobalRegistry.Format(v, formatters.FormatText)
			_, _ = fmt.Fprintln(cmd.ErrOrStderr(), report)
		}
		return nil, err
	}

	stop := reportProgress(ctx, sess, cmd.ErrOrStderr())
	err := sess.Optimize(ctx, session.OptimizeInput{
		JobDescription: strings.TrimSpace(in.jobDescription),
		JobTitle:       flags.JobTitle,
		Company:        flags.Company,
	})
	stop()
	if err != nil {
		return nil, err
	}

	snap := sess.Snapshot()
	bundle := common.ResultBundle{
		OriginalResume:  *snap.Resume,
		OptimizedResume: *snap.Optimized,
		CoverLetter:     *snap.CoverLetter,
		JobKeywords:     snap.JobKeywords,
	}

	if flags.ExportDir != "" {
		handler := common.NewOutputHandler(cmd.OutOrStdout(), getLoggerFromContext(cmd.Context()))
		paths, err := handler.WriteExports(flags.ExportDir, bundle.Export(), flags.ExportFormat)
		if err != nil {
			return nil, err
		}
		for _, path := range paths {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", path)
		}
	}

	if flags.OutputFormat == formatters.FormatJSON {
		return bundle, nil
	}
	return bundle.OptimizedResume, nil
}
