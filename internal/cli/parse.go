package cli

import (
	"context"
	"fmt"

	"resumeflow/internal/common"
	"resumeflow/internal/types"

	"github.com/spf13/cobra"
)

var parseCmd = &cobra.Command{
	Use:   "parse [resume-file]",
	Short: "Parse a résumé file into structured data",
	Long: `Upload a résumé (PDF, DOCX, DOC, Markdown or plain text) to the backend
and print the structured résumé it extracts. Progress is streamed to stderr.
Use --direct to call the plain HTTP endpoint without progress updates.`,
	Args:    cobra.ExactArgs(1),
	PreRunE: outputPreRun(&parseConfig),
	RunE:    runParse,
}

var (
	parseConfig common.CommandConfig
	parseDirect bool
)

func init() {
	addOutputFlags(parseCmd, &parseConfig)
	parseCmd.Flags().BoolVar(&parseDirect, "direct", false, "Use the HTTP parse endpoint instead of the streaming channel")
}

func runParse(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())

	svc, err := newServices(cfg, logger, serviceOptions{})
	if err != nil {
		return err
	}
	defer svc.session.Close()

	readUpload := func(fp *common.FileProcessor, args []string) (types.Upload, error) {
		return fp.ReadUpload(args[0], cfg.App.MaxFileSize)
	}

	logDetails := func(upload types.Upload, c common.CommandConfig) {
		logger.Info("Starting résumé parsing",
			"file", upload.FileName,
			"mime_type", upload.MimeType,
			"size", len(upload.Content),
			"direct", parseDirect,
			"output_format", c.OutputFormat)
	}

	parseOperation := func(ctx context.Context, upload types.Upload) (types.Resume, error) {
		var result *types.ParseResult
		if parseDirect {
			var err error
			if result, err = svc.backend.ParseResume(ctx, upload); err != nil {
				return types.Resume{}, err
			}
		} else {
			stop := reportProgress(ctx, svc.session, cmd.ErrOrStderr())
			err := svc.session.Parse(ctx, upload)
			stop()
			if err != nil {
				return types.Resume{}, err
			}
			snap := svc.session.Snapshot()
			result = &types.ParseResult{Resume: *snap.Resume, ExtractedText: snap.ExtractedText, Warnings: snap.Warnings}
		}
		for _, warning := range result.Warnings {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", warning)
		}
		return result.Resume, nil
	}

	err = common.RunCommand(cmd.Context(), logger, cmd.OutOrStdout(), parseConfig, args, readUpload, parseOperation, logDetails)
	if err != nil {
		return fmt.Errorf("failed to parse résumé: %w", err)
	}
	logger.Info("Résumé parsing completed successfully")
	return nil
}
