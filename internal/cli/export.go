package cli

import (
	"fmt"
	"io"

	"resumeflow/internal/common"
	"resumeflow/internal/formatters"

	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export [result.json]",
	Short: "Write the documents of a saved optimization result",
	Long: `Read a result saved with "optimize --format json" (or run) and write
original-resume, optimized-resume and cover-letter as text or Markdown files.
With --doc a single document is printed to stdout instead.`,
	Args: cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return common.ValidateExportFormat(exportFormat)
	},
	RunE: runExport,
}

var (
	exportDir    string
	exportFormat string
	exportDoc    string
)

func init() {
	exportCmd.Flags().StringVar(&exportDir, "dir", ".", "Directory to write the documents into")
	exportCmd.Flags().StringVar(&exportFormat, "format", formatters.FormatMarkdown, "Document format: text or markdown")
	exportCmd.Flags().StringVar(&exportDoc, "doc", "", "Print one document: original-resume, optimized-resume or cover-letter")
}

func runExport(cmd *cobra.Command, args []string) error {
	logger := getLoggerFromContext(cmd.Context())

	bundle, err := common.NewFileProcessor(logger).LoadResultBundle(args[0])
	if err != nil {
		return err
	}
	export := bundle.Export()

	if exportDoc != "" {
		body, err := export.Render(formatters.Document(exportDoc), exportFormat)
		if err != nil {
			return err
		}
		_, err = io.WriteString(cmd.OutOrStdout(), body)
		return err
	}

	paths, err := common.NewOutputHandler(cmd.OutOrStdout(), logger).WriteExports(exportDir, export, exportFormat)
	if err != nil {
		return fmt.Errorf("failed to export documents: %w", err)
	}
	for _, path := range paths {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), path)
	}
	return nil
}
