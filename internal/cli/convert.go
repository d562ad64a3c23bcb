package cli

import (
	"context"
	"fmt"

	"resumeflow/internal/common"
	"resumeflow/internal/formatters"
	"resumeflow/internal/types"

	"github.com/spf13/cobra"
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert résumés between JSON and Markdown",
}

var toMarkdownCmd = &cobra.Command{
	Use:   "to-markdown [resume.json]",
	Short: "Render a JSON résumé as Markdown",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConvert(cmd, args, formatters.FormatMarkdown)
	},
}

var fromMarkdownCmd = &cobra.Command{
	Use:   "from-markdown [resume.md]",
	Short: "Read a Markdown résumé back into JSON",
	Long: `Read a résumé written in the Markdown layout produced by to-markdown and
print it as JSON. The reader is heuristic; entries receive fresh ids.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConvert(cmd, args, formatters.FormatJSON)
	},
}

var convertOutput string

func init() {
	convertCmd.PersistentFlags().StringVarP(&convertOutput, "output", "o", "", "Output file path (default: stdout)")
	convertCmd.AddCommand(toMarkdownCmd)
	convertCmd.AddCommand(fromMarkdownCmd)
}

func runConvert(cmd *cobra.Command, args []string, format string) error {
	logger := getLoggerFromContext(cmd.Context())
	cmdConfig := common.CommandConfig{OutputFile: convertOutput, OutputFormat: format}

	loadResume := func(fp *common.FileProcessor, args []string) (types.Resume, error) {
		return fp.LoadResume(args[0])
	}
	identity := func(_ context.Context, r types.Resume) (types.Resume, error) {
		return r, nil
	}
	logDetails := func(r types.Resume, c common.CommandConfig) {
		logger.Info("Converting résumé",
			"name", r.Contact.Name,
			"experience", len(r.Experience),
			"education", len(r.Education),
			"to", c.OutputFormat)
	}

	if err := common.RunCommand(cmd.Context(), logger, cmd.OutOrStdout(), cmdConfig, args, loadResume, identity, logDetails); err != nil {
		return fmt.Errorf("failed to convert résumé: %w", err)
	}
	return nil
}
