package cli

import (
	"resumeflow/internal/common"

	"github.com/spf13/cobra"
)

// addOutputFlags registers -o/--output and --format for a command writing one document.
func addOutputFlags(cmd *cobra.Command, cmdConfig *common.CommandConfig) {
	cmd.Flags().StringVarP(&cmdConfig.OutputFile, "output", "o", "", "Output file path (default: stdout)")
	cmd.Flags().StringVar(&cmdConfig.OutputFormat, "format", "", "Output format: json, text, or markdown")

	_ = cmd.RegisterFlagCompletionFunc("format", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		cfg := getConfigFromContext(cmd.Context())
		return common.GetSupportedFormats(cfg.App.SupportedFormats), cobra.ShellCompDirectiveNoFileComp
	})
}

// outputPreRun applies the configured default format and validates the chosen one.
func outputPreRun(cmdConfig *common.CommandConfig) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg := getConfigFromContext(cmd.Context())
		if cmdConfig.OutputFormat == "" {
			cmdConfig.OutputFormat = cfg.App.DefaultFormat
		}
		return common.ValidateOutputFormat(cmdConfig.OutputFormat, cfg.App.SupportedFormats)
	}
}
