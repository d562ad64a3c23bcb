package cli

import (
	"fmt"

	"resumeflow/internal/common"
	"resumeflow/internal/draft"

	"github.com/spf13/cobra"
)

var draftCmd = &cobra.Command{
	Use:   "draft",
	Short: "Inspect or clear the builder draft",
}

var draftShowCmd = &cobra.Command{
	Use:     "show",
	Short:   "Print the saved builder draft",
	Args:    cobra.NoArgs,
	PreRunE: outputPreRun(&draftConfig),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfigFromContext(cmd.Context())
		logger := getLoggerFromContext(cmd.Context())

		store, err := draft.NewStore(cfg.Draft.Dir, logger)
		if err != nil {
			return err
		}
		resume, err := store.Load(cfg.Draft.Key)
		if err != nil {
			return err
		}
		if resume == nil {
			_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "No draft saved")
			return nil
		}
		return common.NewOutputHandler(cmd.OutOrStdout(), logger).HandleOutput(*resume, draftConfig)
	},
}

var draftClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the saved builder draft",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfigFromContext(cmd.Context())
		logger := getLoggerFromContext(cmd.Context())

		store, err := draft.NewStore(cfg.Draft.Dir, logger)
		if err != nil {
			return err
		}
		if !store.Exists(cfg.Draft.Key) {
			_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "No draft saved")
			return nil
		}
		if err := store.Clear(cfg.Draft.Key); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Removed %s\n", store.Path(cfg.Draft.Key))
		return nil
	},
}

var draftPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print where the builder draft is stored",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfigFromContext(cmd.Context())
		store, err := draft.NewStore(cfg.Draft.Dir, getLoggerFromContext(cmd.Context()))
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), store.Path(cfg.Draft.Key))
		return nil
	},
}

var draftConfig common.CommandConfig

func init() {
	addOutputFlags(draftShowCmd, &draftConfig)
	draftCmd.AddCommand(draftShowCmd)
	draftCmd.AddCommand(draftClearCmd)
	draftCmd.AddCommand(draftPathCmd)
}
