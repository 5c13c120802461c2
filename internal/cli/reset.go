package cli

import (
	"github.com/spf13/cobra"
)

// NewResetCommand creates the reset command.
func NewResetCommand(rootOpts *RootOptions) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:           "reset",
		Short:         "Erase all review progress",
		Long:          "Erase every review record and any saved session. Irreversible.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return WrapExitError(ExitCommandError, "refusing to reset without --yes", nil)
			}

			ctx := cmd.Context()
			eng, _, closer, err := openEngine(ctx, rootOpts)
			if err != nil {
				return err
			}
			defer closer()

			if err := eng.ClearAllProgress(ctx); err != nil {
				return WrapExitError(ExitFailure, "failed to clear progress", err)
			}

			out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			if rootOpts.Format == "json" {
				return out.JSON(map[string]string{"status": "cleared"})
			}
			out.Textf("all progress cleared\n")
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the reset")
	return cmd
}
