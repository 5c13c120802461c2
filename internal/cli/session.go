package cli

import (
	"github.com/spf13/cobra"
)

// NewSessionCommand creates the session command with new/end subcommands.
func NewSessionCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage the study session",
	}
	cmd.AddCommand(newSessionNewCommand(rootOpts))
	cmd.AddCommand(newSessionEndCommand(rootOpts))
	return cmd
}

func newSessionNewCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "new",
		Short:         "Discard the current session and compose a fresh one",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			eng, items, closer, err := openEngine(ctx, rootOpts)
			if err != nil {
				return err
			}
			defer closer()

			// Supplying the catalog is what arms regeneration.
			if _, err := eng.GetDueQuestions(ctx, items); err != nil {
				return WrapExitError(ExitFailure, "failed to compose session", err)
			}
			sess, err := eng.StartNewSession(ctx)
			if err != nil {
				return WrapExitError(ExitFailure, "failed to start session", err)
			}

			out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			if rootOpts.Format == "json" {
				return out.JSON(sess)
			}
			out.Textf("new session: %d questions\n", len(sess.ItemIDs))
			return nil
		},
	}
}

func newSessionEndCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "end",
		Short:         "End the current session and show results",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			eng, items, closer, err := openEngine(ctx, rootOpts)
			if err != nil {
				return err
			}
			defer closer()

			if _, err := eng.GetDueQuestions(ctx, items); err != nil {
				return WrapExitError(ExitFailure, "failed to restore session", err)
			}
			res, err := eng.EndSession(ctx)
			if err != nil {
				return WrapExitError(ExitFailure, "failed to end session", err)
			}

			out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			if rootOpts.Format == "json" {
				return out.JSON(res)
			}
			out.Textf("session complete: %d correct, %d incorrect, %d total\n",
				res.Correct, res.Incorrect, res.Total)
			return nil
		},
	}
}
