package cli

import (
	"github.com/spf13/cobra"
)

// NewDueCommand creates the due command.
func NewDueCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "due",
		Short: "Show the current session's questions",
		Long: `Show the questions of the current study session, composing a new
session from due items when no saved session restores.

Example:
  drill due --catalog ./catalog.yaml --db ./drill.db`,
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

			due, err := eng.GetDueQuestions(ctx, items)
			if err != nil {
				return WrapExitError(ExitFailure, "failed to compose session", err)
			}

			out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			if rootOpts.Format == "json" {
				return out.JSON(due)
			}
			out.Textf("%d questions due\n", len(due))
			for i, it := range due {
				out.Textf("%2d. [%s] %s\n", i+1, it.Topic, it.ID)
			}
			return nil
		},
	}
}
