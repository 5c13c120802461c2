package cli

import (
	"github.com/spf13/cobra"
)

// NewProgressCommand creates the progress command.
func NewProgressCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "progress <item-id>",
		Short:         "Show an item's review record",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			eng, _, closer, err := openEngine(ctx, rootOpts)
			if err != nil {
				return err
			}
			defer closer()

			rec, ok, err := eng.GetQuestionProgress(ctx, args[0])
			if err != nil {
				return WrapExitError(ExitFailure, "failed to read progress", err)
			}

			out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			if !ok {
				if rootOpts.Format == "json" {
					return out.JSON(nil)
				}
				out.Textf("%s: never answered\n", args[0])
				return nil
			}

			if rootOpts.Format == "json" {
				return out.JSON(map[string]any{
					"itemId":         rec.ItemID,
					"currentBox":     rec.Box,
					"nextReviewDate": rec.NextReview.Format("2006-01-02"),
					"timesCorrect":   rec.TimesCorrect,
					"timesIncorrect": rec.TimesIncorrect,
				})
			}
			out.Textf("%s: box %d, next review %s, %d correct / %d incorrect\n",
				rec.ItemID, rec.Box, rec.NextReview.Format("2006-01-02"),
				rec.TimesCorrect, rec.TimesIncorrect)
			return nil
		},
	}
}
