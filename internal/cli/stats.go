package cli

import (
	"github.com/spf13/cobra"
)

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "stats",
		Short:         "Show progress statistics",
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

			snap, err := eng.GetStats(ctx, items)
			if err != nil {
				return WrapExitError(ExitFailure, "failed to compute stats", err)
			}

			out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			if rootOpts.Format == "json" {
				return out.JSON(snap)
			}

			out.Textf("Items:        %d (%d seen)\n", snap.TotalItems, snap.ItemsSeen)
			out.Textf("Accuracy:     %.1f%%\n", snap.AccuracyRate*100)
			out.Textf("Streak:       %d days\n", snap.StreakDays)
			out.Textf("Due today:    %d\n", snap.DueToday)
			out.Textf("Boxes:\n")
			maxBox := 0
			for box := range snap.BoxDistribution {
				if box > maxBox {
					maxBox = box
				}
			}
			for box := 1; box <= maxBox; box++ {
				out.Textf("  box %d: %d\n", box, snap.BoxDistribution[box])
			}
			return nil
		},
	}
}
