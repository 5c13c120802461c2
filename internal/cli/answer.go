package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quizdrill/drill/internal/engine"
)

// NewAnswerCommand creates the answer command.
func NewAnswerCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "answer <item-id> <correct|wrong>",
		Short: "Record an answer for a question",
		Long: `Record an answer. A correct answer promotes the item one box
(capped at the top box); a wrong answer demotes it to box 1.

Example:
  drill answer go-slices-01 correct`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			var correct bool
			switch args[1] {
			case "correct":
				correct = true
			case "wrong":
				correct = false
			default:
				return WrapExitError(ExitCommandError,
					fmt.Sprintf("verdict must be 'correct' or 'wrong', got %q", args[1]), nil)
			}

			ctx := cmd.Context()
			eng, items, closer, err := openEngine(ctx, rootOpts)
			if err != nil {
				return err
			}
			defer closer()

			// Establish the session so the submission lands in it.
			if _, err := eng.GetDueQuestions(ctx, items); err != nil {
				return WrapExitError(ExitFailure, "failed to compose session", err)
			}

			if err := eng.ProcessAnswer(ctx, id, correct); err != nil {
				if engine.IsUnknownItem(err) {
					return WrapExitError(ExitCommandError, "unknown item", err)
				}
				return WrapExitError(ExitFailure, "failed to record answer", err)
			}

			rec, _, err := eng.GetQuestionProgress(ctx, id)
			if err != nil {
				return WrapExitError(ExitFailure, "failed to read progress", err)
			}

			out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			if rootOpts.Format == "json" {
				return out.JSON(map[string]any{
					"itemId":     id,
					"correct":    correct,
					"box":        rec.Box,
					"nextReview": rec.NextReview.Format("2006-01-02"),
				})
			}
			out.Textf("%s: box %d, next review %s\n", id, rec.Box, rec.NextReview.Format("2006-01-02"))
			return nil
		},
	}
}
