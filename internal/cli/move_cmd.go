package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dverna/crossplan/internal/mutation"
	"github.com/dverna/crossplan/internal/state"
)

func newMoveCmd(app *App) *cobra.Command {
	var project, iteration string

	cmd := &cobra.Command{
		Use:   "move <work-item-id>",
		Short: "Move a work item to another iteration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid work item id %q", args[0])
			}

			err = app.Mutations.MoveIteration(cmd.Context(), mutation.MoveArgs{
				ID:            id,
				Project:       project,
				IterationPath: iteration,
				Targets: state.Targets{
					StoreSlices: []state.SliceKey{state.SliceWorkItems},
				},
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Moved #%d to %s\n", id, iteration)
			return nil
		},
	}

	cmd.Flags().StringVar(&project, "project", "", "Project the item belongs to (required)")
	cmd.Flags().StringVar(&iteration, "iteration", "", "Target iteration path (required)")
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("iteration")
	return cmd
}
