package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dverna/crossplan/internal/mutation"
	"github.com/dverna/crossplan/internal/state"
)

func newCancelCmd(app *App) *cobra.Command {
	var project string
	var withChildren, keepParent bool

	cmd := &cobra.Command{
		Use:   "cancel <work-item-id>",
		Short: "Cancel a work item, optionally with all its descendants",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid work item id %q", args[0])
			}

			err = app.Mutations.CascadeDelete(cmd.Context(), mutation.CascadeArgs{
				ParentID:           id,
				Project:            project,
				IncludeDescendants: withChildren,
				CancelParent:       !keepParent,
				Targets: state.Targets{
					StoreSlices: []state.SliceKey{state.SliceWorkItems},
				},
			})
			if err != nil {
				return err
			}

			if withChildren {
				fmt.Fprintf(cmd.OutOrStdout(), "Cancelled #%d and its descendants\n", id)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Cancelled #%d\n", id)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&project, "project", "", "Project the item belongs to (required)")
	cmd.Flags().BoolVar(&withChildren, "with-children", false, "Also cancel every descendant")
	cmd.Flags().BoolVar(&keepParent, "keep-parent", false, "Cancel only descendants, not the item itself")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}
