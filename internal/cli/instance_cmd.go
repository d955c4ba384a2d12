package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dverna/crossplan/internal/cli/formatter"
	"github.com/dverna/crossplan/internal/domain"
	"github.com/dverna/crossplan/internal/prefs"
)

func newInstanceCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "instance",
		Short: "Manage shared board instances",
	}

	cmd.AddCommand(
		newInstanceListCmd(app),
		newInstanceCreateCmd(app),
		newInstanceDeleteCmd(app),
		newInstanceSetDefaultCmd(app),
	)

	return cmd
}

func newInstanceListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List board instances",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			instances, err := app.Instances.LoadAll(ctx)
			if err != nil {
				return fmt.Errorf("loading instances: %w", err)
			}
			def, err := app.Instances.LoadDefault(ctx)
			if err != nil {
				return fmt.Errorf("loading default instance: %w", err)
			}

			if len(instances) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), formatter.Dim("No instances yet. Create one with: crossplan instance create"))
				return nil
			}

			rows := make([][]string, 0, len(instances))
			for _, inst := range instances {
				marker := ""
				if def != nil && def.ID == inst.ID {
					marker = formatter.StyleGreen.Render("✔")
				}
				rows = append(rows, []string{
					inst.ID,
					inst.Name,
					fmt.Sprintf("%d", len(inst.ProjectTeamPairs)),
					strings.Join(inst.Owners, ", "),
					marker,
				})
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.RenderTable(
				[]string{"ID", "NAME", "TEAMS", "OWNERS", "DEFAULT"}, rows))
			return nil
		},
	}
}

func newInstanceCreateCmd(app *App) *cobra.Command {
	var name, description, createdBy string
	var pairFlags []string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a board instance",
		RunE: func(cmd *cobra.Command, args []string) error {
			pairs, err := parsePairs(pairFlags)
			if err != nil {
				return err
			}

			inst, err := app.Instances.Create(cmd.Context(), prefs.CreateInstanceInput{
				Name:             name,
				Description:      description,
				CreatedBy:        createdBy,
				ProjectTeamPairs: pairs,
			})
			if err != nil {
				return fmt.Errorf("creating instance: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created instance %s (%s)\n",
				formatter.Bold(inst.Name), formatter.Dim(inst.ID))
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Instance name (required)")
	cmd.Flags().StringVar(&description, "description", "", "Instance description")
	cmd.Flags().StringVar(&createdBy, "created-by", "", "Creator user id")
	cmd.Flags().StringArrayVar(&pairFlags, "team", nil, "Project/team pair as projectId:teamId (repeatable)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newInstanceDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <instance-id>",
		Short: "Delete a board instance and its saved ordering",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Instances.Delete(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("deleting instance %q: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted instance %s\n", args[0])
			return nil
		},
	}
}

func newInstanceSetDefaultCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "set-default [instance-id]",
		Short: "Set (or with no argument, clear) the default instance",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if len(args) == 0 {
				if err := app.Instances.SetDefault(ctx, nil); err != nil {
					return fmt.Errorf("clearing default instance: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Cleared default instance")
				return nil
			}

			inst, err := app.Instances.LoadByID(ctx, args[0])
			if err != nil {
				return fmt.Errorf("loading instance %q: %w", args[0], err)
			}
			if err := app.Instances.SetDefault(ctx, inst); err != nil {
				return fmt.Errorf("setting default instance: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Default instance is now %s\n", formatter.Bold(inst.Name))
			return nil
		},
	}
}

// parsePairs parses repeated projectId:teamId flags.
func parsePairs(flags []string) ([]domain.ProjectTeamPair, error) {
	pairs := make([]domain.ProjectTeamPair, 0, len(flags))
	for _, f := range flags {
		project, team, ok := strings.Cut(f, ":")
		if !ok || project == "" || team == "" {
			return nil, fmt.Errorf("invalid team flag %q: expected projectId:teamId", f)
		}
		pairs = append(pairs, domain.ProjectTeamPair{ProjectID: project, TeamID: team})
	}
	return pairs, nil
}
