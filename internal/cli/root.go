// Package cli wires the crossplan commands. Commands stay thin: they
// resolve scope (instance, iteration window), delegate to the fetch,
// ordering, and mutation packages, and render with the formatter.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/dverna/crossplan/internal/ado"
	"github.com/dverna/crossplan/internal/domain"
	"github.com/dverna/crossplan/internal/fetch"
	"github.com/dverna/crossplan/internal/mutation"
	"github.com/dverna/crossplan/internal/prefs"
	"github.com/dverna/crossplan/internal/state"
)

// App holds references to everything CLI commands need.
type App struct {
	Client    ado.Client
	Fetch     *fetch.Pipeline
	Mutations *mutation.Pipeline
	Store     *state.Store
	Cache     *state.Cache
	Orders    *prefs.OrderRepo
	Instances *prefs.InstanceRepo
}

// NewRootCmd creates the top-level "crossplan" command and registers all
// subcommands against the provided App.
func NewRootCmd(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "crossplan",
		Short: "Cross-team backlog board for work tracking platforms",
	}

	root.AddCommand(
		newBoardCmd(app),
		newInstanceCmd(app),
		newMoveCmd(app),
		newCancelCmd(app),
		newCapacityCmd(app),
	)

	return root
}

func teamContext(pair domain.ProjectTeamPair) ado.TeamContext {
	return ado.TeamContext{ProjectID: pair.ProjectID, TeamID: pair.TeamID}
}
