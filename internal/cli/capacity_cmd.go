package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dverna/crossplan/internal/ado"
	"github.com/dverna/crossplan/internal/capacity"
	"github.com/dverna/crossplan/internal/cli/formatter"
	"github.com/dverna/crossplan/internal/domain"
)

// scopedIteration ties one team iteration to the pair it was listed for, so
// capacity records resolve against the right team.
type scopedIteration struct {
	pair      domain.ProjectTeamPair
	iteration domain.Iteration
}

func newCapacityCmd(app *App) *cobra.Command {
	var instanceID, timeframe string
	var overrides []string

	cmd := &cobra.Command{
		Use:   "capacity",
		Short: "Show per-member capacity totals for the selected iteration window",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			inst, err := resolveInstance(ctx, app, instanceID)
			if err != nil {
				return err
			}
			if len(inst.ProjectTeamPairs) == 0 {
				return fmt.Errorf("instance %q has no project/team pairs configured", inst.Name)
			}

			scoped, err := scopedIterations(ctx, app, inst.ProjectTeamPairs, timeframe)
			if err != nil {
				return err
			}
			if len(scoped) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), formatter.Dim("No iterations in the selected time frame."))
				return nil
			}

			planner := capacity.NewStore()
			for _, s := range scoped {
				if err := loadIterationCapacity(ctx, app.Client, planner, s); err != nil {
					return err
				}
			}
			if err := applyOverrides(planner, inst.ProjectTeamPairs, overrides); err != nil {
				return err
			}

			for _, s := range scoped {
				renderCapacity(cmd, planner, s)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&instanceID, "instance", "", "Board instance id (default: your default instance)")
	cmd.Flags().StringVar(&timeframe, "timeframe", string(domain.TimeFrameCurrent), "Iteration time frame: past, current, or future")
	cmd.Flags().StringArrayVar(&overrides, "set", nil, "Override a member's per-day capacity locally, e.g. --set user@example.com=6")
	return cmd
}

// scopedIterations lists each pair's iterations in the requested time frame,
// keeping the pair association that collectIterations flattens away.
func scopedIterations(ctx context.Context, app *App, pairs []domain.ProjectTeamPair, timeframe string) ([]scopedIteration, error) {
	frame := domain.TimeFrame(strings.ToLower(timeframe))
	var out []scopedIteration
	for _, pair := range pairs {
		iterations, err := app.Client.GetTeamIterations(ctx, teamContext(pair))
		if err != nil {
			return nil, fmt.Errorf("listing iterations for %s/%s: %w", pair.ProjectID, pair.TeamID, err)
		}
		for _, it := range iterations {
			if it.TimeFrame != frame {
				continue
			}
			out = append(out, scopedIteration{pair: pair, iteration: it})
		}
	}
	return out, nil
}

// loadIterationCapacity pulls the platform capacity records for one scoped
// iteration into the planner: members registered under their team key, the
// summed activity allocation recorded as the per-day entry.
func loadIterationCapacity(ctx context.Context, client ado.Client, planner *capacity.Store, s scopedIteration) error {
	records, err := client.GetCapacities(ctx, teamContext(s.pair), s.iteration.ID)
	if err != nil {
		return fmt.Errorf("loading capacities for %s/%s: %w", s.pair.ProjectID, s.pair.TeamID, err)
	}

	members := make([]capacity.Member, 0, len(records))
	for _, rec := range records {
		m, perDay := memberFromCapacity(s.pair, rec)
		members = append(members, m)
		planner.UpdatePerDay(m.ID, strconv.FormatFloat(perDay, 'f', -1, 64))
	}
	planner.AddMembers(teamKey(s.pair), members)
	return nil
}

// memberFromCapacity flattens one capacity record into the planning model,
// returning the member and their summed per-day allocation.
func memberFromCapacity(pair domain.ProjectTeamPair, rec ado.MemberCapacity) (capacity.Member, float64) {
	m := capacity.Member{
		ID:          rec.Member.ID,
		Descriptor:  rec.Member.UniqueName,
		DisplayName: rec.Member.DisplayName,
		UniqueName:  rec.Member.UniqueName,
		ImageURL:    rec.Member.ImageURL,
		DaysOff:     daysOffTotal(rec.DaysOff),
		ProjectID:   pair.ProjectID,
		TeamID:      pair.TeamID,
	}
	var perDay float64
	for _, a := range rec.Activities {
		m.Activities = append(m.Activities, capacity.ActivityEntry{
			ID:       rec.Member.ID + ":" + a.Name,
			Activity: a.Name,
		})
		perDay += a.CapacityPerDay
	}
	return m, perDay
}

// daysOffTotal sums inclusive date ranges into whole days. Inverted ranges
// count as zero.
func daysOffTotal(ranges []ado.DateRange) float64 {
	var total float64
	for _, r := range ranges {
		if r.End.Before(r.Start) {
			continue
		}
		total += r.End.Sub(r.Start).Hours()/24 + 1
	}
	return total
}

// applyOverrides records local per-day overrides given as
// "uniqueName=value". The value goes through the planner's validation, so a
// bad number surfaces in the table instead of flowing into totals.
func applyOverrides(planner *capacity.Store, pairs []domain.ProjectTeamPair, overrides []string) error {
	for _, raw := range overrides {
		name, value, ok := strings.Cut(raw, "=")
		if !ok {
			return fmt.Errorf("invalid --set %q, expected name=value", raw)
		}
		member, found := findMember(planner, pairs, strings.TrimSpace(name))
		if !found {
			return fmt.Errorf("no member %q in the selected teams", name)
		}
		planner.UpdatePerDay(member.ID, value)
	}
	return nil
}

func findMember(planner *capacity.Store, pairs []domain.ProjectTeamPair, name string) (capacity.Member, bool) {
	for _, pair := range pairs {
		for _, m := range planner.Members(teamKey(pair)) {
			if strings.EqualFold(m.UniqueName, name) {
				return m, true
			}
		}
	}
	return capacity.Member{}, false
}

func renderCapacity(cmd *cobra.Command, planner *capacity.Store, s scopedIteration) {
	out := cmd.OutOrStdout()
	it := s.iteration
	days := iterationDays(it)
	members := planner.Members(teamKey(s.pair))

	fmt.Fprintln(out, formatter.Header(fmt.Sprintf("%s  %s/%s", it.Title(), s.pair.ProjectID, s.pair.TeamID)))
	if len(members) == 0 {
		fmt.Fprintln(out, formatter.Dim("No capacity configured."))
		fmt.Fprintln(out)
		return
	}

	rows := make([][]string, 0, len(members))
	for _, m := range members {
		rows = append(rows, []string{
			m.DisplayName,
			perDayCell(planner, m.ID),
			formatDays(m.DaysOff),
			formatDays(capacity.AvailableDays(days, m)),
		})
	}
	fmt.Fprint(out, formatter.RenderTable(
		[]string{"MEMBER", "PER DAY", "DAYS OFF", "AVAILABLE"}, rows))

	total := capacity.TotalCapacity(days, members, planner.Values())
	fmt.Fprintf(out, "%s %sh over %s days\n\n",
		formatter.Bold("Total:"), formatDays(total), formatDays(days))
}

// perDayCell shows the recorded entry, flagging rejected input instead of
// silently zeroing it.
func perDayCell(planner *capacity.Store, memberID string) string {
	e, ok := planner.Entry(memberID)
	if !ok {
		return formatter.Dim("-")
	}
	if e.Err != nil {
		return fmt.Sprintf("%s (%s)", e.Input, formatter.Dim(e.Err.Error()))
	}
	return formatDays(e.Value)
}

// iterationDays is the inclusive calendar length of the iteration, zero when
// either date is missing.
func iterationDays(it domain.Iteration) float64 {
	if it.StartDate == nil || it.FinishDate == nil {
		return 0
	}
	start := it.StartDate.UTC()
	finish := it.FinishDate.UTC()
	if finish.Before(start) {
		return 0
	}
	return finish.Sub(start).Hours()/24 + 1
}

func formatDays(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func teamKey(pair domain.ProjectTeamPair) string {
	return pair.ProjectID + "/" + pair.TeamID
}