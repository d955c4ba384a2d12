// Package scoping resolves project/team pairs to their configured area
// paths, caching results per pair for the lifetime of the resolver.
package scoping

import (
	"context"
	"strings"
	"sync"

	"github.com/dverna/crossplan/internal/ado"
	"github.com/dverna/crossplan/internal/domain"
)

// Resolver looks up and caches AreaGroups. A pair whose lookup fails caches
// an empty-path group so one misconfigured team degrades its own scope
// without failing or re-querying on every fetch.
type Resolver struct {
	client ado.Client

	mu    sync.Mutex
	cache map[string]domain.AreaGroup
}

// NewResolver creates a Resolver backed by the given platform client.
func NewResolver(client ado.Client) *Resolver {
	return &Resolver{
		client: client,
		cache:  make(map[string]domain.AreaGroup),
	}
}

// AreaGroups resolves every pair, serving cached entries where available.
// The result preserves input order.
func (r *Resolver) AreaGroups(ctx context.Context, pairs []domain.ProjectTeamPair) ([]domain.AreaGroup, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	out := make([]domain.AreaGroup, 0, len(pairs))
	for _, pair := range pairs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		key := pair.ProjectID + ":" + pair.TeamID
		r.mu.Lock()
		group, ok := r.cache[key]
		r.mu.Unlock()
		if !ok {
			group = r.resolve(ctx, pair)
			// A lookup cut short by cancellation is not a verdict on the
			// pair; caching it would pin an empty scope until restart.
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			r.mu.Lock()
			r.cache[key] = group
			r.mu.Unlock()
		}
		out = append(out, group)
	}
	return out, nil
}

// Invalidate drops the cached entry for one pair.
func (r *Resolver) Invalidate(pair domain.ProjectTeamPair) {
	r.mu.Lock()
	delete(r.cache, pair.ProjectID+":"+pair.TeamID)
	r.mu.Unlock()
}

func (r *Resolver) resolve(ctx context.Context, pair domain.ProjectTeamPair) domain.AreaGroup {
	group := domain.AreaGroup{ProjectID: pair.ProjectID, TeamID: pair.TeamID}

	project, err := r.client.GetProject(ctx, pair.ProjectID)
	if err != nil {
		return group
	}
	group.ProjectName = project.Name

	team, err := r.client.GetTeam(ctx, pair.ProjectID, pair.TeamID)
	if err != nil {
		return group
	}
	group.TeamName = team.Name

	values, err := r.client.GetTeamFieldValues(ctx, ado.TeamContext{
		Project:   project.Name,
		ProjectID: pair.ProjectID,
		Team:      team.Name,
		TeamID:    pair.TeamID,
	})
	if err != nil {
		return group
	}

	group.AreaPaths = filterAreaPaths(values, project.Name)
	return group
}

// filterAreaPaths keeps unique, cleaned paths equal to or nested under the
// project name. Paths pointing outside the project are configuration noise
// and would widen queries past the team's scope.
func filterAreaPaths(values []string, projectName string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, v := range values {
		cleaned := stripControl(strings.TrimSpace(v))
		if cleaned == "" || seen[cleaned] {
			continue
		}
		if cleaned != projectName && !strings.HasPrefix(cleaned, projectName+`\`) {
			continue
		}
		seen[cleaned] = true
		out = append(out, cleaned)
	}
	return out
}

func stripControl(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r < 0x20 || (r >= 0x7f && r <= 0x9f) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
