// Package wiql builds structured work item query strings. Everything here
// is pure: inputs are sanitized and escaped, never executed.
package wiql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dverna/crossplan/internal/domain"
)

// QueryPair holds the two queries a scoped fetch needs: one for
// backlog-level parents (backlog items and bugs) and one for tasks.
type QueryPair struct {
	ParentsQuery string
	TasksQuery   string
}

// ForIterations builds the parent and task queries for one or more
// iteration paths, optionally restricted to the given area path roots.
// Removed items are always excluded. A single path uses an exact
// iteration-path match; multiple paths use UNDER clauses joined by OR.
func ForIterations(iterationPaths, areaPaths []string) QueryPair {
	areaClause := underOrClause("[System.AreaPath]", areaPaths)

	var iterClause string
	switch cleaned := sanitizeAll(iterationPaths); len(cleaned) {
	case 0:
	case 1:
		iterClause = fmt.Sprintf("[System.IterationPath] = '%s'", escape(cleaned[0]))
	default:
		iterClause = underOrClause("[System.IterationPath]", cleaned)
	}

	parents := &strings.Builder{}
	parents.WriteString("SELECT [System.Id] FROM WorkItems WHERE ")
	fmt.Fprintf(parents, "[System.WorkItemType] IN ('%s','%s') AND [System.State] <> '%s'",
		domain.TypeBacklog, domain.TypeBug, domain.StateRemoved)

	tasks := &strings.Builder{}
	tasks.WriteString("SELECT [System.Id] FROM WorkItems WHERE ")
	fmt.Fprintf(tasks, "[System.WorkItemType] = '%s' AND [System.State] <> '%s'",
		domain.TypeTask, domain.StateRemoved)

	for _, b := range []*strings.Builder{parents, tasks} {
		if iterClause != "" {
			b.WriteString(" AND " + iterClause)
		}
		if areaClause != "" {
			b.WriteString(" AND " + areaClause)
		}
	}

	return QueryPair{ParentsQuery: parents.String(), TasksQuery: tasks.String()}
}

// ForParentLinks builds a recursive link query resolving the Epic/Feature
// ancestors of the given backlog-level ids. Returns "" when ids is empty.
func ForParentLinks(ids []int) string {
	if len(ids) == 0 {
		return ""
	}

	var idsClause string
	if len(ids) == 1 {
		idsClause = "[Target].[System.Id] = " + strconv.Itoa(ids[0])
	} else {
		parts := make([]string, len(ids))
		for i, id := range ids {
			parts[i] = strconv.Itoa(id)
		}
		idsClause = "[Target].[System.Id] IN (" + strings.Join(parts, ",") + ")"
	}

	return fmt.Sprintf(`SELECT [Source].[System.Id] FROM WorkItemLinks WHERE `+
		`([Source].[System.WorkItemType] IN ('%s','%s') AND [Source].[System.State] <> '%s') `+
		`AND ([System.Links.LinkType] = '%s') `+
		`AND ([Target].[System.WorkItemType] IN ('%s','%s') AND [Target].[System.State] <> '%s' AND %s) `+
		`MODE (Recursive)`,
		domain.TypeEpic, domain.TypeFeature, domain.StateRemoved,
		string(domain.RelHierarchyForward),
		domain.TypeBacklog, domain.TypeBug, domain.StateRemoved,
		idsClause)
}

func underOrClause(field string, paths []string) string {
	cleaned := sanitizeAll(paths)
	if len(cleaned) == 0 {
		return ""
	}
	parts := make([]string, len(cleaned))
	for i, p := range cleaned {
		parts[i] = fmt.Sprintf("%s UNDER '%s'", field, escape(p))
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}

// escape doubles single quotes and backslashes for safe embedding in a
// WIQL string literal.
func escape(s string) string {
	s = strings.ReplaceAll(s, "'", "''")
	return strings.ReplaceAll(s, `\`, `\\`)
}

// sanitize strips control characters and trims whitespace.
func sanitize(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r < 0x20 || (r >= 0x7f && r <= 0x9f) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}

func sanitizeAll(paths []string) []string {
	var out []string
	for _, p := range paths {
		if cleaned := sanitize(p); cleaned != "" {
			out = append(out, cleaned)
		}
	}
	return out
}
