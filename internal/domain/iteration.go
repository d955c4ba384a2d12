package domain

import (
	"fmt"
	"strings"
	"time"
)

// Iteration is team iteration metadata as resolved from the platform.
type Iteration struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Path       string     `json:"path"`
	StartDate  *time.Time `json:"startDate,omitempty"`
	FinishDate *time.Time `json:"finishDate,omitempty"`
	TimeFrame  TimeFrame  `json:"timeFrame"`
}

// Key returns a stable identifier for the iteration: the id when present,
// the path otherwise.
func (it *Iteration) Key() string {
	if it == nil {
		return ""
	}
	if it.ID != "" {
		return it.ID
	}
	return it.Path
}

// Label formats the iteration as "YYYY Mon (DD-DD)" in UTC, or "" when
// either date is missing.
func (it *Iteration) Label() string {
	if it == nil || it.StartDate == nil || it.FinishDate == nil {
		return ""
	}
	start := it.StartDate.UTC()
	end := it.FinishDate.UTC()
	return fmt.Sprintf("%d %s (%02d-%02d)",
		start.Year(), start.Format("Jan"), start.Day(), end.Day())
}

// Title returns the label suffixed with the time frame, e.g.
// "2026 Jan (05-18) (Current)".
func (it *Iteration) Title() string {
	frame := "Past"
	switch it.TimeFrame {
	case TimeFrameCurrent:
		frame = "Current"
	case TimeFrameFuture:
		frame = "Future"
	}
	return fmt.Sprintf("%s (%s)", it.Label(), frame)
}

// IterationWindow is a set of iteration paths sharing identical start and
// finish dates, used to scope a fetch across teams whose sprint naming
// differs but whose cadences align.
type IterationWindow struct {
	Paths      []string
	StartDate  *time.Time
	FinishDate *time.Time
}

// WindowsFromIterations groups iterations by (start, finish) date pair.
// Iterations without both dates are skipped. Windows come back in
// first-seen order.
func WindowsFromIterations(iterations []Iteration) []IterationWindow {
	type key struct{ start, finish string }
	index := make(map[key]int)
	var out []IterationWindow
	for i := range iterations {
		it := iterations[i]
		if it.StartDate == nil || it.FinishDate == nil || it.Path == "" {
			continue
		}
		k := key{
			start:  it.StartDate.UTC().Format("2006-01-02"),
			finish: it.FinishDate.UTC().Format("2006-01-02"),
		}
		if pos, ok := index[k]; ok {
			out[pos].Paths = append(out[pos].Paths, it.Path)
			continue
		}
		index[k] = len(out)
		out = append(out, IterationWindow{
			Paths:      []string{it.Path},
			StartDate:  it.StartDate,
			FinishDate: it.FinishDate,
		})
	}
	return out
}

// FindByAreaRoot returns the first iteration path whose root segment (the
// part before the first backslash) matches the area path's root segment,
// case-insensitively.
func FindByAreaRoot(iterationPaths []string, areaPath string) string {
	areaRoot := pathRoot(areaPath)
	if areaRoot == "" {
		return ""
	}
	for _, p := range iterationPaths {
		if strings.EqualFold(pathRoot(p), areaRoot) {
			return p
		}
	}
	return ""
}

func pathRoot(p string) string {
	root, _, _ := strings.Cut(p, `\`)
	return strings.TrimSpace(root)
}

// ProjectTeamPair identifies one team within one project.
type ProjectTeamPair struct {
	ProjectID string `json:"projectId"`
	TeamID    string `json:"teamId"`
}

// AreaGroup is the cached scoping result for one project/team pair.
// AreaPaths only contains paths equal to or nested under ProjectName.
type AreaGroup struct {
	ProjectID   string
	ProjectName string
	TeamID      string
	TeamName    string
	AreaPaths   []string
}
