package ado

import (
	"time"

	"github.com/dverna/crossplan/internal/domain"
)

// Expand selects which parts of a work item the platform returns.
type Expand string

const (
	ExpandNone      Expand = "none"
	ExpandFields    Expand = "fields"
	ExpandRelations Expand = "relations"
	ExpandAll       Expand = "all"
)

// PatchOp is one JSON-patch operation in a work item update document.
type PatchOp struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value,omitempty"`
}

// FieldOp builds a patch operation targeting a work item field.
func FieldOp(op, fieldRef string, value any) PatchOp {
	return PatchOp{Op: op, Path: "/fields/" + fieldRef, Value: value}
}

// revTestOp builds the compare-and-swap precondition on the item revision.
func revTestOp(rev int) PatchOp {
	return PatchOp{Op: "test", Path: "/rev", Value: rev}
}

// IDPair is one source/target row from a link query.
type IDPair struct {
	SourceID int
	TargetID int
}

// Project is the subset of project metadata the scoping resolver needs.
type Project struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Team is the subset of team metadata the scoping resolver needs.
type Team struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TeamContext addresses team-scoped settings endpoints.
type TeamContext struct {
	Project   string
	ProjectID string
	Team      string
	TeamID    string
}

// Wire shapes.

type workItemDTO struct {
	ID        int             `json:"id"`
	Rev       int             `json:"rev"`
	Fields    map[string]any  `json:"fields"`
	Relations []relationDTO   `json:"relations,omitempty"`
}

type relationDTO struct {
	Rel string `json:"rel"`
	URL string `json:"url"`
}

func (d *workItemDTO) toDomain() *domain.WorkItem {
	w := &domain.WorkItem{
		ID:     d.ID,
		Rev:    d.Rev,
		Fields: domain.FieldMap(d.Fields),
	}
	if w.Fields == nil {
		w.Fields = domain.FieldMap{}
	}
	for _, r := range d.Relations {
		w.Relations = append(w.Relations, domain.Relation{
			Kind: domain.RelationKind(r.Rel),
			URL:  r.URL,
		})
	}
	return w
}

type workItemBatchRequest struct {
	IDs         []int    `json:"ids"`
	Fields      []string `json:"fields,omitempty"`
	Expand      string   `json:"$expand,omitempty"`
	ErrorPolicy string   `json:"errorPolicy"`
}

type workItemBatchResponse struct {
	Value []workItemDTO `json:"value"`
}

type wiqlRequest struct {
	Query string `json:"query"`
}

type wiqlResponse struct {
	WorkItems []struct {
		ID int `json:"id"`
	} `json:"workItems"`
	WorkItemRelations []struct {
		Source *struct {
			ID int `json:"id"`
		} `json:"source"`
		Target *struct {
			ID int `json:"id"`
		} `json:"target"`
	} `json:"workItemRelations"`
}

type teamFieldValuesResponse struct {
	DefaultValue string `json:"defaultValue"`
	Values       []struct {
		Value           string `json:"value"`
		IncludeChildren bool   `json:"includeChildren"`
	} `json:"values"`
}

// MemberCapacity is one member's capacity record for a team iteration:
// activity allocations in hours per day plus scheduled days off.
type MemberCapacity struct {
	Member     CapacityMember     `json:"teamMember"`
	Activities []CapacityActivity `json:"activities"`
	DaysOff    []DateRange        `json:"daysOff"`
}

type CapacityMember struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	UniqueName  string `json:"uniqueName"`
	ImageURL    string `json:"imageUrl"`
}

type CapacityActivity struct {
	Name           string  `json:"name"`
	CapacityPerDay float64 `json:"capacityPerDay"`
}

// DateRange is an inclusive date span.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type capacitiesResponse struct {
	Value []MemberCapacity `json:"value"`
}

type iterationsResponse struct {
	Value []struct {
		ID         string `json:"id"`
		Name       string `json:"name"`
		Path       string `json:"path"`
		Attributes struct {
			StartDate  *time.Time `json:"startDate"`
			FinishDate *time.Time `json:"finishDate"`
			TimeFrame  string     `json:"timeFrame"`
		} `json:"attributes"`
	} `json:"value"`
}
