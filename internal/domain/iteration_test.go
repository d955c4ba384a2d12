package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestWindowsFromIterations_GroupsByDatePair(t *testing.T) {
	iterations := []Iteration{
		{Path: `ProjA\Sprint 1`, StartDate: date(2026, 1, 5), FinishDate: date(2026, 1, 18)},
		{Path: `ProjB\Iteration 12`, StartDate: date(2026, 1, 5), FinishDate: date(2026, 1, 18)},
		{Path: `ProjA\Sprint 2`, StartDate: date(2026, 1, 19), FinishDate: date(2026, 2, 1)},
		{Path: `ProjC\No Dates`},
		{StartDate: date(2026, 1, 5), FinishDate: date(2026, 1, 18)}, // no path
	}

	windows := WindowsFromIterations(iterations)
	require.Len(t, windows, 2)
	assert.Equal(t, []string{`ProjA\Sprint 1`, `ProjB\Iteration 12`}, windows[0].Paths,
		"same cadence across projects lands in one window")
	assert.Equal(t, []string{`ProjA\Sprint 2`}, windows[1].Paths)
}

func TestWindowsFromIterations_Empty(t *testing.T) {
	assert.Empty(t, WindowsFromIterations(nil))
	assert.Empty(t, WindowsFromIterations([]Iteration{{Path: "x"}}), "dateless iterations are skipped")
}

func TestIteration_LabelAndTitle(t *testing.T) {
	it := Iteration{
		Path:       `ProjA\Sprint 1`,
		StartDate:  date(2026, 1, 5),
		FinishDate: date(2026, 1, 18),
		TimeFrame:  TimeFrameCurrent,
	}
	assert.Equal(t, "2026 Jan (05-18)", it.Label())
	assert.Equal(t, "2026 Jan (05-18) (Current)", it.Title())

	dateless := Iteration{Path: "x"}
	assert.Equal(t, "", dateless.Label())
}

func TestIteration_Key(t *testing.T) {
	assert.Equal(t, "abc", (&Iteration{ID: "abc", Path: "p"}).Key())
	assert.Equal(t, "p", (&Iteration{Path: "p"}).Key(), "path stands in for a missing id")
	assert.Equal(t, "", (*Iteration)(nil).Key())
}

func TestFindByAreaRoot(t *testing.T) {
	paths := []string{`ProjA\Sprint 1`, `ProjB\Iteration 12`}

	assert.Equal(t, `ProjB\Iteration 12`, FindByAreaRoot(paths, `ProjB\Team Blue`))
	assert.Equal(t, `ProjA\Sprint 1`, FindByAreaRoot(paths, `proja`), "root match is case-insensitive")
	assert.Equal(t, "", FindByAreaRoot(paths, `ProjC`))
	assert.Equal(t, "", FindByAreaRoot(paths, ""))
}

func TestInstance_Normalize(t *testing.T) {
	i := Instance{Name: "shared", CreatedBy: "u1"}.Normalize()
	assert.Equal(t, []string{"u1"}, i.Owners, "creator backfills an empty owner list")

	explicit := Instance{CreatedBy: "u1", Owners: []string{"u2"}}.Normalize()
	assert.Equal(t, []string{"u2"}, explicit.Owners)
}

func TestInstance_CanEdit(t *testing.T) {
	i := Instance{CreatedBy: "u1", Owners: []string{"u2"}}
	assert.True(t, i.CanEdit("u1"))
	assert.True(t, i.CanEdit("u2"))
	assert.False(t, i.CanEdit("u3"))
	assert.False(t, i.CanEdit(""))
}
