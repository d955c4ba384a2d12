// Package capacity tracks per-member capacity planning state: daily
// capacity entries validated locally before any remote write, and a
// per-team member registry with activity assignments.
package capacity

import (
	"errors"
	"strconv"
	"strings"
)

var (
	ErrNotANumber = errors.New("value should be a number")
	ErrNegative   = errors.New("value can't be negative")
)

// ValidateInput checks a raw capacity string. Empty input is valid (it
// means zero); anything non-numeric or negative is rejected before a
// remote call ever sees it.
func ValidateInput(value string) error {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	num, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return ErrNotANumber
	}
	if num < 0 {
		return ErrNegative
	}
	return nil
}

// ParseValue parses a raw capacity string into a non-negative number.
// Invalid or empty input parses to 0.
func ParseValue(value string) float64 {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0
	}
	num, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || num < 0 {
		return 0
	}
	return num
}

// ActivityEntry is one activity assignment on a member.
type ActivityEntry struct {
	ID       string
	Activity string
}

// Member is one team member's capacity planning record.
type Member struct {
	ID          string
	Descriptor  string
	DisplayName string
	UniqueName  string
	ImageURL    string
	DaysOff     float64
	Activities  []ActivityEntry
	ProjectID   string
	TeamID      string
}

// AvailableDays subtracts a member's days off from the iteration length,
// floored at zero.
func AvailableDays(iterationDays float64, m Member) float64 {
	days := iterationDays - m.DaysOff
	if days < 0 {
		return 0
	}
	return days
}

// TotalCapacity aggregates capacity across members for one iteration:
// each member contributes perDay[member.ID] multiplied by their available
// days. Members without an entry contribute nothing.
func TotalCapacity(iterationDays float64, members []Member, perDay map[string]float64) float64 {
	var total float64
	for _, m := range members {
		rate, ok := perDay[m.ID]
		if !ok {
			continue
		}
		total += rate * AvailableDays(iterationDays, m)
	}
	return total
}
