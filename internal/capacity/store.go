package capacity

import (
	"sync"

	"github.com/google/uuid"
)

// Entry is one validated per-day capacity value keyed by an entry id
// (typically member id or member:activity).
type Entry struct {
	Input string
	Value float64
	Err   error
}

// Store holds capacity planning state per team. Safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	perDay  map[string]Entry
	members map[string][]Member
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		perDay:  make(map[string]Entry),
		members: make(map[string][]Member),
	}
}

// UpdatePerDay records a raw input value for an entry, validating it
// locally. Invalid input keeps the raw text and the error but a zero
// value, so a rejected entry never flows into totals.
func (s *Store) UpdatePerDay(entryID, input string) {
	err := ValidateInput(input)
	value := 0.0
	if err == nil {
		value = ParseValue(input)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.perDay[entryID] = Entry{Input: input, Value: value, Err: err}
}

// RemovePerDay drops an entry.
func (s *Store) RemovePerDay(entryID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.perDay, entryID)
}

// Values returns the valid per-day values, skipping entries with a
// validation error.
func (s *Store) Values() map[string]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]float64, len(s.perDay))
	for id, e := range s.perDay {
		if e.Err == nil {
			out[id] = e.Value
		}
	}
	return out
}

// Entry returns the recorded entry for id.
func (s *Store) Entry(entryID string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.perDay[entryID]
	return e, ok
}

// AddMembers appends members to a team, skipping descriptors already
// present.
func (s *Store) AddMembers(teamKey string, newMembers []Member) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing := s.members[teamKey]
	seen := make(map[string]bool, len(existing))
	for _, m := range existing {
		seen[m.Descriptor] = true
	}
	for _, m := range newMembers {
		if seen[m.Descriptor] {
			continue
		}
		seen[m.Descriptor] = true
		existing = append(existing, m)
	}
	s.members[teamKey] = existing
}

// SetMembers replaces a team's member list.
func (s *Store) SetMembers(teamKey string, list []Member) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[teamKey] = list
}

// Members returns a team's member list.
func (s *Store) Members(teamKey string) []Member {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.members[teamKey]
}

// RemoveMember drops one member from a team.
func (s *Store) RemoveMember(teamKey, memberID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing := s.members[teamKey]
	kept := make([]Member, 0, len(existing))
	for _, m := range existing {
		if m.ID != memberID {
			kept = append(kept, m)
		}
	}
	s.members[teamKey] = kept
}

// UpdateMember applies fn to one member in place.
func (s *Store) UpdateMember(teamKey, memberID string, fn func(*Member)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing := s.members[teamKey]
	for i := range existing {
		if existing[i].ID == memberID {
			fn(&existing[i])
		}
	}
}

// AddActivity appends an empty activity entry to a member and returns its
// generated id.
func (s *Store) AddActivity(teamKey, memberID string) string {
	id := uuid.New().String()
	s.UpdateMember(teamKey, memberID, func(m *Member) {
		m.Activities = append(m.Activities, ActivityEntry{ID: id})
	})
	return id
}

// RemoveActivity drops one activity entry from a member.
func (s *Store) RemoveActivity(teamKey, memberID, activityID string) {
	s.UpdateMember(teamKey, memberID, func(m *Member) {
		kept := make([]ActivityEntry, 0, len(m.Activities))
		for _, a := range m.Activities {
			if a.ID != activityID {
				kept = append(kept, a)
			}
		}
		m.Activities = kept
	})
}

// ClearAll resets all planning state.
func (s *Store) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.perDay = make(map[string]Entry)
	s.members = make(map[string][]Member)
}
