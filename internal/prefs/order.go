package prefs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dverna/crossplan/internal/domain"
)

// orderMap is the persisted shape for ordering state: scope key (instance
// id or personal fallback) to order records.
type orderMap map[string][]domain.OrderRecord

// OrderRepo persists backlog and task order maps. Shared-instance orders
// live in the shared scope so owners and viewers see the same rows; the
// personal fallback keys are user-scoped.
type OrderRepo struct {
	kv *KVStore
}

// NewOrderRepo creates an OrderRepo over the given KVStore.
func NewOrderRepo(kv *KVStore) *OrderRepo {
	return &OrderRepo{kv: kv}
}

// LoadBacklogOrder loads the backlog order rows for the instance, falling
// back to the personal board when instanceID is empty.
func (r *OrderRepo) LoadBacklogOrder(ctx context.Context, instanceID string) ([]domain.OrderRecord, error) {
	return r.load(ctx, KeyBacklogOrder, BacklogScopeKey(instanceID), scopeFor(instanceID))
}

// SaveBacklogOrder persists backlog order rows for the instance. Saving an
// empty row set for a scope with no stored entry is skipped: there is
// nothing to clear and no reason for a write.
func (r *OrderRepo) SaveBacklogOrder(ctx context.Context, instanceID string, rows []domain.OrderRecord) error {
	return r.save(ctx, KeyBacklogOrder, BacklogScopeKey(instanceID), scopeFor(instanceID), rows)
}

// LoadTaskOrder loads the task order rows for the instance, falling back
// to the personal board when instanceID is empty.
func (r *OrderRepo) LoadTaskOrder(ctx context.Context, instanceID string) ([]domain.OrderRecord, error) {
	return r.load(ctx, KeyTaskOrder, TaskScopeKey(instanceID), scopeFor(instanceID))
}

// SaveTaskOrder persists task order rows for the instance.
func (r *OrderRepo) SaveTaskOrder(ctx context.Context, instanceID string, rows []domain.OrderRecord) error {
	return r.save(ctx, KeyTaskOrder, TaskScopeKey(instanceID), scopeFor(instanceID), rows)
}

// RemoveInstanceOrders strips an instance's entries from both order maps.
// Called when the instance itself is deleted.
func (r *OrderRepo) RemoveInstanceOrders(ctx context.Context, instanceID string) error {
	if instanceID == "" {
		return nil
	}
	for _, key := range []string{KeyBacklogOrder, KeyTaskOrder} {
		stored, ok, err := r.kv.Load(ctx, key, ScopeShared)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		m, legacy := decodeOrderMap(stored)
		if legacy {
			// Legacy flat list carries no per-instance entries.
			continue
		}
		if _, present := m[instanceID]; !present {
			continue
		}
		delete(m, instanceID)
		if err := r.kv.Save(ctx, key, ScopeShared, m); err != nil {
			return err
		}
	}
	return nil
}

func (r *OrderRepo) load(ctx context.Context, key, scopeKey string, scope Scope) ([]domain.OrderRecord, error) {
	stored, ok, err := r.kv.Load(ctx, key, scope)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	m, legacy := decodeOrderMap(stored)
	if legacy {
		// Legacy shape: a plain array predating scoped maps. Treat it as
		// the personal board's rows.
		var rows []domain.OrderRecord
		if err := json.Unmarshal(stored, &rows); err != nil {
			return nil, fmt.Errorf("decoding legacy order rows under %s: %w", key, err)
		}
		if scopeKey == PersonalBacklogKey || scopeKey == PersonalTaskKey {
			return rows, nil
		}
		return nil, nil
	}
	return m[scopeKey], nil
}

func (r *OrderRepo) save(ctx context.Context, key, scopeKey string, scope Scope, rows []domain.OrderRecord) error {
	stored, ok, err := r.kv.Load(ctx, key, scope)
	if err != nil {
		return err
	}

	var m orderMap
	if ok {
		decoded, legacy := decodeOrderMap(stored)
		if legacy {
			// Upgrade in place: the legacy array becomes this save's
			// single map entry.
			m = orderMap{}
		} else {
			m = decoded
		}
	} else {
		if len(rows) == 0 {
			// Nothing stored and nothing to store: skip the round trip.
			return nil
		}
		m = orderMap{}
	}

	m[scopeKey] = rows
	return r.kv.Save(ctx, key, scope, m)
}

// decodeOrderMap tries the scoped-map shape first; legacy reports that the
// value is the old flat-array shape instead.
func decodeOrderMap(raw json.RawMessage) (m orderMap, legacy bool) {
	m = orderMap{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, true
	}
	return m, false
}

// scopeFor picks the preference scope: shared-instance state is visible to
// every owner and viewer, personal state only to its user.
func scopeFor(instanceID string) Scope {
	if instanceID == "" {
		return ScopeUser
	}
	return ScopeShared
}
