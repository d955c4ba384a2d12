package prefs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/dverna/crossplan/internal/db"
	"github.com/dverna/crossplan/internal/domain"
)

// ErrInstanceNotFound indicates the requested instance id is not in the
// registry.
var ErrInstanceNotFound = errors.New("instance not found")

// instanceMap is the persisted registry shape: instance id to record.
type instanceMap map[string]domain.Instance

// defaultInstancePref is the persisted default-instance choice. It is a
// partial record: only the id matters, stored as an empty object (never
// null) when no default is set.
type defaultInstancePref struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

// CreateInstanceInput carries the caller-supplied fields for a new
// instance.
type CreateInstanceInput struct {
	Name             string
	Description      string
	Org              string
	CreatedBy        string
	Owners           []string
	ProjectTeamPairs []domain.ProjectTeamPair
}

// UpdateInstanceInput is a partial update: nil fields keep their current
// value.
type UpdateInstanceInput struct {
	ID               string
	Name             *string
	Description      *string
	Owners           []string
	ProjectTeamPairs []domain.ProjectTeamPair
	IsDefault        *bool
}

// InstanceRepo persists the shared instance registry and the per-user
// default-instance preference.
type InstanceRepo struct {
	kv     *KVStore
	orders *OrderRepo
	uow    db.UnitOfWork
	now    func() time.Time
}

// NewInstanceRepo creates an InstanceRepo. The order repo is used to strip
// a deleted instance's ordering state; the unit of work makes that cleanup
// atomic with the registry write.
func NewInstanceRepo(kv *KVStore, orders *OrderRepo, uow db.UnitOfWork) *InstanceRepo {
	return &InstanceRepo{kv: kv, orders: orders, uow: uow, now: time.Now}
}

// LoadAll returns every stored instance, sorted by name for stable
// listings.
func (r *InstanceRepo) LoadAll(ctx context.Context) ([]domain.Instance, error) {
	m, err := r.loadMap(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Instance, 0, len(m))
	for _, inst := range m {
		out = append(out, inst.Normalize())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// LoadByID returns one instance, normalized.
func (r *InstanceRepo) LoadByID(ctx context.Context, id string) (*domain.Instance, error) {
	m, err := r.loadMap(ctx)
	if err != nil {
		return nil, err
	}
	inst, ok := m[id]
	if !ok {
		return nil, fmt.Errorf("instance %s: %w", id, ErrInstanceNotFound)
	}
	inst = inst.Normalize()
	return &inst, nil
}

// LoadDefault resolves the user's default instance, or nil when no default
// is set or the referenced instance no longer exists.
func (r *InstanceRepo) LoadDefault(ctx context.Context) (*domain.Instance, error) {
	raw, ok, err := r.kv.Load(ctx, KeyDefaultInstance, ScopeUser)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	var pref defaultInstancePref
	if err := json.Unmarshal(raw, &pref); err != nil || pref.ID == "" {
		return nil, nil
	}
	inst, err := r.LoadByID(ctx, pref.ID)
	if errors.Is(err, ErrInstanceNotFound) {
		return nil, nil
	}
	return inst, err
}

// SetDefault records the user's default instance choice.
func (r *InstanceRepo) SetDefault(ctx context.Context, inst *domain.Instance) error {
	pref := defaultInstancePref{}
	if inst != nil {
		pref.ID = inst.ID
		pref.Name = inst.Name
	}
	return r.kv.Save(ctx, KeyDefaultInstance, ScopeUser, pref)
}

// Create persists a new instance with a generated id and timestamps.
// Owners falls back to the creator when empty.
func (r *InstanceRepo) Create(ctx context.Context, input CreateInstanceInput) (*domain.Instance, error) {
	now := r.now().UTC()
	inst := domain.Instance{
		ID:               uuid.New().String(),
		Name:             input.Name,
		Description:      input.Description,
		Org:              input.Org,
		CreatedBy:        input.CreatedBy,
		Owners:           input.Owners,
		ProjectTeamPairs: input.ProjectTeamPairs,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	inst = inst.Normalize()

	m, err := r.loadMap(ctx)
	if err != nil {
		return nil, err
	}
	m[inst.ID] = inst
	if err := r.kv.Save(ctx, KeyInstances, ScopeShared, m); err != nil {
		return nil, err
	}
	return &inst, nil
}

// Update applies a partial update to a stored instance and bumps its
// updated timestamp.
func (r *InstanceRepo) Update(ctx context.Context, input UpdateInstanceInput) (*domain.Instance, error) {
	m, err := r.loadMap(ctx)
	if err != nil {
		return nil, err
	}
	existing, ok := m[input.ID]
	if !ok {
		return nil, fmt.Errorf("instance %s: %w", input.ID, ErrInstanceNotFound)
	}

	if input.Name != nil {
		existing.Name = *input.Name
	}
	if input.Description != nil {
		existing.Description = *input.Description
	}
	if input.Owners != nil {
		existing.Owners = input.Owners
	}
	if input.ProjectTeamPairs != nil {
		existing.ProjectTeamPairs = input.ProjectTeamPairs
	}
	if input.IsDefault != nil {
		existing.IsDefault = *input.IsDefault
	}
	existing.UpdatedAt = r.now().UTC()
	existing = existing.Normalize()

	m[input.ID] = existing
	if err := r.kv.Save(ctx, KeyInstances, ScopeShared, m); err != nil {
		return nil, err
	}
	return &existing, nil
}

// Delete removes an instance from the registry along with its order-map
// entries, in one transaction. Deleting an unknown id is a no-op.
func (r *InstanceRepo) Delete(ctx context.Context, id string) error {
	return r.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		kv := NewKVStore(tx)
		txRepo := &InstanceRepo{kv: kv, orders: NewOrderRepo(kv), now: r.now}

		m, err := txRepo.loadMap(ctx)
		if err != nil {
			return err
		}
		if _, ok := m[id]; ok {
			delete(m, id)
			if err := kv.Save(ctx, KeyInstances, ScopeShared, m); err != nil {
				return err
			}
		}
		return txRepo.orders.RemoveInstanceOrders(ctx, id)
	})
}

// loadMap reads the registry, tolerating the legacy list shape by keying
// it on each record's id.
func (r *InstanceRepo) loadMap(ctx context.Context) (instanceMap, error) {
	raw, ok, err := r.kv.Load(ctx, KeyInstances, ScopeShared)
	if err != nil {
		return nil, err
	}
	if !ok {
		return instanceMap{}, nil
	}

	m := instanceMap{}
	if err := json.Unmarshal(raw, &m); err == nil {
		return m, nil
	}

	var legacy []domain.Instance
	if err := json.Unmarshal(raw, &legacy); err != nil {
		return nil, fmt.Errorf("decoding instance registry: %w", err)
	}
	for _, inst := range legacy {
		if inst.ID != "" {
			m[inst.ID] = inst
		}
	}
	return m, nil
}
