package prefs

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dverna/crossplan/internal/db"
)

// KVStore reads and writes JSON preference values keyed by (scope, key).
// A missing key is reported as ok=false, never as an error.
type KVStore struct {
	db db.DBTX
}

// NewKVStore creates a KVStore over the given connection or transaction.
func NewKVStore(conn db.DBTX) *KVStore {
	return &KVStore{db: conn}
}

// Load returns the raw JSON value for (key, scope). ok is false when the
// key has never been written.
func (s *KVStore) Load(ctx context.Context, key string, scope Scope) (json.RawMessage, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM preferences WHERE scope = ? AND key = ?`,
		string(scope), key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("loading preference %s/%s: %w", scope, key, err)
	}
	return json.RawMessage(value), true, nil
}

// Save marshals value and upserts it under (key, scope).
func (s *KVStore) Save(ctx context.Context, key string, scope Scope, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshaling preference %s/%s: %w", scope, key, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO preferences (scope, key, value, updated_at) VALUES (?, ?, ?, ?)`,
		string(scope), key, string(data), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving preference %s/%s: %w", scope, key, err)
	}
	return nil
}

// Delete removes the value under (key, scope). Deleting a missing key is a
// no-op.
func (s *KVStore) Delete(ctx context.Context, key string, scope Scope) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM preferences WHERE scope = ? AND key = ?`,
		string(scope), key,
	)
	if err != nil {
		return fmt.Errorf("deleting preference %s/%s: %w", scope, key, err)
	}
	return nil
}
