package postgres

import (
	"context"
	"database/sql"
)

// SnapshotManager derives snapshot tokens from PostgreSQL's transaction
// snapshot. Any committed write to the permission tables moves the snapshot,
// so cache entries keyed on the token expire exactly when the data they were
// computed from can have changed.
type SnapshotManager struct {
	db *sql.DB
}

// NewSnapshotManager creates a new snapshot manager.
func NewSnapshotManager(db *sql.DB) *SnapshotManager {
	return &SnapshotManager{db: db}
}

// SnapshotToken returns the current transaction snapshot as an opaque token.
func (m *SnapshotManager) SnapshotToken(ctx context.Context) (string, error) {
	var token string
	if err := m.db.QueryRowContext(ctx, "SELECT txid_current_snapshot()::text").Scan(&token); err != nil {
		return "", storeError("failed to get current snapshot", err)
	}
	return token, nil
}
