package store

import (
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

// SnapshotTable stores one serialised roster snapshot per profile, used to
// repopulate the room list on startup before the first sync lands.
type SnapshotTable struct {
	db *sqlx.DB
}

func NewSnapshotTable(db *sqlx.DB) *SnapshotTable {
	return &SnapshotTable{db}
}

// SelectSnapshot returns the stored snapshot for this profile, or nil if absent.
func (t *SnapshotTable) SelectSnapshot(profileID string) ([]byte, error) {
	var snapshot []byte
	err := t.db.QueryRow(
		`SELECT snapshot FROM roster_snapshots WHERE profile_id=$1`, profileID,
	).Scan(&snapshot)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return snapshot, err
}

func (t *SnapshotTable) UpdateSnapshot(profileID string, snapshot []byte) error {
	_, err := t.db.Exec(
		`INSERT INTO roster_snapshots(profile_id, snapshot) VALUES($1, $2)
		ON CONFLICT (profile_id) DO UPDATE SET snapshot = $2, updated_at = now()`,
		profileID, snapshot,
	)
	return err
}

func (t *SnapshotTable) DeleteSnapshot(profileID string) error {
	_, err := t.db.Exec(`DELETE FROM roster_snapshots WHERE profile_id=$1`, profileID)
	return err
}
