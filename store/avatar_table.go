package store

import (
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

// AvatarTable persists downloaded avatar thumbnails keyed by content URI,
// so a restart doesn't refetch every room's avatar.
type AvatarTable struct {
	db *sqlx.DB
}

func NewAvatarTable(db *sqlx.DB) *AvatarTable {
	return &AvatarTable{db}
}

// SelectAvatar returns the stored bytes for this URL, or nil if absent.
func (t *AvatarTable) SelectAvatar(mxcURL string) ([]byte, error) {
	var avatar []byte
	err := t.db.QueryRow(
		`SELECT avatar FROM roster_avatars WHERE mxc_url=$1`, mxcURL,
	).Scan(&avatar)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return avatar, err
}

func (t *AvatarTable) InsertAvatar(mxcURL string, avatar []byte) error {
	_, err := t.db.Exec(
		`INSERT INTO roster_avatars(mxc_url, avatar) VALUES($1, $2)
		ON CONFLICT (mxc_url) DO UPDATE SET avatar = $2, updated_at = now()`,
		mxcURL, avatar,
	)
	return err
}
