package store

import (
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/matrix-org/room-roster/sqlutil"
	"github.com/rs/zerolog"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger().Output(zerolog.ConsoleWriter{
	Out:        os.Stderr,
	TimeFormat: "15:04:05",
})

// Storage bundles the persistent collaborators: the avatar byte cache and
// roster snapshots. The roster core itself never touches the database.
type Storage struct {
	AvatarTable   *AvatarTable
	SnapshotTable *SnapshotTable
	DB            *sqlx.DB
}

func NewStorage(postgresURI string) *Storage {
	db, err := sqlx.Open("postgres", postgresURI)
	if err != nil {
		sentry.CaptureException(err)
		logger.Panic().Err(err).Str("uri", postgresURI).Msg("failed to open SQL DB")
	}
	return NewStorageWithDB(db)
}

func NewStorageWithDB(db *sqlx.DB) *Storage {
	if err := Migrate(db); err != nil {
		sentry.CaptureException(err)
		logger.Panic().Err(err).Msg("failed to run storage migrations")
	}
	return &Storage{
		AvatarTable:   NewAvatarTable(db),
		SnapshotTable: NewSnapshotTable(db),
		DB:            db,
	}
}

// Cleanup removes avatars and snapshots which have not been written since
// the cutoff, in one transaction so a half-pruned cache is never observable.
func (s *Storage) Cleanup(before time.Time) error {
	return sqlutil.WithTransaction(s.DB, func(txn *sqlx.Tx) error {
		if _, err := txn.Exec(`DELETE FROM roster_avatars WHERE updated_at < $1`, before); err != nil {
			return err
		}
		_, err := txn.Exec(`DELETE FROM roster_snapshots WHERE updated_at < $1`, before)
		return err
	})
}

func (s *Storage) Teardown() {
	if err := s.DB.Close(); err != nil {
		logger.Warn().Err(err).Msg("failed to close DB")
	}
}
