// Package sqlite implements the relay engine's store interfaces on
// modernc.org/sqlite for standalone mode, where a single bot replica owns
// its own file and no fleet-wide coordination is needed.
package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/nextlevelbuilder/crosschat/internal/store"
)

const timeLayout = "2006-01-02T15:04:05.999999999Z07:00"

// OpenDB opens the SQLite database file at path, enables foreign keys and
// WAL journaling, and applies the schema idempotently.
func OpenDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite serializes writers; avoid SQLITE_BUSY churn
	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA foreign_keys=ON;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure sqlite pragmas: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	return db, nil
}

// NewStores wires every store.Stores field to a SQLite-backed implementation.
func NewStores(db *sql.DB) *store.Stores {
	return &store.Stores{
		Channels:   NewChannelStore(db),
		Bans:       NewBanStore(db),
		Messages:   NewMessageStore(db),
		Deliveries: NewDeliveryStore(db),
		Whitelist:  NewWhitelistStore(db),
		Partners:   NewPartnerStore(db),
		ModLog:     NewModerationLogStore(db),
		Votes:      NewVoteStore(db),
	}
}
