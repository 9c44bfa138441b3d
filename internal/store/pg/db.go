// Package pg implements the relay engine's store interfaces on Postgres,
// used in fleet mode where multiple bot replicas share one database and
// its unique indexes are the fleet-wide coordination primitive.
package pg

import (
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/nextlevelbuilder/crosschat/internal/store"
)

// OpenDB opens a pooled Postgres connection using the pgx stdlib driver.
func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// NewStores wires every store.Stores field to a Postgres-backed implementation.
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
