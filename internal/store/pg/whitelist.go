package pg

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nextlevelbuilder/crosschat/internal/store"
)

// WhitelistStore implements store.WhitelistStore backed by Postgres.
type WhitelistStore struct {
	db *sql.DB
}

func NewWhitelistStore(db *sql.DB) *WhitelistStore {
	return &WhitelistStore{db: db}
}

func (s *WhitelistStore) Add(ctx context.Context, e store.WhitelistEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO automod_whitelist (kind, identifier, added_at, added_by)
		VALUES ($1, $2, now(), $3)
		ON CONFLICT (kind, identifier) DO UPDATE SET added_at = now(), added_by = EXCLUDED.added_by
	`, e.Kind, e.Identifier, e.AddedBy)
	if err != nil {
		return fmt.Errorf("add whitelist entry: %w", err)
	}
	return nil
}

func (s *WhitelistStore) Remove(ctx context.Context, kind, identifier string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM automod_whitelist WHERE kind = $1 AND identifier = $2`, kind, identifier)
	if err != nil {
		return fmt.Errorf("remove whitelist entry: %w", err)
	}
	return nil
}

func (s *WhitelistStore) List(ctx context.Context) ([]store.WhitelistEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT kind, identifier, added_at, added_by FROM automod_whitelist`)
	if err != nil {
		return nil, fmt.Errorf("list whitelist entries: %w", err)
	}
	defer rows.Close()

	var out []store.WhitelistEntry
	for rows.Next() {
		var e store.WhitelistEntry
		if err := rows.Scan(&e.Kind, &e.Identifier, &e.AddedAt, &e.AddedBy); err != nil {
			return nil, fmt.Errorf("scan whitelist entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
