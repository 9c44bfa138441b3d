package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nextlevelbuilder/crosschat/internal/store"
)

type WhitelistStore struct {
	db *sql.DB
}

func NewWhitelistStore(db *sql.DB) *WhitelistStore {
	return &WhitelistStore{db: db}
}

func (s *WhitelistStore) Add(ctx context.Context, e store.WhitelistEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO automod_whitelist (kind, identifier, added_at, added_by)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (kind, identifier) DO UPDATE SET added_at = excluded.added_at, added_by = excluded.added_by
	`, e.Kind, e.Identifier, time.Now().UTC().Format(timeLayout), e.AddedBy)
	if err != nil {
		return fmt.Errorf("add whitelist entry: %w", err)
	}
	return nil
}

func (s *WhitelistStore) Remove(ctx context.Context, kind, identifier string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM automod_whitelist WHERE kind = ? AND identifier = ?`, kind, identifier)
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
		var addedAt string
		if err := rows.Scan(&e.Kind, &e.Identifier, &addedAt, &e.AddedBy); err != nil {
			return nil, fmt.Errorf("scan whitelist entry: %w", err)
		}
		e.AddedAt, _ = time.Parse(timeLayout, addedAt)
		out = append(out, e)
	}
	return out, rows.Err()
}
