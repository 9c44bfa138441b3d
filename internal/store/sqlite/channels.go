package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nextlevelbuilder/crosschat/internal/store"
)

type ChannelStore struct {
	db *sql.DB
}

func NewChannelStore(db *sql.DB) *ChannelStore {
	return &ChannelStore{db: db}
}

func (s *ChannelStore) Upsert(ctx context.Context, e store.ChannelEntry) error {
	now := time.Now().UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO crosschat_channels (server_id, channel_id, server_name, channel_name, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT (server_id) DO UPDATE SET
			channel_id = excluded.channel_id,
			server_name = excluded.server_name,
			channel_name = excluded.channel_name,
			active = 1,
			updated_at = excluded.updated_at
	`, e.ServerID, e.ChannelID, e.ServerName, e.ChannelName, now, now)
	if err != nil {
		return fmt.Errorf("upsert channel: %w", err)
	}
	return nil
}

func (s *ChannelStore) Disable(ctx context.Context, channelID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE crosschat_channels SET active = 0, updated_at = ? WHERE channel_id = ?
	`, time.Now().UTC().Format(timeLayout), channelID)
	if err != nil {
		return fmt.Errorf("disable channel: %w", err)
	}
	return nil
}

func (s *ChannelStore) ListActive(ctx context.Context) ([]store.ChannelEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT server_id, channel_id, server_name, channel_name, active, created_at, updated_at
		FROM crosschat_channels WHERE active = 1
	`)
	if err != nil {
		return nil, fmt.Errorf("list active channels: %w", err)
	}
	defer rows.Close()

	var out []store.ChannelEntry
	for rows.Next() {
		e, err := scanChannel(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *ChannelStore) GetByServer(ctx context.Context, serverID string) (store.ChannelEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT server_id, channel_id, server_name, channel_name, active, created_at, updated_at
		FROM crosschat_channels WHERE server_id = ?
	`, serverID)
	e, err := scanChannel(row)
	if err == sql.ErrNoRows {
		return store.ChannelEntry{}, store.ErrNotFound
	}
	if err != nil {
		return store.ChannelEntry{}, err
	}
	return e, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChannel(r rowScanner) (store.ChannelEntry, error) {
	var e store.ChannelEntry
	var createdAt, updatedAt string
	if err := r.Scan(&e.ServerID, &e.ChannelID, &e.ServerName, &e.ChannelName, &e.Active, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return store.ChannelEntry{}, err
		}
		return store.ChannelEntry{}, fmt.Errorf("scan channel: %w", err)
	}
	e.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	e.UpdatedAt, _ = time.Parse(timeLayout, updatedAt)
	return e, nil
}
