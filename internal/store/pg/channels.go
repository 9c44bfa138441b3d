package pg

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nextlevelbuilder/crosschat/internal/store"
)

// ChannelStore implements store.ChannelStore backed by Postgres.
type ChannelStore struct {
	db *sql.DB
}

func NewChannelStore(db *sql.DB) *ChannelStore {
	return &ChannelStore{db: db}
}

func (s *ChannelStore) Upsert(ctx context.Context, e store.ChannelEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO crosschat_channels (server_id, channel_id, server_name, channel_name, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, TRUE, now(), now())
		ON CONFLICT (server_id) DO UPDATE SET
			channel_id = EXCLUDED.channel_id,
			server_name = EXCLUDED.server_name,
			channel_name = EXCLUDED.channel_name,
			active = TRUE,
			updated_at = now()
	`, e.ServerID, e.ChannelID, e.ServerName, e.ChannelName)
	if err != nil {
		return fmt.Errorf("upsert channel: %w", err)
	}
	return nil
}

func (s *ChannelStore) Disable(ctx context.Context, channelID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE crosschat_channels SET active = FALSE, updated_at = now() WHERE channel_id = $1
	`, channelID)
	if err != nil {
		return fmt.Errorf("disable channel: %w", err)
	}
	return nil
}

func (s *ChannelStore) ListActive(ctx context.Context) ([]store.ChannelEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT server_id, channel_id, server_name, channel_name, active, created_at, updated_at
		FROM crosschat_channels WHERE active = TRUE
	`)
	if err != nil {
		return nil, fmt.Errorf("list active channels: %w", err)
	}
	defer rows.Close()

	var out []store.ChannelEntry
	for rows.Next() {
		var e store.ChannelEntry
		if err := rows.Scan(&e.ServerID, &e.ChannelID, &e.ServerName, &e.ChannelName, &e.Active, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *ChannelStore) GetByServer(ctx context.Context, serverID string) (store.ChannelEntry, error) {
	var e store.ChannelEntry
	err := s.db.QueryRowContext(ctx, `
		SELECT server_id, channel_id, server_name, channel_name, active, created_at, updated_at
		FROM crosschat_channels WHERE server_id = $1
	`, serverID).Scan(&e.ServerID, &e.ChannelID, &e.ServerName, &e.ChannelName, &e.Active, &e.CreatedAt, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return store.ChannelEntry{}, store.ErrNotFound
	}
	if err != nil {
		return store.ChannelEntry{}, fmt.Errorf("get channel by server: %w", err)
	}
	return e, nil
}
