package pg

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/crosschat/internal/store"
)

// ModerationLogStore implements store.ModerationLogStore backed by Postgres.
// Rows are append-only; no update or delete operation exists.
type ModerationLogStore struct {
	db *sql.DB
}

func NewModerationLogStore(db *sql.DB) *ModerationLogStore {
	return &ModerationLogStore{db: db}
}

func (s *ModerationLogStore) Append(ctx context.Context, e store.ModerationLogEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO moderation_logs (id, action, target_id, moderator_id, reason, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
	`, e.ID, e.Action, e.TargetID, e.ModeratorID, e.Reason, e.Detail)
	if err != nil {
		return fmt.Errorf("append moderation log: %w", err)
	}
	return nil
}

func (s *ModerationLogStore) ListByTarget(ctx context.Context, targetID string, limit int) ([]store.ModerationLogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, action, target_id, moderator_id, reason, detail, created_at
		FROM moderation_logs WHERE target_id = $1 ORDER BY created_at DESC LIMIT $2
	`, targetID, limit)
	if err != nil {
		return nil, fmt.Errorf("list moderation logs: %w", err)
	}
	defer rows.Close()

	var out []store.ModerationLogEntry
	for rows.Next() {
		var e store.ModerationLogEntry
		if err := rows.Scan(&e.ID, &e.Action, &e.TargetID, &e.ModeratorID, &e.Reason, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan moderation log: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
