package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/crosschat/internal/store"
)

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
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.Action, e.TargetID, e.ModeratorID, e.Reason, e.Detail, time.Now().UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("append moderation log: %w", err)
	}
	return nil
}

func (s *ModerationLogStore) ListByTarget(ctx context.Context, targetID string, limit int) ([]store.ModerationLogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, action, target_id, moderator_id, reason, detail, created_at
		FROM moderation_logs WHERE target_id = ? ORDER BY created_at DESC LIMIT ?
	`, targetID, limit)
	if err != nil {
		return nil, fmt.Errorf("list moderation logs: %w", err)
	}
	defer rows.Close()

	var out []store.ModerationLogEntry
	for rows.Next() {
		var e store.ModerationLogEntry
		var createdAt string
		if err := rows.Scan(&e.ID, &e.Action, &e.TargetID, &e.ModeratorID, &e.Reason, &e.Detail, &createdAt); err != nil {
			return nil, fmt.Errorf("scan moderation log: %w", err)
		}
		e.CreatedAt, _ = time.Parse(timeLayout, createdAt)
		out = append(out, e)
	}
	return out, rows.Err()
}
