package pg

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nextlevelbuilder/crosschat/internal/store"
)

// BanStore implements store.BanStore backed by Postgres.
type BanStore struct {
	db *sql.DB
}

func NewBanStore(db *sql.DB) *BanStore {
	return &BanStore{db: db}
}

func (s *BanStore) BanUser(ctx context.Context, b store.BannedUser) error {
	var durationSeconds sql.NullInt64
	if b.Duration != nil {
		durationSeconds = sql.NullInt64{Int64: int64(b.Duration.Seconds()), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO banned_users (user_id, reason, moderator_id, duration_seconds, banned_at, active)
		VALUES ($1, $2, $3, $4, now(), TRUE)
		ON CONFLICT (user_id) DO UPDATE SET
			reason = EXCLUDED.reason,
			moderator_id = EXCLUDED.moderator_id,
			duration_seconds = EXCLUDED.duration_seconds,
			banned_at = now(),
			active = TRUE
	`, b.UserID, b.Reason, b.ModeratorID, durationSeconds)
	if err != nil {
		return fmt.Errorf("ban user: %w", err)
	}
	return nil
}

func (s *BanStore) UnbanUser(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE banned_users SET active = FALSE WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("unban user: %w", err)
	}
	return nil
}

func (s *BanStore) IsUserBanned(ctx context.Context, userID string) (bool, error) {
	var active bool
	var bannedAt time.Time
	var durationSeconds sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT active, banned_at, duration_seconds FROM banned_users WHERE user_id = $1
	`, userID).Scan(&active, &bannedAt, &durationSeconds)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check user ban: %w", err)
	}
	if !active {
		return false, nil
	}
	if durationSeconds.Valid {
		expiry := bannedAt.Add(time.Duration(durationSeconds.Int64) * time.Second)
		if time.Now().After(expiry) {
			return false, nil
		}
	}
	return true, nil
}

func (s *BanStore) BanServer(ctx context.Context, b store.BannedServer) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO banned_servers (server_id, reason, moderator_id, banned_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (server_id) DO UPDATE SET
			reason = EXCLUDED.reason,
			moderator_id = EXCLUDED.moderator_id,
			banned_at = now()
	`, b.ServerID, b.Reason, b.ModeratorID)
	if err != nil {
		return fmt.Errorf("ban server: %w", err)
	}
	return nil
}

func (s *BanStore) UnbanServer(ctx context.Context, serverID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM banned_servers WHERE server_id = $1`, serverID)
	if err != nil {
		return fmt.Errorf("unban server: %w", err)
	}
	return nil
}

func (s *BanStore) IsServerBanned(ctx context.Context, serverID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM banned_servers WHERE server_id = $1)`, serverID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check server ban: %w", err)
	}
	return exists, nil
}
