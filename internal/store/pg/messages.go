package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nextlevelbuilder/crosschat/internal/store"
)

// MessageStore implements store.MessageStore backed by Postgres. Its
// Insert is the fleet-wide coordination primitive for CC-ID allocation:
// the unique indexes on source_message_id and cc_id make concurrent
// allocation attempts resolve to exactly one winner.
type MessageStore struct {
	db *sql.DB
}

func NewMessageStore(db *sql.DB) *MessageStore {
	return &MessageStore{db: db}
}

func (s *MessageStore) Insert(ctx context.Context, m store.MessageRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO crosschat_messages (
			source_message_id, cc_id, source_user_id, source_display_name,
			source_server_id, source_channel_id, content, tag_level, tag_name,
			is_vip, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, m.SourceMessageID, m.CCID, m.SourceUserID, m.SourceDisplayName,
		m.SourceServerID, m.SourceChannelID, m.Content, m.TagLevel, m.TagName,
		m.IsVIP, m.CreatedAt)
	if isUniqueViolation(err) {
		return store.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert message record: %w", err)
	}
	return nil
}

func (s *MessageStore) GetBySourceMessageID(ctx context.Context, sourceMessageID string) (store.MessageRecord, error) {
	return s.scanOne(ctx, `
		SELECT source_message_id, cc_id, source_user_id, source_display_name,
			source_server_id, source_channel_id, content, tag_level, tag_name,
			is_vip, created_at, is_deleted, deleted_at, deleted_by
		FROM crosschat_messages WHERE source_message_id = $1
	`, sourceMessageID)
}

func (s *MessageStore) GetByCCID(ctx context.Context, ccID string) (store.MessageRecord, error) {
	return s.scanOne(ctx, `
		SELECT source_message_id, cc_id, source_user_id, source_display_name,
			source_server_id, source_channel_id, content, tag_level, tag_name,
			is_vip, created_at, is_deleted, deleted_at, deleted_by
		FROM crosschat_messages WHERE cc_id = $1
	`, ccID)
}

func (s *MessageStore) scanOne(ctx context.Context, query string, arg string) (store.MessageRecord, error) {
	var m store.MessageRecord
	var deletedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&m.SourceMessageID, &m.CCID, &m.SourceUserID, &m.SourceDisplayName,
		&m.SourceServerID, &m.SourceChannelID, &m.Content, &m.TagLevel, &m.TagName,
		&m.IsVIP, &m.CreatedAt, &m.IsDeleted, &deletedAt, &m.DeletedBy,
	)
	if err == sql.ErrNoRows {
		return store.MessageRecord{}, store.ErrNotFound
	}
	if err != nil {
		return store.MessageRecord{}, fmt.Errorf("scan message record: %w", err)
	}
	if deletedAt.Valid {
		m.DeletedAt = &deletedAt.Time
	}
	return m, nil
}

func (s *MessageStore) UpdateContent(ctx context.Context, ccID string, content string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE crosschat_messages SET content = $1 WHERE cc_id = $2`, content, ccID)
	if err != nil {
		return fmt.Errorf("update message content: %w", err)
	}
	return nil
}

func (s *MessageStore) MarkDeleted(ctx context.Context, ccID string, by string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE crosschat_messages SET is_deleted = TRUE, deleted_at = $1, deleted_by = $2 WHERE cc_id = $3
	`, at, by, ccID)
	if err != nil {
		return fmt.Errorf("mark message deleted: %w", err)
	}
	return nil
}

// isUniqueViolation reports whether err is a Postgres unique-constraint
// violation (SQLSTATE 23505); the pgx stdlib driver surfaces the
// underlying *pgconn.PgError through database/sql's error chain.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
