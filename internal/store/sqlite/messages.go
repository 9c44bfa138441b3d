package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/nextlevelbuilder/crosschat/internal/store"
)

// MessageStore implements store.MessageStore backed by SQLite. Standalone
// mode runs a single replica, so the unique indexes here guard against
// local double-processing rather than fleet-wide races.
type MessageStore struct {
	db *sql.DB
}

func NewMessageStore(db *sql.DB) *MessageStore {
	return &MessageStore{db: db}
}

func (s *MessageStore) Insert(ctx context.Context, m store.MessageRecord) error {
	createdAt := m.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO crosschat_messages (
			source_message_id, cc_id, source_user_id, source_display_name,
			source_server_id, source_channel_id, content, tag_level, tag_name,
			is_vip, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, m.SourceMessageID, m.CCID, m.SourceUserID, m.SourceDisplayName,
		m.SourceServerID, m.SourceChannelID, m.Content, m.TagLevel, m.TagName,
		m.IsVIP, createdAt.Format(timeLayout))
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
		FROM crosschat_messages WHERE source_message_id = ?
	`, sourceMessageID)
}

func (s *MessageStore) GetByCCID(ctx context.Context, ccID string) (store.MessageRecord, error) {
	return s.scanOne(ctx, `
		SELECT source_message_id, cc_id, source_user_id, source_display_name,
			source_server_id, source_channel_id, content, tag_level, tag_name,
			is_vip, created_at, is_deleted, deleted_at, deleted_by
		FROM crosschat_messages WHERE cc_id = ?
	`, ccID)
}

func (s *MessageStore) scanOne(ctx context.Context, query string, arg string) (store.MessageRecord, error) {
	var m store.MessageRecord
	var createdAt string
	var deletedAt sql.NullString
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&m.SourceMessageID, &m.CCID, &m.SourceUserID, &m.SourceDisplayName,
		&m.SourceServerID, &m.SourceChannelID, &m.Content, &m.TagLevel, &m.TagName,
		&m.IsVIP, &createdAt, &m.IsDeleted, &deletedAt, &m.DeletedBy,
	)
	if err == sql.ErrNoRows {
		return store.MessageRecord{}, store.ErrNotFound
	}
	if err != nil {
		return store.MessageRecord{}, fmt.Errorf("scan message record: %w", err)
	}
	m.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	if deletedAt.Valid {
		t, _ := time.Parse(timeLayout, deletedAt.String)
		m.DeletedAt = &t
	}
	return m, nil
}

func (s *MessageStore) UpdateContent(ctx context.Context, ccID string, content string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE crosschat_messages SET content = ? WHERE cc_id = ?`, content, ccID)
	if err != nil {
		return fmt.Errorf("update message content: %w", err)
	}
	return nil
}

func (s *MessageStore) MarkDeleted(ctx context.Context, ccID string, by string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE crosschat_messages SET is_deleted = 1, deleted_at = ?, deleted_by = ? WHERE cc_id = ?
	`, at.Format(timeLayout), by, ccID)
	if err != nil {
		return fmt.Errorf("mark message deleted: %w", err)
	}
	return nil
}

// isUniqueViolation reports whether err is a SQLite unique-constraint
// violation as surfaced by modernc.org/sqlite's error text.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
