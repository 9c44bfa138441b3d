package pg

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nextlevelbuilder/crosschat/internal/store"
)

// DeliveryStore implements store.DeliveryStore backed by Postgres.
type DeliveryStore struct {
	db *sql.DB
}

func NewDeliveryStore(db *sql.DB) *DeliveryStore {
	return &DeliveryStore{db: db}
}

func (s *DeliveryStore) Insert(ctx context.Context, d store.DeliveryRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sent_messages (cc_id, target_channel_id, delivered_message_id, delivered_at, source_message_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (cc_id, target_channel_id) DO NOTHING
	`, d.CCID, d.TargetChannelID, d.DeliveredMessageID, d.DeliveredAt, d.SourceMessageID)
	if err != nil {
		return fmt.Errorf("insert delivery record: %w", err)
	}
	return nil
}

func (s *DeliveryStore) ListByCCID(ctx context.Context, ccID string) ([]store.DeliveryRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT cc_id, target_channel_id, delivered_message_id, delivered_at, source_message_id
		FROM sent_messages WHERE cc_id = $1
	`, ccID)
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	defer rows.Close()

	var out []store.DeliveryRecord
	for rows.Next() {
		var d store.DeliveryRecord
		if err := rows.Scan(&d.CCID, &d.TargetChannelID, &d.DeliveredMessageID, &d.DeliveredAt, &d.SourceMessageID); err != nil {
			return nil, fmt.Errorf("scan delivery: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
