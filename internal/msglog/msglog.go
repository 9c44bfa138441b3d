// Package msglog implements the Message Log and Delivery Index
// operator-facing operations: lookups by source message id and CC-ID,
// delivery listings, and mark-deleted.
package msglog

import (
	"context"
	"fmt"
	"time"

	"github.com/nextlevelbuilder/crosschat/internal/store"
)

// Log wraps the Message Log and Delivery Index stores with the operator
// operations built on top of them.
type Log struct {
	messages   store.MessageStore
	deliveries store.DeliveryStore
}

func New(messages store.MessageStore, deliveries store.DeliveryStore) *Log {
	return &Log{messages: messages, deliveries: deliveries}
}

// BySourceMessageID looks up the Message Record for a source message id.
func (l *Log) BySourceMessageID(ctx context.Context, sourceMessageID string) (store.MessageRecord, error) {
	return l.messages.GetBySourceMessageID(ctx, sourceMessageID)
}

// ByCCID looks up the Message Record for a CC-ID.
func (l *Log) ByCCID(ctx context.Context, ccID string) (store.MessageRecord, error) {
	return l.messages.GetByCCID(ctx, ccID)
}

// RecordDelivery appends one Delivery Record for a successful fan-out send.
func (l *Log) RecordDelivery(ctx context.Context, ccID, sourceMessageID, targetChannelID, deliveredMessageID string) error {
	return l.deliveries.Insert(ctx, store.DeliveryRecord{
		CCID:               ccID,
		TargetChannelID:    targetChannelID,
		DeliveredMessageID: deliveredMessageID,
		DeliveredAt:        time.Now(),
		SourceMessageID:    sourceMessageID,
	})
}

// Deliveries lists every channel a CC-ID was relayed to.
func (l *Log) Deliveries(ctx context.Context, ccID string) ([]store.DeliveryRecord, error) {
	return l.deliveries.ListByCCID(ctx, ccID)
}

// UpdateContent overwrites the stored content for an edited message.
func (l *Log) UpdateContent(ctx context.Context, ccID, content string) error {
	return l.messages.UpdateContent(ctx, ccID, content)
}

// MarkDeleted flags a Message Record as deleted without scrubbing its
// content. The caller (internal/propagator)
// is responsible for the operator audit entry, since only it knows the
// affected delivery count.
func (l *Log) MarkDeleted(ctx context.Context, ccID, by string) error {
	if err := l.messages.MarkDeleted(ctx, ccID, by, time.Now()); err != nil {
		return fmt.Errorf("mark deleted: %w", err)
	}
	return nil
}
