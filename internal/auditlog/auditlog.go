// Package auditlog implements the operator audit trail: an append-only
// record of every moderation action taken fleet-wide.
package auditlog

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/crosschat/internal/store"
)

// Log wraps store.ModerationLogStore, stamping each entry with a fresh id.
type Log struct {
	store store.ModerationLogStore
}

func New(s store.ModerationLogStore) *Log {
	return &Log{store: s}
}

// Append records a moderation action: action is one of "ban", "unban",
// "serverban", "serverunban", "delete", "warn", "announce".
func (l *Log) Append(ctx context.Context, action, targetID, moderatorID, reason, detail string) error {
	err := l.store.Append(ctx, store.ModerationLogEntry{
		ID:          uuid.NewString(),
		Action:      action,
		TargetID:    targetID,
		ModeratorID: moderatorID,
		Reason:      reason,
		Detail:      detail,
	})
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

// ForTarget returns the most recent audit entries for a target id (user,
// server, or CC-ID), newest first.
func (l *Log) ForTarget(ctx context.Context, targetID string, limit int) ([]store.ModerationLogEntry, error) {
	return l.store.ListByTarget(ctx, targetID, limit)
}
