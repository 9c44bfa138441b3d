// Package propagator implements the Edit/Delete Propagator: it applies a
// source-message edit to every delivered copy and performs operator-driven
// global deletes across the fleet.
package propagator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nextlevelbuilder/crosschat/internal/auditlog"
	"github.com/nextlevelbuilder/crosschat/internal/msglog"
	"github.com/nextlevelbuilder/crosschat/internal/registry"
	"github.com/nextlevelbuilder/crosschat/internal/store"
)

// reactionEdited marks a source message whose edit has been propagated.
const reactionEdited = "✏️"

// Platform is the set of delivered-message operations the propagator drives.
// EditDescription must replace only the delivered embed's description,
// leaving the author line, "From" field, footer, image, and color intact —
// the concrete implementation fetches the delivered message and patches it
// in place.
type Platform interface {
	EditDescription(ctx context.Context, channelID, messageID, newContent string) error
	DeleteDelivered(ctx context.Context, channelID, messageID string) error
	React(ctx context.Context, channelID, messageID, emoji string) error
}

// Propagator applies a source edit or an operator delete to every
// delivered copy of a message.
type Propagator struct {
	msglog   *msglog.Log
	registry *registry.Registry
	audit    *auditlog.Log
	platform Platform
}

func New(log *msglog.Log, reg *registry.Registry, audit *auditlog.Log, platform Platform) *Propagator {
	return &Propagator{msglog: log, registry: reg, audit: audit, platform: platform}
}

// Edit applies a source-message edit to every delivered copy of its CC-ID.
// If sourceChannelID is no longer an active relay channel, or no Message
// Record exists for sourceMessageID, the edit is ignored.
func (p *Propagator) Edit(ctx context.Context, sourceChannelID, sourceMessageID, newContent string) error {
	isRelay, err := p.registry.IsRelayChannel(ctx, sourceChannelID)
	if err != nil {
		return fmt.Errorf("check relay channel: %w", err)
	}
	if !isRelay {
		return nil
	}

	rec, err := p.msglog.BySourceMessageID(ctx, sourceMessageID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup message record: %w", err)
	}

	if err := p.msglog.UpdateContent(ctx, rec.CCID, newContent); err != nil {
		return fmt.Errorf("update content: %w", err)
	}

	deliveries, err := p.msglog.Deliveries(ctx, rec.CCID)
	if err != nil {
		return fmt.Errorf("list deliveries: %w", err)
	}

	for _, d := range deliveries {
		if err := p.platform.EditDescription(ctx, d.TargetChannelID, d.DeliveredMessageID, newContent); err != nil {
			// Edit failures are logged and skipped.
			slog.Warn("edit propagation failed", "cc_id", rec.CCID, "target_channel_id", d.TargetChannelID, "error", err)
		}
	}
	_ = p.platform.React(ctx, sourceChannelID, sourceMessageID, reactionEdited)
	return nil
}

// DeleteResult reports how many deliveries a global delete affected.
type DeleteResult struct {
	AffectedCount int
}

// Delete performs an operator-driven global delete by CC-ID: each
// delivered copy is removed (a copy whose delete fails is logged and left
// out of the count), the Message Record is flagged deleted, and an audit
// entry is appended. Idempotent: a repeated call on an already-deleted
// CC-ID returns success with count 0.
func (p *Propagator) Delete(ctx context.Context, ccID, operatorID string) (DeleteResult, error) {
	rec, err := p.msglog.ByCCID(ctx, ccID)
	if errors.Is(err, store.ErrNotFound) {
		return DeleteResult{}, nil
	}
	if err != nil {
		return DeleteResult{}, fmt.Errorf("lookup message record: %w", err)
	}
	if rec.IsDeleted {
		return DeleteResult{}, nil
	}

	deliveries, err := p.msglog.Deliveries(ctx, ccID)
	if err != nil {
		return DeleteResult{}, fmt.Errorf("list deliveries: %w", err)
	}

	affected := 0
	for _, d := range deliveries {
		if err := p.platform.DeleteDelivered(ctx, d.TargetChannelID, d.DeliveredMessageID); err != nil {
			slog.Warn("delete propagation failed", "cc_id", ccID, "target_channel_id", d.TargetChannelID, "error", err)
			continue
		}
		affected++
	}

	if err := p.msglog.MarkDeleted(ctx, ccID, operatorID); err != nil {
		return DeleteResult{}, fmt.Errorf("mark deleted: %w", err)
	}

	if err := p.audit.Append(ctx, "delete", ccID, operatorID, "", fmt.Sprintf("affected=%d", affected)); err != nil {
		return DeleteResult{}, fmt.Errorf("audit delete: %w", err)
	}

	return DeleteResult{AffectedCount: affected}, nil
}
