// Package orchestrator implements the Relay Orchestrator: the fourteen-step
// ingress pipeline that turns one source message into zero or more relayed
// deliveries, plus the per-source-channel serialization token that
// preserves causal order within a channel.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nextlevelbuilder/crosschat/internal/automod"
	"github.com/nextlevelbuilder/crosschat/internal/bans"
	"github.com/nextlevelbuilder/crosschat/internal/embed"
	"github.com/nextlevelbuilder/crosschat/internal/fingerprint"
	"github.com/nextlevelbuilder/crosschat/internal/msglog"
	"github.com/nextlevelbuilder/crosschat/internal/registry"
	"github.com/nextlevelbuilder/crosschat/internal/scheduler"
	"github.com/nextlevelbuilder/crosschat/internal/store"
	"github.com/nextlevelbuilder/crosschat/internal/tier"
	"github.com/nextlevelbuilder/crosschat/internal/types"
)

const (
	reactionProcessing = "⌛" // hourglass
	reactionSuccess    = "✅" // white check mark
	reactionFailure    = "❌" // cross mark
	reactionBanned     = "\U0001F6AB"
	reactionBlocked    = "⚠️"
)

// Platform is every outbound Discord operation the orchestrator drives.
type Platform interface {
	React(ctx context.Context, channelID, messageID, emoji string) error
	ClearReactions(ctx context.Context, channelID, messageID, emoji string) error
	DMUser(ctx context.Context, userID, content string) error
	DeleteSource(ctx context.Context, channelID, messageID string) error
	SendText(ctx context.Context, channelID, content string) error
}

// Orchestrator wires the registry, ban store, tier resolver, automod
// pipeline, allocator, and scheduler together into the per-message pipeline.
type Orchestrator struct {
	registry    *registry.Registry
	bans        *bans.Store
	tierResolve *tier.Resolver
	automod     *automod.Pipeline
	allocator   *fingerprint.Allocator
	msglog      *msglog.Log
	scheduler   *scheduler.Scheduler
	platform    Platform

	mu     sync.Mutex
	tokens map[string]*sync.Mutex // source channel id -> serialization token
}

func New(
	reg *registry.Registry,
	banStore *bans.Store,
	tierResolver *tier.Resolver,
	pipeline *automod.Pipeline,
	allocator *fingerprint.Allocator,
	log *msglog.Log,
	sched *scheduler.Scheduler,
	platform Platform,
) *Orchestrator {
	return &Orchestrator{
		registry:    reg,
		bans:        banStore,
		tierResolve: tierResolver,
		automod:     pipeline,
		allocator:   allocator,
		msglog:      log,
		scheduler:   sched,
		platform:    platform,
		tokens:      make(map[string]*sync.Mutex),
	}
}

// channelToken returns the serialization token for a source channel,
// creating it on first use. Ingress events from the same channel acquire
// this token and run the pipeline to completion before the next one starts.
func (o *Orchestrator) channelToken(channelID string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	tok, ok := o.tokens[channelID]
	if !ok {
		tok = &sync.Mutex{}
		o.tokens[channelID] = tok
	}
	return tok
}

// Process runs the full ingress pipeline for one source message, serialized
// against other events from the same source channel.
func (o *Orchestrator) Process(ctx context.Context, m types.SourceMessage) types.IngressResult {
	token := o.channelToken(m.SourceChannelID)
	token.Lock()
	defer token.Unlock()

	return o.process(ctx, m)
}

func (o *Orchestrator) process(ctx context.Context, m types.SourceMessage) types.IngressResult {
	// Step 1: drop bots, DM-origin, and empty content with no attachments.
	if m.IsBot || m.SourceServerID == "" || (m.Content == "" && len(m.Attachments) == 0) {
		return types.IngressResult{Outcome: types.OutcomePrivacyIgnored}
	}

	// Step 2: privacy gate.
	isRelay, err := o.registry.IsRelayChannel(ctx, m.SourceChannelID)
	if err != nil {
		return types.IngressResult{Outcome: types.OutcomeFailed, Err: err}
	}
	if !isRelay {
		return types.IngressResult{Outcome: types.OutcomePrivacyIgnored}
	}

	// Step 3: duplicate gate — another replica may already have handled this.
	if existing, err := o.msglog.BySourceMessageID(ctx, m.SourceMessageID); err == nil {
		return types.IngressResult{Outcome: types.OutcomeProcessed, CCID: existing.CCID}
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.IngressResult{Outcome: types.OutcomeFailed, Err: err}
	}

	// Step 4: processing indicator.
	if err := o.platform.React(ctx, m.SourceChannelID, m.SourceMessageID, reactionProcessing); err != nil {
		slog.Debug("processing reaction failed", "error", err)
	}

	// Step 5: resolve tier.
	tierInfo, err := o.tierResolve.Resolve(ctx, m.AuthorID, m.SourceServerID)
	if err != nil {
		return o.finish(ctx, m, types.IngressResult{Outcome: types.OutcomeFailed, Err: err})
	}

	// Step 6: ban gates.
	if banned, err := o.bans.IsUserBanned(ctx, m.AuthorID); err != nil {
		return o.finish(ctx, m, types.IngressResult{Outcome: types.OutcomeFailed, Err: err})
	} else if banned {
		_ = o.platform.ClearReactions(ctx, m.SourceChannelID, m.SourceMessageID, reactionProcessing)
		_ = o.platform.React(ctx, m.SourceChannelID, m.SourceMessageID, reactionBanned)
		_ = o.platform.DMUser(ctx, m.AuthorID, "You are currently banned from CrossChat.")
		return types.IngressResult{Outcome: types.OutcomeBanned}
	}
	if serverBanned, err := o.bans.IsServerBanned(ctx, m.SourceServerID); err != nil {
		return o.finish(ctx, m, types.IngressResult{Outcome: types.OutcomeFailed, Err: err})
	} else if serverBanned {
		_ = o.platform.ClearReactions(ctx, m.SourceChannelID, m.SourceMessageID, reactionProcessing)
		return types.IngressResult{Outcome: types.OutcomeServerBanned}
	}

	// Step 7: automod. Every tier runs the same pipeline; nothing here
	// differs by tier.
	verdict, err := o.automod.Evaluate(ctx, automod.Message{
		AuthorID:      m.AuthorID,
		AuthorRoleIDs: m.AuthorRoleIDs,
		Content:       m.Content,
	})
	if err != nil {
		return o.finish(ctx, m, types.IngressResult{Outcome: types.OutcomeFailed, Err: err})
	}
	if verdict.Kind != types.AutomodAllow {
		notice, err := o.automod.RecordViolation(ctx, m.AuthorID, verdict.Category)
		if err != nil {
			slog.Error("violation tally update failed", "error", err)
		}
		if verdict.Kind == types.AutomodDelete {
			_ = o.platform.React(ctx, m.SourceChannelID, m.SourceMessageID, reactionBlocked)
			_ = o.platform.DeleteSource(ctx, m.SourceChannelID, m.SourceMessageID)
			_ = o.platform.DMUser(ctx, m.AuthorID, fmt.Sprintf("Your message was removed: %s.", verdict.Category))
			o.postNotice(ctx, m, notice)
			return types.IngressResult{Outcome: types.OutcomeBlocked, AutomodKind: verdict.Kind}
		}
		// Warn: allow the message through but record the tally result.
		o.postNotice(ctx, m, notice)
	}

	// Step 8: allocate CC-ID. Losing the allocation race means another
	// replica (or an earlier event on this replica) already owns delivery.
	ccID, created, err := o.allocator.Assign(ctx, m.SourceMessageID, fingerprint.Snapshot{
		SourceUserID:      m.AuthorID,
		SourceDisplayName: m.AuthorDisplayName,
		SourceServerID:    m.SourceServerID,
		SourceChannelID:   m.SourceChannelID,
		Content:           m.Content,
		TagLevel:          int(tierInfo.Priority),
		TagName:           tierInfo.Tier.String(),
		IsVIP:             tierInfo.IsVIP,
	})
	if err != nil {
		return o.finish(ctx, m, types.IngressResult{Outcome: types.OutcomeFailed, Err: err})
	}
	if !created {
		_ = o.platform.ClearReactions(ctx, m.SourceChannelID, m.SourceMessageID, reactionProcessing)
		return types.IngressResult{Outcome: types.OutcomeProcessed, CCID: ccID}
	}

	// Step 9: render embed.
	rendered := embed.Render(m, tierInfo, ccID)

	// Step 10: targets = active channels minus source.
	active, err := o.registry.ListActive(ctx)
	if err != nil {
		return o.finish(ctx, m, types.IngressResult{Outcome: types.OutcomeFailed, Err: err})
	}
	targets := make([]string, 0, len(active))
	for _, c := range active {
		if c.ChannelID != m.SourceChannelID {
			targets = append(targets, c.ChannelID)
		}
	}

	// Step 11: fan out.
	result, err := o.scheduler.Deliver(ctx, ccID, m.SourceMessageID, rendered, m.Attachments, targets, tierInfo.Priority, tierInfo.Tier == types.TierFounder)
	if err != nil {
		return o.finish(ctx, m, types.IngressResult{Outcome: types.OutcomeFailed, Err: err, CCID: ccID})
	}

	// Step 12: deliveries were already appended by the scheduler as each
	// send succeeded (internal/msglog.RecordDelivery via scheduler.DeliveryRecorder).

	return o.finish(ctx, m, types.IngressResult{Outcome: types.OutcomeProcessed, CCID: ccID, Deliveries: result.SentCount})
}

// postNotice publishes an escalation's community notice: server scope posts
// to the source channel only, network scope to every active relay channel.
// The notice text never names the user.
func (o *Orchestrator) postNotice(ctx context.Context, m types.SourceMessage, notice *automod.Notice) {
	if notice == nil {
		return
	}
	text := notice.Text()
	if notice.Scope == types.ScopeServer {
		_ = o.platform.SendText(ctx, m.SourceChannelID, text)
		return
	}
	active, err := o.registry.ListActive(ctx)
	if err != nil {
		slog.Error("community notice fan-out failed", "error", err)
		return
	}
	for _, c := range active {
		_ = o.platform.SendText(ctx, c.ChannelID, text)
	}
}

// finish sets the final status reaction (step 13) and returns res unchanged.
func (o *Orchestrator) finish(ctx context.Context, m types.SourceMessage, res types.IngressResult) types.IngressResult {
	_ = o.platform.ClearReactions(ctx, m.SourceChannelID, m.SourceMessageID, reactionProcessing)
	switch {
	case res.Outcome == types.OutcomeProcessed && res.Deliveries > 0:
		_ = o.platform.React(ctx, m.SourceChannelID, m.SourceMessageID, reactionSuccess)
	case res.Outcome == types.OutcomeProcessed || res.Outcome == types.OutcomeFailed:
		_ = o.platform.React(ctx, m.SourceChannelID, m.SourceMessageID, reactionFailure)
	}
	return res
}
