// Package scheduler implements the Fan-out Scheduler:
// delivers a rendered embed to every target channel at a pace and
// concurrency determined by the sender's tier priority.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/nextlevelbuilder/crosschat/internal/embed"
	"github.com/nextlevelbuilder/crosschat/internal/types"
)

// Sender delivers one rendered embed (with attachments) to one target
// channel and returns the id of the message it created. A concrete
// implementation lives in internal/discordgw.
type Sender interface {
	Send(ctx context.Context, channelID string, e embed.Rendered, attachments []types.Attachment) (deliveredMessageID string, err error)
}

// DeliveryRecorder appends a Delivery Record for one successful send.
type DeliveryRecorder interface {
	RecordDelivery(ctx context.Context, ccID, sourceMessageID, targetChannelID, deliveredMessageID string) error
}

// tierPlan is one row of the delivery-strategy table.
type tierPlan struct {
	parallel        bool
	preSendDelay    time.Duration
	perSendInterval time.Duration // only meaningful when !parallel
}

func planFor(priority types.Priority, isFounder bool) tierPlan {
	switch priority {
	case types.PriorityElite:
		delay := 250 * time.Millisecond
		if isFounder {
			delay = 0
		}
		return tierPlan{parallel: true, preSendDelay: delay}
	case types.PriorityArchitect:
		return tierPlan{parallel: true, preSendDelay: 500 * time.Millisecond}
	case types.PriorityPartner:
		return tierPlan{parallel: true, preSendDelay: 750 * time.Millisecond}
	default:
		return tierPlan{parallel: false, perSendInterval: 100 * time.Millisecond}
	}
}

// DefaultSendTimeout bounds any single platform send; a send
// exceeding it is abandoned without recording a delivery.
const DefaultSendTimeout = 5 * time.Second

// outboundRateLimit caps the scheduler's total send rate across every tier,
// independent of the per-tier pacing in planFor, so a burst of parallel
// Elite sends can't trip the platform's own global rate limit.
const outboundRateLimit = 45 // requests/sec, just under discordgo's global bucket

// Scheduler fans a rendered embed out to every target channel.
type Scheduler struct {
	sender      Sender
	deliveries  DeliveryRecorder
	sendTimeout time.Duration
	outbound    *rate.Limiter
}

func New(sender Sender, deliveries DeliveryRecorder, sendTimeout time.Duration) *Scheduler {
	if sendTimeout <= 0 {
		sendTimeout = DefaultSendTimeout
	}
	return &Scheduler{
		sender:      sender,
		deliveries:  deliveries,
		sendTimeout: sendTimeout,
		outbound:    rate.NewLimiter(rate.Limit(outboundRateLimit), outboundRateLimit),
	}
}

// Result is the outcome of fanning one message out to its targets.
type Result struct {
	SentCount   int
	FailedCount int
}

// Deliver fans embed e out to every channel in targets, paced and
// parallelized according to priority. isFounder
// additionally drops the Elite-tier pre-send delay to zero.
func (s *Scheduler) Deliver(ctx context.Context, ccID, sourceMessageID string, e embed.Rendered, attachments []types.Attachment, targets []string, priority types.Priority, isFounder bool) (Result, error) {
	plan := planFor(priority, isFounder)

	if plan.parallel {
		return s.deliverParallel(ctx, ccID, sourceMessageID, e, attachments, targets, plan)
	}
	return s.deliverSequential(ctx, ccID, sourceMessageID, e, attachments, targets, plan)
}

func (s *Scheduler) deliverParallel(ctx context.Context, ccID, sourceMessageID string, e embed.Rendered, attachments []types.Attachment, targets []string, plan tierPlan) (Result, error) {
	if plan.preSendDelay > 0 {
		select {
		case <-time.After(plan.preSendDelay):
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}

	var mu sync.Mutex
	var result Result

	g, gctx := errgroup.WithContext(ctx)
	for _, target := range targets {
		target := target
		g.Go(func() error {
			ok := s.sendOne(gctx, ccID, sourceMessageID, e, attachments, target, false)
			mu.Lock()
			if ok {
				result.SentCount++
			} else {
				result.FailedCount++
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return result, nil
}

func (s *Scheduler) deliverSequential(ctx context.Context, ccID, sourceMessageID string, e embed.Rendered, attachments []types.Attachment, targets []string, plan tierPlan) (Result, error) {
	var result Result
	for i, target := range targets {
		if i > 0 && plan.perSendInterval > 0 {
			select {
			case <-time.After(plan.perSendInterval):
			case <-ctx.Done():
				return result, ctx.Err()
			}
		}
		if s.sendOne(ctx, ccID, sourceMessageID, e, attachments, target, true) {
			result.SentCount++
		} else {
			result.FailedCount++
			// The scheduler does not retry a failed target within the same
			// source event.
		}
	}
	return result, nil
}

// sendOne sends to one target under the scheduler's per-send timeout and
// records a delivery on success. Failures never abort fan-out to other
// targets.
func (s *Scheduler) sendOne(ctx context.Context, ccID, sourceMessageID string, e embed.Rendered, attachments []types.Attachment, target string, logFailures bool) bool {
	sendCtx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	defer cancel()

	if err := s.outbound.Wait(sendCtx); err != nil {
		return false
	}

	deliveredID, err := s.sender.Send(sendCtx, target, e, attachments)
	if err != nil {
		if logFailures {
			slog.Warn("fan-out send failed", "cc_id", ccID, "target_channel_id", target, "error", err)
		}
		return false
	}
	if err := s.deliveries.RecordDelivery(ctx, ccID, sourceMessageID, target, deliveredID); err != nil {
		slog.Error("delivery record write failed", "cc_id", ccID, "target_channel_id", target, "error", err)
		return false
	}
	return true
}
