// Package registry implements the Channel Registry: the
// set of channels, one per server, that are wired into the relay. The
// active set is cached in-process with a TTL refresh so the hot path
// (every inbound message) never blocks on a database round trip; writes
// invalidate the cache immediately so registry changes take effect on the
// next message rather than at cache expiry.
package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nextlevelbuilder/crosschat/internal/store"
)

// DefaultTTL matches the 15-minute cache window used across the relay's
// registries.
const DefaultTTL = 15 * time.Minute

const (
	// MinSlowmodeSeconds and MaxSlowmodeSeconds bound the slowmode a relay
	// channel must carry.
	MinSlowmodeSeconds = 5
	MaxSlowmodeSeconds = 10
)

// ErrSlowmodeOutOfRange is returned by ValidateSlowmode when the requested
// slowmode falls outside [MinSlowmodeSeconds, MaxSlowmodeSeconds].
type ErrSlowmodeOutOfRange struct {
	Got int
}

func (e ErrSlowmodeOutOfRange) Error() string {
	return fmt.Sprintf("slowmode %ds outside required range [%ds,%ds]", e.Got, MinSlowmodeSeconds, MaxSlowmodeSeconds)
}

// Registry is the Channel Registry: one active relay channel per server.
// Both membership checks and full listings are served from one cached
// snapshot of the active set; refresh builds a new snapshot and publishes
// it whole, so readers never observe a partially updated set.
type Registry struct {
	store store.ChannelStore
	ttl   time.Duration

	mu        sync.RWMutex
	entries   []store.ChannelEntry
	byChannel map[string]store.ChannelEntry
	fetchedAt time.Time
}

// New constructs a Registry backed by s, with the active set cached for ttl.
func New(s store.ChannelStore, ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Registry{store: s, ttl: ttl}
}

// ValidateSlowmode enforces the 5-10s slowmode bound required of any
// channel before it is enabled.
func ValidateSlowmode(seconds int) error {
	if seconds < MinSlowmodeSeconds || seconds > MaxSlowmodeSeconds {
		return ErrSlowmodeOutOfRange{Got: seconds}
	}
	return nil
}

// Enable activates e as the relay channel for its server, replacing any
// prior channel for that server, and validates the channel's slowmode.
func (r *Registry) Enable(ctx context.Context, e store.ChannelEntry, slowmodeSeconds int) error {
	if err := ValidateSlowmode(slowmodeSeconds); err != nil {
		return err
	}
	e.Active = true
	if err := r.store.Upsert(ctx, e); err != nil {
		return fmt.Errorf("enable channel: %w", err)
	}
	// Invalidate rather than patch: the upsert may have deactivated a prior
	// channel for the same server, and only the store knows which.
	r.invalidate()
	return nil
}

// Disable deactivates the given channel.
func (r *Registry) Disable(ctx context.Context, channelID string) error {
	if err := r.store.Disable(ctx, channelID); err != nil {
		return fmt.Errorf("disable channel: %w", err)
	}
	r.invalidate()
	return nil
}

func (r *Registry) invalidate() {
	r.mu.Lock()
	r.fetchedAt = time.Time{}
	r.mu.Unlock()
}

// activeSet returns the cached active set, refreshing from the store when
// the snapshot is missing or past its TTL.
func (r *Registry) activeSet(ctx context.Context) ([]store.ChannelEntry, map[string]store.ChannelEntry, error) {
	r.mu.RLock()
	if !r.fetchedAt.IsZero() && time.Since(r.fetchedAt) < r.ttl {
		entries, byChannel := r.entries, r.byChannel
		r.mu.RUnlock()
		return entries, byChannel, nil
	}
	r.mu.RUnlock()

	entries, err := r.store.ListActive(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("refresh active channels: %w", err)
	}
	byChannel := make(map[string]store.ChannelEntry, len(entries))
	for _, e := range entries {
		byChannel[e.ChannelID] = e
	}

	r.mu.Lock()
	r.entries = entries
	r.byChannel = byChannel
	r.fetchedAt = time.Now()
	r.mu.Unlock()
	return entries, byChannel, nil
}

// IsRelayChannel reports whether channelID is an active relay channel,
// served from the cached active set.
func (r *Registry) IsRelayChannel(ctx context.Context, channelID string) (bool, error) {
	_, byChannel, err := r.activeSet(ctx)
	if err != nil {
		return false, err
	}
	_, ok := byChannel[channelID]
	return ok, nil
}

// ListActive returns every active relay channel from the cached snapshot.
// Callers must not mutate the returned slice; it is shared between readers
// until the next refresh.
func (r *Registry) ListActive(ctx context.Context) ([]store.ChannelEntry, error) {
	entries, _, err := r.activeSet(ctx)
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// GetByServer returns the relay channel configured for serverID, if any.
// Setup and operator listings use this; it is not on the ingress hot path,
// so it reads the store directly.
func (r *Registry) GetByServer(ctx context.Context, serverID string) (store.ChannelEntry, error) {
	return r.store.GetByServer(ctx, serverID)
}
