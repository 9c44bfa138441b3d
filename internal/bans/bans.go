// Package bans implements the Ban Store: per-user and
// per-server bans consulted on every inbound message. Like the Channel
// Registry, lookups are served from a short-TTL cache and writes invalidate
// immediately.
package bans

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/nextlevelbuilder/crosschat/internal/registry"
	"github.com/nextlevelbuilder/crosschat/internal/store"
)

// DefaultTTL mirrors the registry's 15-minute cache window.
const DefaultTTL = registry.DefaultTTL

// Store is the Ban Store: user and server bans, each independently
// cached so a banned user doesn't force a database hit on every message.
type Store struct {
	store       store.BanStore
	userCache   *lru.LRU[string, bool]
	serverCache *lru.LRU[string, bool]
}

// New constructs a Store backed by s, caching results for ttl.
func New(s store.BanStore, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		store:       s,
		userCache:   lru.NewLRU[string, bool](8192, nil, ttl),
		serverCache: lru.NewLRU[string, bool](8192, nil, ttl),
	}
}

// BanUser bans userID, optionally for a fixed duration (nil = permanent).
func (b *Store) BanUser(ctx context.Context, userID, reason, moderatorID string, duration *time.Duration) error {
	entry := store.BannedUser{
		UserID:      userID,
		Reason:      reason,
		ModeratorID: moderatorID,
		Duration:    duration,
		BannedAt:    time.Now(),
		Active:      true,
	}
	if err := b.store.BanUser(ctx, entry); err != nil {
		return fmt.Errorf("ban user: %w", err)
	}
	b.userCache.Add(userID, true)
	return nil
}

// UnbanUser lifts userID's ban.
func (b *Store) UnbanUser(ctx context.Context, userID string) error {
	if err := b.store.UnbanUser(ctx, userID); err != nil {
		return fmt.Errorf("unban user: %w", err)
	}
	b.userCache.Remove(userID)
	return nil
}

// IsUserBanned reports whether userID currently has an active ban,
// consulting the cache before the store. Expired timed bans read as not
// banned without requiring an explicit unban.
func (b *Store) IsUserBanned(ctx context.Context, userID string) (bool, error) {
	if banned, ok := b.userCache.Get(userID); ok {
		return banned, nil
	}
	banned, err := b.store.IsUserBanned(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("check user ban: %w", err)
	}
	b.userCache.Add(userID, banned)
	return banned, nil
}

// BanServer bans every member of serverID from relaying.
func (b *Store) BanServer(ctx context.Context, serverID, reason, moderatorID string) error {
	entry := store.BannedServer{
		ServerID:    serverID,
		Reason:      reason,
		ModeratorID: moderatorID,
		BannedAt:    time.Now(),
	}
	if err := b.store.BanServer(ctx, entry); err != nil {
		return fmt.Errorf("ban server: %w", err)
	}
	b.serverCache.Add(serverID, true)
	return nil
}

// UnbanServer lifts serverID's ban.
func (b *Store) UnbanServer(ctx context.Context, serverID string) error {
	if err := b.store.UnbanServer(ctx, serverID); err != nil {
		return fmt.Errorf("unban server: %w", err)
	}
	b.serverCache.Remove(serverID)
	return nil
}

// IsServerBanned reports whether serverID is currently banned.
func (b *Store) IsServerBanned(ctx context.Context, serverID string) (bool, error) {
	if banned, ok := b.serverCache.Get(serverID); ok {
		return banned, nil
	}
	banned, err := b.store.IsServerBanned(ctx, serverID)
	if err != nil {
		return false, fmt.Errorf("check server ban: %w", err)
	}
	b.serverCache.Add(serverID, banned)
	return banned, nil
}
