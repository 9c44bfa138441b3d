package bans

import (
	"context"
	"testing"
	"time"

	"github.com/nextlevelbuilder/crosschat/internal/store"
)

type fakeBanStore struct {
	users   map[string]store.BannedUser
	servers map[string]store.BannedServer
}

func newFakeBanStore() *fakeBanStore {
	return &fakeBanStore{users: map[string]store.BannedUser{}, servers: map[string]store.BannedServer{}}
}

func (f *fakeBanStore) BanUser(_ context.Context, b store.BannedUser) error {
	f.users[b.UserID] = b
	return nil
}
func (f *fakeBanStore) UnbanUser(_ context.Context, userID string) error {
	delete(f.users, userID)
	return nil
}
func (f *fakeBanStore) IsUserBanned(_ context.Context, userID string) (bool, error) {
	_, ok := f.users[userID]
	return ok, nil
}
func (f *fakeBanStore) BanServer(_ context.Context, b store.BannedServer) error {
	f.servers[b.ServerID] = b
	return nil
}
func (f *fakeBanStore) UnbanServer(_ context.Context, serverID string) error {
	delete(f.servers, serverID)
	return nil
}
func (f *fakeBanStore) IsServerBanned(_ context.Context, serverID string) (bool, error) {
	_, ok := f.servers[serverID]
	return ok, nil
}

func TestBanUserThenIsUserBanned(t *testing.T) {
	b := New(newFakeBanStore(), time.Minute)
	ctx := context.Background()

	if err := b.BanUser(ctx, "u1", "spam", "mod1", nil); err != nil {
		t.Fatalf("ban user: %v", err)
	}
	banned, err := b.IsUserBanned(ctx, "u1")
	if err != nil {
		t.Fatalf("is user banned: %v", err)
	}
	if !banned {
		t.Fatalf("expected u1 to be banned")
	}
}

func TestUnbanUser_ClearsCache(t *testing.T) {
	backing := newFakeBanStore()
	b := New(backing, time.Minute)
	ctx := context.Background()

	if err := b.BanUser(ctx, "u1", "spam", "mod1", nil); err != nil {
		t.Fatalf("ban user: %v", err)
	}
	if _, err := b.IsUserBanned(ctx, "u1"); err != nil {
		t.Fatalf("is user banned: %v", err)
	}
	if err := b.UnbanUser(ctx, "u1"); err != nil {
		t.Fatalf("unban user: %v", err)
	}
	banned, err := b.IsUserBanned(ctx, "u1")
	if err != nil {
		t.Fatalf("is user banned after unban: %v", err)
	}
	if banned {
		t.Fatalf("expected u1 to no longer be banned")
	}
}

func TestBanServerThenIsServerBanned(t *testing.T) {
	b := New(newFakeBanStore(), time.Minute)
	ctx := context.Background()

	if err := b.BanServer(ctx, "s1", "abuse", "mod1"); err != nil {
		t.Fatalf("ban server: %v", err)
	}
	banned, err := b.IsServerBanned(ctx, "s1")
	if err != nil {
		t.Fatalf("is server banned: %v", err)
	}
	if !banned {
		t.Fatalf("expected s1 to be banned")
	}
}

func TestIsUserBanned_ServesFromCacheWithoutStoreHit(t *testing.T) {
	backing := newFakeBanStore()
	b := New(backing, time.Minute)
	ctx := context.Background()

	if _, err := b.IsUserBanned(ctx, "u2"); err != nil {
		t.Fatalf("is user banned: %v", err)
	}
	// Directly ban in the backing store, bypassing the cache.
	backing.users["u2"] = store.BannedUser{UserID: "u2"}
	banned, err := b.IsUserBanned(ctx, "u2")
	if err != nil {
		t.Fatalf("is user banned (cached): %v", err)
	}
	if banned {
		t.Fatalf("expected cached false result to be served, not the backing store's new state")
	}
}
