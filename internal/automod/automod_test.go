package automod

import (
	"context"
	"testing"
	"time"

	"github.com/nextlevelbuilder/crosschat/internal/auditlog"
	"github.com/nextlevelbuilder/crosschat/internal/bans"
	"github.com/nextlevelbuilder/crosschat/internal/config"
	"github.com/nextlevelbuilder/crosschat/internal/store"
	"github.com/nextlevelbuilder/crosschat/internal/types"
)

type fakeWhitelistStore struct {
	entries []store.WhitelistEntry
}

func (f *fakeWhitelistStore) Add(_ context.Context, e store.WhitelistEntry) error {
	f.entries = append(f.entries, e)
	return nil
}
func (f *fakeWhitelistStore) Remove(_ context.Context, kind, identifier string) error {
	kept := f.entries[:0]
	for _, e := range f.entries {
		if e.Kind == kind && e.Identifier == identifier {
			continue
		}
		kept = append(kept, e)
	}
	f.entries = kept
	return nil
}
func (f *fakeWhitelistStore) List(_ context.Context) ([]store.WhitelistEntry, error) {
	return f.entries, nil
}

type fakeBanStore struct {
	users map[string]store.BannedUser
}

func newFakeBanStore() *fakeBanStore { return &fakeBanStore{users: map[string]store.BannedUser{}} }

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
func (f *fakeBanStore) BanServer(context.Context, store.BannedServer) error { return nil }
func (f *fakeBanStore) UnbanServer(context.Context, string) error          { return nil }
func (f *fakeBanStore) IsServerBanned(context.Context, string) (bool, error) {
	return false, nil
}

type fakeModLogStore struct {
	entries []store.ModerationLogEntry
}

func (f *fakeModLogStore) Append(_ context.Context, e store.ModerationLogEntry) error {
	f.entries = append(f.entries, e)
	return nil
}
func (f *fakeModLogStore) ListByTarget(_ context.Context, targetID string, _ int) ([]store.ModerationLogEntry, error) {
	var out []store.ModerationLogEntry
	for _, e := range f.entries {
		if e.TargetID == targetID {
			out = append(out, e)
		}
	}
	return out, nil
}

func newTestPipeline(cfg config.AutomodConfig) (*Pipeline, *fakeBanStore) {
	whitelist := &fakeWhitelistStore{}
	banBacking := newFakeBanStore()
	banStore := bans.New(banBacking, time.Minute)
	audit := auditlog.New(&fakeModLogStore{})
	return New(whitelist, banStore, audit, cfg), banBacking
}

func TestEvaluate_AllowsCleanMessage(t *testing.T) {
	p, _ := newTestPipeline(config.AutomodConfig{})
	out, err := p.Evaluate(context.Background(), Message{AuthorID: "u1", Content: "hello there"})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if out.Kind != types.AutomodAllow {
		t.Fatalf("expected allow, got %+v", out)
	}
}

func TestEvaluate_WhitelistedUserBypassesEverything(t *testing.T) {
	p, _ := newTestPipeline(config.AutomodConfig{LinkFilterEnabled: true})
	ctx := context.Background()
	if err := p.AddWhitelist(ctx, store.WhitelistEntry{Kind: "user", Identifier: "u1"}); err != nil {
		t.Fatalf("add whitelist: %v", err)
	}
	out, err := p.Evaluate(ctx, Message{AuthorID: "u1", Content: "check out http://example.com"})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if out.Kind != types.AutomodAllow {
		t.Fatalf("expected whitelisted user to bypass link filter, got %+v", out)
	}
}

func TestEvaluate_RateLimitExceeded(t *testing.T) {
	p, _ := newTestPipeline(config.AutomodConfig{RateLimitCount: 2})
	ctx := context.Background()
	msg := Message{AuthorID: "u1", Content: "hi"}

	for i := 0; i < 2; i++ {
		if _, err := p.Evaluate(ctx, msg); err != nil {
			t.Fatalf("evaluate: %v", err)
		}
	}
	out, err := p.Evaluate(ctx, msg)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if out.Kind != types.AutomodDelete || out.Category != types.CategorySpam {
		t.Fatalf("expected rate limit delete, got %+v", out)
	}
}

func TestEvaluate_LinkFilterDeletesWhenEnabled(t *testing.T) {
	p, _ := newTestPipeline(config.AutomodConfig{LinkFilterEnabled: true})
	out, err := p.Evaluate(context.Background(), Message{AuthorID: "u1", Content: "visit https://example.com now"})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if out.Kind != types.AutomodDelete || out.Category != types.CategoryLinks {
		t.Fatalf("expected link filter delete, got %+v", out)
	}
}

func TestEvaluate_CapsDeletes(t *testing.T) {
	p, _ := newTestPipeline(config.AutomodConfig{})
	out, err := p.Evaluate(context.Background(), Message{AuthorID: "u1", Content: "AAAAAAAAAA"})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if out.Kind != types.AutomodDelete || out.Category != types.CategoryCaps {
		t.Fatalf("expected caps delete, got %+v", out)
	}
}

func TestEvaluate_CapsBoundaryLength(t *testing.T) {
	p, _ := newTestPipeline(config.AutomodConfig{})
	// Nine all-caps characters sit below the length floor and pass.
	out, err := p.Evaluate(context.Background(), Message{AuthorID: "u2", Content: "AAAAAAAAA"})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if out.Kind != types.AutomodAllow {
		t.Fatalf("expected 9-char all-caps to pass, got %+v", out)
	}
}

func TestRecordViolation_EscalatesToWarningThenBan(t *testing.T) {
	cfg := config.AutomodConfig{ViolationsPerWarning: 2, WarningsPerBan: 2, BanDurationSeconds: 60}
	p, banBacking := newTestPipeline(cfg)
	ctx := context.Background()

	// First violation: no escalation yet.
	notice, err := p.RecordViolation(ctx, "u1", types.CategoryCaps)
	if err != nil {
		t.Fatalf("record violation 1: %v", err)
	}
	if notice != nil {
		t.Fatalf("expected no notice before threshold, got %+v", notice)
	}

	// Second violation crosses ViolationsPerWarning=2: first warning.
	notice, err = p.RecordViolation(ctx, "u1", types.CategoryCaps)
	if err != nil {
		t.Fatalf("record violation 2: %v", err)
	}
	if notice == nil || notice.Scope != types.ScopeServer {
		t.Fatalf("expected server-scoped warning notice, got %+v", notice)
	}

	// Two more violations cross the second warning, which equals
	// WarningsPerBan=2 and escalates to a network-wide service ban.
	if _, err := p.RecordViolation(ctx, "u1", types.CategoryCaps); err != nil {
		t.Fatalf("record violation 3: %v", err)
	}
	notice, err = p.RecordViolation(ctx, "u1", types.CategoryCaps)
	if err != nil {
		t.Fatalf("record violation 4: %v", err)
	}
	if notice == nil || notice.Scope != types.ScopeNetwork {
		t.Fatalf("expected network-wide ban notice, got %+v", notice)
	}
	if _, banned := banBacking.users["u1"]; !banned {
		t.Fatalf("expected u1 to be service-banned")
	}
}

func TestNotice_NeverNamesUser(t *testing.T) {
	n := Notice{Scope: types.ScopeServer, Category: types.CategoryToxic}
	text := n.Text()
	if text == "" {
		t.Fatalf("expected non-empty notice text")
	}
	// The notice must describe the category and scope only.
	if got, want := text, "A moderation action was taken in this server for: Toxic."; got != want {
		t.Fatalf("unexpected notice text: %q", got)
	}
}
