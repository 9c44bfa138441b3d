package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/nextlevelbuilder/crosschat/internal/auditlog"
	"github.com/nextlevelbuilder/crosschat/internal/automod"
	"github.com/nextlevelbuilder/crosschat/internal/bans"
	"github.com/nextlevelbuilder/crosschat/internal/config"
	"github.com/nextlevelbuilder/crosschat/internal/embed"
	"github.com/nextlevelbuilder/crosschat/internal/fingerprint"
	"github.com/nextlevelbuilder/crosschat/internal/msglog"
	"github.com/nextlevelbuilder/crosschat/internal/registry"
	"github.com/nextlevelbuilder/crosschat/internal/scheduler"
	"github.com/nextlevelbuilder/crosschat/internal/store"
	"github.com/nextlevelbuilder/crosschat/internal/tier"
	"github.com/nextlevelbuilder/crosschat/internal/types"
)

type fakeChannelStore struct {
	byChannel map[string]store.ChannelEntry
}

func (f *fakeChannelStore) Upsert(_ context.Context, e store.ChannelEntry) error {
	f.byChannel[e.ChannelID] = e
	return nil
}
func (f *fakeChannelStore) Disable(_ context.Context, channelID string) error {
	e := f.byChannel[channelID]
	e.Active = false
	f.byChannel[channelID] = e
	return nil
}
func (f *fakeChannelStore) ListActive(_ context.Context) ([]store.ChannelEntry, error) {
	var out []store.ChannelEntry
	for _, e := range f.byChannel {
		if e.Active {
			out = append(out, e)
		}
	}
	return out, nil
}
func (f *fakeChannelStore) GetByServer(_ context.Context, serverID string) (store.ChannelEntry, error) {
	for _, e := range f.byChannel {
		if e.ServerID == serverID {
			return e, nil
		}
	}
	return store.ChannelEntry{}, store.ErrNotFound
}

type fakeBanStore struct {
	users   map[string]bool
	servers map[string]bool
}

func (f *fakeBanStore) BanUser(_ context.Context, b store.BannedUser) error {
	f.users[b.UserID] = true
	return nil
}
func (f *fakeBanStore) UnbanUser(_ context.Context, userID string) error {
	delete(f.users, userID)
	return nil
}
func (f *fakeBanStore) IsUserBanned(_ context.Context, userID string) (bool, error) {
	return f.users[userID], nil
}
func (f *fakeBanStore) BanServer(_ context.Context, b store.BannedServer) error {
	f.servers[b.ServerID] = true
	return nil
}
func (f *fakeBanStore) UnbanServer(_ context.Context, serverID string) error {
	delete(f.servers, serverID)
	return nil
}
func (f *fakeBanStore) IsServerBanned(_ context.Context, serverID string) (bool, error) {
	return f.servers[serverID], nil
}

type fakeWhitelistStore struct{}

func (fakeWhitelistStore) Add(context.Context, store.WhitelistEntry) error    { return nil }
func (fakeWhitelistStore) Remove(context.Context, string, string) error      { return nil }
func (fakeWhitelistStore) List(context.Context) ([]store.WhitelistEntry, error) { return nil, nil }

type fakeModLogStore struct{ entries []store.ModerationLogEntry }

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

type fakeMessageStore struct {
	bySourceID map[string]store.MessageRecord
	byCCID     map[string]store.MessageRecord
}

func newFakeMessageStore() *fakeMessageStore {
	return &fakeMessageStore{bySourceID: map[string]store.MessageRecord{}, byCCID: map[string]store.MessageRecord{}}
}
func (f *fakeMessageStore) Insert(_ context.Context, m store.MessageRecord) error {
	if _, ok := f.bySourceID[m.SourceMessageID]; ok {
		return store.ErrConflict
	}
	f.bySourceID[m.SourceMessageID] = m
	f.byCCID[m.CCID] = m
	return nil
}
func (f *fakeMessageStore) GetBySourceMessageID(_ context.Context, id string) (store.MessageRecord, error) {
	if m, ok := f.bySourceID[id]; ok {
		return m, nil
	}
	return store.MessageRecord{}, store.ErrNotFound
}
func (f *fakeMessageStore) GetByCCID(_ context.Context, ccID string) (store.MessageRecord, error) {
	if m, ok := f.byCCID[ccID]; ok {
		return m, nil
	}
	return store.MessageRecord{}, store.ErrNotFound
}
func (f *fakeMessageStore) UpdateContent(_ context.Context, ccID, content string) error {
	m := f.byCCID[ccID]
	m.Content = content
	f.byCCID[ccID] = m
	return nil
}
func (f *fakeMessageStore) MarkDeleted(_ context.Context, ccID, by string, _ time.Time) error {
	return nil
}

type fakeDeliveryStore struct{ records []store.DeliveryRecord }

func (f *fakeDeliveryStore) Insert(_ context.Context, d store.DeliveryRecord) error {
	f.records = append(f.records, d)
	return nil
}
func (f *fakeDeliveryStore) ListByCCID(_ context.Context, ccID string) ([]store.DeliveryRecord, error) {
	var out []store.DeliveryRecord
	for _, d := range f.records {
		if d.CCID == ccID {
			out = append(out, d)
		}
	}
	return out, nil
}

type fakeSender struct{ sent []string }

func (f *fakeSender) Send(_ context.Context, channelID string, _ embed.Rendered, _ []types.Attachment) (string, error) {
	f.sent = append(f.sent, channelID)
	return "delivered-" + channelID, nil
}

type fakePlatform struct {
	reactions []string
	cleared   []string
	deleted   []string
	dmed      []string
	notices   []string
}

func (f *fakePlatform) React(_ context.Context, _, _, emoji string) error {
	f.reactions = append(f.reactions, emoji)
	return nil
}
func (f *fakePlatform) ClearReactions(_ context.Context, _, _, emoji string) error {
	f.cleared = append(f.cleared, emoji)
	return nil
}
func (f *fakePlatform) DMUser(_ context.Context, userID, _ string) error {
	f.dmed = append(f.dmed, userID)
	return nil
}
func (f *fakePlatform) DeleteSource(_ context.Context, channelID, messageID string) error {
	f.deleted = append(f.deleted, messageID)
	return nil
}
func (f *fakePlatform) SendText(_ context.Context, channelID, _ string) error {
	f.notices = append(f.notices, channelID)
	return nil
}

type testRig struct {
	orch     *Orchestrator
	channels *fakeChannelStore
	banStore *fakeBanStore
	sender   *fakeSender
	platform *fakePlatform
}

func newTestRig() *testRig {
	channels := &fakeChannelStore{byChannel: map[string]store.ChannelEntry{
		"c1": {ServerID: "s1", ChannelID: "c1", Active: true},
		"c2": {ServerID: "s2", ChannelID: "c2", Active: true},
	}}
	banBacking := &fakeBanStore{users: map[string]bool{}, servers: map[string]bool{}}

	reg := registry.New(channels, time.Minute)
	banStore := bans.New(banBacking, time.Minute)
	audit := auditlog.New(&fakeModLogStore{})
	tierResolver := tier.New(nil, nil, config.RolesConfig{}, config.OwnerConfig{})
	pipeline := automod.New(fakeWhitelistStore{}, banStore, audit, config.AutomodConfig{})
	messages := newFakeMessageStore()
	allocator := fingerprint.New(messages)
	log := msglog.New(messages, &fakeDeliveryStore{})
	sender := &fakeSender{}
	sched := scheduler.New(sender, log, time.Second)
	platform := &fakePlatform{}

	orch := New(reg, banStore, tierResolver, pipeline, allocator, log, sched, platform)
	return &testRig{orch: orch, channels: channels, banStore: banBacking, sender: sender, platform: platform}
}

func baseMessage() types.SourceMessage {
	return types.SourceMessage{
		SourceMessageID: "src1",
		SourceServerID:  "s1",
		SourceChannelID: "c1",
		AuthorID:        "u1",
		Content:         "hello fleet",
		CreatedAt:       time.Now(),
	}
}

func TestProcess_PrivacyIgnoredForNonRelayChannel(t *testing.T) {
	rig := newTestRig()
	m := baseMessage()
	m.SourceChannelID = "not-a-relay-channel"

	res := rig.orch.Process(context.Background(), m)
	if res.Outcome != types.OutcomePrivacyIgnored {
		t.Fatalf("expected privacy ignored, got %+v", res)
	}
}

func TestProcess_HappyPathDeliversToOtherActiveChannels(t *testing.T) {
	rig := newTestRig()
	res := rig.orch.Process(context.Background(), baseMessage())

	if res.Outcome != types.OutcomeProcessed {
		t.Fatalf("expected processed, got %+v", res)
	}
	if res.CCID == "" {
		t.Fatalf("expected a cc-id to be assigned")
	}
	if res.Deliveries != 1 {
		t.Fatalf("expected exactly one delivery (to c2, not the source c1), got %d", res.Deliveries)
	}
	if len(rig.sender.sent) != 1 || rig.sender.sent[0] != "c2" {
		t.Fatalf("expected delivery to c2 only, got %v", rig.sender.sent)
	}
}

func TestProcess_BannedUserIsBlocked(t *testing.T) {
	rig := newTestRig()
	rig.banStore.users["u1"] = true

	res := rig.orch.Process(context.Background(), baseMessage())
	if res.Outcome != types.OutcomeBanned {
		t.Fatalf("expected banned outcome, got %+v", res)
	}
	if len(rig.sender.sent) != 0 {
		t.Fatalf("expected no deliveries for a banned user, got %v", rig.sender.sent)
	}
	if len(rig.platform.dmed) != 1 || rig.platform.dmed[0] != "u1" {
		t.Fatalf("expected the banned user to be DM'd, got %v", rig.platform.dmed)
	}
}

func TestProcess_CapsMessageIsBlockedAndSourceDeleted(t *testing.T) {
	rig := newTestRig()
	m := baseMessage()
	m.Content = "AAAAAAAAAA"

	res := rig.orch.Process(context.Background(), m)
	if res.Outcome != types.OutcomeBlocked {
		t.Fatalf("expected blocked outcome, got %+v", res)
	}
	if len(rig.platform.deleted) != 1 {
		t.Fatalf("expected source message to be deleted, got %v", rig.platform.deleted)
	}
	if len(rig.sender.sent) != 0 {
		t.Fatalf("expected no deliveries for a flagged message, got %v", rig.sender.sent)
	}
	warned := false
	for _, r := range rig.platform.reactions {
		if r == reactionBlocked {
			warned = true
		}
	}
	if !warned {
		t.Fatalf("expected a warning reaction on the source, got %v", rig.platform.reactions)
	}
}

func TestProcess_DuplicateSourceMessageIsIdempotent(t *testing.T) {
	rig := newTestRig()
	ctx := context.Background()

	first := rig.orch.Process(ctx, baseMessage())
	if first.Outcome != types.OutcomeProcessed {
		t.Fatalf("expected first process to succeed, got %+v", first)
	}
	second := rig.orch.Process(ctx, baseMessage())
	if second.Outcome != types.OutcomeProcessed || second.CCID != first.CCID {
		t.Fatalf("expected duplicate ingress to return the same cc-id, got %+v vs %+v", first, second)
	}
	if len(rig.sender.sent) != 1 {
		t.Fatalf("expected no re-delivery on duplicate ingress, sent=%v", rig.sender.sent)
	}
}

func TestProcess_EmptyContentWithoutAttachmentsIsIgnored(t *testing.T) {
	rig := newTestRig()
	m := baseMessage()
	m.Content = ""
	m.Attachments = nil

	res := rig.orch.Process(context.Background(), m)
	if res.Outcome != types.OutcomePrivacyIgnored {
		t.Fatalf("expected privacy ignored for empty content, got %+v", res)
	}
}
