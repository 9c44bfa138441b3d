package propagator

import (
	"context"
	"testing"
	"time"

	"github.com/nextlevelbuilder/crosschat/internal/auditlog"
	"github.com/nextlevelbuilder/crosschat/internal/msglog"
	"github.com/nextlevelbuilder/crosschat/internal/registry"
	"github.com/nextlevelbuilder/crosschat/internal/store"
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

type fakeMessageStore struct {
	bySourceID map[string]store.MessageRecord
	byCCID     map[string]store.MessageRecord
}

func newFakeMessageStore() *fakeMessageStore {
	return &fakeMessageStore{bySourceID: map[string]store.MessageRecord{}, byCCID: map[string]store.MessageRecord{}}
}
func (f *fakeMessageStore) Insert(_ context.Context, m store.MessageRecord) error {
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
	f.bySourceID[m.SourceMessageID] = m
	return nil
}
func (f *fakeMessageStore) MarkDeleted(_ context.Context, ccID, by string, at time.Time) error {
	m := f.byCCID[ccID]
	m.IsDeleted = true
	m.DeletedBy = by
	m.DeletedAt = &at
	f.byCCID[ccID] = m
	f.bySourceID[m.SourceMessageID] = m
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

type fakeModLogStore struct{ entries []store.ModerationLogEntry }

func (f *fakeModLogStore) Append(_ context.Context, e store.ModerationLogEntry) error {
	f.entries = append(f.entries, e)
	return nil
}
func (f *fakeModLogStore) ListByTarget(_ context.Context, targetID string, _ int) ([]store.ModerationLogEntry, error) {
	return nil, nil
}

type fakePlatform struct {
	edited        []string
	deleted       []string
	reactions     []string
	failDeleteFor map[string]bool
}

func (f *fakePlatform) EditDescription(_ context.Context, _, messageID, _ string) error {
	f.edited = append(f.edited, messageID)
	return nil
}

func (f *fakePlatform) React(_ context.Context, _, _, emoji string) error {
	f.reactions = append(f.reactions, emoji)
	return nil
}
func (f *fakePlatform) DeleteDelivered(_ context.Context, _, messageID string) error {
	if f.failDeleteFor[messageID] {
		return errDeleteFailed
	}
	f.deleted = append(f.deleted, messageID)
	return nil
}

type fakeErr string

func (e fakeErr) Error() string { return string(e) }

const errDeleteFailed = fakeErr("delete failed")

func newTestRig() (*Propagator, *fakeChannelStore, *fakeMessageStore, *fakeDeliveryStore, *fakePlatform) {
	channels := &fakeChannelStore{byChannel: map[string]store.ChannelEntry{
		"c1": {ServerID: "s1", ChannelID: "c1", Active: true},
	}}
	messages := newFakeMessageStore()
	deliveries := &fakeDeliveryStore{}
	platform := &fakePlatform{failDeleteFor: map[string]bool{}}

	reg := registry.New(channels, time.Minute)
	log := msglog.New(messages, deliveries)
	audit := auditlog.New(&fakeModLogStore{})

	return New(log, reg, audit, platform), channels, messages, deliveries, platform
}

func TestEdit_IgnoredWhenSourceChannelIsNotActive(t *testing.T) {
	p, channels, messages, _, platform := newTestRig()
	ctx := context.Background()
	messages.Insert(ctx, store.MessageRecord{SourceMessageID: "src1", CCID: "CC1"})
	channels.byChannel["c1"] = store.ChannelEntry{ServerID: "s1", ChannelID: "c1", Active: false}

	if err := p.Edit(ctx, "c1", "src1", "new content"); err != nil {
		t.Fatalf("edit: %v", err)
	}
	if len(platform.edited) != 0 {
		t.Fatalf("expected no edits when channel is inactive, got %v", platform.edited)
	}
}

func TestEdit_IgnoredWhenNoMessageRecordExists(t *testing.T) {
	p, _, _, _, platform := newTestRig()
	ctx := context.Background()

	if err := p.Edit(ctx, "c1", "unknown-src", "new content"); err != nil {
		t.Fatalf("edit: %v", err)
	}
	if len(platform.edited) != 0 {
		t.Fatalf("expected no edits for an unknown source message, got %v", platform.edited)
	}
}

func TestEdit_PropagatesToEveryDelivery(t *testing.T) {
	p, _, messages, deliveries, platform := newTestRig()
	ctx := context.Background()
	messages.Insert(ctx, store.MessageRecord{SourceMessageID: "src1", CCID: "CC1"})
	deliveries.Insert(ctx, store.DeliveryRecord{CCID: "CC1", TargetChannelID: "c2", DeliveredMessageID: "m2"})
	deliveries.Insert(ctx, store.DeliveryRecord{CCID: "CC1", TargetChannelID: "c3", DeliveredMessageID: "m3"})

	if err := p.Edit(ctx, "c1", "src1", "edited content"); err != nil {
		t.Fatalf("edit: %v", err)
	}
	if len(platform.edited) != 2 {
		t.Fatalf("expected edits to propagate to both deliveries, got %v", platform.edited)
	}
	if messages.byCCID["CC1"].Content != "edited content" {
		t.Fatalf("expected stored content to be updated, got %q", messages.byCCID["CC1"].Content)
	}
	if len(platform.reactions) != 1 || platform.reactions[0] != reactionEdited {
		t.Fatalf("expected an edited reaction on the source, got %v", platform.reactions)
	}
}

func TestDelete_ReturnsZeroForUnknownCCID(t *testing.T) {
	p, _, _, _, _ := newTestRig()
	res, err := p.Delete(context.Background(), "does-not-exist", "mod1")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if res.AffectedCount != 0 {
		t.Fatalf("expected zero affected count, got %+v", res)
	}
}

func TestDelete_IsIdempotentOnAlreadyDeleted(t *testing.T) {
	p, _, messages, deliveries, platform := newTestRig()
	ctx := context.Background()
	messages.Insert(ctx, store.MessageRecord{SourceMessageID: "src1", CCID: "CC1"})
	deliveries.Insert(ctx, store.DeliveryRecord{CCID: "CC1", TargetChannelID: "c2", DeliveredMessageID: "m2"})

	first, err := p.Delete(ctx, "CC1", "mod1")
	if err != nil {
		t.Fatalf("first delete: %v", err)
	}
	if first.AffectedCount != 1 {
		t.Fatalf("expected first delete to affect one delivery, got %+v", first)
	}

	second, err := p.Delete(ctx, "CC1", "mod1")
	if err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if second.AffectedCount != 0 {
		t.Fatalf("expected repeated delete to be a no-op, got %+v", second)
	}
	if len(platform.deleted) != 1 {
		t.Fatalf("expected only the first delete to reach the platform, got %v", platform.deleted)
	}
}

func TestDelete_SkipsFailedDeliveriesWithoutAborting(t *testing.T) {
	p, _, messages, deliveries, platform := newTestRig()
	ctx := context.Background()
	messages.Insert(ctx, store.MessageRecord{SourceMessageID: "src1", CCID: "CC1"})
	deliveries.Insert(ctx, store.DeliveryRecord{CCID: "CC1", TargetChannelID: "c2", DeliveredMessageID: "m2"})
	deliveries.Insert(ctx, store.DeliveryRecord{CCID: "CC1", TargetChannelID: "c3", DeliveredMessageID: "m3"})
	platform.failDeleteFor["m2"] = true

	res, err := p.Delete(ctx, "CC1", "mod1")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if res.AffectedCount != 1 {
		t.Fatalf("expected one successful deletion despite the other failing, got %+v", res)
	}
	if !messages.byCCID["CC1"].IsDeleted {
		t.Fatalf("expected the message record to be marked deleted regardless of partial delivery failures")
	}
}
