package fingerprint

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/nextlevelbuilder/crosschat/internal/store"
)

type fakeMessageStore struct {
	bySourceID map[string]store.MessageRecord
	byCCID     map[string]store.MessageRecord
	insertErr  error
}

func newFakeMessageStore() *fakeMessageStore {
	return &fakeMessageStore{
		bySourceID: map[string]store.MessageRecord{},
		byCCID:     map[string]store.MessageRecord{},
	}
}

func (f *fakeMessageStore) Insert(_ context.Context, m store.MessageRecord) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	if _, ok := f.bySourceID[m.SourceMessageID]; ok {
		return store.ErrConflict
	}
	if _, ok := f.byCCID[m.CCID]; ok {
		return store.ErrConflict
	}
	f.bySourceID[m.SourceMessageID] = m
	f.byCCID[m.CCID] = m
	return nil
}

func (f *fakeMessageStore) GetBySourceMessageID(_ context.Context, sourceMessageID string) (store.MessageRecord, error) {
	if m, ok := f.bySourceID[sourceMessageID]; ok {
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

func (f *fakeMessageStore) MarkDeleted(_ context.Context, ccID, by string, _ time.Time) error {
	return nil
}

func TestAssign_NewMessageGetsCCID(t *testing.T) {
	messages := newFakeMessageStore()
	a := New(messages)

	ccID, created, err := a.Assign(context.Background(), "src1", Snapshot{SourceUserID: "u1"})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if len(ccID) != 8 {
		t.Fatalf("expected an 8-character cc-id, got %q", ccID)
	}
	if !created {
		t.Fatalf("expected first assign to win the insert")
	}
	if _, ok := messages.byCCID[ccID]; !ok {
		t.Fatalf("expected message record to be stored")
	}
}

func TestAssign_VIPPrefixed(t *testing.T) {
	messages := newFakeMessageStore()
	a := New(messages)

	ccID, _, err := a.Assign(context.Background(), "src1", Snapshot{IsVIP: true})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if !strings.HasPrefix(ccID, "V") {
		t.Fatalf("expected VIP cc-id to start with V, got %q", ccID)
	}
	if len(ccID) != 9 {
		t.Fatalf("expected a 9-character VIP cc-id, got %q", ccID)
	}
}

func TestAssign_IdempotentViaLocalCache(t *testing.T) {
	messages := newFakeMessageStore()
	a := New(messages)

	first, created, err := a.Assign(context.Background(), "src1", Snapshot{})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if !created {
		t.Fatalf("expected first assign to win the insert")
	}
	second, createdAgain, err := a.Assign(context.Background(), "src1", Snapshot{})
	if err != nil {
		t.Fatalf("assign again: %v", err)
	}
	if createdAgain {
		t.Fatalf("expected repeated assign to report an existing row")
	}
	if first != second {
		t.Fatalf("expected idempotent cc-id, got %q and %q", first, second)
	}
	if len(messages.bySourceID) != 1 {
		t.Fatalf("expected exactly one stored record, got %d", len(messages.bySourceID))
	}
}

func TestAssign_IdempotentViaStoreLookup(t *testing.T) {
	messages := newFakeMessageStore()
	a1 := New(messages)
	first, _, err := a1.Assign(context.Background(), "src1", Snapshot{})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}

	// A second allocator (simulating another process) has no local cache
	// entry but must observe the same winning CC-ID via the store.
	a2 := New(messages)
	second, created, err := a2.Assign(context.Background(), "src1", Snapshot{})
	if err != nil {
		t.Fatalf("assign via second allocator: %v", err)
	}
	if created {
		t.Fatalf("expected second allocator to lose the race")
	}
	if first != second {
		t.Fatalf("expected fleet-wide idempotent cc-id, got %q and %q", first, second)
	}
}
