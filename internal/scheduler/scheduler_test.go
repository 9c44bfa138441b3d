package scheduler

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nextlevelbuilder/crosschat/internal/embed"
	"github.com/nextlevelbuilder/crosschat/internal/types"
)

type fakeSender struct {
	mu        sync.Mutex
	sent      []string
	failFor   map[string]bool
	nextMsgID int
}

func newFakeSender(failFor ...string) *fakeSender {
	set := make(map[string]bool, len(failFor))
	for _, f := range failFor {
		set[f] = true
	}
	return &fakeSender{failFor: set}
}

func (f *fakeSender) Send(_ context.Context, channelID string, _ embed.Rendered, _ []types.Attachment) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[channelID] {
		return "", fmt.Errorf("send to %s failed", channelID)
	}
	f.nextMsgID++
	f.sent = append(f.sent, channelID)
	return fmt.Sprintf("msg-%d", f.nextMsgID), nil
}

type fakeDeliveryRecorder struct {
	mu      sync.Mutex
	records []string
}

func (f *fakeDeliveryRecorder) RecordDelivery(_ context.Context, ccID, sourceMessageID, targetChannelID, deliveredMessageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, targetChannelID+":"+deliveredMessageID)
	return nil
}

func TestDeliver_ParallelFounderHasNoPreSendDelay(t *testing.T) {
	sender := newFakeSender()
	recorder := &fakeDeliveryRecorder{}
	s := New(sender, recorder, time.Second)

	start := time.Now()
	result, err := s.Deliver(context.Background(), "cc1", "src1", embed.Rendered{}, nil,
		[]string{"c1", "c2", "c3"}, types.PriorityElite, true)
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if result.SentCount != 3 || result.FailedCount != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if elapsed > 200*time.Millisecond {
		t.Fatalf("expected founder fan-out to skip the pre-send delay, took %s", elapsed)
	}
	if len(recorder.records) != 3 {
		t.Fatalf("expected 3 delivery records, got %d", len(recorder.records))
	}
}

func TestDeliver_SequentialStandardCountsFailuresWithoutAborting(t *testing.T) {
	sender := newFakeSender("c2")
	recorder := &fakeDeliveryRecorder{}
	s := New(sender, recorder, time.Second)

	result, err := s.Deliver(context.Background(), "cc1", "src1", embed.Rendered{}, nil,
		[]string{"c1", "c2", "c3"}, types.PriorityStandard, false)
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if result.SentCount != 2 || result.FailedCount != 1 {
		t.Fatalf("expected 2 sent and 1 failed, got %+v", result)
	}
	if len(recorder.records) != 2 {
		t.Fatalf("expected 2 delivery records, got %d", len(recorder.records))
	}
}

func TestDeliver_ElitePreSendDelayAppliedWithoutFounder(t *testing.T) {
	sender := newFakeSender()
	recorder := &fakeDeliveryRecorder{}
	s := New(sender, recorder, time.Second)

	start := time.Now()
	result, err := s.Deliver(context.Background(), "cc1", "src1", embed.Rendered{}, nil,
		[]string{"c1"}, types.PriorityElite, false)
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if result.SentCount != 1 {
		t.Fatalf("expected 1 sent, got %+v", result)
	}
	if elapsed < 200*time.Millisecond {
		t.Fatalf("expected non-founder elite delivery to carry the 250ms pre-send delay, took %s", elapsed)
	}
}
