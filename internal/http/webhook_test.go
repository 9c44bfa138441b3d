package http

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nextlevelbuilder/crosschat/internal/store"
)

type fakeVoteStore struct {
	recorded []string
	err      error
}

func (f *fakeVoteStore) RecordVote(_ context.Context, userID, month string, _ time.Time) error {
	if f.err != nil {
		return f.err
	}
	f.recorded = append(f.recorded, userID+"/"+month)
	return nil
}

func (f *fakeVoteStore) GetVotes(_ context.Context, userID, month string) (store.VoteRecord, error) {
	return store.VoteRecord{UserID: userID, Month: month}, nil
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVoteWebhook_ValidSignature(t *testing.T) {
	votes := &fakeVoteStore{}
	mux := NewMux(votes, "topgg-secret")

	body := []byte(`{"user":"u1","bot":"b1","type":"upvote","isWeekend":false}`)
	req := httptest.NewRequest(http.MethodPost, "/webhook/vote", bytes.NewReader(body))
	req.Header.Set("X-Signature", sign("topgg-secret", body))
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(votes.recorded) != 1 {
		t.Fatalf("expected one vote recorded, got %d", len(votes.recorded))
	}
}

func TestVoteWebhook_InvalidSignature(t *testing.T) {
	votes := &fakeVoteStore{}
	mux := NewMux(votes, "topgg-secret")

	body := []byte(`{"user":"u1"}`)
	req := httptest.NewRequest(http.MethodPost, "/webhook/vote", bytes.NewReader(body))
	req.Header.Set("X-Signature", "deadbeef")
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if len(votes.recorded) != 0 {
		t.Fatalf("expected no vote recorded on bad signature, got %d", len(votes.recorded))
	}
}

func TestVoteWebhook_MissingUser(t *testing.T) {
	votes := &fakeVoteStore{}
	mux := NewMux(votes, "") // no secret configured: signature check skipped

	body := []byte(`{"bot":"b1"}`)
	req := httptest.NewRequest(http.MethodPost, "/webhook/vote", bytes.NewReader(body))
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestVoteWebhook_NoSecretConfigured(t *testing.T) {
	votes := &fakeVoteStore{}
	mux := NewMux(votes, "")

	body := []byte(`{"user":"u2"}`)
	req := httptest.NewRequest(http.MethodPost, "/webhook/vote", bytes.NewReader(body))
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 when no secret configured, got %d", w.Code)
	}
	if len(votes.recorded) != 1 {
		t.Fatalf("expected one vote recorded, got %d", len(votes.recorded))
	}
}
