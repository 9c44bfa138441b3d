// Package http hosts the Vote Webhook Receiver: a small
// HTTP surface (handler struct + constructor + RegisterRoutes) that accepts
// signed vote notifications and upserts them into the votes collection. The
// monthly-leaderboard aggregation and posting task itself stays out of scope.
package http

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/nextlevelbuilder/crosschat/internal/store"
)

const maxVoteBodyBytes = 1 << 16 // 64 KiB

// voteRequest is the wire payload a vote-tracking bot posts.
type voteRequest struct {
	User      string `json:"user"`
	Bot       string `json:"bot"`
	Type      string `json:"type"`
	IsWeekend bool   `json:"isWeekend"`
}

// VoteWebhookHandler upserts inbound vote notifications into store.VoteStore.
// Signature verification is skipped when secret is empty (local/dev mode).
type VoteWebhookHandler struct {
	votes   store.VoteStore
	secret  string
	limiter *webhookRateLimiter
}

// NewVoteWebhookHandler creates the vote webhook receiver.
func NewVoteWebhookHandler(votes store.VoteStore, secret string) *VoteWebhookHandler {
	return &VoteWebhookHandler{votes: votes, secret: secret, limiter: newWebhookRateLimiter()}
}

// RegisterRoutes registers the vote webhook route on mux.
func (h *VoteWebhookHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /webhook/vote", h.handleVote)
}

func (h *VoteWebhookHandler) handleVote(w http.ResponseWriter, r *http.Request) {
	if !h.limiter.allow(remoteKey(r)) {
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limited"})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxVoteBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "body too large"})
		return
	}

	if h.secret != "" {
		if !h.validSignature(r, body) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid signature"})
			return
		}
	}

	var req voteRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed body"})
		return
	}
	if req.User == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing user"})
		return
	}

	now := time.Now()
	month := now.UTC().Format("2006-01")
	if err := h.votes.RecordVote(r.Context(), req.User, month, now); err != nil {
		slog.Error("record vote failed", "user", req.User, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "record vote failed"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// remoteKey returns the rate-limit bucket key for an inbound request: the
// client IP without port, falling back to the raw RemoteAddr if it can't
// be split.
func remoteKey(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// validSignature checks the X-Signature header against an HMAC-SHA256 of
// the raw body keyed by the configured webhook secret, in constant time.
func (h *VoteWebhookHandler) validSignature(r *http.Request, body []byte) bool {
	got := r.Header.Get("X-Signature")
	if got == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(h.secret))
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
