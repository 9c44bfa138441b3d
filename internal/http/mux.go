package http

import (
	"encoding/json"
	"net/http"

	"github.com/nextlevelbuilder/crosschat/internal/store"
)

// NewMux assembles the HTTP listener's routes: the vote webhook receiver,
// kept as its own handler type so additional operator-facing endpoints can
// register alongside it without reshaping this function, and GET /healthz.
func NewMux(votes store.VoteStore, webhookSecret string) *http.ServeMux {
	mux := http.NewServeMux()
	NewVoteWebhookHandler(votes, webhookSecret).RegisterRoutes(mux)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return mux
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
