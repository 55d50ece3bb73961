package server

import (
	"chat-match/observability"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type health struct {
	Status      string `json:"status"`
	Connections int    `json:"connections"`
	Waiting     int    `json:"waiting"`
	Chatting    int    `json:"chatting"`
	Matches     uint64 `json:"matches"`
	Relayed     uint64 `json:"relayed"`
	UpdatedAt   string `json:"updatedAt,omitempty"`
}

// NewRouter exposes the websocket endpoint and a health probe.
func NewRouter(chatServer *ChatServer, monitoring *observability.MonitoringManager, connectionCount func() int) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/ws", chatServer.ServeWS)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		stats := monitoring.GetLatest()
		body := health{
			Status:      "ok",
			Connections: connectionCount(),
			Waiting:     stats.WaitingSessions,
			Chatting:    stats.ChattingSessions,
			Matches:     stats.MatchesCommitted,
			Relayed:     stats.MessagesRelayed,
			UpdatedAt:   stats.UpdatedAt,
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	})
	return r
}
