// Package api exposes the loopback control surface the operator plane
// uses to drive the bot session.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"checador-bot/internal/connection"
)

// BotControl is the slice of the connection manager the control API
// needs.
type BotControl interface {
	Status() connection.State
	PairingArtifact() string
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	ResetCredentials(ctx context.Context) error
}

type Server struct {
	bot BotControl
	log *zap.Logger
}

func New(bot BotControl, log *zap.Logger) *Server {
	return &Server{bot: bot, log: log}
}

// Handler returns the control API. All responses are JSON, CORS is
// open, and unknown paths or methods get a 404.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.route)
}

func (s *Server) route(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	switch {
	case r.URL.Path == "/status" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"status": s.bot.Status()})

	case r.URL.Path == "/qr" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"qr": s.bot.PairingArtifact()})

	case r.URL.Path == "/connect" && r.Method == http.MethodPost:
		if s.bot.Status() == connection.StateDisconnected {
			go func() {
				if err := s.bot.Connect(context.Background()); err != nil {
					s.log.Error("connect request failed", zap.Error(err))
				}
			}()
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})

	case r.URL.Path == "/disconnect" && r.Method == http.MethodPost:
		if err := s.bot.Disconnect(r.Context()); err != nil {
			s.log.Warn("disconnect finished with error", zap.Error(err))
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})

	case r.URL.Path == "/session/delete" && r.Method == http.MethodPost:
		if err := s.bot.ResetCredentials(r.Context()); err != nil {
			s.log.Error("session delete failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]any{
				"success": false,
				"error":   "Failed to delete session",
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Session deleted"})

	default:
		http.NotFound(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
