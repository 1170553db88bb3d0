// Package health serves the JSON liveness endpoint that keeps hosted
// deployments (Render and friends) from idling the process out.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/almatymeetups/join_request_bot/internal/logging"
)

type Server struct {
	server    *http.Server
	botActive atomic.Bool
	logger    zerolog.Logger
}

func NewServer(addr string) *Server {
	s := &Server{
		logger: logging.Component("health"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handle)
	mux.HandleFunc("/health", s.handle)

	s.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

// SetBotActive records whether the bot's update loop is up; the endpoint
// reports it so a dead poller is visible from outside.
func (s *Server) SetBotActive(active bool) {
	s.botActive.Store(active)
}

// Start serves in the background until Shutdown.
func (s *Server) Start() {
	go func() {
		s.logger.Info().Str("addr", s.server.Addr).Msg("health endpoint listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("health endpoint failed")
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":     "healthy",
		"timestamp":  time.Now().Format(time.RFC3339),
		"bot_active": s.botActive.Load(),
	})
}
