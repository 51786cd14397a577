package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/room4-2/livetranslate/config"
	"github.com/room4-2/livetranslate/logging"
	"github.com/room4-2/livetranslate/messages"
	"github.com/room4-2/livetranslate/metrics"
)

type Server struct {
	httpServer *http.Server
	upgrader   websocket.Upgrader
	manager    *Manager
	config     *config.Config
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

func NewServer(cfg *config.Config, manager *Manager, m *metrics.Metrics, logger *slog.Logger) *Server {
	s := &Server{
		manager: manager,
		config:  cfg,
		metrics: m,
		logger:  logging.NewComponentLogger(logger, "server"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				for _, allowed := range cfg.AllowedOrigins {
					if allowed == "*" || allowed == origin {
						return true
					}
				}
				return false
			},
		},
	}

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler routes /ws, /health and /metrics.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", s.metrics.Handler())
	return mux
}

// Start begins listening for connections.
func (s *Server) Start() error {
	s.logger.Info("bridge server starting",
		slog.Int("port", s.config.Port),
		slog.String("endpoint", fmt.Sprintf("ws://localhost:%d/ws", s.config.Port)),
	)
	return s.httpServer.ListenAndServe()
}

// Shutdown closes every bridge, then stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")
	s.manager.Shutdown(ctx)
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}

	bridge, err := s.manager.CreateBridge(r.Context(), r.URL.Query().Get("client"), conn)
	if err != nil {
		s.logger.Warn("failed to create bridge", slog.Any("error", err))
		if data, encErr := messages.Encode(messages.NewErrorMessage("", messages.ErrCodeSessionFailed, err.Error(), true)); encErr == nil {
			_ = conn.WriteMessage(websocket.TextMessage, data)
		}
		_ = conn.Close()
		return
	}

	s.logger.Info("bridge attached", slog.String("bridge_id", bridge.ID), slog.String("client_id", bridge.ClientID))
	bridge.Start()

	<-bridge.CloseChan

	s.manager.RemoveBridge(context.Background(), bridge.ID)
	s.logger.Info("bridge detached", slog.String("bridge_id", bridge.ID))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","sessions":%d}`, s.manager.Count())
}
