package ops

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Vonix-Network/VonixCore-sub003/internal/store"
	"github.com/Vonix-Network/VonixCore-sub003/internal/version"
)

// CacheStats reports account cache occupancy.
type CacheStats interface {
	CacheSize() int
}

// FlushStats reports write-back backlog.
type FlushStats interface {
	QueueDepth() int
	PendingSize() int
}

// Config holds the ops surface settings.
type Config struct {
	Enabled bool
	Port    int
}

// Server hosts /health and /ws/feed.
type Server struct {
	cfg    Config
	logger *slog.Logger

	st    store.Store
	cache CacheStats
	flush FlushStats
	feed  *Feed

	httpServer *http.Server
}

// NewServer creates the ops server.
func NewServer(cfg Config, st store.Store, cache CacheStats, flush FlushStats, feed *Feed, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:    cfg,
		logger: logger,
		st:     st,
		cache:  cache,
		flush:  flush,
		feed:   feed,
	}
}

// Start begins serving. No-op when disabled.
func (s *Server) Start(ctx context.Context) error {
	if !s.cfg.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/ws/feed", s.feed)

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.cfg.Port),
		Handler: mux,
	}

	go func() {
		s.logger.Info("ops server started", "port", s.cfg.Port)
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			s.logger.Error("ops server error", "error", err)
		}
	}()
	return nil
}

// Stop shuts the HTTP server down and disconnects feed subscribers.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.feed.Close()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	health := struct {
		Status     string         `json:"status"`
		Version    string         `json:"version"`
		Components map[string]any `json:"components"`
	}{
		Status:     "healthy",
		Version:    version.String(),
		Components: make(map[string]any),
	}

	if err := s.st.Ping(ctx); err != nil {
		health.Status = "unhealthy"
		health.Components["database"] = map[string]string{
			"status": "disconnected",
			"error":  err.Error(),
		}
	} else {
		health.Components["database"] = "connected"
	}

	health.Components["accounts"] = map[string]int{
		"cached": s.cache.CacheSize(),
	}
	health.Components["flush"] = map[string]int{
		"queued":  s.flush.QueueDepth(),
		"pending": s.flush.PendingSize(),
	}
	health.Components["feed"] = map[string]int{
		"subscribers": s.feed.Subscribers(),
	}

	w.Header().Set("Content-Type", "application/json")
	if health.Status == "unhealthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(health)
}
