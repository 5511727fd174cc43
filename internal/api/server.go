// Package api exposes the HTTP surface of the agent: task submission
// and result polling under /api/tasks, and the tracked-endpoint routes
// under /server.
package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/ohadgu/api-agent/internal/dispatch"
	"github.com/ohadgu/api-agent/internal/lifecycle"
	"github.com/ohadgu/api-agent/internal/logger"
	"github.com/ohadgu/api-agent/internal/queue"
	"github.com/ohadgu/api-agent/internal/registry"
)

// Server serves the agent HTTP API
type Server struct {
	addr       string
	dispatcher *dispatch.Dispatcher
	tracker    *lifecycle.Tracker
	registry   *registry.Service
	queue      queue.Queue
	log        *logger.Logger

	sweepInterval time.Duration

	server   *http.Server
	serverMu sync.RWMutex

	done  chan struct{}
	ready chan struct{}
}

// Config holds server configuration
type Config struct {
	Addr          string // e.g. ":8000"
	Dispatcher    *dispatch.Dispatcher
	Tracker       *lifecycle.Tracker
	Registry      *registry.Service
	Queue         queue.Queue
	SweepInterval time.Duration // 0 disables the background sweeper
}

// NewServer creates a new API server
func NewServer(cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8000"
	}

	return &Server{
		addr:          cfg.Addr,
		dispatcher:    cfg.Dispatcher,
		tracker:       cfg.Tracker,
		registry:      cfg.Registry,
		queue:         cfg.Queue,
		sweepInterval: cfg.SweepInterval,
		log:           logger.GetDefault().WithComponent("api"),
		done:          make(chan struct{}),
		ready:         make(chan struct{}),
	}
}

// Handler builds the route tree (exposed for httptest)
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Task dispatch endpoints
	mux.HandleFunc("/api/tasks/dns", s.handleDNS)
	mux.HandleFunc("/api/tasks/ports/scan", s.handlePortScan)
	mux.HandleFunc("/api/tasks/http/request", s.handleHTTPRelay)
	mux.HandleFunc("/api/tasks/process/tree", s.handleProcessTree)
	mux.HandleFunc("/api/tasks/registry/action", s.handleRegistryAction)
	mux.HandleFunc("/api/tasks/http/server", s.handleCreateServer)

	// Result polling
	mux.HandleFunc("/api/tasks/result/", s.handleResult)

	// Tracked endpoints
	mux.HandleFunc("/server/", s.routeServer)

	// Health check
	mux.HandleFunc("/health", s.handleHealth)

	return s.withLogging(s.withCORS(mux))
}

// Start starts the HTTP server and the registry sweeper
func (s *Server) Start() error {
	server := &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.serverMu.Lock()
	s.server = server
	s.serverMu.Unlock()

	if s.sweepInterval > 0 {
		go s.sweepLoop()
	}

	close(s.ready)

	s.log.Info("Starting API server", logger.Fields{"address": s.addr})
	return server.ListenAndServe()
}

// Ready returns a channel that is closed when the server is ready
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Stop gracefully shuts down the server
func (s *Server) Stop(ctx context.Context) error {
	close(s.done)

	s.serverMu.RLock()
	server := s.server
	s.serverMu.RUnlock()

	if server == nil {
		return nil
	}

	s.log.Info("Shutting down API server", logger.Fields{})
	return server.Shutdown(ctx)
}

// sweepLoop periodically evicts expired tracked endpoints
func (s *Server) sweepLoop() {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.registry.SweepExpired()
		}
	}
}

// handleHealth reports queue/store connectivity
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	}

	status := http.StatusOK
	if s.queue != nil {
		if err := s.queue.Health(ctx); err != nil {
			health["status"] = "unhealthy"
			health["queue_error"] = err.Error()
			status = http.StatusServiceUnavailable
		}
	}

	s.writeJSON(w, status, health)
}

// writeJSON encodes v as the response body
func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("Failed to encode response", logger.Fields{"error": err.Error()})
	}
}

// writeError sends a uniform error payload
func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

// clientAddr extracts the caller's host without the ephemeral port
func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Middleware: withLogging logs all HTTP requests
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug("HTTP request", logger.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start).String(),
		})
	})
}

// Middleware: withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
