// Package server exposes the platform's info and health endpoints.
package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/elyterrax/elyctl/pkg/config"
)

// Pinger checks database connectivity. Satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is one HTTP worker.
type Server struct {
	cfg *config.Config
	db  Pinger
	log *zap.Logger
}

// New creates a Server. db may be nil; /db/health then reports disconnected.
func New(cfg *config.Config, db Pinger, log *zap.Logger) *Server {
	return &Server{cfg: cfg, db: db, log: log}
}

// Router builds the HTTP routing table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.requestLogger)
	r.Use(s.cors)
	r.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/db/health", s.handleDBHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/health", s.handleAPIHealth).Methods(http.MethodGet)
	return r
}

// Run serves HTTP on ln until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.Serve(ln)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "Welcome to " + s.cfg.APITitle,
		"version":   s.cfg.APIVersion,
		"status":    "operational",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"service":     "elyterra-api",
		"environment": s.cfg.Env,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleDBHealth(w http.ResponseWriter, r *http.Request) {
	connected := s.pingDB(r.Context())
	status := "ok"
	message := "Database connected successfully"
	if !connected {
		status = "error"
		message = "Database connection failed"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    status,
		"database":  s.cfg.PostgresDB,
		"connected": connected,
		"host":      s.cfg.PostgresHost,
		"port":      s.cfg.PostgresPort,
		"message":   message,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleAPIHealth(w http.ResponseWriter, r *http.Request) {
	dbState := "disconnected"
	if s.pingDB(r.Context()) {
		dbState = "connected"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "healthy",
		"checks": map[string]string{
			"api":      "up",
			"database": dbState,
		},
	})
}

func (s *Server) pingDB(ctx context.Context) bool {
	if s.db == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return s.db.Ping(ctx) == nil
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
