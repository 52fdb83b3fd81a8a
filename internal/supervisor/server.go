// Package supervisor implements the read-mostly JSON HTTP API that
// projects Coordinator state for dashboards and operators (spec §4.4),
// plus the agents endpoint's Docker Engine integration.
package supervisor

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/madhatter5501/ticketcore/internal/store"
	"github.com/madhatter5501/ticketcore/internal/ticket"
)

// Server is the Supervisor HTTP API. It holds no long-lived database
// connection: every handler opens and closes its own Store, matching
// spec §4.4's "per-request database connections" requirement.
type Server struct {
	dbPath     string
	staticRoot string
	logger     *slog.Logger
	docker     *dockerClient
	server     *http.Server
}

// NewServer returns a Server that resolves tickets against dbPath and
// serves static assets from staticRoot.
func NewServer(dbPath, staticRoot string, logger *slog.Logger) *Server {
	return &Server{
		dbPath:     dbPath,
		staticRoot: staticRoot,
		logger:     logger,
		docker:     newDockerClient(),
	}
}

// openCoordinator opens a fresh Store/Coordinator pair for one request.
// Callers must close the returned Store once the request completes.
func (s *Server) openCoordinator(ctx context.Context) (*store.Store, *ticket.Coordinator, error) {
	st, err := store.Open(ctx, s.dbPath, s.logger)
	if err != nil {
		return nil, nil, err
	}
	return st, ticket.New(st), nil
}

// Start builds the route table and serves addr until Shutdown is
// called, mirroring Factory's withLogging-wrapped http.Server(s) with
// the Go 1.22 method-pattern mux.
func (s *Server) Start(addr string) error {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/tickets", s.handleListTickets)
	mux.HandleFunc("GET /api/tickets/{id}", s.handleGetTicket)
	mux.HandleFunc("POST /api/tickets", s.handleCreateTicket)
	mux.HandleFunc("POST /api/tickets/{id}/comment", s.handleAddComment)
	mux.HandleFunc("POST /api/tickets/{id}/complete", s.handleCompleteTicket)
	mux.HandleFunc("POST /api/tickets/{id}/update", s.handleUpdateTicket)
	mux.HandleFunc("GET /api/activity", s.handleActivity)
	mux.HandleFunc("GET /api/agents", s.handleAgents)
	mux.HandleFunc("GET /api/agents/{name}/logs", s.handleAgentLogs)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /", staticHandler(s.staticRoot))
	mux.HandleFunc("OPTIONS /", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.withCORS(s.withLogging(mux)),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting supervisor", "addr", addr, "db", s.dbPath)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// withLogging logs each request's method, path, and duration.
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start))
	})
}

// withCORS applies the permissive headers spec §6 requires for every
// API response.
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		next.ServeHTTP(w, r)
	})
}
