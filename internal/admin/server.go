// Package admin serves the HTTP/JSON and websocket surface used by the
// dispenser's display and by remote tools.
package admin

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/goodtune/pillbox/internal/dispense"
	"github.com/goodtune/pillbox/internal/engine"
	"github.com/goodtune/pillbox/internal/events"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// Config holds the admin server configuration.
type Config struct {
	ListenAddr      string
	Token           string // Bearer token for /api; empty disables auth
	RateLimit       int
	RateLimitWindow time.Duration
	AllowedOrigins  []string
}

// History looks up resolved sessions.
type History interface {
	Get(id string) (dispense.Result, bool)
	Recent(limit int) []dispense.Result
}

// Server represents the admin HTTP server.
type Server struct {
	config      Config
	runner      *engine.Runner
	history     History
	bus         *events.Bus
	rateLimiter *RateLimiter
	server      *http.Server
	router      *mux.Router
	logger      zerolog.Logger
}

// NewServer creates a new admin server. history and bus may be nil, which
// disables the endpoints that need them.
func NewServer(cfg Config, runner *engine.Runner, history History, bus *events.Bus, logger zerolog.Logger) *Server {
	// Create rate limiter
	rateLimit := cfg.RateLimit
	if rateLimit == 0 {
		rateLimit = 100 // Default: 100 requests per minute
	}
	rateLimitWindow := cfg.RateLimitWindow
	if rateLimitWindow == 0 {
		rateLimitWindow = time.Minute
	}

	s := &Server{
		config:      cfg,
		runner:      runner,
		history:     history,
		bus:         bus,
		rateLimiter: NewRateLimiter(rateLimit, rateLimitWindow),
		router:      mux.NewRouter(),
		logger:      logger.With().Str("component", "admin").Logger(),
	}

	// Setup routes
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	// Apply global middleware
	s.router.Use(LoggingMiddleware(s.logger))
	s.router.Use(RateLimitMiddleware(s.rateLimiter))

	// Public routes (no auth required)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()
	if s.config.Token != "" {
		api.Use(TokenMiddleware(s.config.Token))
	}

	api.HandleFunc("/status", s.handleStatus).Methods("GET")

	// Schedule
	api.HandleFunc("/slots", s.handleListSlots).Methods("GET")
	api.HandleFunc("/slots/{index:[0-9]+}", s.handleUpdateSlot).Methods("PUT")
	api.HandleFunc("/modules", s.handleListModules).Methods("GET")
	api.HandleFunc("/modules/{index:[0-9]+}", s.handleUpdateModule).Methods("PUT")
	api.HandleFunc("/modules/{index:[0-9]+}/toggle-slot/{slot:[0-9]+}", s.handleToggleSlot).Methods("POST")
	api.HandleFunc("/master", s.handleSetMaster).Methods("PUT")

	// Dispensing
	api.HandleFunc("/modules/{index:[0-9]+}/manual", s.handleManual).Methods("POST")
	api.HandleFunc("/session/confirm", s.handleConfirm).Methods("POST")
	api.HandleFunc("/session/cancel", s.handleCancel).Methods("POST")

	// History and live events
	api.HandleFunc("/history", s.handleHistory).Methods("GET")
	api.HandleFunc("/history/{id}", s.handleHistoryEntry).Methods("GET")
	api.HandleFunc("/events", s.handleEvents).Methods("GET")
}

// Handler returns the root handler, CORS included when configured.
func (s *Server) Handler() http.Handler {
	if len(s.config.AllowedOrigins) > 0 {
		return CORSMiddleware(s.config.AllowedOrigins)(s.router)
	}
	return s.router
}

// Start starts the admin HTTP server on its configured address.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("admin listen: %w", err)
	}
	return s.Serve(ln)
}

// Serve starts the admin server on an existing listener, such as one
// passed in by systemd.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info().
		Str("addr", ln.Addr().String()).
		Bool("auth", s.config.Token != "").
		Msg("Starting admin server")

	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Admin server error")
		}
	}()

	return nil
}

// Stop gracefully stops the admin HTTP server.
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping admin server")
	s.rateLimiter.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("admin server shutdown: %w", err)
	}

	return nil
}
