package metrics

import (
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// Schedule metrics
	TriggersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pillbox_triggers_total",
			Help: "Total slot triggers raised by the trigger loop",
		},
		[]string{"slot"},
	)

	TriggersSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pillbox_triggers_skipped_total",
			Help: "Triggers that did not open a confirmation session",
		},
		[]string{"reason"},
	)

	// Session metrics
	SessionsResolved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pillbox_sessions_resolved_total",
			Help: "Confirmation sessions by outcome",
		},
		[]string{"outcome"},
	)

	SessionOpen = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pillbox_session_open",
			Help: "1 while a confirmation session is waiting for the user",
		},
	)

	// Dispense metrics
	DispensesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pillbox_dispenses_total",
			Help: "Module dispense sequences by result",
		},
		[]string{"module", "result"},
	)

	ManualToggles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pillbox_manual_toggles_total",
			Help: "Manual hold toggles by module",
		},
		[]string{"module"},
	)

	ModuleQuantity = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pillbox_module_quantity",
			Help: "Remaining doses per module",
		},
		[]string{"module"},
	)

	// Storage metrics
	StoreErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pillbox_store_errors_total",
			Help: "Persistent store failures",
		},
		[]string{"op"},
	)

	// Device state
	MasterEnabled = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pillbox_master_enabled",
			Help: "1 when the schedule is enabled",
		},
	)

	ReliableClock = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pillbox_reliable_clock",
			Help: "1 when time comes from a real clock rather than uptime",
		},
	)

	ActuatorAvailable = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pillbox_actuator_available",
			Help: "1 when the servo controller answered its probe",
		},
	)

	// Admin API metrics
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pillbox_admin_requests_total",
			Help: "Total admin API requests",
		},
		[]string{"method", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pillbox_admin_request_duration_seconds",
			Help:    "Admin API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// Event metrics
	EventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pillbox_events_published_total",
			Help: "Events forwarded to external sinks",
		},
		[]string{"sink", "result"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(
		TriggersTotal,
		TriggersSkipped,
		SessionsResolved,
		SessionOpen,
		DispensesTotal,
		ManualToggles,
		ModuleQuantity,
		StoreErrors,
		MasterEnabled,
		ReliableClock,
		ActuatorAvailable,
		RequestsTotal,
		RequestDuration,
		EventsPublished,
	)
}

// Bool converts a flag to a gauge value.
func Bool(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Server is the metrics HTTP server
type Server struct {
	server   *http.Server
	logger   zerolog.Logger
	listener net.Listener // Optional pre-created listener (for systemd socket activation)
}

// NewServer creates a new metrics server
func NewServer(addr string, logger zerolog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
		logger: logger.With().Str("component", "metrics").Logger(),
	}
}

// SetListener sets a pre-created listener for systemd socket activation
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start starts the metrics server
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting metrics server")
	go func() {
		var err error
		if s.listener != nil {
			// Use systemd socket-activated listener
			s.logger.Debug().Msg("Using systemd socket-activated metrics listener")
			err = s.server.Serve(s.listener)
		} else {
			// Create and bind listener ourselves
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Metrics server error")
		}
	}()
	return nil
}

// Stop stops the metrics server
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping metrics server")
	return s.server.Close()
}
