package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/civic-risk-service/internal/cache"
	"github.com/couchcryptid/civic-risk-service/internal/domain"
)

// Aggregator produces snapshots and single-domain results.
type Aggregator interface {
	Snapshot(ctx context.Context) (domain.RiskSnapshot, error)
	Fetch(ctx context.Context, id domain.DomainID) (domain.DomainResult, error)
	sharedobs.ReadinessChecker
}

// Copilot answers a free-text question from a snapshot.
type Copilot interface {
	Answer(ctx context.Context, question string, snap domain.RiskSnapshot) domain.ChatAnswer
}

// Features reports which optional integrations are configured.
type Features struct {
	Model      bool `json:"model"`
	BrightData bool `json:"brightData"`
	Kafka      bool `json:"kafka"`
}

// Options configures the API surface.
type Options struct {
	City       string
	Production bool
	Features   Features
}

// Server exposes the civic risk API plus health, readiness, and metrics.
type Server struct {
	httpServer *http.Server
	agg        Aggregator
	cache      *cache.Cache
	copilot    Copilot
	opts       Options
	logger     *slog.Logger

	// methods lists the registered methods per /api path.
	methods map[string][]string
}

// NewServer creates an HTTP server with the /api routes and the operational
// /healthz, /readyz, and /metrics routes.
func NewServer(addr string, agg Aggregator, c *cache.Cache, copilot Copilot, opts Options, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		agg:     agg,
		cache:   c,
		copilot: copilot,
		opts:    opts,
		logger:  logger,
		methods: make(map[string][]string),
	}
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.recoverer(mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.handle(mux, http.MethodGet, "/api/health", s.handleHealth)
	for path, id := range domainRoutes {
		s.handle(mux, http.MethodGet, path, s.handleDomain(id))
	}
	s.handle(mux, http.MethodGet, "/api/news", s.handleNews(newsStories))
	s.handle(mux, http.MethodGet, "/api/city-services", s.handleNews(cityAnnouncements))
	s.handle(mux, http.MethodGet, "/api/dashboard", s.handleDashboard)
	s.handle(mux, http.MethodPost, "/api/chat", s.handleChat)
	mux.HandleFunc("/api/", s.handleUnmatched)

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(agg))
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

func (s *Server) handle(mux *http.ServeMux, method, path string, h http.HandlerFunc) {
	mux.HandleFunc(method+" "+path, h)
	s.methods[path] = append(s.methods[path], method)
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				s.writeError(w, r, http.StatusInternalServerError, errPanic(rec))
			}
		}()
		next.ServeHTTP(w, r)
	})
}
