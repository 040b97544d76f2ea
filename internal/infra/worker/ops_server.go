package worker

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"feedwatch/internal/domain/entity"
	"feedwatch/internal/observability/logging"
	"feedwatch/internal/observability/tracing"
	"feedwatch/internal/usecase/notify"

	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"
	"github.com/go-pkgz/routegroup"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// OutageLister lists publishers whose feed is currently failing.
type OutageLister interface {
	ListInOutage(ctx context.Context) ([]*entity.Publisher, error)
}

// ChannelHealthProvider reports the breaker state of each notification channel.
type ChannelHealthProvider interface {
	ChannelHealth() []notify.ChannelHealthStatus
}

// OpsServer serves the operational endpoints of the worker:
//   - GET /ping: liveness shortcut (rest.Ping)
//   - GET /health: liveness probe, always 200
//   - GET /health/ready: readiness probe, 200 once SetReady(true), 503 before
//   - GET /metrics: Prometheus metrics
//   - GET /api/v1/outages: publishers with an open outage
//   - GET /api/v1/channels: circuit breaker state per channel
type OpsServer struct {
	addr     string
	version  string
	logger   *slog.Logger
	lgr      lgr.L
	outages  OutageLister
	channels ChannelHealthProvider
	ready    atomic.Bool
	router   *routegroup.Bundle

	mu     sync.Mutex
	server *http.Server
}

// NewOpsServer creates the server. channels may be nil when no channel is enabled.
func NewOpsServer(addr, version string, outages OutageLister, channels ChannelHealthProvider, logger *slog.Logger) *OpsServer {
	if logger == nil {
		logger = slog.Default()
	}
	s := &OpsServer{
		addr:     addr,
		version:  version,
		logger:   logger,
		lgr:      logging.LgrAdapter(logger),
		outages:  outages,
		channels: channels,
		router:   routegroup.New(http.NewServeMux()),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *OpsServer) setupMiddleware() {
	s.router.Use(rest.AppInfo("feedwatch-worker", "feedwatch", s.version))
	s.router.Use(rest.Ping)
	s.router.Use(rest.Recoverer(s.lgr))
	s.router.Use(rest.Throttle(100))
	s.router.Use(tracing.Middleware)
}

func (s *OpsServer) setupRoutes() {
	s.router.HandleFunc("GET /health", s.handleLiveness)
	s.router.HandleFunc("GET /health/ready", s.handleReadiness)
	s.router.Handle("GET /metrics", promhttp.Handler())

	s.router.Mount("/api/v1").Route(func(r *routegroup.Bundle) {
		r.HandleFunc("GET /outages", s.handleOutages)
		r.HandleFunc("GET /channels", s.handleChannels)
	})
}

// Handler returns the HTTP handler with all routes.
func (s *OpsServer) Handler() http.Handler {
	return s.router
}

// SetReady sets the readiness state reported by /health/ready.
func (s *OpsServer) SetReady(ready bool) {
	s.ready.Store(ready)
	s.logger.Info("ops server readiness changed", slog.Bool("ready", ready))
}

// Start serves until ctx is cancelled, then shuts down with a 5s grace
// period. It returns http.ErrServerClosed after a graceful shutdown.
func (s *OpsServer) Start(ctx context.Context) error {
	s.mu.Lock()
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	srv := s.server
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("ops server starting", slog.String("addr", s.addr))
		errChan <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Info("ops server shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("ops server shutdown failed", slog.Any("error", err))
			return err
		}
		return http.ErrServerClosed

	case err := <-errChan:
		if !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("ops server failed", slog.Any("error", err))
		}
		return err
	}
}

func (s *OpsServer) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	rest.RenderJSON(w, rest.JSON{"status": "ok"})
}

func (s *OpsServer) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if !s.ready.Load() {
		rest.SendErrorJSON(w, r, s.lgr, http.StatusServiceUnavailable, errors.New("worker not ready"), "not ready")
		return
	}
	rest.RenderJSON(w, rest.JSON{"status": "ok"})
}

type outageView struct {
	PublisherID int64     `json:"publisher_id"`
	Publisher   string    `json:"publisher"`
	Endpoint    string    `json:"endpoint"`
	StartedAt   time.Time `json:"started_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	LastError   string    `json:"last_error"`
}

func (s *OpsServer) handleOutages(w http.ResponseWriter, r *http.Request) {
	pubs, err := s.outages.ListInOutage(r.Context())
	if err != nil {
		rest.SendErrorJSON(w, r, s.lgr, http.StatusInternalServerError, err, "can't list outages")
		return
	}

	views := make([]outageView, 0, len(pubs))
	for _, p := range pubs {
		if p.Outage == nil {
			continue
		}
		views = append(views, outageView{
			PublisherID: p.ID,
			Publisher:   p.DisplayName(),
			Endpoint:    p.Endpoint,
			StartedAt:   p.Outage.StartedAt,
			UpdatedAt:   p.Outage.UpdatedAt,
			LastError:   p.Outage.LastError,
		})
	}
	rest.RenderJSON(w, views)
}

func (s *OpsServer) handleChannels(w http.ResponseWriter, _ *http.Request) {
	statuses := []notify.ChannelHealthStatus{}
	if s.channels != nil {
		statuses = append(statuses, s.channels.ChannelHealth()...)
	}

	healthy := true
	for _, st := range statuses {
		if st.CircuitBreaker.State != "closed" {
			healthy = false
		}
	}
	rest.RenderJSON(w, rest.JSON{"healthy": healthy, "channels": statuses})
}
