// Package api exposes the operator surface: offer transitions, lead
// history, proposal recycling, suppression management, queue operations and
// job enqueueing, plus the public tracking endpoints.
package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/mesour/brick-offers-sub004/internal/analysis"
	"github.com/mesour/brick-offers-sub004/internal/ares"
	"github.com/mesour/brick-offers-sub004/internal/config"
	"github.com/mesour/brick-offers-sub004/internal/discovery"
	"github.com/mesour/brick-offers-sub004/internal/offer"
	"github.com/mesour/brick-offers-sub004/internal/pkg/logger"
	"github.com/mesour/brick-offers-sub004/internal/queue"
	"github.com/mesour/brick-offers-sub004/internal/service/ratelimit"
	"github.com/mesour/brick-offers-sub004/internal/service/suppression"
	"github.com/mesour/brick-offers-sub004/internal/snapshot"
	"github.com/mesour/brick-offers-sub004/internal/tracking"
	"github.com/mesour/brick-offers-sub004/internal/worker"
)

// WorkerStatusStore reads worker liveness for the health endpoint.
type WorkerStatusStore interface {
	LiveWorkers(ctx context.Context, within time.Duration) ([]worker.Heartbeat, error)
}

// Handlers carries the services the operator API fronts.
type Handlers struct {
	offers      *offer.Service
	offerRepo   offer.Repository
	rateLimits  *ratelimit.Service
	suppression *suppression.Service
	analyses    analysis.Repository
	snapshots   *snapshot.Service
	pipeline    *analysis.Pipeline
	discovery   *discovery.Service
	ares        *ares.Service
	queue       *queue.Transport
	workers     WorkerStatusStore
	issueCodes  *analysis.IssueCodeRegistry
	log         *logger.Logger
}

// NewHandlers wires the operator API handlers.
func NewHandlers(
	offers *offer.Service,
	offerRepo offer.Repository,
	rateLimits *ratelimit.Service,
	sup *suppression.Service,
	analyses analysis.Repository,
	snapshots *snapshot.Service,
	pipeline *analysis.Pipeline,
	discoverySvc *discovery.Service,
	aresSvc *ares.Service,
	transport *queue.Transport,
	workers WorkerStatusStore,
	issueCodes *analysis.IssueCodeRegistry,
) *Handlers {
	if issueCodes == nil {
		issueCodes = analysis.EmptyIssueCodeRegistry()
	}
	return &Handlers{
		offers:      offers,
		offerRepo:   offerRepo,
		rateLimits:  rateLimits,
		suppression: sup,
		analyses:    analyses,
		snapshots:   snapshots,
		pipeline:    pipeline,
		discovery:   discoverySvc,
		ares:        aresSvc,
		queue:       transport,
		workers:     workers,
		issueCodes:  issueCodes,
		log:         logger.With("api"),
	}
}

// Server is the HTTP server for the operator and tracking surfaces.
type Server struct {
	cfg    config.ServerConfig
	server *http.Server
}

// NewServer builds the server over the assembled router.
func NewServer(cfg config.ServerConfig, h *Handlers, trackingHandlers *tracking.Handlers) *Server {
	router := SetupRoutes(h, trackingHandlers)
	return &Server{
		cfg: cfg,
		server: &http.Server{
			Addr:              cfg.GetHost() + ":" + strconv.Itoa(cfg.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
	}
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	logger.With("api").Info("http server listening", "addr", s.server.Addr)
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
