package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/mesour/brick-offers-sub004/internal/analysis"
	"github.com/mesour/brick-offers-sub004/internal/analysis/analyzers"
	"github.com/mesour/brick-offers-sub004/internal/api"
	"github.com/mesour/brick-offers-sub004/internal/ares"
	"github.com/mesour/brick-offers-sub004/internal/config"
	"github.com/mesour/brick-offers-sub004/internal/discovery"
	"github.com/mesour/brick-offers-sub004/internal/offer"
	"github.com/mesour/brick-offers-sub004/internal/pkg/logger"
	"github.com/mesour/brick-offers-sub004/internal/queue"
	"github.com/mesour/brick-offers-sub004/internal/repository/postgres"
	"github.com/mesour/brick-offers-sub004/internal/service/ratelimit"
	"github.com/mesour/brick-offers-sub004/internal/service/suppression"
	"github.com/mesour/brick-offers-sub004/internal/snapshot"
	"github.com/mesour/brick-offers-sub004/internal/tracking"
)

func main() {
	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		logger.Error("load config", "error", err.Error())
		os.Exit(1)
	}
	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))
	if cfg.Logging.RedactPII != nil {
		logger.SetRedactPII(*cfg.Logging.RedactPII)
	}
	log := logger.With("server")

	db, err := openDB(cfg.Database)
	if err != nil {
		log.Error("database connect", "error", err.Error())
		os.Exit(1)
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}

	// Repositories.
	analysisRepo := postgres.NewAnalysisRepo(db)
	offerRepo := postgres.NewOfferRepo(db)
	snapshotRepo := postgres.NewSnapshotRepo(db)
	suppressionRepo := postgres.NewSuppressionRepo(db)
	emailLogRepo := postgres.NewEmailLogRepo(db)
	discoveryRepo := postgres.NewDiscoveryRepo(db)
	workerRepo := postgres.NewWorkerRepo(db)

	// Services.
	transport := queue.NewTransport(db)
	suppressionSvc := suppression.NewService(suppressionRepo)
	var burst *ratelimit.BurstGuard
	if redisClient != nil {
		burst = ratelimit.NewBurstGuard(redisClient)
	}
	rateLimitSvc := ratelimit.NewService(db, burst)
	composer := offer.NewComposer(cfg.Tracking.BaseURL, cfg.SES.FromAddress)
	offerSvc := offer.NewService(offerRepo, composer, transport)
	snapshotSvc := snapshot.NewService(snapshotRepo, cfg.Analysis.TopIssuesLimit)
	pipeline := analysis.NewPipeline(
		analysisRepo,
		analyzers.RegisterAll(cfg.Analysis.FetchTimeout()),
		snapshotSvc,
		transport,
		cfg.Analysis.AnalyzerTimeout(),
	)
	sources := discovery.NewRegistry()
	if catalogURL := os.Getenv("DISCOVERY_CATALOG_URL"); catalogURL != "" {
		sources.Register(discovery.NewCatalogSource("catalog", catalogURL, nil))
	}
	discoverySvc := discovery.NewService(sources, discoveryRepo, transport)
	aresSvc := ares.NewService(ares.NewHTTPClient(os.Getenv("ARES_BASE_URL"), nil), discoveryRepo)
	trackingSvc := tracking.NewService(offerSvc, emailLogRepo, suppressionSvc)

	loadCtx, cancelLoad := context.WithTimeout(context.Background(), 5*time.Second)
	issueCodes, err := analysis.LoadIssueCodes(loadCtx, analysisRepo)
	cancelLoad()
	if err != nil {
		log.Warn("issue code registry unavailable, serving raw codes", "error", err.Error())
		issueCodes = analysis.EmptyIssueCodeRegistry()
	}

	handlers := api.NewHandlers(
		offerSvc,
		offerRepo,
		rateLimitSvc,
		suppressionSvc,
		analysisRepo,
		snapshotSvc,
		pipeline,
		discoverySvc,
		aresSvc,
		transport,
		workerRepo,
		issueCodes,
	)
	server := api.NewServer(cfg.Server, handlers, tracking.NewHandlers(trackingSvc, transport))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error("http server failed", "error", err.Error())
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", "error", err.Error())
	}
	log.Info("server stopped")
}

func openDB(cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return db, db.PingContext(ctx)
}
