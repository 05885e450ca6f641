package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/mesour/brick-offers-sub004/internal/analysis"
	"github.com/mesour/brick-offers-sub004/internal/analysis/analyzers"
	"github.com/mesour/brick-offers-sub004/internal/ares"
	"github.com/mesour/brick-offers-sub004/internal/config"
	"github.com/mesour/brick-offers-sub004/internal/discovery"
	"github.com/mesour/brick-offers-sub004/internal/domain"
	"github.com/mesour/brick-offers-sub004/internal/mailer"
	"github.com/mesour/brick-offers-sub004/internal/offer"
	"github.com/mesour/brick-offers-sub004/internal/pkg/distlock"
	"github.com/mesour/brick-offers-sub004/internal/pkg/logger"
	"github.com/mesour/brick-offers-sub004/internal/queue"
	"github.com/mesour/brick-offers-sub004/internal/repository/postgres"
	"github.com/mesour/brick-offers-sub004/internal/service/ratelimit"
	"github.com/mesour/brick-offers-sub004/internal/service/suppression"
	"github.com/mesour/brick-offers-sub004/internal/snapshot"
	"github.com/mesour/brick-offers-sub004/internal/tracking"
	"github.com/mesour/brick-offers-sub004/internal/worker"
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
	log := logger.With("worker-main")

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

	var mail mailer.Mailer
	if cfg.SES.Enabled {
		sesMailer, err := mailer.NewSESMailer(cfg.SES)
		if err != nil {
			log.Error("ses mailer init", "error", err.Error())
			os.Exit(1)
		}
		mail = sesMailer
	} else {
		log.Warn("no mail provider configured, outbound mail is a no-op")
		mail = mailer.NewNullMailer()
	}
	gate := offer.NewGate(offerRepo, suppressionSvc, rateLimitSvc, mail)
	cleaner := worker.NewCleaner(workerRepo, emailLogRepo, cfg.Cleanup)

	// Dispatcher.
	metrics := worker.NewMetrics()
	registry := worker.NewRegistry()
	handlers := worker.NewHandlers(
		pipeline,
		offerSvc,
		gate,
		trackingSvc,
		discoverySvc,
		aresSvc,
		snapshotSvc,
		workerRepo,
		worker.NewSSLChecker(workerRepo),
		nil,
		workerRepo,
		cleaner,
	)
	handlers.RegisterAll(registry)

	queues := make([]domain.Queue, 0, len(cfg.Worker.Queues))
	for _, q := range cfg.Worker.Queues {
		queues = append(queues, domain.Queue(q))
	}
	dispatcher := worker.NewDispatcher(transport, registry, queues,
		cfg.Worker.Concurrency, cfg.Worker.IdleSleep(), metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Background loops.
	go worker.HeartbeatLoop(ctx, workerRepo, dispatcher.WorkerID(), cfg.Worker.Queues, 30*time.Second)
	recovery := worker.NewRecoveryLoop(transport,
		time.Duration(cfg.Worker.RecoveryIntervalMins)*time.Minute,
		cfg.Worker.LeaseTimeout(), metrics)
	go recovery.Run(ctx)
	if cfg.Scheduler.Enabled {
		lock := distlock.NewLock(redisClient, db, "scheduler", cfg.Scheduler.TickInterval())
		sched := worker.NewScheduler(transport, lock, worker.DefaultEntries(), cfg.Scheduler.TickInterval())
		go sched.Run(ctx)
	}
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				dispatcher.ObserveDepths(ctx)
			}
		}
	}()
	go serveMetrics(ctx, log)

	dispatcher.Start(ctx)
	log.Info("worker stopped")
}

// serveMetrics exposes the Prometheus registry on its own listener so the
// worker can be scraped without carrying the API surface.
func serveMetrics(ctx context.Context, log *logger.Logger) {
	addr := os.Getenv("METRICS_ADDR")
	if addr == "" {
		addr = ":9090"
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Warn("metrics listener failed", "error", err.Error())
	}
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
