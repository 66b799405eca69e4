// Command ingestion-worker runs the fixed-size pool that drains the
// ingestion platform's durable queue: parse_supplier_file, match_item,
// enrich_item, recalc_aggregate, and master_sync tasks all dispatch
// through one internal/worker.Dispatcher, grounded on the teacher's
// cmd/order-service main (env-driven config, Redis ping on boot, signal-
// driven graceful shutdown).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/supplycatalog/ingestion/internal/aggregate"
	"github.com/supplycatalog/ingestion/internal/catalog/postgres"
	"github.com/supplycatalog/ingestion/internal/extract"
	"github.com/supplycatalog/ingestion/internal/mastersync"
	"github.com/supplycatalog/ingestion/internal/parser"
	"github.com/supplycatalog/ingestion/internal/queueing"
	"github.com/supplycatalog/ingestion/internal/worker"
	"github.com/supplycatalog/ingestion/pkg/config"
	"github.com/supplycatalog/ingestion/pkg/logger"
)

const serviceName = "ingestion-worker"

func main() {
	log := logger.New(serviceName)
	log.Info("starting ingestion worker")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}
	if err := config.ValidateConfig(cfg); err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	db, err := postgres.NewDatabase(postgres.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.Name,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		log.WithError(err).Fatal("failed to connect to postgres")
	}
	defer db.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     redisAddr(cfg.Queue.Host, cfg.Queue.Port),
		Password: cfg.Queue.Password,
		DB:       cfg.Queue.DB,
	})
	defer rdb.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		cancel()
		log.WithError(err).Fatal("failed to connect to redis")
	}
	cancel()
	log.Info("connected to postgres and redis")

	suppliers := postgres.NewSupplierRepository(db)
	categories := postgres.NewCategoryRepository(db)
	products := postgres.NewProductRepository(db)
	items := postgres.NewSupplierItemRepository(db)
	reviews := postgres.NewMatchReviewRepository(db)
	logs := postgres.NewParsingLogRepository(db)
	candidateSource := postgres.NewCandidateSource(categories, products)

	retryBase := mustParseDuration(cfg.Worker.RetryBaseDelay, time.Second)
	retryMax := mustParseDuration(cfg.Worker.RetryMaxDelay, 300*time.Second)
	queue := queueing.NewQueue(rdb, cfg.Queue.Namespace, "ingestion", queueing.WithRetryBackoff(retryBase, retryMax))

	registry := parser.NewRegistry()
	_ = registry.Register(parser.NewCSVParser())
	_ = registry.Register(parser.NewExcelParser())
	_ = registry.Register(parser.NewGoogleSheetsParser())

	matchingWorker := worker.NewMatchingWorker(db, items, products, reviews, candidateSource, queue, worker.Config{
		BatchSize:       cfg.Worker.ClaimBatchSize,
		CandidateWindow: cfg.Matching.CandidateWindow,
		ReviewTTL:       time.Duration(cfg.Matching.ReviewTTLDays) * 24 * time.Hour,
		SKUPrefix:       cfg.Matching.SKUPrefix,
	}, log)

	ingestHandler := worker.NewIngestHandler(suppliers, items, logs, registry, queue, log)
	enrichHandler := worker.NewEnrichHandler(items, extract.DefaultPipeline())
	aggregateEngine := aggregate.NewEngine(db, products, items, log)

	statusStore := mastersync.NewStatusStore(rdb, cfg.Queue.Namespace)
	orchestrator := mastersync.NewOrchestrator(suppliers, registry, queue, statusStore, log)
	directoryCfg := mastersync.DirectoryConfig{URL: config.GetEnv("MASTER_DIRECTORY_URL", "")}

	dispatcher := &worker.Dispatcher{
		Ingest:     ingestHandler,
		MatchBatch: matchingWorker,
		Enrich:     enrichHandler,
		Aggregate:  aggregateEngine,
		MasterSync: worker.MasterSyncRunnerFunc(func(ctx context.Context) error {
			return orchestrator.RunScheduled(ctx, directoryCfg)
		}),
	}

	pool := queueing.NewPool(queue, dispatcher.Handle, queueing.PoolConfig{
		MaxWorkers:      cfg.Worker.MaxWorkers,
		JobTimeout:      mustParseDuration(cfg.Worker.JobTimeout, 600*time.Second),
		ClaimTimeout:    2 * time.Second,
		SweepInterval:   30 * time.Second,
		MetricsInterval: 15 * time.Second,
	}, log)

	runCtx, runCancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer runCancel()

	if err := pool.Start(runCtx); err != nil {
		log.WithError(err).Fatal("failed to start worker pool")
	}

	expiryWorker := worker.NewExpiryWorker(db, reviews, items, log)
	go runExpirySweep(runCtx, expiryWorker, log)

	log.Info("ingestion worker running; press ctrl+c to stop")
	<-runCtx.Done()

	log.Info("shutting down ingestion worker")
	pool.Stop()
	log.Info("ingestion worker stopped")
}

func runExpirySweep(ctx context.Context, w *worker.ExpiryWorker, log *logger.Logger) {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := w.Sweep(ctx); err != nil {
				log.WithError(err).Error("review expiry sweep failed")
			} else if n > 0 {
				log.WithField("expired", n).Info("review expiry sweep completed")
			}
		}
	}
}

func redisAddr(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}

func mustParseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
