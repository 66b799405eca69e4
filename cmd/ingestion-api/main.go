// Command ingestion-api serves the status/review HTTP surface (spec.md §6):
// job/queue status, review-queue listing, and the manual approve/reject/
// create_new review action, grounded on the teacher's cmd/order-service
// main for env-driven config, Redis ping on boot, and signal-driven
// graceful shutdown.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/supplycatalog/ingestion/internal/catalog/postgres"
	"github.com/supplycatalog/ingestion/internal/httpapi"
	"github.com/supplycatalog/ingestion/internal/mastersync"
	"github.com/supplycatalog/ingestion/internal/queueing"
	"github.com/supplycatalog/ingestion/internal/worker"
	"github.com/supplycatalog/ingestion/pkg/config"
	"github.com/supplycatalog/ingestion/pkg/logger"
)

const serviceName = "ingestion-api"

func main() {
	log := logger.New(serviceName)
	log.Info("starting ingestion api")

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

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if _, err := rdb.Ping(pingCtx).Result(); err != nil {
		cancel()
		log.WithError(err).Fatal("failed to connect to redis")
	}
	cancel()
	log.Info("connected to postgres and redis")

	categories := postgres.NewCategoryRepository(db)
	products := postgres.NewProductRepository(db)
	items := postgres.NewSupplierItemRepository(db)
	reviews := postgres.NewMatchReviewRepository(db)
	candidateSource := postgres.NewCandidateSource(categories, products)

	queue := queueing.NewQueue(rdb, cfg.Queue.Namespace, "ingestion")
	monitor := queueing.NewMonitor(map[string]*queueing.Queue{"ingestion": queue})
	statusStore := mastersync.NewStatusStore(rdb, cfg.Queue.Namespace)

	matchingWorker := worker.NewMatchingWorker(db, items, products, reviews, candidateSource, queue, worker.Config{
		BatchSize:       cfg.Worker.ClaimBatchSize,
		CandidateWindow: cfg.Matching.CandidateWindow,
		ReviewTTL:       time.Duration(cfg.Matching.ReviewTTLDays) * 24 * time.Hour,
		SKUPrefix:       cfg.Matching.SKUPrefix,
	}, log)

	server := httpapi.NewServer(httpapi.Config{
		Host:         cfg.HTTP.Host,
		Port:         cfg.HTTP.Port,
		ReadTimeout:  mustParseDuration(cfg.HTTP.ReadTimeout, 15*time.Second),
		WriteTimeout: mustParseDuration(cfg.HTTP.WriteTimeout, 15*time.Second),
		IdleTimeout:  mustParseDuration(cfg.HTTP.IdleTimeout, 60*time.Second),
	}, httpapi.Deps{
		Monitor:    monitor,
		SyncStatus: statusStore,
		Reviews:    reviews,
		Worker:     matchingWorker,
	}, log)

	runCtx, runCancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer runCancel()

	log.Info("ingestion api running; press ctrl+c to stop")
	if err := server.Start(runCtx); err != nil {
		log.WithError(err).Fatal("ingestion api server stopped with error")
	}
	log.Info("ingestion api stopped")
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
