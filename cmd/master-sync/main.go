// Command master-sync runs the master-sync orchestrator on a schedule
// (robfig/cron, spec.md §6's mastersync.schedule knob), or once and exits
// when invoked with --once, grounded on the teacher's spf13/cobra CLI
// wiring (cmd/gocoffee-cli) translated into a single-purpose scheduler
// rather than a multi-subcommand tool.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/supplycatalog/ingestion/internal/catalog/postgres"
	"github.com/supplycatalog/ingestion/internal/mastersync"
	"github.com/supplycatalog/ingestion/internal/parser"
	"github.com/supplycatalog/ingestion/internal/queueing"
	"github.com/supplycatalog/ingestion/pkg/config"
	"github.com/supplycatalog/ingestion/pkg/logger"
)

const serviceName = "master-sync"

func main() {
	var once bool

	root := &cobra.Command{
		Use:   serviceName,
		Short: "Reconcile the master supplier directory against the suppliers table",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), once)
		},
	}
	root.Flags().BoolVar(&once, "once", false, "run a single reconciliation pass and exit instead of scheduling")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := root.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, once bool) error {
	log := logger.New(serviceName)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.WithError(err).Error("failed to load configuration")
		return err
	}

	db, err := postgres.NewDatabase(postgres.Config{
		Host: cfg.Database.Host, Port: cfg.Database.Port, User: cfg.Database.User,
		Password: cfg.Database.Password, DBName: cfg.Database.Name, SSLMode: cfg.Database.SSLMode,
	})
	if err != nil {
		log.WithError(err).Error("failed to connect to postgres")
		return err
	}
	defer db.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Queue.Host, cfg.Queue.Port),
		Password: cfg.Queue.Password,
		DB:       cfg.Queue.DB,
	})
	defer rdb.Close()

	suppliers := postgres.NewSupplierRepository(db)
	registry := parser.NewRegistry()
	_ = registry.Register(parser.NewCSVParser())
	_ = registry.Register(parser.NewExcelParser())
	_ = registry.Register(parser.NewGoogleSheetsParser())

	queue := queueing.NewQueue(rdb, cfg.Queue.Namespace, "ingestion")
	statusStore := mastersync.NewStatusStore(rdb, cfg.Queue.Namespace)
	orchestrator := mastersync.NewOrchestrator(suppliers, registry, queue, statusStore, log)

	directoryCfg := mastersync.DirectoryConfig{URL: config.GetEnv("MASTER_DIRECTORY_URL", "")}

	if once {
		summary, err := orchestrator.Run(ctx, "master_sync:once", directoryCfg)
		if err != nil {
			log.WithError(err).Error("master sync run failed")
			return err
		}
		log.WithFields(map[string]interface{}{
			"created":     summary.SuppliersCreated,
			"updated":     summary.SuppliersUpdated,
			"deactivated": summary.SuppliersDeactivated,
			"skipped":     summary.SuppliersSkipped,
			"status":      string(summary.Status),
		}).Info("master sync run completed")
		return nil
	}

	// RunScheduled uses the fixed scheduled task id, the same single-flight
	// identity internal/worker.Dispatcher's master_sync case uses, so a
	// cron-triggered run and a queue-dispatched run never collide silently.
	c := cron.New()
	if _, err := c.AddFunc(cfg.MasterSync.Schedule, func() {
		if err := orchestrator.RunScheduled(ctx, directoryCfg); err != nil {
			log.WithError(err).Error("master sync run failed")
		}
	}); err != nil {
		log.WithError(err).Error("invalid mastersync schedule")
		return err
	}
	c.Start()
	log.WithField("schedule", cfg.MasterSync.Schedule).Info("master-sync scheduler running; press ctrl+c to stop")

	<-ctx.Done()
	stopCtx := c.Stop()
	<-stopCtx.Done()
	log.Info("master-sync scheduler stopped")
	return nil
}
