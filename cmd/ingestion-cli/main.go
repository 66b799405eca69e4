// Command ingestion-cli is the ingestion platform's operational CLI
// (spec.md §6): a health check suitable for container/orchestrator probes,
// a manual master-sync trigger, and a config-file check. Grounded on the
// teacher's cmd/gocoffee-cli cobra root-command pattern, trimmed to these
// three operational commands rather than the teacher's full subcommand tree.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"

	"github.com/supplycatalog/ingestion/internal/catalog/postgres"
	"github.com/supplycatalog/ingestion/internal/mastersync"
	"github.com/supplycatalog/ingestion/internal/parser"
	"github.com/supplycatalog/ingestion/internal/queueing"
	"github.com/supplycatalog/ingestion/pkg/config"
	"github.com/supplycatalog/ingestion/pkg/logger"
)

const serviceName = "ingestion-cli"

func main() {
	root := &cobra.Command{
		Use:   serviceName,
		Short: "Operational commands for the supplier catalog ingestion platform",
	}
	root.AddCommand(healthCmd(), syncCmd(), configCheckCmd())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := root.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// healthCmd exits 0 when both postgres and redis are reachable, 1 otherwise.
func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check connectivity to postgres and redis",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()

			db, err := postgres.NewDatabase(postgres.Config{
				Host: cfg.Database.Host, Port: cfg.Database.Port, User: cfg.Database.User,
				Password: cfg.Database.Password, DBName: cfg.Database.Name, SSLMode: cfg.Database.SSLMode,
			})
			if err != nil {
				fmt.Fprintln(os.Stderr, "postgres: unreachable:", err)
				return err
			}
			defer db.Close()
			if err := db.Ping(ctx); err != nil {
				fmt.Fprintln(os.Stderr, "postgres: ping failed:", err)
				return err
			}

			rdb := redis.NewClient(&redis.Options{
				Addr: fmt.Sprintf("%s:%d", cfg.Queue.Host, cfg.Queue.Port), Password: cfg.Queue.Password, DB: cfg.Queue.DB,
			})
			defer rdb.Close()
			if _, err := rdb.Ping(ctx).Result(); err != nil {
				fmt.Fprintln(os.Stderr, "redis: ping failed:", err)
				return err
			}

			fmt.Println("ok: postgres and redis reachable")
			return nil
		},
	}
}

// configCheckCmd validates an optional YAML config file (plus environment
// overrides) against spec.md §6's knobs, using the viper-backed loader for
// operators who prefer a config file over bare env vars.
func configCheckCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "config-check",
		Short: "Validate a config file (and environment overrides) before deploying",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := config.DefaultConfigOptions()
			ec, err := config.NewEnhancedConfig(opts)
			if err != nil {
				return err
			}
			if file != "" {
				if err := ec.LoadFromFile(file); err != nil {
					return err
				}
			} else if err := ec.Load(); err != nil {
				return err
			}
			if err := ec.Validate(); err != nil {
				fmt.Fprintln(os.Stderr, err)
				return err
			}
			fmt.Println("ok: configuration valid")
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "path to a YAML config file (defaults to ./config.yaml if present)")
	return cmd
}

// syncCmd triggers one master-sync pass outside the cron schedule, sharing
// the orchestrator cmd/master-sync schedules.
func syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Trigger one master-sync reconciliation pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger.New(serviceName)

			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}

			db, err := postgres.NewDatabase(postgres.Config{
				Host: cfg.Database.Host, Port: cfg.Database.Port, User: cfg.Database.User,
				Password: cfg.Database.Password, DBName: cfg.Database.Name, SSLMode: cfg.Database.SSLMode,
			})
			if err != nil {
				return err
			}
			defer db.Close()

			rdb := redis.NewClient(&redis.Options{
				Addr: fmt.Sprintf("%s:%d", cfg.Queue.Host, cfg.Queue.Port), Password: cfg.Queue.Password, DB: cfg.Queue.DB,
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

			summary, err := orchestrator.Run(cmd.Context(), "master_sync:cli", directoryCfg)
			if err != nil {
				return err
			}

			fmt.Printf("sync complete: created=%d updated=%d deactivated=%d skipped=%d status=%s\n",
				summary.SuppliersCreated, summary.SuppliersUpdated, summary.SuppliersDeactivated,
				summary.SuppliersSkipped, summary.Status)
			return nil
		},
	}
}
