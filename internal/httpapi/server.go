// Package httpapi implements the ingestion platform's read/write status and
// review surface (spec.md §6): job/queue status, review-queue listing and
// filtering, the manual approve/reject/create_new review action, and a
// Prometheus /metrics endpoint exposing internal/queueing's gauges.
//
// Grounded on the teacher's crypto-terminal/internal/api server wiring
// (gin.New + gin.Logger/gin.Recovery + grouped routes) and
// internal/order/transport/http's middleware chain shape, rebuilt on
// gin-gonic/gin rather than bare net/http since gin is the teacher's
// dominant HTTP framework (cmd/order-service, api-gateway).
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/supplycatalog/ingestion/internal/catalog/postgres"
	"github.com/supplycatalog/ingestion/internal/mastersync"
	"github.com/supplycatalog/ingestion/internal/queueing"
	"github.com/supplycatalog/ingestion/internal/worker"
	"github.com/supplycatalog/ingestion/pkg/logger"
)

// Config tunes the HTTP server's listen address and timeouts.
type Config struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DefaultConfig returns sane defaults for the status/review API.
func DefaultConfig() Config {
	return Config{
		Host:         "0.0.0.0",
		Port:         8081,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// Server is the status/review HTTP API.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	log        *logger.Logger
}

// Deps bundles the Server's collaborators.
type Deps struct {
	Monitor    *queueing.Monitor
	SyncStatus *mastersync.StatusStore
	Reviews    *postgres.MatchReviewRepository
	Worker     *worker.MatchingWorker
}

// NewServer builds a Server with the teacher's middleware chain: request-ID
// injection, structured logging, and panic recovery, followed by the
// status/queue/review route groups.
func NewServer(cfg Config, deps Deps, log *logger.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(requestIDMiddleware(), loggingMiddleware(log), recoveryMiddleware(log))

	h := &handlers{deps: deps, log: log}
	router.GET("/status", h.getStatus)
	router.GET("/queues/:name", h.getQueue)
	router.GET("/reviews", h.listReviews)
	router.POST("/reviews/:id/action", h.reviewAction)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s := &Server{
		router: router,
		log:    log,
	}
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

// Router exposes the underlying gin.Engine for tests.
func (s *Server) Router() *gin.Engine { return s.router }

// Start runs the HTTP server until ctx is cancelled, then shuts it down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", s.httpServer.Addr).Info("httpapi server starting")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}
