package queueing

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/supplycatalog/ingestion/pkg/logger"
)

// Handler processes a single claimed TaskMessage. Returning a retryable
// apperrors error causes the Pool to Nack the task; returning nil Acks it.
type Handler func(ctx context.Context, msg *TaskMessage) error

// PoolConfig sizes and bounds a Pool, mirroring the teacher's
// WorkerPoolConfig but fixed-size rather than auto-scaling, per spec.md §5
// ("fixed pool").
type PoolConfig struct {
	MaxWorkers      int
	JobTimeout      time.Duration
	ClaimTimeout    time.Duration
	SweepInterval   time.Duration
	MetricsInterval time.Duration
}

// DefaultPoolConfig mirrors worker.max_workers=8 / worker.job_timeout=600s.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxWorkers:      8,
		JobTimeout:      600 * time.Second,
		ClaimTimeout:    2 * time.Second,
		SweepInterval:   30 * time.Second,
		MetricsInterval: 15 * time.Second,
	}
}

// PoolMetrics tracks throughput for a running Pool, grounded on the
// teacher's WorkerPoolMetrics.
type PoolMetrics struct {
	completed int64
	failed    int64
}

// Completed returns the number of tasks acked so far.
func (m *PoolMetrics) Completed() int64 { return atomic.LoadInt64(&m.completed) }

// Failed returns the number of tasks nacked so far (retried or DLQ'd).
func (m *PoolMetrics) Failed() int64 { return atomic.LoadInt64(&m.failed) }

// Pool is the fixed-size worker-pool runtime that drains a Queue, modeled
// on pkg/concurrency.DynamicWorkerPool's Start/Stop/wg.Wait lifecycle but
// with a static worker count, since spec.md §5 specifies a fixed pool
// rather than the teacher's scale-up/scale-down evaluator.
type Pool struct {
	queue   *Queue
	handler Handler
	config  PoolConfig
	log     *logger.Logger
	metrics PoolMetrics

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.Mutex
}

// NewPool builds a Pool that claims from queue and dispatches to handler.
func NewPool(queue *Queue, handler Handler, config PoolConfig, log *logger.Logger) *Pool {
	return &Pool{
		queue:   queue,
		handler: handler,
		config:  config,
		log:     log,
	}
}

// Start launches the fixed worker goroutines plus the sweep loop. It
// returns immediately; call Stop (or cancel the context passed to Start) to
// shut down gracefully.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}

	p.ctx, p.cancel = context.WithCancel(ctx)

	for i := 0; i < p.config.MaxWorkers; i++ {
		p.wg.Add(1)
		go p.runWorker(i)
	}

	p.wg.Add(1)
	go p.runSweeper()

	p.running = true
	p.log.Info("worker pool started: workers=%d claim_timeout=%s job_timeout=%s",
		p.config.MaxWorkers, p.config.ClaimTimeout, p.config.JobTimeout)
	return nil
}

// Stop signals all workers to stop claiming new tasks and waits for
// in-flight handlers to finish or hit their job timeout.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.cancel()
	p.mu.Unlock()

	p.wg.Wait()

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	p.log.Info("worker pool stopped: completed=%d failed=%d", p.metrics.Completed(), p.metrics.Failed())
}

func (p *Pool) runWorker(id int) {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		default:
		}

		msg, err := p.queue.Claim(p.ctx, p.config.ClaimTimeout)
		if err != nil {
			if p.ctx.Err() != nil {
				return
			}
			p.log.Error("worker %d: claim failed: %v", id, err)
			continue
		}
		if msg == nil {
			continue
		}

		p.process(id, msg)
	}
}

func (p *Pool) process(workerID int, msg *TaskMessage) {
	jobCtx, cancel := context.WithTimeout(context.Background(), p.config.JobTimeout)
	defer cancel()

	start := time.Now()
	err := p.handler(jobCtx, msg)
	duration := time.Since(start)

	if err == nil {
		if ackErr := p.queue.Ack(context.Background(), msg.TaskID); ackErr != nil {
			p.log.Error("worker %d: ack failed for task %s: %v", workerID, msg.TaskID, ackErr)
		}
		atomic.AddInt64(&p.metrics.completed, 1)
		p.log.Debug("worker %d: task %s (%s) completed in %s", workerID, msg.TaskID, msg.Kind, duration)
		return
	}

	atomic.AddInt64(&p.metrics.failed, 1)
	if nackErr := p.queue.Nack(context.Background(), msg, err); nackErr != nil {
		p.log.Error("worker %d: nack failed for task %s: %v", workerID, msg.TaskID, nackErr)
	}
	p.log.Warn("worker %d: task %s (%s) failed after %s: %v", workerID, msg.TaskID, msg.Kind, duration, err)
}

func (p *Pool) runSweeper() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			reclaimed, promoted, err := p.queue.Sweep(context.Background())
			if err != nil {
				p.log.Error("sweep failed: %v", err)
				continue
			}
			if reclaimed > 0 || promoted > 0 {
				p.log.Info("sweep: reclaimed=%d promoted=%d", reclaimed, promoted)
			}
		case <-p.ctx.Done():
			return
		}
	}
}

// Metrics returns the pool's running throughput counters.
func (p *Pool) Metrics() *PoolMetrics { return &p.metrics }
