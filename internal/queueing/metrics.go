package queueing

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Queue depth gauges, grounded on the teacher's consumer/metrics package
// (WorkerPoolQueueSize/WorkerPoolActiveWorkers): one gauge per observable
// dimension, labeled by queue name so a single process's several named
// queues (ingestion, matching, enrichment, ...) share one metric family.
var (
	queueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ingestion_queue_depth",
		Help: "Pending task count in a queue's main list.",
	}, []string{"queue"})

	queueInProgressDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ingestion_queue_in_progress_depth",
		Help: "Task count currently claimed and being processed for a queue.",
	}, []string{"queue"})

	queueDLQDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ingestion_queue_dlq_depth",
		Help: "Task count in a queue's dead-letter list.",
	}, []string{"queue"})
)
