package worker

import (
	"context"
	"encoding/json"

	"github.com/supplycatalog/ingestion/internal/queueing"
	"github.com/supplycatalog/ingestion/pkg/apperrors"
)

// MatchBatcher runs one round of the matching pipeline's batch claim, the
// side effect a match_item trigger task causes.
type MatchBatcher interface {
	ProcessBatch(ctx context.Context) (int, error)
}

// Aggregator recomputes one product's derived fields, the side effect a
// recalc_aggregate task causes.
type Aggregator interface {
	Recompute(ctx context.Context, productID string) error
}

// Enricher runs the feature-extraction pipeline over one supplier item, the
// side effect an enrich_item task causes.
type Enricher interface {
	Handle(ctx context.Context, payload json.RawMessage) error
}

// Ingester runs a registered parser against one supplier's configured
// source, the side effect a parse_supplier_file task causes.
type Ingester interface {
	Handle(ctx context.Context, msg *queueing.TaskMessage) error
}

// MasterSyncRunner reconciles the master supplier directory, the side
// effect a master_sync task causes.
type MasterSyncRunner interface {
	Run(ctx context.Context) error
}

// MasterSyncRunnerFunc adapts a plain function to MasterSyncRunner, letting
// cmd/ingestion-worker bind its DirectoryConfig once at wiring time rather than
// threading it through every dispatched task.
type MasterSyncRunnerFunc func(ctx context.Context) error

// Run calls f.
func (f MasterSyncRunnerFunc) Run(ctx context.Context) error { return f(ctx) }

// Dispatcher fans a single Queue's mixed-Kind messages out to the handler
// for that Kind, since every task kind in this pipeline shares one queue
// (spec.md §4.1: parse/match/enrich/recalc/sync tasks on one durable
// backend) rather than one queue per kind.
type Dispatcher struct {
	Ingest     Ingester
	MatchBatch MatchBatcher
	Enrich     Enricher
	Aggregate  Aggregator
	MasterSync MasterSyncRunner
}

type recalcAggregatePayload struct {
	ProductID string `json:"product_id"`
}

// Handle implements queueing.Handler, routing msg to the handler for its
// Kind.
func (d *Dispatcher) Handle(ctx context.Context, msg *queueing.TaskMessage) error {
	switch msg.Kind {
	case queueing.KindParseSupplierFile:
		return d.Ingest.Handle(ctx, msg)
	case queueing.KindMatchItem:
		_, err := d.MatchBatch.ProcessBatch(ctx)
		return err
	case queueing.KindEnrichItem:
		return d.Enrich.Handle(ctx, msg.Payload)
	case queueing.KindRecalcAggregate:
		var p recalcAggregatePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return apperrors.Validation("decode recalc_aggregate payload").Wrap(err)
		}
		return d.Aggregate.Recompute(ctx, p.ProductID)
	case queueing.KindMasterSync:
		return d.MasterSync.Run(ctx)
	default:
		return apperrors.Validation("unknown task kind: " + string(msg.Kind)).WithCode("E_TASK_KIND_UNKNOWN")
	}
}
