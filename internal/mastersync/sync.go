package mastersync

import (
	"context"
	"time"

	"github.com/supplycatalog/ingestion/internal/catalog"
	"github.com/supplycatalog/ingestion/internal/parser"
	"github.com/supplycatalog/ingestion/internal/queueing"
	"github.com/supplycatalog/ingestion/pkg/logger"
)

// SupplierStore is the subset of catalog/postgres.SupplierRepository the
// orchestrator needs.
type SupplierStore interface {
	GetByName(ctx context.Context, name string) (*catalog.Supplier, error)
	Create(ctx context.Context, s *catalog.Supplier) error
	Update(ctx context.Context, s *catalog.Supplier) error
}

// SyncStatus is the terminal outcome reported in the completion summary.
type SyncStatus string

const (
	SyncSuccess        SyncStatus = "success"
	SyncPartialSuccess SyncStatus = "partial_success"
	SyncError          SyncStatus = "error"
)

// RowFailure pairs a skipped master-sheet row with its reason, surfaced in
// the completion summary's errors list.
type RowFailure struct {
	RowNumber int    `json:"row_number"`
	Supplier  string `json:"supplier,omitempty"`
	Reason    string `json:"reason"`
}

// Summary is the completion report spec.md §4.7/§8 scenario 4 describes.
type Summary struct {
	SuppliersCreated     int          `json:"suppliers_created"`
	SuppliersUpdated     int          `json:"suppliers_updated"`
	SuppliersDeactivated int          `json:"suppliers_deactivated"`
	SuppliersSkipped     int          `json:"suppliers_skipped"`
	Errors               []RowFailure `json:"errors"`
	DurationSeconds      float64      `json:"duration_seconds"`
	Status               SyncStatus   `json:"status"`
}

// Orchestrator reads the master supplier directory, reconciles it against
// the suppliers table, fans out a parse_task per active, parseable
// supplier, and publishes progress throughout.
type Orchestrator struct {
	directory *DirectoryReader
	suppliers SupplierStore
	parsers   *parser.Registry
	queue     *queueing.Queue
	status    *StatusStore
	lockTTL   time.Duration
	log       *logger.Logger
}

// NewOrchestrator builds an Orchestrator.
func NewOrchestrator(suppliers SupplierStore, parsers *parser.Registry, queue *queueing.Queue, status *StatusStore, log *logger.Logger) *Orchestrator {
	return &Orchestrator{
		directory: NewDirectoryReader(),
		suppliers: suppliers,
		parsers:   parsers,
		queue:     queue,
		status:    status,
		lockTTL:   10 * time.Minute,
		log:       log,
	}
}

// Run executes one master-sync pass: acquire the single-flight lock, read
// and reconcile the directory, dispatch parse_task per active supplier,
// publish progress throughout, and release the lock on return.
//
// taskID is the lock's holder token and the task id published in the
// status record; the lock is the only single-flight guard Run applies.
func (o *Orchestrator) Run(ctx context.Context, taskID string, cfg DirectoryConfig) (*Summary, error) {
	if err := o.status.TryLock(ctx, taskID, o.lockTTL); err != nil {
		return nil, err
	}
	defer o.status.Unlock(ctx, taskID)

	started := time.Now().UTC()
	if err := o.publish(ctx, StateSyncingMaster, taskID, started, 0, 0); err != nil {
		o.log.WithError(err).Warn("publish syncing_master status failed")
	}
	defer func() {
		if err := o.status.Set(ctx, &Status{State: StateIdle}); err != nil {
			o.log.WithError(err).Warn("publish idle status failed")
		}
	}()

	result, err := o.directory.Read(ctx, cfg)
	if err != nil {
		return nil, err
	}

	summary := &Summary{}
	for _, rowErr := range result.Errors {
		summary.SuppliersSkipped++
		summary.Errors = append(summary.Errors, RowFailure{RowNumber: rowErr.RowNumber, Reason: rowErr.Reason})
	}

	var activeDispatch []catalog.Supplier

	if err := o.publish(ctx, StateProcessingSuppliers, taskID, started, 0, len(result.Rows)); err != nil {
		o.log.WithError(err).Warn("publish processing_suppliers status failed")
	}

	for i, row := range result.Rows {
		supplier, created, err := o.upsert(ctx, row)
		if err != nil {
			summary.SuppliersSkipped++
			summary.Errors = append(summary.Errors, RowFailure{RowNumber: row.RowNumber, Supplier: row.Name, Reason: err.Error()})
			continue
		}
		switch {
		case created:
			summary.SuppliersCreated++
		case !row.IsActive:
			summary.SuppliersDeactivated++
		default:
			summary.SuppliersUpdated++
		}
		if row.IsActive {
			activeDispatch = append(activeDispatch, *supplier)
		}

		if err := o.publish(ctx, StateProcessingSuppliers, taskID, started, i+1, len(result.Rows)); err != nil {
			o.log.WithError(err).Warn("publish progress failed")
		}
	}

	dispatched := o.dispatchParseTasks(ctx, activeDispatch)

	summary.DurationSeconds = time.Since(started).Seconds()
	processed := summary.SuppliersCreated + summary.SuppliersUpdated + summary.SuppliersDeactivated
	switch {
	case summary.SuppliersSkipped > 0 && processed > 0:
		summary.Status = SyncPartialSuccess
	case summary.SuppliersSkipped > 0 && processed == 0:
		summary.Status = SyncError
	default:
		summary.Status = SyncSuccess
	}

	o.log.WithField("dispatched", dispatched).WithField("status", string(summary.Status)).Info("master sync complete")
	return summary, nil
}

// fixedSyncTaskID is the task id scheduled runs pass to Run, and so the
// lock holder token they take. No queue message is enqueued under this id;
// a second run is refused by the StatusStore lock alone.
const fixedSyncTaskID = "master_sync:scheduled"

// RunScheduled runs one pass with the fixed scheduled task id, the shape
// internal/worker.Dispatcher's master_sync case and cmd/master-sync's cron
// trigger both call into.
func (o *Orchestrator) RunScheduled(ctx context.Context, cfg DirectoryConfig) error {
	_, err := o.Run(ctx, fixedSyncTaskID, cfg)
	return err
}

// upsert applies spec.md §4.7's create/update/deactivate rule for one
// validated directory row: update by name if the supplier already exists
// (deactivating rather than deleting when is_active is false), otherwise
// insert.
func (o *Orchestrator) upsert(ctx context.Context, row DirectoryRow) (*catalog.Supplier, bool, error) {
	existing, err := o.suppliers.GetByName(ctx, row.Name)
	if err != nil {
		return nil, false, err
	}

	meta := catalog.JSONMap{"source_url": row.SourceURL}
	if row.Notes != "" {
		meta["notes"] = row.Notes
	}

	if existing == nil {
		s := &catalog.Supplier{
			Name:       row.Name,
			SourceType: row.Format,
			Meta:       meta,
			IsActive:   row.IsActive,
		}
		if err := o.suppliers.Create(ctx, s); err != nil {
			return nil, false, err
		}
		return s, true, nil
	}

	existing.SourceType = row.Format
	existing.Meta = meta
	existing.IsActive = row.IsActive
	if err := o.suppliers.Update(ctx, existing); err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// dispatchParseTasks enqueues one parse_task per active supplier whose
// source_type has a registered parser; a supplier in an unsupported format
// (e.g. pdf, per spec.md's PDF-table-recovery non-goal) is left upserted
// but never dispatched. Returns the number of tasks actually enqueued.
func (o *Orchestrator) dispatchParseTasks(ctx context.Context, suppliers []catalog.Supplier) int {
	dispatched := 0
	for _, s := range suppliers {
		if o.parsers.Get(string(s.SourceType)) == nil {
			o.log.WithField("supplier_id", s.ID).WithField("source_type", string(s.SourceType)).
				Warn("skipping parse_task dispatch: no parser registered for source_type")
			continue
		}

		payload := ParseTaskPayload{
			ParserType:   string(s.SourceType),
			SupplierName: s.Name,
			SourceConfig: s.Meta,
		}
		msg, err := queueing.NewTaskMessage(queueing.KindParseSupplierFile, payload, queueing.PriorityNormal)
		if err != nil {
			o.log.WithError(err).WithField("supplier_id", s.ID).Error("build parse_task failed")
			continue
		}
		if err := o.queue.Enqueue(ctx, msg); err != nil && err != queueing.ErrDuplicateTask {
			o.log.WithError(err).WithField("supplier_id", s.ID).Error("enqueue parse_task failed")
			continue
		}
		dispatched++
	}
	return dispatched
}

// ParseTaskPayload is the parse_task message body spec.md §6 defines:
// {task_id, parser_type, supplier_name, source_config, ...} with task_id
// and the retry/priority envelope fields carried on TaskMessage itself.
type ParseTaskPayload struct {
	ParserType   string          `json:"parser_type"`
	SupplierName string          `json:"supplier_name"`
	SourceConfig catalog.JSONMap `json:"source_config"`
}

func (o *Orchestrator) publish(ctx context.Context, state State, taskID string, started time.Time, current, total int) error {
	return o.status.Set(ctx, &Status{
		State:           state,
		TaskID:          taskID,
		StartedAt:       started,
		ProgressCurrent: current,
		ProgressTotal:   total,
	})
}
