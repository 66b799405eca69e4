package worker

import (
	"context"
	"encoding/json"

	"github.com/supplycatalog/ingestion/internal/catalog"
	"github.com/supplycatalog/ingestion/internal/parser"
	"github.com/supplycatalog/ingestion/internal/queueing"
	"github.com/supplycatalog/ingestion/pkg/apperrors"
	"github.com/supplycatalog/ingestion/pkg/logger"
)

// IngestSupplierStore is the subset of catalog/postgres.SupplierRepository
// the ingest handler needs to resolve a supplier_name into its id.
type IngestSupplierStore interface {
	GetByName(ctx context.Context, name string) (*catalog.Supplier, error)
}

// IngestItemStore is the subset of catalog/postgres.SupplierItemRepository
// the ingest handler needs to persist parsed rows.
type IngestItemStore interface {
	Upsert(ctx context.Context, item *catalog.SupplierItem) error
}

// IngestLogStore is the subset of catalog/postgres.ParsingLogRepository the
// ingest handler needs to record row-level failures.
type IngestLogStore interface {
	Append(ctx context.Context, l *catalog.ParsingLog) error
	CountByTask(ctx context.Context, taskID string) (int, error)
}

// parseTaskPayload mirrors internal/mastersync.ParseTaskPayload; redeclared
// here rather than imported so this handler doesn't need to depend on the
// orchestrator package for one wire shape.
type parseTaskPayload struct {
	ParserType   string          `json:"parser_type"`
	SupplierName string          `json:"supplier_name"`
	SourceConfig catalog.JSONMap `json:"source_config"`
}

// errorRateAbortThreshold is the fraction of rows that must fail before a
// parse task aborts rather than ingesting what it could, per spec.md §4.2.
const errorRateAbortThreshold = 0.5

// IngestHandler runs a registered Parser against a supplier's configured
// source and upserts every row it produces, the parse_supplier_file task's
// handler (spec.md §4.1/§4.2).
type IngestHandler struct {
	suppliers IngestSupplierStore
	items     IngestItemStore
	logs      IngestLogStore
	parsers   *parser.Registry
	queue     *queueing.Queue
	log       *logger.Logger
}

// NewIngestHandler builds an IngestHandler.
func NewIngestHandler(suppliers IngestSupplierStore, items IngestItemStore, logs IngestLogStore, parsers *parser.Registry, queue *queueing.Queue, log *logger.Logger) *IngestHandler {
	return &IngestHandler{suppliers: suppliers, items: items, logs: logs, parsers: parsers, queue: queue, log: log}
}

// Handle decodes msg.Payload, resolves the supplier and parser, runs the
// parse, upserts every parsed row, and logs every dropped row. It aborts
// with a retryable error once dropped rows exceed errorRateAbortThreshold
// of rows attempted, per spec.md §4.2's partial-ingest safeguard.
func (h *IngestHandler) Handle(ctx context.Context, msg *queueing.TaskMessage) error {
	var p parseTaskPayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		return apperrors.Validation("decode parse_supplier_file payload").Wrap(err)
	}

	supplier, err := h.suppliers.GetByName(ctx, p.SupplierName)
	if err != nil {
		return err
	}
	if supplier == nil {
		return apperrors.NotFound("supplier not found: " + p.SupplierName).WithCode("E_SUPPLIER_NOT_FOUND")
	}

	impl := h.parsers.Get(p.ParserType)
	if impl == nil {
		return apperrors.Validation("no parser registered for " + p.ParserType).WithCode("E_PARSER_UNKNOWN")
	}

	cfg, err := decodeParserConfig(impl, p.SourceConfig)
	if err != nil {
		return err
	}

	result, err := impl.Parse(ctx, cfg)
	if err != nil {
		return err
	}

	for _, rowErr := range result.Errors {
		rowNum := rowErr.RowNumber
		_ = h.logs.Append(ctx, &catalog.ParsingLog{
			TaskID:       msg.TaskID,
			SupplierID:   &supplier.ID,
			ErrorType:    "row_validation",
			ErrorMessage: rowErr.Reason,
			RowNumber:    &rowNum,
			RowData:      catalog.JSONMap(rowErr.RawRow),
		})
	}

	attempted := len(result.Items) + len(result.Errors)
	if attempted > 0 && float64(len(result.Errors))/float64(attempted) > errorRateAbortThreshold {
		return apperrors.Parser("parse_supplier_file aborted: error rate exceeds threshold").
			WithCode("E_PARSE_ERROR_RATE").WithContext("supplier", p.SupplierName)
	}

	for _, item := range result.Items {
		row := &catalog.SupplierItem{
			SupplierID:      supplier.ID,
			SupplierSKU:     item.SupplierSKU,
			Name:            item.Name,
			CurrentPrice:    item.Price,
			Characteristics: catalog.JSONMap(item.Characteristics),
			MatchStatus:     catalog.StatusUnmatched,
			// parser.ParsedItem carries no per-item stock signal for any
			// registered format; default false per spec.md §4.2's resolution
			// of that ambiguity rather than assume every parsed row is
			// available.
			InStock: false,
		}
		if err := h.items.Upsert(ctx, row); err != nil {
			return err
		}
	}

	if len(result.Items) > 0 {
		if err := h.triggerMatch(ctx); err != nil {
			h.log.WithError(err).Warn("failed to trigger match_item after parse")
		}
	}

	h.log.WithField("supplier", p.SupplierName).WithField("items", len(result.Items)).
		WithField("errors", len(result.Errors)).Info("parse_supplier_file completed")
	return nil
}

// triggerMatch enqueues a match_item task: a plain trigger, not a
// per-supplier-item message, since MatchingWorker.ProcessBatch claims its
// own batch directly from supplier_items rather than from the queue.
func (h *IngestHandler) triggerMatch(ctx context.Context) error {
	msg, err := queueing.NewTaskMessage(queueing.KindMatchItem, struct{}{}, queueing.PriorityNormal)
	if err != nil {
		return err
	}
	err = h.queue.Enqueue(ctx, msg)
	if err != nil && err != queueing.ErrDuplicateTask {
		return err
	}
	return nil
}

// decodeParserConfig round-trips cfg's raw JSON into the concrete Config
// type impl expects, keyed on the registered parser name.
func decodeParserConfig(impl parser.Parser, raw catalog.JSONMap) (parser.Config, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, apperrors.Validation("marshal source_config").Wrap(err)
	}

	var cfg parser.Config
	switch impl.Name() {
	case "csv":
		var c parser.CSVConfig
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, apperrors.Validation("decode csv source_config").Wrap(err)
		}
		cfg = c
	case "excel":
		var c parser.ExcelConfig
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, apperrors.Validation("decode excel source_config").Wrap(err)
		}
		cfg = c
	case "google_sheets":
		var c parser.GoogleSheetsConfig
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, apperrors.Validation("decode google_sheets source_config").Wrap(err)
		}
		cfg = c
	default:
		return nil, apperrors.Validation("unsupported parser type: " + impl.Name()).WithCode("E_PARSER_UNKNOWN")
	}

	if err := impl.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
