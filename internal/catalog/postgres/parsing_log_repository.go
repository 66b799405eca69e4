package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/supplycatalog/ingestion/internal/catalog"
	"github.com/supplycatalog/ingestion/pkg/apperrors"
)

// ParsingLogRepository is an append-only sink for catalog.ParsingLog rows,
// the diagnostic stream a parse task writes to on every row-level failure
// (spec.md §4.2/§6).
type ParsingLogRepository struct {
	db *Database
}

// NewParsingLogRepository builds a ParsingLogRepository over db.
func NewParsingLogRepository(db *Database) *ParsingLogRepository {
	return &ParsingLogRepository{db: db}
}

// Append inserts a single log entry, generating its id if unset.
func (r *ParsingLogRepository) Append(ctx context.Context, l *catalog.ParsingLog) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	const query = `
		INSERT INTO parsing_logs (id, task_id, supplier_id, error_type, error_message,
			row_number, row_data, chunk_id, extraction_phase, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		RETURNING created_at`
	row := r.db.GetDB().QueryRowxContext(ctx, query, l.ID, l.TaskID, l.SupplierID, l.ErrorType, l.ErrorMessage,
		l.RowNumber, l.RowData, l.ChunkID, l.ExtractionPhase)
	if err := row.Scan(&l.CreatedAt); err != nil {
		return apperrors.Database("append parsing log").Wrap(err)
	}
	return nil
}

// ListByTask returns every log entry for a task, newest first, for the
// parse-task status surface.
func (r *ParsingLogRepository) ListByTask(ctx context.Context, taskID string) ([]catalog.ParsingLog, error) {
	const query = `SELECT * FROM parsing_logs WHERE task_id = $1 ORDER BY created_at DESC`
	var out []catalog.ParsingLog
	if err := r.db.GetDB().SelectContext(ctx, &out, query, taskID); err != nil {
		return nil, apperrors.Database("list parsing logs by task").Wrap(err)
	}
	return out, nil
}

// CountByTask returns the number of log entries recorded for a task. The
// parse-task's error-rate gating (spec.md §4.2: abort at >50% rows failed)
// does not use it; IngestHandler computes that rate from the parse result.
func (r *ParsingLogRepository) CountByTask(ctx context.Context, taskID string) (int, error) {
	const query = `SELECT count(*) FROM parsing_logs WHERE task_id = $1`
	var n int
	if err := r.db.GetDB().GetContext(ctx, &n, query, taskID); err != nil {
		return 0, apperrors.Database("count parsing logs by task").Wrap(err)
	}
	return n, nil
}
