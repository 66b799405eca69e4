package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/supplycatalog/ingestion/internal/catalog"
	"github.com/supplycatalog/ingestion/pkg/apperrors"
)

// MatchReviewRepository persists catalog.MatchReviewQueue rows. At most one
// row exists per supplier_item_id, enforced by a unique constraint.
type MatchReviewRepository struct {
	db *Database
}

// NewMatchReviewRepository builds a MatchReviewRepository over db.
func NewMatchReviewRepository(db *Database) *MatchReviewRepository {
	return &MatchReviewRepository{db: db}
}

type reviewRow struct {
	ID                string         `db:"id"`
	SupplierItemID    string         `db:"supplier_item_id"`
	CandidateProducts []byte         `db:"candidate_products"`
	Status            string         `db:"status"`
	ReviewedBy        sql.NullString `db:"reviewed_by"`
	ReviewedAt        sql.NullTime   `db:"reviewed_at"`
	CreatedAt         time.Time      `db:"created_at"`
	ExpiresAt         time.Time      `db:"expires_at"`
}

func (row *reviewRow) toModel() (*catalog.MatchReviewQueue, error) {
	var candidates []catalog.Candidate
	if len(row.CandidateProducts) > 0 {
		if err := json.Unmarshal(row.CandidateProducts, &candidates); err != nil {
			return nil, apperrors.Parser("unmarshal candidate_products").Wrap(err)
		}
	}
	m := &catalog.MatchReviewQueue{
		ID:                row.ID,
		SupplierItemID:    row.SupplierItemID,
		CandidateProducts: candidates,
		Status:            catalog.ReviewStatus(row.Status),
		CreatedAt:         row.CreatedAt,
		ExpiresAt:         row.ExpiresAt,
	}
	if row.ReviewedBy.Valid {
		m.ReviewedBy = &row.ReviewedBy.String
	}
	if row.ReviewedAt.Valid {
		m.ReviewedAt = &row.ReviewedAt.Time
	}
	return m, nil
}

// Upsert inserts or replaces the single review row for a supplier item,
// the matching worker's "potential" decision path (spec.md §4.6 step 5).
func (r *MatchReviewRepository) Upsert(ctx context.Context, tx *sqlx.Tx, m *catalog.MatchReviewQueue) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	candidates, err := json.Marshal(m.CandidateProducts)
	if err != nil {
		return apperrors.Validation("marshal candidate_products").Wrap(err)
	}

	const query = `
		INSERT INTO match_review_queue (id, supplier_item_id, candidate_products, status, created_at, expires_at)
		VALUES ($1, $2, $3, $4, now(), $5)
		ON CONFLICT (supplier_item_id) DO UPDATE SET
			candidate_products = EXCLUDED.candidate_products,
			status = EXCLUDED.status,
			expires_at = EXCLUDED.expires_at,
			reviewed_by = NULL,
			reviewed_at = NULL
		RETURNING id, created_at`
	row := tx.QueryRowxContext(ctx, query, m.ID, m.SupplierItemID, candidates, m.Status, m.ExpiresAt)
	if err := row.Scan(&m.ID, &m.CreatedAt); err != nil {
		return apperrors.Database("upsert match review").Wrap(err)
	}
	return nil
}

// GetByID fetches a review row by id.
func (r *MatchReviewRepository) GetByID(ctx context.Context, id string) (*catalog.MatchReviewQueue, error) {
	const query = `SELECT * FROM match_review_queue WHERE id = $1`
	var row reviewRow
	if err := r.db.GetDB().GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound(fmt.Sprintf("review %s not found", id))
		}
		return nil, apperrors.Database("get match review by id").Wrap(err)
	}
	return row.toModel()
}

// GetBySupplierItemID fetches the (at most one) review row for a supplier
// item.
func (r *MatchReviewRepository) GetBySupplierItemID(ctx context.Context, supplierItemID string) (*catalog.MatchReviewQueue, error) {
	const query = `SELECT * FROM match_review_queue WHERE supplier_item_id = $1`
	var row reviewRow
	if err := r.db.GetDB().GetContext(ctx, &row, query, supplierItemID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperrors.Database("get match review by supplier item").Wrap(err)
	}
	return row.toModel()
}

// MarkApproved records the reviewer and timestamp, used by the review UI's
// approve action.
func (r *MatchReviewRepository) MarkApproved(ctx context.Context, tx *sqlx.Tx, id, reviewedBy string) error {
	const query = `UPDATE match_review_queue SET status = $2, reviewed_by = $3, reviewed_at = now() WHERE id = $1`
	_, err := tx.ExecContext(ctx, query, id, catalog.ReviewApproved, reviewedBy)
	if err != nil {
		return apperrors.Database("mark review approved").Wrap(err)
	}
	return nil
}

// MarkRejected records the rejection, used by the review UI's reject
// action (which continues down the create-new path).
func (r *MatchReviewRepository) MarkRejected(ctx context.Context, tx *sqlx.Tx, id, reviewedBy string) error {
	const query = `UPDATE match_review_queue SET status = $2, reviewed_by = $3, reviewed_at = now() WHERE id = $1`
	_, err := tx.ExecContext(ctx, query, id, catalog.ReviewRejected, reviewedBy)
	if err != nil {
		return apperrors.Database("mark review rejected").Wrap(err)
	}
	return nil
}

// ExpirePending marks every row with status = pending AND expires_at <= now
// as expired, returning the affected supplier_item_ids so the caller can
// revert them to unmatched; the expiry worker's periodic sweep
// (spec.md §4.6).
func (r *MatchReviewRepository) ExpirePending(ctx context.Context) ([]string, error) {
	const query = `
		UPDATE match_review_queue
		SET status = $1
		WHERE status = $2 AND expires_at <= now()
		RETURNING supplier_item_id`
	var ids []string
	if err := r.db.GetDB().SelectContext(ctx, &ids, query, catalog.ReviewExpired, catalog.ReviewPending); err != nil {
		return nil, apperrors.Database("expire pending reviews").Wrap(err)
	}
	return ids, nil
}

// ListFilters holds the review-queue filters spec.md §6 names, for the
// review-queue HTTP surface.
type ListFilters struct {
	Status        *catalog.ReviewStatus
	SupplierID    *string
	CategoryID    *string
	MinScore      *float64
	MaxScore      *float64
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	Limit         int
	Offset        int
}

// List returns review rows matching f, ordered newest first. supplier_id
// and category_id filter through a join to supplier_items, since neither
// column is denormalized onto match_review_queue itself.
func (r *MatchReviewRepository) List(ctx context.Context, f ListFilters) ([]catalog.MatchReviewQueue, error) {
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 200
	}

	query := `SELECT q.* FROM match_review_queue q`
	args := []interface{}{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.SupplierID != nil || f.CategoryID != nil {
		query += " JOIN supplier_items si ON si.id = q.supplier_item_id"
	}
	query += " WHERE 1=1"

	if f.Status != nil {
		query += " AND q.status = " + arg(*f.Status)
	}
	if f.SupplierID != nil {
		query += " AND si.supplier_id = " + arg(*f.SupplierID)
	}
	if f.CategoryID != nil {
		query += " AND si.category_id = " + arg(*f.CategoryID)
	}
	if f.CreatedAfter != nil {
		query += " AND q.created_at > " + arg(*f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		query += " AND q.created_at < " + arg(*f.CreatedBefore)
	}
	query += " ORDER BY q.created_at DESC LIMIT " + arg(limit) + " OFFSET " + arg(f.Offset)

	var rows []reviewRow
	if err := r.db.GetDB().SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, apperrors.Database("list match reviews").Wrap(err)
	}

	out := make([]catalog.MatchReviewQueue, 0, len(rows))
	for i := range rows {
		m, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		if f.MinScore != nil || f.MaxScore != nil {
			if !scoreInRange(m.CandidateProducts, f.MinScore, f.MaxScore) {
				continue
			}
		}
		out = append(out, *m)
	}
	return out, nil
}

func scoreInRange(candidates []catalog.Candidate, min, max *float64) bool {
	for _, c := range candidates {
		if min != nil && c.Score < *min {
			continue
		}
		if max != nil && c.Score > *max {
			continue
		}
		return true
	}
	return false
}
