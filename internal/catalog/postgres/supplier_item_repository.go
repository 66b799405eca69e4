package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/supplycatalog/ingestion/internal/catalog"
	"github.com/supplycatalog/ingestion/pkg/apperrors"
)

// SupplierItemRepository persists catalog.SupplierItem rows, including the
// SELECT ... FOR UPDATE SKIP LOCKED claiming query the matching pipeline
// worker uses (spec.md §4.6/§9).
type SupplierItemRepository struct {
	db *Database
}

// NewSupplierItemRepository builds a SupplierItemRepository over db.
func NewSupplierItemRepository(db *Database) *SupplierItemRepository {
	return &SupplierItemRepository{db: db}
}

// Upsert inserts or updates a SupplierItem keyed by (supplier_id,
// supplier_sku); re-running an unchanged parse yields zero field changes
// other than last_ingested_at, per spec.md §8's round-trip property.
func (r *SupplierItemRepository) Upsert(ctx context.Context, item *catalog.SupplierItem) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	const query = `
		INSERT INTO supplier_items (id, supplier_id, supplier_sku, name, current_price, characteristics,
			price_opt, price_rrc, in_stock, match_status, last_ingested_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
		ON CONFLICT (supplier_id, supplier_sku) DO UPDATE SET
			name = EXCLUDED.name,
			current_price = EXCLUDED.current_price,
			price_opt = EXCLUDED.price_opt,
			price_rrc = EXCLUDED.price_rrc,
			in_stock = EXCLUDED.in_stock,
			last_ingested_at = now()
		RETURNING id, match_status, last_ingested_at`
	row := r.db.GetDB().QueryRowxContext(ctx, query, item.ID, item.SupplierID, item.SupplierSKU, item.Name,
		item.CurrentPrice, item.Characteristics, item.PriceOpt, item.PriceRRC, item.InStock, catalog.StatusUnmatched)
	if err := row.Scan(&item.ID, &item.MatchStatus, &item.LastIngestedAt); err != nil {
		return apperrors.Database("upsert supplier item").Wrap(err)
	}
	return nil
}

// GetByID fetches a supplier item by id.
func (r *SupplierItemRepository) GetByID(ctx context.Context, id string) (*catalog.SupplierItem, error) {
	const query = `SELECT * FROM supplier_items WHERE id = $1`
	var item catalog.SupplierItem
	if err := r.db.GetDB().GetContext(ctx, &item, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound(fmt.Sprintf("supplier item %s not found", id))
		}
		return nil, apperrors.Database("get supplier item by id").Wrap(err)
	}
	return &item, nil
}

// ClaimUnmatchedBatch opens a transaction and locks up to batchSize rows
// with product_id IS NULL AND match_status = 'unmatched' using
// SELECT ... FOR UPDATE SKIP LOCKED, so concurrent workers never observe
// the same row (spec.md §4.6/§9). Callers must Commit or Rollback tx.
func (r *SupplierItemRepository) ClaimUnmatchedBatch(ctx context.Context, batchSize int) (*sqlx.Tx, []catalog.SupplierItem, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, nil, apperrors.Database("claim batch: begin tx").Wrap(err)
	}

	const query = `
		SELECT * FROM supplier_items
		WHERE product_id IS NULL AND match_status = $1
		ORDER BY last_ingested_at
		LIMIT $2
		FOR UPDATE SKIP LOCKED`
	var items []catalog.SupplierItem
	if err := tx.SelectContext(ctx, &items, query, catalog.StatusUnmatched, batchSize); err != nil {
		tx.Rollback()
		return nil, nil, apperrors.Database("claim batch: select for update skip locked").Wrap(err)
	}
	return tx, items, nil
}

// SetNeedsCategory marks item as needs_category within tx (no candidate
// lookup was possible).
func (r *SupplierItemRepository) SetNeedsCategory(ctx context.Context, tx *sqlx.Tx, id string) error {
	const query = `UPDATE supplier_items SET match_status = $2 WHERE id = $1`
	_, err := tx.ExecContext(ctx, query, id, catalog.StatusNeedsCategory)
	if err != nil {
		return apperrors.Database("set needs_category").Wrap(err)
	}
	return nil
}

// LinkToProduct sets product_id and match_status = matched within tx.
func (r *SupplierItemRepository) LinkToProduct(ctx context.Context, tx *sqlx.Tx, id, productID string) error {
	const query = `UPDATE supplier_items SET product_id = $2, match_status = $3 WHERE id = $1`
	_, err := tx.ExecContext(ctx, query, id, productID, catalog.StatusMatched)
	if err != nil {
		return apperrors.Database("link supplier item to product").Wrap(err)
	}
	return nil
}

// SetPotential marks item as potential within tx, pending review.
func (r *SupplierItemRepository) SetPotential(ctx context.Context, tx *sqlx.Tx, id string) error {
	const query = `UPDATE supplier_items SET match_status = $2 WHERE id = $1`
	_, err := tx.ExecContext(ctx, query, id, catalog.StatusPotential)
	if err != nil {
		return apperrors.Database("set potential").Wrap(err)
	}
	return nil
}

// RevertToUnmatched clears product_id and resets match_status to
// unmatched, used on review-queue expiry and on reject.
func (r *SupplierItemRepository) RevertToUnmatched(ctx context.Context, tx *sqlx.Tx, id string) error {
	const query = `UPDATE supplier_items SET product_id = NULL, match_status = $2 WHERE id = $1`
	_, err := tx.ExecContext(ctx, query, id, catalog.StatusUnmatched)
	if err != nil {
		return apperrors.Database("revert supplier item to unmatched").Wrap(err)
	}
	return nil
}

// UpdateCharacteristics overwrites the characteristics column, used by the
// enrich_item task handler after merging extracted features.
func (r *SupplierItemRepository) UpdateCharacteristics(ctx context.Context, id string, characteristics catalog.JSONMap) error {
	const query = `UPDATE supplier_items SET characteristics = $2 WHERE id = $1`
	_, err := r.db.GetDB().ExecContext(ctx, query, id, characteristics)
	if err != nil {
		return apperrors.Database("update supplier item characteristics").Wrap(err)
	}
	return nil
}

// ListByProduct returns every supplier item linked to productID belonging
// to an active supplier, the aggregation engine's read side.
func (r *SupplierItemRepository) ListByProduct(ctx context.Context, tx *sqlx.Tx, productID string) ([]catalog.SupplierItem, error) {
	const query = `
		SELECT si.* FROM supplier_items si
		JOIN suppliers s ON s.id = si.supplier_id
		WHERE si.product_id = $1 AND si.match_status = $2 AND s.is_active = true`
	var out []catalog.SupplierItem
	if err := tx.SelectContext(ctx, &out, query, productID, catalog.StatusMatched); err != nil {
		return nil, apperrors.Database("list supplier items by product").Wrap(err)
	}
	return out, nil
}
