package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/supplycatalog/ingestion/internal/catalog"
	"github.com/supplycatalog/ingestion/pkg/apperrors"
)

// ProductRepository persists catalog.Product rows.
type ProductRepository struct {
	db *Database
}

// NewProductRepository builds a ProductRepository over db.
func NewProductRepository(db *Database) *ProductRepository {
	return &ProductRepository{db: db}
}

// Create inserts a new product, generating its id if unset.
func (r *ProductRepository) Create(ctx context.Context, p *catalog.Product) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	const query = `
		INSERT INTO products (id, internal_sku, name, category_id, status, min_price, availability,
			retail_price, wholesale_price, currency_code, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())
		RETURNING created_at, updated_at`
	row := r.db.GetDB().QueryRowxContext(ctx, query, p.ID, p.InternalSKU, p.Name, p.CategoryID, p.Status,
		p.MinPrice, p.Availability, p.RetailPrice, p.WholesalePrice, p.CurrencyCode)
	if err := row.Scan(&p.CreatedAt, &p.UpdatedAt); err != nil {
		return apperrors.Database("create product").Wrap(err)
	}
	return nil
}

// GetByID fetches a product by id.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*catalog.Product, error) {
	const query = `SELECT * FROM products WHERE id = $1`
	var p catalog.Product
	if err := r.db.GetDB().GetContext(ctx, &p, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound(fmt.Sprintf("product %s not found", id))
		}
		return nil, apperrors.Database("get product by id").Wrap(err)
	}
	return &p, nil
}

// GetByIDForUpdate fetches a product row with FOR UPDATE, for the
// aggregation engine's recompute transaction.
func (r *ProductRepository) GetByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*catalog.Product, error) {
	const query = `SELECT * FROM products WHERE id = $1 FOR UPDATE`
	var p catalog.Product
	if err := tx.GetContext(ctx, &p, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound(fmt.Sprintf("product %s not found", id))
		}
		return nil, apperrors.Database("get product for update").Wrap(err)
	}
	return &p, nil
}

// ActivateIfDraft flips a draft product to active on its first link, per
// spec.md §3/§4.6.
func (r *ProductRepository) ActivateIfDraft(ctx context.Context, tx *sqlx.Tx, id string) error {
	const query = `UPDATE products SET status = $2, updated_at = now() WHERE id = $1 AND status = $3`
	_, err := tx.ExecContext(ctx, query, id, catalog.ProductActive, catalog.ProductDraft)
	if err != nil {
		return apperrors.Database("activate draft product").Wrap(err)
	}
	return nil
}

// UpdateAggregates persists the recomputed min_price/availability within
// tx, the aggregation engine's sole write.
func (r *ProductRepository) UpdateAggregates(ctx context.Context, tx *sqlx.Tx, id string, minPrice *decimal.Decimal, availability bool) error {
	const query = `UPDATE products SET min_price = $2, availability = $3, updated_at = now() WHERE id = $1`
	_, err := tx.ExecContext(ctx, query, id, minPrice, availability)
	if err != nil {
		return apperrors.Database("update product aggregates").Wrap(err)
	}
	return nil
}

// ExistsInternalSKU reports whether internal_sku is already taken, used by
// the create-new-product path's collision-retry loop.
func (r *ProductRepository) ExistsInternalSKU(ctx context.Context, sku string) (bool, error) {
	var exists bool
	const query = `SELECT EXISTS(SELECT 1 FROM products WHERE internal_sku = $1)`
	if err := r.db.GetDB().GetContext(ctx, &exists, query, sku); err != nil {
		return false, apperrors.Database("check internal_sku existence").Wrap(err)
	}
	return exists, nil
}

// CreateTx inserts a product within an externally managed transaction, used
// by the create-new-product path which links the new product to its
// originating supplier item atomically.
func (r *ProductRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, p *catalog.Product) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	const query = `
		INSERT INTO products (id, internal_sku, name, category_id, status, min_price, availability,
			retail_price, wholesale_price, currency_code, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())
		RETURNING created_at, updated_at`
	row := tx.QueryRowxContext(ctx, query, p.ID, p.InternalSKU, p.Name, p.CategoryID, p.Status,
		p.MinPrice, p.Availability, p.RetailPrice, p.WholesalePrice, p.CurrencyCode)
	if err := row.Scan(&p.CreatedAt, &p.UpdatedAt); err != nil {
		return apperrors.Database("tx: create product").Wrap(err)
	}
	return nil
}

// CandidatesInCategories returns {id, name} pairs for non-archived (draft or
// active) products in the given category ids, the matcher's
// category-blocked candidate source.
func (r *ProductRepository) CandidatesInCategories(ctx context.Context, categoryIDs []string, limit int) ([]catalog.Product, error) {
	if len(categoryIDs) == 0 {
		return nil, nil
	}
	const query = `
		SELECT * FROM products
		WHERE category_id = ANY($1) AND status != $2
		ORDER BY id
		LIMIT $3`
	var out []catalog.Product
	if err := r.db.GetDB().SelectContext(ctx, &out, query, pq.Array(categoryIDs), catalog.ProductArchived, limit); err != nil {
		return nil, apperrors.Database("candidates in categories").Wrap(err)
	}
	return out, nil
}
