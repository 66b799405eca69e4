// Package aggregate recomputes a product's derived pricing and
// availability fields from its linked, active-supplier items.
//
// Grounded on the original's src/services/aggregation/service.py
// (calculate_product_aggregates, calculate_product_aggregates_batch).
package aggregate

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/supplycatalog/ingestion/internal/catalog"
	"github.com/supplycatalog/ingestion/pkg/logger"
)

// ProductStore is the subset of catalog/postgres.ProductRepository the
// engine needs.
type ProductStore interface {
	GetByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*catalog.Product, error)
	UpdateAggregates(ctx context.Context, tx *sqlx.Tx, id string, minPrice *decimal.Decimal, availability bool) error
}

// SupplierItemStore is the subset of catalog/postgres.SupplierItemRepository
// the engine needs.
type SupplierItemStore interface {
	ListByProduct(ctx context.Context, tx *sqlx.Tx, productID string) ([]catalog.SupplierItem, error)
}

// TxBeginner opens a transaction, implemented by catalog/postgres.Database.
type TxBeginner interface {
	Begin(ctx context.Context) (*sqlx.Tx, error)
}

// Engine recomputes product aggregates inside a single transaction per
// product.
type Engine struct {
	db       TxBeginner
	products ProductStore
	items    SupplierItemStore
	log      *logger.Logger
}

// NewEngine builds an Engine.
func NewEngine(db TxBeginner, products ProductStore, items SupplierItemStore, log *logger.Logger) *Engine {
	return &Engine{db: db, products: products, items: items, log: log}
}

// Recompute reads every active-supplier SupplierItem linked to productID
// and sets min_price (or null, when there are no linked items) and
// availability (true iff at least one linked item is in stock), in one
// transaction, per spec.md §4.5/§8.
func (e *Engine) Recompute(ctx context.Context, productID string) error {
	tx, err := e.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := e.products.GetByIDForUpdate(ctx, tx, productID); err != nil {
		return err
	}

	items, err := e.items.ListByProduct(ctx, tx, productID)
	if err != nil {
		return err
	}

	minPrice, availability := computeAggregates(items)
	if err := e.products.UpdateAggregates(ctx, tx, productID, minPrice, availability); err != nil {
		return err
	}

	return tx.Commit()
}

// computeAggregates derives min_price (the lowest current_price across every
// linked item, regardless of stock) and availability (true iff at least one
// linked item is in stock). Stock only gates availability; min_price is a
// catalog-wide floor an out-of-stock item can still set.
func computeAggregates(items []catalog.SupplierItem) (*decimal.Decimal, bool) {
	var min *decimal.Decimal
	availability := false
	for _, item := range items {
		price := item.CurrentPrice
		if min == nil || price.LessThan(*min) {
			p := price
			min = &p
		}
		if item.InStock {
			availability = true
		}
	}
	return min, availability
}

// RecomputeBatch recomputes every product in productIDs independently: one
// product's failure is logged and does not abort the others, per spec.md
// §4.5/§7's "aggregate recompute failures never cascade".
func (e *Engine) RecomputeBatch(ctx context.Context, productIDs []string) {
	for _, id := range productIDs {
		if err := e.Recompute(ctx, id); err != nil {
			e.log.WithError(err).WithField("product_id", id).Error("recompute aggregates failed")
		}
	}
}
