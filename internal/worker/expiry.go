package worker

import (
	"context"

	"github.com/supplycatalog/ingestion/pkg/logger"
)

// ExpiryWorker periodically marks overdue MatchReviewQueue rows expired and
// reverts their supplier items to unmatched, per spec.md §4.6's expiry
// worker.
type ExpiryWorker struct {
	db      TxBeginner
	reviews ReviewStore
	items   ItemStore
	log     *logger.Logger
}

// NewExpiryWorker builds an ExpiryWorker.
func NewExpiryWorker(db TxBeginner, reviews ReviewStore, items ItemStore, log *logger.Logger) *ExpiryWorker {
	return &ExpiryWorker{db: db, reviews: reviews, items: items, log: log}
}

// Sweep expires every pending review past its TTL and reverts the
// corresponding supplier items to unmatched so they're re-eligible for the
// next matching run.
func (w *ExpiryWorker) Sweep(ctx context.Context) (int, error) {
	supplierItemIDs, err := w.reviews.ExpirePending(ctx)
	if err != nil {
		return 0, err
	}
	if len(supplierItemIDs) == 0 {
		return 0, nil
	}

	tx, err := w.db.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	reverted := 0
	for _, id := range supplierItemIDs {
		if err := w.items.RevertToUnmatched(ctx, tx, id); err != nil {
			w.log.WithError(err).WithField("supplier_item_id", id).Error("revert expired review item failed")
			continue
		}
		reverted++
	}

	if err := tx.Commit(); err != nil {
		return reverted, err
	}
	return reverted, nil
}
