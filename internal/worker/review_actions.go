package worker

import (
	"context"

	"github.com/supplycatalog/ingestion/pkg/apperrors"
)

// Approve links a reviewed supplier item to productID, records the
// reviewer, and enqueues recompute on the newly linked product and on any
// previously linked one (on relink), per spec.md §4.6's manual match
// events.
func (w *MatchingWorker) Approve(ctx context.Context, reviewID, productID, reviewedBy string) error {
	review, err := w.reviews.GetByID(ctx, reviewID)
	if err != nil {
		return err
	}

	item, err := w.items.GetByID(ctx, review.SupplierItemID)
	if err != nil {
		return err
	}
	previousProductID := item.ProductID

	tx, err := w.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := w.items.LinkToProduct(ctx, tx, item.ID, productID); err != nil {
		return err
	}
	if err := w.products.ActivateIfDraft(ctx, tx, productID); err != nil {
		return err
	}
	if err := w.reviews.MarkApproved(ctx, tx, reviewID, reviewedBy); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperrors.Database("commit review approval").Wrap(err)
	}

	if err := w.enqueueEnrich(ctx, item.ID); err != nil {
		return err
	}
	if err := w.enqueueRecalc(ctx, productID); err != nil {
		return err
	}
	if previousProductID != nil && *previousProductID != productID {
		if err := w.enqueueRecalc(ctx, *previousProductID); err != nil {
			return err
		}
	}
	return nil
}

// Reject marks the review rejected and runs the create-new-product path
// for the supplier item, per spec.md §4.6's manual match events. newName,
// when non-empty, overrides the new product's name (spec.md §6's
// new_product_name, required for the HTTP API's create_new action,
// optional for reject which otherwise falls back to the item's own name).
func (w *MatchingWorker) Reject(ctx context.Context, reviewID, reviewedBy, newName string) error {
	review, err := w.reviews.GetByID(ctx, reviewID)
	if err != nil {
		return err
	}
	item, err := w.items.GetByID(ctx, review.SupplierItemID)
	if err != nil {
		return err
	}

	tx, err := w.db.Begin(ctx)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	if err := w.reviews.MarkRejected(ctx, tx, reviewID, reviewedBy); err != nil {
		return err
	}
	var pending pendingTasks
	name := item.Name
	if newName != "" {
		name = newName
	}
	if err := w.applyCreateNewNamed(ctx, tx, item, name, &pending); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperrors.Database("commit review rejection").Wrap(err)
	}
	committed = true

	w.dispatchPending(ctx, pending)
	return nil
}
