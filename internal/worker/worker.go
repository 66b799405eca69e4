// Package worker drives the matching pipeline's per-item state machine:
// unmatched -> matched | potential | needs_category, plus the review
// queue's expiry sweep and the manual approve/reject events the review UI
// emits.
//
// Grounded on the teacher's internal/kitchen/application (a per-order state
// machine driven by a worker pool) and internal/order/domain/order.go's
// CanTransitionTo/UpdateStatus pattern, generalized to this domain's
// four-state machine.
package worker

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/supplycatalog/ingestion/internal/catalog"
	"github.com/supplycatalog/ingestion/internal/extract"
	"github.com/supplycatalog/ingestion/internal/matching"
	"github.com/supplycatalog/ingestion/internal/queueing"
	"github.com/supplycatalog/ingestion/pkg/apperrors"
	"github.com/supplycatalog/ingestion/pkg/logger"
)

// ItemStore is the subset of catalog/postgres.SupplierItemRepository the
// matching worker needs.
type ItemStore interface {
	ClaimUnmatchedBatch(ctx context.Context, batchSize int) (*sqlx.Tx, []catalog.SupplierItem, error)
	GetByID(ctx context.Context, id string) (*catalog.SupplierItem, error)
	SetNeedsCategory(ctx context.Context, tx *sqlx.Tx, id string) error
	LinkToProduct(ctx context.Context, tx *sqlx.Tx, id, productID string) error
	SetPotential(ctx context.Context, tx *sqlx.Tx, id string) error
	RevertToUnmatched(ctx context.Context, tx *sqlx.Tx, id string) error
}

// ProductStore is the subset of catalog/postgres.ProductRepository the
// matching worker needs.
type ProductStore interface {
	ActivateIfDraft(ctx context.Context, tx *sqlx.Tx, id string) error
	ExistsInternalSKU(ctx context.Context, sku string) (bool, error)
	CreateTx(ctx context.Context, tx *sqlx.Tx, p *catalog.Product) error
}

// ReviewStore is the subset of catalog/postgres.MatchReviewRepository the
// matching worker needs.
type ReviewStore interface {
	Upsert(ctx context.Context, tx *sqlx.Tx, m *catalog.MatchReviewQueue) error
	GetByID(ctx context.Context, id string) (*catalog.MatchReviewQueue, error)
	MarkApproved(ctx context.Context, tx *sqlx.Tx, id, reviewedBy string) error
	MarkRejected(ctx context.Context, tx *sqlx.Tx, id, reviewedBy string) error
	ExpirePending(ctx context.Context) ([]string, error)
}

// TxBeginner opens a transaction, implemented by catalog/postgres.Database.
type TxBeginner interface {
	Begin(ctx context.Context) (*sqlx.Tx, error)
}

// Config tunes the matching worker's batch size, candidate window, and
// review TTL, per spec.md §6's numeric knobs.
type Config struct {
	BatchSize       int
	CandidateWindow int
	ReviewTTL       time.Duration
	SKUPrefix       string
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:       50,
		CandidateWindow: 1000,
		ReviewTTL:       30 * 24 * time.Hour,
		SKUPrefix:       "ISKU",
	}
}

// MatchingWorker claims unmatched supplier items and drives each through
// the state machine spec.md §4.6 describes.
type MatchingWorker struct {
	db       TxBeginner
	items    ItemStore
	products ProductStore
	reviews  ReviewStore
	source   matching.CandidateSource
	matcher  *matching.Matcher
	queue    *queueing.Queue
	pipeline *extract.Pipeline
	cfg      Config
	log      *logger.Logger
}

// NewMatchingWorker builds a MatchingWorker.
func NewMatchingWorker(
	db TxBeginner,
	items ItemStore,
	products ProductStore,
	reviews ReviewStore,
	source matching.CandidateSource,
	queue *queueing.Queue,
	cfg Config,
	log *logger.Logger,
) *MatchingWorker {
	return &MatchingWorker{
		db:       db,
		items:    items,
		products: products,
		reviews:  reviews,
		source:   source,
		matcher:  matching.NewMatcher(),
		queue:    queue,
		pipeline: extract.DefaultPipeline(),
		cfg:      cfg,
		log:      log,
	}
}

// pendingTasks accumulates follow-up queue dispatches decided while a
// transaction is still open; they're only enqueued once that transaction
// has actually committed, so a rolled-back decision never triggers
// recompute or enrichment on state that was never persisted.
type pendingTasks struct {
	recalcProductIDs []string
	enrichItemIDs    []string
}

func (p *pendingTasks) recalc(productID string) { p.recalcProductIDs = append(p.recalcProductIDs, productID) }
func (p *pendingTasks) enrich(itemID string)     { p.enrichItemIDs = append(p.enrichItemIDs, itemID) }

// ProcessBatch claims up to cfg.BatchSize unmatched items in one
// transaction and drives each through the decision tree, committing only
// once every item's decision has been applied (spec.md §4.6: "decisions
// persisted before commit"). Queue dispatches are deferred until after the
// commit succeeds.
func (w *MatchingWorker) ProcessBatch(ctx context.Context) (int, error) {
	tx, items, err := w.items.ClaimUnmatchedBatch(ctx, w.cfg.BatchSize)
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	var pending pendingTasks
	for i := range items {
		if err := w.processItem(ctx, tx, &items[i], &pending); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, apperrors.Database("commit matching batch").Wrap(err)
	}
	committed = true

	w.dispatchPending(ctx, pending)
	return len(items), nil
}

// dispatchPending enqueues every follow-up task a just-committed batch
// decided on, logging (not failing the batch) on a queue error — the
// catalog state is already durable; a failed dispatch is logged and not
// retried.
func (w *MatchingWorker) dispatchPending(ctx context.Context, pending pendingTasks) {
	for _, id := range pending.recalcProductIDs {
		if err := w.enqueueRecalc(ctx, id); err != nil {
			w.log.WithError(err).WithField("product_id", id).Error("enqueue recalc failed")
		}
	}
	for _, id := range pending.enrichItemIDs {
		if err := w.enqueueEnrich(ctx, id); err != nil {
			w.log.WithError(err).WithField("supplier_item_id", id).Error("enqueue enrich failed")
		}
	}
}

// processItem applies spec.md §4.6's per-item decision tree to one claimed
// row within tx.
func (w *MatchingWorker) processItem(ctx context.Context, tx *sqlx.Tx, item *catalog.SupplierItem, pending *pendingTasks) error {
	if item.CategoryID == nil {
		return w.items.SetNeedsCategory(ctx, tx, item.ID)
	}

	candidates, err := w.source.CandidatesForCategory(ctx, *item.CategoryID, w.cfg.CandidateWindow)
	if err != nil {
		return err
	}

	result := w.matcher.Match(item.Name, candidates, true, matching.Options{})

	switch result.Status {
	case matching.StatusMatched:
		return w.applyMatched(ctx, tx, item, result.Candidates[0].ProductID, pending)
	case matching.StatusPotential:
		return w.applyPotential(ctx, tx, item, result)
	case matching.StatusNoMatch:
		return w.applyCreateNew(ctx, tx, item, pending)
	default:
		return w.items.SetNeedsCategory(ctx, tx, item.ID)
	}
}

func (w *MatchingWorker) applyMatched(ctx context.Context, tx *sqlx.Tx, item *catalog.SupplierItem, productID string, pending *pendingTasks) error {
	if err := w.items.LinkToProduct(ctx, tx, item.ID, productID); err != nil {
		return err
	}
	if err := w.products.ActivateIfDraft(ctx, tx, productID); err != nil {
		return err
	}
	pending.enrich(item.ID)
	pending.recalc(productID)
	return nil
}

func (w *MatchingWorker) applyPotential(ctx context.Context, tx *sqlx.Tx, item *catalog.SupplierItem, result matching.MatchResult) error {
	candidates := make([]catalog.Candidate, 0, len(result.Candidates))
	for _, c := range result.Candidates {
		candidates = append(candidates, catalog.Candidate{ProductID: c.ProductID, Score: c.Score, Name: c.Name})
	}
	review := &catalog.MatchReviewQueue{
		SupplierItemID:    item.ID,
		CandidateProducts: candidates,
		Status:            catalog.ReviewPending,
		ExpiresAt:         time.Now().UTC().Add(w.cfg.ReviewTTL),
	}
	if err := w.reviews.Upsert(ctx, tx, review); err != nil {
		return err
	}
	return w.items.SetPotential(ctx, tx, item.ID)
}

func (w *MatchingWorker) applyCreateNew(ctx context.Context, tx *sqlx.Tx, item *catalog.SupplierItem, pending *pendingTasks) error {
	return w.applyCreateNewNamed(ctx, tx, item, item.Name, pending)
}

// applyCreateNewNamed is applyCreateNew with an operator-supplied product
// name override, used by Reject's new_product_name parameter (spec.md §6).
func (w *MatchingWorker) applyCreateNewNamed(ctx context.Context, tx *sqlx.Tx, item *catalog.SupplierItem, name string, pending *pendingTasks) error {
	sku, err := w.generateUniqueSKU(ctx)
	if err != nil {
		return err
	}

	product := &catalog.Product{
		InternalSKU: sku,
		Name:        name,
		CategoryID:  item.CategoryID,
		Status:      catalog.ProductActive,
	}
	if err := w.products.CreateTx(ctx, tx, product); err != nil {
		return err
	}
	if err := w.items.LinkToProduct(ctx, tx, item.ID, product.ID); err != nil {
		return err
	}
	pending.enrich(item.ID)
	pending.recalc(product.ID)
	return nil
}

// generateUniqueSKU builds a collision-resistant internal_sku, retrying (up
// to 5 attempts) when ExistsInternalSKU reports the candidate already taken
// (spec.md §4.6 step 6).
func (w *MatchingWorker) generateUniqueSKU(ctx context.Context) (string, error) {
	for attempt := 0; attempt < 5; attempt++ {
		sku := fmt.Sprintf("%s-%s", w.cfg.SKUPrefix, randomSuffix(10))
		exists, err := w.products.ExistsInternalSKU(ctx, sku)
		if err != nil {
			return "", err
		}
		if !exists {
			return sku, nil
		}
	}
	return "", apperrors.Database("exhausted internal_sku generation attempts").WithCode("E_SKU_COLLISION")
}

const skuAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func randomSuffix(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	out := make([]byte, n)
	for i, c := range b {
		out[i] = skuAlphabet[int(c)%len(skuAlphabet)]
	}
	return string(out)
}

// enqueueRecalc dispatches a recalc_aggregate task keyed by product_id so
// concurrent triggers for the same product coalesce at the queue level,
// per spec.md §4.5/§9.
func (w *MatchingWorker) enqueueRecalc(ctx context.Context, productID string) error {
	msg, err := queueing.NewTaskMessage(queueing.KindRecalcAggregate, recalcPayload{ProductID: productID}, queueing.PriorityNormal)
	if err != nil {
		return apperrors.Validation("build recalc task").Wrap(err)
	}
	msg.TaskID = "recalc:" + productID
	err = w.queue.Enqueue(ctx, msg)
	if err != nil && err != queueing.ErrDuplicateTask {
		return err
	}
	return nil
}

type recalcPayload struct {
	ProductID string `json:"product_id"`
}

// enqueueEnrich dispatches an enrich_item task after a successful link or
// create, feeding the extraction pipeline into supplier_items.characteristics
// — a feature recovered from the original's dedicated enrichment queue,
// compatible with spec.md's non-goals.
func (w *MatchingWorker) enqueueEnrich(ctx context.Context, supplierItemID string) error {
	msg, err := queueing.NewTaskMessage(queueing.KindEnrichItem, enrichPayload{SupplierItemID: supplierItemID}, queueing.PriorityLow)
	if err != nil {
		return apperrors.Validation("build enrich task").Wrap(err)
	}
	return w.queue.Enqueue(ctx, msg)
}

type enrichPayload struct {
	SupplierItemID string `json:"supplier_item_id"`
}
