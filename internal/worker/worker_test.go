package worker

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supplycatalog/ingestion/internal/catalog"
	"github.com/supplycatalog/ingestion/internal/matching"
	"github.com/supplycatalog/ingestion/internal/queueing"
	"github.com/supplycatalog/ingestion/pkg/logger"
)

func newTestQueue(t *testing.T) *queueing.Queue {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return queueing.NewQueue(rdb, "test", "ingestion")
}

func cat(s string) *string { return &s }

// --- fakeSource ---

type fakeSource struct {
	candidates []matching.Candidate
}

func (f *fakeSource) CandidatesForCategory(ctx context.Context, categoryID string, limit int) ([]matching.Candidate, error) {
	return f.candidates, nil
}

// --- fixture: in-memory fakes backed by a sqlmock-driven *sqlx.Tx, since
// the store interfaces carry a concrete *sqlx.Tx through to Commit/Rollback.

type fixture struct {
	worker   *MatchingWorker
	source   *fakeSource
	sqlxDB   *sqlx.DB
	mock     sqlmock.Sqlmock
	items    map[string]*catalog.SupplierItem
	products map[string]*catalog.Product
	reviews  map[string]*catalog.MatchReviewQueue
}

func newFixture(t *testing.T) *fixture {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	mock.MatchExpectationsInOrder(false)

	f := &fixture{
		source:   &fakeSource{},
		sqlxDB:   sqlx.NewDb(db, "sqlmock"),
		mock:     mock,
		items:    map[string]*catalog.SupplierItem{},
		products: map[string]*catalog.Product{},
		reviews:  map[string]*catalog.MatchReviewQueue{},
	}
	log := logger.NewLogger(logger.DefaultConfig())
	f.worker = NewMatchingWorker(f, f, f, f, f.source, newTestQueue(t), DefaultConfig(), log)
	return f
}

// Begin implements worker.TxBeginner.
func (f *fixture) Begin(ctx context.Context) (*sqlx.Tx, error) {
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	return f.sqlxDB.Beginx()
}

// --- ItemStore ---

func (f *fixture) ClaimUnmatchedBatch(ctx context.Context, batchSize int) (*sqlx.Tx, []catalog.SupplierItem, error) {
	tx, err := f.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	var items []catalog.SupplierItem
	for _, it := range f.items {
		if it.MatchStatus == catalog.StatusUnmatched {
			items = append(items, *it)
		}
	}
	return tx, items, nil
}

func (f *fixture) GetByID(ctx context.Context, id string) (*catalog.SupplierItem, error) {
	return f.items[id], nil
}

func (f *fixture) SetNeedsCategory(ctx context.Context, tx *sqlx.Tx, id string) error {
	f.items[id].MatchStatus = catalog.StatusNeedsCategory
	return nil
}

func (f *fixture) LinkToProduct(ctx context.Context, tx *sqlx.Tx, id, productID string) error {
	f.items[id].ProductID = &productID
	f.items[id].MatchStatus = catalog.StatusMatched
	return nil
}

func (f *fixture) SetPotential(ctx context.Context, tx *sqlx.Tx, id string) error {
	f.items[id].MatchStatus = catalog.StatusPotential
	return nil
}

func (f *fixture) RevertToUnmatched(ctx context.Context, tx *sqlx.Tx, id string) error {
	f.items[id].ProductID = nil
	f.items[id].MatchStatus = catalog.StatusUnmatched
	return nil
}

func (f *fixture) UpdateCharacteristics(ctx context.Context, id string, characteristics catalog.JSONMap) error {
	f.items[id].Characteristics = characteristics
	return nil
}

// --- ProductStore ---

func (f *fixture) ActivateIfDraft(ctx context.Context, tx *sqlx.Tx, id string) error {
	if p, ok := f.products[id]; ok && p.Status == catalog.ProductDraft {
		p.Status = catalog.ProductActive
	}
	return nil
}

func (f *fixture) ExistsInternalSKU(ctx context.Context, sku string) (bool, error) {
	for _, p := range f.products {
		if p.InternalSKU == sku {
			return true, nil
		}
	}
	return false, nil
}

func (f *fixture) CreateTx(ctx context.Context, tx *sqlx.Tx, p *catalog.Product) error {
	p.ID = "generated-" + p.InternalSKU
	f.products[p.ID] = p
	return nil
}

// --- ReviewStore ---

func (f *fixture) Upsert(ctx context.Context, tx *sqlx.Tx, m *catalog.MatchReviewQueue) error {
	if m.ID == "" {
		m.ID = "review-" + m.SupplierItemID
	}
	f.reviews[m.ID] = m
	return nil
}

func (f *fixture) GetByID(ctx context.Context, id string) (*catalog.MatchReviewQueue, error) {
	return f.reviews[id], nil
}

func (f *fixture) MarkApproved(ctx context.Context, tx *sqlx.Tx, id, reviewedBy string) error {
	f.reviews[id].Status = catalog.ReviewApproved
	f.reviews[id].ReviewedBy = &reviewedBy
	return nil
}

func (f *fixture) MarkRejected(ctx context.Context, tx *sqlx.Tx, id, reviewedBy string) error {
	f.reviews[id].Status = catalog.ReviewRejected
	f.reviews[id].ReviewedBy = &reviewedBy
	return nil
}

func (f *fixture) ExpirePending(ctx context.Context) ([]string, error) {
	return nil, nil
}

// --- tests ---

func TestProcessBatchLinksAutoMatch(t *testing.T) {
	f := newFixture(t)
	f.source.candidates = []matching.Candidate{{ProductID: "p1", Name: "Acme Widget 12V"}}
	f.items["si1"] = &catalog.SupplierItem{ID: "si1", Name: "Acme Widget 12V", CategoryID: cat("c1"), MatchStatus: catalog.StatusUnmatched}

	n, err := f.worker.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, catalog.StatusMatched, f.items["si1"].MatchStatus)
	assert.Equal(t, "p1", *f.items["si1"].ProductID)
}

func TestProcessBatchSendsUncategorizedToNeedsCategory(t *testing.T) {
	f := newFixture(t)
	f.items["si1"] = &catalog.SupplierItem{ID: "si1", Name: "Mystery Item", CategoryID: nil, MatchStatus: catalog.StatusUnmatched}

	_, err := f.worker.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, catalog.StatusNeedsCategory, f.items["si1"].MatchStatus)
}

func TestProcessBatchCreatesNewProductOnNoMatch(t *testing.T) {
	f := newFixture(t)
	f.source.candidates = nil
	f.items["si1"] = &catalog.SupplierItem{ID: "si1", Name: "Totally Novel Gadget", CategoryID: cat("c1"), MatchStatus: catalog.StatusUnmatched}

	_, err := f.worker.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, catalog.StatusMatched, f.items["si1"].MatchStatus)
	require.NotNil(t, f.items["si1"].ProductID)
	assert.Len(t, f.products, 1)
}

func TestProcessBatchQueuesReviewOnPotentialMatch(t *testing.T) {
	f := newFixture(t)
	f.source.candidates = []matching.Candidate{{ProductID: "p1", Name: "Acme Widgets XL"}}
	f.items["si1"] = &catalog.SupplierItem{ID: "si1", Name: "Acme Widget", CategoryID: cat("c1"), MatchStatus: catalog.StatusUnmatched}

	_, err := f.worker.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, catalog.StatusPotential, f.items["si1"].MatchStatus)
	assert.Len(t, f.reviews, 1)
}

func TestApproveLinksAndMarksReviewed(t *testing.T) {
	f := newFixture(t)
	f.items["si1"] = &catalog.SupplierItem{ID: "si1", Name: "Acme Widget", MatchStatus: catalog.StatusPotential}
	f.reviews["r1"] = &catalog.MatchReviewQueue{ID: "r1", SupplierItemID: "si1", Status: catalog.ReviewPending}
	f.products["p1"] = &catalog.Product{ID: "p1", Status: catalog.ProductDraft}

	err := f.worker.Approve(context.Background(), "r1", "p1", "reviewer@example.com")
	require.NoError(t, err)
	assert.Equal(t, catalog.StatusMatched, f.items["si1"].MatchStatus)
	assert.Equal(t, "p1", *f.items["si1"].ProductID)
	assert.Equal(t, catalog.ReviewApproved, f.reviews["r1"].Status)
	assert.Equal(t, catalog.ProductActive, f.products["p1"].Status)
}

func TestRejectRunsCreateNewPath(t *testing.T) {
	f := newFixture(t)
	f.items["si1"] = &catalog.SupplierItem{ID: "si1", Name: "Acme Widget", MatchStatus: catalog.StatusPotential}
	f.reviews["r1"] = &catalog.MatchReviewQueue{ID: "r1", SupplierItemID: "si1", Status: catalog.ReviewPending}

	err := f.worker.Reject(context.Background(), "r1", "reviewer@example.com", "")
	require.NoError(t, err)
	assert.Equal(t, catalog.ReviewRejected, f.reviews["r1"].Status)
	assert.Equal(t, catalog.StatusMatched, f.items["si1"].MatchStatus)
	assert.Len(t, f.products, 1)
}
