package httpapi

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supplycatalog/ingestion/internal/catalog"
	"github.com/supplycatalog/ingestion/internal/catalog/postgres"
	"github.com/supplycatalog/ingestion/internal/mastersync"
	"github.com/supplycatalog/ingestion/internal/matching"
	"github.com/supplycatalog/ingestion/internal/queueing"
	"github.com/supplycatalog/ingestion/internal/worker"
	"github.com/supplycatalog/ingestion/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// --- worker store fakes, same shape as internal/worker's own test fixture ---

type fakeCandidateSource struct{}

func (fakeCandidateSource) CandidatesForCategory(ctx context.Context, categoryID string, limit int) ([]matching.Candidate, error) {
	return nil, nil
}

type fakeTxBeginner struct {
	db   *sqlx.DB
	mock sqlmock.Sqlmock
}

func newFakeTxBeginner(t *testing.T) fakeTxBeginner {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	mock.MatchExpectationsInOrder(false)
	return fakeTxBeginner{db: sqlx.NewDb(db, "sqlmock"), mock: mock}
}

func (f fakeTxBeginner) Begin(ctx context.Context) (*sqlx.Tx, error) {
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	return f.db.Beginx()
}

type fakeItemStore struct{ items map[string]*catalog.SupplierItem }

func (f *fakeItemStore) ClaimUnmatchedBatch(ctx context.Context, batchSize int) (*sqlx.Tx, []catalog.SupplierItem, error) {
	return nil, nil, nil
}
func (f *fakeItemStore) GetByID(ctx context.Context, id string) (*catalog.SupplierItem, error) {
	return f.items[id], nil
}
func (f *fakeItemStore) SetNeedsCategory(ctx context.Context, tx *sqlx.Tx, id string) error {
	return nil
}
func (f *fakeItemStore) LinkToProduct(ctx context.Context, tx *sqlx.Tx, id, productID string) error {
	f.items[id].ProductID = &productID
	f.items[id].MatchStatus = catalog.StatusMatched
	return nil
}
func (f *fakeItemStore) SetPotential(ctx context.Context, tx *sqlx.Tx, id string) error { return nil }
func (f *fakeItemStore) RevertToUnmatched(ctx context.Context, tx *sqlx.Tx, id string) error {
	return nil
}

type fakeProductStore struct{ products map[string]*catalog.Product }

func (f *fakeProductStore) ActivateIfDraft(ctx context.Context, tx *sqlx.Tx, id string) error {
	if p, ok := f.products[id]; ok {
		p.Status = catalog.ProductActive
	}
	return nil
}
func (f *fakeProductStore) ExistsInternalSKU(ctx context.Context, sku string) (bool, error) {
	return false, nil
}
func (f *fakeProductStore) CreateTx(ctx context.Context, tx *sqlx.Tx, p *catalog.Product) error {
	p.ID = "generated-" + p.InternalSKU
	f.products[p.ID] = p
	return nil
}

type fakeReviewStore struct{ reviews map[string]*catalog.MatchReviewQueue }

func (f *fakeReviewStore) Upsert(ctx context.Context, tx *sqlx.Tx, m *catalog.MatchReviewQueue) error {
	return nil
}
func (f *fakeReviewStore) GetByID(ctx context.Context, id string) (*catalog.MatchReviewQueue, error) {
	return f.reviews[id], nil
}
func (f *fakeReviewStore) MarkApproved(ctx context.Context, tx *sqlx.Tx, id, reviewedBy string) error {
	f.reviews[id].Status = catalog.ReviewApproved
	f.reviews[id].ReviewedBy = &reviewedBy
	return nil
}
func (f *fakeReviewStore) MarkRejected(ctx context.Context, tx *sqlx.Tx, id, reviewedBy string) error {
	f.reviews[id].Status = catalog.ReviewRejected
	f.reviews[id].ReviewedBy = &reviewedBy
	return nil
}
func (f *fakeReviewStore) ExpirePending(ctx context.Context) ([]string, error) { return nil, nil }

// testDeps builds a Deps wired against miniredis (for Monitor/SyncStatus)
// and an in-memory worker built from fake stores, mirroring
// internal/worker's own sqlmock/miniredis fixture style.
type testDeps struct {
	deps       Deps
	items      *fakeItemStore
	products   *fakeProductStore
	reviews    *fakeReviewStore
	reviewMock sqlmock.Sqlmock
}

func newTestDeps(t *testing.T) *testDeps {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	queue := queueing.NewQueue(rdb, "test", "ingestion")
	monitor := queueing.NewMonitor(map[string]*queueing.Queue{"ingestion": queue})
	statusStore := mastersync.NewStatusStore(rdb, "test")

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	mock.MatchExpectationsInOrder(false)
	sqlxDB := sqlx.NewDb(db, "sqlmock")
	reviewRepo := postgres.NewMatchReviewRepository(postgres.NewDatabaseFromConn(sqlxDB))

	items := &fakeItemStore{items: map[string]*catalog.SupplierItem{}}
	products := &fakeProductStore{products: map[string]*catalog.Product{}}
	reviews := &fakeReviewStore{reviews: map[string]*catalog.MatchReviewQueue{}}

	log := logger.NewLogger(logger.DefaultConfig())
	mw := worker.NewMatchingWorker(newFakeTxBeginner(t), items, products, reviews, fakeCandidateSource{}, queue, worker.DefaultConfig(), log)

	return &testDeps{
		deps: Deps{
			Monitor:    monitor,
			SyncStatus: statusStore,
			Reviews:    reviewRepo,
			Worker:     mw,
		},
		items:      items,
		products:   products,
		reviews:    reviews,
		reviewMock: mock,
	}
}

func newTestHandlers(t *testing.T) (*handlers, *testDeps) {
	t.Helper()
	td := newTestDeps(t)
	log := logger.NewLogger(logger.DefaultConfig())
	return &handlers{deps: td.deps, log: log}, td
}

func ginCtx(method, target string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
		c.Request = httptest.NewRequest(method, target, reader)
		c.Request.Header.Set("Content-Type", "application/json")
	} else {
		c.Request = httptest.NewRequest(method, target, nil)
	}
	return c, rec
}

func TestGetStatusReturnsIdleByDefault(t *testing.T) {
	h, _ := newTestHandlers(t)
	c, rec := ginCtx(http.MethodGet, "/status", nil)

	h.getStatus(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"idle"`)
}

func TestGetQueueReturnsSnapshot(t *testing.T) {
	h, _ := newTestHandlers(t)
	c, rec := ginCtx(http.MethodGet, "/queues/ingestion", nil)
	c.Params = gin.Params{{Key: "name", Value: "ingestion"}}

	h.getQueue(c)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetQueueUnknownNameReturnsNotFound(t *testing.T) {
	h, _ := newTestHandlers(t)
	c, rec := ginCtx(http.MethodGet, "/queues/bogus", nil)
	c.Params = gin.Params{{Key: "name", Value: "bogus"}}

	h.getQueue(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListReviewsReturnsEmptyList(t *testing.T) {
	h, td := newTestHandlers(t)
	td.reviewMock.ExpectQuery("SELECT q\\.\\* FROM match_review_queue").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "supplier_item_id", "candidate_products", "status",
			"reviewed_by", "reviewed_at", "created_at", "expires_at",
		}))

	c, rec := ginCtx(http.MethodGet, "/reviews?status=pending", nil)

	h.listReviews(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"reviews":[]`)
}

func TestReviewActionApproveRequiresProductID(t *testing.T) {
	h, _ := newTestHandlers(t)
	c, rec := ginCtx(http.MethodPost, "/reviews/r1/action", []byte(`{"action":"approve"}`))
	c.Params = gin.Params{{Key: "id", Value: "r1"}}

	h.reviewAction(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReviewActionApproveLinksProduct(t *testing.T) {
	h, td := newTestHandlers(t)
	td.items.items["si1"] = &catalog.SupplierItem{ID: "si1", Name: "Acme Widget", MatchStatus: catalog.StatusPotential}
	td.reviews.reviews["r1"] = &catalog.MatchReviewQueue{ID: "r1", SupplierItemID: "si1", Status: catalog.ReviewPending}
	td.products.products["p1"] = &catalog.Product{ID: "p1", Status: catalog.ProductDraft}

	c, rec := ginCtx(http.MethodPost, "/reviews/r1/action", []byte(`{"action":"approve","product_id":"p1","reviewed_by":"alice"}`))
	c.Params = gin.Params{{Key: "id", Value: "r1"}}

	h.reviewAction(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, catalog.ReviewApproved, td.reviews.reviews["r1"].Status)
	assert.Equal(t, catalog.StatusMatched, td.items.items["si1"].MatchStatus)
}

func TestReviewActionCreateNewRequiresName(t *testing.T) {
	h, _ := newTestHandlers(t)
	c, rec := ginCtx(http.MethodPost, "/reviews/r1/action", []byte(`{"action":"create_new"}`))
	c.Params = gin.Params{{Key: "id", Value: "r1"}}

	h.reviewAction(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReviewActionRejectFallsBackToItemName(t *testing.T) {
	h, td := newTestHandlers(t)
	td.items.items["si1"] = &catalog.SupplierItem{ID: "si1", Name: "Acme Widget", MatchStatus: catalog.StatusPotential}
	td.reviews.reviews["r1"] = &catalog.MatchReviewQueue{ID: "r1", SupplierItemID: "si1", Status: catalog.ReviewPending}

	c, rec := ginCtx(http.MethodPost, "/reviews/r1/action", []byte(`{"action":"reject","reviewed_by":"alice"}`))
	c.Params = gin.Params{{Key: "id", Value: "r1"}}

	h.reviewAction(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, catalog.ReviewRejected, td.reviews.reviews["r1"].Status)
	assert.Len(t, td.products.products, 1)
	for _, p := range td.products.products {
		assert.Equal(t, "Acme Widget", p.Name)
	}
}

func TestReviewActionRejectsInvalidActionValue(t *testing.T) {
	h, _ := newTestHandlers(t)
	c, rec := ginCtx(http.MethodPost, "/reviews/r1/action", []byte(`{"action":"bogus"}`))
	c.Params = gin.Params{{Key: "id", Value: "r1"}}

	h.reviewAction(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
