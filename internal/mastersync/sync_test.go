package mastersync

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supplycatalog/ingestion/internal/catalog"
	"github.com/supplycatalog/ingestion/internal/parser"
	"github.com/supplycatalog/ingestion/internal/queueing"
	"github.com/supplycatalog/ingestion/pkg/logger"
)

func newTestEnv(t *testing.T) (*redis.Client, *queueing.Queue) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return rdb, queueing.NewQueue(rdb, "test", "parse")
}

type fakeSupplierStore struct {
	byName map[string]*catalog.Supplier
}

func newFakeSupplierStore() *fakeSupplierStore {
	return &fakeSupplierStore{byName: map[string]*catalog.Supplier{}}
}

func (f *fakeSupplierStore) GetByName(ctx context.Context, name string) (*catalog.Supplier, error) {
	return f.byName[name], nil
}

func (f *fakeSupplierStore) Create(ctx context.Context, s *catalog.Supplier) error {
	s.ID = "generated-" + s.Name
	f.byName[s.Name] = s
	return nil
}

func (f *fakeSupplierStore) Update(ctx context.Context, s *catalog.Supplier) error {
	f.byName[s.Name] = s
	return nil
}

func testRegistry() *parser.Registry {
	reg := parser.NewRegistry()
	_ = reg.Register(parser.NewCSVParser())
	_ = reg.Register(parser.NewGoogleSheetsParser())
	return reg
}

func TestOrchestratorRunReconcilesDirectory(t *testing.T) {
	body := "supplier_name,source_url,format,is_active,notes\n" +
		"Acme Supply,https://example.com/acme.csv,csv,true,\n" +
		",https://example.com/bad.csv,csv,true,\n" +
		"Legacy Co,https://example.com/legacy.xlsx,excel,false,\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer srv.Close()

	rdb, queue := newTestEnv(t)
	suppliers := newFakeSupplierStore()
	suppliers.byName["Legacy Co"] = &catalog.Supplier{ID: "existing-legacy", Name: "Legacy Co", IsActive: true}

	orch := NewOrchestrator(suppliers, testRegistry(), queue, NewStatusStore(rdb, "test"), logger.NewLogger(logger.DefaultConfig()))

	summary, err := orch.Run(context.Background(), "sync-1", DirectoryConfig{
		URL: srv.URL, SheetName: "Directory", HeaderRow: 1, DataStartRow: 2,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.SuppliersCreated)
	assert.Equal(t, 1, summary.SuppliersDeactivated) // Legacy Co existed and its row is now inactive
	assert.Equal(t, 1, summary.SuppliersSkipped)
	assert.Equal(t, SyncPartialSuccess, summary.Status)
	require.Len(t, summary.Errors, 1)

	depth, err := queue.Depth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), depth) // only Acme Supply is active

	assert.False(t, suppliers.byName["Legacy Co"].IsActive)
}

func TestOrchestratorRejectsConcurrentRun(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("supplier_name,source_url,format,is_active,notes\n"))
	}))
	defer srv.Close()

	rdb, queue := newTestEnv(t)
	status := NewStatusStore(rdb, "test")
	require.NoError(t, status.TryLock(context.Background(), "holder", 0))

	orch := NewOrchestrator(newFakeSupplierStore(), testRegistry(), queue, status, logger.NewLogger(logger.DefaultConfig()))
	_, err := orch.Run(context.Background(), "sync-2", DirectoryConfig{URL: srv.URL, SheetName: "Directory", HeaderRow: 1, DataStartRow: 2})
	assert.ErrorIs(t, err, ErrSyncInProgress)
}

func TestOrchestratorSkipsDispatchForUnregisteredFormat(t *testing.T) {
	body := "supplier_name,source_url,format,is_active,notes\n" +
		"Fax Supplier,,pdf,true,\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer srv.Close()

	rdb, queue := newTestEnv(t)
	orch := NewOrchestrator(newFakeSupplierStore(), testRegistry(), queue, NewStatusStore(rdb, "test"), logger.NewLogger(logger.DefaultConfig()))

	summary, err := orch.Run(context.Background(), "sync-3", DirectoryConfig{URL: srv.URL, SheetName: "Directory", HeaderRow: 1, DataStartRow: 2})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.SuppliersCreated)

	depth, err := queue.Depth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), depth)
}
