package worker

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supplycatalog/ingestion/internal/queueing"
)

// --- fake handlers, one per Dispatcher field ---

type fakeIngester struct {
	called bool
	err    error
}

func (f *fakeIngester) Handle(ctx context.Context, msg *queueing.TaskMessage) error {
	f.called = true
	return f.err
}

type fakeMatchBatcher struct {
	called bool
	n      int
	err    error
}

func (f *fakeMatchBatcher) ProcessBatch(ctx context.Context) (int, error) {
	f.called = true
	return f.n, f.err
}

type fakeEnricher struct {
	called  bool
	payload json.RawMessage
	err     error
}

func (f *fakeEnricher) Handle(ctx context.Context, payload json.RawMessage) error {
	f.called = true
	f.payload = payload
	return f.err
}

type fakeAggregator struct {
	called    bool
	productID string
	err       error
}

func (f *fakeAggregator) Recompute(ctx context.Context, productID string) error {
	f.called = true
	f.productID = productID
	return f.err
}

type fakeMasterSyncRunner struct {
	called bool
	err    error
}

func (f *fakeMasterSyncRunner) Run(ctx context.Context) error {
	f.called = true
	return f.err
}

func newDispatcherFixture() (*Dispatcher, *fakeIngester, *fakeMatchBatcher, *fakeEnricher, *fakeAggregator, *fakeMasterSyncRunner) {
	ingest := &fakeIngester{}
	match := &fakeMatchBatcher{}
	enrich := &fakeEnricher{}
	aggregate := &fakeAggregator{}
	sync := &fakeMasterSyncRunner{}
	return &Dispatcher{
		Ingest:     ingest,
		MatchBatch: match,
		Enrich:     enrich,
		Aggregate:  aggregate,
		MasterSync: sync,
	}, ingest, match, enrich, aggregate, sync
}

func TestDispatcherRoutesParseSupplierFile(t *testing.T) {
	d, ingest, _, _, _, _ := newDispatcherFixture()
	msg := &queueing.TaskMessage{Kind: queueing.KindParseSupplierFile}

	require.NoError(t, d.Handle(context.Background(), msg))
	assert.True(t, ingest.called)
}

func TestDispatcherRoutesMatchItem(t *testing.T) {
	d, _, match, _, _, _ := newDispatcherFixture()
	msg := &queueing.TaskMessage{Kind: queueing.KindMatchItem}

	require.NoError(t, d.Handle(context.Background(), msg))
	assert.True(t, match.called)
}

func TestDispatcherRoutesEnrichItem(t *testing.T) {
	d, _, _, enrich, _, _ := newDispatcherFixture()
	msg := &queueing.TaskMessage{Kind: queueing.KindEnrichItem, Payload: json.RawMessage(`{"supplier_item_id":"si1"}`)}

	require.NoError(t, d.Handle(context.Background(), msg))
	assert.True(t, enrich.called)
	assert.JSONEq(t, `{"supplier_item_id":"si1"}`, string(enrich.payload))
}

func TestDispatcherRoutesRecalcAggregate(t *testing.T) {
	d, _, _, _, aggregate, _ := newDispatcherFixture()
	msg := &queueing.TaskMessage{Kind: queueing.KindRecalcAggregate, Payload: json.RawMessage(`{"product_id":"p1"}`)}

	require.NoError(t, d.Handle(context.Background(), msg))
	assert.True(t, aggregate.called)
	assert.Equal(t, "p1", aggregate.productID)
}

func TestDispatcherRoutesRecalcAggregateBadPayload(t *testing.T) {
	d, _, _, _, aggregate, _ := newDispatcherFixture()
	msg := &queueing.TaskMessage{Kind: queueing.KindRecalcAggregate, Payload: json.RawMessage(`not-json`)}

	err := d.Handle(context.Background(), msg)
	require.Error(t, err)
	assert.False(t, aggregate.called)
}

func TestDispatcherRoutesMasterSync(t *testing.T) {
	d, _, _, _, _, sync := newDispatcherFixture()
	msg := &queueing.TaskMessage{Kind: queueing.KindMasterSync}

	require.NoError(t, d.Handle(context.Background(), msg))
	assert.True(t, sync.called)
}

func TestDispatcherRejectsUnknownKind(t *testing.T) {
	d, _, _, _, _, _ := newDispatcherFixture()
	msg := &queueing.TaskMessage{Kind: queueing.Kind("bogus")}

	err := d.Handle(context.Background(), msg)
	require.Error(t, err)
}

func TestMasterSyncRunnerFuncAdapts(t *testing.T) {
	called := false
	var f MasterSyncRunner = MasterSyncRunnerFunc(func(ctx context.Context) error {
		called = true
		return nil
	})

	require.NoError(t, f.Run(context.Background()))
	assert.True(t, called)
}
