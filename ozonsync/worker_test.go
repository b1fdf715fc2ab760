package ozonsync

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/marketsync_backend/models"
	"bitbucket.org/mmdatafocus/marketsync_backend/store"
)

// flakyStore fails its first failures commits with the given error, then
// succeeds and records what was committed.
type flakyStore struct {
	failures int
	err      error

	commits   int
	committed *WindowResult
}

func (s *flakyStore) CommitWindow(ctx context.Context, clientId string,
	ops []models.MarketOperation, reports []models.MarketServiceReport,
	fixes []models.CancelledCostFix) (int, error) {

	s.commits++
	if s.commits <= s.failures {
		return 0, s.err
	}
	s.committed = &WindowResult{Operations: ops, Reports: reports, CostFixes: fixes}
	return len(ops), nil
}

func testClient() models.Client {
	return models.Client{
		ClientId:    "client-1",
		NameCompany: "Test Co",
		Marketplace: models.MarketplaceOzon,
		ApiKey:      "key",
		Status:      models.ClientStatusConnected,
	}
}

func singlePageAPI(t *testing.T) *fakeAPI {
	t.Helper()
	return &fakeAPI{
		pages: []TransactionListResult{{
			Operations: []FinanceOperation{deliveredOperation("P-1", "FBO", "50.00", "101")},
		}},
		details: map[string]*PostingDetail{
			"P-1": {Products: []PostingProduct{
				{Sku: "101", OfferId: "ART-101", Price: "50.00", Quantity: 1},
			}},
		},
	}
}

func newTestWorker(st ReconciliationStore, api FinanceAPI, attempts int) *Worker {
	factory := func(clientId string, apiKey string) (FinanceAPI, error) {
		return api, nil
	}
	return NewWorker(st, factory, testLogger(), CycleRetry{MaxAttempts: attempts, Delay: time.Millisecond})
}

func unavailable() error {
	return fmt.Errorf("%w: dial tcp: connection refused", store.ErrStoreUnavailable)
}

func TestSyncClient_StoreOutageRecovery(t *testing.T) {
	st := &flakyStore{failures: 2, err: unavailable()}
	api := singlePageAPI(t)
	worker := newTestWorker(st, api, 6)

	from, to := YesterdayWindow(time.Now())
	added, err := worker.SyncClient(context.Background(), testClient(), from, to)
	if err != nil {
		t.Fatal(err)
	}
	if added != 1 {
		t.Fatalf("added = %d, want 1", added)
	}
	if st.commits != 3 {
		t.Fatalf("commit attempts = %d, want 3", st.commits)
	}
	// Each cycle re-collects from page 1; no partial state carries over.
	if api.listCalls != 3 {
		t.Fatalf("list calls = %d, want 3", api.listCalls)
	}
	if len(st.committed.Operations) != 1 {
		t.Fatalf("committed operations = %d, want 1", len(st.committed.Operations))
	}
}

func TestSyncClient_RetryBudgetExhausted(t *testing.T) {
	st := &flakyStore{failures: 100, err: unavailable()}
	worker := newTestWorker(st, singlePageAPI(t), 3)

	from, to := YesterdayWindow(time.Now())
	_, err := worker.SyncClient(context.Background(), testClient(), from, to)
	if !errors.Is(err, store.ErrStoreUnavailable) {
		t.Fatalf("err = %v, want ErrStoreUnavailable", err)
	}
	if st.commits != 3 {
		t.Fatalf("commit attempts = %d, want 3", st.commits)
	}
}

func TestSyncClient_FatalStoreErrorNotRetried(t *testing.T) {
	st := &flakyStore{failures: 100, err: errors.New("constraint violated")}
	worker := newTestWorker(st, singlePageAPI(t), 6)

	from, to := YesterdayWindow(time.Now())
	_, err := worker.SyncClient(context.Background(), testClient(), from, to)
	if err == nil {
		t.Fatal("expected the fatal error to surface")
	}
	if errors.Is(err, store.ErrStoreUnavailable) {
		t.Fatal("fatal error must not be reported as unavailability")
	}
	if st.commits != 1 {
		t.Fatalf("commit attempts = %d, want 1 (no cycle retry)", st.commits)
	}
}

func TestSyncClient_CollectFailureAbortsCycle(t *testing.T) {
	st := &flakyStore{}
	worker := newTestWorker(st, &erroringListAPI{}, 6)

	from, to := YesterdayWindow(time.Now())
	_, err := worker.SyncClient(context.Background(), testClient(), from, to)
	if err == nil {
		t.Fatal("expected the collect error to surface")
	}
	if st.commits != 0 {
		t.Fatal("nothing may be committed when collection fails")
	}
}
