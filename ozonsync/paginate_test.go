package ozonsync

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func returnedOperation(postingNumber string, sku string, withCost bool) FinanceOperation {
	op := FinanceOperation{
		OperationType: "OperationItemReturn",
		OperationDate: "2026-08-29 12:00:00",
		Posting:       OperationPosting{PostingNumber: postingNumber},
		Items:         []OperationItem{{Sku: json.Number(sku)}},
	}
	if withCost {
		op.Services = []OperationService{
			{Name: "MarketplaceServiceItemReturnFlowLogistic", Price: json.Number("45.00")},
		}
	}
	return op
}

func TestCollectWindow_PaginationCompleteness(t *testing.T) {
	details := map[string]*PostingDetail{}
	var pages []TransactionListResult
	for page := 0; page < 3; page++ {
		postingNumber := []string{"P-1", "P-2", "P-3"}[page]
		sku := []string{"101", "102", "103"}[page]
		pages = append(pages, TransactionListResult{
			Operations: []FinanceOperation{deliveredOperation(postingNumber, "FBO", "50.00", sku)},
		})
		details[postingNumber] = &PostingDetail{
			Products: []PostingProduct{
				{Sku: json.Number(sku), OfferId: "ART-" + sku, Price: json.Number("50.00"), Quantity: 1},
			},
		}
	}
	api := &fakeAPI{pages: pages, details: details}

	from, to := YesterdayWindow(time.Now())
	result, err := CollectWindow(context.Background(), api, testLogger(), "client-1", from, to)
	if err != nil {
		t.Fatal(err)
	}
	if api.listCalls != 3 {
		t.Fatalf("list calls = %d, want exactly 3", api.listCalls)
	}
	if len(result.Operations) != 3 {
		t.Fatalf("len(operations) = %d, want 3", len(result.Operations))
	}

	seen := map[string]bool{}
	for _, op := range result.Operations {
		key := op.Key()
		if seen[key] {
			t.Fatalf("duplicate composite key %s within one run", key)
		}
		seen[key] = true
	}
}

func TestCollectWindow_SinglePageTerminates(t *testing.T) {
	api := &fakeAPI{pages: []TransactionListResult{{}}}
	from, to := YesterdayWindow(time.Now())
	if _, err := CollectWindow(context.Background(), api, testLogger(), "client-1", from, to); err != nil {
		t.Fatal(err)
	}
	if api.listCalls != 1 {
		t.Fatalf("list calls = %d, want 1", api.listCalls)
	}
}

func TestCollectWindow_Overflow(t *testing.T) {
	t.Setenv("SYNC_MAX_PAGES", "2")

	// Every response claims more pages remain.
	pages := make([]TransactionListResult, 50)
	api := &fakeAPI{pages: pages}

	from, to := YesterdayWindow(time.Now())
	_, err := CollectWindow(context.Background(), api, testLogger(), "client-1", from, to)
	if !errors.Is(err, ErrPaginationOverflow) {
		t.Fatalf("err = %v, want ErrPaginationOverflow", err)
	}
	if api.listCalls != 2 {
		t.Fatalf("list calls = %d, want 2 before overflow", api.listCalls)
	}
}

func TestCollectWindow_RoutesReturnsAndAcquiring(t *testing.T) {
	acquiring := FinanceOperation{
		OperationType:     "MarketplaceRedistributionOfAcquiringOperation",
		OperationTypeName: "Оплата эквайринга",
		OperationDate:     "2026-08-29 09:00:00",
		Amount:            json.Number("30.00"),
		Posting:           OperationPosting{PostingNumber: "P-ACQ"},
		Items: []OperationItem{
			{Sku: json.Number("1")}, {Sku: json.Number("2")}, {Sku: json.Number("3")},
		},
	}
	unknown := FinanceOperation{OperationType: "OperationBrandNew"}

	api := &fakeAPI{pages: []TransactionListResult{{
		Operations: []FinanceOperation{
			returnedOperation("P-RET", "301", true),
			returnedOperation("P-PENDING", "302", false),
			acquiring,
			unknown,
		},
	}}}

	from, to := YesterdayWindow(time.Now())
	result, err := CollectWindow(context.Background(), api, testLogger(), "client-1", from, to)
	if err != nil {
		t.Fatal(err)
	}

	if len(result.CostFixes) != 1 {
		t.Fatalf("len(cost fixes) = %d, want 1", len(result.CostFixes))
	}
	fix := result.CostFixes[0]
	if fix.PostingNumber != "P-RET" || fix.Sku != "301" || !fix.Cost.Equal(decimal.RequireFromString("45")) {
		t.Fatalf("cost fix = %+v", fix)
	}

	if len(result.Reports) != 3 {
		t.Fatalf("len(reports) = %d, want 3", len(result.Reports))
	}
	for _, entry := range result.Reports {
		if !entry.Cost.Equal(decimal.RequireFromString("-10")) {
			t.Errorf("report cost = %s, want -10", entry.Cost)
		}
	}

	if len(result.Operations) != 0 {
		t.Fatalf("len(operations) = %d, want 0", len(result.Operations))
	}
	if len(api.detailCalls) != 0 {
		t.Fatal("returns and acquiring must not trigger detail fetches")
	}
}

func TestCollectWindow_ListErrorPropagates(t *testing.T) {
	api := &erroringListAPI{}
	from, to := YesterdayWindow(time.Now())
	if _, err := CollectWindow(context.Background(), api, testLogger(), "client-1", from, to); err == nil {
		t.Fatal("expected the feed error to propagate")
	}
}

type erroringListAPI struct{ fakeAPI }

func (e *erroringListAPI) ListTransactions(ctx context.Context, from time.Time, to time.Time, operationTypes []string, page int) (*TransactionListResult, error) {
	return nil, errors.New("upstream 500")
}
