package ozonsync

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// fakeAPI serves canned pages and posting details.
type fakeAPI struct {
	mu        sync.Mutex
	pages     []TransactionListResult
	details   map[string]*PostingDetail
	detailErr error

	listCalls   int
	detailCalls []string
}

func (f *fakeAPI) ListTransactions(ctx context.Context, from time.Time, to time.Time, operationTypes []string, page int) (*TransactionListResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if page < 1 || page > len(f.pages) {
		return &TransactionListResult{PageCount: len(f.pages)}, nil
	}
	result := f.pages[page-1]
	result.PageCount = len(f.pages)
	return &result, nil
}

func (f *fakeAPI) GetPostingDetail(ctx context.Context, postingNumber string, schema DeliverySchema) (*PostingDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detailCalls = append(f.detailCalls, postingNumber)
	if f.detailErr != nil {
		return nil, f.detailErr
	}
	detail, ok := f.details[postingNumber]
	if !ok {
		return nil, errors.New("posting not found")
	}
	return detail, nil
}

func deliveredOperation(postingNumber string, schema string, accruals string, skus ...string) FinanceOperation {
	items := make([]OperationItem, 0, len(skus))
	for _, sku := range skus {
		items = append(items, OperationItem{Sku: json.Number(sku)})
	}
	return FinanceOperation{
		OperationType:   "OperationAgentDeliveredToCustomer",
		OperationDate:   "2026-08-29 10:00:00",
		AccrualsForSale: json.Number(accruals),
		Posting: OperationPosting{
			PostingNumber:  postingNumber,
			DeliverySchema: schema,
		},
		Items: items,
		Services: []OperationService{
			{Name: "MarketplaceServiceItemDirectFlowLogistic", Price: json.Number("20.00")},
		},
	}
}

func TestCorrelateOperation_ApportionsLogistics(t *testing.T) {
	op := deliveredOperation("0001-1", "FBO", "100.00", "101", "102")
	api := &fakeAPI{details: map[string]*PostingDetail{
		"0001-1": {
			Products: []PostingProduct{
				{Sku: json.Number("101"), OfferId: "ART-101", Price: json.Number("60.00"), Quantity: 1},
				{Sku: json.Number("102"), OfferId: "ART-102", Price: json.Number("40.00"), Quantity: 1},
			},
			FinancialData: PostingFinancials{Products: []FinancialProduct{
				{ProductId: json.Number("101"), CommissionAmount: json.Number("6.00"), ItemServices: FinancialItemService{DelivToCustomer: json.Number("3.00")}},
				{ProductId: json.Number("102"), CommissionAmount: json.Number("4.00"), ItemServices: FinancialItemService{DelivToCustomer: json.Number("2.00")}},
			}},
		},
	}}

	rows, err := CorrelateOperation(context.Background(), api, testLogger(), "client-1", &op, KindDelivered)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2", len(rows))
	}

	if !rows[0].CostLogistic.Valid || !rows[0].CostLogistic.Decimal.Equal(decimal.RequireFromString("12")) {
		t.Errorf("row 101 cost_logistic = %v, want 12.00", rows[0].CostLogistic)
	}
	if !rows[1].CostLogistic.Valid || !rows[1].CostLogistic.Decimal.Equal(decimal.RequireFromString("8")) {
		t.Errorf("row 102 cost_logistic = %v, want 8.00", rows[1].CostLogistic)
	}
	if !rows[0].Commission.Decimal.Equal(decimal.RequireFromString("6")) {
		t.Errorf("row 101 commission = %v, want 6.00", rows[0].Commission)
	}
	if !rows[0].CostLastMile.Valid || !rows[0].CostLastMile.Decimal.Equal(decimal.RequireFromString("3")) {
		t.Errorf("row 101 cost_last_mile = %v, want 3", rows[0].CostLastMile)
	}
	if rows[0].VendorCode != "ART-101" || rows[0].DeliverySchema != "FBO" {
		t.Errorf("row 101 vendor/schema = %s/%s", rows[0].VendorCode, rows[0].DeliverySchema)
	}
	if rows[0].TypeOfTransaction != "delivered" {
		t.Errorf("row 101 type = %s, want delivered", rows[0].TypeOfTransaction)
	}
}

func TestCorrelateOperation_CancelledNegatesAndNullsCosts(t *testing.T) {
	op := deliveredOperation("0002-1", "FBS", "100.00", "201")
	op.OperationType = "ClientReturnAgentOperation"
	api := &fakeAPI{details: map[string]*PostingDetail{
		"0002-1": {
			Products: []PostingProduct{
				{Sku: json.Number("201"), OfferId: "ART-201", Price: json.Number("100.00"), Quantity: 2},
			},
			FinancialData: PostingFinancials{Products: []FinancialProduct{
				{ProductId: json.Number("201"), CommissionAmount: json.Number("10.00"), ItemServices: FinancialItemService{DelivToCustomer: json.Number("5.00")}},
			}},
		},
	}}

	rows, err := CorrelateOperation(context.Background(), api, testLogger(), "client-1", &op, KindCancelled)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("len(rows) = %d, want 1", len(rows))
	}

	row := rows[0]
	if !row.Sale.Equal(decimal.RequireFromString("-100")) {
		t.Errorf("sale = %s, want -100.00", row.Sale)
	}
	if row.Quantity != -2 {
		t.Errorf("quantity = %d, want -2", row.Quantity)
	}
	if !row.Commission.Decimal.Equal(decimal.RequireFromString("-10")) {
		t.Errorf("commission = %v, want -10.00", row.Commission)
	}
	if row.CostLogistic.Valid {
		t.Error("cost_logistic must be NULL on a cancelled row")
	}
	if row.CostLastMile.Valid {
		t.Error("cost_last_mile must be NULL on a cancelled row")
	}
	if row.TypeOfTransaction != "cancelled" {
		t.Errorf("type = %s, want cancelled", row.TypeOfTransaction)
	}
}

func TestCorrelateOperation_UnmatchedSkuDropped(t *testing.T) {
	op := deliveredOperation("0003-1", "FBO", "50.00", "X")
	api := &fakeAPI{details: map[string]*PostingDetail{
		"0003-1": {
			Products: []PostingProduct{
				{Sku: json.Number("999"), OfferId: "ART-Y", Price: json.Number("50.00"), Quantity: 1},
			},
		},
	}}

	rows, err := CorrelateOperation(context.Background(), api, testLogger(), "client-1", &op, KindDelivered)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 0 {
		t.Fatalf("len(rows) = %d, want 0 for an unmatched posting", len(rows))
	}
}

func TestCorrelateOperation_ZeroAccrualDropped(t *testing.T) {
	op := deliveredOperation("0004-1", "FBO", "0", "101")
	api := &fakeAPI{}

	rows, err := CorrelateOperation(context.Background(), api, testLogger(), "client-1", &op, KindDelivered)
	if err != nil {
		t.Fatal(err)
	}
	if rows != nil {
		t.Fatalf("rows = %v, want none", rows)
	}
	if len(api.detailCalls) != 0 {
		t.Fatal("zero-accrual operation must not trigger a detail fetch")
	}
}

func TestCorrelateOperation_UnknownSchemaSkipped(t *testing.T) {
	op := deliveredOperation("0005-1", "Crossborder", "50.00", "101")
	api := &fakeAPI{}

	rows, err := CorrelateOperation(context.Background(), api, testLogger(), "client-1", &op, KindDelivered)
	if err != nil {
		t.Fatal(err)
	}
	if rows != nil {
		t.Fatalf("rows = %v, want none", rows)
	}
	if len(api.detailCalls) != 0 {
		t.Fatal("unknown schema must not trigger a detail fetch")
	}
}

func TestCorrelateOperation_DetailErrorPropagates(t *testing.T) {
	op := deliveredOperation("0006-1", "FBO", "50.00", "101")
	api := &fakeAPI{detailErr: errors.New("upstream 502")}

	_, err := CorrelateOperation(context.Background(), api, testLogger(), "client-1", &op, KindDelivered)
	if err == nil {
		t.Fatal("expected the detail fetch error to propagate")
	}
}

func TestYesterdayWindow(t *testing.T) {
	now := time.Date(2026, 8, 30, 7, 15, 0, 0, time.UTC)
	from, to := YesterdayWindow(now)
	if !from.Equal(time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("from = %v", from)
	}
	if !to.Equal(time.Date(2026, 8, 29, 23, 59, 59, 999000000, time.UTC)) {
		t.Fatalf("to = %v", to)
	}
}
