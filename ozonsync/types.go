package ozonsync

import "encoding/json"

// Wire shapes for the seller finance feed. Numeric payload fields arrive as
// json.Number so malformed and stringly-typed amounts degrade to zero instead
// of failing the whole page decode.

type FinanceOperation struct {
	OperationId       int64              `json:"operation_id"`
	OperationType     string             `json:"operation_type"`
	OperationTypeName string             `json:"operation_type_name"`
	OperationDate     string             `json:"operation_date"`
	Amount            json.Number        `json:"amount"`
	AccrualsForSale   json.Number        `json:"accruals_for_sale"`
	Posting           OperationPosting   `json:"posting"`
	Items             []OperationItem    `json:"items"`
	Services          []OperationService `json:"services"`
}

type OperationPosting struct {
	PostingNumber  string `json:"posting_number"`
	DeliverySchema string `json:"delivery_schema"`
	OrderDate      string `json:"order_date"`
}

type OperationItem struct {
	Name string      `json:"name"`
	Sku  json.Number `json:"sku"`
}

type OperationService struct {
	Name  string      `json:"name"`
	Price json.Number `json:"price"`
}

type TransactionListResult struct {
	Operations []FinanceOperation `json:"operations"`
	PageCount  int                `json:"page_count"`
	RowCount   int                `json:"row_count"`
}

type transactionListResponse struct {
	Result *TransactionListResult `json:"result"`
}

type transactionListRequest struct {
	Filter transactionListFilter `json:"filter"`
	Page   int                   `json:"page"`
	Size   int                   `json:"page_size"`
}

type transactionListFilter struct {
	Date            transactionDateRange `json:"date"`
	OperationType   []string             `json:"operation_type"`
	TransactionType string               `json:"transaction_type"`
}

type transactionDateRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// PostingDetail is the per-posting supplement fetched through the
// schema-specific endpoint: the product lines plus the parallel financial
// breakdown carrying commission and last-mile amounts.
type PostingDetail struct {
	PostingNumber string            `json:"posting_number"`
	Products      []PostingProduct  `json:"products"`
	FinancialData PostingFinancials `json:"financial_data"`
}

type PostingProduct struct {
	Sku      json.Number `json:"sku"`
	OfferId  string      `json:"offer_id"`
	Name     string      `json:"name"`
	Price    json.Number `json:"price"`
	Quantity int         `json:"quantity"`
}

type PostingFinancials struct {
	Products []FinancialProduct `json:"products"`
}

type FinancialProduct struct {
	ProductId        json.Number          `json:"product_id"`
	CommissionAmount json.Number          `json:"commission_amount"`
	ItemServices     FinancialItemService `json:"item_services"`
}

type FinancialItemService struct {
	DelivToCustomer json.Number `json:"marketplace_service_item_deliv_to_customer"`
}

type postingDetailRequest struct {
	PostingNumber string            `json:"posting_number"`
	With          postingDetailWith `json:"with"`
	Translit      bool              `json:"translit"`
}

type postingDetailWith struct {
	AnalyticsData bool `json:"analytics_data"`
	FinancialData bool `json:"financial_data"`
}

type postingDetailResponse struct {
	Result *PostingDetail `json:"result"`
}

type TriggerSyncRequest struct {
	Marketplace string `json:"marketplace"`
	ClientId    string `json:"clientId"`
}

type SyncHistoryResponse struct {
	Items []SyncRunResponse `json:"items"`
}

type SyncRunResponse struct {
	ID            uint    `json:"id"`
	Marketplace   string  `json:"marketplace"`
	ClientId      string  `json:"clientId"`
	Status        string  `json:"status"`
	StartedAt     *string `json:"startedAt"`
	FinishedAt    *string `json:"finishedAt"`
	DurationMs    int64   `json:"durationMs"`
	RecordsSynced int     `json:"recordsSynced"`
	ErrorCount    int     `json:"errorCount"`
	TriggeredBy   string  `json:"triggeredBy"`
}

type SyncRunDetailResponse struct {
	SyncRunResponse
	Errors []SyncErrorResponse `json:"errors"`
}

type SyncErrorResponse struct {
	ID        uint   `json:"id"`
	ClientId  string `json:"clientId"`
	ErrorCode string `json:"errorCode"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

type PubSubPushEnvelope struct {
	Message struct {
		Data []byte `json:"data"`
		ID   string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

type SyncPubSubPayload struct {
	RunId       uint   `json:"run_id"`
	Marketplace string `json:"marketplace"`
	ClientId    string `json:"client_id"`
}
