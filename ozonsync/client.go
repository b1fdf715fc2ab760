package ozonsync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/marketsync_backend/utils"
)

// FinanceAPI is the slice of the seller API the sync engine consumes: the
// paginated finance feed plus the per-posting detail lookup. The worker is
// written against this interface so tests can swap in a canned feed.
type FinanceAPI interface {
	ListTransactions(ctx context.Context, from time.Time, to time.Time, operationTypes []string, page int) (*TransactionListResult, error)
	GetPostingDetail(ctx context.Context, postingNumber string, schema DeliverySchema) (*PostingDetail, error)
}

// FinanceAPIFactory builds a FinanceAPI for one cabinet's credentials.
type FinanceAPIFactory func(clientId string, apiKey string) (FinanceAPI, error)

type ozonClient struct {
	baseURL  string
	clientId string
	apiKey   string
	http     *http.Client
	limiter  <-chan time.Time
}

// NewOzonClient returns the production FinanceAPI backed by the seller HTTP
// API. Requests are throttled through a shared ticker so paginated windows
// stay under the per-cabinet rate limit.
func NewOzonClient(clientId string, apiKey string) (FinanceAPI, error) {
	if strings.TrimSpace(clientId) == "" || strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("ozon client id or api key is empty")
	}

	baseURL := utils.StringFromEnv("OZON_API_BASE_URL", "https://api-seller.ozon.ru")

	rateLimitPerMin := utils.IntFromEnv("OZON_RATE_LIMIT_PER_MIN", 60)
	if rateLimitPerMin < 1 {
		rateLimitPerMin = 1
	}
	interval := time.Minute / time.Duration(rateLimitPerMin)

	return &ozonClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		clientId: clientId,
		apiKey:   apiKey,
		http:     &http.Client{Timeout: 30 * time.Second},
		limiter:  time.Tick(interval),
	}, nil
}

const financePageSize = 1000

func (c *ozonClient) ListTransactions(ctx context.Context, from time.Time, to time.Time, operationTypes []string, page int) (*TransactionListResult, error) {
	req := transactionListRequest{
		Filter: transactionListFilter{
			Date: transactionDateRange{
				From: from.UTC().Format("2006-01-02T15:04:05.000Z"),
				To:   to.UTC().Format("2006-01-02T15:04:05.000Z"),
			},
			OperationType:   operationTypes,
			TransactionType: "all",
		},
		Page: page,
		Size: financePageSize,
	}

	var parsed transactionListResponse
	if err := c.post(ctx, "/v3/finance/transaction/list", req, &parsed); err != nil {
		return nil, err
	}
	if parsed.Result == nil {
		return &TransactionListResult{}, nil
	}
	return parsed.Result, nil
}

func (c *ozonClient) GetPostingDetail(ctx context.Context, postingNumber string, schema DeliverySchema) (*PostingDetail, error) {
	var path string
	switch schema {
	case SchemaFBO:
		path = "/v2/posting/fbo/get"
	case SchemaFBS, SchemaRFBS:
		path = "/v3/posting/fbs/get"
	default:
		return nil, fmt.Errorf("no posting endpoint for schema %s", schema)
	}

	req := postingDetailRequest{
		PostingNumber: postingNumber,
		With: postingDetailWith{
			AnalyticsData: true,
			FinancialData: true,
		},
		Translit: true,
	}

	var parsed postingDetailResponse
	if err := c.post(ctx, path, req, &parsed); err != nil {
		return nil, err
	}
	if parsed.Result == nil {
		return nil, fmt.Errorf("empty posting detail for %s", postingNumber)
	}
	return parsed.Result, nil
}

func (c *ozonClient) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	<-c.limiter

	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Client-Id", c.clientId)
	req.Header.Set("Api-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ozon api error %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(out)
}
