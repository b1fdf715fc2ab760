package ozonsync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"bitbucket.org/mmdatafocus/marketsync_backend/models"
	"bitbucket.org/mmdatafocus/marketsync_backend/utils"
	"github.com/sirupsen/logrus"
)

// ErrPaginationOverflow signals a feed that keeps declaring more pages than
// the configured ceiling allows. The window is abandoned rather than walked
// forever.
var ErrPaginationOverflow = errors.New("pagination overflow")

// WindowResult is everything one client's window produced, organized by the
// store stream it merges into.
type WindowResult struct {
	Operations []models.MarketOperation
	Reports    []models.MarketServiceReport
	CostFixes  []models.CancelledCostFix
}

// CollectWindow walks every page of the finance feed for [from, to] and
// classifies and correlates each operation. Delivered/cancelled operations
// fan out concurrently within one page because each needs its own posting
// detail round-trip; all of a page's results are gathered before the next
// page is requested. Page count comes from the upstream response and is
// honored exactly, capped by SYNC_MAX_PAGES.
func CollectWindow(ctx context.Context, api FinanceAPI, logger *logrus.Logger,
	clientId string, from time.Time, to time.Time) (*WindowResult, error) {

	maxPages := utils.IntFromEnv("SYNC_MAX_PAGES", 1000)
	result := &WindowResult{}

	for page := 1; ; page++ {
		if page > maxPages {
			return nil, fmt.Errorf("%w: feed for client %s exceeded %d pages", ErrPaginationOverflow, clientId, maxPages)
		}

		resp, err := api.ListTransactions(ctx, from, to, SyncedOperationTypes(), page)
		if err != nil {
			return nil, err
		}

		if err := collectPage(ctx, api, logger, clientId, resp.Operations, result); err != nil {
			return nil, err
		}

		if resp.PageCount <= page {
			return result, nil
		}
	}
}

func collectPage(ctx context.Context, api FinanceAPI, logger *logrus.Logger,
	clientId string, operations []FinanceOperation, result *WindowResult) error {

	// Operations that need a posting detail fetch, in feed order.
	var correlate []*FinanceOperation
	var kinds []Kind

	for i := range operations {
		op := &operations[i]
		kind := Classify(op)
		switch kind {
		case KindReturned:
			if len(op.Items) == 0 {
				continue
			}
			cost, ok := ReturnLogisticsCost(op)
			if !ok {
				// The fee was not reported yet; the cancelled row stays
				// NULL until a later window carries it.
				logger.WithFields(logrus.Fields{
					"module":         "ozonsync",
					"client_id":      clientId,
					"posting_number": op.Posting.PostingNumber,
				}).Info("return operation without logistics fee; backfill deferred")
				continue
			}
			result.CostFixes = append(result.CostFixes, models.CancelledCostFix{
				ClientId:      clientId,
				PostingNumber: op.Posting.PostingNumber,
				Sku:           op.Items[0].Sku.String(),
				Cost:          cost,
			})
		case KindAcquiring:
			result.Reports = append(result.Reports, SplitAcquiring(clientId, op)...)
		case KindDelivered, KindCancelled:
			correlate = append(correlate, op)
			kinds = append(kinds, kind)
		default:
			logger.WithFields(logrus.Fields{
				"module":         "ozonsync",
				"client_id":      clientId,
				"operation_type": op.OperationType,
			}).Info("unrecognized operation type; skipping")
		}
	}

	if len(correlate) == 0 {
		return nil
	}

	rowsByOp := make([][]models.MarketOperation, len(correlate))
	errsByOp := make([]error, len(correlate))

	var wg sync.WaitGroup
	for i := range correlate {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rowsByOp[i], errsByOp[i] = CorrelateOperation(ctx, api, logger, clientId, correlate[i], kinds[i])
		}(i)
	}
	wg.Wait()

	for _, err := range errsByOp {
		if err != nil {
			return err
		}
	}
	for _, rows := range rowsByOp {
		result.Operations = append(result.Operations, rows...)
	}
	return nil
}
