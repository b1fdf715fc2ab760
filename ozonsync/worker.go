package ozonsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/marketsync_backend/config"
	"bitbucket.org/mmdatafocus/marketsync_backend/models"
	"bitbucket.org/mmdatafocus/marketsync_backend/store"
	"bitbucket.org/mmdatafocus/marketsync_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ReconciliationStore is the persistence boundary the worker writes through.
// One CommitWindow call merges everything a client's window produced inside a
// single transaction scope.
type ReconciliationStore interface {
	CommitWindow(ctx context.Context, clientId string,
		ops []models.MarketOperation, reports []models.MarketServiceReport,
		fixes []models.CancelledCostFix) (int, error)
}

// CycleRetry bounds the whole-cycle retry the worker applies on top of the
// store's own per-call budget. Only store unavailability re-runs a cycle; the
// feed is re-fetched from page 1 because no partial-resume state is kept.
type CycleRetry struct {
	MaxAttempts int
	Delay       time.Duration
}

func DefaultCycleRetry() CycleRetry {
	return CycleRetry{
		MaxAttempts: utils.IntFromEnv("SYNC_CYCLE_RETRIES", 6),
		Delay:       time.Duration(utils.IntFromEnv("SYNC_CYCLE_RETRY_DELAY_SECONDS", 10)) * time.Second,
	}
}

type Worker struct {
	store  ReconciliationStore
	newAPI FinanceAPIFactory
	logger *logrus.Logger
	cycle  CycleRetry
}

func NewWorker(st ReconciliationStore, newAPI FinanceAPIFactory, logger *logrus.Logger, cycle CycleRetry) *Worker {
	return &Worker{store: st, newAPI: newAPI, logger: logger, cycle: cycle}
}

// SyncClient runs one client's window end to end: collect the feed, then
// commit through the store. A store-unavailable commit re-runs the whole
// cycle after a fixed delay, up to the budget; any other failure aborts this
// client only. Returns the number of operation rows added.
func (w *Worker) SyncClient(ctx context.Context, client models.Client, from time.Time, to time.Time) (int, error) {
	release, err := utils.ObtainSyncLock(ctx, client.Marketplace, client.ClientId, 30*time.Minute, w.logger)
	if err != nil {
		return 0, err
	}
	defer release()

	api, err := w.newAPI(client.ClientId, client.ApiKey)
	if err != nil {
		return 0, err
	}

	var lastErr error
	for attempt := 1; attempt <= w.cycle.MaxAttempts; attempt++ {
		result, err := CollectWindow(ctx, api, w.logger, client.ClientId, from, to)
		if err != nil {
			return 0, err
		}

		w.logger.WithFields(logrus.Fields{
			"module":     "ozonsync",
			"client_id":  client.ClientId,
			"operations": len(result.Operations),
			"reports":    len(result.Reports),
			"cost_fixes": len(result.CostFixes),
		}).Info("window collected")

		added, err := w.store.CommitWindow(ctx, client.ClientId, result.Operations, result.Reports, result.CostFixes)
		if err == nil {
			w.logger.WithFields(logrus.Fields{
				"module":    "ozonsync",
				"client_id": client.ClientId,
				"added":     added,
			}).Info("window committed")
			return added, nil
		}
		if !errors.Is(err, store.ErrStoreUnavailable) {
			return 0, err
		}

		lastErr = err
		config.LogError(w.logger, "ozonsync", "SyncClient",
			fmt.Sprintf("Store unavailable, attempts left: %d", w.cycle.MaxAttempts-attempt),
			client.ClientId, err)

		if attempt < w.cycle.MaxAttempts {
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(w.cycle.Delay):
			}
		}
	}
	return 0, lastErr
}

// ProcessSyncRun executes one dispatched run: mark it running, sync every
// targeted client, and finalize the lifecycle row. One client's failure is
// recorded and the run moves on to the next client.
func ProcessSyncRun(ctx context.Context, payload SyncPubSubPayload) error {
	if payload.RunId == 0 {
		return errors.New("invalid payload")
	}

	logger := config.GetLogger()
	db := config.GetDB().WithContext(ctx)

	var run models.MarketSyncRun
	if err := db.Where("id = ?", payload.RunId).Take(&run).Error; err != nil {
		return err
	}
	if run.Status == models.SyncRunStatusSuccess || run.Status == models.SyncRunStatusFailed || run.Status == models.SyncRunStatusPartial {
		return nil
	}

	now := time.Now()
	startedAt := run.StartedAt
	if startedAt == nil {
		startedAt = &now
	}
	if err := db.Model(&run).Updates(map[string]interface{}{
		"status":     models.SyncRunStatusRunning,
		"started_at": startedAt,
	}).Error; err != nil {
		return err
	}

	from, to := YesterdayWindow(time.Now())
	if run.WindowFrom != nil && run.WindowTo != nil {
		from, to = *run.WindowFrom, *run.WindowTo
	}

	clients, err := targetClients(ctx, run)
	if err != nil {
		return finalizeRun(db, &run, startedAt, 0, 1)
	}

	worker := NewWorker(
		store.New(config.GetDB(), store.DefaultRetryPolicy(), logger),
		NewOzonClient,
		logger,
		DefaultCycleRetry(),
	)

	totalAdded := 0
	errorCount := 0
	for _, client := range clients {
		logger.WithFields(logrus.Fields{
			"module":       "ozonsync",
			"client_id":    client.ClientId,
			"name_company": client.NameCompany,
		}).Info("syncing client window")

		clientCtx := utils.SetClientIdInContext(ctx, client.ClientId)
		clientCtx = utils.SetMarketplaceInContext(clientCtx, client.Marketplace)

		added, err := worker.SyncClient(clientCtx, client, from, to)
		if err != nil {
			errorCount++
			_ = db.Create(&models.MarketSyncError{
				SyncRunId:   run.ID,
				Marketplace: client.Marketplace,
				ClientId:    client.ClientId,
				ErrorCode:   errorCodeFor(err),
				Message:     err.Error(),
				Retryable:   errors.Is(err, store.ErrStoreUnavailable),
			}).Error
			continue
		}
		totalAdded += added
	}

	windowFrom, windowTo := from, to
	_ = db.Model(&run).Updates(map[string]interface{}{
		"window_from": windowFrom,
		"window_to":   windowTo,
	}).Error

	return finalizeRun(db, &run, startedAt, totalAdded, errorCount)
}

func targetClients(ctx context.Context, run models.MarketSyncRun) ([]models.Client, error) {
	if run.ClientId != "" {
		client, err := models.GetClientByClientId(ctx, run.ClientId)
		if err != nil {
			return nil, err
		}
		if client == nil || client.Status != models.ClientStatusConnected {
			return nil, fmt.Errorf("client %s is not connected", run.ClientId)
		}
		return []models.Client{*client}, nil
	}

	marketplace := run.Marketplace
	if marketplace == "" {
		marketplace = models.MarketplaceOzon
	}
	return models.GetClients(ctx, marketplace)
}

func finalizeRun(db *gorm.DB, run *models.MarketSyncRun, startedAt *time.Time, totalAdded int, errorCount int) error {
	finishedAt := time.Now()
	durationMs := finishedAt.Sub(*startedAt).Milliseconds()

	status := models.SyncRunStatusSuccess
	if errorCount > 0 && totalAdded == 0 {
		status = models.SyncRunStatusFailed
	} else if errorCount > 0 {
		status = models.SyncRunStatusPartial
	}

	return db.Model(run).Updates(map[string]interface{}{
		"status":         status,
		"finished_at":    finishedAt,
		"duration_ms":    durationMs,
		"records_synced": totalAdded,
		"error_count":    errorCount,
	}).Error
}

func errorCodeFor(err error) string {
	switch {
	case errors.Is(err, store.ErrStoreUnavailable):
		return "store_unavailable"
	case errors.Is(err, ErrPaginationOverflow):
		return "pagination_overflow"
	default:
		return "sync_failed"
	}
}
