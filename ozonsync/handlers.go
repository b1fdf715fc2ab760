package ozonsync

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/marketsync_backend/config"
	"bitbucket.org/mmdatafocus/marketsync_backend/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// TriggerSyncHandler queues a manual run for one marketplace, optionally
// pinned to a single cabinet, and dispatches it through pubsub.
func TriggerSyncHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req TriggerSyncRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}

		marketplace := strings.TrimSpace(req.Marketplace)
		if marketplace == "" {
			marketplace = models.MarketplaceOzon
		}

		ctx := c.Request.Context()
		db := config.GetDB().WithContext(ctx)

		clientId := strings.TrimSpace(req.ClientId)
		if clientId != "" {
			connected, err := models.ClientConnected(ctx, clientId)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			if !connected {
				c.JSON(http.StatusConflict, gin.H{"error": "client is not connected"})
				return
			}
		}

		run := models.MarketSyncRun{
			Marketplace: marketplace,
			ClientId:    clientId,
			Status:      models.SyncRunStatusQueued,
			TriggeredBy: models.SyncTriggeredManual,
		}
		if err := db.Create(&run).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		_ = PublishSyncRun(ctx, run.ID, marketplace, clientId)

		c.JSON(http.StatusOK, gin.H{"id": run.ID})
	}
}

func SyncHistoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := 20
		if v := strings.TrimSpace(c.Query("limit")); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
				limit = n
			}
		}

		db := config.GetDB().WithContext(c.Request.Context())
		dbCtx := db.Model(&models.MarketSyncRun{})
		if marketplace := strings.TrimSpace(c.Query("marketplace")); marketplace != "" {
			dbCtx = dbCtx.Where("marketplace = ?", marketplace)
		}
		if clientId := strings.TrimSpace(c.Query("client_id")); clientId != "" {
			dbCtx = dbCtx.Where("client_id = ?", clientId)
		}

		var runs []models.MarketSyncRun
		if err := dbCtx.Order("id desc").Limit(limit).Find(&runs).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		items := make([]SyncRunResponse, 0, len(runs))
		for _, run := range runs {
			items = append(items, mapRunToResponse(run))
		}
		c.JSON(http.StatusOK, SyncHistoryResponse{Items: items})
	}
}

func SyncRunDetailHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
			return
		}

		db := config.GetDB().WithContext(c.Request.Context())

		var run models.MarketSyncRun
		if err := db.Where("id = ?", id).Take(&run).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		var errs []models.MarketSyncError
		if err := db.Where("sync_run_id = ?", run.ID).Order("id desc").Find(&errs).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, SyncRunDetailResponse{
			SyncRunResponse: mapRunToResponse(run),
			Errors:          mapErrors(errs),
		})
	}
}

// RetrySyncRunHandler queues a fresh run with the same targeting as a
// finished one and links it back through parent_run_id.
func RetrySyncRunHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
			return
		}

		db := config.GetDB().WithContext(c.Request.Context())

		var run models.MarketSyncRun
		if err := db.Where("id = ?", id).Take(&run).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		newRun := models.MarketSyncRun{
			Marketplace: run.Marketplace,
			ClientId:    run.ClientId,
			Status:      models.SyncRunStatusQueued,
			TriggeredBy: models.SyncTriggeredRetry,
			WindowFrom:  run.WindowFrom,
			WindowTo:    run.WindowTo,
			ParentRunId: &run.ID,
		}
		if err := db.Create(&newRun).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		_ = PublishSyncRun(c.Request.Context(), newRun.ID, newRun.Marketplace, newRun.ClientId)

		c.JSON(http.StatusOK, gin.H{"id": newRun.ID})
	}
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

func mapRunToResponse(run models.MarketSyncRun) SyncRunResponse {
	return SyncRunResponse{
		ID:            run.ID,
		Marketplace:   run.Marketplace,
		ClientId:      run.ClientId,
		Status:        run.Status,
		StartedAt:     formatTime(run.StartedAt),
		FinishedAt:    formatTime(run.FinishedAt),
		DurationMs:    run.DurationMs,
		RecordsSynced: run.RecordsSynced,
		ErrorCount:    run.ErrorCount,
		TriggeredBy:   run.TriggeredBy,
	}
}

func mapErrors(errorsList []models.MarketSyncError) []SyncErrorResponse {
	out := make([]SyncErrorResponse, 0, len(errorsList))
	for _, errItem := range errorsList {
		out = append(out, SyncErrorResponse{
			ID:        errItem.ID,
			ClientId:  errItem.ClientId,
			ErrorCode: errItem.ErrorCode,
			Message:   errItem.Message,
			Retryable: errItem.Retryable,
		})
	}
	return out
}
