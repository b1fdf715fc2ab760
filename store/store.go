package store

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/marketsync_backend/models"
	"bitbucket.org/mmdatafocus/marketsync_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Store is the persistence boundary for reconciled operations. Every write
// method takes the transaction handle it must run on; CommitWindow owns the
// transaction scope and the retry loop, so one client window commits exactly
// once or not at all.
type Store struct {
	db     *gorm.DB
	retry  RetryPolicy
	logger *logrus.Logger
}

func New(db *gorm.DB, retry RetryPolicy, logger *logrus.Logger) *Store {
	return &Store{db: db, retry: retry, logger: logger}
}

// CommitWindow merges one client's collected window into the store. Each
// attempt is a single transaction; gorm rolls it back when the callback
// errors, so a retry always starts from a clean session. Returns the number
// of newly created operation rows.
func (s *Store) CommitWindow(ctx context.Context, clientId string,
	ops []models.MarketOperation, reports []models.MarketServiceReport,
	fixes []models.CancelledCostFix) (int, error) {

	added := 0
	err := s.retry.Do(ctx, func() error {
		added = 0
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			exists, err := models.ClientExists(ctx, tx, clientId)
			if err != nil {
				return err
			}
			if !exists {
				marketplace, _ := utils.GetMarketplaceFromContext(ctx)
				correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
				s.logger.WithFields(logrus.Fields{
					"module":         "store",
					"client_id":      clientId,
					"marketplace":    marketplace,
					"correlation_id": correlationId,
				}).Info("client is not tracked; skipping commit")
				return nil
			}

			for i := range ops {
				created, err := s.UpsertOperation(ctx, tx, &ops[i])
				if err != nil {
					return err
				}
				if created {
					added++
				}
			}
			for i := range reports {
				if err := s.AppendReportEntry(ctx, tx, &reports[i]); err != nil {
					return err
				}
			}
			for _, fix := range fixes {
				if err := s.BackfillCancelledCost(ctx, tx, fix.ClientId, fix.PostingNumber, fix.Sku, fix.Cost); err != nil {
					return err
				}
			}
			return nil
		})
	})
	if err != nil {
		return 0, err
	}
	return added, nil
}

// UpsertOperation inserts a new row for an unseen composite key. For an
// existing key it fills cost_logistic/cost_last_mile only where the stored
// value is still NULL; sale, quantity and commission are immutable once
// recorded. Returns true when a row was created.
func (s *Store) UpsertOperation(ctx context.Context, tx *gorm.DB, op *models.MarketOperation) (bool, error) {
	var existing models.MarketOperation
	err := tx.WithContext(ctx).
		Where("client_id = ? AND posting_number = ? AND sku = ? AND type_of_transaction = ? AND accrual_date = ?",
			op.ClientId, op.PostingNumber, op.Sku, op.TypeOfTransaction, op.AccrualDate).
		Take(&existing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if err := tx.WithContext(ctx).Create(op).Error; err != nil {
				return false, err
			}
			return true, nil
		}
		return false, err
	}

	updates := costUpdates(&existing, op)
	if len(updates) == 0 {
		return false, nil
	}
	if err := tx.WithContext(ctx).Model(&existing).Updates(updates).Error; err != nil {
		return false, err
	}
	return false, nil
}

// costUpdates builds the column set UpsertOperation may change on an existing
// row: a NULL cost field becomes the incoming non-NULL value, nothing else.
func costUpdates(existing *models.MarketOperation, incoming *models.MarketOperation) map[string]interface{} {
	updates := map[string]interface{}{}
	if !existing.CostLogistic.Valid && incoming.CostLogistic.Valid {
		updates["cost_logistic"] = incoming.CostLogistic
	}
	if !existing.CostLastMile.Valid && incoming.CostLastMile.Valid {
		updates["cost_last_mile"] = incoming.CostLastMile
	}
	return updates
}

// BackfillCancelledCost sets the return-logistics cost on the cancelled row
// matching (client, posting, sku) whose cost_logistic is still NULL. No match
// or an already-filled row is a silent no-op, which keeps retried windows safe.
func (s *Store) BackfillCancelledCost(ctx context.Context, tx *gorm.DB, clientId string, postingNumber string, sku string, cost decimal.Decimal) error {
	var row models.MarketOperation
	err := tx.WithContext(ctx).
		Where("client_id = ? AND type_of_transaction = ? AND posting_number = ? AND sku = ? AND cost_logistic IS NULL",
			clientId, models.TransactionCancelled, postingNumber, sku).
		Order("accrual_date").
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	return tx.WithContext(ctx).Model(&row).
		Update("cost_logistic", decimal.NewNullDecimal(cost)).Error
}

// AppendReportEntry inserts a service-fee line unless one with the same
// (client, posting, sku, service, operation_date) key is already present, so
// re-running a window does not duplicate report rows.
func (s *Store) AppendReportEntry(ctx context.Context, tx *gorm.DB, entry *models.MarketServiceReport) error {
	var count int64
	if err := tx.WithContext(ctx).Model(&models.MarketServiceReport{}).
		Where("client_id = ? AND posting_number = ? AND sku = ? AND service = ? AND operation_date = ?",
			entry.ClientId, entry.PostingNumber, entry.Sku, entry.Service, entry.OperationDate).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	return tx.WithContext(ctx).Create(entry).Error
}

// ListOperations returns reconciled rows for one client over an accrual-date
// range, ordered by the natural key. Read-only; used by reporting tools.
func (s *Store) ListOperations(ctx context.Context, clientId string, from time.Time, to time.Time) ([]models.MarketOperation, error) {
	var rows []models.MarketOperation
	err := s.db.WithContext(ctx).
		Where("client_id = ? AND accrual_date >= ? AND accrual_date <= ?", clientId, from, to).
		Order("accrual_date, posting_number, sku, type_of_transaction").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
