package ozonsync

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/marketsync_backend/models"
	"bitbucket.org/mmdatafocus/marketsync_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// CorrelateOperation turns one Delivered/Cancelled feed operation into its
// ReconciledOperation rows by merging the posting detail fetched from the
// schema-appropriate endpoint. Returns zero rows (nil error) for skip cases:
// zero accrual, unroutable delivery schema, or no product line matching the
// operation's SKU set. A detail-fetch failure is returned as-is and fails the
// client's cycle; upstream fetch errors are not retried here.
func CorrelateOperation(ctx context.Context, api FinanceAPI, logger *logrus.Logger,
	clientId string, op *FinanceOperation, kind Kind) ([]models.MarketOperation, error) {

	typeOfTransaction := transactionType(kind)
	if typeOfTransaction == "" {
		return nil, nil
	}

	accruals := utils.DecimalFromNumber(op.AccrualsForSale)
	if accruals.IsZero() {
		return nil, nil
	}

	schema := ParseDeliverySchema(op.Posting.DeliverySchema)
	if schema == SchemaOther {
		logger.WithFields(logrus.Fields{
			"module":          "ozonsync",
			"client_id":       clientId,
			"posting_number":  op.Posting.PostingNumber,
			"delivery_schema": op.Posting.DeliverySchema,
		}).Info("unknown delivery schema; skipping operation")
		return nil, nil
	}

	detail, err := api.GetPostingDetail(ctx, op.Posting.PostingNumber, schema)
	if err != nil {
		return nil, err
	}

	logisticsFee, hasLogistics := PostingLogisticsFee(op)
	operationDate := accrualDate(op.OperationDate)

	// SKUs the operation actually accrued; each product line consumes its
	// entry so a mismatched posting cannot contribute unrelated lines.
	skuSet := map[string]int{}
	for _, item := range op.Items {
		skuSet[item.Sku.String()]++
	}

	var rows []models.MarketOperation
	for _, product := range detail.Products {
		sku := product.Sku.String()
		if skuSet[sku] == 0 {
			logger.WithFields(logrus.Fields{
				"module":         "ozonsync",
				"client_id":      clientId,
				"posting_number": op.Posting.PostingNumber,
				"sku":            sku,
			}).Info("product not referenced by operation; skipping line")
			continue
		}
		skuSet[sku]--

		sale := utils.DecimalFromNumber(product.Price).Round(2)
		quantity := product.Quantity

		var costLogistic decimal.NullDecimal
		if hasLogistics {
			share := sale.Mul(decimal.NewFromInt(int64(quantity))).Div(accruals)
			costLogistic = decimal.NewNullDecimal(share.Mul(logisticsFee).Round(2))
		}

		commission := decimal.Zero
		var costLastMile decimal.NullDecimal
		for _, fin := range detail.FinancialData.Products {
			if fin.ProductId.String() == sku {
				commission = utils.DecimalFromNumber(fin.CommissionAmount).Round(2)
				costLastMile = decimal.NewNullDecimal(utils.DecimalFromNumber(fin.ItemServices.DelivToCustomer).Round(0))
			}
		}

		if kind == KindCancelled {
			sale = sale.Neg()
			quantity = -quantity
			commission = commission.Neg()
			costLastMile = decimal.NullDecimal{}
			costLogistic = decimal.NullDecimal{}
		}

		rows = append(rows, models.MarketOperation{
			ClientId:          clientId,
			PostingNumber:     op.Posting.PostingNumber,
			Sku:               sku,
			TypeOfTransaction: typeOfTransaction,
			AccrualDate:       operationDate,
			VendorCode:        product.OfferId,
			DeliverySchema:    schema.String(),
			Sale:              sale,
			Quantity:          quantity,
			Commission:        decimal.NewNullDecimal(commission),
			CostLastMile:      costLastMile,
			CostLogistic:      costLogistic,
		})
	}
	return rows, nil
}

// YesterdayWindow is the daily sync window: the previous UTC calendar day,
// inclusive on both ends at millisecond resolution.
func YesterdayWindow(now time.Time) (time.Time, time.Time) {
	day := now.UTC().AddDate(0, 0, -1)
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	to := from.Add(24*time.Hour - time.Millisecond)
	return from, to
}
