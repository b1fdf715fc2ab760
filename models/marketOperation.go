package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const (
	TransactionDelivered = "delivered"
	TransactionCancelled = "cancelled"
)

// MarketOperation is the canonical reconciled finance-operation row. Identity is the
// composite natural key (client_id, posting_number, sku, type_of_transaction,
// accrual_date); sale/quantity/commission are immutable once recorded, the cost
// fields are backfilled later when the marketplace reports them.
type MarketOperation struct {
	ID                uint                `gorm:"primary_key" json:"id"`
	ClientId          string              `gorm:"uniqueIndex:idx_market_operation,priority:1;size:64;not null" json:"client_id"`
	PostingNumber     string              `gorm:"uniqueIndex:idx_market_operation,priority:2;size:64;not null" json:"posting_number"`
	Sku               string              `gorm:"uniqueIndex:idx_market_operation,priority:3;size:64;not null" json:"sku"`
	TypeOfTransaction string              `gorm:"uniqueIndex:idx_market_operation,priority:4;size:20;not null" json:"type_of_transaction"`
	AccrualDate       time.Time           `gorm:"uniqueIndex:idx_market_operation,priority:5;type:date;not null" json:"accrual_date"`
	VendorCode        string              `gorm:"size:128" json:"vendor_code"`
	DeliverySchema    string              `gorm:"size:10" json:"delivery_schema"`
	Sale              decimal.Decimal     `gorm:"type:decimal(20,4);default:0" json:"sale"`
	Quantity          int                 `gorm:"default:0" json:"quantity"`
	Commission        decimal.NullDecimal `gorm:"type:decimal(20,4)" json:"commission"`
	CostLastMile      decimal.NullDecimal `gorm:"type:decimal(20,4)" json:"cost_last_mile"`
	CostLogistic      decimal.NullDecimal `gorm:"type:decimal(20,4)" json:"cost_logistic"`
	CreatedAt         time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}

// Key renders the composite identity for log lines.
func (op *MarketOperation) Key() string {
	return fmt.Sprintf("%s/%s/%s/%s/%s",
		op.ClientId, op.PostingNumber, op.Sku, op.TypeOfTransaction,
		op.AccrualDate.Format("2006-01-02"))
}

// MarketServiceReport holds fee line items that are not tied to a delivered or
// cancelled sale (acquiring redistribution and similar services). Append-only.
type MarketServiceReport struct {
	ID            uint            `gorm:"primary_key" json:"id"`
	ClientId      string          `gorm:"uniqueIndex:idx_market_service_report,priority:1;size:64;not null" json:"client_id"`
	PostingNumber string          `gorm:"uniqueIndex:idx_market_service_report,priority:2;size:64;not null" json:"posting_number"`
	Sku           string          `gorm:"uniqueIndex:idx_market_service_report,priority:3;size:64;not null" json:"sku"`
	Service       string          `gorm:"uniqueIndex:idx_market_service_report,priority:4;size:128;not null" json:"service"`
	OperationDate time.Time       `gorm:"uniqueIndex:idx_market_service_report,priority:5;type:date;not null" json:"operation_date"`
	VendorCode    string          `gorm:"size:128" json:"vendor_code"`
	Cost          decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"cost"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// CancelledCostFix carries a return-logistics fee observed on a later Returned
// operation back to the cancelled row that is still waiting for it. Transient,
// never persisted as its own table: the queue of pending backfills is exactly
// the set of cancelled rows whose cost_logistic is NULL.
type CancelledCostFix struct {
	ClientId      string
	PostingNumber string
	Sku           string
	Cost          decimal.Decimal
}
