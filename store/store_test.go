package store

import (
	"testing"

	"bitbucket.org/mmdatafocus/marketsync_backend/models"
	"github.com/shopspring/decimal"
)

func nullDec(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func TestCostUpdates_FillsOnlyNullFields(t *testing.T) {
	existing := &models.MarketOperation{
		Sale:     decimal.RequireFromString("100"),
		Quantity: 2,
	}
	incoming := &models.MarketOperation{
		Sale:         decimal.RequireFromString("999"),
		Quantity:     7,
		CostLogistic: nullDec("35.5"),
		CostLastMile: nullDec("12.25"),
	}

	updates := costUpdates(existing, incoming)
	if len(updates) != 2 {
		t.Fatalf("updates = %v, want cost_logistic and cost_last_mile only", updates)
	}
	if got := updates["cost_logistic"].(decimal.NullDecimal); !got.Decimal.Equal(decimal.RequireFromString("35.5")) {
		t.Fatalf("cost_logistic = %v, want 35.5", got)
	}
	if got := updates["cost_last_mile"].(decimal.NullDecimal); !got.Decimal.Equal(decimal.RequireFromString("12.25")) {
		t.Fatalf("cost_last_mile = %v, want 12.25", got)
	}
	if _, ok := updates["sale"]; ok {
		t.Fatal("sale must never be updated on an existing row")
	}
	if _, ok := updates["quantity"]; ok {
		t.Fatal("quantity must never be updated on an existing row")
	}
}

func TestCostUpdates_KeepsFilledValues(t *testing.T) {
	existing := &models.MarketOperation{
		CostLogistic: nullDec("40"),
	}
	incoming := &models.MarketOperation{
		CostLogistic: nullDec("50"),
		CostLastMile: nullDec("9"),
	}

	updates := costUpdates(existing, incoming)
	if _, ok := updates["cost_logistic"]; ok {
		t.Fatal("filled cost_logistic must not be overwritten")
	}
	if got := updates["cost_last_mile"].(decimal.NullDecimal); !got.Decimal.Equal(decimal.RequireFromString("9")) {
		t.Fatalf("cost_last_mile = %v, want 9", got)
	}
}

func TestCostUpdates_NullIncomingIsNoop(t *testing.T) {
	existing := &models.MarketOperation{}
	incoming := &models.MarketOperation{}

	if updates := costUpdates(existing, incoming); len(updates) != 0 {
		t.Fatalf("updates = %v, want none when the incoming costs are NULL", updates)
	}
}

func TestCostUpdates_Idempotent(t *testing.T) {
	existing := &models.MarketOperation{}
	incoming := &models.MarketOperation{
		CostLogistic: nullDec("15"),
	}

	first := costUpdates(existing, incoming)
	if len(first) != 1 {
		t.Fatalf("first pass updates = %v, want one entry", first)
	}

	// After applying the fill, a replay of the same incoming row changes nothing.
	existing.CostLogistic = incoming.CostLogistic
	if second := costUpdates(existing, incoming); len(second) != 0 {
		t.Fatalf("second pass updates = %v, want none", second)
	}
}
