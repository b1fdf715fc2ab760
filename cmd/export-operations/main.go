package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/marketsync_backend/config"
	"bitbucket.org/mmdatafocus/marketsync_backend/store"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Exports one cabinet's reconciled operations over a date range to xlsx.
func main() {
	clientID := flag.String("client-id", "", "Cabinet to export (required)")
	from := flag.String("from", "", "Start date (YYYY-MM-DD, required)")
	to := flag.String("to", "", "End date (YYYY-MM-DD, required)")
	out := flag.String("out", "operations.xlsx", "Output file path")
	flag.Parse()

	if strings.TrimSpace(*clientID) == "" || strings.TrimSpace(*from) == "" || strings.TrimSpace(*to) == "" {
		flag.Usage()
		os.Exit(2)
	}

	fromDate, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(*from), time.UTC)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -from: %v\n", err)
		os.Exit(1)
	}
	toDate, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(*to), time.UTC)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -to: %v\n", err)
		os.Exit(1)
	}

	logger := config.GetLogger()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}

	st := store.New(db, store.DefaultRetryPolicy(), logger)
	rows, err := st.ListOperations(context.Background(), strings.TrimSpace(*clientID), fromDate, toDate)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to list operations: %v\n", err)
		os.Exit(1)
	}

	f := excelize.NewFile()
	if _, err := f.NewSheet("Sheet1"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create sheet: %v\n", err)
		os.Exit(1)
	}

	headers := []string{"AccrualDate", "PostingNumber", "Sku", "VendorCode", "Type", "Schema", "Sale", "Quantity", "Commission", "CostLastMile", "CostLogistic"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue("Sheet1", cell, h)
	}

	for i, row := range rows {
		values := []interface{}{
			row.AccrualDate.Format("2006-01-02"),
			row.PostingNumber,
			row.Sku,
			row.VendorCode,
			row.TypeOfTransaction,
			row.DeliverySchema,
			row.Sale.InexactFloat64(),
			row.Quantity,
			row.Commission.Decimal.InexactFloat64(),
			nullDecimalCell(row.CostLastMile),
			nullDecimalCell(row.CostLogistic),
		}
		for j, v := range values {
			cell, _ := excelize.CoordinatesToCellName(j+1, i+2)
			f.SetCellValue("Sheet1", cell, v)
		}
	}

	if err := f.SaveAs(*out); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write %s: %v\n", *out, err)
		os.Exit(1)
	}
	fmt.Printf("exported %d rows to %s\n", len(rows), *out)
}

func nullDecimalCell(d decimal.NullDecimal) interface{} {
	if !d.Valid {
		return ""
	}
	return d.Decimal.InexactFloat64()
}
