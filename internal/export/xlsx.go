// Package export renders processed receipts as spreadsheet reports.
package export

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/receipt-extractor/internal/receipt"
)

const (
	SheetReceipts = "Receipts"
	SheetItems    = "Items"
)

var receiptHeaders = []string{
	"Receipt ID",
	"Source",
	"Store",
	"Date",
	"Payment",
	"Subtotal",
	"Tax",
	"Total",
	"Items",
	"Confidence",
	"Status",
	"Handler",
	"Notes",
}

var itemHeaders = []string{
	"Receipt ID",
	"Description",
	"SKU",
	"Quantity",
	"Unit Price",
	"Line Total",
	"Confidence",
	"Suspicious",
	"Notes",
}

// Row is one receipt in a report. Source is the file the receipt came from.
type Row struct {
	Source  string
	Receipt *receipt.Receipt
}

// Writer produces XLSX workbooks with a receipt summary sheet and an item sheet.
type Writer struct {
	logger *slog.Logger
}

func NewWriter(logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{logger: logger}
}

// WriteXLSX writes the workbook for rows to w. Rows with a nil receipt are skipped.
func (x *Writer) WriteXLSX(w io.Writer, rows []Row) error {
	start := time.Now()

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SheetReceipts); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(SheetItems); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	writeHeader(f, SheetReceipts, receiptHeaders)
	writeHeader(f, SheetItems, itemHeaders)

	row, itemRow := 2, 2
	for _, rr := range rows {
		r := rr.Receipt
		if r == nil {
			continue
		}
		date := ""
		if r.Date != nil {
			date = r.Date.Format("2006-01-02")
		}
		writeRow(f, SheetReceipts, row,
			r.ID.String(),
			rr.Source,
			r.StoreName,
			date,
			r.PaymentMethod,
			amount(r.Totals.Subtotal),
			amount(r.Totals.Tax),
			amount(r.Totals.Total),
			len(r.Items),
			r.OverallConfidence,
			string(r.Status),
			r.HandlerUsed,
			truncate(strings.Join(r.ValidationNotes, "; "), 140),
		)
		row++

		for _, it := range r.Items {
			writeRow(f, SheetItems, itemRow,
				r.ID.String(),
				it.Description,
				it.SKU,
				it.Quantity.InexactFloat64(),
				it.UnitPrice.InexactFloat64(),
				it.LineTotal.InexactFloat64(),
				it.Confidence.Overall,
				it.Suspicious,
				it.Notes,
			)
			itemRow++
		}
	}

	_ = f.SetColWidth(SheetReceipts, "A", "A", 38) // id
	_ = f.SetColWidth(SheetReceipts, "B", "B", 48) // source
	_ = f.SetColWidth(SheetReceipts, "C", "C", 24)
	_ = f.SetColWidth(SheetReceipts, "F", "H", 12) // amounts
	_ = f.SetColWidth(SheetReceipts, "M", "M", 60)
	_ = f.SetColWidth(SheetItems, "A", "A", 38)
	_ = f.SetColWidth(SheetItems, "B", "B", 32)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}

	x.logger.Info("export.xlsx.ok",
		"receipts", row-2,
		"items", itemRow-2,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func writeHeader(f *excelize.File, sheet string, headers []string) {
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
}

func writeRow(f *excelize.File, sheet string, row int, values ...any) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

// amount renders a known amount as a number and an unknown one as an empty cell.
func amount(d decimal.NullDecimal) any {
	if !d.Valid {
		return ""
	}
	return d.Decimal.InexactFloat64()
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
