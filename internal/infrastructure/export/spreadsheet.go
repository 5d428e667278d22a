// Package export renders expense lists for download.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/garyjia/expense-desk/internal/domain/entity"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const sheetName = "Expenses"

var headers = []string{
	"Date", "Merchant", "Category", "Amount", "Currency", "Status",
	"Source", "Confidence", "Reimbursable", "Submitted", "Decision", "Rejection reason", "Description",
}

// SpreadsheetWriter implements port.SpreadsheetWriter with xlsx output
type SpreadsheetWriter struct {
	logger *zap.Logger
}

// NewSpreadsheetWriter creates a new SpreadsheetWriter
func NewSpreadsheetWriter(logger *zap.Logger) *SpreadsheetWriter {
	return &SpreadsheetWriter{logger: logger}
}

// WriteExpenses writes one header row and one row per expense
func (w *SpreadsheetWriter) WriteExpenses(out io.Writer, expenses []*entity.Expense) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}

	for col, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := f.SetCellStyle(sheetName, "A1", lastHeader, headerStyle); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	for i, e := range expenses {
		amount, _ := e.Amount.Value.Float64()
		row := []interface{}{
			e.ExpenseDate.Format("2006-01-02"),
			e.Merchant,
			e.CategoryLabel(),
			amount,
			e.Amount.Currency,
			string(e.Status),
			string(e.Source),
			string(e.Confidence),
			e.Reimbursable,
			formatOptionalTime(e.SubmittedAt),
			decisionTime(e),
			deref(e.RejectionReason),
			deref(e.Description),
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := f.SetColWidth(sheetName, "A", "A", 12); err != nil {
		return err
	}
	if err := f.SetColWidth(sheetName, "B", "C", 24); err != nil {
		return err
	}

	if _, err := f.WriteTo(out); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	w.logger.Info("Expenses exported", zap.Int("rows", len(expenses)))
	return nil
}

func decisionTime(e *entity.Expense) string {
	if e.ApprovedAt != nil {
		return formatOptionalTime(e.ApprovedAt)
	}
	return formatOptionalTime(e.RejectedAt)
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
