package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/garyjia/expense-desk/internal/application/port"
	"github.com/garyjia/expense-desk/internal/domain/entity"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CaptureService turns raw captures into draft expenses
type CaptureService interface {
	Capture(ctx context.Context, caller entity.Identity, input port.CaptureInput) (*entity.Expense, error)
	SeedDummy(ctx context.Context, caller entity.Identity) ([]*entity.Expense, error)
}

type captureServiceImpl struct {
	expenses  ExpenseService
	extractor port.Extractor
	reader    port.DocumentTextReader
	storage   port.FileStorage
	logger    Logger
	now       func() time.Time
}

// NewCaptureService creates a new CaptureService. reader and storage may be nil.
func NewCaptureService(
	expenses ExpenseService,
	extractor port.Extractor,
	reader port.DocumentTextReader,
	storage port.FileStorage,
	logger Logger,
) CaptureService {
	return &captureServiceImpl{
		expenses:  expenses,
		extractor: extractor,
		reader:    reader,
		storage:   storage,
		logger:    orNop(logger),
		now:       time.Now,
	}
}

// Capture extracts an expense from text or a document and stores it as a draft
func (s *captureServiceImpl) Capture(ctx context.Context, caller entity.Identity, input port.CaptureInput) (*entity.Expense, error) {
	if caller.UserID == "" {
		return nil, entity.ErrUnauthenticated
	}
	if !input.Source.IsValid() || input.Source == entity.SourceManual {
		return nil, entity.Invalidf("cannot capture from source %q", input.Source)
	}
	if strings.TrimSpace(input.Text) == "" && len(input.Content) == 0 {
		return nil, entity.Invalidf("capture has neither text nor content")
	}

	var receiptURL *string
	if len(input.Content) > 0 {
		if s.storage != nil {
			path := filepath.ToSlash(filepath.Join("receipts", caller.UserID, uuid.NewString()+strings.ToLower(filepath.Ext(input.FileName))))
			if err := s.storage.Save(ctx, path, input.Content); err != nil {
				return nil, fmt.Errorf("store receipt: %w", err)
			}
			receiptURL = &path
		}
		if s.reader != nil && isPDF(input) {
			text, err := s.reader.ReadText(input.Content)
			if err != nil {
				s.logger.Error("Failed to read receipt text", "error", err, "file", input.FileName)
			} else {
				input.Text = strings.TrimSpace(input.Text + "\n" + text)
			}
		}
	}

	extraction, err := s.extractor.Extract(ctx, input)
	if err != nil {
		s.logger.Error("Extraction failed", "error", err, "source", input.Source)
		return nil, fmt.Errorf("extract expense: %w", err)
	}
	if strings.TrimSpace(extraction.Merchant) == "" || !extraction.Amount.IsPositive() {
		return nil, entity.Invalidf("could not read a merchant and amount from the capture")
	}

	expenseDate := extraction.ExpenseDate
	if expenseDate.IsZero() {
		expenseDate = s.now().UTC().Truncate(24 * time.Hour)
	}

	duplicates, err := s.findDuplicates(ctx, caller, extraction, expenseDate)
	if err != nil {
		return nil, err
	}

	newExpense := entity.NewExpense{
		Merchant:     extraction.Merchant,
		Amount:       entity.NewMoney(extraction.Amount, extraction.Currency),
		Category:     optional(extraction.Category),
		Description:  optional(extraction.Description),
		ExpenseDate:  expenseDate,
		Reimbursable: true,
		ReceiptURL:   receiptURL,
		Status:       entity.StatusDraft,
		Source:       input.Source,
		Confidence:   extraction.Confidence,
		PolicyFlags:  extraction.PolicyFlags,
		Duplicates:   duplicates,
	}

	expense, err := s.expenses.Create(ctx, caller, newExpense)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Expense captured",
		"expense_id", expense.ID,
		"source", input.Source,
		"confidence", expense.Confidence,
		"duplicates", len(duplicates),
	)
	return expense, nil
}

// SeedDummy inserts the sample expense set for the caller
func (s *captureServiceImpl) SeedDummy(ctx context.Context, caller entity.Identity) ([]*entity.Expense, error) {
	seeded := make([]*entity.Expense, 0, 8)
	for _, input := range DummyExpenses(s.now()) {
		expense, err := s.expenses.Create(ctx, caller, input)
		if err != nil {
			return seeded, fmt.Errorf("seed %s: %w", input.Merchant, err)
		}
		seeded = append(seeded, expense)
	}
	s.logger.Info("Dummy expenses seeded", "user_id", caller.UserID, "count", len(seeded))
	return seeded, nil
}

func (s *captureServiceImpl) findDuplicates(ctx context.Context, caller entity.Identity, x *port.Extraction, date time.Time) ([]string, error) {
	existing, err := s.expenses.Query(ctx, caller, port.ExpenseFilter{UserID: caller.UserID})
	if err != nil {
		return nil, fmt.Errorf("check duplicates: %w", err)
	}

	var ids []string
	for _, e := range existing {
		if strings.EqualFold(e.Merchant, strings.TrimSpace(x.Merchant)) &&
			e.Amount.Value.Equal(x.Amount) &&
			e.ExpenseDate.Format(time.DateOnly) == date.Format(time.DateOnly) {
			ids = append(ids, e.ID)
		}
	}
	return ids, nil
}

// DummyExpenses returns the sample set used to populate a fresh account.
// Odd entries are submitted, even entries stay drafts.
func DummyExpenses(now time.Time) []entity.NewExpense {
	samples := []struct {
		merchant    string
		amount      string
		category    string
		description string
	}{
		{"Starbucks", "12.50", "Meals", "Morning coffee"},
		{"Uber", "25.30", "Travel", "Ride to client meeting"},
		{"Office Depot", "89.99", "Office Supplies", "Printer paper and supplies"},
		{"Amazon", "45.00", "Equipment", "Wireless mouse"},
		{"Shell Gas Station", "60.00", "Travel", "Fuel for business trip"},
		{"Best Buy", "199.99", "Equipment", "External monitor"},
		{"Subway", "8.75", "Meals", "Lunch meeting"},
		{"FedEx Office", "15.20", "Office Supplies", "Document printing"},
	}

	day := now.UTC().Truncate(24 * time.Hour)
	out := make([]entity.NewExpense, 0, len(samples))
	for i, sample := range samples {
		status := entity.StatusDraft
		if i%2 == 1 {
			status = entity.StatusPending
		}
		out = append(out, entity.NewExpense{
			Merchant:     sample.merchant,
			Amount:       entity.NewMoney(decimal.RequireFromString(sample.amount), "USD"),
			Category:     entity.StringPtr(sample.category),
			Description:  entity.StringPtr(sample.description),
			ExpenseDate:  day.AddDate(0, 0, -(i*4)%30),
			Reimbursable: true,
			Status:       status,
			Source:       entity.SourceManual,
			Confidence:   entity.ConfidenceHigh,
		})
	}
	return out
}

func isPDF(input port.CaptureInput) bool {
	return input.MimeType == "application/pdf" || strings.EqualFold(filepath.Ext(input.FileName), ".pdf")
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
