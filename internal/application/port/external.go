package port

import (
	"context"
	"io"
	"time"

	"github.com/garyjia/expense-desk/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// Messenger delivers a plain-text notification to a recipient address
type Messenger interface {
	SendText(ctx context.Context, recipient string, content string) error
}

// CaptureInput is raw material for simulated automated capture
type CaptureInput struct {
	Source   entity.Source
	Text     string
	FileName string
	MimeType string
	Content  []byte
}

// Extraction is what an extractor could read from a capture
type Extraction struct {
	Merchant    string
	Amount      decimal.Decimal
	Currency    string
	Category    string
	Description string
	ExpenseDate time.Time
	Confidence  entity.Confidence
	PolicyFlags []string
}

// Extractor turns a capture into expense fields
type Extractor interface {
	Extract(ctx context.Context, input CaptureInput) (*Extraction, error)
}

// DocumentTextReader extracts plain text from a document such as a receipt PDF
type DocumentTextReader interface {
	ReadText(content []byte) (string, error)
}

// SpreadsheetWriter renders expenses as a spreadsheet
type SpreadsheetWriter interface {
	WriteExpenses(w io.Writer, expenses []*entity.Expense) error
}
