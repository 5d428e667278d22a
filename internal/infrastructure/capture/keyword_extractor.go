// Package capture holds the offline extractor used when no model is configured.
package capture

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/garyjia/expense-desk/internal/application/port"
	"github.com/garyjia/expense-desk/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// LargeMealFlag marks meals above LargeMealThreshold
const LargeMealFlag = "large_meal"

// LargeMealThreshold is the amount above which a meal is flagged
var LargeMealThreshold = decimal.NewFromInt(100)

type merchantHint struct {
	keyword  string
	name     string
	category string
}

var merchantHints = []merchantHint{
	{"uber", "Uber", "Travel"},
	{"lyft", "Lyft", "Travel"},
	{"shell", "Shell Gas Station", "Travel"},
	{"delta", "Delta Air Lines", "Travel"},
	{"marriott", "Marriott", "Travel"},
	{"starbucks", "Starbucks", "Meals"},
	{"subway", "Subway", "Meals"},
	{"doordash", "DoorDash", "Meals"},
	{"office depot", "Office Depot", "Office Supplies"},
	{"staples", "Staples", "Office Supplies"},
	{"fedex", "FedEx Office", "Office Supplies"},
	{"best buy", "Best Buy", "Equipment"},
	{"amazon", "Amazon", "Equipment"},
	{"github", "GitHub", "Software"},
	{"adobe", "Adobe", "Software"},
	{"udemy", "Udemy", "Training"},
	{"verizon", "Verizon", "Telecommunications"},
	{"at&t", "AT&T", "Telecommunications"},
}

var (
	totalPattern  = regexp.MustCompile(`(?i)(?:total|amount|charged|paid|debited)[^0-9]{0,12}([0-9][0-9,]*(?:\.[0-9]{1,2})?)`)
	amountPattern = regexp.MustCompile(`(?:[$€£]\s?|\b(?:USD|EUR|GBP)\s?)([0-9][0-9,]*(?:\.[0-9]{1,2})?)|\b([0-9][0-9,]*\.[0-9]{2})\b`)
	datePattern   = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`)
	usDatePattern = regexp.MustCompile(`\b(\d{1,2}/\d{1,2}/\d{4})\b`)
)

// KeywordExtractor implements port.Extractor with merchant keywords and regular expressions
type KeywordExtractor struct{}

// NewKeywordExtractor creates a new KeywordExtractor
func NewKeywordExtractor() *KeywordExtractor {
	return &KeywordExtractor{}
}

// Extract reads merchant, amount, currency and date from the capture text
func (k *KeywordExtractor) Extract(ctx context.Context, input port.CaptureInput) (*port.Extraction, error) {
	text := input.Text
	lower := strings.ToLower(text)
	out := &port.Extraction{Currency: detectCurrency(text)}

	signals := 0
	if hint, ok := findMerchant(lower); ok {
		out.Merchant = hint.name
		out.Category = hint.category
		signals++
	} else {
		out.Merchant = firstLine(text)
	}

	if amount, ok := findAmount(text); ok {
		out.Amount = amount
		signals++
	}
	if date, ok := findDate(text); ok {
		out.ExpenseDate = date
		signals++
	}

	switch {
	case signals >= 3:
		out.Confidence = entity.ConfidenceHigh
	case signals == 2:
		out.Confidence = entity.ConfidenceMedium
	default:
		out.Confidence = entity.ConfidenceLow
	}

	if out.Merchant != "" {
		out.Description = "Captured from " + string(input.Source)
	}
	if out.Category == "Meals" && out.Amount.GreaterThan(LargeMealThreshold) {
		out.PolicyFlags = append(out.PolicyFlags, LargeMealFlag)
	}
	return out, nil
}

func findMerchant(lower string) (merchantHint, bool) {
	for _, hint := range merchantHints {
		if strings.Contains(lower, hint.keyword) {
			return hint, true
		}
	}
	return merchantHint{}, false
}

func findAmount(text string) (decimal.Decimal, bool) {
	if m := totalPattern.FindStringSubmatch(text); m != nil {
		if d, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", "")); err == nil && d.IsPositive() {
			return d, true
		}
	}
	for _, m := range amountPattern.FindAllStringSubmatch(text, -1) {
		raw := m[1]
		if raw == "" {
			raw = m[2]
		}
		if d, err := decimal.NewFromString(strings.ReplaceAll(raw, ",", "")); err == nil && d.IsPositive() {
			return d, true
		}
	}
	return decimal.Decimal{}, false
}

func findDate(text string) (time.Time, bool) {
	if m := datePattern.FindStringSubmatch(text); m != nil {
		if d, err := time.Parse(time.DateOnly, m[1]); err == nil {
			return d, true
		}
	}
	if m := usDatePattern.FindStringSubmatch(text); m != nil {
		if d, err := time.Parse("1/2/2006", m[1]); err == nil {
			return d, true
		}
	}
	return time.Time{}, false
}

func detectCurrency(text string) string {
	switch {
	case strings.Contains(text, "€") || strings.Contains(text, "EUR"):
		return "EUR"
	case strings.Contains(text, "£") || strings.Contains(text, "GBP"):
		return "GBP"
	default:
		return entity.DefaultCurrency
	}
}

func firstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if len(line) > 60 {
			line = line[:60]
		}
		return line
	}
	return ""
}

// Verify interface compliance
var _ port.Extractor = (*KeywordExtractor)(nil)
