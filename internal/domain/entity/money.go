package entity

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is a decimal amount in a single ISO currency.
// No conversion between currencies is performed anywhere.
type Money struct {
	Value    decimal.Decimal `json:"value"`
	Currency string          `json:"currency"`
}

// NewMoney builds a Money value, upper-casing the currency code
func NewMoney(value decimal.Decimal, currency string) Money {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = DefaultCurrency
	}
	return Money{Value: value, Currency: currency}
}

// IsPositive returns true when the amount is strictly greater than zero
func (m Money) IsPositive() bool {
	return m.Value.IsPositive()
}

// String formats the amount with two decimals followed by the currency
func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.Value.StringFixed(2), m.Currency)
}
