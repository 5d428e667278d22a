package app

import (
	"strings"

	"github.com/garyjia/expense-desk/internal/domain/entity"
)

var currencySymbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
	"CNY": "¥",
}

// FormatMoney renders an amount with its currency symbol, two decimals and
// thousands separators, e.g. "$1,234.50". Unknown currencies use the code.
func FormatMoney(m entity.Money) string {
	digits := m.Value.Abs().StringFixed(2)
	whole, frac, _ := strings.Cut(digits, ".")

	var b strings.Builder
	if m.Value.IsNegative() {
		b.WriteByte('-')
	}
	if sym, ok := currencySymbols[m.Currency]; ok {
		b.WriteString(sym)
	} else {
		b.WriteString(m.Currency)
		b.WriteByte(' ')
	}
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	b.WriteByte('.')
	b.WriteString(frac)
	return b.String()
}
