package format

import (
	"strings"

	"github.com/shopspring/decimal"
)

var currencySymbols = map[string]string{
	"EUR": "€",
	"USD": "$",
	"GBP": "£",
	"BRL": "R$",
	"INR": "₹",
}

// Currency returns an amount with its currency symbol (or ISO code) and thousands
// separators, e.g. "-€1,234.56" or "SEK 1,234.56".
func Currency(amount float64, code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	d := decimal.NewFromFloat(amount).Round(2)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	formatted := group(d.StringFixed(2))
	if symbol, ok := currencySymbols[code]; ok {
		return sign + symbol + formatted
	}
	if code == "" {
		return sign + formatted
	}
	return sign + code + " " + formatted
}

// NumericCurrency returns a currency string without a currency symbol but with separators (e.g., "-1,234.56").
func NumericCurrency(amount float64) string {
	return Currency(amount, "")
}

// Percent renders a 0-1 rate as a percentage with two decimals, e.g. 0.368 -> "36.80%".
func Percent(rate float64) string {
	return decimal.NewFromFloat(rate).Mul(decimal.NewFromInt(100)).StringFixed(2) + "%"
}

func group(fixed string) string {
	parts := strings.SplitN(fixed, ".", 2)
	intPart := parts[0]
	decPart := "00"
	if len(parts) == 2 {
		decPart = parts[1]
	}

	if len(intPart) > 3 {
		var builder strings.Builder
		for i, digit := range intPart {
			if i > 0 && (len(intPart)-i)%3 == 0 {
				builder.WriteByte(',')
			}
			builder.WriteRune(digit)
		}
		intPart = builder.String()
	}

	return intPart + "." + decPart
}
