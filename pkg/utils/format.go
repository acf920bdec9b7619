// Package utils provides shared utility functions.
package utils

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// FormatUSD formats an amount as US dollars with thousands separators and two
// decimals, e.g. -$1,234.50.
func FormatUSD(amount decimal.Decimal) string {
	negative := amount.IsNegative()
	str := amount.Abs().StringFixed(2)
	parts := strings.SplitN(str, ".", 2)

	result := "$" + groupThousands(parts[0]) + "." + parts[1]
	if negative {
		result = "-" + result
	}
	return result
}

// FormatSignedUSD formats an amount with an explicit + for gains.
func FormatSignedUSD(amount decimal.Decimal) string {
	formatted := FormatUSD(amount)
	if amount.IsPositive() {
		return "+" + formatted
	}
	return formatted
}

// FormatShares formats a signed share count with separators.
func FormatShares(qty int) string {
	sign := ""
	if qty < 0 {
		sign = "-"
		qty = -qty
	}
	return sign + groupThousands(fmt.Sprintf("%d", qty))
}

// FormatPercent formats a percentage with sign.
func FormatPercent(value decimal.Decimal) string {
	sign := ""
	if value.IsPositive() {
		sign = "+"
	}
	return sign + value.StringFixed(2) + "%"
}

// groupThousands inserts commas every three digits from the right.
func groupThousands(s string) string {
	n := len(s)
	if n <= 3 {
		return s
	}

	var b strings.Builder
	head := n % 3
	if head > 0 {
		b.WriteString(s[:head])
	}
	for i := head; i < n; i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
