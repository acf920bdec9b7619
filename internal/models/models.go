// Package models provides domain models for the trade-rules engine.
package models

import (
	"strings"

	"github.com/shopspring/decimal"
)

// OrderSide represents the direction implied by a signed quantity.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// SideOf returns the side for a signed quantity. Zero reports BUY.
func SideOf(quantity int) OrderSide {
	if quantity < 0 {
		return OrderSideSell
	}
	return OrderSideBuy
}

// OrderType represents the type of an order.
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
	OrderTypeStop   OrderType = "STOP"
)

// ParseOrderType parses an order type name case-insensitively.
func ParseOrderType(s string) (OrderType, bool) {
	switch OrderType(strings.ToUpper(strings.TrimSpace(s))) {
	case OrderTypeMarket:
		return OrderTypeMarket, true
	case OrderTypeLimit:
		return OrderTypeLimit, true
	case OrderTypeStop:
		return OrderTypeStop, true
	}
	return "", false
}

// NormalizeSymbol trims and upper-cases a ticker symbol. Every ledger and
// enforcer lookup goes through it.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// MaxQuantity bounds the share count of a single trade or position in
// either direction.
const MaxQuantity = 1_000_000_000

// abs returns |n| as a decimal. Negating in decimal keeps math.MinInt positive.
func abs(n int) decimal.Decimal {
	return decimal.NewFromInt(int64(n)).Abs()
}
