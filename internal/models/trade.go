package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position represents an open holding. Positive quantity is long, negative
// is short; a zero-quantity position is never stored.
type Position struct {
	Symbol       string          `json:"symbol" yaml:"symbol" validate:"required,max=12"`
	Quantity     int             `json:"quantity" yaml:"quantity" validate:"shares"`
	AverageCost  decimal.Decimal `json:"average_cost" yaml:"average_cost" validate:"gte=0"`
	CurrentPrice decimal.Decimal `json:"current_price" yaml:"current_price" validate:"gte=0"`
}

// MarketValue is quantity times current price.
func (p Position) MarketValue() decimal.Decimal {
	return decimal.NewFromInt(int64(p.Quantity)).Mul(p.CurrentPrice)
}

// CostBasis is quantity times average cost.
func (p Position) CostBasis() decimal.Decimal {
	return decimal.NewFromInt(int64(p.Quantity)).Mul(p.AverageCost)
}

// UnrealizedPnL is market value minus cost basis.
func (p Position) UnrealizedPnL() decimal.Decimal {
	return p.MarketValue().Sub(p.CostBasis())
}

// IsLong reports a positive quantity.
func (p Position) IsLong() bool {
	return p.Quantity > 0
}

// IsShort reports a negative quantity.
func (p Position) IsShort() bool {
	return p.Quantity < 0
}

// Trade is an execution record in today's trade log.
type Trade struct {
	ID        string          `json:"id" yaml:"id"`
	Symbol    string          `json:"symbol" yaml:"symbol"`
	Quantity  int             `json:"quantity" yaml:"quantity"` // positive buy, negative sell
	Price     decimal.Decimal `json:"price" yaml:"price"`
	Timestamp time.Time       `json:"timestamp" yaml:"timestamp"`
}

// Value is |quantity| times price.
func (t Trade) Value() decimal.Decimal {
	return abs(t.Quantity).Mul(t.Price)
}

// DailyPnL is the derived profit and loss for the current trading day.
type DailyPnL struct {
	RealizedPnL   decimal.Decimal `json:"realized_pnl"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
	TotalPnL      decimal.Decimal `json:"total_pnl"`
	StartingValue decimal.Decimal `json:"starting_value"`
	CurrentValue  decimal.Decimal `json:"current_value"`
}

// Book is the persisted "positions" record: open positions, today's trades,
// the market-open value and the date of the last daily reset.
type Book struct {
	Positions       []Position      `json:"positions" yaml:"positions"`
	TodaysTrades    []Trade         `json:"todays_trades" yaml:"todays_trades"`
	MarketOpenValue decimal.Decimal `json:"market_open_value" yaml:"market_open_value"`
	LastResetDate   string          `json:"last_reset_date" yaml:"last_reset_date"`
}

// Find returns the index of symbol in the position list, or -1.
func (b *Book) Find(symbol string) int {
	for i := range b.Positions {
		if b.Positions[i].Symbol == symbol {
			return i
		}
	}
	return -1
}
