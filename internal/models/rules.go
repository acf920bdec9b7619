package models

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// RuleSet holds the user-configured risk rules and their enable flags. It is
// persisted as one record; fields missing from a stored record keep the
// values from DefaultRuleSet.
type RuleSet struct {
	DailyLossLimit    decimal.Decimal `json:"daily_loss_limit" yaml:"daily_loss_limit" validate:"gte=0"`
	MaxDollarPerTrade decimal.Decimal `json:"max_dollar_per_trade" yaml:"max_dollar_per_trade" validate:"gte=0"`
	MaxOpenTickers    int             `json:"max_open_tickers" yaml:"max_open_tickers" validate:"gte=0"`

	DailyLossLimitEnabled    bool `json:"daily_loss_enabled" yaml:"daily_loss_enabled"`
	MaxDollarPerTradeEnabled bool `json:"max_dollar_enabled" yaml:"max_dollar_enabled"`
	LimitOrdersOnlyEnabled   bool `json:"limit_orders_enabled" yaml:"limit_orders_enabled"`
	MaxOpenTickersEnabled    bool `json:"max_tickers_enabled" yaml:"max_tickers_enabled"`
}

// DefaultRuleSet returns the rules used when nothing has been saved.
func DefaultRuleSet() RuleSet {
	return RuleSet{
		DailyLossLimit:           decimal.NewFromInt(500),
		MaxDollarPerTrade:        decimal.NewFromInt(5000),
		MaxOpenTickers:           5,
		DailyLossLimitEnabled:    true,
		MaxDollarPerTradeEnabled: true,
		LimitOrdersOnlyEnabled:   true,
		MaxOpenTickersEnabled:    true,
	}
}

// Equal compares rule sets by value; decimals compare numerically.
func (r RuleSet) Equal(o RuleSet) bool {
	return r.DailyLossLimit.Equal(o.DailyLossLimit) &&
		r.MaxDollarPerTrade.Equal(o.MaxDollarPerTrade) &&
		r.MaxOpenTickers == o.MaxOpenTickers &&
		r.DailyLossLimitEnabled == o.DailyLossLimitEnabled &&
		r.MaxDollarPerTradeEnabled == o.MaxDollarPerTradeEnabled &&
		r.LimitOrdersOnlyEnabled == o.LimitOrdersOnlyEnabled &&
		r.MaxOpenTickersEnabled == o.MaxOpenTickersEnabled
}

// RuleKind names one of the four enforced rules.
type RuleKind string

const (
	RuleDailyLossLimit    RuleKind = "daily_loss_limit"
	RuleMaxDollarPerTrade RuleKind = "max_dollar_per_trade"
	RuleLimitOrderOnly    RuleKind = "limit_order_required"
	RuleMaxOpenTickers    RuleKind = "max_open_tickers"
)

// RuleViolation is one failed rule. The set of cases is closed: the four
// violation structs below are the only implementations.
type RuleViolation interface {
	Rule() RuleKind
	Message() string
	isRuleViolation()
}

// DailyLossLimitExceeded means the account is already past its daily loss
// limit and only liquidations are allowed.
type DailyLossLimitExceeded struct {
	Limit       decimal.Decimal `json:"limit"`
	CurrentLoss decimal.Decimal `json:"current_loss"`
}

func (DailyLossLimitExceeded) Rule() RuleKind   { return RuleDailyLossLimit }
func (DailyLossLimitExceeded) isRuleViolation() {}

// Message renders the user-facing text.
func (v DailyLossLimitExceeded) Message() string {
	return fmt.Sprintf("❌ Daily Loss Limit Exceeded\nLimit: -$%s\nCurrent Loss: -$%s\nOnly liquidations allowed today.",
		v.Limit.StringFixed(2), v.CurrentLoss.StringFixed(2))
}

// MarshalJSON adds the rule name to the encoded violation.
func (v DailyLossLimitExceeded) MarshalJSON() ([]byte, error) {
	type plain DailyLossLimitExceeded
	return marshalViolation(v.Rule(), plain(v))
}

// MaxDollarPerTradeExceeded means the trade value is above the per-trade cap.
type MaxDollarPerTradeExceeded struct {
	Limit      decimal.Decimal `json:"limit"`
	TradeValue decimal.Decimal `json:"trade_value"`
	MaxShares  int             `json:"max_shares"`
}

func (MaxDollarPerTradeExceeded) Rule() RuleKind   { return RuleMaxDollarPerTrade }
func (MaxDollarPerTradeExceeded) isRuleViolation() {}

// Message renders the user-facing text.
func (v MaxDollarPerTradeExceeded) Message() string {
	return fmt.Sprintf("❌ Position Size Too Large\nMax per trade: $%s\nYour trade: $%s\nMax shares: %d",
		v.Limit.StringFixed(2), v.TradeValue.StringFixed(2), v.MaxShares)
}

// MarshalJSON adds the rule name to the encoded violation.
func (v MaxDollarPerTradeExceeded) MarshalJSON() ([]byte, error) {
	type plain MaxDollarPerTradeExceeded
	return marshalViolation(v.Rule(), plain(v))
}

// LimitOrderRequired means a MARKET order tried to add to an existing position.
type LimitOrderRequired struct {
	Symbol string `json:"symbol"`
}

func (LimitOrderRequired) Rule() RuleKind   { return RuleLimitOrderOnly }
func (LimitOrderRequired) isRuleViolation() {}

// Message renders the user-facing text.
func (v LimitOrderRequired) Message() string {
	return fmt.Sprintf("❌ Limit Order Required\nYou have an existing %s position.\nAdding to positions requires LIMIT orders.",
		v.Symbol)
}

// MarshalJSON adds the rule name to the encoded violation.
func (v LimitOrderRequired) MarshalJSON() ([]byte, error) {
	type plain LimitOrderRequired
	return marshalViolation(v.Rule(), plain(v))
}

// MaxTickersExceeded means a new ticker would exceed the open-ticker cap.
type MaxTickersExceeded struct {
	Limit        int `json:"limit"`
	CurrentCount int `json:"current_count"`
}

func (MaxTickersExceeded) Rule() RuleKind   { return RuleMaxOpenTickers }
func (MaxTickersExceeded) isRuleViolation() {}

// Message renders the user-facing text.
func (v MaxTickersExceeded) Message() string {
	return fmt.Sprintf("❌ Ticker Limit Reached\nMax tickers: %d\nCurrently open: %d\nClose a position to open a new ticker.",
		v.Limit, v.CurrentCount)
}

// MarshalJSON adds the rule name to the encoded violation.
func (v MaxTickersExceeded) MarshalJSON() ([]byte, error) {
	type plain MaxTickersExceeded
	return marshalViolation(v.Rule(), plain(v))
}

func marshalViolation(rule RuleKind, details interface{}) ([]byte, error) {
	return json.Marshal(struct {
		Rule    RuleKind    `json:"rule"`
		Details interface{} `json:"details"`
	}{rule, details})
}
