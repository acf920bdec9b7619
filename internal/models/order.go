package models

import (
	"strings"

	"github.com/shopspring/decimal"
)

// TradeRequest is a proposed trade handed to the enforcer. The sign of
// Quantity is the direction.
type TradeRequest struct {
	Symbol         string          `json:"symbol" validate:"required,max=12"`
	Quantity       int             `json:"quantity" validate:"shares"`
	Price          decimal.Decimal `json:"price" validate:"gt=0"`
	OrderType      OrderType       `json:"order_type" validate:"oneof=MARKET LIMIT STOP"`
	IsClosingTrade bool            `json:"is_closing_trade"`
}

// Value is |quantity| times price.
func (r TradeRequest) Value() decimal.Decimal {
	return abs(r.Quantity).Mul(r.Price)
}

// TradeValidationResult is the enforcer's verdict. Violations is empty iff
// IsValid is true.
type TradeValidationResult struct {
	IsValid      bool            `json:"is_valid"`
	Violations   []RuleViolation `json:"violations"`
	ErrorMessage string          `json:"error_message,omitempty"`
}

// NewValidationResult builds a result from the violations in the order they
// were found.
func NewValidationResult(violations []RuleViolation) TradeValidationResult {
	if len(violations) == 0 {
		return TradeValidationResult{IsValid: true, Violations: []RuleViolation{}}
	}
	return TradeValidationResult{
		IsValid:      false,
		Violations:   violations,
		ErrorMessage: FormatViolations(violations),
	}
}

// Rules lists the rule names of the violations, in order.
func (r TradeValidationResult) Rules() []string {
	names := make([]string, 0, len(r.Violations))
	for _, v := range r.Violations {
		names = append(names, string(v.Rule()))
	}
	return names
}

// FormatViolations joins each violation's message with a blank line.
func FormatViolations(violations []RuleViolation) string {
	parts := make([]string, 0, len(violations))
	for _, v := range violations {
		parts = append(parts, v.Message())
	}
	return strings.Join(parts, "\n\n")
}
