// Package trading provides the trade-rules engine: the position ledger,
// persisted rule book, rule enforcer, rule lock clock and a simulated
// execution desk.
package trading

import (
	"context"

	"tradeguard/internal/models"
)

// RuleSource supplies the current rule set.
type RuleSource interface {
	Rules(ctx context.Context) (models.RuleSet, error)
}

// BookReader supplies a consistent snapshot of the positions record.
type BookReader interface {
	Snapshot(ctx context.Context) (models.Book, error)
}

// TradeValidator decides whether a proposed trade may proceed.
type TradeValidator interface {
	ValidateTrade(ctx context.Context, req models.TradeRequest) (models.TradeValidationResult, error)
}

// Locker reports whether rule edits are currently locked.
type Locker interface {
	IsLocked() bool
}

var (
	_ RuleSource     = (*RuleBook)(nil)
	_ BookReader     = (*Ledger)(nil)
	_ TradeValidator = (*Enforcer)(nil)
	_ Locker         = (*LockClock)(nil)
)
