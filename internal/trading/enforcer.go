package trading

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	apperrors "tradeguard/internal/errors"
	"tradeguard/internal/logging"
	"tradeguard/internal/models"
)

// Enforcer validates proposed trades against the rule set and the ledger.
// It holds no state: every call reads the rules once and takes one ledger
// snapshot, and derives its answer from those two values.
type Enforcer struct {
	rules  RuleSource
	book   BookReader
	logger zerolog.Logger
}

// NewEnforcer creates an enforcer.
func NewEnforcer(rules RuleSource, book BookReader, logger zerolog.Logger) *Enforcer {
	return &Enforcer{
		rules:  rules,
		book:   book,
		logger: logging.WithComponent(logger, "enforcer"),
	}
}

// ValidateTrade checks an opening trade against every enabled rule and
// collects all violations in rule order. Closing trades are never checked.
//
// A malformed request (empty symbol, zero quantity, non-positive price,
// unknown order type) yields an invalid result together with a validation
// error matching ErrInvalidTrade. Store failures return a zero result and the
// error.
func (e *Enforcer) ValidateTrade(ctx context.Context, req models.TradeRequest) (models.TradeValidationResult, error) {
	req.Symbol = models.NormalizeSymbol(req.Symbol)
	if err := models.Validate(apperrors.ErrInvalidTrade, req); err != nil {
		e.logger.Warn().Err(err).Str("symbol", req.Symbol).Msg("Malformed trade request")
		return models.TradeValidationResult{
			IsValid:      false,
			Violations:   []models.RuleViolation{},
			ErrorMessage: err.Error(),
		}, err
	}

	rules, err := e.rules.Rules(ctx)
	if err != nil {
		return models.TradeValidationResult{}, err
	}
	book, err := e.book.Snapshot(ctx)
	if err != nil {
		return models.TradeValidationResult{}, err
	}

	var violations []models.RuleViolation
	if !req.IsClosingTrade {
		violations = Evaluate(rules, book, req)
	}
	result := models.NewValidationResult(violations)

	logging.LogValidation(logging.WithSymbol(e.logger, req.Symbol), req.Symbol, req.Quantity, result.IsValid, result.Rules())
	return result, nil
}

// Evaluate runs the four opening-trade rules over a rule set and ledger
// snapshot without short-circuiting. The order is daily loss, max dollar,
// limit order, max tickers.
func Evaluate(rules models.RuleSet, book models.Book, req models.TradeRequest) []models.RuleViolation {
	var violations []models.RuleViolation
	symbol := models.NormalizeSymbol(req.Symbol)
	existing := positionIn(book, symbol)

	if rules.DailyLossLimitEnabled {
		pnl := DailyPnLOf(book)
		if overLossLimit(rules, pnl) {
			violations = append(violations, models.DailyLossLimitExceeded{
				Limit:       rules.DailyLossLimit,
				CurrentLoss: pnl.TotalPnL.Neg(),
			})
		}
	}

	if rules.MaxDollarPerTradeEnabled {
		value := req.Value()
		if value.GreaterThan(rules.MaxDollarPerTrade) {
			violations = append(violations, models.MaxDollarPerTradeExceeded{
				Limit:      rules.MaxDollarPerTrade,
				TradeValue: value,
				MaxShares:  maxShares(rules.MaxDollarPerTrade, req.Price),
			})
		}
	}

	if rules.LimitOrdersOnlyEnabled && existing != nil && req.OrderType == models.OrderTypeMarket {
		violations = append(violations, models.LimitOrderRequired{Symbol: symbol})
	}

	if rules.MaxOpenTickersEnabled && existing == nil {
		count := openTickers(book)
		if count >= rules.MaxOpenTickers {
			violations = append(violations, models.MaxTickersExceeded{
				Limit:        rules.MaxOpenTickers,
				CurrentCount: count,
			})
		}
	}

	return violations
}

// IsLiquidationOnlyMode reports whether the daily loss rule is enabled and the
// account is already past its limit.
func (e *Enforcer) IsLiquidationOnlyMode(ctx context.Context) (bool, error) {
	rules, err := e.rules.Rules(ctx)
	if err != nil {
		return false, err
	}
	book, err := e.book.Snapshot(ctx)
	if err != nil {
		return false, err
	}
	return rules.DailyLossLimitEnabled && overLossLimit(rules, DailyPnLOf(book)), nil
}

// CurrentDailyPnL returns the ledger's daily P&L.
func (e *Enforcer) CurrentDailyPnL(ctx context.Context) (models.DailyPnL, error) {
	book, err := e.book.Snapshot(ctx)
	if err != nil {
		return models.DailyPnL{}, err
	}
	return DailyPnLOf(book), nil
}

// IsClosingTrade reports whether quantity reduces an existing position: a
// sell against a long or a buy against a short. No position means opening.
func (e *Enforcer) IsClosingTrade(ctx context.Context, symbol string, quantity int) (bool, error) {
	book, err := e.book.Snapshot(ctx)
	if err != nil {
		return false, err
	}
	return isClosing(positionIn(book, symbol), quantity), nil
}

// SuggestedAction describes what the user may do with symbol given the
// liquidation state and any existing position.
func (e *Enforcer) SuggestedAction(ctx context.Context, symbol string) (string, error) {
	rules, err := e.rules.Rules(ctx)
	if err != nil {
		return "", err
	}
	book, err := e.book.Snapshot(ctx)
	if err != nil {
		return "", err
	}
	liquidation := rules.DailyLossLimitEnabled && overLossLimit(rules, DailyPnLOf(book))
	return suggestedAction(liquidation, positionIn(book, symbol)), nil
}

func suggestedAction(liquidation bool, pos *models.Position) string {
	if liquidation {
		switch {
		case pos != nil && pos.IsLong():
			return fmt.Sprintf("Liquidation-only mode: You can SELL %d shares", pos.Quantity)
		case pos != nil && pos.IsShort():
			return fmt.Sprintf("Liquidation-only mode: You can BUY TO COVER %d shares", -pos.Quantity)
		default:
			return "Liquidation-only mode: Cannot open new positions"
		}
	}

	switch {
	case pos != nil && pos.IsLong():
		return fmt.Sprintf("Existing long position: %d shares\nUse LIMIT orders to add", pos.Quantity)
	case pos != nil && pos.IsShort():
		return fmt.Sprintf("Existing short position: %d shares\nUse LIMIT orders to add", -pos.Quantity)
	default:
		return "No existing position"
	}
}

func overLossLimit(rules models.RuleSet, pnl models.DailyPnL) bool {
	return pnl.TotalPnL.LessThan(rules.DailyLossLimit.Neg())
}

func isClosing(pos *models.Position, quantity int) bool {
	if pos == nil {
		return false
	}
	return (pos.IsLong() && quantity < 0) || (pos.IsShort() && quantity > 0)
}

// maxShares is floor(limit / price); a non-positive price allows none.
func maxShares(limit, price decimal.Decimal) int {
	if !price.IsPositive() {
		return 0
	}
	q, _ := limit.QuoRem(price, 0)
	return int(q.IntPart())
}
