package trading

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	apperrors "tradeguard/internal/errors"
	"tradeguard/internal/logging"
	"tradeguard/internal/models"
	"tradeguard/internal/store"
)

// Execution is the outcome of a desk order: the validation verdict and, when
// the trade was accepted, the recorded trade and resulting position.
type Execution struct {
	Result   models.TradeValidationResult `json:"result"`
	Trade    *models.Trade                `json:"trade,omitempty"`
	Position *models.Position             `json:"position,omitempty"`
}

// Filled reports whether the trade was recorded.
func (e Execution) Filled() bool {
	return e.Trade != nil
}

// Desk simulates immediate fills at the requested price. Accepted trades are
// appended to today's log and applied to the position in the same write.
// Nothing is sent to an exchange.
type Desk struct {
	store    store.Store
	ledger   *Ledger
	enforcer *Enforcer
	logger   zerolog.Logger
}

// NewDesk creates a desk over a ledger and enforcer sharing one store.
func NewDesk(s store.Store, ledger *Ledger, enforcer *Enforcer, logger zerolog.Logger) *Desk {
	return &Desk{
		store:    s,
		ledger:   ledger,
		enforcer: enforcer,
		logger:   logging.WithComponent(logger, "desk"),
	}
}

// Execute rolls the day over if needed, marks the request as closing when it
// reduces an existing position, validates it and, if valid, fills it.
// Rejected trades write nothing.
func (d *Desk) Execute(ctx context.Context, req models.TradeRequest) (Execution, error) {
	req.Symbol = models.NormalizeSymbol(req.Symbol)

	if _, err := d.ledger.CheckAndResetIfNeeded(ctx); err != nil {
		return Execution{}, err
	}

	if !req.IsClosingTrade {
		closing, err := d.enforcer.IsClosingTrade(ctx, req.Symbol, req.Quantity)
		if err != nil {
			return Execution{}, err
		}
		req.IsClosingTrade = closing
	}

	result, err := d.enforcer.ValidateTrade(ctx, req)
	if err != nil {
		return Execution{Result: result}, err
	}
	if !result.IsValid {
		return Execution{Result: result}, nil
	}

	trade, err := d.ledger.prepareTrade(models.Trade{
		Symbol:   req.Symbol,
		Quantity: req.Quantity,
		Price:    req.Price,
	})
	if err != nil {
		return Execution{Result: result}, err
	}

	var position *models.Position
	var book models.Book
	err = d.store.Update(ctx, store.CollectionPositions, &book, func(bool) error {
		book.TodaysTrades = append(book.TodaysTrades, trade)
		position = applyFill(&book, trade.Symbol, trade.Quantity, trade.Price)
		return nil
	})
	if err != nil {
		return Execution{Result: result}, fmt.Errorf("recording fill: %w", err)
	}

	logging.LogTrade(d.logger, trade.ID, trade.Symbol, trade.Quantity, trade.Price.String())
	return Execution{Result: result, Trade: &trade, Position: position}, nil
}

// Flatten closes the whole position in symbol at price. Closing trades pass
// every rule, including in liquidation-only mode.
func (d *Desk) Flatten(ctx context.Context, symbol string, price decimal.Decimal) (Execution, error) {
	pos, err := d.ledger.Position(ctx, symbol)
	if err != nil {
		return Execution{}, err
	}
	if pos == nil {
		return Execution{}, fmt.Errorf("%s: %w", models.NormalizeSymbol(symbol), apperrors.ErrPositionNotFound)
	}
	return d.Execute(ctx, models.TradeRequest{
		Symbol:         pos.Symbol,
		Quantity:       -pos.Quantity,
		Price:          price,
		OrderType:      models.OrderTypeLimit,
		IsClosingTrade: true,
	})
}

// applyFill applies a signed fill to the book's position in symbol and
// returns the resulting position, or nil when it was closed.
//
// Adding keeps a weighted average cost, reducing keeps the existing average,
// and crossing through zero restarts the average at the fill price.
func applyFill(book *models.Book, symbol string, qty int, price decimal.Decimal) *models.Position {
	pos := models.Position{Symbol: symbol}
	if i := book.Find(symbol); i >= 0 {
		pos = book.Positions[i]
	}

	newQty := pos.Quantity + qty
	switch {
	case pos.Quantity == 0 || sameSign(pos.Quantity, qty):
		total := pos.AverageCost.Mul(shares(pos.Quantity)).Add(price.Mul(shares(qty)))
		pos.AverageCost = total.Div(shares(newQty))
	case newQty != 0 && !sameSign(pos.Quantity, newQty):
		pos.AverageCost = price
	}

	pos.Quantity = newQty
	pos.CurrentPrice = price
	upsertPosition(book, pos)
	if newQty == 0 {
		return nil
	}
	return &pos
}

func sameSign(a, b int) bool {
	return (a > 0 && b > 0) || (a < 0 && b < 0)
}

// shares returns |n| as a decimal.
func shares(n int) decimal.Decimal {
	return decimal.NewFromInt(int64(n)).Abs()
}
