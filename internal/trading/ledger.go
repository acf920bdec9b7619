package trading

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	apperrors "tradeguard/internal/errors"
	"tradeguard/internal/logging"
	"tradeguard/internal/models"
	"tradeguard/internal/store"
	"tradeguard/pkg/utils"
)

// Ledger tracks open positions and today's trade log and derives daily P&L.
//
// Positions, trades, the market-open value and the last-reset date live in a
// single "positions" record, so every read sees one consistent snapshot and
// every write is an atomic read-modify-write of that record.
type Ledger struct {
	store    store.Store
	clock    Clock
	location *time.Location
	logger   zerolog.Logger
}

// NewLedger creates a ledger over s. Calendar dates for the daily reset are
// taken in loc (US Eastern when nil).
func NewLedger(s store.Store, clock Clock, loc *time.Location, logger zerolog.Logger) *Ledger {
	if clock == nil {
		clock = SystemClock{}
	}
	if loc == nil {
		loc = utils.EasternLocation()
	}
	return &Ledger{
		store:    s,
		clock:    clock,
		location: loc,
		logger:   logging.WithComponent(logger, "ledger"),
	}
}

// Snapshot reads the whole positions record in one store access.
func (l *Ledger) Snapshot(ctx context.Context) (models.Book, error) {
	var book models.Book
	if _, err := l.store.Read(ctx, store.CollectionPositions, &book); err != nil {
		return models.Book{}, fmt.Errorf("reading positions: %w", err)
	}
	return book, nil
}

// Positions returns all open positions in the order they were last updated.
func (l *Ledger) Positions(ctx context.Context) ([]models.Position, error) {
	book, err := l.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if book.Positions == nil {
		return []models.Position{}, nil
	}
	return book.Positions, nil
}

// Position returns the position for symbol, or nil when none is open.
func (l *Ledger) Position(ctx context.Context, symbol string) (*models.Position, error) {
	book, err := l.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return positionIn(book, symbol), nil
}

// HasPosition reports whether symbol has an open position.
func (l *Ledger) HasPosition(ctx context.Context, symbol string) (bool, error) {
	pos, err := l.Position(ctx, symbol)
	if err != nil {
		return false, err
	}
	return pos != nil, nil
}

// OpenTickersCount returns the number of distinct symbols with open positions.
func (l *Ledger) OpenTickersCount(ctx context.Context) (int, error) {
	book, err := l.Snapshot(ctx)
	if err != nil {
		return 0, err
	}
	return openTickers(book), nil
}

// UpdatePosition upserts a position by symbol. The updated position moves to
// the end of the list; a zero quantity removes the symbol instead.
func (l *Ledger) UpdatePosition(ctx context.Context, pos models.Position) error {
	pos.Symbol = models.NormalizeSymbol(pos.Symbol)
	if pos.Symbol == "" {
		return apperrors.NewValidationError(apperrors.ErrInvalidPosition, "Symbol", pos.Symbol, "is required")
	}
	if pos.Quantity != 0 {
		if err := models.Validate(apperrors.ErrInvalidPosition, pos); err != nil {
			return err
		}
	}

	err := l.update(ctx, func(book *models.Book) error {
		upsertPosition(book, pos)
		return nil
	})
	if err != nil {
		return err
	}

	l.logger.Info().
		Str("symbol", pos.Symbol).
		Int("quantity", pos.Quantity).
		Str("average_cost", pos.AverageCost.String()).
		Msg("Position updated")
	return nil
}

// RemovePosition deletes the position for symbol.
func (l *Ledger) RemovePosition(ctx context.Context, symbol string) error {
	symbol = models.NormalizeSymbol(symbol)
	return l.update(ctx, func(book *models.Book) error {
		if book.Find(symbol) < 0 {
			return fmt.Errorf("%s: %w", symbol, apperrors.ErrPositionNotFound)
		}
		upsertPosition(book, models.Position{Symbol: symbol})
		return nil
	})
}

// MarkPrice sets the current price of an open position.
func (l *Ledger) MarkPrice(ctx context.Context, symbol string, price decimal.Decimal) error {
	symbol = models.NormalizeSymbol(symbol)
	if price.IsNegative() {
		return apperrors.NewValidationError(apperrors.ErrInvalidPosition, "CurrentPrice", price.String(), "must be at least 0")
	}
	return l.update(ctx, func(book *models.Book) error {
		i := book.Find(symbol)
		if i < 0 {
			return fmt.Errorf("%s: %w", symbol, apperrors.ErrPositionNotFound)
		}
		book.Positions[i].CurrentPrice = price
		return nil
	})
}

// AddTrade appends a trade to today's log. Calling it twice records two
// trades. A missing ID or timestamp is filled in.
func (l *Ledger) AddTrade(ctx context.Context, trade models.Trade) (models.Trade, error) {
	trade, err := l.prepareTrade(trade)
	if err != nil {
		return models.Trade{}, err
	}

	err = l.update(ctx, func(book *models.Book) error {
		book.TodaysTrades = append(book.TodaysTrades, trade)
		return nil
	})
	if err != nil {
		return models.Trade{}, err
	}

	logging.LogTrade(l.logger, trade.ID, trade.Symbol, trade.Quantity, trade.Price.String())
	return trade, nil
}

func (l *Ledger) prepareTrade(trade models.Trade) (models.Trade, error) {
	trade.Symbol = models.NormalizeSymbol(trade.Symbol)
	switch {
	case trade.Symbol == "":
		return trade, apperrors.NewValidationError(apperrors.ErrInvalidTrade, "Symbol", trade.Symbol, "is required")
	case trade.Quantity == 0:
		return trade, apperrors.NewValidationError(apperrors.ErrInvalidTrade, "Quantity", trade.Quantity, "must not be 0")
	case trade.Quantity < -models.MaxQuantity || trade.Quantity > models.MaxQuantity:
		return trade, apperrors.NewValidationError(apperrors.ErrInvalidTrade, "Quantity", trade.Quantity, "exceeds the share limit")
	case !trade.Price.IsPositive():
		return trade, apperrors.NewValidationError(apperrors.ErrInvalidTrade, "Price", trade.Price.String(), "must be greater than 0")
	}
	if trade.Timestamp.IsZero() {
		trade.Timestamp = l.clock.Now()
	}
	if trade.ID == "" {
		trade.ID = models.NewTradeID(trade.Timestamp)
	}
	return trade, nil
}

// TodaysTrades returns today's trade log in recorded order.
func (l *Ledger) TodaysTrades(ctx context.Context) ([]models.Trade, error) {
	book, err := l.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if book.TodaysTrades == nil {
		return []models.Trade{}, nil
	}
	return book.TodaysTrades, nil
}

// DailyPnL derives today's P&L from one snapshot of the positions record.
func (l *Ledger) DailyPnL(ctx context.Context) (models.DailyPnL, error) {
	book, err := l.Snapshot(ctx)
	if err != nil {
		return models.DailyPnL{}, err
	}
	return DailyPnLOf(book), nil
}

// SetMarketOpenValue stores today's starting value and stamps today's date.
func (l *Ledger) SetMarketOpenValue(ctx context.Context, value decimal.Decimal) error {
	today := l.today()
	err := l.update(ctx, func(book *models.Book) error {
		book.MarketOpenValue = value
		book.LastResetDate = today
		return nil
	})
	if err != nil {
		return err
	}
	l.logger.Info().Str("market_open_value", value.String()).Str("date", today).Msg("Market open value set")
	return nil
}

// ResetDailyData clears the trade log and re-snapshots the starting value to
// the current market value of open positions. Gains made before the reset
// become part of the new baseline.
func (l *Ledger) ResetDailyData(ctx context.Context) error {
	today := l.today()
	var starting decimal.Decimal
	err := l.update(ctx, func(book *models.Book) error {
		resetBook(book, today)
		starting = book.MarketOpenValue
		return nil
	})
	if err != nil {
		return err
	}
	logging.LogDailyReset(l.logger, today, starting.String())
	return nil
}

// CheckAndResetIfNeeded resets daily data when the stored reset date is not
// today's calendar date. It reports whether a reset happened. Weekends and
// holidays are ordinary dates here.
func (l *Ledger) CheckAndResetIfNeeded(ctx context.Context) (bool, error) {
	today := l.today()
	reset := false
	var starting decimal.Decimal
	err := l.update(ctx, func(book *models.Book) error {
		if book.LastResetDate == today {
			return errNoChange
		}
		resetBook(book, today)
		starting = book.MarketOpenValue
		reset = true
		return nil
	})
	if err != nil && !apperrors.Is(err, errNoChange) {
		return false, err
	}
	if reset {
		logging.LogDailyReset(l.logger, today, starting.String())
	}
	return reset, nil
}

// Seed replaces all positions and sets the market-open value to their
// combined cost basis, stamped with today's date. The trade log is kept.
func (l *Ledger) Seed(ctx context.Context, positions []models.Position) error {
	seeded := make([]models.Position, 0, len(positions))
	for _, p := range positions {
		p.Symbol = models.NormalizeSymbol(p.Symbol)
		if p.Quantity == 0 {
			continue
		}
		if err := models.Validate(apperrors.ErrInvalidPosition, p); err != nil {
			return err
		}
		seeded = append(seeded, p)
	}

	today := l.today()
	err := l.update(ctx, func(book *models.Book) error {
		book.Positions = nil
		for _, p := range seeded {
			upsertPosition(book, p)
		}
		open := decimal.Zero
		for _, p := range book.Positions {
			open = open.Add(p.CostBasis())
		}
		book.MarketOpenValue = open
		book.LastResetDate = today
		return nil
	})
	if err != nil {
		return err
	}
	l.logger.Info().Int("positions", len(seeded)).Msg("Positions seeded")
	return nil
}

// ClearAll removes positions, trades and daily state.
func (l *Ledger) ClearAll(ctx context.Context) error {
	if err := l.store.Delete(ctx, store.CollectionPositions); err != nil {
		return fmt.Errorf("clearing positions: %w", err)
	}
	l.logger.Info().Msg("Ledger cleared")
	return nil
}

// SamplePositions returns a small demo portfolio with one short.
func SamplePositions() []models.Position {
	return []models.Position{
		{Symbol: "AAPL", Quantity: 50, AverageCost: decimal.RequireFromString("180.00"), CurrentPrice: decimal.RequireFromString("192.43")},
		{Symbol: "TSLA", Quantity: -25, AverageCost: decimal.RequireFromString("230.00"), CurrentPrice: decimal.RequireFromString("224.90")},
		{Symbol: "MSFT", Quantity: 30, AverageCost: decimal.RequireFromString("400.00"), CurrentPrice: decimal.RequireFromString("411.27")},
	}
}

// errNoChange aborts an Update without writing.
var errNoChange = errors.New("no change")

func (l *Ledger) update(ctx context.Context, fn func(book *models.Book) error) error {
	var book models.Book
	err := l.store.Update(ctx, store.CollectionPositions, &book, func(bool) error {
		return fn(&book)
	})
	switch {
	case err == nil, apperrors.Is(err, errNoChange):
		return err
	case apperrors.Is(err, apperrors.ErrPositionNotFound):
		return err
	default:
		return fmt.Errorf("updating positions: %w", err)
	}
}

func (l *Ledger) today() string {
	return utils.DateKey(l.clock.Now().In(l.location))
}

func resetBook(book *models.Book, today string) {
	book.TodaysTrades = []models.Trade{}
	book.MarketOpenValue = MarketValueOf(book.Positions)
	book.LastResetDate = today
}

func upsertPosition(book *models.Book, pos models.Position) {
	if i := book.Find(pos.Symbol); i >= 0 {
		book.Positions = append(book.Positions[:i], book.Positions[i+1:]...)
	}
	if pos.Quantity != 0 {
		book.Positions = append(book.Positions, pos)
	}
}

func positionIn(book models.Book, symbol string) *models.Position {
	i := book.Find(models.NormalizeSymbol(symbol))
	if i < 0 {
		return nil
	}
	pos := book.Positions[i]
	return &pos
}

func openTickers(book models.Book) int {
	seen := make(map[string]struct{}, len(book.Positions))
	for _, p := range book.Positions {
		if p.Quantity != 0 {
			seen[p.Symbol] = struct{}{}
		}
	}
	return len(seen)
}

// MarketValueOf sums the market value of positions.
func MarketValueOf(positions []models.Position) decimal.Decimal {
	total := decimal.Zero
	for _, p := range positions {
		total = total.Add(p.MarketValue())
	}
	return total
}

// DailyPnLOf derives the day's P&L from a positions record.
// totalPnL = (currentValue - startingValue) + realizedPnL.
func DailyPnLOf(book models.Book) models.DailyPnL {
	unrealized := decimal.Zero
	for _, p := range book.Positions {
		unrealized = unrealized.Add(p.UnrealizedPnL())
	}
	current := MarketValueOf(book.Positions)
	realized := RealizedPnL(book.TodaysTrades)

	return models.DailyPnL{
		RealizedPnL:   realized,
		UnrealizedPnL: unrealized,
		TotalPnL:      current.Sub(book.MarketOpenValue).Add(realized),
		StartingValue: book.MarketOpenValue,
		CurrentValue:  current,
	}
}

// RealizedPnL computes realized P&L per symbol by running average cost over
// the trades in recorded order, then sums across symbols.
//
// A sell is costed at the average cost of shares bought earlier in the same
// log. Shares carried from a prior day have no cost in the log, so selling
// them is costed at zero and the whole proceeds count as realized.
func RealizedPnL(trades []models.Trade) decimal.Decimal {
	type running struct {
		costBasis decimal.Decimal
		shares    int
	}
	bySymbol := make(map[string]*running)
	realized := decimal.Zero

	for _, t := range trades {
		r, ok := bySymbol[t.Symbol]
		if !ok {
			r = &running{costBasis: decimal.Zero}
			bySymbol[t.Symbol] = r
		}

		if t.Quantity > 0 {
			r.costBasis = r.costBasis.Add(t.Value())
			r.shares += t.Quantity
			continue
		}
		if t.Quantity == 0 {
			continue
		}

		avgCost := decimal.Zero
		if r.shares > 0 {
			avgCost = r.costBasis.Div(decimal.NewFromInt(int64(r.shares)))
		}
		sold := -t.Quantity
		soldCost := avgCost.Mul(decimal.NewFromInt(int64(sold)))
		realized = realized.Add(t.Value().Sub(soldCost))
		r.costBasis = r.costBasis.Sub(soldCost)
		r.shares -= sold
	}

	return realized
}
