package trading

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "tradeguard/internal/errors"
	"tradeguard/internal/models"
	"tradeguard/internal/store"
	"tradeguard/pkg/utils"
)

// engine wires every component over one in-memory store.
type engine struct {
	store    store.Store
	clock    *FixedClock
	lock     *LockClock
	ledger   *Ledger
	rules    *RuleBook
	enforcer *Enforcer
	desk     *Desk
}

// saturdayNoon is unlocked, so rule saves succeed.
var saturdayNoon = time.Date(2024, 3, 9, 12, 0, 0, 0, utils.EasternLocation())

func newEngine(t *testing.T) *engine {
	t.Helper()
	s := store.NewMemoryStore()
	t.Cleanup(func() { _ = s.Close() })

	logger := zerolog.Nop()
	clock := NewFixedClock(saturdayNoon)
	lock := NewMarketLockClock(clock)
	ledger := NewLedger(s, clock, nil, logger)
	rules := NewRuleBook(s, lock, logger)
	enforcer := NewEnforcer(rules, ledger, logger)
	return &engine{
		store:    s,
		clock:    clock,
		lock:     lock,
		ledger:   ledger,
		rules:    rules,
		enforcer: enforcer,
		desk:     NewDesk(s, ledger, enforcer, logger),
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func pos(symbol string, qty int, avg, price string) models.Position {
	return models.Position{Symbol: symbol, Quantity: qty, AverageCost: dec(avg), CurrentPrice: dec(price)}
}

func TestRealizedPnL_AverageCostExample(t *testing.T) {
	trades := []models.Trade{
		{Symbol: "X", Quantity: 10, Price: dec("100")},
		{Symbol: "X", Quantity: -5, Price: dec("120")},
	}
	assert.True(t, RealizedPnL(trades).Equal(dec("100")), "got %s", RealizedPnL(trades))
}

func TestRealizedPnL_PerSymbolAndCarriedShares(t *testing.T) {
	trades := []models.Trade{
		{Symbol: "A", Quantity: 10, Price: dec("10")},
		{Symbol: "B", Quantity: -4, Price: dec("50")}, // carried from a prior day: costed at zero
		{Symbol: "A", Quantity: 10, Price: dec("20")},
		{Symbol: "A", Quantity: -20, Price: dec("14")},
	}
	// A: cost 300 for 20 shares, sold 20@14 = 280 -> -20. B: 200 - 0 = 200.
	assert.True(t, RealizedPnL(trades).Equal(dec("180")), "got %s", RealizedPnL(trades))
	assert.True(t, RealizedPnL(nil).IsZero())
}

func TestLedger_UpdatePositionUpsertsAndRemoves(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	require.NoError(t, e.ledger.UpdatePosition(ctx, pos("aapl ", 10, "100", "101")))
	require.NoError(t, e.ledger.UpdatePosition(ctx, pos("MSFT", 5, "300", "310")))
	require.NoError(t, e.ledger.UpdatePosition(ctx, pos("AAPL", 20, "105", "101")))

	positions, err := e.ledger.Positions(ctx)
	require.NoError(t, err)
	require.Len(t, positions, 2)
	assert.Equal(t, "MSFT", positions[0].Symbol)
	assert.Equal(t, "AAPL", positions[1].Symbol, "updated position moves to the end")
	assert.Equal(t, 20, positions[1].Quantity)

	has, err := e.ledger.HasPosition(ctx, "aapl")
	require.NoError(t, err)
	assert.True(t, has)

	require.NoError(t, e.ledger.UpdatePosition(ctx, models.Position{Symbol: "AAPL"}))
	p, err := e.ledger.Position(ctx, "AAPL")
	require.NoError(t, err)
	assert.Nil(t, p)

	count, err := e.ledger.OpenTickersCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestLedger_RejectsBadPositions(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	err := e.ledger.UpdatePosition(ctx, pos("", 1, "1", "1"))
	assert.ErrorIs(t, err, apperrors.ErrInvalidPosition)

	err = e.ledger.UpdatePosition(ctx, pos("AAPL", 1, "-1", "1"))
	assert.ErrorIs(t, err, apperrors.ErrInvalidPosition)

	assert.ErrorIs(t, e.ledger.MarkPrice(ctx, "NOPE", dec("1")), apperrors.ErrPositionNotFound)
	assert.ErrorIs(t, e.ledger.RemovePosition(ctx, "NOPE"), apperrors.ErrPositionNotFound)
}

func TestLedger_AddTradeAppendsAndFillsIdentity(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	first, err := e.ledger.AddTrade(ctx, models.Trade{Symbol: "aapl", Quantity: 10, Price: dec("100")})
	require.NoError(t, err)
	second, err := e.ledger.AddTrade(ctx, models.Trade{Symbol: "AAPL", Quantity: 10, Price: dec("100")})
	require.NoError(t, err)

	assert.NotEmpty(t, first.ID)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, "AAPL", first.Symbol)
	assert.True(t, first.Timestamp.Equal(saturdayNoon))

	trades, err := e.ledger.TodaysTrades(ctx)
	require.NoError(t, err)
	assert.Len(t, trades, 2, "adding the same trade twice records it twice")

	_, err = e.ledger.AddTrade(ctx, models.Trade{Symbol: "AAPL", Quantity: 0, Price: dec("1")})
	assert.ErrorIs(t, err, apperrors.ErrInvalidTrade)
	_, err = e.ledger.AddTrade(ctx, models.Trade{Symbol: "AAPL", Quantity: 1, Price: dec("0")})
	assert.ErrorIs(t, err, apperrors.ErrInvalidTrade)
}

func TestLedger_DailyPnL(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	require.NoError(t, e.ledger.SetMarketOpenValue(ctx, dec("1000")))
	require.NoError(t, e.ledger.UpdatePosition(ctx, pos("X", 5, "100", "110")))
	_, err := e.ledger.AddTrade(ctx, models.Trade{Symbol: "X", Quantity: 10, Price: dec("100")})
	require.NoError(t, err)
	_, err = e.ledger.AddTrade(ctx, models.Trade{Symbol: "X", Quantity: -5, Price: dec("120")})
	require.NoError(t, err)

	pnl, err := e.ledger.DailyPnL(ctx)
	require.NoError(t, err)
	assert.True(t, pnl.RealizedPnL.Equal(dec("100")))
	assert.True(t, pnl.UnrealizedPnL.Equal(dec("50")))
	assert.True(t, pnl.CurrentValue.Equal(dec("550")))
	assert.True(t, pnl.StartingValue.Equal(dec("1000")))
	// (550 - 1000) + 100
	assert.True(t, pnl.TotalPnL.Equal(dec("-350")), "got %s", pnl.TotalPnL)
}

func TestLedger_ResetDailyDataRebaselines(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	require.NoError(t, e.ledger.SetMarketOpenValue(ctx, dec("100")))
	require.NoError(t, e.ledger.UpdatePosition(ctx, pos("X", 10, "10", "25")))
	_, err := e.ledger.AddTrade(ctx, models.Trade{Symbol: "X", Quantity: 10, Price: dec("10")})
	require.NoError(t, err)

	require.NoError(t, e.ledger.ResetDailyData(ctx))

	book, err := e.ledger.Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, book.TodaysTrades)
	assert.True(t, book.MarketOpenValue.Equal(dec("250")), "baseline is current market value")
	assert.Equal(t, "2024-03-09", book.LastResetDate)

	pnl := DailyPnLOf(book)
	assert.True(t, pnl.TotalPnL.IsZero())
}

func TestLedger_CheckAndResetIfNeeded(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	// No reset date stored yet.
	reset, err := e.ledger.CheckAndResetIfNeeded(ctx)
	require.NoError(t, err)
	assert.True(t, reset)

	_, err = e.ledger.AddTrade(ctx, models.Trade{Symbol: "X", Quantity: 1, Price: dec("1")})
	require.NoError(t, err)

	reset, err = e.ledger.CheckAndResetIfNeeded(ctx)
	require.NoError(t, err)
	assert.False(t, reset)
	trades, _ := e.ledger.TodaysTrades(ctx)
	assert.Len(t, trades, 1)

	// 23:59 Eastern is still the same calendar day even though UTC has rolled over.
	e.clock.Set(time.Date(2024, 3, 9, 23, 59, 0, 0, utils.EasternLocation()))
	reset, err = e.ledger.CheckAndResetIfNeeded(ctx)
	require.NoError(t, err)
	assert.False(t, reset)

	e.clock.Advance(2 * time.Minute)
	reset, err = e.ledger.CheckAndResetIfNeeded(ctx)
	require.NoError(t, err)
	assert.True(t, reset)
	trades, _ = e.ledger.TodaysTrades(ctx)
	assert.Empty(t, trades)
}

func TestLedger_SeedAndClear(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	require.NoError(t, e.ledger.Seed(ctx, SamplePositions()))

	book, err := e.ledger.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, book.Positions, 3)
	// 50*180 - 25*230 + 30*400
	assert.True(t, book.MarketOpenValue.Equal(dec("15250")), "got %s", book.MarketOpenValue)
	assert.Equal(t, "2024-03-09", book.LastResetDate)

	require.NoError(t, e.ledger.ClearAll(ctx))
	positions, err := e.ledger.Positions(ctx)
	require.NoError(t, err)
	assert.Empty(t, positions)
}

func TestRuleBook_DefaultsAndLock(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	rules, err := e.rules.Rules(ctx)
	require.NoError(t, err)
	assert.True(t, rules.Equal(models.DefaultRuleSet()))

	custom := models.DefaultRuleSet()
	custom.MaxOpenTickers = 2
	custom.LimitOrdersOnlyEnabled = false
	require.NoError(t, e.rules.Save(ctx, custom))

	got, err := e.rules.Rules(ctx)
	require.NoError(t, err)
	assert.True(t, got.Equal(custom))

	// Monday 10:00 Eastern: locked.
	e.clock.Set(time.Date(2024, 3, 11, 10, 0, 0, 0, utils.EasternLocation()))
	assert.ErrorIs(t, e.rules.Save(ctx, models.DefaultRuleSet()), apperrors.ErrRulesLocked)
	assert.ErrorIs(t, e.rules.Reset(ctx), apperrors.ErrRulesLocked)
	_, err = e.rules.Update(ctx, func(r *models.RuleSet) error { return nil })
	assert.ErrorIs(t, err, apperrors.ErrRulesLocked)

	got, err = e.rules.Rules(ctx)
	require.NoError(t, err)
	assert.True(t, got.Equal(custom), "locked save leaves rules untouched")
}

func TestRuleBook_RejectsInvalidRules(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	bad := models.DefaultRuleSet()
	bad.DailyLossLimit = dec("-1")
	assert.ErrorIs(t, e.rules.Save(ctx, bad), apperrors.ErrInvalidRules)

	_, err := e.rules.Update(ctx, func(r *models.RuleSet) error {
		r.MaxOpenTickers = -3
		return nil
	})
	assert.ErrorIs(t, err, apperrors.ErrInvalidRules)

	updated, err := e.rules.Update(ctx, func(r *models.RuleSet) error {
		r.MaxDollarPerTrade = dec("2500")
		return nil
	})
	require.NoError(t, err)
	assert.True(t, updated.MaxDollarPerTrade.Equal(dec("2500")))

	require.NoError(t, e.rules.Reset(ctx))
	rules, err := e.rules.Rules(ctx)
	require.NoError(t, err)
	assert.True(t, rules.Equal(models.DefaultRuleSet()))
}

func TestEnforcer_MaxDollarExample(t *testing.T) {
	e := newEngine(t)

	result, err := e.enforcer.ValidateTrade(context.Background(), models.TradeRequest{
		Symbol: "NVDA", Quantity: 40, Price: dec("150"), OrderType: models.OrderTypeLimit,
	})
	require.NoError(t, err)
	require.False(t, result.IsValid)
	require.Len(t, result.Violations, 1)

	v, ok := result.Violations[0].(models.MaxDollarPerTradeExceeded)
	require.True(t, ok)
	assert.True(t, v.Limit.Equal(dec("5000")))
	assert.True(t, v.TradeValue.Equal(dec("6000")))
	assert.Equal(t, 33, v.MaxShares)
	assert.Equal(t, "❌ Position Size Too Large\nMax per trade: $5000.00\nYour trade: $6000.00\nMax shares: 33", result.ErrorMessage)
}

func TestEnforcer_MaxTickersExample(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	for _, sym := range []string{"A", "B", "C", "D", "E"} {
		require.NoError(t, e.ledger.UpdatePosition(ctx, pos(sym, 1, "10", "10")))
	}
	require.NoError(t, e.ledger.SetMarketOpenValue(ctx, dec("50")))

	result, err := e.enforcer.ValidateTrade(ctx, models.TradeRequest{
		Symbol: "F", Quantity: 1, Price: dec("10"), OrderType: models.OrderTypeLimit,
	})
	require.NoError(t, err)
	require.Len(t, result.Violations, 1)
	assert.Equal(t, models.MaxTickersExceeded{Limit: 5, CurrentCount: 5}, result.Violations[0])

	result, err = e.enforcer.ValidateTrade(ctx, models.TradeRequest{
		Symbol: "C", Quantity: 1, Price: dec("10"), OrderType: models.OrderTypeLimit,
	})
	require.NoError(t, err)
	assert.True(t, result.IsValid)
	assert.Empty(t, result.Violations)
}

func TestEnforcer_LimitOrderRequired(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	require.NoError(t, e.ledger.UpdatePosition(ctx, pos("AAPL", 10, "100", "100")))
	require.NoError(t, e.ledger.SetMarketOpenValue(ctx, dec("1000")))

	result, err := e.enforcer.ValidateTrade(ctx, models.TradeRequest{
		Symbol: "aapl", Quantity: 5, Price: dec("100"), OrderType: models.OrderTypeMarket,
	})
	require.NoError(t, err)
	require.Len(t, result.Violations, 1)
	assert.Equal(t, models.LimitOrderRequired{Symbol: "AAPL"}, result.Violations[0])
	assert.Equal(t, "❌ Limit Order Required\nYou have an existing AAPL position.\nAdding to positions requires LIMIT orders.", result.ErrorMessage)
}

// seedLoss leaves the book with a total P&L of -600.
func seedLoss(t *testing.T, e *engine) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, e.ledger.Seed(ctx, []models.Position{pos("AAPL", 10, "100", "40")}))
}

func TestEnforcer_LiquidationExample(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	seedLoss(t, e)

	pnl, err := e.enforcer.CurrentDailyPnL(ctx)
	require.NoError(t, err)
	assert.True(t, pnl.TotalPnL.Equal(dec("-600")), "got %s", pnl.TotalPnL)

	liquidation, err := e.enforcer.IsLiquidationOnlyMode(ctx)
	require.NoError(t, err)
	assert.True(t, liquidation)

	// Opening trade that also breaks max dollar and max tickers.
	rules := models.DefaultRuleSet()
	rules.MaxOpenTickers = 1
	require.NoError(t, e.rules.Save(ctx, rules))

	result, err := e.enforcer.ValidateTrade(ctx, models.TradeRequest{
		Symbol: "TSLA", Quantity: 100, Price: dec("200"), OrderType: models.OrderTypeMarket,
	})
	require.NoError(t, err)
	require.Equal(t, []string{
		string(models.RuleDailyLossLimit),
		string(models.RuleMaxDollarPerTrade),
		string(models.RuleMaxOpenTickers),
	}, result.Rules())

	loss := result.Violations[0].(models.DailyLossLimitExceeded)
	assert.True(t, loss.Limit.Equal(dec("500")))
	assert.True(t, loss.CurrentLoss.Equal(dec("600")))
	assert.Contains(t, result.ErrorMessage, "❌ Daily Loss Limit Exceeded\nLimit: -$500.00\nCurrent Loss: -$600.00\nOnly liquidations allowed today.\n\n❌ Position Size Too Large")

	// Disabling the rule turns the mode off.
	rules.DailyLossLimitEnabled = false
	require.NoError(t, e.rules.Save(ctx, rules))
	liquidation, err = e.enforcer.IsLiquidationOnlyMode(ctx)
	require.NoError(t, err)
	assert.False(t, liquidation)
}

func TestEnforcer_IsClosingTrade(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	require.NoError(t, e.ledger.UpdatePosition(ctx, pos("LONG", 10, "1", "1")))
	require.NoError(t, e.ledger.UpdatePosition(ctx, pos("SHORT", -10, "1", "1")))

	tests := []struct {
		symbol string
		qty    int
		want   bool
	}{
		{"LONG", -5, true},
		{"LONG", 5, false},
		{"SHORT", 5, true},
		{"SHORT", -5, false},
		{"NONE", -5, false},
		{"long", -1, true},
	}
	for _, tt := range tests {
		got, err := e.enforcer.IsClosingTrade(ctx, tt.symbol, tt.qty)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%s %d", tt.symbol, tt.qty)
	}
}

func TestEnforcer_SuggestedAction(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	require.NoError(t, e.ledger.UpdatePosition(ctx, pos("LONG", 10, "1", "1")))
	require.NoError(t, e.ledger.UpdatePosition(ctx, pos("SHORT", -7, "1", "1")))
	require.NoError(t, e.ledger.SetMarketOpenValue(ctx, dec("3")))

	cases := map[string]string{
		"LONG":  "Existing long position: 10 shares\nUse LIMIT orders to add",
		"SHORT": "Existing short position: 7 shares\nUse LIMIT orders to add",
		"NONE":  "No existing position",
	}
	for sym, want := range cases {
		got, err := e.enforcer.SuggestedAction(ctx, sym)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	// Starting value far above current value: deep in loss.
	require.NoError(t, e.ledger.SetMarketOpenValue(ctx, dec("10000")))
	cases = map[string]string{
		"LONG":  "Liquidation-only mode: You can SELL 10 shares",
		"SHORT": "Liquidation-only mode: You can BUY TO COVER 7 shares",
		"NONE":  "Liquidation-only mode: Cannot open new positions",
	}
	for sym, want := range cases {
		got, err := e.enforcer.SuggestedAction(ctx, sym)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestEnforcer_MalformedRequestsFailClosed(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	requests := []models.TradeRequest{
		{Symbol: "", Quantity: 1, Price: dec("1"), OrderType: models.OrderTypeLimit},
		{Symbol: "AAPL", Quantity: 0, Price: dec("1"), OrderType: models.OrderTypeLimit},
		{Symbol: "AAPL", Quantity: 1, Price: dec("0"), OrderType: models.OrderTypeLimit},
		{Symbol: "AAPL", Quantity: 1, Price: dec("-5"), OrderType: models.OrderTypeLimit},
		{Symbol: "AAPL", Quantity: 1, Price: dec("1"), OrderType: "ICEBERG"},
		{Symbol: "AAPL", Quantity: 1, Price: dec("1"), OrderType: "", IsClosingTrade: true},
		{Symbol: "AAPL", Quantity: math.MinInt, Price: dec("150"), OrderType: models.OrderTypeLimit},
		{Symbol: "AAPL", Quantity: models.MaxQuantity + 1, Price: dec("1"), OrderType: models.OrderTypeLimit},
	}
	for _, req := range requests {
		result, err := e.enforcer.ValidateTrade(ctx, req)
		assert.ErrorIs(t, err, apperrors.ErrInvalidTrade, "%+v", req)
		assert.False(t, result.IsValid, "%+v", req)
		assert.NotEmpty(t, result.ErrorMessage)
		assert.Empty(t, result.Violations)
	}

	_, err := e.ledger.AddTrade(ctx, models.Trade{Symbol: "AAPL", Quantity: math.MinInt, Price: dec("150")})
	assert.ErrorIs(t, err, apperrors.ErrInvalidTrade)
	err = e.ledger.UpdatePosition(ctx, pos("AAPL", math.MinInt, "1", "1"))
	assert.ErrorIs(t, err, apperrors.ErrInvalidPosition)
}

func TestDesk_ExecuteFillsAndRecords(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	exec, err := e.desk.Execute(ctx, models.TradeRequest{Symbol: "msft", Quantity: 10, Price: dec("100"), OrderType: models.OrderTypeLimit})
	require.NoError(t, err)
	require.True(t, exec.Filled())
	assert.Equal(t, 10, exec.Position.Quantity)

	exec, err = e.desk.Execute(ctx, models.TradeRequest{Symbol: "MSFT", Quantity: 10, Price: dec("120"), OrderType: models.OrderTypeLimit})
	require.NoError(t, err)
	require.True(t, exec.Filled())
	assert.True(t, exec.Position.AverageCost.Equal(dec("110")))

	// Selling is detected as closing even as a MARKET order.
	exec, err = e.desk.Execute(ctx, models.TradeRequest{Symbol: "MSFT", Quantity: -5, Price: dec("130"), OrderType: models.OrderTypeMarket})
	require.NoError(t, err)
	require.True(t, exec.Filled())
	assert.Equal(t, 15, exec.Position.Quantity)
	assert.True(t, exec.Position.AverageCost.Equal(dec("110")), "reducing keeps the average")

	trades, err := e.ledger.TodaysTrades(ctx)
	require.NoError(t, err)
	assert.Len(t, trades, 3)

	pnl, err := e.ledger.DailyPnL(ctx)
	require.NoError(t, err)
	assert.True(t, pnl.RealizedPnL.Equal(dec("100")), "5*130 - 5*110, got %s", pnl.RealizedPnL)

	// Flip through zero restarts the average at the fill price.
	exec, err = e.desk.Execute(ctx, models.TradeRequest{Symbol: "MSFT", Quantity: -20, Price: dec("90"), OrderType: models.OrderTypeLimit})
	require.NoError(t, err)
	require.True(t, exec.Filled())
	assert.Equal(t, -5, exec.Position.Quantity)
	assert.True(t, exec.Position.AverageCost.Equal(dec("90")))

	exec, err = e.desk.Flatten(ctx, "MSFT", dec("95"))
	require.NoError(t, err)
	require.True(t, exec.Filled())
	assert.Nil(t, exec.Position)
	has, err := e.ledger.HasPosition(ctx, "MSFT")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestDesk_RejectedTradesWriteNothing(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	exec, err := e.desk.Execute(ctx, models.TradeRequest{Symbol: "AMZN", Quantity: 1000, Price: dec("150"), OrderType: models.OrderTypeLimit})
	require.NoError(t, err)
	assert.False(t, exec.Filled())
	assert.False(t, exec.Result.IsValid)

	trades, err := e.ledger.TodaysTrades(ctx)
	require.NoError(t, err)
	assert.Empty(t, trades)
	has, err := e.ledger.HasPosition(ctx, "AMZN")
	require.NoError(t, err)
	assert.False(t, has)

	_, err = e.desk.Flatten(ctx, "AMZN", dec("1"))
	assert.ErrorIs(t, err, apperrors.ErrPositionNotFound)
}

func TestDesk_LiquidationAllowsClosingOnly(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	seedLoss(t, e)

	exec, err := e.desk.Execute(ctx, models.TradeRequest{Symbol: "AAPL", Quantity: 1, Price: dec("40"), OrderType: models.OrderTypeLimit})
	require.NoError(t, err)
	assert.False(t, exec.Filled())

	exec, err = e.desk.Execute(ctx, models.TradeRequest{Symbol: "AAPL", Quantity: -10, Price: dec("40"), OrderType: models.OrderTypeMarket})
	require.NoError(t, err)
	assert.True(t, exec.Filled())
}

// totalPnL compares market value with the opening value, so fills move it by
// their notional until the day is re-baselined.
func TestDesk_FillsMoveTotalPnLByNotional(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	exec, err := e.desk.Execute(ctx, models.TradeRequest{Symbol: "AAPL", Quantity: 10, Price: dec("100"), OrderType: models.OrderTypeMarket})
	require.NoError(t, err)
	require.True(t, exec.Filled())
	pnl, err := e.ledger.DailyPnL(ctx)
	require.NoError(t, err)
	assert.True(t, pnl.TotalPnL.Equal(dec("1000")), "a buy shows as a gain, got %s", pnl.TotalPnL)

	// The short sale is realized at zero cost and offsets its negative
	// market value.
	exec, err = e.desk.Execute(ctx, models.TradeRequest{Symbol: "TSLA", Quantity: -10, Price: dec("100"), OrderType: models.OrderTypeMarket})
	require.NoError(t, err)
	require.True(t, exec.Filled())
	pnl, err = e.ledger.DailyPnL(ctx)
	require.NoError(t, err)
	assert.True(t, pnl.RealizedPnL.Equal(dec("1000")), "got %s", pnl.RealizedPnL)
	assert.True(t, pnl.TotalPnL.Equal(dec("1000")), "got %s", pnl.TotalPnL)

	exec, err = e.desk.Execute(ctx, models.TradeRequest{Symbol: "TSLA", Quantity: 10, Price: dec("100"), OrderType: models.OrderTypeMarket})
	require.NoError(t, err)
	require.True(t, exec.Filled())
	assert.True(t, exec.Result.IsValid)
	pnl, err = e.ledger.DailyPnL(ctx)
	require.NoError(t, err)
	assert.True(t, pnl.TotalPnL.Equal(dec("2000")), "covering keeps the realized sale, got %s", pnl.TotalPnL)

	require.NoError(t, e.ledger.ResetDailyData(ctx))
	pnl, err = e.ledger.DailyPnL(ctx)
	require.NoError(t, err)
	assert.True(t, pnl.TotalPnL.IsZero(), "got %s", pnl.TotalPnL)
}

// A short entered without a trade counts its whole notional against the
// opening value.
func TestLedger_ShortWithoutTradeTriggersLiquidation(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	require.NoError(t, e.ledger.UpdatePosition(ctx, pos("TSLA", -10, "100", "100")))
	liquidation, err := e.enforcer.IsLiquidationOnlyMode(ctx)
	require.NoError(t, err)
	assert.True(t, liquidation)

	require.NoError(t, e.ledger.ResetDailyData(ctx))
	liquidation, err = e.enforcer.IsLiquidationOnlyMode(ctx)
	require.NoError(t, err)
	assert.False(t, liquidation)
}

func TestLockClock_Boundaries(t *testing.T) {
	ny := utils.EasternLocation()
	lock := NewMarketLockClock(SystemClock{})

	assert.False(t, lock.IsLockedAt(time.Date(2024, 3, 11, 9, 29, 59, 0, ny)))
	assert.True(t, lock.IsLockedAt(time.Date(2024, 3, 11, 9, 30, 0, 0, ny)))
	assert.True(t, lock.IsLockedAt(time.Date(2024, 3, 11, 23, 59, 59, 0, ny)))
	assert.False(t, lock.IsLockedAt(time.Date(2024, 3, 12, 0, 0, 0, 0, ny)))
	for h := 0; h < 24; h++ {
		assert.False(t, lock.IsLockedAt(time.Date(2024, 3, 9, h, 45, 0, 0, ny)), "saturday %d:45", h)
		assert.False(t, lock.IsLockedAt(time.Date(2024, 3, 10, h, 45, 0, 0, ny)), "sunday %d:45", h)
	}
}

func TestLockClock_IgnoresHostZone(t *testing.T) {
	lock := NewMarketLockClock(SystemClock{})

	// 14:29:59 UTC is 09:29:59 EST in winter.
	assert.False(t, lock.IsLockedAt(time.Date(2024, 1, 8, 14, 29, 59, 0, time.UTC)))
	assert.True(t, lock.IsLockedAt(time.Date(2024, 1, 8, 14, 30, 0, 0, time.UTC)))

	// Saturday 02:00 UTC is still Friday evening in New York.
	assert.True(t, lock.IsLockedAt(time.Date(2024, 1, 13, 2, 0, 0, 0, time.UTC)))

	tokyo := time.FixedZone("JST", 9*3600)
	// Monday 23:00 JST is Monday 09:00 EST.
	assert.False(t, lock.IsLockedAt(time.Date(2024, 1, 8, 23, 0, 0, 0, tokyo)))
}

func TestLockClock_StatusText(t *testing.T) {
	ny := utils.EasternLocation()
	clock := NewFixedClock(time.Date(2024, 3, 9, 14, 5, 0, 0, ny))
	lock := NewMarketLockClock(clock)

	assert.Equal(t, "Weekend - Edit anytime | Current: 2:05 PM EST", lock.StatusText())

	clock.Set(time.Date(2024, 3, 11, 8, 15, 0, 0, ny))
	assert.Equal(t, "Editable until 9:30 AM EDT | Current: 8:15 AM EDT", lock.StatusText())

	clock.Set(time.Date(2024, 3, 11, 10, 0, 0, 0, ny))
	assert.Equal(t, "Locked until midnight | Current: 10:00 AM EDT", lock.StatusText())
	assert.True(t, lock.IsLocked())

	next := lock.NextUnlock(clock.Now())
	assert.Equal(t, time.Date(2024, 3, 12, 0, 0, 0, 0, ny), next)
	assert.Equal(t, time.Date(2024, 3, 12, 9, 30, 0, 0, ny), lock.NextLock(clock.Now()))
}
