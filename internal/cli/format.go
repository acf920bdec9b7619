package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	apperrors "tradeguard/internal/errors"
	"tradeguard/internal/models"
	"tradeguard/pkg/utils"
)

// parseAmount parses a dollar amount, accepting a leading $ and separators.
func parseAmount(field, s string) (decimal.Decimal, error) {
	clean := strings.NewReplacer("$", "", ",", "", "_", "").Replace(strings.TrimSpace(s))
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Decimal{}, apperrors.NewValidationError(apperrors.ErrInvalidTrade, field, s, "is not a number")
	}
	return d, nil
}

// parseShares parses a whole share count. The sign is kept.
func parseShares(s string) (int, error) {
	n, err := strconv.Atoi(strings.ReplaceAll(strings.TrimSpace(s), ",", ""))
	if err != nil {
		return 0, apperrors.NewValidationError(apperrors.ErrInvalidTrade, "Quantity", s, "must be a whole number of shares")
	}
	return n, nil
}

// signedQuantity applies a buy/sell side to an unsigned share count. A
// quantity that already carries a sign is returned as is.
func signedQuantity(qty int, side string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(side)) {
	case "", "buy", "b", "cover":
		return qty, nil
	case "sell", "s", "short":
		if qty < 0 {
			return qty, nil
		}
		return -qty, nil
	default:
		return 0, apperrors.NewValidationError(apperrors.ErrInvalidTrade, "Side", side, "must be buy or sell")
	}
}

// formatPositionRow renders one position as table cells.
func formatPositionRow(o *Output, p models.Position) []string {
	side := "LONG"
	if p.IsShort() {
		side = "SHORT"
	}
	return []string{
		p.Symbol,
		side,
		utils.FormatShares(p.Quantity),
		utils.FormatUSD(p.AverageCost),
		utils.FormatUSD(p.CurrentPrice),
		utils.FormatUSD(p.MarketValue()),
		o.FormatPnL(p.UnrealizedPnL()),
	}
}

func formatTradeRow(t models.Trade) []string {
	return []string{
		t.Timestamp.Format("15:04:05"),
		t.Symbol,
		string(models.SideOf(t.Quantity)),
		utils.FormatShares(abs(t.Quantity)),
		utils.FormatUSD(t.Price),
		utils.FormatUSD(t.Value()),
		t.ID,
	}
}

func onOff(enabled bool) string {
	if enabled {
		return "on"
	}
	return "off"
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
