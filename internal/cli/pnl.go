package cli

import (
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"tradeguard/pkg/utils"
)

func newPnLCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pnl",
		Short: "Show today's P&L and loss-limit status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showPnL(cmd, app)
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show today's P&L",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showPnL(cmd, app)
		},
	})
	cmd.AddCommand(newPnLOpenValueCmd(app))
	cmd.AddCommand(newPnLResetCmd(app))
	cmd.AddCommand(newPnLTradesCmd(app))

	return cmd
}

func showPnL(cmd *cobra.Command, app *App) error {
	output := NewOutput(cmd)
	ctx := cmd.Context()

	if err := rollOver(cmd, app, output); err != nil {
		return err
	}

	pnl, err := app.Enforcer.CurrentDailyPnL(ctx)
	if err != nil {
		return err
	}
	rules, err := app.Rules.Rules(ctx)
	if err != nil {
		return err
	}
	liquidation, err := app.Enforcer.IsLiquidationOnlyMode(ctx)
	if err != nil {
		return err
	}

	if output.IsJSON() {
		return output.JSON(map[string]interface{}{
			"pnl":              pnl,
			"loss_limit":       rules.DailyLossLimit,
			"loss_limit_on":    rules.DailyLossLimitEnabled,
			"liquidation_only": liquidation,
		})
	}

	if liquidation {
		output.Banner("error", "LIQUIDATION ONLY\nDaily loss limit exceeded. Only closing trades are allowed.")
		output.Println()
	}

	output.Bold("Today's P&L")
	output.Printf("  Total:        %s\n", output.FormatPnL(pnl.TotalPnL))
	output.Printf("  Realized:     %s\n", output.FormatPnL(pnl.RealizedPnL))
	output.Printf("  Unrealized:   %s\n", output.FormatPnL(pnl.UnrealizedPnL))
	output.Println()
	output.Printf("  Open value:   %s\n", utils.FormatUSD(pnl.StartingValue))
	output.Printf("  Market value: %s\n", utils.FormatUSD(pnl.CurrentValue))

	if rules.DailyLossLimitEnabled && rules.DailyLossLimit.IsPositive() {
		used := decimal.Zero
		if pnl.TotalPnL.IsNegative() {
			used = pnl.TotalPnL.Neg().Div(rules.DailyLossLimit).Mul(decimal.NewFromInt(100))
		}
		output.Println()
		output.Printf("  Loss limit:   -%s (%s used)\n", utils.FormatUSD(rules.DailyLossLimit), utils.FormatPercent(used))
	}
	return nil
}

// rollOver starts a new trading day when the calendar date has changed since
// the last reset, so trades are judged against today's log and opening value.
func rollOver(cmd *cobra.Command, app *App, output *Output) error {
	reset, err := app.Ledger.CheckAndResetIfNeeded(cmd.Context())
	if err != nil {
		return err
	}
	if reset {
		app.audited(app.Audit.LedgerChange(cmd.Context(), "reset", "", map[string]interface{}{"automatic": true}))
		if !output.IsJSON() {
			output.Dim("New trading day: daily data reset")
		}
	}
	return nil
}

func newPnLOpenValueCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "open-value AMOUNT",
		Short: "Set today's market-open portfolio value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			value, err := parseAmount("MarketOpenValue", args[0])
			if err != nil {
				return err
			}
			if err := app.Ledger.SetMarketOpenValue(cmd.Context(), value); err != nil {
				return err
			}
			app.audited(app.Audit.LedgerChange(cmd.Context(), "open-value", "", map[string]interface{}{"market_open_value": value.String()}))
			if output.IsJSON() {
				return output.JSON(map[string]string{"market_open_value": value.StringFixed(2)})
			}
			output.Success("✓ Market-open value set to %s", utils.FormatUSD(value))
			return nil
		},
	}
}

func newPnLResetCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Start a new trading day now",
		Long: `Clear today's trades and set the market-open value to the current market
value of open positions.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Ledger.ResetDailyData(cmd.Context()); err != nil {
				return err
			}
			pnl, err := app.Ledger.DailyPnL(cmd.Context())
			if err != nil {
				return err
			}
			app.audited(app.Audit.LedgerChange(cmd.Context(), "reset", "", map[string]interface{}{"market_open_value": pnl.StartingValue.String()}))
			if output.IsJSON() {
				return output.JSON(pnl)
			}
			output.Success("✓ Daily data reset, open value %s", utils.FormatUSD(pnl.StartingValue))
			return nil
		},
	}
}

func newPnLTradesCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "trades",
		Short: "List today's trades",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			trades, err := app.Ledger.TodaysTrades(cmd.Context())
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(trades)
			}
			if len(trades) == 0 {
				output.Dim("No trades today")
				return nil
			}

			table := NewTable(output, "TIME", "SYMBOL", "SIDE", "QTY", "PRICE", "VALUE", "ID")
			for _, t := range trades {
				table.AddRow(formatTradeRow(t)...)
			}
			table.Render()
			return nil
		},
	}
}
