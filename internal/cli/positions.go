package cli

import (
	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"tradeguard/internal/models"
	"tradeguard/internal/trading"
	"tradeguard/pkg/utils"
)

func newPositionsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "positions",
		Aliases: []string{"pos"},
		Short:   "Manage the position ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listPositions(cmd, app)
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List open positions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listPositions(cmd, app)
		},
	})
	cmd.AddCommand(newPositionsSetCmd(app))
	cmd.AddCommand(newPositionsMarkCmd(app))
	cmd.AddCommand(newPositionsRemoveCmd(app))
	cmd.AddCommand(newPositionsSeedCmd(app))
	cmd.AddCommand(newPositionsClearCmd(app))

	return cmd
}

func listPositions(cmd *cobra.Command, app *App) error {
	output := NewOutput(cmd)
	positions, err := app.Ledger.Positions(cmd.Context())
	if err != nil {
		return err
	}

	if output.IsJSON() {
		return output.JSON(positions)
	}

	if len(positions) == 0 {
		output.Dim("No open positions")
		return nil
	}

	table := NewTable(output, "SYMBOL", "SIDE", "QTY", "AVG COST", "PRICE", "VALUE", "UNREALIZED")
	for _, p := range positions {
		table.AddRow(formatPositionRow(output, p)...)
	}
	table.Render()

	output.Println()
	output.Printf("%s open, market value %s\n", plural(len(positions), "ticker"), utils.FormatUSD(trading.MarketValueOf(positions)))
	return nil
}

func newPositionsSetCmd(app *App) *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "set SYMBOL QTY AVG_COST [PRICE]",
		Short: "Create or replace a position",
		Long: `Create or replace a position. A quantity of 0 removes it.

PRICE defaults to AVG_COST. Use --short or a negative QTY for short positions.`,
		Example: `  tradeguard positions set AAPL 100 182.50
  tradeguard positions set TSLA 25 230 224.90 --short`,
		Args: cobra.RangeArgs(3, 4),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			qty, err := parseShares(args[1])
			if err != nil {
				return err
			}
			if short && qty > 0 {
				qty = -qty
			}
			avg, err := parseAmount("AverageCost", args[2])
			if err != nil {
				return err
			}
			price := avg
			if len(args) == 4 {
				if price, err = parseAmount("CurrentPrice", args[3]); err != nil {
					return err
				}
			}

			pos := models.Position{
				Symbol:       args[0],
				Quantity:     qty,
				AverageCost:  avg,
				CurrentPrice: price,
			}
			if err := app.Ledger.UpdatePosition(cmd.Context(), pos); err != nil {
				return err
			}

			symbol := models.NormalizeSymbol(args[0])
			app.audited(app.Audit.LedgerChange(cmd.Context(), "set", symbol, map[string]interface{}{
				"quantity":      qty,
				"average_cost":  avg.String(),
				"current_price": price.String(),
			}))
			if output.IsJSON() {
				saved, err := app.Ledger.Position(cmd.Context(), symbol)
				if err != nil {
					return err
				}
				return output.JSON(map[string]interface{}{"symbol": symbol, "position": saved})
			}
			if qty == 0 {
				output.Success("✓ %s removed", symbol)
				return nil
			}
			output.Success("✓ %s set to %s shares @ %s", symbol, utils.FormatShares(qty), utils.FormatUSD(avg))
			return nil
		},
	}

	cmd.Flags().BoolVar(&short, "short", false, "record a short position")
	return cmd
}

func newPositionsMarkCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "mark SYMBOL PRICE",
		Short: "Update the current price of a position",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			price, err := parseAmount("CurrentPrice", args[1])
			if err != nil {
				return err
			}
			if err := app.Ledger.MarkPrice(cmd.Context(), args[0], price); err != nil {
				return err
			}
			app.audited(app.Audit.LedgerChange(cmd.Context(), "mark", models.NormalizeSymbol(args[0]),
				map[string]interface{}{"current_price": price.String()}))

			pos, err := app.Ledger.Position(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(pos)
			}
			output.Success("✓ %s marked at %s", pos.Symbol, utils.FormatUSD(price))
			output.Printf("  Unrealized: %s\n", output.FormatPnL(pos.UnrealizedPnL()))
			return nil
		},
	}
}

func newPositionsRemoveCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "remove SYMBOL",
		Aliases: []string{"rm"},
		Short:   "Remove a position without recording a trade",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Ledger.RemovePosition(cmd.Context(), args[0]); err != nil {
				return err
			}
			symbol := models.NormalizeSymbol(args[0])
			app.audited(app.Audit.LedgerChange(cmd.Context(), "remove", symbol, nil))
			if output.IsJSON() {
				return output.JSON(map[string]string{"removed": symbol})
			}
			output.Success("✓ %s removed", symbol)
			return nil
		},
	}
}

func newPositionsSeedCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Replace positions with a sample portfolio",
		Long: `Replace all positions with a small sample portfolio and set today's
market-open value to its cost basis. Today's trades are kept.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Ledger.Seed(cmd.Context(), trading.SamplePositions()); err != nil {
				return err
			}
			app.audited(app.Audit.LedgerChange(cmd.Context(), "seed", "", nil))
			if output.IsJSON() {
				positions, err := app.Ledger.Positions(cmd.Context())
				if err != nil {
					return err
				}
				return output.JSON(positions)
			}
			output.Success("✓ Seeded %s", plural(len(trading.SamplePositions()), "position"))
			return listPositions(cmd, app)
		},
	}
}

func newPositionsClearCmd(app *App) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all positions, trades and daily state",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			if !yes {
				confirmed := false
				prompt := &survey.Confirm{
					Message: "Delete all positions and today's trades?",
					Default: false,
				}
				if err := survey.AskOne(prompt, &confirmed); err != nil {
					return err
				}
				if !confirmed {
					output.Dim("Cancelled")
					return nil
				}
			}

			if err := app.Ledger.ClearAll(cmd.Context()); err != nil {
				return err
			}
			app.audited(app.Audit.LedgerChange(cmd.Context(), "clear", "", nil))
			if output.IsJSON() {
				return output.JSON(map[string]bool{"cleared": true})
			}
			output.Success("✓ Ledger cleared")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation")
	return cmd
}
