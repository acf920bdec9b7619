package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	apperrors "tradeguard/internal/errors"
	"tradeguard/internal/models"
	"tradeguard/internal/trading"
	"tradeguard/pkg/utils"
)

// errTradeRejected is returned when a trade breaks one or more rules, so the
// process exits non-zero after the violations are printed.
var errTradeRejected = errors.New("trade rejected by rules")

// orderFlags holds the flags shared by check and execute.
type orderFlags struct {
	side      string
	orderType string
	closing   bool
}

func (f *orderFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.side, "side", "s", "buy", "buy or sell")
	cmd.Flags().StringVarP(&f.orderType, "type", "t", "MARKET", "order type: MARKET, LIMIT or STOP")
	cmd.Flags().BoolVar(&f.closing, "closing", false, "treat as a closing trade (detected from the ledger otherwise)")
}

// request builds a trade request from SYMBOL QTY PRICE arguments.
func (f *orderFlags) request(args []string) (models.TradeRequest, error) {
	qty, err := parseShares(args[1])
	if err != nil {
		return models.TradeRequest{}, err
	}
	qty, err = signedQuantity(qty, f.side)
	if err != nil {
		return models.TradeRequest{}, err
	}
	price, err := parseAmount("Price", args[2])
	if err != nil {
		return models.TradeRequest{}, err
	}
	orderType, ok := models.ParseOrderType(f.orderType)
	if !ok {
		return models.TradeRequest{}, apperrors.NewValidationError(apperrors.ErrInvalidTrade, "OrderType", f.orderType, "must be MARKET, LIMIT or STOP")
	}

	return models.TradeRequest{
		Symbol:         models.NormalizeSymbol(args[0]),
		Quantity:       qty,
		Price:          price,
		OrderType:      orderType,
		IsClosingTrade: f.closing,
	}, nil
}

func newTradeCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trade",
		Short: "Check and record trades against the rules",
		Long: `Check proposed trades against the rules and record accepted ones.

Quantities are share counts; --side sell makes them negative. Trades that
reduce an existing position are closing trades and always pass.`,
	}

	cmd.AddCommand(newTradeCheckCmd(app))
	cmd.AddCommand(newTradeExecuteCmd(app))
	cmd.AddCommand(newTradeSuggestCmd(app))
	cmd.AddCommand(newTradeFlattenCmd(app))

	return cmd
}

func newTradeCheckCmd(app *App) *cobra.Command {
	var flags orderFlags

	cmd := &cobra.Command{
		Use:   "check SYMBOL QTY PRICE",
		Short: "Validate a trade without recording it",
		Example: `  tradeguard trade check AAPL 100 150 --type LIMIT
  tradeguard trade check TSLA 20 220 --side sell`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			req, err := flags.request(args)
			if err != nil {
				return err
			}
			if err := rollOver(cmd, app, output); err != nil {
				return err
			}

			if !req.IsClosingTrade {
				closing, err := app.Enforcer.IsClosingTrade(cmd.Context(), req.Symbol, req.Quantity)
				if err != nil {
					return err
				}
				req.IsClosingTrade = closing
			}

			result, err := app.Enforcer.ValidateTrade(cmd.Context(), req)
			app.audited(app.Audit.TradeDecision(cmd.Context(), req, result, err))
			if err != nil {
				return err
			}

			if output.IsJSON() {
				if err := output.JSON(map[string]interface{}{"request": req, "result": result}); err != nil {
					return err
				}
			} else {
				output.Bold("%s", describeOrder(req))
				renderResult(output, result)
			}
			if !result.IsValid {
				return errTradeRejected
			}
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}

func newTradeExecuteCmd(app *App) *cobra.Command {
	var flags orderFlags

	cmd := &cobra.Command{
		Use:     "execute SYMBOL QTY PRICE",
		Aliases: []string{"exec", "fill"},
		Short:   "Validate a trade and record the fill",
		Long: `Validate a trade and, if it passes, record it in today's trades and apply
it to the position at PRICE. No order is sent to a broker.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			req, err := flags.request(args)
			if err != nil {
				return err
			}
			if err := rollOver(cmd, app, output); err != nil {
				return err
			}
			if !req.IsClosingTrade {
				if req.IsClosingTrade, err = app.Enforcer.IsClosingTrade(cmd.Context(), req.Symbol, req.Quantity); err != nil {
					return err
				}
			}

			exec, err := app.Desk.Execute(cmd.Context(), req)
			auditExecution(cmd, app, req, exec, err)
			if err != nil {
				return err
			}
			return renderExecution(output, req, exec)
		},
	}

	flags.register(cmd)
	return cmd
}

func newTradeSuggestCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "suggest SYMBOL",
		Short: "Show what the rules allow for a symbol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			symbol := models.NormalizeSymbol(args[0])
			if err := rollOver(cmd, app, output); err != nil {
				return err
			}

			suggestion, err := app.Enforcer.SuggestedAction(cmd.Context(), symbol)
			if err != nil {
				return err
			}
			liquidation, err := app.Enforcer.IsLiquidationOnlyMode(cmd.Context())
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"symbol":           symbol,
					"suggestion":       suggestion,
					"liquidation_only": liquidation,
				})
			}

			output.Bold("%s", symbol)
			if liquidation {
				output.Warning("%s", suggestion)
			} else {
				output.Println(suggestion)
			}
			return nil
		},
	}
}

func newTradeFlattenCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "flatten SYMBOL PRICE",
		Short: "Close a whole position at PRICE",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			price, err := parseAmount("Price", args[1])
			if err != nil {
				return err
			}
			if err := rollOver(cmd, app, output); err != nil {
				return err
			}

			exec, err := app.Desk.Flatten(cmd.Context(), args[0], price)
			if err != nil {
				return err
			}
			req := models.TradeRequest{
				Symbol:         models.NormalizeSymbol(args[0]),
				Price:          price,
				OrderType:      models.OrderTypeLimit,
				IsClosingTrade: true,
			}
			if exec.Trade != nil {
				req.Quantity = exec.Trade.Quantity
			}
			auditExecution(cmd, app, req, exec, nil)
			return renderExecution(output, req, exec)
		},
	}
}

func auditExecution(cmd *cobra.Command, app *App, req models.TradeRequest, exec trading.Execution, err error) {
	if err != nil && !apperrors.Is(err, apperrors.ErrInvalidTrade) {
		return
	}
	app.audited(app.Audit.TradeDecision(cmd.Context(), req, exec.Result, err))
	if exec.Trade != nil {
		app.audited(app.Audit.TradeFilled(cmd.Context(), *exec.Trade))
	}
}

func renderExecution(output *Output, req models.TradeRequest, exec trading.Execution) error {
	if output.IsJSON() {
		if err := output.JSON(exec); err != nil {
			return err
		}
		if !exec.Filled() {
			return errTradeRejected
		}
		return nil
	}

	output.Bold("%s", describeOrder(req))
	renderResult(output, exec.Result)
	if !exec.Filled() {
		return errTradeRejected
	}

	output.Dim("Trade %s recorded", exec.Trade.ID)
	if exec.Position == nil {
		output.Info("%s position closed", exec.Trade.Symbol)
		return nil
	}
	p := exec.Position
	output.Info("%s now %s shares @ %s", p.Symbol, utils.FormatShares(p.Quantity), utils.FormatUSD(p.AverageCost))
	return nil
}

func renderResult(output *Output, result models.TradeValidationResult) {
	if result.IsValid {
		output.Success("✅ Trade allowed")
		return
	}
	output.Banner("error", fmt.Sprintf("Trade blocked: %s", plural(len(result.Violations), "rule violation")))
	for _, v := range result.Violations {
		output.Println()
		for _, line := range strings.Split(v.Message(), "\n") {
			output.Println(line)
		}
	}
}

// describeSide renders a signed quantity as an order description.
func describeSide(qty int, closing bool) string {
	switch {
	case qty > 0 && closing:
		return "BUY TO COVER"
	case qty < 0 && closing:
		return "SELL"
	case qty < 0:
		return "SELL SHORT"
	}
	return "BUY"
}

func describeOrder(req models.TradeRequest) string {
	return fmt.Sprintf("%s %s %s @ %s (%s)",
		describeSide(req.Quantity, req.IsClosingTrade),
		utils.FormatShares(abs(req.Quantity)),
		req.Symbol,
		utils.FormatUSD(req.Price),
		req.OrderType)
}
