package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	apperrors "tradeguard/internal/errors"
	"tradeguard/internal/models"
	"tradeguard/pkg/utils"
)

func newRulesCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "View and edit trading rules",
		Long: `View and edit the four trading rules.

Edits are refused on weekdays from the market open until midnight.`,
	}

	cmd.AddCommand(newRulesShowCmd(app))
	cmd.AddCommand(newRulesSetCmd(app))
	cmd.AddCommand(newRulesEditCmd(app))
	cmd.AddCommand(newRulesResetCmd(app))
	cmd.AddCommand(newRulesLockCmd(app))

	return cmd
}

func newRulesShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show current rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			rules, err := app.Rules.Rules(cmd.Context())
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"rules":       rules,
					"locked":      app.LockClock.IsLocked(),
					"lock_status": app.LockClock.StatusText(),
				})
			}

			renderLockStatus(output, app)
			output.Println()

			table := NewTable(output, "RULE", "LIMIT", "STATUS")
			table.AddRow("Daily loss limit", "-"+utils.FormatUSD(rules.DailyLossLimit), onOff(rules.DailyLossLimitEnabled))
			table.AddRow("Max $ per trade", utils.FormatUSD(rules.MaxDollarPerTrade), onOff(rules.MaxDollarPerTradeEnabled))
			table.AddRow("Limit orders when adding", "-", onOff(rules.LimitOrdersOnlyEnabled))
			table.AddRow("Max open tickers", strconv.Itoa(rules.MaxOpenTickers), onOff(rules.MaxOpenTickersEnabled))
			table.Render()
			return nil
		},
	}
}

func newRulesSetCmd(app *App) *cobra.Command {
	var (
		dailyLoss  string
		maxDollar  string
		maxTickers int
		enable     []string
		disable    []string
	)

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change individual rules",
		Example: `  tradeguard rules set --daily-loss 750
  tradeguard rules set --max-dollar 2500 --max-tickers 3
  tradeguard rules set --disable limit-orders`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			flags := cmd.Flags()

			if !flags.Changed("daily-loss") && !flags.Changed("max-dollar") && !flags.Changed("max-tickers") &&
				len(enable) == 0 && len(disable) == 0 {
				return fmt.Errorf("nothing to change: pass at least one rule flag")
			}

			updated, err := app.Rules.Update(cmd.Context(), func(r *models.RuleSet) error {
				if flags.Changed("daily-loss") {
					d, err := parseAmount("DailyLossLimit", dailyLoss)
					if err != nil {
						return err
					}
					r.DailyLossLimit = d
				}
				if flags.Changed("max-dollar") {
					d, err := parseAmount("MaxDollarPerTrade", maxDollar)
					if err != nil {
						return err
					}
					r.MaxDollarPerTrade = d
				}
				if flags.Changed("max-tickers") {
					r.MaxOpenTickers = maxTickers
				}
				for _, name := range enable {
					if err := setRuleEnabled(r, name, true); err != nil {
						return err
					}
				}
				for _, name := range disable {
					if err := setRuleEnabled(r, name, false); err != nil {
						return err
					}
				}
				return nil
			})
			app.audited(app.Audit.RulesChange(cmd.Context(), "set", updated, err))
			if err != nil {
				return rulesError(output, app, err)
			}

			if output.IsJSON() {
				return output.JSON(updated)
			}
			output.Success("✓ Rules saved")
			return nil
		},
	}

	cmd.Flags().StringVar(&dailyLoss, "daily-loss", "", "daily loss limit in dollars")
	cmd.Flags().StringVar(&maxDollar, "max-dollar", "", "max dollars per trade")
	cmd.Flags().IntVar(&maxTickers, "max-tickers", 0, "max open tickers")
	cmd.Flags().StringSliceVar(&enable, "enable", nil, "enable rules: daily-loss, max-dollar, limit-orders, max-tickers")
	cmd.Flags().StringSliceVar(&disable, "disable", nil, "disable rules: daily-loss, max-dollar, limit-orders, max-tickers")

	return cmd
}

func setRuleEnabled(r *models.RuleSet, name string, enabled bool) error {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "daily-loss", string(models.RuleDailyLossLimit):
		r.DailyLossLimitEnabled = enabled
	case "max-dollar", string(models.RuleMaxDollarPerTrade):
		r.MaxDollarPerTradeEnabled = enabled
	case "limit-orders", string(models.RuleLimitOrderOnly):
		r.LimitOrdersOnlyEnabled = enabled
	case "max-tickers", string(models.RuleMaxOpenTickers):
		r.MaxOpenTickersEnabled = enabled
	default:
		return apperrors.NewValidationError(apperrors.ErrInvalidRules, "Rule", name, "unknown rule")
	}
	return nil
}

func newRulesEditCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "edit",
		Short: "Edit all rules interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Rules.IsLocked() {
				app.audited(app.Audit.RulesChange(cmd.Context(), "edit", models.RuleSet{}, apperrors.ErrRulesLocked))
				return rulesError(output, app, apperrors.ErrRulesLocked)
			}

			current, err := app.Rules.Rules(cmd.Context())
			if err != nil {
				return err
			}

			edited, err := promptRules(current)
			if err != nil {
				return err
			}
			if edited.Equal(current) {
				output.Dim("No changes")
				return nil
			}

			err = app.Rules.Save(cmd.Context(), edited)
			app.audited(app.Audit.RulesChange(cmd.Context(), "edit", edited, err))
			if err != nil {
				return rulesError(output, app, err)
			}
			output.Success("✓ Rules saved")
			return nil
		},
	}
}

// promptRules walks the user through every rule, one toggle and one value at
// a time.
func promptRules(current models.RuleSet) (models.RuleSet, error) {
	r := current

	if err := survey.AskOne(&survey.Confirm{
		Message: "Enforce a daily loss limit?",
		Default: r.DailyLossLimitEnabled,
	}, &r.DailyLossLimitEnabled); err != nil {
		return current, err
	}
	if r.DailyLossLimitEnabled {
		d, err := promptAmount("Daily loss limit ($):", r.DailyLossLimit)
		if err != nil {
			return current, err
		}
		r.DailyLossLimit = d
	}

	if err := survey.AskOne(&survey.Confirm{
		Message: "Cap dollars per trade?",
		Default: r.MaxDollarPerTradeEnabled,
	}, &r.MaxDollarPerTradeEnabled); err != nil {
		return current, err
	}
	if r.MaxDollarPerTradeEnabled {
		d, err := promptAmount("Max dollars per trade ($):", r.MaxDollarPerTrade)
		if err != nil {
			return current, err
		}
		r.MaxDollarPerTrade = d
	}

	if err := survey.AskOne(&survey.Confirm{
		Message: "Require LIMIT orders when adding to a position?",
		Default: r.LimitOrdersOnlyEnabled,
	}, &r.LimitOrdersOnlyEnabled); err != nil {
		return current, err
	}

	if err := survey.AskOne(&survey.Confirm{
		Message: "Limit the number of open tickers?",
		Default: r.MaxOpenTickersEnabled,
	}, &r.MaxOpenTickersEnabled); err != nil {
		return current, err
	}
	if r.MaxOpenTickersEnabled {
		var s string
		err := survey.AskOne(&survey.Input{
			Message: "Max open tickers:",
			Default: strconv.Itoa(r.MaxOpenTickers),
		}, &s, survey.WithValidator(func(val interface{}) error {
			n, err := strconv.Atoi(strings.TrimSpace(val.(string)))
			if err != nil || n < 0 {
				return fmt.Errorf("enter a whole number, 0 or more")
			}
			return nil
		}))
		if err != nil {
			return current, err
		}
		r.MaxOpenTickers, _ = strconv.Atoi(strings.TrimSpace(s))
	}

	return r, nil
}

func promptAmount(message string, current decimal.Decimal) (decimal.Decimal, error) {
	var s string
	err := survey.AskOne(&survey.Input{
		Message: message,
		Default: current.StringFixed(2),
	}, &s, survey.WithValidator(func(val interface{}) error {
		d, err := parseAmount("amount", val.(string))
		if err != nil {
			return fmt.Errorf("enter a dollar amount")
		}
		if d.IsNegative() {
			return fmt.Errorf("amount cannot be negative")
		}
		return nil
	}))
	if err != nil {
		return current, err
	}
	return parseAmount("amount", s)
}

func newRulesResetCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Restore default rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			err := app.Rules.Reset(cmd.Context())
			app.audited(app.Audit.RulesChange(cmd.Context(), "reset", models.DefaultRuleSet(), err))
			if err != nil {
				return rulesError(output, app, err)
			}
			if output.IsJSON() {
				return output.JSON(models.DefaultRuleSet())
			}
			output.Success("✓ Rules reset to defaults")
			return nil
		},
	}
}

func newRulesLockCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "lock",
		Short: "Show whether rules can be edited right now",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			now := app.LockClock.Now()
			locked := app.LockClock.IsLockedAt(now)

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"locked":      locked,
					"status":      app.LockClock.StatusTextAt(now),
					"next_lock":   app.LockClock.NextLock(now),
					"next_unlock": app.LockClock.NextUnlock(now),
					"time_zone":   app.LockClock.Location().String(),
				})
			}

			renderLockStatus(output, app)
			if locked {
				output.Dim("Unlocks %s", app.LockClock.NextUnlock(now).Format("Mon Jan 2 3:04 PM MST"))
			} else {
				output.Dim("Next lock %s", app.LockClock.NextLock(now).Format("Mon Jan 2 3:04 PM MST"))
			}
			return nil
		},
	}
}

func renderLockStatus(output *Output, app *App) {
	if app.LockClock.IsLocked() {
		output.Error("🔒 Rules Locked")
	} else {
		output.Success("🔓 Rules Unlocked")
	}
	output.Dim("%s", app.LockClock.StatusText())
}

// rulesError renders a failed rule change and passes the error on.
func rulesError(output *Output, app *App, err error) error {
	if apperrors.Is(err, apperrors.ErrRulesLocked) && !output.IsJSON() {
		output.Banner("error", "Locked - Cannot Save Until Market Close\n"+app.LockClock.StatusText())
	}
	return err
}
