// Package cli provides the command-line interface for tradeguard.
package cli

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"tradeguard/internal/audit"
	"tradeguard/internal/config"
	"tradeguard/internal/logging"
	"tradeguard/internal/store"
	"tradeguard/internal/trading"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2024-03-01"
)

// App holds the application dependencies.
type App struct {
	Config    *config.Config
	ConfigDir string
	Logger    zerolog.Logger
	Clock     trading.Clock
	Store     store.Store
	LockClock *trading.LockClock
	Ledger    *trading.Ledger
	Rules     *trading.RuleBook
	Enforcer  *trading.Enforcer
	Desk      *trading.Desk
	Audit     *audit.Trail

	ownsStore bool
	ownsAudit bool
}

// Open wires the engine over the configured store. A store already set on
// the app is reused and left open by Close.
func (a *App) Open() error {
	if a.Clock == nil {
		a.Clock = trading.SystemClock{}
	}

	loc, err := a.Config.Location()
	if err != nil {
		return err
	}
	hour, minute, err := a.Config.LockTime()
	if err != nil {
		return err
	}

	if a.Store == nil {
		s, err := store.Open(a.Config.Store.Driver, a.Config.Store.Path)
		if err != nil {
			return fmt.Errorf("opening %s store: %w", a.Config.Store.Driver, err)
		}
		a.Store = s
		a.ownsStore = true
		a.Logger.Debug().Str("driver", a.Config.Store.Driver).Str("path", a.Config.Store.Path).Msg("Store opened")
	}

	if a.Audit == nil {
		trail, err := audit.Open(a.Config.Audit)
		if err != nil {
			return err
		}
		a.Audit = trail
		a.ownsAudit = true
	}

	a.LockClock = trading.NewLockClock(a.Clock, loc, hour, minute)
	a.LockClock.SetTimeFormat(a.Config.UI.TimeFormat)
	a.Ledger = trading.NewLedger(a.Store, a.Clock, loc, a.Logger)
	a.Rules = trading.NewRuleBook(a.Store, a.LockClock, a.Logger)
	a.Enforcer = trading.NewEnforcer(a.Rules, a.Ledger, a.Logger)
	a.Desk = trading.NewDesk(a.Store, a.Ledger, a.Enforcer, a.Logger)
	return nil
}

// Close releases the store and audit trail if Open created them.
func (a *App) Close() error {
	if a.ownsAudit {
		if err := a.Audit.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Closing audit trail")
		}
		a.Audit = nil
		a.ownsAudit = false
	}
	if a.ownsStore && a.Store != nil {
		err := a.Store.Close()
		a.Store = nil
		a.ownsStore = false
		return err
	}
	return nil
}

// audited reports a failed audit write without failing the command.
func (a *App) audited(err error) {
	if err != nil {
		a.Logger.Warn().Err(err).Msg("Audit write failed")
	}
}

// Execute runs the CLI with the given config and logger. The engine is
// released afterwards whether or not the command succeeded.
func Execute(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	app := &App{Config: cfg, Logger: logger}
	return app.execute(ctx, newRootCmd(app))
}

func (a *App) execute(ctx context.Context, rootCmd *cobra.Command) error {
	err := rootCmd.ExecuteContext(ctx)
	if closeErr := a.Close(); closeErr != nil {
		if err == nil {
			return closeErr
		}
		a.Logger.Warn().Err(closeErr).Msg("Closing store")
	}
	return err
}

func newRootCmd(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "tradeguard",
		Short: "Trade rules enforcement for a personal trading desk",
		Long: `tradeguard keeps a local position ledger and checks every proposed trade
against your risk rules: daily loss limit, max dollars per trade, limit
orders when adding, and max open tickers.

Rules lock at the US market open on weekdays and unlock at midnight.

Use 'tradeguard <command> --help' for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Handle debug flag
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}

			if dir, _ := cmd.Flags().GetString("config"); dir != "" && dir != app.ConfigDir {
				cfg, err := config.Load(dir)
				if err != nil {
					return err
				}
				app.Config = cfg
				app.ConfigDir = dir
			}
			if driver, _ := cmd.Flags().GetString("store"); driver != "" {
				app.Config.Store.Driver = driver
				if err := app.Config.Validate(); err != nil {
					return err
				}
			}

			if skipsEngine(cmd) {
				return nil
			}
			cmd.SetContext(audit.WithCommand(cmd.Context(), cmd.CommandPath()))
			return app.Open()
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/tradeguard)")
	rootCmd.PersistentFlags().String("store", "", "store driver override: sqlite, file or memory")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().Bool("no-color", app.Config != nil && !app.Config.UI.ColorEnabled, "disable colored output")

	addCoreCommands(rootCmd, app)
	rootCmd.AddCommand(newRulesCmd(app))
	rootCmd.AddCommand(newPositionsCmd(app))
	rootCmd.AddCommand(newTradeCmd(app))
	rootCmd.AddCommand(newPnLCmd(app))

	return rootCmd
}

// skipsEngine reports commands that never touch the store.
func skipsEngine(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations["engine"] == "none" {
			return true
		}
	}
	return false
}

// addCoreCommands adds core utility commands.
func addCoreCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Annotations: map[string]string{"engine": "none"},
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			}
			output.Printf("tradeguard v%s\n", Version)
			output.Dim("Build date: %s", BuildDate)
			return nil
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:         "config",
		Short:       "Configuration management",
		Long:        "View and validate application configuration.",
		Annotations: map[string]string{"engine": "none"},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			return showConfig(output, app.Config)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			path := config.Path(app.ConfigDir)
			if output.IsJSON() {
				return output.JSON(map[string]string{"path": path})
			}
			output.Println(path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]bool{"valid": true})
			}
			output.Success("✓ Configuration is valid")
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) error {
	output.Bold("Store")
	output.Printf("  Driver:        %s\n", cfg.Store.Driver)
	output.Printf("  Path:          %s\n", cfg.Store.Path)
	output.Println()

	output.Bold("Rule Lock")
	output.Printf("  Time zone:     %s\n", cfg.Clock.TimeZone)
	output.Printf("  Locks at:      %s (weekdays)\n", cfg.Clock.LockAt)
	output.Println()

	output.Bold("Logging")
	output.Printf("  Level:         %s\n", cfg.Logging.Level)
	output.Printf("  Console:       %v\n", cfg.Logging.Console)
	output.Printf("  File:          %v (%s)\n", cfg.Logging.File, cfg.Logging.FilePath)
	output.Println()

	output.Bold("UI")
	output.Printf("  Color:         %v\n", cfg.UI.ColorEnabled)
	output.Printf("  Time format:   %s\n", cfg.UI.TimeFormat)
	return nil
}
