// Package audit records an append-only JSON-lines trail of trade decisions,
// rule changes and ledger edits.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"gopkg.in/natefinch/lumberjack.v2"

	"tradeguard/internal/models"
)

// EventType names an audited action.
type EventType string

const (
	EventTradeAllowed  EventType = "TRADE_ALLOWED"
	EventTradeRejected EventType = "TRADE_REJECTED"
	EventTradeInvalid  EventType = "TRADE_INVALID"
	EventTradeFilled   EventType = "TRADE_FILLED"

	EventRulesChanged EventType = "RULES_CHANGED"
	EventRulesRefused EventType = "RULES_REFUSED"

	EventLedgerChanged EventType = "LEDGER_CHANGED"
	EventDailyReset    EventType = "DAILY_RESET"
)

// Event is one audit line.
type Event struct {
	Timestamp time.Time              `json:"timestamp"`
	Type      EventType              `json:"event_type"`
	SessionID string                 `json:"session_id"`
	Command   string                 `json:"command,omitempty"`
	Symbol    string                 `json:"symbol,omitempty"`
	TradeID   string                 `json:"trade_id,omitempty"`
	Rules     []string               `json:"rules,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Success   bool                   `json:"success"`
	Error     string                 `json:"error,omitempty"`
}

// Config holds audit trail settings.
type Config struct {
	Enabled    bool   `mapstructure:"enabled"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"` // megabytes
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
}

// DefaultConfig keeps a year of audit files under dir.
func DefaultConfig(dir string) Config {
	return Config{
		Enabled:    true,
		FilePath:   filepath.Join(dir, "audit", "audit.jsonl"),
		MaxSize:    10,
		MaxBackups: 12,
		MaxAge:     365,
	}
}

type commandKey struct{}

// WithCommand tags events logged under ctx with the CLI command path.
func WithCommand(ctx context.Context, command string) context.Context {
	return context.WithValue(ctx, commandKey{}, command)
}

// Trail writes audit events. The zero value and a nil *Trail discard events.
type Trail struct {
	mu        sync.Mutex
	w         io.Writer
	closer    io.Closer
	sessionID string
	now       func() time.Time
}

// Open creates a trail from cfg. A disabled config returns a discarding trail.
func Open(cfg Config) (*Trail, error) {
	if !cfg.Enabled || cfg.FilePath == "" {
		return NewTrail(io.Discard), nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0700); err != nil {
		return nil, fmt.Errorf("creating audit directory: %w", err)
	}

	writer := &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
	}
	t := NewTrail(writer)
	t.closer = writer
	return t, nil
}

// NewTrail writes events to w.
func NewTrail(w io.Writer) *Trail {
	return &Trail{
		w:         w,
		sessionID: ulid.Make().String(),
		now:       time.Now,
	}
}

// SetClock replaces the timestamp source.
func (t *Trail) SetClock(now func() time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now = now
}

// Log writes one event, stamping time, session and command.
func (t *Trail) Log(ctx context.Context, event Event) error {
	if t == nil || t.w == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	event.Timestamp = t.now().UTC()
	event.SessionID = t.sessionID
	if cmd, ok := ctx.Value(commandKey{}).(string); ok && event.Command == "" {
		event.Command = cmd
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("serializing audit event: %w", err)
	}
	if _, err := t.w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing audit event: %w", err)
	}
	return nil
}

// TradeDecision records the enforcer's verdict on a request. A non-nil err
// marks a malformed request.
func (t *Trail) TradeDecision(ctx context.Context, req models.TradeRequest, result models.TradeValidationResult, err error) error {
	event := Event{
		Type:    EventTradeAllowed,
		Symbol:  req.Symbol,
		Rules:   result.Rules(),
		Success: result.IsValid,
		Details: map[string]interface{}{
			"quantity":   req.Quantity,
			"price":      req.Price.String(),
			"order_type": req.OrderType,
			"closing":    req.IsClosingTrade,
		},
	}
	switch {
	case err != nil:
		event.Type = EventTradeInvalid
		event.Error = err.Error()
	case !result.IsValid:
		event.Type = EventTradeRejected
		event.Error = result.ErrorMessage
	}
	return t.Log(ctx, event)
}

// TradeFilled records a fill written to the ledger.
func (t *Trail) TradeFilled(ctx context.Context, trade models.Trade) error {
	return t.Log(ctx, Event{
		Type:    EventTradeFilled,
		Symbol:  trade.Symbol,
		TradeID: trade.ID,
		Success: true,
		Details: map[string]interface{}{
			"quantity": trade.Quantity,
			"price":    trade.Price.String(),
		},
	})
}

// RulesChange records a rule save, update or reset. A failed attempt is
// logged as refused with its error.
func (t *Trail) RulesChange(ctx context.Context, action string, rules models.RuleSet, err error) error {
	event := Event{
		Type:    EventRulesChanged,
		Success: err == nil,
		Details: map[string]interface{}{"action": action},
	}
	if err != nil {
		event.Type = EventRulesRefused
		event.Error = err.Error()
	} else {
		event.Details["rules"] = rules
	}
	return t.Log(ctx, event)
}

// LedgerChange records a direct edit of positions or daily state.
func (t *Trail) LedgerChange(ctx context.Context, action, symbol string, details map[string]interface{}) error {
	typ := EventLedgerChanged
	if action == "reset" {
		typ = EventDailyReset
	}
	if details == nil {
		details = map[string]interface{}{}
	}
	details["action"] = action
	return t.Log(ctx, Event{
		Type:    typ,
		Symbol:  symbol,
		Success: true,
		Details: details,
	})
}

// Close closes the underlying file, if any.
func (t *Trail) Close() error {
	if t == nil || t.closer == nil {
		return nil
	}
	return t.closer.Close()
}
