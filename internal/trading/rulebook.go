package trading

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	apperrors "tradeguard/internal/errors"
	"tradeguard/internal/logging"
	"tradeguard/internal/models"
	"tradeguard/internal/store"
)

// RuleBook persists the user's rule set. Saves are refused while the lock
// clock reports rules as locked.
type RuleBook struct {
	store  store.Store
	lock   Locker
	logger zerolog.Logger
}

// NewRuleBook creates a rule book. A nil lock never locks.
func NewRuleBook(s store.Store, lock Locker, logger zerolog.Logger) *RuleBook {
	return &RuleBook{
		store:  s,
		lock:   lock,
		logger: logging.WithComponent(logger, "rulebook"),
	}
}

// Rules returns the saved rule set. A missing record, or fields missing from
// an older record, take the defaults.
func (b *RuleBook) Rules(ctx context.Context) (models.RuleSet, error) {
	rules := models.DefaultRuleSet()
	found, err := b.store.Read(ctx, store.CollectionRules, &rules)
	if err != nil {
		return models.RuleSet{}, fmt.Errorf("reading rules: %w", err)
	}
	b.logger.Debug().Bool("found", found).Msg("Rules loaded")
	return rules, nil
}

// Save replaces the rule set as one record.
func (b *RuleBook) Save(ctx context.Context, rules models.RuleSet) error {
	if b.locked() {
		b.logger.Warn().Msg("Rule save refused while locked")
		return apperrors.ErrRulesLocked
	}
	if err := models.Validate(apperrors.ErrInvalidRules, rules); err != nil {
		return err
	}

	if err := b.store.Write(ctx, store.CollectionRules, rules); err != nil {
		return fmt.Errorf("saving rules: %w", err)
	}

	logging.LogRulesSaved(b.logger, rules.DailyLossLimit.String(), rules.MaxDollarPerTrade.String(), rules.MaxOpenTickers)
	return nil
}

// Update applies fn to the current rules and saves the result atomically.
func (b *RuleBook) Update(ctx context.Context, fn func(r *models.RuleSet) error) (models.RuleSet, error) {
	if b.locked() {
		b.logger.Warn().Msg("Rule update refused while locked")
		return models.RuleSet{}, apperrors.ErrRulesLocked
	}

	rules := models.DefaultRuleSet()
	err := b.store.Update(ctx, store.CollectionRules, &rules, func(bool) error {
		if err := fn(&rules); err != nil {
			return err
		}
		return models.Validate(apperrors.ErrInvalidRules, rules)
	})
	if err != nil {
		if apperrors.Is(err, apperrors.ErrInvalidRules) {
			return models.RuleSet{}, err
		}
		return models.RuleSet{}, fmt.Errorf("updating rules: %w", err)
	}

	logging.LogRulesSaved(b.logger, rules.DailyLossLimit.String(), rules.MaxDollarPerTrade.String(), rules.MaxOpenTickers)
	return rules, nil
}

// Reset discards saved rules so the defaults apply again.
func (b *RuleBook) Reset(ctx context.Context) error {
	if b.locked() {
		b.logger.Warn().Msg("Rule reset refused while locked")
		return apperrors.ErrRulesLocked
	}
	if err := b.store.Delete(ctx, store.CollectionRules); err != nil {
		return fmt.Errorf("resetting rules: %w", err)
	}
	b.logger.Info().Msg("Rules reset to defaults")
	return nil
}

// IsLocked reports whether edits are currently refused.
func (b *RuleBook) IsLocked() bool {
	return b.locked()
}

func (b *RuleBook) locked() bool {
	return b.lock != nil && b.lock.IsLocked()
}
