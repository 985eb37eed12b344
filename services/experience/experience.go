// Package experience applies gamification rewards to user accounts and
// derives the level and badge that follow from the new total.
package experience

import (
	"context"
	"errors"
	"fmt"

	svcerr "github.com/quanticpro/backend/internal/errors"
	"github.com/quanticpro/backend/internal/logging"
	"github.com/quanticpro/backend/internal/metrics"
	"github.com/quanticpro/backend/services/leveling"
	"github.com/quanticpro/backend/services/notify"
	"github.com/quanticpro/backend/services/users"
)

// Reward amounts per action, matching the product's award policy.
const (
	// RewardLedgerEntry applies to income/expense mutations made on the
	// ledger pages (add, edit, delete).
	RewardLedgerEntry = 10
	// RewardQuickEntry applies to entries added through the quick-add
	// modal and to new products.
	RewardQuickEntry = 20
)

// ErrUserNotFound is returned when no document exists for the user.
// Callers that award XP as a side effect treat it as a no-op.
var ErrUserNotFound = errors.New("experience: user not found")

// Store is the slice of the user store the service needs.
type Store interface {
	IncrementExperience(ctx context.Context, id string, amount int) (*users.ExperienceState, error)
}

// Result describes the outcome of an award.
type Result struct {
	Exp       int    `json:"exp"`
	Level     int    `json:"level"`
	Badge     string `json:"badge"`
	Awarded   int    `json:"awarded"`
	LeveledUp bool   `json:"leveled_up"`
}

// Service applies experience awards.
type Service struct {
	store    Store
	notifier notify.Notifier
	metrics  *metrics.Metrics
	logger   *logging.Logger
}

// NewService creates the experience service. metrics may be nil.
func NewService(store Store, notifier notify.Notifier, m *metrics.Metrics, logger *logging.Logger) *Service {
	return &Service{
		store:    store,
		notifier: notifier,
		metrics:  m,
		logger:   logger,
	}
}

// AddExperience adds amount to the user's experience, persists the derived
// level and badge, and notifies the user. A negative amount is rejected;
// a missing user yields ErrUserNotFound.
func (s *Service) AddExperience(ctx context.Context, userID string, amount int) (*Result, error) {
	if amount < 0 {
		return nil, svcerr.InvalidInput("amount must not be negative")
	}

	state, err := s.store.IncrementExperience(ctx, userID, amount)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("apply experience: %w", err)
	}

	oldLevel := leveling.CalculateLevel(state.Exp - amount)
	result := &Result{
		Exp:       state.Exp,
		Level:     state.Level,
		Badge:     state.Badge,
		Awarded:   amount,
		LeveledUp: state.Level > oldLevel,
	}

	if s.metrics != nil && amount > 0 {
		s.metrics.RecordXPAwarded(amount)
	}

	if amount > 0 {
		s.notifier.Notify(ctx, userID, "XP Guadagnato!", fmt.Sprintf("+%d XP", amount), notify.KindXP)
	}
	if result.LeveledUp {
		s.notifier.Notify(ctx, userID, "Level Up!",
			fmt.Sprintf("Sei salito al livello %d!", state.Level), notify.KindLevelUp)
		if s.metrics != nil {
			s.metrics.RecordLevelUp()
		}
	}

	return result, nil
}

// Grant awards XP as a side effect of another operation. A missing user is
// a no-op; other failures are logged and swallowed so the triggering
// operation still succeeds.
func (s *Service) Grant(ctx context.Context, userID string, amount int) {
	if _, err := s.AddExperience(ctx, userID, amount); err != nil && !errors.Is(err, ErrUserNotFound) {
		s.logger.WithContext(ctx).WithError(err).WithField("user_id", userID).Warn("experience award failed")
	}
}
