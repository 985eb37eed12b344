package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/quanticpro/backend/internal/logging"
	"github.com/quanticpro/backend/services/leveling"
	"github.com/quanticpro/backend/supabase/client"
)

// Service exposes user-document reads and the live change feed.
type Service struct {
	store    Store
	realtime *client.RealtimeClient
	logger   *logging.Logger
}

// NewService creates the users service. realtime may be nil; the change
// feed endpoint then reports unavailable.
func NewService(store Store, realtime *client.RealtimeClient, logger *logging.Logger) *Service {
	return &Service{
		store:    store,
		realtime: realtime,
		logger:   logger,
	}
}

// Store returns the underlying document store.
func (s *Service) Store() Store {
	return s.store
}

// Ensure returns the user's document, creating it with registration
// defaults on first sight of a valid token.
func (s *Service) Ensure(ctx context.Context, id, email string) (*User, error) {
	u, err := s.store.Get(ctx, id)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	u = NewUser(id, email)
	if err := s.store.Create(ctx, u); err != nil {
		return nil, fmt.Errorf("provision user %s: %w", id, err)
	}
	s.logger.WithContext(ctx).WithField("user_id", id).Info("user document created")
	return u, nil
}

// Progress summarises the experience state for the dashboard header.
type Progress struct {
	Exp       int     `json:"exp"`
	Level     int     `json:"level"`
	Badge     string  `json:"badge"`
	Progress  float64 `json:"progress"`
	NextLevel int     `json:"next_level_exp"`
}

// Progress returns the user's level progress.
func (s *Service) Progress(ctx context.Context, id string) (*Progress, error) {
	u, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	return &Progress{
		Exp:       u.Exp,
		Level:     u.Level,
		Badge:     u.Badge,
		Progress:  leveling.CalculateProgress(u.Exp),
		NextLevel: u.Level * leveling.LevelThreshold,
	}, nil
}

// Watch subscribes to live changes of the user's document and invokes
// handler for each change until ctx is cancelled.
func (s *Service) Watch(ctx context.Context, id string, handler client.EventHandler) (*client.Subscription, error) {
	if s.realtime == nil {
		return nil, errors.New("realtime feed not configured")
	}

	return s.realtime.SubscribeToChanges(ctx, client.ChangesConfig{
		Event:  "UPDATE",
		Schema: "public",
		Table:  "users",
		Filter: fmt.Sprintf("id=eq.%s", id),
	}, handler)
}
