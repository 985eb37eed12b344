package users

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/quanticpro/backend/services/leveling"
	"github.com/quanticpro/backend/supabase/client"
)

// Store is the persistence contract for user documents. Feature services
// depend on this interface rather than on a concrete backend.
type Store interface {
	// Get returns the document for a user ID, or ErrNotFound.
	Get(ctx context.Context, id string) (*User, error)

	// Create inserts a new document.
	Create(ctx context.Context, u *User) error

	// UpdateFields applies a partial update. Only the named fields are
	// written; everything else on the document is untouched.
	UpdateFields(ctx context.Context, id string, fields map[string]any) error

	// IncrementExperience atomically adds amount to the user's exp and
	// returns the resulting experience state.
	IncrementExperience(ctx context.Context, id string, amount int) (*ExperienceState, error)

	// List returns every user document. Used by the reminder sweep.
	List(ctx context.Context) ([]*User, error)
}

// SupabaseStore persists user documents in the "users" table.
type SupabaseStore struct {
	client *client.Client
	table  string
}

// NewSupabaseStore returns a store backed by the given Supabase client.
func NewSupabaseStore(c *client.Client) *SupabaseStore {
	return &SupabaseStore{client: c, table: "users"}
}

func (s *SupabaseStore) Get(ctx context.Context, id string) (*User, error) {
	resp, err := s.client.From(s.table).
		Select("*").
		Eq("id", id).
		Single().
		Execute(ctx)
	if err != nil {
		if errors.Is(err, client.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}
	if err := resp.Error(); err != nil {
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}

	var u User
	if err := resp.JSON(&u); err != nil {
		return nil, fmt.Errorf("decode user %s: %w", id, err)
	}
	return &u, nil
}

func (s *SupabaseStore) Create(ctx context.Context, u *User) error {
	resp, err := s.client.From(s.table).ExecuteInsert(ctx, u)
	if err != nil {
		return fmt.Errorf("create user %s: %w", u.ID, err)
	}
	if err := resp.Error(); err != nil {
		return fmt.Errorf("create user %s: %w", u.ID, err)
	}
	return nil
}

func (s *SupabaseStore) UpdateFields(ctx context.Context, id string, fields map[string]any) error {
	resp, err := s.client.From(s.table).
		Eq("id", id).
		ExecuteUpdate(ctx, fields)
	if err != nil {
		return fmt.Errorf("update user %s: %w", id, err)
	}
	if err := resp.Error(); err != nil {
		return fmt.Errorf("update user %s: %w", id, err)
	}

	// PostgREST reports an update that matched no rows as an empty
	// representation, not an error.
	var rows []json.RawMessage
	if err := resp.JSON(&rows); err == nil && len(rows) == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SupabaseStore) IncrementExperience(ctx context.Context, id string, amount int) (*ExperienceState, error) {
	resp, err := s.client.RPC(ctx, "add_experience", map[string]any{
		"p_user_id": id,
		"p_amount":  amount,
	})
	if err != nil {
		return nil, fmt.Errorf("increment experience for %s: %w", id, err)
	}
	if resp.StatusCode == http.StatusNotFound {
		// Function not installed on this project; fall back to a
		// read-modify-write cycle.
		return s.incrementFallback(ctx, id, amount)
	}
	if err := resp.Error(); err != nil {
		return nil, fmt.Errorf("increment experience for %s: %w", id, err)
	}

	var state ExperienceState
	if err := resp.JSON(&state); err != nil {
		return nil, fmt.Errorf("decode experience state for %s: %w", id, err)
	}
	// add_experience reports a missing user as the zeroed object (see
	// supabase/schema.sql); an existing row always derives level >= 1.
	if state.Exp == 0 && state.Level == 0 {
		return nil, ErrNotFound
	}
	return &state, nil
}

func (s *SupabaseStore) incrementFallback(ctx context.Context, id string, amount int) (*ExperienceState, error) {
	u, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	exp := u.Exp + amount
	if exp < 0 {
		exp = 0
	}
	state := &ExperienceState{
		Exp:   exp,
		Level: leveling.CalculateLevel(exp),
	}
	state.Badge = leveling.BadgeForLevel(state.Level)

	err = s.UpdateFields(ctx, id, map[string]any{
		"exp":   state.Exp,
		"level": state.Level,
		"badge": state.Badge,
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

func (s *SupabaseStore) List(ctx context.Context) ([]*User, error) {
	resp, err := s.client.From(s.table).
		Select("*").
		Order("created_at", true).
		Execute(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	if err := resp.Error(); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	var list []*User
	if err := resp.JSON(&list); err != nil {
		return nil, fmt.Errorf("decode user list: %w", err)
	}
	return list, nil
}
