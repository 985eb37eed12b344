package users

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/quanticpro/backend/services/leveling"
)

// MemoryStore is an in-memory Store used in tests and local development.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]*User
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]*User)}
}

func (s *MemoryStore) Get(_ context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneUser(u), nil
}

func (s *MemoryStore) Create(_ context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.users[u.ID] = cloneUser(u)
	return nil
}

func (s *MemoryStore) UpdateFields(_ context.Context, id string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}

	// Round-trip through JSON so the map keys line up with the column
	// names the real backend uses.
	doc, err := json.Marshal(u)
	if err != nil {
		return err
	}
	var m map[string]any
	if err := json.Unmarshal(doc, &m); err != nil {
		return err
	}
	patch, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	var pm map[string]any
	if err := json.Unmarshal(patch, &pm); err != nil {
		return err
	}
	for k, v := range pm {
		m[k] = v
	}
	merged, err := json.Marshal(m)
	if err != nil {
		return err
	}
	var updated User
	if err := json.Unmarshal(merged, &updated); err != nil {
		return err
	}
	updated.UpdatedAt = time.Now().UTC()
	s.users[id] = &updated
	return nil
}

func (s *MemoryStore) IncrementExperience(_ context.Context, id string, amount int) (*ExperienceState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}

	exp := u.Exp + amount
	if exp < 0 {
		exp = 0
	}
	u.Exp = exp
	u.Level = leveling.CalculateLevel(exp)
	u.Badge = leveling.BadgeForLevel(u.Level)
	u.UpdatedAt = time.Now().UTC()

	return &ExperienceState{Exp: u.Exp, Level: u.Level, Badge: u.Badge}, nil
}

func (s *MemoryStore) List(_ context.Context) ([]*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]*User, 0, len(s.users))
	for _, u := range s.users {
		list = append(list, cloneUser(u))
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	return list, nil
}

func cloneUser(u *User) *User {
	doc, err := json.Marshal(u)
	if err != nil {
		c := *u
		return &c
	}
	var c User
	if err := json.Unmarshal(doc, &c); err != nil {
		c = *u
	}
	return &c
}
