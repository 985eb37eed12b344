package menus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	svcerr "github.com/quanticpro/backend/internal/errors"
	"github.com/quanticpro/backend/services/users"
	"github.com/quanticpro/backend/supabase/client"
)

// PublishedMenu is the denormalized public copy of a saved menu, stored
// in the menus table keyed by slug so the public page is a single read.
type PublishedMenu struct {
	Slug       string               `json:"slug"`
	UserID     string               `json:"user_id"`
	Title      string               `json:"title"`
	Template   string               `json:"template"`
	Categories []users.MenuCategory `json:"categories"`
	UpdatedAt  time.Time            `json:"updated_at"`
}

// PublishedStore persists the public copies of saved menus.
type PublishedStore interface {
	Publish(ctx context.Context, m *PublishedMenu) error
	Unpublish(ctx context.Context, slug string) error
	GetBySlug(ctx context.Context, slug string) (*PublishedMenu, error)
}

// SupabasePublishedStore keeps published menus in the "menus" table.
type SupabasePublishedStore struct {
	client *client.Client
	table  string
}

// NewSupabasePublishedStore returns the Supabase-backed published store.
func NewSupabasePublishedStore(c *client.Client) *SupabasePublishedStore {
	return &SupabasePublishedStore{client: c, table: "menus"}
}

func (s *SupabasePublishedStore) Publish(ctx context.Context, m *PublishedMenu) error {
	resp, err := s.client.From(s.table).OnConflict("slug").ExecuteInsert(ctx, m)
	if err == nil {
		err = resp.Error()
	}
	if err != nil {
		return fmt.Errorf("publish menu %s: %w", m.Slug, err)
	}
	return nil
}

func (s *SupabasePublishedStore) Unpublish(ctx context.Context, slug string) error {
	resp, err := s.client.From(s.table).Eq("slug", slug).ExecuteDelete(ctx)
	if err == nil {
		err = resp.Error()
	}
	if err != nil {
		return fmt.Errorf("unpublish menu %s: %w", slug, err)
	}
	return nil
}

func (s *SupabasePublishedStore) GetBySlug(ctx context.Context, slug string) (*PublishedMenu, error) {
	resp, err := s.client.From(s.table).
		Select("*").
		Eq("slug", slug).
		Single().
		Execute(ctx)
	if err != nil {
		if errors.Is(err, client.ErrNotFound) {
			return nil, svcerr.NotFound("menu not found")
		}
		return nil, fmt.Errorf("get menu %s: %w", slug, err)
	}
	if err := resp.Error(); err != nil {
		return nil, fmt.Errorf("get menu %s: %w", slug, err)
	}

	var m PublishedMenu
	if err := resp.JSON(&m); err != nil {
		return nil, fmt.Errorf("decode menu %s: %w", slug, err)
	}
	return &m, nil
}

// MemoryPublishedStore is an in-memory PublishedStore for tests.
type MemoryPublishedStore struct {
	mu    sync.RWMutex
	menus map[string]*PublishedMenu
}

// NewMemoryPublishedStore returns an empty in-memory published store.
func NewMemoryPublishedStore() *MemoryPublishedStore {
	return &MemoryPublishedStore{menus: make(map[string]*PublishedMenu)}
}

func (s *MemoryPublishedStore) Publish(_ context.Context, m *PublishedMenu) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.menus[m.Slug] = m
	return nil
}

func (s *MemoryPublishedStore) Unpublish(_ context.Context, slug string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.menus, slug)
	return nil
}

func (s *MemoryPublishedStore) GetBySlug(_ context.Context, slug string) (*PublishedMenu, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.menus[slug]
	if !ok {
		return nil, svcerr.NotFound("menu not found")
	}
	return m, nil
}
