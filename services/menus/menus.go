// Package menus manages the menu builder: categories with dishes, saved
// menus published under a public slug, and the menu logo upload.
package menus

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	svcerr "github.com/quanticpro/backend/internal/errors"
	"github.com/quanticpro/backend/internal/logging"
	"github.com/quanticpro/backend/services/users"
	"github.com/quanticpro/backend/supabase/client"
)

// Menu templates offered by the builder.
var templates = map[string]bool{
	"classic":    true,
	"modern":     true,
	"vintage":    true,
	"futuristic": true,
}

// Service manages menu categories and saved menus.
type Service struct {
	store     users.Store
	published PublishedStore
	logos     *client.BucketClient
	logger    *logging.Logger
}

// NewService creates the menus service. logos may be nil; logo upload
// then reports unavailable.
func NewService(store users.Store, published PublishedStore, logos *client.BucketClient, logger *logging.Logger) *Service {
	return &Service{
		store:     store,
		published: published,
		logos:     logos,
		logger:    logger,
	}
}

// CategoryInput is the payload for creating or updating a category.
type CategoryInput struct {
	Name string `json:"name"`
	Icon string `json:"icon,omitempty"`
}

// ListCategories returns the user's menu categories.
func (s *Service) ListCategories(ctx context.Context, userID string) ([]users.MenuCategory, error) {
	u, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return u.MenuCategories, nil
}

// AddCategory creates a category.
func (s *Service) AddCategory(ctx context.Context, userID string, in CategoryInput) (*users.MenuCategory, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, svcerr.InvalidInput("name is required")
	}

	u, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	category := users.MenuCategory{
		ID:    uuid.NewString(),
		Name:  strings.TrimSpace(in.Name),
		Icon:  in.Icon,
		Items: []users.MenuItem{},
	}
	list := append(u.MenuCategories, category)

	if err := s.store.UpdateFields(ctx, userID, map[string]any{"menu_categories": list}); err != nil {
		return nil, fmt.Errorf("save menu categories: %w", err)
	}
	return &category, nil
}

// UpdateCategory renames a category.
func (s *Service) UpdateCategory(ctx context.Context, userID, categoryID string, in CategoryInput) (*users.MenuCategory, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, svcerr.InvalidInput("name is required")
	}

	u, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	i := findCategory(u.MenuCategories, categoryID)
	if i < 0 {
		return nil, svcerr.NotFound("category not found")
	}

	c := &u.MenuCategories[i]
	c.Name = strings.TrimSpace(in.Name)
	c.Icon = in.Icon

	if err := s.store.UpdateFields(ctx, userID, map[string]any{"menu_categories": u.MenuCategories}); err != nil {
		return nil, fmt.Errorf("save menu categories: %w", err)
	}
	return c, nil
}

// DeleteCategory removes a category and its items.
func (s *Service) DeleteCategory(ctx context.Context, userID, categoryID string) error {
	u, err := s.store.Get(ctx, userID)
	if err != nil {
		return err
	}

	i := findCategory(u.MenuCategories, categoryID)
	if i < 0 {
		return svcerr.NotFound("category not found")
	}

	list := append(u.MenuCategories[:i], u.MenuCategories[i+1:]...)
	if err := s.store.UpdateFields(ctx, userID, map[string]any{"menu_categories": list}); err != nil {
		return fmt.Errorf("save menu categories: %w", err)
	}
	return nil
}

// ItemInput is the payload for adding or updating a dish.
type ItemInput struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Price       float64 `json:"price"`
}

func (in *ItemInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return svcerr.InvalidInput("name is required")
	}
	if in.Price < 0 {
		return svcerr.InvalidInput("price must not be negative")
	}
	return nil
}

// AddItem adds a dish to a category.
func (s *Service) AddItem(ctx context.Context, userID, categoryID string, in ItemInput) (*users.MenuItem, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	u, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	i := findCategory(u.MenuCategories, categoryID)
	if i < 0 {
		return nil, svcerr.NotFound("category not found")
	}

	item := users.MenuItem{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Price:       in.Price,
		Category:    categoryID,
	}
	u.MenuCategories[i].Items = append(u.MenuCategories[i].Items, item)

	if err := s.store.UpdateFields(ctx, userID, map[string]any{"menu_categories": u.MenuCategories}); err != nil {
		return nil, fmt.Errorf("save menu categories: %w", err)
	}
	return &item, nil
}

// UpdateItem edits a dish.
func (s *Service) UpdateItem(ctx context.Context, userID, categoryID, itemID string, in ItemInput) (*users.MenuItem, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	u, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	ci := findCategory(u.MenuCategories, categoryID)
	if ci < 0 {
		return nil, svcerr.NotFound("category not found")
	}
	items := u.MenuCategories[ci].Items
	ii := findItem(items, itemID)
	if ii < 0 {
		return nil, svcerr.NotFound("item not found")
	}

	item := &items[ii]
	item.Name = strings.TrimSpace(in.Name)
	item.Description = in.Description
	item.Price = in.Price

	if err := s.store.UpdateFields(ctx, userID, map[string]any{"menu_categories": u.MenuCategories}); err != nil {
		return nil, fmt.Errorf("save menu categories: %w", err)
	}
	return item, nil
}

// DeleteItem removes a dish from a category.
func (s *Service) DeleteItem(ctx context.Context, userID, categoryID, itemID string) error {
	u, err := s.store.Get(ctx, userID)
	if err != nil {
		return err
	}

	ci := findCategory(u.MenuCategories, categoryID)
	if ci < 0 {
		return svcerr.NotFound("category not found")
	}
	items := u.MenuCategories[ci].Items
	ii := findItem(items, itemID)
	if ii < 0 {
		return svcerr.NotFound("item not found")
	}

	u.MenuCategories[ci].Items = append(items[:ii], items[ii+1:]...)

	if err := s.store.UpdateFields(ctx, userID, map[string]any{"menu_categories": u.MenuCategories}); err != nil {
		return fmt.Errorf("save menu categories: %w", err)
	}
	return nil
}

// SaveInput is the payload for publishing a menu.
type SaveInput struct {
	Title    string `json:"title"`
	Template string `json:"template"`
}

// Save publishes the user's current categories under a new saved menu
// with a unique slug.
func (s *Service) Save(ctx context.Context, userID string, in SaveInput) (*users.SavedMenu, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, svcerr.InvalidInput("title is required")
	}
	if !templates[in.Template] {
		return nil, svcerr.InvalidInput("unknown template")
	}

	u, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	saved := users.SavedMenu{
		ID:        uuid.NewString(),
		Title:     strings.TrimSpace(in.Title),
		Slug:      uniqueSlug(in.Title, u.SavedMenus),
		Template:  in.Template,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.published.Publish(ctx, &PublishedMenu{
		Slug:       saved.Slug,
		UserID:     userID,
		Title:      saved.Title,
		Template:   saved.Template,
		Categories: u.MenuCategories,
		UpdatedAt:  now,
	})
	if err != nil {
		return nil, fmt.Errorf("publish menu: %w", err)
	}

	list := append(u.SavedMenus, saved)
	if err := s.store.UpdateFields(ctx, userID, map[string]any{"saved_menus": list}); err != nil {
		return nil, fmt.Errorf("save menus: %w", err)
	}
	return &saved, nil
}

// ListSaved returns the user's saved menus.
func (s *Service) ListSaved(ctx context.Context, userID string) ([]users.SavedMenu, error) {
	u, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return u.SavedMenus, nil
}

// DeleteSaved removes a saved menu and unpublishes its slug.
func (s *Service) DeleteSaved(ctx context.Context, userID, menuID string) error {
	u, err := s.store.Get(ctx, userID)
	if err != nil {
		return err
	}

	i := -1
	for j := range u.SavedMenus {
		if u.SavedMenus[j].ID == menuID {
			i = j
			break
		}
	}
	if i < 0 {
		return svcerr.NotFound("menu not found")
	}

	slug := u.SavedMenus[i].Slug
	list := append(u.SavedMenus[:i], u.SavedMenus[i+1:]...)

	if err := s.store.UpdateFields(ctx, userID, map[string]any{"saved_menus": list}); err != nil {
		return fmt.Errorf("save menus: %w", err)
	}
	if err := s.published.Unpublish(ctx, slug); err != nil {
		// The private copy is gone; a stale public page is a cleanup
		// concern, not a failure of the delete.
		s.logger.WithContext(ctx).WithError(err).WithField("slug", slug).Warn("unpublish menu failed")
	}
	return nil
}

// GetPublished returns the public view of a published menu.
func (s *Service) GetPublished(ctx context.Context, slug string) (*PublishedMenu, error) {
	return s.published.GetBySlug(ctx, slug)
}

// UploadLogo stores the menu logo and returns its public URL.
func (s *Service) UploadLogo(ctx context.Context, userID string, data []byte, contentType string) (string, error) {
	if s.logos == nil {
		return "", svcerr.Internal("logo storage not configured", nil)
	}
	if len(data) == 0 {
		return "", svcerr.InvalidInput("empty upload")
	}

	ext := "png"
	if contentType == "image/jpeg" {
		ext = "jpg"
	}
	path := fmt.Sprintf("%s/logo.%s", userID, ext)

	resp, err := s.logos.Upload(ctx, path, data, contentType)
	if err == nil {
		err = resp.Error()
	}
	if err != nil {
		return "", fmt.Errorf("upload logo: %w", err)
	}
	return s.logos.GetPublicURL(path), nil
}

// Slugify turns a menu title into a URL slug.
func Slugify(title string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(strings.TrimSpace(title)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// uniqueSlug appends a numeric suffix until the slug is unused by the
// user's saved menus.
func uniqueSlug(title string, existing []users.SavedMenu) string {
	base := Slugify(title)
	if base == "" {
		base = "menu"
	}

	used := make(map[string]bool, len(existing))
	for _, m := range existing {
		used[m.Slug] = true
	}

	slug := base
	for n := 2; used[slug]; n++ {
		slug = fmt.Sprintf("%s-%d", base, n)
	}
	return slug
}

func findCategory(list []users.MenuCategory, id string) int {
	for i := range list {
		if list[i].ID == id {
			return i
		}
	}
	return -1
}

func findItem(items []users.MenuItem, id string) int {
	for i := range items {
		if items[i].ID == id {
			return i
		}
	}
	return -1
}
