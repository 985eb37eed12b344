// Package products manages the purchase price list and the per-product
// price comparison across stores.
package products

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	svcerr "github.com/quanticpro/backend/internal/errors"
	"github.com/quanticpro/backend/internal/logging"
	"github.com/quanticpro/backend/services/experience"
	"github.com/quanticpro/backend/services/users"
)

// Service manages products.
type Service struct {
	store  users.Store
	xp     *experience.Service
	logger *logging.Logger
}

// NewService creates the products service.
func NewService(store users.Store, xp *experience.Service, logger *logging.Logger) *Service {
	return &Service{store: store, xp: xp, logger: logger}
}

// ProductInput is the payload for adding or updating a product.
type ProductInput struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
	VAT   float64 `json:"vat"`
	Store string  `json:"store"`
}

func (in *ProductInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return svcerr.InvalidInput("name is required")
	}
	if in.Price <= 0 {
		return svcerr.InvalidInput("price must be positive")
	}
	if in.VAT < 0 || in.VAT > 100 {
		return svcerr.InvalidInput("vat must be a percentage")
	}
	if strings.TrimSpace(in.Store) == "" {
		return svcerr.InvalidInput("store is required")
	}
	return nil
}

// List returns the user's products.
func (s *Service) List(ctx context.Context, userID string) ([]users.Product, error) {
	u, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return u.Products, nil
}

// Add creates a product and awards XP.
func (s *Service) Add(ctx context.Context, userID string, in ProductInput) (*users.Product, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	u, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	product := users.Product{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(in.Name),
		Price:     in.Price,
		VAT:       in.VAT,
		Store:     strings.TrimSpace(in.Store),
		CreatedAt: time.Now().UTC(),
	}
	list := append(u.Products, product)

	if err := s.store.UpdateFields(ctx, userID, map[string]any{"products": list}); err != nil {
		return nil, fmt.Errorf("save products: %w", err)
	}

	s.xp.Grant(ctx, userID, experience.RewardQuickEntry)
	return &product, nil
}

// Update replaces a product's editable fields.
func (s *Service) Update(ctx context.Context, userID, productID string, in ProductInput) (*users.Product, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	u, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	i := findProduct(u.Products, productID)
	if i < 0 {
		return nil, svcerr.NotFound("product not found")
	}

	p := &u.Products[i]
	p.Name = strings.TrimSpace(in.Name)
	p.Price = in.Price
	p.VAT = in.VAT
	p.Store = strings.TrimSpace(in.Store)

	if err := s.store.UpdateFields(ctx, userID, map[string]any{"products": u.Products}); err != nil {
		return nil, fmt.Errorf("save products: %w", err)
	}
	return p, nil
}

// Delete removes a product.
func (s *Service) Delete(ctx context.Context, userID, productID string) error {
	u, err := s.store.Get(ctx, userID)
	if err != nil {
		return err
	}

	i := findProduct(u.Products, productID)
	if i < 0 {
		return svcerr.NotFound("product not found")
	}

	list := append(u.Products[:i], u.Products[i+1:]...)
	if err := s.store.UpdateFields(ctx, userID, map[string]any{"products": list}); err != nil {
		return fmt.Errorf("save products: %w", err)
	}
	return nil
}

// PriceQuote is one store's price within a comparison group.
type PriceQuote struct {
	Store string  `json:"store"`
	Price float64 `json:"price"`
}

// Group is the price comparison for one product name across stores.
type Group struct {
	Name    string       `json:"name"`
	Count   int          `json:"count"`
	Average float64      `json:"average"`
	Lowest  PriceQuote   `json:"lowest"`
	Highest PriceQuote   `json:"highest"`
	Quotes  []PriceQuote `json:"quotes"`
}

// Groups buckets products by normalized name and compares prices.
func (s *Service) Groups(ctx context.Context, userID string) ([]Group, error) {
	u, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	byName := make(map[string][]users.Product)
	for _, p := range u.Products {
		key := normalizeName(p.Name)
		byName[key] = append(byName[key], p)
	}

	groups := make([]Group, 0, len(byName))
	for _, items := range byName {
		g := Group{
			Name:  items[0].Name,
			Count: len(items),
		}
		total := 0.0
		for _, p := range items {
			quote := PriceQuote{Store: p.Store, Price: p.Price}
			g.Quotes = append(g.Quotes, quote)
			total += p.Price
			if g.Lowest.Store == "" || p.Price < g.Lowest.Price {
				g.Lowest = quote
			}
			if g.Highest.Store == "" || p.Price > g.Highest.Price {
				g.Highest = quote
			}
		}
		g.Average = total / float64(len(items))
		sort.Slice(g.Quotes, func(i, j int) bool { return g.Quotes[i].Price < g.Quotes[j].Price })
		groups = append(groups, g)
	}

	sort.Slice(groups, func(i, j int) bool { return normalizeName(groups[i].Name) < normalizeName(groups[j].Name) })
	return groups, nil
}

// normalizeName folds case and whitespace so "San Marzano" and
// "san  marzano" land in the same group.
func normalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

func findProduct(list []users.Product, id string) int {
	for i := range list {
		if list[i].ID == id {
			return i
		}
	}
	return -1
}
