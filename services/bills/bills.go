// Package bills manages payables with due dates, their groups and the
// due-date reminder sweep.
package bills

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	svcerr "github.com/quanticpro/backend/internal/errors"
	"github.com/quanticpro/backend/internal/logging"
	"github.com/quanticpro/backend/services/notify"
	"github.com/quanticpro/backend/services/users"
)

const dateLayout = "2006-01-02"

// Service manages bills and bill groups.
type Service struct {
	store    users.Store
	notifier notify.Notifier
	logger   *logging.Logger

	// now is swapped in tests.
	now func() time.Time
}

// NewService creates the bills service.
func NewService(store users.Store, notifier notify.Notifier, logger *logging.Logger) *Service {
	return &Service{
		store:    store,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// BillInput is the payload for creating or updating a bill.
type BillInput struct {
	Title   string  `json:"title"`
	Amount  float64 `json:"amount"`
	DueDate string  `json:"due_date"`
	Paid    bool    `json:"paid"`
	GroupID string  `json:"group_id,omitempty"`
}

func (in *BillInput) validate() error {
	if in.Title == "" {
		return svcerr.InvalidInput("title is required")
	}
	if in.Amount <= 0 {
		return svcerr.InvalidInput("amount must be positive")
	}
	if _, err := time.Parse(dateLayout, in.DueDate); err != nil {
		return svcerr.InvalidInput("due_date must be YYYY-MM-DD")
	}
	return nil
}

// List returns the user's bills.
func (s *Service) List(ctx context.Context, userID string) ([]users.Bill, error) {
	u, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return u.Bills, nil
}

// Add creates a bill.
func (s *Service) Add(ctx context.Context, userID string, in BillInput) (*users.Bill, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	u, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if in.GroupID != "" && findGroup(u.BillGroups, in.GroupID) < 0 {
		return nil, svcerr.InvalidInput("unknown bill group")
	}

	now := s.now().UTC()
	bill := users.Bill{
		ID:        uuid.NewString(),
		Title:     in.Title,
		Amount:    in.Amount,
		DueDate:   in.DueDate,
		Paid:      in.Paid,
		GroupID:   in.GroupID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	bills := append(u.Bills, bill)

	if err := s.store.UpdateFields(ctx, userID, map[string]any{"bills": bills}); err != nil {
		return nil, fmt.Errorf("save bills: %w", err)
	}
	return &bill, nil
}

// Update replaces the bill's editable fields. Changing the due date
// resets the reminder flags so the new date is announced again.
func (s *Service) Update(ctx context.Context, userID, billID string, in BillInput) (*users.Bill, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	u, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	i := findBill(u.Bills, billID)
	if i < 0 {
		return nil, svcerr.NotFound("bill not found")
	}
	if in.GroupID != "" && findGroup(u.BillGroups, in.GroupID) < 0 {
		return nil, svcerr.InvalidInput("unknown bill group")
	}

	bill := &u.Bills[i]
	if bill.DueDate != in.DueDate {
		bill.Notified = users.BillReminders{}
	}
	bill.Title = in.Title
	bill.Amount = in.Amount
	bill.DueDate = in.DueDate
	bill.Paid = in.Paid
	bill.GroupID = in.GroupID
	bill.UpdatedAt = s.now().UTC()

	if err := s.store.UpdateFields(ctx, userID, map[string]any{"bills": u.Bills}); err != nil {
		return nil, fmt.Errorf("save bills: %w", err)
	}
	return bill, nil
}

// Delete removes a bill.
func (s *Service) Delete(ctx context.Context, userID, billID string) error {
	u, err := s.store.Get(ctx, userID)
	if err != nil {
		return err
	}

	i := findBill(u.Bills, billID)
	if i < 0 {
		return svcerr.NotFound("bill not found")
	}

	bills := append(u.Bills[:i], u.Bills[i+1:]...)
	if err := s.store.UpdateFields(ctx, userID, map[string]any{"bills": bills}); err != nil {
		return fmt.Errorf("save bills: %w", err)
	}
	return nil
}

// GroupInput is the payload for creating or updating a bill group.
type GroupInput struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// ListGroups returns the user's bill groups.
func (s *Service) ListGroups(ctx context.Context, userID string) ([]users.BillGroup, error) {
	u, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return u.BillGroups, nil
}

// AddGroup creates a bill group.
func (s *Service) AddGroup(ctx context.Context, userID string, in GroupInput) (*users.BillGroup, error) {
	if in.Name == "" {
		return nil, svcerr.InvalidInput("name is required")
	}

	u, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	group := users.BillGroup{
		ID:          uuid.NewString(),
		Name:        in.Name,
		Description: in.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	groups := append(u.BillGroups, group)

	if err := s.store.UpdateFields(ctx, userID, map[string]any{"bill_groups": groups}); err != nil {
		return nil, fmt.Errorf("save bill groups: %w", err)
	}
	return &group, nil
}

// DeleteGroup removes a group and detaches its bills.
func (s *Service) DeleteGroup(ctx context.Context, userID, groupID string) error {
	u, err := s.store.Get(ctx, userID)
	if err != nil {
		return err
	}

	i := findGroup(u.BillGroups, groupID)
	if i < 0 {
		return svcerr.NotFound("bill group not found")
	}

	groups := append(u.BillGroups[:i], u.BillGroups[i+1:]...)
	for j := range u.Bills {
		if u.Bills[j].GroupID == groupID {
			u.Bills[j].GroupID = ""
		}
	}

	err = s.store.UpdateFields(ctx, userID, map[string]any{
		"bill_groups": groups,
		"bills":       u.Bills,
	})
	if err != nil {
		return fmt.Errorf("save bill groups: %w", err)
	}
	return nil
}

func findBill(bills []users.Bill, id string) int {
	for i := range bills {
		if bills[i].ID == id {
			return i
		}
	}
	return -1
}

func findGroup(groups []users.BillGroup, id string) int {
	for i := range groups {
		if groups[i].ID == id {
			return i
		}
	}
	return -1
}
