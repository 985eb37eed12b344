// Package users owns the per-user document persisted in the backing
// store. Every other service reads a user's document, mutates one field
// and writes it back through this package.
package users

import (
	"errors"
	"fmt"
	"time"

	"github.com/quanticpro/backend/services/leveling"
)

// ErrNotFound is returned when no document exists for a user ID.
var ErrNotFound = errors.New("user not found")

// User is the per-user document. Collection fields are stored as JSONB
// columns so a partial update touches only the field being changed.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Exp       int    `json:"exp"`
	Level     int    `json:"level"`
	Badge     string `json:"badge"`
	IsPremium bool   `json:"is_premium"`

	StripeCustomerID     string `json:"stripe_customer_id,omitempty"`
	StripeSubscriptionID string `json:"stripe_subscription_id,omitempty"`

	// Incomes and Expenses are keyed by month ("2026-08").
	Incomes  map[string][]Income  `json:"incomes,omitempty"`
	Expenses map[string][]Expense `json:"expenses,omitempty"`

	Products   []Product   `json:"products,omitempty"`
	Bills      []Bill      `json:"bills,omitempty"`
	BillGroups []BillGroup `json:"bill_groups,omitempty"`

	MenuCategories []MenuCategory `json:"menu_categories,omitempty"`
	SavedMenus     []SavedMenu    `json:"saved_menus,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewUser returns a fresh document for a registered account. Experience
// starts at zero, which derives level 1 and the Novice badge.
func NewUser(id, email string) *User {
	now := time.Now().UTC()
	return &User{
		ID:        id,
		Email:     email,
		Exp:       0,
		Level:     leveling.CalculateLevel(0),
		Badge:     leveling.BadgeForExp(0),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ExperienceState is the derived experience triple stored on the document.
type ExperienceState struct {
	Exp   int    `json:"exp"`
	Level int    `json:"level"`
	Badge string `json:"badge"`
}

// Income is one daily takings entry: cash drawer plus card terminal.
type Income struct {
	Cash  float64 `json:"cash"`
	Pos   float64 `json:"pos"`
	Total float64 `json:"total"`
	Date  string  `json:"date"`
}

// Expense categories match the fixed set offered by the expense form.
const (
	CategoryFoodBeverage = "Food & Beverage"
	CategoryUtilities    = "Utilita"
	CategoryRent         = "Affitto"
	CategoryBills        = "Bollete"
	CategoryOther        = "Altro"
)

// ExpenseCategories lists the valid expense categories.
var ExpenseCategories = []string{
	CategoryFoodBeverage,
	CategoryUtilities,
	CategoryRent,
	CategoryBills,
	CategoryOther,
}

// ValidCategory reports whether c is a known expense category.
func ValidCategory(c string) bool {
	for _, v := range ExpenseCategories {
		if v == c {
			return true
		}
	}
	return false
}

// Expense is one outgoing entry.
type Expense struct {
	Name     string  `json:"name"`
	Amount   float64 `json:"amount"`
	Category string  `json:"category"`
	Date     string  `json:"date"`
}

// BillReminders tracks which due-date reminders have already fired, so
// each fires at most once.
type BillReminders struct {
	ThreeDays bool `json:"three_days,omitempty"`
	OneDay    bool `json:"one_day,omitempty"`
}

// Bill is a payable with a due date.
type Bill struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	Amount    float64       `json:"amount"`
	DueDate   string        `json:"due_date"`
	Paid      bool          `json:"paid"`
	GroupID   string        `json:"group_id,omitempty"`
	Notified  BillReminders `json:"notified,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// BillGroup groups related bills.
type BillGroup struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Product is one purchasable item tracked for price comparison.
type Product struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Price     float64   `json:"price"`
	VAT       float64   `json:"vat"`
	Store     string    `json:"store"`
	CreatedAt time.Time `json:"created_at"`
}

// MenuItem is one dish on a menu.
type MenuItem struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Price       float64 `json:"price"`
	Category    string  `json:"category"`
}

// MenuCategory is a named section of the menu.
type MenuCategory struct {
	ID    string     `json:"id"`
	Name  string     `json:"name"`
	Icon  string     `json:"icon,omitempty"`
	Items []MenuItem `json:"items"`
}

// SavedMenu is a published menu reachable under its slug.
type SavedMenu struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Slug      string    `json:"slug"`
	Template  string    `json:"template"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MonthKey returns the month bucket key for a date, e.g. "2026-08".
func MonthKey(t time.Time) string {
	return fmt.Sprintf("%04d-%02d", t.Year(), int(t.Month()))
}
