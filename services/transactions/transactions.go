// Package transactions manages the income and expense ledgers stored on
// the user document, grouped by month key ("2026-08").
package transactions

import (
	"context"
	"fmt"
	"time"

	svcerr "github.com/quanticpro/backend/internal/errors"
	"github.com/quanticpro/backend/internal/logging"
	"github.com/quanticpro/backend/services/experience"
	"github.com/quanticpro/backend/services/users"
)

const dateLayout = "2006-01-02"
const monthLayout = "2006-01"

// Service manages the income and expense ledgers.
type Service struct {
	store  users.Store
	xp     *experience.Service
	logger *logging.Logger
}

// NewService creates the transactions service.
func NewService(store users.Store, xp *experience.Service, logger *logging.Logger) *Service {
	return &Service{store: store, xp: xp, logger: logger}
}

// IncomeInput is the payload for adding or editing an income entry.
type IncomeInput struct {
	Cash float64 `json:"cash"`
	Pos  float64 `json:"pos"`
	Date string  `json:"date"`
}

func (in *IncomeInput) validate() error {
	if in.Cash < 0 || in.Pos < 0 {
		return svcerr.InvalidInput("cash and pos must not be negative")
	}
	if _, err := time.Parse(dateLayout, in.Date); err != nil {
		return svcerr.InvalidInput("date must be YYYY-MM-DD")
	}
	return nil
}

func (in *IncomeInput) entry() users.Income {
	return users.Income{
		Cash:  in.Cash,
		Pos:   in.Pos,
		Total: in.Cash + in.Pos,
		Date:  in.Date,
	}
}

// ExpenseInput is the payload for adding or editing an expense entry.
type ExpenseInput struct {
	Name     string  `json:"name"`
	Amount   float64 `json:"amount"`
	Category string  `json:"category"`
	Date     string  `json:"date"`
}

func (in *ExpenseInput) validate() error {
	if in.Name == "" {
		return svcerr.InvalidInput("name is required")
	}
	if in.Amount <= 0 {
		return svcerr.InvalidInput("amount must be positive")
	}
	if !users.ValidCategory(in.Category) {
		return svcerr.InvalidInput("unknown category")
	}
	if _, err := time.Parse(dateLayout, in.Date); err != nil {
		return svcerr.InvalidInput("date must be YYYY-MM-DD")
	}
	return nil
}

func (in *ExpenseInput) entry() users.Expense {
	return users.Expense{
		Name:     in.Name,
		Amount:   in.Amount,
		Category: in.Category,
		Date:     in.Date,
	}
}

func monthOf(date string) string {
	d, _ := time.Parse(dateLayout, date)
	return users.MonthKey(d)
}

func validMonth(month string) bool {
	_, err := time.Parse(monthLayout, month)
	return err == nil
}

// ListIncomes returns the income entries for a month.
func (s *Service) ListIncomes(ctx context.Context, userID, month string) ([]users.Income, error) {
	if !validMonth(month) {
		return nil, svcerr.InvalidInput("month must be YYYY-MM")
	}
	u, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return u.Incomes[month], nil
}

// ListIncomesPeriod returns income entries for an inclusive month range.
func (s *Service) ListIncomesPeriod(ctx context.Context, userID, from, to string) (map[string][]users.Income, error) {
	if !validMonth(from) || !validMonth(to) || from > to {
		return nil, svcerr.InvalidInput("invalid month range")
	}
	u, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make(map[string][]users.Income)
	for month, entries := range u.Incomes {
		if month >= from && month <= to {
			out[month] = entries
		}
	}
	return out, nil
}

// AddIncome appends an income entry and awards XP. xpAmount follows the
// caller's surface (quick-add modal or ledger page).
func (s *Service) AddIncome(ctx context.Context, userID string, in IncomeInput, xpAmount int) (*users.Income, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	u, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	month := monthOf(in.Date)
	incomes := u.Incomes
	if incomes == nil {
		incomes = make(map[string][]users.Income)
	}
	entry := in.entry()
	incomes[month] = append(incomes[month], entry)

	if err := s.store.UpdateFields(ctx, userID, map[string]any{"incomes": incomes}); err != nil {
		return nil, fmt.Errorf("save incomes: %w", err)
	}

	s.xp.Grant(ctx, userID, xpAmount)
	return &entry, nil
}

// UpdateIncome replaces the entry at index within a month's bucket. When
// the new date moves the entry to another month, it is rehomed.
func (s *Service) UpdateIncome(ctx context.Context, userID, month string, index int, in IncomeInput) (*users.Income, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	u, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	entries := u.Incomes[month]
	if index < 0 || index >= len(entries) {
		return nil, svcerr.NotFound("income entry not found")
	}

	entry := in.entry()
	newMonth := monthOf(in.Date)
	if newMonth == month {
		entries[index] = entry
		u.Incomes[month] = entries
	} else {
		u.Incomes[month] = append(entries[:index], entries[index+1:]...)
		if len(u.Incomes[month]) == 0 {
			delete(u.Incomes, month)
		}
		u.Incomes[newMonth] = append(u.Incomes[newMonth], entry)
	}

	if err := s.store.UpdateFields(ctx, userID, map[string]any{"incomes": u.Incomes}); err != nil {
		return nil, fmt.Errorf("save incomes: %w", err)
	}

	s.xp.Grant(ctx, userID, experience.RewardLedgerEntry)
	return &entry, nil
}

// DeleteIncome removes the entry at index within a month's bucket.
func (s *Service) DeleteIncome(ctx context.Context, userID, month string, index int) error {
	u, err := s.store.Get(ctx, userID)
	if err != nil {
		return err
	}

	entries := u.Incomes[month]
	if index < 0 || index >= len(entries) {
		return svcerr.NotFound("income entry not found")
	}

	u.Incomes[month] = append(entries[:index], entries[index+1:]...)
	if len(u.Incomes[month]) == 0 {
		delete(u.Incomes, month)
	}

	if err := s.store.UpdateFields(ctx, userID, map[string]any{"incomes": u.Incomes}); err != nil {
		return fmt.Errorf("save incomes: %w", err)
	}

	s.xp.Grant(ctx, userID, experience.RewardLedgerEntry)
	return nil
}

// ListExpenses returns the expense entries for a month.
func (s *Service) ListExpenses(ctx context.Context, userID, month string) ([]users.Expense, error) {
	if !validMonth(month) {
		return nil, svcerr.InvalidInput("month must be YYYY-MM")
	}
	u, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return u.Expenses[month], nil
}

// ListExpensesPeriod returns expense entries for an inclusive month range.
func (s *Service) ListExpensesPeriod(ctx context.Context, userID, from, to string) (map[string][]users.Expense, error) {
	if !validMonth(from) || !validMonth(to) || from > to {
		return nil, svcerr.InvalidInput("invalid month range")
	}
	u, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make(map[string][]users.Expense)
	for month, entries := range u.Expenses {
		if month >= from && month <= to {
			out[month] = entries
		}
	}
	return out, nil
}

// AddExpense appends an expense entry and awards XP.
func (s *Service) AddExpense(ctx context.Context, userID string, in ExpenseInput, xpAmount int) (*users.Expense, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	u, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	month := monthOf(in.Date)
	expenses := u.Expenses
	if expenses == nil {
		expenses = make(map[string][]users.Expense)
	}
	entry := in.entry()
	expenses[month] = append(expenses[month], entry)

	if err := s.store.UpdateFields(ctx, userID, map[string]any{"expenses": expenses}); err != nil {
		return nil, fmt.Errorf("save expenses: %w", err)
	}

	s.xp.Grant(ctx, userID, xpAmount)
	return &entry, nil
}

// UpdateExpense replaces the entry at index within a month's bucket.
func (s *Service) UpdateExpense(ctx context.Context, userID, month string, index int, in ExpenseInput) (*users.Expense, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	u, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	entries := u.Expenses[month]
	if index < 0 || index >= len(entries) {
		return nil, svcerr.NotFound("expense entry not found")
	}

	entry := in.entry()
	newMonth := monthOf(in.Date)
	if newMonth == month {
		entries[index] = entry
		u.Expenses[month] = entries
	} else {
		u.Expenses[month] = append(entries[:index], entries[index+1:]...)
		if len(u.Expenses[month]) == 0 {
			delete(u.Expenses, month)
		}
		u.Expenses[newMonth] = append(u.Expenses[newMonth], entry)
	}

	if err := s.store.UpdateFields(ctx, userID, map[string]any{"expenses": u.Expenses}); err != nil {
		return nil, fmt.Errorf("save expenses: %w", err)
	}

	s.xp.Grant(ctx, userID, experience.RewardLedgerEntry)
	return &entry, nil
}

// DeleteExpense removes the entry at index within a month's bucket.
func (s *Service) DeleteExpense(ctx context.Context, userID, month string, index int) error {
	u, err := s.store.Get(ctx, userID)
	if err != nil {
		return err
	}

	entries := u.Expenses[month]
	if index < 0 || index >= len(entries) {
		return svcerr.NotFound("expense entry not found")
	}

	u.Expenses[month] = append(entries[:index], entries[index+1:]...)
	if len(u.Expenses[month]) == 0 {
		delete(u.Expenses, month)
	}

	if err := s.store.UpdateFields(ctx, userID, map[string]any{"expenses": u.Expenses}); err != nil {
		return fmt.Errorf("save expenses: %w", err)
	}

	s.xp.Grant(ctx, userID, experience.RewardLedgerEntry)
	return nil
}

// Summary aggregates one month of the ledgers.
type Summary struct {
	Month        string  `json:"month"`
	TotalCash    float64 `json:"total_cash"`
	TotalPos     float64 `json:"total_pos"`
	TotalIncome  float64 `json:"total_income"`
	TotalExpense float64 `json:"total_expense"`
	Net          float64 `json:"net"`
	// DailyAverage is the income total divided by the number of days
	// that have at least one entry.
	DailyAverage float64            `json:"daily_average"`
	ByCategory   map[string]float64 `json:"by_category"`
}

// Summarize computes the monthly summary.
func (s *Service) Summarize(ctx context.Context, userID, month string) (*Summary, error) {
	if !validMonth(month) {
		return nil, svcerr.InvalidInput("month must be YYYY-MM")
	}
	u, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	sum := &Summary{Month: month, ByCategory: make(map[string]float64)}

	days := make(map[string]bool)
	for _, in := range u.Incomes[month] {
		sum.TotalCash += in.Cash
		sum.TotalPos += in.Pos
		sum.TotalIncome += in.Total
		days[in.Date] = true
	}
	for _, ex := range u.Expenses[month] {
		sum.TotalExpense += ex.Amount
		sum.ByCategory[ex.Category] += ex.Amount
	}

	sum.Net = sum.TotalIncome - sum.TotalExpense
	if len(days) > 0 {
		sum.DailyAverage = sum.TotalIncome / float64(len(days))
	}
	return sum, nil
}
