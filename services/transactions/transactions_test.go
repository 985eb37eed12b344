package transactions

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quanticpro/backend/internal/logging"
	"github.com/quanticpro/backend/services/experience"
	"github.com/quanticpro/backend/services/users"
)

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, string, string, string, string) {}

func newTestService(t *testing.T) (*Service, users.Store) {
	t.Helper()
	store := users.NewMemoryStore()
	require.NoError(t, store.Create(context.Background(), users.NewUser("u1", "owner@trattoria.it")))

	xp := experience.NewService(store, nopNotifier{}, nil, logging.NewNop())
	return NewService(store, xp, logging.NewNop()), store
}

func TestAddIncome_BucketsByMonth(t *testing.T) {
	svc, store := newTestService(t)

	_, err := svc.AddIncome(context.Background(), "u1", IncomeInput{Cash: 150, Pos: 230.5, Date: "2026-08-29"}, experience.RewardLedgerEntry)
	require.NoError(t, err)
	_, err = svc.AddIncome(context.Background(), "u1", IncomeInput{Cash: 90, Pos: 120, Date: "2026-09-01"}, experience.RewardLedgerEntry)
	require.NoError(t, err)

	u, err := store.Get(context.Background(), "u1")
	require.NoError(t, err)

	require.Len(t, u.Incomes["2026-08"], 1)
	require.Len(t, u.Incomes["2026-09"], 1)
	assert.Equal(t, 380.5, u.Incomes["2026-08"][0].Total)
	// Two ledger mutations at 10 XP each.
	assert.Equal(t, 20, u.Exp)
}

func TestAddIncome_QuickEntryAwardsMore(t *testing.T) {
	svc, store := newTestService(t)

	_, err := svc.AddIncome(context.Background(), "u1", IncomeInput{Cash: 100, Date: "2026-08-29"}, experience.RewardQuickEntry)
	require.NoError(t, err)

	u, err := store.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 20, u.Exp)
}

func TestAddIncome_Validation(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.AddIncome(context.Background(), "u1", IncomeInput{Cash: -1, Date: "2026-08-29"}, 10)
	assert.Error(t, err)

	_, err = svc.AddIncome(context.Background(), "u1", IncomeInput{Cash: 1, Date: "29/08/2026"}, 10)
	assert.Error(t, err)
}

func TestUpdateIncome_RehomesAcrossMonths(t *testing.T) {
	svc, store := newTestService(t)

	_, err := svc.AddIncome(context.Background(), "u1", IncomeInput{Cash: 100, Date: "2026-08-29"}, 10)
	require.NoError(t, err)

	_, err = svc.UpdateIncome(context.Background(), "u1", "2026-08", 0, IncomeInput{Cash: 100, Date: "2026-09-02"})
	require.NoError(t, err)

	u, err := store.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, u.Incomes["2026-08"])
	require.Len(t, u.Incomes["2026-09"], 1)
	assert.Equal(t, "2026-09-02", u.Incomes["2026-09"][0].Date)
}

func TestUpdateIncome_IndexOutOfRange(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.UpdateIncome(context.Background(), "u1", "2026-08", 3, IncomeInput{Cash: 1, Date: "2026-08-01"})
	assert.Error(t, err)
}

func TestDeleteIncome(t *testing.T) {
	svc, store := newTestService(t)

	_, err := svc.AddIncome(context.Background(), "u1", IncomeInput{Cash: 100, Date: "2026-08-29"}, 10)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteIncome(context.Background(), "u1", "2026-08", 0))

	u, err := store.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, u.Incomes["2026-08"])
	// Add + delete, 10 XP each.
	assert.Equal(t, 20, u.Exp)
}

func TestAddExpense_CategoryValidation(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.AddExpense(context.Background(), "u1", ExpenseInput{
		Name: "Farina", Amount: 40, Category: "Nonexistent", Date: "2026-08-29",
	}, 10)
	assert.Error(t, err)

	_, err = svc.AddExpense(context.Background(), "u1", ExpenseInput{
		Name: "Farina", Amount: 40, Category: users.CategoryFoodBeverage, Date: "2026-08-29",
	}, 10)
	assert.NoError(t, err)
}

func TestSummarize(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, in := range []IncomeInput{
		{Cash: 100, Pos: 200, Date: "2026-08-01"},
		{Cash: 50, Pos: 150, Date: "2026-08-02"},
		{Cash: 80, Pos: 20, Date: "2026-08-02"},
	} {
		_, err := svc.AddIncome(ctx, "u1", in, 10)
		require.NoError(t, err)
	}
	_, err := svc.AddExpense(ctx, "u1", ExpenseInput{
		Name: "Affitto agosto", Amount: 900, Category: users.CategoryRent, Date: "2026-08-01",
	}, 10)
	require.NoError(t, err)

	sum, err := svc.Summarize(ctx, "u1", "2026-08")
	require.NoError(t, err)

	assert.Equal(t, 230.0, sum.TotalCash)
	assert.Equal(t, 370.0, sum.TotalPos)
	assert.Equal(t, 600.0, sum.TotalIncome)
	assert.Equal(t, 900.0, sum.TotalExpense)
	assert.Equal(t, -300.0, sum.Net)
	// Two distinct days with income entries.
	assert.Equal(t, 300.0, sum.DailyAverage)
	assert.Equal(t, 900.0, sum.ByCategory[users.CategoryRent])
}

func TestListIncomesPeriod(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, date := range []string{"2026-06-10", "2026-07-10", "2026-08-10"} {
		_, err := svc.AddIncome(ctx, "u1", IncomeInput{Cash: 10, Date: date}, 10)
		require.NoError(t, err)
	}

	got, err := svc.ListIncomesPeriod(ctx, "u1", "2026-07", "2026-08")
	require.NoError(t, err)

	assert.Len(t, got, 2)
	assert.Contains(t, got, "2026-07")
	assert.Contains(t, got, "2026-08")
}

func authedRequest(method, path string, body []byte) *http.Request {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	return req.WithContext(context.WithValue(req.Context(), logging.UserIDKey, "u1"))
}

func TestHandleAddIncome_QuickSource(t *testing.T) {
	svc, store := newTestService(t)
	router := mux.NewRouter()
	svc.RegisterRoutes(router)

	body, _ := json.Marshal(IncomeInput{Cash: 100, Pos: 50, Date: "2026-08-29"})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest("POST", "/api/transactions/incomes?source=quick", body))

	require.Equal(t, http.StatusCreated, rec.Code)

	u, err := store.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 20, u.Exp)
}

func TestHandleListIncomes_EmptyMonth(t *testing.T) {
	svc, _ := newTestService(t)
	router := mux.NewRouter()
	svc.RegisterRoutes(router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest("GET", "/api/transactions/incomes?month=2026-08", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestHandleSummary_BadMonth(t *testing.T) {
	svc, _ := newTestService(t)
	router := mux.NewRouter()
	svc.RegisterRoutes(router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest("GET", "/api/transactions/summary?month=august", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleDeleteIncome(t *testing.T) {
	svc, _ := newTestService(t)
	router := mux.NewRouter()
	svc.RegisterRoutes(router)

	body, _ := json.Marshal(IncomeInput{Cash: 10, Date: "2026-08-29"})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest("POST", "/api/transactions/incomes", body))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest("DELETE", "/api/transactions/incomes/2026-08/0", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
