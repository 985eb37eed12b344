package transactions

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	svcerr "github.com/quanticpro/backend/internal/errors"
	"github.com/quanticpro/backend/internal/httputil"
	"github.com/quanticpro/backend/services/experience"
	"github.com/quanticpro/backend/services/users"
)

// RegisterRoutes registers the ledger endpoints.
func (s *Service) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/transactions/incomes", s.handleListIncomes).Methods("GET")
	r.HandleFunc("/api/transactions/incomes", s.handleAddIncome).Methods("POST")
	r.HandleFunc("/api/transactions/incomes/{month}/{index}", s.handleUpdateIncome).Methods("PUT")
	r.HandleFunc("/api/transactions/incomes/{month}/{index}", s.handleDeleteIncome).Methods("DELETE")

	r.HandleFunc("/api/transactions/expenses", s.handleListExpenses).Methods("GET")
	r.HandleFunc("/api/transactions/expenses", s.handleAddExpense).Methods("POST")
	r.HandleFunc("/api/transactions/expenses/{month}/{index}", s.handleUpdateExpense).Methods("PUT")
	r.HandleFunc("/api/transactions/expenses/{month}/{index}", s.handleDeleteExpense).Methods("DELETE")

	r.HandleFunc("/api/transactions/summary", s.handleSummary).Methods("GET")
	r.HandleFunc("/api/transactions/categories", s.handleCategories).Methods("GET")
}

func (s *Service) respondError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, users.ErrNotFound) {
		httputil.NotFound(w, "user not found")
		return
	}
	if se := svcerr.GetServiceError(err); se != nil {
		httputil.WriteErrorResponse(w, r, se.HTTPStatus, string(se.Code), se.Message, se.Details)
		return
	}
	s.logger.WithContext(r.Context()).WithError(err).Error("transactions operation failed")
	httputil.InternalError(w, "")
}

// xpForSource maps the request surface to the award amount. The quick-add
// modal grants more than the ledger pages.
func xpForSource(r *http.Request) int {
	if r.URL.Query().Get("source") == "quick" {
		return experience.RewardQuickEntry
	}
	return experience.RewardLedgerEntry
}

func pathIndex(r *http.Request) (month string, index int, err error) {
	vars := mux.Vars(r)
	index, err = strconv.Atoi(vars["index"])
	return vars["month"], index, err
}

func (s *Service) handleListIncomes(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	if from, to := q.Get("from"), q.Get("to"); from != "" || to != "" {
		entries, err := s.ListIncomesPeriod(r.Context(), userID, from, to)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, entries)
		return
	}

	entries, err := s.ListIncomes(r.Context(), userID, q.Get("month"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if entries == nil {
		entries = []users.Income{}
	}
	httputil.WriteJSON(w, http.StatusOK, entries)
}

func (s *Service) handleAddIncome(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}

	var in IncomeInput
	if !httputil.DecodeJSON(w, r, &in) {
		return
	}

	entry, err := s.AddIncome(r.Context(), userID, in, xpForSource(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, entry)
}

func (s *Service) handleUpdateIncome(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	month, index, err := pathIndex(r)
	if err != nil {
		httputil.BadRequest(w, "invalid index")
		return
	}

	var in IncomeInput
	if !httputil.DecodeJSON(w, r, &in) {
		return
	}

	entry, err := s.UpdateIncome(r.Context(), userID, month, index, in)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entry)
}

func (s *Service) handleDeleteIncome(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	month, index, err := pathIndex(r)
	if err != nil {
		httputil.BadRequest(w, "invalid index")
		return
	}

	if err := s.DeleteIncome(r.Context(), userID, month, index); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	if from, to := q.Get("from"), q.Get("to"); from != "" || to != "" {
		entries, err := s.ListExpensesPeriod(r.Context(), userID, from, to)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, entries)
		return
	}

	entries, err := s.ListExpenses(r.Context(), userID, q.Get("month"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if entries == nil {
		entries = []users.Expense{}
	}
	httputil.WriteJSON(w, http.StatusOK, entries)
}

func (s *Service) handleAddExpense(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}

	var in ExpenseInput
	if !httputil.DecodeJSON(w, r, &in) {
		return
	}

	entry, err := s.AddExpense(r.Context(), userID, in, xpForSource(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, entry)
}

func (s *Service) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	month, index, err := pathIndex(r)
	if err != nil {
		httputil.BadRequest(w, "invalid index")
		return
	}

	var in ExpenseInput
	if !httputil.DecodeJSON(w, r, &in) {
		return
	}

	entry, err := s.UpdateExpense(r.Context(), userID, month, index, in)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entry)
}

func (s *Service) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	month, index, err := pathIndex(r)
	if err != nil {
		httputil.BadRequest(w, "invalid index")
		return
	}

	if err := s.DeleteExpense(r.Context(), userID, month, index); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleSummary(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}

	sum, err := s.Summarize(r.Context(), userID, r.URL.Query().Get("month"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sum)
}

func (s *Service) handleCategories(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, users.ExpenseCategories)
}
