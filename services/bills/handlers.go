package bills

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	svcerr "github.com/quanticpro/backend/internal/errors"
	"github.com/quanticpro/backend/internal/httputil"
	"github.com/quanticpro/backend/services/users"
)

// RegisterRoutes registers the bill endpoints.
func (s *Service) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/bills", s.handleList).Methods("GET")
	r.HandleFunc("/api/bills", s.handleAdd).Methods("POST")
	r.HandleFunc("/api/bills/{id}", s.handleUpdate).Methods("PUT")
	r.HandleFunc("/api/bills/{id}", s.handleDelete).Methods("DELETE")

	r.HandleFunc("/api/bill-groups", s.handleListGroups).Methods("GET")
	r.HandleFunc("/api/bill-groups", s.handleAddGroup).Methods("POST")
	r.HandleFunc("/api/bill-groups/{id}", s.handleDeleteGroup).Methods("DELETE")
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
	s.logger.WithContext(r.Context()).WithError(err).Error("bills operation failed")
	httputil.InternalError(w, "")
}

func (s *Service) handleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}

	list, err := s.List(r.Context(), userID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if list == nil {
		list = []users.Bill{}
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

func (s *Service) handleAdd(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}

	var in BillInput
	if !httputil.DecodeJSON(w, r, &in) {
		return
	}

	bill, err := s.Add(r.Context(), userID, in)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, bill)
}

func (s *Service) handleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}

	var in BillInput
	if !httputil.DecodeJSON(w, r, &in) {
		return
	}

	bill, err := s.Update(r.Context(), userID, mux.Vars(r)["id"], in)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, bill)
}

func (s *Service) handleDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}

	if err := s.Delete(r.Context(), userID, mux.Vars(r)["id"]); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleListGroups(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}

	groups, err := s.ListGroups(r.Context(), userID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if groups == nil {
		groups = []users.BillGroup{}
	}
	httputil.WriteJSON(w, http.StatusOK, groups)
}

func (s *Service) handleAddGroup(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}

	var in GroupInput
	if !httputil.DecodeJSON(w, r, &in) {
		return
	}

	group, err := s.AddGroup(r.Context(), userID, in)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, group)
}

func (s *Service) handleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}

	if err := s.DeleteGroup(r.Context(), userID, mux.Vars(r)["id"]); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
