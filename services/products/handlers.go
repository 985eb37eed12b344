package products

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	svcerr "github.com/quanticpro/backend/internal/errors"
	"github.com/quanticpro/backend/internal/httputil"
	"github.com/quanticpro/backend/services/users"
)

// RegisterRoutes registers the product endpoints.
func (s *Service) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/products", s.handleList).Methods("GET")
	r.HandleFunc("/api/products", s.handleAdd).Methods("POST")
	r.HandleFunc("/api/products/groups", s.handleGroups).Methods("GET")
	r.HandleFunc("/api/products/{id}", s.handleUpdate).Methods("PUT")
	r.HandleFunc("/api/products/{id}", s.handleDelete).Methods("DELETE")
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
	s.logger.WithContext(r.Context()).WithError(err).Error("products operation failed")
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
		list = []users.Product{}
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

func (s *Service) handleAdd(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}

	var in ProductInput
	if !httputil.DecodeJSON(w, r, &in) {
		return
	}

	product, err := s.Add(r.Context(), userID, in)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, product)
}

func (s *Service) handleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}

	var in ProductInput
	if !httputil.DecodeJSON(w, r, &in) {
		return
	}

	product, err := s.Update(r.Context(), userID, mux.Vars(r)["id"], in)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, product)
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

func (s *Service) handleGroups(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}

	groups, err := s.Groups(r.Context(), userID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, groups)
}
