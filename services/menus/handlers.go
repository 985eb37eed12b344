package menus

import (
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	svcerr "github.com/quanticpro/backend/internal/errors"
	"github.com/quanticpro/backend/internal/httputil"
	"github.com/quanticpro/backend/services/users"
)

const maxLogoBytes = 2 << 20

// RegisterRoutes registers the menu endpoints. The published-menu page
// is public; everything else requires authentication.
func (s *Service) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/menus/categories", s.handleListCategories).Methods("GET")
	r.HandleFunc("/api/menus/categories", s.handleAddCategory).Methods("POST")
	r.HandleFunc("/api/menus/categories/{id}", s.handleUpdateCategory).Methods("PUT")
	r.HandleFunc("/api/menus/categories/{id}", s.handleDeleteCategory).Methods("DELETE")

	r.HandleFunc("/api/menus/categories/{id}/items", s.handleAddItem).Methods("POST")
	r.HandleFunc("/api/menus/categories/{id}/items/{item}", s.handleUpdateItem).Methods("PUT")
	r.HandleFunc("/api/menus/categories/{id}/items/{item}", s.handleDeleteItem).Methods("DELETE")

	r.HandleFunc("/api/menus", s.handleListSaved).Methods("GET")
	r.HandleFunc("/api/menus", s.handleSave).Methods("POST")
	r.HandleFunc("/api/menus/{id}", s.handleDeleteSaved).Methods("DELETE")
	r.HandleFunc("/api/menus/logo", s.handleUploadLogo).Methods("POST")

	r.HandleFunc("/menu/{slug}", s.handlePublished).Methods("GET")
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
	s.logger.WithContext(r.Context()).WithError(err).Error("menus operation failed")
	httputil.InternalError(w, "")
}

func (s *Service) handleListCategories(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}

	list, err := s.ListCategories(r.Context(), userID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if list == nil {
		list = []users.MenuCategory{}
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

func (s *Service) handleAddCategory(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}

	var in CategoryInput
	if !httputil.DecodeJSON(w, r, &in) {
		return
	}

	category, err := s.AddCategory(r.Context(), userID, in)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, category)
}

func (s *Service) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}

	var in CategoryInput
	if !httputil.DecodeJSON(w, r, &in) {
		return
	}

	category, err := s.UpdateCategory(r.Context(), userID, mux.Vars(r)["id"], in)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, category)
}

func (s *Service) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}

	if err := s.DeleteCategory(r.Context(), userID, mux.Vars(r)["id"]); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleAddItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}

	var in ItemInput
	if !httputil.DecodeJSON(w, r, &in) {
		return
	}

	item, err := s.AddItem(r.Context(), userID, mux.Vars(r)["id"], in)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, item)
}

func (s *Service) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}

	var in ItemInput
	if !httputil.DecodeJSON(w, r, &in) {
		return
	}

	vars := mux.Vars(r)
	item, err := s.UpdateItem(r.Context(), userID, vars["id"], vars["item"], in)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, item)
}

func (s *Service) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}

	vars := mux.Vars(r)
	if err := s.DeleteItem(r.Context(), userID, vars["id"], vars["item"]); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleListSaved(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}

	list, err := s.ListSaved(r.Context(), userID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if list == nil {
		list = []users.SavedMenu{}
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

func (s *Service) handleSave(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}

	var in SaveInput
	if !httputil.DecodeJSON(w, r, &in) {
		return
	}

	saved, err := s.Save(r.Context(), userID, in)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, saved)
}

func (s *Service) handleDeleteSaved(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}

	if err := s.DeleteSaved(r.Context(), userID, mux.Vars(r)["id"]); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleUploadLogo(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}

	contentType := r.Header.Get("Content-Type")
	if contentType != "image/png" && contentType != "image/jpeg" {
		httputil.BadRequest(w, "logo must be image/png or image/jpeg")
		return
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxLogoBytes+1))
	if err != nil {
		httputil.BadRequest(w, "unreadable upload")
		return
	}
	if len(data) > maxLogoBytes {
		httputil.BadRequest(w, "logo exceeds 2MB")
		return
	}

	url, err := s.UploadLogo(r.Context(), userID, data, contentType)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"url": url})
}

// handlePublished serves the public menu page data.
func (s *Service) handlePublished(w http.ResponseWriter, r *http.Request) {
	m, err := s.GetPublished(r.Context(), mux.Vars(r)["slug"])
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, m)
}
