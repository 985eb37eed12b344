package experience

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/quanticpro/backend/internal/httputil"
)

type awardRequest struct {
	Amount int `json:"amount"`
}

// RegisterRoutes registers the experience endpoints.
func (s *Service) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/experience", s.handleAward).Methods("POST")
}

// handleAward awards XP to the calling user.
func (s *Service) handleAward(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}

	var req awardRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	if req.Amount < 0 {
		httputil.BadRequest(w, "amount must not be negative")
		return
	}

	result, err := s.AddExperience(r.Context(), userID, req.Amount)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			httputil.NotFound(w, "user not found")
			return
		}
		s.logger.WithContext(r.Context()).WithError(err).Error("award experience")
		httputil.InternalError(w, "")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, result)
}
