package billing

import (
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	svcerr "github.com/quanticpro/backend/internal/errors"
	"github.com/quanticpro/backend/internal/httputil"
	"github.com/quanticpro/backend/internal/logging"
	"github.com/quanticpro/backend/services/users"
)

const maxWebhookBytes = 64 << 10

// RegisterRoutes registers the billing endpoints. The webhook is called
// by Stripe and is exempt from JWT auth; it authenticates by signature.
func (s *Service) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/billing/checkout", s.handleCheckout).Methods("POST")
	r.HandleFunc("/api/billing/cancel", s.handleCancel).Methods("POST")
	r.HandleFunc("/api/billing/webhook", s.handleWebhook).Methods("POST")
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
	s.logger.WithContext(r.Context()).WithError(err).Error("billing operation failed")
	httputil.InternalError(w, "")
}

func (s *Service) handleCheckout(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}

	url, err := s.Checkout(r.Context(), userID, logging.GetEmail(r.Context()))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"url": url})
}

func (s *Service) handleCancel(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}

	if err := s.Cancel(r.Context(), userID); err != nil {
		s.respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (s *Service) handleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
	if err != nil {
		httputil.BadRequest(w, "unreadable payload")
		return
	}

	if err := s.ProcessWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature")); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}
