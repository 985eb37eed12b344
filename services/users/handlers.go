package users

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/quanticpro/backend/internal/httputil"
	"github.com/quanticpro/backend/internal/logging"
	"github.com/quanticpro/backend/supabase/client"
)

// RegisterRoutes registers the user endpoints.
func (s *Service) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/users/me", s.handleMe).Methods("GET")
	r.HandleFunc("/api/users/me/progress", s.handleProgress).Methods("GET")
	r.HandleFunc("/api/users/me/stream", s.handleStream).Methods("GET")
}

// handleMe returns the caller's document, creating it on first request.
func (s *Service) handleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}

	u, err := s.Ensure(r.Context(), userID, logging.GetEmail(r.Context()))
	if err != nil {
		s.logger.WithContext(r.Context()).WithError(err).Error("load user")
		httputil.InternalError(w, "")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, u)
}

// handleProgress returns the caller's level progress.
func (s *Service) handleProgress(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}

	p, err := s.Progress(r.Context(), userID)
	if err != nil {
		if err == ErrNotFound {
			httputil.NotFound(w, "user not found")
			return
		}
		s.logger.WithContext(r.Context()).WithError(err).Error("load progress")
		httputil.InternalError(w, "")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, p)
}

// handleStream serves the user's document changes as server-sent events.
func (s *Service) handleStream(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.InternalError(w, "streaming unsupported")
		return
	}

	events := make(chan json.RawMessage, 16)
	sub, err := s.Watch(r.Context(), userID, func(event *client.RealtimeEvent) {
		var doc json.RawMessage
		if err := event.Record(&doc); err != nil {
			return
		}
		select {
		case events <- doc:
		default:
			// Slow consumer; drop the update, the next one supersedes it.
		}
	})
	if err != nil {
		s.logger.WithContext(r.Context()).WithError(err).Error("subscribe to user changes")
		httputil.WriteErrorResponse(w, r, http.StatusServiceUnavailable, "stream_unavailable", "live updates unavailable", nil)
		return
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = sub.Unsubscribe(ctx)
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(25 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		case doc := <-events:
			fmt.Fprintf(w, "event: user\ndata: %s\n\n", doc)
			flusher.Flush()
		}
	}
}
