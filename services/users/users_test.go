package users

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quanticpro/backend/internal/logging"
	"github.com/quanticpro/backend/services/leveling"
)

func TestNewUser_Defaults(t *testing.T) {
	u := NewUser("u1", "owner@trattoria.it")

	assert.Equal(t, 0, u.Exp)
	assert.Equal(t, 1, u.Level)
	assert.Equal(t, leveling.BadgeNovice, u.Badge)
	assert.False(t, u.IsPremium)
	assert.False(t, u.CreatedAt.IsZero())
}

func TestMemoryStore_GetNotFound(t *testing.T) {
	s := NewMemoryStore()

	_, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_UpdateFieldsPartial(t *testing.T) {
	s := NewMemoryStore()
	u := NewUser("u1", "owner@trattoria.it")
	u.Exp = 120
	require.NoError(t, s.Create(context.Background(), u))

	err := s.UpdateFields(context.Background(), "u1", map[string]any{
		"is_premium": true,
	})
	require.NoError(t, err)

	got, err := s.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, got.IsPremium)
	// Untouched fields survive a partial update.
	assert.Equal(t, 120, got.Exp)
	assert.Equal(t, "owner@trattoria.it", got.Email)
}

func TestMemoryStore_UpdateFieldsNotFound(t *testing.T) {
	s := NewMemoryStore()

	err := s.UpdateFields(context.Background(), "missing", map[string]any{"exp": 1})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_IncrementExperience(t *testing.T) {
	s := NewMemoryStore()
	u := NewUser("u1", "owner@trattoria.it")
	u.Exp = 480
	require.NoError(t, s.Create(context.Background(), u))

	state, err := s.IncrementExperience(context.Background(), "u1", 20)
	require.NoError(t, err)

	assert.Equal(t, 500, state.Exp)
	assert.Equal(t, 2, state.Level)
	assert.Equal(t, leveling.BadgeNovice, state.Badge)
}

func TestMemoryStore_IncrementClampsAtZero(t *testing.T) {
	s := NewMemoryStore()
	u := NewUser("u1", "owner@trattoria.it")
	u.Exp = 10
	require.NoError(t, s.Create(context.Background(), u))

	state, err := s.IncrementExperience(context.Background(), "u1", -50)
	require.NoError(t, err)

	assert.Equal(t, 0, state.Exp)
	assert.Equal(t, 1, state.Level)
}

func TestService_EnsureCreatesOnFirstSight(t *testing.T) {
	store := NewMemoryStore()
	svc := NewService(store, nil, logging.NewNop())

	u, err := svc.Ensure(context.Background(), "u1", "owner@trattoria.it")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
	assert.Equal(t, "owner@trattoria.it", u.Email)

	// Second call returns the stored document, not a fresh one.
	require.NoError(t, store.UpdateFields(context.Background(), "u1", map[string]any{"exp": 42}))
	again, err := svc.Ensure(context.Background(), "u1", "owner@trattoria.it")
	require.NoError(t, err)
	assert.Equal(t, 42, again.Exp)
}

func TestService_Progress(t *testing.T) {
	store := NewMemoryStore()
	u := NewUser("u1", "owner@trattoria.it")
	u.Exp = 750
	u.Level = leveling.CalculateLevel(750)
	u.Badge = leveling.BadgeForExp(750)
	require.NoError(t, store.Create(context.Background(), u))

	svc := NewService(store, nil, logging.NewNop())
	p, err := svc.Progress(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, 750, p.Exp)
	assert.Equal(t, 2, p.Level)
	assert.Equal(t, 50.0, p.Progress)
	assert.Equal(t, 1000, p.NextLevel)
}

func authedRequest(method, path string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	ctx := context.WithValue(req.Context(), logging.UserIDKey, "u1")
	ctx = context.WithValue(ctx, logging.EmailKey, "owner@trattoria.it")
	return req.WithContext(ctx)
}

func TestHandleMe_ProvisionsDocument(t *testing.T) {
	svc := NewService(NewMemoryStore(), nil, logging.NewNop())
	router := mux.NewRouter()
	svc.RegisterRoutes(router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest("GET", "/api/users/me"))

	require.Equal(t, http.StatusOK, rec.Code)

	var u User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &u))
	assert.Equal(t, "u1", u.ID)
	assert.Equal(t, "owner@trattoria.it", u.Email)
	assert.Equal(t, 1, u.Level)
}

func TestHandleMe_Unauthenticated(t *testing.T) {
	svc := NewService(NewMemoryStore(), nil, logging.NewNop())
	router := mux.NewRouter()
	svc.RegisterRoutes(router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/users/me", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleProgress(t *testing.T) {
	store := NewMemoryStore()
	u := NewUser("u1", "owner@trattoria.it")
	u.Exp = 2500
	u.Level = leveling.CalculateLevel(2500)
	u.Badge = leveling.BadgeForExp(2500)
	require.NoError(t, store.Create(context.Background(), u))

	svc := NewService(store, nil, logging.NewNop())
	router := mux.NewRouter()
	svc.RegisterRoutes(router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest("GET", "/api/users/me/progress"))

	require.Equal(t, http.StatusOK, rec.Code)

	var p Progress
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, 6, p.Level)
	assert.Equal(t, leveling.BadgeJunior, p.Badge)
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	require.NoError(t, err)
	return d
}

func TestMonthKey(t *testing.T) {
	assert.Equal(t, "2026-08", MonthKey(mustDate(t, "2026-08-29")))
	assert.Equal(t, "2026-01", MonthKey(mustDate(t, "2026-01-05")))
}
