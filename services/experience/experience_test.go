package experience

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
	"github.com/quanticpro/backend/services/leveling"
	"github.com/quanticpro/backend/services/users"
)

type recordedNotification struct {
	title   string
	message string
	kind    string
}

type fakeNotifier struct {
	sent []recordedNotification
}

func (f *fakeNotifier) Notify(_ context.Context, _, title, message, kind string) {
	f.sent = append(f.sent, recordedNotification{title, message, kind})
}

func newTestService(t *testing.T, exp int) (*Service, *users.MemoryStore, *fakeNotifier) {
	t.Helper()
	store := users.NewMemoryStore()
	u := users.NewUser("u1", "owner@trattoria.it")
	u.Exp = exp
	u.Level = leveling.CalculateLevel(exp)
	u.Badge = leveling.BadgeForExp(exp)
	require.NoError(t, store.Create(context.Background(), u))

	notifier := &fakeNotifier{}
	return NewService(store, notifier, nil, logging.NewNop()), store, notifier
}

func TestAddExperience_AwardsAndNotifies(t *testing.T) {
	svc, store, notifier := newTestService(t, 100)

	result, err := svc.AddExperience(context.Background(), "u1", 20)
	require.NoError(t, err)

	assert.Equal(t, 120, result.Exp)
	assert.Equal(t, 1, result.Level)
	assert.False(t, result.LeveledUp)

	u, err := store.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 120, u.Exp)

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "+20 XP", notifier.sent[0].message)
	assert.Equal(t, "xp", notifier.sent[0].kind)
}

func TestAddExperience_LevelUp(t *testing.T) {
	svc, _, notifier := newTestService(t, 480)

	result, err := svc.AddExperience(context.Background(), "u1", 20)
	require.NoError(t, err)

	assert.Equal(t, 500, result.Exp)
	assert.Equal(t, 2, result.Level)
	assert.True(t, result.LeveledUp)

	require.Len(t, notifier.sent, 2)
	assert.Equal(t, "Sei salito al livello 2!", notifier.sent[1].message)
	assert.Equal(t, "level_up", notifier.sent[1].kind)
}

func TestAddExperience_BadgePromotion(t *testing.T) {
	// 2480 + 20 crosses into level 6 and the Junior badge tier.
	svc, _, _ := newTestService(t, 2480)

	result, err := svc.AddExperience(context.Background(), "u1", 20)
	require.NoError(t, err)

	assert.Equal(t, 6, result.Level)
	assert.Equal(t, leveling.BadgeJunior, result.Badge)
}

func TestAddExperience_ZeroAmount(t *testing.T) {
	svc, store, notifier := newTestService(t, 100)

	result, err := svc.AddExperience(context.Background(), "u1", 0)
	require.NoError(t, err)

	assert.Equal(t, 100, result.Exp)
	assert.False(t, result.LeveledUp)
	assert.Empty(t, notifier.sent)

	u, err := store.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 100, u.Exp)
}

func TestAddExperience_NegativeAmountRejected(t *testing.T) {
	svc, _, notifier := newTestService(t, 100)

	_, err := svc.AddExperience(context.Background(), "u1", -10)
	require.Error(t, err)
	assert.Empty(t, notifier.sent)
}

func TestAddExperience_UnknownUser(t *testing.T) {
	svc := NewService(users.NewMemoryStore(), &fakeNotifier{}, nil, logging.NewNop())

	_, err := svc.AddExperience(context.Background(), "ghost", 20)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestGrant_UnknownUserIsNoOp(t *testing.T) {
	notifier := &fakeNotifier{}
	svc := NewService(users.NewMemoryStore(), notifier, nil, logging.NewNop())

	// Must not panic and must not notify.
	svc.Grant(context.Background(), "ghost", 20)
	assert.Empty(t, notifier.sent)
}

func awardRequestBody(t *testing.T, amount int) *bytes.Reader {
	t.Helper()
	b, err := json.Marshal(awardRequest{Amount: amount})
	require.NoError(t, err)
	return bytes.NewReader(b)
}

func TestHandleAward(t *testing.T) {
	svc, _, _ := newTestService(t, 480)
	router := mux.NewRouter()
	svc.RegisterRoutes(router)

	req := httptest.NewRequest("POST", "/api/experience", awardRequestBody(t, 20))
	req = req.WithContext(context.WithValue(req.Context(), logging.UserIDKey, "u1"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var result Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 500, result.Exp)
	assert.True(t, result.LeveledUp)
}

func TestHandleAward_NegativeAmount(t *testing.T) {
	svc, _, _ := newTestService(t, 0)
	router := mux.NewRouter()
	svc.RegisterRoutes(router)

	req := httptest.NewRequest("POST", "/api/experience", awardRequestBody(t, -5))
	req = req.WithContext(context.WithValue(req.Context(), logging.UserIDKey, "u1"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleAward_UnknownUser(t *testing.T) {
	svc := NewService(users.NewMemoryStore(), &fakeNotifier{}, nil, logging.NewNop())
	router := mux.NewRouter()
	svc.RegisterRoutes(router)

	req := httptest.NewRequest("POST", "/api/experience", awardRequestBody(t, 20))
	req = req.WithContext(context.WithValue(req.Context(), logging.UserIDKey, "ghost"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
