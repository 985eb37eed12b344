package users

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quanticpro/backend/supabase/client"
)

func newSupabaseStore(t *testing.T, handler http.HandlerFunc) *SupabaseStore {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := client.New(client.Config{URL: srv.URL, APIKey: "test-key"})
	require.NoError(t, err)
	return NewSupabaseStore(c)
}

func TestSupabaseStore_IncrementExperienceRPC(t *testing.T) {
	var gotParams map[string]any
	store := newSupabaseStore(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/rest/v1/rpc/add_experience", r.URL.Path)
		json.NewDecoder(r.Body).Decode(&gotParams)
		json.NewEncoder(w).Encode(map[string]any{"exp": 510, "level": 2, "badge": "Novice"})
	})

	state, err := store.IncrementExperience(context.Background(), "u1", 20)
	require.NoError(t, err)

	assert.Equal(t, "u1", gotParams["p_user_id"])
	assert.Equal(t, float64(20), gotParams["p_amount"])
	assert.Equal(t, 510, state.Exp)
	assert.Equal(t, 2, state.Level)
	assert.Equal(t, "Novice", state.Badge)
}

func TestSupabaseStore_IncrementExperienceMissingUser(t *testing.T) {
	// The database function yields the zeroed object when the row does not
	// exist; an existing row always derives level >= 1.
	store := newSupabaseStore(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"exp": 0, "level": 0, "badge": ""})
	})

	_, err := store.IncrementExperience(context.Background(), "ghost", 10)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSupabaseStore_IncrementExperienceFallback(t *testing.T) {
	// A project without the database function answers the RPC with 404; the
	// store then reads, recomputes and patches the row itself.
	var patched map[string]any
	store := newSupabaseStore(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/rest/v1/rpc/add_experience":
			w.WriteHeader(http.StatusNotFound)
		case r.Method == http.MethodGet:
			json.NewEncoder(w).Encode(map[string]any{"id": "u1", "exp": 480, "level": 1, "badge": "Novice"})
		case r.Method == http.MethodPatch:
			json.NewDecoder(r.Body).Decode(&patched)
			w.Write([]byte(`[{"id":"u1"}]`))
		}
	})

	state, err := store.IncrementExperience(context.Background(), "u1", 20)
	require.NoError(t, err)

	assert.Equal(t, 500, state.Exp)
	assert.Equal(t, 2, state.Level)
	assert.Equal(t, float64(500), patched["exp"])
	assert.Equal(t, float64(2), patched["level"])
	assert.Equal(t, "Novice", patched["badge"])
}
