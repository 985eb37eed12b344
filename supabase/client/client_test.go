package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(Config{URL: srv.URL, APIKey: "test-key"})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return c, srv
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Config{APIKey: "k"}); err == nil {
		t.Error("New() without URL should fail")
	}
	if _, err := New(Config{URL: "http://x"}); err == nil {
		t.Error("New() without APIKey should fail")
	}
}

func TestQueryBuilder_Select(t *testing.T) {
	var gotPath, gotQuery, gotKey string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotKey = r.Header.Get("apikey")
		json.NewEncoder(w).Encode([]map[string]any{{"id": "u1"}})
	})

	resp, err := c.From("users").Select("id,exp").Eq("id", "u1").Limit(1).Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if gotPath != "/rest/v1/users" {
		t.Errorf("path = %q, want /rest/v1/users", gotPath)
	}
	if gotQuery != "id=eq.u1&limit=1&select=id%2Cexp" {
		t.Errorf("query = %q", gotQuery)
	}
	if gotKey != "test-key" {
		t.Errorf("apikey header = %q", gotKey)
	}
}

func TestQueryBuilder_SingleNotFound(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") != "application/vnd.pgrst.object+json" {
			t.Errorf("Accept = %q, want pgrst object", r.Header.Get("Accept"))
		}
		w.WriteHeader(http.StatusNotAcceptable)
	})

	_, err := c.From("users").Eq("id", "missing").Single().Execute(context.Background())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestQueryBuilder_PartialUpdate(t *testing.T) {
	var gotMethod, gotQuery string
	var gotBody map[string]any
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotQuery = r.URL.RawQuery
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte("[]"))
	})

	fields := map[string]any{"exp": 500, "level": 2, "badge": "Junior"}
	resp, err := c.From("users").Eq("id", "u1").ExecuteUpdate(context.Background(), fields)
	if err != nil {
		t.Fatalf("ExecuteUpdate() error: %v", err)
	}
	if err := resp.Error(); err != nil {
		t.Fatalf("response error: %v", err)
	}
	if gotMethod != http.MethodPatch {
		t.Errorf("method = %s, want PATCH", gotMethod)
	}
	if gotQuery != "id=eq.u1" {
		t.Errorf("query = %q, want id=eq.u1", gotQuery)
	}
	if len(gotBody) != 3 {
		t.Errorf("patch body has %d fields, want 3", len(gotBody))
	}
}

func TestQueryBuilder_Upsert(t *testing.T) {
	var gotPrefer, gotConflict string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPrefer = r.Header.Get("Prefer")
		gotConflict = r.Header.Get("On-Conflict")
		w.Write([]byte("[]"))
	})

	_, err := c.From("menus").OnConflict("slug").ExecuteInsert(context.Background(), map[string]any{"slug": "pizza"})
	if err != nil {
		t.Fatalf("ExecuteInsert() error: %v", err)
	}
	if gotPrefer != "resolution=merge-duplicates,return=representation" {
		t.Errorf("Prefer = %q", gotPrefer)
	}
	if gotConflict != "slug" {
		t.Errorf("On-Conflict = %q, want slug", gotConflict)
	}
}

func TestRPC(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/v1/rpc/add_experience" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var params map[string]any
		json.NewDecoder(r.Body).Decode(&params)
		if params["p_amount"] != float64(20) {
			t.Errorf("p_amount = %v, want 20", params["p_amount"])
		}
		json.NewEncoder(w).Encode(map[string]any{"exp": 500, "level": 2, "badge": "Junior"})
	})

	resp, err := c.RPC(context.Background(), "add_experience", map[string]any{
		"p_user_id": "u1",
		"p_amount":  20,
	})
	if err != nil {
		t.Fatalf("RPC() error: %v", err)
	}

	var out struct {
		Exp   int    `json:"exp"`
		Level int    `json:"level"`
		Badge string `json:"badge"`
	}
	if err := resp.JSON(&out); err != nil {
		t.Fatalf("JSON() error: %v", err)
	}
	if out.Exp != 500 || out.Level != 2 || out.Badge != "Junior" {
		t.Errorf("RPC result = %+v", out)
	}
}

func TestResponse_Error(t *testing.T) {
	r := &Response{StatusCode: 400, Body: []byte(`{"message":"bad filter"}`)}
	if err := r.Error(); err == nil || err.Error() != "supabase error: bad filter" {
		t.Errorf("Error() = %v", err)
	}

	ok := &Response{StatusCode: 200}
	if err := ok.Error(); err != nil {
		t.Errorf("Error() on 200 = %v", err)
	}
}

func TestCircuitBreaker_OpensAfterFailures(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 2,
		SuccessThreshold: 1,
		Timeout:          50 * time.Millisecond,
	})

	cb.RecordFailure(errors.New("boom"))
	if cb.State() != CircuitClosed {
		t.Fatalf("state after one failure = %v, want closed", cb.State())
	}

	cb.RecordFailure(errors.New("boom"))
	if cb.State() != CircuitOpen {
		t.Fatalf("state after threshold = %v, want open", cb.State())
	}
	if err := cb.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Allow() while open = %v, want ErrCircuitOpen", err)
	}

	// After the timeout the breaker half-opens and a success closes it.
	time.Sleep(60 * time.Millisecond)
	if err := cb.Allow(); err != nil {
		t.Fatalf("Allow() after timeout = %v", err)
	}
	if cb.State() != CircuitHalfOpen {
		t.Fatalf("state = %v, want half-open", cb.State())
	}
	cb.RecordSuccess()
	if cb.State() != CircuitClosed {
		t.Errorf("state after success = %v, want closed", cb.State())
	}
}

func TestResilientClient_RetriesOn503(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	retry := DefaultRetryConfig()
	retry.InitialBackoff = time.Millisecond
	rc := NewResilientClient(ResilientClientConfig{
		RetryConfig:          retry,
		CircuitBreakerConfig: DefaultCircuitBreakerConfig(),
	})

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := rc.Do(req)
	if err != nil {
		t.Fatalf("Do() error: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("server calls = %d, want 3", got)
	}
	if m := rc.Metrics(); m["retried_requests"] != 2 {
		t.Errorf("retried_requests = %d, want 2", m["retried_requests"])
	}
}

func TestNewEnhanced_WithoutResilience(t *testing.T) {
	c, err := NewEnhanced(EnhancedConfig{Config: Config{URL: "http://localhost", APIKey: "k"}})
	if err != nil {
		t.Fatalf("NewEnhanced() error: %v", err)
	}
	if c == nil {
		t.Fatal("NewEnhanced() returned nil client")
	}
}
