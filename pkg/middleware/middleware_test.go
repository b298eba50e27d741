package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/skytrip/flight-bookings/pkg/auth"
)

type memStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string]string)}
}

func (s *memStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data[key], nil
}

func (s *memStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *memStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.data[key]; exists {
		return false, nil
	}
	s.data[key] = value
	return true, nil
}

func (s *memStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func TestIdempotencyReplaysSuccess(t *testing.T) {
	store := newMemStore()
	calls := 0
	handler := Idempotency(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"data":{"id":"ord-1"}}`))
	}))

	req := func() *http.Request {
		r := httptest.NewRequest(http.MethodPost, "/api/flights/book", strings.NewReader("{}"))
		r.Header.Set("Idempotency-Key", "attempt-1")
		return r
	}

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, req())
	if first.Code != http.StatusCreated || calls != 1 {
		t.Fatalf("first call: status %d, calls %d", first.Code, calls)
	}

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, req())
	if calls != 1 {
		t.Errorf("handler ran %d times, want 1", calls)
	}
	if second.Header().Get("X-Idempotent-Replay") != "true" {
		t.Error("replay header missing")
	}
	if second.Body.String() != `{"data":{"id":"ord-1"}}` {
		t.Errorf("replayed body %q", second.Body.String())
	}
}

func TestIdempotencyDoesNotCacheFailures(t *testing.T) {
	store := newMemStore()
	calls := 0
	handler := Idempotency(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "provider down", http.StatusBadGateway)
	}))

	for i := 0; i < 2; i++ {
		r := httptest.NewRequest(http.MethodPost, "/api/flights/book", strings.NewReader("{}"))
		r.Header.Set("Idempotency-Key", "attempt-1")
		handler.ServeHTTP(httptest.NewRecorder(), r)
	}
	if calls != 2 {
		t.Errorf("failed responses must not replay: handler ran %d times", calls)
	}
}

func TestIdempotencyConcurrentDuplicateConflicts(t *testing.T) {
	store := newMemStore()
	entered := make(chan struct{})
	release := make(chan struct{})
	var mu sync.Mutex
	calls := 0
	handler := Idempotency(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		entered <- struct{}{}
		<-release
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"data":{"id":"ord-1"}}`))
	}))

	req := func() *http.Request {
		r := httptest.NewRequest(http.MethodPost, "/api/flights/book", strings.NewReader("{}"))
		r.Header.Set("Idempotency-Key", "attempt-1")
		return r
	}

	done := make(chan struct{})
	go func() {
		handler.ServeHTTP(httptest.NewRecorder(), req())
		close(done)
	}()
	<-entered

	// A retry arriving while the original is still in flight must not reach
	// the handler a second time.
	second := httptest.NewRecorder()
	handler.ServeHTTP(second, req())
	if second.Code != http.StatusConflict {
		t.Fatalf("concurrent duplicate got %d, want 409", second.Code)
	}

	close(release)
	<-done

	// Once the original finished, a retry replays its response.
	third := httptest.NewRecorder()
	handler.ServeHTTP(third, req())
	if third.Header().Get("X-Idempotent-Replay") != "true" {
		t.Error("finished response not replayed")
	}

	mu.Lock()
	if calls != 1 {
		t.Errorf("handler ran %d times, want 1", calls)
	}
	mu.Unlock()
}

func TestIdempotencySkipsWithoutKey(t *testing.T) {
	store := newMemStore()
	calls := 0
	handler := Idempotency(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte("ok"))
	}))

	for i := 0; i < 2; i++ {
		r := httptest.NewRequest(http.MethodPost, "/api/flights/book", strings.NewReader("{}"))
		handler.ServeHTTP(httptest.NewRecorder(), r)
	}
	if calls != 2 {
		t.Errorf("keyless requests must pass through: handler ran %d times", calls)
	}
}

func TestOptionalJWT(t *testing.T) {
	const secret = "test-secret"

	token, err := auth.NewAccessToken("user-42", "ada@example.com", "customer", secret, time.Minute)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	var got *auth.Claims
	handler := OptionalJWT(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = ClaimsFromContext(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(httptest.NewRecorder(), r)

	if got == nil || got.Sub != "user-42" {
		t.Fatalf("claims not attached: %+v", got)
	}

	// Anonymous and garbage tokens pass through without claims.
	for _, header := range []string{"", "Bearer not-a-token"} {
		got = nil
		r := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
		if header != "" {
			r.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		if got != nil {
			t.Errorf("header %q: unexpected claims %+v", header, got)
		}
		if w.Code != http.StatusOK {
			t.Errorf("header %q: anonymous request blocked with %d", header, w.Code)
		}
	}
}

func TestHealthEndpoint(t *testing.T) {
	handler := Health(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Errorf("healthz returned %d", w.Code)
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/other", nil))
	if w.Code != http.StatusTeapot {
		t.Errorf("non-health path intercepted: %d", w.Code)
	}
}
