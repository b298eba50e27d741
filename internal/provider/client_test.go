package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/skytrip/flight-bookings/internal/domain"
	"github.com/skytrip/flight-bookings/pkg/config"
)

func newTestClient(baseURL string) *Client {
	return NewClient(config.AmadeusConfig{
		BaseURL:      baseURL,
		ClientID:     "test-id",
		ClientSecret: "test-secret",
		Timeout:      5 * time.Second,
	})
}

func tokenHandler(calls *int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		if r.PostForm.Get("grant_type") != "client_credentials" {
			http.Error(w, "bad grant", http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok-abc",
			"token_type":   "Bearer",
			"expires_in":   1799,
		})
	}
}

func TestAuthenticateConcurrentSingleRefresh(t *testing.T) {
	var tokenCalls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/security/oauth2/token" {
			http.NotFound(w, r)
			return
		}
		// Slow response widens the window in which all callers see an
		// expired credential.
		time.Sleep(50 * time.Millisecond)
		tokenHandler(&tokenCalls)(w, r)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)

	const n = 20
	tokens := make([]string, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			tokens[i], errs[i] = c.Authenticate(context.Background())
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: unexpected error: %v", i, errs[i])
		}
		if tokens[i] != "tok-abc" {
			t.Fatalf("caller %d: got token %q, want tok-abc", i, tokens[i])
		}
	}
	if got := atomic.LoadInt32(&tokenCalls); got != 1 {
		t.Fatalf("token endpoint called %d times, want 1", got)
	}
}

func TestAuthenticateReusesCachedToken(t *testing.T) {
	var tokenCalls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenHandler(&tokenCalls)(w, r)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	for i := 0; i < 5; i++ {
		if _, err := c.Authenticate(context.Background()); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	if got := atomic.LoadInt32(&tokenCalls); got != 1 {
		t.Fatalf("token endpoint called %d times, want 1", got)
	}
}

func TestRefreshSkipsFetchWhenCredentialTurnedFresh(t *testing.T) {
	var tokenCalls int32
	srv := httptest.NewServer(tokenHandler(&tokenCalls))
	defer srv.Close()

	c := newTestClient(srv.URL)
	c.mu.Lock()
	c.accessToken = "tok-cached"
	c.tokenExpiry = time.Now().Add(time.Hour)
	c.mu.Unlock()

	// A caller that observed a stale credential can enter the refresh path
	// just after another refresh completed; it must reuse that result.
	token, err := c.refreshToken(context.Background())
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if token != "tok-cached" {
		t.Errorf("got token %q, want the freshly cached one", token)
	}
	if got := atomic.LoadInt32(&tokenCalls); got != 0 {
		t.Errorf("token endpoint called %d times, want 0", got)
	}
}

func TestAuthenticateSurvivesWinnerCancellation(t *testing.T) {
	var tokenCalls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		tokenHandler(&tokenCalls)(w, r)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	// The refresh result is shared by every waiter, so the initiating
	// caller's cancellation must not fail the fetch.
	token, err := c.Authenticate(ctx)
	if err != nil {
		t.Fatalf("refresh aborted by caller cancellation: %v", err)
	}
	if token != "tok-abc" {
		t.Errorf("got token %q, want tok-abc", token)
	}
}

func TestAuthenticateFailureMapsToAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_client"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.Authenticate(context.Background())
	var authErr *domain.ProviderAuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("got %T (%v), want ProviderAuthError", err, err)
	}
}

// providerMux returns a server that always authenticates and routes the
// given handler for everything else.
func providerMux(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	var calls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/security/oauth2/token", tokenHandler(&calls))
	mux.HandleFunc("/", handler)
	return httptest.NewServer(mux)
}

func TestSearchEmptyResultsIsNotAnError(t *testing.T) {
	srv := providerMux(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"data": nil})
	})
	defer srv.Close()

	c := newTestClient(srv.URL)
	offers, err := c.Search(context.Background(), &domain.SearchCriteria{
		Origin: "JFK", Destination: "LHR", DepartureDate: "2026-10-01", Adults: 1,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if offers == nil || len(offers) != 0 {
		t.Fatalf("got %v, want empty non-nil slice", offers)
	}
}

func TestDoMapsClientErrors(t *testing.T) {
	srv := providerMux(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"errors": []map[string]any{{
				"status": 400,
				"code":   4926,
				"title":  "INVALID DATA RECEIVED",
				"detail": "origin and destination are identical",
			}},
		})
	})
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.Search(context.Background(), &domain.SearchCriteria{
		Origin: "JFK", Destination: "LHR", DepartureDate: "2026-10-01", Adults: 1,
	})

	var reqErr *domain.ProviderRequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("got %T (%v), want ProviderRequestError", err, err)
	}
	if reqErr.Code != 4926 || reqErr.Title != "INVALID DATA RECEIVED" {
		t.Errorf("upstream detail not carried: %+v", reqErr)
	}
}

func TestDoMapsServerErrors(t *testing.T) {
	srv := providerMux(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	})
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.Price(context.Background(), []domain.FlightOffer{{ID: "1"}})

	var unavail *domain.ProviderUnavailableError
	if !errors.As(err, &unavail) {
		t.Fatalf("got %T (%v), want ProviderUnavailableError", err, err)
	}
	if unavail.Timeout {
		t.Error("5xx should not be reported as a timeout")
	}
}

func TestDoMapsTimeout(t *testing.T) {
	srv := providerMux(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	})
	defer srv.Close()

	c := newTestClient(srv.URL)
	if _, err := c.Authenticate(context.Background()); err != nil {
		t.Fatalf("auth: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.Price(ctx, []domain.FlightOffer{{ID: "1"}})

	var unavail *domain.ProviderUnavailableError
	if !errors.As(err, &unavail) {
		t.Fatalf("got %T (%v), want ProviderUnavailableError", err, err)
	}
	if !unavail.Timeout {
		t.Error("deadline exceeded should be reported as a timeout")
	}
}

func TestUnauthorizedDropsCachedToken(t *testing.T) {
	var tokenCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/security/oauth2/token", tokenHandler(&tokenCalls))
	mux.HandleFunc("/v2/shopping/flight-offers", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "expired", http.StatusUnauthorized)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(srv.URL)
	criteria := &domain.SearchCriteria{Origin: "JFK", Destination: "LHR", DepartureDate: "2026-10-01", Adults: 1}

	_, err := c.Search(context.Background(), criteria)
	var authErr *domain.ProviderAuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("got %T (%v), want ProviderAuthError", err, err)
	}

	// Next call must fetch a fresh credential, not reuse the rejected one.
	_, _ = c.Search(context.Background(), criteria)
	if got := atomic.LoadInt32(&tokenCalls); got != 2 {
		t.Fatalf("token endpoint called %d times after rejection, want 2", got)
	}
}

func TestBuildSearchRequestRoundTrip(t *testing.T) {
	req := buildSearchRequest(&domain.SearchCriteria{
		Origin:        "jfk",
		Destination:   "LHR",
		DepartureDate: "2026-10-01",
		ReturnDate:    "2026-10-08",
		Adults:        2,
		Children:      1,
		Infants:       1,
		NonStop:       true,
		TravelClass:   "business",
	})

	if len(req.OriginDestinations) != 2 {
		t.Fatalf("got %d origin-destinations, want 2", len(req.OriginDestinations))
	}
	if req.OriginDestinations[0].OriginCode != "JFK" {
		t.Errorf("origin not upper-cased: %q", req.OriginDestinations[0].OriginCode)
	}
	if req.OriginDestinations[1].OriginCode != "LHR" || req.OriginDestinations[1].DestinationCode != "JFK" {
		t.Errorf("return leg not reversed: %+v", req.OriginDestinations[1])
	}

	if len(req.Travelers) != 4 {
		t.Fatalf("got %d travelers, want 4", len(req.Travelers))
	}
	types := map[string]int{}
	for _, tr := range req.Travelers {
		types[tr.TravelerType]++
	}
	if types["ADULT"] != 2 || types["CHILD"] != 1 || types["HELD_INFANT"] != 1 {
		t.Errorf("traveler mix wrong: %v", types)
	}

	if req.SearchCriteria == nil || req.SearchCriteria.FlightFilters == nil {
		t.Fatal("filters missing")
	}
	ff := req.SearchCriteria.FlightFilters
	if ff.ConnectionRestriction == nil || ff.ConnectionRestriction.MaxNumberOfConnections != 0 {
		t.Error("non-stop restriction not applied")
	}
	if len(ff.CabinRestrictions) != 1 || ff.CabinRestrictions[0].Cabin != "BUSINESS" {
		t.Errorf("cabin restriction wrong: %+v", ff.CabinRestrictions)
	}
}
