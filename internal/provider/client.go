package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/go-querystring/query"
	"github.com/skytrip/flight-bookings/internal/domain"
	"github.com/skytrip/flight-bookings/pkg/config"
	"github.com/skytrip/flight-bookings/pkg/logger"
	"golang.org/x/sync/singleflight"
)

// tokenSafetyMargin treats a credential as expired this long before the
// provider's stated expiry, so in-flight requests never race a stale token.
const tokenSafetyMargin = 60 * time.Second

// Client talks to the flight inventory provider. The cached credential is
// the only shared mutable state; refresh is serialized through singleflight
// so concurrent callers observing an expired token trigger one network call.
type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	httpClient   *http.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time

	refresh singleflight.Group
}

func NewClient(cfg config.AmadeusConfig) *Client {
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		httpClient:   &http.Client{Timeout: cfg.Timeout},
	}
}

// Authenticate returns a valid access token, refreshing it if the cached one
// is inside the safety margin. No-op when the credential is still fresh.
func (c *Client) Authenticate(ctx context.Context) (string, error) {
	if token, ok := c.cachedToken(); ok {
		return token, nil
	}
	return c.refreshToken(ctx)
}

func (c *Client) cachedToken() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, true
	}
	return "", false
}

func (c *Client) refreshToken(ctx context.Context) (string, error) {
	v, err, _ := c.refresh.Do("oauth2", func() (interface{}, error) {
		// A refresh that completed between the caller's freshness check and
		// entry here already left a usable credential.
		if token, ok := c.cachedToken(); ok {
			return token, nil
		}
		// The fetched token is shared by every waiter, so the winning
		// caller's cancellation must not abort it. The HTTP client timeout
		// still bounds the call.
		return c.fetchToken(context.WithoutCancel(ctx))
	})
	if err != nil {
		return "", &domain.ProviderAuthError{Err: err}
	}
	return v.(string), nil
}

func (c *Client) fetchToken(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/security/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if tok.AccessToken == "" {
		return "", errors.New("token endpoint returned empty access token")
	}

	expiry := time.Now().Add(time.Duration(tok.ExpiresIn)*time.Second - tokenSafetyMargin)

	c.mu.Lock()
	c.accessToken = tok.AccessToken
	c.tokenExpiry = expiry
	c.mu.Unlock()

	logger.DebugContext(ctx, "Provider credential refreshed", "expires_in", tok.ExpiresIn)
	return tok.AccessToken, nil
}

// Search forwards validated criteria to the offer search endpoint.
func (c *Client) Search(ctx context.Context, criteria *domain.SearchCriteria) ([]domain.FlightOffer, error) {
	body := buildSearchRequest(criteria)

	var out searchResponse
	if err := c.do(ctx, http.MethodPost, "/v2/shopping/flight-offers", body, &out); err != nil {
		return nil, err
	}
	if out.Data == nil {
		out.Data = []domain.FlightOffer{}
	}
	return out.Data, nil
}

// Price re-submits offers verbatim to the pricing endpoint. The provider
// requires the exact objects it previously returned.
func (c *Client) Price(ctx context.Context, offers []domain.FlightOffer) (*domain.PricingResult, error) {
	body := pricingRequest{Data: pricingRequestData{
		Type:         "flight-offers-pricing",
		FlightOffers: offers,
	}}

	var out pricingResponse
	if err := c.do(ctx, http.MethodPost, "/v1/shopping/flight-offers/pricing", body, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

// CreateOrder books the offers. Never retried here: a timed-out order call
// may have succeeded upstream, so the retry decision belongs to the caller.
func (c *Client) CreateOrder(ctx context.Context, offers []domain.FlightOffer, travelers []domain.Traveler, remarks *OrderRemarks, contacts []OrderContact) (*domain.FlightOrder, error) {
	body := orderRequest{Data: orderRequestData{
		Type:         "flight-order",
		FlightOffers: offers,
		Travelers:    travelers,
		Remarks:      remarks,
		TicketingAgreement: &domain.TicketingAgreement{
			Option: "DELAY_TO_CANCEL",
			Delay:  "6D",
		},
		Contacts: contacts,
	}}

	var out orderResponse
	if err := c.do(ctx, http.MethodPost, "/v1/booking/flight-orders", body, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

// SearchLocations looks up airports and cities for a keyword.
func (c *Client) SearchLocations(ctx context.Context, keyword string, limit int) ([]Location, error) {
	q := LocationQuery{
		Keyword: keyword,
		SubType: "AIRPORT,CITY",
		Limit:   limit,
	}
	vals, err := query.Values(q)
	if err != nil {
		return nil, fmt.Errorf("encode location query: %w", err)
	}

	var out locationsResponse
	if err := c.do(ctx, http.MethodGet, "/v1/reference-data/locations?"+vals.Encode(), nil, &out); err != nil {
		return nil, err
	}
	if out.Data == nil {
		out.Data = []Location{}
	}
	return out.Data, nil
}

// do authenticates, issues one request, and maps the provider's failure
// modes onto the domain error taxonomy. No retries at this layer.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	token, err := c.Authenticate(ctx)
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &domain.ProviderUnavailableError{Timeout: isTimeout(err), Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode provider response: %w", err)
		}
		return nil

	case resp.StatusCode == http.StatusUnauthorized:
		// Credential rejected mid-flight; drop the cache so the next call
		// re-authenticates, and surface as an auth failure.
		c.mu.Lock()
		c.accessToken = ""
		c.mu.Unlock()
		return &domain.ProviderAuthError{Err: fmt.Errorf("provider rejected credential (status %d)", resp.StatusCode)}

	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		apiErr := decodeAPIError(resp.Body)
		return &domain.ProviderRequestError{
			Status: resp.StatusCode,
			Code:   apiErr.Code,
			Title:  apiErr.Title,
			Detail: apiErr.Detail,
		}

	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &domain.ProviderUnavailableError{
			Err: fmt.Errorf("provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}
}

func decodeAPIError(r io.Reader) apiError {
	var body apiErrorBody
	if err := json.NewDecoder(r).Decode(&body); err == nil && len(body.Errors) > 0 {
		return body.Errors[0]
	}
	return apiError{}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func buildSearchRequest(criteria *domain.SearchCriteria) searchRequest {
	req := searchRequest{
		CurrencyCode: criteria.CurrencyCode,
		OriginDestinations: []originDestination{{
			ID:              "1",
			OriginCode:      strings.ToUpper(criteria.Origin),
			DestinationCode: strings.ToUpper(criteria.Destination),
			DepartureDate:   &dateTimeRange{Date: criteria.DepartureDate},
		}},
		Sources: []string{"GDS"},
	}

	if criteria.ReturnDate != "" {
		req.OriginDestinations = append(req.OriginDestinations, originDestination{
			ID:              "2",
			OriginCode:      strings.ToUpper(criteria.Destination),
			DestinationCode: strings.ToUpper(criteria.Origin),
			DepartureDate:   &dateTimeRange{Date: criteria.ReturnDate},
		})
	}

	id := 1
	for i := 0; i < criteria.Adults; i++ {
		req.Travelers = append(req.Travelers, searchTraveler{ID: strconv.Itoa(id), TravelerType: "ADULT"})
		id++
	}
	for i := 0; i < criteria.Children; i++ {
		req.Travelers = append(req.Travelers, searchTraveler{ID: strconv.Itoa(id), TravelerType: "CHILD"})
		id++
	}
	for i := 0; i < criteria.Infants; i++ {
		req.Travelers = append(req.Travelers, searchTraveler{ID: strconv.Itoa(id), TravelerType: "HELD_INFANT"})
		id++
	}

	filters := &searchFilters{}
	if criteria.MaxResults > 0 {
		filters.MaxFlightOffers = criteria.MaxResults
	}

	ff := &flightFilters{}
	hasFilters := false
	if criteria.TravelClass != "" {
		var odIDs []string
		for _, od := range req.OriginDestinations {
			odIDs = append(odIDs, od.ID)
		}
		ff.CabinRestrictions = []cabinRestriction{{
			Cabin:                strings.ToUpper(criteria.TravelClass),
			Coverage:             "MOST_SEGMENTS",
			OriginDestinationIDs: odIDs,
		}}
		hasFilters = true
	}
	if len(criteria.IncludedAirlines) > 0 {
		ff.CarrierRestrictions = &carrierRestriction{IncludedCarrierCodes: criteria.IncludedAirlines}
		hasFilters = true
	}
	if criteria.NonStop {
		ff.ConnectionRestriction = &connectionRestriction{MaxNumberOfConnections: 0}
		hasFilters = true
	}
	if hasFilters {
		filters.FlightFilters = ff
	}
	if filters.MaxFlightOffers > 0 || filters.FlightFilters != nil {
		req.SearchCriteria = filters
	}

	return req
}
