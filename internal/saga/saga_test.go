package saga

import (
	"context"
	"encoding/json"
	"errors"
	"runtime"
	"strings"
	"sync"
	"testing"

	"github.com/skytrip/flight-bookings/internal/domain"
	"github.com/skytrip/flight-bookings/internal/notify"
	"github.com/skytrip/flight-bookings/internal/payment"
	"github.com/skytrip/flight-bookings/internal/provider"
	"github.com/skytrip/flight-bookings/pkg/events"
)

type fakeFlights struct {
	mu          sync.Mutex
	searchRes   []domain.FlightOffer
	searchErr   error
	priceRes    *domain.PricingResult
	priceErr    error
	orderRes    *domain.FlightOrder
	orderErr    error
	orderCalls  int
	searchCalls int
	block       chan struct{} // when set, Search blocks until closed
}

func (f *fakeFlights) Search(ctx context.Context, criteria *domain.SearchCriteria) ([]domain.FlightOffer, error) {
	f.mu.Lock()
	f.searchCalls++
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	return f.searchRes, f.searchErr
}

func (f *fakeFlights) Price(ctx context.Context, offers []domain.FlightOffer) (*domain.PricingResult, error) {
	return f.priceRes, f.priceErr
}

func (f *fakeFlights) CreateOrder(ctx context.Context, offers []domain.FlightOffer, travelers []domain.Traveler, remarks *provider.OrderRemarks, contacts []provider.OrderContact) (*domain.FlightOrder, error) {
	f.mu.Lock()
	f.orderCalls++
	f.mu.Unlock()
	return f.orderRes, f.orderErr
}

type fakePayments struct {
	createRes    *domain.PaymentResult
	createErr    error
	confirmRes   *domain.PaymentResult
	confirmErr   error
	createCalls  int
	confirmCalls int
}

func (f *fakePayments) CreateIntent(ctx context.Context, amount int64, currency, userID string, card *domain.Card) (*domain.PaymentResult, error) {
	f.createCalls++
	return f.createRes, f.createErr
}

func (f *fakePayments) Confirm(ctx context.Context, intentID string) (*domain.PaymentResult, error) {
	f.confirmCalls++
	return f.confirmRes, f.confirmErr
}

type fakeBus struct {
	mu        sync.Mutex
	published []busEvent
}

type busEvent struct {
	subject string
	payload interface{}
}

func (f *fakeBus) Publish(ctx context.Context, subject string, data interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, busEvent{subject, data})
	return nil
}

func (f *fakeBus) Close() error { return nil }

func (f *fakeBus) events(subject string) []busEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []busEvent
	for _, ev := range f.published {
		if ev.subject == subject {
			out = append(out, ev)
		}
	}
	return out
}

type fakeRenderer struct {
	pdf []byte
	err error
}

func (f *fakeRenderer) Render(data *domain.BookingDocumentData) ([]byte, error) {
	return f.pdf, f.err
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []*notify.Message
	err  error
}

func (f *fakeMailer) Send(ctx context.Context, msg *notify.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

type fakeOrders struct {
	mu       sync.Mutex
	inserted []*domain.OrderRecord
	err      error
}

func (f *fakeOrders) Insert(ctx context.Context, rec *domain.OrderRecord) (*domain.OrderRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.inserted = append(f.inserted, rec)
	return rec, nil
}

func testOffer() *domain.FlightOffer {
	return &domain.FlightOffer{
		ID:    "offer-1",
		Price: domain.Price{Currency: "USD", Total: "973.00"},
		TravelerPricings: []domain.TravelerPricing{
			{TravelerID: "1", TravelerType: "ADULT"},
		},
	}
}

func testTravelers() []domain.Traveler {
	return []domain.Traveler{{
		ID:          "1",
		DateOfBirth: "1990-04-12",
		Name:        domain.TravelerName{FirstName: "Ada", LastName: "Lovelace"},
		Contact:     &domain.TravelerContact{EmailAddress: "ada@example.com"},
		Documents: []domain.TravelDocument{{
			DocumentType:    domain.DocumentPassport,
			Number:          "N1234567",
			ExpiryDate:      "2031-05-01",
			IssuanceCountry: "GB",
			Nationality:     "GB",
		}},
	}}
}

func testCriteria() *domain.SearchCriteria {
	return &domain.SearchCriteria{
		Origin: "JFK", Destination: "LHR", DepartureDate: "2026-10-01", Adults: 1,
	}
}

type sagaFixture struct {
	saga     *Saga
	flights  *fakeFlights
	payments *fakePayments
	renderer *fakeRenderer
	mailer   *fakeMailer
	orders   *fakeOrders
	bus      *fakeBus
}

func newFixture() *sagaFixture {
	f := &sagaFixture{
		flights:  &fakeFlights{},
		payments: &fakePayments{},
		renderer: &fakeRenderer{pdf: []byte("%PDF-fake")},
		mailer:   &fakeMailer{},
		orders:   &fakeOrders{},
		bus:      &fakeBus{},
	}
	f.saga = New(Deps{
		Flights:  f.flights,
		Payments: f.payments,
		Renderer: f.renderer,
		Mailer:   f.mailer,
		Orders:   f.orders,
		Bus:      f.bus,
		Amount:   payment.AmountFromTotal,
		Issuer:   domain.IssuerInfo{Name: "SkyTrip Travel"},
		UserID:   "user-1",
	})
	return f
}

// advance drives the saga through the happy path up to the named step.
func (f *sagaFixture) advance(t *testing.T, to Step) {
	t.Helper()
	ctx := context.Background()

	f.flights.searchRes = []domain.FlightOffer{*testOffer()}
	f.flights.priceRes = &domain.PricingResult{FlightOffers: []domain.FlightOffer{*testOffer()}}
	f.payments.createRes = &domain.PaymentResult{IntentID: "pi_1", Status: "requires_confirmation", Amount: 97300, Currency: "usd"}
	f.payments.confirmRes = &domain.PaymentResult{IntentID: "pi_1", Status: "succeeded", Amount: 97300, Currency: "usd"}

	steps := []func() error{
		func() error { return f.saga.SearchFlights(ctx, testCriteria()) },
		func() error { return f.saga.SelectFlight(testOffer()) },
		func() error { return f.saga.GetPricing(ctx) },
		func() error { return f.saga.SaveTravelers(testTravelers()) },
	}
	order := []Step{StepResults, StepDetails, StepTravelerInfo, StepReview}

	for i, fn := range steps {
		if err := fn(); err != nil {
			t.Fatalf("advance step %d: %v", i, err)
		}
		if f.saga.Step() != order[i] {
			t.Fatalf("after step %d: at %q, want %q", i, f.saga.Step(), order[i])
		}
		if order[i] == to {
			return
		}
	}
}

func TestSearchEmptyResultsReachesResultsStep(t *testing.T) {
	f := newFixture()
	f.flights.searchRes = []domain.FlightOffer{}

	if err := f.saga.SearchFlights(context.Background(), testCriteria()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.saga.Step() != StepResults {
		t.Errorf("at %q, want results", f.saga.Step())
	}
	if got := f.saga.Results(); got == nil || len(got) != 0 {
		t.Errorf("results = %v, want empty slice", got)
	}
	if err := f.saga.Err(OpSearch); err != nil {
		t.Errorf("no error expected, got %v", err)
	}
}

func TestSearchInvalidCriteriaNeverCallsProvider(t *testing.T) {
	f := newFixture()

	err := f.saga.SearchFlights(context.Background(), &domain.SearchCriteria{})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("got %T, want ValidationError", err)
	}
	if f.flights.searchCalls != 0 {
		t.Error("provider called despite invalid criteria")
	}
	if f.saga.Step() != StepSearch {
		t.Errorf("step moved to %q on failure", f.saga.Step())
	}
	if f.saga.Err(OpSearch) == nil {
		t.Error("search error not recorded")
	}
}

func TestSearchFailureRecordsErrorAndKeepsStep(t *testing.T) {
	f := newFixture()
	f.flights.searchErr = &domain.ProviderUnavailableError{Timeout: true, Err: errors.New("deadline")}

	err := f.saga.SearchFlights(context.Background(), testCriteria())
	var unavail *domain.ProviderUnavailableError
	if !errors.As(err, &unavail) || !unavail.Timeout {
		t.Fatalf("timeout not surfaced: %v", err)
	}
	if f.saga.Step() != StepSearch {
		t.Errorf("step moved to %q on failure", f.saga.Step())
	}
	if f.saga.Err(OpSearch) == nil {
		t.Error("error not recorded under search key")
	}

	// A later success clears the recorded error.
	f.flights.searchErr = nil
	f.flights.searchRes = []domain.FlightOffer{}
	if err := f.saga.SearchFlights(context.Background(), testCriteria()); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if f.saga.Err(OpSearch) != nil {
		t.Error("error not cleared on retry")
	}
}

func TestConcurrentSearchRefused(t *testing.T) {
	f := newFixture()
	block := make(chan struct{})
	f.flights.block = block
	f.flights.searchRes = []domain.FlightOffer{}

	done := make(chan error, 1)
	go func() {
		done <- f.saga.SearchFlights(context.Background(), testCriteria())
	}()

	// Wait for the first call to be in flight.
	for !f.saga.IsLoading(OpSearch) {
		runtime.Gosched()
	}

	if err := f.saga.SearchFlights(context.Background(), testCriteria()); err == nil {
		t.Error("second concurrent search should be refused")
	}

	close(block)
	if err := <-done; err != nil {
		t.Fatalf("first search: %v", err)
	}
}

func TestGetPricingRequiresSelection(t *testing.T) {
	f := newFixture()
	if err := f.saga.GetPricing(context.Background()); err == nil {
		t.Fatal("pricing without a selected offer should fail")
	}
}

func TestGetPricingAdoptsRepricedOffer(t *testing.T) {
	f := newFixture()
	f.advance(t, StepDetails)

	repriced := *testOffer()
	repriced.Price.Total = "1001.00"
	f.flights.priceRes = &domain.PricingResult{FlightOffers: []domain.FlightOffer{repriced}}

	if err := f.saga.GetPricing(context.Background()); err != nil {
		t.Fatalf("pricing: %v", err)
	}
	if got := f.saga.Selected().Price.Total; got != "1001.00" {
		t.Errorf("selection not replaced by priced offer: total %q", got)
	}
}

func TestSaveTravelersRejectsMismatch(t *testing.T) {
	f := newFixture()
	f.advance(t, StepTravelerInfo)

	err := f.saga.SaveTravelers(nil)
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("got %T, want ValidationError", err)
	}
	if f.saga.Step() != StepTravelerInfo {
		t.Errorf("step moved to %q on invalid travelers", f.saga.Step())
	}
}

func TestFinalizePreconditions(t *testing.T) {
	t.Run("no payment", func(t *testing.T) {
		f := newFixture()
		f.advance(t, StepReview)

		if _, err := f.saga.FinalizeBooking(context.Background()); err == nil {
			t.Fatal("finalize without payment should fail")
		}
		if f.flights.orderCalls != 0 {
			t.Error("order placed without confirmed payment")
		}
	})

	t.Run("payment not succeeded", func(t *testing.T) {
		f := newFixture()
		f.advance(t, StepReview)
		if _, err := f.saga.CreatePaymentIntent(context.Background(), &domain.Card{}); err != nil {
			t.Fatalf("create intent: %v", err)
		}

		if _, err := f.saga.FinalizeBooking(context.Background()); err == nil {
			t.Fatal("finalize with unconfirmed intent should fail")
		}
		if f.flights.orderCalls != 0 {
			t.Error("order placed without confirmed payment")
		}
	})

	t.Run("no travelers", func(t *testing.T) {
		f := newFixture()
		f.advance(t, StepTravelerInfo)

		if _, err := f.saga.FinalizeBooking(context.Background()); err == nil {
			t.Fatal("finalize without travelers should fail")
		}
	})
}

func TestCreateIntentRefusedAfterCapture(t *testing.T) {
	f := newFixture()
	f.advance(t, StepReview)

	if _, err := f.saga.CreatePaymentIntent(context.Background(), &domain.Card{}); err != nil {
		t.Fatalf("create intent: %v", err)
	}
	if _, err := f.saga.ConfirmPayment(context.Background(), "pi_1"); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	f.payments.createRes = &domain.PaymentResult{IntentID: "pi_2", Status: "requires_confirmation", Amount: 97300, Currency: "usd"}
	if _, err := f.saga.CreatePaymentIntent(context.Background(), &domain.Card{}); err == nil {
		t.Fatal("new intent after a captured payment should be refused")
	}
	if got := f.saga.Payment(); got.IntentID != "pi_1" || !got.Succeeded() {
		t.Errorf("captured payment was replaced: %+v", got)
	}

	// Re-confirming a captured payment is refused too.
	if _, err := f.saga.ConfirmPayment(context.Background(), "pi_1"); err == nil {
		t.Error("re-confirm of a captured payment should be refused")
	}
}

func TestConfirmPaymentRequiresOwnIntent(t *testing.T) {
	f := newFixture()
	f.advance(t, StepReview)

	if _, err := f.saga.ConfirmPayment(context.Background(), "pi_other"); err == nil {
		t.Fatal("confirm without an open intent should fail")
	}

	if _, err := f.saga.CreatePaymentIntent(context.Background(), &domain.Card{}); err != nil {
		t.Fatalf("create intent: %v", err)
	}

	// A foreign intent id, even one the provider would report as succeeded,
	// never becomes this booking's payment.
	f.payments.confirmRes = &domain.PaymentResult{IntentID: "pi_other", Status: "succeeded", Amount: 100, Currency: "usd"}
	if _, err := f.saga.ConfirmPayment(context.Background(), "pi_other"); err == nil {
		t.Fatal("foreign intent id should be refused")
	}
	if f.payments.confirmCalls != 0 {
		t.Errorf("provider confirm called %d times for a foreign intent", f.payments.confirmCalls)
	}
	if got := f.saga.Payment(); got.IntentID != "pi_1" || got.Succeeded() {
		t.Errorf("payment adopted a foreign intent: %+v", got)
	}

	if _, err := f.saga.FinalizeBooking(context.Background()); err == nil {
		t.Fatal("finalize with an unconfirmed payment should fail")
	}
	if f.flights.orderCalls != 0 {
		t.Error("order placed without a confirmed payment")
	}
}

func TestPaymentIntentEventOmitsClientSecret(t *testing.T) {
	f := newFixture()
	f.advance(t, StepReview)

	f.payments.createRes = &domain.PaymentResult{
		IntentID: "pi_1", Status: "requires_confirmation",
		Amount: 97300, Currency: "usd", ClientSecret: "pi_1_secret_xyz",
	}
	if _, err := f.saga.CreatePaymentIntent(context.Background(), &domain.Card{}); err != nil {
		t.Fatalf("create intent: %v", err)
	}

	published := f.bus.events(events.PaymentIntentCreated)
	if len(published) != 1 {
		t.Fatalf("published %d intent events, want 1", len(published))
	}
	payload, err := json.Marshal(published[0].payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	if strings.Contains(string(payload), "secret") {
		t.Errorf("event payload carries secret material: %s", payload)
	}
	if !strings.Contains(string(payload), `"intent_id":"pi_1"`) {
		t.Errorf("event payload missing intent id: %s", payload)
	}
}

func TestFinalizeHappyPath(t *testing.T) {
	f := newFixture()
	f.advance(t, StepReview)

	if _, err := f.saga.CreatePaymentIntent(context.Background(), &domain.Card{}); err != nil {
		t.Fatalf("create intent: %v", err)
	}
	res, err := f.saga.ConfirmPayment(context.Background(), "pi_1")
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if !res.Succeeded() {
		t.Fatalf("confirm result not succeeded: %+v", res)
	}

	f.flights.orderRes = &domain.FlightOrder{
		ID:        "ord-1",
		Travelers: testTravelers(),
		AssociatedRecords: []domain.AssociatedRecord{{Reference: "ABC123"}},
	}

	order, err := f.saga.FinalizeBooking(context.Background())
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if order.ID != "ord-1" {
		t.Errorf("order id %q", order.ID)
	}
	if f.saga.Step() != StepConfirmation {
		t.Errorf("at %q, want confirmation", f.saga.Step())
	}

	if len(f.orders.inserted) != 1 {
		t.Fatalf("persisted %d orders, want 1", len(f.orders.inserted))
	}
	rec := f.orders.inserted[0]
	if rec.OrderID != "ord-1" || rec.UserID != "user-1" || rec.GrandTotal != "973.00" {
		t.Errorf("order record wrong: %+v", rec)
	}

	if len(f.mailer.sent) != 1 {
		t.Fatalf("sent %d emails, want 1", len(f.mailer.sent))
	}
	msg := f.mailer.sent[0]
	if msg.ToEmail != "ada@example.com" {
		t.Errorf("recipient %q", msg.ToEmail)
	}
	if len(msg.Attachments) != 1 || msg.Attachments[0].ContentType != "application/pdf" {
		t.Errorf("ticket attachment missing: %+v", msg.Attachments)
	}
}

func TestFinalizeEmailFailureDoesNotFailBooking(t *testing.T) {
	f := newFixture()
	f.advance(t, StepReview)
	if _, err := f.saga.CreatePaymentIntent(context.Background(), &domain.Card{}); err != nil {
		t.Fatalf("create intent: %v", err)
	}
	if _, err := f.saga.ConfirmPayment(context.Background(), "pi_1"); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	f.flights.orderRes = &domain.FlightOrder{ID: "ord-1", Travelers: testTravelers()}
	f.mailer.err = errors.New("smtp down")

	if _, err := f.saga.FinalizeBooking(context.Background()); err != nil {
		t.Fatalf("email failure leaked into booking result: %v", err)
	}
	if f.saga.Step() != StepConfirmation {
		t.Errorf("at %q, want confirmation", f.saga.Step())
	}
}

func TestResetClearsEverythingButCriteria(t *testing.T) {
	f := newFixture()
	f.advance(t, StepReview)

	f.saga.ResetBooking()

	snap := f.saga.Snapshot()
	if snap.Step != StepSearch {
		t.Errorf("at %q, want search", snap.Step)
	}
	if snap.Selected != nil || snap.Pricing != nil || snap.Travelers != nil || snap.Payment != nil {
		t.Error("flow state survived reset")
	}
	if snap.Criteria == nil {
		t.Error("criteria should survive reset")
	}
}
