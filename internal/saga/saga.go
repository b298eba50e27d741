package saga

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/skytrip/flight-bookings/internal/domain"
	"github.com/skytrip/flight-bookings/internal/notify"
	"github.com/skytrip/flight-bookings/internal/provider"
	"github.com/skytrip/flight-bookings/pkg/events"
	"github.com/skytrip/flight-bookings/pkg/logger"
)

// Step is the user-visible position in the booking flow.
type Step string

const (
	StepSearch       Step = "search"
	StepResults      Step = "results"
	StepDetails      Step = "details"
	StepTravelerInfo Step = "travelerInfo"
	StepReview       Step = "review"
	StepConfirmation Step = "confirmation"
)

// Operation keys for per-operation loading and error state.
const (
	OpSearch         = "search"
	OpPricing        = "pricing"
	OpPayment        = "payment"
	OpConfirmPayment = "confirmPayment"
	OpBooking        = "booking"
)

// FlightClient is the slice of the provider client the saga drives.
type FlightClient interface {
	Search(ctx context.Context, criteria *domain.SearchCriteria) ([]domain.FlightOffer, error)
	Price(ctx context.Context, offers []domain.FlightOffer) (*domain.PricingResult, error)
	CreateOrder(ctx context.Context, offers []domain.FlightOffer, travelers []domain.Traveler, remarks *provider.OrderRemarks, contacts []provider.OrderContact) (*domain.FlightOrder, error)
}

type PaymentService interface {
	CreateIntent(ctx context.Context, amount int64, currency, userID string, card *domain.Card) (*domain.PaymentResult, error)
	Confirm(ctx context.Context, intentID string) (*domain.PaymentResult, error)
}

type Renderer interface {
	Render(data *domain.BookingDocumentData) ([]byte, error)
}

type OrderStore interface {
	Insert(ctx context.Context, rec *domain.OrderRecord) (*domain.OrderRecord, error)
}

// AmountFunc converts a decimal total to integer minor units.
type AmountFunc func(total string) (int64, error)

// Extras holds optional seat and baggage selections keyed by traveler id.
type Extras struct {
	Seats map[string]string `json:"seats,omitempty"`
	Bags  map[string]int    `json:"bags,omitempty"`
}

// Saga is a session-scoped booking controller. One instance per booking
// flow; all state mutations happen under a single mutex, and no two actions
// for the same operation key may run concurrently.
type Saga struct {
	flights  FlightClient
	payments PaymentService
	renderer Renderer
	mailer   notify.Mailer
	orders   OrderStore
	bus      events.Publisher
	amount   AmountFunc
	issuer   domain.IssuerInfo
	userID   string

	mu           sync.Mutex
	step         Step
	criteria     *domain.SearchCriteria
	results      []domain.FlightOffer
	selected     *domain.FlightOffer
	pricing      *domain.PricingResult
	travelers    []domain.Traveler
	extras       Extras
	payment      *domain.PaymentResult
	confirmation *domain.FlightOrder
	loading      map[string]bool
	errors       map[string]error
}

type Deps struct {
	Flights  FlightClient
	Payments PaymentService
	Renderer Renderer
	Mailer   notify.Mailer
	Orders   OrderStore
	Bus      events.Publisher
	Amount   AmountFunc
	Issuer   domain.IssuerInfo
	UserID   string
}

func New(deps Deps) *Saga {
	return &Saga{
		flights:  deps.Flights,
		payments: deps.Payments,
		renderer: deps.Renderer,
		mailer:   deps.Mailer,
		orders:   deps.Orders,
		bus:      deps.Bus,
		amount:   deps.Amount,
		issuer:   deps.Issuer,
		userID:   deps.UserID,
		step:     StepSearch,
		loading:  make(map[string]bool),
		errors:   make(map[string]error),
	}
}

// begin marks an operation in flight and clears its previous error. A second
// caller for the same key is refused until the first completes.
func (s *Saga) begin(op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loading[op] {
		return fmt.Errorf("operation %q already in flight", op)
	}
	s.loading[op] = true
	delete(s.errors, op)
	return nil
}

func (s *Saga) finish(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading[op] = false
	if err != nil {
		s.errors[op] = err
	}
}

// SearchFlights runs a search and moves to the results step. An empty
// result list is a successful search, not an error.
func (s *Saga) SearchFlights(ctx context.Context, criteria *domain.SearchCriteria) error {
	if verr := criteria.Validate(); verr != nil {
		s.mu.Lock()
		s.errors[OpSearch] = verr
		s.mu.Unlock()
		return verr
	}

	if err := s.begin(OpSearch); err != nil {
		return err
	}

	offers, err := s.flights.Search(ctx, criteria)
	s.finish(OpSearch, err)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.criteria = criteria
	s.results = offers
	s.step = StepResults
	s.mu.Unlock()
	return nil
}

// SelectFlight stores the chosen offer and moves to details. No service call.
func (s *Saga) SelectFlight(offer *domain.FlightOffer) error {
	if offer == nil {
		return fmt.Errorf("no offer selected")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *offer
	s.selected = &cp
	s.step = StepDetails
	return nil
}

// GetPricing confirms the selected offer's price. The provider may reprice;
// the confirmed offer replaces the selection so ordering re-submits exactly
// what was priced.
func (s *Saga) GetPricing(ctx context.Context) error {
	s.mu.Lock()
	selected := s.selected
	s.mu.Unlock()
	if selected == nil {
		return fmt.Errorf("no offer selected")
	}

	if err := s.begin(OpPricing); err != nil {
		return err
	}

	pricing, err := s.flights.Price(ctx, []domain.FlightOffer{*selected})
	s.finish(OpPricing, err)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.pricing = pricing
	if len(pricing.FlightOffers) > 0 {
		cp := pricing.FlightOffers[0]
		s.selected = &cp
	}
	s.step = StepTravelerInfo
	s.mu.Unlock()
	return nil
}

// SaveTravelers validates and stores the traveler list, moving to review.
// A violated precondition blocks the transition without any service call.
func (s *Saga) SaveTravelers(travelers []domain.Traveler) error {
	s.mu.Lock()
	selected := s.selected
	s.mu.Unlock()

	if verr := domain.ValidateTravelers(travelers, selected); verr != nil {
		return verr
	}

	s.mu.Lock()
	s.travelers = travelers
	s.step = StepReview
	s.mu.Unlock()
	return nil
}

// SetExtras records seat/baggage selections. No step transition.
func (s *Saga) SetExtras(extras Extras) {
	s.mu.Lock()
	s.extras = extras
	s.mu.Unlock()
}

// CreatePaymentIntent opens a payment intent for the priced offer total.
// One captured payment per booking: once the intent has succeeded, a new
// intent can only be opened after ResetBooking.
func (s *Saga) CreatePaymentIntent(ctx context.Context, card *domain.Card) (*domain.PaymentResult, error) {
	s.mu.Lock()
	selected := s.selected
	pricing := s.pricing
	payment := s.payment
	s.mu.Unlock()

	if selected == nil {
		return nil, fmt.Errorf("no offer selected")
	}
	if pricing == nil {
		return nil, fmt.Errorf("offer has not been priced")
	}
	if payment != nil && payment.Succeeded() {
		return nil, fmt.Errorf("payment already completed")
	}

	amount, err := s.amount(selected.Price.Total)
	if err != nil {
		return nil, err
	}

	if err := s.begin(OpPayment); err != nil {
		return nil, err
	}

	result, err := s.payments.CreateIntent(ctx, amount, selected.Price.Currency, s.userID, card)
	s.finish(OpPayment, err)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.payment = result
	s.mu.Unlock()

	s.publish(ctx, events.PaymentIntentCreated, events.PaymentIntentCreatedEvent{
		IntentID: result.IntentID,
		UserID:   s.userID,
		Amount:   result.Amount,
		Currency: result.Currency,
	})
	return result, nil
}

// ConfirmPayment drives the pending intent to its terminal status. Only the
// intent this booking opened can be confirmed; a foreign intent id never
// becomes this booking's payment.
func (s *Saga) ConfirmPayment(ctx context.Context, paymentID string) (*domain.PaymentResult, error) {
	s.mu.Lock()
	payment := s.payment
	s.mu.Unlock()

	if payment == nil {
		return nil, fmt.Errorf("no payment intent to confirm")
	}
	if paymentID != payment.IntentID {
		return nil, fmt.Errorf("unknown payment intent %q", paymentID)
	}
	if payment.Succeeded() {
		return nil, fmt.Errorf("payment already completed")
	}

	if err := s.begin(OpConfirmPayment); err != nil {
		return nil, err
	}

	result, err := s.payments.Confirm(ctx, paymentID)
	s.finish(OpConfirmPayment, err)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.payment = result
	s.mu.Unlock()

	if result.Succeeded() {
		s.publish(ctx, events.PaymentCaptured, events.PaymentCapturedEvent{
			IntentID:   result.IntentID,
			Amount:     result.Amount,
			Currency:   result.Currency,
			CapturedAt: time.Now(),
		})
	}
	return result, nil
}

// FinalizeBooking places the order, persists it, then renders and emails
// the ticket best-effort. Booking success is determined solely by the
// provider order call; later failures are logged and reported separately.
func (s *Saga) FinalizeBooking(ctx context.Context) (*domain.FlightOrder, error) {
	s.mu.Lock()
	selected := s.selected
	travelers := s.travelers
	payment := s.payment
	s.mu.Unlock()

	if selected == nil {
		return nil, fmt.Errorf("no offer selected")
	}
	if len(travelers) == 0 {
		return nil, fmt.Errorf("traveler details are missing")
	}
	if len(travelers) != len(selected.TravelerPricings) {
		return nil, fmt.Errorf("offer requires %d travelers, got %d",
			len(selected.TravelerPricings), len(travelers))
	}
	// A confirmed payment is a hard precondition for ordering.
	if payment == nil || !payment.Succeeded() {
		return nil, fmt.Errorf("payment has not been confirmed")
	}

	if err := s.begin(OpBooking); err != nil {
		return nil, err
	}

	remarks := &provider.OrderRemarks{General: []provider.GeneralRemark{
		{SubType: "GENERAL_MISCELLANEOUS", Text: "ONLINE BOOKING FROM SKYTRIP"},
	}}
	order, err := s.flights.CreateOrder(ctx, []domain.FlightOffer{*selected}, travelers, remarks, s.orderContacts(travelers))
	s.finish(OpBooking, err)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.confirmation = order
	s.step = StepConfirmation
	s.mu.Unlock()

	s.persistOrder(ctx, order, selected)
	s.deliverTicket(ctx, order, selected, payment)

	s.publish(ctx, events.OrderCreated, events.OrderCreatedEvent{
		OrderID:           order.ID,
		UserID:            s.userID,
		BookingReferences: order.BookingReferences(),
		Travelers:         len(order.Travelers),
		GrandTotal:        selected.Price.Total,
		Currency:          selected.Price.Currency,
		CreatedAt:         time.Now(),
	})
	return order, nil
}

// ResetBooking returns to search, preserving only the last criteria.
func (s *Saga) ResetBooking() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.step = StepSearch
	s.results = nil
	s.selected = nil
	s.pricing = nil
	s.travelers = nil
	s.extras = Extras{}
	s.payment = nil
	s.confirmation = nil
	s.loading = make(map[string]bool)
	s.errors = make(map[string]error)
}

func (s *Saga) orderContacts(travelers []domain.Traveler) []provider.OrderContact {
	for _, t := range travelers {
		if t.Contact != nil && t.Contact.EmailAddress != "" {
			return []provider.OrderContact{{
				AddresseeName: &domain.TravelerName{
					FirstName: t.Name.FirstName,
					LastName:  t.Name.LastName,
				},
				Purpose:      "STANDARD",
				EmailAddress: t.Contact.EmailAddress,
				Phones:       t.Contact.Phones,
			}}
		}
	}
	return nil
}

// persistOrder writes the durable order record. The booking already
// succeeded upstream, so a storage failure is logged, not propagated.
func (s *Saga) persistOrder(ctx context.Context, order *domain.FlightOrder, offer *domain.FlightOffer) {
	if s.orders == nil {
		return
	}

	payload, err := json.Marshal(order)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to marshal order payload", "error", err, "order_id", order.ID)
		payload = nil
	}

	contact := ""
	for _, t := range order.Travelers {
		if t.Contact != nil && t.Contact.EmailAddress != "" {
			contact = t.Contact.EmailAddress
			break
		}
	}

	rec := &domain.OrderRecord{
		OrderID:           order.ID,
		UserID:            s.userID,
		Status:            domain.OrderConfirmed,
		BookingReferences: order.BookingReferences(),
		ContactEmail:      contact,
		GrandTotal:        offer.Price.Total,
		Currency:          offer.Price.Currency,
		Payload:           payload,
	}

	if _, err := s.orders.Insert(ctx, rec); err != nil {
		logger.ErrorContext(ctx, "Failed to persist order", "error", err, "order_id", order.ID)
	}
}

// deliverTicket renders the confirmation document and emails it. Both are
// best-effort: the user is never told a confirmed booking failed.
func (s *Saga) deliverTicket(ctx context.Context, order *domain.FlightOrder, offer *domain.FlightOffer, payment *domain.PaymentResult) {
	if s.renderer == nil || s.mailer == nil {
		return
	}

	data := domain.BuildBookingDocumentData(order, offer, payment,
		time.Now().Format("2006-01-02"), s.issuer)

	pdf, err := s.renderer.Render(data)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to render ticket", "error", err, "order_id", order.ID)
		return
	}
	s.publish(ctx, events.TicketRendered, map[string]string{"order_id": order.ID})

	if data.Contact.Email == "" {
		logger.WarnContext(ctx, "No contact email on order, skipping ticket delivery", "order_id", order.ID)
		return
	}

	msg := notify.BuildTicketMessage(data.Contact.Email, data.Contact.Name, order.ID, data.BookingReferences, pdf)
	if err := s.mailer.Send(ctx, msg); err != nil {
		logger.ErrorContext(ctx, "Failed to send ticket email", "error", err,
			"order_id", order.ID, "recipient", data.Contact.Email)
		s.publish(ctx, events.TicketSendFailed, events.TicketSendFailedEvent{
			OrderID:   order.ID,
			Recipient: data.Contact.Email,
			Reason:    err.Error(),
		})
		return
	}

	s.publish(ctx, events.TicketSent, events.TicketSentEvent{
		OrderID:   order.ID,
		Recipient: data.Contact.Email,
		SentAt:    time.Now(),
	})
}

func (s *Saga) publish(ctx context.Context, subject string, payload interface{}) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, subject, payload); err != nil {
		logger.ErrorContext(ctx, "Failed to publish event", "error", err, "subject", subject)
	}
}

// Snapshot is a point-in-time copy of the saga state for API responses.
type Snapshot struct {
	Step         Step                    `json:"step"`
	Criteria     *domain.SearchCriteria  `json:"criteria,omitempty"`
	Results      []domain.FlightOffer    `json:"results,omitempty"`
	Selected     *domain.FlightOffer     `json:"selected,omitempty"`
	Pricing      *domain.PricingResult   `json:"pricing,omitempty"`
	Travelers    []domain.Traveler       `json:"travelers,omitempty"`
	Extras       Extras                  `json:"extras"`
	Payment      *domain.PaymentResult   `json:"payment,omitempty"`
	Confirmation *domain.FlightOrder     `json:"confirmation,omitempty"`
	Loading      map[string]bool         `json:"loading"`
	Errors       map[string]string       `json:"errors"`
}

func (s *Saga) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Step:         s.step,
		Criteria:     s.criteria,
		Results:      s.results,
		Selected:     s.selected,
		Pricing:      s.pricing,
		Travelers:    s.travelers,
		Extras:       s.extras,
		Payment:      s.payment,
		Confirmation: s.confirmation,
		Loading:      make(map[string]bool, len(s.loading)),
		Errors:       make(map[string]string, len(s.errors)),
	}
	for op, v := range s.loading {
		snap.Loading[op] = v
	}
	for op, err := range s.errors {
		snap.Errors[op] = err.Error()
	}
	return snap
}

func (s *Saga) Step() Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

func (s *Saga) Results() []domain.FlightOffer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.results
}

func (s *Saga) Selected() *domain.FlightOffer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

func (s *Saga) Payment() *domain.PaymentResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.payment
}

func (s *Saga) Confirmation() *domain.FlightOrder {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.confirmation
}

// IsLoading reports whether an operation is currently in flight.
func (s *Saga) IsLoading(op string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading[op]
}

// Err returns the last error recorded for an operation, or nil.
func (s *Saga) Err(op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errors[op]
}
