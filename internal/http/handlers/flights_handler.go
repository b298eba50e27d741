package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/skytrip/flight-bookings/internal/domain"
	"github.com/skytrip/flight-bookings/internal/http/response"
	"github.com/skytrip/flight-bookings/internal/provider"
	"github.com/skytrip/flight-bookings/internal/repo/postgres"
	"github.com/skytrip/flight-bookings/pkg/events"
	"github.com/skytrip/flight-bookings/pkg/logger"
	"github.com/skytrip/flight-bookings/pkg/middleware"
)

// FlightAPI is the provider surface the flights handler needs.
type FlightAPI interface {
	Search(ctx context.Context, criteria *domain.SearchCriteria) ([]domain.FlightOffer, error)
	Price(ctx context.Context, offers []domain.FlightOffer) (*domain.PricingResult, error)
	CreateOrder(ctx context.Context, offers []domain.FlightOffer, travelers []domain.Traveler, remarks *provider.OrderRemarks, contacts []provider.OrderContact) (*domain.FlightOrder, error)
	SearchLocations(ctx context.Context, keyword string, limit int) ([]provider.Location, error)
}

type FlightsHandler struct {
	Flights FlightAPI
	Orders  postgres.OrderRepository
	Bus     events.Publisher
}

func NewFlightsHandler(flights FlightAPI, orders postgres.OrderRepository, bus events.Publisher) *FlightsHandler {
	return &FlightsHandler{Flights: flights, Orders: orders, Bus: bus}
}

func (h *FlightsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/search", h.Search)
	r.Post("/price", h.Price)
	r.Post("/book", h.Book)
	r.Get("/locations", h.Locations)
	return r
}

func (h *FlightsHandler) Search(w http.ResponseWriter, r *http.Request) {
	var criteria domain.SearchCriteria
	if err := json.NewDecoder(r.Body).Decode(&criteria); err != nil {
		response.BadRequest(w, "invalid json")
		return
	}

	// Schema problems never reach the provider.
	if verr := criteria.Validate(); verr != nil {
		response.WriteValidation(w, "invalid search criteria", verr.Fields)
		return
	}

	offers, err := h.Flights.Search(r.Context(), &criteria)
	if err != nil {
		logger.ErrorContext(r.Context(), "Flight search failed", "error", err)
		response.WriteDomainError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]any{"data": offers})
}

type priceRequest struct {
	FlightOffers []domain.FlightOffer `json:"flightOffers"`
}

func (h *FlightsHandler) Price(w http.ResponseWriter, r *http.Request) {
	var in priceRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.BadRequest(w, "invalid json")
		return
	}
	if len(in.FlightOffers) == 0 {
		response.BadRequest(w, "flightOffers is required")
		return
	}

	pricing, err := h.Flights.Price(r.Context(), in.FlightOffers)
	if err != nil {
		logger.ErrorContext(r.Context(), "Flight pricing failed", "error", err)
		response.WriteDomainError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]any{"data": pricing})
}

type bookRequest struct {
	FlightOffers []domain.FlightOffer     `json:"flightOffers"`
	Travelers    []domain.Traveler        `json:"travelers"`
	Contacts     []provider.OrderContact  `json:"contacts,omitempty"`
	Remarks      *provider.OrderRemarks   `json:"remarks,omitempty"`
}

func (h *FlightsHandler) Book(w http.ResponseWriter, r *http.Request) {
	var in bookRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.BadRequest(w, "invalid json")
		return
	}
	if len(in.FlightOffers) == 0 {
		response.BadRequest(w, "flightOffers is required")
		return
	}

	if verr := domain.ValidateTravelers(in.Travelers, &in.FlightOffers[0]); verr != nil {
		response.WriteValidation(w, "invalid travelers", verr.Fields)
		return
	}

	order, err := h.Flights.CreateOrder(r.Context(), in.FlightOffers, in.Travelers, in.Remarks, in.Contacts)
	if err != nil {
		logger.ErrorContext(r.Context(), "Order creation failed", "error", err)
		response.WriteDomainError(w, err)
		return
	}

	h.persist(r, order, &in.FlightOffers[0])

	response.WriteJSON(w, http.StatusCreated, map[string]any{"data": order})
}

// persist stores the confirmed order and announces it. The booking already
// succeeded upstream; failures here are logged, never surfaced.
func (h *FlightsHandler) persist(r *http.Request, order *domain.FlightOrder, offer *domain.FlightOffer) {
	ctx := r.Context()

	userID := ""
	if claims := middleware.ClaimsFromContext(ctx); claims != nil {
		userID = claims.Sub
	}

	contact := ""
	for _, t := range order.Travelers {
		if t.Contact != nil && t.Contact.EmailAddress != "" {
			contact = t.Contact.EmailAddress
			break
		}
	}

	payload, err := json.Marshal(order)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to marshal order payload", "error", err, "order_id", order.ID)
		payload = nil
	}

	if h.Orders != nil {
		rec := &domain.OrderRecord{
			OrderID:           order.ID,
			UserID:            userID,
			Status:            domain.OrderConfirmed,
			BookingReferences: order.BookingReferences(),
			ContactEmail:      contact,
			GrandTotal:        offer.Price.Total,
			Currency:          offer.Price.Currency,
			Payload:           payload,
		}
		if _, err := h.Orders.Insert(ctx, rec); err != nil {
			logger.ErrorContext(ctx, "Failed to persist order", "error", err, "order_id", order.ID)
		}
	}

	if h.Bus != nil {
		evt := events.OrderCreatedEvent{
			OrderID:           order.ID,
			UserID:            userID,
			BookingReferences: order.BookingReferences(),
			Travelers:         len(order.Travelers),
			GrandTotal:        offer.Price.Total,
			Currency:          offer.Price.Currency,
			CreatedAt:         time.Now(),
		}
		if err := h.Bus.Publish(ctx, events.OrderCreated, evt); err != nil {
			logger.ErrorContext(ctx, "Failed to publish order event", "error", err, "order_id", order.ID)
		}
	}
}

func (h *FlightsHandler) Locations(w http.ResponseWriter, r *http.Request) {
	keyword := r.URL.Query().Get("keyword")
	if len(keyword) < 2 {
		response.BadRequest(w, "keyword must be at least 2 characters")
		return
	}

	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 50 {
			response.BadRequest(w, "invalid limit")
			return
		}
		limit = n
	}

	locations, err := h.Flights.SearchLocations(r.Context(), keyword, limit)
	if err != nil {
		logger.ErrorContext(r.Context(), "Location lookup failed", "error", err, "keyword", keyword)
		response.WriteDomainError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]any{"data": locations})
}
