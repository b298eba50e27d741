package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/skytrip/flight-bookings/internal/domain"
	"github.com/skytrip/flight-bookings/internal/http/response"
	"github.com/skytrip/flight-bookings/internal/saga"
	"github.com/skytrip/flight-bookings/pkg/middleware"
)

// SessionsHandler exposes the step-by-step booking flow over HTTP. Each
// session wraps one saga; the client drives it action by action and reads
// the state snapshot back.
type SessionsHandler struct {
	Manager *saga.Manager
}

func NewSessionsHandler(manager *saga.Manager) *SessionsHandler {
	return &SessionsHandler{Manager: manager}
}

func (h *SessionsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.create)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.state)
		r.Delete("/", h.destroy)
		r.Post("/search", h.search)
		r.Post("/select", h.selectFlight)
		r.Post("/pricing", h.pricing)
		r.Post("/travelers", h.travelers)
		r.Post("/extras", h.extras)
		r.Post("/payment-intent", h.paymentIntent)
		r.Post("/payment-confirm", h.paymentConfirm)
		r.Post("/finalize", h.finalize)
		r.Post("/reset", h.reset)
	})
	return r
}

func (h *SessionsHandler) create(w http.ResponseWriter, r *http.Request) {
	userID := ""
	if claims := middleware.ClaimsFromContext(r.Context()); claims != nil {
		userID = claims.Sub
	}

	id, sg := h.Manager.Create(userID)
	response.WriteJSON(w, http.StatusCreated, map[string]any{
		"sessionId": id,
		"state":     sg.Snapshot(),
	})
}

// session resolves the saga for the request or writes a 404.
func (h *SessionsHandler) session(w http.ResponseWriter, r *http.Request) *saga.Saga {
	sg := h.Manager.Get(chi.URLParam(r, "id"))
	if sg == nil {
		response.NotFound(w, "booking session not found")
	}
	return sg
}

// writeActionError maps saga failures: taxonomy errors keep their HTTP
// mapping, anything else is a flow precondition violation.
func writeActionError(w http.ResponseWriter, err error) {
	if response.Known(err) {
		response.WriteDomainError(w, err)
		return
	}
	response.WriteError(w, http.StatusConflict, err.Error(), response.CodeConflict)
}

func (h *SessionsHandler) writeState(w http.ResponseWriter, sg *saga.Saga) {
	response.WriteJSON(w, http.StatusOK, map[string]any{"state": sg.Snapshot()})
}

func (h *SessionsHandler) state(w http.ResponseWriter, r *http.Request) {
	if sg := h.session(w, r); sg != nil {
		h.writeState(w, sg)
	}
}

func (h *SessionsHandler) destroy(w http.ResponseWriter, r *http.Request) {
	h.Manager.Delete(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionsHandler) search(w http.ResponseWriter, r *http.Request) {
	sg := h.session(w, r)
	if sg == nil {
		return
	}

	var criteria domain.SearchCriteria
	if err := json.NewDecoder(r.Body).Decode(&criteria); err != nil {
		response.BadRequest(w, "invalid json")
		return
	}

	if err := sg.SearchFlights(r.Context(), &criteria); err != nil {
		writeActionError(w, err)
		return
	}
	h.writeState(w, sg)
}

type selectRequest struct {
	Offer *domain.FlightOffer `json:"offer"`
}

func (h *SessionsHandler) selectFlight(w http.ResponseWriter, r *http.Request) {
	sg := h.session(w, r)
	if sg == nil {
		return
	}

	var in selectRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.BadRequest(w, "invalid json")
		return
	}

	if err := sg.SelectFlight(in.Offer); err != nil {
		writeActionError(w, err)
		return
	}
	h.writeState(w, sg)
}

func (h *SessionsHandler) pricing(w http.ResponseWriter, r *http.Request) {
	sg := h.session(w, r)
	if sg == nil {
		return
	}

	if err := sg.GetPricing(r.Context()); err != nil {
		writeActionError(w, err)
		return
	}
	h.writeState(w, sg)
}

type travelersRequest struct {
	Travelers []domain.Traveler `json:"travelers"`
}

func (h *SessionsHandler) travelers(w http.ResponseWriter, r *http.Request) {
	sg := h.session(w, r)
	if sg == nil {
		return
	}

	var in travelersRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.BadRequest(w, "invalid json")
		return
	}

	if err := sg.SaveTravelers(in.Travelers); err != nil {
		writeActionError(w, err)
		return
	}
	h.writeState(w, sg)
}

func (h *SessionsHandler) extras(w http.ResponseWriter, r *http.Request) {
	sg := h.session(w, r)
	if sg == nil {
		return
	}

	var in saga.Extras
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.BadRequest(w, "invalid json")
		return
	}

	sg.SetExtras(in)
	h.writeState(w, sg)
}

type sessionPaymentRequest struct {
	Card *domain.Card `json:"card"`
}

func (h *SessionsHandler) paymentIntent(w http.ResponseWriter, r *http.Request) {
	sg := h.session(w, r)
	if sg == nil {
		return
	}

	var in sessionPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.BadRequest(w, "invalid json")
		return
	}
	if in.Card == nil {
		response.BadRequest(w, "card is required")
		return
	}

	if _, err := sg.CreatePaymentIntent(r.Context(), in.Card); err != nil {
		writeActionError(w, err)
		return
	}
	h.writeState(w, sg)
}

func (h *SessionsHandler) paymentConfirm(w http.ResponseWriter, r *http.Request) {
	sg := h.session(w, r)
	if sg == nil {
		return
	}

	var in confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.BadRequest(w, "invalid json")
		return
	}
	if in.PaymentIntentID == "" {
		response.BadRequest(w, "paymentIntentId is required")
		return
	}

	if _, err := sg.ConfirmPayment(r.Context(), in.PaymentIntentID); err != nil {
		writeActionError(w, err)
		return
	}
	h.writeState(w, sg)
}

func (h *SessionsHandler) finalize(w http.ResponseWriter, r *http.Request) {
	sg := h.session(w, r)
	if sg == nil {
		return
	}

	if _, err := sg.FinalizeBooking(r.Context()); err != nil {
		writeActionError(w, err)
		return
	}
	h.writeState(w, sg)
}

func (h *SessionsHandler) reset(w http.ResponseWriter, r *http.Request) {
	sg := h.session(w, r)
	if sg == nil {
		return
	}

	sg.ResetBooking()
	h.writeState(w, sg)
}
