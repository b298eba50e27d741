package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/skytrip/flight-bookings/internal/domain"
	"github.com/skytrip/flight-bookings/internal/http/response"
	"github.com/skytrip/flight-bookings/internal/notify"
	"github.com/skytrip/flight-bookings/pkg/events"
	"github.com/skytrip/flight-bookings/pkg/logger"
)

// DocumentRenderer renders a booking document to PDF bytes.
type DocumentRenderer interface {
	Render(data *domain.BookingDocumentData) ([]byte, error)
}

type DocumentsHandler struct {
	Renderer DocumentRenderer
	Mailer   notify.Mailer
	Bus      events.Publisher
	Issuer   domain.IssuerInfo
}

func NewDocumentsHandler(renderer DocumentRenderer, mailer notify.Mailer, bus events.Publisher, issuer domain.IssuerInfo) *DocumentsHandler {
	return &DocumentsHandler{Renderer: renderer, Mailer: mailer, Bus: bus, Issuer: issuer}
}

func (h *DocumentsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/generate", h.generate)
	r.Post("/sent-flight-ticket", h.sendTicket)
	return r
}

// ticketRequest carries the confirmed order plus the offer it was booked
// from. The offer supplies itinerary and price data the order lacks.
type ticketRequest struct {
	Order       *domain.FlightOrder   `json:"order"`
	FlightOffer *domain.FlightOffer   `json:"flightOffer"`
	Payment     *domain.PaymentResult `json:"payment,omitempty"`
	Email       string                `json:"email,omitempty"` // recipient override
}

func (in *ticketRequest) documentData(issuer domain.IssuerInfo) (*domain.BookingDocumentData, error) {
	if in.Order == nil || in.Order.ID == "" {
		return nil, fmt.Errorf("order is required")
	}
	if in.FlightOffer == nil {
		return nil, fmt.Errorf("flightOffer is required")
	}
	issueDate := time.Now().Format("2006-01-02")
	return domain.BuildBookingDocumentData(in.Order, in.FlightOffer, in.Payment, issueDate, issuer), nil
}

func (h *DocumentsHandler) generate(w http.ResponseWriter, r *http.Request) {
	var in ticketRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.BadRequest(w, "invalid json")
		return
	}

	data, err := in.documentData(h.Issuer)
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	pdf, err := h.Renderer.Render(data)
	if err != nil {
		logger.ErrorContext(r.Context(), "Document rendering failed", "error", err, "order_id", data.OrderID)
		response.WriteDomainError(w, err)
		return
	}
	h.publish(r.Context(), events.TicketRendered, map[string]string{"order_id": data.OrderID})

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="ticket-%s.pdf"`, data.OrderID))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(pdf); err != nil {
		logger.ErrorContext(r.Context(), "Failed to write PDF response", "error", err)
	}
}

func (h *DocumentsHandler) sendTicket(w http.ResponseWriter, r *http.Request) {
	var in ticketRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.BadRequest(w, "invalid json")
		return
	}

	data, err := in.documentData(h.Issuer)
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	recipient := in.Email
	name := data.Contact.Name
	if recipient == "" {
		recipient = data.Contact.Email
	}
	if recipient == "" {
		response.BadRequest(w, "no recipient email on order")
		return
	}

	pdf, err := h.Renderer.Render(data)
	if err != nil {
		logger.ErrorContext(r.Context(), "Document rendering failed", "error", err, "order_id", data.OrderID)
		response.WriteDomainError(w, err)
		return
	}
	h.publish(r.Context(), events.TicketRendered, map[string]string{"order_id": data.OrderID})

	msg := notify.BuildTicketMessage(recipient, name, data.OrderID, data.BookingReferences, pdf)
	if err := h.Mailer.Send(r.Context(), msg); err != nil {
		logger.ErrorContext(r.Context(), "Ticket email failed", "error", err,
			"order_id", data.OrderID, "recipient", recipient)
		h.publish(r.Context(), events.TicketSendFailed, events.TicketSendFailedEvent{
			OrderID:   data.OrderID,
			Recipient: recipient,
			Reason:    err.Error(),
		})
		response.WriteError(w, http.StatusBadGateway, "failed to send ticket email", response.CodeEmailFailed)
		return
	}

	h.publish(r.Context(), events.TicketSent, events.TicketSentEvent{
		OrderID:   data.OrderID,
		Recipient: recipient,
		SentAt:    time.Now(),
	})

	bookingRef := ""
	if refs := data.BookingReferences; len(refs) > 0 {
		bookingRef = refs[0]
	}
	response.WriteJSON(w, http.StatusOK, map[string]any{
		"success":          true,
		"bookingReference": bookingRef,
		"email":            recipient,
	})
}

func (h *DocumentsHandler) publish(ctx context.Context, subject string, payload any) {
	if h.Bus == nil {
		return
	}
	if err := h.Bus.Publish(ctx, subject, payload); err != nil {
		logger.ErrorContext(ctx, "Failed to publish event", "error", err, "subject", subject)
	}
}
