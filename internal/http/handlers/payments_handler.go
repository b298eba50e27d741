package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/skytrip/flight-bookings/internal/domain"
	"github.com/skytrip/flight-bookings/internal/http/response"
	"github.com/skytrip/flight-bookings/internal/payment"
	"github.com/skytrip/flight-bookings/pkg/events"
	"github.com/skytrip/flight-bookings/pkg/logger"
	"github.com/skytrip/flight-bookings/pkg/middleware"
)

const maxWebhookBody = 64 * 1024

// PaymentAPI is the coordinator surface the payments handler needs.
type PaymentAPI interface {
	CreateIntent(ctx context.Context, amount int64, currency, userID string, card *domain.Card) (*domain.PaymentResult, error)
	Confirm(ctx context.Context, intentID string) (*domain.PaymentResult, error)
}

type PaymentsHandler struct {
	Payments      PaymentAPI
	WebhookSecret string
	Bus           events.Publisher
}

func NewPaymentsHandler(payments PaymentAPI, webhookSecret string, bus events.Publisher) *PaymentsHandler {
	return &PaymentsHandler{Payments: payments, WebhookSecret: webhookSecret, Bus: bus}
}

func (h *PaymentsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/create-intent", h.createIntent)
	r.Post("/confirm", h.confirm)
	r.Post("/webhook", h.webhook)
	return r
}

type createIntentRequest struct {
	Amount   int64        `json:"amount"`
	Total    string       `json:"total,omitempty"` // decimal string alternative to amount
	Currency string       `json:"currency"`
	Card     *domain.Card `json:"card"`
}

func (h *PaymentsHandler) createIntent(w http.ResponseWriter, r *http.Request) {
	var in createIntentRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.BadRequest(w, "invalid json")
		return
	}

	amount := in.Amount
	if amount == 0 && in.Total != "" {
		var err error
		amount, err = payment.AmountFromTotal(in.Total)
		if err != nil {
			response.BadRequest(w, "invalid total")
			return
		}
	}
	if amount <= 0 {
		response.BadRequest(w, "amount must be positive")
		return
	}
	if in.Currency == "" {
		response.BadRequest(w, "currency is required")
		return
	}
	if in.Card == nil {
		response.BadRequest(w, "card is required")
		return
	}

	userID := ""
	if claims := middleware.ClaimsFromContext(r.Context()); claims != nil {
		userID = claims.Sub
	}

	result, err := h.Payments.CreateIntent(r.Context(), amount, in.Currency, userID, in.Card)
	if err != nil {
		logger.ErrorContext(r.Context(), "Payment intent creation failed", "error", err)
		response.WriteDomainError(w, err)
		return
	}

	h.publish(r.Context(), events.PaymentIntentCreated, events.PaymentIntentCreatedEvent{
		IntentID: result.IntentID,
		UserID:   userID,
		Amount:   result.Amount,
		Currency: result.Currency,
	})

	response.WriteJSON(w, http.StatusCreated, map[string]any{"data": result})
}

type confirmRequest struct {
	PaymentIntentID string `json:"paymentIntentId"`
}

func (h *PaymentsHandler) confirm(w http.ResponseWriter, r *http.Request) {
	var in confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.BadRequest(w, "invalid json")
		return
	}
	if in.PaymentIntentID == "" {
		response.BadRequest(w, "paymentIntentId is required")
		return
	}

	result, err := h.Payments.Confirm(r.Context(), in.PaymentIntentID)
	if err != nil {
		logger.ErrorContext(r.Context(), "Payment confirmation failed", "error", err, "intent_id", in.PaymentIntentID)
		response.WriteDomainError(w, err)
		return
	}

	if result.Succeeded() {
		h.publish(r.Context(), events.PaymentCaptured, events.PaymentCapturedEvent{
			IntentID:   result.IntentID,
			Amount:     result.Amount,
			Currency:   result.Currency,
			CapturedAt: time.Now(),
		})
	}

	response.WriteJSON(w, http.StatusOK, map[string]any{"data": result})
}

// webhook verifies the Stripe signature before trusting anything in the
// payload. Unverifiable requests get a 400 and no processing.
func (h *PaymentsHandler) webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		response.BadRequest(w, "unreadable body")
		return
	}

	event, err := webhook.ConstructEvent(body, r.Header.Get("Stripe-Signature"), h.WebhookSecret)
	if err != nil {
		logger.WarnContext(r.Context(), "Webhook signature verification failed", "error", err)
		response.WriteError(w, http.StatusBadRequest, "invalid signature", response.CodeInvalidInput)
		return
	}

	switch event.Type {
	case "payment_intent.succeeded", "payment_intent.payment_failed":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			logger.ErrorContext(r.Context(), "Failed to decode webhook payload", "error", err, "type", event.Type)
			break
		}
		if event.Type == "payment_intent.succeeded" {
			h.publish(r.Context(), events.PaymentCaptured, events.PaymentCapturedEvent{
				IntentID:   pi.ID,
				Amount:     pi.Amount,
				Currency:   string(pi.Currency),
				CapturedAt: time.Now(),
			})
		} else {
			h.publish(r.Context(), events.PaymentFailed, events.PaymentFailedEvent{
				IntentID: pi.ID,
				Reason:   string(pi.Status),
			})
		}
	default:
		logger.DebugContext(r.Context(), "Ignoring webhook event", "type", event.Type)
	}

	response.WriteJSON(w, http.StatusOK, map[string]any{"received": true})
}

func (h *PaymentsHandler) publish(ctx context.Context, subject string, payload any) {
	if h.Bus == nil {
		return
	}
	if err := h.Bus.Publish(ctx, subject, payload); err != nil {
		logger.ErrorContext(ctx, "Failed to publish event", "error", err, "subject", subject)
	}
}
