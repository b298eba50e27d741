package payment

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/skytrip/flight-bookings/internal/domain"
	"github.com/skytrip/flight-bookings/pkg/config"
	"github.com/skytrip/flight-bookings/pkg/logger"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// Coordinator creates and confirms payment intents. It never retries on
// provider error; the provider's message is surfaced as-is.
type Coordinator struct {
	api     *client.API
	sandbox bool
}

func NewCoordinator(cfg config.StripeConfig) *Coordinator {
	api := &client.API{}
	api.Init(cfg.SecretKey, nil)
	return &Coordinator{
		api:     api,
		sandbox: cfg.Environment != "live",
	}
}

// AmountFromTotal converts a decimal price total into integer minor units,
// rounding: "973.00" -> 97300.
func AmountFromTotal(total string) (int64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(total), 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable price total %q: %w", total, err)
	}
	if v < 0 {
		return 0, fmt.Errorf("negative price total %q", total)
	}
	return int64(math.Round(v * 100)), nil
}

// normalizeCurrency maps an ISO 4217 code to the provider's lower-case
// form: "USD" -> "usd".
func normalizeCurrency(currency string) string {
	return strings.ToLower(strings.TrimSpace(currency))
}

// CreateIntent validates any supplied card and opens one payment intent.
// The caller computes amount from the offer total; currency is normalized
// to the provider's expectation.
func (c *Coordinator) CreateIntent(ctx context.Context, amount int64, currency, userID string, card *domain.Card) (*domain.PaymentResult, error) {
	if amount <= 0 {
		return nil, &domain.PaymentValidationError{Fields: map[string]string{"amount": "must be positive"}}
	}
	if card != nil {
		if verr := ValidateCard(card, c.sandbox); verr != nil {
			return nil, verr
		}
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(normalizeCurrency(currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	if userID != "" {
		params.AddMetadata("user_id", userID)
	}

	pi, err := c.api.PaymentIntents.New(params)
	if err != nil {
		return nil, mapStripeError(err)
	}

	logger.InfoContext(ctx, "Payment intent created",
		"intent_id", pi.ID, "amount", amount, "currency", normalizeCurrency(currency))

	return resultFromIntent(pi), nil
}

// Confirm transitions a pending intent toward its terminal status.
func (c *Coordinator) Confirm(ctx context.Context, intentID string) (*domain.PaymentResult, error) {
	if intentID == "" {
		return nil, &domain.PaymentValidationError{Fields: map[string]string{"payment_id": "is required"}}
	}

	params := &stripe.PaymentIntentConfirmParams{}
	params.Context = ctx

	pi, err := c.api.PaymentIntents.Confirm(intentID, params)
	if err != nil {
		return nil, mapStripeError(err)
	}

	logger.InfoContext(ctx, "Payment intent confirmed", "intent_id", pi.ID, "status", pi.Status)

	return resultFromIntent(pi), nil
}

func resultFromIntent(pi *stripe.PaymentIntent) *domain.PaymentResult {
	return &domain.PaymentResult{
		IntentID:     pi.ID,
		Status:       string(pi.Status),
		ClientSecret: pi.ClientSecret,
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
	}
}

func mapStripeError(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return &domain.PaymentError{
			Code:    string(stripeErr.Code),
			Message: stripeErr.Msg,
		}
	}
	return &domain.PaymentError{Message: err.Error()}
}
