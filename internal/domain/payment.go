package domain

// Card is card-like input validated locally before it ever reaches the
// payment provider.
type Card struct {
	Number string `json:"number"`
	Expiry string `json:"expiry"` // MM/YY
	CVC    string `json:"cvc"`
	Name   string `json:"name,omitempty"`
}

// PaymentResult reports the provider-side state of a payment intent.
type PaymentResult struct {
	IntentID     string `json:"intent_id"`
	Status       string `json:"status"`
	ClientSecret string `json:"client_secret,omitempty"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
}

// Succeeded reports whether the intent reached its terminal success state.
func (p *PaymentResult) Succeeded() bool {
	return p.Status == "succeeded"
}
