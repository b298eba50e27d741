package payment

import (
	"testing"

	"github.com/skytrip/flight-bookings/internal/domain"
)

func validCard() *domain.Card {
	return &domain.Card{
		Number: "4242 4242 4242 4242", // Luhn-valid
		Expiry: "12/30",
		CVC:    "314",
		Name:   "ADA LOVELACE",
	}
}

func TestValidateCardAccepts(t *testing.T) {
	if err := ValidateCard(validCard(), false); err != nil {
		t.Fatalf("unexpected rejection: %v", err)
	}
}

func TestValidateCard(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *domain.Card)
		sandbox bool
		field   string
	}{
		{
			name:   "luhn failure",
			mutate: func(c *domain.Card) { c.Number = "4242424242424241" },
			field:  "number",
		},
		{
			name:   "too short",
			mutate: func(c *domain.Card) { c.Number = "42424242424" },
			field:  "number",
		},
		{
			name:   "too long",
			mutate: func(c *domain.Card) { c.Number = "42424242424242424242" },
			field:  "number",
		},
		{
			name:   "expired card",
			mutate: func(c *domain.Card) { c.Expiry = "01/20" },
			field:  "expiry",
		},
		{
			name:   "malformed expiry month",
			mutate: func(c *domain.Card) { c.Expiry = "13/30" },
			field:  "expiry",
		},
		{
			name:   "malformed expiry format",
			mutate: func(c *domain.Card) { c.Expiry = "122030" },
			field:  "expiry",
		},
		{
			name:   "cvc too short",
			mutate: func(c *domain.Card) { c.CVC = "12" },
			field:  "cvc",
		},
		{
			name:   "cvc not numeric",
			mutate: func(c *domain.Card) { c.CVC = "12a" },
			field:  "cvc",
		},
		{
			name:    "sandbox prefix fails checksum outside sandbox",
			mutate:  func(c *domain.Card) { c.Number = "9999999999999999" },
			sandbox: false,
			field:   "number",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			card := validCard()
			tt.mutate(card)

			err := ValidateCard(card, tt.sandbox)
			if err == nil {
				t.Fatal("expected rejection, got nil")
			}
			if _, ok := err.Fields[tt.field]; !ok {
				t.Errorf("expected error on %q, got %v", tt.field, err.Fields)
			}
		})
	}
}

func TestValidateCardSandboxPrefixSkipsChecksum(t *testing.T) {
	card := validCard()
	card.Number = "9999999999999999" // not Luhn-valid

	if err := ValidateCard(card, true); err != nil {
		t.Fatalf("sandbox test card rejected: %v", err)
	}
}

func TestAmountFromTotal(t *testing.T) {
	tests := []struct {
		total   string
		want    int64
		wantErr bool
	}{
		{total: "973.00", want: 97300},
		{total: "973", want: 97300},
		{total: "0.10", want: 10},
		{total: "1249.99", want: 124999},
		{total: "19.995", want: 2000}, // rounds, never truncates
		{total: "", wantErr: true},
		{total: "abc", wantErr: true},
	}

	for _, tt := range tests {
		got, err := AmountFromTotal(tt.total)
		if tt.wantErr {
			if err == nil {
				t.Errorf("AmountFromTotal(%q): expected error", tt.total)
			}
			continue
		}
		if err != nil {
			t.Errorf("AmountFromTotal(%q): %v", tt.total, err)
			continue
		}
		if got != tt.want {
			t.Errorf("AmountFromTotal(%q) = %d, want %d", tt.total, got, tt.want)
		}
	}
}

func TestNormalizeCurrency(t *testing.T) {
	tests := map[string]string{
		"USD":   "usd",
		"usd":   "usd",
		" EUR ": "eur",
		"GbP":   "gbp",
	}
	for in, want := range tests {
		if got := normalizeCurrency(in); got != want {
			t.Errorf("normalizeCurrency(%q) = %q, want %q", in, got, want)
		}
	}
}
