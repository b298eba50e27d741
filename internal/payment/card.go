package payment

import (
	"regexp"
	"strings"
	"time"

	"github.com/skytrip/flight-bookings/internal/domain"
)

// sandboxCardPrefix bypasses the checksum so fixed sandbox card numbers can
// exercise the flow without being Luhn-valid.
const sandboxCardPrefix = "9999"

var (
	digitsOnly = regexp.MustCompile(`[^0-9]`)
	cvcRe      = regexp.MustCompile(`^[0-9]{3,4}$`)
	expiryRe   = regexp.MustCompile(`^(0[1-9]|1[0-2])/([0-9]{2})$`)
)

// ValidateCard checks card-like input locally. Failures never reach the
// payment provider.
func ValidateCard(card *domain.Card, sandbox bool) *domain.PaymentValidationError {
	fields := make(map[string]string)

	number := digitsOnly.ReplaceAllString(card.Number, "")
	switch {
	case len(number) < 12 || len(number) > 19:
		fields["number"] = "card number must be 12-19 digits"
	case sandbox && strings.HasPrefix(number, sandboxCardPrefix):
		// sandbox test cards skip the checksum
	case !luhnValid(number):
		fields["number"] = "card number failed checksum"
	}

	if m := expiryRe.FindStringSubmatch(card.Expiry); m == nil {
		fields["expiry"] = "expiry must be MM/YY"
	} else if !expiryInFuture(m[1], m[2]) {
		fields["expiry"] = "card is expired"
	}

	if !cvcRe.MatchString(card.CVC) {
		fields["cvc"] = "security code must be 3 or 4 digits"
	}

	if len(fields) > 0 {
		return &domain.PaymentValidationError{Fields: fields}
	}
	return nil
}

func luhnValid(number string) bool {
	sum := 0
	double := false
	for i := len(number) - 1; i >= 0; i-- {
		d := int(number[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

// expiryInFuture treats the card as valid through the last instant of its
// expiry month.
func expiryInFuture(month, year string) bool {
	m := int(month[0]-'0')*10 + int(month[1]-'0')
	y := 2000 + int(year[0]-'0')*10 + int(year[1]-'0')

	endOfMonth := time.Date(y, time.Month(m)+1, 1, 0, 0, 0, 0, time.UTC)
	return time.Now().Before(endOfMonth)
}
