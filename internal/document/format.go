package document

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var durationRe = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?$`)

// FormatDuration turns a provider duration token (PT7H25M) into "7h 25m".
// Anything unparseable is returned raw rather than failing the render.
func FormatDuration(raw string) string {
	m := durationRe.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil || (m[1] == "" && m[2] == "") {
		return raw
	}

	var parts []string
	if m[1] != "" {
		parts = append(parts, m[1]+"h")
	}
	if m[2] != "" {
		parts = append(parts, m[2]+"m")
	}
	return strings.Join(parts, " ")
}

// FormatDateTime renders a provider local datetime ("2025-06-01T09:30:00")
// for display, falling back to the raw string.
func FormatDateTime(raw string) string {
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04", time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("Mon, 02 Jan 2006 15:04")
		}
	}
	return raw
}

// FormatDate renders a YYYY-MM-DD date, falling back to the raw string.
func FormatDate(raw string) string {
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t.Format("02 Jan 2006")
	}
	return raw
}

// FormatMoney pairs a decimal amount string with its currency code.
func FormatMoney(amount, currency string) string {
	if amount == "" {
		return ""
	}
	if currency == "" {
		return amount
	}
	return strings.ToUpper(currency) + " " + amount
}

// FormatMinorUnits renders integer minor units: 97300, "usd" -> "USD 973.00".
func FormatMinorUnits(amount int64, currency string) string {
	return fmt.Sprintf("%s %d.%02d", strings.ToUpper(currency), amount/100, amount%100)
}
