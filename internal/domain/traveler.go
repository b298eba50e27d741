package domain

import (
	"fmt"
	"regexp"
	"time"
)

type DocumentType string

const (
	DocumentPassport   DocumentType = "PASSPORT"
	DocumentNationalID DocumentType = "NATIONAL_ID"
)

var countryCodeRe = regexp.MustCompile(`^[A-Za-z]{2}$`)

// TravelDocument is an identity document attached to a traveler. Every
// traveler needs at least one before checkout.
type TravelDocument struct {
	DocumentType     DocumentType `json:"documentType"`
	Number           string       `json:"number"`
	ExpiryDate       string       `json:"expiryDate"` // YYYY-MM-DD
	IssuanceCountry  string       `json:"issuanceCountry"`
	ValidityCountry  string       `json:"validityCountry,omitempty"`
	Nationality      string       `json:"nationality"`
	Holder           bool         `json:"holder"`
}

type TravelerName struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type Phone struct {
	DeviceType         string `json:"deviceType,omitempty"`
	CountryCallingCode string `json:"countryCallingCode,omitempty"`
	Number             string `json:"number"`
}

type TravelerContact struct {
	EmailAddress string  `json:"emailAddress"`
	Phones       []Phone `json:"phones,omitempty"`
}

// Traveler matches one traveler-pricing entry on the selected offer by ID.
type Traveler struct {
	ID          string           `json:"id"`
	DateOfBirth string           `json:"dateOfBirth"` // YYYY-MM-DD
	Gender      string           `json:"gender,omitempty"`
	Name        TravelerName     `json:"name"`
	Contact     *TravelerContact `json:"contact,omitempty"`
	Documents   []TravelDocument `json:"documents"`
}

func (d *TravelDocument) validate(prefix string, verr *ValidationError) {
	switch d.DocumentType {
	case DocumentPassport, DocumentNationalID:
	default:
		verr.Add(prefix+".documentType", "must be PASSPORT or NATIONAL_ID")
	}
	if d.Number == "" {
		verr.Add(prefix+".number", "is required")
	}
	if d.ExpiryDate == "" {
		verr.Add(prefix+".expiryDate", "is required")
	} else if exp, err := time.Parse("2006-01-02", d.ExpiryDate); err != nil {
		verr.Add(prefix+".expiryDate", "must be YYYY-MM-DD")
	} else if !exp.After(time.Now()) {
		verr.Add(prefix+".expiryDate", "document is expired")
	}
	if !countryCodeRe.MatchString(d.IssuanceCountry) {
		verr.Add(prefix+".issuanceCountry", "must be a 2-letter country code")
	}
	if d.ValidityCountry != "" && !countryCodeRe.MatchString(d.ValidityCountry) {
		verr.Add(prefix+".validityCountry", "must be a 2-letter country code")
	}
	if !countryCodeRe.MatchString(d.Nationality) {
		verr.Add(prefix+".nationality", "must be a 2-letter country code")
	}
}

func (t *Traveler) validate(prefix string, verr *ValidationError) {
	if t.ID == "" {
		verr.Add(prefix+".id", "is required")
	}
	if t.Name.FirstName == "" {
		verr.Add(prefix+".name.firstName", "is required")
	}
	if t.Name.LastName == "" {
		verr.Add(prefix+".name.lastName", "is required")
	}
	if t.DateOfBirth == "" {
		verr.Add(prefix+".dateOfBirth", "is required")
	} else if _, err := time.Parse("2006-01-02", t.DateOfBirth); err != nil {
		verr.Add(prefix+".dateOfBirth", "must be YYYY-MM-DD")
	}
	if len(t.Documents) == 0 {
		verr.Add(prefix+".documents", "at least one travel document is required")
	}
	for i := range t.Documents {
		t.Documents[i].validate(fmt.Sprintf("%s.documents[%d]", prefix, i), verr)
	}
}

// ValidateTravelers enforces the checkout invariant: exactly one traveler per
// traveler-pricing entry on the offer, matched by ID, each fully documented.
// Returns nil when the list is acceptable.
func ValidateTravelers(travelers []Traveler, offer *FlightOffer) *ValidationError {
	verr := NewValidationError()

	if offer == nil {
		verr.Add("offer", "no flight offer selected")
		return verr
	}
	if len(travelers) != len(offer.TravelerPricings) {
		verr.Add("travelers", fmt.Sprintf("offer requires %d travelers, got %d",
			len(offer.TravelerPricings), len(travelers)))
	}

	wanted := make(map[string]bool, len(offer.TravelerPricings))
	for _, tp := range offer.TravelerPricings {
		wanted[tp.TravelerID] = false
	}

	for i := range travelers {
		t := &travelers[i]
		prefix := fmt.Sprintf("travelers[%d]", i)
		t.validate(prefix, verr)

		if t.ID != "" {
			seen, ok := wanted[t.ID]
			if !ok {
				verr.Add(prefix+".id", "does not match any traveler pricing on the offer")
			} else if seen {
				verr.Add(prefix+".id", "duplicate traveler id")
			} else {
				wanted[t.ID] = true
			}
		}
	}

	if verr.HasErrors() {
		return verr
	}
	return nil
}
