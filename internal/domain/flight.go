package domain

// SearchCriteria is the validated input to a flight offer search.
type SearchCriteria struct {
	Origin        string   `json:"origin"`
	Destination   string   `json:"destination"`
	DepartureDate string   `json:"departure_date"` // YYYY-MM-DD
	ReturnDate    string   `json:"return_date,omitempty"`
	Adults        int      `json:"adults"`
	Children      int      `json:"children,omitempty"`
	Infants       int      `json:"infants,omitempty"`
	TravelClass   string   `json:"travel_class,omitempty"`
	NonStop       bool     `json:"non_stop,omitempty"`
	CurrencyCode  string   `json:"currency_code,omitempty"`
	MaxResults    int      `json:"max_results,omitempty"`
	IncludedAirlines []string `json:"included_airlines,omitempty"`
}

// FlightOffer is the provider's priced itinerary bundle. It is opaque beyond
// inspection: pricing and ordering calls require the exact object the
// provider previously returned, re-submitted verbatim.
type FlightOffer struct {
	Type                     string            `json:"type"`
	ID                       string            `json:"id"`
	Source                   string            `json:"source,omitempty"`
	InstantTicketingRequired bool              `json:"instantTicketingRequired,omitempty"`
	NonHomogeneous           bool              `json:"nonHomogeneous,omitempty"`
	OneWay                   bool              `json:"oneWay,omitempty"`
	LastTicketingDate        string            `json:"lastTicketingDate,omitempty"`
	NumberOfBookableSeats    int               `json:"numberOfBookableSeats,omitempty"`
	Itineraries              []Itinerary       `json:"itineraries"`
	Price                    Price             `json:"price"`
	PricingOptions           *PricingOptions   `json:"pricingOptions,omitempty"`
	ValidatingAirlineCodes   []string          `json:"validatingAirlineCodes,omitempty"`
	TravelerPricings         []TravelerPricing `json:"travelerPricings"`
}

type Itinerary struct {
	Duration string    `json:"duration,omitempty"` // ISO-8601-ish, e.g. PT7H25M
	Segments []Segment `json:"segments"`
}

type Segment struct {
	ID            string         `json:"id,omitempty"`
	Departure     SegmentPoint   `json:"departure"`
	Arrival       SegmentPoint   `json:"arrival"`
	CarrierCode   string         `json:"carrierCode"`
	Number        string         `json:"number,omitempty"`
	Aircraft      *AircraftInfo  `json:"aircraft,omitempty"`
	Operating     *OperatingInfo `json:"operating,omitempty"`
	Duration      string         `json:"duration,omitempty"`
	NumberOfStops int            `json:"numberOfStops,omitempty"`
}

type SegmentPoint struct {
	IataCode string `json:"iataCode"`
	Terminal string `json:"terminal,omitempty"`
	At       string `json:"at"` // local datetime as given by the provider
}

type AircraftInfo struct {
	Code string `json:"code,omitempty"`
}

type OperatingInfo struct {
	CarrierCode string `json:"carrierCode,omitempty"`
}

type Price struct {
	Currency   string `json:"currency"`
	Total      string `json:"total"`
	Base       string `json:"base,omitempty"`
	GrandTotal string `json:"grandTotal,omitempty"`
	Fees       []Fee  `json:"fees,omitempty"`
	Taxes      []Tax  `json:"taxes,omitempty"`
}

type Fee struct {
	Amount string `json:"amount"`
	Type   string `json:"type,omitempty"`
}

type Tax struct {
	Amount string `json:"amount"`
	Code   string `json:"code,omitempty"`
}

type PricingOptions struct {
	FareType                []string `json:"fareType,omitempty"`
	IncludedCheckedBagsOnly bool     `json:"includedCheckedBagsOnly,omitempty"`
}

type TravelerPricing struct {
	TravelerID           string              `json:"travelerId"`
	FareOption           string              `json:"fareOption,omitempty"`
	TravelerType         string              `json:"travelerType,omitempty"` // ADULT, CHILD, ...
	Price                Price               `json:"price"`
	FareDetailsBySegment []FareDetailSegment `json:"fareDetailsBySegment,omitempty"`
}

type FareDetailSegment struct {
	SegmentID           string        `json:"segmentId"`
	Cabin               string        `json:"cabin,omitempty"`
	FareBasis           string        `json:"fareBasis,omitempty"`
	BrandedFare         string        `json:"brandedFare,omitempty"`
	Class               string        `json:"class,omitempty"`
	IncludedCheckedBags *CheckedBags  `json:"includedCheckedBags,omitempty"`
	Amenities           []FareAmenity `json:"amenities,omitempty"`
}

type CheckedBags struct {
	Quantity   int    `json:"quantity,omitempty"`
	Weight     int    `json:"weight,omitempty"`
	WeightUnit string `json:"weightUnit,omitempty"`
}

type FareAmenity struct {
	Description  string `json:"description,omitempty"`
	IsChargeable bool   `json:"isChargeable,omitempty"`
	AmenityType  string `json:"amenityType,omitempty"`
}

// PricingResult is the provider's answer to a pricing call: the confirmed
// offers (possibly repriced) plus booking requirements.
type PricingResult struct {
	Type                string               `json:"type,omitempty"`
	FlightOffers        []FlightOffer        `json:"flightOffers"`
	BookingRequirements *BookingRequirements `json:"bookingRequirements,omitempty"`
}

type BookingRequirements struct {
	EmailAddressRequired     bool `json:"emailAddressRequired,omitempty"`
	MobilePhoneNumberRequired bool `json:"mobilePhoneNumberRequired,omitempty"`
}

// Validate checks a search request before it is forwarded upstream.
func (c *SearchCriteria) Validate() *ValidationError {
	verr := NewValidationError()

	if len(c.Origin) != 3 {
		verr.Add("origin", "must be a 3-letter IATA airport code")
	}
	if len(c.Destination) != 3 {
		verr.Add("destination", "must be a 3-letter IATA airport code")
	}
	if c.Origin != "" && c.Origin == c.Destination {
		verr.Add("destination", "must differ from origin")
	}
	if c.DepartureDate == "" {
		verr.Add("departure_date", "is required")
	}
	if c.Adults < 1 {
		verr.Add("adults", "at least one adult traveler is required")
	}
	if c.Adults+c.Children > 9 {
		verr.Add("adults", "at most 9 seated travelers per booking")
	}
	if c.Infants > c.Adults {
		verr.Add("infants", "cannot exceed number of adults")
	}

	if verr.HasErrors() {
		return verr
	}
	return nil
}
