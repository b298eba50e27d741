package provider

import "github.com/skytrip/flight-bookings/internal/domain"

// Wire shapes for the flight inventory API. Request bodies are forwarded
// verbatim where the provider demands previously returned objects back.

type tokenResponse struct {
	Type        string `json:"type"`
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	State       string `json:"state"`
}

type apiErrorBody struct {
	Errors []apiError `json:"errors"`
}

type apiError struct {
	Status int    `json:"status"`
	Code   int    `json:"code"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

type searchRequest struct {
	CurrencyCode       string              `json:"currencyCode,omitempty"`
	OriginDestinations []originDestination `json:"originDestinations"`
	Travelers          []searchTraveler    `json:"travelers"`
	Sources            []string            `json:"sources"`
	SearchCriteria     *searchFilters      `json:"searchCriteria,omitempty"`
}

type originDestination struct {
	ID              string         `json:"id"`
	OriginCode      string         `json:"originLocationCode"`
	DestinationCode string         `json:"destinationLocationCode"`
	DepartureDate   *dateTimeRange `json:"departureDateTimeRange,omitempty"`
}

type dateTimeRange struct {
	Date string `json:"date"`
}

type searchTraveler struct {
	ID           string `json:"id"`
	TravelerType string `json:"travelerType"`
}

type searchFilters struct {
	MaxFlightOffers int            `json:"maxFlightOffers,omitempty"`
	FlightFilters   *flightFilters `json:"flightFilters,omitempty"`
}

type flightFilters struct {
	CabinRestrictions  []cabinRestriction  `json:"cabinRestrictions,omitempty"`
	CarrierRestrictions *carrierRestriction `json:"carrierRestrictions,omitempty"`
	ConnectionRestriction *connectionRestriction `json:"connectionRestriction,omitempty"`
}

type cabinRestriction struct {
	Cabin                string   `json:"cabin"`
	Coverage             string   `json:"coverage,omitempty"`
	OriginDestinationIDs []string `json:"originDestinationIds,omitempty"`
}

type carrierRestriction struct {
	IncludedCarrierCodes []string `json:"includedCarrierCodes,omitempty"`
}

type connectionRestriction struct {
	MaxNumberOfConnections int `json:"maxNumberOfConnections"`
}

type searchResponse struct {
	Data []domain.FlightOffer `json:"data"`
}

type pricingRequest struct {
	Data pricingRequestData `json:"data"`
}

type pricingRequestData struct {
	Type         string               `json:"type"`
	FlightOffers []domain.FlightOffer `json:"flightOffers"`
}

type pricingResponse struct {
	Data domain.PricingResult `json:"data"`
}

// OrderContact is agency/customer contact data attached to the order.
type OrderContact struct {
	AddresseeName *domain.TravelerName `json:"addresseeName,omitempty"`
	CompanyName   string               `json:"companyName,omitempty"`
	Purpose       string               `json:"purpose,omitempty"`
	EmailAddress  string               `json:"emailAddress,omitempty"`
	Phones        []domain.Phone       `json:"phones,omitempty"`
}

// OrderRemarks carries free-text remarks stored on the PNR.
type OrderRemarks struct {
	General []GeneralRemark `json:"general,omitempty"`
}

type GeneralRemark struct {
	SubType string `json:"subType,omitempty"`
	Text    string `json:"text"`
}

type orderRequest struct {
	Data orderRequestData `json:"data"`
}

type orderRequestData struct {
	Type               string                     `json:"type"`
	FlightOffers       []domain.FlightOffer       `json:"flightOffers"`
	Travelers          []domain.Traveler          `json:"travelers"`
	Remarks            *OrderRemarks              `json:"remarks,omitempty"`
	TicketingAgreement *domain.TicketingAgreement `json:"ticketingAgreement,omitempty"`
	Contacts           []OrderContact             `json:"contacts,omitempty"`
}

type orderResponse struct {
	Data domain.FlightOrder `json:"data"`
}

// LocationQuery is encoded with go-querystring for the reference-data call.
type LocationQuery struct {
	Keyword string `url:"keyword"`
	SubType string `url:"subType"`
	Limit   int    `url:"page[limit],omitempty"`
}

// Location is an airport or city returned by the reference-data endpoint.
type Location struct {
	Type     string `json:"type,omitempty"`
	SubType  string `json:"subType,omitempty"`
	Name     string `json:"name"`
	IataCode string `json:"iataCode"`
	Address  struct {
		CityName    string `json:"cityName,omitempty"`
		CountryName string `json:"countryName,omitempty"`
		CountryCode string `json:"countryCode,omitempty"`
	} `json:"address"`
}

type locationsResponse struct {
	Data []Location `json:"data"`
}
