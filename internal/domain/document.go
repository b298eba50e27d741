package domain

// BookingDocumentData is the fully denormalized projection handed to the
// document engine. Built once after order confirmation, never mutated.
type BookingDocumentData struct {
	OrderID           string     `json:"order_id"`
	BookingReferences []string   `json:"booking_references"`
	IssueDate         string     `json:"issue_date"` // YYYY-MM-DD, set at projection time
	Itineraries       []Itinerary `json:"itineraries"`
	Travelers         []Traveler  `json:"travelers"`
	TravelerPricings  []TravelerPricing `json:"traveler_pricings"`
	Price             Price       `json:"price"`
	Payment           *PaymentSummary `json:"payment,omitempty"`
	Contact           ContactSummary  `json:"contact"`
	Issuer            IssuerInfo      `json:"issuer"`
}

// PaymentSummary is the payment outcome as shown on the ticket.
type PaymentSummary struct {
	IntentID string `json:"intent_id"`
	Status   string `json:"status"`
	Amount   int64  `json:"amount"` // minor units
	Currency string `json:"currency"`
}

type ContactSummary struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

// IssuerInfo is static metadata about the issuing agency.
type IssuerInfo struct {
	Name     string `json:"name"`
	TermsURL string `json:"terms_url"`
}

// BuildBookingDocumentData projects a confirmed order plus the originally
// selected offer and payment outcome into the ticket input.
func BuildBookingDocumentData(order *FlightOrder, offer *FlightOffer, payment *PaymentResult, issueDate string, issuer IssuerInfo) *BookingDocumentData {
	data := &BookingDocumentData{
		OrderID:           order.ID,
		BookingReferences: order.BookingReferences(),
		IssueDate:         issueDate,
		Travelers:         order.Travelers,
		Issuer:            issuer,
	}

	if offer != nil {
		data.Itineraries = offer.Itineraries
		data.TravelerPricings = offer.TravelerPricings
		data.Price = offer.Price
	}

	if payment != nil {
		data.Payment = &PaymentSummary{
			IntentID: payment.IntentID,
			Status:   payment.Status,
			Amount:   payment.Amount,
			Currency: payment.Currency,
		}
	}

	for _, t := range order.Travelers {
		if t.Contact != nil && t.Contact.EmailAddress != "" {
			data.Contact = ContactSummary{
				Name:  t.Name.FirstName + " " + t.Name.LastName,
				Email: t.Contact.EmailAddress,
			}
			if len(t.Contact.Phones) > 0 {
				data.Contact.Phone = t.Contact.Phones[0].CountryCallingCode + t.Contact.Phones[0].Number
			}
			break
		}
	}

	return data
}
