package domain

import "time"

// FlightOrder is the provider's booking confirmation, the system's
// definition of "booking succeeded".
type FlightOrder struct {
	Type               string              `json:"type,omitempty"`
	ID                 string              `json:"id"`
	QueuingOfficeID    string              `json:"queuingOfficeId,omitempty"`
	AssociatedRecords  []AssociatedRecord  `json:"associatedRecords,omitempty"`
	FlightOffers       []FlightOffer       `json:"flightOffers,omitempty"`
	Travelers          []Traveler          `json:"travelers,omitempty"`
	TicketingAgreement *TicketingAgreement `json:"ticketingAgreement,omitempty"`
}

// AssociatedRecord carries a booking reference (PNR) assigned upstream.
type AssociatedRecord struct {
	Reference        string `json:"reference"`
	CreationDate     string `json:"creationDate,omitempty"`
	OriginSystemCode string `json:"originSystemCode,omitempty"`
}

type TicketingAgreement struct {
	Option string `json:"option,omitempty"`
	Delay  string `json:"delay,omitempty"`
}

// BookingReferences collects the PNRs on the order, in provider order.
func (o *FlightOrder) BookingReferences() []string {
	refs := make([]string, 0, len(o.AssociatedRecords))
	for _, r := range o.AssociatedRecords {
		refs = append(refs, r.Reference)
	}
	return refs
}

type OrderStatus string

const (
	OrderConfirmed OrderStatus = "confirmed"
	OrderTicketed  OrderStatus = "ticketed"
	OrderCanceled  OrderStatus = "canceled"
)

// OrderRecord is the durable row written once an order is confirmed
// upstream, keyed by provider order id and the booking user.
type OrderRecord struct {
	OrderID           string      `json:"order_id"`
	UserID            string      `json:"user_id,omitempty"`
	Status            OrderStatus `json:"status"`
	BookingReferences []string    `json:"booking_references"`
	ContactEmail      string      `json:"contact_email"`
	GrandTotal        string      `json:"grand_total"`
	Currency          string      `json:"currency"`
	Payload           []byte      `json:"-"` // full provider order, verbatim
	CreatedAt         time.Time   `json:"created_at"`
}
