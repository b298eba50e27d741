package document

import (
	"fmt"
	"strings"

	"github.com/skytrip/flight-bookings/internal/domain"
)

// Per-item block heights in millimeters. Sub-items are sized up front so the
// overflow check can keep each block on a single page.
const (
	titleBlockHeight     = 18.0
	segmentBlockHeight   = 14.0
	passengerBaseHeight  = 11.0
	documentLineHeight   = lineHeight
	fareLineHeight       = lineHeight
	priceLineHeight      = lineHeight
	paymentBlockHeight   = 16.0
	contactBlockHeight   = 16.0
	sectionGap           = 4.0

	// A block taller than one page's content area cannot stay atomic; it is
	// truncated with a continuation line instead of crossing the bottom margin.
	maxBlockHeight = pageHeight - marginTop - marginBottom
)

func (l *layout) drawTitle(data *domain.BookingDocumentData) {
	l.ensureSpace(titleBlockHeight)
	l.place("title", data.OrderID, titleBlockHeight)

	pdf := l.pdf
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Text(marginLeft, l.y+7, "Flight Booking Confirmation")

	pdf.SetFont("Helvetica", "", 10)
	refLine := "Order " + data.OrderID
	if len(data.BookingReferences) > 0 {
		refLine += "  ·  Booking reference " + strings.Join(data.BookingReferences, ", ")
	}
	pdf.Text(marginLeft, l.y+14, refLine)

	l.y += titleBlockHeight + sectionGap
}

func (l *layout) drawItinerary(data *domain.BookingDocumentData) {
	for i, itin := range data.Itineraries {
		title := fmt.Sprintf("Itinerary %d", i+1)
		if len(data.Itineraries) == 2 {
			if i == 0 {
				title = "Outbound"
			} else {
				title = "Return"
			}
		}
		if itin.Duration != "" {
			title += "  ·  " + FormatDuration(itin.Duration)
		}
		l.heading(title)

		for _, seg := range itin.Segments {
			l.drawSegment(&seg)
		}
		l.y += sectionGap
	}
}

// drawSegment draws one flight segment as an atomic block.
func (l *layout) drawSegment(seg *domain.Segment) {
	l.ensureSpace(segmentBlockHeight)
	l.place("itinerary", seg.Departure.IataCode+"-"+seg.Arrival.IataCode, segmentBlockHeight)

	pdf := l.pdf
	flight := strings.TrimSpace(seg.CarrierCode + " " + seg.Number)
	route := fmt.Sprintf("%s → %s", seg.Departure.IataCode, seg.Arrival.IataCode)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.Text(marginLeft, l.y+5, route)
	pdf.SetFont("Helvetica", "", 9)
	right := flight
	if seg.Duration != "" {
		right += "  ·  " + FormatDuration(seg.Duration)
	}
	w := pdf.GetStringWidth(right)
	pdf.Text(pageWidth-marginRight-w, l.y+5, right)

	dep := "Departs " + FormatDateTime(seg.Departure.At)
	if seg.Departure.Terminal != "" {
		dep += " (Terminal " + seg.Departure.Terminal + ")"
	}
	arr := "Arrives " + FormatDateTime(seg.Arrival.At)
	if seg.Arrival.Terminal != "" {
		arr += " (Terminal " + seg.Arrival.Terminal + ")"
	}
	pdf.Text(marginLeft+2, l.y+9.5, dep)
	pdf.Text(marginLeft+2, l.y+13, arr)

	l.y += segmentBlockHeight
}

func (l *layout) drawPassengers(data *domain.BookingDocumentData) {
	if len(data.Travelers) == 0 {
		return
	}
	l.heading("Passengers")

	fares := make(map[string]domain.TravelerPricing, len(data.TravelerPricings))
	for _, tp := range data.TravelerPricings {
		fares[tp.TravelerID] = tp
	}

	for i := range data.Travelers {
		l.drawPassenger(&data.Travelers[i], fares)
	}
	l.y += sectionGap
}

// drawPassenger draws one passenger with documents and fare detail as a
// single atomic block; its height grows with each document and fare line,
// capped at one page of content.
func (l *layout) drawPassenger(t *domain.Traveler, fares map[string]domain.TravelerPricing) {
	tp, hasFare := fares[t.ID]

	docs := t.Documents
	var fareDetails []domain.FareDetailSegment
	if hasFare {
		fareDetails = tp.FareDetailsBySegment
	}

	lineBudget := float64(maxBlockHeight - passengerBaseHeight)
	maxLines := int(lineBudget / documentLineHeight)
	omitted := 0
	if len(docs)+len(fareDetails) > maxLines {
		keep := maxLines - 1 // last line notes what was cut
		if keep < 0 {
			keep = 0
		}
		omitted = len(docs) + len(fareDetails) - keep
		if keep >= len(docs) {
			fareDetails = fareDetails[:keep-len(docs)]
		} else {
			docs = docs[:keep]
			fareDetails = nil
		}
	}

	height := passengerBaseHeight + float64(len(docs))*documentLineHeight +
		float64(len(fareDetails))*fareLineHeight
	if omitted > 0 {
		height += documentLineHeight
	}

	l.ensureSpace(height)
	l.place("passengers", t.ID, height)

	pdf := l.pdf
	name := strings.TrimSpace(t.Name.FirstName + " " + t.Name.LastName)
	pdf.SetFont("Helvetica", "B", 10)
	pdf.Text(marginLeft, l.y+5, name)

	pdf.SetFont("Helvetica", "", 9)
	meta := "Born " + FormatDate(t.DateOfBirth)
	if hasFare && tp.TravelerType != "" {
		meta += "  ·  " + tp.TravelerType
	}
	if hasFare && tp.Price.Total != "" {
		meta += "  ·  " + FormatMoney(tp.Price.Total, tp.Price.Currency)
	}
	pdf.Text(marginLeft+2, l.y+9.5, meta)
	y := l.y + 9.5

	for _, doc := range docs {
		y += documentLineHeight
		line := fmt.Sprintf("%s %s  ·  %s  ·  expires %s",
			docTypeLabel(doc.DocumentType), doc.Number,
			strings.ToUpper(doc.Nationality), FormatDate(doc.ExpiryDate))
		pdf.Text(marginLeft+2, y, line)
	}

	for _, fd := range fareDetails {
		y += fareLineHeight
		line := "Segment " + fd.SegmentID
		if fd.Cabin != "" {
			line += "  ·  " + fd.Cabin
		}
		if fd.FareBasis != "" {
			line += "  ·  " + fd.FareBasis
		}
		if fd.IncludedCheckedBags != nil && fd.IncludedCheckedBags.Quantity > 0 {
			line += fmt.Sprintf("  ·  %d checked bag(s)", fd.IncludedCheckedBags.Quantity)
		}
		pdf.Text(marginLeft+2, y, line)
	}

	if omitted > 0 {
		y += documentLineHeight
		pdf.Text(marginLeft+2, y, fmt.Sprintf("and %d further entries, see booking record", omitted))
	}

	l.y += height
}

func docTypeLabel(t domain.DocumentType) string {
	switch t {
	case domain.DocumentPassport:
		return "Passport"
	case domain.DocumentNationalID:
		return "National ID"
	default:
		return string(t)
	}
}

func (l *layout) drawPriceBreakdown(data *domain.BookingDocumentData) {
	l.heading("Price")

	p := data.Price
	if p.Base != "" {
		l.priceLine("Base fare", FormatMoney(p.Base, p.Currency), false)
	}
	for _, tax := range p.Taxes {
		l.priceLine("Tax "+tax.Code, FormatMoney(tax.Amount, p.Currency), false)
	}
	for _, fee := range p.Fees {
		l.priceLine("Fee "+fee.Type, FormatMoney(fee.Amount, p.Currency), false)
	}

	total := p.GrandTotal
	if total == "" {
		total = p.Total
	}
	l.priceLine("Total", FormatMoney(total, p.Currency), true)
	l.y += sectionGap
}

// priceLine draws one label/amount row; each row is atomic.
func (l *layout) priceLine(label, amount string, emphasized bool) {
	l.ensureSpace(priceLineHeight)
	l.place("price", label, priceLineHeight)

	pdf := l.pdf
	style := ""
	if emphasized {
		style = "B"
	}
	pdf.SetFont("Helvetica", style, 9.5)
	pdf.Text(marginLeft+2, l.y+4, label)
	w := pdf.GetStringWidth(amount)
	pdf.Text(pageWidth-marginRight-w, l.y+4, amount)
	l.y += priceLineHeight
}

func (l *layout) drawPayment(data *domain.BookingDocumentData) {
	if data.Payment == nil {
		return
	}
	l.heading("Payment")
	l.ensureSpace(paymentBlockHeight)
	l.place("payment", data.Payment.IntentID, paymentBlockHeight)

	pdf := l.pdf
	pdf.SetFont("Helvetica", "", 9.5)
	pdf.Text(marginLeft+2, l.y+4, "Amount charged: "+FormatMinorUnits(data.Payment.Amount, data.Payment.Currency))
	pdf.Text(marginLeft+2, l.y+9, "Status: "+data.Payment.Status)
	pdf.Text(marginLeft+2, l.y+14, "Reference: "+data.Payment.IntentID)

	l.y += paymentBlockHeight + sectionGap
}

func (l *layout) drawContact(data *domain.BookingDocumentData) {
	l.heading("Contact")
	l.ensureSpace(contactBlockHeight)
	l.place("contact", data.Contact.Email, contactBlockHeight)

	pdf := l.pdf
	pdf.SetFont("Helvetica", "", 9.5)
	pdf.Text(marginLeft+2, l.y+4, data.Contact.Name)
	pdf.Text(marginLeft+2, l.y+9, data.Contact.Email)
	if data.Contact.Phone != "" {
		pdf.Text(marginLeft+2, l.y+14, data.Contact.Phone)
	}

	l.y += contactBlockHeight
}
