package notify

import (
	"context"
	"fmt"
	"strings"
)

// Attachment is a file to include with an outgoing email.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

type Message struct {
	ToEmail     string
	ToName      string
	Subject     string
	Text        string
	HTML        string
	Attachments []Attachment
}

// Mailer sends one message. A per-send failure is the caller's to handle;
// booking success never depends on it.
type Mailer interface {
	Send(ctx context.Context, msg *Message) error
}

// BuildTicketMessage assembles the confirmation email carrying the rendered
// ticket PDF.
func BuildTicketMessage(toEmail, toName, orderID string, bookingRefs []string, pdf []byte) *Message {
	refs := strings.Join(bookingRefs, ", ")
	if refs == "" {
		refs = orderID
	}

	subject := "Your flight booking " + refs + " is confirmed"
	text := fmt.Sprintf("Hi %s,\n\nYour flight booking is confirmed. Booking reference: %s.\nYour e-ticket is attached to this email.\n\nSafe travels!", toName, refs)
	html := fmt.Sprintf(`
		<h2>Your flight is booked!</h2>
		<p>Hi %s,</p>
		<p>Your booking is confirmed. Booking reference: <strong>%s</strong></p>
		<p>Your e-ticket is attached to this email. Please keep it available at check-in.</p>
		<p>Safe travels!</p>
	`, toName, refs)

	return &Message{
		ToEmail: toEmail,
		ToName:  toName,
		Subject: subject,
		Text:    text,
		HTML:    html,
		Attachments: []Attachment{{
			Filename:    "ticket-" + orderID + ".pdf",
			ContentType: "application/pdf",
			Data:        pdf,
		}},
	}
}
