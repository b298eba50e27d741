package notify

import (
	"context"

	"github.com/skytrip/flight-bookings/pkg/logger"
)

// DevMailer logs instead of sending. Used when EMAIL_DEV_MODE is set.
type DevMailer struct{}

func NewDevMailer() *DevMailer {
	return &DevMailer{}
}

func (m *DevMailer) Send(ctx context.Context, msg *Message) error {
	attachments := make([]string, 0, len(msg.Attachments))
	for _, att := range msg.Attachments {
		attachments = append(attachments, att.Filename)
	}

	logger.InfoContext(ctx, "DEV EMAIL (not sent)",
		"to", msg.ToEmail,
		"subject", msg.Subject,
		"attachments", attachments,
		"text", msg.Text,
	)
	return nil
}
