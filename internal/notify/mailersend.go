package notify

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/mailersend/mailersend-go"
	"github.com/skytrip/flight-bookings/pkg/config"
)

// MailerSendMailer sends through the MailerSend API.
type MailerSendMailer struct {
	client *mailersend.Mailersend
	from   mailersend.From
}

func NewMailerSend(cfg config.EmailConfig) (*MailerSendMailer, error) {
	if cfg.MailerSendKey == "" || cfg.SMTPFrom == "" {
		return nil, fmt.Errorf("MailerSend not configured")
	}

	return &MailerSendMailer{
		client: mailersend.NewMailersend(cfg.MailerSendKey),
		from: mailersend.From{
			Name:  cfg.FromName,
			Email: cfg.SMTPFrom,
		},
	}, nil
}

func (m *MailerSendMailer) Send(ctx context.Context, msg *Message) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	out := m.client.Email.NewMessage()
	out.SetFrom(m.from)
	out.SetRecipients([]mailersend.Recipient{{Name: msg.ToName, Email: msg.ToEmail}})
	out.SetSubject(msg.Subject)

	if strings.TrimSpace(msg.Text) != "" {
		out.SetText(msg.Text)
	}
	if strings.TrimSpace(msg.HTML) != "" {
		out.SetHTML(msg.HTML)
	}

	for _, att := range msg.Attachments {
		out.AddAttachment(mailersend.Attachment{
			Filename: att.Filename,
			Content:  base64.StdEncoding.EncodeToString(att.Data),
		})
	}

	_, err := m.client.Email.Send(ctx, out)
	return err
}
