package notify

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/skytrip/flight-bookings/internal/domain"
	"github.com/skytrip/flight-bookings/pkg/config"
)

// SMTPMailer sends mail over plain SMTP. The connection is verified eagerly
// at construction; a dead transport is a startup failure, not something to
// discover on the first booking.
type SMTPMailer struct {
	host string
	port int
	from string
	user string
	pass string
}

func NewSMTPMailer(cfg config.EmailConfig) (*SMTPMailer, error) {
	m := &SMTPMailer{
		host: strings.TrimSpace(cfg.SMTPHost),
		port: cfg.SMTPPort,
		from: strings.TrimSpace(cfg.SMTPFrom),
		user: strings.TrimSpace(cfg.SMTPUser),
		pass: strings.TrimSpace(cfg.SMTPPass),
	}

	if err := m.verify(); err != nil {
		return nil, &domain.NotificationTransportError{Err: err}
	}
	return m, nil
}

func (m *SMTPMailer) addr() string {
	return fmt.Sprintf("%s:%d", m.host, m.port)
}

// verify dials the server, exchanges a greeting, and quits.
func (m *SMTPMailer) verify() error {
	c, err := smtp.Dial(m.addr())
	if err != nil {
		return fmt.Errorf("dial %s: %w", m.addr(), err)
	}
	defer c.Close()

	if err := c.Hello("skytrip"); err != nil {
		return fmt.Errorf("smtp hello: %w", err)
	}
	return c.Quit()
}

func (m *SMTPMailer) Send(ctx context.Context, msg *Message) error {
	toEmail := strings.TrimSpace(msg.ToEmail)
	if toEmail == "" {
		return fmt.Errorf("empty recipient email")
	}

	body := buildMIME(m.from, msg)

	var auth smtp.Auth
	if m.user != "" {
		auth = smtp.PlainAuth("", m.user, m.pass, m.host)
	}

	if err := smtp.SendMail(m.addr(), auth, m.from, []string{toEmail}, body); err != nil {
		return fmt.Errorf("smtp send to %s: %w", toEmail, err)
	}
	return nil
}

// buildMIME assembles a multipart/mixed message: alternative text/html body
// plus base64 attachments.
func buildMIME(from string, msg *Message) []byte {
	var buf bytes.Buffer
	mixed := "mixed-boundary"
	alt := "alt-boundary"

	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", msg.ToEmail)
	fmt.Fprintf(&buf, "Subject: %s\r\n", msg.Subject)
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%s\r\n\r\n", mixed)

	fmt.Fprintf(&buf, "--%s\r\n", mixed)
	fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=%s\r\n\r\n", alt)

	fmt.Fprintf(&buf, "--%s\r\n", alt)
	fmt.Fprintf(&buf, "Content-Type: text/plain; charset=utf-8\r\n\r\n")
	fmt.Fprintf(&buf, "%s\r\n\r\n", msg.Text)

	fmt.Fprintf(&buf, "--%s\r\n", alt)
	fmt.Fprintf(&buf, "Content-Type: text/html; charset=utf-8\r\n\r\n")
	fmt.Fprintf(&buf, "%s\r\n\r\n", msg.HTML)

	fmt.Fprintf(&buf, "--%s--\r\n", alt)

	for _, att := range msg.Attachments {
		fmt.Fprintf(&buf, "--%s\r\n", mixed)
		fmt.Fprintf(&buf, "Content-Type: %s; name=%q\r\n", att.ContentType, att.Filename)
		fmt.Fprintf(&buf, "Content-Disposition: attachment; filename=%q\r\n", att.Filename)
		fmt.Fprintf(&buf, "Content-Transfer-Encoding: base64\r\n\r\n")

		encoded := base64.StdEncoding.EncodeToString(att.Data)
		// RFC 2045 line length
		for len(encoded) > 76 {
			buf.WriteString(encoded[:76])
			buf.WriteString("\r\n")
			encoded = encoded[76:]
		}
		buf.WriteString(encoded)
		buf.WriteString("\r\n\r\n")
	}

	fmt.Fprintf(&buf, "--%s--\r\n", mixed)
	return buf.Bytes()
}
