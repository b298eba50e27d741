package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/skytrip/flight-bookings/pkg/logger"
)

type Publisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
	Close() error
}

type Subscriber interface {
	Subscribe(subject string, handler func(msg *Message)) error
	QueueSubscribe(subject, queue string, handler func(msg *Message)) error
	Close() error
}

type EventBus interface {
	Publisher
	Subscriber
}

type Message struct {
	Subject   string
	Data      []byte
	Timestamp time.Time
	ID        string
}

type NATSEventBus struct {
	conn *nats.Conn
}

func NewNATSEventBus(url string) (*NATSEventBus, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSEventBus{conn: conn}, nil
}

func (n *NATSEventBus) Publish(ctx context.Context, subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	logger.DebugContext(ctx, "Publishing event", "subject", subject, "data", string(payload))

	return n.conn.Publish(subject, payload)
}

func (n *NATSEventBus) Subscribe(subject string, handler func(msg *Message)) error {
	_, err := n.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(&Message{
			Subject:   msg.Subject,
			Data:      msg.Data,
			Timestamp: time.Now(),
			ID:        fmt.Sprintf("%d", time.Now().UnixNano()),
		})
	})
	return err
}

func (n *NATSEventBus) QueueSubscribe(subject, queue string, handler func(msg *Message)) error {
	_, err := n.conn.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		handler(&Message{
			Subject:   msg.Subject,
			Data:      msg.Data,
			Timestamp: time.Now(),
			ID:        fmt.Sprintf("%d", time.Now().UnixNano()),
		})
	})
	return err
}

func (n *NATSEventBus) Close() error {
	n.conn.Close()
	return nil
}

// Event subjects
const (
	// Order events
	OrderCreated = "order.created"

	// Payment events
	PaymentIntentCreated = "payment.intent.created"
	PaymentCaptured      = "payment.captured"
	PaymentFailed        = "payment.failed"

	// Ticket document events
	TicketRendered = "ticket.rendered"
	TicketSent     = "ticket.sent"
	TicketSendFailed = "ticket.send.failed"
)

// Event payloads
type OrderCreatedEvent struct {
	OrderID           string    `json:"order_id"`
	UserID            string    `json:"user_id,omitempty"`
	BookingReferences []string  `json:"booking_references"`
	Travelers         int       `json:"travelers"`
	GrandTotal        string    `json:"grand_total"`
	Currency          string    `json:"currency"`
	CreatedAt         time.Time `json:"created_at"`
}

// PaymentIntentCreatedEvent carries no client secret; secret material never
// goes onto the bus.
type PaymentIntentCreatedEvent struct {
	IntentID string `json:"intent_id"`
	UserID   string `json:"user_id,omitempty"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type PaymentCapturedEvent struct {
	IntentID   string    `json:"intent_id"`
	Amount     int64     `json:"amount"`
	Currency   string    `json:"currency"`
	CapturedAt time.Time `json:"captured_at"`
}

type PaymentFailedEvent struct {
	IntentID string `json:"intent_id"`
	Reason   string `json:"reason,omitempty"`
}

type TicketSentEvent struct {
	OrderID   string    `json:"order_id"`
	Recipient string    `json:"recipient"`
	SentAt    time.Time `json:"sent_at"`
}

type TicketSendFailedEvent struct {
	OrderID   string `json:"order_id"`
	Recipient string `json:"recipient"`
	Reason    string `json:"reason"`
}
