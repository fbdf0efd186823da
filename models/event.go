package models

import "time"

// Inbound event kinds.
const (
	EventText                = "text"
	EventButton              = "button"
	EventPaymentConfirmation = "payment_confirmation"
)

// InboundEvent is a webhook delivery admitted to the dispatcher. EventID is
// the platform's id and is used for deduplication; it is advisory only,
// duplicates can and do arrive.
type InboundEvent struct {
	EventID       string
	UserID        string
	UserName      string
	Kind          string
	Text          string
	OrderRef      string // payment confirmations only
	PaymentStatus string // paid, failed or expired
	ReceivedAt    time.Time
}

// Order lifecycle event types published to Kafka for downstream services.
const (
	OrderEventCreated       = "order.created"
	OrderEventPaid          = "order.paid"
	OrderEventPaymentFailed = "order.payment_failed"
	OrderEventExpired       = "order.expired"
)

// OrderEvent is the payload published on order lifecycle transitions,
// keyed by user id so per-user ordering is preserved on the topic.
type OrderEvent struct {
	Type      string    `json:"type"`
	OrderRef  string    `json:"order_ref"`
	UserID    string    `json:"user_id"`
	Amount    int       `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
}
