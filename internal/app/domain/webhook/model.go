package webhook

import "time"

// EventType identifies a parsed inbound webhook event.
type EventType string

const (
	EventTokenTransfer EventType = "token_transfer"
	EventPayment       EventType = "payment"
)

// Subscription is a registered webhook with the upstream provider.
type Subscription struct {
	ID          string    `json:"id" db:"id"`
	UserID      string    `json:"user_id" db:"user_id"`
	ExternalID  string    `json:"external_id" db:"external_id"`
	Wallet      string    `json:"wallet" db:"wallet"`
	CallbackURL string    `json:"callback_url" db:"callback_url"`
	Active      bool      `json:"active" db:"active"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Event is a parsed inbound notification. Signature deduplicates deliveries.
type Event struct {
	ID        string    `json:"id" db:"id"`
	Type      EventType `json:"type" db:"type"`
	Signature string    `json:"signature" db:"signature"`
	Wallet    string    `json:"wallet" db:"wallet"`
	Amount    float64   `json:"amount" db:"amount"`
	Raw       string    `json:"-" db:"raw"`
	SeenAt    time.Time `json:"seen_at" db:"seen_at"`
}
