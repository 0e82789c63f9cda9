package models

import "time"

// Identity is the authenticated caller, threaded explicitly through every
// operation. There is no ambient session lookup in this core.
type Identity struct {
	Subject string `json:"subject"` // stable external identifier
	Email   string `json:"email"`
	Name    string `json:"name"`
}

// UserProfile is the durable record upserted from an Identity. Checkout
// upserts it idempotently so order creation never depends on first-login
// timing.
type UserProfile struct {
	ID         uint64    `json:"id"`
	Subject    string    `json:"subject"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"created_at"`
	LastSeenAt time.Time `json:"last_seen_at"`
}
