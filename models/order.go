package models

import (
	"time"

	"github.com/stripe/stripe-go/v79"

	"goflare.io/market/models/enum"
)

// Order is the durable record of a completed checkout. Monetary amounts are
// minor units (cents); the major-to-minor conversion happens exactly once,
// when the order row is written. Orders are created once, mutated only via
// status transitions, and never deleted.
type Order struct {
	ID        uint64           `json:"id"`
	Reference string           `json:"reference"` // public confirmation identifier
	UserID    string           `json:"user_id"`
	Status    enum.OrderStatus `json:"status"`
	Currency  stripe.Currency  `json:"currency"`
	Total     int64            `json:"total"` // minor units
	Items     []OrderItem      `json:"items"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// OrderItem is one order line, attributed to the vendor that supplies the
// product for downstream settlement. Immutable after creation.
type OrderItem struct {
	ID        uint64 `json:"id"`
	OrderID   uint64 `json:"order_id"`
	ProductID string `json:"product_id"`
	VendorID  string `json:"vendor_id"`
	Quantity  uint64 `json:"quantity"`
	UnitPrice int64  `json:"unit_price"` // minor units
	Size      string `json:"size,omitempty"`
	Color     string `json:"color,omitempty"`
}

// AllowChangeStatus reports whether the order may move to the given status.
func (o *Order) AllowChangeStatus(next enum.OrderStatus) bool {
	return o.Status.CanTransition(next)
}

// CanCancel reports whether the order is still cancellable.
func (o *Order) CanCancel() bool {
	return o.Status.CanTransition(enum.OrderStatusCancelled)
}

// MinorUnits converts a major-unit amount (e.g. rands) to minor units
// (cents). Callers must apply it exactly once per persisted amount.
func MinorUnits(major float64) int64 {
	if major >= 0 {
		return int64(major*100 + 0.5)
	}
	return int64(major*100 - 0.5)
}
