package models

import (
	"time"

	"goflare.io/market/models/enum"
)

// StockMovement is the audit trail row written alongside every stock
// decrement or restore, keyed back to the order that caused it.
type StockMovement struct {
	ID            uint64                          `json:"id"`
	ProductID     string                          `json:"product_id"`
	Quantity      int64                           `json:"quantity"`
	Type          enum.StockMovementType          `json:"type"`
	ReferenceType enum.StockMovementReferenceType `json:"reference_type"`
	ReferenceID   uint64                          `json:"reference_id"`
	CreatedAt     time.Time                       `json:"created_at"`
}
