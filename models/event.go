package models

import (
	"encoding/json"
	"time"
)

type EventType string

const (
	// Published by this core.
	EventTypeOrderCreated     EventType = "order.created"
	EventTypeFlashSaleCreated EventType = "flash_sale.created"

	// Consumed from the fulfilment side.
	EventTypeFulfillmentProcessing EventType = "fulfillment.processing"
	EventTypeFulfillmentShipped    EventType = "fulfillment.shipped"
	EventTypeFulfillmentDelivered  EventType = "fulfillment.delivered"
	EventTypeFulfillmentCancelled  EventType = "fulfillment.cancelled"
)

// Event is a domain event carried over NATS. Processed events are recorded
// so redelivery is idempotent.
type Event struct {
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	Data      json.RawMessage `json:"data"`
	Processed bool            `json:"processed"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// OrderEventData is the payload of the order lifecycle events.
type OrderEventData struct {
	OrderID   uint64 `json:"order_id"`
	Reference string `json:"reference"`
	UserID    string `json:"user_id"`
}
