package enum

// OrderStatus is the lifecycle state of a placed order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"    // created, awaiting vendor processing
	OrderStatusProcessing OrderStatus = "PROCESSING" // vendor accepted, preparing shipment
	OrderStatusShipped    OrderStatus = "SHIPPED"    // handed to the courier
	OrderStatusDelivered  OrderStatus = "DELIVERED"  // confirmed received
	OrderStatusCancelled  OrderStatus = "CANCELLED"  // cancelled before shipping
)

var orderStatusTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered},
	OrderStatusDelivered:  {},
	OrderStatusCancelled:  {},
}

// CanTransition reports whether moving from s to next is a legal lifecycle
// step. Orders are never deleted; they only move forward or cancel.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	for _, allowed := range orderStatusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Valid reports whether s is one of the known statuses.
func (s OrderStatus) Valid() bool {
	_, ok := orderStatusTransitions[s]
	return ok
}
