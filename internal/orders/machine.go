package orders

import "github.com/quickkart/quickkart-backend/pkg/enums"

// transitions lists every edge of the order lifecycle. Anything absent is rejected.
var transitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPendingPayment: {enums.OrderStatusPlaced},
	enums.OrderStatusPlaced:         {enums.OrderStatusPacked, enums.OrderStatusCancelled},
	enums.OrderStatusPacked:         {enums.OrderStatusOutForDelivery, enums.OrderStatusCancelled},
	enums.OrderStatusOutForDelivery: {enums.OrderStatusDelivered},
}

// progress orders the forward path. Cancelled sits outside it.
var progress = map[enums.OrderStatus]int{
	enums.OrderStatusPendingPayment: 0,
	enums.OrderStatusPlaced:         1,
	enums.OrderStatusPacked:         2,
	enums.OrderStatusOutForDelivery: 3,
	enums.OrderStatusDelivered:      4,
}

// CanTransition reports whether from -> to is a lifecycle edge.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Cancellable reports whether an order in status may still be cancelled.
func Cancellable(status enums.OrderStatus) bool {
	return CanTransition(status, enums.OrderStatusCancelled)
}

// Progress returns the position of status on the forward path, or -1 for Cancelled.
func Progress(status enums.OrderStatus) int {
	if p, ok := progress[status]; ok {
		return p
	}
	return -1
}
