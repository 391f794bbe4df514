package orders

import (
	"context"
	"fmt"

	"github.com/quickkart/quickkart-backend/internal/notifications"
	"github.com/quickkart/quickkart-backend/pkg/db/models"
	"github.com/quickkart/quickkart-backend/pkg/enums"
)

var statusChannels = []enums.NotificationChannel{
	enums.NotificationChannelEmail,
	enums.NotificationChannelSMS,
	enums.NotificationChannelPush,
}

// AnnouncePlaced tells the customer the order is confirmed.
func (s *service) AnnouncePlaced(ctx context.Context, order *models.Order) {
	if order == nil {
		return
	}
	s.notifier.Notify(ctx, notificationFor(order,
		"Order confirmed",
		fmt.Sprintf("Your order %s for %s has been placed.", shortID(order.ID), order.TotalPrice.StringFixed(2)),
	))
}

func (s *service) notifyStatus(ctx context.Context, order *models.Order) {
	var body string
	switch order.OrderStatus {
	case enums.OrderStatusPacked:
		body = "Your order %s has been packed."
	case enums.OrderStatusOutForDelivery:
		body = "Your order %s is out for delivery."
	case enums.OrderStatusDelivered:
		body = "Your order %s has been delivered."
	case enums.OrderStatusCancelled:
		body = "Your order %s has been cancelled."
	default:
		return
	}
	s.notifier.Notify(ctx, notificationFor(order, "Order "+string(order.OrderStatus), fmt.Sprintf(body, shortID(order.ID))))
}

// notifyAssignment tells the assigned partner about a packed order.
func (s *service) notifyAssignment(ctx context.Context, order *models.Order) {
	if order.DeliveryPartnerID == nil {
		return
	}
	s.notifier.Notify(ctx, notifications.Message{
		UserID:   *order.DeliveryPartnerID,
		Channels: []enums.NotificationChannel{enums.NotificationChannelPush, enums.NotificationChannelSMS},
		Subject:  "New delivery assigned",
		Body:     fmt.Sprintf("Order %s is packed and ready for pickup.", shortID(order.ID)),
		Data: map[string]string{
			"order_id": order.ID.String(),
			"status":   string(order.OrderStatus),
		},
	})
}

func notificationFor(order *models.Order, subject, body string) notifications.Message {
	return notifications.Message{
		UserID:   order.UserID,
		Channels: statusChannels,
		Subject:  subject,
		Body:     body,
		Data: map[string]string{
			"order_id": order.ID.String(),
			"status":   string(order.OrderStatus),
		},
	}
}

func shortID(id fmt.Stringer) string {
	s := id.String()
	if len(s) > 8 {
		return s[:8]
	}
	return s
}
