package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"tavola/models"
	"tavola/utils"
	"tavola/wapp"
)

// Admin channel event names.
const (
	EventNewOrder           = "new_order"
	EventPaymentReceived    = "payment_received"
	EventOrderUpdated       = "order_updated"
	EventNewReservation     = "new_reservation"
	EventReservationUpdated = "reservation_updated"
	EventMenuUpdated        = "menu_updated"
)

// statusCopy maps order statuses to customer-facing messages. Statuses
// without an entry produce no customer message.
var statusCopy = map[models.OrderStatus]string{
	models.OrderConfirmed:      "👨‍🍳 Your order is confirmed and being prepared!",
	models.OrderPreparing:      "👨‍🍳 Your order is being prepared!",
	models.OrderReady:          "🎉 Your order is ready for pickup/delivery!",
	models.OrderOutForDelivery: "🚚 Your order is out for delivery!",
	models.OrderDelivered:      "✅ Your order has been delivered. Enjoy your meal!",
	models.OrderCancelled:      "❌ Your order has been cancelled. Contact us if this is unexpected.",
}

// CustomerStatusMessage returns the copy for a status, if any is defined.
func CustomerStatusMessage(status models.OrderStatus) (string, bool) {
	msg, ok := statusCopy[status]
	return msg, ok
}

type envelope struct {
	Event     string      `json:"event"`
	Action    string      `json:"action,omitempty"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// Notifier fans state changes out to the admin hub and, where copy is
// defined, to the customer. Each channel fails independently; neither
// failure reaches the caller.
type Notifier struct {
	Hub    *Hub
	Sender wapp.Sender
}

func NewNotifier(hub *Hub, sender wapp.Sender) *Notifier {
	return &Notifier{Hub: hub, Sender: sender}
}

func (n *Notifier) emit(event, action string, data interface{}) {
	if n.Hub == nil {
		return
	}
	payload, err := json.Marshal(envelope{Event: event, Action: action, Data: data, Timestamp: time.Now()})
	if err != nil {
		log.Printf("Notifier: marshal %s: %v", event, err)
		return
	}
	n.Hub.Broadcast(payload)
}

func (n *Notifier) sendText(ctx context.Context, to, body string) {
	if n.Sender == nil || to == "" {
		return
	}
	if err := n.Sender.SendText(ctx, to, body); err != nil {
		log.Printf("Notifier: customer message to %s: %v", to, err)
	}
}

func (n *Notifier) NewOrder(order *models.Order, paymentURL string) {
	n.emit(EventNewOrder, "", map[string]interface{}{"order": order, "paymentLink": paymentURL})
}

func (n *Notifier) PaymentReceived(order *models.Order) {
	n.emit(EventPaymentReceived, "", map[string]interface{}{
		"order":   order,
		"message": "New payment received",
	})
}

func (n *Notifier) OrderUpdated(action string, order *models.Order) {
	n.emit(EventOrderUpdated, action, order)
}

// OrderStatusChanged emits the admin event and messages the customer when
// the status has copy defined for it.
func (n *Notifier) OrderStatusChanged(ctx context.Context, order *models.Order) {
	n.emit(EventOrderUpdated, string(order.Status), order)
	if msg, ok := CustomerStatusMessage(order.Status); ok {
		body := fmt.Sprintf("📦 Order #%s update\n\n%s", utils.ShortID(order.OrderID), msg)
		n.sendText(ctx, order.CustomerID, body)
	}
}

func (n *Notifier) NewReservation(res *models.Reservation) {
	n.emit(EventNewReservation, "", res)
}

func (n *Notifier) ReservationUpdated(action string, res *models.Reservation) {
	n.emit(EventReservationUpdated, action, res)
}

func (n *Notifier) MenuUpdated(action string, item *models.MenuItem) {
	n.emit(EventMenuUpdated, action, item)
}
