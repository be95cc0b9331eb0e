package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"tavola/models"
	"tavola/store"
	"tavola/utils"
	"tavola/wapp"
)

const welcomeText = "🍽️ *Welcome to Our Restaurant!*\n\n" +
	"I can help you browse our menu, place orders and reserve tables.\n\n" +
	"What would you like to do?"

const helpText = "ℹ️ *Help*\n\n" +
	"You can type:\n" +
	"• *menu* to browse our food\n" +
	"• *cart* to see your cart\n" +
	"• *status* to track your latest order\n" +
	"• *reservation* to book a table\n" +
	"• *hi* to start over"

var statusEmoji = map[models.OrderStatus]string{
	models.OrderPaymentPending:  "💳",
	models.OrderPaymentVerified: "✅",
	models.OrderConfirmed:       "👨‍🍳",
	models.OrderPreparing:       "🔥",
	models.OrderReady:           "📦",
	models.OrderOutForDelivery:  "🚚",
	models.OrderDelivered:       "🎉",
	models.OrderCancelled:       "❌",
}

var statusLabel = map[models.OrderStatus]string{
	models.OrderPaymentPending:  "Awaiting payment",
	models.OrderPaymentVerified: "Payment verified",
	models.OrderConfirmed:       "Confirmed",
	models.OrderPreparing:       "Being prepared",
	models.OrderReady:           "Ready for pickup",
	models.OrderOutForDelivery:  "Out for delivery",
	models.OrderDelivered:       "Delivered",
	models.OrderCancelled:       "Cancelled",
}

func vegMark(isVeg bool) string {
	if isVeg {
		return "🟢"
	}
	return "🔴"
}

func itemDetailText(item *models.MenuItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s *%s*\n\n", vegMark(item.IsVeg), item.Name)
	if item.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", item.Description)
	}
	fmt.Fprintf(&b, "💰 Price: ₹%.0f\n", item.Price)
	if item.PreparationTime > 0 {
		fmt.Fprintf(&b, "⏱️ Prep time: %d min\n", item.PreparationTime)
	}
	return b.String()
}

func statusText(o *models.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s *Order #%s*\n\n", statusEmoji[o.Status], utils.ShortID(o.OrderID))
	fmt.Fprintf(&b, "Status: %s\n", statusLabel[o.Status])
	fmt.Fprintf(&b, "Total: ₹%.0f\n", o.TotalAmount)
	fmt.Fprintf(&b, "Type: %s\n", o.OrderType)
	if o.Status == models.OrderPaymentPending {
		b.WriteString("\nComplete your payment to confirm this order.")
	}
	return b.String()
}

// showStatus reports the latest order for this customer with per-status
// follow-up buttons.
func (e *Engine) showStatus(ctx context.Context, conv *models.Conversation) {
	order, err := e.Orders.LatestByCustomer(ctx, conv.CustomerID)
	if errors.Is(err, store.ErrNotFound) {
		e.sendButtons(ctx, conv.CustomerID, "You haven't placed any orders yet.", []wapp.Button{
			{ID: "browse_menu", Title: "🍕 Browse Menu"},
		})
		return
	}
	if err != nil {
		log.Printf("Engine: latest order for %s: %v", conv.CustomerID, err)
		e.sendText(ctx, conv.CustomerID, "Sorry, I couldn't fetch your order right now.")
		return
	}

	e.sendText(ctx, conv.CustomerID, statusText(order))

	switch order.Status {
	case models.OrderDelivered, models.OrderCancelled:
		e.sendButtons(ctx, conv.CustomerID, "Anything else?", []wapp.Button{
			{ID: "browse_menu", Title: "🍕 Order Again"},
			{ID: "reserve_table", Title: "🪑 Reserve Table"},
		})
	default:
		e.sendButtons(ctx, conv.CustomerID, "Anything else?", []wapp.Button{
			{ID: "order_status", Title: "🔄 Refresh Status"},
			{ID: "browse_menu", Title: "🍕 Browse Menu"},
		})
	}
}

// showMyOrders lists the five most recent orders.
func (e *Engine) showMyOrders(ctx context.Context, conv *models.Conversation) {
	orders, err := e.Orders.RecentByCustomer(ctx, conv.CustomerID, 5)
	if err != nil {
		log.Printf("Engine: recent orders for %s: %v", conv.CustomerID, err)
		e.sendText(ctx, conv.CustomerID, "Sorry, I couldn't fetch your orders right now.")
		return
	}
	if len(orders) == 0 {
		e.sendButtons(ctx, conv.CustomerID, "You haven't placed any orders yet.", []wapp.Button{
			{ID: "browse_menu", Title: "🍕 Browse Menu"},
		})
		return
	}

	var b strings.Builder
	b.WriteString("📦 *Your Recent Orders:*\n\n")
	for _, o := range orders {
		fmt.Fprintf(&b, "%s #%s · ₹%.0f · %s\n", statusEmoji[o.Status], utils.ShortID(o.OrderID), o.TotalAmount, statusLabel[o.Status])
	}
	e.sendText(ctx, conv.CustomerID, b.String())
	e.sendButtons(ctx, conv.CustomerID, "Anything else?", []wapp.Button{
		{ID: "order_status", Title: "🔍 Track Latest"},
		{ID: "browse_menu", Title: "🍕 Browse Menu"},
	})
}
