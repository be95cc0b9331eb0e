package checkout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"tavola/models"
	"tavola/notify"
	"tavola/razorpay"
	"tavola/store"
	"tavola/utils"
	"tavola/wapp"
)

// ErrEmptyCart is returned when nothing in the cart survives re-pricing.
var ErrEmptyCart = errors.New("checkout: cart is empty")

// Gateway creates provider payment links.
type Gateway interface {
	CreatePaymentLink(ctx context.Context, amount float64, orderID, customerID, customerName string) (razorpay.PaymentLink, error)
}

// Orchestrator turns a completed cart plus collected profile fields into a
// persisted order awaiting payment. It never marks payment complete.
type Orchestrator struct {
	Orders   store.OrderStore
	Catalog  store.CatalogStore
	Gateway  Gateway
	Sender   wapp.Sender
	Notifier *notify.Notifier
}

// Create builds the order from the conversation cart, persists it, requests
// a payment link, and moves the conversation to payment_pending. The caller
// saves the conversation afterwards.
//
// A gateway failure leaves the order without a provider reference (it can
// never be reconciled, only cleaned up), tells the customer to retry, and
// returns the conversation to the hub.
func (o *Orchestrator) Create(ctx context.Context, conv *models.Conversation) (*models.Order, error) {
	items, total := o.reprice(ctx, conv.Cart)
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	orderType := conv.Scratch.OrderType
	if orderType == "" {
		orderType = models.OrderTypeDelivery
	}

	now := time.Now()
	order := &models.Order{
		OrderID:       utils.NewID(),
		CustomerID:    conv.CustomerID,
		CustomerName:  conv.Scratch.Name,
		Items:         items,
		TotalAmount:   total,
		OrderType:     orderType,
		Status:        models.OrderPaymentPending,
		PaymentStatus: models.PaymentPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if orderType == models.OrderTypeDelivery {
		order.DeliveryAddress = &models.DeliveryAddress{
			Street:  conv.Scratch.Address,
			City:    conv.Scratch.City,
			State:   conv.Scratch.State,
			Pincode: conv.Scratch.Pincode,
		}
	}

	if err := o.Orders.Insert(ctx, order); err != nil {
		return nil, fmt.Errorf("persist order: %w", err)
	}

	link, err := o.Gateway.CreatePaymentLink(ctx, total, order.OrderID, conv.CustomerID, conv.Scratch.Name)
	if err != nil {
		log.Printf("Checkout: payment link for order %s: %v", order.OrderID, err)
		o.send(ctx, conv.CustomerID, "❌ Sorry, there was an error creating your order. Please try again.")
		conv.Step = models.StepMainMenu
		return nil, err
	}

	if err := o.Orders.SetPaymentLink(ctx, order.OrderID, link.ID); err != nil {
		return nil, fmt.Errorf("set payment link: %w", err)
	}
	order.PaymentLinkID = link.ID

	conv.ActiveOrderID = order.OrderID
	conv.Step = models.StepPaymentPending

	msg := fmt.Sprintf("💰 *Order Created!*\n\n📋 Order ID: #%s\n💰 Total: ₹%.0f\n🛵 Type: %s\n\n🔗 *Pay now:*\n%s\n\nComplete payment to confirm your order.",
		utils.ShortID(order.OrderID), total, order.OrderType, link.ShortURL)
	o.send(ctx, conv.CustomerID, msg)

	if o.Notifier != nil {
		o.Notifier.NewOrder(order, link.ShortURL)
	}
	return order, nil
}

// reprice freezes cart lines into order items. Lines whose catalog item no
// longer exists are skipped; surviving lines keep their add-time unit price.
func (o *Orchestrator) reprice(ctx context.Context, cart []models.CartLine) ([]models.OrderItem, float64) {
	var items []models.OrderItem
	var total float64
	for _, line := range cart {
		if _, err := o.Catalog.ItemByID(ctx, line.ItemID); err != nil {
			log.Printf("Checkout: skipping stale cart line %q (%s)", line.Name, line.ItemID)
			continue
		}
		lineTotal := float64(line.Quantity) * line.UnitPrice
		items = append(items, models.OrderItem{
			ItemID:    line.ItemID,
			Name:      line.Name,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			LineTotal: lineTotal,
		})
		total += lineTotal
	}
	return items, total
}

func (o *Orchestrator) send(ctx context.Context, to, body string) {
	if o.Sender == nil {
		return
	}
	if err := o.Sender.SendText(ctx, to, body); err != nil {
		log.Printf("Checkout: message to %s: %v", to, err)
	}
}
