package pay

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"tavola/models"
	"tavola/notify"
	"tavola/store"
	"tavola/utils"
	"tavola/wapp"
)

// Scheduler drains due auto-confirmation tasks. Confirmation advances an
// order only while it still sits at payment_verified; orders an operator
// already moved are left alone and their task dropped.
type Scheduler struct {
	Orders        store.OrderStore
	Conversations store.ConversationStore
	Tasks         store.TaskStore
	Sender        wapp.Sender
	Notifier      *notify.Notifier
	Interval      time.Duration
}

// Run polls for due tasks until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	interval := s.Interval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce processes every currently-due task.
func (s *Scheduler) RunOnce(ctx context.Context) {
	tasks, err := s.Tasks.Due(ctx, time.Now())
	if err != nil {
		log.Printf("Scheduler: due tasks: %v", err)
		return
	}
	for _, task := range tasks {
		s.confirm(ctx, task.OrderID)
		if err := s.Tasks.Delete(ctx, task.OrderID); err != nil {
			log.Printf("Scheduler: delete task %s: %v", task.OrderID, err)
		}
	}
}

func (s *Scheduler) confirm(ctx context.Context, orderID string) {
	order, advanced, err := s.Orders.ConfirmIfVerified(ctx, orderID)
	if err != nil {
		log.Printf("Scheduler: confirm %s: %v", orderID, err)
		return
	}
	if !advanced {
		return
	}

	s.sendConfirmed(ctx, order)
	s.resetConversation(ctx, order)
	if s.Notifier != nil {
		s.Notifier.OrderUpdated("auto_confirmed", order)
	}
}

func (s *Scheduler) sendConfirmed(ctx context.Context, order *models.Order) {
	if s.Sender == nil {
		return
	}
	var b strings.Builder
	b.WriteString("👨‍🍳 *Order Confirmed!*\n\n")
	fmt.Fprintf(&b, "Order #%s is now being prepared.\n\n", utils.ShortID(order.OrderID))
	if order.OrderType == models.OrderTypeDelivery {
		b.WriteString("🚚 We'll deliver it to your address soon!")
	} else {
		b.WriteString("We'll let you know as soon as it's ready!")
	}
	if err := s.Sender.SendText(ctx, order.CustomerID, b.String()); err != nil {
		log.Printf("Scheduler: confirmed notice to %s: %v", order.CustomerID, err)
	}
}

// resetConversation clears the sold cart and parks the customer at the hub.
func (s *Scheduler) resetConversation(ctx context.Context, order *models.Order) {
	if s.Conversations == nil {
		return
	}
	conv, err := s.Conversations.GetOrCreate(ctx, order.CustomerID)
	if err != nil {
		log.Printf("Scheduler: conversation for %s: %v", order.CustomerID, err)
		return
	}
	if conv.ActiveOrderID == order.OrderID {
		conv.Cart = nil
		conv.Scratch = models.Scratch{}
		conv.Step = models.StepMainMenu
		if err := s.Conversations.Save(ctx, conv); err != nil {
			log.Printf("Scheduler: save conversation for %s: %v", order.CustomerID, err)
		}
	}
}
