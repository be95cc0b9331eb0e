package pay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"tavola/models"
	"tavola/razorpay"
	"tavola/store"
	"tavola/wapp"
)

type fakeSender struct {
	mu    sync.Mutex
	texts []string
}

func (f *fakeSender) SendText(_ context.Context, to, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, body)
	return nil
}

func (f *fakeSender) SendButtons(_ context.Context, _, body string, _ []wapp.Button) error {
	return f.SendText(context.Background(), "", body)
}

func (f *fakeSender) SendList(_ context.Context, _, body, _ string, _ []wapp.Section) error {
	return f.SendText(context.Background(), "", body)
}

func (f *fakeSender) count(substr string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, t := range f.texts {
		if strings.Contains(t, substr) {
			n++
		}
	}
	return n
}

type fakeProvider struct {
	payments map[string]razorpay.Payment
	err      error
}

func (p *fakeProvider) FetchPayment(_ context.Context, id string) (razorpay.Payment, error) {
	if p.err != nil {
		return razorpay.Payment{}, p.err
	}
	if pay, ok := p.payments[id]; ok {
		return pay, nil
	}
	return razorpay.Payment{}, fmt.Errorf("payment %s not found", id)
}

type reconEnv struct {
	rec      *Reconciler
	orders   *store.MemoryOrders
	convs    *store.MemoryConversations
	tasks    *store.MemoryTasks
	sender   *fakeSender
	provider *fakeProvider
}

func newReconEnv() *reconEnv {
	orders := store.NewMemoryOrders()
	convs := store.NewMemoryConversations()
	tasks := store.NewMemoryTasks()
	sender := &fakeSender{}
	provider := &fakeProvider{payments: map[string]razorpay.Payment{}}
	return &reconEnv{
		rec: &Reconciler{
			Orders:        orders,
			Conversations: convs,
			Tasks:         tasks,
			Provider:      provider,
			Sender:        sender,
			ConfirmDelay:  3 * time.Second,
		},
		orders:   orders,
		convs:    convs,
		tasks:    tasks,
		sender:   sender,
		provider: provider,
	}
}

func (e *reconEnv) seedOrder(t *testing.T, orderID, customerID string) *models.Order {
	t.Helper()
	order := &models.Order{
		OrderID:       orderID,
		CustomerID:    customerID,
		CustomerName:  "Asha",
		Items:         []models.OrderItem{{ItemID: "m1", Name: "Pizza", Quantity: 1, UnitPrice: 250, LineTotal: 250}},
		TotalAmount:   250,
		OrderType:     models.OrderTypeTakeaway,
		Status:        models.OrderPaymentPending,
		PaymentStatus: models.PaymentPending,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	ctx := context.Background()
	if err := e.orders.Insert(ctx, order); err != nil {
		t.Fatalf("insert order: %v", err)
	}
	if err := e.orders.SetPaymentLink(ctx, orderID, "plink_"+orderID); err != nil {
		t.Fatalf("set payment link: %v", err)
	}

	conv, err := e.convs.GetOrCreate(ctx, customerID)
	if err != nil {
		t.Fatalf("conversation: %v", err)
	}
	conv.Step = models.StepPaymentPending
	conv.ActiveOrderID = orderID
	if err := e.convs.Save(ctx, conv); err != nil {
		t.Fatalf("save conversation: %v", err)
	}
	return order
}

func TestRedirectSettlesOrder(t *testing.T) {
	env := newReconEnv()
	env.seedOrder(t, "o1", "91100")
	env.provider.payments["pay_1"] = razorpay.Payment{ID: "pay_1", Status: "captured", Amount: 25000}

	order, err := env.rec.SettleFromRedirect(context.Background(), "plink_o1", "pay_1", "paid")
	if err != nil {
		t.Fatalf("SettleFromRedirect: %v", err)
	}
	if order.PaymentStatus != models.PaymentCompleted || order.Status != models.OrderPaymentVerified {
		t.Fatalf("order state = %s/%s", order.Status, order.PaymentStatus)
	}
	if order.PaymentID != "pay_1" {
		t.Fatalf("payment id = %q", order.PaymentID)
	}
	if order.PaymentVerifiedAt == nil {
		t.Fatal("verification time not stamped")
	}
	if env.tasks.Len() != 1 {
		t.Fatalf("scheduled tasks = %d, want 1", env.tasks.Len())
	}
	if env.sender.count("Payment Received") != 1 {
		t.Fatal("customer confirmation not sent")
	}

	conv, _ := env.convs.GetOrCreate(context.Background(), "91100")
	if conv.Step != models.StepMainMenu {
		t.Fatalf("conversation step = %s, want %s", conv.Step, models.StepMainMenu)
	}
}

func TestDualChannelIdempotence(t *testing.T) {
	run := func(t *testing.T, redirectFirst bool) {
		env := newReconEnv()
		order := env.seedOrder(t, "o1", "91100")
		env.provider.payments["pay_1"] = razorpay.Payment{ID: "pay_1", Status: "captured"}
		ctx := context.Background()

		redirect := func() {
			if _, err := env.rec.SettleFromRedirect(ctx, "plink_o1", "pay_1", "paid"); err != nil {
				t.Fatalf("redirect: %v", err)
			}
		}
		webhook := func() {
			current, err := env.orders.ByID(ctx, order.OrderID)
			if err != nil {
				t.Fatalf("lookup: %v", err)
			}
			if _, err := env.rec.SettleFromWebhook(ctx, current, "pay_1"); err != nil {
				t.Fatalf("webhook: %v", err)
			}
		}

		if redirectFirst {
			redirect()
			webhook()
			redirect()
		} else {
			webhook()
			redirect()
			webhook()
		}

		if got := env.sender.count("Payment Received"); got != 1 {
			t.Fatalf("confirmations sent = %d, want exactly 1", got)
		}
		if env.tasks.Len() != 1 {
			t.Fatalf("scheduled tasks = %d, want 1", env.tasks.Len())
		}
	}

	t.Run("redirect first", func(t *testing.T) { run(t, true) })
	t.Run("webhook first", func(t *testing.T) { run(t, false) })
}

func TestConcurrentSettleSingleWinner(t *testing.T) {
	env := newReconEnv()
	env.seedOrder(t, "o1", "91100")
	env.provider.payments["pay_1"] = razorpay.Payment{ID: "pay_1", Status: "captured"}

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.rec.SettleFromRedirect(context.Background(), "plink_o1", "pay_1", "paid")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("settle: %v", err)
		}
	}

	if got := env.sender.count("Payment Received"); got != 1 {
		t.Fatalf("confirmations sent = %d, want exactly 1", got)
	}
}

func TestLenientRedirectWhenProviderDown(t *testing.T) {
	env := newReconEnv()
	env.seedOrder(t, "o1", "91100")
	env.provider.err = errors.New("provider unreachable")

	order, err := env.rec.SettleFromRedirect(context.Background(), "plink_o1", "pay_1", "")
	if err != nil {
		t.Fatalf("SettleFromRedirect: %v", err)
	}
	if order.PaymentStatus != models.PaymentCompleted {
		t.Fatalf("payment status = %s, want completed via the lenient path", order.PaymentStatus)
	}
}

func TestRedirectUnknownLink(t *testing.T) {
	env := newReconEnv()
	_, err := env.rec.SettleFromRedirect(context.Background(), "plink_nope", "", "paid")
	if !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("err = %v, want ErrOrderNotFound", err)
	}
}

func TestFailIsIdempotent(t *testing.T) {
	env := newReconEnv()
	order := env.seedOrder(t, "o1", "91100")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		current, err := env.orders.ByID(ctx, order.OrderID)
		if err != nil {
			t.Fatalf("lookup: %v", err)
		}
		if _, err := env.rec.Fail(ctx, current); err != nil {
			t.Fatalf("Fail: %v", err)
		}
	}

	updated, _ := env.orders.ByID(ctx, order.OrderID)
	if updated.Status != models.OrderCancelled || updated.PaymentStatus != models.PaymentFailed {
		t.Fatalf("order state = %s/%s", updated.Status, updated.PaymentStatus)
	}
	if got := env.sender.count("Payment failed"); got != 1 {
		t.Fatalf("failure notices sent = %d, want exactly 1", got)
	}
}

func TestFailNeverDowngradesSettledPayment(t *testing.T) {
	env := newReconEnv()
	order := env.seedOrder(t, "o1", "91100")
	env.provider.payments["pay_1"] = razorpay.Payment{ID: "pay_1", Status: "captured"}
	ctx := context.Background()

	if _, err := env.rec.SettleFromRedirect(ctx, "plink_o1", "pay_1", "paid"); err != nil {
		t.Fatalf("settle: %v", err)
	}

	current, _ := env.orders.ByID(ctx, order.OrderID)
	if _, err := env.rec.Fail(ctx, current); err != nil {
		t.Fatalf("Fail: %v", err)
	}

	final, _ := env.orders.ByID(ctx, order.OrderID)
	if final.PaymentStatus != models.PaymentCompleted {
		t.Fatalf("payment status = %s, completed must be terminal", final.PaymentStatus)
	}
	if final.Status == models.OrderCancelled {
		t.Fatal("a settled order must not be cancelled by a late failure event")
	}
}
