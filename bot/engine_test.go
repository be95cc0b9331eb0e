package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"tavola/checkout"
	"tavola/models"
	"tavola/razorpay"
	"tavola/store"
	"tavola/wapp"
)

type sentMsg struct {
	kind      string
	to        string
	body      string
	buttonIDs []string
	rowIDs    []string
}

type fakeSender struct {
	mu   sync.Mutex
	msgs []sentMsg
}

func (f *fakeSender) SendText(_ context.Context, to, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, sentMsg{kind: "text", to: to, body: body})
	return nil
}

func (f *fakeSender) SendButtons(_ context.Context, to, body string, buttons []wapp.Button) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for _, b := range buttons {
		ids = append(ids, b.ID)
	}
	f.msgs = append(f.msgs, sentMsg{kind: "buttons", to: to, body: body, buttonIDs: ids})
	return nil
}

func (f *fakeSender) SendList(_ context.Context, to, body, _ string, sections []wapp.Section) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for _, s := range sections {
		for _, r := range s.Rows {
			ids = append(ids, r.ID)
		}
	}
	f.msgs = append(f.msgs, sentMsg{kind: "list", to: to, body: body, rowIDs: ids})
	return nil
}

func (f *fakeSender) contains(substr string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.msgs {
		if strings.Contains(m.body, substr) {
			return true
		}
	}
	return false
}

func (f *fakeSender) last() sentMsg {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.msgs) == 0 {
		return sentMsg{}
	}
	return f.msgs[len(f.msgs)-1]
}

type fakeGateway struct {
	mu         sync.Mutex
	fail       bool
	calls      int
	lastAmount float64
}

func (g *fakeGateway) CreatePaymentLink(_ context.Context, amount float64, orderID, customerID, customerName string) (razorpay.PaymentLink, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.lastAmount = amount
	if g.fail {
		return razorpay.PaymentLink{}, errors.New("gateway down")
	}
	return razorpay.PaymentLink{
		ID:       fmt.Sprintf("plink_%d", g.calls),
		ShortURL: "https://rzp.io/l/test",
		Status:   "created",
	}, nil
}

type testEnv struct {
	engine  *Engine
	sender  *fakeSender
	gateway *fakeGateway
	convs   *store.MemoryConversations
	catalog *store.MemoryCatalog
	orders  *store.MemoryOrders
	resvs   *store.MemoryReservations
}

func newTestEnv() *testEnv {
	sender := &fakeSender{}
	gateway := &fakeGateway{}
	convs := store.NewMemoryConversations()
	catalog := store.NewMemoryCatalog()
	orders := store.NewMemoryOrders()
	resvs := store.NewMemoryReservations()

	catalog.Put(models.MenuItem{
		ItemID: "m1", Name: "Margherita Pizza", Category: "Pizza",
		Price: 250, IsAvailable: true, IsVeg: true,
	})
	catalog.Put(models.MenuItem{
		ItemID: "m2", Name: "Chicken Biryani", Category: "Mains",
		Price: 320, IsAvailable: true,
	})

	engine := &Engine{
		Conversations: convs,
		Catalog:       catalog,
		Orders:        orders,
		Reservations:  resvs,
		Sender:        sender,
		Checkout: &checkout.Orchestrator{
			Orders:  orders,
			Catalog: catalog,
			Gateway: gateway,
			Sender:  sender,
		},
	}
	return &testEnv{engine: engine, sender: sender, gateway: gateway, convs: convs, catalog: catalog, orders: orders, resvs: resvs}
}

func (e *testEnv) say(t *testing.T, customer, text string) {
	t.Helper()
	if err := e.engine.Handle(context.Background(), wapp.Event{CustomerID: customer, Text: text}); err != nil {
		t.Fatalf("Handle(%q): %v", text, err)
	}
}

func (e *testEnv) tap(t *testing.T, customer, optionID string) {
	t.Helper()
	if err := e.engine.Handle(context.Background(), wapp.Event{CustomerID: customer, OptionID: optionID}); err != nil {
		t.Fatalf("Handle(option %q): %v", optionID, err)
	}
}

func (e *testEnv) conv(t *testing.T, customer string) *models.Conversation {
	t.Helper()
	conv, err := e.convs.GetOrCreate(context.Background(), customer)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	return conv
}

func TestGreetingShowsMainMenu(t *testing.T) {
	env := newTestEnv()
	env.say(t, "911234567890", "hi")

	if got := env.conv(t, "911234567890").Step; got != models.StepMainMenu {
		t.Fatalf("step = %s, want %s", got, models.StepMainMenu)
	}
	last := env.sender.last()
	if last.kind != "buttons" {
		t.Fatalf("last message kind = %s, want buttons", last.kind)
	}
	if len(last.buttonIDs) != 3 || last.buttonIDs[0] != "browse_menu" {
		t.Fatalf("unexpected buttons: %v", last.buttonIDs)
	}
}

func TestOptionWinsOverText(t *testing.T) {
	env := newTestEnv()
	env.say(t, "91999", "hi")

	// Both a greeting and an option id arrive; the option must route.
	if err := env.engine.Handle(context.Background(), wapp.Event{
		CustomerID: "91999", Text: "hello", OptionID: "view_cart",
	}); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if !env.sender.contains("Your cart is empty") {
		t.Fatal("expected the cart view, got the greeting")
	}
}

func TestHubKeywordsIgnoredMidFlow(t *testing.T) {
	env := newTestEnv()
	env.say(t, "91888", "hi")
	env.tap(t, "91888", "add_m1_1")
	env.tap(t, "91888", "checkout")

	// "menu" while the engine awaits a name is a name, not navigation.
	env.say(t, "91888", "menu")

	conv := env.conv(t, "91888")
	if conv.Step != models.StepAwaitingOrderType {
		t.Fatalf("step = %s, want %s", conv.Step, models.StepAwaitingOrderType)
	}
	if conv.Scratch.Name != "menu" {
		t.Fatalf("name = %q, want %q", conv.Scratch.Name, "menu")
	}
}

func TestBrowseAndAddToCart(t *testing.T) {
	env := newTestEnv()
	env.say(t, "91777", "hi")
	env.tap(t, "91777", "browse_menu")

	last := env.sender.last()
	if last.kind != "list" {
		t.Fatalf("expected a category list, got %s", last.kind)
	}
	if len(last.rowIDs) != 2 {
		t.Fatalf("category rows = %v, want 2 categories", last.rowIDs)
	}

	env.tap(t, "91777", "cat_pizza")
	if got := env.sender.last(); got.kind != "list" || got.rowIDs[0] != "item_m1" {
		t.Fatalf("unexpected item list: %+v", got)
	}

	env.tap(t, "91777", "add_m1_2")
	conv := env.conv(t, "91777")
	if len(conv.Cart) != 1 {
		t.Fatalf("cart lines = %d, want 1", len(conv.Cart))
	}
	line := conv.Cart[0]
	if line.Quantity != 2 || line.UnitPrice != 250 {
		t.Fatalf("line = %+v", line)
	}
	if conv.Step != models.StepMainMenu {
		t.Fatalf("step = %s, want %s", conv.Step, models.StepMainMenu)
	}
}

func TestCheckoutWithEmptyCart(t *testing.T) {
	env := newTestEnv()
	env.say(t, "91666", "hi")
	env.tap(t, "91666", "checkout")

	if env.gateway.calls != 0 {
		t.Fatal("gateway must not be called for an empty cart")
	}
	if !env.sender.contains("cart is empty") {
		t.Fatal("expected an empty cart notice")
	}
	if got := env.conv(t, "91666").Step; got != models.StepMainMenu {
		t.Fatalf("step = %s, want %s", got, models.StepMainMenu)
	}
}

func TestNameValidation(t *testing.T) {
	env := newTestEnv()
	env.say(t, "91555", "hi")
	env.tap(t, "91555", "add_m1_1")
	env.tap(t, "91555", "checkout")

	env.say(t, "91555", "A")
	if got := env.conv(t, "91555").Step; got != models.StepAwaitingName {
		t.Fatalf("step after invalid name = %s, want %s", got, models.StepAwaitingName)
	}
	if !env.sender.contains("valid name") {
		t.Fatal("expected a reprompt for the name")
	}

	env.say(t, "91555", "Asha Rao")
	conv := env.conv(t, "91555")
	if conv.Step != models.StepAwaitingOrderType {
		t.Fatalf("step = %s, want %s", conv.Step, models.StepAwaitingOrderType)
	}
	if conv.Scratch.Name != "Asha Rao" {
		t.Fatalf("name = %q", conv.Scratch.Name)
	}
}

func TestDeliveryCheckoutChain(t *testing.T) {
	env := newTestEnv()
	cust := "91444"
	env.say(t, cust, "hi")
	env.tap(t, cust, "add_m2_1")
	env.tap(t, cust, "checkout")
	env.say(t, cust, "Asha Rao")
	env.tap(t, cust, "delivery")

	env.say(t, cust, "abc") // too short
	if !env.sender.contains("valid address") {
		t.Fatal("expected an address reprompt")
	}
	env.say(t, cust, "12 MG Road, Flat 4")
	env.say(t, cust, "Bengaluru")
	env.say(t, cust, "Karnataka")

	env.say(t, cust, "123") // too short
	if got := env.conv(t, cust).Step; got != models.StepAwaitingPincode {
		t.Fatalf("step after invalid pincode = %s", got)
	}
	env.say(t, cust, "560001")

	conv := env.conv(t, cust)
	if conv.Step != models.StepPaymentPending {
		t.Fatalf("step = %s, want %s", conv.Step, models.StepPaymentPending)
	}
	if conv.ActiveOrderID == "" {
		t.Fatal("active order id not recorded")
	}

	order, err := env.orders.ByID(context.Background(), conv.ActiveOrderID)
	if err != nil {
		t.Fatalf("order lookup: %v", err)
	}
	if order.Status != models.OrderPaymentPending || order.PaymentStatus != models.PaymentPending {
		t.Fatalf("order state = %s/%s", order.Status, order.PaymentStatus)
	}
	if order.DeliveryAddress == nil || order.DeliveryAddress.City != "Bengaluru" {
		t.Fatalf("delivery address = %+v", order.DeliveryAddress)
	}
	if order.PaymentLinkID == "" {
		t.Fatal("payment link not recorded on the order")
	}
	if !env.sender.contains("https://rzp.io/l/test") {
		t.Fatal("payment link not sent to the customer")
	}
}

func TestTakeawaySkipsAddressChain(t *testing.T) {
	env := newTestEnv()
	cust := "91333"
	env.say(t, cust, "hi")
	env.tap(t, cust, "add_m1_1")
	env.tap(t, cust, "checkout")
	env.say(t, cust, "Ravi")
	env.tap(t, cust, "takeaway")

	conv := env.conv(t, cust)
	if conv.Step != models.StepPaymentPending {
		t.Fatalf("step = %s, want %s", conv.Step, models.StepPaymentPending)
	}
	order, err := env.orders.ByID(context.Background(), conv.ActiveOrderID)
	if err != nil {
		t.Fatalf("order lookup: %v", err)
	}
	if order.OrderType != models.OrderTypeTakeaway {
		t.Fatalf("order type = %s", order.OrderType)
	}
	if order.DeliveryAddress != nil {
		t.Fatal("takeaway order must carry no delivery address")
	}
}

func TestCartPriceFrozenAfterCatalogChange(t *testing.T) {
	env := newTestEnv()
	cust := "91222"
	env.say(t, cust, "hi")
	env.tap(t, cust, "add_m1_1")

	// Reprice the catalog item after it entered the cart.
	env.catalog.Put(models.MenuItem{
		ItemID: "m1", Name: "Margherita Pizza", Category: "Pizza",
		Price: 300, IsAvailable: true, IsVeg: true,
	})

	env.tap(t, cust, "checkout")
	env.say(t, cust, "Ravi")
	env.tap(t, cust, "dine_in")

	order, err := env.orders.ByID(context.Background(), env.conv(t, cust).ActiveOrderID)
	if err != nil {
		t.Fatalf("order lookup: %v", err)
	}
	if order.TotalAmount != 250 {
		t.Fatalf("total = %.0f, want the add-time price 250", order.TotalAmount)
	}
	if env.gateway.lastAmount != 250 {
		t.Fatalf("gateway amount = %.0f, want 250", env.gateway.lastAmount)
	}
}

func TestVanishedItemSkippedAtCheckout(t *testing.T) {
	env := newTestEnv()
	cust := "91111"
	env.say(t, cust, "hi")
	env.tap(t, cust, "add_m1_1")
	env.tap(t, cust, "add_m2_1")

	env.catalog.Remove("m1")

	env.tap(t, cust, "checkout")
	env.say(t, cust, "Ravi")
	env.tap(t, cust, "takeaway")

	order, err := env.orders.ByID(context.Background(), env.conv(t, cust).ActiveOrderID)
	if err != nil {
		t.Fatalf("order lookup: %v", err)
	}
	if len(order.Items) != 1 || order.Items[0].ItemID != "m2" {
		t.Fatalf("order items = %+v, want only m2", order.Items)
	}
	if order.TotalAmount != 320 {
		t.Fatalf("total = %.0f, want 320", order.TotalAmount)
	}
}

func TestGatewayFailureReturnsToHub(t *testing.T) {
	env := newTestEnv()
	env.gateway.fail = true
	cust := "91000"
	env.say(t, cust, "hi")
	env.tap(t, cust, "add_m1_1")
	env.tap(t, cust, "checkout")
	env.say(t, cust, "Ravi")
	env.tap(t, cust, "takeaway")

	conv := env.conv(t, cust)
	if conv.Step != models.StepMainMenu {
		t.Fatalf("step = %s, want %s after gateway failure", conv.Step, models.StepMainMenu)
	}
	if conv.ActiveOrderID != "" {
		t.Fatal("no payable order may be referenced after a gateway failure")
	}
	if !env.sender.contains("error creating your order") {
		t.Fatal("customer was not told about the failure")
	}
	if len(conv.Cart) != 1 {
		t.Fatal("cart must survive a failed checkout for retry")
	}
}

func TestStatusForLatestOrder(t *testing.T) {
	env := newTestEnv()
	cust := "91321"
	env.say(t, cust, "hi")
	env.say(t, cust, "status")
	if !env.sender.contains("haven't placed any orders") {
		t.Fatal("expected the no-orders notice")
	}

	env.tap(t, cust, "add_m1_1")
	env.tap(t, cust, "checkout")
	env.say(t, cust, "Ravi")
	env.tap(t, cust, "takeaway")

	// payment_pending parks the step, but status must still answer.
	env.say(t, cust, "anything")
	if !env.sender.contains("Awaiting payment") {
		t.Fatal("expected the awaiting payment status")
	}
}

func TestConcurrentCustomersAreIndependent(t *testing.T) {
	env := newTestEnv()
	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			cust := fmt.Sprintf("92%03d", n)
			errs <- env.engine.Handle(context.Background(), wapp.Event{CustomerID: cust, Text: "hi"})
			errs <- env.engine.Handle(context.Background(), wapp.Event{CustomerID: cust, OptionID: "add_m1_1"})
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("Handle: %v", err)
		}
	}

	for i := 0; i < 8; i++ {
		cust := fmt.Sprintf("92%03d", i)
		if got := len(env.conv(t, cust).Cart); got != 1 {
			t.Fatalf("customer %s cart lines = %d, want 1", cust, got)
		}
	}
}

func TestParseAddOption(t *testing.T) {
	id, qty, ok := parseAddOption("add_m1_3")
	if !ok || id != "m1" || qty != 3 {
		t.Fatalf("got (%q, %d, %v)", id, qty, ok)
	}
	if _, _, ok := parseAddOption("add_m1_zero"); ok {
		t.Fatal("non-numeric quantity must be rejected")
	}
	if _, _, ok := parseAddOption("add_m1_0"); ok {
		t.Fatal("zero quantity must be rejected")
	}
	// Item ids may themselves contain underscores.
	id, qty, ok = parseAddOption("add_item_77_2")
	if !ok || id != "item_77" || qty != 2 {
		t.Fatalf("got (%q, %d, %v)", id, qty, ok)
	}
}

func TestLockerSerializesHandling(t *testing.T) {
	env := newTestEnv()
	locker := &stubLocker{held: map[string]bool{}}
	env.engine.Locker = locker

	env.say(t, "91aaa", "hi")
	if locker.acquires == 0 {
		t.Fatal("locker was never consulted")
	}

	locker.deny = true
	err := env.engine.Handle(context.Background(), wapp.Event{CustomerID: "91aaa", Text: "hi"})
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("err = %v, want ErrBusy", err)
	}
}

type stubLocker struct {
	mu       sync.Mutex
	held     map[string]bool
	deny     bool
	acquires int
}

func (l *stubLocker) Acquire(_ context.Context, id string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.acquires++
	if l.deny || l.held[id] {
		return false, nil
	}
	l.held[id] = true
	return true, nil
}

func (l *stubLocker) Release(_ context.Context, id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, id)
}
