package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"tavola/checkout"
	"tavola/models"
	"tavola/notify"
	"tavola/store"
	"tavola/utils"
	"tavola/wapp"
)

// ErrBusy means another event for the same customer is being processed; the
// transport retries delivery.
var ErrBusy = errors.New("bot: conversation busy")

// Locker serializes processing per customer id.
type Locker interface {
	Acquire(ctx context.Context, customerID string) (bool, error)
	Release(ctx context.Context, customerID string)
}

// Engine is the dialogue state machine. Given the current conversation and
// one inbound event it advances the step, mutates the cart/scratch fields,
// and emits outbound messages. All persistence goes through the injected
// stores; different customers are fully independent.
type Engine struct {
	Conversations store.ConversationStore
	Catalog       store.CatalogStore
	Orders        store.OrderStore
	Reservations  store.ReservationStore
	Sender        wapp.Sender
	Checkout      *checkout.Orchestrator
	Notifier      *notify.Notifier
	Locker        Locker
}

// Handle processes one inbound event to completion.
func (e *Engine) Handle(ctx context.Context, ev wapp.Event) error {
	if e.Locker != nil {
		ok, err := e.Locker.Acquire(ctx, ev.CustomerID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrBusy
		}
		defer e.Locker.Release(ctx, ev.CustomerID)
	}

	conv, err := e.Conversations.GetOrCreate(ctx, ev.CustomerID)
	if err != nil {
		return err
	}
	conv.LastActivityAt = time.Now()

	e.dispatch(ctx, conv, ev)

	return e.Conversations.Save(ctx, conv)
}

func (e *Engine) dispatch(ctx context.Context, conv *models.Conversation, ev wapp.Event) {
	text := strings.ToLower(strings.TrimSpace(ev.Text))
	raw := strings.TrimSpace(ev.Text)

	// Explicit option ids always win over keyword inference.
	if ev.OptionID != "" && e.handleOption(ctx, conv, ev.OptionID) {
		return
	}

	// Greeting is a global interrupt back to the hub.
	if conv.Step == models.StepWelcome || isGreeting(text) {
		e.showMainMenu(ctx, conv)
		return
	}
	if text == "help" {
		e.sendText(ctx, conv.CustomerID, helpText)
		return
	}

	// Free-text keywords route into sub-flows at the hub only.
	if conv.Step == models.StepMainMenu {
		e.handleHubKeyword(ctx, conv, text)
		return
	}

	// Otherwise the current step interprets the text.
	switch conv.Step {
	case models.StepAwaitingName:
		e.collectName(ctx, conv, raw)
	case models.StepAwaitingOrderType:
		e.sendText(ctx, conv.CustomerID, "Please choose Delivery, Takeaway or Dine-in from the buttons above.")
	case models.StepAwaitingAddress:
		e.collectAddress(ctx, conv, raw)
	case models.StepAwaitingCity:
		e.collectCity(ctx, conv, raw)
	case models.StepAwaitingState:
		e.collectState(ctx, conv, raw)
	case models.StepAwaitingPincode:
		e.collectPincode(ctx, conv, raw)
	case models.StepReservationName:
		e.collectReservationName(ctx, conv, raw)
	case models.StepReservationDate:
		e.collectReservationDate(ctx, conv, raw)
	case models.StepReservationTime:
		e.collectReservationTime(ctx, conv, raw)
	case models.StepReservationParty:
		e.collectReservationPartySize(ctx, conv, raw)
	case models.StepReservationRequests:
		e.collectReservationRequests(ctx, conv, raw)
	case models.StepPaymentPending:
		e.showStatus(ctx, conv)
	default:
		e.sendFallback(ctx, conv)
	}
}

// handleOption reports whether the option id was recognized.
func (e *Engine) handleOption(ctx context.Context, conv *models.Conversation, option string) bool {
	switch {
	case option == "browse_menu" || option == "continue_shopping":
		e.showCategories(ctx, conv)
	case option == "view_cart":
		e.showCart(ctx, conv)
	case option == "my_orders":
		e.showMyOrders(ctx, conv)
	case option == "order_status":
		e.showStatus(ctx, conv)
	case option == "reserve_table":
		e.startReservation(ctx, conv)
	case option == "checkout":
		e.startCheckout(ctx, conv)
	case option == "clear_cart":
		conv.ClearCart()
		e.sendText(ctx, conv.CustomerID, "🗑️ Cart cleared!")
		e.showMainMenu(ctx, conv)
	case strings.HasPrefix(option, "cat_"):
		e.showCategoryItems(ctx, conv, utils.Unslugify(strings.TrimPrefix(option, "cat_")))
	case strings.HasPrefix(option, "item_"):
		e.showItemDetail(ctx, conv, strings.TrimPrefix(option, "item_"))
	case strings.HasPrefix(option, "add_"):
		e.addToCart(ctx, conv, option)
	case option == "delivery" || option == "takeaway" || option == "dine_in":
		if conv.Step != models.StepAwaitingOrderType {
			return false
		}
		e.selectOrderType(ctx, conv, option)
	default:
		return false
	}
	return true
}

// Priority-ordered keyword table for the hub. "order status" must hit the
// status flow, so status outranks order.
func (e *Engine) handleHubKeyword(ctx context.Context, conv *models.Conversation, text string) {
	switch {
	case strings.Contains(text, "menu") || strings.Contains(text, "food"):
		e.showCategories(ctx, conv)
	case strings.Contains(text, "cart"):
		e.showCart(ctx, conv)
	case strings.Contains(text, "reserv") || strings.Contains(text, "book table"):
		e.startReservation(ctx, conv)
	case strings.Contains(text, "status") || text == "track":
		e.showStatus(ctx, conv)
	case strings.Contains(text, "order"):
		e.showMyOrders(ctx, conv)
	default:
		e.sendFallback(ctx, conv)
	}
}

func isGreeting(text string) bool {
	switch text {
	case "hi", "hello", "start", "hey":
		return true
	}
	return false
}

// --- outbound helpers -----------------------------------------------------

func (e *Engine) sendText(ctx context.Context, to, body string) {
	if err := e.Sender.SendText(ctx, to, body); err != nil {
		log.Printf("Engine: text to %s: %v", to, err)
	}
}

func (e *Engine) sendButtons(ctx context.Context, to, body string, buttons []wapp.Button) {
	if err := e.Sender.SendButtons(ctx, to, body, buttons); err != nil {
		log.Printf("Engine: buttons to %s: %v", to, err)
	}
}

func (e *Engine) sendList(ctx context.Context, to, body, label string, sections []wapp.Section) {
	if err := e.Sender.SendList(ctx, to, body, label, sections); err != nil {
		log.Printf("Engine: list to %s: %v", to, err)
	}
}

func (e *Engine) sendFallback(ctx context.Context, conv *models.Conversation) {
	e.sendButtons(ctx, conv.CustomerID, "I didn't understand that. How can I help you?", []wapp.Button{
		{ID: "browse_menu", Title: "🍕 Browse Menu"},
		{ID: "view_cart", Title: "🛒 View Cart"},
	})
}

func (e *Engine) showMainMenu(ctx context.Context, conv *models.Conversation) {
	conv.Step = models.StepMainMenu
	e.sendButtons(ctx, conv.CustomerID, welcomeText, []wapp.Button{
		{ID: "browse_menu", Title: "🍕 Browse Menu"},
		{ID: "reserve_table", Title: "🪑 Reserve Table"},
		{ID: "my_orders", Title: "📦 My Orders"},
	})
}

// --- browsing and cart ----------------------------------------------------

func (e *Engine) showCategories(ctx context.Context, conv *models.Conversation) {
	cats, err := e.Catalog.Categories(ctx)
	if err != nil {
		log.Printf("Engine: categories: %v", err)
		e.sendText(ctx, conv.CustomerID, "Sorry, the menu is unavailable right now. Please try again.")
		return
	}
	if len(cats) == 0 {
		e.sendText(ctx, conv.CustomerID, "No categories available at the moment. Please check back later!")
		return
	}

	conv.Step = models.StepBrowsingCategory
	rows := make([]wapp.Row, 0, len(cats))
	for _, cat := range cats {
		rows = append(rows, wapp.Row{
			ID:          "cat_" + utils.Slugify(cat),
			Title:       cat,
			Description: "View " + cat,
		})
	}
	e.sendList(ctx, conv.CustomerID, "🍽️ Choose a category to browse:", "Select Category",
		[]wapp.Section{{Title: "Categories", Rows: rows}})
}

func (e *Engine) showCategoryItems(ctx context.Context, conv *models.Conversation, category string) {
	items, err := e.Catalog.ItemsByCategory(ctx, category, 10)
	if err != nil {
		log.Printf("Engine: items for %q: %v", category, err)
		e.sendText(ctx, conv.CustomerID, "Sorry, the menu is unavailable right now. Please try again.")
		return
	}
	if len(items) == 0 {
		e.sendText(ctx, conv.CustomerID, "No items available in this category.")
		e.showCategories(ctx, conv)
		return
	}

	conv.Step = models.StepViewingItem
	rows := make([]wapp.Row, 0, len(items))
	for _, item := range items {
		title := item.Name
		if len(title) > 24 {
			title = title[:24]
		}
		rows = append(rows, wapp.Row{
			ID:          "item_" + item.ItemID,
			Title:       title,
			Description: fmt.Sprintf("%s ₹%.0f", vegMark(item.IsVeg), item.Price),
		})
	}
	e.sendList(ctx, conv.CustomerID, fmt.Sprintf("Available %s:", category), "View Item",
		[]wapp.Section{{Title: category, Rows: rows}})
}

func (e *Engine) showItemDetail(ctx context.Context, conv *models.Conversation, itemID string) {
	item, err := e.Catalog.ItemByID(ctx, itemID)
	if err != nil {
		e.sendText(ctx, conv.CustomerID, "Item not found.")
		return
	}

	conv.Step = models.StepViewingItem
	e.sendText(ctx, conv.CustomerID, itemDetailText(item))
	e.sendButtons(ctx, conv.CustomerID, "Add to cart?", []wapp.Button{
		{ID: fmt.Sprintf("add_%s_1", item.ItemID), Title: "➕ Add to Cart"},
		{ID: "browse_menu", Title: "⬅️ Back to Menu"},
	})
}

func (e *Engine) addToCart(ctx context.Context, conv *models.Conversation, option string) {
	itemID, qty, ok := parseAddOption(option)
	if !ok {
		e.sendFallback(ctx, conv)
		return
	}
	item, err := e.Catalog.ItemByID(ctx, itemID)
	if err != nil {
		e.sendText(ctx, conv.CustomerID, "Item not found.")
		return
	}

	// Snapshot name and price now; later catalog edits must not reach this line.
	conv.Cart = append(conv.Cart, models.CartLine{
		ItemID:    item.ItemID,
		Name:      item.Name,
		Quantity:  qty,
		UnitPrice: item.Price,
		AddedAt:   time.Now(),
	})
	conv.Step = models.StepMainMenu

	e.sendButtons(ctx, conv.CustomerID,
		fmt.Sprintf("✅ %s added to cart!\n\nWhat would you like to do next?", item.Name),
		[]wapp.Button{
			{ID: "continue_shopping", Title: "🛍️ Continue Shopping"},
			{ID: "view_cart", Title: "🛒 View Cart"},
			{ID: "checkout", Title: "💳 Checkout"},
		})
}

func parseAddOption(option string) (itemID string, qty int, ok bool) {
	rest := strings.TrimPrefix(option, "add_")
	idx := strings.LastIndex(rest, "_")
	if idx <= 0 {
		return "", 0, false
	}
	itemID = rest[:idx]
	if _, err := fmt.Sscanf(rest[idx+1:], "%d", &qty); err != nil || qty < 1 {
		return "", 0, false
	}
	return itemID, qty, true
}

func (e *Engine) showCart(ctx context.Context, conv *models.Conversation) {
	if len(conv.Cart) == 0 {
		e.sendText(ctx, conv.CustomerID, "🛒 Your cart is empty!\n\nStart browsing our menu to add items.")
		e.sendButtons(ctx, conv.CustomerID, "What would you like to do?", []wapp.Button{
			{ID: "browse_menu", Title: "🍕 Browse Menu"},
		})
		return
	}

	e.sendText(ctx, conv.CustomerID, e.cartText(ctx, conv))
	conv.Step = models.StepCartManagement
	e.sendButtons(ctx, conv.CustomerID, "Ready to order?", []wapp.Button{
		{ID: "checkout", Title: "💳 Checkout"},
		{ID: "clear_cart", Title: "🗑️ Clear Cart"},
		{ID: "browse_menu", Title: "🛍️ Add More"},
	})
}

// cartText renders the cart from line snapshots. Lines whose catalog item
// vanished are skipped rather than failing the render.
func (e *Engine) cartText(ctx context.Context, conv *models.Conversation) string {
	var b strings.Builder
	b.WriteString("🛒 *Your Cart:*\n\n")
	var total float64
	for _, line := range conv.Cart {
		if _, err := e.Catalog.ItemByID(ctx, line.ItemID); err != nil {
			continue
		}
		subtotal := float64(line.Quantity) * line.UnitPrice
		fmt.Fprintf(&b, "• %s\n  Qty: %d × ₹%.0f = ₹%.0f\n\n", line.Name, line.Quantity, line.UnitPrice, subtotal)
		total += subtotal
	}
	fmt.Fprintf(&b, "*Total: ₹%.0f*", total)
	return b.String()
}

// --- checkout chain -------------------------------------------------------

func (e *Engine) startCheckout(ctx context.Context, conv *models.Conversation) {
	if len(conv.Cart) == 0 {
		e.sendText(ctx, conv.CustomerID, "Your cart is empty!")
		return
	}
	conv.Step = models.StepAwaitingName
	e.sendText(ctx, conv.CustomerID, "✅ Let's complete your order!\n\nPlease enter your full name:")
}

func (e *Engine) collectName(ctx context.Context, conv *models.Conversation, name string) {
	if len(name) < 2 {
		e.sendText(ctx, conv.CustomerID, "❌ Please enter a valid name (at least 2 characters)")
		return
	}
	conv.Scratch.Name = name
	conv.Step = models.StepAwaitingOrderType
	e.sendButtons(ctx, conv.CustomerID,
		fmt.Sprintf("Thanks %s! How would you like to receive your order?", name),
		[]wapp.Button{
			{ID: "delivery", Title: "🚚 Delivery"},
			{ID: "takeaway", Title: "🎒 Takeaway"},
			{ID: "dine_in", Title: "🍽️ Dine-in"},
		})
}

func (e *Engine) selectOrderType(ctx context.Context, conv *models.Conversation, option string) {
	conv.Scratch.OrderType = strings.ReplaceAll(option, "_", "-")
	if option == "delivery" {
		conv.Step = models.StepAwaitingAddress
		e.sendText(ctx, conv.CustomerID, "📍 Please enter your delivery address:")
		return
	}
	// Takeaway and dine-in skip the address chain.
	e.finalizeCheckout(ctx, conv)
}

func (e *Engine) collectAddress(ctx context.Context, conv *models.Conversation, address string) {
	if len(address) < 5 {
		e.sendText(ctx, conv.CustomerID, "❌ Please enter a valid address")
		return
	}
	conv.Scratch.Address = address
	conv.Step = models.StepAwaitingCity
	e.sendText(ctx, conv.CustomerID, "🏙️ Enter your city:")
}

func (e *Engine) collectCity(ctx context.Context, conv *models.Conversation, city string) {
	if len(city) < 2 {
		e.sendText(ctx, conv.CustomerID, "❌ Please enter a valid city name")
		return
	}
	conv.Scratch.City = city
	conv.Step = models.StepAwaitingState
	e.sendText(ctx, conv.CustomerID, "🗺️ Enter your state:")
}

func (e *Engine) collectState(ctx context.Context, conv *models.Conversation, state string) {
	if len(state) < 2 {
		e.sendText(ctx, conv.CustomerID, "❌ Please enter a valid state name")
		return
	}
	conv.Scratch.State = state
	conv.Step = models.StepAwaitingPincode
	e.sendText(ctx, conv.CustomerID, "📮 Enter your pincode:")
}

func (e *Engine) collectPincode(ctx context.Context, conv *models.Conversation, pincode string) {
	if len(pincode) < 5 {
		e.sendText(ctx, conv.CustomerID, "❌ Please enter a valid pincode")
		return
	}
	conv.Scratch.Pincode = pincode
	e.finalizeCheckout(ctx, conv)
}

func (e *Engine) finalizeCheckout(ctx context.Context, conv *models.Conversation) {
	_, err := e.Checkout.Create(ctx, conv)
	if errors.Is(err, checkout.ErrEmptyCart) {
		e.sendText(ctx, conv.CustomerID, "Your cart is empty!")
		conv.Step = models.StepMainMenu
		return
	}
	if err != nil {
		// The orchestrator already told the customer and reset the step.
		log.Printf("Engine: checkout for %s: %v", conv.CustomerID, err)
	}
}
