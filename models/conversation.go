package models

import "time"

// Step identifies where a customer is in the dialogue.
type Step string

const (
	StepWelcome             Step = "welcome"
	StepMainMenu            Step = "main_menu"
	StepBrowsingCategory    Step = "browsing_category"
	StepViewingItem         Step = "viewing_item"
	StepCartManagement      Step = "cart_management"
	StepAwaitingName        Step = "awaiting_name"
	StepAwaitingOrderType   Step = "awaiting_order_type"
	StepAwaitingAddress     Step = "awaiting_address"
	StepAwaitingCity        Step = "awaiting_city"
	StepAwaitingState       Step = "awaiting_state"
	StepAwaitingPincode     Step = "awaiting_pincode"
	StepPaymentPending      Step = "payment_pending"
	StepReservationName     Step = "reservation_name"
	StepReservationDate     Step = "reservation_date"
	StepReservationTime     Step = "reservation_time"
	StepReservationParty    Step = "reservation_party_size"
	StepReservationRequests Step = "reservation_special_requests"
)

// CartLine is a snapshot of a catalog item at the moment it was added.
// Later catalog price changes never touch an existing line.
type CartLine struct {
	ItemID    string    `json:"itemId" bson:"itemid"`
	Name      string    `json:"name" bson:"name"`
	Quantity  int       `json:"quantity" bson:"quantity"`
	UnitPrice float64   `json:"unitPrice" bson:"unitprice"`
	AddedAt   time.Time `json:"addedAt" bson:"addedat"`
}

// Scratch holds fields collected across dialogue steps before they are
// committed to an order or reservation.
type Scratch struct {
	Name            string    `json:"name,omitempty" bson:"name,omitempty"`
	Address         string    `json:"address,omitempty" bson:"address,omitempty"`
	City            string    `json:"city,omitempty" bson:"city,omitempty"`
	State           string    `json:"state,omitempty" bson:"state,omitempty"`
	Pincode         string    `json:"pincode,omitempty" bson:"pincode,omitempty"`
	OrderType       string    `json:"orderType,omitempty" bson:"ordertype,omitempty"`
	ReservationDate time.Time `json:"reservationDate,omitempty" bson:"reservationdate,omitempty"`
	ReservationTime string    `json:"reservationTime,omitempty" bson:"reservationtime,omitempty"`
	PartySize       int       `json:"partySize,omitempty" bson:"partysize,omitempty"`
}

// Conversation is the per-customer dialogue cursor. Exactly one exists per
// customer id.
type Conversation struct {
	CustomerID          string     `json:"customerId" bson:"customerid"`
	Step                Step       `json:"step" bson:"step"`
	Cart                []CartLine `json:"cart" bson:"cart"`
	Scratch             Scratch    `json:"scratch" bson:"scratch"`
	ActiveOrderID       string     `json:"activeOrderId,omitempty" bson:"activeorderid,omitempty"`
	ActiveReservationID string     `json:"activeReservationId,omitempty" bson:"activereservationid,omitempty"`
	LastActivityAt      time.Time  `json:"lastActivityAt" bson:"lastactivityat"`
}

// ResetCheckout clears everything collected for an order or reservation in
// progress while leaving the cart alone.
func (c *Conversation) ResetCheckout() {
	c.Scratch = Scratch{}
}

// ClearCart drops the cart and all scratch fields and returns the
// conversation to the hub.
func (c *Conversation) ClearCart() {
	c.Cart = nil
	c.Scratch = Scratch{}
	c.Step = StepMainMenu
}
