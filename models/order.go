package models

import "time"

type OrderStatus string

const (
	OrderPaymentPending  OrderStatus = "payment_pending"
	OrderPaymentVerified OrderStatus = "payment_verified"
	OrderConfirmed       OrderStatus = "confirmed"
	OrderPreparing       OrderStatus = "preparing"
	OrderReady           OrderStatus = "ready"
	OrderOutForDelivery  OrderStatus = "out_for_delivery"
	OrderDelivered       OrderStatus = "delivered"
	OrderCancelled       OrderStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

const (
	OrderTypeDelivery = "delivery"
	OrderTypeTakeaway = "takeaway"
	OrderTypeDineIn   = "dine-in"
)

// OrderItem is a frozen copy of a cart line at checkout time.
type OrderItem struct {
	ItemID    string  `json:"itemId" bson:"itemid"`
	Name      string  `json:"name" bson:"name"`
	Quantity  int     `json:"quantity" bson:"quantity"`
	UnitPrice float64 `json:"unitPrice" bson:"unitprice"`
	LineTotal float64 `json:"lineTotal" bson:"linetotal"`
}

type DeliveryAddress struct {
	Street  string `json:"street,omitempty" bson:"street,omitempty"`
	City    string `json:"city,omitempty" bson:"city,omitempty"`
	State   string `json:"state,omitempty" bson:"state,omitempty"`
	Pincode string `json:"pincode,omitempty" bson:"pincode,omitempty"`
}

// Order is one checkout: frozen line items plus payment lifecycle.
// PaymentLinkID joins the two reconciliation signals back to the record and
// is set once, right after the payment link is created.
type Order struct {
	OrderID           string           `json:"orderId" bson:"orderid"`
	CustomerID        string           `json:"customerId" bson:"customerid"`
	CustomerName      string           `json:"customerName" bson:"customername"`
	Items             []OrderItem      `json:"items" bson:"items"`
	TotalAmount       float64          `json:"totalAmount" bson:"totalamount"`
	OrderType         string           `json:"orderType" bson:"ordertype"`
	DeliveryAddress   *DeliveryAddress `json:"deliveryAddress,omitempty" bson:"deliveryaddress,omitempty"`
	Status            OrderStatus      `json:"status" bson:"status"`
	PaymentStatus     PaymentStatus    `json:"paymentStatus" bson:"paymentstatus"`
	PaymentLinkID     string           `json:"paymentLinkId,omitempty" bson:"paymentlinkid,omitempty"`
	PaymentID         string           `json:"paymentId,omitempty" bson:"paymentid,omitempty"`
	CreatedAt         time.Time        `json:"createdAt" bson:"createdat"`
	UpdatedAt         time.Time        `json:"updatedAt" bson:"updatedat"`
	PaymentVerifiedAt *time.Time       `json:"paymentVerifiedAt,omitempty" bson:"paymentverifiedat,omitempty"`
	DeliveredAt       *time.Time       `json:"deliveredAt,omitempty" bson:"deliveredat,omitempty"`
}

// KnownOrderStatus reports whether s is part of the order lifecycle.
func KnownOrderStatus(s OrderStatus) bool {
	switch s {
	case OrderPaymentPending, OrderPaymentVerified, OrderConfirmed, OrderPreparing,
		OrderReady, OrderOutForDelivery, OrderDelivered, OrderCancelled:
		return true
	}
	return false
}
