package models

import "time"

type AdminUser struct {
	Username     string    `json:"username" bson:"username"`
	PasswordHash string    `json:"-" bson:"passwordhash"`
	CreatedAt    time.Time `json:"createdAt" bson:"createdat"`
}

// ConfirmTask is a pending auto-confirmation, one per order. Re-arming an
// order upserts its task, so duplicate settlement signals never create a
// second one.
type ConfirmTask struct {
	OrderID   string    `json:"orderId" bson:"orderid"`
	RunAt     time.Time `json:"runAt" bson:"runat"`
	CreatedAt time.Time `json:"createdAt" bson:"createdat"`
}
