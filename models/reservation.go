package models

import "time"

type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "pending"
	ReservationConfirmed ReservationStatus = "confirmed"
	ReservationCancelled ReservationStatus = "cancelled"
	ReservationCompleted ReservationStatus = "completed"
)

type Reservation struct {
	ReservationID   string            `json:"reservationId" bson:"reservationid"`
	CustomerID      string            `json:"customerId" bson:"customerid"`
	CustomerName    string            `json:"customerName" bson:"customername"`
	Date            time.Time         `json:"date" bson:"date"`
	Time            string            `json:"time" bson:"time"`
	PartySize       int               `json:"partySize" bson:"partysize"`
	SpecialRequests string            `json:"specialRequests,omitempty" bson:"specialrequests,omitempty"`
	Status          ReservationStatus `json:"status" bson:"status"`
	TableNumber     string            `json:"tableNumber,omitempty" bson:"tablenumber,omitempty"`
	CreatedAt       time.Time         `json:"createdAt" bson:"createdat"`
	UpdatedAt       time.Time         `json:"updatedAt" bson:"updatedat"`
}

func KnownReservationStatus(s ReservationStatus) bool {
	switch s {
	case ReservationPending, ReservationConfirmed, ReservationCancelled, ReservationCompleted:
		return true
	}
	return false
}
