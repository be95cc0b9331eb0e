package models

import "time"

// MenuItem is one catalog entry. ItemID is the stable identifier used in
// list-row and button option ids.
type MenuItem struct {
	ItemID          string    `json:"itemId" bson:"itemid"`
	Name            string    `json:"name" bson:"name"`
	Description     string    `json:"description,omitempty" bson:"description,omitempty"`
	Category        string    `json:"category" bson:"category"`
	Price           float64   `json:"price" bson:"price"`
	Image           string    `json:"image,omitempty" bson:"image,omitempty"`
	Thumb           string    `json:"thumb,omitempty" bson:"thumb,omitempty"`
	IsAvailable     bool      `json:"isAvailable" bson:"isavailable"`
	IsVeg           bool      `json:"isVeg" bson:"isveg"`
	PreparationTime int       `json:"preparationTime,omitempty" bson:"preparationtime,omitempty"`
	CreatedAt       time.Time `json:"createdAt" bson:"createdat"`
	UpdatedAt       time.Time `json:"updatedAt" bson:"updatedat"`
}
