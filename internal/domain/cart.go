package domain

import (
	"time"

	"github.com/google/uuid"
)

type Address struct {
	FirstName            string
	LastName             string
	StreetName           string
	StreetNumber         string
	AdditionalStreetInfo string
	PostalCode           string
	City                 string
	Region               string
	State                string
	Country              string
}

type Cart struct {
	ID              uuid.UUID
	Version         int64
	CustomerID      *string
	ShippingAddress *Address
	TotalPrice      Money
	PaymentIDs      []uuid.UUID
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// CartRef pins a cart to the version the caller read.
type CartRef struct {
	ID      uuid.UUID
	Version int64
}

func (c *Cart) Ref() CartRef {
	return CartRef{ID: c.ID, Version: c.Version}
}
