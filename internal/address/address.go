package address

import (
	"strings"
	"time"
)

type Address struct {
	AddressID   int       `json:"addressId" db:"address_id"`
	UserID      int       `json:"userId" db:"user_id"`
	AddressDesc string    `json:"addressDesc" db:"address_desc"`
	Phone       string    `json:"phone" db:"phone"`
	AddressName string    `json:"addressName" db:"address_name"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt" db:"updated_at"`
}

// Input is the editable part of an address.
type Input struct {
	AddressDesc string `json:"addressDesc"`
	Phone       string `json:"phone"`
	AddressName string `json:"addressName"`
}

func (in Input) trimmed() Input {
	return Input{
		AddressDesc: strings.TrimSpace(in.AddressDesc),
		Phone:       strings.TrimSpace(in.Phone),
		AddressName: strings.TrimSpace(in.AddressName),
	}
}
