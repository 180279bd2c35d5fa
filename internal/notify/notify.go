// Package notify fans order lifecycle events out to whoever listens: the
// service log, an AMQP exchange, or a recorder in tests.
package notify

import (
	"context"

	"github.com/shopspring/decimal"
)

// Event is published after the change it describes has committed. Type is
// also the AMQP routing key.
type Event interface {
	Type() string
}

type OrderCreated struct {
	OrderID     int             `json:"orderId"`
	OrderNumber string          `json:"orderNumber"`
	UserID      int             `json:"userId"`
	Total       decimal.Decimal `json:"total"`
	ItemCount   int             `json:"itemCount"`
}

type OrderStatusChanged struct {
	OrderID     int    `json:"orderId"`
	OrderNumber string `json:"orderNumber"`
	UserID      int    `json:"userId"`
	From        string `json:"from"`
	To          string `json:"to"`
}

type OrderCancelled struct {
	OrderID     int    `json:"orderId"`
	OrderNumber string `json:"orderNumber"`
	UserID      int    `json:"userId"`
	Reason      string `json:"reason"`
}

type PaymentStatusChanged struct {
	OrderID     int    `json:"orderId"`
	OrderNumber string `json:"orderNumber"`
	UserID      int    `json:"userId"`
	From        string `json:"from"`
	To          string `json:"to"`
}

func (OrderCreated) Type() string         { return "order.created" }
func (OrderStatusChanged) Type() string   { return "order.status_changed" }
func (OrderCancelled) Type() string       { return "order.cancelled" }
func (PaymentStatusChanged) Type() string { return "order.payment_changed" }

type Dispatcher interface {
	Dispatch(ctx context.Context, event Event) error
}

// Multi dispatches to every dispatcher and returns the first error seen.
type Multi []Dispatcher

func (m Multi) Dispatch(ctx context.Context, event Event) error {
	var first error
	for _, d := range m {
		if err := d.Dispatch(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}
