package order

import (
	"strings"
	"time"

	"github.com/wichananm65/storefront/internal/apperr"
	"github.com/wichananm65/storefront/internal/auth"
)

// staffTransitions is the order flow staff may drive. Re-entering Delivered
// or Cancelled is allowed and changes nothing.
var staffTransitions = map[Status][]Status{
	StatusPending:    {StatusConfirmed, StatusProcessing, StatusCancelled},
	StatusConfirmed:  {StatusProcessing, StatusShipped, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered, StatusReturned},
	StatusDelivered:  {StatusDelivered, StatusReturned},
	StatusCancelled:  {StatusCancelled},
	StatusReturned:   {},
}

// customers may only withdraw an order nobody has started working on.
var customerTransitions = map[Status][]Status{
	StatusPending:   {StatusCancelled},
	StatusConfirmed: {StatusCancelled},
	StatusCancelled: {StatusCancelled},
}

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending:           {PaymentPaid, PaymentFailed},
	PaymentFailed:            {PaymentPending, PaymentPaid},
	PaymentPaid:              {PaymentPaid, PaymentRefunded, PaymentPartiallyRefunded},
	PaymentPartiallyRefunded: {PaymentPartiallyRefunded, PaymentRefunded},
	PaymentRefunded:          {PaymentRefunded},
}

// IsLegalTransition reports whether role may move an order from one status
// to another. It has no side effects.
func IsLegalTransition(from, to Status, role auth.Role) bool {
	table := staffTransitions
	if role != auth.RoleAdmin && role != auth.RoleSystem {
		table = customerTransitions
	}
	return contains(table[from], to)
}

// IsLegalPaymentTransition reports whether payment status may move from one
// value to another. Repeating the current paid or refunded state is allowed
// so redelivered gateway events are harmless.
func IsLegalPaymentTransition(from, to PaymentStatus) bool {
	return contains(paymentTransitions[from], to)
}

func (s Status) Valid() bool {
	_, ok := staffTransitions[s]
	return ok
}

func (s PaymentStatus) Valid() bool {
	_, ok := paymentTransitions[s]
	return ok
}

func contains[T comparable](list []T, v T) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

// StatusChange is a requested status update.
type StatusChange struct {
	Actor             auth.Identity `json:"-"`
	Status            Status        `json:"status"`
	Reason            string        `json:"reason"`
	TrackingNumber    string        `json:"trackingNumber"`
	EstimatedDelivery *time.Time    `json:"estimatedDelivery"`
}

// applyStatus moves o to ch.Status and stamps the timestamps the new status
// owns. It reports whether the move cancelled a live order, in which case
// the caller must put its stock back.
func applyStatus(o *Order, ch StatusChange, role auth.Role, now time.Time) (bool, error) {
	from := o.Status
	if !ch.Status.Valid() {
		return false, apperr.Invalidf("unknown status %q", ch.Status)
	}
	if !IsLegalTransition(from, ch.Status, role) {
		return false, apperr.Transition(string(from), string(ch.Status))
	}

	restock := false
	switch ch.Status {
	case StatusCancelled:
		reason := strings.TrimSpace(ch.Reason)
		if reason == "" {
			return false, apperr.Invalidf("a cancellation reason is required")
		}
		if o.CancelledAt == nil {
			o.CancelledAt = &now
			o.CancelReason = reason
		}
		restock = from != StatusCancelled
	case StatusDelivered:
		if o.DeliveredAt == nil {
			o.DeliveredAt = &now
		}
	}
	if ch.TrackingNumber != "" {
		o.TrackingNumber = strings.TrimSpace(ch.TrackingNumber)
	}
	if ch.EstimatedDelivery != nil {
		o.EstimatedDelivery = ch.EstimatedDelivery
	}
	o.Status = ch.Status
	o.UpdatedAt = now
	return restock, nil
}

// PaymentEvent is a payment status change reported by the gateway.
type PaymentEvent struct {
	OrderID   int            `json:"orderId"`
	Status    PaymentStatus  `json:"status"`
	Reference string         `json:"reference"`
	Details   PaymentDetails `json:"details"`
}

// applyPayment records ev on o. A successful payment on a pending order also
// confirms it; the returned bool reports that.
func applyPayment(o *Order, ev PaymentEvent, now time.Time) (bool, error) {
	if !ev.Status.Valid() {
		return false, apperr.Invalidf("unknown payment status %q", ev.Status)
	}
	if !IsLegalPaymentTransition(o.PaymentStatus, ev.Status) {
		return false, apperr.Transition(string(o.PaymentStatus), string(ev.Status))
	}

	o.PaymentStatus = ev.Status
	if ev.Reference != "" {
		o.PaymentRef = ev.Reference
	}
	if len(ev.Details) > 0 {
		if o.PaymentDetails == nil {
			o.PaymentDetails = PaymentDetails{}
		}
		for k, v := range ev.Details {
			o.PaymentDetails[k] = v
		}
	}
	confirmed := false
	if ev.Status == PaymentPaid {
		if o.PaidAt == nil {
			o.PaidAt = &now
		}
		if o.Status == StatusPending {
			o.Status = StatusConfirmed
			confirmed = true
		}
	}
	o.UpdatedAt = now
	return confirmed, nil
}
