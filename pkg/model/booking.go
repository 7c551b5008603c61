package model

import "time"

// Booking lifecycle states.
const (
	BookingInitiated             = "INITIATED"
	BookingPaymentPending        = "PAYMENT_PENDING"
	BookingConfirmed             = "CONFIRMED"
	BookingPaymentFailed         = "PAYMENT_FAILED"
	BookingPaymentFailedVerified = "PAYMENT_FAILED_VERIFIED"
	BookingPartiallyCancelled    = "PARTIALLY_CANCELLED"
	BookingCancelled             = "CANCELLED"
	BookingExpired               = "EXPIRED"
)

// Refund tracking states carried on a booking after cancellation.
const (
	RefundNone      = "NONE"
	RefundInitiated = "REFUND_INITIATED"
	RefundCompleted = "REFUND_COMPLETED"
	RefundFailed    = "REFUND_FAILED"
)

// bookingTransitions encodes the legal state machine. Absent keys have
// no outgoing edges (terminal states).
var bookingTransitions = map[string]map[string]bool{
	BookingInitiated: {
		BookingPaymentPending: true,
		BookingExpired:        true,
		BookingCancelled:      true,
	},
	BookingPaymentPending: {
		BookingConfirmed:     true,
		BookingPaymentFailed: true,
		BookingExpired:       true,
		BookingCancelled:     true,
	},
	BookingPaymentFailed: {
		BookingPaymentPending:        true,
		BookingPaymentFailedVerified: true,
		BookingExpired:               true,
		BookingCancelled:             true,
	},
	BookingConfirmed: {
		BookingPartiallyCancelled: true,
		BookingCancelled:          true,
	},
	BookingPartiallyCancelled: {
		BookingPartiallyCancelled: true,
		BookingCancelled:          true,
	},
}

// CanTransition reports whether the state machine permits moving a
// booking from one status to another.
func CanTransition(from, to string) bool {
	return bookingTransitions[from][to]
}

// IsTerminalBookingStatus reports whether a status can never move
// again. PAYMENT_FAILED is deliberately not terminal: a retry can take
// it back to PAYMENT_PENDING, and reconciliation can promote it to the
// audited PAYMENT_FAILED_VERIFIED.
func IsTerminalBookingStatus(status string) bool {
	switch status {
	case BookingExpired, BookingCancelled, BookingPaymentFailedVerified:
		return true
	}
	return false
}

// BookingMetadata carries the correlation handles a booking accrues as
// it moves through the payment flow. LockKey ties the booking to its
// hold entry on the event; the gateway IDs tie it to the external order
// and payment rows.
type BookingMetadata struct {
	LockKey          string `json:"lock_key,omitempty" bson:"lock_key,omitempty"`
	GatewayOrderID   string `json:"gateway_order_id,omitempty" bson:"gateway_order_id,omitempty"`
	GatewayPaymentID string `json:"gateway_payment_id,omitempty" bson:"gateway_payment_id,omitempty"`
	FailureReason    string `json:"failure_reason,omitempty" bson:"failure_reason,omitempty"`
}

// Booking is a purchaser's claim on a set of slots for one event.
// AmountTotal is the full order value in minor currency units;
// AmountRefunded accumulates across partial cancellations.
type Booking struct {
	ID             string          `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	EventID        string          `json:"event_id" bson:"event_id" validate:"required"`
	UserID         string          `json:"user_id" bson:"user_id" validate:"required"`
	PurchaserPhone string          `json:"purchaser_phone,omitempty" bson:"purchaser_phone,omitempty"`
	Status         string          `json:"status" bson:"status"`
	SlotCount      int             `json:"slot_count" bson:"slot_count" validate:"required,min=1,max=20"`
	AmountTotal    int64           `json:"amount_total" bson:"amount_total"`
	AmountRefunded int64           `json:"amount_refunded" bson:"amount_refunded"`
	Currency       string          `json:"currency" bson:"currency"`
	RefundStatus   string          `json:"refund_status" bson:"refund_status"`
	Metadata       BookingMetadata `json:"metadata" bson:"metadata"`
	CreatedAt      time.Time       `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" bson:"updated_at"`
}
