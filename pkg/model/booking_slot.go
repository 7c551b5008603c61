package model

import "time"

// Booking-slot row states. A row is written PENDING_PAYMENT when its
// booking takes a hold, flips to ACTIVE on payment confirmation, and
// ends CANCELLED (abandoned before payment) or CANCELLED_REFUND_PENDING
// (cancelled after payment, money on its way back). Once the gateway
// reports the refund settled the row closes out as CANCELLED_REFUNDED.
const (
	SlotPendingPayment         = "PENDING_PAYMENT"
	SlotActive                 = "ACTIVE"
	SlotCancelled              = "CANCELLED"
	SlotCancelledRefundPending = "CANCELLED_REFUND_PENDING"
	SlotCancelledRefunded      = "CANCELLED_REFUNDED"
)

// BookingSlot is one seat inside a booking. SlotNumber is a pointer so
// a row without an assigned number round-trips as absent, not as zero.
type BookingSlot struct {
	ID         string    `json:"id,omitempty" bson:"_id,omitempty"`
	BookingID  string    `json:"booking_id" bson:"booking_id" validate:"required"`
	EventID    string    `json:"event_id" bson:"event_id" validate:"required"`
	SlotNumber *int      `json:"slot_number,omitempty" bson:"slot_number,omitempty"`
	Status     string    `json:"status" bson:"status"`
	CreatedAt  time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" bson:"updated_at"`
}
