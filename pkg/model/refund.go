package model

import "time"

// Refund reasons recorded on the append-only refund ledger.
// MANUAL_REQUIRED marks money owed that the service could not send to
// the gateway, usually a booking that lost its payment id; an operator
// settles those by hand.
const (
	RefundReasonUserCancel     = "USER_CANCELLATION"
	RefundReasonCapacityLost   = "CAPACITY_LOST"
	RefundReasonReconciler     = "RECONCILIATION"
	RefundReasonManualRequired = "MANUAL_REQUIRED"
)

// Refund is one ledger entry for money returned against a booking.
// Rows are append-only across attempts: a failed gateway call produces
// a FAILED row and a later retry produces a fresh row rather than
// mutating the first. A row's own status still advances, INITIATED to
// COMPLETED or FAILED, as the reconciler polls the gateway.
type Refund struct {
	ID              string    `json:"id,omitempty" bson:"_id,omitempty"`
	BookingID       string    `json:"booking_id" bson:"booking_id" validate:"required"`
	GatewayRefundID string    `json:"gateway_refund_id,omitempty" bson:"gateway_refund_id,omitempty"`
	Amount          int64     `json:"amount" bson:"amount" validate:"required,min=1"`
	Currency        string    `json:"currency" bson:"currency"`
	Reason          string    `json:"reason" bson:"reason"`
	Status          string    `json:"status" bson:"status"`
	CreatedAt       time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt       time.Time `json:"updated_at,omitempty" bson:"updated_at,omitempty"`
}
