// Package payments wraps the external payment gateway. The service
// never trusts a client-reported payment outcome: every confirmation is
// signature-verified and every sweep decision re-checks the gateway.
package payments

import "context"

// PaidState is the reconciler's view of an order. Unknown means the
// gateway could not be reached or gave a non-answer, and callers must
// leave the booking untouched for a later sweep.
type PaidState int

const (
	NotPaid PaidState = iota
	Paid
	Unknown
)

func (s PaidState) String() string {
	switch s {
	case NotPaid:
		return "NOT_PAID"
	case Paid:
		return "PAID"
	case Unknown:
		return "UNKNOWN"
	}
	return "UNKNOWN"
}

// Order is the gateway-side shadow of a booking's payment intent.
// Amounts are in minor currency units.
type Order struct {
	ID         string `json:"id"`
	Amount     int64  `json:"amount"`
	AmountPaid int64  `json:"amount_paid"`
	Currency   string `json:"currency"`
	Receipt    string `json:"receipt"`
	Status     string `json:"status"`
}

// Payment is one capture attempt against an order.
type Payment struct {
	ID       string `json:"id"`
	OrderID  string `json:"order_id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
	Method   string `json:"method"`
}

// Refund is the gateway's record of money returned on a payment.
type Refund struct {
	ID        string `json:"id"`
	PaymentID string `json:"payment_id"`
	Amount    int64  `json:"amount"`
	Status    string `json:"status"`
}

// Gateway order/payment/refund statuses as the provider reports them.
const (
	OrderStatusPaid       = "paid"
	PaymentStatusCaptured = "captured"
	PaymentStatusFailed   = "failed"

	RefundStatusProcessed = "processed"
	RefundStatusFailed    = "failed"
)

type Gateway interface {
	CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*Order, error)
	GetOrder(ctx context.Context, orderID string) (*Order, error)
	GetPayment(ctx context.Context, paymentID string) (*Payment, error)
	// ListOrderPayments returns every payment attempt recorded against
	// an order, captured or not.
	ListOrderPayments(ctx context.Context, orderID string) ([]*Payment, error)
	CreateRefund(ctx context.Context, paymentID string, amount int64) (*Refund, error)
	// GetRefund reports where an issued refund stands; the reconciler
	// polls it until the provider settles or rejects the refund.
	GetRefund(ctx context.Context, refundID string) (*Refund, error)
	// VerifySignature checks the checkout callback signature over
	// "orderID|paymentID".
	VerifySignature(orderID, paymentID, signature string) bool
	// CheckPaid answers whether any capture landed on the order.
	CheckPaid(ctx context.Context, orderID string) (PaidState, error)
}
