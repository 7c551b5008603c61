package service

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"pitchside/internal/bookings/repository"
	"pitchside/internal/payments"
	"pitchside/pkg/config"
	apperrors "pitchside/pkg/errors"
	"pitchside/pkg/model"
)

// SweepStats summarizes one sweep run for logging.
type SweepStats struct {
	Scanned        int
	Expired        int
	Confirmed      int
	Verified       int
	Refunded       int
	RefundsSettled int
	Skipped        int
	Errors         int
}

// ReconciliationService runs the two background sweeps and the
// admin-triggered immediate poll of a single event.
type ReconciliationService interface {
	// ExpirySweep fails bookings whose hold TTL lapsed without payment
	// and frees their slot rows.
	ExpirySweep(ctx context.Context) (*SweepStats, error)
	// ReconcileSweep re-checks ambiguous payment states against the
	// gateway for bookings inside the reconciliation window.
	ReconcileSweep(ctx context.Context) (*SweepStats, error)
	ReconcileEvent(ctx context.Context, eventID string) (*SweepStats, error)
}

type reconciliationService struct {
	repo         repository.BookingRepository
	slotRepo     repository.BookingSlotRepository
	refunds      repository.RefundRepository
	slotLock     SlotLockService
	gateway      payments.Gateway
	bookings     BookingService
	availability AvailabilityService
	cfg          *config.Config
	now          func() time.Time
}

func NewReconciliationService(
	repo repository.BookingRepository,
	slotRepo repository.BookingSlotRepository,
	refunds repository.RefundRepository,
	slotLock SlotLockService,
	gateway payments.Gateway,
	bookings BookingService,
	availability AvailabilityService,
	cfg *config.Config,
) ReconciliationService {
	return &reconciliationService{
		repo:         repo,
		slotRepo:     slotRepo,
		refunds:      refunds,
		slotLock:     slotLock,
		gateway:      gateway,
		bookings:     bookings,
		availability: availability,
		cfg:          cfg,
		now:          time.Now,
	}
}

// sweepLookback bounds how far back a sweep scans. Anything older has
// been through dozens of sweeps already and is an operator problem, not
// a hot-path one.
const sweepLookback = 30 * 24 * time.Hour

func (s *reconciliationService) ExpirySweep(ctx context.Context) (*SweepStats, error) {
	now := s.now()
	stats := &SweepStats{}

	candidates, err := s.repo.FindStaleByStatus(ctx,
		[]string{model.BookingInitiated, model.BookingPaymentPending},
		now.Add(-sweepLookback),
		now.Add(-s.cfg.SlotHoldTTL),
		s.cfg.SweepBatchSize,
	)
	if err != nil {
		return stats, apperrors.Internal("Failed to load expiry candidates", err)
	}
	stats.Scanned = len(candidates)

	for _, candidate := range candidates {
		s.runItem(ctx, "expiry", candidate.ID, stats, func() error {
			return s.expireOne(ctx, candidate, now, stats)
		})
	}

	s.cfg.Log.Info("Expiry sweep finished",
		"scanned", stats.Scanned,
		"expired", stats.Expired,
		"skipped", stats.Skipped,
		"errors", stats.Errors,
	)
	return stats, nil
}

// expireOne fails one abandoned booking. Bookings inside the
// reconciliation window that carry a gateway order are left to the
// reconcile sweep; an order-less booking can never be reconciled and is
// always safe to expire. An order-bearing booking ends PAYMENT_FAILED,
// still reachable by reconciliation; an order-less one goes straight to
// the terminal EXPIRED.
func (s *reconciliationService) expireOne(ctx context.Context, candidate *model.Booking, now time.Time, stats *SweepStats) error {
	booking, err := s.repo.FindByID(ctx, candidate.ID)
	if err != nil {
		return err
	}
	if booking.Status != model.BookingInitiated && booking.Status != model.BookingPaymentPending {
		stats.Skipped++
		return nil
	}

	toStatus := model.BookingExpired
	if booking.Metadata.GatewayOrderID != "" {
		toStatus = model.BookingPaymentFailed
		age := now.Sub(booking.UpdatedAt)
		if age >= s.cfg.ReconcileWindowMin && age < s.cfg.ReconcileWindowMax {
			stats.Skipped++
			return nil
		}

		// The gateway is the source of truth; never expire a booking the
		// gateway says is paid, and never treat "could not check" as
		// not-paid.
		state, err := s.gateway.CheckPaid(ctx, booking.Metadata.GatewayOrderID)
		if err != nil || state == payments.Unknown {
			s.cfg.Log.Warn("Could not verify payment before expiry, deferring",
				"booking_id", booking.ID,
				"order_id", booking.Metadata.GatewayOrderID,
				"error", err,
			)
			stats.Skipped++
			return nil
		}
		if state == payments.Paid {
			s.cfg.Log.Info("Booking is paid at the gateway, deferring to reconciliation",
				"booking_id", booking.ID,
				"order_id", booking.Metadata.GatewayOrderID,
			)
			stats.Skipped++
			return nil
		}
	}

	set := bson.M{"metadata.failure_reason": "payment not completed within hold TTL"}
	moved, err := s.repo.TransitionStatus(ctx, booking.ID, booking.Status, toStatus, set)
	if err != nil {
		return err
	}
	if !moved {
		stats.Skipped++
		return nil
	}

	freed, err := s.slotRepo.CancelAllForBooking(ctx, booking.ID, model.SlotCancelled)
	if err != nil {
		s.cfg.Log.Error("Failed to cancel slot rows for expired booking", "booking_id", booking.ID, "error", err)
	}

	if booking.Metadata.LockKey != "" {
		if err := s.slotLock.Release(ctx, booking.EventID, booking.Metadata.LockKey); err != nil {
			s.cfg.Log.Warn("Failed to release hold for expired booking", "booking_id", booking.ID, "error", err)
		}
	}

	stats.Expired++
	s.cfg.Log.Info("Expired abandoned booking",
		"booking_id", booking.ID,
		"event_id", booking.EventID,
		"status", toStatus,
		"freed_slots", freed,
	)

	if len(freed) > 0 {
		s.availability.CheckAndNotify(ctx, booking.EventID)
	}
	return nil
}

func (s *reconciliationService) ReconcileSweep(ctx context.Context) (*SweepStats, error) {
	now := s.now()
	stats := &SweepStats{}

	candidates, err := s.repo.FindStaleByStatus(ctx,
		[]string{model.BookingPaymentPending, model.BookingPaymentFailed},
		now.Add(-s.cfg.ReconcileWindowMax),
		now.Add(-s.cfg.ReconcileWindowMin),
		s.cfg.SweepBatchSize,
	)
	if err != nil {
		return stats, apperrors.Internal("Failed to load reconciliation candidates", err)
	}
	stats.Scanned = len(candidates)

	for _, candidate := range candidates {
		s.runItem(ctx, "reconcile", candidate.ID, stats, func() error {
			return s.reconcileOne(ctx, candidate.ID, stats)
		})
	}

	s.settleRefunds(ctx, stats)

	s.cfg.Log.Info("Reconciliation sweep finished",
		"scanned", stats.Scanned,
		"confirmed", stats.Confirmed,
		"verified", stats.Verified,
		"refunded", stats.Refunded,
		"refunds_settled", stats.RefundsSettled,
		"skipped", stats.Skipped,
		"errors", stats.Errors,
	)
	return stats, nil
}

// settleRefunds polls the gateway for every refund still in flight and
// closes out the ones the provider has resolved. A settled refund also
// flips the booking's refund-pending slot rows to their terminal
// CANCELLED_REFUNDED state.
func (s *reconciliationService) settleRefunds(ctx context.Context, stats *SweepStats) {
	inFlight, err := s.refunds.FindByStatus(ctx, model.RefundInitiated, s.cfg.SweepBatchSize)
	if err != nil {
		stats.Errors++
		s.cfg.Log.Error("Failed to load in-flight refunds", "error", err)
		return
	}

	for _, refund := range inFlight {
		s.runItem(ctx, "refund-settle", refund.BookingID, stats, func() error {
			return s.settleOneRefund(ctx, refund, stats)
		})
	}
}

func (s *reconciliationService) settleOneRefund(ctx context.Context, refund *model.Refund, stats *SweepStats) error {
	gwRefund, err := s.gateway.GetRefund(ctx, refund.GatewayRefundID)
	if err != nil {
		s.cfg.Log.Warn("Gateway unavailable during refund settlement, retrying next sweep",
			"booking_id", refund.BookingID,
			"gateway_refund_id", refund.GatewayRefundID,
			"error", err,
		)
		stats.Skipped++
		return nil
	}

	switch gwRefund.Status {
	case payments.RefundStatusProcessed:
		if err := s.refunds.UpdateStatus(ctx, refund.ID, model.RefundCompleted); err != nil {
			return err
		}
		if _, err := s.slotRepo.MarkRefunded(ctx, refund.BookingID); err != nil {
			s.cfg.Log.Error("Failed to close out refunded slot rows",
				"booking_id", refund.BookingID, "error", err)
		}
		if err := s.markBookingRefundSettled(ctx, refund.BookingID); err != nil {
			s.cfg.Log.Error("Failed to update booking refund status",
				"booking_id", refund.BookingID, "error", err)
		}
		stats.RefundsSettled++
		s.cfg.Log.Info("Refund settled",
			"booking_id", refund.BookingID,
			"gateway_refund_id", refund.GatewayRefundID,
			"amount", refund.Amount,
		)

	case payments.RefundStatusFailed:
		if err := s.refunds.UpdateStatus(ctx, refund.ID, model.RefundFailed); err != nil {
			return err
		}
		if err := s.repo.AddRefundedAmount(ctx, refund.BookingID, 0, model.RefundFailed); err != nil {
			s.cfg.Log.Error("Failed to update booking refund status",
				"booking_id", refund.BookingID, "error", err)
		}
		s.cfg.Log.Error("Gateway rejected refund, manual follow-up required",
			"booking_id", refund.BookingID,
			"gateway_refund_id", refund.GatewayRefundID,
			"amount", refund.Amount,
		)

	default:
		// Still pending at the provider.
		stats.Skipped++
	}

	return nil
}

// markBookingRefundSettled promotes the booking's refund status to
// COMPLETED once no other refund of its is still in flight.
func (s *reconciliationService) markBookingRefundSettled(ctx context.Context, bookingID string) error {
	rows, err := s.refunds.FindByBooking(ctx, bookingID)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if row.Status == model.RefundInitiated {
			return nil
		}
	}
	return s.repo.AddRefundedAmount(ctx, bookingID, 0, model.RefundCompleted)
}

func (s *reconciliationService) ReconcileEvent(ctx context.Context, eventID string) (*SweepStats, error) {
	stats := &SweepStats{}

	candidates, err := s.repo.FindByEventInStatus(ctx, eventID,
		[]string{model.BookingPaymentPending, model.BookingPaymentFailed},
		s.cfg.SweepBatchSize,
	)
	if err != nil {
		return stats, apperrors.Internal("Failed to load event reconciliation candidates", err)
	}
	stats.Scanned = len(candidates)

	for _, candidate := range candidates {
		s.runItem(ctx, "reconcile-event", candidate.ID, stats, func() error {
			return s.reconcileOne(ctx, candidate.ID, stats)
		})
	}

	s.cfg.Log.Info("Event reconciliation finished",
		"event_id", eventID,
		"scanned", stats.Scanned,
		"confirmed", stats.Confirmed,
		"verified", stats.Verified,
		"refunded", stats.Refunded,
		"skipped", stats.Skipped,
		"errors", stats.Errors,
	)
	return stats, nil
}

// reconcileOne resolves one booking against the gateway's ground truth.
func (s *reconciliationService) reconcileOne(ctx context.Context, bookingID string, stats *SweepStats) error {
	booking, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		return err
	}

	// Another process may have resolved it since the query ran.
	if model.IsTerminalBookingStatus(booking.Status) || booking.Status == model.BookingConfirmed {
		stats.Skipped++
		return nil
	}
	if booking.Metadata.GatewayOrderID == "" {
		stats.Skipped++
		return nil
	}

	state, err := s.gateway.CheckPaid(ctx, booking.Metadata.GatewayOrderID)
	if err != nil || state == payments.Unknown {
		s.cfg.Log.Warn("Gateway unavailable during reconciliation, retrying next sweep",
			"booking_id", booking.ID,
			"order_id", booking.Metadata.GatewayOrderID,
			"error", err,
		)
		stats.Skipped++
		return nil
	}

	switch state {
	case payments.Paid:
		return s.settlePaid(ctx, booking, stats)

	case payments.NotPaid:
		if booking.Status == model.BookingPaymentFailed {
			// Double-checked against the gateway: promote to the audited
			// terminal state.
			moved, err := s.repo.TransitionStatus(ctx, booking.ID, model.BookingPaymentFailed, model.BookingPaymentFailedVerified, nil)
			if err != nil {
				return err
			}
			if moved {
				stats.Verified++
			} else {
				stats.Skipped++
			}
			return nil
		}
		// PAYMENT_PENDING and not paid yet: the purchaser may still be
		// mid-checkout. The expiry sweep owns giving up on these.
		stats.Skipped++
		return nil
	}

	return nil
}

// settlePaid heals a booking whose payment landed at the gateway but
// whose local confirmation never did. A PAYMENT_FAILED booking is first
// moved back to PAYMENT_PENDING so the normal confirmation path runs.
func (s *reconciliationService) settlePaid(ctx context.Context, booking *model.Booking, stats *SweepStats) error {
	paymentID, err := s.capturedPaymentID(ctx, booking.Metadata.GatewayOrderID)
	if err != nil {
		return err
	}
	if paymentID == "" {
		return fmt.Errorf("order %s reports paid but has no captured payment", booking.Metadata.GatewayOrderID)
	}

	if booking.Status == model.BookingPaymentFailed {
		moved, err := s.repo.TransitionStatus(ctx, booking.ID, model.BookingPaymentFailed, model.BookingPaymentPending, nil)
		if err != nil {
			return err
		}
		if !moved {
			stats.Skipped++
			return nil
		}
	}

	confirmed, err := s.bookings.ConfirmByOrder(ctx, booking.Metadata.GatewayOrderID, paymentID)
	if err != nil {
		if apperrors.AsAppError(err).Code == apperrors.CodeInsufficientCapacity {
			// Slots were re-sold while the payment sat unresolved; the
			// late payer got a refund instead of someone else's seats.
			stats.Refunded++
			s.cfg.Log.Warn("Reconciled paid booking by refund, capacity was lost",
				"booking_id", booking.ID,
				"order_id", booking.Metadata.GatewayOrderID,
			)
			return nil
		}
		return err
	}

	stats.Confirmed++
	s.cfg.Log.Info("Reconciled paid booking",
		"booking_id", confirmed.ID,
		"order_id", booking.Metadata.GatewayOrderID,
		"payment_id", paymentID,
	)
	return nil
}

func (s *reconciliationService) capturedPaymentID(ctx context.Context, orderID string) (string, error) {
	list, err := s.gateway.ListOrderPayments(ctx, orderID)
	if err != nil {
		return "", err
	}
	for _, p := range list {
		if p.Status == payments.PaymentStatusCaptured {
			return p.ID, nil
		}
	}
	return "", nil
}

// runItem isolates one booking's processing so a panic or error cannot
// abort the rest of the sweep.
func (s *reconciliationService) runItem(ctx context.Context, sweep, bookingID string, stats *SweepStats, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			stats.Errors++
			s.cfg.Log.Error("Sweep item panicked",
				"sweep", sweep,
				"booking_id", bookingID,
				"panic", r,
			)
		}
	}()

	if err := fn(); err != nil {
		stats.Errors++
		s.cfg.Log.Error("Sweep item failed",
			"sweep", sweep,
			"booking_id", bookingID,
			"error", err,
		)
	}
}

