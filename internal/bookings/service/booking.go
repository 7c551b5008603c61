package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	bookingserrors "pitchside/internal/bookings/errors"
	"pitchside/internal/bookings/repository"
	"pitchside/internal/bookings/validator"
	"pitchside/internal/payments"
	"pitchside/pkg/client"
	"pitchside/pkg/config"
	apperrors "pitchside/pkg/errors"
	"pitchside/pkg/model"
	"pitchside/pkg/sanitizer"
)

// CreateBookingRequest starts the flow: hold slots and open a booking
// for the purchaser identified by phone.
type CreateBookingRequest struct {
	EventID        string `json:"event_id"`
	SlotCount      int    `json:"slot_count"`
	Slots          []int  `json:"slots,omitempty"`
	PurchaserPhone string `json:"purchaser_phone"`
	PurchaserName  string `json:"purchaser_name,omitempty"`
}

// PaymentIntent is handed to the client to drive the gateway checkout.
type PaymentIntent struct {
	BookingID string `json:"booking_id"`
	OrderID   string `json:"order_id"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
}

// ConfirmPaymentRequest carries the checkout callback. The signature is
// the gateway's HMAC over "order_id|payment_id"; client-reported status
// is never trusted without it.
type ConfirmPaymentRequest struct {
	BookingID string `json:"booking_id"`
	PaymentID string `json:"payment_id"`
	Signature string `json:"signature"`
}

// UserDirectory resolves purchasers by phone.
type UserDirectory interface {
	FindOrCreateByPhone(phone, name string) (*client.User, error)
}

type BookingService interface {
	Create(ctx context.Context, req *CreateBookingRequest) (*model.Booking, *Hold, error)
	InitiatePayment(ctx context.Context, bookingID string) (*PaymentIntent, error)
	ConfirmPayment(ctx context.Context, req *ConfirmPaymentRequest) (*model.Booking, error)
	// ConfirmByOrder is the webhook path: the gateway tells us an order
	// was captured and we look the booking up by order id.
	ConfirmByOrder(ctx context.Context, orderID, paymentID string) (*model.Booking, error)
	// FailByOrder records a gateway-reported payment failure. A booking
	// that already moved on is left alone.
	FailByOrder(ctx context.Context, orderID, reason string) (*model.Booking, error)
	Cancel(ctx context.Context, bookingID string, slotCount int) (*model.Booking, error)
	Get(ctx context.Context, id string) (*model.Booking, error)
	ListByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Booking, int64, error)
}

type bookingService struct {
	repo         repository.BookingRepository
	slotRepo     repository.BookingSlotRepository
	eventRepo    repository.EventRepository
	refunds      repository.RefundRepository
	slotLock     SlotLockService
	gateway      payments.Gateway
	users        UserDirectory
	notifier     Notifier
	availability AvailabilityService
	validator    *validator.BookingValidator
	cfg          *config.Config
}

func NewBookingService(
	repo repository.BookingRepository,
	slotRepo repository.BookingSlotRepository,
	eventRepo repository.EventRepository,
	refunds repository.RefundRepository,
	slotLock SlotLockService,
	gateway payments.Gateway,
	users UserDirectory,
	notifier Notifier,
	availability AvailabilityService,
	v *validator.BookingValidator,
	cfg *config.Config,
) BookingService {
	return &bookingService{
		repo:         repo,
		slotRepo:     slotRepo,
		eventRepo:    eventRepo,
		refunds:      refunds,
		slotLock:     slotLock,
		gateway:      gateway,
		users:        users,
		notifier:     notifier,
		availability: availability,
		validator:    v,
		cfg:          cfg,
	}
}

// Create holds the requested slots, resolves the purchaser, and writes
// the booking plus one PENDING_PAYMENT slot row per held seat. The
// event's booked count is deliberately untouched here: only a confirmed
// payment increments it, so an abandoned hold never inflates occupancy.
func (s *bookingService) Create(ctx context.Context, req *CreateBookingRequest) (*model.Booking, *Hold, error) {
	req.PurchaserPhone = sanitizer.NormalizePhone(req.PurchaserPhone)
	req.PurchaserName = sanitizer.NormalizeName(req.PurchaserName)
	if req.PurchaserPhone == "" {
		return nil, nil, apperrors.InvalidInput("purchaser_phone must be a valid phone number")
	}

	holdReq := &validator.HoldRequest{
		EventID:   req.EventID,
		SlotCount: req.SlotCount,
		Slots:     req.Slots,
	}
	if err := s.validator.ValidateHold(holdReq); err != nil {
		return nil, nil, apperrors.Validation("Invalid booking request", map[string]any{"errors": err.Error()})
	}

	event, err := s.eventRepo.FindByID(ctx, req.EventID)
	if err != nil {
		return nil, nil, s.mapRepoError(err, req.EventID)
	}

	hold, err := s.slotLock.TryHold(ctx, req.EventID, req.SlotCount, req.Slots)
	if err != nil {
		return nil, nil, err
	}

	user, err := s.users.FindOrCreateByPhone(req.PurchaserPhone, req.PurchaserName)
	if err != nil {
		s.releaseHoldQuietly(ctx, req.EventID, hold.LockKey)
		return nil, nil, err
	}

	booking := &model.Booking{
		EventID:        req.EventID,
		UserID:         user.ID,
		PurchaserPhone: req.PurchaserPhone,
		Status:         model.BookingInitiated,
		SlotCount:      req.SlotCount,
		AmountTotal:    event.PricePerSlot * int64(req.SlotCount),
		Currency:       event.Currency,
		RefundStatus:   model.RefundNone,
		Metadata: model.BookingMetadata{
			LockKey: hold.LockKey,
		},
	}

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := s.repo.Create(sessCtx, booking); err != nil {
			return fmt.Errorf("failed to create booking: %w", err)
		}
		return s.slotRepo.InsertMany(sessCtx, pendingSlotRows(booking, hold.Slots))
	})
	if err != nil {
		s.releaseHoldQuietly(ctx, req.EventID, hold.LockKey)
		return nil, nil, apperrors.Internal("Failed to create booking", err)
	}

	s.cfg.Log.Info("Booking created",
		"booking_id", booking.ID,
		"event_id", booking.EventID,
		"user_id", booking.UserID,
		"slot_count", booking.SlotCount,
		"slots", hold.Slots,
	)

	return booking, hold, nil
}

func pendingSlotRows(booking *model.Booking, slots []int) []*model.BookingSlot {
	rows := make([]*model.BookingSlot, 0, len(slots))
	for _, n := range slots {
		slot := n
		rows = append(rows, &model.BookingSlot{
			BookingID:  booking.ID,
			EventID:    booking.EventID,
			SlotNumber: &slot,
			Status:     model.SlotPendingPayment,
		})
	}
	return rows
}

// InitiatePayment creates a gateway order for the booking and moves it
// to PAYMENT_PENDING. A retry from PAYMENT_FAILED has no live hold, so
// the booking's original slot numbers are re-acquired first; if someone
// else took them in the meantime the retry fails with a slot conflict.
func (s *bookingService) InitiatePayment(ctx context.Context, bookingID string) (*PaymentIntent, error) {
	booking, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, s.mapRepoError(err, bookingID)
	}

	switch booking.Status {
	case model.BookingInitiated, model.BookingPaymentFailed:
	case model.BookingPaymentPending:
		// Re-initiating a pending payment reuses the existing order.
		return &PaymentIntent{
			BookingID: booking.ID,
			OrderID:   booking.Metadata.GatewayOrderID,
			Amount:    booking.AmountTotal,
			Currency:  booking.Currency,
		}, nil
	default:
		return nil, apperrors.InvalidTransition(booking.Status, model.BookingPaymentPending)
	}

	lockKey, err := s.ensureLiveHold(ctx, booking)
	if err != nil {
		return nil, err
	}

	order, err := s.gateway.CreateOrder(ctx, booking.AmountTotal, booking.Currency, booking.ID)
	if err != nil {
		return nil, err
	}

	set := bson.M{
		"metadata.gateway_order_id": order.ID,
		"metadata.lock_key":         lockKey,
	}
	moved, err := s.repo.TransitionStatus(ctx, booking.ID, booking.Status, model.BookingPaymentPending, set)
	if err != nil {
		return nil, apperrors.Internal("Failed to move booking to payment pending", err)
	}
	if !moved {
		return nil, apperrors.InvalidTransition(booking.Status, model.BookingPaymentPending)
	}

	s.cfg.Log.Info("Payment initiated",
		"booking_id", booking.ID,
		"order_id", order.ID,
		"amount", booking.AmountTotal,
	)

	return &PaymentIntent{
		BookingID: booking.ID,
		OrderID:   order.ID,
		Amount:    booking.AmountTotal,
		Currency:  booking.Currency,
	}, nil
}

// ensureLiveHold checks the booking's hold is still on the event and
// re-acquires the booking's seats when it is gone. Rows still pending
// keep their exact numbers; rows the expiry sweep already cancelled are
// claimed back, on any free numbers if the originals were re-sold, and
// reinstated. A conflict here means the event genuinely has no room.
func (s *bookingService) ensureLiveHold(ctx context.Context, booking *model.Booking) (string, error) {
	event, err := s.eventRepo.FindByID(ctx, booking.EventID)
	if err != nil {
		return "", s.mapRepoError(err, booking.EventID)
	}

	if hold, ok := event.LockedSlots[booking.Metadata.LockKey]; ok && !hold.Expired(time.Now()) {
		return booking.Metadata.LockKey, nil
	}

	pending, err := s.slotRepo.SlotNumbersByStatus(ctx, booking.ID, model.SlotPendingPayment)
	if err != nil {
		return "", apperrors.Internal("Failed to load booking slots", err)
	}
	if len(pending) > 0 {
		newHold, err := s.slotLock.TryHold(ctx, booking.EventID, len(pending), pending)
		if err != nil {
			return "", err
		}
		s.cfg.Log.Info("Re-acquired hold",
			"booking_id", booking.ID,
			"lock_key", newHold.LockKey,
			"slots", newHold.Slots,
		)
		return newHold.LockKey, nil
	}

	cancelled, err := s.slotRepo.SlotNumbersByStatus(ctx, booking.ID, model.SlotCancelled)
	if err != nil {
		return "", apperrors.Internal("Failed to load booking slots", err)
	}
	if len(cancelled) == 0 {
		return "", apperrors.SlotConflict(booking.EventID, nil)
	}

	newHold, err := s.slotLock.TryHold(ctx, booking.EventID, len(cancelled), cancelled)
	if err != nil {
		if apperrors.AsAppError(err).Code != apperrors.CodeSlotConflict {
			return "", err
		}
		// The original numbers were re-sold; any free seats will do.
		newHold, err = s.slotLock.TryHold(ctx, booking.EventID, len(cancelled), nil)
		if err != nil {
			return "", err
		}
	}

	if err := s.slotRepo.ReinstateSlots(ctx, booking.ID, newHold.Slots); err != nil {
		s.releaseHoldQuietly(ctx, booking.EventID, newHold.LockKey)
		return "", apperrors.Internal("Failed to reinstate booking slots", err)
	}

	s.cfg.Log.Info("Restored released slots for booking",
		"booking_id", booking.ID,
		"lock_key", newHold.LockKey,
		"slots", newHold.Slots,
	)
	return newHold.LockKey, nil
}

// ConfirmPayment handles the client checkout callback. An invalid
// signature fails closed: the booking moves to PAYMENT_FAILED and its
// hold is released rather than left to linger.
func (s *bookingService) ConfirmPayment(ctx context.Context, req *ConfirmPaymentRequest) (*model.Booking, error) {
	booking, err := s.repo.FindByID(ctx, req.BookingID)
	if err != nil {
		return nil, s.mapRepoError(err, req.BookingID)
	}

	if booking.Status == model.BookingConfirmed {
		return booking, nil
	}
	if booking.Status != model.BookingPaymentPending {
		return nil, apperrors.InvalidTransition(booking.Status, model.BookingConfirmed)
	}

	if !s.gateway.VerifySignature(booking.Metadata.GatewayOrderID, req.PaymentID, req.Signature) {
		s.cfg.Log.Warn("Payment signature rejected",
			"booking_id", booking.ID,
			"order_id", booking.Metadata.GatewayOrderID,
		)
		set := bson.M{"metadata.failure_reason": "signature verification failed"}
		if _, err := s.repo.TransitionStatus(ctx, booking.ID, model.BookingPaymentPending, model.BookingPaymentFailed, set); err != nil {
			s.cfg.Log.Error("Failed to fail booking after bad signature", "booking_id", booking.ID, "error", err)
		}
		s.releaseHoldQuietly(ctx, booking.EventID, booking.Metadata.LockKey)
		return nil, apperrors.SignatureInvalid("payment signature does not match")
	}

	return s.confirm(ctx, booking, req.PaymentID)
}

func (s *bookingService) ConfirmByOrder(ctx context.Context, orderID, paymentID string) (*model.Booking, error) {
	booking, err := s.repo.FindByGatewayOrderID(ctx, orderID)
	if err != nil {
		return nil, s.mapRepoError(err, orderID)
	}

	if booking.Status == model.BookingConfirmed {
		return booking, nil
	}
	if booking.Status != model.BookingPaymentPending {
		return nil, apperrors.InvalidTransition(booking.Status, model.BookingConfirmed)
	}

	return s.confirm(ctx, booking, paymentID)
}

func (s *bookingService) FailByOrder(ctx context.Context, orderID, reason string) (*model.Booking, error) {
	booking, err := s.repo.FindByGatewayOrderID(ctx, orderID)
	if err != nil {
		return nil, s.mapRepoError(err, orderID)
	}

	if booking.Status != model.BookingPaymentPending {
		return booking, nil
	}

	set := bson.M{"metadata.failure_reason": reason}
	moved, err := s.repo.TransitionStatus(ctx, booking.ID, model.BookingPaymentPending, model.BookingPaymentFailed, set)
	if err != nil {
		return nil, apperrors.Internal("Failed to fail booking", err)
	}
	if moved {
		s.releaseHoldQuietly(ctx, booking.EventID, booking.Metadata.LockKey)
		booking.Status = model.BookingPaymentFailed
		s.notifier.BookingStatusChanged(ctx, booking)
		s.cfg.Log.Info("Booking payment failed",
			"booking_id", booking.ID,
			"order_id", orderID,
			"reason", reason,
		)
	}

	return booking, nil
}

// confirm settles a paid booking: it verifies capture against the
// gateway's own record, flips the status, activates the slot rows, and
// bumps the event's booked count in one transaction. Capacity lost
// between payment and confirmation turns into an automatic refund.
func (s *bookingService) confirm(ctx context.Context, booking *model.Booking, paymentID string) (*model.Booking, error) {
	payment, err := s.gateway.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.Status != payments.PaymentStatusCaptured {
		return nil, apperrors.InvalidInput(fmt.Sprintf("payment %s is not captured (status %s)", paymentID, payment.Status))
	}

	lockKey, err := s.ensureLiveHold(ctx, booking)
	if err != nil {
		appErr := apperrors.AsAppError(err)
		if appErr.Code == apperrors.CodeSlotConflict || appErr.Code == apperrors.CodeInsufficientCapacity {
			return nil, s.refundCapacityLost(ctx, booking, paymentID)
		}
		return nil, err
	}

	var confirmed bool
	var slotCount int
	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		set := bson.M{"metadata.gateway_payment_id": paymentID}
		moved, err := s.repo.TransitionStatus(sessCtx, booking.ID, model.BookingPaymentPending, model.BookingConfirmed, set)
		if err != nil {
			return fmt.Errorf("failed to confirm booking: %w", err)
		}
		if !moved {
			// Another confirmation won the race; do not activate twice.
			return nil
		}
		confirmed = true

		slotCount, err = s.slotRepo.ActivateSlots(sessCtx, booking.ID)
		if err != nil {
			return fmt.Errorf("failed to activate booking slots: %w", err)
		}

		if err := s.eventRepo.AdjustBookedSlots(sessCtx, booking.EventID, slotCount); err != nil {
			return fmt.Errorf("failed to update event capacity: %w", err)
		}

		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to confirm booking", "booking_id", booking.ID, "error", err)
		return nil, apperrors.Internal("Failed to confirm booking", err)
	}

	s.releaseHoldQuietly(ctx, booking.EventID, lockKey)

	booking, err = s.repo.FindByID(ctx, booking.ID)
	if err != nil {
		return nil, s.mapRepoError(err, booking.ID)
	}

	if confirmed {
		s.cfg.Log.Info("Booking confirmed",
			"booking_id", booking.ID,
			"payment_id", paymentID,
			"slot_count", slotCount,
		)
		s.notifier.BookingStatusChanged(ctx, booking)
	}

	return booking, nil
}

// refundCapacityLost handles a paid booking whose seats were given away
// after the hold lapsed: money was captured but the slots cannot be
// honored, so the booking is cancelled and the full amount refunded.
func (s *bookingService) refundCapacityLost(ctx context.Context, booking *model.Booking, paymentID string) error {
	set := bson.M{
		"metadata.gateway_payment_id": paymentID,
		"metadata.failure_reason":     "capacity lost before confirmation",
	}
	if _, err := s.repo.TransitionStatus(ctx, booking.ID, booking.Status, model.BookingCancelled, set); err != nil {
		return apperrors.Internal("Failed to cancel booking after capacity loss", err)
	}

	if _, err := s.slotRepo.CancelAllForBooking(ctx, booking.ID, model.SlotCancelled); err != nil {
		s.cfg.Log.Error("Failed to cancel slot rows after capacity loss", "booking_id", booking.ID, "error", err)
	}
	s.releaseHoldQuietly(ctx, booking.EventID, booking.Metadata.LockKey)

	booking.Metadata.GatewayPaymentID = paymentID
	if err := s.issueRefund(ctx, booking, booking.AmountTotal, model.RefundReasonCapacityLost); err != nil {
		s.cfg.Log.Error("Refund failed for capacity-lost booking, manual follow-up required",
			"booking_id", booking.ID,
			"payment_id", paymentID,
			"error", err,
		)
	}

	booking.Status = model.BookingCancelled
	s.notifier.BookingStatusChanged(ctx, booking)

	return apperrors.InsufficientCapacity(booking.EventID, booking.SlotCount, 0)
}

// Cancel releases slotCount seats from the booking. A slotCount of
// zero means a full cancellation of whatever is still active.
func (s *bookingService) Cancel(ctx context.Context, bookingID string, slotCount int) (*model.Booking, error) {
	booking, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, s.mapRepoError(err, bookingID)
	}

	switch booking.Status {
	case model.BookingConfirmed, model.BookingPartiallyCancelled:
		return s.cancelConfirmed(ctx, booking, slotCount)
	case model.BookingInitiated, model.BookingPaymentPending, model.BookingPaymentFailed:
		return s.cancelUnpaid(ctx, booking)
	default:
		return nil, apperrors.InvalidTransition(booking.Status, model.BookingCancelled)
	}
}

// cancelUnpaid drops a booking that never reached confirmation: no
// money moved, so only the hold, the slot rows, and the status change.
func (s *bookingService) cancelUnpaid(ctx context.Context, booking *model.Booking) (*model.Booking, error) {
	moved, err := s.repo.TransitionStatus(ctx, booking.ID, booking.Status, model.BookingCancelled, nil)
	if err != nil {
		return nil, apperrors.Internal("Failed to cancel booking", err)
	}
	if !moved {
		return nil, apperrors.InvalidTransition(booking.Status, model.BookingCancelled)
	}

	if _, err := s.slotRepo.CancelAllForBooking(ctx, booking.ID, model.SlotCancelled); err != nil {
		s.cfg.Log.Error("Failed to cancel slot rows", "booking_id", booking.ID, "error", err)
	}
	s.releaseHoldQuietly(ctx, booking.EventID, booking.Metadata.LockKey)

	booking.Status = model.BookingCancelled
	s.availability.CheckAndNotify(ctx, booking.EventID)
	s.notifier.BookingStatusChanged(ctx, booking)

	s.cfg.Log.Info("Unpaid booking cancelled", "booking_id", booking.ID)
	return booking, nil
}

// cancelConfirmed releases slotCount active seats and refunds the
// proportional share of the original amount, per-slot price being
// amount / total slots.
func (s *bookingService) cancelConfirmed(ctx context.Context, booking *model.Booking, slotCount int) (*model.Booking, error) {
	active, err := s.slotRepo.FindActiveByBooking(ctx, booking.ID)
	if err != nil {
		return nil, apperrors.Internal("Failed to load booking slots", err)
	}
	if slotCount == 0 {
		slotCount = len(active)
	}
	if err := s.validator.ValidateCancel(booking, slotCount, len(active)); err != nil {
		return nil, apperrors.Validation("Invalid cancellation", map[string]any{"errors": err.Error()})
	}

	fullCancel := slotCount == len(active)
	toStatus := model.BookingPartiallyCancelled
	if fullCancel {
		toStatus = model.BookingCancelled
	}
	refundAmount := booking.AmountTotal / int64(booking.SlotCount) * int64(slotCount)

	var freed []int
	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		freed, err = s.slotRepo.CancelSlots(sessCtx, booking.ID, slotCount, model.SlotCancelledRefundPending)
		if err != nil {
			return fmt.Errorf("failed to cancel booking slots: %w", err)
		}

		if err := s.eventRepo.AdjustBookedSlots(sessCtx, booking.EventID, -len(freed)); err != nil {
			return fmt.Errorf("failed to release event capacity: %w", err)
		}

		moved, err := s.repo.TransitionStatus(sessCtx, booking.ID, booking.Status, toStatus, nil)
		if err != nil {
			return fmt.Errorf("failed to update booking status: %w", err)
		}
		if !moved {
			return fmt.Errorf("booking %s moved out of %s during cancellation", booking.ID, booking.Status)
		}

		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to cancel booking", "booking_id", booking.ID, "error", err)
		return nil, apperrors.Internal("Failed to cancel booking", err)
	}

	s.releaseHoldQuietly(ctx, booking.EventID, booking.Metadata.LockKey)

	if err := s.issueRefund(ctx, booking, refundAmount, model.RefundReasonUserCancel); err != nil {
		// Seats are already released; the refund ledger records the
		// failure so a later sweep or operator can retry it.
		s.cfg.Log.Error("Refund initiation failed after cancellation",
			"booking_id", booking.ID,
			"amount", refundAmount,
			"error", err,
		)
	}

	booking, findErr := s.repo.FindByID(ctx, booking.ID)
	if findErr != nil {
		return nil, s.mapRepoError(findErr, booking.ID)
	}

	s.availability.CheckAndNotify(ctx, booking.EventID)
	s.notifier.BookingStatusChanged(ctx, booking)

	s.cfg.Log.Info("Booking cancelled",
		"booking_id", booking.ID,
		"freed_slots", freed,
		"refund_amount", refundAmount,
		"full_cancel", fullCancel,
	)

	return booking, nil
}

// issueRefund calls the gateway and appends the outcome to the refund
// ledger. Failed attempts leave a FAILED row; retries append new rows.
func (s *bookingService) issueRefund(ctx context.Context, booking *model.Booking, amount int64, reason string) error {
	if amount <= 0 {
		return nil
	}
	if booking.Metadata.GatewayPaymentID == "" {
		// The money owed still has to be visible somewhere: record a
		// ledger row an operator can settle by hand.
		entry := &model.Refund{
			BookingID: booking.ID,
			Amount:    amount,
			Currency:  booking.Currency,
			Reason:    model.RefundReasonManualRequired,
			Status:    model.RefundFailed,
		}
		if err := s.refunds.Insert(ctx, entry); err != nil {
			s.cfg.Log.Error("Failed to append refund ledger entry", "booking_id", booking.ID, "error", err)
		}
		if err := s.repo.AddRefundedAmount(ctx, booking.ID, 0, model.RefundFailed); err != nil {
			s.cfg.Log.Error("Failed to mark refund failure", "booking_id", booking.ID, "error", err)
		}
		return apperrors.RefundFailed(booking.ID, fmt.Errorf("booking has no gateway payment to refund"))
	}

	gwRefund, gwErr := s.gateway.CreateRefund(ctx, booking.Metadata.GatewayPaymentID, amount)

	entry := &model.Refund{
		BookingID: booking.ID,
		Amount:    amount,
		Currency:  booking.Currency,
		Reason:    reason,
	}
	refundStatus := model.RefundInitiated
	if gwErr != nil {
		entry.Status = model.RefundFailed
		refundStatus = model.RefundFailed
	} else {
		entry.GatewayRefundID = gwRefund.ID
		entry.Status = model.RefundInitiated
	}

	if err := s.refunds.Insert(ctx, entry); err != nil {
		s.cfg.Log.Error("Failed to append refund ledger entry", "booking_id", booking.ID, "error", err)
	}

	if gwErr != nil {
		if err := s.repo.AddRefundedAmount(ctx, booking.ID, 0, refundStatus); err != nil {
			s.cfg.Log.Error("Failed to mark refund failure", "booking_id", booking.ID, "error", err)
		}
		return apperrors.RefundFailed(booking.ID, gwErr)
	}

	if err := s.repo.AddRefundedAmount(ctx, booking.ID, amount, refundStatus); err != nil {
		return apperrors.Internal("Failed to record refunded amount", err)
	}

	s.cfg.Log.Info("Refund initiated",
		"booking_id", booking.ID,
		"gateway_refund_id", entry.GatewayRefundID,
		"amount", amount,
		"reason", reason,
	)
	return nil
}

func (s *bookingService) Get(ctx context.Context, id string) (*model.Booking, error) {
	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapRepoError(err, id)
	}
	return booking, nil
}

func (s *bookingService) ListByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Booking, int64, error) {
	bookings, err := s.repo.FindByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, 0, apperrors.Internal("Failed to list bookings", err)
	}

	count, err := s.repo.CountByUser(ctx, userID)
	if err != nil {
		return nil, 0, apperrors.Internal("Failed to count bookings", err)
	}

	return bookings, count, nil
}

func (s *bookingService) releaseHoldQuietly(ctx context.Context, eventID, lockKey string) {
	if lockKey == "" {
		return
	}
	if err := s.slotLock.Release(ctx, eventID, lockKey); err != nil {
		s.cfg.Log.Warn("Failed to release slot hold",
			"event_id", eventID,
			"lock_key", lockKey,
			"error", err,
		)
	}
}

func (s *bookingService) mapRepoError(err error, id string) error {
	if apperrors.IsAppError(err) {
		return err
	}
	switch {
	case errors.Is(err, bookingserrors.ErrEventNotFound):
		return apperrors.NotFoundWithID("Event", id)
	case errors.Is(err, bookingserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Booking", id)
	default:
		return apperrors.Internal("Storage operation failed", err)
	}
}
