package service

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"pitchside/internal/bookings/validator"
	"pitchside/internal/payments"
	"pitchside/pkg/client"
	apperrors "pitchside/pkg/errors"
	"pitchside/pkg/model"
)

const (
	testBookingID = "66b1f0a2c3d4e5f6a7b8c9d1"
	testOrderID   = "order_test001"
	testPaymentID = "pay_test001"
)

type bookingFixture struct {
	repo         *mockBookingRepo
	slotRepo     *mockSlotRepo
	events       *mockEventRepo
	refunds      *mockRefundRepo
	slotLock     *mockSlotLock
	gateway      *mockGateway
	users        *mockUsers
	notifier     *mockNotifier
	availability *mockAvailability
	svc          BookingService
}

func newBookingFixture() *bookingFixture {
	cfg := testConfig()
	f := &bookingFixture{
		repo:         &mockBookingRepo{},
		slotRepo:     &mockSlotRepo{},
		events:       &mockEventRepo{},
		refunds:      &mockRefundRepo{},
		slotLock:     &mockSlotLock{},
		gateway:      &mockGateway{},
		users:        &mockUsers{},
		notifier:     &mockNotifier{},
		availability: &mockAvailability{},
	}
	f.svc = NewBookingService(
		f.repo, f.slotRepo, f.events, f.refunds,
		f.slotLock, f.gateway, f.users, f.notifier,
		f.availability, validator.NewBookingValidator(cfg.Log), cfg,
	)
	return f
}

func testEvent() *model.Event {
	return &model.Event{
		ID:           testEventID,
		Name:         "City Derby",
		Capacity:     10,
		PricePerSlot: 2500,
		Currency:     "INR",
		LockedSlots:  map[string]model.SlotHold{},
	}
}

func TestCreateBookingWritesPendingSlotRows(t *testing.T) {
	f := newBookingFixture()
	event := testEvent()

	f.events.FindByIDFunc = func(_ context.Context, _ string) (*model.Event, error) {
		return event, nil
	}
	f.slotLock.TryHoldFunc = func(_ context.Context, eventID string, slotCount int, requested []int) (*Hold, error) {
		return &Hold{LockKey: "lk-1", EventID: eventID, Slots: []int{1, 2, 3}, ExpiresAt: time.Now().Add(10 * time.Minute)}, nil
	}
	f.repo.CreateFunc = func(_ context.Context, booking *model.Booking) error {
		booking.ID = testBookingID
		return nil
	}

	var inserted []*model.BookingSlot
	f.slotRepo.InsertManyFunc = func(_ context.Context, rows []*model.BookingSlot) error {
		inserted = rows
		return nil
	}

	booking, hold, err := f.svc.Create(context.Background(), &CreateBookingRequest{
		EventID:        testEventID,
		SlotCount:      3,
		PurchaserPhone: "+972501234567",
		PurchaserName:  "  Dana Levi ",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if booking.Status != model.BookingInitiated {
		t.Errorf("expected status %s, got %s", model.BookingInitiated, booking.Status)
	}
	if booking.AmountTotal != 7500 {
		t.Errorf("expected amount 7500, got %d", booking.AmountTotal)
	}
	if booking.Currency != "INR" {
		t.Errorf("expected event currency, got %s", booking.Currency)
	}
	if booking.Metadata.LockKey != "lk-1" {
		t.Errorf("expected lock key on metadata, got %q", booking.Metadata.LockKey)
	}
	if hold == nil || !reflect.DeepEqual(hold.Slots, []int{1, 2, 3}) {
		t.Fatalf("unexpected hold: %+v", hold)
	}

	if len(inserted) != 3 {
		t.Fatalf("expected 3 slot rows, got %d", len(inserted))
	}
	for i, row := range inserted {
		if row.Status != model.SlotPendingPayment {
			t.Errorf("row %d: expected status %s, got %s", i, model.SlotPendingPayment, row.Status)
		}
		if row.BookingID != testBookingID {
			t.Errorf("row %d: expected booking id %s, got %s", i, testBookingID, row.BookingID)
		}
		if row.SlotNumber == nil || *row.SlotNumber != i+1 {
			t.Errorf("row %d: unexpected slot number %v", i, row.SlotNumber)
		}
	}
}

func TestCreateBookingReleasesHoldWhenUserLookupFails(t *testing.T) {
	f := newBookingFixture()

	f.events.FindByIDFunc = func(_ context.Context, _ string) (*model.Event, error) {
		return testEvent(), nil
	}
	f.slotLock.TryHoldFunc = func(_ context.Context, eventID string, _ int, _ []int) (*Hold, error) {
		return &Hold{LockKey: "lk-1", EventID: eventID, Slots: []int{1}}, nil
	}
	f.users.FindOrCreateByPhoneFunc = func(_, _ string) (*client.User, error) {
		return nil, errors.New("users service unavailable")
	}

	_, _, err := f.svc.Create(context.Background(), &CreateBookingRequest{
		EventID:        testEventID,
		SlotCount:      1,
		PurchaserPhone: "+972501234567",
	})
	if err == nil {
		t.Fatal("expected error from the user lookup")
	}
	if len(f.slotLock.Released) != 1 || f.slotLock.Released[0] != "lk-1" {
		t.Errorf("hold must be released on failure, got %v", f.slotLock.Released)
	}
}

func TestCreateBookingRejectsInvalidPhone(t *testing.T) {
	f := newBookingFixture()

	_, _, err := f.svc.Create(context.Background(), &CreateBookingRequest{
		EventID:        testEventID,
		SlotCount:      1,
		PurchaserPhone: "not-a-phone",
	})
	assertErrorCode(t, err, apperrors.CodeInvalidInput)
}

func TestInitiatePaymentCreatesGatewayOrder(t *testing.T) {
	f := newBookingFixture()
	booking := &model.Booking{
		ID:          testBookingID,
		EventID:     testEventID,
		Status:      model.BookingInitiated,
		SlotCount:   2,
		AmountTotal: 5000,
		Currency:    "INR",
		Metadata:    model.BookingMetadata{LockKey: "lk-1"},
	}
	event := testEvent()
	event.LockedSlots["lk-1"] = model.SlotHold{Slots: []int{1, 2}, ExpiresAt: time.Now().Add(5 * time.Minute)}

	f.repo.FindByIDFunc = func(_ context.Context, _ string) (*model.Booking, error) {
		return booking, nil
	}
	f.events.FindByIDFunc = func(_ context.Context, _ string) (*model.Event, error) {
		return event, nil
	}
	f.gateway.CreateOrderFunc = func(_ context.Context, amount int64, currency, receipt string) (*payments.Order, error) {
		if amount != 5000 || currency != "INR" || receipt != testBookingID {
			t.Errorf("unexpected order request: %d %s %s", amount, currency, receipt)
		}
		return &payments.Order{ID: testOrderID, Amount: amount, Currency: currency}, nil
	}
	f.repo.TransitionStatusFunc = func(_ context.Context, id, from, to string, set bson.M) (bool, error) {
		if from != model.BookingInitiated || to != model.BookingPaymentPending {
			t.Errorf("unexpected transition %s -> %s", from, to)
		}
		if set["metadata.gateway_order_id"] != testOrderID {
			t.Errorf("order id not recorded: %v", set)
		}
		return true, nil
	}

	intent, err := f.svc.InitiatePayment(context.Background(), testBookingID)
	if err != nil {
		t.Fatalf("InitiatePayment: %v", err)
	}
	if intent.OrderID != testOrderID || intent.Amount != 5000 {
		t.Errorf("unexpected intent: %+v", intent)
	}
}

func TestInitiatePaymentReusesPendingOrder(t *testing.T) {
	f := newBookingFixture()
	booking := &model.Booking{
		ID:          testBookingID,
		Status:      model.BookingPaymentPending,
		AmountTotal: 5000,
		Currency:    "INR",
		Metadata:    model.BookingMetadata{GatewayOrderID: testOrderID},
	}
	f.repo.FindByIDFunc = func(_ context.Context, _ string) (*model.Booking, error) {
		return booking, nil
	}
	f.gateway.CreateOrderFunc = func(_ context.Context, _ int64, _, _ string) (*payments.Order, error) {
		t.Fatal("must not create a second order for a pending payment")
		return nil, nil
	}

	intent, err := f.svc.InitiatePayment(context.Background(), testBookingID)
	if err != nil {
		t.Fatalf("InitiatePayment: %v", err)
	}
	if intent.OrderID != testOrderID {
		t.Errorf("expected existing order %s, got %s", testOrderID, intent.OrderID)
	}
}

func TestInitiatePaymentRetryReacquiresOriginalSlots(t *testing.T) {
	f := newBookingFixture()
	booking := &model.Booking{
		ID:          testBookingID,
		EventID:     testEventID,
		Status:      model.BookingPaymentFailed,
		SlotCount:   2,
		AmountTotal: 5000,
		Currency:    "INR",
		Metadata:    model.BookingMetadata{LockKey: "lk-old"},
	}

	f.repo.FindByIDFunc = func(_ context.Context, _ string) (*model.Booking, error) {
		return booking, nil
	}
	// The old hold is gone from the event.
	f.events.FindByIDFunc = func(_ context.Context, _ string) (*model.Event, error) {
		return testEvent(), nil
	}
	f.slotRepo.SlotNumbersByStatusFunc = func(_ context.Context, bookingID, status string) ([]int, error) {
		if status != model.SlotPendingPayment {
			t.Errorf("expected pending rows lookup, got %s", status)
		}
		return []int{4, 5}, nil
	}
	f.slotLock.TryHoldFunc = func(_ context.Context, _ string, slotCount int, requested []int) (*Hold, error) {
		if !reflect.DeepEqual(requested, []int{4, 5}) {
			t.Errorf("retry must request the original slot numbers, got %v", requested)
		}
		return &Hold{LockKey: "lk-new", Slots: requested}, nil
	}
	f.gateway.CreateOrderFunc = func(_ context.Context, amount int64, currency, receipt string) (*payments.Order, error) {
		return &payments.Order{ID: "order_retry", Amount: amount, Currency: currency}, nil
	}
	f.repo.TransitionStatusFunc = func(_ context.Context, _, from, to string, set bson.M) (bool, error) {
		if from != model.BookingPaymentFailed || to != model.BookingPaymentPending {
			t.Errorf("unexpected transition %s -> %s", from, to)
		}
		if set["metadata.lock_key"] != "lk-new" {
			t.Errorf("new lock key not recorded: %v", set)
		}
		return true, nil
	}

	if _, err := f.svc.InitiatePayment(context.Background(), testBookingID); err != nil {
		t.Fatalf("InitiatePayment: %v", err)
	}
}

func TestInitiatePaymentRetryRestoresCancelledRows(t *testing.T) {
	f := newBookingFixture()
	booking := &model.Booking{
		ID:          testBookingID,
		EventID:     testEventID,
		Status:      model.BookingPaymentFailed,
		SlotCount:   2,
		AmountTotal: 5000,
		Currency:    "INR",
		Metadata:    model.BookingMetadata{LockKey: "lk-old"},
	}

	f.repo.FindByIDFunc = func(_ context.Context, _ string) (*model.Booking, error) {
		return booking, nil
	}
	f.events.FindByIDFunc = func(_ context.Context, _ string) (*model.Event, error) {
		return testEvent(), nil
	}
	// The expiry sweep already released the rows before the retry.
	f.slotRepo.SlotNumbersByStatusFunc = func(_ context.Context, _, status string) ([]int, error) {
		if status == model.SlotCancelled {
			return []int{4, 5}, nil
		}
		return nil, nil
	}
	f.slotLock.TryHoldFunc = func(_ context.Context, _ string, slotCount int, requested []int) (*Hold, error) {
		if !reflect.DeepEqual(requested, []int{4, 5}) {
			t.Errorf("retry must request the released slot numbers, got %v", requested)
		}
		return &Hold{LockKey: "lk-new", Slots: requested}, nil
	}
	f.gateway.CreateOrderFunc = func(_ context.Context, amount int64, currency, receipt string) (*payments.Order, error) {
		return &payments.Order{ID: "order_retry", Amount: amount, Currency: currency}, nil
	}
	f.repo.TransitionStatusFunc = func(_ context.Context, _, from, to string, set bson.M) (bool, error) {
		if from != model.BookingPaymentFailed || to != model.BookingPaymentPending {
			t.Errorf("unexpected transition %s -> %s", from, to)
		}
		return true, nil
	}

	if _, err := f.svc.InitiatePayment(context.Background(), testBookingID); err != nil {
		t.Fatalf("InitiatePayment: %v", err)
	}
	if !reflect.DeepEqual(f.slotRepo.Reinstated, [][]int{{4, 5}}) {
		t.Errorf("cancelled rows were not reinstated: %v", f.slotRepo.Reinstated)
	}
}

func TestConfirmPaymentIdempotentOnConfirmedBooking(t *testing.T) {
	f := newBookingFixture()
	booking := &model.Booking{ID: testBookingID, Status: model.BookingConfirmed}
	f.repo.FindByIDFunc = func(_ context.Context, _ string) (*model.Booking, error) {
		return booking, nil
	}
	f.gateway.GetPaymentFunc = func(_ context.Context, _ string) (*payments.Payment, error) {
		t.Fatal("confirmed booking must not hit the gateway again")
		return nil, nil
	}

	got, err := f.svc.ConfirmPayment(context.Background(), &ConfirmPaymentRequest{
		BookingID: testBookingID, PaymentID: testPaymentID, Signature: "sig",
	})
	if err != nil {
		t.Fatalf("ConfirmPayment: %v", err)
	}
	if got.Status != model.BookingConfirmed {
		t.Errorf("expected confirmed booking back, got %s", got.Status)
	}
}

func TestConfirmPaymentBadSignatureFailsClosed(t *testing.T) {
	f := newBookingFixture()
	booking := &model.Booking{
		ID:      testBookingID,
		EventID: testEventID,
		Status:  model.BookingPaymentPending,
		Metadata: model.BookingMetadata{
			LockKey:        "lk-1",
			GatewayOrderID: testOrderID,
		},
	}
	f.repo.FindByIDFunc = func(_ context.Context, _ string) (*model.Booking, error) {
		return booking, nil
	}
	f.gateway.VerifySignatureFunc = func(_, _, _ string) bool { return false }

	failed := false
	f.repo.TransitionStatusFunc = func(_ context.Context, _, from, to string, set bson.M) (bool, error) {
		if from == model.BookingPaymentPending && to == model.BookingPaymentFailed {
			failed = true
		}
		return true, nil
	}

	_, err := f.svc.ConfirmPayment(context.Background(), &ConfirmPaymentRequest{
		BookingID: testBookingID, PaymentID: testPaymentID, Signature: "forged",
	})
	assertErrorCode(t, err, apperrors.CodeSignatureInvalid)

	if !failed {
		t.Error("booking was not moved to PAYMENT_FAILED")
	}
	if len(f.slotLock.Released) != 1 || f.slotLock.Released[0] != "lk-1" {
		t.Errorf("hold was not released: %v", f.slotLock.Released)
	}
}

func TestConfirmPaymentActivatesSlotsAndBumpsCapacity(t *testing.T) {
	f := newBookingFixture()
	status := model.BookingPaymentPending
	booking := &model.Booking{
		ID:        testBookingID,
		EventID:   testEventID,
		SlotCount: 3,
		Metadata: model.BookingMetadata{
			LockKey:        "lk-1",
			GatewayOrderID: testOrderID,
		},
	}
	event := testEvent()
	event.LockedSlots["lk-1"] = model.SlotHold{Slots: []int{1, 2, 3}, ExpiresAt: time.Now().Add(5 * time.Minute)}

	f.repo.FindByIDFunc = func(_ context.Context, _ string) (*model.Booking, error) {
		b := *booking
		b.Status = status
		return &b, nil
	}
	f.events.FindByIDFunc = func(_ context.Context, _ string) (*model.Event, error) {
		return event, nil
	}
	f.gateway.GetPaymentFunc = func(_ context.Context, paymentID string) (*payments.Payment, error) {
		return &payments.Payment{ID: paymentID, OrderID: testOrderID, Status: payments.PaymentStatusCaptured}, nil
	}
	f.repo.TransitionStatusFunc = func(_ context.Context, _, from, to string, set bson.M) (bool, error) {
		if from != model.BookingPaymentPending || to != model.BookingConfirmed {
			t.Errorf("unexpected transition %s -> %s", from, to)
		}
		if set["metadata.gateway_payment_id"] != testPaymentID {
			t.Errorf("payment id not recorded: %v", set)
		}
		status = model.BookingConfirmed
		return true, nil
	}
	f.slotRepo.ActivateSlotsFunc = func(_ context.Context, bookingID string) (int, error) {
		return 3, nil
	}

	var delta int
	f.events.AdjustBookedSlotsFunc = func(_ context.Context, _ string, d int) error {
		delta = d
		return nil
	}

	got, err := f.svc.ConfirmPayment(context.Background(), &ConfirmPaymentRequest{
		BookingID: testBookingID, PaymentID: testPaymentID, Signature: "good",
	})
	if err != nil {
		t.Fatalf("ConfirmPayment: %v", err)
	}

	if got.Status != model.BookingConfirmed {
		t.Errorf("expected CONFIRMED, got %s", got.Status)
	}
	if delta != 3 {
		t.Errorf("expected booked count bump of 3, got %d", delta)
	}
	if len(f.slotLock.Released) != 1 {
		t.Errorf("hold should be released exactly once, got %v", f.slotLock.Released)
	}
	if !reflect.DeepEqual(f.notifier.StatusChanges, []string{model.BookingConfirmed}) {
		t.Errorf("expected a confirmation notification, got %v", f.notifier.StatusChanges)
	}
}

func TestConfirmPaymentCapacityLostRefundsInFull(t *testing.T) {
	f := newBookingFixture()
	booking := &model.Booking{
		ID:          testBookingID,
		EventID:     testEventID,
		Status:      model.BookingPaymentPending,
		SlotCount:   2,
		AmountTotal: 5000,
		Currency:    "INR",
		Metadata: model.BookingMetadata{
			LockKey:        "lk-dead",
			GatewayOrderID: testOrderID,
		},
	}

	f.repo.FindByIDFunc = func(_ context.Context, _ string) (*model.Booking, error) {
		return booking, nil
	}
	// Hold expired and someone else claimed the seats.
	f.events.FindByIDFunc = func(_ context.Context, _ string) (*model.Event, error) {
		return testEvent(), nil
	}
	f.slotRepo.SlotNumbersByStatusFunc = func(_ context.Context, _, _ string) ([]int, error) {
		return []int{1, 2}, nil
	}
	f.slotLock.TryHoldFunc = func(_ context.Context, _ string, _ int, requested []int) (*Hold, error) {
		return nil, apperrors.SlotConflict(testEventID, requested)
	}
	f.gateway.GetPaymentFunc = func(_ context.Context, paymentID string) (*payments.Payment, error) {
		return &payments.Payment{ID: paymentID, Status: payments.PaymentStatusCaptured}, nil
	}

	cancelled := false
	f.repo.TransitionStatusFunc = func(_ context.Context, _, _, to string, _ bson.M) (bool, error) {
		if to == model.BookingCancelled {
			cancelled = true
		}
		return true, nil
	}
	f.slotRepo.CancelAllForBookingFunc = func(_ context.Context, _, toStatus string) ([]int, error) {
		if toStatus != model.SlotCancelled {
			t.Errorf("expected slot rows cancelled, got %s", toStatus)
		}
		return []int{1, 2}, nil
	}

	var refunded int64
	f.gateway.CreateRefundFunc = func(_ context.Context, paymentID string, amount int64) (*payments.Refund, error) {
		refunded = amount
		return &payments.Refund{ID: "rfnd_1", PaymentID: paymentID, Amount: amount}, nil
	}

	_, err := f.svc.ConfirmPayment(context.Background(), &ConfirmPaymentRequest{
		BookingID: testBookingID, PaymentID: testPaymentID, Signature: "good",
	})
	assertErrorCode(t, err, apperrors.CodeInsufficientCapacity)

	if !cancelled {
		t.Error("booking was not cancelled after capacity loss")
	}
	if refunded != 5000 {
		t.Errorf("expected full refund of 5000, got %d", refunded)
	}
	if len(f.refunds.Inserted) != 1 || f.refunds.Inserted[0].Reason != model.RefundReasonCapacityLost {
		t.Errorf("refund ledger entry missing or wrong: %+v", f.refunds.Inserted)
	}
}

// A payment can land after the expiry sweep already released the
// booking's rows. As long as the seats are still free the booking must
// confirm, not refund.
func TestConfirmByOrderRestoresExpiredSlotRows(t *testing.T) {
	f := newBookingFixture()
	status := model.BookingPaymentPending
	booking := &model.Booking{
		ID:          testBookingID,
		EventID:     testEventID,
		SlotCount:   2,
		AmountTotal: 5000,
		Currency:    "INR",
		Metadata: model.BookingMetadata{
			LockKey:        "lk-dead",
			GatewayOrderID: testOrderID,
		},
	}

	f.repo.FindByGatewayOrderIDFunc = func(_ context.Context, _ string) (*model.Booking, error) {
		b := *booking
		b.Status = status
		return &b, nil
	}
	f.repo.FindByIDFunc = func(_ context.Context, _ string) (*model.Booking, error) {
		b := *booking
		b.Status = status
		return &b, nil
	}
	// Hold gone, rows released, but the whole event is still free.
	f.events.FindByIDFunc = func(_ context.Context, _ string) (*model.Event, error) {
		return testEvent(), nil
	}
	f.slotRepo.SlotNumbersByStatusFunc = func(_ context.Context, _, status string) ([]int, error) {
		if status == model.SlotCancelled {
			return []int{1, 2}, nil
		}
		return nil, nil
	}
	f.slotLock.TryHoldFunc = func(_ context.Context, _ string, _ int, requested []int) (*Hold, error) {
		if !reflect.DeepEqual(requested, []int{1, 2}) {
			t.Errorf("expected the original slot numbers requested, got %v", requested)
		}
		return &Hold{LockKey: "lk-new", Slots: requested}, nil
	}
	f.gateway.GetPaymentFunc = func(_ context.Context, paymentID string) (*payments.Payment, error) {
		return &payments.Payment{ID: paymentID, OrderID: testOrderID, Status: payments.PaymentStatusCaptured}, nil
	}
	f.gateway.CreateRefundFunc = func(_ context.Context, _ string, _ int64) (*payments.Refund, error) {
		t.Fatal("free capacity must confirm the booking, not refund it")
		return nil, nil
	}
	f.repo.TransitionStatusFunc = func(_ context.Context, _, from, to string, _ bson.M) (bool, error) {
		if from != model.BookingPaymentPending || to != model.BookingConfirmed {
			t.Errorf("unexpected transition %s -> %s", from, to)
		}
		status = to
		return true, nil
	}
	f.slotRepo.ActivateSlotsFunc = func(_ context.Context, _ string) (int, error) {
		return 2, nil
	}
	var delta int
	f.events.AdjustBookedSlotsFunc = func(_ context.Context, _ string, d int) error {
		delta = d
		return nil
	}

	got, err := f.svc.ConfirmByOrder(context.Background(), testOrderID, testPaymentID)
	if err != nil {
		t.Fatalf("ConfirmByOrder: %v", err)
	}
	if got.Status != model.BookingConfirmed {
		t.Errorf("expected CONFIRMED, got %s", got.Status)
	}
	if !reflect.DeepEqual(f.slotRepo.Reinstated, [][]int{{1, 2}}) {
		t.Errorf("released rows were not reinstated: %v", f.slotRepo.Reinstated)
	}
	if delta != 2 {
		t.Errorf("expected booked count bump of 2, got %d", delta)
	}
}

func TestConfirmByOrderReassignsSeatsWhenOriginalsResold(t *testing.T) {
	f := newBookingFixture()
	status := model.BookingPaymentPending
	booking := &model.Booking{
		ID:          testBookingID,
		EventID:     testEventID,
		SlotCount:   2,
		AmountTotal: 5000,
		Currency:    "INR",
		Metadata: model.BookingMetadata{
			LockKey:        "lk-dead",
			GatewayOrderID: testOrderID,
		},
	}

	f.repo.FindByGatewayOrderIDFunc = func(_ context.Context, _ string) (*model.Booking, error) {
		b := *booking
		b.Status = status
		return &b, nil
	}
	f.repo.FindByIDFunc = func(_ context.Context, _ string) (*model.Booking, error) {
		b := *booking
		b.Status = status
		return &b, nil
	}
	f.events.FindByIDFunc = func(_ context.Context, _ string) (*model.Event, error) {
		return testEvent(), nil
	}
	f.slotRepo.SlotNumbersByStatusFunc = func(_ context.Context, _, status string) ([]int, error) {
		if status == model.SlotCancelled {
			return []int{1, 2}, nil
		}
		return nil, nil
	}
	// Seats 1 and 2 were re-sold, but the event still has room.
	f.slotLock.TryHoldFunc = func(_ context.Context, _ string, slotCount int, requested []int) (*Hold, error) {
		if requested != nil {
			return nil, apperrors.SlotConflict(testEventID, requested)
		}
		return &Hold{LockKey: "lk-new", Slots: []int{7, 8}}, nil
	}
	f.gateway.GetPaymentFunc = func(_ context.Context, paymentID string) (*payments.Payment, error) {
		return &payments.Payment{ID: paymentID, OrderID: testOrderID, Status: payments.PaymentStatusCaptured}, nil
	}
	f.gateway.CreateRefundFunc = func(_ context.Context, _ string, _ int64) (*payments.Refund, error) {
		t.Fatal("free capacity must confirm the booking, not refund it")
		return nil, nil
	}
	f.repo.TransitionStatusFunc = func(_ context.Context, _, _, to string, _ bson.M) (bool, error) {
		status = to
		return true, nil
	}
	f.slotRepo.ActivateSlotsFunc = func(_ context.Context, _ string) (int, error) {
		return 2, nil
	}
	f.events.AdjustBookedSlotsFunc = func(_ context.Context, _ string, _ int) error {
		return nil
	}

	got, err := f.svc.ConfirmByOrder(context.Background(), testOrderID, testPaymentID)
	if err != nil {
		t.Fatalf("ConfirmByOrder: %v", err)
	}
	if got.Status != model.BookingConfirmed {
		t.Errorf("expected CONFIRMED, got %s", got.Status)
	}
	if !reflect.DeepEqual(f.slotRepo.Reinstated, [][]int{{7, 8}}) {
		t.Errorf("rows were not reassigned to the new seats: %v", f.slotRepo.Reinstated)
	}
}

func TestCancelPartialRefundsPerSlotShare(t *testing.T) {
	f := newBookingFixture()
	status := model.BookingConfirmed
	booking := &model.Booking{
		ID:          testBookingID,
		EventID:     testEventID,
		SlotCount:   5,
		AmountTotal: 5000,
		Currency:    "INR",
		Metadata: model.BookingMetadata{
			GatewayPaymentID: testPaymentID,
		},
	}

	f.repo.FindByIDFunc = func(_ context.Context, _ string) (*model.Booking, error) {
		b := *booking
		b.Status = status
		return &b, nil
	}
	f.slotRepo.FindActiveByBookingFunc = func(_ context.Context, bookingID string) ([]*model.BookingSlot, error) {
		return activeRows(testEventID, 1, 2, 3, 4, 5), nil
	}
	f.slotRepo.CancelSlotsFunc = func(_ context.Context, _ string, count int, toStatus string) ([]int, error) {
		if count != 2 {
			t.Errorf("expected 2 slots cancelled, got %d", count)
		}
		if toStatus != model.SlotCancelledRefundPending {
			t.Errorf("expected refund-pending rows, got %s", toStatus)
		}
		return []int{5, 4}, nil
	}

	var delta int
	f.events.AdjustBookedSlotsFunc = func(_ context.Context, _ string, d int) error {
		delta = d
		return nil
	}
	f.events.FindByIDFunc = func(_ context.Context, _ string) (*model.Event, error) {
		return testEvent(), nil
	}
	f.repo.TransitionStatusFunc = func(_ context.Context, _, from, to string, _ bson.M) (bool, error) {
		if to != model.BookingPartiallyCancelled {
			t.Errorf("expected PARTIALLY_CANCELLED, got %s", to)
		}
		status = to
		return true, nil
	}

	var refunded int64
	f.gateway.CreateRefundFunc = func(_ context.Context, _ string, amount int64) (*payments.Refund, error) {
		refunded = amount
		return &payments.Refund{ID: "rfnd_1", Amount: amount}, nil
	}

	got, err := f.svc.Cancel(context.Background(), testBookingID, 2)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	if got.Status != model.BookingPartiallyCancelled {
		t.Errorf("expected PARTIALLY_CANCELLED, got %s", got.Status)
	}
	if refunded != 2000 {
		t.Errorf("expected per-slot refund of 2000, got %d", refunded)
	}
	if delta != -2 {
		t.Errorf("expected booked count drop of 2, got %d", delta)
	}
	if !reflect.DeepEqual(f.availability.Checked, []string{testEventID}) {
		t.Errorf("freed capacity was not announced to the waitlist: %v", f.availability.Checked)
	}
}

func TestCancelZeroCountCancelsEverything(t *testing.T) {
	f := newBookingFixture()
	booking := &model.Booking{
		ID:          testBookingID,
		EventID:     testEventID,
		Status:      model.BookingConfirmed,
		SlotCount:   3,
		AmountTotal: 7500,
		Currency:    "INR",
		Metadata:    model.BookingMetadata{GatewayPaymentID: testPaymentID},
	}

	f.repo.FindByIDFunc = func(_ context.Context, _ string) (*model.Booking, error) {
		return booking, nil
	}
	f.slotRepo.FindActiveByBookingFunc = func(_ context.Context, _ string) ([]*model.BookingSlot, error) {
		return activeRows(testEventID, 1, 2, 3), nil
	}
	f.slotRepo.CancelSlotsFunc = func(_ context.Context, _ string, count int, _ string) ([]int, error) {
		if count != 3 {
			t.Errorf("zero slot_count must cancel all 3 active slots, got %d", count)
		}
		return []int{3, 2, 1}, nil
	}
	f.events.FindByIDFunc = func(_ context.Context, _ string) (*model.Event, error) {
		return testEvent(), nil
	}
	f.repo.TransitionStatusFunc = func(_ context.Context, _, _, to string, _ bson.M) (bool, error) {
		if to != model.BookingCancelled {
			t.Errorf("full cancel must end CANCELLED, got %s", to)
		}
		return true, nil
	}
	f.gateway.CreateRefundFunc = func(_ context.Context, _ string, amount int64) (*payments.Refund, error) {
		if amount != 7500 {
			t.Errorf("expected full refund 7500, got %d", amount)
		}
		return &payments.Refund{ID: "rfnd_1", Amount: amount}, nil
	}

	if _, err := f.svc.Cancel(context.Background(), testBookingID, 0); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
}

// A confirmed booking that somehow lost its gateway payment id cannot
// be refunded automatically, but the money owed must still land on the
// ledger for an operator.
func TestCancelWithoutPaymentIDRecordsManualRefund(t *testing.T) {
	f := newBookingFixture()
	booking := &model.Booking{
		ID:          testBookingID,
		EventID:     testEventID,
		Status:      model.BookingConfirmed,
		SlotCount:   2,
		AmountTotal: 5000,
		Currency:    "INR",
	}

	f.repo.FindByIDFunc = func(_ context.Context, _ string) (*model.Booking, error) {
		return booking, nil
	}
	f.slotRepo.FindActiveByBookingFunc = func(_ context.Context, _ string) ([]*model.BookingSlot, error) {
		return activeRows(testEventID, 1, 2), nil
	}
	f.slotRepo.CancelSlotsFunc = func(_ context.Context, _ string, _ int, _ string) ([]int, error) {
		return []int{2, 1}, nil
	}
	f.events.AdjustBookedSlotsFunc = func(_ context.Context, _ string, _ int) error {
		return nil
	}
	f.repo.TransitionStatusFunc = func(_ context.Context, _, _, _ string, _ bson.M) (bool, error) {
		return true, nil
	}
	f.gateway.CreateRefundFunc = func(_ context.Context, _ string, _ int64) (*payments.Refund, error) {
		t.Fatal("no payment id, no gateway refund call")
		return nil, nil
	}

	if _, err := f.svc.Cancel(context.Background(), testBookingID, 0); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	if len(f.refunds.Inserted) != 1 {
		t.Fatalf("expected one ledger entry, got %d", len(f.refunds.Inserted))
	}
	entry := f.refunds.Inserted[0]
	if entry.Reason != model.RefundReasonManualRequired {
		t.Errorf("expected reason %s, got %s", model.RefundReasonManualRequired, entry.Reason)
	}
	if entry.Status != model.RefundFailed {
		t.Errorf("expected status %s, got %s", model.RefundFailed, entry.Status)
	}
	if entry.Amount != 5000 {
		t.Errorf("expected the full amount owed on the ledger, got %d", entry.Amount)
	}
}

func TestCancelUnpaidBookingSkipsRefund(t *testing.T) {
	f := newBookingFixture()
	booking := &model.Booking{
		ID:       testBookingID,
		EventID:  testEventID,
		Status:   model.BookingInitiated,
		Metadata: model.BookingMetadata{LockKey: "lk-1"},
	}

	f.repo.FindByIDFunc = func(_ context.Context, _ string) (*model.Booking, error) {
		return booking, nil
	}
	f.repo.TransitionStatusFunc = func(_ context.Context, _, from, to string, _ bson.M) (bool, error) {
		if from != model.BookingInitiated || to != model.BookingCancelled {
			t.Errorf("unexpected transition %s -> %s", from, to)
		}
		return true, nil
	}
	f.slotRepo.CancelAllForBookingFunc = func(_ context.Context, _, toStatus string) ([]int, error) {
		if toStatus != model.SlotCancelled {
			t.Errorf("unpaid cancel should not mark rows refund-pending, got %s", toStatus)
		}
		return []int{1}, nil
	}
	f.gateway.CreateRefundFunc = func(_ context.Context, _ string, _ int64) (*payments.Refund, error) {
		t.Fatal("no money moved, no refund should be issued")
		return nil, nil
	}

	got, err := f.svc.Cancel(context.Background(), testBookingID, 0)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if got.Status != model.BookingCancelled {
		t.Errorf("expected CANCELLED, got %s", got.Status)
	}
	if len(f.slotLock.Released) != 1 {
		t.Errorf("hold was not released: %v", f.slotLock.Released)
	}
}

func TestCancelTerminalBookingRejected(t *testing.T) {
	f := newBookingFixture()
	f.repo.FindByIDFunc = func(_ context.Context, _ string) (*model.Booking, error) {
		return &model.Booking{ID: testBookingID, Status: model.BookingExpired}, nil
	}

	_, err := f.svc.Cancel(context.Background(), testBookingID, 0)
	assertErrorCode(t, err, apperrors.CodeInvalidTransition)
}

func TestFailByOrderIgnoresSettledBooking(t *testing.T) {
	f := newBookingFixture()
	f.repo.FindByGatewayOrderIDFunc = func(_ context.Context, _ string) (*model.Booking, error) {
		return &model.Booking{ID: testBookingID, Status: model.BookingConfirmed}, nil
	}
	f.repo.TransitionStatusFunc = func(_ context.Context, _, _, _ string, _ bson.M) (bool, error) {
		t.Fatal("a settled booking must not be failed")
		return false, nil
	}

	got, err := f.svc.FailByOrder(context.Background(), testOrderID, "payment declined")
	if err != nil {
		t.Fatalf("FailByOrder: %v", err)
	}
	if got.Status != model.BookingConfirmed {
		t.Errorf("booking status changed unexpectedly: %s", got.Status)
	}
}

func TestFailByOrderReleasesHoldAndKeepsPendingRows(t *testing.T) {
	f := newBookingFixture()
	booking := &model.Booking{
		ID:       testBookingID,
		EventID:  testEventID,
		Status:   model.BookingPaymentPending,
		Metadata: model.BookingMetadata{LockKey: "lk-1", GatewayOrderID: testOrderID},
	}
	f.repo.FindByGatewayOrderIDFunc = func(_ context.Context, _ string) (*model.Booking, error) {
		return booking, nil
	}
	f.repo.TransitionStatusFunc = func(_ context.Context, _, from, to string, set bson.M) (bool, error) {
		if from != model.BookingPaymentPending || to != model.BookingPaymentFailed {
			t.Errorf("unexpected transition %s -> %s", from, to)
		}
		if set["metadata.failure_reason"] != "card declined" {
			t.Errorf("failure reason not recorded: %v", set)
		}
		return true, nil
	}
	f.slotRepo.CancelAllForBookingFunc = func(_ context.Context, _, _ string) ([]int, error) {
		t.Fatal("pending slot rows must survive a payment failure for retry")
		return nil, nil
	}

	got, err := f.svc.FailByOrder(context.Background(), testOrderID, "card declined")
	if err != nil {
		t.Fatalf("FailByOrder: %v", err)
	}
	if got.Status != model.BookingPaymentFailed {
		t.Errorf("expected PAYMENT_FAILED, got %s", got.Status)
	}
	if len(f.slotLock.Released) != 1 {
		t.Errorf("hold was not released: %v", f.slotLock.Released)
	}
}

func TestGetMapsMissingBooking(t *testing.T) {
	f := newBookingFixture()
	f.repo.FindByIDFunc = func(_ context.Context, _ string) (*model.Booking, error) {
		return nil, errors.New("not found")
	}

	_, err := f.svc.Get(context.Background(), testBookingID)
	if err == nil {
		t.Fatal("expected an error")
	}
}
