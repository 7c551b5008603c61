package service

import (
	"context"
	"io"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"pitchside/internal/payments"
	"pitchside/pkg/client"
	"pitchside/pkg/config"
	mongotx "pitchside/pkg/db/mongo"
	"pitchside/pkg/logger"
	"pitchside/pkg/model"
)

func testConfig() *config.Config {
	return &config.Config{
		SlotHoldTTL:       10 * time.Minute,
		HoldRetryAttempts: 3,
		HoldRetryBackoff:  time.Millisecond,
		MaxSlotsPerHold:   20,

		ExpirySweepPeriod:    time.Minute,
		ReconcileSweepPeriod: time.Minute,
		ReconcileWindowMin:   15 * time.Minute,
		ReconcileWindowMax:   24 * time.Hour,
		SweepBatchSize:       100,

		JobLockTTL:     2 * time.Minute,
		JobLockBuckets: 1440,

		Log: logger.New(logger.Config{Level: logger.ERROR, Output: io.Discard}),
	}
}

type mockEventRepo struct {
	CreateFunc            func(ctx context.Context, event *model.Event) error
	FindByIDFunc          func(ctx context.Context, id string) (*model.Event, error)
	FindAllFunc           func(ctx context.Context, limit int, offset int64) ([]*model.Event, error)
	CountFunc             func(ctx context.Context) (int64, error)
	ReplaceHoldsFunc      func(ctx context.Context, eventID string, version int64, holds map[string]model.SlotHold) (bool, error)
	AdjustBookedSlotsFunc func(ctx context.Context, eventID string, delta int) error
}

func (m *mockEventRepo) Create(ctx context.Context, event *model.Event) error {
	return m.CreateFunc(ctx, event)
}

func (m *mockEventRepo) FindByID(ctx context.Context, id string) (*model.Event, error) {
	return m.FindByIDFunc(ctx, id)
}

func (m *mockEventRepo) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Event, error) {
	return m.FindAllFunc(ctx, limit, offset)
}

func (m *mockEventRepo) Count(ctx context.Context) (int64, error) {
	return m.CountFunc(ctx)
}

func (m *mockEventRepo) ReplaceHolds(ctx context.Context, eventID string, version int64, holds map[string]model.SlotHold) (bool, error) {
	return m.ReplaceHoldsFunc(ctx, eventID, version, holds)
}

func (m *mockEventRepo) AdjustBookedSlots(ctx context.Context, eventID string, delta int) error {
	if m.AdjustBookedSlotsFunc == nil {
		return nil
	}
	return m.AdjustBookedSlotsFunc(ctx, eventID, delta)
}

type mockSlotRepo struct {
	InsertManyFunc          func(ctx context.Context, slots []*model.BookingSlot) error
	FindActiveByBookingFunc func(ctx context.Context, bookingID string) ([]*model.BookingSlot, error)
	FindActiveByEventFunc   func(ctx context.Context, eventID string) ([]*model.BookingSlot, error)
	SlotNumbersByStatusFunc func(ctx context.Context, bookingID, status string) ([]int, error)
	ActivateSlotsFunc       func(ctx context.Context, bookingID string) (int, error)
	CancelSlotsFunc         func(ctx context.Context, bookingID string, count int, toStatus string) ([]int, error)
	CancelAllForBookingFunc func(ctx context.Context, bookingID, toStatus string) ([]int, error)
	ReinstateSlotsFunc      func(ctx context.Context, bookingID string, numbers []int) error
	MarkRefundedFunc        func(ctx context.Context, bookingID string) (int, error)

	Reinstated   [][]int
	RefundMarked []string
}

func (m *mockSlotRepo) InsertMany(ctx context.Context, slots []*model.BookingSlot) error {
	return m.InsertManyFunc(ctx, slots)
}

func (m *mockSlotRepo) FindActiveByBooking(ctx context.Context, bookingID string) ([]*model.BookingSlot, error) {
	return m.FindActiveByBookingFunc(ctx, bookingID)
}

func (m *mockSlotRepo) FindActiveByEvent(ctx context.Context, eventID string) ([]*model.BookingSlot, error) {
	if m.FindActiveByEventFunc == nil {
		return nil, nil
	}
	return m.FindActiveByEventFunc(ctx, eventID)
}

func (m *mockSlotRepo) SlotNumbersByStatus(ctx context.Context, bookingID, status string) ([]int, error) {
	return m.SlotNumbersByStatusFunc(ctx, bookingID, status)
}

func (m *mockSlotRepo) ActivateSlots(ctx context.Context, bookingID string) (int, error) {
	return m.ActivateSlotsFunc(ctx, bookingID)
}

func (m *mockSlotRepo) CancelSlots(ctx context.Context, bookingID string, count int, toStatus string) ([]int, error) {
	return m.CancelSlotsFunc(ctx, bookingID, count, toStatus)
}

func (m *mockSlotRepo) CancelAllForBooking(ctx context.Context, bookingID, toStatus string) ([]int, error) {
	if m.CancelAllForBookingFunc == nil {
		return nil, nil
	}
	return m.CancelAllForBookingFunc(ctx, bookingID, toStatus)
}

func (m *mockSlotRepo) ReinstateSlots(ctx context.Context, bookingID string, numbers []int) error {
	m.Reinstated = append(m.Reinstated, numbers)
	if m.ReinstateSlotsFunc == nil {
		return nil
	}
	return m.ReinstateSlotsFunc(ctx, bookingID, numbers)
}

func (m *mockSlotRepo) MarkRefunded(ctx context.Context, bookingID string) (int, error) {
	m.RefundMarked = append(m.RefundMarked, bookingID)
	if m.MarkRefundedFunc == nil {
		return 0, nil
	}
	return m.MarkRefundedFunc(ctx, bookingID)
}

type mockBookingRepo struct {
	CreateFunc               func(ctx context.Context, booking *model.Booking) error
	FindByIDFunc             func(ctx context.Context, id string) (*model.Booking, error)
	FindByGatewayOrderIDFunc func(ctx context.Context, orderID string) (*model.Booking, error)
	FindByUserFunc           func(ctx context.Context, userID string, limit int, offset int64) ([]*model.Booking, error)
	CountByUserFunc          func(ctx context.Context, userID string) (int64, error)
	TransitionStatusFunc     func(ctx context.Context, id, fromStatus, toStatus string, set bson.M) (bool, error)
	AddRefundedAmountFunc    func(ctx context.Context, id string, amount int64, refundStatus string) error
	FindStaleByStatusFunc    func(ctx context.Context, statuses []string, olderThan, youngerThan time.Time, limit int) ([]*model.Booking, error)
	FindByEventInStatusFunc  func(ctx context.Context, eventID string, statuses []string, limit int) ([]*model.Booking, error)
	ExecuteTransactionFunc   func(ctx context.Context, fn mongotx.TransactionFunc) error
}

func (m *mockBookingRepo) Create(ctx context.Context, booking *model.Booking) error {
	return m.CreateFunc(ctx, booking)
}

func (m *mockBookingRepo) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	return m.FindByIDFunc(ctx, id)
}

func (m *mockBookingRepo) FindByGatewayOrderID(ctx context.Context, orderID string) (*model.Booking, error) {
	return m.FindByGatewayOrderIDFunc(ctx, orderID)
}

func (m *mockBookingRepo) FindByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Booking, error) {
	return m.FindByUserFunc(ctx, userID, limit, offset)
}

func (m *mockBookingRepo) CountByUser(ctx context.Context, userID string) (int64, error) {
	return m.CountByUserFunc(ctx, userID)
}

func (m *mockBookingRepo) TransitionStatus(ctx context.Context, id, fromStatus, toStatus string, set bson.M) (bool, error) {
	return m.TransitionStatusFunc(ctx, id, fromStatus, toStatus, set)
}

func (m *mockBookingRepo) AddRefundedAmount(ctx context.Context, id string, amount int64, refundStatus string) error {
	if m.AddRefundedAmountFunc == nil {
		return nil
	}
	return m.AddRefundedAmountFunc(ctx, id, amount, refundStatus)
}

func (m *mockBookingRepo) FindStaleByStatus(ctx context.Context, statuses []string, olderThan, youngerThan time.Time, limit int) ([]*model.Booking, error) {
	return m.FindStaleByStatusFunc(ctx, statuses, olderThan, youngerThan, limit)
}

func (m *mockBookingRepo) FindByEventInStatus(ctx context.Context, eventID string, statuses []string, limit int) ([]*model.Booking, error) {
	return m.FindByEventInStatusFunc(ctx, eventID, statuses, limit)
}

// ExecuteTransaction runs the callback inline; the nil session context is
// fine because repository mocks never touch it.
func (m *mockBookingRepo) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	if m.ExecuteTransactionFunc != nil {
		return m.ExecuteTransactionFunc(ctx, fn)
	}
	return fn(nil)
}

type mockRefundRepo struct {
	Inserted      []*model.Refund
	StatusUpdates map[string]string

	InsertFunc        func(ctx context.Context, refund *model.Refund) error
	FindByBookingFunc func(ctx context.Context, bookingID string) ([]*model.Refund, error)
	FindByStatusFunc  func(ctx context.Context, status string, limit int) ([]*model.Refund, error)
	UpdateStatusFunc  func(ctx context.Context, id, status string) error
}

func (m *mockRefundRepo) Insert(ctx context.Context, refund *model.Refund) error {
	m.Inserted = append(m.Inserted, refund)
	if m.InsertFunc == nil {
		return nil
	}
	return m.InsertFunc(ctx, refund)
}

func (m *mockRefundRepo) FindByBooking(ctx context.Context, bookingID string) ([]*model.Refund, error) {
	if m.FindByBookingFunc == nil {
		return nil, nil
	}
	return m.FindByBookingFunc(ctx, bookingID)
}

func (m *mockRefundRepo) FindByStatus(ctx context.Context, status string, limit int) ([]*model.Refund, error) {
	if m.FindByStatusFunc == nil {
		return nil, nil
	}
	return m.FindByStatusFunc(ctx, status, limit)
}

func (m *mockRefundRepo) UpdateStatus(ctx context.Context, id, status string) error {
	if m.StatusUpdates == nil {
		m.StatusUpdates = map[string]string{}
	}
	m.StatusUpdates[id] = status
	if m.UpdateStatusFunc == nil {
		return nil
	}
	return m.UpdateStatusFunc(ctx, id, status)
}

type mockGateway struct {
	CreateOrderFunc       func(ctx context.Context, amount int64, currency, receipt string) (*payments.Order, error)
	GetOrderFunc          func(ctx context.Context, orderID string) (*payments.Order, error)
	GetPaymentFunc        func(ctx context.Context, paymentID string) (*payments.Payment, error)
	ListOrderPaymentsFunc func(ctx context.Context, orderID string) ([]*payments.Payment, error)
	CreateRefundFunc      func(ctx context.Context, paymentID string, amount int64) (*payments.Refund, error)
	GetRefundFunc         func(ctx context.Context, refundID string) (*payments.Refund, error)
	VerifySignatureFunc   func(orderID, paymentID, signature string) bool
	CheckPaidFunc         func(ctx context.Context, orderID string) (payments.PaidState, error)
}

func (m *mockGateway) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*payments.Order, error) {
	return m.CreateOrderFunc(ctx, amount, currency, receipt)
}

func (m *mockGateway) GetOrder(ctx context.Context, orderID string) (*payments.Order, error) {
	return m.GetOrderFunc(ctx, orderID)
}

func (m *mockGateway) GetPayment(ctx context.Context, paymentID string) (*payments.Payment, error) {
	return m.GetPaymentFunc(ctx, paymentID)
}

func (m *mockGateway) ListOrderPayments(ctx context.Context, orderID string) ([]*payments.Payment, error) {
	return m.ListOrderPaymentsFunc(ctx, orderID)
}

func (m *mockGateway) CreateRefund(ctx context.Context, paymentID string, amount int64) (*payments.Refund, error) {
	return m.CreateRefundFunc(ctx, paymentID, amount)
}

func (m *mockGateway) GetRefund(ctx context.Context, refundID string) (*payments.Refund, error) {
	return m.GetRefundFunc(ctx, refundID)
}

func (m *mockGateway) VerifySignature(orderID, paymentID, signature string) bool {
	if m.VerifySignatureFunc == nil {
		return true
	}
	return m.VerifySignatureFunc(orderID, paymentID, signature)
}

func (m *mockGateway) CheckPaid(ctx context.Context, orderID string) (payments.PaidState, error) {
	return m.CheckPaidFunc(ctx, orderID)
}

type mockUsers struct {
	FindOrCreateByPhoneFunc func(phone, name string) (*client.User, error)
}

func (m *mockUsers) FindOrCreateByPhone(phone, name string) (*client.User, error) {
	if m.FindOrCreateByPhoneFunc == nil {
		return &client.User{ID: "user-1", Phone: phone, Name: name}, nil
	}
	return m.FindOrCreateByPhoneFunc(phone, name)
}

// mockNotifier records every emission so tests can assert on what was
// published without a broker.
type mockNotifier struct {
	AvailableEvents []string
	AvailableSlots  [][]int
	StatusChanges   []string
}

func (m *mockNotifier) SlotsAvailable(_ context.Context, event *model.Event, freeSlots []int) {
	m.AvailableEvents = append(m.AvailableEvents, event.ID)
	m.AvailableSlots = append(m.AvailableSlots, freeSlots)
}

func (m *mockNotifier) BookingStatusChanged(_ context.Context, booking *model.Booking) {
	m.StatusChanges = append(m.StatusChanges, booking.Status)
}

func (m *mockNotifier) Close() error {
	return nil
}

type mockSlotLock struct {
	TryHoldFunc func(ctx context.Context, eventID string, slotCount int, requestedSlots []int) (*Hold, error)
	ReleaseFunc func(ctx context.Context, eventID, lockKey string) error

	Released []string
}

func (m *mockSlotLock) TryHold(ctx context.Context, eventID string, slotCount int, requestedSlots []int) (*Hold, error) {
	return m.TryHoldFunc(ctx, eventID, slotCount, requestedSlots)
}

func (m *mockSlotLock) Release(ctx context.Context, eventID, lockKey string) error {
	m.Released = append(m.Released, lockKey)
	if m.ReleaseFunc == nil {
		return nil
	}
	return m.ReleaseFunc(ctx, eventID, lockKey)
}

// mockAvailability records which events had their free capacity
// re-checked, so tests can assert a waitlist check fired post-commit.
type mockAvailability struct {
	FreeSlotsFunc func(ctx context.Context, eventID string) (*model.Event, []int, error)

	Checked []string
}

func (m *mockAvailability) FreeSlots(ctx context.Context, eventID string) (*model.Event, []int, error) {
	return m.FreeSlotsFunc(ctx, eventID)
}

func (m *mockAvailability) CheckAndNotify(_ context.Context, eventID string) {
	m.Checked = append(m.Checked, eventID)
}

type mockBookingService struct {
	CreateFunc          func(ctx context.Context, req *CreateBookingRequest) (*model.Booking, *Hold, error)
	InitiatePaymentFunc func(ctx context.Context, bookingID string) (*PaymentIntent, error)
	ConfirmPaymentFunc  func(ctx context.Context, req *ConfirmPaymentRequest) (*model.Booking, error)
	ConfirmByOrderFunc  func(ctx context.Context, orderID, paymentID string) (*model.Booking, error)
	FailByOrderFunc     func(ctx context.Context, orderID, reason string) (*model.Booking, error)
	CancelFunc          func(ctx context.Context, bookingID string, slotCount int) (*model.Booking, error)
	GetFunc             func(ctx context.Context, id string) (*model.Booking, error)
	ListByUserFunc      func(ctx context.Context, userID string, limit int, offset int64) ([]*model.Booking, int64, error)
}

func (m *mockBookingService) Create(ctx context.Context, req *CreateBookingRequest) (*model.Booking, *Hold, error) {
	return m.CreateFunc(ctx, req)
}

func (m *mockBookingService) InitiatePayment(ctx context.Context, bookingID string) (*PaymentIntent, error) {
	return m.InitiatePaymentFunc(ctx, bookingID)
}

func (m *mockBookingService) ConfirmPayment(ctx context.Context, req *ConfirmPaymentRequest) (*model.Booking, error) {
	return m.ConfirmPaymentFunc(ctx, req)
}

func (m *mockBookingService) ConfirmByOrder(ctx context.Context, orderID, paymentID string) (*model.Booking, error) {
	return m.ConfirmByOrderFunc(ctx, orderID, paymentID)
}

func (m *mockBookingService) FailByOrder(ctx context.Context, orderID, reason string) (*model.Booking, error) {
	return m.FailByOrderFunc(ctx, orderID, reason)
}

func (m *mockBookingService) Cancel(ctx context.Context, bookingID string, slotCount int) (*model.Booking, error) {
	return m.CancelFunc(ctx, bookingID, slotCount)
}

func (m *mockBookingService) Get(ctx context.Context, id string) (*model.Booking, error) {
	return m.GetFunc(ctx, id)
}

func (m *mockBookingService) ListByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Booking, int64, error) {
	return m.ListByUserFunc(ctx, userID, limit, offset)
}

type mockJobLocks struct {
	AcquireFunc func(ctx context.Context, job string, bucket int, owner string, ttl time.Duration) (bool, error)
	ReleaseFunc func(ctx context.Context, job string, bucket int, owner string) error
}

func (m *mockJobLocks) Acquire(ctx context.Context, job string, bucket int, owner string, ttl time.Duration) (bool, error) {
	return m.AcquireFunc(ctx, job, bucket, owner, ttl)
}

func (m *mockJobLocks) Release(ctx context.Context, job string, bucket int, owner string) error {
	if m.ReleaseFunc == nil {
		return nil
	}
	return m.ReleaseFunc(ctx, job, bucket, owner)
}
