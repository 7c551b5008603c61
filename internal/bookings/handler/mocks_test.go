package handler

import (
	"context"
	"io"

	"pitchside/internal/bookings/service"
	"pitchside/pkg/logger"
	"pitchside/pkg/model"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: logger.ERROR, Output: io.Discard})
}

type mockBookingService struct {
	CreateFunc          func(ctx context.Context, req *service.CreateBookingRequest) (*model.Booking, *service.Hold, error)
	InitiatePaymentFunc func(ctx context.Context, bookingID string) (*service.PaymentIntent, error)
	ConfirmPaymentFunc  func(ctx context.Context, req *service.ConfirmPaymentRequest) (*model.Booking, error)
	ConfirmByOrderFunc  func(ctx context.Context, orderID, paymentID string) (*model.Booking, error)
	FailByOrderFunc     func(ctx context.Context, orderID, reason string) (*model.Booking, error)
	CancelFunc          func(ctx context.Context, bookingID string, slotCount int) (*model.Booking, error)
	GetFunc             func(ctx context.Context, id string) (*model.Booking, error)
	ListByUserFunc      func(ctx context.Context, userID string, limit int, offset int64) ([]*model.Booking, int64, error)
}

func (m *mockBookingService) Create(ctx context.Context, req *service.CreateBookingRequest) (*model.Booking, *service.Hold, error) {
	return m.CreateFunc(ctx, req)
}

func (m *mockBookingService) InitiatePayment(ctx context.Context, bookingID string) (*service.PaymentIntent, error) {
	return m.InitiatePaymentFunc(ctx, bookingID)
}

func (m *mockBookingService) ConfirmPayment(ctx context.Context, req *service.ConfirmPaymentRequest) (*model.Booking, error) {
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

type mockEventService struct {
	CreateFunc func(ctx context.Context, event *model.Event) (*model.Event, error)
	GetFunc    func(ctx context.Context, id string) (*model.Event, error)
	ListFunc   func(ctx context.Context, limit int, offset int64) ([]*model.Event, int64, error)
}

func (m *mockEventService) Create(ctx context.Context, event *model.Event) (*model.Event, error) {
	return m.CreateFunc(ctx, event)
}

func (m *mockEventService) Get(ctx context.Context, id string) (*model.Event, error) {
	return m.GetFunc(ctx, id)
}

func (m *mockEventService) List(ctx context.Context, limit int, offset int64) ([]*model.Event, int64, error) {
	return m.ListFunc(ctx, limit, offset)
}

type mockAvailabilityService struct {
	FreeSlotsFunc      func(ctx context.Context, eventID string) (*model.Event, []int, error)
	CheckAndNotifyFunc func(ctx context.Context, eventID string)
}

func (m *mockAvailabilityService) FreeSlots(ctx context.Context, eventID string) (*model.Event, []int, error) {
	return m.FreeSlotsFunc(ctx, eventID)
}

func (m *mockAvailabilityService) CheckAndNotify(ctx context.Context, eventID string) {
	if m.CheckAndNotifyFunc != nil {
		m.CheckAndNotifyFunc(ctx, eventID)
	}
}

type mockReconciliationService struct {
	ExpirySweepFunc    func(ctx context.Context) (*service.SweepStats, error)
	ReconcileSweepFunc func(ctx context.Context) (*service.SweepStats, error)
	ReconcileEventFunc func(ctx context.Context, eventID string) (*service.SweepStats, error)
}

func (m *mockReconciliationService) ExpirySweep(ctx context.Context) (*service.SweepStats, error) {
	return m.ExpirySweepFunc(ctx)
}

func (m *mockReconciliationService) ReconcileSweep(ctx context.Context) (*service.SweepStats, error) {
	return m.ReconcileSweepFunc(ctx)
}

func (m *mockReconciliationService) ReconcileEvent(ctx context.Context, eventID string) (*service.SweepStats, error) {
	return m.ReconcileEventFunc(ctx, eventID)
}
