package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	bookingserrors "pitchside/internal/bookings/errors"
	"pitchside/pkg/config"
	"pitchside/pkg/model"
)

const (
	BookingSlotCollectionName = "Booking_slots"
)

type mongoBookingSlotRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
}

type BookingSlotRepository interface {
	InsertMany(ctx context.Context, slots []*model.BookingSlot) error
	FindActiveByBooking(ctx context.Context, bookingID string) ([]*model.BookingSlot, error)
	FindActiveByEvent(ctx context.Context, eventID string) ([]*model.BookingSlot, error)
	// SlotNumbersByStatus returns a booking's slot numbers in the given
	// status, sorted ascending.
	SlotNumbersByStatus(ctx context.Context, bookingID, status string) ([]int, error)
	// ActivateSlots flips a booking's PENDING_PAYMENT rows to ACTIVE and
	// returns how many rows moved.
	ActivateSlots(ctx context.Context, bookingID string) (int, error)
	// CancelSlots moves up to count active rows of a booking to toStatus,
	// highest slot numbers first, and returns the freed slot numbers.
	CancelSlots(ctx context.Context, bookingID string, count int, toStatus string) ([]int, error)
	// CancelAllForBooking moves every non-cancelled row of a booking to
	// toStatus and returns the freed slot numbers.
	CancelAllForBooking(ctx context.Context, bookingID, toStatus string) ([]int, error)
	// ReinstateSlots flips a booking's CANCELLED rows back to
	// PENDING_PAYMENT, one row per given slot number. The booking must
	// still own at least len(numbers) cancelled rows.
	ReinstateSlots(ctx context.Context, bookingID string, numbers []int) error
	// MarkRefunded closes out a booking's CANCELLED_REFUND_PENDING rows
	// as CANCELLED_REFUNDED and returns how many rows moved.
	MarkRefunded(ctx context.Context, bookingID string) (int, error)
}

func NewMongoBookingSlotRepository(cfg *config.Config) BookingSlotRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoBookingSlotRepository{
		cfg:        cfg,
		db:         db,
		collection: db.Collection(BookingSlotCollectionName),
	}
}

func (r *mongoBookingSlotRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}

	deadline, hasDeadline := ctx.Deadline()
	if !hasDeadline {
		return context.WithTimeout(ctx, timeout)
	}

	remaining := time.Until(deadline)
	if remaining < timeout {
		return context.WithTimeout(ctx, remaining)
	}

	return context.WithTimeout(ctx, timeout)
}

func (r *mongoBookingSlotRepository) InsertMany(ctx context.Context, slots []*model.BookingSlot) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	docs := make([]any, 0, len(slots))
	for _, s := range slots {
		s.CreatedAt = now
		s.UpdatedAt = now
		docs = append(docs, s)
	}

	result, err := r.collection.InsertMany(ctx, docs)
	if err != nil {
		return fmt.Errorf("failed to insert booking slots: %w", err)
	}

	for i, id := range result.InsertedIDs {
		if oid, ok := id.(primitive.ObjectID); ok && i < len(slots) {
			slots[i].ID = oid.Hex()
		}
	}
	return nil
}

func (r *mongoBookingSlotRepository) FindActiveByBooking(ctx context.Context, bookingID string) ([]*model.BookingSlot, error) {
	return r.find(ctx, bson.M{"booking_id": bookingID, "status": model.SlotActive})
}

func (r *mongoBookingSlotRepository) FindActiveByEvent(ctx context.Context, eventID string) ([]*model.BookingSlot, error) {
	return r.find(ctx, bson.M{"event_id": eventID, "status": model.SlotActive})
}

func (r *mongoBookingSlotRepository) SlotNumbersByStatus(ctx context.Context, bookingID, status string) ([]int, error) {
	slots, err := r.find(ctx, bson.M{"booking_id": bookingID, "status": status})
	if err != nil {
		return nil, err
	}

	numbers := make([]int, 0, len(slots))
	for _, s := range slots {
		if s.SlotNumber != nil {
			numbers = append(numbers, *s.SlotNumber)
		}
	}
	return numbers, nil
}

func (r *mongoBookingSlotRepository) find(ctx context.Context, filter bson.M) ([]*model.BookingSlot, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "slot_number", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find booking slots: %w", err)
	}
	defer cursor.Close(ctx)

	var slots []*model.BookingSlot
	if err = cursor.All(ctx, &slots); err != nil {
		return nil, fmt.Errorf("failed to decode booking slots: %w", err)
	}

	return slots, nil
}

func (r *mongoBookingSlotRepository) ActivateSlots(ctx context.Context, bookingID string) (int, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{"booking_id": bookingID, "status": model.SlotPendingPayment}
	update := bson.M{"$set": bson.M{
		"status":     model.SlotActive,
		"updated_at": time.Now().UTC().Truncate(time.Millisecond),
	}}

	result, err := r.collection.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("failed to activate booking slots: %w", err)
	}
	return int(result.ModifiedCount), nil
}

func (r *mongoBookingSlotRepository) CancelSlots(ctx context.Context, bookingID string, count int, toStatus string) ([]int, error) {
	active, err := r.FindActiveByBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if len(active) < count {
		return nil, fmt.Errorf("%w: booking %s has %d active slots, cannot cancel %d",
			bookingserrors.ErrNotFound, bookingID, len(active), count)
	}

	// Release the highest numbers first so surviving slot rows keep the
	// contiguous low numbers.
	toCancel := active[len(active)-count:]
	return r.cancel(ctx, toCancel, toStatus)
}

func (r *mongoBookingSlotRepository) CancelAllForBooking(ctx context.Context, bookingID, toStatus string) ([]int, error) {
	live, err := r.find(ctx, bson.M{
		"booking_id": bookingID,
		"status":     bson.M{"$in": []string{model.SlotPendingPayment, model.SlotActive}},
	})
	if err != nil {
		return nil, err
	}
	return r.cancel(ctx, live, toStatus)
}

func (r *mongoBookingSlotRepository) ReinstateSlots(ctx context.Context, bookingID string, numbers []int) error {
	cancelled, err := r.find(ctx, bson.M{"booking_id": bookingID, "status": model.SlotCancelled})
	if err != nil {
		return err
	}
	if len(cancelled) < len(numbers) {
		return fmt.Errorf("%w: booking %s has %d cancelled slots, cannot reinstate %d",
			bookingserrors.ErrNotFound, bookingID, len(cancelled), len(numbers))
	}

	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	for i, n := range numbers {
		oid, err := primitive.ObjectIDFromHex(cancelled[i].ID)
		if err != nil {
			return fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, cancelled[i].ID)
		}
		update := bson.M{"$set": bson.M{
			"status":      model.SlotPendingPayment,
			"slot_number": n,
			"updated_at":  now,
		}}
		if _, err := r.collection.UpdateByID(ctx, oid, update); err != nil {
			return fmt.Errorf("failed to reinstate booking slot: %w", err)
		}
	}
	return nil
}

func (r *mongoBookingSlotRepository) MarkRefunded(ctx context.Context, bookingID string) (int, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{"booking_id": bookingID, "status": model.SlotCancelledRefundPending}
	update := bson.M{"$set": bson.M{
		"status":     model.SlotCancelledRefunded,
		"updated_at": time.Now().UTC().Truncate(time.Millisecond),
	}}

	result, err := r.collection.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("failed to mark booking slots refunded: %w", err)
	}
	return int(result.ModifiedCount), nil
}

func (r *mongoBookingSlotRepository) cancel(ctx context.Context, slots []*model.BookingSlot, toStatus string) ([]int, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if len(slots) == 0 {
		return []int{}, nil
	}

	ids := make([]primitive.ObjectID, 0, len(slots))
	freed := make([]int, 0, len(slots))
	for _, s := range slots {
		oid, err := primitive.ObjectIDFromHex(s.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, s.ID)
		}
		ids = append(ids, oid)
		if s.SlotNumber != nil {
			freed = append(freed, *s.SlotNumber)
		}
	}

	update := bson.M{"$set": bson.M{
		"status":     toStatus,
		"updated_at": time.Now().UTC().Truncate(time.Millisecond),
	}}

	_, err := r.collection.UpdateMany(ctx, bson.M{"_id": bson.M{"$in": ids}}, update)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel booking slots: %w", err)
	}

	return freed, nil
}
