package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"pitchside/pkg/config"
	"pitchside/pkg/model"
)

const (
	RefundCollectionName = "Refunds"
)

type mongoRefundRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
}

// RefundRepository is append-only across attempts. Failed rows stay in
// place and a retry inserts a fresh row; a row's own status still
// advances as the gateway settles it.
type RefundRepository interface {
	Insert(ctx context.Context, refund *model.Refund) error
	FindByBooking(ctx context.Context, bookingID string) ([]*model.Refund, error)
	// FindByStatus returns the oldest rows in the given status, for the
	// reconciler's settlement poll.
	FindByStatus(ctx context.Context, status string, limit int) ([]*model.Refund, error)
	UpdateStatus(ctx context.Context, id, status string) error
}

func NewMongoRefundRepository(cfg *config.Config) RefundRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoRefundRepository{
		cfg:        cfg,
		db:         db,
		collection: db.Collection(RefundCollectionName),
	}
}

func (r *mongoRefundRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
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

func (r *mongoRefundRepository) Insert(ctx context.Context, refund *model.Refund) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	refund.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	result, err := r.collection.InsertOne(ctx, refund)
	if err != nil {
		return fmt.Errorf("failed to insert refund: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		refund.ID = oid.Hex()
	}
	return nil
}

func (r *mongoRefundRepository) FindByBooking(ctx context.Context, bookingID string) ([]*model.Refund, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})

	cursor, err := r.collection.Find(ctx, bson.M{"booking_id": bookingID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find refunds: %w", err)
	}
	defer cursor.Close(ctx)

	var refunds []*model.Refund
	if err = cursor.All(ctx, &refunds); err != nil {
		return nil, fmt.Errorf("failed to decode refunds: %w", err)
	}

	return refunds, nil
}

func (r *mongoRefundRepository) FindByStatus(ctx context.Context, status string, limit int) ([]*model.Refund, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, bson.M{"status": status}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find refunds by status: %w", err)
	}
	defer cursor.Close(ctx)

	var refunds []*model.Refund
	if err = cursor.All(ctx, &refunds); err != nil {
		return nil, fmt.Errorf("failed to decode refunds: %w", err)
	}

	return refunds, nil
}

func (r *mongoRefundRepository) UpdateStatus(ctx context.Context, id, status string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("invalid refund id %s: %w", id, err)
	}

	update := bson.M{"$set": bson.M{
		"status":     status,
		"updated_at": time.Now().UTC().Truncate(time.Millisecond),
	}}
	if _, err := r.collection.UpdateByID(ctx, oid, update); err != nil {
		return fmt.Errorf("failed to update refund status: %w", err)
	}
	return nil
}
