package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"pitchside/pkg/config"
	"pitchside/pkg/model"
)

const (
	JobLockCollectionName = "Job_locks"
)

type mongoJobLockRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
}

// JobLockRepository coordinates background sweeps across processes.
// One row per job+bucket; whoever holds the unexpired row runs the
// sweep for that bucket.
type JobLockRepository interface {
	// Acquire claims the lock for owner. It reports false when another
	// unexpired owner holds it. An expired row is taken over in place.
	Acquire(ctx context.Context, job string, bucket int, owner string, ttl time.Duration) (bool, error)
	// Release deletes the lock only if owner still holds it.
	Release(ctx context.Context, job string, bucket int, owner string) error
}

func NewMongoJobLockRepository(cfg *config.Config) JobLockRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoJobLockRepository{
		cfg:        cfg,
		db:         db,
		collection: db.Collection(JobLockCollectionName),
	}
}

func (r *mongoJobLockRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
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

func (r *mongoJobLockRepository) Acquire(ctx context.Context, job string, bucket int, owner string, ttl time.Duration) (bool, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC()
	lock := model.JobLock{
		ID:         model.JobLockID(job, bucket),
		Owner:      owner,
		AcquiredAt: now,
		ExpiresAt:  now.Add(ttl),
	}

	_, err := r.collection.InsertOne(ctx, lock)
	if err == nil {
		return true, nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return false, fmt.Errorf("failed to acquire job lock: %w", err)
	}

	// Row exists. Take it over only if the previous owner let it expire.
	filter := bson.M{
		"_id":        lock.ID,
		"expires_at": bson.M{"$lt": now},
	}
	update := bson.M{"$set": bson.M{
		"owner":       owner,
		"acquired_at": now,
		"expires_at":  now.Add(ttl),
	}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to take over expired job lock: %w", err)
	}

	return result.MatchedCount == 1, nil
}

func (r *mongoJobLockRepository) Release(ctx context.Context, job string, bucket int, owner string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{
		"_id":   model.JobLockID(job, bucket),
		"owner": owner,
	}

	result, err := r.collection.DeleteOne(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to release job lock: %w", err)
	}
	if result.DeletedCount == 0 {
		// Either expired and taken over, or already released. The sweep
		// that lost its lock must not delete the new owner's row.
		return errNotLockOwner(job, bucket, owner)
	}

	return nil
}

func errNotLockOwner(job string, bucket int, owner string) error {
	return fmt.Errorf("job lock %s not held by %s: %w",
		model.JobLockID(job, bucket), owner, ErrLockLost)
}

// ErrLockLost means the release found the lock held by someone else.
var ErrLockLost = errors.New("job lock lost")
