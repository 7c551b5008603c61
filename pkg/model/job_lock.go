package model

import (
	"fmt"
	"time"
)

// JobLock is a coordination row claimed by one process before it runs a
// background sweep. The _id encodes job name plus shard bucket so two
// processes can sweep disjoint buckets of the same job concurrently.
type JobLock struct {
	ID         string    `bson:"_id"`
	Owner      string    `bson:"owner"`
	AcquiredAt time.Time `bson:"acquired_at"`
	ExpiresAt  time.Time `bson:"expires_at"`
}

// JobLockID builds the composite lock identifier for a job and bucket.
func JobLockID(job string, bucket int) string {
	return fmt.Sprintf("%s:%d", job, bucket)
}
