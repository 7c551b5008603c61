package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "pitchside"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPort     = "8080"
	DefaultLogLevel = "info"

	DefaultRateLimitRequests = 10
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultPaginationLimit = 100

	// Slot holds and the payment window they protect.
	DefaultSlotHoldTTL       = 10 * time.Minute
	DefaultHoldRetryAttempts = 3
	DefaultHoldRetryBackoff  = 25 * time.Millisecond
	DefaultMaxSlotsPerHold   = 20

	// Background sweeps. The reconciliation band brackets bookings old
	// enough that a gateway capture would have landed, but young enough
	// that the expiry sweep has not yet claimed them.
	DefaultExpirySweepPeriod    = 1 * time.Minute
	DefaultReconcileSweepPeriod = 5 * time.Minute
	DefaultReconcileWindowMin   = 7 * time.Minute
	DefaultReconcileWindowMax   = 22 * time.Minute
	DefaultSweepBatchSize       = 100

	// Job coordination rows.
	DefaultJobLockTTL     = 2 * time.Minute
	DefaultJobLockBuckets = 4

	DefaultGatewayBaseURL = "https://api.razorpay.com/v1"
	DefaultGatewayTimeout = 10 * time.Second

	DefaultUsersServiceURL = "http://localhost:8081"
)
