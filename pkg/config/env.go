package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvSlotHoldTTL       = "SLOT_HOLD_TTL"
	EnvHoldRetryAttempts = "HOLD_RETRY_ATTEMPTS"
	EnvHoldRetryBackoff  = "HOLD_RETRY_BACKOFF"
	EnvMaxSlotsPerHold   = "MAX_SLOTS_PER_HOLD"

	EnvExpirySweepPeriod    = "EXPIRY_SWEEP_PERIOD"
	EnvReconcileSweepPeriod = "RECONCILE_SWEEP_PERIOD"
	EnvReconcileWindowMin   = "RECONCILE_WINDOW_MIN"
	EnvReconcileWindowMax   = "RECONCILE_WINDOW_MAX"
	EnvSweepBatchSize       = "SWEEP_BATCH_SIZE"

	EnvJobLockTTL     = "JOB_LOCK_TTL"
	EnvJobLockBuckets = "JOB_LOCK_BUCKETS"

	EnvGatewayBaseURL       = "GATEWAY_BASE_URL"
	EnvGatewayKeyID         = "GATEWAY_KEY_ID"
	EnvGatewayKeySecret     = "GATEWAY_KEY_SECRET"
	EnvGatewayWebhookSecret = "GATEWAY_WEBHOOK_SECRET"
	EnvGatewayTimeout       = "GATEWAY_TIMEOUT"

	EnvUsersServiceURL = "USERS_SERVICE_URL"
)
