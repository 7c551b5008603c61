package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"pitchside/pkg/client"
	"pitchside/pkg/logger"
)

type Config struct {
	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration

	Port string

	RateLimitRequests int
	RateLimitWindow   time.Duration

	RequestTimeout time.Duration
	IdempotencyTTL time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	SlotHoldTTL       time.Duration
	HoldRetryAttempts int
	HoldRetryBackoff  time.Duration
	MaxSlotsPerHold   int

	ExpirySweepPeriod    time.Duration
	ReconcileSweepPeriod time.Duration
	ReconcileWindowMin   time.Duration
	ReconcileWindowMax   time.Duration
	SweepBatchSize       int

	JobLockTTL     time.Duration
	JobLockBuckets int

	GatewayBaseURL       string
	GatewayKeyID         string
	GatewayKeySecret     string
	GatewayWebhookSecret string
	GatewayTimeout       time.Duration

	UsersServiceURL string

	Log    *logger.Logger
	Client *client.Client
}

func Load(serviceName string) *Config {
	cfg := &Config{
		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),

		Port: getEnvStr(EnvPort, DefaultPort),

		RateLimitRequests: getEnvNum(EnvRateLimitRequests, DefaultRateLimitRequests),
		RateLimitWindow:   getEnvDuration(EnvRateLimitWindow, DefaultRateLimitWindow),

		RequestTimeout: getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		IdempotencyTTL: getEnvDuration(EnvIdempotencyTTL, DefaultIdempotencyTTL),
		MaxRequestSize: getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		SlotHoldTTL:       getEnvDuration(EnvSlotHoldTTL, DefaultSlotHoldTTL),
		HoldRetryAttempts: getEnvNum(EnvHoldRetryAttempts, DefaultHoldRetryAttempts),
		HoldRetryBackoff:  getEnvDuration(EnvHoldRetryBackoff, DefaultHoldRetryBackoff),
		MaxSlotsPerHold:   getEnvNum(EnvMaxSlotsPerHold, DefaultMaxSlotsPerHold),

		ExpirySweepPeriod:    getEnvDuration(EnvExpirySweepPeriod, DefaultExpirySweepPeriod),
		ReconcileSweepPeriod: getEnvDuration(EnvReconcileSweepPeriod, DefaultReconcileSweepPeriod),
		ReconcileWindowMin:   getEnvDuration(EnvReconcileWindowMin, DefaultReconcileWindowMin),
		ReconcileWindowMax:   getEnvDuration(EnvReconcileWindowMax, DefaultReconcileWindowMax),
		SweepBatchSize:       getEnvNum(EnvSweepBatchSize, DefaultSweepBatchSize),

		JobLockTTL:     getEnvDuration(EnvJobLockTTL, DefaultJobLockTTL),
		JobLockBuckets: getEnvNum(EnvJobLockBuckets, DefaultJobLockBuckets),

		GatewayBaseURL:       getEnvStr(EnvGatewayBaseURL, DefaultGatewayBaseURL),
		GatewayKeyID:         getEnvStr(EnvGatewayKeyID, ""),
		GatewayKeySecret:     getEnvStr(EnvGatewayKeySecret, ""),
		GatewayWebhookSecret: getEnvStr(EnvGatewayWebhookSecret, ""),
		GatewayTimeout:       getEnvDuration(EnvGatewayTimeout, DefaultGatewayTimeout),

		UsersServiceURL: getEnvStr(EnvUsersServiceURL, DefaultUsersServiceURL),

		Log: logger.New(logger.Config{
			Level:     getEnvStr(EnvLogLevel, DefaultLogLevel),
			Format:    logger.JSON,
			AddSource: true,
			Service:   serviceName,
		}),
		Client: client.NewClient(),
	}

	err := cfg.Validate()
	if err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
}

func (cfg *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	if cfg.MongoURI == "" {
		errors = append(errors, "MongoURI cannot be empty")
	} else if len(cfg.MongoURI) < 10 || !regexp.MustCompile(`^mongodb(\+srv)?://`).MatchString(cfg.MongoURI) {
		errors = append(errors, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", cfg.MongoURI))
	}

	if cfg.MongoDatabaseName == "" {
		errors = append(errors, "MongoDatabaseName cannot be empty")
	}

	if cfg.MongoConnTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("MongoConnTimeout must be positive, got: %s", cfg.MongoConnTimeout))
	}
	if cfg.RateLimitWindow <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitWindow must be positive, got: %s", cfg.RateLimitWindow))
	}
	if cfg.RequestTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("RequestTimeout must be positive, got: %s", cfg.RequestTimeout))
	}
	if cfg.IdempotencyTTL <= 0 {
		errors = append(errors, fmt.Sprintf("IdempotencyTTL must be positive, got: %s", cfg.IdempotencyTTL))
	}
	if cfg.ReadTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ReadTimeout must be positive, got: %s", cfg.ReadTimeout))
	}
	if cfg.WriteTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("WriteTimeout must be positive, got: %s", cfg.WriteTimeout))
	}
	if cfg.IdleTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("IdleTimeout must be positive, got: %s", cfg.IdleTimeout))
	}
	if cfg.ShutdownTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ShutdownTimeout must be positive, got: %s", cfg.ShutdownTimeout))
	}

	if cfg.RateLimitRequests <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitRequests must be positive, got: %d", cfg.RateLimitRequests))
	}
	if cfg.MaxRequestSize <= 0 {
		errors = append(errors, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}

	if cfg.SlotHoldTTL <= 0 {
		errors = append(errors, fmt.Sprintf("SlotHoldTTL must be positive, got: %s", cfg.SlotHoldTTL))
	}
	if cfg.HoldRetryAttempts < 1 {
		errors = append(errors, fmt.Sprintf("HoldRetryAttempts must be at least 1, got: %d", cfg.HoldRetryAttempts))
	}
	if cfg.MaxSlotsPerHold < 1 {
		errors = append(errors, fmt.Sprintf("MaxSlotsPerHold must be at least 1, got: %d", cfg.MaxSlotsPerHold))
	}

	if cfg.ExpirySweepPeriod <= 0 {
		errors = append(errors, fmt.Sprintf("ExpirySweepPeriod must be positive, got: %s", cfg.ExpirySweepPeriod))
	}
	if cfg.ReconcileSweepPeriod <= 0 {
		errors = append(errors, fmt.Sprintf("ReconcileSweepPeriod must be positive, got: %s", cfg.ReconcileSweepPeriod))
	}
	if cfg.ReconcileWindowMax <= cfg.ReconcileWindowMin {
		errors = append(errors, fmt.Sprintf("ReconcileWindowMax (%s) must be greater than ReconcileWindowMin (%s)", cfg.ReconcileWindowMax, cfg.ReconcileWindowMin))
	}
	if cfg.ReconcileWindowMin <= cfg.SlotHoldTTL/2 {
		errors = append(errors, fmt.Sprintf("ReconcileWindowMin (%s) should exceed half the SlotHoldTTL (%s) so in-flight payments are not reconciled early", cfg.ReconcileWindowMin, cfg.SlotHoldTTL))
	}
	if cfg.SweepBatchSize < 1 {
		errors = append(errors, fmt.Sprintf("SweepBatchSize must be at least 1, got: %d", cfg.SweepBatchSize))
	}

	if cfg.JobLockTTL <= 0 {
		errors = append(errors, fmt.Sprintf("JobLockTTL must be positive, got: %s", cfg.JobLockTTL))
	}
	if cfg.JobLockBuckets < 1 {
		errors = append(errors, fmt.Sprintf("JobLockBuckets must be at least 1, got: %d", cfg.JobLockBuckets))
	}

	if cfg.GatewayBaseURL == "" {
		errors = append(errors, "GatewayBaseURL cannot be empty")
	}
	if cfg.GatewayTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("GatewayTimeout must be positive, got: %s", cfg.GatewayTimeout))
	}
	if cfg.UsersServiceURL == "" {
		errors = append(errors, "UsersServiceURL cannot be empty")
	}

	if len(errors) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, err := range errors {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"mongo_uri", redactMongoURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"mongo_conn_timeout", cfg.MongoConnTimeout,
		"port", cfg.Port,
		"rate_limit_requests", cfg.RateLimitRequests,
		"rate_limit_window", cfg.RateLimitWindow,
		"request_timeout", cfg.RequestTimeout,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"max_request_size", cfg.MaxRequestSize,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
		"slot_hold_ttl", cfg.SlotHoldTTL,
		"hold_retry_attempts", cfg.HoldRetryAttempts,
		"max_slots_per_hold", cfg.MaxSlotsPerHold,
		"expiry_sweep_period", cfg.ExpirySweepPeriod,
		"reconcile_sweep_period", cfg.ReconcileSweepPeriod,
		"reconcile_window_min", cfg.ReconcileWindowMin,
		"reconcile_window_max", cfg.ReconcileWindowMax,
		"sweep_batch_size", cfg.SweepBatchSize,
		"job_lock_ttl", cfg.JobLockTTL,
		"job_lock_buckets", cfg.JobLockBuckets,
		"gateway_base_url", cfg.GatewayBaseURL,
		"gateway_key_set", cfg.GatewayKeyID != "",
		"gateway_webhook_secret_set", cfg.GatewayWebhookSecret != "",
		"gateway_timeout", cfg.GatewayTimeout,
		"users_service_url", cfg.UsersServiceURL,
	)
}

func redactMongoURI(uri string) string {
	credentialRegex := regexp.MustCompile(`(mongodb(\+srv)?://)[^:]+:[^@]+@`)
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

func getEnvStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvNum(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown()
}

func NormalizePaginationLimit(limit int) int {
	if limit <= 0 {
		limit = 10
	} else if limit > DefaultPaginationLimit {
		limit = DefaultPaginationLimit
	}
	return limit
}

func NormalizeOffset(offset int64) int64 {
	return max(0, offset)
}
