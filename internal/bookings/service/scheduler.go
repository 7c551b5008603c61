package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"pitchside/internal/bookings/repository"
	"pitchside/pkg/config"
)

// Sweep job names, visible in the lock rows.
const (
	JobExpirySweep    = "booking_expiry_sweep"
	JobReconcileSweep = "booking_reconcile_sweep"
)

// SweepScheduler drives the periodic sweeps. Each tick maps to a time
// bucket; the instance that wins the (job, bucket) lock runs the sweep,
// everyone else skips. Several instances can therefore run the binary
// without duplicating sweep work.
type SweepScheduler struct {
	locks      repository.JobLockRepository
	reconciler ReconciliationService
	cfg        *config.Config
	owner      string

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewSweepScheduler(locks repository.JobLockRepository, reconciler ReconciliationService, cfg *config.Config) *SweepScheduler {
	return &SweepScheduler{
		locks:      locks,
		reconciler: reconciler,
		cfg:        cfg,
		owner:      uuid.NewString(),
		stop:       make(chan struct{}),
	}
}

func (s *SweepScheduler) Start() {
	s.cfg.Log.Info("Starting sweep scheduler",
		"owner", s.owner,
		"expiry_period", s.cfg.ExpirySweepPeriod,
		"reconcile_period", s.cfg.ReconcileSweepPeriod,
	)

	s.wg.Add(2)
	go s.runLoop(JobExpirySweep, s.cfg.ExpirySweepPeriod, func(ctx context.Context) error {
		_, err := s.reconciler.ExpirySweep(ctx)
		return err
	})
	go s.runLoop(JobReconcileSweep, s.cfg.ReconcileSweepPeriod, func(ctx context.Context) error {
		_, err := s.reconciler.ReconcileSweep(ctx)
		return err
	})
}

// Stop halts both loops and waits for an in-flight sweep to finish.
func (s *SweepScheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	s.wg.Wait()
	s.cfg.Log.Info("Sweep scheduler stopped", "owner", s.owner)
}

func (s *SweepScheduler) runLoop(job string, period time.Duration, sweep func(ctx context.Context) error) {
	defer s.wg.Done()

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case now := <-ticker.C:
			s.runOnce(job, period, now, sweep)
		}
	}
}

func (s *SweepScheduler) runOnce(job string, period time.Duration, now time.Time, sweep func(ctx context.Context) error) {
	// The lock TTL bounds the run; it must outlive a realistic sweep so
	// a slow run is not preempted mid-flight.
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.JobLockTTL)
	defer cancel()

	bucket := int(now.Unix()/int64(period.Seconds())) % s.cfg.JobLockBuckets

	acquired, err := s.locks.Acquire(ctx, job, bucket, s.owner, s.cfg.JobLockTTL)
	if err != nil {
		s.cfg.Log.Error("Job lock acquisition failed", "job", job, "bucket", bucket, "error", err)
		return
	}
	if !acquired {
		s.cfg.Log.Debug("Job lock held elsewhere, skipping run", "job", job, "bucket", bucket)
		return
	}

	if err := sweep(ctx); err != nil {
		s.cfg.Log.Error("Sweep run failed", "job", job, "bucket", bucket, "error", err)
	}

	if err := s.locks.Release(ctx, job, bucket, s.owner); err != nil {
		if errors.Is(err, repository.ErrLockLost) {
			s.cfg.Log.Warn("Job lock expired during run, another instance may have overlapped",
				"job", job,
				"bucket", bucket,
			)
			return
		}
		s.cfg.Log.Error("Job lock release failed", "job", job, "bucket", bucket, "error", err)
	}
}
