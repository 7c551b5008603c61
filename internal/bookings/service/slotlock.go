package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"pitchside/internal/bookings/repository"
	"pitchside/pkg/config"
	apperrors "pitchside/pkg/errors"
	"pitchside/pkg/model"
	"pitchside/pkg/sanitizer"
)

// Hold is a successful slot reservation. The lock key is the caller's
// handle for confirming or releasing it.
type Hold struct {
	LockKey   string    `json:"lock_key"`
	EventID   string    `json:"event_id"`
	Slots     []int     `json:"slots"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SlotLockService places and releases slot holds with optimistic
// concurrency on the event document. Every write re-reads the event,
// prunes dead holds, and compare-and-swaps against the version it read.
type SlotLockService interface {
	// TryHold reserves slotCount slots. requestedSlots is advisory: the
	// engine honors it when every requested slot is free, otherwise the
	// request fails with a slot conflict so the caller can reselect.
	// An empty request lets the engine pick the lowest free numbers.
	TryHold(ctx context.Context, eventID string, slotCount int, requestedSlots []int) (*Hold, error)
	// Release drops a hold. Releasing a missing or expired hold is a
	// no-op so retries and post-confirmation cleanup stay idempotent.
	Release(ctx context.Context, eventID, lockKey string) error
}

type slotLockService struct {
	eventRepo repository.EventRepository
	slotRepo  repository.BookingSlotRepository
	cfg       *config.Config
	now       func() time.Time
}

func NewSlotLockService(
	eventRepo repository.EventRepository,
	slotRepo repository.BookingSlotRepository,
	cfg *config.Config,
) SlotLockService {
	return &slotLockService{
		eventRepo: eventRepo,
		slotRepo:  slotRepo,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (s *slotLockService) TryHold(ctx context.Context, eventID string, slotCount int, requestedSlots []int) (*Hold, error) {
	if slotCount > s.cfg.MaxSlotsPerHold {
		return nil, apperrors.InvalidInput("slot count exceeds the per-booking limit")
	}

	for attempt := 0; attempt < s.cfg.HoldRetryAttempts; attempt++ {
		hold, retry, err := s.tryHoldOnce(ctx, eventID, slotCount, requestedSlots)
		if err != nil {
			return nil, err
		}
		if !retry {
			return hold, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.cfg.HoldRetryBackoff):
		}
	}

	s.cfg.Log.Warn("Slot hold lost the version race on every attempt",
		"event_id", eventID,
		"attempts", s.cfg.HoldRetryAttempts,
	)
	return nil, apperrors.RetryConflict(eventID)
}

// tryHoldOnce runs one read-compute-CAS cycle. retry reports a lost
// version race; other outcomes are final.
func (s *slotLockService) tryHoldOnce(ctx context.Context, eventID string, slotCount int, requestedSlots []int) (hold *Hold, retry bool, err error) {
	event, err := s.eventRepo.FindByID(ctx, eventID)
	if err != nil {
		return nil, false, err
	}

	now := s.now()
	taken, err := s.takenSlots(ctx, event, now)
	if err != nil {
		return nil, false, err
	}

	free := event.Capacity - len(taken)
	if free < slotCount {
		return nil, false, apperrors.InsufficientCapacity(eventID, slotCount, free)
	}

	slots, conflictSlots := chooseSlots(event.Capacity, slotCount, requestedSlots, taken)
	if len(conflictSlots) > 0 {
		return nil, false, apperrors.SlotConflict(eventID, conflictSlots)
	}

	lockKey := uuid.New().String()
	holds := event.LockedSlots
	if holds == nil {
		holds = map[string]model.SlotHold{}
	}
	holds[lockKey] = model.SlotHold{
		Slots:     slots,
		ExpiresAt: now.Add(s.cfg.SlotHoldTTL),
	}

	matched, err := s.eventRepo.ReplaceHolds(ctx, eventID, event.Version, holds)
	if err != nil {
		return nil, false, err
	}
	if !matched {
		return nil, true, nil
	}

	return &Hold{
		LockKey:   lockKey,
		EventID:   eventID,
		Slots:     slots,
		ExpiresAt: holds[lockKey].ExpiresAt,
	}, false, nil
}

func (s *slotLockService) Release(ctx context.Context, eventID, lockKey string) error {
	for attempt := 0; attempt < s.cfg.HoldRetryAttempts; attempt++ {
		event, err := s.eventRepo.FindByID(ctx, eventID)
		if err != nil {
			return err
		}

		if _, exists := event.LockedSlots[lockKey]; !exists {
			return nil
		}

		holds := event.LockedSlots
		delete(holds, lockKey)
		event.PruneExpiredHolds(s.now())

		matched, err := s.eventRepo.ReplaceHolds(ctx, eventID, event.Version, holds)
		if err != nil {
			return err
		}
		if matched {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.cfg.HoldRetryBackoff):
		}
	}

	return apperrors.RetryConflict(eventID)
}

// takenSlots is the union of confirmed slot rows and live holds.
func (s *slotLockService) takenSlots(ctx context.Context, event *model.Event, now time.Time) (map[int]struct{}, error) {
	taken := event.LiveHeldSlots(now)

	active, err := s.slotRepo.FindActiveByEvent(ctx, event.ID)
	if err != nil {
		return nil, err
	}
	for _, row := range active {
		if row.SlotNumber != nil {
			taken[*row.SlotNumber] = struct{}{}
		}
	}

	return taken, nil
}

// chooseSlots resolves the final slot numbers for a hold. Requested
// numbers are normalized first; any requested slot already taken is
// returned as a conflict. Without a request the lowest free numbers win.
func chooseSlots(capacity, slotCount int, requested []int, taken map[int]struct{}) (slots []int, conflicts []int) {
	if len(requested) > 0 {
		normalized := sanitizer.NormalizeSlotNumbers(requested, capacity)
		if len(normalized) != slotCount {
			// Out-of-range or duplicate numbers cannot be honored.
			return nil, requested
		}
		for _, n := range normalized {
			if _, ok := taken[n]; ok {
				conflicts = append(conflicts, n)
			}
		}
		if len(conflicts) > 0 {
			return nil, conflicts
		}
		return normalized, nil
	}

	slots = make([]int, 0, slotCount)
	for n := 1; n <= capacity && len(slots) < slotCount; n++ {
		if _, ok := taken[n]; !ok {
			slots = append(slots, n)
		}
	}
	return slots, nil
}
