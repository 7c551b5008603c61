package service

import (
	"context"
	"errors"
	"time"

	bookingserrors "pitchside/internal/bookings/errors"
	"pitchside/internal/bookings/repository"
	"pitchside/pkg/config"
	apperrors "pitchside/pkg/errors"
	"pitchside/pkg/model"
)

// AvailabilityService answers "which slot numbers can be booked right
// now" and pushes waitlist notifications when capacity frees up.
type AvailabilityService interface {
	// FreeSlots returns the slot numbers open for a new hold: the full
	// 1..capacity range minus ACTIVE rows and live holds.
	FreeSlots(ctx context.Context, eventID string) (*model.Event, []int, error)
	// CheckAndNotify recomputes free capacity and, if any exists, hands
	// it to the waitlist. Never returns an error: it runs post-commit
	// and must not fail its caller.
	CheckAndNotify(ctx context.Context, eventID string)
}

type availabilityService struct {
	eventRepo repository.EventRepository
	slotRepo  repository.BookingSlotRepository
	notifier  Notifier
	cfg       *config.Config
	now       func() time.Time
}

func NewAvailabilityService(
	eventRepo repository.EventRepository,
	slotRepo repository.BookingSlotRepository,
	notifier Notifier,
	cfg *config.Config,
) AvailabilityService {
	return &availabilityService{
		eventRepo: eventRepo,
		slotRepo:  slotRepo,
		notifier:  notifier,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (s *availabilityService) FreeSlots(ctx context.Context, eventID string) (*model.Event, []int, error) {
	event, err := s.eventRepo.FindByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrEventNotFound) {
			return nil, nil, apperrors.NotFoundWithID("Event", eventID)
		}
		return nil, nil, apperrors.Internal("Failed to load event", err)
	}

	taken := make(map[int]bool)
	for n := range event.LiveHeldSlots(s.now()) {
		taken[n] = true
	}

	active, err := s.slotRepo.FindActiveByEvent(ctx, eventID)
	if err != nil {
		return nil, nil, apperrors.Internal("Failed to load booked slots", err)
	}
	for _, row := range active {
		if row.SlotNumber != nil {
			taken[*row.SlotNumber] = true
		}
	}

	free := make([]int, 0, event.Capacity)
	for n := 1; n <= event.Capacity; n++ {
		if !taken[n] {
			free = append(free, n)
		}
	}
	return event, free, nil
}

func (s *availabilityService) CheckAndNotify(ctx context.Context, eventID string) {
	event, err := s.eventRepo.FindByID(ctx, eventID)
	if err != nil {
		s.cfg.Log.Warn("Could not load event for availability check", "event_id", eventID, "error", err)
		return
	}

	active, err := s.slotRepo.FindActiveByEvent(ctx, eventID)
	if err != nil {
		s.cfg.Log.Warn("Could not load booked slots for availability check", "event_id", eventID, "error", err)
		return
	}

	booked := make(map[int]bool, len(active))
	for _, row := range active {
		if row.SlotNumber != nil {
			booked[*row.SlotNumber] = true
		}
	}

	free := make([]int, 0, event.Capacity)
	for n := 1; n <= event.Capacity; n++ {
		if !booked[n] {
			free = append(free, n)
		}
	}
	if len(free) == 0 {
		return
	}

	s.notifier.SlotsAvailable(ctx, event, free)
}
