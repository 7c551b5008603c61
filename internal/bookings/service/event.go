package service

import (
	"context"
	"errors"

	bookingserrors "pitchside/internal/bookings/errors"
	"pitchside/internal/bookings/repository"
	"pitchside/internal/bookings/validator"
	"pitchside/pkg/config"
	apperrors "pitchside/pkg/errors"
	"pitchside/pkg/model"
	"pitchside/pkg/sanitizer"
)

type EventService interface {
	Create(ctx context.Context, event *model.Event) (*model.Event, error)
	Get(ctx context.Context, id string) (*model.Event, error)
	List(ctx context.Context, limit int, offset int64) ([]*model.Event, int64, error)
}

type eventService struct {
	repo      repository.EventRepository
	validator *validator.BookingValidator
	cfg       *config.Config
}

func NewEventService(repo repository.EventRepository, v *validator.BookingValidator, cfg *config.Config) EventService {
	return &eventService{
		repo:      repo,
		validator: v,
		cfg:       cfg,
	}
}

func (s *eventService) Create(ctx context.Context, event *model.Event) (*model.Event, error) {
	event.Name = sanitizer.NormalizeName(event.Name)
	event.Currency = sanitizer.NormalizeCurrency(event.Currency)
	event.Version = 0
	event.BookedSlots = 0
	event.LockedSlots = map[string]model.SlotHold{}

	if err := s.validator.ValidateEvent(event); err != nil {
		return nil, apperrors.Validation("Invalid event", map[string]any{"errors": err.Error()})
	}

	if err := s.repo.Create(ctx, event); err != nil {
		return nil, apperrors.Internal("Failed to create event", err)
	}

	s.cfg.Log.Info("Event created",
		"event_id", event.ID,
		"name", event.Name,
		"capacity", event.Capacity,
		"start_time", event.StartTime,
	)
	return event, nil
}

func (s *eventService) Get(ctx context.Context, id string) (*model.Event, error) {
	event, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrEventNotFound) {
			return nil, apperrors.NotFoundWithID("Event", id)
		}
		return nil, apperrors.Internal("Failed to load event", err)
	}
	return event, nil
}

func (s *eventService) List(ctx context.Context, limit int, offset int64) ([]*model.Event, int64, error) {
	events, err := s.repo.FindAll(ctx, limit, offset)
	if err != nil {
		return nil, 0, apperrors.Internal("Failed to list events", err)
	}

	count, err := s.repo.Count(ctx)
	if err != nil {
		return nil, 0, apperrors.Internal("Failed to count events", err)
	}

	return events, count, nil
}
