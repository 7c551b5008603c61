package handler

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"pitchside/internal/bookings/service"
	httputil "pitchside/pkg/http"
	"pitchside/pkg/logger"
	"pitchside/pkg/model"
)

type EventHandler struct {
	events       service.EventService
	availability service.AvailabilityService
	reconciler   service.ReconciliationService
	log          *logger.Logger
}

func NewEventHandler(
	events service.EventService,
	availability service.AvailabilityService,
	reconciler service.ReconciliationService,
	log *logger.Logger,
) *EventHandler {
	return &EventHandler{
		events:       events,
		availability: availability,
		reconciler:   reconciler,
		log:          log,
	}
}

func (h *EventHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/events", h.Create)
	router.GET("/api/v1/events", h.GetAll)
	router.GET("/api/v1/events/:id", h.GetByID)
	router.GET("/api/v1/events/:id/availability", h.Availability)
	router.POST("/api/v1/events/:id/reconcile", h.Reconcile)
}

func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var event model.Event
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Create", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	created, err := h.events.Create(r.Context(), &event)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Create", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteCreated(w, created); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *EventHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	event, err := h.events.Get(r.Context(), ps.ByName("id"))
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetByID", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, event); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *EventHandler) GetAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetAll", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	events, total, err := h.events.List(r.Context(), limit, offset)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetAll", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WritePaginated(w, events, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "GetAll", "operation", "WritePaginated", "error", err)
	}
}

type availabilityResponse struct {
	EventID      string `json:"event_id"`
	Capacity     int    `json:"capacity"`
	FreeSlots    []int  `json:"free_slots"`
	FreeCount    int    `json:"free_count"`
	PricePerSlot int64  `json:"price_per_slot"`
	Currency     string `json:"currency"`
}

func (h *EventHandler) Availability(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	event, free, err := h.availability.FreeSlots(r.Context(), ps.ByName("id"))
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Availability", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, availabilityResponse{
		EventID:      event.ID,
		Capacity:     event.Capacity,
		FreeSlots:    free,
		FreeCount:    len(free),
		PricePerSlot: event.PricePerSlot,
		Currency:     event.Currency,
	}); err != nil {
		h.log.Error("failed to write success response", "handler", "Availability", "operation", "WriteSuccess", "error", err)
	}
}

// Reconcile triggers an immediate reconciliation pass over one event's
// unresolved bookings, without waiting for the next scheduled sweep.
func (h *EventHandler) Reconcile(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	stats, err := h.reconciler.ReconcileEvent(r.Context(), ps.ByName("id"))
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Reconcile", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteAccepted(w, stats); err != nil {
		h.log.Error("failed to write accepted response", "handler", "Reconcile", "operation", "WriteAccepted", "error", err)
	}
}
