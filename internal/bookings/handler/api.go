package handler

import (
	"github.com/julienschmidt/httprouter"
)

// APIHandler bundles the public API surface onto one router.
type APIHandler struct {
	bookings *BookingHandler
	events   *EventHandler
}

func NewAPIHandler(bookings *BookingHandler, events *EventHandler) *APIHandler {
	return &APIHandler{
		bookings: bookings,
		events:   events,
	}
}

func (h *APIHandler) RegisterRoutes(router *httprouter.Router) {
	h.bookings.RegisterRoutes(router)
	h.events.RegisterRoutes(router)
}
