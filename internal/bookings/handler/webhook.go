package handler

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"pitchside/internal/bookings/service"
	httputil "pitchside/pkg/http"
	"pitchside/pkg/logger"
)

// Gateway webhook event names we act on. Everything else is
// acknowledged and ignored so the gateway stops redelivering.
const (
	webhookPaymentCaptured = "payment.captured"
	webhookPaymentFailed   = "payment.failed"
)

// gatewayWebhook mirrors the gateway's delivery envelope: the payment
// entity is nested under payload.payment.entity.
type gatewayWebhook struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID               string `json:"id"`
				OrderID          string `json:"order_id"`
				Status           string `json:"status"`
				ErrorDescription string `json:"error_description"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// WebhookHandler receives gateway deliveries. Authenticity is enforced
// upstream by the webhook signature middleware.
type WebhookHandler struct {
	bookings service.BookingService
	log      *logger.Logger
}

func NewWebhookHandler(bookings service.BookingService, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		bookings: bookings,
		log:      log,
	}
}

func (h *WebhookHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/webhooks/payments", h.HandlePaymentEvent)
}

func (h *WebhookHandler) HandlePaymentEvent(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var hook gatewayWebhook
	if err := json.NewDecoder(r.Body).Decode(&hook); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid webhook body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "HandlePaymentEvent", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	entity := hook.Payload.Payment.Entity
	h.log.Info("Gateway webhook received",
		"event", hook.Event,
		"order_id", entity.OrderID,
		"payment_id", entity.ID,
	)

	switch hook.Event {
	case webhookPaymentCaptured:
		if _, err := h.bookings.ConfirmByOrder(r.Context(), entity.OrderID, entity.ID); err != nil {
			// A non-2xx makes the gateway redeliver; confirmation is
			// idempotent so a retry is safe.
			if writeErr := httputil.WriteError(w, err); writeErr != nil {
				h.log.Error("failed to write error response", "handler", "HandlePaymentEvent", "operation", "WriteError", "error", writeErr)
			}
			return
		}

	case webhookPaymentFailed:
		reason := entity.ErrorDescription
		if reason == "" {
			reason = "payment failed at gateway"
		}
		if _, err := h.bookings.FailByOrder(r.Context(), entity.OrderID, reason); err != nil {
			if writeErr := httputil.WriteError(w, err); writeErr != nil {
				h.log.Error("failed to write error response", "handler", "HandlePaymentEvent", "operation", "WriteError", "error", writeErr)
			}
			return
		}

	default:
		h.log.Debug("Ignoring unhandled webhook event", "event", hook.Event)
	}

	if err := httputil.WriteSuccess(w, map[string]string{"status": "processed"}); err != nil {
		h.log.Error("failed to write success response", "handler", "HandlePaymentEvent", "operation", "WriteSuccess", "error", err)
	}
}
