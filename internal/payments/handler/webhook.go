package handler

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"gymgate/internal/payments/service"
	httputil "gymgate/pkg/http"
	"gymgate/pkg/logger"
)

// WebhookHandler receives payment provider callbacks. Signature
// verification happens in middleware before the request reaches it.
type WebhookHandler struct {
	service service.PaymentService
	log     *logger.Logger
}

func NewWebhookHandler(service service.PaymentService, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		service: service,
		log:     log,
	}
}

type webhookResponse struct {
	Status string `json:"status"`
}

func (h *WebhookHandler) Payments(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var event service.PaymentEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid webhook body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Payments", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	outcome, err := h.service.Process(r.Context(), &event)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Payments", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteJSON(w, http.StatusOK, webhookResponse{Status: string(outcome)}); err != nil {
		h.log.Error("failed to write JSON response", "handler", "Payments", "operation", "WriteJSON", "error", err)
	}
}

func (h *WebhookHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/webhooks/payments", h.Payments)
}
