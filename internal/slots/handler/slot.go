package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"gymgate/internal/slots/service"
	apperrors "gymgate/pkg/errors"
	httputil "gymgate/pkg/http"
	"gymgate/pkg/logger"
	"gymgate/pkg/middleware"
	"gymgate/pkg/model"
)

type SlotHandler struct {
	service service.SlotService
	log     *logger.Logger
}

func NewSlotHandler(service service.SlotService, log *logger.Logger) *SlotHandler {
	return &SlotHandler{
		service: service,
		log:     log,
	}
}

func (h *SlotHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	principal, err := middleware.PrincipalFrom(r)
	if err == nil {
		err = principal.RequireRole(middleware.RoleTrainer, middleware.RoleAdmin)
	}
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	var slot model.AvailabilitySlot
	if err := json.NewDecoder(r.Body).Decode(&slot); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Create", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	// Trainers manage their own calendar; admins can manage anyone's.
	if principal.Role == middleware.RoleTrainer {
		slot.TrainerID = principal.ID
	}

	if err := h.service.Create(r.Context(), &slot); err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, slot); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *SlotHandler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, err := middleware.PrincipalFrom(r)
	if err == nil {
		err = principal.RequireRole(middleware.RoleTrainer, middleware.RoleAdmin)
	}
	if err != nil {
		h.writeError(w, "Update", err)
		return
	}

	id := ps.ByName("id")

	if err := h.requireOwnership(r, principal, id); err != nil {
		h.writeError(w, "Update", err)
		return
	}

	var updates model.AvailabilitySlotUpdate
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Update", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	if err := h.service.Update(r.Context(), id, &updates); err != nil {
		h.writeError(w, "Update", err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *SlotHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, err := middleware.PrincipalFrom(r)
	if err == nil {
		err = principal.RequireRole(middleware.RoleTrainer, middleware.RoleAdmin)
	}
	if err != nil {
		h.writeError(w, "Cancel", err)
		return
	}

	id := ps.ByName("id")

	if err := h.requireOwnership(r, principal, id); err != nil {
		h.writeError(w, "Cancel", err)
		return
	}

	if err := h.service.Cancel(r.Context(), id); err != nil {
		h.writeError(w, "Cancel", err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *SlotHandler) ByTrainer(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	slots, err := h.service.GetByTrainer(r.Context(), ps.ByName("trainer_id"))
	if err != nil {
		h.writeError(w, "ByTrainer", err)
		return
	}

	if err := httputil.WriteSuccess(w, slots); err != nil {
		h.log.Error("failed to write success response", "handler", "ByTrainer", "operation", "WriteSuccess", "error", err)
	}
}

func (h *SlotHandler) Availability(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	dateStr := r.URL.Query().Get("date")
	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		h.writeError(w, "Availability", apperrors.InvalidInput("date must be in YYYY-MM-DD form"))
		return
	}

	windows, err := h.service.AvailableForDate(r.Context(), ps.ByName("trainer_id"), date)
	if err != nil {
		h.writeError(w, "Availability", err)
		return
	}

	if err := httputil.WriteSuccess(w, windows); err != nil {
		h.log.Error("failed to write success response", "handler", "Availability", "operation", "WriteSuccess", "error", err)
	}
}

// requireOwnership lets a trainer touch only their own slots.
func (h *SlotHandler) requireOwnership(r *http.Request, principal middleware.Principal, slotID string) error {
	if principal.Role == middleware.RoleAdmin {
		return nil
	}

	slot, err := h.service.GetByID(r.Context(), slotID)
	if err != nil {
		return err
	}
	if slot.TrainerID != principal.ID {
		return apperrors.Forbidden("slot belongs to another trainer")
	}
	return nil
}

func (h *SlotHandler) writeError(w http.ResponseWriter, op string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", op, "operation", "WriteError", "error", writeErr)
	}
}

func (h *SlotHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/slots", h.Create)
	router.PATCH("/api/v1/slots/id/:id", h.Update)
	router.POST("/api/v1/slots/id/:id/cancel", h.Cancel)
	router.GET("/api/v1/trainers/:trainer_id/slots", h.ByTrainer)
	router.GET("/api/v1/trainers/:trainer_id/availability", h.Availability)
}
