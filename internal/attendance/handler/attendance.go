package handler

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"gymgate/internal/attendance/service"
	apperrors "gymgate/pkg/errors"
	httputil "gymgate/pkg/http"
	"gymgate/pkg/logger"
	"gymgate/pkg/middleware"
)

type AttendanceHandler struct {
	service service.AttendanceService
	log     *logger.Logger
}

func NewAttendanceHandler(service service.AttendanceService, log *logger.Logger) *AttendanceHandler {
	return &AttendanceHandler{
		service: service,
		log:     log,
	}
}

type checkInRequest struct {
	ClientID       string `json:"client_id,omitempty"`
	ZoneID         string `json:"zone_id"`
	LockerCategory string `json:"locker_category,omitempty"`
}

type checkOutRequest struct {
	ClientID string `json:"client_id,omitempty"`
}

func (h *AttendanceHandler) CheckIn(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	principal, err := middleware.PrincipalFrom(r)
	if err != nil {
		h.writeError(w, "CheckIn", err)
		return
	}

	var req checkInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "CheckIn", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	clientID, err := h.resolveClient(principal, req.ClientID)
	if err != nil {
		h.writeError(w, "CheckIn", err)
		return
	}

	result, err := h.service.CheckIn(r.Context(), clientID, req.ZoneID, req.LockerCategory)
	if err != nil {
		h.writeError(w, "CheckIn", err)
		return
	}

	if err := httputil.WriteCreated(w, result); err != nil {
		h.log.Error("failed to write created response", "handler", "CheckIn", "operation", "WriteCreated", "error", err)
	}
}

func (h *AttendanceHandler) CheckOut(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	principal, err := middleware.PrincipalFrom(r)
	if err != nil {
		h.writeError(w, "CheckOut", err)
		return
	}

	// Body is optional on check-out; admins may pass client_id to close
	// a visit at the front desk.
	var req checkOutRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
				Error: "Invalid request body",
			}); writeErr != nil {
				h.log.Error("failed to write JSON response", "handler", "CheckOut", "operation", "WriteJSON", "error", writeErr)
			}
			return
		}
	}

	clientID, err := h.resolveClient(principal, req.ClientID)
	if err != nil {
		h.writeError(w, "CheckOut", err)
		return
	}

	result, err := h.service.CheckOut(r.Context(), clientID)
	if err != nil {
		h.writeError(w, "CheckOut", err)
		return
	}

	if err := httputil.WriteSuccess(w, result); err != nil {
		h.log.Error("failed to write success response", "handler", "CheckOut", "operation", "WriteSuccess", "error", err)
	}
}

func (h *AttendanceHandler) Occupancy(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	principal, err := middleware.PrincipalFrom(r)
	if err == nil {
		err = principal.RequireRole(middleware.RoleTrainer, middleware.RoleAdmin)
	}
	if err != nil {
		h.writeError(w, "Occupancy", err)
		return
	}

	result, err := h.service.Occupancy(r.Context())
	if err != nil {
		h.writeError(w, "Occupancy", err)
		return
	}

	if err := httputil.WriteSuccess(w, result); err != nil {
		h.log.Error("failed to write success response", "handler", "Occupancy", "operation", "WriteSuccess", "error", err)
	}
}

func (h *AttendanceHandler) ClientHistory(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, err := middleware.PrincipalFrom(r)
	if err != nil {
		h.writeError(w, "ClientHistory", err)
		return
	}

	clientID := ps.ByName("client_id")
	if principal.Role != middleware.RoleAdmin && principal.ID != clientID {
		h.writeError(w, "ClientHistory", apperrors.Forbidden("visits belong to another client"))
		return
	}

	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "ClientHistory", err)
		return
	}

	visits, total, err := h.service.HistoryByClient(r.Context(), clientID, limit, offset)
	if err != nil {
		h.writeError(w, "ClientHistory", err)
		return
	}

	if err := httputil.WritePaginated(w, visits, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "ClientHistory", "operation", "WritePaginated", "error", err)
	}
}

func (h *AttendanceHandler) TrainerHistory(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, err := middleware.PrincipalFrom(r)
	if err != nil {
		h.writeError(w, "TrainerHistory", err)
		return
	}

	trainerID := ps.ByName("trainer_id")
	if principal.Role != middleware.RoleAdmin && principal.ID != trainerID {
		h.writeError(w, "TrainerHistory", apperrors.Forbidden("visits belong to another trainer"))
		return
	}

	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "TrainerHistory", err)
		return
	}

	visits, err := h.service.HistoryByTrainer(r.Context(), trainerID, limit, offset)
	if err != nil {
		h.writeError(w, "TrainerHistory", err)
		return
	}

	if err := httputil.WriteSuccess(w, visits); err != nil {
		h.log.Error("failed to write success response", "handler", "TrainerHistory", "operation", "WriteSuccess", "error", err)
	}
}

// resolveClient picks the subject of the operation: admins may act on
// behalf of any client, everyone else acts on themselves.
func (h *AttendanceHandler) resolveClient(principal middleware.Principal, requested string) (string, error) {
	if requested == "" || requested == principal.ID {
		return principal.ID, nil
	}
	if principal.Role != middleware.RoleAdmin {
		return "", apperrors.Forbidden("cannot act on behalf of another client")
	}
	return requested, nil
}

func (h *AttendanceHandler) writeError(w http.ResponseWriter, op string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", op, "operation", "WriteError", "error", writeErr)
	}
}

func (h *AttendanceHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/attendance/checkin", h.CheckIn)
	router.POST("/api/v1/attendance/checkout", h.CheckOut)
	router.GET("/api/v1/attendance/occupancy", h.Occupancy)
	router.GET("/api/v1/clients/:client_id/visits", h.ClientHistory)
	router.GET("/api/v1/trainers/:trainer_id/visits", h.TrainerHistory)
}
