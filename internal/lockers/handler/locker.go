package handler

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"gymgate/internal/lockers/service"
	httputil "gymgate/pkg/http"
	"gymgate/pkg/logger"
	"gymgate/pkg/middleware"
)

type LockerHandler struct {
	service service.LockerService
	log     *logger.Logger
}

func NewLockerHandler(service service.LockerService, log *logger.Logger) *LockerHandler {
	return &LockerHandler{
		service: service,
		log:     log,
	}
}

type assignRequest struct {
	Category string `json:"category"`
}

type assignResponse struct {
	Locker any    `json:"locker,omitempty"`
	Note   string `json:"note,omitempty"`
}

func (h *LockerHandler) Assign(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	principal, err := middleware.PrincipalFrom(r)
	if err != nil {
		h.writeError(w, "Assign", err)
		return
	}

	var req assignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Assign", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	locker, err := h.service.Assign(r.Context(), principal.ID, req.Category)
	if err != nil {
		h.writeError(w, "Assign", err)
		return
	}

	if locker == nil {
		if err := httputil.WriteSuccess(w, assignResponse{
			Note: "no free locker available",
		}); err != nil {
			h.log.Error("failed to write success response", "handler", "Assign", "operation", "WriteSuccess", "error", err)
		}
		return
	}

	if err := httputil.WriteSuccess(w, assignResponse{Locker: locker}); err != nil {
		h.log.Error("failed to write success response", "handler", "Assign", "operation", "WriteSuccess", "error", err)
	}
}

func (h *LockerHandler) Release(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, err := middleware.PrincipalFrom(r)
	if err == nil {
		err = principal.RequireRole(middleware.RoleAdmin)
	}
	if err != nil {
		h.writeError(w, "Release", err)
		return
	}

	locker, err := h.service.Release(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "Release", err)
		return
	}

	if err := httputil.WriteSuccess(w, locker); err != nil {
		h.log.Error("failed to write success response", "handler", "Release", "operation", "WriteSuccess", "error", err)
	}
}

func (h *LockerHandler) Mine(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	principal, err := middleware.PrincipalFrom(r)
	if err != nil {
		h.writeError(w, "Mine", err)
		return
	}

	locker, err := h.service.HeldBy(r.Context(), principal.ID)
	if err != nil {
		h.writeError(w, "Mine", err)
		return
	}

	if locker == nil {
		if err := httputil.WriteSuccess(w, assignResponse{Note: "no locker held"}); err != nil {
			h.log.Error("failed to write success response", "handler", "Mine", "operation", "WriteSuccess", "error", err)
		}
		return
	}

	if err := httputil.WriteSuccess(w, locker); err != nil {
		h.log.Error("failed to write success response", "handler", "Mine", "operation", "WriteSuccess", "error", err)
	}
}

func (h *LockerHandler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	principal, err := middleware.PrincipalFrom(r)
	if err == nil {
		err = principal.RequireRole(middleware.RoleAdmin)
	}
	if err != nil {
		h.writeError(w, "List", err)
		return
	}

	lockers, err := h.service.List(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		h.writeError(w, "List", err)
		return
	}

	if err := httputil.WriteSuccess(w, lockers); err != nil {
		h.log.Error("failed to write success response", "handler", "List", "operation", "WriteSuccess", "error", err)
	}
}

func (h *LockerHandler) writeError(w http.ResponseWriter, op string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", op, "operation", "WriteError", "error", writeErr)
	}
}

func (h *LockerHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/lockers/assign", h.Assign)
	router.POST("/api/v1/lockers/id/:id/release", h.Release)
	router.GET("/api/v1/lockers/mine", h.Mine)
	router.GET("/api/v1/lockers", h.List)
}
