package handler

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"gymgate/internal/zones/service"
	httputil "gymgate/pkg/http"
	"gymgate/pkg/logger"
	"gymgate/pkg/middleware"
	"gymgate/pkg/model"
)

type ZoneHandler struct {
	service service.ZoneService
	log     *logger.Logger
}

func NewZoneHandler(service service.ZoneService, log *logger.Logger) *ZoneHandler {
	return &ZoneHandler{
		service: service,
		log:     log,
	}
}

func (h *ZoneHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	principal, err := middleware.PrincipalFrom(r)
	if err == nil {
		err = principal.RequireRole(middleware.RoleAdmin)
	}
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	var zone model.Zone
	if err := json.NewDecoder(r.Body).Decode(&zone); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Create", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	if err := h.service.Create(r.Context(), &zone); err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, zone); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *ZoneHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	zone, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, zone); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ZoneHandler) GetAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "GetAll", err)
		return
	}

	zones, total, err := h.service.GetAll(r.Context(), limit, offset)
	if err != nil {
		h.writeError(w, "GetAll", err)
		return
	}

	if err := httputil.WritePaginated(w, zones, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "GetAll", "operation", "WritePaginated", "error", err)
	}
}

func (h *ZoneHandler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, err := middleware.PrincipalFrom(r)
	if err == nil {
		err = principal.RequireRole(middleware.RoleAdmin)
	}
	if err != nil {
		h.writeError(w, "Update", err)
		return
	}

	var updates model.ZoneUpdate
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Update", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	if err := h.service.Update(r.Context(), ps.ByName("id"), &updates); err != nil {
		h.writeError(w, "Update", err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *ZoneHandler) Activate(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.setActive(w, r, ps.ByName("id"), true, "Activate")
}

func (h *ZoneHandler) Deactivate(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.setActive(w, r, ps.ByName("id"), false, "Deactivate")
}

func (h *ZoneHandler) setActive(w http.ResponseWriter, r *http.Request, id string, active bool, op string) {
	principal, err := middleware.PrincipalFrom(r)
	if err == nil {
		err = principal.RequireRole(middleware.RoleAdmin)
	}
	if err != nil {
		h.writeError(w, op, err)
		return
	}

	if err := h.service.SetActive(r.Context(), id, active); err != nil {
		h.writeError(w, op, err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *ZoneHandler) writeError(w http.ResponseWriter, op string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", op, "operation", "WriteError", "error", writeErr)
	}
}

func (h *ZoneHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/zones", h.Create)
	router.GET("/api/v1/zones", h.GetAll)
	router.GET("/api/v1/zones/id/:id", h.GetByID)
	router.PATCH("/api/v1/zones/id/:id", h.Update)
	router.POST("/api/v1/zones/id/:id/activate", h.Activate)
	router.POST("/api/v1/zones/id/:id/deactivate", h.Deactivate)
}
