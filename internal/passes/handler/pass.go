package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"gymgate/internal/passes/service"
	httputil "gymgate/pkg/http"
	"gymgate/pkg/logger"
	"gymgate/pkg/middleware"
)

type PassHandler struct {
	service service.PassService
	log     *logger.Logger
}

func NewPassHandler(service service.PassService, log *logger.Logger) *PassHandler {
	return &PassHandler{
		service: service,
		log:     log,
	}
}

type creditRequest struct {
	ClientID string `json:"client_id"`
	ZoneID   string `json:"zone_id"`
	Visits   int    `json:"visits"`
}

type grantTimePassRequest struct {
	ClientID string     `json:"client_id"`
	ZoneID   string     `json:"zone_id"`
	EndDate  *time.Time `json:"end_date,omitempty"`
}

func (h *PassHandler) Credit(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	principal, err := middleware.PrincipalFrom(r)
	if err == nil {
		err = principal.RequireRole(middleware.RoleAdmin)
	}
	if err != nil {
		h.writeError(w, "Credit", err)
		return
	}

	var req creditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Credit", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	pass, err := h.service.Credit(r.Context(), req.ClientID, req.ZoneID, req.Visits)
	if err != nil {
		h.writeError(w, "Credit", err)
		return
	}

	if err := httputil.WriteSuccess(w, pass); err != nil {
		h.log.Error("failed to write success response", "handler", "Credit", "operation", "WriteSuccess", "error", err)
	}
}

func (h *PassHandler) GrantTimePass(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	principal, err := middleware.PrincipalFrom(r)
	if err == nil {
		err = principal.RequireRole(middleware.RoleAdmin)
	}
	if err != nil {
		h.writeError(w, "GrantTimePass", err)
		return
	}

	var req grantTimePassRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "GrantTimePass", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	pass, err := h.service.GrantTimePass(r.Context(), req.ClientID, req.ZoneID, req.EndDate)
	if err != nil {
		h.writeError(w, "GrantTimePass", err)
		return
	}

	if err := httputil.WriteCreated(w, pass); err != nil {
		h.log.Error("failed to write created response", "handler", "GrantTimePass", "operation", "WriteCreated", "error", err)
	}
}

// Balances serves a client's own passes; admins can read any client's.
func (h *PassHandler) Balances(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, err := middleware.PrincipalFrom(r)
	if err != nil {
		h.writeError(w, "Balances", err)
		return
	}

	clientID := ps.ByName("client_id")
	if principal.Role != middleware.RoleAdmin && principal.ID != clientID {
		h.writeError(w, "Balances", principal.RequireRole(middleware.RoleAdmin))
		return
	}

	passes, err := h.service.Balances(r.Context(), clientID)
	if err != nil {
		h.writeError(w, "Balances", err)
		return
	}

	if err := httputil.WriteSuccess(w, passes); err != nil {
		h.log.Error("failed to write success response", "handler", "Balances", "operation", "WriteSuccess", "error", err)
	}
}

func (h *PassHandler) writeError(w http.ResponseWriter, op string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", op, "operation", "WriteError", "error", writeErr)
	}
}

func (h *PassHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/passes/credit", h.Credit)
	router.POST("/api/v1/passes/time", h.GrantTimePass)
	router.GET("/api/v1/clients/:client_id/passes", h.Balances)
}
