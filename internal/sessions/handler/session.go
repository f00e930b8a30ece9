package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"gymgate/internal/sessions/service"
	apperrors "gymgate/pkg/errors"
	httputil "gymgate/pkg/http"
	"gymgate/pkg/logger"
	"gymgate/pkg/middleware"
	"gymgate/pkg/model"
)

type SessionHandler struct {
	service service.SessionService
	log     *logger.Logger
}

func NewSessionHandler(service service.SessionService, log *logger.Logger) *SessionHandler {
	return &SessionHandler{
		service: service,
		log:     log,
	}
}

func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	principal, err := middleware.PrincipalFrom(r)
	if err == nil {
		err = principal.RequireRole(middleware.RoleTrainer, middleware.RoleAdmin)
	}
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	var session model.Session
	if err := json.NewDecoder(r.Body).Decode(&session); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Create", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	// Trainers schedule their own sessions; only admins may set another
	// trainer's ID.
	if principal.Role == middleware.RoleTrainer {
		session.TrainerID = principal.ID
	}

	if err := h.service.Create(r.Context(), &session); err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, session); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *SessionHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	session, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, session); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *SessionHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	if err := h.requireOwnership(r, id); err != nil {
		h.writeError(w, "Cancel", err)
		return
	}

	var body struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Cancel", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	if err := h.service.Cancel(r.Context(), id, body.Reason); err != nil {
		h.writeError(w, "Cancel", err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *SessionHandler) SignUp(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, err := middleware.PrincipalFrom(r)
	if err != nil {
		h.writeError(w, "SignUp", err)
		return
	}

	if err := h.service.SignUp(r.Context(), ps.ByName("id"), principal.ID); err != nil {
		h.writeError(w, "SignUp", err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *SessionHandler) Complete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	if err := h.requireOwnership(r, id); err != nil {
		h.writeError(w, "Complete", err)
		return
	}

	result, err := h.service.Complete(r.Context(), id)
	if err != nil {
		h.writeError(w, "Complete", err)
		return
	}

	if err := httputil.WriteSuccess(w, result); err != nil {
		h.log.Error("failed to write success response", "handler", "Complete", "operation", "WriteSuccess", "error", err)
	}
}

func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	query := r.URL.Query()

	if dateStr := query.Get("date"); dateStr != "" {
		date, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
				Error: "Invalid date, expected YYYY-MM-DD",
			}); writeErr != nil {
				h.log.Error("failed to write JSON response", "handler", "List", "operation", "WriteJSON", "error", writeErr)
			}
			return
		}

		sessions, err := h.service.ListByDate(r.Context(), date)
		if err != nil {
			h.writeError(w, "List", err)
			return
		}
		if err := httputil.WriteSuccess(w, sessions); err != nil {
			h.log.Error("failed to write success response", "handler", "List", "operation", "WriteSuccess", "error", err)
		}
		return
	}

	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "List", err)
		return
	}

	var sessions []*model.Session
	switch {
	case query.Get("trainer_id") != "":
		sessions, err = h.service.ListByTrainer(r.Context(), query.Get("trainer_id"), limit, offset)
	case query.Get("zone_id") != "":
		sessions, err = h.service.ListByZone(r.Context(), query.Get("zone_id"), limit, offset)
	default:
		err = httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "One of trainer_id, zone_id or date is required",
		})
		if err != nil {
			h.log.Error("failed to write JSON response", "handler", "List", "operation", "WriteJSON", "error", err)
		}
		return
	}
	if err != nil {
		h.writeError(w, "List", err)
		return
	}

	if err := httputil.WriteSuccess(w, sessions); err != nil {
		h.log.Error("failed to write success response", "handler", "List", "operation", "WriteSuccess", "error", err)
	}
}

// requireOwnership lets admins act on any session and trainers only on
// their own.
func (h *SessionHandler) requireOwnership(r *http.Request, sessionID string) error {
	principal, err := middleware.PrincipalFrom(r)
	if err != nil {
		return err
	}
	if err := principal.RequireRole(middleware.RoleTrainer, middleware.RoleAdmin); err != nil {
		return err
	}
	if principal.Role == middleware.RoleAdmin {
		return nil
	}

	session, err := h.service.GetByID(r.Context(), sessionID)
	if err != nil {
		return err
	}
	if session.TrainerID != principal.ID {
		return apperrors.Forbidden("session belongs to another trainer")
	}

	return nil
}

func (h *SessionHandler) writeError(w http.ResponseWriter, op string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", op, "operation", "WriteError", "error", writeErr)
	}
}

func (h *SessionHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/sessions", h.Create)
	router.GET("/api/v1/sessions", h.List)
	router.GET("/api/v1/sessions/id/:id", h.GetByID)
	router.POST("/api/v1/sessions/id/:id/cancel", h.Cancel)
	router.POST("/api/v1/sessions/id/:id/signup", h.SignUp)
	router.POST("/api/v1/sessions/id/:id/complete", h.Complete)
}
