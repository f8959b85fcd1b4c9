package impersonation

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/courseloom/platform/internal"
	"github.com/courseloom/platform/internal/audit"
	"github.com/courseloom/platform/internal/auth"
	"github.com/courseloom/platform/internal/transport"
	"github.com/courseloom/platform/pkg/logger"
)

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(svc ServiceAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     svc,
	}
}

func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.UserFromContext(r.Context())
	if !ok || actor == nil {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var dto StartDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.Service.Start(r.Context(), actor, dto, audit.MetaFromRequest(r))
	if err != nil {
		h.writeImpersonationError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, result)
}

func (h *Handler) End(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.UserFromContext(r.Context())
	if !ok || actor == nil {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	token := chi.URLParam(r, "token")
	if token == "" {
		h.WriteError(w, http.StatusBadRequest, "missing session token")
		return
	}

	if err := h.Service.End(r.Context(), actor, token, audit.MetaFromRequest(r)); err != nil {
		h.writeImpersonationError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.UserFromContext(r.Context())
	if !ok || actor == nil {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	sessions, err := h.Service.ListByActor(r.Context(), actor.ID)
	if err != nil {
		h.writeImpersonationError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, sessions)
}

func (h *Handler) writeImpersonationError(w http.ResponseWriter, err error) {
	var validationErr auth.ValidationError
	switch {
	case errors.As(err, &validationErr):
		h.WriteAppError(w, internal.NewValidationError(validationErr.Msg, internal.ErrCodeValidationFailed))
	case errors.Is(err, auth.ErrUserNotFound):
		h.WriteAppError(w, internal.NewNotFoundError("not found", internal.ErrCodeUserNotFound))
	case errors.Is(err, ErrNotFound):
		h.WriteAppError(w, internal.NewNotFoundError("not found", internal.ErrCodeSessionNotFound))
	case errors.Is(err, ErrTargetProtected):
		h.WriteAppError(w, internal.NewForbiddenError("target user cannot be impersonated", internal.ErrCodeTargetProtected))
	case errors.Is(err, ErrTargetInactive):
		h.WriteAppError(w, internal.NewConflictError("target user is disabled", internal.ErrCodeAccountDisabled))
	default:
		h.Logger.Error("impersonation operation failed", "error", err)
		h.WriteAppError(w, err)
	}
}
