package tenant

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

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

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.UserFromContext(r.Context())
	if !ok || actor == nil {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var dto CreateDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	t, err := h.Service.Create(r.Context(), actor, dto, audit.MetaFromRequest(r))
	if err != nil {
		h.writeTenantError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, t)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid tenant id")
		return
	}

	t, err := h.Service.Get(r.Context(), id)
	if err != nil {
		h.writeTenantError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, t)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	tenants, err := h.Service.List(r.Context())
	if err != nil {
		h.writeTenantError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, tenants)
}

func (h *Handler) SetActivation(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.UserFromContext(r.Context())
	if !ok || actor == nil {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid tenant id")
		return
	}

	var dto ActivationDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.Service.SetActive(r.Context(), actor, id, dto.IsActive, audit.MetaFromRequest(r)); err != nil {
		h.writeTenantError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeTenantError(w http.ResponseWriter, err error) {
	var validationErr auth.ValidationError
	switch {
	case errors.As(err, &validationErr):
		h.WriteAppError(w, internal.NewValidationError(validationErr.Msg, internal.ErrCodeValidationFailed))
	case errors.Is(err, ErrNotFound):
		h.WriteAppError(w, internal.NewNotFoundError("tenant not found", internal.ErrCodeTenantNotFound))
	case errors.Is(err, ErrDomainTaken):
		h.WriteAppError(w, internal.NewConflictError("domain already registered", internal.ErrCodeDomainTaken))
	default:
		h.Logger.Error("tenant operation failed", "error", err)
		h.WriteAppError(w, err)
	}
}
