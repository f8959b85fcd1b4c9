package course

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

	c, err := h.Service.Create(r.Context(), actor, dto, audit.MetaFromRequest(r))
	if err != nil {
		h.writeCourseError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, c)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.UserFromContext(r.Context())
	if !ok || actor == nil {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid course id")
		return
	}

	c, err := h.Service.Get(r.Context(), actor, id)
	if err != nil {
		h.writeCourseError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.UserFromContext(r.Context())
	if !ok || actor == nil {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	tenantID, err := listTenant(r, actor)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	courses, err := h.Service.List(r.Context(), actor, tenantID)
	if err != nil {
		h.writeCourseError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, courses)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.UserFromContext(r.Context())
	if !ok || actor == nil {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid course id")
		return
	}

	var dto UpdateDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c, err := h.Service.Update(r.Context(), actor, id, dto, audit.MetaFromRequest(r))
	if err != nil {
		h.writeCourseError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.UserFromContext(r.Context())
	if !ok || actor == nil {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid course id")
		return
	}

	if err := h.Service.Delete(r.Context(), actor, id, audit.MetaFromRequest(r)); err != nil {
		h.writeCourseError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func listTenant(r *http.Request, actor *auth.User) (int64, error) {
	if raw := r.URL.Query().Get("tenant_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return 0, errors.New("malformed tenant id")
		}
		return id, nil
	}
	if actor.TenantID != nil {
		return *actor.TenantID, nil
	}
	return 0, errors.New("tenant_id query parameter is required")
}

func (h *Handler) writeCourseError(w http.ResponseWriter, err error) {
	var validationErr auth.ValidationError
	switch {
	case errors.As(err, &validationErr):
		h.WriteAppError(w, internal.NewValidationError(validationErr.Msg, internal.ErrCodeValidationFailed))
	case errors.Is(err, ErrNotFound):
		h.WriteAppError(w, internal.NewNotFoundError("course not found", internal.ErrCodeCourseNotFound))
	case errors.Is(err, auth.ErrNoTenantAssigned):
		h.WriteAppError(w, internal.NewForbiddenError("no tenant assigned", internal.ErrCodeNoTenantAssigned))
	case errors.Is(err, auth.ErrCrossTenant), errors.Is(err, auth.ErrUnsupportedTenant):
		h.WriteAppError(w, internal.NewForbiddenError("Cross-tenant access denied", internal.ErrCodeCrossTenant))
	default:
		h.Logger.Error("course operation failed", "error", err)
		h.WriteAppError(w, err)
	}
}
