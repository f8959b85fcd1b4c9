package user

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

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.UserFromContext(r.Context())
	if !ok || actor == nil {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	h.WriteJSON(w, http.StatusOK, auth.ProjectUser(actor))
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.UserFromContext(r.Context())
	if !ok || actor == nil {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	target, err := h.Service.GetByID(r.Context(), actor, id)
	if err != nil {
		h.writeUserError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, auth.ProjectUser(target))
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.UserFromContext(r.Context())
	if !ok || actor == nil {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	tenantID, err := resolveListTenant(r, actor)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	users, err := h.Service.ListByTenant(r.Context(), actor, tenantID)
	if err != nil {
		h.writeUserError(w, err)
		return
	}

	projections := make([]auth.UserProjection, 0, len(users))
	for i := range users {
		projections = append(projections, auth.ProjectUser(&users[i]))
	}
	h.WriteJSON(w, http.StatusOK, projections)
}

func (h *Handler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.UserFromContext(r.Context())
	if !ok || actor == nil {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var dto UpdateRoleDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.Service.UpdateRole(r.Context(), actor, id, dto, audit.MetaFromRequest(r)); err != nil {
		h.writeUserError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) SetActivation(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.UserFromContext(r.Context())
	if !ok || actor == nil {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var dto ActivationDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.Service.SetActive(r.Context(), actor, id, dto.IsActive, audit.MetaFromRequest(r)); err != nil {
		h.writeUserError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// resolveListTenant picks the tenant to list. Tenant-scoped callers default
// to their own tenant; global callers must say which tenant they mean.
func resolveListTenant(r *http.Request, actor *auth.User) (int64, error) {
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

func (h *Handler) writeUserError(w http.ResponseWriter, err error) {
	var validationErr auth.ValidationError
	switch {
	case errors.As(err, &validationErr):
		h.WriteAppError(w, internal.NewValidationError(validationErr.Msg, internal.ErrCodeValidationFailed))
	case errors.Is(err, ErrNotFound), errors.Is(err, auth.ErrUserNotFound):
		h.WriteAppError(w, internal.NewNotFoundError("user not found", internal.ErrCodeUserNotFound))
	case errors.Is(err, ErrSelfUpdate):
		h.WriteAppError(w, internal.NewValidationError("cannot change own activation state", internal.ErrCodeValidationFailed))
	case errors.Is(err, ErrRoleForbidden):
		h.WriteAppError(w, internal.NewForbiddenError("not allowed to assign this role", internal.ErrCodeInsufficientPerms))
	case errors.Is(err, auth.ErrCrossTenant), errors.Is(err, auth.ErrUnsupportedTenant):
		h.WriteAppError(w, internal.NewForbiddenError("Cross-tenant access denied", internal.ErrCodeCrossTenant))
	default:
		h.Logger.Error("user operation failed", "error", err)
		h.WriteAppError(w, err)
	}
}
