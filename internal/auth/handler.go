package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/courseloom/platform/internal"
	"github.com/courseloom/platform/internal/audit"
	"github.com/courseloom/platform/internal/transport"
	"github.com/courseloom/platform/pkg/logger"
)

// CookieConfig controls refresh token cookie delivery.
type CookieConfig struct {
	Name   string
	Path   string
	MaxAge time.Duration
	Secure bool
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
	Cookie  CookieConfig
}

func NewHandler(svc ServiceAPI, cookie CookieConfig) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	if cookie.Path == "" {
		cookie.Path = "/api/v1/auth"
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     svc,
		Cookie:      cookie,
	}
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var dto LoginDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.Service.Login(r.Context(), dto, audit.MetaFromRequest(r))
	if err != nil {
		h.writeAuthError(w, err)
		return
	}

	h.setRefreshCookie(w, result.RefreshToken)
	h.WriteJSON(w, http.StatusOK, AuthResponse{
		AccessToken:  result.AccessToken,
		Token:        result.AccessToken,
		RefreshToken: result.RefreshToken,
		User:         ProjectUser(result.User),
	})
}

// RefreshToken accepts the refresh token from the request body or, failing
// that, the refresh cookie.
func (h *Handler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var dto RefreshTokenDTO
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&dto)
	}

	token := dto.RefreshToken
	if token == "" {
		if cookie, err := r.Cookie(h.Cookie.Name); err == nil {
			token = cookie.Value
		}
	}
	if token == "" {
		h.WriteError(w, http.StatusBadRequest, "refresh token is required")
		return
	}

	accessToken, err := h.Service.Refresh(r.Context(), token)
	if err != nil {
		h.writeAuthError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]string{
		"accessToken": accessToken,
		"token":       accessToken,
	})
}

// Logout clears the refresh cookie. There is no server-side revocation list
// for plain logout; access tokens simply age out.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.Cookie.Name,
		Value:    "",
		Path:     h.Cookie.Path,
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.Cookie.Secure,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var dto SignupDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.Service.Signup(r.Context(), dto, audit.MetaFromRequest(r))
	if err != nil {
		h.writeAuthError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, AuthResponse{
		AccessToken: result.AccessToken,
		Token:       result.AccessToken,
		User:        ProjectUser(result.User),
	})
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok || user == nil {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var dto ChangePasswordDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.Service.ChangePassword(r.Context(), user, dto, audit.MetaFromRequest(r)); err != nil {
		h.writeAuthError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) setRefreshCookie(w http.ResponseWriter, refreshToken string) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.Cookie.Name,
		Value:    refreshToken,
		Path:     h.Cookie.Path,
		MaxAge:   int(h.Cookie.MaxAge.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.Cookie.Secure,
	})
}

// writeAuthError maps flow errors onto the taxonomy; the wire messages stay
// deliberately non-leaky.
func (h *Handler) writeAuthError(w http.ResponseWriter, err error) {
	var validationErr ValidationError
	switch {
	case errors.As(err, &validationErr):
		h.WriteAppError(w, internal.NewValidationError(validationErr.Msg, internal.ErrCodeValidationFailed))
	case errors.Is(err, ErrInvalidCredentials):
		h.WriteAppError(w, internal.NewUnauthorizedError("Invalid credentials", internal.ErrCodeInvalidCredentials))
	case errors.Is(err, ErrTokenExpired):
		h.WriteAppError(w, internal.NewUnauthorizedError("invalid token", internal.ErrCodeTokenExpired))
	case errors.Is(err, ErrInvalidToken):
		h.WriteAppError(w, internal.NewUnauthorizedError("invalid token", internal.ErrCodeInvalidToken))
	case errors.Is(err, ErrAccountDisabled):
		h.WriteAppError(w, internal.NewForbiddenError("account is disabled", internal.ErrCodeAccountDisabled))
	case errors.Is(err, ErrTenantInactive):
		h.WriteAppError(w, internal.NewForbiddenError("tenant is inactive", internal.ErrCodeTenantInactive))
	case errors.Is(err, ErrNoTenantAssigned):
		h.WriteAppError(w, internal.NewForbiddenError("no tenant assigned", internal.ErrCodeNoTenantAssigned))
	case errors.Is(err, ErrEmailTaken):
		h.WriteAppError(w, internal.NewConflictError("email already registered", internal.ErrCodeEmailTaken))
	case errors.Is(err, ErrInvitationInvalid):
		h.WriteAppError(w, internal.NewValidationError("invitation is invalid or expired", internal.ErrCodeInvitationInvalid))
	default:
		h.Logger.Error("auth flow failed", "error", err)
		h.WriteAppError(w, err)
	}
}
