package auth

import (
	"net/http"

	"github.com/courseloom/platform/internal/transport"
	"github.com/courseloom/platform/pkg/logger"
)

// AuthMiddleware classifies a request as authenticated with a resolved
// identity, tenant and role, or rejects it. Role, tenant and active-state
// are re-read from the store on every request, so disabling an account or
// deactivating a tenant takes effect on the very next request, not at token
// expiry.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := h.ExtractTokenFromHeader(r)
		if token == "" {
			transport.RecordAuthDecision("missing_token")
			h.WriteError(w, http.StatusUnauthorized, "missing authorization token")
			return
		}

		claims, err := h.Service.ValidateAccessToken(token)
		if err != nil {
			transport.RecordAuthDecision("invalid_token")
			h.WriteError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		user, err := h.Service.GetUserByID(r.Context(), claims.UserID)
		if err != nil || !user.IsActive {
			transport.RecordAuthDecision("user_not_found_or_disabled")
			h.WriteError(w, http.StatusUnauthorized, "user not found or disabled")
			return
		}

		if !user.Role.IsGlobal() {
			if user.TenantID == nil {
				transport.RecordAuthDecision("no_tenant")
				h.WriteError(w, http.StatusForbidden, "no tenant assigned")
				return
			}

			tenant, err := h.Service.GetTenantByID(r.Context(), *user.TenantID)
			if err != nil || !tenant.IsActive {
				transport.RecordAuthDecision("tenant_inactive")
				h.WriteError(w, http.StatusForbidden, "tenant is inactive")
				return
			}
		}

		// Impersonation markers ride along for audit enrichment only;
		// authorization state comes from the freshly loaded row.
		user.ImpersonatedBy = claims.ImpersonatedBy
		user.ImpersonationSession = claims.ImpersonationSession

		transport.RecordAuthDecision("ok")
		ctx := logger.WithActor(r.Context(), user.ID, string(user.Role), user.TenantID)
		next.ServeHTTP(w, r.WithContext(ContextWithUser(ctx, user)))
	})
}
