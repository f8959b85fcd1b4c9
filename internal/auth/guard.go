package auth

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
)

// AssertTenantAccess decides whether a caller may touch data belonging to
// targetTenantID. Rules, in order:
//
//  1. super_admin and internal_admin always pass.
//  2. internal_support passes unconditionally at this layer; callers that
//     hand support staff a concrete tenant resource must additionally run
//     AssertSupportedTenant.
//  3. every other role requires caller and target tenant to be present and
//     numerically equal. A missing target is always a deny.
func AssertTenantAccess(role Role, callerTenantID, targetTenantID *int64) error {
	switch role {
	case RoleSuperAdmin, RoleInternalAdmin, RoleInternalSupport:
		return nil
	}

	if callerTenantID == nil || targetTenantID == nil {
		return ErrCrossTenant
	}
	if *callerTenantID != *targetTenantID {
		return ErrCrossTenant
	}
	return nil
}

// AssertSupportedTenant is the mandatory second stage for internal support
// staff: the target tenant must appear in the user's supported list. Other
// global roles pass through; tenant-scoped roles fall back to the equality
// rule.
func AssertSupportedTenant(u *User, targetTenantID int64) error {
	if u.Role != RoleInternalSupport {
		return AssertTenantAccess(u.Role, u.TenantID, &targetTenantID)
	}
	for _, id := range u.SupportedTenantIDs {
		if id == targetTenantID {
			return nil
		}
	}
	return ErrUnsupportedTenant
}

// ResolveTargetTenant extracts the tenant a request is aimed at, checking in
// a fixed precedence order: JSON body "tenant_id", query "tenant_id", header
// "X-Tenant-ID", then the "tenantID" URL parameter. The first source present
// wins; a present but non-numeric value is an error, and absence everywhere
// yields (nil, nil).
func ResolveTargetTenant(r *http.Request) (*int64, error) {
	if id, ok, err := tenantFromBody(r); err != nil {
		return nil, err
	} else if ok {
		return &id, nil
	}

	if raw := r.URL.Query().Get("tenant_id"); raw != "" {
		return parseTenantID(raw)
	}

	if raw := r.Header.Get("X-Tenant-ID"); raw != "" {
		return parseTenantID(raw)
	}

	if raw := chi.URLParam(r, "tenantID"); raw != "" {
		return parseTenantID(raw)
	}

	return nil, nil
}

func parseTenantID(raw string) (*int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("malformed tenant id %q", raw)
	}
	return &id, nil
}

// tenantFromBody peeks at a JSON body for a tenant_id field and restores the
// body so downstream handlers can decode it again.
func tenantFromBody(r *http.Request) (int64, bool, error) {
	if r.Body == nil || r.Method == http.MethodGet || r.Method == http.MethodDelete {
		return 0, false, nil
	}

	bodyBytes, err := io.ReadAll(r.Body)
	if err != nil {
		return 0, false, err
	}
	r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))

	if len(bodyBytes) == 0 {
		return 0, false, nil
	}

	var probe struct {
		TenantID *json.Number `json:"tenant_id"`
	}
	if err := json.Unmarshal(bodyBytes, &probe); err != nil {
		// Not a JSON object; the body is not a tenant source.
		return 0, false, nil
	}
	if probe.TenantID == nil {
		return 0, false, nil
	}

	id, err := probe.TenantID.Int64()
	if err != nil {
		return 0, false, fmt.Errorf("malformed tenant id %q", probe.TenantID.String())
	}
	return id, true, nil
}
