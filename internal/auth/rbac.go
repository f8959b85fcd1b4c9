package auth

// Role is the closed role enumeration. Roles split into two partitions:
// global-scope roles act across tenants, tenant-scoped roles are confined to
// exactly one tenant.
type Role string

const (
	// Global-scope roles.
	RoleSuperAdmin      Role = "super_admin"
	RoleInternalAdmin   Role = "internal_admin"
	RoleInternalSupport Role = "internal_support"

	// Tenant-scoped roles.
	RoleTenantAdmin Role = "tenant_admin"
	RoleFaculty     Role = "faculty"
	RoleStudent     Role = "student"
)

type Permission string

const (
	PermPlatformManage    Permission = "platform:manage"
	PermTenantsManage     Permission = "tenants:manage"
	PermUsersManage       Permission = "users:manage"
	PermUsersRead         Permission = "users:read"
	PermCoursesManage     Permission = "courses:manage"
	PermCoursesRead       Permission = "courses:read"
	PermAssessmentsManage Permission = "assessments:manage"
	PermAssessmentsRead   Permission = "assessments:read"
	PermAIQuery           Permission = "ai:query"
	PermAuditRead         Permission = "audit:read"
	PermImpersonate       Permission = "impersonation:start"
	PermSupportAccess     Permission = "support:access"
)

// rolePermissions is built once at init and never mutated afterwards, so it
// is shared across all request handlers without locking.
var rolePermissions map[Role]map[Permission]struct{}

var globalRoles = map[Role]struct{}{
	RoleSuperAdmin:      {},
	RoleInternalAdmin:   {},
	RoleInternalSupport: {},
}

func init() {
	grants := map[Role][]Permission{
		RoleSuperAdmin: {
			PermPlatformManage, PermTenantsManage, PermUsersManage, PermUsersRead,
			PermCoursesManage, PermCoursesRead, PermAssessmentsManage, PermAssessmentsRead,
			PermAIQuery, PermAuditRead, PermImpersonate, PermSupportAccess,
		},
		RoleInternalAdmin: {
			PermTenantsManage, PermUsersManage, PermUsersRead,
			PermCoursesManage, PermCoursesRead, PermAssessmentsManage, PermAssessmentsRead,
			PermAIQuery, PermAuditRead, PermImpersonate, PermSupportAccess,
		},
		RoleInternalSupport: {
			PermUsersRead, PermCoursesRead, PermAssessmentsRead, PermAuditRead,
			PermSupportAccess,
		},
		RoleTenantAdmin: {
			PermUsersManage, PermUsersRead,
			PermCoursesManage, PermCoursesRead, PermAssessmentsManage, PermAssessmentsRead,
			PermAIQuery,
		},
		RoleFaculty: {
			PermUsersRead,
			PermCoursesManage, PermCoursesRead, PermAssessmentsManage, PermAssessmentsRead,
			PermAIQuery,
		},
		RoleStudent: {
			PermCoursesRead, PermAssessmentsRead, PermAIQuery,
		},
	}

	rolePermissions = make(map[Role]map[Permission]struct{}, len(grants))
	for role, perms := range grants {
		set := make(map[Permission]struct{}, len(perms))
		for _, p := range perms {
			set[p] = struct{}{}
		}
		rolePermissions[role] = set
	}
}

func (r Role) Valid() bool {
	_, ok := rolePermissions[r]
	return ok
}

// IsGlobal reports whether the role may act across tenants.
func (r Role) IsGlobal() bool {
	_, ok := globalRoles[r]
	return ok
}

// HasPermission reports whether the role holds a single permission.
func (r Role) HasPermission(perm Permission) bool {
	set, ok := rolePermissions[r]
	if !ok {
		return false
	}
	_, ok = set[perm]
	return ok
}

// HasAllPermissions is conjunctive: every listed permission must be held.
func (r Role) HasAllPermissions(perms ...Permission) bool {
	for _, p := range perms {
		if !r.HasPermission(p) {
			return false
		}
	}
	return true
}

// Permissions returns the role's permission set as strings, for API
// projections.
func (r Role) Permissions() []string {
	set, ok := rolePermissions[r]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, string(p))
	}
	return out
}

// LeastPrivileged is the role an unauthenticated caller is evaluated as
// during permission checks.
func LeastPrivileged() Role {
	return RoleStudent
}
