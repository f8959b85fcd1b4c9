package auth

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("RBAC Policy Table", func() {
	It("partitions roles into global and tenant-scoped", func() {
		Expect(RoleSuperAdmin.IsGlobal()).To(BeTrue())
		Expect(RoleInternalAdmin.IsGlobal()).To(BeTrue())
		Expect(RoleInternalSupport.IsGlobal()).To(BeTrue())
		Expect(RoleTenantAdmin.IsGlobal()).To(BeFalse())
		Expect(RoleFaculty.IsGlobal()).To(BeFalse())
		Expect(RoleStudent.IsGlobal()).To(BeFalse())
	})

	It("treats unknown roles as invalid with no permissions", func() {
		unknown := Role("superhero")
		Expect(unknown.Valid()).To(BeFalse())
		Expect(unknown.HasPermission(PermCoursesRead)).To(BeFalse())
	})

	It("gives only super_admin platform management", func() {
		Expect(RoleSuperAdmin.HasPermission(PermPlatformManage)).To(BeTrue())
		for _, r := range []Role{RoleInternalAdmin, RoleInternalSupport, RoleTenantAdmin, RoleFaculty, RoleStudent} {
			Expect(r.HasPermission(PermPlatformManage)).To(BeFalse(), string(r))
		}
	})

	It("keeps support staff read-only", func() {
		Expect(RoleInternalSupport.HasPermission(PermUsersRead)).To(BeTrue())
		Expect(RoleInternalSupport.HasPermission(PermUsersManage)).To(BeFalse())
		Expect(RoleInternalSupport.HasPermission(PermCoursesManage)).To(BeFalse())
		Expect(RoleInternalSupport.HasPermission(PermImpersonate)).To(BeFalse())
	})

	Describe("HasAllPermissions", func() {
		It("requires every listed permission", func() {
			Expect(RoleFaculty.HasAllPermissions(PermCoursesRead, PermCoursesManage)).To(BeTrue())
			Expect(RoleFaculty.HasAllPermissions(PermCoursesRead, PermTenantsManage)).To(BeFalse())
		})

		It("holding some but not all still denies", func() {
			Expect(RoleStudent.HasPermission(PermCoursesRead)).To(BeTrue())
			Expect(RoleStudent.HasAllPermissions(PermCoursesRead, PermCoursesManage)).To(BeFalse())
		})

		It("is vacuously true for an empty list", func() {
			Expect(RoleStudent.HasAllPermissions()).To(BeTrue())
		})
	})

	It("evaluates the least-privileged role as student", func() {
		Expect(LeastPrivileged()).To(Equal(RoleStudent))
	})
})
