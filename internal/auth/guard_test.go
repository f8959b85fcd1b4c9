package auth

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func ptr(v int64) *int64 { return &v }

var _ = Describe("Tenant Isolation Guard", func() {
	Describe("AssertTenantAccess", func() {
		It("always allows super_admin and internal_admin", func() {
			Expect(AssertTenantAccess(RoleSuperAdmin, nil, ptr(9))).To(Succeed())
			Expect(AssertTenantAccess(RoleInternalAdmin, ptr(1), ptr(9))).To(Succeed())
		})

		It("allows internal_support at this layer", func() {
			Expect(AssertTenantAccess(RoleInternalSupport, nil, ptr(9))).To(Succeed())
		})

		It("allows tenant-scoped roles only on numeric equality", func() {
			Expect(AssertTenantAccess(RoleTenantAdmin, ptr(3), ptr(3))).To(Succeed())
			Expect(AssertTenantAccess(RoleFaculty, ptr(3), ptr(4))).To(MatchError(ErrCrossTenant))
			Expect(AssertTenantAccess(RoleStudent, ptr(3), ptr(4))).To(MatchError(ErrCrossTenant))
		})

		It("denies when either side is missing", func() {
			Expect(AssertTenantAccess(RoleStudent, nil, ptr(3))).To(MatchError(ErrCrossTenant))
			Expect(AssertTenantAccess(RoleStudent, ptr(3), nil)).To(MatchError(ErrCrossTenant))
			Expect(AssertTenantAccess(RoleStudent, nil, nil)).To(MatchError(ErrCrossTenant))
		})
	})

	Describe("AssertSupportedTenant", func() {
		It("checks the supported list for internal_support", func() {
			u := &User{Role: RoleInternalSupport, SupportedTenantIDs: []int64{2, 5}}
			Expect(AssertSupportedTenant(u, 5)).To(Succeed())
			Expect(AssertSupportedTenant(u, 3)).To(MatchError(ErrUnsupportedTenant))
		})

		It("denies support staff with an empty list", func() {
			u := &User{Role: RoleInternalSupport}
			Expect(AssertSupportedTenant(u, 1)).To(MatchError(ErrUnsupportedTenant))
		})

		It("falls back to the equality rule for other roles", func() {
			u := &User{Role: RoleFaculty, TenantID: ptr(2)}
			Expect(AssertSupportedTenant(u, 2)).To(Succeed())
			Expect(AssertSupportedTenant(u, 3)).To(MatchError(ErrCrossTenant))
		})

		It("passes other global roles through", func() {
			u := &User{Role: RoleSuperAdmin}
			Expect(AssertSupportedTenant(u, 42)).To(Succeed())
		})
	})

	Describe("ResolveTargetTenant", func() {
		newRequest := func(method, target, body string) *http.Request {
			var reader io.Reader
			if body != "" {
				reader = bytes.NewBufferString(body)
			}
			return httptest.NewRequest(method, target, reader)
		}

		It("prefers the JSON body over everything else", func() {
			r := newRequest(http.MethodPost, "/x?tenant_id=2", `{"tenant_id": 1}`)
			r.Header.Set("X-Tenant-ID", "3")

			id, err := ResolveTargetTenant(r)
			Expect(err).NotTo(HaveOccurred())
			Expect(*id).To(Equal(int64(1)))
		})

		It("restores the body for downstream decoding", func() {
			r := newRequest(http.MethodPost, "/x", `{"tenant_id": 1, "title": "t"}`)
			_, err := ResolveTargetTenant(r)
			Expect(err).NotTo(HaveOccurred())

			raw, err := io.ReadAll(r.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(raw)).To(ContainSubstring(`"title"`))
		})

		It("falls back to the query parameter", func() {
			r := newRequest(http.MethodGet, "/x?tenant_id=2", "")
			r.Header.Set("X-Tenant-ID", "3")

			id, err := ResolveTargetTenant(r)
			Expect(err).NotTo(HaveOccurred())
			Expect(*id).To(Equal(int64(2)))
		})

		It("falls back to the header next", func() {
			r := newRequest(http.MethodGet, "/x", "")
			r.Header.Set("X-Tenant-ID", "3")

			id, err := ResolveTargetTenant(r)
			Expect(err).NotTo(HaveOccurred())
			Expect(*id).To(Equal(int64(3)))
		})

		It("falls back to the URL parameter last", func() {
			r := newRequest(http.MethodGet, "/tenants/4/users", "")
			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("tenantID", "4")
			r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))

			id, err := ResolveTargetTenant(r)
			Expect(err).NotTo(HaveOccurred())
			Expect(*id).To(Equal(int64(4)))
		})

		It("returns nil when no source names a tenant", func() {
			r := newRequest(http.MethodGet, "/x", "")
			id, err := ResolveTargetTenant(r)
			Expect(err).NotTo(HaveOccurred())
			Expect(id).To(BeNil())
		})

		It("errors on a present but non-numeric value", func() {
			r := newRequest(http.MethodGet, "/x?tenant_id=abc", "")
			_, err := ResolveTargetTenant(r)
			Expect(err).To(HaveOccurred())
		})

		It("errors on a non-integer body tenant_id", func() {
			r := newRequest(http.MethodPost, "/x", `{"tenant_id": 1.5}`)
			_, err := ResolveTargetTenant(r)
			Expect(err).To(HaveOccurred())
		})
	})
})
