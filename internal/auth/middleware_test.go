package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Auth Middleware", func() {
	var (
		repo     *mockRepository
		tokenGen *JWTTokenGenerator
		handler  *Handler
		next     http.Handler
		seenUser *User

		tenantID int64
	)

	BeforeEach(func() {
		repo = newMockRepository()
		tokenGen = NewJWTTokenGenerator("test-secret-at-least-32-characters!", time.Hour, 24*time.Hour)
		service := NewService(repo, tokenGen, &mockAuditor{}, testLogger(), ServiceConfig{BCryptCost: 10})
		handler = NewHandler(service, CookieConfig{Name: "rt"})

		tenantID = int64(1)
		repo.addTenant(&Tenant{ID: tenantID, Name: "Acme", Domain: "acme.edu", IsActive: true}, true)
		repo.addUser(&User{
			ID:       1,
			Email:    "student@acme.edu",
			Role:     RoleStudent,
			TenantID: &tenantID,
			IsActive: true,
		})

		seenUser = nil
		next = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seenUser, _ = UserFromContext(r.Context())
			w.WriteHeader(http.StatusOK)
		})
	})

	serve := func(authorization string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodGet, "/protected", nil)
		if authorization != "" {
			r.Header.Set("Authorization", authorization)
		}
		w := httptest.NewRecorder()
		handler.AuthMiddleware(next).ServeHTTP(w, r)
		return w
	}

	accessTokenFor := func(userID int64) string {
		u, err := repo.GetUserByID(context.Background(), userID)
		Expect(err).NotTo(HaveOccurred())
		token, err := tokenGen.GenerateAccessToken(ClaimsForUser(u))
		Expect(err).NotTo(HaveOccurred())
		return token
	}

	It("rejects a request with no token", func() {
		w := serve("")
		Expect(w.Code).To(Equal(http.StatusUnauthorized))
		Expect(w.Body.String()).To(ContainSubstring("missing authorization token"))
	})

	It("rejects a malformed token", func() {
		w := serve("Bearer garbage")
		Expect(w.Code).To(Equal(http.StatusUnauthorized))
		Expect(w.Body.String()).To(ContainSubstring("invalid token"))
	})

	It("rejects a refresh token on a protected route", func() {
		u, _ := repo.GetUserByID(context.Background(), 1)
		refresh, err := tokenGen.GenerateRefreshToken(ClaimsForUser(u))
		Expect(err).NotTo(HaveOccurred())

		w := serve("Bearer " + refresh)
		Expect(w.Code).To(Equal(http.StatusUnauthorized))
	})

	It("attaches the freshly loaded user on success", func() {
		w := serve("Bearer " + accessTokenFor(1))
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(seenUser).NotTo(BeNil())
		Expect(seenUser.ID).To(Equal(int64(1)))
		Expect(seenUser.Role).To(Equal(RoleStudent))
	})

	It("rejects a valid token once the account is disabled", func() {
		token := accessTokenFor(1)
		repo.usersByID[1].IsActive = false

		w := serve("Bearer " + token)
		Expect(w.Code).To(Equal(http.StatusUnauthorized))
		Expect(w.Body.String()).To(ContainSubstring("user not found or disabled"))
	})

	It("rejects a tenant-scoped user once the tenant is deactivated", func() {
		token := accessTokenFor(1)
		repo.tenants[tenantID].IsActive = false

		w := serve("Bearer " + token)
		Expect(w.Code).To(Equal(http.StatusForbidden))
		Expect(w.Body.String()).To(ContainSubstring("tenant is inactive"))
	})

	It("rejects a tenant-scoped user with no tenant assigned", func() {
		repo.addUser(&User{ID: 2, Email: "lost@acme.edu", Role: RoleFaculty, IsActive: true})
		w := serve("Bearer " + accessTokenFor(2))
		Expect(w.Code).To(Equal(http.StatusForbidden))
		Expect(w.Body.String()).To(ContainSubstring("no tenant assigned"))
	})

	It("lets a global-scope user through without a tenant", func() {
		repo.addUser(&User{ID: 3, Email: "root@platform.io", Role: RoleSuperAdmin, IsActive: true})
		w := serve("Bearer " + accessTokenFor(3))
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(seenUser.Role).To(Equal(RoleSuperAdmin))
	})

	It("carries impersonation markers from the claims onto the user", func() {
		u, _ := repo.GetUserByID(context.Background(), 1)
		claims := ClaimsForUser(u)
		claims.ImpersonatedBy = 99
		claims.ImpersonationSession = "session-1"
		token, err := tokenGen.GenerateAccessToken(claims)
		Expect(err).NotTo(HaveOccurred())

		w := serve("Bearer " + token)
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(seenUser.ImpersonatedBy).To(Equal(int64(99)))
		Expect(seenUser.ImpersonationSession).To(Equal("session-1"))
	})
})
