package auth

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/courseloom/platform/internal/audit"
)

var _ = Describe("Auth Service", func() {
	var (
		repo     *mockRepository
		auditor  *mockAuditor
		tokenGen *JWTTokenGenerator
		service  *Service
		ctx      context.Context

		tenantID int64
		meta     audit.RequestMeta
	)

	hash := func(password string) string {
		h, err := HashPassword(password, 10)
		Expect(err).NotTo(HaveOccurred())
		return h
	}

	BeforeEach(func() {
		ctx = context.Background()
		repo = newMockRepository()
		auditor = &mockAuditor{}
		tokenGen = NewJWTTokenGenerator("test-secret-at-least-32-characters!", time.Hour, 24*time.Hour)
		service = NewService(repo, tokenGen, auditor, testLogger(), ServiceConfig{
			BCryptCost:        10,
			MinPasswordLength: 8,
			NotFoundDelay:     time.Millisecond,
		})

		tenantID = int64(1)
		repo.addTenant(&Tenant{ID: tenantID, Name: "Acme", Domain: "acme.edu", Plan: "pro", IsActive: true}, true)
		repo.addUser(&User{
			ID:           1,
			Email:        "student@acme.edu",
			PasswordHash: hash("correct-password"),
			Role:         RoleStudent,
			TenantID:     &tenantID,
			IsActive:     true,
		})
		meta = audit.RequestMeta{IPAddress: "10.0.0.1", UserAgent: "test-agent"}
	})

	Describe("Login", func() {
		It("returns a token pair and records a success audit", func() {
			result, err := service.Login(ctx, LoginDTO{Email: "student@acme.edu", Password: "correct-password"}, meta)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.AccessToken).NotTo(BeEmpty())
			Expect(result.RefreshToken).NotTo(BeEmpty())
			Expect(result.User.PasswordHash).NotTo(BeEmpty())

			claims, err := tokenGen.ValidateToken(result.AccessToken, TokenTypeAccess)
			Expect(err).NotTo(HaveOccurred())
			Expect(claims.UserID).To(Equal(int64(1)))
			Expect(*claims.TenantID).To(Equal(tenantID))

			entry := auditor.find("auth.login.success")
			Expect(entry).NotTo(BeNil())
			Expect(entry.IPAddress).To(Equal("10.0.0.1"))
		})

		It("normalizes the email before lookup", func() {
			_, err := service.Login(ctx, LoginDTO{Email: "  STUDENT@acme.edu ", Password: "correct-password"}, meta)
			Expect(err).NotTo(HaveOccurred())
		})

		It("updates last login on success", func() {
			_, err := service.Login(ctx, LoginDTO{Email: "student@acme.edu", Password: "correct-password"}, meta)
			Expect(err).NotTo(HaveOccurred())
			Expect(repo.lastLoginSet).To(HaveKey(int64(1)))
		})

		It("rejects a wrong password generically and writes a failure audit", func() {
			result, err := service.Login(ctx, LoginDTO{Email: "student@acme.edu", Password: "wrong"}, meta)
			Expect(result).To(BeNil())
			Expect(err).To(MatchError(ErrInvalidCredentials))

			entry := auditor.find("auth.login.failed")
			Expect(entry).NotTo(BeNil())
			Expect(entry.Severity).To(Equal(audit.SeverityWarn))
		})

		It("rejects an unknown email with the same generic error and no audit row", func() {
			result, err := service.Login(ctx, LoginDTO{Email: "ghost@acme.edu", Password: "anything"}, meta)
			Expect(result).To(BeNil())
			Expect(err).To(MatchError(ErrInvalidCredentials))
			Expect(auditor.count()).To(BeZero())
		})

		It("rejects a disabled account before checking the password", func() {
			repo.usersByEmail["student@acme.edu"].IsActive = false
			_, err := service.Login(ctx, LoginDTO{Email: "student@acme.edu", Password: "correct-password"}, meta)
			Expect(err).To(MatchError(ErrAccountDisabled))
		})

		It("rejects a tenant-scoped user whose tenant is deactivated", func() {
			repo.tenants[tenantID].IsActive = false
			_, err := service.Login(ctx, LoginDTO{Email: "student@acme.edu", Password: "correct-password"}, meta)
			Expect(err).To(MatchError(ErrTenantInactive))
		})

		It("lets a global-scope user log in with no tenant at all", func() {
			repo.addUser(&User{
				ID:           2,
				Email:        "root@platform.io",
				PasswordHash: hash("correct-password"),
				Role:         RoleSuperAdmin,
				IsActive:     true,
				IsInternal:   true,
			})
			result, err := service.Login(ctx, LoginDTO{Email: "root@platform.io", Password: "correct-password"}, meta)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.User.TenantID).To(BeNil())
		})
	})

	Describe("Refresh", func() {
		var refreshToken string

		BeforeEach(func() {
			result, err := service.Login(ctx, LoginDTO{Email: "student@acme.edu", Password: "correct-password"}, meta)
			Expect(err).NotTo(HaveOccurred())
			refreshToken = result.RefreshToken
		})

		It("mints a new access token from a valid refresh token", func() {
			access, err := service.Refresh(ctx, refreshToken)
			Expect(err).NotTo(HaveOccurred())

			claims, err := tokenGen.ValidateToken(access, TokenTypeAccess)
			Expect(err).NotTo(HaveOccurred())
			Expect(claims.UserID).To(Equal(int64(1)))
		})

		It("rejects an access token presented as a refresh token", func() {
			access, err := tokenGen.GenerateAccessToken(Claims{UserID: 1})
			Expect(err).NotTo(HaveOccurred())

			_, err = service.Refresh(ctx, access)
			Expect(err).To(MatchError(ErrInvalidToken))
		})

		It("rejects refresh once the account is disabled", func() {
			repo.usersByID[1].IsActive = false
			_, err := service.Refresh(ctx, refreshToken)
			Expect(err).To(MatchError(ErrAccountDisabled))
		})

		It("rebuilds claims from the current row, not the old token", func() {
			repo.usersByID[1].Role = RoleFaculty
			access, err := service.Refresh(ctx, refreshToken)
			Expect(err).NotTo(HaveOccurred())

			claims, err := tokenGen.ValidateToken(access, TokenTypeAccess)
			Expect(err).NotTo(HaveOccurred())
			Expect(claims.Role).To(Equal(string(RoleFaculty)))
		})
	})

	Describe("Signup", func() {
		It("lands on the default tenant with the least-privileged role", func() {
			result, err := service.Signup(ctx, SignupDTO{
				Email:    "new@acme.edu",
				Password: "long-enough-password",
				Name:     "New Student",
			}, meta)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.User.Role).To(Equal(RoleStudent))
			Expect(*result.User.TenantID).To(Equal(tenantID))
			Expect(result.AccessToken).NotTo(BeEmpty())
			Expect(auditor.find("auth.signup")).NotTo(BeNil())
		})

		It("rejects a short password without inserting anything", func() {
			before := len(repo.usersByID)
			_, err := service.Signup(ctx, SignupDTO{Email: "new@acme.edu", Password: "short"}, meta)
			Expect(err).To(BeAssignableToTypeOf(ValidationError{}))
			Expect(repo.usersByID).To(HaveLen(before))
		})

		It("rejects a duplicate email with ErrEmailTaken", func() {
			_, err := service.Signup(ctx, SignupDTO{Email: "student@acme.edu", Password: "long-enough-password"}, meta)
			Expect(err).To(MatchError(ErrEmailTaken))
		})

		Context("with an invitation", func() {
			BeforeEach(func() {
				repo.invitations["inv-token"] = &Invitation{
					ID:        7,
					Token:     "inv-token",
					Email:     "invited@acme.edu",
					TenantID:  tenantID,
					Role:      RoleFaculty,
					ExpiresAt: time.Now().Add(24 * time.Hour),
				}
			})

			It("takes tenant and role from the invitation and consumes it", func() {
				result, err := service.Signup(ctx, SignupDTO{
					Email:           "invited@acme.edu",
					Password:        "long-enough-password",
					InvitationToken: "inv-token",
				}, meta)
				Expect(err).NotTo(HaveOccurred())
				Expect(result.User.Role).To(Equal(RoleFaculty))
				Expect(repo.invitations["inv-token"].AcceptedAt).NotTo(BeNil())
			})

			It("rejects a second use of the same invitation", func() {
				_, err := service.Signup(ctx, SignupDTO{
					Email: "invited@acme.edu", Password: "long-enough-password", InvitationToken: "inv-token",
				}, meta)
				Expect(err).NotTo(HaveOccurred())

				_, err = service.Signup(ctx, SignupDTO{
					Email: "invited2@acme.edu", Password: "long-enough-password", InvitationToken: "inv-token",
				}, meta)
				Expect(err).To(MatchError(ErrInvitationInvalid))
			})

			It("rejects an expired invitation", func() {
				repo.invitations["inv-token"].ExpiresAt = time.Now().Add(-time.Hour)
				_, err := service.Signup(ctx, SignupDTO{
					Email: "invited@acme.edu", Password: "long-enough-password", InvitationToken: "inv-token",
				}, meta)
				Expect(err).To(MatchError(ErrInvitationInvalid))
			})

			It("rejects an invitation issued to a different email", func() {
				_, err := service.Signup(ctx, SignupDTO{
					Email: "someone-else@acme.edu", Password: "long-enough-password", InvitationToken: "inv-token",
				}, meta)
				Expect(err).To(MatchError(ErrInvitationInvalid))
			})
		})
	})

	Describe("ChangePassword", func() {
		It("replaces the hash when the current password matches", func() {
			user, _ := repo.GetUserByID(ctx, 1)
			err := service.ChangePassword(ctx, user, ChangePasswordDTO{
				CurrentPassword: "correct-password",
				NewPassword:     "brand-new-password",
			}, meta)
			Expect(err).NotTo(HaveOccurred())
			Expect(VerifyPassword(repo.usersByID[1].PasswordHash, "brand-new-password")).To(Succeed())
			Expect(auditor.find("auth.password.changed")).NotTo(BeNil())
		})

		It("rejects a wrong current password", func() {
			user, _ := repo.GetUserByID(ctx, 1)
			err := service.ChangePassword(ctx, user, ChangePasswordDTO{
				CurrentPassword: "wrong",
				NewPassword:     "brand-new-password",
			}, meta)
			Expect(err).To(MatchError(ErrInvalidCredentials))
		})
	})
})
