package auth

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("JWT Token Generator", func() {
	var gen *JWTTokenGenerator

	BeforeEach(func() {
		gen = NewJWTTokenGenerator("test-secret-at-least-32-characters!", time.Hour, 24*time.Hour)
	})

	It("round-trips access token claims", func() {
		tenantID := int64(4)
		token, err := gen.GenerateAccessToken(Claims{
			UserID:   42,
			TenantID: &tenantID,
			Role:     string(RoleFaculty),
		})
		Expect(err).NotTo(HaveOccurred())

		claims, err := gen.ValidateToken(token, TokenTypeAccess)
		Expect(err).NotTo(HaveOccurred())
		Expect(claims.UserID).To(Equal(int64(42)))
		Expect(*claims.TenantID).To(Equal(tenantID))
		Expect(claims.Role).To(Equal(string(RoleFaculty)))
		Expect(claims.TokenType).To(Equal(TokenTypeAccess))
	})

	It("rejects a refresh token where an access token is expected", func() {
		token, err := gen.GenerateRefreshToken(Claims{UserID: 42})
		Expect(err).NotTo(HaveOccurred())

		_, err = gen.ValidateToken(token, TokenTypeAccess)
		Expect(err).To(MatchError(ErrInvalidToken))
	})

	It("rejects an access token where a refresh token is expected", func() {
		token, err := gen.GenerateAccessToken(Claims{UserID: 42})
		Expect(err).NotTo(HaveOccurred())

		_, err = gen.ValidateToken(token, TokenTypeRefresh)
		Expect(err).To(MatchError(ErrInvalidToken))
	})

	It("rejects an expired token with ErrTokenExpired", func() {
		shortLived := NewJWTTokenGenerator("test-secret-at-least-32-characters!", -time.Minute, 24*time.Hour)
		token, err := shortLived.GenerateAccessToken(Claims{UserID: 42})
		Expect(err).NotTo(HaveOccurred())

		_, err = gen.ValidateToken(token, TokenTypeAccess)
		Expect(err).To(MatchError(ErrTokenExpired))
	})

	It("rejects a token signed with a different secret", func() {
		other := NewJWTTokenGenerator("another-secret-also-32-characters!!!", time.Hour, 24*time.Hour)
		token, err := other.GenerateAccessToken(Claims{UserID: 42})
		Expect(err).NotTo(HaveOccurred())

		_, err = gen.ValidateToken(token, TokenTypeAccess)
		Expect(err).To(MatchError(ErrInvalidToken))
	})

	It("rejects garbage", func() {
		_, err := gen.ValidateToken("not.a.token", TokenTypeAccess)
		Expect(err).To(MatchError(ErrInvalidToken))
	})

	It("carries impersonation markers through signing", func() {
		token, err := gen.GenerateAccessToken(Claims{
			UserID:               7,
			ImpersonatedBy:       1,
			ImpersonationSession: "session-token",
		})
		Expect(err).NotTo(HaveOccurred())

		claims, err := gen.ValidateToken(token, TokenTypeAccess)
		Expect(err).NotTo(HaveOccurred())
		Expect(claims.ImpersonatedBy).To(Equal(int64(1)))
		Expect(claims.ImpersonationSession).To(Equal("session-token"))
	})
})
