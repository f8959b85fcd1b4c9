package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/courseloom/platform/internal/audit"
)

// stubService answers the handler without touching a real credential store.
type stubService struct {
	loginResult *LoginResult
	loginErr    error
	refreshed   string
	refreshErr  error
	refreshSeen string
}

func (s *stubService) Login(_ context.Context, _ LoginDTO, _ audit.RequestMeta) (*LoginResult, error) {
	return s.loginResult, s.loginErr
}

func (s *stubService) Refresh(_ context.Context, refreshToken string) (string, error) {
	s.refreshSeen = refreshToken
	return s.refreshed, s.refreshErr
}

func (s *stubService) Signup(_ context.Context, _ SignupDTO, _ audit.RequestMeta) (*LoginResult, error) {
	return s.loginResult, s.loginErr
}

func (s *stubService) ChangePassword(_ context.Context, _ *User, _ ChangePasswordDTO, _ audit.RequestMeta) error {
	return nil
}

func (s *stubService) ValidateAccessToken(string) (*Claims, error) { return nil, ErrInvalidToken }
func (s *stubService) GetUserByID(context.Context, int64) (*User, error) {
	return nil, ErrUserNotFound
}
func (s *stubService) GetTenantByID(context.Context, int64) (*Tenant, error) {
	return nil, ErrTenantInactive
}

var _ = Describe("Auth Handler cookies", func() {
	var (
		svc     *stubService
		handler *Handler
	)

	BeforeEach(func() {
		svc = &stubService{
			loginResult: &LoginResult{
				AccessToken:  "access-token",
				RefreshToken: "refresh-token",
				User:         &User{ID: 1, Email: "prof@acme.edu", Role: RoleFaculty},
			},
			refreshed: "fresh-access-token",
		}
		handler = NewHandler(svc, CookieConfig{Name: "refresh_token", MaxAge: 24 * time.Hour})
	})

	refreshCookie := func(w *httptest.ResponseRecorder) *http.Cookie {
		for _, c := range w.Result().Cookies() {
			if c.Name == "refresh_token" {
				return c
			}
		}
		return nil
	}

	Describe("Login", func() {
		It("sets an HttpOnly refresh cookie alongside the JSON tokens", func() {
			r := httptest.NewRequest(http.MethodPost, "/auth/login",
				strings.NewReader(`{"email":"prof@acme.edu","password":"pw"}`))
			w := httptest.NewRecorder()
			handler.Login(w, r)

			Expect(w.Code).To(Equal(http.StatusOK))

			cookie := refreshCookie(w)
			Expect(cookie).NotTo(BeNil())
			Expect(cookie.Value).To(Equal("refresh-token"))
			Expect(cookie.HttpOnly).To(BeTrue())
			Expect(cookie.Path).To(Equal("/api/v1/auth"))
			Expect(cookie.MaxAge).To(Equal(int((24 * time.Hour).Seconds())))
		})
	})

	Describe("Login failures", func() {
		It("writes the taxonomy error shape with a machine-readable code", func() {
			svc.loginResult = nil
			svc.loginErr = ErrInvalidCredentials

			r := httptest.NewRequest(http.MethodPost, "/auth/login",
				strings.NewReader(`{"email":"prof@acme.edu","password":"wrong"}`))
			w := httptest.NewRecorder()
			handler.Login(w, r)

			Expect(w.Code).To(Equal(http.StatusUnauthorized))

			var body map[string]any
			Expect(json.Unmarshal(w.Body.Bytes(), &body)).To(Succeed())
			Expect(body["error"]).To(Equal("Invalid credentials"))
			Expect(body["code"]).To(Equal("INVALID_CREDENTIALS"))
			Expect(body["type"]).To(Equal("UNAUTHORIZED"))
		})
	})

	Describe("RefreshToken", func() {
		It("falls back to the refresh cookie when the body has no token", func() {
			r := httptest.NewRequest(http.MethodPost, "/auth/refresh", strings.NewReader(`{}`))
			r.AddCookie(&http.Cookie{Name: "refresh_token", Value: "cookie-refresh"})
			w := httptest.NewRecorder()
			handler.RefreshToken(w, r)

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(svc.refreshSeen).To(Equal("cookie-refresh"))
			Expect(w.Body.String()).To(ContainSubstring("fresh-access-token"))
		})

		It("prefers the body token over the cookie", func() {
			r := httptest.NewRequest(http.MethodPost, "/auth/refresh",
				strings.NewReader(`{"refresh_token":"body-refresh"}`))
			r.AddCookie(&http.Cookie{Name: "refresh_token", Value: "cookie-refresh"})
			w := httptest.NewRecorder()
			handler.RefreshToken(w, r)

			Expect(svc.refreshSeen).To(Equal("body-refresh"))
		})

		It("rejects a request with no token anywhere", func() {
			r := httptest.NewRequest(http.MethodPost, "/auth/refresh", strings.NewReader(`{}`))
			w := httptest.NewRecorder()
			handler.RefreshToken(w, r)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("Logout", func() {
		It("expires the refresh cookie", func() {
			r := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
			w := httptest.NewRecorder()
			handler.Logout(w, r)

			Expect(w.Code).To(Equal(http.StatusNoContent))

			cookie := refreshCookie(w)
			Expect(cookie).NotTo(BeNil())
			Expect(cookie.Value).To(BeEmpty())
			Expect(cookie.MaxAge).To(Equal(-1))
		})
	})
})
