package impersonation

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/courseloom/platform/internal/audit"
	"github.com/courseloom/platform/internal/auth"
)

func TestImpersonation(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Impersonation Suite")
}

type mockSessionRepo struct {
	sessions map[string]*Session
	creates  int
	nextID   int64
}

func newMockSessionRepo() *mockSessionRepo {
	return &mockSessionRepo{sessions: make(map[string]*Session)}
}

func (m *mockSessionRepo) Create(_ context.Context, s *Session) error {
	m.creates++
	m.nextID++
	s.ID = m.nextID
	s.CreatedAt = time.Now()
	copied := *s
	m.sessions[s.Token] = &copied
	return nil
}

func (m *mockSessionRepo) GetByToken(_ context.Context, token string) (*Session, error) {
	s, ok := m.sessions[token]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *s
	return &copied, nil
}

func (m *mockSessionRepo) End(_ context.Context, token string, at time.Time) (bool, error) {
	s, ok := m.sessions[token]
	if !ok {
		return false, nil
	}
	if s.EndedAt != nil {
		return false, nil
	}
	s.EndedAt = &at
	return true, nil
}

func (m *mockSessionRepo) ListByActor(_ context.Context, actorID int64) ([]Session, error) {
	var out []Session
	for _, s := range m.sessions {
		if s.ActorID == actorID {
			out = append(out, *s)
		}
	}
	return out, nil
}

// mockUserStore stubs the slice of the credential store the manager reads.
type mockUserStore struct {
	auth.RepositoryAPI
	users map[int64]*auth.User
}

func (m *mockUserStore) GetUserByID(_ context.Context, id int64) (*auth.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, auth.ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

type recordingAuditor struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (r *recordingAuditor) Emit(_ context.Context, e audit.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
}

func (r *recordingAuditor) EmitSync(_ context.Context, e audit.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
}

func (r *recordingAuditor) find(action string) *audit.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.entries {
		if r.entries[i].Action == action {
			return &r.entries[i]
		}
	}
	return nil
}

var _ = Describe("Impersonation Manager", func() {
	var (
		repo     *mockSessionRepo
		users    *mockUserStore
		tokenGen *auth.JWTTokenGenerator
		auditor  *recordingAuditor
		service  *Service
		ctx      context.Context

		operator *auth.User
		tenantID int64
	)

	BeforeEach(func() {
		ctx = context.Background()
		repo = newMockSessionRepo()
		tenantID = int64(1)
		users = &mockUserStore{users: map[int64]*auth.User{
			1: {ID: 1, Email: "root@platform.io", Role: auth.RoleSuperAdmin, IsActive: true},
			2: {ID: 2, Email: "ops@platform.io", Role: auth.RoleInternalAdmin, IsActive: true},
			3: {ID: 3, Email: "student@acme.edu", Role: auth.RoleStudent, TenantID: &tenantID, IsActive: true},
			4: {ID: 4, Email: "disabled@acme.edu", Role: auth.RoleStudent, TenantID: &tenantID, IsActive: false},
		}}
		tokenGen = auth.NewJWTTokenGenerator("test-secret-at-least-32-characters!", time.Hour, 24*time.Hour)
		auditor = &recordingAuditor{}
		lg := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		service = NewService(repo, users, tokenGen, auditor, lg, time.Hour)

		operator = &auth.User{ID: 2, Email: "ops@platform.io", Role: auth.RoleInternalAdmin}
	})

	Describe("Start", func() {
		It("mints a token carrying the target's identity plus markers", func() {
			result, err := service.Start(ctx, operator, StartDTO{TargetUserID: 3, Reason: "billing dispute"}, audit.RequestMeta{})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Session.ActorID).To(Equal(int64(2)))
			Expect(result.Session.TargetID).To(Equal(int64(3)))
			Expect(result.Session.Reason).To(Equal("billing dispute"))

			claims, err := tokenGen.ValidateToken(result.AccessToken, auth.TokenTypeAccess)
			Expect(err).NotTo(HaveOccurred())
			Expect(claims.UserID).To(Equal(int64(3)))
			Expect(claims.Role).To(Equal(string(auth.RoleStudent)))
			Expect(claims.ImpersonatedBy).To(Equal(int64(2)))
			Expect(claims.ImpersonationSession).To(Equal(result.Session.Token))
		})

		It("writes a warn audit with the reason", func() {
			_, err := service.Start(ctx, operator, StartDTO{TargetUserID: 3, Reason: "billing dispute"}, audit.RequestMeta{})
			Expect(err).NotTo(HaveOccurred())

			entry := auditor.find("impersonation.started")
			Expect(entry).NotTo(BeNil())
			Expect(entry.Severity).To(Equal(audit.SeverityWarn))
			Expect(entry.Details["reason"]).To(Equal("billing dispute"))
		})

		It("refuses a missing reason before touching the store", func() {
			_, err := service.Start(ctx, operator, StartDTO{TargetUserID: 3, Reason: "  "}, audit.RequestMeta{})
			Expect(err).To(BeAssignableToTypeOf(auth.ValidationError{}))
			Expect(repo.creates).To(BeZero())
		})

		It("refuses to impersonate a super_admin and writes no session row", func() {
			_, err := service.Start(ctx, operator, StartDTO{TargetUserID: 1, Reason: "snooping"}, audit.RequestMeta{})
			Expect(err).To(MatchError(ErrTargetProtected))
			Expect(repo.creates).To(BeZero())
			Expect(auditor.find("impersonation.started")).To(BeNil())
		})

		It("refuses a disabled target", func() {
			_, err := service.Start(ctx, operator, StartDTO{TargetUserID: 4, Reason: "debug"}, audit.RequestMeta{})
			Expect(err).To(MatchError(ErrTargetInactive))
			Expect(repo.creates).To(BeZero())
		})

		It("refuses an unknown target", func() {
			_, err := service.Start(ctx, operator, StartDTO{TargetUserID: 99, Reason: "debug"}, audit.RequestMeta{})
			Expect(errors.Is(err, auth.ErrUserNotFound)).To(BeTrue())
		})
	})

	Describe("End", func() {
		var token string

		BeforeEach(func() {
			result, err := service.Start(ctx, operator, StartDTO{TargetUserID: 3, Reason: "debug"}, audit.RequestMeta{})
			Expect(err).NotTo(HaveOccurred())
			token = result.Session.Token
		})

		It("stamps ended_at and writes an info audit", func() {
			Expect(service.End(ctx, operator, token, audit.RequestMeta{})).To(Succeed())
			Expect(repo.sessions[token].EndedAt).NotTo(BeNil())

			entry := auditor.find("impersonation.ended")
			Expect(entry).NotTo(BeNil())
			Expect(entry.Severity).To(Equal(audit.SeverityInfo))
		})

		It("is idempotent: a second end keeps the original timestamp and adds no audit", func() {
			Expect(service.End(ctx, operator, token, audit.RequestMeta{})).To(Succeed())
			first := *repo.sessions[token].EndedAt

			Expect(service.End(ctx, operator, token, audit.RequestMeta{})).To(Succeed())
			Expect(*repo.sessions[token].EndedAt).To(Equal(first))

			count := 0
			for _, e := range auditor.entries {
				if e.Action == "impersonation.ended" {
					count++
				}
			}
			Expect(count).To(Equal(1))
		})

		It("errors on an unknown session token", func() {
			Expect(service.End(ctx, operator, "nope", audit.RequestMeta{})).To(MatchError(ErrNotFound))
		})
	})
})
