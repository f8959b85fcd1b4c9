package impersonation

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/courseloom/platform/internal/audit"
	"github.com/courseloom/platform/internal/auth"
)

type Service struct {
	repo     RepositoryAPI
	users    auth.RepositoryAPI
	tokenGen auth.TokenGeneratorAPI
	auditor  auth.AuditRecorder
	logger   *slog.Logger
	ttl      time.Duration
}

func NewService(repo RepositoryAPI, users auth.RepositoryAPI, tokenGen auth.TokenGeneratorAPI, auditor auth.AuditRecorder, logger *slog.Logger, ttl time.Duration) *Service {
	return &Service{
		repo:     repo,
		users:    users,
		tokenGen: tokenGen,
		auditor:  auditor,
		logger:   logger,
		ttl:      ttl,
	}
}

// Start mints an access token carrying the target's identity plus the
// impersonation markers. Every precondition is checked before anything is
// written, so a rejected start leaves no session row behind.
func (s *Service) Start(ctx context.Context, actor *auth.User, dto StartDTO, meta audit.RequestMeta) (*StartResult, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	target, err := s.users.GetUserByID(ctx, dto.TargetUserID)
	if err != nil {
		return nil, err
	}
	if target.Role == auth.RoleSuperAdmin {
		return nil, ErrTargetProtected
	}
	if !target.IsActive {
		return nil, ErrTargetInactive
	}

	now := time.Now()
	session := &Session{
		Token:     uuid.NewString(),
		ActorID:   actor.ID,
		TargetID:  target.ID,
		TenantID:  target.TenantID,
		Reason:    strings.TrimSpace(dto.Reason),
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.repo.Create(ctx, session); err != nil {
		return nil, err
	}

	claims := auth.ClaimsForUser(target)
	claims.ImpersonatedBy = actor.ID
	claims.ImpersonationSession = session.Token
	accessToken, err := s.tokenGen.GenerateAccessToken(claims)
	if err != nil {
		return nil, err
	}

	entry := audit.Entry{
		TenantID:     target.TenantID,
		UserID:       &actor.ID,
		ActorRole:    string(actor.Role),
		Action:       "impersonation.started",
		ResourceType: "user",
		ResourceID:   &target.ID,
		Details: map[string]any{
			"session": session.Token,
			"reason":  session.Reason,
		},
		Severity: audit.SeverityWarn,
	}
	meta.Apply(&entry)
	s.auditor.EmitSync(ctx, entry)

	return &StartResult{Session: session, AccessToken: accessToken}, nil
}

// End closes a session. Ending an already-ended session succeeds without
// touching the original ended_at, so retries and double-clicks are harmless.
func (s *Service) End(ctx context.Context, actor *auth.User, token string, meta audit.RequestMeta) error {
	session, err := s.repo.GetByToken(ctx, token)
	if err != nil {
		return err
	}

	ended, err := s.repo.End(ctx, token, time.Now())
	if err != nil {
		return err
	}
	if !ended {
		// Already closed earlier; nothing more to record.
		return nil
	}

	entry := audit.Entry{
		TenantID:     session.TenantID,
		UserID:       &actor.ID,
		ActorRole:    string(actor.Role),
		Action:       "impersonation.ended",
		ResourceType: "user",
		ResourceID:   &session.TargetID,
		Details:      map[string]any{"session": session.Token},
		Severity:     audit.SeverityInfo,
	}
	meta.Apply(&entry)
	s.auditor.Emit(ctx, entry)

	return nil
}

func (s *Service) ListByActor(ctx context.Context, actorID int64) ([]Session, error) {
	return s.repo.ListByActor(ctx, actorID)
}
