package tenant

import (
	"context"
	"log/slog"
	"strings"

	"github.com/courseloom/platform/internal/audit"
	"github.com/courseloom/platform/internal/auth"
)

type Service struct {
	repo    RepositoryAPI
	auditor auth.AuditRecorder
	logger  *slog.Logger
}

func NewService(repo RepositoryAPI, auditor auth.AuditRecorder, logger *slog.Logger) *Service {
	return &Service{
		repo:    repo,
		auditor: auditor,
		logger:  logger,
	}
}

func (s *Service) Create(ctx context.Context, actor *auth.User, dto CreateDTO, meta audit.RequestMeta) (*Tenant, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	t := &Tenant{
		Name:      strings.TrimSpace(dto.Name),
		Domain:    strings.ToLower(strings.TrimSpace(dto.Domain)),
		Plan:      dto.Plan,
		IsActive:  true,
		IsDefault: dto.IsDefault,
	}

	if err := s.repo.Create(ctx, t); err != nil {
		return nil, err
	}

	entry := audit.Entry{
		UserID:       &actor.ID,
		ActorRole:    string(actor.Role),
		Action:       "tenant.created",
		ResourceType: "tenant",
		ResourceID:   &t.ID,
		Details:      map[string]any{"domain": t.Domain, "plan": t.Plan},
		Severity:     audit.SeverityInfo,
	}
	meta.Apply(&entry)
	s.auditor.Emit(ctx, entry)

	return t, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Tenant, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]Tenant, error) {
	return s.repo.List(ctx)
}

// SetActive toggles a tenant. Deactivation is loud: it cascades into login
// rejection for every tenant-scoped user of the tenant.
func (s *Service) SetActive(ctx context.Context, actor *auth.User, id int64, active bool, meta audit.RequestMeta) error {
	updated, err := s.repo.SetActive(ctx, id, active)
	if err != nil {
		return err
	}
	if !updated {
		return ErrNotFound
	}

	action := "tenant.activated"
	severity := audit.SeverityInfo
	if !active {
		action = "tenant.deactivated"
		severity = audit.SeverityWarn
	}

	entry := audit.Entry{
		UserID:       &actor.ID,
		ActorRole:    string(actor.Role),
		Action:       action,
		ResourceType: "tenant",
		ResourceID:   &id,
		Severity:     severity,
	}
	meta.Apply(&entry)
	s.auditor.Emit(ctx, entry)

	return nil
}
