package course

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

var errTenantRequired = auth.ValidationError{Msg: "tenant_id is required"}

// resolveTenant decides which tenant a write lands in. Tenant-scoped callers
// always write into their own tenant; global callers must name one.
func resolveTenant(actor *auth.User, requested *int64) (int64, error) {
	if !actor.Role.IsGlobal() {
		if actor.TenantID == nil {
			return 0, auth.ErrNoTenantAssigned
		}
		return *actor.TenantID, nil
	}
	if requested == nil {
		return 0, errTenantRequired
	}
	return *requested, nil
}

func (s *Service) Create(ctx context.Context, actor *auth.User, dto CreateDTO, meta audit.RequestMeta) (*Course, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	tenantID, err := resolveTenant(actor, dto.TenantID)
	if err != nil {
		return nil, err
	}
	if err := s.assertAccess(actor, tenantID); err != nil {
		return nil, err
	}

	c := &Course{
		TenantID:    tenantID,
		Title:       strings.TrimSpace(dto.Title),
		Description: dto.Description,
		CreatedBy:   actor.ID,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}

	s.emit(ctx, actor, "course.created", c, meta, map[string]any{"title": c.Title})
	return c, nil
}

// Get hides cross-tenant courses behind not-found so callers cannot probe
// for existence outside their tenant.
func (s *Service) Get(ctx context.Context, actor *auth.User, id int64) (*Course, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.assertAccess(actor, c.TenantID); err != nil {
		return nil, ErrNotFound
	}
	return c, nil
}

func (s *Service) List(ctx context.Context, actor *auth.User, tenantID int64) ([]Course, error) {
	if err := s.assertAccess(actor, tenantID); err != nil {
		return nil, err
	}
	return s.repo.ListByTenant(ctx, tenantID)
}

func (s *Service) Update(ctx context.Context, actor *auth.User, id int64, dto UpdateDTO, meta audit.RequestMeta) (*Course, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.assertAccess(actor, c.TenantID); err != nil {
		return nil, ErrNotFound
	}

	published := c.IsPublished
	if dto.Title != nil {
		c.Title = strings.TrimSpace(*dto.Title)
	}
	if dto.Description != nil {
		c.Description = *dto.Description
	}
	if dto.IsPublished != nil {
		c.IsPublished = *dto.IsPublished
	}

	if err := s.repo.Update(ctx, c); err != nil {
		return nil, err
	}

	action := "course.updated"
	if !published && c.IsPublished {
		action = "course.published"
	}
	s.emit(ctx, actor, action, c, meta, nil)
	return c, nil
}

func (s *Service) Delete(ctx context.Context, actor *auth.User, id int64, meta audit.RequestMeta) error {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.assertAccess(actor, c.TenantID); err != nil {
		return ErrNotFound
	}

	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrNotFound
	}

	s.emit(ctx, actor, "course.deleted", c, meta, map[string]any{"title": c.Title})
	return nil
}

// assertAccess runs both guard stages. Support staff pass the first stage
// unconditionally, so the supported-list check is never optional here.
func (s *Service) assertAccess(actor *auth.User, tenantID int64) error {
	if err := auth.AssertTenantAccess(actor.Role, actor.TenantID, &tenantID); err != nil {
		return err
	}
	if actor.Role == auth.RoleInternalSupport {
		return auth.AssertSupportedTenant(actor, tenantID)
	}
	return nil
}

func (s *Service) emit(ctx context.Context, actor *auth.User, action string, c *Course, meta audit.RequestMeta, details map[string]any) {
	entry := audit.Entry{
		TenantID:     &c.TenantID,
		UserID:       &actor.ID,
		ActorRole:    string(actor.Role),
		Action:       action,
		ResourceType: "course",
		ResourceID:   &c.ID,
		Details:      details,
		Severity:     audit.SeverityInfo,
	}
	meta.Apply(&entry)
	s.auditor.Emit(ctx, entry)
}
