package user

import (
	"context"
	"log/slog"

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

// GetByID fetches a user visible to the actor. Support staff are held to
// their supported list here, same as every other read path; out-of-scope
// targets read as absent.
func (s *Service) GetByID(ctx context.Context, actor *auth.User, id int64) (*auth.User, error) {
	target, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if target.TenantID == nil {
		if err := auth.AssertTenantAccess(actor.Role, actor.TenantID, nil); err != nil {
			return nil, ErrNotFound
		}
		return target, nil
	}
	if err := auth.AssertSupportedTenant(actor, *target.TenantID); err != nil {
		return nil, ErrNotFound
	}
	return target, nil
}

// ListByTenant applies the isolation guard inline: tenant-scoped actors only
// see their own tenant, support staff only tenants on their supported list.
func (s *Service) ListByTenant(ctx context.Context, actor *auth.User, tenantID int64) ([]auth.User, error) {
	if err := auth.AssertSupportedTenant(actor, tenantID); err != nil {
		return nil, err
	}
	return s.repo.ListByTenant(ctx, tenantID)
}

// UpdateRole changes a user's role. Global roles can only be granted by a
// super admin, and the target must be inside the actor's tenant scope.
func (s *Service) UpdateRole(ctx context.Context, actor *auth.User, targetID int64, dto UpdateRoleDTO, meta audit.RequestMeta) error {
	if err := dto.Validate(); err != nil {
		return err
	}

	newRole := auth.Role(dto.Role)
	if newRole.IsGlobal() && actor.Role != auth.RoleSuperAdmin {
		return ErrRoleForbidden
	}

	target, err := s.repo.GetByID(ctx, targetID)
	if err != nil {
		return err
	}

	if target.Role == auth.RoleSuperAdmin && actor.Role != auth.RoleSuperAdmin {
		return ErrRoleForbidden
	}

	if err := auth.AssertTenantAccess(actor.Role, actor.TenantID, target.TenantID); err != nil {
		// Out-of-scope targets are indistinguishable from absent ones.
		return ErrNotFound
	}

	if err := s.repo.UpdateRole(ctx, targetID, newRole); err != nil {
		return err
	}

	entry := audit.Entry{
		TenantID:     target.TenantID,
		UserID:       &actor.ID,
		ActorRole:    string(actor.Role),
		Action:       "user.role.changed",
		ResourceType: "user",
		ResourceID:   &targetID,
		Details:      map[string]any{"from": string(target.Role), "to": string(newRole)},
		Severity:     audit.SeverityInfo,
	}
	meta.Apply(&entry)
	s.auditor.Emit(ctx, entry)

	return nil
}

// SetActive enables or disables an account. Takes effect on the target's
// very next request because authentication re-reads the row each time.
func (s *Service) SetActive(ctx context.Context, actor *auth.User, targetID int64, active bool, meta audit.RequestMeta) error {
	if actor.ID == targetID {
		return ErrSelfUpdate
	}

	target, err := s.repo.GetByID(ctx, targetID)
	if err != nil {
		return err
	}

	if err := auth.AssertTenantAccess(actor.Role, actor.TenantID, target.TenantID); err != nil {
		return ErrNotFound
	}

	if err := s.repo.SetActive(ctx, targetID, active); err != nil {
		return err
	}

	action := "user.activated"
	severity := audit.SeverityInfo
	if !active {
		action = "user.deactivated"
		severity = audit.SeverityWarn
	}

	entry := audit.Entry{
		TenantID:     target.TenantID,
		UserID:       &actor.ID,
		ActorRole:    string(actor.Role),
		Action:       action,
		ResourceType: "user",
		ResourceID:   &targetID,
		Severity:     severity,
	}
	meta.Apply(&entry)
	s.auditor.Emit(ctx, entry)

	return nil
}
