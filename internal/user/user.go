package user

import (
	"context"
	"errors"

	"github.com/courseloom/platform/internal/audit"
	"github.com/courseloom/platform/internal/auth"
)

var (
	ErrNotFound      = errors.New("user not found")
	ErrSelfUpdate    = errors.New("cannot change own activation state")
	ErrRoleForbidden = errors.New("not allowed to assign this role")
)

type UpdateRoleDTO struct {
	Role string `json:"role"`
}

func (d UpdateRoleDTO) Validate() error {
	if !auth.Role(d.Role).Valid() {
		return auth.ValidationError{Msg: "unknown role"}
	}
	return nil
}

type ActivationDTO struct {
	IsActive bool `json:"is_active"`
}

type RepositoryAPI interface {
	GetByID(ctx context.Context, id int64) (*auth.User, error)
	ListByTenant(ctx context.Context, tenantID int64) ([]auth.User, error)
	UpdateRole(ctx context.Context, id int64, role auth.Role) error
	SetActive(ctx context.Context, id int64, active bool) error
}

type ServiceAPI interface {
	GetByID(ctx context.Context, actor *auth.User, id int64) (*auth.User, error)
	ListByTenant(ctx context.Context, actor *auth.User, tenantID int64) ([]auth.User, error)
	UpdateRole(ctx context.Context, actor *auth.User, targetID int64, dto UpdateRoleDTO, meta audit.RequestMeta) error
	SetActive(ctx context.Context, actor *auth.User, targetID int64, active bool, meta audit.RequestMeta) error
}
