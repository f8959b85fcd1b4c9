package course

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/courseloom/platform/internal/audit"
	"github.com/courseloom/platform/internal/auth"
)

var ErrNotFound = errors.New("course not found")

// Course is a tenant-scoped resource. Every operation on it re-checks the
// caller's tenant against the stored tenant_id.
type Course struct {
	ID          int64     `json:"id"`
	TenantID    int64     `json:"tenant_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CreatedBy   int64     `json:"created_by"`
	IsPublished bool      `json:"is_published"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type CreateDTO struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	TenantID    *int64 `json:"tenant_id,omitempty"`
}

func (d CreateDTO) Validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return auth.ValidationError{Msg: "title is required"}
	}
	return nil
}

type UpdateDTO struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	IsPublished *bool   `json:"is_published,omitempty"`
}

func (d UpdateDTO) Validate() error {
	if d.Title == nil && d.Description == nil && d.IsPublished == nil {
		return auth.ValidationError{Msg: "no fields to update"}
	}
	if d.Title != nil && strings.TrimSpace(*d.Title) == "" {
		return auth.ValidationError{Msg: "title cannot be empty"}
	}
	return nil
}

type RepositoryAPI interface {
	Create(ctx context.Context, c *Course) error
	GetByID(ctx context.Context, id int64) (*Course, error)
	ListByTenant(ctx context.Context, tenantID int64) ([]Course, error)
	Update(ctx context.Context, c *Course) error
	Delete(ctx context.Context, id int64) (bool, error)
}

type ServiceAPI interface {
	Create(ctx context.Context, actor *auth.User, dto CreateDTO, meta audit.RequestMeta) (*Course, error)
	Get(ctx context.Context, actor *auth.User, id int64) (*Course, error)
	List(ctx context.Context, actor *auth.User, tenantID int64) ([]Course, error)
	Update(ctx context.Context, actor *auth.User, id int64, dto UpdateDTO, meta audit.RequestMeta) (*Course, error)
	Delete(ctx context.Context, actor *auth.User, id int64, meta audit.RequestMeta) error
}
