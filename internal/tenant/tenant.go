package tenant

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/courseloom/platform/internal/audit"
	"github.com/courseloom/platform/internal/auth"
)

// Tenant is an institution on the platform. Deactivating one locks out all
// of its tenant-scoped users on their next request.
type Tenant struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Domain    string    `json:"domain"`
	Plan      string    `json:"plan"`
	IsActive  bool      `json:"is_active"`
	IsDefault bool      `json:"is_default"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

var validPlans = map[string]struct{}{
	"basic":      {},
	"pro":        {},
	"enterprise": {},
}

var (
	ErrNotFound    = errors.New("tenant not found")
	ErrDomainTaken = errors.New("domain already registered")
)

type CreateDTO struct {
	Name      string `json:"name"`
	Domain    string `json:"domain"`
	Plan      string `json:"plan"`
	IsDefault bool   `json:"is_default"`
}

func (d CreateDTO) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return auth.ValidationError{Msg: "name is required"}
	}
	if strings.TrimSpace(d.Domain) == "" {
		return auth.ValidationError{Msg: "domain is required"}
	}
	if _, ok := validPlans[d.Plan]; !ok {
		return auth.ValidationError{Msg: "plan must be one of basic, pro, enterprise"}
	}
	return nil
}

type ActivationDTO struct {
	IsActive bool `json:"is_active"`
}

type RepositoryAPI interface {
	Create(ctx context.Context, t *Tenant) error
	GetByID(ctx context.Context, id int64) (*Tenant, error)
	List(ctx context.Context) ([]Tenant, error)
	SetActive(ctx context.Context, id int64, active bool) (bool, error)
}

type ServiceAPI interface {
	Create(ctx context.Context, actor *auth.User, dto CreateDTO, meta audit.RequestMeta) (*Tenant, error)
	Get(ctx context.Context, id int64) (*Tenant, error)
	List(ctx context.Context) ([]Tenant, error)
	SetActive(ctx context.Context, actor *auth.User, id int64, active bool, meta audit.RequestMeta) error
}
