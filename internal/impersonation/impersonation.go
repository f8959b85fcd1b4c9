package impersonation

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/courseloom/platform/internal/audit"
	"github.com/courseloom/platform/internal/auth"
)

var (
	ErrNotFound        = errors.New("impersonation session not found")
	ErrTargetProtected = errors.New("target user cannot be impersonated")
	ErrTargetInactive  = errors.New("target user is disabled")
)

// Session records one impersonation episode. EndedAt stays nil while the
// session is live; ending it twice leaves the first ended_at untouched.
type Session struct {
	ID        int64      `json:"id"`
	Token     string     `json:"token"`
	ActorID   int64      `json:"actor_id"`
	TargetID  int64      `json:"target_id"`
	TenantID  *int64     `json:"tenant_id,omitempty"`
	Reason    string     `json:"reason"`
	ExpiresAt time.Time  `json:"expires_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

type StartDTO struct {
	TargetUserID int64  `json:"target_user_id"`
	Reason       string `json:"reason"`
}

func (d StartDTO) Validate() error {
	if d.TargetUserID <= 0 {
		return auth.ValidationError{Msg: "target_user_id is required"}
	}
	if strings.TrimSpace(d.Reason) == "" {
		return auth.ValidationError{Msg: "reason is required"}
	}
	return nil
}

// StartResult is what the caller gets back: the session record plus an
// access token carrying the target's identity.
type StartResult struct {
	Session     *Session `json:"session"`
	AccessToken string   `json:"access_token"`
}

type RepositoryAPI interface {
	Create(ctx context.Context, s *Session) error
	GetByToken(ctx context.Context, token string) (*Session, error)
	End(ctx context.Context, token string, at time.Time) (bool, error)
	ListByActor(ctx context.Context, actorID int64) ([]Session, error)
}

type ServiceAPI interface {
	Start(ctx context.Context, actor *auth.User, dto StartDTO, meta audit.RequestMeta) (*StartResult, error)
	End(ctx context.Context, actor *auth.User, token string, meta audit.RequestMeta) error
	ListByActor(ctx context.Context, actorID int64) ([]Session, error)
}
