package auth

import (
	"context"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/courseloom/platform/internal/audit"
)

// User is the resolved caller identity attached to request contexts and the
// row shape served by the credential store accessor. Authorization state on
// it is always freshly read, never taken from token claims.
type User struct {
	ID                 int64      `json:"id"`
	Email              string     `json:"email"`
	Name               string     `json:"name"`
	PasswordHash       string     `json:"-"`
	Role               Role       `json:"role"`
	TenantID           *int64     `json:"tenant_id,omitempty"`
	IsActive           bool       `json:"is_active"`
	IsInternal         bool       `json:"is_internal"`
	SupportedTenantIDs []int64    `json:"supported_tenant_ids,omitempty"`
	LastLoginAt        *time.Time `json:"last_login_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`

	// Set only on requests authenticated with an impersonation-minted
	// token; carried for audit enrichment, never for authorization.
	ImpersonatedBy       int64  `json:"impersonated_by,omitempty"`
	ImpersonationSession string `json:"-"`
}

// Tenant is the subset of tenant state the auth core reads.
type Tenant struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Domain   string `json:"domain"`
	Plan     string `json:"plan"`
	IsActive bool   `json:"is_active"`
}

// Invitation resolves a signup to a tenant and role. Consumed exactly once.
type Invitation struct {
	ID         int64
	Token      string
	Email      string
	TenantID   int64
	Role       Role
	ExpiresAt  time.Time
	AcceptedAt *time.Time
}

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
	ErrUserNotFound       = errors.New("user not found")
	ErrAccountDisabled    = errors.New("account is disabled")
	ErrNoTenantAssigned   = errors.New("no tenant assigned")
	ErrTenantInactive     = errors.New("tenant is inactive")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvitationInvalid  = errors.New("invitation is invalid or expired")
	ErrCrossTenant        = errors.New("cross-tenant access denied")
	ErrUnsupportedTenant  = errors.New("tenant not in supported list")
)

type ctxKey string

const ContextUserKey ctxKey = "user"

func UserFromContext(ctx context.Context) (*User, bool) {
	u, ok := ctx.Value(ContextUserKey).(*User)
	return u, ok
}

func ContextWithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, ContextUserKey, u)
}

// RepositoryAPI is the credential store accessor contract.
type RepositoryAPI interface {
	GetUserByID(ctx context.Context, id int64) (*User, error)
	GetUserWithTenantByEmail(ctx context.Context, email string) (*User, *Tenant, error)
	GetTenantByID(ctx context.Context, id int64) (*Tenant, error)
	GetDefaultTenant(ctx context.Context) (*Tenant, error)
	CreateUser(ctx context.Context, u *User) error
	UpdatePasswordHash(ctx context.Context, userID int64, hash string) error
	UpdateLastLogin(ctx context.Context, userID int64, at time.Time) error
	GetInvitationByToken(ctx context.Context, token string) (*Invitation, error)
	ConsumeInvitation(ctx context.Context, id int64, at time.Time) (bool, error)
}

// TokenGeneratorAPI is the token codec contract.
type TokenGeneratorAPI interface {
	GenerateAccessToken(claims Claims) (string, error)
	GenerateRefreshToken(claims Claims) (string, error)
	ValidateToken(tokenString string, expected TokenType) (*Claims, error)
}

// AuditRecorder is the slice of the audit emitter the auth flows use.
type AuditRecorder interface {
	Emit(ctx context.Context, entry audit.Entry)
	EmitSync(ctx context.Context, entry audit.Entry)
}

type ServiceAPI interface {
	Login(ctx context.Context, dto LoginDTO, meta audit.RequestMeta) (*LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (string, error)
	Signup(ctx context.Context, dto SignupDTO, meta audit.RequestMeta) (*LoginResult, error)
	ChangePassword(ctx context.Context, user *User, dto ChangePasswordDTO, meta audit.RequestMeta) error
	ValidateAccessToken(tokenString string) (*Claims, error)
	GetUserByID(ctx context.Context, id int64) (*User, error)
	GetTenantByID(ctx context.Context, id int64) (*Tenant, error)
}

func VerifyPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

func HashPassword(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
