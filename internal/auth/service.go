package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/courseloom/platform/internal/audit"
)

// Service implements the credential and session flows: login, refresh,
// signup, change-password.
type Service struct {
	repo              RepositoryAPI
	tokenGen          TokenGeneratorAPI
	auditor           AuditRecorder
	logger            *slog.Logger
	bcryptCost        int
	minPasswordLength int
	notFoundDelay     time.Duration
}

type ServiceConfig struct {
	BCryptCost        int
	MinPasswordLength int
	NotFoundDelay     time.Duration
}

func NewService(repo RepositoryAPI, tokenGen TokenGeneratorAPI, auditor AuditRecorder, logger *slog.Logger, cfg ServiceConfig) *Service {
	if cfg.MinPasswordLength == 0 {
		cfg.MinPasswordLength = 8
	}
	return &Service{
		repo:              repo,
		tokenGen:          tokenGen,
		auditor:           auditor,
		logger:            logger,
		bcryptCost:        cfg.BCryptCost,
		minPasswordLength: cfg.MinPasswordLength,
		notFoundDelay:     cfg.NotFoundDelay,
	}
}

// Login authenticates credentials and issues an access+refresh pair.
// Credential failures are reported generically; the caller never learns
// whether email or password was wrong.
func (s *Service) Login(ctx context.Context, dto LoginDTO, meta audit.RequestMeta) (*LoginResult, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	email := NormalizeEmail(dto.Email)

	user, tenant, err := s.repo.GetUserWithTenantByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// Fixed delay so an unknown email costs roughly the same as
			// a bcrypt comparison, reducing timing-based enumeration.
			time.Sleep(s.notFoundDelay)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !user.IsActive {
		return nil, ErrAccountDisabled
	}

	if !user.Role.IsGlobal() {
		if user.TenantID == nil {
			return nil, ErrNoTenantAssigned
		}
		if tenant == nil || !tenant.IsActive {
			return nil, ErrTenantInactive
		}
	}

	if err := VerifyPassword(user.PasswordHash, dto.Password); err != nil {
		entry := audit.Entry{
			TenantID:     user.TenantID,
			UserID:       &user.ID,
			ActorRole:    string(user.Role),
			Action:       "auth.login.failed",
			ResourceType: "user",
			ResourceID:   &user.ID,
			Details:      map[string]any{"email": email},
			Severity:     audit.SeverityWarn,
		}
		meta.Apply(&entry)
		// Written before responding so the row exists when the 401 lands.
		s.auditor.EmitSync(ctx, entry)
		return nil, ErrInvalidCredentials
	}

	claims := ClaimsForUser(user)

	accessToken, err := s.tokenGen.GenerateAccessToken(claims)
	if err != nil {
		return nil, err
	}

	refreshToken, err := s.tokenGen.GenerateRefreshToken(claims)
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpdateLastLogin(ctx, user.ID, time.Now().UTC()); err != nil {
		s.logger.Warn("failed to update last login", "user_id", user.ID, "error", err)
	}

	entry := audit.Entry{
		TenantID:     user.TenantID,
		UserID:       &user.ID,
		ActorRole:    string(user.Role),
		Action:       "auth.login.success",
		ResourceType: "user",
		ResourceID:   &user.ID,
		Severity:     audit.SeverityInfo,
	}
	meta.Apply(&entry)
	s.auditor.Emit(ctx, entry)

	return &LoginResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user,
	}, nil
}

// Refresh mints a new access token from a valid refresh token. The refresh
// token itself is not rotated or revocation-tracked; a captured one stays
// valid until expiry. TODO: revisit with rotation plus a revocation list
// hung off the sessions table.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, error) {
	claims, err := s.tokenGen.ValidateToken(refreshToken, TokenTypeRefresh)
	if err != nil {
		return "", err
	}

	user, err := s.repo.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return "", ErrInvalidToken
		}
		return "", err
	}
	if !user.IsActive {
		return "", ErrAccountDisabled
	}

	// Claims are rebuilt from the current row, not copied from the old
	// token, so a role or tenant change takes effect here too.
	return s.tokenGen.GenerateAccessToken(ClaimsForUser(user))
}

// Signup registers a user. Tenant and role come from a pending invitation
// when a token is supplied, otherwise from the single default tenant with
// the least-privileged role.
func (s *Service) Signup(ctx context.Context, dto SignupDTO, meta audit.RequestMeta) (*LoginResult, error) {
	if err := dto.Validate(s.minPasswordLength); err != nil {
		return nil, err
	}

	email := NormalizeEmail(dto.Email)

	var tenantID int64
	role := LeastPrivileged()

	if dto.InvitationToken != "" {
		inv, err := s.repo.GetInvitationByToken(ctx, dto.InvitationToken)
		if err != nil {
			return nil, ErrInvitationInvalid
		}
		if inv.AcceptedAt != nil || time.Now().After(inv.ExpiresAt) {
			return nil, ErrInvitationInvalid
		}
		if NormalizeEmail(inv.Email) != email {
			return nil, ErrInvitationInvalid
		}

		consumed, err := s.repo.ConsumeInvitation(ctx, inv.ID, time.Now().UTC())
		if err != nil {
			return nil, err
		}
		if !consumed {
			// Lost the race against a concurrent acceptance.
			return nil, ErrInvitationInvalid
		}

		tenantID = inv.TenantID
		role = inv.Role
	} else {
		tenant, err := s.repo.GetDefaultTenant(ctx)
		if err != nil {
			return nil, err
		}
		if !tenant.IsActive {
			return nil, ErrTenantInactive
		}
		tenantID = tenant.ID
	}

	hash, err := HashPassword(dto.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	user := &User{
		Email:        email,
		Name:         dto.Name,
		PasswordHash: hash,
		Role:         role,
		TenantID:     &tenantID,
		IsActive:     true,
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	accessToken, err := s.tokenGen.GenerateAccessToken(ClaimsForUser(user))
	if err != nil {
		return nil, err
	}

	entry := audit.Entry{
		TenantID:     user.TenantID,
		UserID:       &user.ID,
		ActorRole:    string(user.Role),
		Action:       "auth.signup",
		ResourceType: "user",
		ResourceID:   &user.ID,
		Details:      map[string]any{"email": email, "invited": dto.InvitationToken != ""},
		Severity:     audit.SeverityInfo,
	}
	meta.Apply(&entry)
	s.auditor.Emit(ctx, entry)

	return &LoginResult{
		AccessToken: accessToken,
		User:        user,
	}, nil
}

// ChangePassword requires the current password before accepting a new one.
func (s *Service) ChangePassword(ctx context.Context, user *User, dto ChangePasswordDTO, meta audit.RequestMeta) error {
	if err := dto.Validate(s.minPasswordLength); err != nil {
		return err
	}

	// Re-read the hash rather than trusting whatever the context carries.
	current, err := s.repo.GetUserByID(ctx, user.ID)
	if err != nil {
		return err
	}

	if err := VerifyPassword(current.PasswordHash, dto.CurrentPassword); err != nil {
		return ErrInvalidCredentials
	}

	hash, err := HashPassword(dto.NewPassword, s.bcryptCost)
	if err != nil {
		return err
	}

	if err := s.repo.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		return err
	}

	entry := audit.Entry{
		TenantID:     user.TenantID,
		UserID:       &user.ID,
		ActorRole:    string(user.Role),
		Action:       "auth.password.changed",
		ResourceType: "user",
		ResourceID:   &user.ID,
		Severity:     audit.SeverityInfo,
	}
	meta.Apply(&entry)
	s.auditor.Emit(ctx, entry)

	return nil
}

func (s *Service) ValidateAccessToken(tokenString string) (*Claims, error) {
	return s.tokenGen.ValidateToken(tokenString, TokenTypeAccess)
}

func (s *Service) GetUserByID(ctx context.Context, id int64) (*User, error) {
	return s.repo.GetUserByID(ctx, id)
}

func (s *Service) GetTenantByID(ctx context.Context, id int64) (*Tenant, error) {
	return s.repo.GetTenantByID(ctx, id)
}
