package auth

import (
	"regexp"
	"strings"
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// NormalizeEmail trims and lowercases; all email comparisons go through this.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidationError represents a simple validation error from DTO validation.
type ValidationError struct {
	Msg string
}

func (v ValidationError) Error() string { return v.Msg }

type LoginDTO struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (d LoginDTO) Validate() error {
	if strings.TrimSpace(d.Email) == "" {
		return ValidationError{Msg: "email is required"}
	}
	if d.Password == "" {
		return ValidationError{Msg: "password is required"}
	}
	return nil
}

type RefreshTokenDTO struct {
	RefreshToken string `json:"refresh_token"`
}

type SignupDTO struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	Name            string `json:"name"`
	InvitationToken string `json:"invitation_token,omitempty"`
}

// Validate checks email shape and minimum password length.
func (d SignupDTO) Validate(minPasswordLength int) error {
	email := NormalizeEmail(d.Email)
	if email == "" {
		return ValidationError{Msg: "email is required"}
	}
	if !emailPattern.MatchString(email) {
		return ValidationError{Msg: "email is not valid"}
	}
	if len(d.Password) < minPasswordLength {
		return ValidationError{Msg: "password is too short"}
	}
	return nil
}

type ChangePasswordDTO struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (d ChangePasswordDTO) Validate(minPasswordLength int) error {
	if d.CurrentPassword == "" {
		return ValidationError{Msg: "current_password is required"}
	}
	if len(d.NewPassword) < minPasswordLength {
		return ValidationError{Msg: "new password is too short"}
	}
	return nil
}

// UserProjection is the user shape returned by login/signup responses. Never
// includes the password hash.
type UserProjection struct {
	ID          int64    `json:"id"`
	Email       string   `json:"email"`
	Name        string   `json:"name"`
	Role        string   `json:"role"`
	TenantID    *int64   `json:"tenant_id,omitempty"`
	IsInternal  bool     `json:"is_internal"`
	Permissions []string `json:"permissions,omitempty"`
}

func ProjectUser(u *User) UserProjection {
	return UserProjection{
		ID:          u.ID,
		Email:       u.Email,
		Name:        u.Name,
		Role:        string(u.Role),
		TenantID:    u.TenantID,
		IsInternal:  u.IsInternal,
		Permissions: u.Role.Permissions(),
	}
}

// LoginResult carries issued tokens plus the user projection.
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	User         *User
}

// AuthResponse is the wire shape for login/signup/refresh. Token aliases
// AccessToken for older clients.
type AuthResponse struct {
	AccessToken  string         `json:"accessToken"`
	Token        string         `json:"token"`
	RefreshToken string         `json:"refreshToken,omitempty"`
	User         UserProjection `json:"user"`
}
