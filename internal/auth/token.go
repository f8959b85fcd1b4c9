package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenType discriminates access tokens from refresh tokens. A token of one
// type is never accepted where the other is required.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims is the signed claim set. Only identity is trusted from it; role,
// tenant and active-state are re-read from the store on every request.
type Claims struct {
	UserID               int64     `json:"user_id"`
	TenantID             *int64    `json:"tenant_id,omitempty"`
	Role                 string    `json:"role"`
	IsInternal           bool      `json:"is_internal"`
	TokenType            TokenType `json:"token_type"`
	ImpersonatedBy       int64     `json:"impersonated_by,omitempty"`
	ImpersonationSession string    `json:"impersonation_session,omitempty"`
	jwt.RegisteredClaims
}

// JWTTokenGenerator signs and verifies HS256 tokens with a single secret.
type JWTTokenGenerator struct {
	Secret          []byte
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

func NewJWTTokenGenerator(secret string, accessTTL, refreshTTL time.Duration) *JWTTokenGenerator {
	return &JWTTokenGenerator{
		Secret:          []byte(secret),
		AccessTokenTTL:  accessTTL,
		RefreshTokenTTL: refreshTTL,
	}
}

// ClaimsForUser builds the identity claim set issued to a user.
func ClaimsForUser(u *User) Claims {
	return Claims{
		UserID:     u.ID,
		TenantID:   u.TenantID,
		Role:       string(u.Role),
		IsInternal: u.IsInternal,
	}
}

func (j *JWTTokenGenerator) GenerateAccessToken(claims Claims) (string, error) {
	return j.sign(claims, TokenTypeAccess, j.AccessTokenTTL)
}

func (j *JWTTokenGenerator) GenerateRefreshToken(claims Claims) (string, error) {
	return j.sign(claims, TokenTypeRefresh, j.RefreshTokenTTL)
}

func (j *JWTTokenGenerator) sign(claims Claims, tokenType TokenType, ttl time.Duration) (string, error) {
	now := time.Now()
	claims.TokenType = tokenType
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
		Subject:   strconv.FormatInt(claims.UserID, 10),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims)
	tokenString, err := token.SignedString(j.Secret)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ValidateToken verifies signature and expiry, then enforces the type
// discriminator. Any mismatch is an invalid token.
func (j *JWTTokenGenerator) ValidateToken(tokenString string, expected TokenType) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.Secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.TokenType != expected {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
