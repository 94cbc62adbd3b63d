// Package auth issues and verifies the bearer tokens that identify callers.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Lowii-3dy/campus-sched/internal/application"
	"github.com/Lowii-3dy/campus-sched/internal/approval"
)

const issuer = "campus-sched"

// ErrInvalidToken is returned for tokens that fail verification.
var ErrInvalidToken = errors.New("auth: invalid token")

// Claims represents the JWT claims carried by a bearer token.
type Claims struct {
	UserID             string `json:"user_id"`
	Role               string `json:"role"`
	CanCreateSchedules bool   `json:"can_create_schedules"`
	jwt.RegisteredClaims
}

// TokenManager handles JWT token creation and validation.
type TokenManager struct {
	secret     []byte
	expiration time.Duration
	now        func() time.Time
}

// NewTokenManager creates a token manager signing with HS256.
func NewTokenManager(secret string, expiration time.Duration, now func() time.Time) (*TokenManager, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth: token secret is required")
	}
	if expiration <= 0 {
		expiration = 24 * time.Hour
	}
	if now == nil {
		now = time.Now
	}
	return &TokenManager{secret: []byte(secret), expiration: expiration, now: now}, nil
}

// GenerateToken creates a signed token for the principal.
func (tm *TokenManager) GenerateToken(principal application.Principal) (string, time.Time, error) {
	if strings.TrimSpace(principal.UserID) == "" {
		return "", time.Time{}, errors.New("auth: user id is required")
	}
	now := tm.now()
	expiresAt := now.Add(tm.expiration)

	claims := Claims{
		UserID:             principal.UserID,
		Role:               string(principal.Role),
		CanCreateSchedules: principal.CanCreateSchedules,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   principal.UserID,
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// ValidateToken verifies a token and returns its claims.
func (tm *TokenManager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return tm.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(tm.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || strings.TrimSpace(claims.UserID) == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ValidateSession resolves a bearer token into the calling principal. Any
// verification failure is reported as application.ErrUnauthorized.
func (tm *TokenManager) ValidateSession(ctx context.Context, token string) (application.Principal, error) {
	claims, err := tm.ValidateToken(token)
	if err != nil {
		return application.Principal{}, fmt.Errorf("%w: %w", application.ErrUnauthorized, err)
	}
	return claims.Principal(), nil
}

// Principal converts the claims into the caller identity used by services.
// Unknown roles fall back to student.
func (c Claims) Principal() application.Principal {
	return application.Principal{
		UserID:             c.UserID,
		Role:               approval.ParseRole(c.Role),
		CanCreateSchedules: c.CanCreateSchedules,
	}
}
