// Package auth verifies bearer tokens issued by the identity service.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role is the actor category carried in a token.
type Role string

const (
	RoleCarer  Role = "carer"
	RoleClient Role = "client"
	RoleAdmin  Role = "admin"
)

// IsValid reports whether r is a known role.
func (r Role) IsValid() bool {
	switch r {
	case RoleCarer, RoleClient, RoleAdmin:
		return true
	}
	return false
}

// Claims are the JWT claims understood by this service.
type Claims struct {
	Role Role `json:"role"`
	jwt.RegisteredClaims
}

// UserID parses the numeric subject.
func (c *Claims) UserID() (uint64, error) {
	return strconv.ParseUint(c.Subject, 10, 64)
}

// Actor is a verified caller identity.
type Actor struct {
	ID   uint64
	Role Role
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// ErrInvalidToken is returned for malformed, expired or wrongly signed tokens.
var ErrInvalidToken = errors.New("invalid or expired token")

// JWTManager signs and verifies HS256 tokens.
type JWTManager struct {
	secret          []byte
	issuer          string
	accessTokenTTL  time.Duration
	refreshTokenTTL time.Duration
}

// NewJWTManager creates a new JWTManager.
func NewJWTManager(secret, issuer string, accessTokenTTL, refreshTokenTTL time.Duration) *JWTManager {
	return &JWTManager{
		secret:          []byte(secret),
		issuer:          issuer,
		accessTokenTTL:  accessTokenTTL,
		refreshTokenTTL: refreshTokenTTL,
	}
}

// GenerateAccessToken issues a short lived token for the actor.
func (m *JWTManager) GenerateAccessToken(actor Actor) (string, error) {
	return m.generate(actor, m.accessTokenTTL)
}

// GenerateRefreshToken issues a long lived token for the actor.
func (m *JWTManager) GenerateRefreshToken(actor Actor) (string, error) {
	return m.generate(actor, m.refreshTokenTTL)
}

func (m *JWTManager) generate(actor Actor, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: actor.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(actor.ID, 10),
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token and returns the actor it names.
func (m *JWTManager) Verify(tokenString string) (Actor, error) {
	claims := &Claims{}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}

	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, opts...)
	if err != nil {
		return Actor{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	id, err := claims.UserID()
	if err != nil || id == 0 {
		return Actor{}, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	if !claims.Role.IsValid() {
		return Actor{}, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, claims.Role)
	}
	return Actor{ID: id, Role: claims.Role}, nil
}
