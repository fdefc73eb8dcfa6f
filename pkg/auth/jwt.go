// Package auth issues staff tokens and verifies staff credentials.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/shashiranjanraj/orderdesk/config"
)

// TokenTTL is how long a staff session token stays valid.
const TokenTTL = 12 * time.Hour

// Claims holds the typed JWT payload.
type Claims struct {
	StaffID string `json:"staff_id"`
	Role    string `json:"role"`
	jwt.RegisteredClaims
}

func secret() []byte {
	return []byte(config.JWTSecret())
}

// GenerateToken creates a signed HS256 token for a staff member.
func GenerateToken(staffID, role string) (string, error) {
	now := time.Now()
	claims := Claims{
		StaffID: staffID,
		Role:    role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   staffID,
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret())
}

// ValidateToken parses and validates a token string.
func ValidateToken(t string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(t, &Claims{}, func(tok *jwt.Token) (interface{}, error) {
		return secret(), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

type claimsKey struct{}

// WithClaims stores validated claims in ctx.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

// ClaimsFromCtx returns the claims stored by middleware.StaffAuth, if any.
func ClaimsFromCtx(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*Claims)
	return c, ok && c != nil
}

// ErrMismatch is returned by a CredentialVerifier when the password is wrong.
var ErrMismatch = errors.New("auth: credential mismatch")

// CredentialVerifier checks a plain-text candidate against a stored hash.
type CredentialVerifier interface {
	Hash(plain string) (string, error)
	Verify(hash, plain string) error
}

// BcryptVerifier is the default CredentialVerifier.
type BcryptVerifier struct {
	Cost int
}

func (v BcryptVerifier) cost() int {
	if v.Cost == 0 {
		return bcrypt.DefaultCost
	}
	return v.Cost
}

// Hash returns a bcrypt hash of plain.
func (v BcryptVerifier) Hash(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), v.cost())
	return string(b), err
}

// Verify returns ErrMismatch when plain does not match hash.
func (v BcryptVerifier) Verify(hash, plain string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)); err != nil {
		return ErrMismatch
	}
	return nil
}
