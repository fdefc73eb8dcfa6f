package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/shashiranjanraj/orderdesk/app/models"
	"github.com/shashiranjanraj/orderdesk/app/repositories"
	"github.com/shashiranjanraj/orderdesk/pkg/auth"
	"github.com/shashiranjanraj/orderdesk/pkg/logger"
)

// LoginInput is the body of POST /api/staff/login.
type LoginInput struct {
	StaffID  string `json:"staffId"  validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResult is returned to a signed-in staff member.
type LoginResult struct {
	Staff         models.Staff `json:"staff"`
	PushPublicKey string       `json:"pushPublicKey"`
	Token         string       `json:"token"`
}

// AuthService signs staff in.
type AuthService struct {
	staff         repositories.StaffRepository
	verifier      auth.CredentialVerifier
	pushPublicKey string
}

// NewAuthService uses verifier to check passwords; pushPublicKey is handed
// to the browser so it can subscribe to Web Push.
func NewAuthService(staff repositories.StaffRepository, verifier auth.CredentialVerifier, pushPublicKey string) *AuthService {
	return &AuthService{staff: staff, verifier: verifier, pushPublicKey: pushPublicKey}
}

// Login verifies the credentials and issues a token. An unknown id and a
// wrong password both yield ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (LoginResult, error) {
	member, err := s.staff.FindByID(ctx, in.StaffID)
	if err != nil {
		if errors.Is(err, repositories.ErrStaffNotFound) {
			logger.WithCtx(ctx).Info("staff login rejected", "staff_id", in.StaffID, "reason", "unknown id")
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, fmt.Errorf("services: login: %w", err)
	}

	if err := s.verifier.Verify(member.PasswordHash, in.Password); err != nil {
		logger.WithCtx(ctx).Info("staff login rejected", "staff_id", in.StaffID, "reason", "password")
		return LoginResult{}, ErrInvalidCredentials
	}

	token, err := auth.GenerateToken(member.ID, member.Role)
	if err != nil {
		return LoginResult{}, fmt.Errorf("services: sign token: %w", err)
	}

	logger.WithCtx(ctx).Info("staff signed in", "staff_id", member.ID)
	return LoginResult{Staff: member, PushPublicKey: s.pushPublicKey, Token: token}, nil
}
