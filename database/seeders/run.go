// Package seeders creates the initial staff account from configuration.
//
//	orderdesk seed            # insert or refresh the configured staff member
//
// The server also calls EnsureStaff at boot so a fresh store can sign in.
package seeders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shashiranjanraj/orderdesk/app/models"
	"github.com/shashiranjanraj/orderdesk/app/repositories"
	"github.com/shashiranjanraj/orderdesk/config"
	"github.com/shashiranjanraj/orderdesk/pkg/auth"
	"github.com/shashiranjanraj/orderdesk/pkg/logger"
)

// StaffFromConfig builds the configured staff member with a hashed password.
func StaffFromConfig(s config.Settings, verifier auth.CredentialVerifier) (models.Staff, error) {
	if s.StaffSeedID == "" || s.StaffSeedPassword == "" {
		return models.Staff{}, errors.New("seeders: STAFF_SEED_ID and STAFF_SEED_PASSWORD are required")
	}
	hash, err := verifier.Hash(s.StaffSeedPassword)
	if err != nil {
		return models.Staff{}, fmt.Errorf("seeders: hash password: %w", err)
	}
	now := time.Now().UTC()
	return models.Staff{
		ID:           s.StaffSeedID,
		PasswordHash: hash,
		Name:         s.StaffSeedName,
		Role:         s.StaffSeedRole,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// SeedStaff inserts or refreshes the configured staff member.
func SeedStaff(ctx context.Context, repo repositories.StaffRepository, verifier auth.CredentialVerifier, s config.Settings) error {
	member, err := StaffFromConfig(s, verifier)
	if err != nil {
		return err
	}
	if err := repo.Upsert(ctx, member); err != nil {
		return fmt.Errorf("seeders: staff: %w", err)
	}
	logger.Info("seeders: staff member seeded", "staff_id", member.ID)
	return nil
}

// EnsureStaff seeds the configured staff member only when it does not exist
// yet, so a password changed in the database is left alone.
func EnsureStaff(ctx context.Context, repo repositories.StaffRepository, verifier auth.CredentialVerifier, s config.Settings) error {
	_, err := repo.FindByID(ctx, s.StaffSeedID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrStaffNotFound):
		return SeedStaff(ctx, repo, verifier, s)
	default:
		return fmt.Errorf("seeders: look up staff: %w", err)
	}
}
