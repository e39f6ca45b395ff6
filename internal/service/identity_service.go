// Package service implements the business logic layer.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"parley/internal/models"
	"parley/internal/policy"
	"parley/internal/repository"
	"parley/internal/validation"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// IdentityService resolves external identities to local accounts and owns
// local credential handling.
type IdentityService struct {
	userRepo repository.UserRepository
	policy   *policy.Checker
}

// ProvisionInput carries the identity attributes asserted by the caller's
// auth provider.
type ProvisionInput struct {
	ExternalID string
	Email      string
	Name       string
	AvatarURL  string
}

// NewIdentityService returns a new IdentityService.
func NewIdentityService(userRepo repository.UserRepository, checker *policy.Checker) *IdentityService {
	return &IdentityService{userRepo: userRepo, policy: checker}
}

// Provision returns the account for the external identity, creating it on
// first sight. Calling it again with the same external ID returns the
// existing account untouched, so it is safe to run on every login.
func (s *IdentityService) Provision(ctx context.Context, in ProvisionInput) (*models.User, error) {
	if strings.TrimSpace(in.ExternalID) == "" {
		return nil, models.NewValidationError("external ID is required")
	}
	if err := validation.ValidateEmail(in.Email); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	existing, err := s.userRepo.GetByExternalID(ctx, in.ExternalID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	username, err := s.availableUsername(ctx, in.Name, in.Email)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		ExternalID:      in.ExternalID,
		Email:           strings.ToLower(strings.TrimSpace(in.Email)),
		Username:        username,
		Name:            strings.TrimSpace(in.Name),
		AvatarURL:       in.AvatarURL,
		ShowSpeedDialog: true,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		// A concurrent provision for the same identity may have won the race.
		if winner, getErr := s.userRepo.GetByExternalID(ctx, in.ExternalID); getErr == nil && winner != nil {
			return winner, nil
		}
		return nil, err
	}
	return user, nil
}

// availableUsername sanitizes a base from the display name (or the email
// local part) and appends -1, -2, ... until the name is free. When neither
// yields anything the base is a timestamped placeholder.
func (s *IdentityService) availableUsername(ctx context.Context, name, email string) (string, error) {
	base := validation.SanitizeUsername(name)
	if base == "user" {
		if at := strings.IndexByte(email, '@'); at > 0 {
			base = validation.SanitizeUsername(email[:at])
		}
	}
	if base == "user" {
		base = fmt.Sprintf("user-%d", time.Now().UnixMilli())
	}

	candidate := base
	for suffix := 1; ; suffix++ {
		taken, err := s.userRepo.GetByUsername(ctx, candidate)
		if err != nil {
			return "", err
		}
		if taken == nil {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, suffix)
	}
}

// SignUp creates a local-credential account through the same provisioning
// pipeline used for external identities.
func (s *IdentityService) SignUp(ctx context.Context, email, password, name string) (*models.User, error) {
	if err := validation.ValidateEmail(email); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePassword(password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	existing, err := s.userRepo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewConflictError("email already registered")
	}

	user, err := s.Provision(ctx, ProvisionInput{
		ExternalID: "local:" + uuid.NewString(),
		Email:      email,
		Name:       name,
	})
	if err != nil {
		return nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	user.Password = string(hashed)
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Authenticate verifies local credentials and returns the account.
func (s *IdentityService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, err
	}
	if user == nil || user.Password == "" {
		return nil, models.NewUnauthorizedError("invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, models.NewUnauthorizedError("invalid credentials")
	}
	if user.IsBanned {
		return nil, models.NewBannedError()
	}
	return user, nil
}

// GetUser returns the account by internal ID.
func (s *IdentityService) GetUser(ctx context.Context, id uint) (*models.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

// ListUsers returns accounts for admin views.
func (s *IdentityService) ListUsers(ctx context.Context, limit, offset int) ([]models.User, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.userRepo.List(ctx, limit, offset)
}

// IsPlatformAdmin reports whether the account's email is on the platform
// admin allowlist.
func (s *IdentityService) IsPlatformAdmin(ctx context.Context, userID uint) (bool, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return false, err
	}
	return s.policy.IsPlatformAdmin(user.Email), nil
}

// IsBanned reports whether the account is globally banned.
func (s *IdentityService) IsBanned(ctx context.Context, userID uint) (bool, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return false, err
	}
	return user.IsBanned, nil
}

// GetUserByExternalID returns the account provisioned for the external
// subject, or nil when none exists yet.
func (s *IdentityService) GetUserByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	return s.userRepo.GetByExternalID(ctx, externalID)
}

// IsBannedByExternalID reports whether the account for the external subject
// is banned. Unknown subjects are not banned.
func (s *IdentityService) IsBannedByExternalID(ctx context.Context, externalID string) (bool, error) {
	user, err := s.userRepo.GetByExternalID(ctx, externalID)
	if err != nil || user == nil {
		return false, err
	}
	return user.IsBanned, nil
}

// UpdateConnectionSpeed stores the client's measured connection speed and
// whether the speed dialog should be shown again.
func (s *IdentityService) UpdateConnectionSpeed(ctx context.Context, userID uint, speed float64, showDialog bool) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.ConnectionSpeed = &speed
	user.ShowSpeedDialog = showDialog
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}
