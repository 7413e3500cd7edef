package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"rollcall/internal/models"
	"rollcall/internal/repository"
	"rollcall/internal/validation"
)

const maxBioLength = 500

// WelcomeMailer sends the sign-up greeting
type WelcomeMailer interface {
	SendWelcomeEmail(ctx context.Context, toEmail, toName string) error
}

// SyncUserInput is the part of an identity provider sign-up we keep
type SyncUserInput struct {
	ExternalID     string
	Username       string
	FirstName      string
	LastName       string
	Phone          string
	Email          string
	ProfilePicture string
}

// UserService handles user profiles and identity provider sync
type UserService struct {
	store  *repository.Store
	mailer WelcomeMailer
}

// NewUserService creates a new user service. mailer may be nil.
func NewUserService(store *repository.Store, mailer WelcomeMailer) *UserService {
	return &UserService{store: store, mailer: mailer}
}

// GetUser retrieves a user with its group memberships
func (s *UserService) GetUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.store.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// GetUserGroups lists the groups a user belongs to
func (s *UserService) GetUserGroups(ctx context.Context, userID string) ([]models.GroupSummary, error) {
	groups, err := s.store.Groups.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user groups: %w", err)
	}

	summaries := make([]models.GroupSummary, 0, len(groups))
	for _, g := range groups {
		summaries = append(summaries, models.GroupSummary{ID: g.ID, Name: g.Name, CoverImage: g.CoverImage})
	}
	return summaries, nil
}

// UpdateProfile applies the non-empty fields of patch
func (s *UserService) UpdateProfile(ctx context.Context, userID string, patch models.ProfilePatch) (*models.User, error) {
	patch.FirstName = nonEmpty(patch.FirstName)
	patch.LastName = nonEmpty(patch.LastName)
	patch.Bio = nonEmpty(patch.Bio)
	if patch.IsEmpty() {
		return nil, ErrNoUpdateFields
	}

	if patch.FirstName != nil {
		if err := validation.ValidateName("firstName", *patch.FirstName); err != nil {
			return nil, err
		}
	}
	if patch.LastName != nil {
		if err := validation.ValidateName("lastName", *patch.LastName); err != nil {
			return nil, err
		}
	}
	if patch.Bio != nil && utf8.RuneCountInString(*patch.Bio) > maxBioLength {
		return nil, validation.Error{Field: "bio", Message: fmt.Sprintf("bio must be %d characters or less", maxBioLength)}
	}

	if _, err := s.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	if err := s.store.Users.UpdateProfile(ctx, userID, patch); err != nil {
		return nil, err
	}
	return s.GetUser(ctx, userID)
}

func nonEmpty(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}

// GetPublicProfile returns what anyone may see about a user
func (s *UserService) GetPublicProfile(ctx context.Context, userID string) (*models.PublicProfile, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &models.PublicProfile{
		FirstName:      user.FirstName,
		LastName:       user.LastName,
		ProfilePicture: user.ProfilePicture,
		Bio:            user.Bio,
	}, nil
}

// SyncUser creates the internal user for a new identity provider account.
// It reports false with the stored user when the account is already known.
func (s *UserService) SyncUser(ctx context.Context, in SyncUserInput) (*models.User, bool, error) {
	if in.ExternalID == "" {
		return nil, false, invalidInput("webhook data is missing user ID")
	}
	if strings.TrimSpace(in.Phone) == "" {
		return nil, false, invalidInput("phone number is required for user creation")
	}

	existing, err := s.store.Users.GetByExternalID(ctx, in.ExternalID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	phone, err := validation.NormalizePhone(in.Phone)
	if err != nil {
		return nil, false, err
	}
	taken, err := s.store.Users.GetByPhone(ctx, phone)
	if err != nil {
		return nil, false, err
	}
	if taken != nil {
		return nil, false, validation.Error{Field: "phone", Message: "phone number is already registered"}
	}
	email := strings.TrimSpace(in.Email)
	if email != "" {
		taken, err := s.store.Users.GetByEmail(ctx, email)
		if err != nil {
			return nil, false, err
		}
		if taken != nil {
			return nil, false, validation.Error{Field: "email", Message: "email is already registered"}
		}
	}

	user := &models.User{
		ExternalID:     in.ExternalID,
		Username:       in.Username,
		FirstName:      strings.TrimSpace(in.FirstName),
		LastName:       strings.TrimSpace(in.LastName),
		Phone:          phone,
		Email:          email,
		ProfilePicture: in.ProfilePicture,
		GroupIDs:       []string{},
	}
	stored, created, err := s.createOrExisting(ctx, user)
	if err != nil || !created {
		return stored, false, err
	}
	slog.Info("User synced", "user", user.ID, "external_id", user.ExternalID)

	if user.Email != "" && s.mailer != nil {
		name := strings.TrimSpace(user.FirstName + " " + user.LastName)
		if err := s.mailer.SendWelcomeEmail(ctx, user.Email, name); err != nil {
			slog.Error("Failed to send welcome email", "user", user.ID, "error", err)
		}
	}
	return user, true, nil
}

// createOrExisting inserts user. When the insert fails because a concurrent
// delivery already stored the same external id, that user is returned instead.
func (s *UserService) createOrExisting(ctx context.Context, user *models.User) (*models.User, bool, error) {
	err := s.store.Users.Create(ctx, user)
	if err == nil {
		return user, true, nil
	}
	existing, lookupErr := s.store.Users.GetByExternalID(ctx, user.ExternalID)
	if lookupErr == nil && existing != nil {
		slog.Debug("User already synced by a concurrent delivery", "external_id", user.ExternalID)
		return existing, false, nil
	}
	return nil, false, err
}
