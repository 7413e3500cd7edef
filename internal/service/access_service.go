package service

import (
	"context"
	"fmt"

	"rollcall/internal/models"
	"rollcall/internal/repository"
)

// AccessService resolves identities and answers the membership and admin
// predicates. Every check reads the database; nothing is cached.
type AccessService struct {
	store *repository.Store
}

// NewAccessService creates a new access service
func NewAccessService(store *repository.Store) *AccessService {
	return &AccessService{store: store}
}

// ResolveUser maps an identity provider id to the internal user
func (s *AccessService) ResolveUser(ctx context.Context, externalID string) (*models.User, error) {
	user, err := s.store.Users.GetByExternalID(ctx, externalID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// RequireGroupMember fails unless userID belongs to the group
func (s *AccessService) RequireGroupMember(ctx context.Context, userID, groupID string) error {
	if err := s.groupExists(ctx, groupID); err != nil {
		return err
	}
	ok, err := s.store.Groups.IsMember(ctx, groupID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotGroupMember
	}
	return nil
}

// RequireGroupAdmin fails unless userID administers the group
func (s *AccessService) RequireGroupAdmin(ctx context.Context, userID, groupID string) error {
	if err := s.groupExists(ctx, groupID); err != nil {
		return err
	}
	ok, err := s.store.Groups.IsAdmin(ctx, groupID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotGroupAdmin
	}
	return nil
}

// RequireActivityMember fails unless userID belongs to the activity's group
func (s *AccessService) RequireActivityMember(ctx context.Context, userID, activityID string) error {
	groupID, err := s.activityGroup(ctx, activityID)
	if err != nil {
		return err
	}
	return s.RequireGroupMember(ctx, userID, groupID)
}

// RequireActivityAdmin fails unless userID administers the activity's group
func (s *AccessService) RequireActivityAdmin(ctx context.Context, userID, activityID string) error {
	groupID, err := s.activityGroup(ctx, activityID)
	if err != nil {
		return err
	}
	return s.RequireGroupAdmin(ctx, userID, groupID)
}

func (s *AccessService) groupExists(ctx context.Context, groupID string) error {
	group, err := s.store.Groups.GetByID(ctx, groupID)
	if err != nil {
		return err
	}
	if group == nil {
		return ErrGroupNotFound
	}
	return nil
}

func (s *AccessService) activityGroup(ctx context.Context, activityID string) (string, error) {
	activity, err := s.store.Activities.GetByID(ctx, activityID)
	if err != nil {
		return "", err
	}
	if activity == nil {
		return "", ErrActivityNotFound
	}
	return activity.GroupID, nil
}
