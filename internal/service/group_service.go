package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"rollcall/internal/database"
	"rollcall/internal/models"
	"rollcall/internal/recurrence"
	"rollcall/internal/repository"
	"rollcall/internal/validation"
)

// CreateGroupRequest is everything needed to start a group with its activity
type CreateGroupRequest struct {
	GroupName      string `json:"groupName"`
	Description    string `json:"description"`
	ActivityName   string `json:"activityName"`
	RecurrenceRule string `json:"recurrenceRule"`
	Location       string `json:"location"`
	Time           string `json:"time"`
}

// GroupService runs the group lifecycle workflows
type GroupService struct {
	db       *database.DB
	store    *repository.Store
	location *time.Location
	now      func() time.Time
}

// NewGroupService creates a new group service. Activity times are
// interpreted in location.
func NewGroupService(db *database.DB, location *time.Location) *GroupService {
	if location == nil {
		location = time.UTC
	}
	return &GroupService{
		db:       db,
		store:    repository.NewStore(db),
		location: location,
		now:      time.Now,
	}
}

// CreateGroupWithActivity creates the group, its activity and the first
// event in one transaction. The requester becomes the sole admin.
func (s *GroupService) CreateGroupWithActivity(ctx context.Context, userID string, req CreateGroupRequest) (*models.GroupDetails, error) {
	switch {
	case strings.TrimSpace(req.GroupName) == "":
		return nil, invalidInput("groupName is required")
	case strings.TrimSpace(req.ActivityName) == "":
		return nil, invalidInput("activityName is required")
	case strings.TrimSpace(req.RecurrenceRule) == "":
		return nil, invalidInput("recurrenceRule is required")
	case strings.TrimSpace(req.Time) == "":
		return nil, invalidInput("time is required")
	}
	if err := recurrence.Validate(req.RecurrenceRule); err != nil {
		return nil, invalidInput("recurrenceRule: %v", err)
	}

	now := s.now()
	anchor, err := recurrence.AnchorFor(now, req.Time, s.location)
	if err != nil {
		return nil, validation.Error{Field: "time", Message: "time must be HH:MM on a 24 hour clock"}
	}

	var groupID string
	err = database.RunInTx(ctx, s.db, func(tx *database.Tx) error {
		store := repository.NewStore(tx)

		user, err := store.Users.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		if user == nil {
			return ErrUserNotFound
		}

		group := &models.Group{
			Name:        req.GroupName,
			Description: strings.TrimSpace(req.Description),
			AdminIDs:    []string{user.ID},
			MemberIDs:   []string{user.ID},
		}
		if err := store.Groups.Create(ctx, group); err != nil {
			return err
		}

		activity := &models.Activity{
			GroupID:        group.ID,
			Name:           req.ActivityName,
			RecurrenceRule: strings.TrimSpace(req.RecurrenceRule),
			Location:       strings.TrimSpace(req.Location),
			Time:           strings.TrimSpace(req.Time),
			Anchor:         anchor,
		}
		if err := store.Activities.Create(ctx, activity); err != nil {
			return err
		}

		first, err := nextOccurrence(activity, now)
		if err != nil {
			return err
		}
		event := &models.Event{ActivityID: activity.ID, GroupID: group.ID, Date: first}
		if err := store.Events.Create(ctx, event, activity); err != nil {
			return err
		}

		if err := store.Groups.SetActivity(ctx, group.ID, activity.ID); err != nil {
			return err
		}
		groupID = group.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Group created", "group", groupID, "admin", userID)
	return s.GetGroup(ctx, groupID)
}

// nextOccurrence reports an elapsed rule as a validation failure so the
// enclosing transaction aborts.
func nextOccurrence(activity *models.Activity, after time.Time) (time.Time, error) {
	next, err := recurrence.Schedule{Rule: activity.RecurrenceRule, Anchor: activity.Anchor}.Next(after)
	if errors.Is(err, recurrence.ErrNoOccurrence) {
		return time.Time{}, validation.Error{Field: "recurrenceRule", Message: "recurrence rule has no occurrence after now"}
	}
	if err != nil {
		return time.Time{}, validation.Error{Field: "recurrenceRule", Message: err.Error()}
	}
	return next, nil
}

// GetGroup returns a group with its admins, members and activity populated
func (s *GroupService) GetGroup(ctx context.Context, groupID string) (*models.GroupDetails, error) {
	group, err := s.store.Groups.GetByID(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	if group == nil {
		return nil, ErrGroupNotFound
	}
	return populateGroup(ctx, s.store, group)
}

func populateGroup(ctx context.Context, store *repository.Store, group *models.Group) (*models.GroupDetails, error) {
	admins, err := store.Users.Summaries(ctx, group.AdminIDs)
	if err != nil {
		return nil, err
	}
	members, err := store.Users.Summaries(ctx, group.MemberIDs)
	if err != nil {
		return nil, err
	}

	var activity *models.Activity
	if group.ActivityID != "" {
		activity, err = store.Activities.GetByID(ctx, group.ActivityID)
		if err != nil {
			return nil, err
		}
	}

	return &models.GroupDetails{
		ID:          group.ID,
		Name:        group.Name,
		Description: group.Description,
		CoverImage:  group.CoverImage,
		Admins:      admins,
		Members:     members,
		Guests:      group.Guests,
		Activity:    activity,
		CreatedAt:   group.CreatedAt,
		UpdatedAt:   group.UpdatedAt,
	}, nil
}

// LeaveGroup removes the requester from the group. When the last admin
// leaves, the earliest remaining member is promoted; when nobody is left
// the group is deleted.
func (s *GroupService) LeaveGroup(ctx context.Context, userID, groupID string) error {
	return database.RunInTx(ctx, s.db, func(tx *database.Tx) error {
		store := repository.NewStore(tx)

		group, err := store.Groups.GetForUpdate(ctx, groupID)
		if err != nil {
			return err
		}
		if group == nil {
			return ErrGroupNotFound
		}
		if !group.IsMember(userID) {
			return ErrNotGroupMember
		}

		group.MemberIDs = without(group.MemberIDs, userID)
		group.AdminIDs = without(group.AdminIDs, userID)

		if len(group.MemberIDs) == 0 {
			slog.Info("Last member left, deleting group", "group", groupID)
			return deleteGroup(ctx, store, groupID)
		}
		if len(group.AdminIDs) == 0 {
			group.AdminIDs = []string{group.MemberIDs[0]}
			slog.Info("Promoted member to admin", "group", groupID, "user", group.MemberIDs[0])
		}
		return store.Groups.Update(ctx, group)
	})
}

// AddMember adds a registered user matched by phone, or a non-registered
// member when no account uses that phone. It reports which kind was added.
func (s *GroupService) AddMember(ctx context.Context, groupID, phone, name string) (registered bool, err error) {
	if strings.TrimSpace(phone) == "" {
		return false, invalidInput("phone is required")
	}
	normalized, err := validation.NormalizePhone(phone)
	if err != nil {
		return false, err
	}

	err = database.RunInTx(ctx, s.db, func(tx *database.Tx) error {
		store := repository.NewStore(tx)

		group, err := store.Groups.GetForUpdate(ctx, groupID)
		if err != nil {
			return err
		}
		if group == nil {
			return ErrGroupNotFound
		}

		user, err := store.Users.GetByPhone(ctx, normalized)
		if err != nil {
			return err
		}
		if user != nil {
			registered = true
			if group.IsMember(user.ID) {
				return nil
			}
			group.MemberIDs = append(group.MemberIDs, user.ID)
			return store.Groups.Update(ctx, group)
		}

		if strings.TrimSpace(name) == "" {
			return invalidInput("name is required for non-registered members")
		}
		if slices.ContainsFunc(group.Guests, func(g models.Guest) bool { return g.Phone == normalized }) {
			return nil
		}
		group.Guests = append(group.Guests, models.Guest{Name: name, Phone: normalized})
		return store.Groups.Update(ctx, group)
	})
	return registered, err
}

// RemoveMember removes a registered member by user id or phone, or a
// non-registered member by phone. The last admin cannot be removed.
func (s *GroupService) RemoveMember(ctx context.Context, groupID, userID, phone string) (registered bool, err error) {
	if userID == "" && strings.TrimSpace(phone) == "" {
		return false, invalidInput("either userId or phone is required to remove a member")
	}

	var normalized string
	if userID == "" {
		normalized, err = validation.NormalizePhone(phone)
		if err != nil {
			return false, err
		}
	}

	err = database.RunInTx(ctx, s.db, func(tx *database.Tx) error {
		store := repository.NewStore(tx)

		group, err := store.Groups.GetForUpdate(ctx, groupID)
		if err != nil {
			return err
		}
		if group == nil {
			return ErrGroupNotFound
		}

		target := userID
		if target == "" {
			user, err := store.Users.GetByPhone(ctx, normalized)
			if err != nil {
				return err
			}
			if user != nil && group.IsMember(user.ID) {
				target = user.ID
			}
		}

		if target != "" {
			if !group.IsMember(target) {
				return ErrMemberNotFound
			}
			if group.IsAdmin(target) && len(group.AdminIDs) == 1 {
				return validation.Error{Field: "admins", Message: "cannot remove the last admin of a group"}
			}
			registered = true
			group.MemberIDs = without(group.MemberIDs, target)
			group.AdminIDs = without(group.AdminIDs, target)
			return store.Groups.Update(ctx, group)
		}

		before := len(group.Guests)
		group.Guests = slices.DeleteFunc(group.Guests, func(g models.Guest) bool { return g.Phone == normalized })
		if len(group.Guests) == before {
			return ErrMemberNotFound
		}
		return store.Groups.Update(ctx, group)
	})
	return registered, err
}

// DeleteGroup dissolves a group together with its activity, events and
// memberships.
func (s *GroupService) DeleteGroup(ctx context.Context, groupID string) error {
	err := database.RunInTx(ctx, s.db, func(tx *database.Tx) error {
		store := repository.NewStore(tx)

		group, err := store.Groups.GetForUpdate(ctx, groupID)
		if err != nil {
			return err
		}
		if group == nil {
			return ErrGroupNotFound
		}
		return deleteGroup(ctx, store, groupID)
	})
	if err != nil {
		return err
	}
	slog.Info("Group deleted", "group", groupID)
	return nil
}

func deleteGroup(ctx context.Context, store *repository.Store, groupID string) error {
	if err := store.Groups.SetActivity(ctx, groupID, ""); err != nil {
		return err
	}
	if err := store.Events.DeleteByGroup(ctx, groupID); err != nil {
		return err
	}
	activity, err := store.Activities.GetByGroup(ctx, groupID)
	if err != nil {
		return err
	}
	if activity != nil {
		if err := store.Activities.Delete(ctx, activity.ID); err != nil {
			return err
		}
	}
	return store.Groups.Delete(ctx, groupID)
}

func without(ids []string, id string) []string {
	return slices.DeleteFunc(slices.Clone(ids), func(x string) bool { return x == id })
}
