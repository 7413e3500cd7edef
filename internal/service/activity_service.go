package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"rollcall/internal/database"
	"rollcall/internal/models"
	"rollcall/internal/recurrence"
	"rollcall/internal/repository"
	"rollcall/internal/validation"
)

// ActivityService handles reading, editing and removing activities
type ActivityService struct {
	db       *database.DB
	store    *repository.Store
	location *time.Location
	now      func() time.Time
}

// NewActivityService creates a new activity service
func NewActivityService(db *database.DB, location *time.Location) *ActivityService {
	if location == nil {
		location = time.UTC
	}
	return &ActivityService{
		db:       db,
		store:    repository.NewStore(db),
		location: location,
		now:      time.Now,
	}
}

// GetActivity retrieves an activity by ID
func (s *ActivityService) GetActivity(ctx context.Context, activityID string) (*models.Activity, error) {
	activity, err := s.store.Activities.GetByID(ctx, activityID)
	if err != nil {
		return nil, fmt.Errorf("failed to get activity: %w", err)
	}
	if activity == nil {
		return nil, ErrActivityNotFound
	}
	return activity, nil
}

// UpdateActivity applies a partial update. A new rule or time re-anchors the
// series and replaces the future events with the next occurrence of the new
// schedule.
func (s *ActivityService) UpdateActivity(ctx context.Context, activityID string, patch models.ActivityPatch) (*models.Activity, error) {
	if patch.IsEmpty() {
		return nil, ErrNoUpdateFields
	}
	if patch.RecurrenceRule != nil {
		if err := recurrence.Validate(*patch.RecurrenceRule); err != nil {
			return nil, validation.Error{Field: "recurrenceRule", Message: err.Error()}
		}
	}

	var updated *models.Activity
	err := database.RunInTx(ctx, s.db, func(tx *database.Tx) error {
		store := repository.NewStore(tx)

		activity, err := store.Activities.GetByID(ctx, activityID)
		if err != nil {
			return err
		}
		if activity == nil {
			return ErrActivityNotFound
		}

		patch.Apply(activity)
		if !patch.ChangesSchedule() {
			if err := store.Activities.Update(ctx, activity); err != nil {
				return err
			}
			updated = activity
			return nil
		}

		now := s.now()
		activity.Anchor, err = recurrence.AnchorFor(now, activity.Time, s.location)
		if err != nil {
			return validation.Error{Field: "time", Message: "time must be HH:MM on a 24 hour clock"}
		}
		if err := store.Activities.Update(ctx, activity); err != nil {
			return err
		}

		next, err := nextOccurrence(activity, now)
		if err != nil {
			return err
		}
		if err := store.Events.DeleteUpcoming(ctx, activity.ID, now); err != nil {
			return err
		}
		event := &models.Event{ActivityID: activity.ID, GroupID: activity.GroupID, Date: next}
		if err := store.Events.Create(ctx, event, activity); err != nil {
			return err
		}

		slog.Info("Activity rescheduled", "activity", activity.ID, "next", next)
		updated = activity
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteActivity unlinks the activity from its group and deletes it with its events
func (s *ActivityService) DeleteActivity(ctx context.Context, activityID string) error {
	return database.RunInTx(ctx, s.db, func(tx *database.Tx) error {
		store := repository.NewStore(tx)

		activity, err := store.Activities.GetByID(ctx, activityID)
		if err != nil {
			return err
		}
		if activity == nil {
			return ErrActivityNotFound
		}

		if err := store.Groups.SetActivity(ctx, activity.GroupID, ""); err != nil {
			return err
		}
		if err := store.Events.DeleteByActivity(ctx, activity.ID); err != nil {
			return err
		}
		return store.Activities.Delete(ctx, activity.ID)
	})
}
