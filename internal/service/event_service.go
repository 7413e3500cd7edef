package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"rollcall/internal/database"
	"rollcall/internal/models"
	"rollcall/internal/recurrence"
	"rollcall/internal/repository"
)

// EventService handles upcoming events, attendance and advancing each
// activity to its next occurrence
type EventService struct {
	db       *database.DB
	store    *repository.Store
	location *time.Location
	now      func() time.Time
}

// NewEventService creates a new event service. Rules are evaluated in
// location, the zone activity times are given in.
func NewEventService(db *database.DB, location *time.Location) *EventService {
	if location == nil {
		location = time.UTC
	}
	return &EventService{
		db:       db,
		store:    repository.NewStore(db),
		location: location,
		now:      time.Now,
	}
}

// UpcomingEvent returns the group's next event, or its most recent one when
// nothing is scheduled, with the activity and responders populated
func (s *EventService) UpcomingEvent(ctx context.Context, groupID string) (*models.EventDetails, error) {
	event, err := s.store.Events.UpcomingForGroup(ctx, groupID, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to get upcoming event: %w", err)
	}
	if event == nil {
		return nil, ErrEventNotFound
	}

	activity, err := s.store.Activities.GetByID(ctx, event.ActivityID)
	if err != nil {
		return nil, err
	}
	attendees, err := s.store.Users.Summaries(ctx, event.Attendees)
	if err != nil {
		return nil, err
	}
	absentees, err := s.store.Users.Summaries(ctx, event.Absentees)
	if err != nil {
		return nil, err
	}

	return &models.EventDetails{
		ID:        event.ID,
		Activity:  activity,
		GroupID:   event.GroupID,
		Date:      event.Date,
		Attendees: attendees,
		Absentees: absentees,
		CreatedAt: event.CreatedAt,
		UpdatedAt: event.UpdatedAt,
	}, nil
}

// UpdateAttendance records the requester's answer for an event. The event
// row is locked for the transaction so concurrent answers serialize.
func (s *EventService) UpdateAttendance(ctx context.Context, userID, eventID string, status models.AttendanceStatus) (*models.Event, error) {
	if _, err := models.ParseAttendanceStatus(string(status)); err != nil {
		return nil, invalidInput("status must be one of in, out, undecided")
	}

	var updated *models.Event
	err := database.RunInTx(ctx, s.db, func(tx *database.Tx) error {
		store := repository.NewStore(tx)

		event, err := store.Events.GetForUpdate(ctx, eventID)
		if err != nil {
			return err
		}
		if event == nil {
			return ErrEventNotFound
		}

		user, err := store.Users.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		if user == nil {
			return ErrUserNotFound
		}

		member, err := store.Groups.IsMember(ctx, event.GroupID, user.ID)
		if err != nil {
			return err
		}
		if !member {
			return ErrNotGroupMember
		}

		activity, err := store.Activities.GetByID(ctx, event.ActivityID)
		if err != nil {
			return err
		}

		event.SetStatus(user.ID, status)
		if err := store.Events.SaveResponse(ctx, event, activity, user.ID); err != nil {
			return err
		}
		updated = event
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// AdvanceEvents creates the next event for every activity with nothing
// scheduled at or after now. Missed occurrences are not backfilled.
// Activities whose rule has run out are skipped.
func (s *EventService) AdvanceEvents(ctx context.Context, now time.Time) (int, error) {
	due, err := s.store.Activities.ListDue(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to list due activities: %w", err)
	}

	created := 0
	for i := range due {
		activity := &due[i]
		// Anchors come back from the store in UTC; BYDAY and the hour are local.
		schedule := recurrence.Schedule{Rule: activity.RecurrenceRule, Anchor: activity.Anchor.In(s.location)}
		next, err := schedule.Next(now)
		if errors.Is(err, recurrence.ErrNoOccurrence) {
			slog.Debug("Activity has no further occurrences", "activity", activity.ID)
			continue
		}
		if err != nil {
			slog.Warn("Skipping activity with unusable rule", "activity", activity.ID, "error", err)
			continue
		}

		ok, err := s.advance(ctx, activity, now, next)
		if err != nil {
			return created, fmt.Errorf("failed to advance activity %s: %w", activity.ID, err)
		}
		if ok {
			created++
			slog.Info("Scheduled next event", "activity", activity.ID, "date", next)
		}
	}
	return created, nil
}

// advance inserts the event unless another run already scheduled one
func (s *EventService) advance(ctx context.Context, activity *models.Activity, now, next time.Time) (bool, error) {
	created := false
	err := database.RunInTx(ctx, s.db, func(tx *database.Tx) error {
		store := repository.NewStore(tx)

		latest, err := store.Events.LatestForActivity(ctx, activity.ID)
		if err != nil {
			return err
		}
		if latest != nil && !latest.Date.Before(now) {
			return nil
		}

		event := &models.Event{ActivityID: activity.ID, GroupID: activity.GroupID, Date: next}
		if err := store.Events.Create(ctx, event, activity); err != nil {
			return err
		}
		created = true
		return nil
	})
	return created, err
}
