package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"rollcall/internal/database"
	"rollcall/internal/models"
	"rollcall/internal/validation"
)

const eventColumns = "id, activity_id, group_id, starts_at, created_at, updated_at"

// EventRepository handles database operations for events and attendance
type EventRepository struct {
	db database.DBTX
}

// NewEventRepository creates a new event repository
func NewEventRepository(db database.DBTX) *EventRepository {
	return &EventRepository{db: db}
}

func scanEvent(row rowScanner) (*models.Event, error) {
	event := &models.Event{}
	var startsAt, createdAt, updatedAt int64
	if err := row.Scan(
		&event.ID,
		&event.ActivityID,
		&event.GroupID,
		&startsAt,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}
	event.Date = fromUnix(startsAt)
	event.CreatedAt = fromUnix(createdAt)
	event.UpdatedAt = fromUnix(updatedAt)
	return event, nil
}

// Create inserts an event and any responses it already carries
func (r *EventRepository) Create(ctx context.Context, event *models.Event, activity *models.Activity) error {
	if err := validation.Event(event, activity); err != nil {
		return err
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	ts := now()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = ts
	}
	event.UpdatedAt = ts

	query := "INSERT INTO events (" + eventColumns + ") VALUES (?, ?, ?, ?, ?, ?)"
	_, err := r.db.ExecContext(ctx, query,
		event.ID,
		event.ActivityID,
		event.GroupID,
		toUnix(event.Date),
		toUnix(event.CreatedAt),
		toUnix(event.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}

	for _, userID := range event.Attendees {
		if err := r.insertResponse(ctx, event.ID, userID, models.StatusIn, ts); err != nil {
			return err
		}
	}
	for _, userID := range event.Absentees {
		if err := r.insertResponse(ctx, event.ID, userID, models.StatusOut, ts); err != nil {
			return err
		}
	}
	if event.Attendees == nil {
		event.Attendees = []string{}
	}
	if event.Absentees == nil {
		event.Absentees = []string{}
	}
	return nil
}

func (r *EventRepository) insertResponse(ctx context.Context, eventID, userID string, status models.AttendanceStatus, at time.Time) error {
	query := "INSERT INTO event_responses (event_id, user_id, status, responded_at) VALUES (?, ?, ?, ?)"
	if _, err := r.db.ExecContext(ctx, query, eventID, userID, string(status), toUnix(at)); err != nil {
		return fmt.Errorf("failed to record response: %w", err)
	}
	return nil
}

// SaveResponse persists userID's answer as held in event. The whole event
// is checked first, so a write never leaves a user in both sets.
func (r *EventRepository) SaveResponse(ctx context.Context, event *models.Event, activity *models.Activity, userID string) error {
	if err := validation.Event(event, activity); err != nil {
		return err
	}

	if _, err := r.db.ExecContext(ctx, "DELETE FROM event_responses WHERE event_id = ? AND user_id = ?", event.ID, userID); err != nil {
		return fmt.Errorf("failed to clear response: %w", err)
	}

	ts := now()
	if status := event.StatusOf(userID); status != models.StatusUndecided {
		if err := r.insertResponse(ctx, event.ID, userID, status, ts); err != nil {
			return err
		}
	}

	event.UpdatedAt = ts
	if _, err := r.db.ExecContext(ctx, "UPDATE events SET updated_at = ? WHERE id = ?", toUnix(ts), event.ID); err != nil {
		return fmt.Errorf("failed to touch event: %w", err)
	}
	return nil
}

// GetByID retrieves an event with its responses
func (r *EventRepository) GetByID(ctx context.Context, id string) (*models.Event, error) {
	return r.getOne(ctx, "SELECT "+eventColumns+" FROM events WHERE id = ?", id)
}

// GetForUpdate retrieves an event, locking its row for the rest of the transaction
func (r *EventRepository) GetForUpdate(ctx context.Context, id string) (*models.Event, error) {
	return r.getOne(ctx, "SELECT "+eventColumns+" FROM events WHERE id = ?"+r.db.GetDialect().ForUpdate(), id)
}

// LatestForActivity retrieves the most recent event of an activity
func (r *EventRepository) LatestForActivity(ctx context.Context, activityID string) (*models.Event, error) {
	query := "SELECT " + eventColumns + " FROM events WHERE activity_id = ? ORDER BY starts_at DESC LIMIT 1"
	return r.getOne(ctx, query, activityID)
}

// UpcomingForGroup retrieves the earliest event of a group starting at or
// after the given instant, falling back to the most recent past event.
func (r *EventRepository) UpcomingForGroup(ctx context.Context, groupID string, at time.Time) (*models.Event, error) {
	query := "SELECT " + eventColumns + " FROM events WHERE group_id = ? AND starts_at >= ? ORDER BY starts_at ASC LIMIT 1"
	event, err := r.getOne(ctx, query, groupID, toUnix(at))
	if err != nil || event != nil {
		return event, err
	}

	query = "SELECT " + eventColumns + " FROM events WHERE group_id = ? ORDER BY starts_at DESC LIMIT 1"
	return r.getOne(ctx, query, groupID)
}

func (r *EventRepository) getOne(ctx context.Context, query string, args ...any) (*models.Event, error) {
	event, err := scanEvent(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	if err := r.loadResponses(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

func (r *EventRepository) loadResponses(ctx context.Context, event *models.Event) error {
	query := "SELECT user_id, status FROM event_responses WHERE event_id = ? ORDER BY responded_at ASC, user_id ASC"
	rows, err := r.db.QueryContext(ctx, query, event.ID)
	if err != nil {
		return fmt.Errorf("failed to query responses: %w", err)
	}
	defer rows.Close()

	event.Attendees = []string{}
	event.Absentees = []string{}
	for rows.Next() {
		var userID, status string
		if err := rows.Scan(&userID, &status); err != nil {
			return fmt.Errorf("failed to scan response: %w", err)
		}
		switch models.AttendanceStatus(status) {
		case models.StatusIn:
			event.Attendees = append(event.Attendees, userID)
		case models.StatusOut:
			event.Absentees = append(event.Absentees, userID)
		}
	}
	return rows.Err()
}

// DeleteByActivity removes every event of an activity
func (r *EventRepository) DeleteByActivity(ctx context.Context, activityID string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM events WHERE activity_id = ?", activityID); err != nil {
		return fmt.Errorf("failed to delete events: %w", err)
	}
	return nil
}

// DeleteUpcoming removes the events of an activity starting at or after the given instant
func (r *EventRepository) DeleteUpcoming(ctx context.Context, activityID string, at time.Time) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM events WHERE activity_id = ? AND starts_at >= ?", activityID, toUnix(at)); err != nil {
		return fmt.Errorf("failed to delete upcoming events: %w", err)
	}
	return nil
}

// DeleteByGroup removes every event of a group
func (r *EventRepository) DeleteByGroup(ctx context.Context, groupID string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM events WHERE group_id = ?", groupID); err != nil {
		return fmt.Errorf("failed to delete events: %w", err)
	}
	return nil
}

// List returns every event ordered by start time
func (r *EventRepository) List(ctx context.Context) ([]models.Event, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+eventColumns+" FROM events ORDER BY starts_at ASC, id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}

	var events []models.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, *event)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range events {
		if err := r.loadResponses(ctx, &events[i]); err != nil {
			return nil, err
		}
	}
	return events, nil
}
