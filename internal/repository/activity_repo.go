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

const activityColumns = "id, group_id, name, recurrence_rule, location, time_of_day, anchor_at, created_at, updated_at"

// ActivityRepository handles database operations for activities
type ActivityRepository struct {
	db database.DBTX
}

// NewActivityRepository creates a new activity repository
func NewActivityRepository(db database.DBTX) *ActivityRepository {
	return &ActivityRepository{db: db}
}

func scanActivity(row rowScanner) (*models.Activity, error) {
	activity := &models.Activity{}
	var anchorAt, createdAt, updatedAt int64
	if err := row.Scan(
		&activity.ID,
		&activity.GroupID,
		&activity.Name,
		&activity.RecurrenceRule,
		&activity.Location,
		&activity.Time,
		&anchorAt,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}
	activity.Anchor = fromUnix(anchorAt)
	activity.CreatedAt = fromUnix(createdAt)
	activity.UpdatedAt = fromUnix(updatedAt)
	return activity, nil
}

// Create inserts a new activity after validating its schedule
func (r *ActivityRepository) Create(ctx context.Context, activity *models.Activity) error {
	if err := validation.Activity(activity); err != nil {
		return err
	}
	if activity.ID == "" {
		activity.ID = uuid.NewString()
	}
	ts := now()
	if activity.CreatedAt.IsZero() {
		activity.CreatedAt = ts
	}
	activity.UpdatedAt = ts

	query := "INSERT INTO activities (" + activityColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)"
	_, err := r.db.ExecContext(ctx, query,
		activity.ID,
		activity.GroupID,
		activity.Name,
		activity.RecurrenceRule,
		activity.Location,
		activity.Time,
		toUnix(activity.Anchor),
		toUnix(activity.CreatedAt),
		toUnix(activity.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create activity: %w", err)
	}
	return nil
}

// Update saves every mutable field of the activity
func (r *ActivityRepository) Update(ctx context.Context, activity *models.Activity) error {
	if err := validation.Activity(activity); err != nil {
		return err
	}
	activity.UpdatedAt = now()

	query := `UPDATE activities
		SET name = ?, recurrence_rule = ?, location = ?, time_of_day = ?, anchor_at = ?, updated_at = ?
		WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query,
		activity.Name,
		activity.RecurrenceRule,
		activity.Location,
		activity.Time,
		toUnix(activity.Anchor),
		toUnix(activity.UpdatedAt),
		activity.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update activity: %w", err)
	}
	return nil
}

// GetByID retrieves an activity by ID
func (r *ActivityRepository) GetByID(ctx context.Context, id string) (*models.Activity, error) {
	query := "SELECT " + activityColumns + " FROM activities WHERE id = ?"
	activity, err := scanActivity(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get activity: %w", err)
	}
	return activity, nil
}

// GetByGroup retrieves the activity attached to a group
func (r *ActivityRepository) GetByGroup(ctx context.Context, groupID string) (*models.Activity, error) {
	query := "SELECT " + activityColumns + " FROM activities WHERE group_id = ? ORDER BY created_at ASC LIMIT 1"
	activity, err := scanActivity(r.db.QueryRowContext(ctx, query, groupID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group activity: %w", err)
	}
	return activity, nil
}

// Delete removes an activity; its events go with it
func (r *ActivityRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM activities WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete activity: %w", err)
	}
	return nil
}

// ListDue returns activities with no event starting at or after the given instant
func (r *ActivityRepository) ListDue(ctx context.Context, at time.Time) ([]models.Activity, error) {
	query := `
		SELECT a.id, a.group_id, a.name, a.recurrence_rule, a.location, a.time_of_day, a.anchor_at, a.created_at, a.updated_at
		FROM activities a
		WHERE NOT EXISTS (
			SELECT 1 FROM events e WHERE e.activity_id = a.id AND e.starts_at >= ?
		)
		ORDER BY a.created_at ASC, a.id ASC
	`
	return r.list(ctx, query, toUnix(at))
}

// List returns every activity, oldest first
func (r *ActivityRepository) List(ctx context.Context) ([]models.Activity, error) {
	return r.list(ctx, "SELECT "+activityColumns+" FROM activities ORDER BY created_at ASC, id ASC")
}

func (r *ActivityRepository) list(ctx context.Context, query string, args ...any) ([]models.Activity, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query activities: %w", err)
	}
	defer rows.Close()

	var activities []models.Activity
	for rows.Next() {
		activity, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		activities = append(activities, *activity)
	}
	return activities, rows.Err()
}
