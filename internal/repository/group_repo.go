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

const groupColumns = "id, name, description, cover_image, activity_id, created_at, updated_at"

// GroupRepository handles database operations for groups and their
// admin, member and non-registered member sets
type GroupRepository struct {
	db database.DBTX
}

// NewGroupRepository creates a new group repository
func NewGroupRepository(db database.DBTX) *GroupRepository {
	return &GroupRepository{db: db}
}

func scanGroup(row rowScanner) (*models.Group, error) {
	group := &models.Group{}
	var activityID sql.NullString
	var createdAt, updatedAt int64
	if err := row.Scan(
		&group.ID,
		&group.Name,
		&group.Description,
		&group.CoverImage,
		&activityID,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}
	group.ActivityID = activityID.String
	group.CreatedAt = fromUnix(createdAt)
	group.UpdatedAt = fromUnix(updatedAt)
	return group, nil
}

// Create inserts a group with its admins, members and guests
func (r *GroupRepository) Create(ctx context.Context, group *models.Group) error {
	if err := validation.Group(group); err != nil {
		return err
	}
	if group.ID == "" {
		group.ID = uuid.NewString()
	}
	ts := now()
	if group.CreatedAt.IsZero() {
		group.CreatedAt = ts
	}
	group.UpdatedAt = ts

	query := "INSERT INTO member_groups (" + groupColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?)"
	_, err := r.db.ExecContext(ctx, query,
		group.ID,
		group.Name,
		group.Description,
		group.CoverImage,
		nullable(group.ActivityID),
		toUnix(group.CreatedAt),
		toUnix(group.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create group: %w", err)
	}

	return r.writeSets(ctx, group)
}

// Update saves the group row and reconciles its sets with the stored ones
func (r *GroupRepository) Update(ctx context.Context, group *models.Group) error {
	if err := validation.Group(group); err != nil {
		return err
	}
	group.UpdatedAt = now()

	query := `UPDATE member_groups
		SET name = ?, description = ?, cover_image = ?, activity_id = ?, updated_at = ?
		WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query,
		group.Name,
		group.Description,
		group.CoverImage,
		nullable(group.ActivityID),
		toUnix(group.UpdatedAt),
		group.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update group: %w", err)
	}

	return r.writeSets(ctx, group)
}

// writeSets keeps existing membership rows so join order survives updates.
// joined_at is stored in microseconds to order members added in the same second.
func (r *GroupRepository) writeSets(ctx context.Context, group *models.Group) error {
	dialect := r.db.GetDialect()
	joinedAt := time.Now().UnixMicro()

	if err := r.prune(ctx, "group_members", group.ID, group.MemberIDs); err != nil {
		return err
	}
	insertMember := dialect.InsertIgnore("group_members", "group_id", "user_id", "joined_at")
	for i, userID := range group.MemberIDs {
		if _, err := r.db.ExecContext(ctx, insertMember, group.ID, userID, joinedAt+int64(i)); err != nil {
			return fmt.Errorf("failed to add group member: %w", err)
		}
	}

	if err := r.prune(ctx, "group_admins", group.ID, group.AdminIDs); err != nil {
		return err
	}
	insertAdmin := dialect.InsertIgnore("group_admins", "group_id", "user_id", "created_at")
	for _, userID := range group.AdminIDs {
		if _, err := r.db.ExecContext(ctx, insertAdmin, group.ID, userID, toUnix(group.UpdatedAt)); err != nil {
			return fmt.Errorf("failed to add group admin: %w", err)
		}
	}

	if _, err := r.db.ExecContext(ctx, "DELETE FROM group_guests WHERE group_id = ?", group.ID); err != nil {
		return fmt.Errorf("failed to clear non-registered members: %w", err)
	}
	for i, guest := range group.Guests {
		query := "INSERT INTO group_guests (group_id, name, phone, created_at) VALUES (?, ?, ?, ?)"
		if _, err := r.db.ExecContext(ctx, query, group.ID, guest.Name, guest.Phone, joinedAt+int64(i)); err != nil {
			return fmt.Errorf("failed to add non-registered member: %w", err)
		}
	}
	return nil
}

// prune removes rows of a membership table whose user is not in keep
func (r *GroupRepository) prune(ctx context.Context, table, groupID string, keep []string) error {
	query := "DELETE FROM " + table + " WHERE group_id = ?"
	args := []any{groupID}
	if len(keep) > 0 {
		query += " AND user_id NOT IN " + inClause(len(keep))
		args = append(args, stringArgs(keep)...)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to prune %s: %w", table, err)
	}
	return nil
}

// GetByID retrieves a group with its sets loaded
func (r *GroupRepository) GetByID(ctx context.Context, id string) (*models.Group, error) {
	query := "SELECT " + groupColumns + " FROM member_groups WHERE id = ?"
	group, err := scanGroup(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}

	if err := r.loadSets(ctx, group); err != nil {
		return nil, err
	}
	return group, nil
}

// GetForUpdate retrieves a group, locking its row for the rest of the transaction
func (r *GroupRepository) GetForUpdate(ctx context.Context, id string) (*models.Group, error) {
	query := "SELECT " + groupColumns + " FROM member_groups WHERE id = ?" + r.db.GetDialect().ForUpdate()
	group, err := scanGroup(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock group: %w", err)
	}

	if err := r.loadSets(ctx, group); err != nil {
		return nil, err
	}
	return group, nil
}

func (r *GroupRepository) loadSets(ctx context.Context, group *models.Group) error {
	var err error
	group.MemberIDs, err = r.userIDs(ctx, "SELECT user_id FROM group_members WHERE group_id = ? ORDER BY joined_at ASC, user_id ASC", group.ID)
	if err != nil {
		return err
	}
	group.AdminIDs, err = r.userIDs(ctx, "SELECT user_id FROM group_admins WHERE group_id = ? ORDER BY created_at ASC, user_id ASC", group.ID)
	if err != nil {
		return err
	}

	rows, err := r.db.QueryContext(ctx, "SELECT name, phone FROM group_guests WHERE group_id = ? ORDER BY created_at ASC, phone ASC", group.ID)
	if err != nil {
		return fmt.Errorf("failed to query non-registered members: %w", err)
	}
	defer rows.Close()

	group.Guests = []models.Guest{}
	for rows.Next() {
		var guest models.Guest
		if err := rows.Scan(&guest.Name, &guest.Phone); err != nil {
			return fmt.Errorf("failed to scan non-registered member: %w", err)
		}
		group.Guests = append(group.Guests, guest)
	}
	return rows.Err()
}

func (r *GroupRepository) userIDs(ctx context.Context, query, groupID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to query group users: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SetActivity links the group to an activity; an empty id clears the link
func (r *GroupRepository) SetActivity(ctx context.Context, groupID, activityID string) error {
	query := "UPDATE member_groups SET activity_id = ?, updated_at = ? WHERE id = ?"
	if _, err := r.db.ExecContext(ctx, query, nullable(activityID), toUnix(now()), groupID); err != nil {
		return fmt.Errorf("failed to link activity: %w", err)
	}
	return nil
}

// Delete removes a group; membership rows go with it
func (r *GroupRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM member_groups WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	return nil
}

// IsMember checks if a user is a member of a group
func (r *GroupRepository) IsMember(ctx context.Context, groupID, userID string) (bool, error) {
	return r.exists(ctx, "SELECT COUNT(*) FROM group_members WHERE group_id = ? AND user_id = ?", groupID, userID)
}

// IsAdmin checks if a user administers a group
func (r *GroupRepository) IsAdmin(ctx context.Context, groupID, userID string) (bool, error) {
	return r.exists(ctx, "SELECT COUNT(*) FROM group_admins WHERE group_id = ? AND user_id = ?", groupID, userID)
}

func (r *GroupRepository) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check group membership: %w", err)
	}
	return count > 0, nil
}

// ListForUser retrieves the groups a user belongs to, in join order
func (r *GroupRepository) ListForUser(ctx context.Context, userID string) ([]models.Group, error) {
	query := `
		SELECT g.id, g.name, g.description, g.cover_image, g.activity_id, g.created_at, g.updated_at
		FROM member_groups g
		INNER JOIN group_members m ON g.id = m.group_id
		WHERE m.user_id = ?
		ORDER BY m.joined_at ASC, g.id ASC
	`
	return r.list(ctx, query, userID)
}

// List returns every group, oldest first
func (r *GroupRepository) List(ctx context.Context) ([]models.Group, error) {
	return r.list(ctx, "SELECT "+groupColumns+" FROM member_groups ORDER BY created_at ASC, id ASC")
}

func (r *GroupRepository) list(ctx context.Context, query string, args ...any) ([]models.Group, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query groups: %w", err)
	}

	var groups []models.Group
	for rows.Next() {
		group, err := scanGroup(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, *group)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	// Sets are loaded after the cursor is closed so a single-connection
	// transaction is not asked to run two queries at once.
	for i := range groups {
		if err := r.loadSets(ctx, &groups[i]); err != nil {
			return nil, err
		}
	}
	return groups, nil
}
