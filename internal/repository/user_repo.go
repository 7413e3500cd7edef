package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"rollcall/internal/database"
	"rollcall/internal/models"
	"rollcall/internal/validation"
)

const userColumns = "id, external_id, username, first_name, last_name, phone, email, bio, profile_picture, created_at, updated_at"

// UserRepository handles database operations for users
type UserRepository struct {
	db database.DBTX
}

// NewUserRepository creates a new user repository
func NewUserRepository(db database.DBTX) *UserRepository {
	return &UserRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	user := &models.User{}
	var username, email sql.NullString
	var createdAt, updatedAt int64
	err := row.Scan(
		&user.ID,
		&user.ExternalID,
		&username,
		&user.FirstName,
		&user.LastName,
		&user.Phone,
		&email,
		&user.Bio,
		&user.ProfilePicture,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}
	user.Username = username.String
	user.Email = email.String
	user.CreatedAt = fromUnix(createdAt)
	user.UpdatedAt = fromUnix(updatedAt)
	return user, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: strings.TrimSpace(s) != ""}
}

// Create inserts a new user after checking its contact fields
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if err := validation.User(user); err != nil {
		return err
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	ts := now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = ts
	}
	user.UpdatedAt = ts

	query := "INSERT INTO users (" + userColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.ExternalID,
		nullable(user.Username),
		user.FirstName,
		user.LastName,
		user.Phone,
		nullable(user.Email),
		user.Bio,
		user.ProfilePicture,
		toUnix(user.CreatedAt),
		toUnix(user.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByID retrieves a user with its group memberships
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.getOne(ctx, "id", id)
}

// GetByExternalID retrieves the user mapped to an identity provider id
func (r *UserRepository) GetByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	return r.getOne(ctx, "external_id", externalID)
}

// GetByPhone retrieves a user by E.164 phone number
func (r *UserRepository) GetByPhone(ctx context.Context, phone string) (*models.User, error) {
	return r.getOne(ctx, "phone", phone)
}

// GetByEmail retrieves the user registered with an email address
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, "email", email)
}

func (r *UserRepository) getOne(ctx context.Context, column, value string) (*models.User, error) {
	query := "SELECT " + userColumns + " FROM users WHERE " + column + " = ?"
	user, err := scanUser(r.db.QueryRowContext(ctx, query, value))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	user.GroupIDs, err = r.groupIDs(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *UserRepository) groupIDs(ctx context.Context, userID string) ([]string, error) {
	query := "SELECT group_id FROM group_members WHERE user_id = ? ORDER BY joined_at ASC, group_id ASC"
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query user groups: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan group id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UpdateProfile applies the set fields of patch
func (r *UserRepository) UpdateProfile(ctx context.Context, id string, patch models.ProfilePatch) error {
	var sets []string
	var args []any
	if patch.FirstName != nil {
		sets = append(sets, "first_name = ?")
		args = append(args, strings.TrimSpace(*patch.FirstName))
	}
	if patch.LastName != nil {
		sets = append(sets, "last_name = ?")
		args = append(args, strings.TrimSpace(*patch.LastName))
	}
	if patch.Bio != nil {
		sets = append(sets, "bio = ?")
		args = append(args, *patch.Bio)
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, toUnix(now()), id)

	query := "UPDATE users SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	return nil
}

// Summaries returns populated summaries for ids, in the order given.
// Unknown ids are skipped.
func (r *UserRepository) Summaries(ctx context.Context, ids []string) ([]models.UserSummary, error) {
	if len(ids) == 0 {
		return []models.UserSummary{}, nil
	}

	query := "SELECT id, username, first_name, last_name, profile_picture FROM users WHERE id IN " + inClause(len(ids))
	rows, err := r.db.QueryContext(ctx, query, stringArgs(ids)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]models.UserSummary, len(ids))
	for rows.Next() {
		var s models.UserSummary
		var username sql.NullString
		if err := rows.Scan(&s.ID, &username, &s.FirstName, &s.LastName, &s.ProfilePicture); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		s.Username = username.String
		byID[s.ID] = s
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]models.UserSummary, 0, len(ids))
	for _, id := range ids {
		if s, ok := byID[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

// List returns every user, oldest first
func (r *UserRepository) List(ctx context.Context) ([]models.User, error) {
	query := "SELECT " + userColumns + " FROM users ORDER BY created_at ASC, id ASC"
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}
