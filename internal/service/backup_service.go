package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"rollcall/internal/database"
	"rollcall/internal/models"
	"rollcall/internal/repository"
)

const backupVersion = "1.0"

// BackupData represents the complete database backup structure
type BackupData struct {
	Version      string           `json:"version"`
	ExportedAt   time.Time        `json:"exported_at"`
	DatabaseType string           `json:"database_type"`
	Users        []models.User    `json:"users"`
	Groups       []models.Group   `json:"groups"`
	Activities   []ActivityBackup `json:"activities"`
	Events       []models.Event   `json:"events"`
}

// ActivityBackup carries the series anchor, which the API never exposes
type ActivityBackup struct {
	models.Activity
	AnchorAt time.Time `json:"anchor_at"`
}

// BackupService handles database backup and restore operations
type BackupService struct {
	db *database.DB
}

// NewBackupService creates a new backup service
func NewBackupService(db *database.DB) *BackupService {
	return &BackupService{db: db}
}

// Export writes a complete backup of the database to a file
func (s *BackupService) Export(ctx context.Context, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	if err := s.ExportTo(ctx, file); err != nil {
		return err
	}
	slog.Info("Database exported", "path", outputPath)
	return nil
}

// ExportTo writes a complete backup of the database to w
func (s *BackupService) ExportTo(ctx context.Context, w io.Writer) error {
	store := repository.NewStore(s.db)
	backup := &BackupData{
		Version:      backupVersion,
		ExportedAt:   time.Now().UTC(),
		DatabaseType: "universal",
	}

	var err error
	if backup.Users, err = store.Users.List(ctx); err != nil {
		return fmt.Errorf("failed to export users: %w", err)
	}
	if backup.Groups, err = store.Groups.List(ctx); err != nil {
		return fmt.Errorf("failed to export groups: %w", err)
	}
	activities, err := store.Activities.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to export activities: %w", err)
	}
	for _, a := range activities {
		backup.Activities = append(backup.Activities, ActivityBackup{Activity: a, AnchorAt: a.Anchor})
	}
	if backup.Events, err = store.Events.List(ctx); err != nil {
		return fmt.Errorf("failed to export events: %w", err)
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(backup); err != nil {
		return fmt.Errorf("failed to encode backup: %w", err)
	}

	slog.Info("Export complete",
		"users", len(backup.Users),
		"groups", len(backup.Groups),
		"activities", len(backup.Activities),
		"events", len(backup.Events))
	return nil
}

// Import restores a database from a backup file
func (s *BackupService) Import(ctx context.Context, inputPath string) error {
	file, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("failed to open input file: %w", err)
	}
	defer file.Close()

	return s.ImportFromReader(ctx, file)
}

// ImportFromReader restores a backup in one transaction. Records whose id
// already exists are skipped, so an import can be re-run. Every record goes
// through the repositories and is validated like any other write.
func (s *BackupService) ImportFromReader(ctx context.Context, r io.Reader) error {
	var backup BackupData
	if err := json.NewDecoder(r).Decode(&backup); err != nil {
		return fmt.Errorf("failed to decode backup: %w", err)
	}
	slog.Info("Importing backup", "version", backup.Version, "exported_at", backup.ExportedAt)

	return database.RunInTx(ctx, s.db, func(tx *database.Tx) error {
		store := repository.NewStore(tx)

		for i := range backup.Users {
			u := &backup.Users[i]
			existing, err := store.Users.GetByID(ctx, u.ID)
			if err != nil {
				return err
			}
			if existing != nil {
				continue
			}
			if err := store.Users.Create(ctx, u); err != nil {
				return fmt.Errorf("failed to import user %s: %w", u.ID, err)
			}
		}

		for i := range backup.Groups {
			g := &backup.Groups[i]
			existing, err := store.Groups.GetByID(ctx, g.ID)
			if err != nil {
				return err
			}
			if existing != nil {
				continue
			}
			if err := store.Groups.Create(ctx, g); err != nil {
				return fmt.Errorf("failed to import group %s: %w", g.ID, err)
			}
		}

		activities := make(map[string]*models.Activity, len(backup.Activities))
		for i := range backup.Activities {
			a := &backup.Activities[i].Activity
			a.Anchor = backup.Activities[i].AnchorAt
			activities[a.ID] = a

			existing, err := store.Activities.GetByID(ctx, a.ID)
			if err != nil {
				return err
			}
			if existing != nil {
				continue
			}
			if err := store.Activities.Create(ctx, a); err != nil {
				return fmt.Errorf("failed to import activity %s: %w", a.ID, err)
			}
		}

		for i := range backup.Events {
			e := &backup.Events[i]
			existing, err := store.Events.GetByID(ctx, e.ID)
			if err != nil {
				return err
			}
			if existing != nil {
				continue
			}
			activity := activities[e.ActivityID]
			if activity == nil {
				if activity, err = store.Activities.GetByID(ctx, e.ActivityID); err != nil {
					return err
				}
			}
			if err := store.Events.Create(ctx, e, activity); err != nil {
				return fmt.Errorf("failed to import event %s: %w", e.ID, err)
			}
		}

		slog.Info("Import complete",
			"users", len(backup.Users),
			"groups", len(backup.Groups),
			"activities", len(backup.Activities),
			"events", len(backup.Events))
		return nil
	})
}

// Clear deletes every row, children first
func (s *BackupService) Clear(ctx context.Context) error {
	tables := []string{
		"event_responses",
		"events",
		"activities",
		"group_guests",
		"group_members",
		"group_admins",
		"member_groups",
		"users",
	}
	return database.RunInTx(ctx, s.db, func(tx *database.Tx) error {
		for _, table := range tables {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("failed to clear %s: %w", table, err)
			}
		}
		return nil
	})
}
