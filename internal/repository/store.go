package repository

import (
	"strings"
	"time"

	"rollcall/internal/database"
)

// Store groups the repositories bound to one connection or transaction
type Store struct {
	Users      *UserRepository
	Groups     *GroupRepository
	Activities *ActivityRepository
	Events     *EventRepository
}

// NewStore binds all repositories to db, which may be a *database.DB or a *database.Tx
func NewStore(db database.DBTX) *Store {
	return &Store{
		Users:      NewUserRepository(db),
		Groups:     NewGroupRepository(db),
		Activities: NewActivityRepository(db),
		Events:     NewEventRepository(db),
	}
}

// Timestamps are stored as unix seconds so every driver scans them the same way.
func toUnix(t time.Time) int64 {
	return t.Unix()
}

func fromUnix(n int64) time.Time {
	return time.Unix(n, 0).UTC()
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}

func inClause(n int) string {
	return "(" + strings.TrimSuffix(strings.Repeat("?, ", n), ", ") + ")"
}

func stringArgs(ids []string) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
