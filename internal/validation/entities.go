package validation

import (
	"slices"
	"strings"

	"rollcall/internal/models"
	"rollcall/internal/recurrence"
)

// Group normalizes g in place and checks its invariants: a name, at least
// one admin, every admin also a member, and guests with a name and an
// E.164 phone number.
func Group(g *models.Group) error {
	g.Name = strings.TrimSpace(g.Name)
	if err := ValidateName("name", g.Name); err != nil {
		return err
	}

	if len(g.AdminIDs) == 0 {
		return Error{Field: "admins", Message: "group must have at least one admin"}
	}
	for _, adminID := range g.AdminIDs {
		if !slices.Contains(g.MemberIDs, adminID) {
			g.MemberIDs = append(g.MemberIDs, adminID)
		}
	}

	seen := make(map[string]bool, len(g.Guests))
	for i := range g.Guests {
		guest := &g.Guests[i]
		guest.Name = strings.TrimSpace(guest.Name)
		if err := ValidateName("name", guest.Name); err != nil {
			return err
		}
		phone, err := NormalizePhone(guest.Phone)
		if err != nil {
			return err
		}
		if seen[phone] {
			return Error{Field: "phone", Message: "duplicate non-registered member " + phone}
		}
		seen[phone] = true
		guest.Phone = phone
	}
	return nil
}

// Event checks that e belongs to the same group as its activity and that no
// user is both attending and absent.
func Event(e *models.Event, activity *models.Activity) error {
	if activity == nil || e.ActivityID != activity.ID {
		return Error{Field: "activity", Message: "data inconsistency: event does not reference its activity"}
	}
	if e.GroupID != activity.GroupID {
		return Error{Field: "group", Message: "data inconsistency: event group does not match activity group"}
	}
	if e.Date.IsZero() {
		return Error{Field: "date", Message: "date is required"}
	}
	for _, id := range e.Attendees {
		if slices.Contains(e.Absentees, id) {
			return Error{Field: "attendees", Message: "a user cannot be both attending and absent"}
		}
	}
	return nil
}

// Activity checks the fields an activity needs to materialize events.
func Activity(a *models.Activity) error {
	a.Name = strings.TrimSpace(a.Name)
	if err := ValidateName("name", a.Name); err != nil {
		return err
	}
	if a.GroupID == "" {
		return Error{Field: "group", Message: "group is required"}
	}
	if err := recurrence.Validate(a.RecurrenceRule); err != nil {
		return Error{Field: "recurrenceRule", Message: err.Error()}
	}
	if _, _, err := recurrence.ParseTimeOfDay(a.Time); err != nil {
		return Error{Field: "time", Message: "time must be HH:MM on a 24 hour clock"}
	}
	return nil
}

// User normalizes the phone number and checks the contact fields.
func User(u *models.User) error {
	if u.ExternalID == "" {
		return Error{Field: "externalId", Message: "external id is required"}
	}
	phone, err := NormalizePhone(u.Phone)
	if err != nil {
		return err
	}
	u.Phone = phone
	if u.Email != "" {
		if err := ValidateEmail(u.Email); err != nil {
			return err
		}
	}
	return nil
}
