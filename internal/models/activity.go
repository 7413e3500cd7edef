package models

import "time"

// Activity is the recurring thing a group does, e.g. Thursday soccer
type Activity struct {
	ID             string `json:"id"`
	GroupID        string `json:"group"`
	Name           string `json:"name"`
	RecurrenceRule string `json:"recurrenceRule"`
	Location       string `json:"location,omitempty"`
	// Time is the local start time, HH:MM on a 24 hour clock.
	Time string `json:"time"`
	// Anchor is the first instant of the series; occurrences are computed
	// relative to it so rules with an interval keep their phase.
	Anchor    time.Time `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ActivityPatch is a partial activity update; nil fields are left alone
type ActivityPatch struct {
	Name           *string `json:"name"`
	RecurrenceRule *string `json:"recurrenceRule"`
	Location       *string `json:"location"`
	Time           *string `json:"time"`
}

// IsEmpty reports whether the patch changes nothing
func (p ActivityPatch) IsEmpty() bool {
	return p.Name == nil && p.RecurrenceRule == nil && p.Location == nil && p.Time == nil
}

// ChangesSchedule reports whether applying the patch moves future occurrences
func (p ActivityPatch) ChangesSchedule() bool {
	return p.RecurrenceRule != nil || p.Time != nil
}

// Apply copies the set fields of p onto a
func (p ActivityPatch) Apply(a *Activity) {
	if p.Name != nil {
		a.Name = *p.Name
	}
	if p.RecurrenceRule != nil {
		a.RecurrenceRule = *p.RecurrenceRule
	}
	if p.Location != nil {
		a.Location = *p.Location
	}
	if p.Time != nil {
		a.Time = *p.Time
	}
}
