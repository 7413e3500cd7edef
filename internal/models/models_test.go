package models

import (
	"slices"
	"testing"
)

func TestEventSetStatus(t *testing.T) {
	tests := []struct {
		name          string
		attendees     []string
		absentees     []string
		status        AttendanceStatus
		wantAttendees []string
		wantAbsentees []string
	}{
		{
			name:          "undecided to in",
			status:        StatusIn,
			wantAttendees: []string{"u1"},
		},
		{
			name:          "in to out",
			attendees:     []string{"u1", "u2"},
			status:        StatusOut,
			wantAttendees: []string{"u2"},
			wantAbsentees: []string{"u1"},
		},
		{
			name:          "in to undecided",
			attendees:     []string{"u1"},
			status:        StatusUndecided,
			wantAttendees: []string{},
			wantAbsentees: []string{},
		},
		{
			name:          "in twice stays single",
			attendees:     []string{"u1"},
			status:        StatusIn,
			wantAttendees: []string{"u1"},
		},
		{
			name:          "out to in",
			absentees:     []string{"u3", "u1"},
			status:        StatusIn,
			wantAttendees: []string{"u1"},
			wantAbsentees: []string{"u3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := Event{Attendees: tt.attendees, Absentees: tt.absentees}
			e.SetStatus("u1", tt.status)

			if !slices.Equal(nonNil(e.Attendees), nonNil(tt.wantAttendees)) {
				t.Errorf("Attendees = %v, want %v", e.Attendees, tt.wantAttendees)
			}
			if !slices.Equal(nonNil(e.Absentees), nonNil(tt.wantAbsentees)) {
				t.Errorf("Absentees = %v, want %v", e.Absentees, tt.wantAbsentees)
			}
			if got := e.StatusOf("u1"); got != tt.status {
				t.Errorf("StatusOf() = %v, want %v", got, tt.status)
			}
		})
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func TestParseAttendanceStatus(t *testing.T) {
	for _, s := range []string{"in", "out", "undecided"} {
		if _, err := ParseAttendanceStatus(s); err != nil {
			t.Errorf("ParseAttendanceStatus(%q) error = %v", s, err)
		}
	}
	for _, s := range []string{"", "IN", "maybe"} {
		if _, err := ParseAttendanceStatus(s); err == nil {
			t.Errorf("ParseAttendanceStatus(%q) expected error", s)
		}
	}
}

func TestActivityPatch(t *testing.T) {
	name := "Friday futsal"
	tod := "20:30"

	var empty ActivityPatch
	if !empty.IsEmpty() {
		t.Error("zero patch should be empty")
	}

	p := ActivityPatch{Name: &name}
	if p.IsEmpty() || p.ChangesSchedule() {
		t.Error("name-only patch should be non-empty and keep the schedule")
	}

	p.Time = &tod
	if !p.ChangesSchedule() {
		t.Error("time patch should change the schedule")
	}

	a := Activity{Name: "Thursday soccer", Time: "19:00", Location: "Park"}
	p.Apply(&a)
	if a.Name != name || a.Time != tod || a.Location != "Park" {
		t.Errorf("Apply() = %+v", a)
	}
}

func TestGroupMembership(t *testing.T) {
	g := Group{AdminIDs: []string{"a"}, MemberIDs: []string{"a", "b"}}

	if !g.IsAdmin("a") || g.IsAdmin("b") {
		t.Error("IsAdmin mismatch")
	}
	if !g.IsMember("b") || g.IsMember("c") {
		t.Error("IsMember mismatch")
	}
}
