package models

import (
	"fmt"
	"slices"
	"time"
)

// AttendanceStatus is a member's answer for one event
type AttendanceStatus string

const (
	StatusIn        AttendanceStatus = "in"
	StatusOut       AttendanceStatus = "out"
	StatusUndecided AttendanceStatus = "undecided"
)

// ParseAttendanceStatus validates a status received from a client
func ParseAttendanceStatus(s string) (AttendanceStatus, error) {
	switch AttendanceStatus(s) {
	case StatusIn, StatusOut, StatusUndecided:
		return AttendanceStatus(s), nil
	}
	return "", fmt.Errorf("invalid attendance status %q", s)
}

// Event is one dated occurrence of an activity
type Event struct {
	ID         string    `json:"id"`
	ActivityID string    `json:"activity"`
	GroupID    string    `json:"group"`
	Date       time.Time `json:"date"`
	Attendees  []string  `json:"attendees"`
	Absentees  []string  `json:"absentees"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// StatusOf returns the recorded answer of userID
func (e *Event) StatusOf(userID string) AttendanceStatus {
	switch {
	case slices.Contains(e.Attendees, userID):
		return StatusIn
	case slices.Contains(e.Absentees, userID):
		return StatusOut
	default:
		return StatusUndecided
	}
}

// SetStatus moves userID into the set matching status and out of the other.
// StatusUndecided removes the user from both.
func (e *Event) SetStatus(userID string, status AttendanceStatus) {
	e.Attendees = slices.DeleteFunc(e.Attendees, func(id string) bool { return id == userID })
	e.Absentees = slices.DeleteFunc(e.Absentees, func(id string) bool { return id == userID })

	switch status {
	case StatusIn:
		e.Attendees = append(e.Attendees, userID)
	case StatusOut:
		e.Absentees = append(e.Absentees, userID)
	}
}

// EventDetails is an event with its activity and responders populated
type EventDetails struct {
	ID        string        `json:"id"`
	Activity  *Activity     `json:"activity"`
	GroupID   string        `json:"group"`
	Date      time.Time     `json:"date"`
	Attendees []UserSummary `json:"attendees"`
	Absentees []UserSummary `json:"absentees"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}
