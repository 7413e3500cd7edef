package models

import (
	"slices"
	"time"
)

// Group is a set of people sharing one recurring activity
type Group struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CoverImage  string    `json:"coverImage,omitempty"`
	AdminIDs    []string  `json:"admins"`
	MemberIDs   []string  `json:"members"`
	Guests      []Guest   `json:"nonUserMembers"`
	ActivityID  string    `json:"activity,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Guest is a group member without an account, known only by name and phone
type Guest struct {
	Name  string `json:"name"`
	Phone string `json:"phoneNumber"`
}

// IsAdmin reports whether userID administers the group
func (g *Group) IsAdmin(userID string) bool {
	return slices.Contains(g.AdminIDs, userID)
}

// IsMember reports whether userID belongs to the group
func (g *Group) IsMember(userID string) bool {
	return slices.Contains(g.MemberIDs, userID)
}

// GroupSummary is the short form listed on a user's profile
type GroupSummary struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	CoverImage string `json:"coverImage,omitempty"`
}

// GroupDetails is a group with its people and activity populated
type GroupDetails struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	CoverImage  string        `json:"coverImage,omitempty"`
	Admins      []UserSummary `json:"admins"`
	Members     []UserSummary `json:"members"`
	Guests      []Guest       `json:"nonUserMembers"`
	Activity    *Activity     `json:"activity"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}
