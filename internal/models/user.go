package models

import "time"

// User is a registered person, created when the identity provider reports a sign-up
type User struct {
	ID             string    `json:"id"`
	ExternalID     string    `json:"externalId"`
	Username       string    `json:"username,omitempty"`
	FirstName      string    `json:"firstName"`
	LastName       string    `json:"lastName"`
	Phone          string    `json:"phone"`
	Email          string    `json:"email,omitempty"`
	Bio            string    `json:"bio"`
	ProfilePicture string    `json:"profilePicture"`
	GroupIDs       []string  `json:"groups"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// UserSummary is the subset of a user embedded in populated groups and events
type UserSummary struct {
	ID             string `json:"id"`
	Username       string `json:"username,omitempty"`
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	ProfilePicture string `json:"profilePicture"`
}

// Summary returns the populated form of u
func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:             u.ID,
		Username:       u.Username,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		ProfilePicture: u.ProfilePicture,
	}
}

// PublicProfile is what any caller may see about a user
type PublicProfile struct {
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	ProfilePicture string `json:"profilePicture"`
	Bio            string `json:"bio"`
}

// ProfilePatch carries the user-editable profile fields; nil means unchanged
type ProfilePatch struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Bio       *string `json:"bio"`
}

// IsEmpty reports whether the patch changes nothing
func (p ProfilePatch) IsEmpty() bool {
	return p.FirstName == nil && p.LastName == nil && p.Bio == nil
}
