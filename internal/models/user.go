package models

import "time"

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Actor is the caller as seen by the services: the user id taken from the
// bearer token and the role resolved from user_roles.
type Actor struct {
	UserID string
	Role   Role
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// RoleFor collapses a user's role rows into the effective role.
func RoleFor(roles []Role) Role {
	for _, r := range roles {
		if r == RoleAdmin {
			return RoleAdmin
		}
	}
	return RoleUser
}

type Profile struct {
	ID             string
	Name           *string
	ProfilePicture *string
	CreatedAt      time.Time
}

type UserSummary struct {
	Profile
	Roles []Role
}
