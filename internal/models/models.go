package models

import (
	"time"

	"github.com/google/uuid"
)

// Role is a member's rank inside a space. The string values are the ones
// shown to users ("removed by Owner"), so they are capitalized.
type Role string

const (
	RoleOwner  Role = "Owner"
	RoleAdmin  Role = "Admin"
	RoleMember Role = "Member"
)

// Valid reports whether r is one of the three known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember:
		return true
	}
	return false
}

// IsModerator reports whether r may moderate other people's messages and
// manage channels.
func (r Role) IsModerator() bool {
	return r == RoleOwner || r == RoleAdmin
}

// Space is the top-level collaboration container (a "workspace").
// Spaces are created and maintained by another subsystem; this module only
// reads them to resolve membership.
type Space struct {
	ID        uuid.UUID     `json:"id"`
	Name      string        `json:"name"`
	OwnerID   uuid.UUID     `json:"owner_id"`
	Members   []SpaceMember `json:"members"`
	CreatedAt time.Time     `json:"created_at"`
}

// SpaceMember is the (user, role) pair stored on a space.
type SpaceMember struct {
	UserID uuid.UUID `json:"user_id"`
	Role   Role      `json:"role"`
}

// RoleOf returns the role userID holds in the space, or "" when the user is
// not a member.
func (s *Space) RoleOf(userID uuid.UUID) Role {
	for _, m := range s.Members {
		if m.UserID == userID {
			return m.Role
		}
	}
	return ""
}

// Member is the roster projection used for mention matching and permission
// checks. It is owned by the members subsystem.
type Member struct {
	UserID   uuid.UUID `json:"user_id"`
	Name     string    `json:"name"`
	Username string    `json:"username"`
	Role     Role      `json:"role"`
	Avatar   string    `json:"avatar,omitempty"`
}

// Channel is a named conversation inside a space.
// Channels are listed in creation order.
type Channel struct {
	ID          uuid.UUID `json:"id"`
	SpaceID     uuid.UUID `json:"space_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// User is a person's profile as managed by the accounts subsystem.
type User struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Username  string    `json:"username"`
	Avatar    string    `json:"avatar,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
