package models

import (
	"time"

	"github.com/google/uuid"
)

// Role represents a platform-wide user role.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// User represents a host account.
type User struct {
	ID                  uuid.UUID `json:"id"`
	Email               string    `json:"email"`
	Password            string    `json:"-"`
	FirstName           string    `json:"first_name"`
	LastName            string    `json:"last_name"`
	Role                Role      `json:"role"`
	Country             string    `json:"country"`
	Profile             Profile   `json:"profile"`
	ForcePasswordChange bool      `json:"force_password_change"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// Profile holds the custom profile fields copied from a registration.
type Profile struct {
	Gender    string   `json:"gender,omitempty"`
	Position  string   `json:"position,omitempty"`
	Domain    string   `json:"domain,omitempty"`
	Interests []string `json:"interests,omitempty"`
}

// UserPublic is User without sensitive fields for API responses.
type UserPublic struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// ToPublic converts User to UserPublic.
func (u *User) ToPublic() UserPublic {
	return UserPublic{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}
