package models

import (
	"time"

	"github.com/google/uuid"
)

// Notification kinds delivered to tenant administrators.
const (
	NotificationRegistrationConfirmed = "registration_confirmed"
	NotificationRegistrationUpdated   = "registration_updated"
)

// Notification is an in-app message for a host account.
type Notification struct {
	ID             uuid.UUID  `json:"id"`
	UserID         uuid.UUID  `json:"user_id"`
	Kind           string     `json:"kind"`
	Subject        string     `json:"subject"`
	Body           string     `json:"body"`
	URL            string     `json:"url,omitempty"`
	RegistrationID *uuid.UUID `json:"registration_id,omitempty"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}
