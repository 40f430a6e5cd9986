package models

import (
	"time"

	"github.com/google/uuid"
)

// Email types sent by the registration workflow.
const (
	EmailTypeConfirmation = "registration_confirmation"
	EmailTypeWelcome      = "registration_welcome"
	EmailTypeRejection    = "registration_rejected"
	EmailTypeEditRequest  = "registration_edit_request"
)

// EmailLogStatus for delivery.
const (
	EmailLogStatusPending = "pending"
	EmailLogStatusSent    = "sent"
	EmailLogStatusFailed  = "failed"
)

// EmailLog records an outbound email and its delivery state.
type EmailLog struct {
	ID             uuid.UUID  `json:"id"`
	RegistrationID *uuid.UUID `json:"registration_id,omitempty"`
	EmailType      string     `json:"email_type"`
	RecipientEmail string     `json:"recipient_email"`
	Subject        string     `json:"subject,omitempty"`
	Status         string     `json:"status"`
	Attempts       int        `json:"attempts"`
	SentAt         *time.Time `json:"sent_at,omitempty"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}
