package models

import (
	"time"

	"github.com/google/uuid"
)

// ApprovalStatus is the review state of a registration record.
type ApprovalStatus int

const (
	ApprovalPending  ApprovalStatus = 0
	ApprovalApproved ApprovalStatus = 1
	ApprovalRejected ApprovalStatus = -1
	ApprovalNotified ApprovalStatus = -2 // applicant asked to edit and resubmit
)

// String returns the lowercase name used in logs and API responses.
func (s ApprovalStatus) String() string {
	switch s {
	case ApprovalPending:
		return "pending"
	case ApprovalApproved:
		return "approved"
	case ApprovalRejected:
		return "rejected"
	case ApprovalNotified:
		return "notified"
	default:
		return "unknown"
	}
}

// Actionable reports whether an administrator may still approve, reject or notify.
func (s ApprovalStatus) Actionable() bool {
	return s == ApprovalPending || s == ApprovalNotified
}

// Registration is a prospective user's application to join a tenant.
type Registration struct {
	ID        uuid.UUID      `json:"id"`
	TenantID  uuid.UUID      `json:"tenant_id"`
	FirstName string         `json:"first_name"`
	LastName  string         `json:"last_name"`
	Email     string         `json:"email"`
	Country   string         `json:"country"`
	Gender    string         `json:"gender"`
	Position  string         `json:"position"`
	Domain    string         `json:"domain"`
	Comments  string         `json:"comments"`
	Interests []string       `json:"interests"`
	Confirmed bool           `json:"confirmed"`
	Approved  ApprovalStatus `json:"approved"`
	Assessor  *uuid.UUID     `json:"assessor,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt *time.Time     `json:"updated_at,omitempty"`
}

// FullName returns first and last name joined by a space.
func (r *Registration) FullName() string {
	if r.LastName == "" {
		return r.FirstName
	}
	return r.FirstName + " " + r.LastName
}
