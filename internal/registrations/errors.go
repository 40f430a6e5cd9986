package registrations

import "errors"

var (
	// ErrNotFound is returned when no registration matches a lookup.
	ErrNotFound = errors.New("registration not found")
	// ErrInvalidLookup is returned when a lookup carries neither id nor email.
	ErrInvalidLookup = errors.New("lookup requires id or email")
	// ErrEmailTaken is returned when a registration with the email already exists.
	ErrEmailTaken = errors.New("registration with this email already exists")
	// ErrEmailRejected is returned when the email belongs to a rejected registration.
	ErrEmailRejected = errors.New("registration with this email was rejected")
	// ErrAccountExists is returned when a host account with the email already exists.
	ErrAccountExists = errors.New("account with this email already exists")
	// ErrWriteFailed is returned when an update did not apply.
	ErrWriteFailed = errors.New("registration update did not apply")
	// ErrForbidden is returned when the actor may not act on the registration.
	ErrForbidden = errors.New("not authorized for this registration")
	// ErrInvalidState is returned when the registration is not in a state that allows the action.
	ErrInvalidState = errors.New("registration is not awaiting review")
	// ErrInvalidReason is returned when a rejection or notify reason is missing or too long.
	ErrInvalidReason = errors.New("reason is required and must be at most 500 characters of plain text")
	// ErrInvalidLink is returned for any edit link that cannot be honoured.
	ErrInvalidLink = errors.New("invalid or expired link")
	// ErrDraftNotFound is returned when a draft token is unknown or expired.
	ErrDraftNotFound = errors.New("draft not found or expired")
	// ErrProvisioning is returned when the host account could not be created.
	ErrProvisioning = errors.New("account provisioning failed")
)
