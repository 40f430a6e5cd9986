package models

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/google/uuid"
)

const (
	// MaxFieldLength bounds single-line form fields, in characters.
	MaxFieldLength = 200
	// MaxCommentsLength bounds the comments field, in characters.
	MaxCommentsLength = 500
)

// RegistrationForm is the applicant-supplied part of a registration.
type RegistrationForm struct {
	TenantID         uuid.UUID `json:"tenant_id"`
	FirstName        string    `json:"first_name"`
	LastName         string    `json:"last_name"`
	Email            string    `json:"email"`
	Country          string    `json:"country"`
	Gender           string    `json:"gender"`
	Position         string    `json:"position"`
	Domain           string    `json:"domain"`
	Comments         string    `json:"comments"`
	Interests        []string  `json:"interests"`
	PoliciesAccepted bool      `json:"policies_accepted"`
}

var errNoTenant = validation.NewError("validation_required", "cannot be blank")

func requireTenant(value interface{}) error {
	if id, _ := value.(uuid.UUID); id == uuid.Nil {
		return errNoTenant
	}
	return nil
}

// Validate checks the form's own field content. Lookups against the tenant
// directory, the country list and the profile-field catalog are not made here.
func (f RegistrationForm) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.TenantID, validation.By(requireTenant)),
		validation.Field(&f.FirstName, validation.Required, validation.RuneLength(0, MaxFieldLength)),
		validation.Field(&f.LastName, validation.Required, validation.RuneLength(0, MaxFieldLength)),
		validation.Field(&f.Email, validation.Required, validation.RuneLength(0, MaxFieldLength), is.EmailFormat),
		validation.Field(&f.Country, validation.Required),
		validation.Field(&f.Gender, validation.Required, validation.RuneLength(0, MaxFieldLength)),
		validation.Field(&f.Position, validation.Required, validation.RuneLength(0, MaxFieldLength)),
		validation.Field(&f.Domain, validation.Required, validation.RuneLength(0, MaxFieldLength)),
		validation.Field(&f.Comments, validation.RuneLength(0, MaxCommentsLength)),
		validation.Field(&f.Interests, validation.Required, validation.Each(validation.RuneLength(0, MaxFieldLength))),
		validation.Field(&f.PoliciesAccepted, validation.Required.Error("policies must be accepted")),
	)
}

// FieldErrors returns the per-field messages carried by a validation error,
// or nil when err is not one.
func FieldErrors(err error) map[string]string {
	var errs validation.Errors
	if !errors.As(err, &errs) {
		return nil
	}
	out := make(map[string]string, len(errs))
	for field, e := range errs {
		out[field] = e.Error()
	}
	return out
}

// Apply copies the applicant's fields onto a registration record. The
// tenant is set only on new records.
func (f *RegistrationForm) Apply(r *Registration) {
	if r.TenantID == uuid.Nil {
		r.TenantID = f.TenantID
	}
	r.FirstName = f.FirstName
	r.LastName = f.LastName
	r.Email = f.Email
	r.Country = f.Country
	r.Gender = f.Gender
	r.Position = f.Position
	r.Domain = f.Domain
	r.Comments = f.Comments
	r.Interests = f.Interests
}

// FormFromRegistration rebuilds the form a record was created from.
func FormFromRegistration(r *Registration) RegistrationForm {
	return RegistrationForm{
		TenantID:         r.TenantID,
		FirstName:        r.FirstName,
		LastName:         r.LastName,
		Email:            r.Email,
		Country:          r.Country,
		Gender:           r.Gender,
		Position:         r.Position,
		Domain:           r.Domain,
		Comments:         r.Comments,
		Interests:        append([]string(nil), r.Interests...),
		PoliciesAccepted: true,
	}
}
