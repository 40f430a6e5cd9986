package registrations

import (
	"context"
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-lms/registration/internal/drafts"
	"github.com/aura-lms/registration/internal/models"
	"github.com/aura-lms/registration/internal/notifications"
)

const (
	// MaxFieldLength bounds single-line form fields, in characters.
	MaxFieldLength = models.MaxFieldLength
	// MaxCommentsLength bounds the comments field, in characters.
	MaxCommentsLength = models.MaxCommentsLength
)

// Profile fields whose values must come from the catalog.
const (
	FieldGender    = "gender"
	FieldDomain    = "domain"
	FieldInterests = "interests"
)

// DraftView is a draft with its review-step summary.
type DraftView struct {
	Draft   *drafts.Draft `json:"draft"`
	Editing bool          `json:"editing"`
	Summary FormSummary   `json:"summary"`
}

// FormOptions is what the form step needs to render.
type FormOptions struct {
	Policies  []models.Policy     `json:"policies"`
	Fields    map[string][]string `json:"fields"`
	Countries []Country           `json:"countries"`
}

// NormalizeEmail trims and lowercases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func normalizeForm(f *models.RegistrationForm) {
	f.FirstName = strings.TrimSpace(f.FirstName)
	f.LastName = strings.TrimSpace(f.LastName)
	f.Email = NormalizeEmail(f.Email)
	f.Country = strings.ToUpper(strings.TrimSpace(f.Country))
	f.Gender = strings.TrimSpace(f.Gender)
	f.Position = strings.TrimSpace(f.Position)
	f.Domain = strings.TrimSpace(f.Domain)
	f.Comments = strings.TrimSpace(f.Comments)
	interests := make([]string, 0, len(f.Interests))
	for _, v := range f.Interests {
		if v = strings.TrimSpace(v); v != "" {
			interests = append(interests, v)
		}
	}
	f.Interests = interests
}

// FormOptions loads the policies, selectable field options and countries.
func (s *Service) FormOptions(ctx context.Context) (*FormOptions, error) {
	policies, err := s.catalog.ListCurrentPolicies(ctx)
	if err != nil {
		return nil, fmt.Errorf("list policies: %w", err)
	}
	fields := make(map[string][]string, 3)
	for _, name := range []string{FieldGender, FieldDomain, FieldInterests} {
		opts, err := s.catalog.FieldOptions(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("field options %s: %w", name, err)
		}
		fields[name] = opts
	}
	return &FormOptions{Policies: policies, Fields: fields, Countries: Countries()}, nil
}

// validateForm checks field content. It returns validation.Errors for
// applicant mistakes and a plain error when a collaborator fails.
func (s *Service) validateForm(ctx context.Context, f *models.RegistrationForm) error {
	opts := make(map[string][]string, 3)
	for _, name := range []string{FieldGender, FieldDomain, FieldInterests} {
		o, err := s.catalog.FieldOptions(ctx, name)
		if err != nil {
			return fmt.Errorf("field options %s: %w", name, err)
		}
		opts[name] = o
	}

	errs := validation.Errors{}
	if err := f.Validate(); err != nil && !errors.As(err, &errs) {
		return err
	}
	var lookups validation.Errors
	err := validation.ValidateStructWithContext(ctx, f,
		validation.Field(&f.TenantID, validation.WithContext(s.knownTenant)),
		validation.Field(&f.Country, validation.By(knownCountry)),
		validation.Field(&f.Gender, optionRule(opts[FieldGender])),
		validation.Field(&f.Domain, optionRule(opts[FieldDomain])),
		validation.Field(&f.Interests, validation.Each(optionRule(opts[FieldInterests]))),
	)
	if err != nil && !errors.As(err, &lookups) {
		return fmt.Errorf("validate form: %w", err)
	}
	for field, e := range lookups {
		if _, seen := errs[field]; !seen {
			errs[field] = e
		}
	}
	return errs.Filter()
}

var (
	errUnknownTenant  = validation.NewError("validation_unknown_tenant", "unknown tenant")
	errUnknownCountry = validation.NewError("validation_unknown_country", "unknown country")
)

func (s *Service) knownTenant(ctx context.Context, value interface{}) error {
	id, _ := value.(uuid.UUID)
	if id == uuid.Nil {
		return nil
	}
	ok, err := s.tenants.Exists(ctx, id)
	if err != nil {
		return validation.NewInternalError(fmt.Errorf("check tenant: %w", err))
	}
	if !ok {
		return errUnknownTenant
	}
	return nil
}

func knownCountry(value interface{}) error {
	code, _ := value.(string)
	if code == "" {
		return nil
	}
	if _, ok := parseCountry(code); !ok {
		return errUnknownCountry
	}
	return nil
}

// optionRule restricts a value to the catalog options. A field with no
// configured options accepts any value.
func optionRule(opts []string) validation.Rule {
	allowed := make([]interface{}, len(opts))
	for i, o := range opts {
		allowed[i] = o
	}
	return validation.When(len(opts) > 0, validation.In(allowed...).Error("is not an available option"))
}

// checkAvailable rejects an email already used by a host account or a registration.
func (s *Service) checkAvailable(ctx context.Context, email string) error {
	exists, err := s.accounts.EmailExists(ctx, email)
	if err != nil {
		return fmt.Errorf("check account email: %w", err)
	}
	if exists {
		return ErrAccountExists
	}
	reg, err := s.store.Find(ctx, Lookup{Email: email})
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("check registration email: %w", err)
	}
	if reg.Approved == models.ApprovalRejected {
		return ErrEmailRejected
	}
	return ErrEmailTaken
}

func (s *Service) view(ctx context.Context, d *drafts.Draft) (*DraftView, error) {
	names, err := s.tenants.Names(ctx, []uuid.UUID{d.Form.TenantID})
	if err != nil {
		return nil, fmt.Errorf("tenant name: %w", err)
	}
	return &DraftView{Draft: d, Editing: d.RecordID != nil, Summary: summarize(d.Form, names[d.Form.TenantID])}, nil
}

func (s *Service) loadDraft(ctx context.Context, token string) (*drafts.Draft, error) {
	d, err := s.drafts.Get(ctx, token)
	if errors.Is(err, drafts.ErrNotFound) {
		return nil, ErrDraftNotFound
	}
	return d, err
}

// StartDraft validates a new form and stores it for the review step.
func (s *Service) StartDraft(ctx context.Context, form models.RegistrationForm) (*DraftView, error) {
	normalizeForm(&form)
	if err := s.validateForm(ctx, &form); err != nil {
		return nil, err
	}
	if err := s.checkAvailable(ctx, form.Email); err != nil {
		return nil, err
	}
	d := &drafts.Draft{Form: form, CreatedAt: s.now()}
	if err := s.drafts.Create(ctx, d); err != nil {
		return nil, fmt.Errorf("create draft: %w", err)
	}
	return s.view(ctx, d)
}

// GetDraft returns a stored draft.
func (s *Service) GetDraft(ctx context.Context, token string) (*DraftView, error) {
	d, err := s.loadDraft(ctx, token)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, d)
}

// UpdateDraft replaces a draft's form. The email and tenant of a draft
// editing an existing record cannot change.
func (s *Service) UpdateDraft(ctx context.Context, token string, form models.RegistrationForm) (*DraftView, error) {
	d, err := s.loadDraft(ctx, token)
	if err != nil {
		return nil, err
	}
	if d.RecordID != nil {
		form.Email = d.Form.Email
		form.TenantID = d.Form.TenantID
	}
	normalizeForm(&form)
	if err := s.validateForm(ctx, &form); err != nil {
		return nil, err
	}
	if d.RecordID == nil && form.Email != d.Form.Email {
		if err := s.checkAvailable(ctx, form.Email); err != nil {
			return nil, err
		}
	}
	d.Form = form
	if err := s.drafts.Save(ctx, d); err != nil {
		if errors.Is(err, drafts.ErrNotFound) {
			return nil, ErrDraftNotFound
		}
		return nil, fmt.Errorf("save draft: %w", err)
	}
	return s.view(ctx, d)
}

// SubmitDraft commits a draft. A new application is stored and sent a
// confirmation link; an edited application returns to pending and its
// tenant administrators are told. The draft is removed once committed.
func (s *Service) SubmitDraft(ctx context.Context, token string) (*models.Registration, error) {
	d, err := s.loadDraft(ctx, token)
	if err != nil {
		return nil, err
	}

	var reg *models.Registration
	if d.RecordID != nil {
		reg, err = s.resubmit(ctx, d)
	} else {
		reg, err = s.submit(ctx, d)
	}
	if err != nil {
		return nil, err
	}

	if err := s.drafts.Delete(ctx, d.Token); err != nil {
		s.logger.Warn("delete submitted draft failed", zap.Error(err), zap.String("registration_id", reg.ID.String()))
	}
	return reg, nil
}

func (s *Service) submit(ctx context.Context, d *drafts.Draft) (*models.Registration, error) {
	if err := s.checkAvailable(ctx, d.Form.Email); err != nil {
		return nil, err
	}
	reg := &models.Registration{}
	d.Form.Apply(reg)
	if err := s.store.Insert(ctx, reg); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("insert registration: %w", err)
	}
	s.metrics.IncrementSubmission()
	s.logger.Info("registration submitted", zap.String("registration_id", reg.ID.String()),
		zap.String("tenant_id", reg.TenantID.String()))
	s.sendConfirmation(ctx, reg)
	return reg, nil
}

func (s *Service) resubmit(ctx context.Context, d *drafts.Draft) (*models.Registration, error) {
	reg, err := s.store.Find(ctx, Lookup{ID: *d.RecordID})
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidLink
	}
	if err != nil {
		return nil, fmt.Errorf("find registration: %w", err)
	}
	if reg.Approved != models.ApprovalNotified {
		return nil, ErrInvalidLink
	}

	email := reg.Email
	d.Form.Apply(reg)
	reg.Email = email
	if err := s.store.ResetForResubmission(ctx, reg, s.now()); err != nil {
		return nil, fmt.Errorf("resubmit registration: %w", err)
	}
	s.metrics.IncrementResubmission()
	s.logger.Info("registration resubmitted", zap.String("registration_id", reg.ID.String()))
	s.notifyAdmins(ctx, reg, models.NotificationRegistrationUpdated)
	return reg, nil
}

func (s *Service) sendConfirmation(ctx context.Context, reg *models.Registration) {
	token, err := s.tokens.Encode(reg.Email)
	if err != nil {
		s.logger.Error("encode confirmation token failed", zap.Error(err), zap.String("registration_id", reg.ID.String()))
		return
	}
	data := s.emailData(reg)
	data.Link = s.Link(ViewConfirm, reg.ID, token)
	s.sendEmail(ctx, reg, models.EmailTypeConfirmation, notifications.RenderConfirmation, data)
}

// OpenEditDraft starts a draft from an edit link. The link must carry a
// token for the record's email and the record must be awaiting edits.
func (s *Service) OpenEditDraft(ctx context.Context, id uuid.UUID, token string) (*DraftView, error) {
	if id == uuid.Nil {
		return nil, ErrInvalidLink
	}
	email, err := s.tokens.Decode(token)
	if err != nil {
		return nil, ErrInvalidLink
	}
	reg, err := s.store.Find(ctx, Lookup{ID: id, Email: email})
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidLink
	}
	if err != nil {
		return nil, fmt.Errorf("find registration: %w", err)
	}
	if reg.Approved != models.ApprovalNotified {
		return nil, ErrInvalidLink
	}

	recordID := reg.ID
	d := &drafts.Draft{RecordID: &recordID, Form: models.FormFromRegistration(reg), CreatedAt: s.now()}
	if err := s.drafts.Create(ctx, d); err != nil {
		return nil, fmt.Errorf("create draft: %w", err)
	}
	return s.view(ctx, d)
}

// ResendConfirmation mails a fresh confirmation link when email belongs to an
// unconfirmed, unexpired registration. Nothing is revealed about whether it does.
func (s *Service) ResendConfirmation(ctx context.Context, email string) error {
	reg, err := s.store.Find(ctx, Lookup{Email: NormalizeEmail(email)})
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidLookup) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("find registration: %w", err)
	}
	if reg.Confirmed || s.expiry.Expired(reg.CreatedAt) {
		return nil
	}
	s.sendConfirmation(ctx, reg)
	return nil
}
