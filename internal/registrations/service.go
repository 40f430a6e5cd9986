package registrations

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-lms/registration/internal/drafts"
	"github.com/aura-lms/registration/internal/metrics"
	"github.com/aura-lms/registration/internal/models"
	"github.com/aura-lms/registration/internal/notifications"
)

// Accounts provisions host accounts for approved registrations.
type Accounts interface {
	EmailExists(ctx context.Context, email string) (bool, error)
	CreateAccount(ctx context.Context, reg *models.Registration) (*models.User, string, error)
	DeleteAccount(ctx context.Context, id uuid.UUID) error
	FindSimilar(ctx context.Context, firstName, lastName string) (*models.User, error)
}

// Tenants is the tenant directory.
type Tenants interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	IsTenantAdmin(ctx context.Context, tenantID, userID uuid.UUID) (bool, error)
	AttachAccount(ctx context.Context, tenantID, userID uuid.UUID) error
	ListAdministeredTenants(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	Names(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error)
}

// Notifier delivers applicant email and tenant administrator notices.
type Notifier interface {
	SendEmail(ctx context.Context, e notifications.Email) error
	NotifyTenantAdmins(ctx context.Context, reg *models.Registration, kind string) error
}

// TokenCodec turns an email address into the opaque token carried by links.
type TokenCodec interface {
	Encode(plaintext string) (string, error)
	Decode(token string) (string, error)
}

// DraftStore keeps in-progress forms.
type DraftStore interface {
	Create(ctx context.Context, d *drafts.Draft) error
	Save(ctx context.Context, d *drafts.Draft) error
	Get(ctx context.Context, token string) (*drafts.Draft, error)
	Delete(ctx context.Context, token string) error
}

// Catalog provides the policies and profile-field options shown on the form.
type Catalog interface {
	ListCurrentPolicies(ctx context.Context) ([]models.Policy, error)
	FieldOptions(ctx context.Context, shortname string) ([]string, error)
}

// EmailHistory lists the email sent about a registration.
type EmailHistory interface {
	ListByRegistration(ctx context.Context, registrationID uuid.UUID) ([]*models.EmailLog, error)
}

// Deps are the collaborators of Service.
type Deps struct {
	Store     Store
	Accounts  Accounts
	Tenants   Tenants
	Notifier  Notifier
	Tokens    TokenCodec
	Drafts    DraftStore
	Catalog   Catalog
	EmailLogs EmailHistory
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
}

// Options configure the workflow.
type Options struct {
	TrustedDomains []string
	Retention      time.Duration
	SystemAssessor uuid.UUID // stamped as assessor on auto-approval
	PublicBaseURL  string
	SiteName       string
	Now            func() time.Time
}

// Service runs the registration workflow: submission, confirmation,
// review and expiry.
type Service struct {
	store    Store
	accounts Accounts
	tenants  Tenants
	notifier Notifier
	tokens   TokenCodec
	drafts   DraftStore
	catalog  Catalog
	emails   EmailHistory
	metrics  *metrics.Metrics
	logger   *zap.Logger

	opts   Options
	expiry ExpiryPolicy
}

// NewService creates a registration service.
func NewService(d Deps, opts Options) *Service {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		store:    d.Store,
		accounts: d.Accounts,
		tenants:  d.Tenants,
		notifier: d.Notifier,
		tokens:   d.Tokens,
		drafts:   d.Drafts,
		catalog:  d.Catalog,
		emails:   d.EmailLogs,
		metrics:  d.Metrics,
		logger:   d.Logger,
		opts:     opts,
		expiry:   ExpiryPolicy{Retention: opts.Retention, Now: opts.Now},
	}
}

func (s *Service) now() time.Time { return s.opts.Now().UTC() }

// Link builds the public URL for a view that carries a record id and token.
func (s *Service) Link(view View, id uuid.UUID, token string) string {
	return fmt.Sprintf("%s/registration?view=%s&id=%s&token=%s",
		s.opts.PublicBaseURL, view, id, url.QueryEscape(token))
}

func (s *Service) emailData(reg *models.Registration) notifications.EmailData {
	return notifications.EmailData{
		SiteName:       s.opts.SiteName,
		FirstName:      reg.FirstName,
		Email:          reg.Email,
		RetentionHours: int(s.opts.Retention / time.Hour),
		Signature:      s.opts.SiteName,
	}
}

// sendEmail renders and queues an applicant email. Failures are logged and
// never undo the state change that preceded them.
func (s *Service) sendEmail(ctx context.Context, reg *models.Registration, emailType string,
	render func(notifications.EmailData) (notifications.Rendered, error), data notifications.EmailData) {
	log := s.logger.With(zap.String("registration_id", reg.ID.String()), zap.String("email_type", emailType))
	msg, err := render(data)
	if err != nil {
		log.Error("render email failed", zap.Error(err))
		return
	}
	regID := reg.ID
	err = s.notifier.SendEmail(ctx, notifications.Email{
		Type:           emailType,
		To:             reg.Email,
		Subject:        msg.Subject,
		Body:           msg.Body,
		RegistrationID: &regID,
	})
	if err != nil {
		log.Error("send email failed", zap.Error(err))
	}
}

func (s *Service) notifyAdmins(ctx context.Context, reg *models.Registration, kind string) {
	if err := s.notifier.NotifyTenantAdmins(ctx, reg, kind); err != nil {
		s.logger.Warn("notify tenant admins failed", zap.Error(err),
			zap.String("registration_id", reg.ID.String()),
			zap.String("tenant_id", reg.TenantID.String()),
			zap.String("kind", kind))
	}
}
