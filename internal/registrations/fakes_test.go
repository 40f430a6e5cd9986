package registrations

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aura-lms/registration/internal/auth"
	"github.com/aura-lms/registration/internal/drafts"
	"github.com/aura-lms/registration/internal/models"
	"github.com/aura-lms/registration/internal/notifications"
	"github.com/aura-lms/registration/internal/tokens"
)

const testSecret = "registration-test-secret-0123456789abcdef"

var errBoom = errors.New("boom")

// memStore is an in-memory Store with the same uniqueness and conditional
// update rules as the Postgres repository.
type memStore struct {
	mu        sync.Mutex
	rows      map[uuid.UUID]*models.Registration
	now       func() time.Time
	failWrite map[string]bool
	// raceConfirm runs under the lock before SetConfirmed checks the row.
	raceConfirm func(r *models.Registration)
}

func newMemStore(now func() time.Time) *memStore {
	return &memStore{rows: map[uuid.UUID]*models.Registration{}, now: now, failWrite: map[string]bool{}}
}

func clone(r *models.Registration) *models.Registration {
	c := *r
	c.Interests = append([]string(nil), r.Interests...)
	if r.Assessor != nil {
		a := *r.Assessor
		c.Assessor = &a
	}
	return &c
}

func (m *memStore) put(r *models.Registration) *models.Registration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	m.rows[r.ID] = clone(r)
	return r
}

func (m *memStore) get(id uuid.UUID) *models.Registration {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return nil
	}
	return clone(r)
}

func (m *memStore) Insert(_ context.Context, reg *models.Registration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrite["Insert"] {
		return errBoom
	}
	for _, r := range m.rows {
		if r.Email == reg.Email {
			return ErrEmailTaken
		}
	}
	reg.ID = uuid.New()
	reg.Confirmed = false
	reg.Approved = models.ApprovalPending
	reg.CreatedAt = m.now()
	m.rows[reg.ID] = clone(reg)
	return nil
}

func (m *memStore) Find(_ context.Context, l Lookup) (*models.Registration, error) {
	if l.ID == uuid.Nil && l.Email == "" {
		return nil, ErrInvalidLookup
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if (l.ID == uuid.Nil || r.ID == l.ID) && (l.Email == "" || r.Email == l.Email) {
			return clone(r), nil
		}
	}
	return nil, ErrNotFound
}

func (m *memStore) SetConfirmed(_ context.Context, id uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if ok && m.raceConfirm != nil {
		m.raceConfirm(r)
	}
	if m.failWrite["SetConfirmed"] || !ok || r.Confirmed {
		return ErrWriteFailed
	}
	r.Confirmed = true
	r.UpdatedAt = &at
	return nil
}

func (m *memStore) SetReview(_ context.Context, id uuid.UUID, status models.ApprovalStatus, assessor uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if m.failWrite["SetReview"] || !ok {
		return ErrWriteFailed
	}
	r.Approved = status
	r.Assessor = &assessor
	r.UpdatedAt = &at
	return nil
}

func (m *memStore) ResetForResubmission(_ context.Context, reg *models.Registration, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[reg.ID]
	if m.failWrite["ResetForResubmission"] || !ok {
		return ErrWriteFailed
	}
	email, tenant, created, confirmed, assessor := r.Email, r.TenantID, r.CreatedAt, r.Confirmed, r.Assessor
	*r = *clone(reg)
	r.Email, r.TenantID, r.CreatedAt, r.Confirmed, r.Assessor = email, tenant, created, confirmed, assessor
	r.Approved = models.ApprovalPending
	r.UpdatedAt = &at
	reg.Approved = models.ApprovalPending
	reg.UpdatedAt = &at
	return nil
}

func (m *memStore) DeleteExpired(_ context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []uuid.UUID
	for id, r := range m.rows {
		if !r.Confirmed && r.CreatedAt.Before(cutoff) {
			ids = append(ids, id)
			delete(m.rows, id)
		}
	}
	return ids, nil
}

func (m *memStore) ListForReview(_ context.Context, f ReviewFilter) ([]*models.Registration, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	allowed := map[uuid.UUID]bool{}
	for _, id := range f.TenantIDs {
		allowed[id] = true
	}
	var list []*models.Registration
	for _, r := range m.rows {
		if !r.Approved.Actionable() {
			continue
		}
		if f.TenantIDs != nil && !allowed[r.TenantID] {
			continue
		}
		list = append(list, clone(r))
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	total := len(list)
	if f.Offset >= len(list) {
		return nil, total, nil
	}
	list = list[f.Offset:]
	if f.Limit > 0 && len(list) > f.Limit {
		list = list[:f.Limit]
	}
	return list, total, nil
}

func (m *memStore) ListByEmail(_ context.Context, email string) ([]*models.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var list []*models.Registration
	for _, r := range m.rows {
		if r.Email == email {
			list = append(list, clone(r))
		}
	}
	return list, nil
}

func (m *memStore) DeleteByEmail(_ context.Context, email string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, r := range m.rows {
		if r.Email == email {
			delete(m.rows, id)
			n++
		}
	}
	return n, nil
}

type mockAccounts struct{ mock.Mock }

func (m *mockAccounts) EmailExists(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

func (m *mockAccounts) CreateAccount(ctx context.Context, reg *models.Registration) (*models.User, string, error) {
	args := m.Called(ctx, reg)
	u, _ := args.Get(0).(*models.User)
	return u, args.String(1), args.Error(2)
}

func (m *mockAccounts) DeleteAccount(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockAccounts) FindSimilar(ctx context.Context, firstName, lastName string) (*models.User, error) {
	args := m.Called(ctx, firstName, lastName)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

type fakeTenants struct {
	mu         sync.Mutex
	names      map[uuid.UUID]string
	admins     map[uuid.UUID][]uuid.UUID
	attached   map[uuid.UUID][]uuid.UUID
	failAttach bool
}

func newFakeTenants() *fakeTenants {
	return &fakeTenants{
		names:    map[uuid.UUID]string{},
		admins:   map[uuid.UUID][]uuid.UUID{},
		attached: map[uuid.UUID][]uuid.UUID{},
	}
}

func (f *fakeTenants) add(name string, admins ...uuid.UUID) uuid.UUID {
	id := uuid.New()
	f.names[id] = name
	f.admins[id] = admins
	return id
}

func (f *fakeTenants) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	_, ok := f.names[id]
	return ok, nil
}

func (f *fakeTenants) IsTenantAdmin(_ context.Context, tenantID, userID uuid.UUID) (bool, error) {
	for _, a := range f.admins[tenantID] {
		if a == userID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeTenants) AttachAccount(_ context.Context, tenantID, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAttach {
		return errBoom
	}
	f.attached[tenantID] = append(f.attached[tenantID], userID)
	return nil
}

func (f *fakeTenants) ListAdministeredTenants(_ context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	var out []uuid.UUID
	for t, admins := range f.admins {
		for _, a := range admins {
			if a == userID {
				out = append(out, t)
			}
		}
	}
	return out, nil
}

func (f *fakeTenants) Names(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	out := map[uuid.UUID]string{}
	for _, id := range ids {
		if n, ok := f.names[id]; ok {
			out[id] = n
		}
	}
	return out, nil
}

type adminNotice struct {
	RegistrationID uuid.UUID
	Kind           string
}

type recordingNotifier struct {
	mu        sync.Mutex
	emails    []notifications.Email
	notices   []adminNotice
	failEmail bool
}

func (r *recordingNotifier) SendEmail(_ context.Context, e notifications.Email) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failEmail {
		return errBoom
	}
	r.emails = append(r.emails, e)
	return nil
}

func (r *recordingNotifier) NotifyTenantAdmins(_ context.Context, reg *models.Registration, kind string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, adminNotice{RegistrationID: reg.ID, Kind: kind})
	return nil
}

func (r *recordingNotifier) emailsOfType(t string) []notifications.Email {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []notifications.Email
	for _, e := range r.emails {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type memDrafts struct {
	mu   sync.Mutex
	rows map[string]drafts.Draft
}

func newMemDrafts() *memDrafts { return &memDrafts{rows: map[string]drafts.Draft{}} }

func (m *memDrafts) Create(_ context.Context, d *drafts.Draft) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d.Token = uuid.NewString()
	m.rows[d.Token] = *d
	return nil
}

func (m *memDrafts) Save(_ context.Context, d *drafts.Draft) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[d.Token]; !ok {
		return drafts.ErrNotFound
	}
	m.rows[d.Token] = *d
	return nil
}

func (m *memDrafts) Get(_ context.Context, token string) (*drafts.Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.rows[token]
	if !ok {
		return nil, drafts.ErrNotFound
	}
	return &d, nil
}

func (m *memDrafts) Delete(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, token)
	return nil
}

type staticCatalog map[string][]string

func (c staticCatalog) ListCurrentPolicies(context.Context) ([]models.Policy, error) {
	return []models.Policy{{ID: uuid.New(), Name: "Privacy", URL: "https://example.org/privacy"}}, nil
}

func (c staticCatalog) FieldOptions(_ context.Context, shortname string) ([]string, error) {
	return c[shortname], nil
}

type staticEmailLogs map[uuid.UUID][]*models.EmailLog

func (s staticEmailLogs) ListByRegistration(_ context.Context, id uuid.UUID) ([]*models.EmailLog, error) {
	return s[id], nil
}

// fixture wires a Service to in-memory collaborators with a controllable clock.
type fixture struct {
	t        *testing.T
	now      time.Time
	store    *memStore
	accounts *mockAccounts
	tenants  *fakeTenants
	notifier *recordingNotifier
	drafts   *memDrafts
	codec    *tokens.Codec
	emails   staticEmailLogs
	svc      *Service

	tenantID  uuid.UUID
	tenantAdm uuid.UUID
	system    uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		t:        t,
		now:      time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
		accounts: new(mockAccounts),
		tenants:  newFakeTenants(),
		notifier: &recordingNotifier{},
		drafts:   newMemDrafts(),
		emails:   staticEmailLogs{},
		system:   uuid.New(),
	}
	f.store = newMemStore(f.clock)
	codec, err := tokens.NewCodec(testSecret)
	require.NoError(t, err)
	f.codec = codec
	f.tenantAdm = uuid.New()
	f.tenantID = f.tenants.add("Acme Academy", f.tenantAdm)

	f.svc = NewService(Deps{
		Store:     f.store,
		Accounts:  f.accounts,
		Tenants:   f.tenants,
		Notifier:  f.notifier,
		Tokens:    f.codec,
		Drafts:    f.drafts,
		Catalog: staticCatalog{
			FieldGender:    {"Female", "Male", "Other"},
			FieldDomain:    {"Education", "Health"},
			FieldInterests: {"Maths", "Science", "Art"},
		},
		EmailLogs: f.emails,
	}, Options{
		TrustedDomains: []string{"trusted.org"},
		Retention:      24 * time.Hour,
		SystemAssessor: f.system,
		PublicBaseURL:  "https://lms.example.org",
		SiteName:       "Aura LMS",
		Now:            f.clock,
	})
	return f
}

func (f *fixture) clock() time.Time { return f.now }

func (f *fixture) advance(d time.Duration) { f.now = f.now.Add(d) }

// seed stores a record created now.
func (f *fixture) seed(email string, confirmed bool, status models.ApprovalStatus) *models.Registration {
	return f.store.put(&models.Registration{
		TenantID:  f.tenantID,
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     email,
		Country:   "GB",
		Gender:    "Female",
		Position:  "Researcher",
		Domain:    "Education",
		Interests: []string{"Maths", "Science"},
		Confirmed: confirmed,
		Approved:  status,
		CreatedAt: f.now,
	})
}

func (f *fixture) token(email string) string {
	tok, err := f.codec.Encode(email)
	require.NoError(f.t, err)
	return tok
}

func (f *fixture) expectAccount(email string) *models.User {
	u := &models.User{ID: uuid.New(), Email: email}
	f.accounts.On("CreateAccount", mock.Anything, mock.MatchedBy(func(r *models.Registration) bool {
		return r.Email == email
	})).Return(u, "Temp-Pass-123", nil).Once()
	return u
}

func (f *fixture) expectAccountExists(email string) {
	f.accounts.On("CreateAccount", mock.Anything, mock.MatchedBy(func(r *models.Registration) bool {
		return r.Email == email
	})).Return(nil, "", auth.ErrAccountExists).Once()
}

func validForm(tenant uuid.UUID) models.RegistrationForm {
	return models.RegistrationForm{
		TenantID:         tenant,
		FirstName:        "  Grace ",
		LastName:         "Hopper",
		Email:            " Grace@Example.ORG ",
		Country:          "us",
		Gender:           "Female",
		Position:         "Rear Admiral",
		Domain:           "Education",
		Comments:         "Looking forward to it",
		Interests:        []string{"Maths", " Science "},
		PoliciesAccepted: true,
	}
}
