package notifications

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aura-lms/registration/internal/models"
	"github.com/aura-lms/registration/pkg/queue"
)

type mockLogs struct{ mock.Mock }

func (m *mockLogs) Create(ctx context.Context, el *models.EmailLog, body string) error {
	args := m.Called(ctx, el, body)
	el.ID = uuid.New()
	return args.Error(0)
}

func (m *mockLogs) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, final bool) error {
	return m.Called(ctx, id, errMsg, final).Error(0)
}

type mockQueue struct{ mock.Mock }

func (m *mockQueue) EnqueueEmail(ctx context.Context, p queue.EmailPayload) (string, error) {
	args := m.Called(ctx, p)
	return args.String(0), args.Error(1)
}

type memInApp struct {
	mu   sync.Mutex
	rows []*models.Notification
	fail map[uuid.UUID]bool
}

func (m *memInApp) Insert(_ context.Context, n *models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail[n.UserID] {
		return errors.New("insert failed")
	}
	n.ID = uuid.New()
	m.rows = append(m.rows, n)
	return nil
}

type staticAdmins []uuid.UUID

func (s staticAdmins) ListAdmins(context.Context, uuid.UUID) ([]uuid.UUID, error) { return s, nil }

func TestSendEmailLogsAndQueues(t *testing.T) {
	logs, q := new(mockLogs), new(mockQueue)
	svc := NewService(logs, q, &memInApp{}, nil, staticAdmins{}, "", nil)
	regID := uuid.New()

	logs.On("Create", mock.Anything, mock.MatchedBy(func(el *models.EmailLog) bool {
		return el.EmailType == models.EmailTypeRejection && el.RecipientEmail == "a@b.c" && *el.RegistrationID == regID
	}), "body").Return(nil)
	q.On("EnqueueEmail", mock.Anything, mock.MatchedBy(func(p queue.EmailPayload) bool {
		return p.EmailLogID != uuid.Nil && p.Body == "body" && p.Subject == "subj"
	})).Return("job-1", nil)

	err := svc.SendEmail(context.Background(), Email{Type: models.EmailTypeRejection, To: "a@b.c", Subject: "subj", Body: "body", RegistrationID: &regID})
	require.NoError(t, err)
	logs.AssertExpectations(t)
	q.AssertExpectations(t)
}

func TestSendEmailMarksLogFailedWhenQueueDown(t *testing.T) {
	logs, q := new(mockLogs), new(mockQueue)
	svc := NewService(logs, q, &memInApp{}, nil, staticAdmins{}, "", nil)

	logs.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	q.On("EnqueueEmail", mock.Anything, mock.Anything).Return("", errors.New("redis down"))
	logs.On("MarkFailed", mock.Anything, mock.Anything, "redis down", true).Return(nil)

	err := svc.SendEmail(context.Background(), Email{Type: models.EmailTypeWelcome, To: "a@b.c"})
	assert.Error(t, err)
	logs.AssertExpectations(t)
}

func TestNotifyTenantAdminsReachesEveryAdmin(t *testing.T) {
	admins := staticAdmins{uuid.New(), uuid.New(), uuid.New()}
	store := &memInApp{}
	svc := NewService(new(mockLogs), new(mockQueue), store, nil, admins, "https://lms/registration?view=users", nil)
	reg := &models.Registration{ID: uuid.New(), TenantID: uuid.New()}

	require.NoError(t, svc.NotifyTenantAdmins(context.Background(), reg, models.NotificationRegistrationUpdated))

	require.Len(t, store.rows, 3)
	got := map[uuid.UUID]bool{}
	for _, n := range store.rows {
		got[n.UserID] = true
		assert.Equal(t, subjectUpdated, n.Subject)
		assert.Equal(t, reg.ID, *n.RegistrationID)
		assert.Equal(t, "https://lms/registration?view=users", n.URL)
	}
	for _, id := range admins {
		assert.True(t, got[id])
	}
}

func TestNotifyTenantAdminsReportsPartialFailure(t *testing.T) {
	admins := staticAdmins{uuid.New(), uuid.New()}
	store := &memInApp{fail: map[uuid.UUID]bool{admins[0]: true}}
	svc := NewService(new(mockLogs), new(mockQueue), store, nil, admins, "", nil)

	err := svc.NotifyTenantAdmins(context.Background(), &models.Registration{ID: uuid.New()}, models.NotificationRegistrationConfirmed)
	assert.Error(t, err)
	require.Len(t, store.rows, 1)
	assert.Equal(t, admins[1], store.rows[0].UserID)
	assert.Equal(t, subjectConfirmed, store.rows[0].Subject)
}

func TestRenderRejectionIncludesReasonVerbatim(t *testing.T) {
	r, err := RenderRejection(EmailData{SiteName: "Aura LMS", FirstName: "Ada", Reason: "Missing <institution> & role", Signature: "Admin"})
	require.NoError(t, err)
	assert.Equal(t, "Aura LMS: Account rejection.", r.Subject)
	assert.Contains(t, r.Body, "Hi Ada,")
	assert.Contains(t, r.Body, "Missing <institution> & role")
}

func TestRenderConfirmationIncludesLinkAndWindow(t *testing.T) {
	r, err := RenderConfirmation(EmailData{SiteName: "Aura LMS", FirstName: "Ada", Link: "https://lms/registration?view=confirm&id=1&token=abc", RetentionHours: 24})
	require.NoError(t, err)
	assert.Contains(t, r.Body, "https://lms/registration?view=confirm&id=1&token=abc")
	assert.Contains(t, r.Body, "within the next 24 hours")
}
