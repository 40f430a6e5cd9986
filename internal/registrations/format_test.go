package registrations

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aura-lms/registration/internal/models"
)

func TestCountryName(t *testing.T) {
	assert.Equal(t, "United Kingdom", CountryName("GB"))
	assert.Equal(t, "France", CountryName("fr"))
	assert.Equal(t, "QQ", CountryName("QQ"))
	assert.Equal(t, "", CountryName(""))
}

func TestCountriesSortedByName(t *testing.T) {
	list := Countries()
	require.NotEmpty(t, list)

	codes := map[string]bool{}
	for i, c := range list {
		codes[c.Code] = true
		if i > 0 {
			assert.LessOrEqual(t, list[i-1].Name, c.Name)
		}
	}
	assert.True(t, codes["GB"])
	assert.True(t, codes["US"])
}

func TestFormatRow(t *testing.T) {
	assessor := uuid.New()
	dup := uuid.New()
	reg := &models.Registration{
		ID:        uuid.New(),
		TenantID:  uuid.New(),
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "ada@example.org",
		Country:   "GB",
		Interests: []string{"Maths", "Engines"},
		Confirmed: true,
		Approved:  models.ApprovalNotified,
		Assessor:  &assessor,
		CreatedAt: time.Date(2026, 3, 4, 17, 30, 0, 0, time.UTC),
	}

	row := FormatRow(reg, "Acme Academy", &dup)
	assert.Equal(t, "Acme Academy", row.Tenant)
	assert.Equal(t, "United Kingdom", row.CountryName)
	assert.Equal(t, "Maths, Engines", row.Interests)
	assert.Equal(t, "Yes", row.Confirmed)
	assert.Equal(t, "notified", row.Status)
	assert.True(t, row.Notified)
	assert.True(t, row.AssessorSet)
	assert.Equal(t, &dup, row.DuplicateUserID)
	assert.Equal(t, "04/03/26", row.Created)

	reg.Confirmed = false
	reg.Approved = models.ApprovalPending
	reg.Assessor = nil
	row = FormatRow(reg, "", nil)
	assert.Equal(t, "No", row.Confirmed)
	assert.False(t, row.Notified)
	assert.False(t, row.AssessorSet)
	assert.Nil(t, row.DuplicateUserID)
}

func TestListForReviewScopesToAdministeredTenants(t *testing.T) {
	f := newFixture(t)
	otherAdmin := uuid.New()
	other := f.tenants.add("Beta Institute", otherAdmin)

	mine := f.seed("ada@example.org", true, models.ApprovalPending)
	f.advance(time.Minute)
	notified := f.seed("bob@example.org", true, models.ApprovalNotified)
	notified.FirstName = "Bob"
	f.store.put(notified)
	f.seed("done@example.org", true, models.ApprovalApproved)
	f.seed("no@example.org", true, models.ApprovalRejected)
	theirs := f.store.put(&models.Registration{TenantID: other, FirstName: "Cy", LastName: "Borg", Email: "cy@example.org", CreatedAt: f.now})

	existing := uuid.New()
	f.accounts.On("FindSimilar", mock.Anything, "Ada", "Lovelace").Return(&models.User{ID: existing}, nil)
	f.accounts.On("FindSimilar", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)

	page, err := f.svc.ListForReview(context.Background(), Actor{UserID: f.tenantAdm}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	require.Len(t, page.Rows, 2)
	ids := []uuid.UUID{page.Rows[0].ID, page.Rows[1].ID}
	assert.ElementsMatch(t, []uuid.UUID{mine.ID, notified.ID}, ids)
	for _, row := range page.Rows {
		assert.Equal(t, "Acme Academy", row.Tenant)
		if row.ID == mine.ID {
			require.NotNil(t, row.DuplicateUserID)
			assert.Equal(t, existing, *row.DuplicateUserID)
		} else {
			assert.Nil(t, row.DuplicateUserID)
		}
	}

	page, err = f.svc.ListForReview(context.Background(), Actor{UserID: uuid.New(), GlobalAdmin: true}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	var seen bool
	for _, row := range page.Rows {
		if row.ID == theirs.ID {
			seen = true
			assert.Equal(t, "Beta Institute", row.Tenant)
		}
	}
	assert.True(t, seen)

	page, err = f.svc.ListForReview(context.Background(), Actor{UserID: uuid.New()}, 10, 0)
	require.NoError(t, err)
	assert.Zero(t, page.Total)
	assert.Empty(t, page.Rows)
}

func TestListForReviewPaging(t *testing.T) {
	f := newFixture(t)
	f.accounts.On("FindSimilar", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)
	var newest *models.Registration
	for _, email := range []string{"a@example.org", "b@example.org", "c@example.org"} {
		newest = f.seed(email, true, models.ApprovalPending)
		f.advance(time.Minute)
	}

	page, err := f.svc.ListForReview(context.Background(), Actor{UserID: f.tenantAdm}, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	require.Len(t, page.Rows, 2)
	assert.Equal(t, newest.ID, page.Rows[0].ID)

	page, err = f.svc.ListForReview(context.Background(), Actor{UserID: f.tenantAdm}, 2, 2)
	require.NoError(t, err)
	assert.Len(t, page.Rows, 1)
}
