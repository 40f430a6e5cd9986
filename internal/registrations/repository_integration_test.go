//go:build integration

package registrations_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/aura-lms/registration/internal/models"
	"github.com/aura-lms/registration/internal/registrations"
	"github.com/aura-lms/registration/pkg/testutil/containers"
)

type RepositorySuite struct {
	suite.Suite
	pg     *containers.PostgresContainer
	repo   *registrations.Repository
	tenant uuid.UUID
	other  uuid.UUID
}

func TestRepositorySuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RepositorySuite))
}

func (s *RepositorySuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	s.repo = registrations.NewRepository(s.pg.Pool)
}

func (s *RepositorySuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.pg.TruncateTables(ctx, "registrations", "organizations"))
	s.tenant = s.organization("Acme Academy", "acme")
	s.other = s.organization("Beta Institute", "beta")
}

func (s *RepositorySuite) organization(name, slug string) uuid.UUID {
	var id uuid.UUID
	err := s.pg.Pool.QueryRow(context.Background(),
		`INSERT INTO organizations (name, slug) VALUES ($1, $2) RETURNING id`, name, slug).Scan(&id)
	s.Require().NoError(err)
	return id
}

func (s *RepositorySuite) insert(email string, tenant uuid.UUID) *models.Registration {
	reg := &models.Registration{
		TenantID:  tenant,
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     email,
		Country:   "GB",
		Interests: []string{"Maths", "Engines"},
	}
	s.Require().NoError(s.repo.Insert(context.Background(), reg))
	return reg
}

func (s *RepositorySuite) backdate(id uuid.UUID, age time.Duration) {
	_, err := s.pg.Pool.Exec(context.Background(),
		`UPDATE registrations SET created_at = NOW() - make_interval(secs => $2) WHERE id = $1`, id, age.Seconds())
	s.Require().NoError(err)
}

func (s *RepositorySuite) TestInsertAndFind() {
	ctx := context.Background()
	reg := s.insert("ada@example.org", s.tenant)
	s.NotEqual(uuid.Nil, reg.ID)
	s.False(reg.Confirmed)
	s.Equal(models.ApprovalPending, reg.Approved)
	s.False(reg.CreatedAt.IsZero())

	got, err := s.repo.Find(ctx, registrations.Lookup{ID: reg.ID})
	s.Require().NoError(err)
	s.Equal([]string{"Maths", "Engines"}, got.Interests)
	s.Nil(got.Assessor)
	s.Nil(got.UpdatedAt)

	got, err = s.repo.Find(ctx, registrations.Lookup{Email: "ada@example.org"})
	s.Require().NoError(err)
	s.Equal(reg.ID, got.ID)

	_, err = s.repo.Find(ctx, registrations.Lookup{ID: reg.ID, Email: "bob@example.org"})
	s.ErrorIs(err, registrations.ErrNotFound)
	_, err = s.repo.Find(ctx, registrations.Lookup{})
	s.ErrorIs(err, registrations.ErrInvalidLookup)
}

func (s *RepositorySuite) TestInsertDuplicateEmail() {
	s.insert("ada@example.org", s.tenant)
	err := s.repo.Insert(context.Background(), &models.Registration{
		TenantID: s.other, FirstName: "Ada", LastName: "Again", Email: "ada@example.org",
	})
	s.ErrorIs(err, registrations.ErrEmailTaken)
}

func (s *RepositorySuite) TestSetConfirmedIsConditional() {
	ctx := context.Background()
	reg := s.insert("ada@example.org", s.tenant)
	at := time.Now().UTC().Truncate(time.Microsecond)

	s.Require().NoError(s.repo.SetConfirmed(ctx, reg.ID, at))
	s.ErrorIs(s.repo.SetConfirmed(ctx, reg.ID, at), registrations.ErrWriteFailed)
	s.ErrorIs(s.repo.SetConfirmed(ctx, uuid.New(), at), registrations.ErrWriteFailed)

	got, err := s.repo.Find(ctx, registrations.Lookup{ID: reg.ID})
	s.Require().NoError(err)
	s.True(got.Confirmed)
	s.Require().NotNil(got.UpdatedAt)
	s.True(at.Equal(*got.UpdatedAt))
}

func (s *RepositorySuite) TestSetReviewAndResubmission() {
	ctx := context.Background()
	reg := s.insert("ada@example.org", s.tenant)
	assessor := uuid.New()
	at := time.Now().UTC()

	s.Require().NoError(s.repo.SetReview(ctx, reg.ID, models.ApprovalNotified, assessor, at))
	got, err := s.repo.Find(ctx, registrations.Lookup{ID: reg.ID})
	s.Require().NoError(err)
	s.Equal(models.ApprovalNotified, got.Approved)
	s.Require().NotNil(got.Assessor)
	s.Equal(assessor, *got.Assessor)

	got.Position = "Analyst"
	got.Interests = []string{"Engines"}
	got.Email = "changed@example.org"
	got.TenantID = s.other
	s.Require().NoError(s.repo.ResetForResubmission(ctx, got, at.Add(time.Minute)))

	again, err := s.repo.Find(ctx, registrations.Lookup{ID: reg.ID})
	s.Require().NoError(err)
	s.Equal(models.ApprovalPending, again.Approved)
	s.Equal("Analyst", again.Position)
	s.Equal([]string{"Engines"}, again.Interests)
	s.Equal("ada@example.org", again.Email)
	s.Equal(s.tenant, again.TenantID)
	s.Require().NotNil(again.Assessor)
	s.Equal(assessor, *again.Assessor)

	s.ErrorIs(s.repo.SetReview(ctx, uuid.New(), models.ApprovalApproved, assessor, at), registrations.ErrWriteFailed)
}

func (s *RepositorySuite) TestDeleteExpiredSparesConfirmed() {
	ctx := context.Background()
	stale := s.insert("stale@example.org", s.tenant)
	fresh := s.insert("fresh@example.org", s.tenant)
	kept := s.insert("kept@example.org", s.tenant)
	s.Require().NoError(s.repo.SetConfirmed(ctx, kept.ID, time.Now()))
	s.backdate(stale.ID, 48*time.Hour)
	s.backdate(kept.ID, 48*time.Hour)

	ids, err := s.repo.DeleteExpired(ctx, time.Now().Add(-24*time.Hour))
	s.Require().NoError(err)
	s.Equal([]uuid.UUID{stale.ID}, ids)

	_, err = s.repo.Find(ctx, registrations.Lookup{ID: stale.ID})
	s.ErrorIs(err, registrations.ErrNotFound)
	for _, id := range []uuid.UUID{fresh.ID, kept.ID} {
		_, err = s.repo.Find(ctx, registrations.Lookup{ID: id})
		s.NoError(err)
	}
}

func (s *RepositorySuite) TestListForReview() {
	ctx := context.Background()
	a := s.insert("a@example.org", s.tenant)
	b := s.insert("b@example.org", s.tenant)
	c := s.insert("c@example.org", s.other)
	d := s.insert("d@example.org", s.tenant)
	s.backdate(a.ID, 3*time.Hour)
	s.backdate(b.ID, 2*time.Hour)
	s.Require().NoError(s.repo.SetReview(ctx, b.ID, models.ApprovalNotified, uuid.New(), time.Now()))
	s.Require().NoError(s.repo.SetReview(ctx, d.ID, models.ApprovalRejected, uuid.New(), time.Now()))

	list, total, err := s.repo.ListForReview(ctx, registrations.ReviewFilter{Limit: 10})
	s.Require().NoError(err)
	s.Equal(3, total)
	s.Len(list, 3)
	s.Equal(c.ID, list[0].ID)

	list, total, err = s.repo.ListForReview(ctx, registrations.ReviewFilter{TenantIDs: []uuid.UUID{s.tenant}, Limit: 1, Offset: 1})
	s.Require().NoError(err)
	s.Equal(2, total)
	s.Require().Len(list, 1)
	s.Equal(a.ID, list[0].ID)

	list, total, err = s.repo.ListForReview(ctx, registrations.ReviewFilter{TenantIDs: []uuid.UUID{}, Limit: 10})
	s.Require().NoError(err)
	s.Zero(total)
	s.Empty(list)
}

func (s *RepositorySuite) TestEraseByEmail() {
	ctx := context.Background()
	s.insert("ada@example.org", s.tenant)
	s.insert("bob@example.org", s.tenant)

	list, err := s.repo.ListByEmail(ctx, "ada@example.org")
	s.Require().NoError(err)
	s.Len(list, 1)

	n, err := s.repo.DeleteByEmail(ctx, "ada@example.org")
	s.Require().NoError(err)
	s.EqualValues(1, n)

	list, err = s.repo.ListByEmail(ctx, "ada@example.org")
	s.Require().NoError(err)
	s.Empty(list)
}
