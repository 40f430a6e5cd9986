//go:build integration

package emaillogs_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/aura-lms/registration/internal/emaillogs"
	"github.com/aura-lms/registration/internal/models"
	"github.com/aura-lms/registration/pkg/testutil/containers"
)

type RepositorySuite struct {
	suite.Suite
	pg   *containers.PostgresContainer
	repo *emaillogs.Repository
}

func TestRepositorySuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RepositorySuite))
}

func (s *RepositorySuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	s.repo = emaillogs.NewRepository(s.pg.Pool)
}

func (s *RepositorySuite) SetupTest() {
	s.Require().NoError(s.pg.TruncateTables(context.Background(), "email_logs"))
}

func (s *RepositorySuite) create(regID uuid.UUID, typ string) *models.EmailLog {
	el := &models.EmailLog{RegistrationID: &regID, EmailType: typ, RecipientEmail: "ada@example.org", Subject: "Subject " + typ}
	s.Require().NoError(s.repo.Create(context.Background(), el, "body of "+typ))
	return el
}

func (s *RepositorySuite) TestCreateAndGet() {
	ctx := context.Background()
	el := s.create(uuid.New(), models.EmailTypeConfirmation)
	s.NotEqual(uuid.Nil, el.ID)
	s.Equal(models.EmailLogStatusPending, el.Status)

	got, body, err := s.repo.Get(ctx, el.ID)
	s.Require().NoError(err)
	s.Equal("body of "+models.EmailTypeConfirmation, body)
	s.Equal(el.RecipientEmail, got.RecipientEmail)
	s.Nil(got.SentAt)

	_, _, err = s.repo.Get(ctx, uuid.New())
	s.ErrorIs(err, emaillogs.ErrNotFound)
}

func (s *RepositorySuite) TestDeliveryStates() {
	ctx := context.Background()
	el := s.create(uuid.New(), models.EmailTypeWelcome)

	s.Require().NoError(s.repo.MarkFailed(ctx, el.ID, "relay down", false))
	got, _, err := s.repo.Get(ctx, el.ID)
	s.Require().NoError(err)
	s.Equal(models.EmailLogStatusPending, got.Status)
	s.Equal(1, got.Attempts)
	s.Equal("relay down", got.ErrorMessage)

	s.Require().NoError(s.repo.MarkFailed(ctx, el.ID, "relay down", true))
	got, _, err = s.repo.Get(ctx, el.ID)
	s.Require().NoError(err)
	s.Equal(models.EmailLogStatusFailed, got.Status)

	s.Require().NoError(s.repo.MarkPending(ctx, el.ID))
	s.Require().NoError(s.repo.MarkSent(ctx, el.ID))
	got, _, err = s.repo.Get(ctx, el.ID)
	s.Require().NoError(err)
	s.Equal(models.EmailLogStatusSent, got.Status)
	s.Equal(3, got.Attempts)
	s.NotNil(got.SentAt)
	s.Empty(got.ErrorMessage)
}

func (s *RepositorySuite) TestListByRegistration() {
	ctx := context.Background()
	regID := uuid.New()
	first := s.create(regID, models.EmailTypeConfirmation)
	second := s.create(regID, models.EmailTypeWelcome)
	s.create(uuid.New(), models.EmailTypeRejection)
	_, err := s.pg.Pool.Exec(ctx, `UPDATE email_logs SET created_at = NOW() - INTERVAL '1 hour' WHERE id = $1`, first.ID)
	s.Require().NoError(err)

	list, err := s.repo.ListByRegistration(ctx, regID)
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal(second.ID, list[0].ID)
	s.Equal(first.ID, list[1].ID)
}
