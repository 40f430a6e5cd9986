//go:build integration

package drafts_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/aura-lms/registration/internal/drafts"
	"github.com/aura-lms/registration/internal/models"
	"github.com/aura-lms/registration/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *drafts.Store
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.store = drafts.NewStore(s.redis.Client, time.Minute, nil)
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func newDraft() *drafts.Draft {
	return &drafts.Draft{Form: models.RegistrationForm{
		TenantID:  uuid.New(),
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "ada@example.org",
		Interests: []string{"maths", "engines"},
	}}
}

func (s *RedisStoreSuite) TestCreateAssignsTokenAndTTL() {
	ctx := context.Background()
	d := newDraft()
	s.Require().NoError(s.store.Create(ctx, d))
	s.NotEmpty(d.Token)
	s.False(d.CreatedAt.IsZero())

	ttl, err := s.redis.Client.TTL(ctx, "registration:draft:"+d.Token).Result()
	s.Require().NoError(err)
	s.Greater(ttl, time.Duration(0))
	s.LessOrEqual(ttl, time.Minute)

	got, err := s.store.Get(ctx, d.Token)
	s.Require().NoError(err)
	s.Equal(d.Form, got.Form)
	s.Nil(got.RecordID)
}

func (s *RedisStoreSuite) TestSaveUpdatesExistingDraft() {
	ctx := context.Background()
	d := newDraft()
	s.Require().NoError(s.store.Create(ctx, d))

	id := uuid.New()
	d.RecordID = &id
	d.Form.Comments = "updated"
	s.Require().NoError(s.store.Save(ctx, d))

	got, err := s.store.Get(ctx, d.Token)
	s.Require().NoError(err)
	s.Equal("updated", got.Form.Comments)
	s.Require().NotNil(got.RecordID)
	s.Equal(id, *got.RecordID)
}

func (s *RedisStoreSuite) TestSaveMissingDraft() {
	d := newDraft()
	d.Token = "missing"
	s.ErrorIs(s.store.Save(context.Background(), d), drafts.ErrNotFound)
}

func (s *RedisStoreSuite) TestDelete() {
	ctx := context.Background()
	d := newDraft()
	s.Require().NoError(s.store.Create(ctx, d))
	s.Require().NoError(s.store.Delete(ctx, d.Token))

	_, err := s.store.Get(ctx, d.Token)
	s.ErrorIs(err, drafts.ErrNotFound)
	s.NoError(s.store.Delete(ctx, d.Token))
}

func (s *RedisStoreSuite) TestUnreadableDraftIsDiscarded() {
	ctx := context.Background()
	s.Require().NoError(s.redis.Client.Set(ctx, "registration:draft:broken", "{not json", time.Minute).Err())

	_, err := s.store.Get(ctx, "broken")
	s.ErrorIs(err, drafts.ErrNotFound)

	n, err := s.redis.Client.Exists(ctx, "registration:draft:broken").Result()
	s.Require().NoError(err)
	s.Zero(n)
}
