// Package drafts keeps in-progress registration forms in Redis between the
// form and review steps.
package drafts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/aura-lms/registration/internal/models"
	"github.com/aura-lms/registration/pkg/utils"
)

const (
	keyPrefix = "registration:draft:"
	tokenSize = 32
)

// ErrNotFound is returned when a draft token is unknown or has expired.
var ErrNotFound = errors.New("draft not found")

// Draft is the wizard state carried between steps. RecordID is set when the
// draft edits an existing registration.
type Draft struct {
	Token     string                  `json:"token"`
	RecordID  *uuid.UUID              `json:"record_id,omitempty"`
	Form      models.RegistrationForm `json:"form"`
	CreatedAt time.Time               `json:"created_at"`
}

// Store persists drafts with a sliding TTL.
type Store struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewStore creates a draft store; every write resets the draft's TTL.
func NewStore(client *redis.Client, ttl time.Duration, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{client: client, ttl: ttl, logger: logger}
}

func key(token string) string { return keyPrefix + token }

// Create assigns a fresh token to d and stores it.
func (s *Store) Create(ctx context.Context, d *Draft) error {
	token, err := utils.GenerateToken(tokenSize)
	if err != nil {
		return fmt.Errorf("draft token: %w", err)
	}
	d.Token = token
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal draft: %w", err)
	}
	ok, err := s.client.SetNX(ctx, key(token), raw, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("store draft: %w", err)
	}
	if !ok {
		return fmt.Errorf("store draft: token collision")
	}
	return nil
}

// Save overwrites an existing draft. ErrNotFound if it has expired.
func (s *Store) Save(ctx context.Context, d *Draft) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal draft: %w", err)
	}
	ok, err := s.client.SetXX(ctx, key(d.Token), raw, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("store draft: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// Get loads a draft by token.
func (s *Store) Get(ctx context.Context, token string) (*Draft, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	raw, err := s.client.Get(ctx, key(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load draft: %w", err)
	}
	var d Draft
	if err := json.Unmarshal(raw, &d); err != nil {
		s.logger.Warn("discarding unreadable draft", zap.Error(err))
		_ = s.client.Del(ctx, key(token)).Err()
		return nil, ErrNotFound
	}
	return &d, nil
}

// Delete removes a draft. Deleting a missing draft is not an error.
func (s *Store) Delete(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, key(token)).Err(); err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	return nil
}
