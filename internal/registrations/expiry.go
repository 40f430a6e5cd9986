package registrations

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ExpiryPolicy decides when an unconfirmed registration has lapsed.
type ExpiryPolicy struct {
	Retention time.Duration
	Now       func() time.Time
}

func (p ExpiryPolicy) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// Expired reports whether a record created at createdAt is older than the retention window.
func (p ExpiryPolicy) Expired(createdAt time.Time) bool {
	return p.now().Sub(createdAt) > p.Retention
}

// Cutoff is the creation time before which unconfirmed records are expired.
func (p ExpiryPolicy) Cutoff() time.Time {
	return p.now().Add(-p.Retention)
}

// SweepExpired deletes unconfirmed registrations past the retention window.
// Confirmed records are never removed.
func (s *Service) SweepExpired(ctx context.Context) ([]uuid.UUID, error) {
	cutoff := s.expiry.Cutoff()
	ids, err := s.store.DeleteExpired(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("delete expired registrations: %w", err)
	}
	for _, id := range ids {
		s.logger.Info("expired registration deleted", zap.String("registration_id", id.String()))
	}
	s.metrics.AddSwept(len(ids))
	return ids, nil
}
