package publicbooking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const inFlight = "in-flight"

// IdempotencyStore remembers which appointment an Idempotency-Key produced,
// so a retried submission does not book twice.
type IdempotencyStore struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewIdempotencyStore creates a store whose keys expire after ttl.
func NewIdempotencyStore(client *redis.Client, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &IdempotencyStore{redis: client, ttl: ttl}
}

func (s *IdempotencyStore) key(clinicID, key string) string {
	return fmt.Sprintf("booking:idempotency:%s:%s", clinicID, key)
}

// Claim reserves key. It returns claimed=false with the stored appointment
// ID when the key was already used; appointmentID is empty while the first
// request is still running.
func (s *IdempotencyStore) Claim(ctx context.Context, clinicID, key string) (claimed bool, appointmentID string, err error) {
	ok, err := s.redis.SetNX(ctx, s.key(clinicID, key), inFlight, s.ttl).Result()
	if err != nil {
		return false, "", fmt.Errorf("publicbooking: claim idempotency key: %w", err)
	}
	if ok {
		return true, "", nil
	}
	val, err := s.redis.Get(ctx, s.key(clinicID, key)).Result()
	if errors.Is(err, redis.Nil) {
		// Expired between the two calls; treat as a fresh claim.
		return s.Claim(ctx, clinicID, key)
	}
	if err != nil {
		return false, "", fmt.Errorf("publicbooking: read idempotency key: %w", err)
	}
	if val == inFlight {
		return false, "", nil
	}
	return false, val, nil
}

// Complete records the appointment a claimed key produced.
func (s *IdempotencyStore) Complete(ctx context.Context, clinicID, key, appointmentID string) error {
	if err := s.redis.Set(ctx, s.key(clinicID, key), appointmentID, s.ttl).Err(); err != nil {
		return fmt.Errorf("publicbooking: complete idempotency key: %w", err)
	}
	return nil
}

// Release frees a claimed key after a failed booking so the caller can retry.
func (s *IdempotencyStore) Release(ctx context.Context, clinicID, key string) error {
	if err := s.redis.Del(ctx, s.key(clinicID, key)).Err(); err != nil {
		return fmt.Errorf("publicbooking: release idempotency key: %w", err)
	}
	return nil
}
