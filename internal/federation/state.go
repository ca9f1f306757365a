package federation

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultStatePrefix = "federation:state:"

// ErrInvalidState is returned when a callback carries a state that was
// never issued, already consumed, or expired.
var ErrInvalidState = errors.New("federation: invalid or expired state")

// StateStore issues one-time state tokens for the redirect flow. States
// live in Redis so any instance can consume a state issued by another.
type StateStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewStateStore constructs a StateStore with the given state lifetime.
func NewStateStore(client *redis.Client, ttl time.Duration) *StateStore {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &StateStore{
		client: client,
		ttl:    ttl,
		prefix: defaultStatePrefix,
	}
}

// Issue generates a random state token and records it with a TTL.
func (s *StateStore) Issue(ctx context.Context) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	state := base64.RawURLEncoding.EncodeToString(buf)

	ok, err := s.client.SetNX(ctx, s.prefix+state, "1", s.ttl).Result()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", errors.New("federation: state collision")
	}
	return state, nil
}

// Consume atomically removes the state. A second consume of the same
// state fails, which blocks callback replay.
func (s *StateStore) Consume(ctx context.Context, state string) error {
	if state == "" {
		return ErrInvalidState
	}
	_, err := s.client.GetDel(ctx, s.prefix+state).Result()
	if errors.Is(err, redis.Nil) {
		return ErrInvalidState
	}
	return err
}
