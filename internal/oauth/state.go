package oauth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// StateStore holds one-time OAuth state values between the redirect to the
// provider and the callback.
type StateStore interface {
	Save(ctx context.Context, state string, ttl time.Duration) error
	// Consume removes state and reports whether it was present and unexpired.
	Consume(ctx context.Context, state string) (bool, error)
}

// redisClient is the part of redis.Cmdable the state store needs.
type redisClient interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	GetDel(ctx context.Context, key string) *redis.StringCmd
}

// RedisStateStore keeps states in Redis so any replica can serve the callback.
type RedisStateStore struct {
	client redisClient
	prefix string
}

func NewRedisStateStore(client redisClient) *RedisStateStore {
	return &RedisStateStore{client: client, prefix: "accord:oauth_state:"}
}

func (s *RedisStateStore) Save(ctx context.Context, state string, ttl time.Duration) error {
	ok, err := s.client.SetNX(ctx, s.prefix+state, "1", ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to save oauth state: %w", err)
	}
	if !ok {
		return errors.New("oauth state collision")
	}
	return nil
}

// Consume uses GETDEL so a state can be redeemed once.
func (s *RedisStateStore) Consume(ctx context.Context, state string) (bool, error) {
	err := s.client.GetDel(ctx, s.prefix+state).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to consume oauth state: %w", err)
	}
	return true, nil
}

// MemoryStateStore is a single-process StateStore for development.
type MemoryStateStore struct {
	mu     sync.Mutex
	states map[string]time.Time
	now    func() time.Time
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{states: make(map[string]time.Time), now: time.Now}
}

func (s *MemoryStateStore) Save(_ context.Context, state string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, exp := range s.states {
		if !now.Before(exp) {
			delete(s.states, k)
		}
	}
	s.states[state] = now.Add(ttl)
	return nil
}

func (s *MemoryStateStore) Consume(_ context.Context, state string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	exp, ok := s.states[state]
	if !ok {
		return false, nil
	}
	delete(s.states, state)
	return s.now().Before(exp), nil
}
