package negotiation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/bulkquote-backend/pkg/redis"
)

// ErrSessionNotFound is returned when a session token is unknown or expired.
var ErrSessionNotFound = errors.New("payment session not found")

type sessionRedis interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	PaymentSessionKey(token string) string
}

type redisSessionStore struct {
	client sessionRedis
}

// NewSessionStore keeps payment sessions in Redis under the payment_session
// namespace. Expiry is enforced by the key TTL.
func NewSessionStore(client *redis.Client) SessionStore {
	return &redisSessionStore{client: client}
}

func (s *redisSessionStore) Save(ctx context.Context, session PaymentSession, ttl time.Duration) error {
	if session.Token == "" {
		return errors.New("session token required")
	}
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal payment session: %w", err)
	}
	return s.client.Set(ctx, s.client.PaymentSessionKey(session.Token), string(raw), ttl)
}

func (s *redisSessionStore) Find(ctx context.Context, token string) (*PaymentSession, error) {
	raw, err := s.client.Get(ctx, s.client.PaymentSessionKey(token))
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	var session PaymentSession
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return nil, fmt.Errorf("unmarshal payment session: %w", err)
	}
	return &session, nil
}

func (s *redisSessionStore) Delete(ctx context.Context, token string) error {
	return s.client.Del(ctx, s.client.PaymentSessionKey(token))
}
