package access

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// RedisTokenStore is the key-value TokenStore. It holds a serialized
// snapshot of the owner taken at login time; expiry is enforced by the
// store's TTL rather than by explicit timestamp comparison, so resolved
// tokens carry a zero ExpireAt.
type RedisTokenStore struct {
	client *redis.Client
	prefix string
}

// DefaultKeyPrefix is used when no prefix is configured.
const DefaultKeyPrefix = "spinal:token:"

type ownerSnapshot struct {
	OwnerID string         `json:"owner_id"`
	Record  map[string]any `json:"record,omitempty"`
}

// NewRedisTokenStore creates a token store on the given redis client.
func NewRedisTokenStore(client *redis.Client, prefix string) *RedisTokenStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisTokenStore{client: client, prefix: prefix}
}

func (s *RedisTokenStore) key(code string) string {
	return s.prefix + code
}

// Issue creates a new token holding a snapshot of the owner, with the TTL
// derived from the expiry timestamp.
func (s *RedisTokenStore) Issue(ctx context.Context, owner *Owner, expireAt time.Time) (*Token, error) {
	token := &Token{Code: GenerateCode(), ExpireAt: expireAt, OwnerID: owner.ID}
	data, err := json.Marshal(ownerSnapshot{OwnerID: owner.ID, Record: owner.Record})
	if err != nil {
		return nil, err
	}
	if err := s.client.Set(ctx, s.key(token.Code), data, time.Until(expireAt)).Err(); err != nil {
		return nil, err
	}
	return token, nil
}

// Resolve looks up the owner snapshot. A key the store already expired away
// reports as not found, which the middleware maps to the expired-token
// signal.
func (s *RedisTokenStore) Resolve(ctx context.Context, code string) (*Token, *Owner, error) {
	data, err := s.client.Get(ctx, s.key(code)).Result()
	if err == redis.Nil {
		return nil, nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	var snapshot ownerSnapshot
	if err := json.Unmarshal([]byte(data), &snapshot); err != nil {
		return nil, nil, err
	}
	token := &Token{Code: code, OwnerID: snapshot.OwnerID}
	return token, &Owner{ID: snapshot.OwnerID, Record: snapshot.Record}, nil
}

// Refresh slides the TTL forward.
func (s *RedisTokenStore) Refresh(ctx context.Context, code string, expireAt time.Time) error {
	ok, err := s.client.Expire(ctx, s.key(code), time.Until(expireAt)).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrTokenNotFound
	}
	return nil
}

// Revoke deletes the token.
func (s *RedisTokenStore) Revoke(ctx context.Context, code string) error {
	return s.client.Del(ctx, s.key(code)).Err()
}
