package cooldown

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	id "mintgate/pkg/domain"
)

const lastMintKeyPrefix = "mint:cooldown:"

// RedisStore shares last-mint times across instances. Keys expire once the
// cooldown window has certainly passed, so the keyspace stays bounded.
type RedisStore struct {
	client *redis.Client
	// ttl should be at least the mint cooldown; an expired key reads as
	// "never minted", which is only safe once the cooldown has elapsed.
	ttl time.Duration
}

// NewRedis constructs a Redis-backed cooldown store.
func NewRedis(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Last(ctx context.Context, identity id.Identity) (time.Time, bool, error) {
	val, err := s.client.Get(ctx, lastMintKeyPrefix+identity.String()).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	unix, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, false, err
	}
	return time.Unix(unix, 0), true, nil
}

func (s *RedisStore) Touch(ctx context.Context, identity id.Identity, at time.Time) error {
	key := lastMintKeyPrefix + identity.String()
	value := strconv.FormatInt(at.Unix(), 10)
	return s.client.Set(ctx, key, value, s.ttl).Err()
}
