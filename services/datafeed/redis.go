package datafeed

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/vainnor/atc-hours/types"
)

// RedisSource reads the datafeed blob that the refresher process writes
// under a single key.
type RedisSource struct {
	rdb *redis.Client
	key string
}

func NewRedisSource(rdb *redis.Client, key string) *RedisSource {
	return &RedisSource{rdb: rdb, key: key}
}

func (s *RedisSource) Latest(ctx context.Context) (*types.VatsimData, error) {
	body, err := s.rdb.Get(ctx, s.key).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("%w: key %s not set", ErrSnapshotUnavailable, s.key)
	}
	if err != nil {
		return nil, errors.Join(ErrSnapshotUnavailable, err)
	}
	return Decode(body)
}

func (s *RedisSource) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}
