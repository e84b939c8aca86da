package redis

import (
	"context"
	"time"

	goredis "github.com/go-redis/redis/v8"
)

// SetHash implements model.Cache: writes fields into a hash and sets its TTL.
// A ttlSeconds of 0 leaves the key without an expiry (used for short-TTL
// "current bar" hashes that are naturally overwritten every bucket).
func (s *Store) SetHash(ctx context.Context, key string, fields map[string]string, ttlSeconds int) error {
	vals := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		vals[k] = v
	}
	pipe := s.client.Pipeline()
	pipe.HSet(ctx, key, vals)
	if ttlSeconds > 0 {
		pipe.Expire(ctx, key, time.Duration(ttlSeconds)*time.Second)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// GetHash implements model.Cache: reads all fields of a hash. Returns an
// empty, non-nil map on a cache miss.
func (s *Store) GetHash(ctx context.Context, key string) (map[string]string, error) {
	res, err := s.client.HGetAll(ctx, key).Result()
	if err != nil && err != goredis.Nil {
		return nil, err
	}
	return res, nil
}

// PushSortedSet implements model.Cache: adds a member scored by ts, then
// trims the set to its most recent trimTo members.
func (s *Store) PushSortedSet(ctx context.Context, key string, score float64, member string, trimTo int) error {
	pipe := s.client.Pipeline()
	pipe.ZAdd(ctx, key, &goredis.Z{Score: score, Member: member})
	if trimTo > 0 {
		// Keep the trimTo highest-scored (most recent) members.
		pipe.ZRemRangeByRank(ctx, key, 0, int64(-trimTo-1))
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Publish implements model.Cache.
func (s *Store) Publish(ctx context.Context, channel string, payload []byte) error {
	return s.client.Publish(ctx, channel, payload).Err()
}
