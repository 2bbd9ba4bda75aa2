package classify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const redisRecordsKey = "granola:classifications"

// RedisStore persists classification records in a Redis hash, one field
// per meeting ID. It lets several server instances share one warm cache.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis at addr and verifies the connection.
func NewRedisStore(ctx context.Context, addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Load(ctx context.Context) (map[string]Record, error) {
	fields, err := s.client.HGetAll(ctx, redisRecordsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("loading classifications from redis: %w", err)
	}

	records := make(map[string]Record, len(fields))
	for id, raw := range fields {
		var rec Record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			// Skip torn fields rather than failing the whole load.
			continue
		}
		records[id] = rec
	}
	return records, nil
}

func (s *RedisStore) Put(ctx context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding classification record: %w", err)
	}
	if err := s.client.HSet(ctx, redisRecordsKey, rec.MeetingID, data).Err(); err != nil {
		return fmt.Errorf("storing classification for %s: %w", rec.MeetingID, err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
