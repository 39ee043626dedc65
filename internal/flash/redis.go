package flash

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// messageTTL bounds how long unread flashes of abandoned sessions are kept.
const messageTTL = time.Hour

type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to the server described by a redis:// URL.
func NewRedisStore(connectionString string) (*RedisStore, error) {
	options, err := redis.ParseURL(connectionString)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(options)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to reach redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

func flashKey(session string) string {
	return "flash:" + session
}

func (s *RedisStore) Push(ctx context.Context, session, message string) error {
	key := flashKey(session)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, message)
		pipe.Expire(ctx, key, messageTTL)
		return nil
	})
	return err
}

func (s *RedisStore) Pop(ctx context.Context, session string) ([]string, error) {
	key := flashKey(session)
	var messages *redis.StringSliceCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		messages = pipe.LRange(ctx, key, 0, -1)
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return messages.Val(), nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
