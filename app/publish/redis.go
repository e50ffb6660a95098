package publish

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lysyi3m/chat-comb/app/feed"
)

// RedisPublisher keeps the latest records of each target in a capped Redis
// list, newest first.
type RedisPublisher struct {
	client *redis.Client
	key    string
	maxLen int
}

func NewRedisPublisher(addr, key string, maxLen int) (*RedisPublisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisPublisherWithClient(client, key, maxLen), nil
}

func NewRedisPublisherWithClient(client *redis.Client, key string, maxLen int) *RedisPublisher {
	return &RedisPublisher{
		client: client,
		key:    key,
		maxLen: maxLen,
	}
}

func (p *RedisPublisher) Name() string {
	return "redis"
}

func (p *RedisPublisher) ListKey(targetID int) string {
	return fmt.Sprintf("%s:%d", p.key, targetID)
}

// Publish pushes the records and trims the list in one round trip.
func (p *RedisPublisher) Publish(ctx context.Context, targetID int, records []feed.Record) error {
	if len(records) == 0 {
		return nil
	}

	values := make([]any, 0, len(records))
	for _, record := range records {
		data, err := encode(targetID, record)
		if err != nil {
			return err
		}
		values = append(values, data)
	}

	key := p.ListKey(targetID)
	pipe := p.client.TxPipeline()
	pipe.LPush(ctx, key, values...)
	if p.maxLen > 0 {
		pipe.LTrim(ctx, key, 0, int64(p.maxLen-1))
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to push records to %s: %w", key, err)
	}

	return nil
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
