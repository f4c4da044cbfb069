package db

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/H3199/duunikanban/internal/events"
)

// OpenPublisher connects the event publisher named by redisURL. An empty URL
// disables events: the result is events.Nop and a no-op close. The returned
// close func releases the Redis connection.
func OpenPublisher(ctx context.Context, redisURL string) (events.Publisher, func() error, error) {
	if redisURL == "" {
		return events.Nop{}, func() error { return nil }, nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse REDIS_URL %s: %w", redact(redisURL), err)
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("redis ping %s: %w", redact(redisURL), err)
	}
	return events.NewRedis(rdb), rdb.Close, nil
}
