package idgen

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Clock abstracts the time source for the generator.
type Clock interface {
	// Now returns the current timestamp in milliseconds.
	Now() int64
}

// SystemClock uses the local system time.
type SystemClock struct{}

func (SystemClock) Now() int64 {
	return time.Now().UnixMilli()
}

// RedisClock reads time from a Redis server with the TIME command, so that
// generators on several hosts share one time source.
type RedisClock struct {
	client  redis.UniversalClient
	timeout time.Duration
	logger  *zap.Logger
}

func NewRedisClock(logger *zap.Logger, client redis.UniversalClient, timeout time.Duration) *RedisClock {
	return &RedisClock{
		client:  client,
		timeout: timeout,
		logger:  logger,
	}
}

func (r *RedisClock) Now() int64 {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	res, err := r.client.Time(ctx).Result()
	if err != nil {
		// a rewound fallback reading is still refused by the generator
		r.logger.Warn("redis TIME failed, using local clock", zap.Error(err))
		return time.Now().UnixMilli()
	}
	return res.UnixMilli()
}
