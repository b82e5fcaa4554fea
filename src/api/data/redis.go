package data

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	verifyRatePrefix    = "verify:rate:"
	trendingKey         = "trending:results"
	streamVerifications = "factcheck.verifications"
)

func MustRedis(url string) *redis.Client {
	opt, err := redis.ParseURL(url)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	return redis.NewClient(opt)
}

// AllowVerify bumps the caller's one-minute verification counter and reports
// whether this request is still within the limit. Fails open on redis errors
// so an unavailable cache never blocks verification.
func AllowVerify(ctx context.Context, rdb *redis.Client, userID string, limit int) bool {
	key := verifyRatePrefix + userID
	n, err := rdb.Incr(ctx, key).Result()
	if err != nil {
		log.Printf("rate limit check failed for %s: %v", userID, err)
		return true
	}
	if n == 1 {
		rdb.Expire(ctx, key, time.Minute)
	}
	return n <= int64(limit)
}

// PublishVerification emits a completed verification onto the event stream
// for downstream consumers. Best effort.
func PublishVerification(ctx context.Context, rdb *redis.Client, payload map[string]interface{}) error {
	_, err := rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: streamVerifications,
		Values: payload,
	}).Result()
	return err
}
