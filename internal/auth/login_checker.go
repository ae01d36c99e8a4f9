package auth

import (
	"context"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

var _ Checker = (*LoginChecker)(nil)

// LoginChecker reads session tokens straight from redis. Sessions past
// their TTL are reported as logged out and left for ScanAndClean to
// collect later.
type LoginChecker struct {
	ttl         time.Duration
	redisClient *redis.Client
}

func NewLoginChecker(ttl time.Duration, redisClient *redis.Client) *LoginChecker {
	return &LoginChecker{
		ttl:         ttl,
		redisClient: redisClient,
	}
}

func (lc *LoginChecker) IsLogged(ctx context.Context, token string) (bool, error) {
	createdAtRaw, err := lc.redisClient.Get(ctx, sessionKeyPrefix+token).Result()
	if err != nil {
		return false, err
	}

	createdAtUnix, err := strconv.ParseInt(createdAtRaw, 10, 64)
	if err != nil {
		return false, err
	}

	// a logged-out session has its created-at zeroed, which also fails
	// this age check
	sessionAge := time.Since(time.Unix(createdAtUnix, 0))
	return sessionAge <= lc.ttl, nil
}
