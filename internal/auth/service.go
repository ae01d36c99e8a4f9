package auth

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/builtbymaxim/healthpulse/pkg"

	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultTTL       = 24 * 7 * time.Hour
	sessionKeyPrefix = "healthpulse-session||"
	tokensSetKey     = "healthpulse-sessions"
)

var ErrWrongPassword = errors.New("wrong credentials")

type Admin struct {
	Username     string
	PasswordHash string
}

type Credentials struct {
	Username string
	Password string
}

type LoginSession struct {
	Token     string
	CreatedAt time.Time
}

// Service owns admin logins. Tokens live in redis, keyed per session,
// plus a set of all known tokens so ScanAndClean can walk them.
type Service struct {
	admin       *Admin
	redisClient *redis.Client
	ttl         time.Duration
	// ability to inject random string generator func for tokens (for unit and dev testing)
	RandStringFunc func(s int) (string, error)
}

func NewAuthService(
	admin *Admin,
	ttl time.Duration,
	redisClient *redis.Client,
) *Service {
	return &Service{
		admin:          admin,
		ttl:            ttl,
		redisClient:    redisClient,
		RandStringFunc: pkg.GenerateRandomString,
	}
}

func (as *Service) Login(ctx context.Context, credentials Credentials, createdAt time.Time) (string, error) {
	if credentials.Username != as.admin.Username {
		return "", ErrWrongPassword
	}
	if !pkg.CheckPasswordHash(credentials.Password, as.admin.PasswordHash) {
		return "", ErrWrongPassword
	}

	token, err := as.RandStringFunc(35)
	if err != nil {
		return "", err
	}

	if err := as.redisClient.Set(ctx, sessionKeyPrefix+token, createdAt.Unix(), 0).Err(); err != nil {
		return "", err
	}

	// track the token so ScanAndClean can find it later
	if err := as.redisClient.SAdd(ctx, tokensSetKey, token).Err(); err != nil {
		return "", err
	}

	return token, nil
}

// Logout marks the session dead by zeroing its created-at value. A
// second logout with the same token reports false.
func (as *Service) Logout(ctx context.Context, token string) (bool, error) {
	createdAtRaw, err := as.redisClient.Get(ctx, sessionKeyPrefix+token).Result()
	if err != nil {
		return false, err
	}

	createdAtUnix, err := strconv.ParseInt(createdAtRaw, 10, 64)
	if err != nil {
		return false, err
	}

	if err := as.redisClient.Set(ctx, sessionKeyPrefix+token, 0, 0).Err(); err != nil {
		return false, err
	}

	if err := as.redisClient.SRem(ctx, tokensSetKey, token).Err(); err != nil {
		return false, err
	}

	return createdAtUnix > 0, nil
}

// ScanAndClean walks all known sessions and removes the ones past the TTL.
func (as *Service) ScanAndClean(ctx context.Context) {
	sessionTokens, err := as.redisClient.SMembers(ctx, tokensSetKey).Result()
	if err != nil {
		log.Errorf("auth scan and clean, get sessions: %s", err)
		return
	}
	if len(sessionTokens) == 0 {
		log.Debugln("auth scan and clean: no sessions")
		return
	}

	log.Warnf("auth scan and clean: checking %d sessions ...", len(sessionTokens))

	var expired []string
	for _, token := range sessionTokens {
		createdAtRaw, err := as.redisClient.Get(ctx, sessionKeyPrefix+token).Result()
		if err != nil {
			log.Errorf("auth scan and clean, get session %s: %s", token, err)
			continue
		}

		createdAtUnix, err := strconv.ParseInt(createdAtRaw, 10, 64)
		if err != nil {
			log.Errorf("auth scan and clean, parse session %s: %s", token, err)
			continue
		}

		if time.Since(time.Unix(createdAtUnix, 0)) > as.ttl {
			expired = append(expired, token)
		}
	}

	for _, token := range expired {
		if err := as.redisClient.Del(ctx, sessionKeyPrefix+token).Err(); err != nil {
			log.Errorf("auth scan and clean, remove session %s: %s", token, err)
			continue
		}
		if err := as.redisClient.SRem(ctx, tokensSetKey, token).Err(); err != nil {
			log.Errorf("auth scan and clean, remove token %s: %s", token, err)
			continue
		}
	}

	log.Warnf("auth scan and clean: removed %d of %d sessions", len(expired), len(sessionTokens))
}
