package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/builtbymaxim/healthpulse/internal/telemetry/tracing"

	"github.com/go-redis/redis/v8"
)

// the active session is a single logical record, hence a fixed key
const activeSessionKey = "healthpulse-session-active"

var ErrNoActiveSession = errors.New("no active session")

// RedisStore persists the active session snapshot in Redis. One writer,
// last write wins, no history.
type RedisStore struct {
	redisClient *redis.Client
}

func NewRedisStore(redisClient *redis.Client) *RedisStore {
	return &RedisStore{
		redisClient: redisClient,
	}
}

func (s *RedisStore) Save(ctx context.Context, snapshot Snapshot) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "session.store.save")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	snapshotJson, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal session snapshot: %w", err)
	}

	if err := s.redisClient.Set(ctx, activeSessionKey, snapshotJson, 0).Err(); err != nil {
		return fmt.Errorf("save session snapshot: %w", err)
	}

	return nil
}

func (s *RedisStore) Load(ctx context.Context) (_ *Snapshot, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "session.store.load")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	cmd := s.redisClient.Get(ctx, activeSessionKey)
	if err := cmd.Err(); err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoActiveSession
		}
		return nil, fmt.Errorf("load session snapshot: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal([]byte(cmd.Val()), &snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal session snapshot: %w", err)
	}

	return &snapshot, nil
}

func (s *RedisStore) Clear(ctx context.Context) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "session.store.clear")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if err := s.redisClient.Del(ctx, activeSessionKey).Err(); err != nil {
		return fmt.Errorf("clear session snapshot: %w", err)
	}

	return nil
}
