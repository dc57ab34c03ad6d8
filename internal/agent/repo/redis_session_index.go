package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chative-realty/leadbot/internal/agent/model"
	errx "github.com/chative-realty/leadbot/internal/core/error"
	logx "github.com/chative-realty/leadbot/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// DefaultResumeWindow is how long a user id keeps pointing at its last session.
const DefaultResumeWindow = 30 * time.Minute

// RedisSessionIndex maps a user id to the session it last used. The key
// expires after the resume window, so an idle user starts over.
type RedisSessionIndex struct {
	rdb    redis.Cmdable
	window time.Duration
}

func NewRedisSessionIndex(rdb redis.Cmdable, window time.Duration) *RedisSessionIndex {
	if window <= 0 {
		window = DefaultResumeWindow
	}
	return &RedisSessionIndex{rdb: rdb, window: window}
}

func (r *RedisSessionIndex) userKey(userID string) string {
	return fmt.Sprintf("user:%s:session", userID)
}

func (r *RedisSessionIndex) ActiveSession(ctx context.Context, userID string) (string, error) {
	id, err := r.rdb.Get(ctx, r.userKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		logx.Error().Err(err).Str("user_id", userID).Msg("failed to look up active session")
		return "", errx.WrapRedis(err)
	}
	return id, nil
}

func (r *RedisSessionIndex) TouchSession(ctx context.Context, userID, sessionID string) error {
	if err := r.rdb.Set(ctx, r.userKey(userID), sessionID, r.window).Err(); err != nil {
		return errx.WrapRedis(err)
	}
	return nil
}

var _ model.SessionIndex = (*RedisSessionIndex)(nil)
