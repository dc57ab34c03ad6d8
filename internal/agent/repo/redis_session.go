package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/chative-realty/leadbot/internal/agent/model"
	errx "github.com/chative-realty/leadbot/internal/core/error"
	logx "github.com/chative-realty/leadbot/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// RedisSessionStore keeps SessionState as JSON and guards saves with WATCH/MULTI.
type RedisSessionStore struct {
	rdb redis.UniversalClient
	ttl time.Duration
	now func() time.Time
}

func NewRedisSessionStore(rdb redis.UniversalClient, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{rdb: rdb, ttl: ttl, now: time.Now}
}

func (s *RedisSessionStore) stateKey(sessionID string) string {
	return fmt.Sprintf("session:%s:state", sessionID)
}

func (s *RedisSessionStore) Load(ctx context.Context, sessionID string) (model.SessionState, error) {
	key := s.stateKey(sessionID)
	b, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.NewSessionState(sessionID), nil
	}
	if err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to load session state")
		return model.SessionState{}, errx.WrapRedis(err)
	}

	var state model.SessionState
	if err := json.Unmarshal(b, &state); err != nil {
		return model.SessionState{}, fmt.Errorf("decode session %s: %w", sessionID, err)
	}
	state.SessionID = sessionID
	return state, nil
}

func (s *RedisSessionStore) Save(ctx context.Context, state model.SessionState, expected int64) (model.SessionState, error) {
	key := s.stateKey(state.SessionID)

	next := state
	next.Version = expected + 1
	next.UpdatedAt = s.now().UTC()
	payload, err := json.Marshal(next)
	if err != nil {
		return model.SessionState{}, fmt.Errorf("encode session %s: %w", state.SessionID, err)
	}

	txf := func(tx *redis.Tx) error {
		current, err := storedVersion(ctx, tx, key)
		if err != nil {
			return err
		}
		if current != expected {
			return fmt.Errorf("session %s at version %d, expected %d: %w", state.SessionID, current, expected, errx.ErrStaleState)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, s.ttl)
			return nil
		})
		return err
	}

	err = s.rdb.Watch(ctx, txf, key)
	switch {
	case err == nil:
		return next, nil
	case errors.Is(err, redis.TxFailedErr):
		return model.SessionState{}, fmt.Errorf("session %s changed during save: %w", state.SessionID, errx.ErrStaleState)
	case errors.Is(err, errx.ErrStaleState):
		return model.SessionState{}, err
	default:
		logx.Error().Err(err).Str("key", key).Msg("failed to save session state")
		return model.SessionState{}, errx.WrapRedis(err)
	}
}

func storedVersion(ctx context.Context, tx *redis.Tx, key string) (int64, error) {
	b, err := tx.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var head struct {
		Version int64 `json:"version"`
	}
	if err := json.Unmarshal(b, &head); err != nil {
		return 0, fmt.Errorf("decode stored version: %w", err)
	}
	return head.Version, nil
}

var _ model.SessionStore = (*RedisSessionStore)(nil)
