// README: Session store backed by Redis, for running several replicas behind one load balancer.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix = "tripplanner:session:%s"
	// maxUpdateAttempts bounds optimistic-lock retries in Update.
	maxUpdateAttempts = 5
)

type RedisStore struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewRedisStore stores sessions as JSON with a sliding ttl. A zero ttl keeps keys until reset.
func NewRedisStore(redis *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{redis: redis, ttl: ttl}
}

func (s *RedisStore) Get(ctx context.Context, clientID string) (*Session, error) {
	raw, err := s.redis.Get(ctx, sessionKey(clientID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis store: get: %w", err)
	}
	return decodeSession(raw)
}

func (s *RedisStore) Replace(ctx context.Context, clientID string, sess *Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("redis store: encode: %w", err)
	}
	if err := s.redis.Set(ctx, sessionKey(clientID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis store: set: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, clientID string) error {
	if err := s.redis.Del(ctx, sessionKey(clientID)).Err(); err != nil {
		return fmt.Errorf("redis store: del: %w", err)
	}
	return nil
}

// Update runs fn inside a WATCH/MULTI transaction and retries when another
// writer touched the key in between.
func (s *RedisStore) Update(ctx context.Context, clientID string, fn func(sess *Session) error) error {
	key := sessionKey(clientID)
	txf := func(tx *redis.Tx) error {
		var cur *Session
		raw, err := tx.Get(ctx, key).Bytes()
		switch {
		case err == redis.Nil:
		case err != nil:
			return fmt.Errorf("redis store: get: %w", err)
		default:
			if cur, err = decodeSession(raw); err != nil {
				return err
			}
		}

		if err := fn(cur); err != nil {
			return err
		}
		if cur == nil {
			return nil
		}

		updated, err := json.Marshal(cur)
		if err != nil {
			return fmt.Errorf("redis store: encode: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, s.ttl)
			return nil
		})
		return err
	}

	for i := 0; i < maxUpdateAttempts; i++ {
		err := s.redis.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("redis store: update %s: %w", clientID, redis.TxFailedErr)
}

func decodeSession(raw []byte) (*Session, error) {
	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("redis store: decode: %w", err)
	}
	if sess.ChatHistory == nil {
		sess.ChatHistory = []ChatTurn{}
	}
	return &sess, nil
}

func sessionKey(clientID string) string {
	return fmt.Sprintf(sessionKeyPrefix, clientID)
}
