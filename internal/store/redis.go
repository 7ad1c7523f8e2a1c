package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/nyashahama/workplace-wellbeing-backend/internal/questionnaire"
)

// maxTxRetries bounds optimistic-lock retries in Redis.Update.
const maxTxRetries = 50

// Redis stores each session as a JSON string under "session:<id>". Every
// write refreshes the key's TTL, so idle sessions expire on their own and
// DeleteExpired has nothing to do.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis returns a Redis store. ttl <= 0 disables expiry.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	if ttl < 0 {
		ttl = 0
	}
	return &Redis{client: client, ttl: ttl}
}

func sessionKey(id uuid.UUID) string { return "session:" + id.String() }

// getter is satisfied by both *redis.Client and *redis.Tx.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (r *Redis) Create(ctx context.Context, s questionnaire.Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("store: marshal session: %w", err)
	}
	ok, err := r.client.SetNX(ctx, sessionKey(s.ID), data, r.ttl).Result()
	if err != nil {
		return fmt.Errorf("store: redis create: %w", err)
	}
	if !ok {
		return ErrExists
	}
	return nil
}

func (r *Redis) Get(ctx context.Context, id uuid.UUID) (questionnaire.Session, error) {
	return r.get(ctx, r.client, id)
}

func (r *Redis) get(ctx context.Context, c getter, id uuid.UUID) (questionnaire.Session, error) {
	data, err := c.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return questionnaire.Session{}, ErrNotFound
	}
	if err != nil {
		return questionnaire.Session{}, fmt.Errorf("store: redis get: %w", err)
	}
	var s questionnaire.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return questionnaire.Session{}, fmt.Errorf("store: unmarshal session %s: %w", id, err)
	}
	return clone(s), nil
}

// Update uses WATCH/MULTI so a concurrent write to the same key aborts this
// transaction; it is then retried with the fresh value.
func (r *Redis) Update(ctx context.Context, id uuid.UUID, fn UpdateFunc) (questionnaire.Session, error) {
	key := sessionKey(id)

	for range maxTxRetries {
		var out questionnaire.Session
		err := r.client.Watch(ctx, func(tx *redis.Tx) error {
			s, err := r.get(ctx, tx, id)
			if err != nil {
				return err
			}
			if err := fn(&s); err != nil {
				return err
			}
			data, err := json.Marshal(s)
			if err != nil {
				return fmt.Errorf("store: marshal session: %w", err)
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, data, r.ttl)
				return nil
			})
			out = s
			return err
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return questionnaire.Session{}, err
		}
		return out, nil
	}
	return questionnaire.Session{}, fmt.Errorf("store: redis update %s: too much contention", id)
}

func (r *Redis) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.client.Del(ctx, sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("store: redis delete: %w", err)
	}
	return nil
}

// DeleteExpired is a no-op: keys expire through their TTL.
func (r *Redis) DeleteExpired(context.Context, time.Time) (int, error) {
	return 0, nil
}
