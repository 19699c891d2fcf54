package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const casMaxRetries = 8

// Redis maps the path tree directly onto Redis keys. Single-key
// transactions use WATCH-based optimistic concurrency retried with
// exponential backoff; multi-path batches go through MULTI/EXEC so all
// changes land as one request.
type Redis struct {
	rdb *redis.Client
}

func NewRedis(ctx context.Context, redisURL string) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	log.Info().Msg("redis connected")
	return &Redis{rdb: rdb}, nil
}

func (s *Redis) Get(ctx context.Context, path string) ([]byte, error) {
	data, err := s.rdb.Get(ctx, path).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	return data, err
}

func (s *Redis) Set(ctx context.Context, path string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, path, data, 0).Err()
}

func (s *Redis) Txn(ctx context.Context, path string, fn TxnFunc) error {
	attempt := func() error {
		err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
			cur, err := tx.Get(ctx, path).Bytes()
			if errors.Is(err, redis.Nil) {
				cur = nil
			} else if err != nil {
				return backoff.Permanent(err)
			}

			next, err := fn(cur)
			if errors.Is(err, ErrUnchanged) {
				return nil
			}
			if err != nil {
				return backoff.Permanent(err)
			}

			data, err := json.Marshal(next)
			if err != nil {
				return backoff.Permanent(err)
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, path, data, 0)
				return nil
			})
			return err
		}, path)

		if errors.Is(err, redis.TxFailedErr) {
			// Lost the CAS race; retry with a fresh read.
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}

	bo := backoff.WithContext(
		backoff.WithMaxRetries(newCASBackOff(), casMaxRetries), ctx)
	if err := backoff.Retry(attempt, bo); err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return perm.Err
		}
		if errors.Is(err, redis.TxFailedErr) {
			return ErrConflict
		}
		return err
	}
	return nil
}

func newCASBackOff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 5 * time.Millisecond
	bo.MaxInterval = 100 * time.Millisecond
	bo.MaxElapsedTime = 2 * time.Second
	return bo
}

func (s *Redis) Update(ctx context.Context, changes map[string]any) error {
	// Deletions of a path remove its whole subtree, so resolve descendant
	// keys up front; the writes themselves then go out as one MULTI/EXEC.
	var deleteKeys []string
	sets := make(map[string][]byte)
	for path, value := range changes {
		if value == nil {
			deleteKeys = append(deleteKeys, path)
			descendants, err := s.scan(ctx, path)
			if err != nil {
				return err
			}
			deleteKeys = append(deleteKeys, descendants...)
			continue
		}
		data, err := json.Marshal(value)
		if err != nil {
			return err
		}
		sets[path] = data
	}

	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(deleteKeys) > 0 {
			pipe.Del(ctx, deleteKeys...)
		}
		for path, data := range sets {
			pipe.Set(ctx, path, data, 0)
		}
		return nil
	})
	return err
}

func (s *Redis) List(ctx context.Context, prefix string) (map[string][]byte, error) {
	paths, err := s.scan(ctx, prefix)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]byte, len(paths))
	if len(paths) == 0 {
		return out, nil
	}

	values, err := s.rdb.MGet(ctx, paths...).Result()
	if err != nil {
		return nil, err
	}
	for i, v := range values {
		if str, ok := v.(string); ok {
			out[paths[i]] = []byte(str)
		}
	}
	return out, nil
}

// scan returns every key strictly below prefix. SCAN's MATCH glob treats
// some characters specially, so results are re-checked literally.
func (s *Redis) scan(ctx context.Context, prefix string) ([]string, error) {
	var paths []string
	want := prefix + "/"
	iter := s.rdb.Scan(ctx, 0, escapeGlob(prefix)+"/*", 200).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if strings.HasPrefix(key, want) {
			paths = append(paths, key)
		}
	}
	return paths, iter.Err()
}

func escapeGlob(s string) string {
	r := strings.NewReplacer(`*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`, `\`, `\\`)
	return r.Replace(s)
}

func (s *Redis) Backend() string                { return "redis" }
func (s *Redis) Ping(ctx context.Context) error { return s.rdb.Ping(ctx).Err() }
func (s *Redis) Close() error                   { return s.rdb.Close() }
